package verify

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lockin/internal/config"
)

func completionResponse(content string) string {
	resp := map[string]any{
		"choices": []map[string]any{
			{"message": map[string]any{"content": content}},
		},
	}
	data, _ := json.Marshal(resp)
	return string(data)
}

func TestVerifyNotConfiguredFailsOpen(t *testing.T) {
	c := NewClient(config.VerifierConfig{})

	res, err := c.Verify(context.Background(), []byte("img"), "image/jpeg", "Deep Study")
	require.NoError(t, err)
	assert.True(t, res.Verified)
	assert.Equal(t, 0, res.FocusScore)
	assert.Equal(t, []string{NotConfiguredTag}, res.Distractions)
}

func TestVerifyParsesJudgment(t *testing.T) {
	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		assert.Equal(t, "/chat/completions", r.URL.Path)

		var req map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "test-model", req["model"])

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(completionResponse(
			`{"verified": true, "focus_score": 8, "distractions": ["phone on desk"], "critique": "Solid session."}`,
		)))
	}))
	defer srv.Close()

	c := NewClient(config.VerifierConfig{BaseURL: srv.URL, APIKey: "k", Model: "test-model"})

	res, err := c.Verify(context.Background(), []byte("fake image"), "image/png", "Deep Study")
	require.NoError(t, err)
	assert.Equal(t, "Bearer k", gotAuth)
	assert.True(t, res.Verified)
	assert.Equal(t, 8, res.FocusScore)
	assert.Equal(t, []string{"phone on desk"}, res.Distractions)
	assert.Equal(t, "Solid session.", res.Critique)
}

func TestVerifyHandlesFencedAndNoisyJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(completionResponse(
			"Here is my judgment:\n```json\n{\"verified\": false, \"focus_score\": 3, \"distractions\": [], \"critique\": \"No desk in frame.\"}\n```",
		)))
	}))
	defer srv.Close()

	c := NewClient(config.VerifierConfig{BaseURL: srv.URL, APIKey: "k", Model: "m"})

	res, err := c.Verify(context.Background(), []byte("x"), "image/jpeg", "Reading")
	require.NoError(t, err)
	assert.False(t, res.Verified)
	assert.Equal(t, 3, res.FocusScore)
}

func TestVerifyClampsFocusScore(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(completionResponse(`{"verified": true, "focus_score": 37, "distractions": [], "critique": ""}`)))
	}))
	defer srv.Close()

	c := NewClient(config.VerifierConfig{BaseURL: srv.URL, APIKey: "k", Model: "m"})

	res, err := c.Verify(context.Background(), []byte("x"), "image/jpeg", "Gym")
	require.NoError(t, err)
	assert.Equal(t, 10, res.FocusScore)
}

func TestVerifyAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, `{"error": "rate limited"}`, http.StatusTooManyRequests)
	}))
	defer srv.Close()

	c := NewClient(config.VerifierConfig{BaseURL: srv.URL, APIKey: "k", Model: "m"})

	_, err := c.Verify(context.Background(), []byte("x"), "image/jpeg", "Gym")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "429")
}

func TestVerifyEmptyMedia(t *testing.T) {
	c := NewClient(config.VerifierConfig{BaseURL: "http://127.0.0.1:0", APIKey: "k", Model: "m"})

	_, err := c.Verify(context.Background(), nil, "image/jpeg", "Gym")
	assert.Error(t, err)
}

func TestParseJudgmentRepairsTrailingComma(t *testing.T) {
	res, err := parseJudgment(`{"verified": true, "focus_score": 6, "distractions": ["tv",], "critique": "ok",}`)
	require.NoError(t, err)
	assert.True(t, res.Verified)
	assert.Equal(t, 6, res.FocusScore)
	assert.Equal(t, []string{"tv"}, res.Distractions)
}
