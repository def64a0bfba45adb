package verify

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/kaptinlin/jsonrepair"

	"lockin/internal/config"
	appLog "lockin/internal/log"
)

// NotConfiguredTag is the sentinel distraction label attached when no
// verifier API key is configured and proofs are accepted unreviewed.
const NotConfiguredTag = "verifier-not-configured"

// Result is the outcome of one AI proof verification.
type Result struct {
	Verified     bool     `json:"verified"`
	FocusScore   int      `json:"focus_score"` // 0–10
	Distractions []string `json:"distractions"`
	Critique     string   `json:"critique"`
}

// Client calls an OpenAI-compatible vision chat-completions API to judge
// whether a proof photo/video frame shows the claimed activity.
type Client struct {
	baseURL    string
	apiKey     string
	model      string
	httpClient *http.Client
}

// NewClient constructs a verification client from config. An empty API
// key yields a client that fails open (see Verify).
func NewClient(cfg config.VerifierConfig) *Client {
	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:     cfg.APIKey,
		model:      cfg.Model,
		httpClient: &http.Client{Timeout: timeout},
	}
}

const verifyPrompt = `You are a strict accountability coach reviewing proof that a scheduled activity was completed.
The claimed activity is: %q.
Judge whether the image plausibly shows this activity in progress or just completed.
Reply with ONLY a JSON object of this exact shape:
{"verified": true|false, "focus_score": 0-10, "distractions": ["..."], "critique": "one or two sentences"}`

// Verify submits media bytes plus the activity label and returns the
// model's judgment. When no API key is configured it fails open: the
// proof is accepted with FocusScore 0 and the NotConfiguredTag
// distraction so downstream consumers can tell it apart from a real pass.
func (c *Client) Verify(ctx context.Context, media []byte, mimeType, activity string) (Result, error) {
	if c.apiKey == "" {
		appLog.Warn("verifier not configured; accepting proof unreviewed", nil, "activity", activity)
		return Result{
			Verified:     true,
			FocusScore:   0,
			Distractions: []string{NotConfiguredTag},
			Critique:     "Verification is not configured; proof accepted without review.",
		}, nil
	}
	if len(media) == 0 {
		return Result{}, fmt.Errorf("verify: empty media payload")
	}
	if mimeType == "" {
		mimeType = "image/jpeg"
	}

	dataURI := "data:" + mimeType + ";base64," + base64.StdEncoding.EncodeToString(media)

	reqBody := map[string]any{
		"model": c.model,
		"messages": []map[string]any{
			{
				"role": "user",
				"content": []map[string]any{
					{"type": "text", "text": fmt.Sprintf(verifyPrompt, activity)},
					{"type": "image_url", "image_url": map[string]any{"url": dataURI}},
				},
			},
		},
		"temperature": 0,
		"max_tokens":  400,
	}

	body, err := json.Marshal(reqBody)
	if err != nil {
		return Result{}, fmt.Errorf("verify: marshal request: %w", err)
	}

	endpoint := c.baseURL + "/chat/completions"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return Result{}, fmt.Errorf("verify: build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)

	appLog.Debug("verify request", "model", c.model, "activity", activity, "media_bytes", len(media))

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return Result{}, fmt.Errorf("verify: call failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return Result{}, fmt.Errorf("verify: read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return Result{}, fmt.Errorf("verify: API returned %s: %s", resp.Status, truncate(string(respBody), 200))
	}

	var completion struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.Unmarshal(respBody, &completion); err != nil {
		return Result{}, fmt.Errorf("verify: decode response: %w", err)
	}
	if len(completion.Choices) == 0 {
		return Result{}, fmt.Errorf("verify: response has no choices")
	}

	return parseJudgment(completion.Choices[0].Message.Content)
}

// parseJudgment extracts the Result JSON from the model's reply. Models
// wrap JSON in prose or code fences often enough that we strip fences and
// run the content through jsonrepair before unmarshalling.
func parseJudgment(content string) (Result, error) {
	content = strings.TrimSpace(content)
	content = strings.TrimPrefix(content, "```json")
	content = strings.TrimPrefix(content, "```")
	content = strings.TrimSuffix(content, "```")
	content = strings.TrimSpace(content)

	// Narrow to the outermost object if there is surrounding prose.
	if i := strings.IndexByte(content, '{'); i > 0 {
		content = content[i:]
	}
	if i := strings.LastIndexByte(content, '}'); i >= 0 {
		content = content[:i+1]
	}

	var res Result
	if err := json.Unmarshal([]byte(content), &res); err != nil {
		repaired, repairErr := jsonrepair.JSONRepair(content)
		if repairErr != nil {
			return Result{}, fmt.Errorf("verify: unparseable judgment: %w", err)
		}
		if err := json.Unmarshal([]byte(repaired), &res); err != nil {
			return Result{}, fmt.Errorf("verify: unparseable judgment after repair: %w", err)
		}
	}

	if res.FocusScore < 0 {
		res.FocusScore = 0
	}
	if res.FocusScore > 10 {
		res.FocusScore = 10
	}
	return res, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
