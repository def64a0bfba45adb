package web

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lockin/internal/config"
	"lockin/internal/model"
	"lockin/internal/notify"
	"lockin/internal/reminder"
	"lockin/internal/store"
	"lockin/internal/verify"
)

type fakeVerifier struct {
	result verify.Result
	err    error

	lastActivity string
	lastMime     string
}

func (f *fakeVerifier) Verify(_ context.Context, _ []byte, mimeType, activity string) (verify.Result, error) {
	f.lastActivity = activity
	f.lastMime = mimeType
	return f.result, f.err
}

func newTestServer(t *testing.T) (*Server, *fakeVerifier) {
	t.Helper()

	cfg := config.DefaultConfig()
	cfg.DBPath = filepath.Join(t.TempDir(), "lockin.db")
	cfg.Timezone = "UTC"

	st, err := store.Open(cfg.DBPath)
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	fv := &fakeVerifier{result: verify.Result{Verified: true, FocusScore: 8}}
	queue := notify.NewQueue()
	manager := reminder.NewManager(nil, queue.PusherFor, cfg.LeadMinutes)
	t.Cleanup(manager.CancelAll)

	return NewServer(cfg, st, fv, notify.NewEmailClient(cfg.Mail), manager, queue), fv
}

func putSchedule(t *testing.T, h http.Handler, user string, blocks []model.ScheduleBlock) []model.ScheduleBlock {
	t.Helper()
	body, err := json.Marshal(blocks)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPut, "/api/schedule?user="+user, bytes.NewReader(body))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	req = httptest.NewRequest(http.MethodGet, "/api/schedule?user="+user, nil)
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp scheduleResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp.Blocks
}

func TestHealth(t *testing.T) {
	s, _ := newTestServer(t)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "OK", rec.Body.String())
}

func TestScheduleRoundTrip(t *testing.T) {
	s, _ := newTestServer(t)
	h := s.Handler()

	blocks := putSchedule(t, h, "alice", []model.ScheduleBlock{
		{Start: "07:00", End: "08:00", Activity: "Morning workout", Category: model.CategoryFitness},
		{Start: "09:00", End: "10:30", Activity: "Math class", Category: model.CategoryClass},
	})
	require.Len(t, blocks, 2)
	assert.NotEmpty(t, blocks[0].ID, "server should assign IDs")
	assert.Equal(t, "Morning workout", blocks[0].Activity)
}

func TestScheduleNotFound(t *testing.T) {
	s, _ := newTestServer(t)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/schedule?user=nobody", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestScheduleMissingUser(t *testing.T) {
	s, _ := newTestServer(t)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/schedule", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestScheduleRejectsOverlap(t *testing.T) {
	s, _ := newTestServer(t)
	body, _ := json.Marshal([]model.ScheduleBlock{
		{Start: "09:00", End: "11:00", Activity: "Deep work"},
		{Start: "10:30", End: "12:00", Activity: "Math class"},
	})
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPut, "/api/schedule?user=alice", bytes.NewReader(body)))
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	var resp struct {
		Error      string   `json:"error"`
		Violations []string `json:"violations"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.NotEmpty(t, resp.Violations)
}

func TestParseEndpoint(t *testing.T) {
	s, _ := newTestServer(t)
	h := s.Handler()

	text := "07:00 - 08:00 Morning workout\n09:00 - 10:30 Math class\n"
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/schedule/parse", strings.NewReader(text)))
	require.Equal(t, http.StatusOK, rec.Code)

	var resp scheduleResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Blocks, 2)
	assert.Equal(t, model.CategoryFitness, resp.Blocks[0].Category)
}

func TestParseEndpointNoMatches(t *testing.T) {
	s, _ := newTestServer(t)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/schedule/parse", strings.NewReader("nothing resembling a schedule")))
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestImportCSV(t *testing.T) {
	s, _ := newTestServer(t)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", "week.csv")
	require.NoError(t, err)
	_, _ = fw.Write([]byte("07:00,08:00,Gym\n09:00,10:30,Math class\n"))
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/schedule/import", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp scheduleResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Blocks, 2)
	assert.Equal(t, "Gym", resp.Blocks[0].Activity)
}

func TestImportUnsupportedType(t *testing.T) {
	s, _ := newTestServer(t)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, _ := mw.CreateFormFile("file", "week.docx")
	_, _ = fw.Write([]byte("whatever"))
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/schedule/import", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestVerifyRecordsLog(t *testing.T) {
	s, fv := newTestServer(t)
	h := s.Handler()
	fv.result = verify.Result{Verified: true, FocusScore: 9, Critique: "Great focus."}

	blocks := putSchedule(t, h, "alice", []model.ScheduleBlock{
		{Start: "07:00", End: "08:00", Activity: "Morning workout"},
	})

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fh, err := mw.CreateFormFile("media", "proof.jpg")
	require.NoError(t, err)
	_, _ = fh.Write([]byte("jpeg bytes"))
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/verify?user=alice&block="+blocks[0].ID, &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var logEntry model.VerificationLog
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &logEntry))
	assert.True(t, logEntry.Verified)
	assert.Equal(t, 9, logEntry.FocusScore)
	assert.Equal(t, "Morning workout", fv.lastActivity)

	// The summary must reflect the new log.
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/summary?user=alice", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var sum summaryResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &sum))
	assert.Equal(t, 1, sum.Summary.CompletedCount)
	assert.True(t, sum.Summary.AllComplete)
}

func TestVerifyUnknownBlock(t *testing.T) {
	s, _ := newTestServer(t)
	h := s.Handler()
	putSchedule(t, h, "alice", []model.ScheduleBlock{
		{Start: "07:00", End: "08:00", Activity: "Morning workout"},
	})

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fh, _ := mw.CreateFormFile("media", "proof.jpg")
	_, _ = fh.Write([]byte("jpeg bytes"))
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/verify?user=alice&block=bogus", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestVerifyUpstreamFailure(t *testing.T) {
	s, fv := newTestServer(t)
	h := s.Handler()
	fv.err = assert.AnError

	blocks := putSchedule(t, h, "alice", []model.ScheduleBlock{
		{Start: "07:00", End: "08:00", Activity: "Morning workout"},
	})

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fh, _ := mw.CreateFormFile("media", "proof.jpg")
	_, _ = fh.Write([]byte("jpeg bytes"))
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/verify?user=alice&block="+blocks[0].ID, &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadGateway, rec.Code)
}

func TestAgenda(t *testing.T) {
	s, _ := newTestServer(t)
	h := s.Handler()
	putSchedule(t, h, "alice", []model.ScheduleBlock{
		{Start: "07:00", End: "08:00", Activity: "Morning workout"},
	})

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/agenda?user=alice&days=3", nil))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp struct {
		Occurrences []struct {
			Activity string    `json:"activity"`
			Start    time.Time `json:"start"`
		} `json:"occurrences"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Len(t, resp.Occurrences, 3)
}

func TestICSExport(t *testing.T) {
	s, _ := newTestServer(t)
	h := s.Handler()
	putSchedule(t, h, "alice", []model.ScheduleBlock{
		{Start: "07:00", End: "08:00", Activity: "Morning workout"},
	})

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/schedule.ics?user=alice", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/calendar")
	assert.Contains(t, rec.Body.String(), "BEGIN:VCALENDAR")
	assert.Contains(t, rec.Body.String(), "Morning workout")
}

func TestPreferencesRoundTrip(t *testing.T) {
	s, _ := newTestServer(t)
	h := s.Handler()

	prefs := model.Preferences{Name: "Alice", PushEnabled: true, LeadMinutes: 15}
	body, _ := json.Marshal(prefs)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPut, "/api/preferences?user=alice", bytes.NewReader(body)))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/preferences?user=alice", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var got model.Preferences
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, "Alice", got.Name)
	assert.Equal(t, 15, got.LeadMinutes)
}

func TestNotificationsDrain(t *testing.T) {
	s, _ := newTestServer(t)
	h := s.Handler()
	s.queue.Append("alice", notify.Notification{Title: "Up next: Gym", Body: "Starts at 07:00"})

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/notifications?user=alice", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var resp struct {
		Notifications []notify.Notification `json:"notifications"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Notifications, 1)

	// Drained on delivery.
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/notifications?user=alice", nil))
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Empty(t, resp.Notifications)
}

func TestRemindersRearm(t *testing.T) {
	s, _ := newTestServer(t)
	h := s.Handler()
	putSchedule(t, h, "alice", []model.ScheduleBlock{
		{Start: "23:58", End: "23:59", Activity: "Wind down"},
	})

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/reminders/rearm?user=alice", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/reminders?user=alice", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var resp struct {
		Armed int `json:"armed"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	// Timer count depends on the wall clock; the endpoint just has to agree
	// with itself and not error.
	assert.GreaterOrEqual(t, resp.Armed, 0)
}

func TestBasicAuth(t *testing.T) {
	s, _ := newTestServer(t)
	s.cfg.BasicAuth = &config.BasicAuthConfig{Username: "admin", Password: "hunter2"}
	h := s.Handler()

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/schedule?user=alice", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req := httptest.NewRequest(http.MethodGet, "/api/schedule?user=alice", nil)
	req.SetBasicAuth("admin", "wrong")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req = httptest.NewRequest(http.MethodGet, "/api/schedule?user=alice", nil)
	req.SetBasicAuth("admin", "hunter2")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNotFound, rec.Code, "authed request should reach the handler")

	// Health stays open for probes.
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestCardPage(t *testing.T) {
	s, _ := newTestServer(t)
	h := s.Handler()
	putSchedule(t, h, "alice", []model.ScheduleBlock{
		{Start: "07:00", End: "08:00", Activity: "Morning workout"},
	})

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/card?user=alice", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, `data-ready="true"`)
	assert.Contains(t, body, "Morning workout")
	assert.Contains(t, body, "Day Streak")
}

func TestRearmSurvivesPreferencesLoadFailure(t *testing.T) {
	s, _ := newTestServer(t)
	blocks := []model.ScheduleBlock{
		{ID: "b1", Start: "00:00", End: "01:00", Activity: "Sleep"},
	}

	// A closed store makes the preferences load fail; the rearm falls back
	// to the same zero-value defaults a user with no row gets and carries on.
	require.NoError(t, s.store.Close())
	armed := s.rearmReminders(context.Background(), "alice", blocks)
	assert.Equal(t, 0, armed)
}
