package web

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"

	"lockin/internal/ical"
	"lockin/internal/ingest"
	appLog "lockin/internal/log"
	"lockin/internal/model"
	"lockin/internal/notify"
	"lockin/internal/schedule"
	"lockin/internal/summary"
)

const (
	maxParseBody  = 1 << 20  // 1 MiB of pasted text
	maxUploadBody = 20 << 20 // 20 MiB for schedule files and proof media
)

type scheduleResponse struct {
	Blocks []model.ScheduleBlock `json:"blocks"`
}

// handleSchedule serves GET (load) and PUT (replace) of a user's schedule.
func (s *Server) handleSchedule(w http.ResponseWriter, r *http.Request) {
	user, ok := s.userID(w, r)
	if !ok {
		return
	}

	switch r.Method {
	case http.MethodGet:
		blocks, err := s.store.LoadSchedule(r.Context(), user)
		if err != nil {
			if isNotFound(err) {
				writeError(w, http.StatusNotFound, "no schedule found")
				return
			}
			appLog.Error("failed to load schedule", err, "user", user)
			writeError(w, http.StatusInternalServerError, "failed to load schedule")
			return
		}
		writeJSON(w, http.StatusOK, scheduleResponse{Blocks: blocks})

	case http.MethodPut:
		var blocks []model.ScheduleBlock
		if err := json.NewDecoder(io.LimitReader(r.Body, maxParseBody)).Decode(&blocks); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}
		for i := range blocks {
			if blocks[i].ID == "" {
				blocks[i].ID = uuid.NewString()
			}
		}
		if ok, violations := schedule.Validate(blocks); !ok {
			writeValidationError(w, violations)
			return
		}
		if err := s.store.SaveSchedule(r.Context(), user, blocks); err != nil {
			appLog.Error("failed to save schedule", err, "user", user)
			writeError(w, http.StatusInternalServerError, "failed to save schedule")
			return
		}
		armed := s.rearmReminders(r.Context(), user, blocks)
		appLog.Info("schedule replaced", "user", user, "blocks", len(blocks), "reminders", armed)
		type resp struct {
			Blocks         int `json:"blocks"`
			RemindersArmed int `json:"reminders_armed"`
		}
		writeJSON(w, http.StatusOK, resp{Blocks: len(blocks), RemindersArmed: armed})

	default:
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

// handleParse turns pasted free-form text into schedule blocks without
// persisting anything. The client reviews the result and PUTs it back.
func (s *Server) handleParse(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	body, err := io.ReadAll(io.LimitReader(r.Body, maxParseBody))
	if err != nil {
		writeError(w, http.StatusBadRequest, "failed to read request body")
		return
	}
	blocks := schedule.Parse(string(body), nil)
	if len(blocks) == 0 {
		writeError(w, http.StatusUnprocessableEntity, "could not find any schedule lines; expected times like 09:00 - 10:30 followed by an activity")
		return
	}
	writeJSON(w, http.StatusOK, scheduleResponse{Blocks: blocks})
}

// handleImport accepts an uploaded schedule file (PDF, CSV or plain text),
// extracts its text and parses it into blocks. Like handleParse it does
// not persist; the client confirms with a PUT.
func (s *Server) handleImport(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBody)
	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "missing file upload")
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		writeError(w, http.StatusBadRequest, "failed to read uploaded file")
		return
	}

	ext, err := ingest.Extract(header.Filename, data)
	if err != nil {
		var perr *ingest.ParseError
		if errors.As(err, &perr) {
			writeError(w, http.StatusUnprocessableEntity, perr.Error())
			return
		}
		appLog.Error("failed to extract schedule file", err, "filename", header.Filename)
		writeError(w, http.StatusInternalServerError, "failed to extract schedule file")
		return
	}

	var blocks []model.ScheduleBlock
	switch {
	case len(ext.Rows) > 0:
		blocks = schedule.ParseRows(ext.Rows, nil)
	case len(ext.Pages) > 0:
		blocks = schedule.ParsePages(ext.Pages, nil)
	default:
		blocks = schedule.Parse(ext.Text, nil)
	}
	if len(blocks) == 0 {
		writeError(w, http.StatusUnprocessableEntity, "could not find any schedule entries in "+header.Filename)
		return
	}
	appLog.Info("schedule file imported", "filename", header.Filename, "blocks", len(blocks))
	writeJSON(w, http.StatusOK, scheduleResponse{Blocks: blocks})
}

// handleVerify accepts proof media for a schedule block, runs it through
// the verifier and records the outcome for today.
func (s *Server) handleVerify(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	user, ok := s.userID(w, r)
	if !ok {
		return
	}
	blockID := r.URL.Query().Get("block")
	if blockID == "" {
		writeError(w, http.StatusBadRequest, "missing block parameter")
		return
	}

	blocks, err := s.store.LoadSchedule(r.Context(), user)
	if err != nil {
		if isNotFound(err) {
			writeError(w, http.StatusNotFound, "no schedule found")
			return
		}
		appLog.Error("failed to load schedule", err, "user", user)
		writeError(w, http.StatusInternalServerError, "failed to load schedule")
		return
	}
	var block *model.ScheduleBlock
	for i := range blocks {
		if blocks[i].ID == blockID {
			block = &blocks[i]
			break
		}
	}
	if block == nil {
		writeError(w, http.StatusNotFound, "no such schedule block")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBody)
	file, header, err := r.FormFile("media")
	if err != nil {
		writeError(w, http.StatusBadRequest, "missing media upload")
		return
	}
	defer file.Close()
	media, err := io.ReadAll(file)
	if err != nil {
		writeError(w, http.StatusBadRequest, "failed to read uploaded media")
		return
	}
	mimeType := header.Header.Get("Content-Type")

	result, err := s.verifier.Verify(r.Context(), media, mimeType, block.Activity)
	if err != nil {
		appLog.Error("verification failed", err, "user", user, "block", blockID)
		writeError(w, http.StatusBadGateway, "verification failed; try again")
		return
	}

	logEntry := model.VerificationLog{
		BlockID:      blockID,
		Date:         s.today(),
		Verified:     result.Verified,
		FocusScore:   result.FocusScore,
		Critique:     result.Critique,
		Distractions: result.Distractions,
	}
	if err := s.store.AppendLog(r.Context(), user, logEntry); err != nil {
		appLog.Error("failed to record verification log", err, "user", user, "block", blockID)
		writeError(w, http.StatusInternalServerError, "failed to record verification")
		return
	}
	appLog.Info("proof verified", "user", user, "block", blockID,
		"verified", result.Verified, "focusScore", result.FocusScore)
	writeJSON(w, http.StatusOK, logEntry)
}

type summaryResponse struct {
	Summary model.DaySummary `json:"summary"`
	Streak  int              `json:"streak"`
}

// handleSummary aggregates a user's verification logs for a date
// (default today) into a day summary with the current streak.
func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	user, ok := s.userID(w, r)
	if !ok {
		return
	}
	date := r.URL.Query().Get("date")
	if date == "" {
		date = s.today()
	}
	day, err := time.ParseInLocation("2006-01-02", date, s.loc)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid date; expected YYYY-MM-DD")
		return
	}

	sum, err := s.summarize(r.Context(), user, date, day.Weekday())
	if err != nil {
		if isNotFound(err) {
			writeError(w, http.StatusNotFound, "no schedule found")
			return
		}
		appLog.Error("failed to build day summary", err, "user", user, "date", date)
		writeError(w, http.StatusInternalServerError, "failed to build day summary")
		return
	}
	streak, err := s.store.Streak(r.Context(), user, date)
	if err != nil {
		appLog.Error("failed to compute streak", err, "user", user)
		streak = 0
	}
	writeJSON(w, http.StatusOK, summaryResponse{Summary: sum, Streak: streak})
}

// summarize builds the day summary for one user and date.
func (s *Server) summarize(ctx context.Context, user, date string, weekday time.Weekday) (model.DaySummary, error) {
	blocks, err := s.store.LoadSchedule(ctx, user)
	if err != nil {
		return model.DaySummary{}, err
	}
	logs, err := s.store.LogsForDay(ctx, user, date)
	if err != nil {
		return model.DaySummary{}, err
	}
	return summary.Aggregate(date, summary.ForDay(blocks, weekday), logs), nil
}

// handleAgenda expands the recurring schedule into concrete occurrences
// over the coming days.
func (s *Server) handleAgenda(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	user, ok := s.userID(w, r)
	if !ok {
		return
	}
	days := parseIntDefault(r.URL.Query().Get("days"), 7)
	if days < 1 || days > 31 {
		writeError(w, http.StatusBadRequest, "days must be between 1 and 31")
		return
	}

	blocks, err := s.store.LoadSchedule(r.Context(), user)
	if err != nil {
		if isNotFound(err) {
			writeError(w, http.StatusNotFound, "no schedule found")
			return
		}
		appLog.Error("failed to load schedule", err, "user", user)
		writeError(w, http.StatusInternalServerError, "failed to load schedule")
		return
	}

	now := time.Now().In(s.loc)
	from := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, s.loc)
	to := from.AddDate(0, 0, days)
	occurrences, err := ical.Expand(blocks, from, to, s.loc)
	if err != nil {
		appLog.Error("failed to expand agenda", err, "user", user)
		writeError(w, http.StatusInternalServerError, "failed to expand agenda")
		return
	}
	type resp struct {
		From        string            `json:"from"`
		To          string            `json:"to"`
		Occurrences []ical.Occurrence `json:"occurrences"`
	}
	writeJSON(w, http.StatusOK, resp{
		From:        from.Format("2006-01-02"),
		To:          to.Format("2006-01-02"),
		Occurrences: occurrences,
	})
}

// handleICS serves the schedule as an iCalendar feed for subscription
// from external calendar apps.
func (s *Server) handleICS(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	user, ok := s.userID(w, r)
	if !ok {
		return
	}
	blocks, err := s.store.LoadSchedule(r.Context(), user)
	if err != nil {
		if isNotFound(err) {
			writeError(w, http.StatusNotFound, "no schedule found")
			return
		}
		appLog.Error("failed to load schedule", err, "user", user)
		writeError(w, http.StatusInternalServerError, "failed to load schedule")
		return
	}
	data, err := ical.Export(blocks, s.loc, time.Now().In(s.loc))
	if err != nil {
		appLog.Error("failed to export calendar", err, "user", user)
		writeError(w, http.StatusInternalServerError, "failed to export calendar")
		return
	}
	w.Header().Set("Content-Type", "text/calendar; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="lockin.ics"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(data))
}

// handlePreferences serves GET and PUT of a user's notification
// preferences. A PUT rearms reminders so a changed lead time or channel
// takes effect immediately.
func (s *Server) handlePreferences(w http.ResponseWriter, r *http.Request) {
	user, ok := s.userID(w, r)
	if !ok {
		return
	}

	switch r.Method {
	case http.MethodGet:
		prefs, err := s.store.LoadPreferences(r.Context(), user)
		if err != nil {
			appLog.Error("failed to load preferences", err, "user", user)
			writeError(w, http.StatusInternalServerError, "failed to load preferences")
			return
		}
		writeJSON(w, http.StatusOK, prefs)

	case http.MethodPut:
		var prefs model.Preferences
		if err := json.NewDecoder(io.LimitReader(r.Body, maxParseBody)).Decode(&prefs); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}
		if prefs.LeadMinutes < 0 {
			writeError(w, http.StatusBadRequest, "leadMinutes must not be negative")
			return
		}
		if err := s.store.SavePreferences(r.Context(), user, prefs); err != nil {
			appLog.Error("failed to save preferences", err, "user", user)
			writeError(w, http.StatusInternalServerError, "failed to save preferences")
			return
		}
		blocks, err := s.store.LoadSchedule(r.Context(), user)
		if err != nil && !isNotFound(err) {
			appLog.Error("failed to load schedule", err, "user", user)
			writeError(w, http.StatusInternalServerError, "failed to load schedule")
			return
		}
		armed := 0
		if len(blocks) > 0 {
			armed = s.reminders.Rearm(user, blocks, prefs)
		}
		type resp struct {
			Preferences    model.Preferences `json:"preferences"`
			RemindersArmed int               `json:"reminders_armed"`
		}
		writeJSON(w, http.StatusOK, resp{Preferences: prefs, RemindersArmed: armed})

	default:
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

// handleReminders reports how many reminder timers are armed for a user.
func (s *Server) handleReminders(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	user, ok := s.userID(w, r)
	if !ok {
		return
	}
	type resp struct {
		Armed int `json:"armed"`
	}
	writeJSON(w, http.StatusOK, resp{Armed: s.reminders.ArmedCount(user)})
}

// handleRearm cancels and rearms all reminder timers for a user from the
// stored schedule and preferences.
func (s *Server) handleRearm(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	user, ok := s.userID(w, r)
	if !ok {
		return
	}
	blocks, err := s.store.LoadSchedule(r.Context(), user)
	if err != nil {
		if isNotFound(err) {
			writeError(w, http.StatusNotFound, "no schedule found")
			return
		}
		appLog.Error("failed to load schedule", err, "user", user)
		writeError(w, http.StatusInternalServerError, "failed to load schedule")
		return
	}
	armed := s.rearmReminders(r.Context(), user, blocks)
	type resp struct {
		Armed int `json:"armed"`
	}
	writeJSON(w, http.StatusOK, resp{Armed: armed})
}

// handleNotifications drains and returns the pending in-app notifications
// for a user. Draining is destructive; each notification is delivered once.
func (s *Server) handleNotifications(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	user, ok := s.userID(w, r)
	if !ok {
		return
	}
	type resp struct {
		Notifications []notify.Notification `json:"notifications"`
	}
	writeJSON(w, http.StatusOK, resp{Notifications: s.queue.Drain(user)})
}

// rearmReminders reloads preferences and rearms all timers for one user.
func (s *Server) rearmReminders(ctx context.Context, user string, blocks []model.ScheduleBlock) int {
	prefs, err := s.store.LoadPreferences(ctx, user)
	if err != nil {
		// Same default a user with no preferences row gets.
		appLog.Error("failed to load preferences; rearming with defaults", err, "user", user)
		prefs = model.Preferences{}
	}
	return s.reminders.Rearm(user, blocks, prefs)
}
