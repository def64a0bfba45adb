package web

import (
	"embed"
	"html/template"
	"net/http"
	"net/url"
	"time"

	"lockin/internal/capture"
	appLog "lockin/internal/log"
	"lockin/internal/model"
)

//go:embed card.tmpl
var cardFS embed.FS

var cardTmpl = template.Must(template.ParseFS(cardFS, "card.tmpl"))

type cardBlock struct {
	Activity string
	Span     string
	Category model.Category
	Status   string // "done", "failed" or "pending"
	Score    int
}

type cardData struct {
	Name    string
	Date    string
	Summary model.DaySummary
	Streak  int
	Blocks  []cardBlock
}

// handleCard renders the day summary as a self-contained HTML card. The
// page marks itself with data-ready="true" once rendered so the headless
// browser knows when to screenshot it.
func (s *Server) handleCard(w http.ResponseWriter, r *http.Request) {
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

	blocks, err := s.store.LoadSchedule(r.Context(), user)
	if err != nil && !isNotFound(err) {
		appLog.Error("failed to load schedule", err, "user", user)
		writeError(w, http.StatusInternalServerError, "failed to load schedule")
		return
	}
	logs, err := s.store.LogsForDay(r.Context(), user, date)
	if err != nil {
		appLog.Error("failed to load verification logs", err, "user", user)
		writeError(w, http.StatusInternalServerError, "failed to load verification logs")
		return
	}
	prefs, err := s.store.LoadPreferences(r.Context(), user)
	if err != nil {
		prefs = model.Preferences{}
	}

	sum, err := s.summarize(r.Context(), user, date, day.Weekday())
	if err != nil && !isNotFound(err) {
		appLog.Error("failed to build day summary", err, "user", user)
		writeError(w, http.StatusInternalServerError, "failed to build day summary")
		return
	}
	streak, err := s.store.Streak(r.Context(), user, date)
	if err != nil {
		streak = 0
	}

	data := cardData{
		Name:    prefs.Name,
		Date:    day.Format("Monday, January 2"),
		Summary: sum,
		Streak:  streak,
	}
	if data.Name == "" {
		data.Name = user
	}
	for _, b := range blocks {
		if !b.ActiveOn(day.Weekday()) {
			continue
		}
		cb := cardBlock{
			Activity: b.Activity,
			Span:     b.Start + " - " + b.End,
			Category: b.Category,
			Status:   "pending",
		}
		if lg, found := logs[b.ID]; found {
			cb.Score = lg.FocusScore
			if lg.Verified {
				cb.Status = "done"
			} else {
				cb.Status = "failed"
			}
		}
		data.Blocks = append(data.Blocks, cb)
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := cardTmpl.Execute(w, data); err != nil {
		appLog.Error("failed to render summary card", err, "user", user)
	}
}

// handleCardPNG screenshots the server's own card page through a headless
// browser and returns the PNG. Intended for sharing a day's result.
func (s *Server) handleCardPNG(w http.ResponseWriter, r *http.Request) {
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

	q := url.Values{}
	q.Set("user", user)
	q.Set("date", date)
	cardURL := "http://" + s.cfg.Listen + "/card?" + q.Encode()

	png, err := capture.CaptureCardPNG(r.Context(), capture.CardOptions{URL: cardURL})
	if err != nil {
		appLog.Error("failed to capture summary card", err, "user", user)
		writeError(w, http.StatusInternalServerError, "failed to capture summary card")
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(png)
}
