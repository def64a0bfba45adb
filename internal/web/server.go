package web

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"lockin/internal/config"
	appLog "lockin/internal/log"
	"lockin/internal/notify"
	"lockin/internal/reminder"
	"lockin/internal/store"
	"lockin/internal/verify"
)

// Verifier judges proof media against an activity label. Satisfied by
// *verify.Client; swapped for a fake in tests.
type Verifier interface {
	Verify(ctx context.Context, media []byte, mimeType, activity string) (verify.Result, error)
}

// Server provides the HTTP API: schedule CRUD and import, proof
// verification, daily summaries, agenda/ics export and reminder control.
type Server struct {
	cfg       *config.Config
	store     *store.Store
	verifier  Verifier
	email     *notify.EmailClient
	reminders *reminder.Manager
	queue     *notify.Queue
	loc       *time.Location
	mux       *http.ServeMux
}

// NewServer constructs a new Server.
func NewServer(cfg *config.Config, st *store.Store, verifier Verifier, email *notify.EmailClient, reminders *reminder.Manager, queue *notify.Queue) *Server {
	s := &Server{
		cfg:       cfg,
		store:     st,
		verifier:  verifier,
		email:     email,
		reminders: reminders,
		queue:     queue,
		loc:       resolveLocationOrLocal(cfg.Timezone),
		mux:       http.NewServeMux(),
	}
	s.registerRoutes()
	return s
}

// Handler returns the underlying http.Handler for this server.
func (s *Server) Handler() http.Handler {
	h := http.Handler(s.mux)
	if s.basicAuthEnabled() {
		appLog.Info("HTTP basic auth enabled", "listen", "http://"+s.cfg.Listen)
		return s.basicAuthMiddleware(h)
	}
	return h
}

func (s *Server) registerRoutes() {
	s.mux.HandleFunc("/health", s.handleHealth)

	s.mux.HandleFunc("/api/schedule", s.handleSchedule)
	s.mux.HandleFunc("/api/schedule/parse", s.handleParse)
	s.mux.HandleFunc("/api/schedule/import", s.handleImport)
	s.mux.HandleFunc("/api/schedule.ics", s.handleICS)
	s.mux.HandleFunc("/api/agenda", s.handleAgenda)

	s.mux.HandleFunc("/api/verify", s.handleVerify)
	s.mux.HandleFunc("/api/summary", s.handleSummary)
	s.mux.HandleFunc("/api/summary/card.png", s.handleCardPNG)

	s.mux.HandleFunc("/api/preferences", s.handlePreferences)
	s.mux.HandleFunc("/api/reminders", s.handleReminders)
	s.mux.HandleFunc("/api/reminders/rearm", s.handleRearm)
	s.mux.HandleFunc("/api/notifications", s.handleNotifications)

	s.mux.HandleFunc("/card", s.handleCard)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

// basicAuthEnabled reports whether HTTP Basic Auth is configured.
func (s *Server) basicAuthEnabled() bool {
	if s.cfg == nil || s.cfg.BasicAuth == nil {
		return false
	}
	// Empty username or password is treated as disabled.
	if s.cfg.BasicAuth.Username == "" || s.cfg.BasicAuth.Password == "" {
		return false
	}
	return true
}

// basicAuthMiddleware wraps all handlers except /health and /card with
// HTTP Basic Auth. /card stays open because the headless capture of the
// summary card fetches it from the server's own loopback address, and it
// exposes nothing beyond aggregate completion numbers.
func (s *Server) basicAuthMiddleware(next http.Handler) http.Handler {
	username := s.cfg.BasicAuth.Username
	password := s.cfg.BasicAuth.Password

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/health" || r.URL.Path == "/card" {
			next.ServeHTTP(w, r)
			return
		}

		u, p, ok := r.BasicAuth()
		if !ok || !secureCompare(u, username) || !secureCompare(p, password) {
			w.Header().Set("WWW-Authenticate", `Basic realm="LockIn", charset="UTF-8"`)
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// secureCompare compares two strings in constant time.
func secureCompare(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

// userID extracts the acting user from the request, or writes a 400 and
// returns false. Authentication itself is an external collaborator; this
// API trusts the identifier it is handed.
func (s *Server) userID(w http.ResponseWriter, r *http.Request) (string, bool) {
	user := r.URL.Query().Get("user")
	if user == "" {
		writeError(w, http.StatusBadRequest, "missing user parameter")
		return "", false
	}
	return user, true
}

// today returns the current date in the configured timezone.
func (s *Server) today() string {
	return time.Now().In(s.loc).Format("2006-01-02")
}

func parseIntDefault(v string, def int) int {
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func resolveLocationOrLocal(name string) *time.Location {
	if name == "" {
		return time.Local
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		appLog.Error("failed to load timezone; falling back to local", err, "name", name)
		return time.Local
	}
	return loc
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		appLog.Error("failed to write JSON response", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	type errResp struct {
		Error string `json:"error"`
	}
	writeJSON(w, status, errResp{Error: msg})
}

func writeValidationError(w http.ResponseWriter, violations []string) {
	type resp struct {
		Error      string   `json:"error"`
		Violations []string `json:"violations"`
	}
	writeJSON(w, http.StatusUnprocessableEntity, resp{
		Error:      "schedule validation failed",
		Violations: violations,
	})
}

func isNotFound(err error) bool {
	return errors.Is(err, store.ErrNotFound)
}
