package server

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/ogulcanaydogan/LLM-Quota-Guardian/pkg/model"
	"github.com/ogulcanaydogan/LLM-Quota-Guardian/pkg/storage"
)

// DefaultCheckTimeout bounds a check triggered over HTTP. It covers one usage
// fetch plus a forced credential refresh.
const DefaultCheckTimeout = 5 * time.Minute

// Checker runs one usage check.
type Checker interface {
	RunCheck(ctx context.Context) model.CheckResult
}

// Server exposes the check trigger and read-only state endpoints.
type Server struct {
	checker      Checker
	store        storage.Store
	history      storage.HistoryStore
	checkTimeout time.Duration
	mux          *http.ServeMux
	logger       *slog.Logger
}

// NewServer creates an API server. history may be nil when the backend keeps no history.
func NewServer(checker Checker, store storage.Store, history storage.HistoryStore, logger *slog.Logger) *Server {
	s := &Server{
		checker:      checker,
		store:        store,
		history:      history,
		checkTimeout: DefaultCheckTimeout,
		mux:          http.NewServeMux(),
		logger:       logger,
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	s.mux.HandleFunc("GET /healthz", s.handleHealth)
	s.mux.HandleFunc("GET /api/v1/check", s.handleCheck)
	s.mux.HandleFunc("GET /api/v1/state", s.handleState)
	s.mux.HandleFunc("GET /api/v1/history", s.handleHistory)
}

// Handler returns the HTTP handler for this server.
func (s *Server) Handler() http.Handler {
	return s.mux
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleCheck runs a check to completion even if the caller disconnects, so
// a cron pinger with a short timeout never leaves state half-written.
func (s *Server) handleCheck(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(r.Context()), s.checkTimeout)
	defer cancel()

	result := s.checker.RunCheck(ctx)
	if result.Outcome != model.OutcomeOK {
		s.logger.Warn("triggered check did not complete cleanly",
			"id", result.ID,
			"outcome", result.Outcome,
			"error", result.Error,
		)
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	state, revision, err := s.store.Load(ctx)
	if err != nil {
		s.logger.Warn("load alert state", "store", s.store.Name(), "error", err)
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"backend":  s.store.Name(),
		"revision": revision,
		"state":    state.Normalize(),
	})
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	if s.history == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "check history requires the sqlite backend"})
		return
	}

	limit := 50
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "limit must be a positive integer"})
			return
		}
		limit = n
	}

	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	records, err := s.history.ListChecks(ctx, limit)
	if err != nil {
		s.logger.Error("list check history", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, records)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
