// Package dashboard serves read-only prediction accuracy views over HTTP.
package dashboard

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/couchcryptid/modtrack/internal/store"
)

const (
	defaultLookbackDays = 7
	maxPredictionRows   = 500
)

// Store provides the queries backing the dashboard endpoints.
type Store interface {
	RecentPredictions(ctx context.Context, reservoirID string, since time.Time, limit int) ([]store.Record, error)
	Summary(ctx context.Context, since time.Time) (store.Summary, error)
	ReservoirStats(ctx context.Context, since time.Time) ([]store.ReservoirStat, error)
}

// Server wraps an HTTP server exposing the dashboard API.
type Server struct {
	httpServer *http.Server
	store      Store
	logger     *slog.Logger
}

// NewServer builds the dashboard server with its routes mounted.
func NewServer(addr string, st Store, logger *slog.Logger) *Server {
	s := &Server{
		store:  st,
		logger: logger,
	}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Get("/healthz", s.handleHealth)
	r.Route("/api", func(r chi.Router) {
		r.Get("/predictions", s.handlePredictions)
		r.Get("/summary", s.handleSummary)
	})

	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return s
}

// Start begins listening. Returns http.ErrServerClosed on graceful shutdown.
func (s *Server) Start() error {
	s.logger.Info("dashboard server starting", "addr", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully drains connections within the given context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// ServeHTTP delegates to the underlying handler, useful for testing.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.httpServer.Handler.ServeHTTP(w, r)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

// handlePredictions returns recent predictions with their validations.
// Query params: reservoir_id (optional filter), days (lookback, default 7).
func (s *Server) handlePredictions(w http.ResponseWriter, r *http.Request) {
	since, ok := lookback(w, r)
	if !ok {
		return
	}
	reservoirID := r.URL.Query().Get("reservoir_id")

	records, err := s.store.RecentPredictions(r.Context(), reservoirID, since, maxPredictionRows)
	if err != nil {
		s.logger.Error("query recent predictions", "error", err)
		writeError(w, http.StatusInternalServerError, "query failed")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"predictions": records,
		"count":       len(records),
	})
}

// handleSummary returns aggregate accuracy stats plus a per-reservoir breakdown.
func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	since, ok := lookback(w, r)
	if !ok {
		return
	}

	summary, err := s.store.Summary(r.Context(), since)
	if err != nil {
		s.logger.Error("query summary", "error", err)
		writeError(w, http.StatusInternalServerError, "query failed")
		return
	}

	stats, err := s.store.ReservoirStats(r.Context(), since)
	if err != nil {
		s.logger.Error("query reservoir stats", "error", err)
		writeError(w, http.StatusInternalServerError, "query failed")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"summary":    summary,
		"reservoirs": stats,
	})
}

// lookback parses the days query parameter into a since timestamp. On a bad
// value it writes a 400 and reports false.
func lookback(w http.ResponseWriter, r *http.Request) (time.Time, bool) {
	days := defaultLookbackDays
	if raw := r.URL.Query().Get("days"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			writeError(w, http.StatusBadRequest, "days must be a positive integer")
			return time.Time{}, false
		}
		days = parsed
	}
	return time.Now().UTC().AddDate(0, 0, -days), true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v) //nolint:errcheck // best-effort response
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
