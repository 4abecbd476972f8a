// Package mockapi is a stand-in water-level API for local development. It
// serves randomized readings for a fixed set of reservoirs with the same
// auth and wire format as the real telemetry service.
package mockapi

import (
	"context"
	"encoding/json"
	"log/slog"
	"math/rand"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// Reservoir describes one simulated reservoir and its plausible level band.
type Reservoir struct {
	Name     string
	MinLevel float64
	MaxLevel float64
}

// defaultReservoirs mirrors the fixtures the monitor's sample files reference.
var defaultReservoirs = map[string]Reservoir{
	"reservoir_1": {Name: "Blue Lake", MinLevel: 100, MaxLevel: 150},
	"reservoir_2": {Name: "Green Valley", MinLevel: 200, MaxLevel: 250},
	"reservoir_3": {Name: "Mountain Peak", MinLevel: 300, MaxLevel: 350},
}

// Server is the mock water-level API.
type Server struct {
	httpServer *http.Server
	reservoirs map[string]Reservoir
	apiKey     string
	rng        *rand.Rand
	logger     *slog.Logger
}

// NewServer builds the mock API. If apiKey is non-empty, requests must carry
// it as a bearer token.
func NewServer(addr, apiKey string, logger *slog.Logger) *Server {
	s := &Server{
		reservoirs: defaultReservoirs,
		apiKey:     apiKey,
		rng:        rand.New(rand.NewSource(time.Now().UnixNano())),
		logger:     logger,
	}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Get("/", s.handleRoot)
	r.Get("/water-level/{reservoirID}", s.handleWaterLevel)

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
	s.logger.Info("mock water-level API starting", "addr", s.httpServer.Addr)
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

func (s *Server) handleRoot(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"service": "mock water-level API",
		"status":  "healthy",
	})
}

func (s *Server) handleWaterLevel(w http.ResponseWriter, r *http.Request) {
	if !s.authorized(r) {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "invalid or missing bearer token"})
		return
	}

	id := chi.URLParam(r, "reservoirID")
	res, ok := s.reservoirs[id]
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "unknown reservoir: " + id})
		return
	}

	level := res.MinLevel + s.rng.Float64()*(res.MaxLevel-res.MinLevel)
	writeJSON(w, http.StatusOK, reading{
		ReservoirID: id,
		Name:        res.Name,
		Timestamp:   time.Now().UTC().Format(time.RFC3339),
		WaterLevel:  level,
		Unit:        "meters",
	})
}

func (s *Server) authorized(r *http.Request) bool {
	if s.apiKey == "" {
		return true
	}
	return r.Header.Get("Authorization") == "Bearer "+s.apiKey
}

type reading struct {
	ReservoirID string  `json:"reservoir_id"`
	Name        string  `json:"name"`
	Timestamp   string  `json:"timestamp"`
	WaterLevel  float64 `json:"water_level"`
	Unit        string  `json:"unit"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v) //nolint:errcheck // best-effort response
}
