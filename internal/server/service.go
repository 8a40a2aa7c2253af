// Package server provides the HTTP surface for promptkit: the
// transactional commands, the read projections, and the SSE stream.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	json "github.com/goccy/go-json"
	"github.com/rs/zerolog/log"

	"github.com/promptkit/promptkit/internal/config"
	"github.com/promptkit/promptkit/internal/db"
	"github.com/promptkit/promptkit/internal/export"
	"github.com/promptkit/promptkit/internal/server/sse"
	"github.com/promptkit/promptkit/internal/session"
)

// Service is the promptkit HTTP service.
type Service struct {
	version     string
	config      *config.Config
	manager     *session.Manager
	exports     *db.ExportStore
	broadcaster *sse.Broadcaster
	router      chi.Router
	httpServer  *http.Server
	startTime   time.Time
}

// NewService creates the HTTP service and wires its routes.
func NewService(version string, cfg *config.Config, manager *session.Manager, exports *db.ExportStore, broadcaster *sse.Broadcaster) *Service {
	svc := &Service{
		version:     version,
		config:      cfg,
		manager:     manager,
		exports:     exports,
		broadcaster: broadcaster,
		router:      chi.NewRouter(),
		startTime:   time.Now(),
	}
	svc.setupRoutes()
	return svc
}

// setupRoutes registers all HTTP routes.
func (s *Service) setupRoutes() {
	s.router.Use(middleware.Recoverer)

	s.router.Route("/api", func(r chi.Router) {
		r.Get("/health", s.handleHealth)
		r.Get("/stats", s.handleStats)
		r.Get("/events", s.handleEvents)

		r.Route("/sessions", func(r chi.Router) {
			r.Post("/", s.handleStartSession)
			r.Get("/completed", s.handleListCompleted)
			r.Get("/{sessionID}", s.handleGetSession)
			r.Get("/{sessionID}/questions", s.handleGetQuestions)
			r.Post("/{sessionID}/answers", s.handleSubmitAnswer)
			r.Post("/{sessionID}/export", s.handleExport)
		})
	})
}

// Start begins serving HTTP on the configured port.
func (s *Service) Start() error {
	addr := fmt.Sprintf(":%d", s.config.Port)
	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	log.Info().Str("addr", addr).Str("version", s.version).Msg("HTTP server listening")
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown gracefully stops the HTTP server.
func (s *Service) Shutdown(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}

// Router exposes the router for tests.
func (s *Service) Router() chi.Router {
	return s.router
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("Failed to encode response")
	}
}

// writeError maps command errors onto HTTP statuses.
func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, session.ErrSessionNotFound),
		errors.Is(err, session.ErrQuestionNotFound):
		status = http.StatusNotFound
	case errors.Is(err, export.ErrNotReady):
		status = http.StatusConflict
	case errors.Is(err, session.ErrEmptyInput),
		errors.Is(err, session.ErrInvalidArgument):
		status = http.StatusBadRequest
	}

	if status == http.StatusInternalServerError {
		log.Error().Err(err).Msg("Request failed")
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
