package server

import (
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	json "github.com/goccy/go-json"

	"github.com/promptkit/promptkit/internal/export"
	"github.com/promptkit/promptkit/internal/metrics"
	"github.com/promptkit/promptkit/pkg/models"
)

// startSessionRequest is the POST /api/sessions body.
type startSessionRequest struct {
	Prompt      string `json:"prompt"`
	SessionType string `json:"session_type,omitempty"`
	Format      string `json:"format,omitempty"`
}

// submitAnswerRequest is the POST /api/sessions/{id}/answers body.
type submitAnswerRequest struct {
	Answer string `json:"answer"`
}

// exportRequest is the POST /api/sessions/{id}/export body.
type exportRequest struct {
	Format string `json:"format"`
}

func (s *Service) handleStartSession(w http.ResponseWriter, r *http.Request) {
	var req startSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	id, err := s.manager.StartSession(r.Context(), req.Prompt,
		models.SessionType(req.SessionType), models.ExportFormat(req.Format))
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]string{"session_id": id})
}

func (s *Service) handleSubmitAnswer(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")

	var req submitAnswerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	if err := s.manager.SubmitAnswer(r.Context(), sessionID, req.Answer); err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Service) handleGetSession(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")

	sess, err := s.manager.GetSession(r.Context(), sessionID)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, sess)
}

func (s *Service) handleGetQuestions(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")

	questions, err := s.manager.GetQuestions(r.Context(), sessionID)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"questions": questions})
}

func (s *Service) handleExport(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")

	var req exportRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	format := models.ExportFormat(req.Format)
	if format == "" {
		format = models.FormatMarkdown
	}
	if !format.Valid() {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": fmt.Sprintf("invalid export format %q", req.Format)})
		return
	}

	sess, err := s.manager.GetSession(r.Context(), sessionID)
	if err != nil {
		writeError(w, err)
		return
	}
	questions, err := s.manager.GetQuestions(r.Context(), sessionID)
	if err != nil {
		writeError(w, err)
		return
	}

	content, err := export.Project(sess, questions, format)
	if err != nil {
		writeError(w, err)
		return
	}

	if err := s.exports.Upsert(r.Context(), sessionID, string(format), content); err != nil {
		writeError(w, err)
		return
	}

	metrics.ExportProjected(r.Context())
	writeJSON(w, http.StatusOK, map[string]string{
		"format":  string(format),
		"content": content,
	})
}

func (s *Service) handleListCompleted(w http.ResponseWriter, r *http.Request) {
	completed, err := s.manager.ListCompleted(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"sessions": completed})
}

func (s *Service) handleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.manager.Stats(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, stats)
}

// handleEvents streams session lifecycle updates over SSE until the
// client disconnects.
func (s *Service) handleEvents(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	client, err := s.broadcaster.AddClient(w)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	select {
	case <-r.Context().Done():
		s.broadcaster.RemoveClient(client)
	case <-client.Done:
	}
}

func (s *Service) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":      "ok",
		"version":     s.version,
		"uptime":      time.Since(s.startTime).String(),
		"sse_clients": s.broadcaster.ClientCount(),
	})
}
