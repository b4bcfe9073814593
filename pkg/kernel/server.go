// Package kernel is the HTTP service boundary: it validates requests,
// schedules background jobs, and returns immediately. Job-internal
// failures never surface here — they reach the caller via the webhook.
package kernel

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/framehook/captiond/internal/config"
	"github.com/framehook/captiond/internal/core/domain"
	"github.com/framehook/captiond/internal/core/services"
)

const (
	serviceName    = "Video Caption API"
	serviceVersion = "2.0.0"
)

type Server struct {
	logger    *slog.Logger
	scheduler *services.JobScheduler
	orch      *services.Orchestrator
	engine    interface{ Ready() bool }
	cfg       *config.Config
}

func NewServer(logger *slog.Logger, scheduler *services.JobScheduler, orch *services.Orchestrator, engine interface{ Ready() bool }, cfg *config.Config) *Server {
	return &Server{
		logger:    logger,
		scheduler: scheduler,
		orch:      orch,
		engine:    engine,
		cfg:       cfg,
	}
}

// Handler returns the http.Handler for the server.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", s.handleRoot)
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /config", s.handleConfig)
	mux.HandleFunc("POST /caption", s.handleCaption)
	mux.HandleFunc("POST /chat", s.handleChat)
	return mux
}

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"service": serviceName,
		"version": serviceVersion,
		"model":   s.cfg.ModelID,
		"status":  "running",
	})
}

// handleHealth reports each capability individually; a missing vision
// model degrades the status instead of failing the probe.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	loaded := s.engine.Ready()
	status := "healthy"
	if !loaded {
		status = "degraded"
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":            status,
		"model_loaded":      loaded,
		"llm_available":     s.orch.ChatAvailable(),
		"whisper_available": s.orch.TranscriberAvailable(),
	})
}

func (s *Server) handleConfig(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.cfg.Snapshot())
}

// handleCaption accepts a JSON body or video_url/job_id query params and
// schedules the caption pipeline. The response says "accepted", nothing
// more: all execution-time failure detail goes to the webhook.
func (s *Server) handleCaption(w http.ResponseWriter, r *http.Request) {
	var job domain.CaptionJob
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&job); err != nil {
			http.Error(w, "invalid request body: "+err.Error(), http.StatusBadRequest)
			return
		}
	} else {
		job.VideoURL = r.URL.Query().Get("video_url")
		job.JobID = r.URL.Query().Get("job_id")
	}

	if job.VideoURL == "" {
		http.Error(w, "video_url required", http.StatusBadRequest)
		return
	}

	task := services.Task{
		ID:   job.JobID,
		Kind: "caption",
		Run: func(ctx context.Context) {
			s.orch.RunCaptionJob(ctx, job)
		},
	}
	if err := s.scheduler.Submit(task); err != nil {
		s.submitError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "accepted",
		"job_id":    nullable(job.JobID),
		"video_url": job.VideoURL,
		"message":   "Processing started",
	})
}

// handleChat accepts a JSON body or job_id+message query params and
// schedules the chat pipeline.
func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var job domain.ChatJob
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&job); err != nil {
			http.Error(w, "invalid request body: "+err.Error(), http.StatusBadRequest)
			return
		}
	} else {
		job.JobID = r.URL.Query().Get("job_id")
		job.Message = r.URL.Query().Get("message")
	}

	if job.JobID == "" || job.Message == "" {
		http.Error(w, "Provide JSON body or job_id + message params", http.StatusBadRequest)
		return
	}

	task := services.Task{
		ID:   job.JobID,
		Kind: "chat",
		Run: func(ctx context.Context) {
			s.orch.RunChatJob(ctx, job)
		},
	}
	if err := s.scheduler.Submit(task); err != nil {
		s.submitError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "accepted",
		"job_id":  job.JobID,
		"message": "Processing started",
	})
}

func (s *Server) submitError(w http.ResponseWriter, err error) {
	if errors.Is(err, services.ErrQueueFull) {
		http.Error(w, err.Error(), http.StatusServiceUnavailable)
		return
	}
	s.logger.Error("failed to schedule job", "error", err)
	http.Error(w, err.Error(), http.StatusInternalServerError)
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}
