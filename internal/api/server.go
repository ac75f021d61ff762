// Package api exposes the HTTP interface for the acquisition service.
package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/tidewire/newsharvest/internal/metrics"
	"github.com/tidewire/newsharvest/internal/pipeline"
)

// Scheduler is the control surface the HTTP layer drives.
type Scheduler interface {
	TriggerNow(source string) (pipeline.Job, error)
	Pause(id string) (pipeline.Job, error)
	Resume(id string) (pipeline.Job, error)
	Job(id string) (pipeline.Job, error)
	Jobs() []pipeline.Job
	Health(ctx context.Context) pipeline.HealthReport
}

// Config controls the HTTP server surface.
type Config struct {
	APIKey      string
	AuthEnabled bool
}

// Server wires HTTP handlers to the scheduler and document store.
type Server struct {
	router    chi.Router
	scheduler Scheduler
	docs      pipeline.DocumentStore
	logger    *zap.Logger
	cfg       Config
}

// NewServer constructs a Server with middleware and routes.
func NewServer(scheduler Scheduler, docs pipeline.DocumentStore, cfg Config, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		scheduler: scheduler,
		docs:      docs,
		logger:    logger,
		cfg:       cfg,
	}

	r := chi.NewRouter()
	r.Use(requestIDMiddleware)
	r.Use(loggingMiddleware(logger))
	r.Use(recoverMiddleware(logger))
	r.Use(timeoutMiddleware(60 * time.Second))

	r.Get("/healthz", s.healthz)
	r.Get("/readyz", s.readyz)
	r.Method(http.MethodGet, "/metrics", metrics.Handler())

	r.Route("/v1", func(r chi.Router) {
		if cfg.AuthEnabled {
			r.Use(apiKeyMiddleware(cfg.APIKey))
		}
		r.Get("/health", s.storeHealth)
		r.Post("/sources/{source}/trigger", s.triggerSource)
		r.Get("/documents", s.listDocuments)
		r.Route("/jobs", func(r chi.Router) {
			r.Get("/", s.listJobs)
			r.Route("/{job_id}", func(r chi.Router) {
				r.Get("/", s.getJob)
				r.Post("/pause", s.pauseJob)
				r.Post("/resume", s.resumeJob)
			})
		})
	})

	s.router = r
	return s
}

// Handler returns the Router for use with http.Server.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) readyz(w http.ResponseWriter, r *http.Request) {
	health := s.scheduler.Health(r.Context())
	if !health.ConnectionValid {
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{"status": "not ready", "health": health})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

func (s *Server) storeHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.scheduler.Health(r.Context()))
}

func (s *Server) triggerSource(w http.ResponseWriter, r *http.Request) {
	source := chi.URLParam(r, "source")
	job, err := s.scheduler.TriggerNow(source)
	if errors.Is(err, pipeline.ErrJobPaused) {
		writeError(w, http.StatusConflict, err.Error())
		return
	}
	if err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]any{"job": job})
}

func (s *Server) listJobs(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"jobs": s.scheduler.Jobs()})
}

func (s *Server) getJob(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "job_id")
	job, err := s.scheduler.Job(jobID)
	if err != nil {
		writeError(w, http.StatusNotFound, "job not found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"job": job})
}

func (s *Server) pauseJob(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "job_id")
	job, err := s.scheduler.Pause(jobID)
	if err != nil {
		writeError(w, http.StatusNotFound, "job not found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"job": job})
}

func (s *Server) resumeJob(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "job_id")
	job, err := s.scheduler.Resume(jobID)
	if err != nil {
		writeError(w, http.StatusNotFound, "job not found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"job": job})
}

func (s *Server) listDocuments(w http.ResponseWriter, r *http.Request) {
	source := r.URL.Query().Get("source")
	if source == "" {
		writeError(w, http.StatusBadRequest, "source query parameter is required")
		return
	}
	limit := 50
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 || parsed > 500 {
			writeError(w, http.StatusBadRequest, "limit must be between 1 and 500")
			return
		}
		limit = parsed
	}
	docs, err := s.docs.ListRecent(r.Context(), source, limit)
	if err != nil {
		s.logger.Error("list documents failed", zap.String("source", source), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to list documents")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"documents": docs})
}
