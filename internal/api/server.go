// Package api exposes the HTTP interface for the link audit service.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/linkaudit/linkaudit/internal/crawl"
	"github.com/linkaudit/linkaudit/internal/metrics"
)

// CrawlService is the controller surface the server needs.
type CrawlService interface {
	Start(ctx context.Context, seedURL string) (string, error)
	Job(id string) (*crawl.Job, bool)
}

// Server wires HTTP handlers to the crawl controller and stores.
type Server struct {
	router    chi.Router
	service   CrawlService
	dataset   crawl.Dataset
	artifacts crawl.ArtifactStore
	logger    *zap.Logger
}

// NewServer constructs a Server with middleware and routes.
func NewServer(service CrawlService, dataset crawl.Dataset, artifacts crawl.ArtifactStore, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		service:   service,
		dataset:   dataset,
		artifacts: artifacts,
		logger:    logger,
	}

	r := chi.NewRouter()
	r.Use(requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoverMiddleware)

	r.Get("/healthz", s.healthz)
	r.Get("/readyz", s.readyz)
	r.Method(http.MethodGet, "/metrics", metrics.Handler())

	r.Route("/crawl", func(r chi.Router) {
		r.Post("/", s.startCrawl)
		r.Route("/results", func(r chi.Router) {
			r.Get("/{job_id}", s.getResults)
			r.Get("/download/{job_id}", s.downloadResults)
		})
	})

	s.router = r
	return s
}

// Handler returns the router for use with http.Server.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) healthz(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) readyz(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

type startCrawlRequest struct {
	URL string `json:"url"`
}

func (s *Server) startCrawl(w http.ResponseWriter, r *http.Request) {
	var req startCrawlRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if req.URL == "" {
		s.writeError(w, http.StatusBadRequest, "url required")
		return
	}

	jobID, err := s.service.Start(r.Context(), req.URL)
	switch {
	case errors.Is(err, crawl.ErrInvalidDomain):
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	case errors.Is(err, crawl.ErrJobConflict):
		s.writeError(w, http.StatusServiceUnavailable, err.Error())
		return
	case err != nil:
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]string{"key": jobID})
}

func (s *Server) getResults(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "job_id")
	job, ok := s.service.Job(jobID)

	records, err := s.dataset.List(r.Context(), jobID)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, "failed to fetch job records")
		return
	}
	// Failure records can be filed under a bare domain with no job entry;
	// any non-empty partition is readable.
	if !ok && len(records) == 0 {
		s.writeError(w, http.StatusNotFound, "job not found")
		return
	}
	if records == nil {
		records = []crawl.PageLog{}
	}
	payload := map[string]any{"records": records}
	if ok {
		payload["job"] = job
	}
	s.writeJSON(w, http.StatusOK, payload)
}

func (s *Server) downloadResults(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "job_id")
	rc, err := s.artifacts.Open(r.Context(), jobID, jobID+".csv")
	if err != nil {
		s.writeError(w, http.StatusNotFound, "export not found")
		return
	}
	defer func() {
		if cerr := rc.Close(); cerr != nil {
			s.logger.Warn("closing export reader", zap.Error(cerr))
		}
	}()

	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", jobID+".csv"))
	w.WriteHeader(http.StatusOK)
	if _, err := io.Copy(w, rc); err != nil {
		s.logger.Warn("streaming export failed", zap.String("job_id", jobID), zap.Error(err))
	}
}

func requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqID := uuid.NewString()
		ctx := context.WithValue(r.Context(), requestIDKey{}, reqID)
		w.Header().Set("X-Request-ID", reqID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := &responseWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(ww, r)
		s.logger.Info("request completed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.status),
			zap.Int64("duration_ms", time.Since(start).Milliseconds()),
		)
	})
}

func (s *Server) recoverMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				s.logger.Error("panic recovered", zap.Any("panic", rec))
				s.writeError(w, http.StatusInternalServerError, "internal server error")
			}
		}()
		next.ServeHTTP(w, r)
	})
}

type responseWriter struct {
	http.ResponseWriter
	status int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.status = code
	rw.ResponseWriter.WriteHeader(code)
}

type requestIDKey struct{}

func (s *Server) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Error("write JSON failed", zap.Error(err))
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, msg string) {
	s.writeJSON(w, status, map[string]string{"error": msg})
}
