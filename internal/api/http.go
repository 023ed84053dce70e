// SPDX-License-Identifier: MIT

// Package api provides the read-only HTTP surface: the two generated
// artifacts, a status endpoint, health and Prometheus metrics.
package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/4n4n4s/enigma2jellyfin/internal/config"
	"github.com/4n4n4s/enigma2jellyfin/internal/jobs"
	xglog "github.com/4n4n4s/enigma2jellyfin/internal/log"
	"github.com/4n4n4s/enigma2jellyfin/internal/metrics"
	"github.com/4n4n4s/enigma2jellyfin/internal/scheduler"
)

// Server serves the generated artifacts and operational endpoints. It only
// ever reads whatever files currently exist on disk; generation happens
// concurrently in the scheduler.
type Server struct {
	cfg    config.Config
	sched  *scheduler.Scheduler
	status func() *jobs.Status // last successful run, nil before the first
}

// New creates a Server. status may return nil while no run has succeeded.
func New(cfg config.Config, sched *scheduler.Scheduler, status func() *jobs.Status) *Server {
	return &Server{cfg: cfg, sched: sched, status: status}
}

// Router builds the HTTP handler.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.Recoverer)
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(xglog.Middleware())
	r.Use(httprate.LimitByIP(120, time.Minute))

	r.Get("/epg.xml", s.serveArtifact(s.cfg.XMLTVPath(), "application/xml; charset=utf-8"))
	r.Get("/playlist.m3u", s.serveArtifact(s.cfg.M3UPath(), "audio/x-mpegurl; charset=utf-8"))
	r.Get("/api/status", s.handleStatus)
	r.Get("/healthz", handleHealthz)
	r.Handle("/metrics", promhttp.Handler())

	return r
}

// serveArtifact returns a handler for one generated file. Absent files are
// a 404: the first run may not have completed yet, or it aborted and left
// nothing behind.
func (s *Server) serveArtifact(path, contentType string) http.HandlerFunc {
	path = filepath.Clean(path)
	return func(w http.ResponseWriter, r *http.Request) {
		logger := xglog.WithComponentFromContext(r.Context(), "api")

		f, err := os.Open(path)
		if err != nil {
			if os.IsNotExist(err) {
				logger.Info().Str("event", "file_req.not_found").Str("path", path).Msg("artifact not generated yet")
				metrics.RecordFileRequest("not_found")
				http.Error(w, "Not found", http.StatusNotFound)
				return
			}
			logger.Error().Err(err).Str("event", "file_req.error").Str("path", path).Msg("could not open artifact")
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			return
		}
		defer func() {
			if err := f.Close(); err != nil {
				logger.Warn().Err(err).Str("path", path).Msg("failed to close artifact")
			}
		}()

		info, err := f.Stat()
		if err != nil {
			logger.Error().Err(err).Str("event", "file_req.error").Str("path", path).Msg("could not stat artifact")
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			return
		}

		// Weak ETag from modtime and size; artifacts are rewritten in place
		// by atomic rename, so this changes exactly when the content does.
		etag := weakETag(info.ModTime(), info.Size())
		w.Header().Set("ETag", etag)
		if match := r.Header.Get("If-None-Match"); match == etag {
			metrics.RecordFileRequest("not_modified")
			w.WriteHeader(http.StatusNotModified)
			return
		}

		w.Header().Set("Content-Type", contentType)
		metrics.RecordFileRequest("served")
		http.ServeContent(w, r, info.Name(), info.ModTime(), f)
	}
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	type statusResponse struct {
		Bouquet  string        `json:"bouquet"`
		Interval string        `json:"interval"`
		LastRun  scheduler.Run `json:"last_run"`
		Result   *jobs.Status  `json:"result,omitempty"`
	}

	resp := statusResponse{
		Bouquet:  s.cfg.Bouquet,
		Interval: s.cfg.Interval.String(),
		LastRun:  s.sched.Last(),
		Result:   s.status(),
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		logger := xglog.WithComponentFromContext(r.Context(), "api")
		logger.Error().Err(err).Msg("encode status response")
	}
}

func weakETag(modTime time.Time, size int64) string {
	return fmt.Sprintf(`W/"%x-%x"`, modTime.UnixNano(), size)
}

func handleHealthz(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"status":"ok"}`))
}
