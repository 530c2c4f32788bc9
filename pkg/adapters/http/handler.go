// Copyright Open Responses Gateway Authors
// SPDX-License-Identifier: Apache-2.0

package http

import (
	"encoding/json"
	"net/http"

	"github.com/leseb/ragproxy/pkg/core/pipeline"
	"github.com/leseb/ragproxy/pkg/core/schema"
	"github.com/leseb/ragproxy/pkg/observability/logging"
	"github.com/leseb/ragproxy/pkg/observability/metrics"
)

// maxBodyBytes bounds inbound request bodies.
const maxBodyBytes = 1 << 20

// Handler implements the HTTP adapter
type Handler struct {
	pipeline *pipeline.Pipeline
	metrics  *metrics.Metrics
	logger   *logging.Logger
	mux      *http.ServeMux
}

// New creates a new HTTP handler. A nil metrics disables /metrics.
func New(p *pipeline.Pipeline, m *metrics.Metrics, logger *logging.Logger) *Handler {
	if logger == nil {
		logger = logging.Discard()
	}
	h := &Handler{
		pipeline: p,
		metrics:  m,
		logger:   logger,
		mux:      http.NewServeMux(),
	}

	// Register routes
	h.mux.HandleFunc("POST /api/generate", h.handleGenerate)
	h.mux.HandleFunc("GET /stats", h.handleStats)
	h.mux.HandleFunc("POST /flush", h.handleFlush)

	h.mux.HandleFunc("GET /ping", h.handlePing)
	h.mux.HandleFunc("GET /health", h.handleHealth)
	h.mux.Handle("GET /metrics", m.Handler())

	h.mux.HandleFunc("GET /v1/journal", h.handleJournal)
	h.mux.HandleFunc("GET /debug/last-search", h.handleLastSearch)
	return h
}

// ServeHTTP implements http.Handler
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	// Log request
	h.logger.Info("Request",
		"method", r.Method,
		"path", r.URL.Path,
		"remote_addr", r.RemoteAddr)

	// Serve
	h.mux.ServeHTTP(w, r)
}

// handlePing handles GET /ping
func (h *Handler) handlePing(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, schema.StatusResponse{Status: "ok"})
}

// handleHealth handles health check requests
func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, schema.StatusResponse{
		Status:     "healthy",
		Generation: h.pipeline.BackendStatus(),
	})
}

// writeJSON writes v as the response body
func (h *Handler) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.logger.Warn("Failed to write response", "error", err)
	}
}

// writeError writes an error response
func (h *Handler) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, schema.ErrorResponse{Error: message})
}
