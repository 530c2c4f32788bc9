// Copyright Open Responses Gateway Authors
// SPDX-License-Identifier: Apache-2.0

package http

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/leseb/ragproxy/pkg/core/pipeline"
	"github.com/leseb/ragproxy/pkg/core/schema"
)

// handleGenerate handles POST /api/generate
func (h *Handler) handleGenerate(w http.ResponseWriter, r *http.Request) {
	var req schema.GenerateRequest
	err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req)
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		h.logger.Warn("Request body too large", "limit", tooLarge.Limit)
		h.writeError(w, http.StatusRequestEntityTooLarge, "Request body too large")
		return
	}
	if err != nil && !errors.Is(err, io.EOF) {
		h.logger.Error("Failed to parse request", "error", err)
		h.writeError(w, http.StatusBadRequest, "Failed to parse request body")
		return
	}

	res, err := h.pipeline.Handle(r.Context(), req)
	if errors.Is(err, pipeline.ErrEmptyPrompt) {
		h.writeError(w, http.StatusBadRequest, "Prompt missing")
		return
	}
	if err != nil {
		h.logger.Error("Failed to process request", "error", err)
		h.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	h.writeJSON(w, http.StatusOK, schema.GenerateResponse{Context: res.Context, Response: res.Response})

	h.logger.Info("Response sent",
		"cache_hit", res.CacheHit,
		"results", len(res.Results),
		"degraded", res.Degraded())
}

// handleStats handles GET /stats
func (h *Handler) handleStats(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, h.pipeline.Stats())
}

// handleFlush handles POST /flush
func (h *Handler) handleFlush(w http.ResponseWriter, r *http.Request) {
	n := h.pipeline.Flush()
	h.writeJSON(w, http.StatusOK, schema.FlushResponse{Status: "flushed", Entries: n})
}
