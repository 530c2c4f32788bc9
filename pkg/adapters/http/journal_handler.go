// Copyright Open Responses Gateway Authors
// SPDX-License-Identifier: Apache-2.0

package http

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/leseb/ragproxy/pkg/journal"
	"github.com/leseb/ragproxy/pkg/snapshot"
)

type journalList struct {
	Object string            `json:"object"`
	Data   []*journal.Record `json:"data"`
}

// handleJournal handles GET /v1/journal
func (h *Handler) handleJournal(w http.ResponseWriter, r *http.Request) {
	limit := journal.DefaultRecentLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			h.writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = n
	}

	records, err := h.pipeline.RecentRequests(r.Context(), limit)
	if err != nil {
		h.logger.Error("Failed to read journal", "error", err)
		h.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if records == nil {
		records = []*journal.Record{}
	}
	h.writeJSON(w, http.StatusOK, journalList{Object: "list", Data: records})
}

// handleLastSearch handles GET /debug/last-search
func (h *Handler) handleLastSearch(w http.ResponseWriter, r *http.Request) {
	snap, err := h.pipeline.LastSearch(r.Context())
	if errors.Is(err, snapshot.ErrNotFound) {
		h.writeError(w, http.StatusNotFound, "No search page recorded")
		return
	}
	if err != nil {
		h.logger.Error("Failed to read search snapshot", "error", err)
		h.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	contentType := snap.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	w.Header().Set("Content-Type", contentType)
	if !snap.UpdatedAt.IsZero() {
		w.Header().Set("Last-Modified", snap.UpdatedAt.UTC().Format(http.TimeFormat))
	}
	w.WriteHeader(http.StatusOK)
	w.Write(snap.Data)
}
