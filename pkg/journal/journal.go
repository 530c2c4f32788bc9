// Copyright Open Responses Gateway Authors
// SPDX-License-Identifier: Apache-2.0

// Package journal records an audit trail of handled generate requests.
// The journal is write-mostly; it never serves cached answers.
package journal

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/leseb/ragproxy/pkg/provider"
)

// Providers is the registry of journal backend implementations.
// Import implementation packages with blank imports to register them:
//
//	import _ "github.com/leseb/ragproxy/pkg/journal/memory"
//	import _ "github.com/leseb/ragproxy/pkg/journal/sqlite"
//	import _ "github.com/leseb/ragproxy/pkg/journal/postgres"
var Providers = provider.NewRegistry[Store]("journal")

const (
	// DefaultRecentLimit applies when Recent is called with a
	// non-positive limit.
	DefaultRecentLimit = 20
	// MaxRecentLimit caps Recent.
	MaxRecentLimit = 100
)

// Record describes one handled request.
type Record struct {
	ID             string    `json:"id"`
	Prompt         string    `json:"prompt"`
	Model          string    `json:"model,omitempty"`
	CacheHit       bool      `json:"cache_hit"`
	ResultCount    int       `json:"result_count"`
	PreferredMatch bool      `json:"preferred_match"`
	Degraded       []string  `json:"degraded,omitempty"`
	ResponseChars  int       `json:"response_chars"`
	DurationMS     int64     `json:"duration_ms"`
	CreatedAt      time.Time `json:"created_at"`
}

// Store defines the interface for pluggable journal backends.
type Store interface {
	// Append persists r, filling ID and CreatedAt when unset.
	Append(ctx context.Context, r *Record) error
	// Recent returns up to limit records, newest first.
	Recent(ctx context.Context, limit int) ([]*Record, error)
	Close() error
}

// Prepare fills a missing ID and CreatedAt.
func Prepare(r *Record) {
	if r.ID == "" {
		r.ID = "req_" + uuid.NewString()
	}
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now().UTC()
	}
}

// ClampLimit maps a requested limit onto [1, MaxRecentLimit].
func ClampLimit(limit int) int {
	switch {
	case limit <= 0:
		return DefaultRecentLimit
	case limit > MaxRecentLimit:
		return MaxRecentLimit
	default:
		return limit
	}
}
