// Copyright Open Responses Gateway Authors
// SPDX-License-Identifier: Apache-2.0

// Package stats keeps the process-lifetime request counters.
package stats

import "sync/atomic"

// Snapshot is a point-in-time copy of the counters.
type Snapshot struct {
	TotalRequests          uint64 `json:"total_requests"`
	LookupAttempts         uint64 `json:"lookup_attempts"`
	PreferredDomainMatches uint64 `json:"preferred_domain_matches"`
	CacheHits              uint64 `json:"cache_hits"`
}

// Stats holds monotonic counters. The zero value is ready to use and safe
// for concurrent use.
type Stats struct {
	totalRequests          atomic.Uint64
	lookupAttempts         atomic.Uint64
	preferredDomainMatches atomic.Uint64
	cacheHits              atomic.Uint64
}

func (s *Stats) IncTotalRequests()          { s.totalRequests.Add(1) }
func (s *Stats) IncLookupAttempts()         { s.lookupAttempts.Add(1) }
func (s *Stats) IncPreferredDomainMatches() { s.preferredDomainMatches.Add(1) }
func (s *Stats) IncCacheHits()              { s.cacheHits.Add(1) }

// Snapshot reads every counter. Counters are read individually, so a
// snapshot taken under load may straddle a request.
func (s *Stats) Snapshot() Snapshot {
	return Snapshot{
		TotalRequests:          s.totalRequests.Load(),
		LookupAttempts:         s.lookupAttempts.Load(),
		PreferredDomainMatches: s.preferredDomainMatches.Load(),
		CacheHits:              s.cacheHits.Load(),
	}
}
