// Copyright Open Responses Gateway Authors
// SPDX-License-Identifier: Apache-2.0

package memory

import (
	"context"
	"fmt"
	"strconv"
	"sync"

	"github.com/leseb/ragproxy/pkg/journal"
)

// DefaultMaxRecords bounds the ring buffer when max_records is unset.
const DefaultMaxRecords = 1000

func init() {
	journal.Providers.Register("memory", func(_ context.Context, params map[string]string) (journal.Store, error) {
		max := DefaultMaxRecords
		if v := params["max_records"]; v != "" {
			n, err := strconv.Atoi(v)
			if err != nil || n <= 0 {
				return nil, fmt.Errorf("invalid max_records %q", v)
			}
			max = n
		}
		return New(max), nil
	})
}

// compile-time check
var _ journal.Store = (*Store)(nil)

// Store keeps the most recent records in a fixed-size ring buffer.
type Store struct {
	mu    sync.Mutex
	buf   []journal.Record
	next  int
	count int
}

// New creates a Store holding at most maxRecords records.
func New(maxRecords int) *Store {
	if maxRecords <= 0 {
		maxRecords = DefaultMaxRecords
	}
	return &Store{buf: make([]journal.Record, maxRecords)}
}

// Append stores a copy of r, evicting the oldest record when full.
func (s *Store) Append(_ context.Context, r *journal.Record) error {
	journal.Prepare(r)
	cp := *r
	cp.Degraded = append([]string(nil), r.Degraded...)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.buf[s.next] = cp
	s.next = (s.next + 1) % len(s.buf)
	if s.count < len(s.buf) {
		s.count++
	}
	return nil
}

// Recent returns up to limit records, newest first.
func (s *Store) Recent(_ context.Context, limit int) ([]*journal.Record, error) {
	limit = journal.ClampLimit(limit)

	s.mu.Lock()
	defer s.mu.Unlock()

	n := min(limit, s.count)
	out := make([]*journal.Record, 0, n)
	for i := 1; i <= n; i++ {
		idx := (s.next - i + len(s.buf)) % len(s.buf)
		cp := s.buf[idx]
		cp.Degraded = append([]string(nil), cp.Degraded...)
		out = append(out, &cp)
	}
	return out, nil
}

// Close is a no-op for the in-memory store.
func (s *Store) Close() error {
	return nil
}
