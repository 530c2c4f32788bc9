// Copyright Open Responses Gateway Authors
// SPDX-License-Identifier: Apache-2.0

package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/leseb/ragproxy/pkg/snapshot"
)

func init() {
	snapshot.Providers.Register("memory", func(_ context.Context, _ map[string]string) (snapshot.Store, error) {
		return New(), nil
	})
}

// compile-time check
var _ snapshot.Store = (*Store)(nil)

// Store is an in-memory snapshot store.
type Store struct {
	mu    sync.RWMutex
	snaps map[string]*snapshot.Snapshot
}

// New creates a new in-memory snapshot store.
func New() *Store {
	return &Store{snaps: make(map[string]*snapshot.Snapshot)}
}

// Put stores a copy of snap.
func (s *Store) Put(_ context.Context, snap *snapshot.Snapshot) error {
	if err := snapshot.ValidateName(snap.Name); err != nil {
		return err
	}
	cp := *snap
	cp.Data = append([]byte(nil), snap.Data...)
	if cp.UpdatedAt.IsZero() {
		cp.UpdatedAt = time.Now()
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.snaps[snap.Name] = &cp
	return nil
}

// Get returns a copy of the named snapshot.
func (s *Store) Get(_ context.Context, name string) (*snapshot.Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap, ok := s.snaps[name]
	if !ok {
		return nil, fmt.Errorf("snapshot %s: %w", name, snapshot.ErrNotFound)
	}
	cp := *snap
	cp.Data = append([]byte(nil), snap.Data...)
	return &cp, nil
}

// Close is a no-op for the in-memory store.
func (s *Store) Close(_ context.Context) error {
	return nil
}
