// Copyright Open Responses Gateway Authors
// SPDX-License-Identifier: Apache-2.0

// Package cache holds generated answers keyed by the caller's prompt.
package cache

import (
	"strings"
	"sync"

	gocache "github.com/patrickmn/go-cache"
)

// Entry is a cached answer together with the context it was generated
// from. Entries are replaced or flushed, never mutated.
type Entry struct {
	Context  string `json:"context"`
	Response string `json:"response"`
}

// Cache stores entries by prompt. Keys are whitespace-trimmed; no other
// normalization is applied, so near-duplicate prompts are distinct keys.
type Cache interface {
	Lookup(prompt string) (Entry, bool)
	Store(prompt string, e Entry)
	Flush() int
	Len() int
}

// Memory is an in-process Cache without expiration or eviction. It grows
// without bound until flushed.
type Memory struct {
	// flushMu makes Flush's count exact: stores hold it shared, Flush
	// holds it exclusively.
	flushMu sync.RWMutex
	items   *gocache.Cache
}

// NewMemory returns an empty Memory cache.
func NewMemory() *Memory {
	return &Memory{items: gocache.New(gocache.NoExpiration, 0)}
}

func key(prompt string) string { return strings.TrimSpace(prompt) }

// Lookup returns the entry stored for prompt.
func (m *Memory) Lookup(prompt string) (Entry, bool) {
	v, ok := m.items.Get(key(prompt))
	if !ok {
		return Entry{}, false
	}
	e, ok := v.(Entry)
	return e, ok
}

// Store inserts or replaces the entry for prompt. Concurrent stores for
// the same prompt resolve last-writer-wins.
func (m *Memory) Store(prompt string, e Entry) {
	m.flushMu.RLock()
	defer m.flushMu.RUnlock()
	m.items.Set(key(prompt), e, gocache.NoExpiration)
}

// Flush removes every entry and returns how many were removed.
func (m *Memory) Flush() int {
	m.flushMu.Lock()
	defer m.flushMu.Unlock()
	n := m.items.ItemCount()
	m.items.Flush()
	return n
}

// Len returns the number of cached prompts.
func (m *Memory) Len() int { return m.items.ItemCount() }
