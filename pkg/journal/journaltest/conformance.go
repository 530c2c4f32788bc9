// Copyright Open Responses Gateway Authors
// SPDX-License-Identifier: Apache-2.0

// Package journaltest provides a shared conformance test suite for
// journal.Store implementations. Each backend should call
// RunConformanceTests from its own _test.go file.
package journaltest

import (
	"context"
	"fmt"
	"slices"
	"testing"
	"time"

	"github.com/leseb/ragproxy/pkg/journal"
)

// RunConformanceTests exercises a Store implementation against the shared
// contract. The newStore function is called once per sub-test to provide an
// isolated store instance.
func RunConformanceTests(t *testing.T, newStore func(t *testing.T) journal.Store) {
	t.Helper()

	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	t.Run("AppendAndRecent", func(t *testing.T) {
		store := newStore(t)
		defer store.Close()
		ctx := context.Background()

		r := &journal.Record{
			Prompt:         "best tank spec",
			Model:          "llama3",
			ResultCount:    3,
			PreferredMatch: true,
			Degraded:       []string{"generating"},
			ResponseChars:  42,
			DurationMS:     1500,
			CreatedAt:      base,
		}
		if err := store.Append(ctx, r); err != nil {
			t.Fatalf("Append: %v", err)
		}
		if r.ID == "" {
			t.Fatal("Append should assign an ID")
		}

		got, err := store.Recent(ctx, 10)
		if err != nil {
			t.Fatalf("Recent: %v", err)
		}
		if len(got) != 1 {
			t.Fatalf("expected 1 record, got %d", len(got))
		}
		g := got[0]
		if g.ID != r.ID || g.Prompt != r.Prompt || g.Model != r.Model || g.CacheHit ||
			g.ResultCount != 3 || !g.PreferredMatch || g.ResponseChars != 42 || g.DurationMS != 1500 {
			t.Errorf("Recent returned unexpected record: %+v", g)
		}
		if !slices.Equal(g.Degraded, []string{"generating"}) {
			t.Errorf("Degraded = %v", g.Degraded)
		}
		if !g.CreatedAt.Equal(base) {
			t.Errorf("CreatedAt = %v, want %v", g.CreatedAt, base)
		}
	})

	t.Run("RecentNewestFirstAndLimited", func(t *testing.T) {
		store := newStore(t)
		defer store.Close()
		ctx := context.Background()

		for i := 0; i < 5; i++ {
			err := store.Append(ctx, &journal.Record{
				Prompt:    fmt.Sprintf("prompt-%d", i),
				CacheHit:  i%2 == 0,
				CreatedAt: base.Add(time.Duration(i) * time.Second),
			})
			if err != nil {
				t.Fatalf("Append: %v", err)
			}
		}

		got, err := store.Recent(ctx, 2)
		if err != nil {
			t.Fatalf("Recent: %v", err)
		}
		if len(got) != 2 {
			t.Fatalf("expected 2 records, got %d", len(got))
		}
		if got[0].Prompt != "prompt-4" || got[1].Prompt != "prompt-3" {
			t.Errorf("expected newest first, got %q, %q", got[0].Prompt, got[1].Prompt)
		}
		if !got[0].CacheHit || got[1].CacheHit {
			t.Errorf("cache_hit not preserved: %+v %+v", got[0], got[1])
		}
		if len(got[1].Degraded) != 0 {
			t.Errorf("expected no degraded stages, got %v", got[1].Degraded)
		}
	})

	t.Run("RecentEmpty", func(t *testing.T) {
		store := newStore(t)
		defer store.Close()

		got, err := store.Recent(context.Background(), 0)
		if err != nil {
			t.Fatalf("Recent: %v", err)
		}
		if len(got) != 0 {
			t.Errorf("expected no records, got %d", len(got))
		}
	})

	t.Run("PreservesCallerIDs", func(t *testing.T) {
		store := newStore(t)
		defer store.Close()
		ctx := context.Background()

		if err := store.Append(ctx, &journal.Record{ID: "req_fixed", Prompt: "p", CreatedAt: base}); err != nil {
			t.Fatalf("Append: %v", err)
		}
		got, err := store.Recent(ctx, 1)
		if err != nil {
			t.Fatalf("Recent: %v", err)
		}
		if len(got) != 1 || got[0].ID != "req_fixed" {
			t.Errorf("expected caller-provided ID, got %+v", got)
		}
	})
}
