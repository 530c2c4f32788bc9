// Copyright Open Responses Gateway Authors
// SPDX-License-Identifier: Apache-2.0

// Package snapshottest provides a shared conformance test suite for
// snapshot.Store implementations. Each backend should call
// RunConformanceTests from its own _test.go file.
package snapshottest

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/leseb/ragproxy/pkg/snapshot"
)

// RunConformanceTests exercises a Store implementation against the shared
// contract. The newStore function is called once per sub-test to provide an
// isolated store instance.
func RunConformanceTests(t *testing.T, newStore func(t *testing.T) snapshot.Store) {
	t.Helper()

	t.Run("PutAndGet", func(t *testing.T) {
		store := newStore(t)
		defer store.Close(context.Background())
		ctx := context.Background()

		data := []byte("<html><body>results</body></html>")
		if err := store.Put(ctx, &snapshot.Snapshot{Name: "last_search.html", ContentType: "text/html", Data: data}); err != nil {
			t.Fatalf("Put: %v", err)
		}

		got, err := store.Get(ctx, "last_search.html")
		if err != nil {
			t.Fatalf("Get: %v", err)
		}
		if !bytes.Equal(got.Data, data) {
			t.Errorf("Data = %q, want %q", got.Data, data)
		}
		if got.Name != "last_search.html" {
			t.Errorf("Name = %q", got.Name)
		}
		if got.ContentType == "" {
			t.Error("expected a content type")
		}
		if got.UpdatedAt.IsZero() {
			t.Error("expected UpdatedAt to be set")
		}
	})

	t.Run("PutOverwrites", func(t *testing.T) {
		store := newStore(t)
		defer store.Close(context.Background())
		ctx := context.Background()

		for _, body := range []string{"first", "second"} {
			if err := store.Put(ctx, &snapshot.Snapshot{Name: "page", ContentType: "text/plain", Data: []byte(body)}); err != nil {
				t.Fatalf("Put: %v", err)
			}
		}
		got, err := store.Get(ctx, "page")
		if err != nil {
			t.Fatalf("Get: %v", err)
		}
		if string(got.Data) != "second" {
			t.Errorf("Data = %q, want latest write", got.Data)
		}
	})

	t.Run("GetNotFound", func(t *testing.T) {
		store := newStore(t)
		defer store.Close(context.Background())

		_, err := store.Get(context.Background(), "missing")
		if !errors.Is(err, snapshot.ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
	})

	t.Run("InvalidName", func(t *testing.T) {
		store := newStore(t)
		defer store.Close(context.Background())

		for _, name := range []string{"", "..", "a/b", `a\b`} {
			err := store.Put(context.Background(), &snapshot.Snapshot{Name: name, Data: []byte("x")})
			if !errors.Is(err, snapshot.ErrInvalidName) {
				t.Errorf("Put(%q): expected ErrInvalidName, got %v", name, err)
			}
		}
	})

	t.Run("ReturnedDataIsIsolated", func(t *testing.T) {
		store := newStore(t)
		defer store.Close(context.Background())
		ctx := context.Background()

		data := []byte("original")
		store.Put(ctx, &snapshot.Snapshot{Name: "iso", ContentType: "text/plain", Data: data})
		data[0] = 'X'

		got, err := store.Get(ctx, "iso")
		if err != nil {
			t.Fatalf("Get: %v", err)
		}
		if string(got.Data) != "original" {
			t.Errorf("stored data changed through caller's slice: %q", got.Data)
		}
	})

	t.Run("ConcurrentPutSameName", func(t *testing.T) {
		store := newStore(t)
		defer store.Close(context.Background())
		ctx := context.Background()

		const writers = 8
		for round := range 10 {
			var wg sync.WaitGroup
			errs := make(chan error, writers)
			for i := range writers {
				wg.Go(func() {
					body := fmt.Sprintf("round %d writer %d", round, i)
					errs <- store.Put(ctx, &snapshot.Snapshot{Name: "last_search.html", ContentType: "text/html", Data: []byte(body)})
				})
			}
			wg.Wait()
			close(errs)
			for err := range errs {
				if err != nil {
					t.Fatalf("round %d: Put: %v", round, err)
				}
			}

			got, err := store.Get(ctx, "last_search.html")
			if err != nil {
				t.Fatalf("round %d: Get: %v", round, err)
			}
			if !bytes.HasPrefix(got.Data, []byte(fmt.Sprintf("round %d writer ", round))) {
				t.Errorf("round %d: Data = %q, want a write from this round", round, got.Data)
			}
		}
	})
}
