// Copyright Open Responses Gateway Authors
// SPDX-License-Identifier: Apache-2.0

package postgres_test

import (
	"context"
	"os"
	"testing"

	"github.com/leseb/ragproxy/pkg/journal"
	"github.com/leseb/ragproxy/pkg/journal/journaltest"
	"github.com/leseb/ragproxy/pkg/journal/postgres"
)

func TestPostgresConformance(t *testing.T) {
	dsn := os.Getenv("JOURNAL_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("Skipping postgres conformance tests: JOURNAL_POSTGRES_DSN must be set")
	}

	journaltest.RunConformanceTests(t, func(t *testing.T) journal.Store {
		store, err := postgres.New(context.Background(), dsn)
		if err != nil {
			t.Fatalf("postgres.New: %v", err)
		}
		if _, err := store.DB().ExecContext(context.Background(), "TRUNCATE journal"); err != nil {
			t.Fatalf("truncate: %v", err)
		}
		return store
	})
}

func TestPostgres_RequiresDSN(t *testing.T) {
	if _, err := journal.Providers.New(context.Background(), "postgres", map[string]string{}); err == nil {
		t.Fatal("expected error without dsn")
	}
}
