// Copyright Open Responses Gateway Authors
// SPDX-License-Identifier: Apache-2.0

package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"

	"github.com/leseb/ragproxy/pkg/journal"
	"github.com/leseb/ragproxy/pkg/journal/sqlstore"
)

func init() {
	journal.Providers.Register("sqlite", func(ctx context.Context, params map[string]string) (journal.Store, error) {
		dsn := params["dsn"]
		if dsn == "" {
			dsn = "ragproxy-journal.db"
		}
		return New(ctx, dsn)
	})
}

var dialect = sqlstore.Dialect{
	Name: "sqlite",
	Schema: []string{
		`CREATE TABLE IF NOT EXISTS journal (
			seq INTEGER PRIMARY KEY AUTOINCREMENT,
			id TEXT NOT NULL UNIQUE,
			prompt TEXT NOT NULL,
			model TEXT NOT NULL DEFAULT '',
			cache_hit BOOLEAN NOT NULL,
			result_count INTEGER NOT NULL,
			preferred_match BOOLEAN NOT NULL,
			degraded TEXT NOT NULL DEFAULT 'null',
			response_chars INTEGER NOT NULL,
			duration_ms INTEGER NOT NULL,
			created_at DATETIME NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_journal_created ON journal(created_at)`,
	},
}

// New opens (or creates) a SQLite journal. Use ":memory:" for an
// ephemeral database.
func New(ctx context.Context, dsn string) (*sqlstore.Store, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("sqlite open: %w", err)
	}
	// A single connection keeps ":memory:" databases shared and avoids
	// SQLITE_BUSY between writers.
	db.SetMaxOpenConns(1)
	return sqlstore.Open(ctx, db, dialect)
}
