// Copyright Open Responses Gateway Authors
// SPDX-License-Identifier: Apache-2.0

// Package sqlstore implements journal.Store on database/sql. The sqlite
// and postgres backends share it and differ only in driver, DDL and
// placeholder style.
package sqlstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/leseb/ragproxy/pkg/journal"
)

// Dialect describes the SQL differences between backends.
type Dialect struct {
	// Name prefixes error messages.
	Name string
	// Schema is executed once on open.
	Schema []string
	// Numbered placeholders ($1, $2...) instead of "?".
	Numbered bool
}

// Store is a database/sql backed journal.
type Store struct {
	db      *sql.DB
	dialect Dialect
}

// compile-time check
var _ journal.Store = (*Store)(nil)

// Open wraps db and creates the schema. The Store owns db and closes it
// on Close, including when Open fails.
func Open(ctx context.Context, db *sql.DB, dialect Dialect) (*Store, error) {
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("%s ping: %w", dialect.Name, err)
	}
	for _, stmt := range dialect.Schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("%s create tables: %w", dialect.Name, err)
		}
	}
	return &Store{db: db, dialect: dialect}, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) rebind(query string) string {
	if !s.dialect.Numbered {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// Append inserts r.
func (s *Store) Append(ctx context.Context, r *journal.Record) error {
	journal.Prepare(r)

	degraded, err := json.Marshal(r.Degraded)
	if err != nil {
		return fmt.Errorf("marshal degraded stages: %w", err)
	}

	_, err = s.db.ExecContext(ctx, s.rebind(`
		INSERT INTO journal (
			id, prompt, model, cache_hit, result_count, preferred_match,
			degraded, response_chars, duration_ms, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`),
		r.ID, r.Prompt, r.Model, r.CacheHit, r.ResultCount, r.PreferredMatch,
		string(degraded), r.ResponseChars, r.DurationMS, r.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("%s insert journal record: %w", s.dialect.Name, err)
	}
	return nil
}

// Recent returns up to limit records, newest first.
func (s *Store) Recent(ctx context.Context, limit int) ([]*journal.Record, error) {
	rows, err := s.db.QueryContext(ctx, s.rebind(`
		SELECT id, prompt, model, cache_hit, result_count, preferred_match,
			degraded, response_chars, duration_ms, created_at
		FROM journal
		ORDER BY created_at DESC, seq DESC
		LIMIT ?`), journal.ClampLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("%s query journal: %w", s.dialect.Name, err)
	}
	defer rows.Close()

	var out []*journal.Record
	for rows.Next() {
		var (
			r        journal.Record
			degraded string
		)
		if err := rows.Scan(
			&r.ID, &r.Prompt, &r.Model, &r.CacheHit, &r.ResultCount, &r.PreferredMatch,
			&degraded, &r.ResponseChars, &r.DurationMS, &r.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("%s scan journal record: %w", s.dialect.Name, err)
		}
		if err := json.Unmarshal([]byte(degraded), &r.Degraded); err != nil {
			return nil, fmt.Errorf("decode degraded stages for %s: %w", r.ID, err)
		}
		out = append(out, &r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s iterate journal: %w", s.dialect.Name, err)
	}
	return out, nil
}

// DB exposes the underlying handle for maintenance tasks and tests.
func (s *Store) DB() *sql.DB { return s.db }
