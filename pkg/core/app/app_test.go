// Copyright Open Responses Gateway Authors
// SPDX-License-Identifier: Apache-2.0

package app

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/leseb/ragproxy/pkg/core/config"
	"github.com/leseb/ragproxy/pkg/core/schema"
	"github.com/leseb/ragproxy/pkg/observability/logging"
)

func TestNew_DefaultsWithLocalBackends(t *testing.T) {
	search := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		fmt.Fprint(w, `<div class="w-gl__result"><a class="w-gl__result-title" href="https://www.wowhead.com/x">X</a><p class="w-gl__description">about x</p></div>`)
	}))
	defer search.Close()
	gen := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintln(w, `{"response":"answer","done":true}`)
	}))
	defer gen.Close()

	cfg := config.Default()
	cfg.Search.URL = search.URL
	cfg.Generation.Endpoint = gen.URL
	cfg.Journal.Type = "sqlite"
	cfg.Journal.DSN = filepath.Join(t.TempDir(), "journal.db")
	cfg.Snapshot.Type = "filesystem"
	cfg.Snapshot.BaseDir = t.TempDir()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}

	a, err := New(context.Background(), cfg, logging.Discard())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer a.Close(context.Background())

	if a.Metrics == nil {
		t.Error("metrics should be enabled by default")
	}

	res, err := a.Pipeline.Handle(context.Background(), schema.GenerateRequest{Prompt: "what is x"})
	if err != nil {
		t.Fatalf("Handle: %v", err)
	}
	if res.Response != "answer" || !strings.Contains(res.Context, "about x") {
		t.Errorf("unexpected result: %+v", res)
	}

	recs, err := a.Pipeline.RecentRequests(context.Background(), 5)
	if err != nil || len(recs) != 1 {
		t.Fatalf("RecentRequests = %v, %v", recs, err)
	}
	snap, err := a.Pipeline.LastSearch(context.Background())
	if err != nil {
		t.Fatalf("LastSearch: %v", err)
	}
	if !strings.Contains(string(snap.Data), "w-gl__result") {
		t.Errorf("unexpected snapshot: %q", snap.Data)
	}
}

func TestNew_SearchDisabled(t *testing.T) {
	cfg := config.Default()
	cfg.Search.Provider = config.Disabled
	cfg.Journal.Type = config.Disabled
	disabled := false
	cfg.Metrics.Enabled = &disabled

	a, err := New(context.Background(), cfg, logging.Discard())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer a.Close(context.Background())
	if a.Metrics != nil {
		t.Error("metrics should be disabled")
	}
}

func TestNew_UnknownBackend(t *testing.T) {
	cfg := config.Default()
	cfg.Generation.Backend = "nope"
	if _, err := New(context.Background(), cfg, logging.Discard()); err == nil {
		t.Fatal("expected error for unknown generation backend")
	}
}
