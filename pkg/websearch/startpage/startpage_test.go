// Copyright Open Responses Gateway Authors
// SPDX-License-Identifier: Apache-2.0

package startpage

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/leseb/ragproxy/pkg/websearch"
)

const resultsPage = `<html><body>
<div class="w-gl__result">
  <a class="w-gl__result-title" href="https://www.wowhead.com/guide/tanks"><h2>Tank Guide</h2></a>
  <p class="w-gl__description">Which tank to play</p>
</div>
<div class="w-gl__result">
  <a class="w-gl__result-title" href="https://example.com/tanks"><h2>Tanks Elsewhere</h2></a>
</div>
</body></html>`

func TestProvider_FetchAndParse(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("expected POST, got %s", r.Method)
		}
		if err := r.ParseForm(); err != nil {
			t.Fatalf("parse form: %v", err)
		}
		if got := r.PostForm.Get("query"); got != "best tank spec" {
			t.Errorf("expected query form field 'best tank spec', got %q", got)
		}
		if ua := r.Header.Get("User-Agent"); ua != "agent-one" {
			t.Errorf("expected configured User-Agent, got %q", ua)
		}
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte(resultsPage))
	}))
	defer server.Close()

	p, err := New(Options{URL: server.URL, UserAgents: []string{"agent-one"}, Timeout: time.Second})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	page, err := p.Fetch(context.Background(), "best tank spec")
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if page.Format != websearch.FormatHTML {
		t.Errorf("Format = %q", page.Format)
	}

	results, errs := p.Parse(page, 6)
	if len(errs) != 0 {
		t.Fatalf("unexpected errors: %v", errs)
	}
	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}
	if results[0].URL != "https://www.wowhead.com/guide/tanks" || results[0].Snippet != "Which tank to play" {
		t.Errorf("unexpected first result: %+v", results[0])
	}
}

func TestProvider_UpstreamFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer server.Close()

	p, err := New(Options{URL: server.URL})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if _, err := p.Fetch(context.Background(), "q"); !errors.Is(err, websearch.ErrSearchUnavailable) {
		t.Fatalf("expected ErrSearchUnavailable, got %v", err)
	}
}

func TestRegistryFactory(t *testing.T) {
	ctx := context.Background()
	if _, err := websearch.Providers.New(ctx, "startpage", map[string]string{
		"url":         "http://127.0.0.1:1/sp/search",
		"user_agents": "a\nb",
		"timeout":     "2s",
		"tls_profile": "chrome",
	}); err != nil {
		t.Fatalf("factory: %v", err)
	}

	bad := []map[string]string{
		{"timeout": "soon"},
		{"tls_profile": "netscape"},
		{"result_selector": "div[["},
		{"url": "not a url"},
	}
	for _, params := range bad {
		if _, err := websearch.Providers.New(ctx, "startpage", params); err == nil {
			t.Errorf("expected error for params %v", params)
		}
	}
}
