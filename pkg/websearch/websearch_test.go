// Copyright Open Responses Gateway Authors
// SPDX-License-Identifier: Apache-2.0

package websearch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestBraveProvider_FetchAndParse(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("X-Subscription-Token") != "test-key" {
			t.Errorf("expected API key header, got %q", r.Header.Get("X-Subscription-Token"))
		}
		if r.URL.Query().Get("q") != "best tank spec" {
			t.Errorf("expected query 'best tank spec', got %q", r.URL.Query().Get("q"))
		}

		resp := braveSearchResponse{}
		resp.Web.Results = []braveResult{
			{Title: "Tank Tier List", URL: "https://www.wowhead.com/tanks", Description: "Current rankings"},
			{Title: "Protection Warrior", URL: "https://warcraft.wiki.gg/wiki/Protection", Description: "Spec overview"},
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(resp)
	}))
	defer server.Close()

	provider := NewBraveProvider("test-key", server.URL, time.Second)
	page, err := provider.Fetch(context.Background(), "best tank spec")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if page.Format != FormatJSON || page.Query != "best tank spec" {
		t.Errorf("unexpected page metadata: %+v", page)
	}

	results, errs := provider.Parse(page, 5)
	if len(errs) != 0 {
		t.Fatalf("unexpected parse errors: %v", errs)
	}
	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}
	if results[0].Title != "Tank Tier List" {
		t.Errorf("expected title 'Tank Tier List', got %q", results[0].Title)
	}
	if results[1].Snippet != "Spec overview" {
		t.Errorf("expected snippet 'Spec overview', got %q", results[1].Snippet)
	}
}

func TestTavilyProvider_FetchAndParse(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("expected POST, got %s", r.Method)
		}

		var req tavilySearchRequest
		json.NewDecoder(r.Body).Decode(&req)
		if req.APIKey != "test-key" {
			t.Errorf("expected api_key 'test-key', got %q", req.APIKey)
		}
		if req.Query != "raid tier" {
			t.Errorf("expected query 'raid tier', got %q", req.Query)
		}

		resp := tavilySearchResponse{
			Results: []tavilyResult{
				{Title: "Raid Tier", URL: "https://example.com/raid", Content: "Latest raid tier"},
			},
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(resp)
	}))
	defer server.Close()

	provider := NewTavilyProvider("test-key", server.URL, time.Second)
	page, err := provider.Fetch(context.Background(), "raid tier")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	results, errs := provider.Parse(page, 3)
	if len(errs) != 0 {
		t.Fatalf("unexpected parse errors: %v", errs)
	}
	if len(results) != 1 {
		t.Fatalf("expected 1 result, got %d", len(results))
	}
	if results[0].Snippet != "Latest raid tier" {
		t.Errorf("expected snippet 'Latest raid tier', got %q", results[0].Snippet)
	}
}

func TestSearXNGProvider_CapsResults(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/search" || r.URL.Query().Get("format") != "json" {
			t.Errorf("unexpected request %s", r.URL)
		}
		var resp searxngResponse
		for i := 0; i < 10; i++ {
			resp.Results = append(resp.Results, struct {
				Title   string `json:"title"`
				URL     string `json:"url"`
				Content string `json:"content"`
				Engine  string `json:"engine"`
			}{Title: fmt.Sprintf("r%d", i), URL: fmt.Sprintf("https://example.com/%d", i)})
		}
		json.NewEncoder(w).Encode(resp)
	}))
	defer server.Close()

	provider := NewSearXNGProvider(server.URL+"/", time.Second)
	page, err := provider.Fetch(context.Background(), "q")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	results, _ := provider.Parse(page, 0)
	if len(results) != MaxResults {
		t.Fatalf("expected %d results, got %d", MaxResults, len(results))
	}
	if results[0].Title != "r0" {
		t.Errorf("expected document order, first = %q", results[0].Title)
	}
}

func TestParse_MalformedJSON(t *testing.T) {
	provider := NewBraveProvider("k", "", time.Second)
	results, errs := provider.Parse(&Page{Format: FormatJSON, Body: []byte("{not json")}, 6)
	if len(results) != 0 {
		t.Errorf("expected no results, got %v", results)
	}
	if len(errs) != 1 || !errors.Is(errs[0], ErrParse) {
		t.Errorf("expected a single ErrParse, got %v", errs)
	}
}

func TestFetchPage_NonSuccessStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "blocked", http.StatusForbidden)
	}))
	defer server.Close()

	req, _ := http.NewRequest(http.MethodGet, server.URL, nil)
	_, err := FetchPage(server.Client(), req, "test", FormatHTML, "q")
	if !errors.Is(err, ErrSearchUnavailable) {
		t.Fatalf("expected ErrSearchUnavailable, got %v", err)
	}
}

func TestFetchPage_Timeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer server.Close()

	req, _ := http.NewRequest(http.MethodGet, server.URL, nil)
	_, err := FetchPage(NewHTTPClient(50*time.Millisecond, nil), req, "test", FormatHTML, "q")
	if !errors.Is(err, ErrSearchUnavailable) {
		t.Fatalf("expected ErrSearchUnavailable, got %v", err)
	}
}

func TestUserAgents_RoundRobin(t *testing.T) {
	pool := NewUserAgents([]string{"a", "", "b"})
	got := []string{pool.Next(), pool.Next(), pool.Next()}
	want := []string{"a", "b", "a"}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Next()[%d] = %q, want %q", i, got[i], want[i])
		}
	}

	if ua := NewUserAgents(nil).Next(); ua != DefaultUserAgent {
		t.Errorf("empty pool should fall back to DefaultUserAgent, got %q", ua)
	}
}

type stubProvider struct {
	calls int
}

func (s *stubProvider) Name() string { return "stub" }

func (s *stubProvider) Fetch(_ context.Context, query string) (*Page, error) {
	s.calls++
	return &Page{Query: query, Format: FormatHTML}, nil
}

func (s *stubProvider) Parse(*Page, int) ([]SearchResult, []error) { return nil, nil }

func TestRateLimited(t *testing.T) {
	stub := &stubProvider{}
	if RateLimited(stub, 0, 1) != Provider(stub) {
		t.Error("non-positive rate should return the provider unchanged")
	}

	limited := RateLimited(stub, 0.001, 1)
	if _, err := limited.Fetch(context.Background(), "first"); err != nil {
		t.Fatalf("first fetch should use the burst token: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := limited.Fetch(ctx, "second")
	if !errors.Is(err, ErrSearchUnavailable) {
		t.Fatalf("expected ErrSearchUnavailable, got %v", err)
	}
	if stub.calls != 1 {
		t.Errorf("expected 1 upstream call, got %d", stub.calls)
	}
	if limited.Name() != "stub" {
		t.Errorf("Name() = %q", limited.Name())
	}
}

func TestNewTransport(t *testing.T) {
	for _, p := range []TLSProfile{"", ProfileGo, ProfileChrome, ProfileFirefox, ProfileSafari} {
		if _, err := NewTransport(p); err != nil {
			t.Errorf("NewTransport(%q): %v", p, err)
		}
	}
	if _, err := NewTransport("netscape"); err == nil {
		t.Error("expected error for unknown profile")
	}
}

func TestRegisteredProviders(t *testing.T) {
	for _, name := range []string{"brave", "tavily", "searxng"} {
		if !Providers.Has(name) {
			t.Errorf("provider %q not registered", name)
		}
	}
	if _, err := Providers.New(context.Background(), "brave", map[string]string{}); err == nil {
		t.Error("expected error for missing api_key")
	}
	if _, err := Providers.New(context.Background(), "searxng", map[string]string{"url": "http://localhost:8888", "timeout": "bogus"}); err == nil {
		t.Error("expected error for invalid timeout")
	}
}

func TestParamList(t *testing.T) {
	got := ParamList(map[string]string{"ua": " a \n\n b\n"}, "ua")
	if len(got) != 2 || got[0] != "a" || got[1] != "b" {
		t.Errorf("ParamList = %q", got)
	}
}
