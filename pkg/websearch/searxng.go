// Copyright Open Responses Gateway Authors
// SPDX-License-Identifier: Apache-2.0

package websearch

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"
)

func init() {
	Providers.Register("searxng", func(_ context.Context, params map[string]string) (Provider, error) {
		instance := params["url"]
		if instance == "" {
			return nil, fmt.Errorf("searxng: url parameter is required")
		}
		timeout, err := ParamDuration(params, "timeout", DefaultTimeout)
		if err != nil {
			return nil, err
		}
		return NewSearXNGProvider(instance, timeout), nil
	})
}

// SearXNGProvider searches the web via a SearXNG instance's JSON API.
type SearXNGProvider struct {
	instanceURL string
	httpClient  *http.Client
}

// NewSearXNGProvider creates a provider for the instance at instanceURL.
func NewSearXNGProvider(instanceURL string, timeout time.Duration) *SearXNGProvider {
	return &SearXNGProvider{
		instanceURL: strings.TrimRight(instanceURL, "/"),
		httpClient:  NewHTTPClient(timeout, nil),
	}
}

func (s *SearXNGProvider) Name() string { return "searxng" }

// Fetch queries the instance's /search endpoint in JSON format.
func (s *SearXNGProvider) Fetch(ctx context.Context, query string) (*Page, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.instanceURL+"/search", nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	q := req.URL.Query()
	q.Set("q", query)
	q.Set("format", "json")
	q.Set("pageno", "1")
	req.URL.RawQuery = q.Encode()
	req.Header.Set("Accept", "application/json")

	return FetchPage(s.httpClient, req, s.Name(), FormatJSON, query)
}

// Parse decodes a SearXNG response page.
func (s *SearXNGProvider) Parse(page *Page, maxResults int) ([]SearchResult, []error) {
	var resp searxngResponse
	if err := json.Unmarshal(page.Body, &resp); err != nil {
		return nil, []error{fmt.Errorf("%w: searxng: %w", ErrParse, err)}
	}

	limit := clampResults(maxResults)
	results := make([]SearchResult, 0, limit)
	for _, r := range resp.Results {
		if len(results) >= limit {
			break
		}
		results = append(results, SearchResult{
			Title:   r.Title,
			URL:     r.URL,
			Snippet: r.Content,
		})
	}
	return results, nil
}

type searxngResponse struct {
	Results []struct {
		Title   string `json:"title"`
		URL     string `json:"url"`
		Content string `json:"content"`
		Engine  string `json:"engine"`
	} `json:"results"`
}
