// Copyright Open Responses Gateway Authors
// SPDX-License-Identifier: Apache-2.0

package websearch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

const tavilyEndpoint = "https://api.tavily.com/search"

func init() {
	Providers.Register("tavily", func(_ context.Context, params map[string]string) (Provider, error) {
		apiKey := params["api_key"]
		if apiKey == "" {
			return nil, fmt.Errorf("tavily: api_key parameter is required")
		}
		timeout, err := ParamDuration(params, "timeout", DefaultTimeout)
		if err != nil {
			return nil, err
		}
		return NewTavilyProvider(apiKey, params["url"], timeout), nil
	})
}

// TavilyProvider performs web searches using the Tavily Search API.
type TavilyProvider struct {
	apiKey     string
	endpoint   string
	httpClient *http.Client
}

// NewTavilyProvider creates a new Tavily Search provider. An empty
// endpoint uses the public API.
func NewTavilyProvider(apiKey, endpoint string, timeout time.Duration) *TavilyProvider {
	if endpoint == "" {
		endpoint = tavilyEndpoint
	}
	return &TavilyProvider{
		apiKey:     apiKey,
		endpoint:   endpoint,
		httpClient: NewHTTPClient(timeout, nil),
	}
}

func (t *TavilyProvider) Name() string { return "tavily" }

// Fetch queries the Tavily Search API.
func (t *TavilyProvider) Fetch(ctx context.Context, query string) (*Page, error) {
	body, err := json.Marshal(tavilySearchRequest{
		APIKey:     t.apiKey,
		Query:      query,
		MaxResults: MaxResults,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	return FetchPage(t.httpClient, req, t.Name(), FormatJSON, query)
}

// Parse decodes a Tavily response page.
func (t *TavilyProvider) Parse(page *Page, maxResults int) ([]SearchResult, []error) {
	var result tavilySearchResponse
	if err := json.Unmarshal(page.Body, &result); err != nil {
		return nil, []error{fmt.Errorf("%w: tavily: %w", ErrParse, err)}
	}

	limit := clampResults(maxResults)
	var results []SearchResult
	for _, r := range result.Results {
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

type tavilySearchRequest struct {
	APIKey     string `json:"api_key"`
	Query      string `json:"query"`
	MaxResults int    `json:"max_results"`
}

type tavilySearchResponse struct {
	Results []tavilyResult `json:"results"`
}

type tavilyResult struct {
	Title   string `json:"title"`
	URL     string `json:"url"`
	Content string `json:"content"`
}
