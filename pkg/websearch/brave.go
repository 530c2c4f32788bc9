// Copyright Open Responses Gateway Authors
// SPDX-License-Identifier: Apache-2.0

package websearch

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

const braveEndpoint = "https://api.search.brave.com/res/v1/web/search"

func init() {
	Providers.Register("brave", func(_ context.Context, params map[string]string) (Provider, error) {
		apiKey := params["api_key"]
		if apiKey == "" {
			return nil, fmt.Errorf("brave: api_key parameter is required")
		}
		timeout, err := ParamDuration(params, "timeout", DefaultTimeout)
		if err != nil {
			return nil, err
		}
		return NewBraveProvider(apiKey, params["url"], timeout), nil
	})
}

// BraveProvider performs web searches using the Brave Search API.
type BraveProvider struct {
	apiKey     string
	endpoint   string
	httpClient *http.Client
}

// NewBraveProvider creates a new Brave Search provider. An empty endpoint
// uses the public API.
func NewBraveProvider(apiKey, endpoint string, timeout time.Duration) *BraveProvider {
	if endpoint == "" {
		endpoint = braveEndpoint
	}
	return &BraveProvider{
		apiKey:     apiKey,
		endpoint:   endpoint,
		httpClient: NewHTTPClient(timeout, nil),
	}
}

func (b *BraveProvider) Name() string { return "brave" }

// Fetch queries the Brave Web Search API.
func (b *BraveProvider) Fetch(ctx context.Context, query string) (*Page, error) {
	u, err := url.Parse(b.endpoint)
	if err != nil {
		return nil, fmt.Errorf("brave: invalid endpoint: %w", err)
	}
	q := u.Query()
	q.Set("q", query)
	q.Set("count", strconv.Itoa(MaxResults))
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Subscription-Token", b.apiKey)

	return FetchPage(b.httpClient, req, b.Name(), FormatJSON, query)
}

// Parse decodes a Brave response page.
func (b *BraveProvider) Parse(page *Page, maxResults int) ([]SearchResult, []error) {
	var result braveSearchResponse
	if err := json.Unmarshal(page.Body, &result); err != nil {
		return nil, []error{fmt.Errorf("%w: brave: %w", ErrParse, err)}
	}

	limit := clampResults(maxResults)
	var results []SearchResult
	for _, r := range result.Web.Results {
		if len(results) >= limit {
			break
		}
		results = append(results, SearchResult{
			Title:   r.Title,
			URL:     r.URL,
			Snippet: r.Description,
		})
	}
	return results, nil
}

type braveSearchResponse struct {
	Web struct {
		Results []braveResult `json:"results"`
	} `json:"web"`
}

type braveResult struct {
	Title       string `json:"title"`
	URL         string `json:"url"`
	Description string `json:"description"`
}
