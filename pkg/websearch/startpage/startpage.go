// Copyright Open Responses Gateway Authors
// SPDX-License-Identifier: Apache-2.0

// Package startpage implements a web search provider that scrapes the
// Startpage HTML results page.
package startpage

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/leseb/ragproxy/pkg/websearch"
	"github.com/leseb/ragproxy/pkg/websearch/extract"
)

// DefaultURL is the Startpage search form endpoint.
const DefaultURL = "https://www.startpage.com/sp/search"

func init() {
	websearch.Providers.Register("startpage", func(_ context.Context, params map[string]string) (websearch.Provider, error) {
		timeout, err := websearch.ParamDuration(params, "timeout", websearch.DefaultTimeout)
		if err != nil {
			return nil, err
		}
		return New(Options{
			URL:        params["url"],
			QueryField: params["query_field"],
			UserAgents: websearch.ParamList(params, "user_agents"),
			Timeout:    timeout,
			TLSProfile: websearch.TLSProfile(params["tls_profile"]),
			Selectors: extract.Selectors{
				Result:  params["result_selector"],
				Title:   params["title_selector"],
				Snippet: params["snippet_selector"],
			},
		})
	})
}

// Options configures a Provider. Zero values fall back to defaults.
type Options struct {
	URL        string
	QueryField string
	UserAgents []string
	Timeout    time.Duration
	TLSProfile websearch.TLSProfile
	Selectors  extract.Selectors
}

// Provider posts the query to the search form and extracts results from
// the returned HTML.
type Provider struct {
	endpoint   string
	queryField string
	agents     *websearch.UserAgents
	client     *http.Client
	selectors  extract.Selectors
}

// New creates a Provider.
func New(opts Options) (*Provider, error) {
	if opts.URL == "" {
		opts.URL = DefaultURL
	}
	if _, err := url.ParseRequestURI(opts.URL); err != nil {
		return nil, fmt.Errorf("startpage: invalid url %q: %w", opts.URL, err)
	}
	if opts.QueryField == "" {
		opts.QueryField = "query"
	}
	sel := opts.Selectors.WithDefaults()
	if err := sel.Validate(); err != nil {
		return nil, fmt.Errorf("startpage: %w", err)
	}
	transport, err := websearch.NewTransport(opts.TLSProfile)
	if err != nil {
		return nil, fmt.Errorf("startpage: %w", err)
	}

	return &Provider{
		endpoint:   opts.URL,
		queryField: opts.QueryField,
		agents:     websearch.NewUserAgents(opts.UserAgents),
		client:     websearch.NewHTTPClient(opts.Timeout, transport),
		selectors:  sel,
	}, nil
}

func (p *Provider) Name() string { return "startpage" }

// Fetch submits the search form and returns the results page.
func (p *Provider) Fetch(ctx context.Context, query string) (*websearch.Page, error) {
	form := url.Values{}
	form.Set(p.queryField, query)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("User-Agent", p.agents.Next())
	req.Header.Set("Accept", "text/html,application/xhtml+xml")
	req.Header.Set("Accept-Language", "en-US,en;q=0.5")

	return websearch.FetchPage(p.client, req, p.Name(), websearch.FormatHTML, query)
}

// Parse extracts results from a fetched page.
func (p *Provider) Parse(page *websearch.Page, maxResults int) ([]websearch.SearchResult, []error) {
	return extract.Results(page.Body, maxResults, p.selectors)
}
