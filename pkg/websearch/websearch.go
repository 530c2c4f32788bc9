// Copyright Open Responses Gateway Authors
// SPDX-License-Identifier: Apache-2.0

package websearch

import (
	"context"
	"errors"

	"github.com/leseb/ragproxy/pkg/provider"
)

// Providers is the registry of web search provider implementations.
// Import implementation packages (or this package, for the built-in
// providers) to register them.
var Providers = provider.NewRegistry[Provider]("search")

// MaxResults caps how many results a single search contributes to the
// prompt context.
const MaxResults = 6

var (
	// ErrSearchUnavailable marks a search that could not be performed:
	// network failure, timeout, non-2xx status or a refused rate limiter slot.
	ErrSearchUnavailable = errors.New("search unavailable")

	// ErrParse marks a page that could not be parsed at all.
	ErrParse = errors.New("parse search page")
)

// SearchResult represents a single web search result.
type SearchResult struct {
	URL     string `json:"url"`
	Title   string `json:"title"`
	Snippet string `json:"snippet"`
}

// Format identifies how a Page body must be parsed.
type Format string

const (
	FormatHTML Format = "html"
	FormatJSON Format = "json"
)

// Page is the raw outcome of a search request, before result extraction.
type Page struct {
	Query  string
	Format Format
	Body   []byte
}

// Provider performs web searches against an external engine. Fetch issues
// the network request; Parse turns the returned page into at most
// maxResults results. Parse reports per-unit problems without failing the
// whole page; a nil slice with errors means nothing usable was found.
type Provider interface {
	Name() string
	Fetch(ctx context.Context, query string) (*Page, error)
	Parse(page *Page, maxResults int) ([]SearchResult, []error)
}

func clampResults(n int) int {
	if n <= 0 || n > MaxResults {
		return MaxResults
	}
	return n
}
