// Copyright Open Responses Gateway Authors
// SPDX-License-Identifier: Apache-2.0

// Package extract turns a search engine results page into structured
// search results.
package extract

import (
	"bytes"
	"errors"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/andybalholm/cascadia"
	"golang.org/x/net/html"

	"github.com/leseb/ragproxy/pkg/websearch"
)

var (
	// ErrParse is returned when the page as a whole cannot be parsed.
	ErrParse = websearch.ErrParse

	// ErrMissingAnchor marks a result block without a title anchor, an
	// href or anchor text.
	ErrMissingAnchor = errors.New("result has no usable title anchor")
)

// Selectors locate the pieces of a result inside a results page.
type Selectors struct {
	Result  string `yaml:"result"`
	Title   string `yaml:"title"`
	Snippet string `yaml:"snippet"`
}

// DefaultSelectors match Startpage's web results list.
var DefaultSelectors = Selectors{
	Result:  ".w-gl__result",
	Title:   ".w-gl__result-title",
	Snippet: ".w-gl__description",
}

// WithDefaults fills empty selectors from DefaultSelectors.
func (s Selectors) WithDefaults() Selectors {
	if s.Result == "" {
		s.Result = DefaultSelectors.Result
	}
	if s.Title == "" {
		s.Title = DefaultSelectors.Title
	}
	if s.Snippet == "" {
		s.Snippet = DefaultSelectors.Snippet
	}
	return s
}

// Validate checks that every selector compiles.
func (s Selectors) Validate() error {
	for name, sel := range map[string]string{"result": s.Result, "title": s.Title, "snippet": s.Snippet} {
		if sel == "" {
			continue
		}
		if _, err := cascadia.Compile(sel); err != nil {
			return fmt.Errorf("invalid %s selector %q: %w", name, sel, err)
		}
	}
	return nil
}

// BlockError reports a single result block that was skipped.
type BlockError struct {
	Index int
	Err   error
}

func (e *BlockError) Error() string {
	return fmt.Sprintf("result block %d: %v", e.Index, e.Err)
}

func (e *BlockError) Unwrap() error { return e.Err }

// Results extracts up to limit results from doc, in document order. Only
// the first limit result blocks are examined; a skipped block is reported
// as a *BlockError and is not back-filled from later blocks.
//
// A document that cannot be parsed yields no results and a single error
// wrapping ErrParse.
func Results(doc []byte, limit int, sel Selectors) ([]websearch.SearchResult, []error) {
	root, err := html.Parse(bytes.NewReader(doc))
	if err != nil {
		return nil, []error{fmt.Errorf("%w: %w", ErrParse, err)}
	}
	if limit <= 0 {
		limit = websearch.MaxResults
	}
	sel = sel.WithDefaults()

	var (
		results []websearch.SearchResult
		errs    []error
	)
	goquery.NewDocumentFromNode(root).Find(sel.Result).EachWithBreak(func(i int, block *goquery.Selection) bool {
		if i >= limit {
			return false
		}
		r, err := parseBlock(block, sel)
		if err != nil {
			errs = append(errs, &BlockError{Index: i, Err: err})
			return true
		}
		results = append(results, r)
		return true
	})
	return results, errs
}

func parseBlock(block *goquery.Selection, sel Selectors) (websearch.SearchResult, error) {
	anchor := block.Find(sel.Title).First()
	if anchor.Length() == 0 {
		return websearch.SearchResult{}, ErrMissingAnchor
	}
	href, _ := anchor.Attr("href")
	href = strings.TrimSpace(href)
	title := collapseSpace(anchor.Text())
	if href == "" || title == "" {
		return websearch.SearchResult{}, ErrMissingAnchor
	}
	return websearch.SearchResult{
		URL:     href,
		Title:   title,
		Snippet: collapseSpace(block.Find(sel.Snippet).First().Text()),
	}, nil
}

func collapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
