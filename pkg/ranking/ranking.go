// Copyright Open Responses Gateway Authors
// SPDX-License-Identifier: Apache-2.0

// Package ranking prefers search results from trusted domains.
package ranking

import (
	"net/url"
	"strings"

	"github.com/leseb/ragproxy/pkg/websearch"
)

// DefaultDomains are the sites whose results are preferred when present.
var DefaultDomains = []string{"wowhead.com", "warcraft.wiki.gg", "wowpedia.fandom.com"}

// PreferredDomains is an ordered list of lowercased domain suffixes. It is
// read-only after construction and safe for concurrent use.
type PreferredDomains struct {
	domains []string
}

// New builds a PreferredDomains from domains, lowercasing them and
// dropping blanks and leading dots.
func New(domains ...string) *PreferredDomains {
	p := &PreferredDomains{}
	for _, d := range domains {
		d = strings.TrimLeft(strings.ToLower(strings.TrimSpace(d)), ".")
		if d != "" {
			p.domains = append(p.domains, d)
		}
	}
	return p
}

// Domains returns a copy of the configured domains.
func (p *PreferredDomains) Domains() []string {
	return append([]string(nil), p.domains...)
}

// Match reports whether rawURL's host equals a preferred domain or is a
// subdomain of one. wowhead.com.evil.net does not match wowhead.com.
// Unparseable URLs never match.
func (p *PreferredDomains) Match(rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	host := strings.ToLower(u.Hostname())
	if host == "" {
		return false
	}
	for _, d := range p.domains {
		if host == d || strings.HasSuffix(host, "."+d) {
			return true
		}
	}
	return false
}

// Filter returns the results whose URL matches a preferred domain, in
// their original order.
func (p *PreferredDomains) Filter(results []websearch.SearchResult) []websearch.SearchResult {
	var out []websearch.SearchResult
	for _, r := range results {
		if p.Match(r.URL) {
			out = append(out, r)
		}
	}
	return out
}
