// Copyright Open Responses Gateway Authors
// SPDX-License-Identifier: Apache-2.0

package websearch

import "sync/atomic"

// DefaultUserAgent is a desktop Chrome User-Agent. Search engines that
// serve HTML tend to refuse or degrade requests carrying Go's default one.
const DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/115.0.0.0 Safari/537.36"

// UserAgents hands out User-Agent strings round-robin. It is safe for
// concurrent use.
type UserAgents struct {
	uas     []string
	counter atomic.Uint64
}

// NewUserAgents creates a pool from uas, skipping blank entries. An empty
// pool falls back to DefaultUserAgent.
func NewUserAgents(uas []string) *UserAgents {
	copied := make([]string, 0, len(uas))
	for _, ua := range uas {
		if ua != "" {
			copied = append(copied, ua)
		}
	}
	if len(copied) == 0 {
		copied = append(copied, DefaultUserAgent)
	}
	return &UserAgents{uas: copied}
}

// Next returns the next User-Agent in the pool.
func (p *UserAgents) Next() string {
	idx := p.counter.Add(1) - 1
	return p.uas[idx%uint64(len(p.uas))]
}
