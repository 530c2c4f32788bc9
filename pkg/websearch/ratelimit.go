// Copyright Open Responses Gateway Authors
// SPDX-License-Identifier: Apache-2.0

package websearch

import (
	"context"
	"fmt"

	"golang.org/x/time/rate"
)

type rateLimited struct {
	Provider
	limiter *rate.Limiter
}

// RateLimited wraps p so that Fetch waits for a token from a limiter
// allowing perSecond requests with the given burst. A non-positive
// perSecond disables limiting and returns p unchanged.
func RateLimited(p Provider, perSecond float64, burst int) Provider {
	if perSecond <= 0 {
		return p
	}
	if burst < 1 {
		burst = 1
	}
	return &rateLimited{Provider: p, limiter: rate.NewLimiter(rate.Limit(perSecond), burst)}
}

func (r *rateLimited) Fetch(ctx context.Context, query string) (*Page, error) {
	if err := r.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("%w: %s rate limit: %w", ErrSearchUnavailable, r.Name(), err)
	}
	return r.Provider.Fetch(ctx, query)
}
