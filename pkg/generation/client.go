// Copyright Open Responses Gateway Authors
// SPDX-License-Identifier: Apache-2.0

package generation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/sony/gobreaker/v2"
)

const (
	// DefaultTimeout bounds a whole generation call.
	DefaultTimeout = 60 * time.Second

	defaultBreakerMaxFailures uint32        = 5
	defaultBreakerTimeout     time.Duration = 30 * time.Second
	defaultBreakerInterval    time.Duration = 60 * time.Second
)

// BreakerConfig configures the circuit breaker in front of the backend.
type BreakerConfig struct {
	// MaxFailures is the number of consecutive failures before the circuit opens.
	MaxFailures uint32 `yaml:"max_failures"`
	// Timeout is how long the circuit stays open before a trial request is let through.
	Timeout time.Duration `yaml:"timeout"`
	// Interval clears failure counts periodically while closed.
	Interval time.Duration `yaml:"interval"`
}

// ClientConfig configures a Client.
type ClientConfig struct {
	DefaultModel string
	Stream       bool
	Timeout      time.Duration
	Breaker      BreakerConfig
}

// Client issues generation requests through a circuit breaker and returns
// aggregated answers.
type Client struct {
	backend      Backend
	defaultModel string
	stream       bool
	timeout      time.Duration
	breaker      *gobreaker.CircuitBreaker[string]
	logger       *slog.Logger
}

// NewClient wraps backend. Zero-valued config fields use defaults.
func NewClient(backend Backend, cfg ClientConfig, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	maxFailures := cfg.Breaker.MaxFailures
	if maxFailures == 0 {
		maxFailures = defaultBreakerMaxFailures
	}
	breakerTimeout := cfg.Breaker.Timeout
	if breakerTimeout == 0 {
		breakerTimeout = defaultBreakerTimeout
	}
	interval := cfg.Breaker.Interval
	if interval == 0 {
		interval = defaultBreakerInterval
	}

	cb := gobreaker.NewCircuitBreaker[string](gobreaker.Settings{
		Name:        "generation:" + backend.Name(),
		MaxRequests: 1,
		Interval:    interval,
		Timeout:     breakerTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= maxFailures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("Circuit breaker state change",
				"breaker", name,
				"from", from.String(),
				"to", to.String(),
			)
		},
	})

	return &Client{
		backend:      backend,
		defaultModel: cfg.DefaultModel,
		stream:       cfg.Stream,
		timeout:      timeout,
		breaker:      cb,
		logger:       logger,
	}
}

// Generate sends req to the backend and returns the aggregated answer.
// Every failure wraps ErrGenerationUnavailable except a blank answer,
// which is reported as ErrEmptyResponse.
func (c *Client) Generate(ctx context.Context, req Request) (string, error) {
	if req.Model == "" {
		req.Model = c.defaultModel
	}
	if req.Stream == nil {
		stream := c.stream
		req.Stream = &stream
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	text, err := c.breaker.Execute(func() (string, error) {
		return c.generate(ctx, req)
	})
	switch {
	case err == nil:
		return text, nil
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		return "", fmt.Errorf("%w: backend %q circuit open: %w", ErrGenerationUnavailable, c.backend.Name(), err)
	case errors.Is(err, ErrEmptyResponse):
		return "", err
	default:
		return "", fmt.Errorf("%w: %w", ErrGenerationUnavailable, err)
	}
}

func (c *Client) generate(ctx context.Context, req Request) (string, error) {
	stream, err := c.backend.Stream(ctx, req)
	if err != nil {
		return "", err
	}
	defer stream.Close()

	text := Aggregate(stream.Chunks())
	if err := stream.Err(); err != nil {
		return "", fmt.Errorf("read stream: %w", err)
	}
	if text == "" {
		return "", ErrEmptyResponse
	}
	return text, nil
}

// BackendName returns the name of the wrapped backend.
func (c *Client) BackendName() string { return c.backend.Name() }

// DefaultModel returns the model used when a request names none.
func (c *Client) DefaultModel() string { return c.defaultModel }

// BreakerState returns the circuit breaker state for health reporting.
func (c *Client) BreakerState() string { return c.breaker.State().String() }
