// Copyright Open Responses Gateway Authors
// SPDX-License-Identifier: Apache-2.0

// Package app assembles the pipeline and its backends from configuration.
// Both the HTTP server and the Envoy external processor start from it.
package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/leseb/ragproxy/pkg/core/cache"
	"github.com/leseb/ragproxy/pkg/core/config"
	"github.com/leseb/ragproxy/pkg/core/pipeline"
	"github.com/leseb/ragproxy/pkg/core/stats"
	"github.com/leseb/ragproxy/pkg/generation"
	"github.com/leseb/ragproxy/pkg/journal"
	"github.com/leseb/ragproxy/pkg/observability/logging"
	"github.com/leseb/ragproxy/pkg/observability/metrics"
	"github.com/leseb/ragproxy/pkg/prompt"
	"github.com/leseb/ragproxy/pkg/ranking"
	"github.com/leseb/ragproxy/pkg/snapshot"
	"github.com/leseb/ragproxy/pkg/websearch"

	// Backends register themselves with their registries.
	_ "github.com/leseb/ragproxy/pkg/generation/ollama"
	_ "github.com/leseb/ragproxy/pkg/generation/openai"
	_ "github.com/leseb/ragproxy/pkg/journal/memory"
	_ "github.com/leseb/ragproxy/pkg/journal/postgres"
	_ "github.com/leseb/ragproxy/pkg/journal/sqlite"
	_ "github.com/leseb/ragproxy/pkg/snapshot/filesystem"
	_ "github.com/leseb/ragproxy/pkg/snapshot/memory"
	_ "github.com/leseb/ragproxy/pkg/snapshot/s3"
	_ "github.com/leseb/ragproxy/pkg/websearch/startpage"
)

// App holds the assembled pipeline and the resources it owns.
type App struct {
	Pipeline *pipeline.Pipeline
	// Metrics is nil when metrics are disabled.
	Metrics *metrics.Metrics

	journal   journal.Store
	snapshots snapshot.Store
}

// New builds every component named by cfg. On error, anything already
// opened is closed.
func New(ctx context.Context, cfg *config.Config, logger *logging.Logger) (_ *App, err error) {
	a := &App{}
	defer func() {
		if err != nil {
			a.Close(context.Background())
		}
	}()

	// Initialize search provider
	var search websearch.Provider
	if cfg.Search.Provider != config.Disabled {
		search, err = websearch.Providers.New(ctx, cfg.Search.Provider, cfg.SearchParams())
		if err != nil {
			return nil, fmt.Errorf("initialize search: %w", err)
		}
		if cfg.Search.RateLimit > 0 {
			search = websearch.RateLimited(search, cfg.Search.RateLimit, cfg.Search.Burst)
		}
		logger.Info("Initialized search provider",
			"provider", cfg.Search.Provider,
			"rate_limit", cfg.Search.RateLimit)
	} else {
		logger.Info("Web search disabled")
	}

	// Initialize generation backend
	backend, err := generation.Providers.New(ctx, cfg.Generation.Backend, cfg.GenerationParams())
	if err != nil {
		return nil, fmt.Errorf("initialize generation: %w", err)
	}
	client := generation.NewClient(backend, cfg.ClientConfig(), logger.Component("generation"))
	logger.Info("Initialized generation backend",
		"backend", client.BackendName(),
		"default_model", client.DefaultModel())

	// Initialize journal
	if cfg.Journal.Type != config.Disabled {
		a.journal, err = journal.Providers.New(ctx, cfg.Journal.Type, cfg.JournalParams())
		if err != nil {
			return nil, fmt.Errorf("initialize journal: %w", err)
		}
		logger.Info("Initialized request journal", "type", cfg.Journal.Type)
	}

	// Initialize snapshot store
	if cfg.Snapshot.Type != config.Disabled {
		a.snapshots, err = snapshot.Providers.New(ctx, cfg.Snapshot.Type, cfg.SnapshotParams())
		if err != nil {
			return nil, fmt.Errorf("initialize snapshot store: %w", err)
		}
		logger.Info("Initialized snapshot store", "type", cfg.Snapshot.Type)
	}

	if cfg.MetricsEnabled() {
		a.Metrics = metrics.New()
	}

	a.Pipeline, err = pipeline.New(pipeline.Options{
		Search:        search,
		SearchTimeout: cfg.Search.Timeout,
		MaxResults:    cfg.Search.MaxResults,
		Ranker:        ranking.New(cfg.Ranking.PreferredDomains...),
		Composer:      prompt.Composer{System: cfg.Prompt.System},
		Generator:     client,
		Cache:         cache.NewMemory(),
		Stats:         &stats.Stats{},
		Journal:       a.journal,
		Snapshots:     a.snapshots,
		Metrics:       a.Metrics,
		Logger:        logger.Component("pipeline"),
	})
	if err != nil {
		return nil, err
	}
	logger.Info("Initialized pipeline", "preferred_domains", cfg.Ranking.PreferredDomains)

	return a, nil
}

// Close releases the journal and snapshot store.
func (a *App) Close(ctx context.Context) error {
	var errs []error
	if a.journal != nil {
		errs = append(errs, a.journal.Close())
	}
	if a.snapshots != nil {
		errs = append(errs, a.snapshots.Close(ctx))
	}
	return errors.Join(errs...)
}
