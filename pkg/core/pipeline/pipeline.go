// Copyright Open Responses Gateway Authors
// SPDX-License-Identifier: Apache-2.0

// Package pipeline runs a prompt through cache lookup, web search,
// ranking, prompt composition and generation.
//
// A request moves strictly forward through the stages
//
//	received → cache_check → done                       (hit)
//	received → cache_check → searching → extracting →
//	  ranking → composing → generating → caching → done (miss)
//
// A failing stage is recorded as degraded and the request continues with
// empty or placeholder data. Only an empty prompt is surfaced as an error.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/leseb/ragproxy/pkg/core/cache"
	"github.com/leseb/ragproxy/pkg/core/schema"
	"github.com/leseb/ragproxy/pkg/core/stats"
	"github.com/leseb/ragproxy/pkg/generation"
	"github.com/leseb/ragproxy/pkg/journal"
	"github.com/leseb/ragproxy/pkg/observability/metrics"
	"github.com/leseb/ragproxy/pkg/prompt"
	"github.com/leseb/ragproxy/pkg/ranking"
	"github.com/leseb/ragproxy/pkg/snapshot"
	"github.com/leseb/ragproxy/pkg/websearch"
)

// ErrEmptyPrompt is returned for a missing or blank prompt.
var ErrEmptyPrompt = errors.New("prompt missing")

// Snapshot names for the last fetched search page.
const (
	SnapshotHTML = "last_search.html"
	SnapshotJSON = "last_search.json"
)

const (
	defaultSearchTimeout = websearch.DefaultTimeout
	sideEffectTimeout    = 5 * time.Second
)

// Stage names a pipeline state.
type Stage string

const (
	StageReceived   Stage = "received"
	StageCacheCheck Stage = "cache_check"
	StageSearching  Stage = "searching"
	StageExtracting Stage = "extracting"
	StageRanking    Stage = "ranking"
	StageComposing  Stage = "composing"
	StageGenerating Stage = "generating"
	StageCaching    Stage = "caching"
	StageDone       Stage = "done"
)

// StageOutcome records how a stage went. Degraded stages carry the error
// that was recovered from.
type StageOutcome struct {
	Stage    Stage
	Degraded bool
	Err      error
	Duration time.Duration
}

// Result is the outcome of a handled prompt.
type Result struct {
	Context        string
	Response       string
	CacheHit       bool
	Results        []websearch.SearchResult
	PreferredMatch bool
	Outcomes       []StageOutcome
}

// Degraded lists the stages that failed and were recovered from.
func (r *Result) Degraded() []string {
	var out []string
	for _, o := range r.Outcomes {
		if o.Degraded {
			out = append(out, string(o.Stage))
		}
	}
	return out
}

// Generator produces an answer for an augmented prompt.
type Generator interface {
	Generate(ctx context.Context, req generation.Request) (string, error)
}

// Options configures a Pipeline. Generator is required; nil Search
// disables web search. Other nil fields fall back to in-memory defaults
// or are skipped.
type Options struct {
	Search        websearch.Provider
	SearchTimeout time.Duration
	MaxResults    int
	Ranker        *ranking.PreferredDomains
	Composer      prompt.Composer
	Generator     Generator
	Cache         cache.Cache
	Stats         *stats.Stats
	Journal       journal.Store
	Snapshots     snapshot.Store
	Metrics       *metrics.Metrics
	Logger        *slog.Logger
}

// Pipeline handles prompts. It is safe for concurrent use; the cache and
// stats are its only shared mutable state.
type Pipeline struct {
	search        websearch.Provider
	searchTimeout time.Duration
	maxResults    int
	ranker        *ranking.PreferredDomains
	composer      prompt.Composer
	generator     Generator
	cache         cache.Cache
	stats         *stats.Stats
	journal       journal.Store
	snapshots     snapshot.Store
	metrics       *metrics.Metrics
	logger        *slog.Logger
}

// New creates a Pipeline.
func New(opts Options) (*Pipeline, error) {
	if opts.Generator == nil {
		return nil, fmt.Errorf("pipeline: generator is required")
	}
	p := &Pipeline{
		search:        opts.Search,
		searchTimeout: opts.SearchTimeout,
		maxResults:    opts.MaxResults,
		ranker:        opts.Ranker,
		composer:      opts.Composer,
		generator:     opts.Generator,
		cache:         opts.Cache,
		stats:         opts.Stats,
		journal:       opts.Journal,
		snapshots:     opts.Snapshots,
		metrics:       opts.Metrics,
		logger:        opts.Logger,
	}
	if p.searchTimeout <= 0 {
		p.searchTimeout = defaultSearchTimeout
	}
	if p.maxResults <= 0 || p.maxResults > websearch.MaxResults {
		p.maxResults = websearch.MaxResults
	}
	if p.ranker == nil {
		p.ranker = ranking.New(ranking.DefaultDomains...)
	}
	if p.cache == nil {
		p.cache = cache.NewMemory()
	}
	if p.stats == nil {
		p.stats = &stats.Stats{}
	}
	if p.logger == nil {
		p.logger = slog.Default()
	}
	return p, nil
}

// Handle runs req through the pipeline. Search and generation failures
// degrade the result instead of failing it; the returned error is only
// ever ErrEmptyPrompt.
func (p *Pipeline) Handle(ctx context.Context, req schema.GenerateRequest) (*Result, error) {
	start := time.Now()
	p.stats.IncTotalRequests()

	question := strings.TrimSpace(req.Prompt)
	model := strings.TrimSpace(req.Model)
	if question == "" {
		p.metrics.Request(metrics.OutcomeBadRequest)
		return nil, ErrEmptyPrompt
	}

	// Work continues after a client disconnect so that the answer is
	// still cached.
	ctx = context.WithoutCancel(ctx)
	res := &Result{Outcomes: []StageOutcome{{Stage: StageReceived}}}

	var (
		entry cache.Entry
		hit   bool
	)
	p.runStage(res, StageCacheCheck, func() error {
		entry, hit = p.cache.Lookup(question)
		return nil
	})
	if hit {
		p.stats.IncCacheHits()
		p.logger.Info("Cache hit", "prompt", question)
		res.CacheHit = true
		res.Context = entry.Context
		res.Response = entry.Response
		p.finish(ctx, res, question, model, metrics.OutcomeHit, start)
		return res, nil
	}

	p.stats.IncLookupAttempts()

	var page *websearch.Page
	p.runStage(res, StageSearching, func() error {
		var err error
		page, err = p.fetch(ctx, question)
		return err
	})

	var extracted []websearch.SearchResult
	p.runStage(res, StageExtracting, func() error {
		var err error
		extracted, err = p.extract(page)
		return err
	})

	used := extracted
	p.runStage(res, StageRanking, func() error {
		if preferred := p.ranker.Filter(extracted); len(preferred) > 0 {
			used = preferred
			res.PreferredMatch = true
			p.stats.IncPreferredDomainMatches()
			p.logger.Info("Preferred domain match", "prompt", question, "matches", len(preferred), "results", len(extracted))
		}
		return nil
	})
	res.Results = used
	p.metrics.SearchResults("extracted", len(extracted))
	p.metrics.SearchResults("used", len(used))

	var augmented string
	p.runStage(res, StageComposing, func() error {
		res.Context = prompt.RenderContext(used)
		augmented = p.composer.Build(res.Context, question)
		return nil
	})

	p.runStage(res, StageGenerating, func() error {
		p.logger.Info("Using model", "model", modelLabel(model))
		p.logger.Debug("Sending prompt", "prompt", augmented)

		text, err := p.generator.Generate(ctx, generation.Request{Prompt: augmented, Model: model})
		if err != nil {
			p.logger.Warn("Generation failed", "prompt", question, "error", err)
			res.Response = generation.FailureText(err)
			return err
		}
		res.Response = text
		return nil
	})

	p.runStage(res, StageCaching, func() error {
		p.cache.Store(question, cache.Entry{Context: res.Context, Response: res.Response})
		return nil
	})

	p.finish(ctx, res, question, model, metrics.OutcomeMiss, start)
	return res, nil
}

func (p *Pipeline) runStage(res *Result, stage Stage, fn func() error) {
	start := time.Now()
	err := fn()
	o := StageOutcome{Stage: stage, Degraded: err != nil, Err: err, Duration: time.Since(start)}
	res.Outcomes = append(res.Outcomes, o)
	p.metrics.Stage(string(stage), o.Duration, o.Degraded)
}

func (p *Pipeline) fetch(ctx context.Context, question string) (*websearch.Page, error) {
	if p.search == nil {
		return nil, nil
	}
	sctx, cancel := context.WithTimeout(ctx, p.searchTimeout)
	defer cancel()

	page, err := p.search.Fetch(sctx, question)
	if err != nil {
		p.logger.Warn("Search failed", "prompt", question, "provider", p.search.Name(), "error", err)
		return nil, err
	}
	p.saveSnapshot(ctx, page)
	return page, nil
}

func (p *Pipeline) extract(page *websearch.Page) ([]websearch.SearchResult, error) {
	if page == nil {
		return nil, nil
	}
	results, errs := p.search.Parse(page, p.maxResults)
	for _, err := range errs {
		p.logger.Debug("Skipped search result", "error", err)
	}
	if len(results) > p.maxResults {
		results = results[:p.maxResults]
	}
	// Per-block failures only skip results; the stage degrades when the
	// page itself could not be parsed.
	for _, err := range errs {
		if errors.Is(err, websearch.ErrParse) {
			return nil, fmt.Errorf("extract search results: %w", err)
		}
	}
	return results, nil
}

func (p *Pipeline) saveSnapshot(ctx context.Context, page *websearch.Page) {
	if p.snapshots == nil {
		return
	}
	snap := &snapshot.Snapshot{Name: SnapshotHTML, ContentType: "text/html; charset=utf-8", Data: page.Body}
	if page.Format == websearch.FormatJSON {
		snap.Name = SnapshotJSON
		snap.ContentType = "application/json"
	}

	sctx, cancel := context.WithTimeout(ctx, sideEffectTimeout)
	defer cancel()
	if err := p.snapshots.Put(sctx, snap); err != nil {
		p.logger.Warn("Failed to save search snapshot", "name", snap.Name, "error", err)
	}
}

func (p *Pipeline) finish(ctx context.Context, res *Result, question, model, outcome string, start time.Time) {
	res.Outcomes = append(res.Outcomes, StageOutcome{Stage: StageDone})
	p.metrics.Request(outcome)

	if p.journal == nil {
		return
	}
	rec := &journal.Record{
		Prompt:         question,
		Model:          model,
		CacheHit:       res.CacheHit,
		ResultCount:    len(res.Results),
		PreferredMatch: res.PreferredMatch,
		Degraded:       res.Degraded(),
		ResponseChars:  utf8.RuneCountInString(res.Response),
		DurationMS:     time.Since(start).Milliseconds(),
	}
	jctx, cancel := context.WithTimeout(ctx, sideEffectTimeout)
	defer cancel()
	if err := p.journal.Append(jctx, rec); err != nil {
		p.logger.Warn("Journal append failed", "error", err)
	}
}

// Stats returns a snapshot of the request counters.
func (p *Pipeline) Stats() stats.Snapshot {
	return p.stats.Snapshot()
}

// Flush empties the prompt cache and returns the number of entries removed.
func (p *Pipeline) Flush() int {
	n := p.cache.Flush()
	p.logger.Info("Cache flushed", "entries", n)
	return n
}

// RecentRequests returns journal records, newest first. It returns nil
// when no journal is configured.
func (p *Pipeline) RecentRequests(ctx context.Context, limit int) ([]*journal.Record, error) {
	if p.journal == nil {
		return nil, nil
	}
	return p.journal.Recent(ctx, limit)
}

// LastSearch returns the most recently fetched raw search page.
func (p *Pipeline) LastSearch(ctx context.Context) (*snapshot.Snapshot, error) {
	if p.snapshots == nil {
		return nil, snapshot.ErrNotFound
	}
	var latest *snapshot.Snapshot
	for _, name := range []string{SnapshotHTML, SnapshotJSON} {
		snap, err := p.snapshots.Get(ctx, name)
		if errors.Is(err, snapshot.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		if latest == nil || snap.UpdatedAt.After(latest.UpdatedAt) {
			latest = snap
		}
	}
	if latest == nil {
		return nil, snapshot.ErrNotFound
	}
	return latest, nil
}

// BackendStatus reports the generation circuit breaker state when the
// generator exposes one.
func (p *Pipeline) BackendStatus() string {
	if s, ok := p.generator.(interface{ BreakerState() string }); ok {
		return s.BreakerState()
	}
	return ""
}

func modelLabel(model string) string {
	if model == "" {
		return "default"
	}
	return model
}
