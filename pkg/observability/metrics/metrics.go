// Copyright Open Responses Gateway Authors
// SPDX-License-Identifier: Apache-2.0

// Package metrics exposes pipeline metrics in Prometheus format.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Request outcomes.
const (
	OutcomeHit        = "hit"
	OutcomeMiss       = "miss"
	OutcomeBadRequest = "bad_request"
)

// Metrics holds the collectors on a private registry. A nil *Metrics is
// valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	requests      *prometheus.CounterVec
	stageDuration *prometheus.HistogramVec
	stageDegraded *prometheus.CounterVec
	searchResults *prometheus.HistogramVec
}

// New creates the collectors on a fresh registry, together with the Go
// runtime and process collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		requests: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ragproxy_requests_total",
				Help: "Generate requests by outcome",
			},
			[]string{"outcome"},
		),
		stageDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "ragproxy_stage_duration_seconds",
				Help:    "Duration of pipeline stages in seconds",
				Buckets: []float64{0.005, 0.05, 0.1, 0.5, 1, 2, 5, 10, 30, 60},
			},
			[]string{"stage"},
		),
		stageDegraded: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ragproxy_stage_degraded_total",
				Help: "Pipeline stages that failed and were skipped over",
			},
			[]string{"stage"},
		),
		searchResults: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "ragproxy_search_results",
				Help:    "Search results per request, before and after domain preference",
				Buckets: []float64{0, 1, 2, 3, 4, 5, 6},
			},
			[]string{"kind"},
		),
	}
}

// Request counts a handled request.
func (m *Metrics) Request(outcome string) {
	if m == nil {
		return
	}
	m.requests.WithLabelValues(outcome).Inc()
}

// Stage records how long a pipeline stage took and whether it degraded.
func (m *Metrics) Stage(stage string, d time.Duration, degraded bool) {
	if m == nil {
		return
	}
	m.stageDuration.WithLabelValues(stage).Observe(d.Seconds())
	if degraded {
		m.stageDegraded.WithLabelValues(stage).Inc()
	}
}

// SearchResults records a result count; kind is "extracted" or "used".
func (m *Metrics) SearchResults(kind string, n int) {
	if m == nil {
		return
	}
	m.searchResults.WithLabelValues(kind).Observe(float64(n))
}

// Handler serves the registry. A nil *Metrics serves 404.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
