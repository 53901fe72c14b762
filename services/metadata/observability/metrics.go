// Copyright (C) 2025 smirnov0ser
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package observability provides Prometheus metrics for the metadata
// service.
//
// Metrics are exposed via the /metrics endpoint. All metric operations are
// thread-safe via Prometheus's internal locking.
package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	metricsNamespace = "mcp1c"
	searchSubsystem  = "search"
	cacheSubsystem   = "tree_cache"
	parseSubsystem   = "parser"
)

// Metrics holds all Prometheus metrics of the metadata service.
// Initialize once at startup via NewMetrics.
type Metrics struct {
	// SearchesTotal counts search requests by outcome status.
	SearchesTotal *prometheus.CounterVec

	// SearchDuration observes end-to-end search latency.
	SearchDuration prometheus.Histogram

	// CacheHits counts tree-cache hits.
	CacheHits prometheus.Counter

	// CacheMisses counts tree-cache misses (tree rebuilt from source).
	CacheMisses prometheus.Counter

	// ParseDuration observes report parse latency.
	ParseDuration prometheus.Histogram

	// ParseWarnings counts source lines skipped by the parser.
	ParseWarnings prometheus.Counter
}

// NewMetrics registers and returns the service metric bundle.
//
// Pass prometheus.DefaultRegisterer for production use or a fresh
// prometheus.NewRegistry() in tests to avoid duplicate registration.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		SearchesTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: searchSubsystem,
			Name:      "requests_total",
			Help:      "Search requests by outcome status.",
		}, []string{"status"}),
		SearchDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Subsystem: searchSubsystem,
			Name:      "duration_seconds",
			Help:      "End-to-end search latency.",
			Buckets:   prometheus.DefBuckets,
		}),
		CacheHits: factory.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: cacheSubsystem,
			Name:      "hits_total",
			Help:      "Tree cache hits.",
		}),
		CacheMisses: factory.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: cacheSubsystem,
			Name:      "misses_total",
			Help:      "Tree cache misses (tree rebuilt from source).",
		}),
		ParseDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Subsystem: parseSubsystem,
			Name:      "duration_seconds",
			Help:      "Report parse latency.",
			Buckets:   prometheus.DefBuckets,
		}),
		ParseWarnings: factory.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: parseSubsystem,
			Name:      "skipped_lines_total",
			Help:      "Source lines the parser could not interpret.",
		}),
	}
}
