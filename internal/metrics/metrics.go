// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

// Package metrics exposes Prometheus counters for URL cleanup jobs.
// A nil *Metrics is valid and records nothing.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "redirclean"

// Metrics holds the job counters.
type Metrics struct {
	registry prometheus.Gatherer

	Batches        *prometheus.CounterVec
	BatchDuration  prometheus.Histogram
	ItemsProcessed *prometheus.CounterVec
	ItemsUpdated   *prometheus.CounterVec
	ItemErrors     *prometheus.CounterVec
	Replacements   *prometheus.CounterVec
	JobEvents      *prometheus.CounterVec
}

// New registers the job metrics on a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	f := promauto.With(reg)

	return &Metrics{
		registry: reg,
		Batches: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "batches_total",
			Help:      "Batches processed, by outcome.",
		}, []string{"outcome"}),
		BatchDuration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "batch_duration_seconds",
			Help:      "Time spent processing one batch.",
			Buckets:   prometheus.DefBuckets,
		}),
		ItemsProcessed: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "items_processed_total",
			Help:      "Content items scanned, by kind.",
		}, []string{"kind"}),
		ItemsUpdated: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "items_updated_total",
			Help:      "Content items with at least one URL replacement, by kind.",
		}, []string{"kind", "dry_run"}),
		ItemErrors: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "item_errors_total",
			Help:      "Content items skipped because of an error, by kind.",
		}, []string{"kind"}),
		Replacements: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "url_replacements_total",
			Help:      "URL substitutions made, by kind.",
		}, []string{"kind", "dry_run"}),
		JobEvents: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "job_events_total",
			Help:      "Job lifecycle events.",
		}, []string{"event"}),
	}
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Batch records one batch outcome ("ok", "failed", "rejected").
func (m *Metrics) Batch(outcome string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.Batches.WithLabelValues(outcome).Inc()
	m.BatchDuration.Observe(elapsed.Seconds())
}

// Item records a scanned item and, when replacements > 0, an update.
func (m *Metrics) Item(kind string, replacements int, dryRun bool) {
	if m == nil {
		return
	}
	m.ItemsProcessed.WithLabelValues(kind).Inc()
	if replacements > 0 {
		dr := boolLabel(dryRun)
		m.ItemsUpdated.WithLabelValues(kind, dr).Inc()
		m.Replacements.WithLabelValues(kind, dr).Add(float64(replacements))
	}
}

// ItemError records a skipped item.
func (m *Metrics) ItemError(kind string) {
	if m == nil {
		return
	}
	m.ItemsProcessed.WithLabelValues(kind).Inc()
	m.ItemErrors.WithLabelValues(kind).Inc()
}

// Job records a lifecycle event ("started", "completed", "failed", "rolled_back").
func (m *Metrics) Job(event string) {
	if m == nil {
		return
	}
	m.JobEvents.WithLabelValues(event).Inc()
}

func boolLabel(b bool) string {
	if b {
		return "true"
	}
	return "false"
}
