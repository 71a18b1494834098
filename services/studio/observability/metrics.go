// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package observability provides Prometheus metrics for the studio service.
//
// # Description
//
// Metrics cover the realtime collaboration path:
//   - Active websocket connections (gauge)
//   - Pipeline events by kind and outcome (counter)
//   - Event queue depth (gauge)
//   - Broadcast delivery failures (counter)
//   - Streamed segments by kind (counter)
//   - AI generations by outcome (counter)
//
// Metrics are exposed via the /metrics endpoint (promhttp).
//
// # Thread Safety
//
// All metric operations are thread-safe via Prometheus's internal locking.
package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// =============================================================================
// Metric Definitions
// =============================================================================

// Namespace for all metrics.
const metricsNamespace = "aleutian"

// Subsystem for collaborative editing metrics.
const studioSubsystem = "studio"

// Event outcomes recorded on the pipeline counter.
const (
	OutcomeHandled  = "handled"
	OutcomeIgnored  = "ignored"
	OutcomeRejected = "rejected"
)

// Generation outcomes.
const (
	GenerationSuccess = "success"
	GenerationError   = "error"
)

// StudioMetrics holds all Prometheus metrics for the realtime path.
//
// Initialize once at startup via NewStudioMetrics(). Handlers and the
// pipeline read the DefaultMetrics singleton and tolerate nil so unit
// tests run without metric registration.
type StudioMetrics struct {
	// ActiveConnections tracks currently registered sessions.
	// Labels: none (single-process).
	ActiveConnections prometheus.Gauge

	// EventsTotal counts pipeline events by kind and outcome.
	// Labels: kind (enter-turn, exit-turn, ...), outcome (handled, ignored, rejected)
	EventsTotal *prometheus.CounterVec

	// QueueDepth tracks the number of events waiting in the pipeline.
	QueueDepth prometheus.Gauge

	// BroadcastErrorsTotal counts per-recipient delivery failures that
	// were logged and skipped.
	BroadcastErrorsTotal prometheus.Counter

	// SegmentsTotal counts streamed segments by kind.
	// Labels: kind (explanation, code)
	SegmentsTotal *prometheus.CounterVec

	// GenerationsTotal counts AI generation runs by outcome.
	// Labels: outcome (success, error)
	GenerationsTotal *prometheus.CounterVec
}

// DefaultMetrics is the singleton instance of StudioMetrics.
// Nil until InitDefaultMetrics is called; all call sites nil-check.
var DefaultMetrics *StudioMetrics

// InitDefaultMetrics registers the studio metrics on the default
// Prometheus registry and installs the singleton. Call once from main.
func InitDefaultMetrics() *StudioMetrics {
	if DefaultMetrics == nil {
		DefaultMetrics = NewStudioMetrics(prometheus.DefaultRegisterer)
	}
	return DefaultMetrics
}

// NewStudioMetrics creates and registers the metric set on the given
// registerer. Separate from InitDefaultMetrics so tests can use a private
// registry.
func NewStudioMetrics(reg prometheus.Registerer) *StudioMetrics {
	factory := promauto.With(reg)

	return &StudioMetrics{
		ActiveConnections: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Subsystem: studioSubsystem,
			Name:      "active_connections",
			Help:      "Number of registered websocket sessions.",
		}),
		EventsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: studioSubsystem,
			Name:      "events_total",
			Help:      "Pipeline events processed, by kind and outcome.",
		}, []string{"kind", "outcome"}),
		QueueDepth: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Subsystem: studioSubsystem,
			Name:      "queue_depth",
			Help:      "Events currently waiting in the pipeline queue.",
		}),
		BroadcastErrorsTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: studioSubsystem,
			Name:      "broadcast_errors_total",
			Help:      "Per-recipient broadcast failures that were skipped.",
		}),
		SegmentsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: studioSubsystem,
			Name:      "segments_total",
			Help:      "Streamed content segments, by kind.",
		}, []string{"kind"}),
		GenerationsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: studioSubsystem,
			Name:      "generations_total",
			Help:      "AI generation runs, by outcome.",
		}, []string{"outcome"}),
	}
}

// =============================================================================
// Recording Helpers
// =============================================================================

// SessionOpened increments the active connection gauge.
func (m *StudioMetrics) SessionOpened() { m.ActiveConnections.Inc() }

// SessionClosed decrements the active connection gauge.
func (m *StudioMetrics) SessionClosed() { m.ActiveConnections.Dec() }

// RecordEvent records one pipeline event.
func (m *StudioMetrics) RecordEvent(kind, outcome string) {
	m.EventsTotal.WithLabelValues(kind, outcome).Inc()
}

// RecordBroadcastError records one skipped recipient.
func (m *StudioMetrics) RecordBroadcastError() { m.BroadcastErrorsTotal.Inc() }

// RecordSegment records one streamed segment.
func (m *StudioMetrics) RecordSegment(kind string) {
	m.SegmentsTotal.WithLabelValues(kind).Inc()
}

// RecordGeneration records one finished generation run.
func (m *StudioMetrics) RecordGeneration(outcome string) {
	m.GenerationsTotal.WithLabelValues(outcome).Inc()
}

// SetQueueDepth updates the queue depth gauge.
func (m *StudioMetrics) SetQueueDepth(depth int) {
	m.QueueDepth.Set(float64(depth))
}
