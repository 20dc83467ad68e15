// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package observability provides Prometheus metrics for the coach service.
//
// # Description
//
// Metrics cover the fallback chain (which tier answered), the completion
// endpoint (attempt outcomes, latency, breaker state), label validation
// and taxonomy lookups. They are exposed on /metrics.
//
// # Thread Safety
//
// All metric operations are thread-safe via Prometheus's internal locking.
// Every method is safe to call on a nil *CoachMetrics, which records
// nothing.
package observability

import (
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// =============================================================================
// Metric Definitions
// =============================================================================

const metricsNamespace = "flowcoach"

const (
	chainSubsystem    = "chain"
	llmSubsystem      = "llm"
	lintSubsystem     = "lint"
	taxonomySubsystem = "taxonomy"
	httpSubsystem     = "http"
)

// CoachMetrics holds all Prometheus metrics for the service.
//
// # Fields
//
//   - ResponsesTotal: chat responses by source tier and intent
//   - ResponseDurationSeconds: end-to-end chain latency by source
//   - LLMAttemptsTotal: network attempts by outcome
//   - LLMAttemptDurationSeconds: attempt latency by outcome
//   - BreakerOpen: 1 while the breaker is cooling down, read at scrape
//   - BreakerFailures: current consecutive failure count, read at scrape
//   - BreakerTripsTotal: times the breaker opened
//   - LintVerdictsTotal: label validations by result and mode
//   - LintIssuesTotal: lint issues by rule id
//   - TaxonomyLookupsTotal: context lookups by matching tier
//   - ErrorsTotal: request errors by endpoint and code
//   - ActiveSockets: open websocket sessions
type CoachMetrics struct {
	ResponsesTotal          *prometheus.CounterVec
	ResponseDurationSeconds *prometheus.HistogramVec

	LLMAttemptsTotal          *prometheus.CounterVec
	LLMAttemptDurationSeconds *prometheus.HistogramVec
	BreakerOpen               prometheus.GaugeFunc
	BreakerFailures           prometheus.GaugeFunc
	BreakerTripsTotal         prometheus.Counter

	LintVerdictsTotal *prometheus.CounterVec
	LintIssuesTotal   *prometheus.CounterVec

	TaxonomyLookupsTotal *prometheus.CounterVec

	ErrorsTotal   *prometheus.CounterVec
	ActiveSockets prometheus.Gauge

	factory    promauto.Factory
	watchBreak sync.Once
}

// BreakerState is the read side of a circuit breaker.
type BreakerState interface {
	Open() bool
	Failures() int
}

// NewCoachMetrics creates and registers all metrics on reg.
//
// # Inputs
//
//   - reg: Target registry. Nil uses prometheus.DefaultRegisterer.
//
// # Limitations
//
//   - Panics on duplicate registration; tests should pass a fresh
//     prometheus.NewRegistry().
func NewCoachMetrics(reg prometheus.Registerer) *CoachMetrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	f := promauto.With(reg)

	return &CoachMetrics{
		ResponsesTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: chainSubsystem,
				Name:      "responses_total",
				Help:      "Chat responses by answering tier and intent",
			},
			[]string{"source", "level", "intent"},
		),
		ResponseDurationSeconds: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: metricsNamespace,
				Subsystem: chainSubsystem,
				Name:      "response_duration_seconds",
				Help:      "Time to produce a chat response in seconds",
				Buckets:   []float64{0.01, 0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 180},
			},
			[]string{"source"},
		),

		LLMAttemptsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: llmSubsystem,
				Name:      "attempts_total",
				Help:      "Completion endpoint attempts by outcome",
			},
			[]string{"outcome"},
		),
		LLMAttemptDurationSeconds: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: metricsNamespace,
				Subsystem: llmSubsystem,
				Name:      "attempt_duration_seconds",
				Help:      "Completion endpoint attempt latency in seconds",
				Buckets:   []float64{0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
			},
			[]string{"outcome"},
		),
		BreakerTripsTotal: f.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: llmSubsystem,
			Name:      "breaker_trips_total",
			Help:      "Times the completion circuit breaker opened",
		}),

		LintVerdictsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: lintSubsystem,
				Name:      "verdicts_total",
				Help:      "Label validations by result and degraded mode",
			},
			[]string{"result", "degraded"},
		),
		LintIssuesTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: lintSubsystem,
				Name:      "issues_total",
				Help:      "Lint issues raised by rule id",
			},
			[]string{"rule_id"},
		),

		TaxonomyLookupsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: taxonomySubsystem,
				Name:      "lookups_total",
				Help:      "Taxonomy context lookups by matching tier",
			},
			[]string{"tier"},
		),

		ErrorsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: httpSubsystem,
				Name:      "errors_total",
				Help:      "Request errors by endpoint and error code",
			},
			[]string{"endpoint", "error_code"},
		),
		ActiveSockets: f.NewGauge(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Subsystem: httpSubsystem,
			Name:      "active_websockets",
			Help:      "Currently open chat websocket sessions",
		}),

		factory: f,
	}
}

// WatchBreaker exports the breaker's state as gauges read at scrape time,
// so a cooldown that lapses shows as closed without another call. Only
// the first breaker passed is watched.
func (m *CoachMetrics) WatchBreaker(b BreakerState) {
	if m == nil || b == nil {
		return
	}
	m.watchBreak.Do(func() {
		m.BreakerOpen = m.factory.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Subsystem: llmSubsystem,
			Name:      "breaker_open",
			Help:      "1 while the completion circuit breaker is open",
		}, func() float64 {
			if b.Open() {
				return 1
			}
			return 0
		})
		m.BreakerFailures = m.factory.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Subsystem: llmSubsystem,
			Name:      "breaker_failures",
			Help:      "Consecutive completion failures counted by the breaker",
		}, func() float64 {
			return float64(b.Failures())
		})
	})
}

// =============================================================================
// Error Codes
// =============================================================================

// ErrorCode represents a categorized error type for metrics.
type ErrorCode string

const (
	ErrorCodeValidation ErrorCode = "validation"
	ErrorCodeRateLimit  ErrorCode = "rate_limited"
	ErrorCodePanic      ErrorCode = "panic"
	ErrorCodeSocket     ErrorCode = "socket"
)

// =============================================================================
// Helper Methods
// =============================================================================

// RecordResponse records one answered chat request.
func (m *CoachMetrics) RecordResponse(source string, level int, intent string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.ResponsesTotal.WithLabelValues(source, strconv.Itoa(level), intent).Inc()
	m.ResponseDurationSeconds.WithLabelValues(source).Observe(elapsed.Seconds())
}

// AttemptFinished records one completion attempt. It satisfies the
// gateway observer contract.
func (m *CoachMetrics) AttemptFinished(outcome string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.LLMAttemptsTotal.WithLabelValues(outcome).Inc()
	m.LLMAttemptDurationSeconds.WithLabelValues(outcome).Observe(elapsed.Seconds())
}

// BreakerChanged counts breaker trips. opened is true only on the
// failure that (re)opened the breaker; state gauges come from
// WatchBreaker.
func (m *CoachMetrics) BreakerChanged(opened bool, _ int) {
	if m == nil || !opened {
		return
	}
	m.BreakerTripsTotal.Inc()
}

// RecordVerdict records a label validation and its issues.
func (m *CoachMetrics) RecordVerdict(pass, degraded bool, ruleIDs []string) {
	if m == nil {
		return
	}
	result := "pass"
	if !pass {
		result = "fail"
	}
	m.LintVerdictsTotal.WithLabelValues(result, strconv.FormatBool(degraded)).Inc()
	for _, id := range ruleIDs {
		m.LintIssuesTotal.WithLabelValues(id).Inc()
	}
}

// RecordLookup records which taxonomy tier resolved a context.
func (m *CoachMetrics) RecordLookup(tier string) {
	if m == nil {
		return
	}
	m.TaxonomyLookupsTotal.WithLabelValues(tier).Inc()
}

// RecordError records a request error.
func (m *CoachMetrics) RecordError(endpoint string, code ErrorCode) {
	if m == nil {
		return
	}
	m.ErrorsTotal.WithLabelValues(endpoint, string(code)).Inc()
}

// SocketOpened increments the websocket gauge.
func (m *CoachMetrics) SocketOpened() {
	if m == nil {
		return
	}
	m.ActiveSockets.Inc()
}

// SocketClosed decrements the websocket gauge.
func (m *CoachMetrics) SocketClosed() {
	if m == nil {
		return
	}
	m.ActiveSockets.Dec()
}
