// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package llm

import (
	"sync"
	"time"
)

// BreakerConfig configures the circuit breaker.
type BreakerConfig struct {
	// FailThreshold is the number of consecutive failures that opens the
	// breaker (default: 3).
	FailThreshold int

	// Cooldown is how long the breaker stays open (default: 90s).
	Cooldown time.Duration
}

// DefaultBreakerConfig returns the production defaults.
func DefaultBreakerConfig() BreakerConfig {
	return BreakerConfig{
		FailThreshold: 3,
		Cooldown:      90 * time.Second,
	}
}

// BreakerStats is a point-in-time view of the breaker.
type BreakerStats struct {
	State           string  `json:"state"`
	Failures        int     `json:"failures"`
	CooldownLeftSec float64 `json:"cooldown_left_sec"`
	TotalFailures   int64   `json:"total_failures"`
	TotalSuccesses  int64   `json:"total_successes"`
	TotalRejections int64   `json:"total_rejections"`
}

// CircuitBreaker counts consecutive failures of the completion endpoint
// and blocks calls for a cooldown once the threshold is reached.
//
// There is no half-open state. When the cooldown expires calls are
// allowed again, but the failure count is kept, so a single further
// failure reopens the breaker. Only a success resets it.
//
// Thread Safety: Safe for concurrent use.
type CircuitBreaker struct {
	config BreakerConfig
	now    func() time.Time

	mu        sync.Mutex
	failures  int
	openUntil time.Time

	totalFailures   int64
	totalSuccesses  int64
	totalRejections int64
}

// BreakerOption customizes a CircuitBreaker.
type BreakerOption func(*CircuitBreaker)

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) BreakerOption {
	return func(cb *CircuitBreaker) { cb.now = now }
}

// NewCircuitBreaker creates a closed breaker. Non-positive config values
// fall back to DefaultBreakerConfig.
func NewCircuitBreaker(config BreakerConfig, opts ...BreakerOption) *CircuitBreaker {
	def := DefaultBreakerConfig()
	if config.FailThreshold <= 0 {
		config.FailThreshold = def.FailThreshold
	}
	if config.Cooldown <= 0 {
		config.Cooldown = def.Cooldown
	}
	cb := &CircuitBreaker{config: config, now: time.Now}
	for _, opt := range opts {
		opt(cb)
	}
	return cb
}

// Allow reports whether a call may proceed and counts a rejection if not.
func (cb *CircuitBreaker) Allow() bool {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	if cb.openLocked() {
		cb.totalRejections++
		return false
	}
	return true
}

// Open reports whether the breaker is cooling down, without side effects.
func (cb *CircuitBreaker) Open() bool {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.openLocked()
}

func (cb *CircuitBreaker) openLocked() bool {
	return cb.now().Before(cb.openUntil)
}

// RecordSuccess resets the failure count and clears any cooldown.
func (cb *CircuitBreaker) RecordSuccess() {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.failures = 0
	cb.openUntil = time.Time{}
	cb.totalSuccesses++
}

// RecordFailure counts a failure and opens the breaker once the threshold
// is reached.
//
// Outputs:
//   - bool: True if this failure (re)opened the breaker.
func (cb *CircuitBreaker) RecordFailure() bool {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.failures++
	cb.totalFailures++
	if cb.failures >= cb.config.FailThreshold {
		cb.openUntil = cb.now().Add(cb.config.Cooldown)
		return true
	}
	return false
}

// Failures returns the current consecutive failure count.
func (cb *CircuitBreaker) Failures() int {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.failures
}

// CooldownLeft returns the remaining cooldown, or zero when closed.
func (cb *CircuitBreaker) CooldownLeft() time.Duration {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	if left := cb.openUntil.Sub(cb.now()); left > 0 {
		return left
	}
	return 0
}

// Stats returns breaker statistics.
func (cb *CircuitBreaker) Stats() BreakerStats {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	state := "closed"
	left := cb.openUntil.Sub(cb.now())
	if left > 0 {
		state = "open"
	} else {
		left = 0
	}
	return BreakerStats{
		State:           state,
		Failures:        cb.failures,
		CooldownLeftSec: left.Seconds(),
		TotalFailures:   cb.totalFailures,
		TotalSuccesses:  cb.totalSuccesses,
		TotalRejections: cb.totalRejections,
	}
}
