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
	"testing"
	"time"
)

// fakeClock is a settable clock shared by breaker and gateway tests.
type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

func TestDefaultBreakerConfig(t *testing.T) {
	cfg := DefaultBreakerConfig()
	if cfg.FailThreshold != 3 {
		t.Errorf("FailThreshold = %d, want 3", cfg.FailThreshold)
	}
	if cfg.Cooldown != 90*time.Second {
		t.Errorf("Cooldown = %v, want 90s", cfg.Cooldown)
	}
}

func TestNewCircuitBreaker_ZeroConfigUsesDefaults(t *testing.T) {
	cb := NewCircuitBreaker(BreakerConfig{})
	if cb.config != DefaultBreakerConfig() {
		t.Errorf("config = %+v, want defaults", cb.config)
	}
}

func TestCircuitBreaker_OpensAtThreshold(t *testing.T) {
	clock := newFakeClock()
	cb := NewCircuitBreaker(BreakerConfig{FailThreshold: 3, Cooldown: time.Minute}, WithClock(clock.Now))

	if cb.RecordFailure() || cb.RecordFailure() {
		t.Fatal("breaker opened before threshold")
	}
	if !cb.Allow() {
		t.Fatal("Allow() = false below threshold")
	}
	if !cb.RecordFailure() {
		t.Fatal("third failure did not open the breaker")
	}
	if cb.Allow() {
		t.Error("Allow() = true while open")
	}
	if got := cb.CooldownLeft(); got != time.Minute {
		t.Errorf("CooldownLeft() = %v, want 1m", got)
	}

	clock.Advance(30 * time.Second)
	if !cb.Open() {
		t.Error("breaker closed before cooldown elapsed")
	}

	clock.Advance(30 * time.Second)
	if cb.Open() {
		t.Error("breaker still open after cooldown")
	}
	if !cb.Allow() {
		t.Error("Allow() = false after cooldown")
	}
}

func TestCircuitBreaker_FailureAfterCooldownReopens(t *testing.T) {
	clock := newFakeClock()
	cb := NewCircuitBreaker(BreakerConfig{FailThreshold: 2, Cooldown: time.Minute}, WithClock(clock.Now))
	cb.RecordFailure()
	cb.RecordFailure()

	clock.Advance(2 * time.Minute)
	if !cb.RecordFailure() {
		t.Error("one failure after cooldown should reopen the breaker")
	}
	if cb.Failures() != 3 {
		t.Errorf("Failures() = %d, want 3", cb.Failures())
	}
}

func TestCircuitBreaker_SuccessResets(t *testing.T) {
	clock := newFakeClock()
	cb := NewCircuitBreaker(BreakerConfig{FailThreshold: 2, Cooldown: time.Minute}, WithClock(clock.Now))
	cb.RecordFailure()
	cb.RecordFailure()

	cb.RecordSuccess()

	if cb.Failures() != 0 {
		t.Errorf("Failures() = %d, want 0", cb.Failures())
	}
	if cb.Open() {
		t.Error("success did not clear the cooldown")
	}
	if cb.CooldownLeft() != 0 {
		t.Errorf("CooldownLeft() = %v, want 0", cb.CooldownLeft())
	}
}

func TestCircuitBreaker_Stats(t *testing.T) {
	clock := newFakeClock()
	cb := NewCircuitBreaker(BreakerConfig{FailThreshold: 1, Cooldown: 10 * time.Second}, WithClock(clock.Now))
	cb.RecordSuccess()
	cb.RecordFailure()
	cb.Allow()
	cb.Allow()

	stats := cb.Stats()
	if stats.State != "open" {
		t.Errorf("State = %s, want open", stats.State)
	}
	if stats.TotalRejections != 2 {
		t.Errorf("TotalRejections = %d, want 2", stats.TotalRejections)
	}
	if stats.TotalSuccesses != 1 || stats.TotalFailures != 1 {
		t.Errorf("totals = %d/%d, want 1/1", stats.TotalSuccesses, stats.TotalFailures)
	}
	if stats.CooldownLeftSec != 10 {
		t.Errorf("CooldownLeftSec = %v, want 10", stats.CooldownLeftSec)
	}
}

func TestCircuitBreaker_ConcurrentFailures(t *testing.T) {
	cb := NewCircuitBreaker(BreakerConfig{FailThreshold: 1000, Cooldown: time.Minute})

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 10; j++ {
				cb.RecordFailure()
			}
		}()
	}
	wg.Wait()

	if got := cb.Failures(); got != 500 {
		t.Errorf("Failures() = %d, want 500", got)
	}
}
