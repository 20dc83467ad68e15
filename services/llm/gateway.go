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
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/singleflight"
)

// =============================================================================
// Configuration
// =============================================================================

// GatewayConfig holds sampling and retry settings.
type GatewayConfig struct {
	Temperature float32
	MaxTokens   int

	// MaxAttempts caps calls per Generate (default: 3).
	MaxAttempts int

	// AttemptTimeout bounds each call regardless of the caller's deadline
	// (default: 60s).
	AttemptTimeout time.Duration

	// BaseBackoff is the wait before the second attempt; it doubles for
	// each later attempt (default: 1s).
	BaseBackoff time.Duration

	// ProbeTTL is how long a health probe result is cached (default: 300s).
	ProbeTTL time.Duration

	// ProbeTimeout bounds a single health probe (default: 5s).
	ProbeTimeout time.Duration
}

// DefaultGatewayConfig returns the production defaults.
func DefaultGatewayConfig() GatewayConfig {
	return GatewayConfig{
		Temperature:    0.7,
		MaxTokens:      2000,
		MaxAttempts:    3,
		AttemptTimeout: 60 * time.Second,
		BaseBackoff:    time.Second,
		ProbeTTL:       300 * time.Second,
		ProbeTimeout:   5 * time.Second,
	}
}

func (c GatewayConfig) withDefaults() GatewayConfig {
	def := DefaultGatewayConfig()
	if c.MaxTokens <= 0 {
		c.MaxTokens = def.MaxTokens
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = def.MaxAttempts
	}
	if c.AttemptTimeout <= 0 {
		c.AttemptTimeout = def.AttemptTimeout
	}
	if c.BaseBackoff <= 0 {
		c.BaseBackoff = def.BaseBackoff
	}
	if c.ProbeTTL <= 0 {
		c.ProbeTTL = def.ProbeTTL
	}
	if c.ProbeTimeout <= 0 {
		c.ProbeTimeout = def.ProbeTimeout
	}
	return c
}

// GenerateOptions tunes one Generate call.
type GenerateOptions struct {
	// AllowTextFallback wraps non-JSON text as a speech-only payload.
	AllowTextFallback bool

	// Accept decides whether a parsed payload counts as a success. Nil
	// accepts any non-empty payload.
	Accept func(Payload) bool

	// BypassBreaker makes one call outside breaker gating and accounting.
	BypassBreaker bool
}

// Observer receives gateway events, typically for metrics.
type Observer interface {
	// AttemptFinished is called once per network attempt.
	AttemptFinished(outcome string, elapsed time.Duration)
	// BreakerChanged is called after every recorded outcome.
	BreakerChanged(open bool, failures int)
}

type nopObserver struct{}

func (nopObserver) AttemptFinished(string, time.Duration) {}
func (nopObserver) BreakerChanged(bool, int)              {}

// =============================================================================
// Gateway
// =============================================================================

// Gateway is the breaker-guarded entry point to the completion endpoint.
//
// Thread Safety: Safe for concurrent use. The breaker is the only shared
// mutable state besides the probe cache.
type Gateway struct {
	client   ChatClient
	breaker  *CircuitBreaker
	config   GatewayConfig
	logger   *slog.Logger
	observer Observer
	sleep    func(ctx context.Context, d time.Duration) error
	now      func() time.Time

	probeGroup singleflight.Group
	probeMu    sync.Mutex
	probeAt    time.Time
	probeOK    bool
}

// GatewayOption customizes a Gateway.
type GatewayOption func(*Gateway)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) GatewayOption {
	return func(g *Gateway) {
		if l != nil {
			g.logger = l
		}
	}
}

// WithObserver sets the event observer.
func WithObserver(o Observer) GatewayOption {
	return func(g *Gateway) {
		if o != nil {
			g.observer = o
		}
	}
}

// WithSleep replaces the backoff wait, for tests.
func WithSleep(sleep func(ctx context.Context, d time.Duration) error) GatewayOption {
	return func(g *Gateway) { g.sleep = sleep }
}

// WithProbeClock replaces time.Now for probe caching, for tests.
func WithProbeClock(now func() time.Time) GatewayOption {
	return func(g *Gateway) { g.now = now }
}

// NewGateway wires a client to an injected breaker.
func NewGateway(client ChatClient, breaker *CircuitBreaker, config GatewayConfig, opts ...GatewayOption) *Gateway {
	if breaker == nil {
		breaker = NewCircuitBreaker(DefaultBreakerConfig())
	}
	g := &Gateway{
		client:   client,
		breaker:  breaker,
		config:   config.withDefaults(),
		logger:   slog.Default(),
		observer: nopObserver{},
		sleep:    sleepContext,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Breaker exposes the injected breaker for status reporting.
func (g *Gateway) Breaker() *CircuitBreaker {
	return g.breaker
}

// Available reports whether Generate would attempt a call.
func (g *Gateway) Available() bool {
	return !g.breaker.Open()
}

// Generate runs one guarded completion and returns the decoded payload.
//
// Description:
//
//	Fails fast with ErrCircuitOpen while the breaker is open. Otherwise it
//	makes up to MaxAttempts calls, each under its own AttemptTimeout, with
//	doubling backoff between them. The outcome of the whole call is
//	recorded once on the breaker: an accepted payload is a success; an
//	error, an unusable payload or a cancelled context is a failure.
//
// Inputs:
//
//	ctx - Caller context. Cancellation aborts the attempt and the backoff.
//	system - System instruction.
//	user - User content.
//	opts - Per-call options.
//
// Outputs:
//
//	Payload - Decoded object, nil on error.
//	error - ErrCircuitOpen, ErrUnusablePayload, or the last attempt error.
func (g *Gateway) Generate(ctx context.Context, system, user string, opts GenerateOptions) (Payload, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, span := otel.Tracer("llm").Start(ctx, "llm.Gateway.Generate",
		trace.WithAttributes(
			attribute.Int("prompt_length", len(system)+len(user)),
			attribute.Bool("bypass_breaker", opts.BypassBreaker),
		),
	)
	defer span.End()

	if !opts.BypassBreaker && !g.breaker.Allow() {
		span.SetAttributes(attribute.Bool("circuit_open", true))
		return nil, ErrCircuitOpen
	}

	payload, err := g.attempt(ctx, system, user, opts.AllowTextFallback)
	if err == nil && !accept(opts.Accept, payload) {
		err = ErrUnusablePayload
	}

	if opts.BypassBreaker {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return nil, err
		}
		return payload, nil
	}

	if err != nil {
		opened := g.breaker.RecordFailure()
		failures := g.breaker.Failures()
		g.observer.BreakerChanged(opened, failures)
		if opened {
			g.logger.Warn("LLM circuit opened", "failures", failures, "cooldown", g.breaker.CooldownLeft())
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	g.breaker.RecordSuccess()
	g.observer.BreakerChanged(false, 0)
	return payload, nil
}

func accept(fn func(Payload) bool, p Payload) bool {
	if fn != nil {
		return fn(p)
	}
	return len(p) > 0
}

// attempt runs the retry loop.
func (g *Gateway) attempt(ctx context.Context, system, user string, allowText bool) (Payload, error) {
	temp := g.config.Temperature
	maxTokens := g.config.MaxTokens
	params := GenerationParams{Temperature: &temp, MaxTokens: &maxTokens}

	var lastErr error
	for i := 0; i < g.config.MaxAttempts; i++ {
		if i > 0 {
			wait := g.config.BaseBackoff << (i - 1)
			if err := g.sleep(ctx, wait); err != nil {
				return nil, fmt.Errorf("backoff after attempt %d: %w", i, err)
			}
		}

		start := time.Now()
		attemptCtx, cancel := context.WithTimeout(ctx, g.config.AttemptTimeout)
		text, err := g.client.Complete(attemptCtx, system, user, params)
		cancel()

		var payload Payload
		if err == nil {
			payload, err = ParsePayload(text, allowText)
		}
		if err == nil {
			g.observer.AttemptFinished("ok", time.Since(start))
			return payload, nil
		}

		g.observer.AttemptFinished(attemptOutcome(err), time.Since(start))
		g.logger.Warn("LLM attempt failed", "attempt", i+1, "max_attempts", g.config.MaxAttempts, "error", err)
		lastErr = err

		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, fmt.Errorf("attempt %d: %w", i+1, ctxErr)
		}
	}
	return nil, lastErr
}

func attemptOutcome(err error) string {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case errors.Is(err, context.Canceled):
		return "canceled"
	case errors.Is(err, ErrEmptyCompletion):
		return "empty"
	case errors.Is(err, ErrMalformedPayload):
		return "malformed"
	default:
		return "error"
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// =============================================================================
// Health Probe
// =============================================================================

// Probe reports whether the endpoint lists models.
//
// Results are cached for ProbeTTL and concurrent probes share one
// request. The probe never touches the breaker.
func (g *Gateway) Probe(ctx context.Context) bool {
	g.probeMu.Lock()
	if !g.probeAt.IsZero() && g.now().Sub(g.probeAt) < g.config.ProbeTTL {
		ok := g.probeOK
		g.probeMu.Unlock()
		return ok
	}
	g.probeMu.Unlock()

	v, _, _ := g.probeGroup.Do("probe", func() (any, error) {
		probeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), g.config.ProbeTimeout)
		defer cancel()
		models, err := g.client.Models(probeCtx)
		ok := err == nil
		if err != nil {
			g.logger.Warn("LLM probe failed", "error", err)
		} else {
			g.logger.Debug("LLM probe ok", "models", strings.Join(models, ","))
		}

		g.probeMu.Lock()
		g.probeOK = ok
		g.probeAt = g.now()
		g.probeMu.Unlock()
		return ok, nil
	})
	ok, _ := v.(bool)
	return ok
}
