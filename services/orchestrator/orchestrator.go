// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package orchestrator assembles the FlowCoach HTTP service.
//
// It wires configuration into the coaching chain (gateway, breaker,
// rules and static tiers), tracing, Prometheus metrics and the Gin
// router, and owns the server lifecycle.
//
// # Usage
//
//	cfg, err := config.Load("")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	svc, err := orchestrator.New(cfg, logger.Slog())
//	if err != nil {
//	    log.Fatal(err)
//	}
//	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
//	defer stop()
//	err = svc.Run(ctx)
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/AleutianAI/flowcoach/services/llm"
	"github.com/AleutianAI/flowcoach/services/orchestrator/coach"
	"github.com/AleutianAI/flowcoach/services/orchestrator/config"
	"github.com/AleutianAI/flowcoach/services/orchestrator/observability"
	"github.com/AleutianAI/flowcoach/services/orchestrator/routes"
)

// shutdownGrace bounds the drain of in-flight requests on shutdown.
const shutdownGrace = 10 * time.Second

// =============================================================================
// Interface Definition
// =============================================================================

// Service defines the contract for the coach service.
//
// # Description
//
// Service abstracts the server lifecycle so the CLI and tests can drive
// it without knowing how the chain is assembled.
//
// # Thread Safety
//
// Run blocks and should only be called once per instance. Router is safe
// to call at any time.
type Service interface {
	// Run serves HTTP until ctx is cancelled or the listener fails.
	//
	// # Description
	//
	// Cancellation triggers a graceful shutdown bounded by shutdownGrace,
	// after which the tracer is flushed. A clean shutdown returns nil.
	Run(ctx context.Context) error

	// Router returns the configured Gin engine, mainly for tests.
	Router() *gin.Engine
}

// =============================================================================
// Implementation
// =============================================================================

// service implements Service for production use.
//
// # Fields
//
//   - config: Validated configuration
//   - logger: Process logger
//   - router: Gin HTTP engine
//   - coach: The coaching chain
//   - metrics: Prometheus collectors (nil when metrics are disabled)
//   - registry: Registry behind /metrics (nil when metrics are disabled)
//   - tracerCleanup: Flushes and stops the tracer provider
type service struct {
	config        config.Config
	logger        *slog.Logger
	router        *gin.Engine
	coach         *coach.Orchestrator
	metrics       *observability.CoachMetrics
	registry      *prometheus.Registry
	tracerCleanup func(context.Context)
}

// =============================================================================
// Constructor
// =============================================================================

// New creates the coach Service.
//
// # Description
//
// New initializes all components in order:
//  1. Tracing, per cfg.Telemetry.Exporter
//  2. A private Prometheus registry, when metrics are enabled
//  3. The LLM gateway, only when the resolved mode is live
//  4. The coaching chain
//  5. The Gin router
//
// # Inputs
//
//   - cfg: Configuration, normally from config.Load. It is validated
//     again here.
//   - logger: Process logger. Nil uses slog.Default().
//
// # Outputs
//
//   - Service: Ready to Run
//   - error: Invalid configuration or tracer setup failure
func New(cfg config.Config, logger *slog.Logger) (Service, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}
	s := &service{config: cfg, logger: logger}

	cleanup, err := s.initTracer()
	if err != nil {
		return nil, fmt.Errorf("failed to initialize tracer: %w", err)
	}
	s.tracerCleanup = cleanup

	if cfg.Telemetry.MetricsEnabled {
		s.initMetrics()
	}

	gateway, err := s.initGateway()
	if err != nil {
		s.cleanup()
		return nil, fmt.Errorf("failed to initialize LLM gateway: %w", err)
	}

	s.coach = coach.New(gateway, coach.Config{
		ChainEnabled:  cfg.Chain.Enabled,
		RulesEnabled:  cfg.Chain.RulesEnabled,
		StaticEnabled: cfg.Chain.StaticEnabled,
	}, coach.WithMetrics(s.metrics), coach.WithLogger(logger))

	s.initRouter()

	logger.Info("coach service initialized",
		"mode", s.coach.Mode(),
		"chain_enabled", cfg.Chain.Enabled,
		"rules_enabled", cfg.Chain.RulesEnabled,
		"static_enabled", cfg.Chain.StaticEnabled,
		"metrics_enabled", cfg.Telemetry.MetricsEnabled,
		"trace_exporter", cfg.Telemetry.Exporter,
	)
	return s, nil
}

// =============================================================================
// Service Interface Methods
// =============================================================================

// Run starts the HTTP server and blocks until ctx is done or it fails.
func (s *service) Run(ctx context.Context) error {
	defer s.cleanup()

	srv := &http.Server{
		Addr:              net.JoinHostPort("", strconv.Itoa(s.config.Server.Port)),
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      s.config.Server.RequestTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("Starting coach server", "port", s.config.Server.Port)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	s.logger.Info("Shutting down coach server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown: %w", err)
	}
	return nil
}

// Router returns the underlying Gin engine for testing.
func (s *service) Router() *gin.Engine {
	return s.router
}

// =============================================================================
// Private Initialization Methods
// =============================================================================

// initTracer initializes OpenTelemetry distributed tracing.
//
// # Description
//
// "otlp" exports over an insecure gRPC connection to the configured
// collector, "stdout" pretty-prints spans, and "none" leaves the global
// no-op provider in place.
//
// # Outputs
//
//   - func(context.Context): Flushes and stops the provider. Never nil.
//   - error: Non-nil if exporter setup fails
//
// # Limitations
//
//   - Uses insecure gRPC (appropriate for internal networks)
func (s *service) initTracer() (func(context.Context), error) {
	ctx := context.Background()
	telemetry := s.config.Telemetry

	var exporter sdktrace.SpanExporter
	switch telemetry.Exporter {
	case "otlp":
		conn, err := grpc.NewClient(telemetry.OTelEndpoint,
			grpc.WithTransportCredentials(insecure.NewCredentials()))
		if err != nil {
			return nil, fmt.Errorf("failed to create gRPC connection: %w", err)
		}
		exporter, err = otlptracegrpc.New(ctx, otlptracegrpc.WithGRPCConn(conn))
		if err != nil {
			return nil, fmt.Errorf("failed to create trace exporter: %w", err)
		}
	case "stdout":
		var err error
		exporter, err = stdouttrace.New(stdouttrace.WithPrettyPrint())
		if err != nil {
			return nil, fmt.Errorf("failed to create trace exporter: %w", err)
		}
	default:
		return func(context.Context) {}, nil
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(semconv.ServiceNameKey.String(telemetry.ServiceName)))
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}

	bsp := sdktrace.NewBatchSpanProcessor(exporter)
	traceProvider := sdktrace.NewTracerProvider(
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
		sdktrace.WithResource(res),
		sdktrace.WithSpanProcessor(bsp))

	otel.SetTracerProvider(traceProvider)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{}, propagation.Baggage{}))

	cleanup := func(ctx context.Context) {
		ctx, cancel := context.WithTimeout(ctx, time.Second*5)
		defer cancel()
		if err := traceProvider.Shutdown(ctx); err != nil {
			s.logger.Error("failed to shutdown tracer provider", "error", err)
		}
	}
	return cleanup, nil
}

// initMetrics creates a private registry with the coach collectors plus
// the Go runtime and process collectors.
func (s *service) initMetrics() {
	s.registry = prometheus.NewRegistry()
	s.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	s.metrics = observability.NewCoachMetrics(s.registry)
	s.logger.Info("Initialized Prometheus metrics")
}

// initGateway builds the guarded completion gateway. It returns a nil
// gateway in mock mode, which puts the chain in rules/static only.
func (s *service) initGateway() (*llm.Gateway, error) {
	cfg := s.config
	if cfg.LLM.ResolvedMode() != config.ModeLive {
		s.logger.Info("LLM endpoint not configured, running in mock mode")
		return nil, nil
	}

	client, err := llm.NewOpenAIClient(llm.OpenAIConfig{
		BaseURL:      cfg.LLM.BaseURL,
		Model:        cfg.LLM.Model,
		APIKey:       cfg.LLM.APIKey,
		APIKeyHeader: cfg.LLM.APIKeyHeader,
	}, s.logger)
	if err != nil {
		return nil, err
	}

	breaker := llm.NewCircuitBreaker(llm.BreakerConfig{
		FailThreshold: cfg.Breaker.FailThreshold,
		Cooldown:      cfg.Breaker.Cooldown,
	})

	opts := []llm.GatewayOption{llm.WithLogger(s.logger)}
	if s.metrics != nil {
		opts = append(opts, llm.WithObserver(s.metrics))
		s.metrics.WatchBreaker(breaker)
	}

	s.logger.Info("Using OpenAI-compatible LLM endpoint",
		"base_url", cfg.LLM.BaseURL,
		"model", cfg.LLM.Model,
		"api_key_set", cfg.LLM.APIKey != "",
	)
	return llm.NewGateway(client, breaker, llm.GatewayConfig{
		Temperature:    cfg.LLM.Temperature,
		MaxTokens:      cfg.LLM.MaxTokens,
		MaxAttempts:    cfg.LLM.MaxAttempts,
		AttemptTimeout: cfg.LLM.AttemptTimeout,
		BaseBackoff:    cfg.LLM.BaseBackoff,
		ProbeTTL:       cfg.LLM.ProbeTTL,
	}, opts...), nil
}

// initRouter creates the Gin engine and registers all routes.
func (s *service) initRouter() {
	gin.SetMode(s.config.Server.GinMode)
	s.router = gin.New()
	s.router.Use(gin.Recovery())
	s.router.Use(otelgin.Middleware(s.config.Telemetry.ServiceName))

	opts := routes.Options{
		Metrics:        s.metrics,
		Logger:         s.logger,
		RateLimitRPS:   s.config.Server.RateLimitRPS,
		RateLimitBurst: s.config.Server.RateLimitBurst,
	}
	if s.registry != nil {
		opts.Gatherer = s.registry
	}
	routes.SetupRoutes(s.router, s.coach, opts)
}

// cleanup releases resources held by the service.
func (s *service) cleanup() {
	if s.tracerCleanup != nil {
		s.tracerCleanup(context.Background())
	}
}

// =============================================================================
// Compile-time Interface Compliance
// =============================================================================

var _ Service = (*service)(nil)
