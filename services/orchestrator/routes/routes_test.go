// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package routes

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/AleutianAI/flowcoach/services/orchestrator/coach"
	"github.com/AleutianAI/flowcoach/services/orchestrator/datatypes"
	"github.com/AleutianAI/flowcoach/services/orchestrator/middleware"
	"github.com/AleutianAI/flowcoach/services/orchestrator/observability"
)

// ============================================================================
// Test Setup
// ============================================================================

func init() {
	// Set Gin to test mode to reduce noise in test output
	gin.SetMode(gin.TestMode)
}

func newRouter(opts Options) (*gin.Engine, *coach.Orchestrator) {
	router := gin.New()
	svc := coach.New(nil, coach.DefaultConfig(), coach.WithMetrics(opts.Metrics))
	SetupRoutes(router, svc, opts)
	return router, svc
}

// panicCoach blows up on every status read.
type panicCoach struct{ *coach.Orchestrator }

func (panicCoach) Status() datatypes.ChainStatus { panic("status exploded") }

// ============================================================================
// SetupRoutes Tests
// ============================================================================

func TestSetupRoutes_RegistersCoachAPI(t *testing.T) {
	reg := prometheus.NewRegistry()
	router, _ := newRouter(Options{Gatherer: reg})

	expected := []struct {
		method string
		path   string
	}{
		{"GET", "/metrics"},
		{"POST", "/api/chat"},
		{"GET", "/api/chat/ws"},
		{"GET", "/api/chat/chain-status"},
		{"POST", "/api/review"},
		{"POST", "/api/validate-l7"},
		{"POST", "/api/contextual-suggest"},
		{"POST", "/api/first-shape-welcome"},
		{"POST", "/api/analyze-pdd"},
		{"GET", "/api/health"},
	}

	routes := router.Routes()
	for _, e := range expected {
		found := false
		for _, r := range routes {
			if r.Method == e.method && r.Path == e.path {
				found = true
				break
			}
		}
		if !found {
			t.Errorf("Expected route %s %s not found", e.method, e.path)
		}
	}
}

func TestSetupRoutes_NoGathererNoMetricsRoute(t *testing.T) {
	router, _ := newRouter(Options{})

	for _, r := range router.Routes() {
		if r.Path == "/metrics" {
			t.Error("/metrics should not be registered without a gatherer")
		}
	}
}

// ============================================================================
// Route Handler Tests
// ============================================================================

func TestSetupRoutes_HealthEndpoint(t *testing.T) {
	router, _ := newRouter(Options{})

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/api/health", nil)
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("Health endpoint returned %d, want %d", w.Code, http.StatusOK)
	}
	if w.Header().Get(middleware.RequestIDHeader) == "" {
		t.Error("API responses should carry a request id header")
	}
	var health datatypes.HealthResponse
	if err := json.Unmarshal(w.Body.Bytes(), &health); err != nil {
		t.Fatalf("health body: %v", err)
	}
	if health.Version != coach.Version {
		t.Errorf("version = %q, want %q", health.Version, coach.Version)
	}
}

func TestSetupRoutes_ChatRecordsMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics := observability.NewCoachMetrics(reg)
	router, _ := newRouter(Options{Metrics: metrics, Gatherer: reg})

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("POST", "/api/chat", bytes.NewBufferString(`{"message":"시작은?"}`))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("chat returned %d: %s", w.Code, w.Body.String())
	}

	w = httptest.NewRecorder()
	req, _ = http.NewRequest("GET", "/metrics", nil)
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("Metrics endpoint returned %d, want %d", w.Code, http.StatusOK)
	}
	if !strings.Contains(w.Body.String(), "flowcoach_chain_responses_total") {
		t.Errorf("metrics output missing responses counter:\n%s", w.Body.String())
	}
}

func TestSetupRoutes_RateLimited(t *testing.T) {
	router, _ := newRouter(Options{RateLimitRPS: 0.001, RateLimitBurst: 1})

	codes := make([]int, 2)
	for i := range codes {
		w := httptest.NewRecorder()
		req, _ := http.NewRequest("GET", "/api/chat/chain-status", nil)
		router.ServeHTTP(w, req)
		codes[i] = w.Code
	}

	if codes[0] != http.StatusOK {
		t.Errorf("first request = %d, want 200", codes[0])
	}
	if codes[1] != http.StatusTooManyRequests {
		t.Errorf("second request = %d, want 429", codes[1])
	}
}

func TestSetupRoutes_PanicBecomesApology(t *testing.T) {
	router := gin.New()
	SetupRoutes(router, panicCoach{coach.New(nil, coach.DefaultConfig())}, Options{})

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/api/chat/chain-status", nil)
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("panic returned %d, want 200", w.Code)
	}
	var resp datatypes.NormalizedResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("apology body: %v", err)
	}
	if resp.Source != datatypes.SourceNone || resp.FallbackLevel != 3 {
		t.Errorf("source/level = %s/%d, want none/3", resp.Source, resp.FallbackLevel)
	}
	if resp.RequestID == "" {
		t.Error("apology should carry the request id")
	}
}
