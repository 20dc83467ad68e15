// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/flowcoach/services/orchestrator/datatypes"
	"github.com/AleutianAI/flowcoach/services/orchestrator/observability"
)

// =============================================================================
// Test Setup
// =============================================================================

func init() {
	gin.SetMode(gin.TestMode)
}

func serve(router *gin.Engine, header string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/x", nil)
	if header != "" {
		req.Header.Set(RequestIDHeader, header)
	}
	router.ServeHTTP(w, req)
	return w
}

// =============================================================================
// RequestID Tests
// =============================================================================

func TestRequestID_Assigned(t *testing.T) {
	// Arrange
	router := gin.New()
	router.Use(RequestID())
	var seen string
	router.GET("/api/x", func(c *gin.Context) { seen = GetRequestID(c) })

	// Act
	w := serve(router, "")

	// Assert
	assert.Len(t, seen, 36)
	assert.Equal(t, seen, w.Header().Get(RequestIDHeader))
}

func TestRequestID_Propagated(t *testing.T) {
	router := gin.New()
	router.Use(RequestID())
	router.GET("/api/x", func(c *gin.Context) {})

	w := serve(router, "client-123")

	assert.Equal(t, "client-123", w.Header().Get(RequestIDHeader))
}

func TestRequestID_OversizedIsReplaced(t *testing.T) {
	router := gin.New()
	router.Use(RequestID())
	router.GET("/api/x", func(c *gin.Context) {})

	w := serve(router, strings.Repeat("a", maxRequestIDLen+1))

	assert.Len(t, w.Header().Get(RequestIDHeader), 36)
}

func TestGetRequestID_Missing(t *testing.T) {
	c, _ := gin.CreateTestContext(httptest.NewRecorder())

	assert.Empty(t, GetRequestID(c))
}

// =============================================================================
// RateLimit Tests
// =============================================================================

func TestRateLimit_RejectsAfterBurst(t *testing.T) {
	// Arrange
	reg := prometheus.NewRegistry()
	metrics := observability.NewCoachMetrics(reg)
	router := gin.New()
	router.Use(RateLimit(0.001, 2, metrics))
	router.GET("/api/x", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	// Act
	codes := []int{serve(router, "").Code, serve(router, "").Code}
	w := serve(router, "")

	// Assert
	assert.Equal(t, []int{http.StatusNoContent, http.StatusNoContent}, codes)
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	var body datatypes.ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "too many requests", body.Error)
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.ErrorsTotal.WithLabelValues("/api/x", "rate_limited")))
}

func TestRateLimit_DisabledWithZeroRate(t *testing.T) {
	router := gin.New()
	router.Use(RateLimit(0, 0, nil))
	router.GET("/api/x", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	for i := 0; i < 20; i++ {
		require.Equal(t, http.StatusNoContent, serve(router, "").Code)
	}
}

// =============================================================================
// Recover Tests
// =============================================================================

func TestRecover_PanicBecomesApology(t *testing.T) {
	// Arrange
	router := gin.New()
	router.Use(RequestID(), Recover(nil, nil))
	router.GET("/api/x", func(c *gin.Context) { panic("nil map") })

	// Act
	w := serve(router, "req-1")

	// Assert
	assert.Equal(t, http.StatusOK, w.Code)
	var resp datatypes.NormalizedResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "잠시 문제가 발생했어요. 다시 시도해주세요.", resp.Speech)
	assert.Equal(t, datatypes.SourceNone, resp.Source)
	assert.Equal(t, 3, resp.FallbackLevel)
	assert.Equal(t, "req-1", resp.RequestID)
}
