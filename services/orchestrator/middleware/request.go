// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package middleware provides the HTTP middleware for the coach API.
//
// # Request Flow
//
//	Request
//	   │
//	   ▼
//	RequestID ──► assigns or propagates X-Request-ID
//	   │
//	   ▼
//	RateLimit ──► 429 when the token bucket is empty
//	   │
//	   ▼
//	Recover ────► panics become the apology response
//	   │
//	   ▼
//	Handler
package middleware

import (
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/AleutianAI/flowcoach/services/orchestrator/coach"
	"github.com/AleutianAI/flowcoach/services/orchestrator/datatypes"
	"github.com/AleutianAI/flowcoach/services/orchestrator/observability"
)

// =============================================================================
// Context Keys
// =============================================================================

// requestIDKey is the gin context key for the request id.
const requestIDKey = "flowcoach_request_id"

// RequestIDHeader carries the request id in both directions.
const RequestIDHeader = "X-Request-ID"

// maxRequestIDLen bounds a client-supplied request id.
const maxRequestIDLen = 128

// =============================================================================
// Context Helpers
// =============================================================================

// SetRequestID stores id in the gin context.
func SetRequestID(c *gin.Context, id string) {
	c.Set(requestIDKey, id)
}

// GetRequestID returns the request id, or "" outside RequestID.
//
// # Example
//
//	func handle(c *gin.Context) {
//	    resp.RequestID = middleware.GetRequestID(c)
//	}
func GetRequestID(c *gin.Context) string {
	if v, ok := c.Get(requestIDKey); ok {
		if id, ok := v.(string); ok {
			return id
		}
	}
	return ""
}

// =============================================================================
// Middleware
// =============================================================================

// RequestID propagates a sane client X-Request-ID or assigns a new UUID,
// and echoes it on the response.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := strings.TrimSpace(c.GetHeader(RequestIDHeader))
		if id == "" || len(id) > maxRequestIDLen {
			id = uuid.NewString()
		}
		SetRequestID(c, id)
		c.Header(RequestIDHeader, id)
		c.Next()
	}
}

// RateLimit applies one token bucket to every request passing through.
//
// # Description
//
// Rejects with 429 and an ErrorResponse when no token is available. A
// non-positive rps disables limiting. A burst below one is raised to one.
//
// # Inputs
//
//   - rps: Sustained requests per second.
//   - burst: Bucket size.
//   - metrics: May be nil.
//
// # Thread Safety
//
// rate.Limiter is safe for concurrent use.
func RateLimit(rps float64, burst int, metrics *observability.CoachMetrics) gin.HandlerFunc {
	if rps <= 0 {
		return func(c *gin.Context) { c.Next() }
	}
	limiter := rate.NewLimiter(rate.Limit(rps), max(burst, 1))
	return func(c *gin.Context) {
		if !limiter.Allow() {
			metrics.RecordError(c.FullPath(), observability.ErrorCodeRateLimit)
			c.AbortWithStatusJSON(http.StatusTooManyRequests, datatypes.ErrorResponse{
				Error: "too many requests",
			})
			return
		}
		c.Next()
	}
}

// Recover converts a handler panic into the apology response with a 200,
// so chat clients always receive a well-formed reply.
func Recover(logger *slog.Logger, metrics *observability.CoachMetrics) gin.HandlerFunc {
	if logger == nil {
		logger = slog.Default()
	}
	return func(c *gin.Context) {
		defer func() {
			r := recover()
			if r == nil {
				return
			}
			logger.Error("handler panicked",
				"path", c.FullPath(),
				"request_id", GetRequestID(c),
				"panic", fmt.Sprint(r),
			)
			metrics.RecordError(c.FullPath(), observability.ErrorCodePanic)
			resp := coach.ApologyResponse()
			resp.RequestID = GetRequestID(c)
			c.AbortWithStatusJSON(http.StatusOK, resp)
		}()
		c.Next()
	}
}
