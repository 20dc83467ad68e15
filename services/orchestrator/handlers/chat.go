// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package handlers

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/AleutianAI/flowcoach/services/orchestrator/coach"
	"github.com/AleutianAI/flowcoach/services/orchestrator/datatypes"
	"github.com/AleutianAI/flowcoach/services/orchestrator/lint"
	"github.com/AleutianAI/flowcoach/services/orchestrator/middleware"
	"github.com/AleutianAI/flowcoach/services/orchestrator/observability"
)

var chatTracer = otel.Tracer("flowcoach.orchestrator.handlers")

// Coach is what the handlers need from the coaching chain.
// *coach.Orchestrator satisfies it.
type Coach interface {
	Respond(ctx context.Context, req coach.Request) datatypes.NormalizedResponse
	Review(ctx context.Context, req datatypes.ReviewRequest) datatypes.NormalizedResponse
	ValidateLabel(ctx context.Context, req datatypes.ValidateLabelRequest) lint.Verdict
	Suggest(ctx context.Context, req datatypes.AssistRequest) datatypes.ContextualSuggestion
	Welcome(ctx context.Context, req datatypes.AssistRequest) datatypes.Welcome
	AnalyzePDD(ctx context.Context, req datatypes.ReviewRequest) datatypes.PDDAnalysis
	Status() datatypes.ChainStatus
	Health(ctx context.Context) datatypes.HealthResponse
}

var _ Coach = (*coach.Orchestrator)(nil)

// badRequest answers 400 and counts the validation error.
func badRequest(c *gin.Context, metrics *observability.CoachMetrics, msg string, err error) {
	slog.Warn("rejected request", "path", c.FullPath(), "request_id", middleware.GetRequestID(c), "error", err)
	metrics.RecordError(c.FullPath(), observability.ErrorCodeValidation)
	c.JSON(http.StatusBadRequest, datatypes.ErrorResponse{Error: msg + ": " + err.Error()})
}

// HandleChat answers POST /api/chat.
//
// A malformed body or a diagram with dangling edges is a 400. Every
// accepted request gets a 200 with a tagged NormalizedResponse.
func HandleChat(svc Coach, metrics *observability.CoachMetrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, span := chatTracer.Start(c.Request.Context(), "HandleChat")
		defer span.End()

		var req datatypes.ChatRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			badRequest(c, metrics, "invalid request body", err)
			return
		}
		if err := req.Validate(); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			badRequest(c, metrics, "invalid request", err)
			return
		}

		resp := svc.Respond(ctx, coach.RequestFromChat(req))
		resp.RequestID = middleware.GetRequestID(c)
		span.SetAttributes(attribute.String("source", string(resp.Source)))
		c.JSON(http.StatusOK, resp)
	}
}

// HandleReview answers POST /api/review.
func HandleReview(svc Coach, metrics *observability.CoachMetrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, span := chatTracer.Start(c.Request.Context(), "HandleReview")
		defer span.End()

		var req datatypes.ReviewRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, metrics, "invalid request body", err)
			return
		}
		if err := req.Validate(); err != nil {
			badRequest(c, metrics, "invalid request", err)
			return
		}

		resp := svc.Review(ctx, req)
		resp.RequestID = middleware.GetRequestID(c)
		c.JSON(http.StatusOK, resp)
	}
}

// HandleValidateLabel answers POST /api/validate-l7 with a lint.Verdict.
func HandleValidateLabel(svc Coach, metrics *observability.CoachMetrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, span := chatTracer.Start(c.Request.Context(), "HandleValidateLabel")
		defer span.End()

		var req datatypes.ValidateLabelRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, metrics, "invalid request body", err)
			return
		}
		if err := req.Validate(); err != nil {
			badRequest(c, metrics, "invalid request", err)
			return
		}

		c.JSON(http.StatusOK, svc.ValidateLabel(ctx, req))
	}
}

// HandleChainStatus answers GET /api/chat/chain-status.
func HandleChainStatus(svc Coach) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, svc.Status())
	}
}

// HandleHealth answers GET /api/health. The upstream probe is cached, so
// this is cheap to poll.
func HandleHealth(svc Coach) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, svc.Health(c.Request.Context()))
	}
}
