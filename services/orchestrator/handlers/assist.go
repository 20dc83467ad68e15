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
	"net/http"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/attribute"

	"github.com/AleutianAI/flowcoach/services/orchestrator/datatypes"
	"github.com/AleutianAI/flowcoach/services/orchestrator/observability"
)

// bindAssist decodes and validates an assist body, answering 400 itself
// when either fails.
func bindAssist(c *gin.Context, metrics *observability.CoachMetrics) (datatypes.AssistRequest, bool) {
	var req datatypes.AssistRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, metrics, "invalid request body", err)
		return req, false
	}
	if err := req.Validate(); err != nil {
		badRequest(c, metrics, "invalid request", err)
		return req, false
	}
	return req, true
}

// HandleContextualSuggest answers POST /api/contextual-suggest. An empty
// guidance means the client should stay quiet.
func HandleContextualSuggest(svc Coach, metrics *observability.CoachMetrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, span := chatTracer.Start(c.Request.Context(), "HandleContextualSuggest")
		defer span.End()

		req, ok := bindAssist(c, metrics)
		if !ok {
			return
		}
		c.JSON(http.StatusOK, svc.Suggest(ctx, req))
	}
}

// HandleFirstShapeWelcome answers POST /api/first-shape-welcome.
func HandleFirstShapeWelcome(svc Coach, metrics *observability.CoachMetrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, span := chatTracer.Start(c.Request.Context(), "HandleFirstShapeWelcome")
		defer span.End()

		req, ok := bindAssist(c, metrics)
		if !ok {
			return
		}
		c.JSON(http.StatusOK, svc.Welcome(ctx, req))
	}
}

// HandleAnalyzePDD answers POST /api/analyze-pdd with an automation
// category per task node.
func HandleAnalyzePDD(svc Coach, metrics *observability.CoachMetrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, span := chatTracer.Start(c.Request.Context(), "HandleAnalyzePDD")
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

		analysis := svc.AnalyzePDD(ctx, req)
		span.SetAttributes(
			attribute.String("source", string(analysis.Source)),
			attribute.Int("recommendations", len(analysis.Recommendations)),
		)
		c.JSON(http.StatusOK, analysis)
	}
}
