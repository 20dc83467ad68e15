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
	"log/slog"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/AleutianAI/flowcoach/services/orchestrator/handlers"
	"github.com/AleutianAI/flowcoach/services/orchestrator/middleware"
	"github.com/AleutianAI/flowcoach/services/orchestrator/observability"
)

// Options carries what the route table needs besides the coach.
type Options struct {
	// Metrics may be nil.
	Metrics *observability.CoachMetrics

	// Gatherer backs GET /metrics. Nil leaves /metrics unregistered.
	Gatherer prometheus.Gatherer

	Logger *slog.Logger

	// RateLimitRPS <= 0 disables rate limiting on /api.
	RateLimitRPS   float64
	RateLimitBurst int
}

// SetupRoutes registers the coach API on router.
//
//	GET  /metrics
//	POST /api/chat
//	GET  /api/chat/ws
//	GET  /api/chat/chain-status
//	POST /api/review
//	POST /api/validate-l7
//	POST /api/contextual-suggest
//	POST /api/first-shape-welcome
//	POST /api/analyze-pdd
//	GET  /api/health
func SetupRoutes(router *gin.Engine, svc handlers.Coach, opts Options) {
	if opts.Gatherer != nil {
		router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(opts.Gatherer, promhttp.HandlerOpts{})))
	}

	api := router.Group("/api")
	api.Use(
		middleware.RequestID(),
		middleware.RateLimit(opts.RateLimitRPS, opts.RateLimitBurst, opts.Metrics),
		middleware.Recover(opts.Logger, opts.Metrics),
	)
	{
		chat := api.Group("/chat")
		{
			chat.POST("", handlers.HandleChat(svc, opts.Metrics))
			chat.GET("/ws", handlers.HandleChatWebSocket(svc, opts.Metrics))
			chat.GET("/chain-status", handlers.HandleChainStatus(svc))
		}
		api.POST("/review", handlers.HandleReview(svc, opts.Metrics))
		api.POST("/validate-l7", handlers.HandleValidateLabel(svc, opts.Metrics))
		api.POST("/contextual-suggest", handlers.HandleContextualSuggest(svc, opts.Metrics))
		api.POST("/first-shape-welcome", handlers.HandleFirstShapeWelcome(svc, opts.Metrics))
		api.POST("/analyze-pdd", handlers.HandleAnalyzePDD(svc, opts.Metrics))
		api.GET("/health", handlers.HandleHealth(svc))
	}
}
