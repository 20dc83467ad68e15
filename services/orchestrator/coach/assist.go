// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package coach

import (
	"context"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/AleutianAI/flowcoach/services/llm"
	"github.com/AleutianAI/flowcoach/services/orchestrator/datatypes"
)

const (
	defaultProcessName = "HR 프로세스"
	defaultProcessType = "프로세스"

	ruleBasedReason  = "규칙 기반"
	ruleBasedSummary = "규칙 기반 자동 분류입니다."
)

var (
	welcomeQueries = []string{"일반적인 단계는 뭐가 있나요?", "어떤 분기점이 필요할까요?"}

	digitalWorkerKeywords = []string{"조회", "입력", "추출", "집계"}
	sscTransferKeywords   = []string{"통보", "안내", "발송"}
)

// =============================================================================
// Contextual Suggestion
// =============================================================================

// Suggest returns a short unprompted nudge about the diagram. Without a
// model the nudge is empty, which clients treat as "stay quiet".
func (o *Orchestrator) Suggest(ctx context.Context, req datatypes.AssistRequest) datatypes.ContextualSuggestion {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, span := tracer.Start(ctx, "coach.Orchestrator.Suggest")
	defer span.End()

	out := datatypes.ContextualSuggestion{QuickQueries: []string{}}
	p, err := o.direct(ctx, SuggestSystemPrompt, BuildAssistPrompt(req.Context, req.Snapshot()), llm.GenerateOptions{})
	if err != nil {
		span.SetAttributes(attribute.Bool("fallback", true))
		return out
	}
	if g, ok := p["guidance"].(string); ok {
		out.Guidance = strings.TrimSpace(g)
	}
	if tone, ok := p["tone"].(string); ok {
		out.Tone = tone
	}
	out.QuickQueries = stringList(p["quickQueries"])
	return out
}

// =============================================================================
// First Shape Welcome
// =============================================================================

// Welcome greets a user who has just placed the first step of a process.
func (o *Orchestrator) Welcome(ctx context.Context, req datatypes.AssistRequest) datatypes.Welcome {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, span := tracer.Start(ctx, "coach.Orchestrator.Welcome")
	defer span.End()

	name := firstNonEmpty(req.Context.ProcessName, defaultProcessName)
	kind := firstNonEmpty(req.Context.L5, defaultProcessType)

	p, err := o.direct(ctx, WelcomeSystemPrompt, BuildWelcomePrompt(name, kind),
		llm.GenerateOptions{Accept: hasWelcomeText})
	if err != nil {
		span.SetAttributes(attribute.Bool("fallback", true))
		return StaticWelcome(name)
	}

	var parts []string
	for _, k := range []string{"greeting", "processFlowExample", "guidanceText"} {
		if s, ok := p[k].(string); ok && strings.TrimSpace(s) != "" {
			parts = append(parts, strings.TrimSpace(s))
		}
	}
	return datatypes.Welcome{
		Text:         "👋 " + strings.Join(parts, "\n\n"),
		QuickQueries: stringList(p["quickQueries"]),
	}
}

// StaticWelcome is the greeting used without a model.
func StaticWelcome(processName string) datatypes.Welcome {
	return datatypes.Welcome{
		Text:         "👋 좋은 시작입니다! \"" + processName + "\" 프로세스를 함께 완성해보겠습니다.",
		QuickQueries: append([]string(nil), welcomeQueries...),
	}
}

func hasWelcomeText(p llm.Payload) bool {
	for _, k := range []string{"greeting", "processFlowExample", "guidanceText"} {
		if s, ok := p[k].(string); ok && strings.TrimSpace(s) != "" {
			return true
		}
	}
	return false
}

func firstNonEmpty(v, def string) string {
	if s := strings.TrimSpace(v); s != "" {
		return s
	}
	return def
}

// =============================================================================
// PDD Analysis
// =============================================================================

// AnalyzePDD recommends an automation category for every task node,
// asking the model first and falling back to keyword rules.
func (o *Orchestrator) AnalyzePDD(ctx context.Context, req datatypes.ReviewRequest) datatypes.PDDAnalysis {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, span := tracer.Start(ctx, "coach.Orchestrator.AnalyzePDD",
		trace.WithAttributes(attribute.Int("node_count", len(req.Nodes))),
	)
	defer span.End()

	snap := req.Snapshot()
	p, err := o.direct(ctx, PDDSystemPrompt, BuildAssistPrompt(req.Context, snap),
		llm.GenerateOptions{Accept: hasRecommendations})
	if err != nil {
		span.SetAttributes(attribute.Bool("fallback", true))
		return ClassifyTasks(snap)
	}

	out := datatypes.PDDAnalysis{Recommendations: []datatypes.TaskRecommendation{}, Source: datatypes.SourceLLM}
	out.Summary, _ = p["summary"].(string)
	raw, _ := p["recommendations"].([]any)
	for _, item := range raw {
		m, ok := item.(map[string]any)
		if !ok {
			continue
		}
		rec := datatypes.TaskRecommendation{
			SuggestedCategory: datatypes.CategoryAsIs,
		}
		rec.NodeID, _ = m["nodeId"].(string)
		rec.NodeLabel, _ = m["nodeLabel"].(string)
		rec.Reason, _ = m["reason"].(string)
		rec.Confidence, _ = m["confidence"].(string)
		if c, ok := m["suggestedCategory"].(string); ok {
			rec.SuggestedCategory = parseCategory(c)
		}
		out.Recommendations = append(out.Recommendations, rec)
	}
	return out
}

// ClassifyTasks is the keyword classification used without a model.
// Start and end nodes are skipped; data work goes to a digital worker,
// notifications to the shared service center, and the rest stays as is.
func ClassifyTasks(snap datatypes.Snapshot) datatypes.PDDAnalysis {
	out := datatypes.PDDAnalysis{
		Recommendations: []datatypes.TaskRecommendation{},
		Summary:         ruleBasedSummary,
		Source:          datatypes.SourceRules,
	}
	for _, n := range snap.Nodes {
		if n.Kind == datatypes.NodeStart || n.Kind == datatypes.NodeEnd {
			continue
		}
		category := datatypes.CategoryAsIs
		switch {
		case containsAny(n.Label, digitalWorkerKeywords):
			category = datatypes.CategoryDigitalWorker
		case containsAny(n.Label, sscTransferKeywords):
			category = datatypes.CategorySSCTransfer
		}
		out.Recommendations = append(out.Recommendations, datatypes.TaskRecommendation{
			NodeID:            n.ID,
			NodeLabel:         n.Label,
			SuggestedCategory: category,
			Reason:            ruleBasedReason,
			Confidence:        "low",
		})
	}
	return out
}

func hasRecommendations(p llm.Payload) bool {
	_, ok := p["recommendations"].([]any)
	return ok
}

func parseCategory(s string) datatypes.TaskCategory {
	switch c := datatypes.TaskCategory(strings.ToLower(strings.TrimSpace(s))); c {
	case datatypes.CategoryDigitalWorker, datatypes.CategorySSCTransfer:
		return c
	default:
		return datatypes.CategoryAsIs
	}
}

func containsAny(s string, keywords []string) bool {
	for _, k := range keywords {
		if strings.Contains(s, k) {
			return true
		}
	}
	return false
}
