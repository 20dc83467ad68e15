// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package coach answers chat, review and label requests through a fixed
// chain of responders: the model, structural rules, a static review, and
// a terminal message. It also serves the assist requests (suggestion,
// welcome, PDD analysis), each with its own offline fallback.
package coach

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/AleutianAI/flowcoach/services/llm"
	"github.com/AleutianAI/flowcoach/services/orchestrator/datatypes"
	"github.com/AleutianAI/flowcoach/services/orchestrator/intent"
	"github.com/AleutianAI/flowcoach/services/orchestrator/lint"
	"github.com/AleutianAI/flowcoach/services/orchestrator/observability"
	"github.com/AleutianAI/flowcoach/services/orchestrator/taxonomy"
)

// Version is reported by the health endpoint.
const Version = "5.0"

const (
	terminalSpeech = "현재 코치 체인을 사용할 수 없습니다. 설정을 확인해주세요."
	apologySpeech  = "잠시 문제가 발생했어요. 다시 시도해주세요."
)

var tracer = otel.Tracer("coach")

var errNoGateway = errors.New("no model gateway configured")

// =============================================================================
// Configuration
// =============================================================================

// Config switches individual tiers of the chain.
type Config struct {
	// ChainEnabled=false replaces the guarded model tier with one direct
	// call that ignores the breaker.
	ChainEnabled  bool
	RulesEnabled  bool
	StaticEnabled bool
}

// DefaultConfig enables every tier.
func DefaultConfig() Config {
	return Config{ChainEnabled: true, RulesEnabled: true, StaticEnabled: true}
}

// =============================================================================
// Orchestrator
// =============================================================================

// Request is one chat turn as the orchestrator sees it.
type Request struct {
	Message  string
	Context  datatypes.ChatContext
	Snapshot datatypes.Snapshot
	Turns    []datatypes.Turn
	Summary  string
}

// RequestFromChat converts a validated chat body.
func RequestFromChat(r datatypes.ChatRequest) Request {
	return Request{
		Message:  strings.TrimSpace(r.Message),
		Context:  r.Context,
		Snapshot: r.Snapshot(),
		Turns:    r.RecentTurns,
		Summary:  r.ConversationSummary,
	}
}

// Orchestrator owns the responder chain.
//
// # Thread Safety
//
// Safe for concurrent use. The gateway's breaker is the only shared
// mutable state.
type Orchestrator struct {
	config     Config
	gateway    *llm.Gateway
	rules      *RuleResponder
	static     *StaticResponder
	classifier *intent.Classifier
	tree       *taxonomy.Tree
	linter     *lint.Linter
	metrics    *observability.CoachMetrics
	logger     *slog.Logger
}

// Option customizes an Orchestrator.
type Option func(*Orchestrator)

// WithMetrics records responses, verdicts and lookups on m.
func WithMetrics(m *observability.CoachMetrics) Option {
	return func(o *Orchestrator) { o.metrics = m }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(o *Orchestrator) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithTaxonomy replaces the embedded taxonomy.
func WithTaxonomy(t *taxonomy.Tree) Option {
	return func(o *Orchestrator) {
		if t != nil {
			o.tree = t
		}
	}
}

// WithLinter replaces the embedded label rules.
func WithLinter(l *lint.Linter) Option {
	return func(o *Orchestrator) {
		if l != nil {
			o.linter = l
		}
	}
}

// New builds an orchestrator. A nil gateway removes the model tier,
// which is how mock mode runs.
func New(gateway *llm.Gateway, config Config, opts ...Option) *Orchestrator {
	classifier := intent.NewClassifier()
	o := &Orchestrator{
		config:     config,
		gateway:    gateway,
		rules:      NewRuleResponder(classifier),
		static:     NewStaticResponder(),
		classifier: classifier,
		tree:       taxonomy.DefaultTree(),
		linter:     lint.New(nil),
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Mode is "live" with a gateway and "mock" without one.
func (o *Orchestrator) Mode() string {
	if o.gateway == nil {
		return "mock"
	}
	return "live"
}

// Respond answers one chat turn.
//
// # Description
//
// The message is classified first; knowledge questions use the
// knowledge prompt and a summarized flow, everything else the coaching
// prompt and the detailed flow. Tiers are then tried in order:
//
//  1. llm (0): the guarded gateway call, accepted when the normalized
//     payload has speech or suggestions.
//  2. rules (1): structural coaching, when enabled and usable.
//  3. mock (2): the static review, when enabled.
//  4. none (3): the terminal message.
//
// With the chain disabled a direct call accepted only when it carries
// speech runs first; without speech the guarded call follows.
//
// # Outputs
//
// Always a tagged response. A panic anywhere in the chain yields the
// apology response.
func (o *Orchestrator) Respond(ctx context.Context, req Request) (resp datatypes.NormalizedResponse) {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, span := tracer.Start(ctx, "coach.Orchestrator.Respond",
		trace.WithAttributes(
			attribute.Int("message_length", len(req.Message)),
			attribute.Int("node_count", len(req.Snapshot.Nodes)),
		),
	)
	defer span.End()

	start := time.Now()
	kind := intent.Coaching
	defer func() {
		if r := recover(); r != nil {
			o.logger.Error("coach chain panicked", "panic", fmt.Sprint(r))
			span.SetStatus(codes.Error, "panic")
			resp = ApologyResponse()
		}
		span.SetAttributes(
			attribute.String("source", string(resp.Source)),
			attribute.Int("fallback_level", resp.FallbackLevel),
		)
		o.metrics.RecordResponse(string(resp.Source), resp.FallbackLevel, string(kind), time.Since(start))
	}()

	kind = o.classifier.ClassifyTraced(ctx, req.Message)
	span.SetAttributes(attribute.String("intent", string(kind)))

	system, mode := CoachSystemPrompt, DescribeDetail
	if kind == intent.Knowledge {
		system, mode = KnowledgeSystemPrompt, DescribeSummary
	}
	user := BuildUserPrompt(PromptInput{
		Message:   req.Message,
		Context:   req.Context,
		Snapshot:  req.Snapshot,
		Turns:     req.Turns,
		Summary:   req.Summary,
		Reference: o.reference(req.Context),
		Mode:      mode,
	})

	if r, ok := o.fromModel(ctx, system, user); ok {
		return r
	}
	return o.fallback(req.Message, req.Snapshot)
}

// fromModel runs the model tier. With the chain disabled a direct call
// that ignores the breaker goes first; when it yields no speech the
// guarded call still runs.
func (o *Orchestrator) fromModel(ctx context.Context, system, user string) (datatypes.NormalizedResponse, bool) {
	if o.gateway == nil {
		return datatypes.NormalizedResponse{}, false
	}
	if !o.config.ChainEnabled {
		p, err := o.gateway.Generate(ctx, system, user, llm.GenerateOptions{
			AllowTextFallback: true,
			Accept:            speechPayload,
			BypassBreaker:     true,
		})
		if err == nil {
			return modelResponse(p), true
		}
		o.logger.Info("direct model call yielded no speech", "error", err)
	}

	p, err := o.gateway.Generate(ctx, system, user, llm.GenerateOptions{
		AllowTextFallback: true,
		Accept:            usablePayload,
	})
	if err != nil {
		o.logger.Info("model tier skipped", "error", err, "chain_enabled", o.config.ChainEnabled)
		return datatypes.NormalizedResponse{}, false
	}
	return modelResponse(p), true
}

// direct makes one model call outside the chat breaker. Review, label
// and assist requests use it so that they never gate chat.
func (o *Orchestrator) direct(ctx context.Context, system, user string, opts llm.GenerateOptions) (llm.Payload, error) {
	if o.gateway == nil {
		return nil, errNoGateway
	}
	opts.BypassBreaker = true
	return o.gateway.Generate(ctx, system, user, opts)
}

func modelResponse(p llm.Payload) datatypes.NormalizedResponse {
	r := normalizeResponse(Normalize(p))
	r.Tag(datatypes.SourceLLM)
	return r
}

// fallback runs the local tiers.
func (o *Orchestrator) fallback(message string, snap datatypes.Snapshot) datatypes.NormalizedResponse {
	if o.config.RulesEnabled {
		r := normalizeResponse(o.rules.Respond(message, snap))
		if r.Usable() {
			r.Tag(datatypes.SourceRules)
			return r
		}
	}
	if o.config.StaticEnabled {
		r := normalizeResponse(o.static.Respond(message, snap))
		r.Tag(datatypes.SourceMock)
		return r
	}
	return TerminalResponse()
}

// reference renders the taxonomy block for the user's position, or "".
func (o *Orchestrator) reference(c datatypes.ChatContext) string {
	if c.L4 == "" {
		return ""
	}
	m, ok := o.tree.Find(c.L4, c.L5)
	o.metrics.RecordLookup(m.Tier.String())
	if !ok {
		return ""
	}
	return o.tree.Render(m, c.ProcessName)
}

// Review runs a full-flow review: the model with the review prompt, else
// the static review.
func (o *Orchestrator) Review(ctx context.Context, req datatypes.ReviewRequest) datatypes.NormalizedResponse {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, span := tracer.Start(ctx, "coach.Orchestrator.Review")
	defer span.End()

	start := time.Now()
	snap := req.Snapshot()
	user := BuildReviewPrompt(req.Context, snap, o.reference(req.Context), req.UserMessage)

	var resp datatypes.NormalizedResponse
	p, err := o.direct(ctx, ReviewSystemPrompt, user,
		llm.GenerateOptions{AllowTextFallback: true, Accept: usablePayload})
	if err == nil {
		resp = modelResponse(p)
	} else {
		o.logger.Info("review model call failed", "error", err)
		if o.config.StaticEnabled {
			resp = normalizeResponse(Review(snap))
			resp.Tag(datatypes.SourceMock)
		} else {
			resp = TerminalResponse()
		}
	}
	span.SetAttributes(attribute.String("source", string(resp.Source)))
	o.metrics.RecordResponse(string(resp.Source), resp.FallbackLevel, "review", time.Since(start))
	return resp
}

// ValidateLabel checks one L7 label.
//
// Description:
//
//	The rule engine always decides pass, score and issues. When a
//	gateway is configured it is asked for a rewrite, outside the chat
//	breaker; a rewrite that differs from the label replaces
//	RewriteSuggestion. An answer without a rewrite is still an answer.
//	Only a failed call marks the verdict degraded.
//
// Inputs:
//
//	ctx - Request context.
//	req - Validated request. An empty or unknown NodeType means process.
//
// Outputs:
//
//	lint.Verdict - Never fails.
func (o *Orchestrator) ValidateLabel(ctx context.Context, req datatypes.ValidateLabelRequest) lint.Verdict {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, span := tracer.Start(ctx, "coach.Orchestrator.ValidateLabel",
		trace.WithAttributes(attribute.String("node_type", req.NodeType)),
	)
	defer span.End()

	kind, err := datatypes.ParseNodeKind(req.NodeType)
	if err != nil {
		kind = datatypes.NodeProcess
	}
	label := strings.TrimSpace(req.Label)

	var rewrite string
	primaryFailed := false
	if o.gateway != nil {
		p, err := o.direct(ctx, ValidateSystemPrompt,
			BuildValidatePrompt(req.NodeID, kind, label, req.Context),
			llm.GenerateOptions{})
		if err != nil {
			primaryFailed = true
			span.RecordError(err)
			o.logger.Info("label review unavailable", "error", err)
		} else {
			s, _ := p["rewriteSuggestion"].(string)
			rewrite = strings.TrimSpace(s)
		}
	}

	v := o.linter.Validate(label, kind, primaryFailed)
	if rewrite != "" && rewrite != label {
		v.RewriteSuggestion = &rewrite
	}

	ids := make([]string, len(v.Issues))
	for i, is := range v.Issues {
		ids[i] = string(is.RuleID)
	}
	span.SetAttributes(attribute.Bool("pass", v.Pass), attribute.Int("score", v.Score))
	o.metrics.RecordVerdict(v.Pass, v.Degraded, ids)
	return v
}

// Status reports chain switches and breaker counters.
func (o *Orchestrator) Status() datatypes.ChainStatus {
	st := datatypes.ChainStatus{
		Enabled:     o.config.ChainEnabled,
		RuleEnabled: o.config.RulesEnabled,
		MockEnabled: o.config.StaticEnabled,
	}
	if o.gateway != nil {
		b := o.gateway.Breaker()
		st.LLMFailCount = b.Failures()
		st.LLMCooldownLeftSec = int(math.Ceil(b.CooldownLeft().Seconds()))
		st.LLMGatewayAvailable = o.gateway.Available()
	}
	return st
}

// Health probes the endpoint through the gateway's cached probe.
func (o *Orchestrator) Health(ctx context.Context) datatypes.HealthResponse {
	connected := false
	if o.gateway != nil {
		connected = o.gateway.Probe(ctx)
	}
	return datatypes.HealthResponse{
		Status:       "ok",
		Version:      Version,
		LLMConnected: connected,
		Mode:         o.Mode(),
	}
}

// TerminalResponse is returned when every tier is disabled or failed.
func TerminalResponse() datatypes.NormalizedResponse {
	r := datatypes.NormalizedResponse{
		Speech:       terminalSpeech,
		Suggestions:  []datatypes.Suggestion{},
		QuickQueries: []string{},
	}
	r.Tag(datatypes.SourceNone)
	return r
}

// ApologyResponse is returned when handling a request failed unexpectedly.
func ApologyResponse() datatypes.NormalizedResponse {
	r := TerminalResponse()
	r.Speech = apologySpeech
	return r
}
