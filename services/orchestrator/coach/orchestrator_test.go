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
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/flowcoach/services/llm"
	"github.com/AleutianAI/flowcoach/services/orchestrator/datatypes"
	"github.com/AleutianAI/flowcoach/services/orchestrator/lint"
	"github.com/AleutianAI/flowcoach/services/orchestrator/observability"
)

// fakeClient answers every completion with the same text or error and
// records the prompts it saw.
type fakeClient struct {
	mu      sync.Mutex
	text    string
	err     error
	panics  bool
	calls   int
	systems []string
	users   []string
}

func (f *fakeClient) Complete(_ context.Context, system, user string, _ llm.GenerationParams) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.systems = append(f.systems, system)
	f.users = append(f.users, user)
	if f.panics {
		panic("boom")
	}
	return f.text, f.err
}

func (f *fakeClient) Models(context.Context) ([]string, error) {
	return []string{"m"}, f.err
}

func (f *fakeClient) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func noSleep(ctx context.Context, _ time.Duration) error { return ctx.Err() }

func newGateway(client llm.ChatClient, cb *llm.CircuitBreaker) *llm.Gateway {
	return llm.NewGateway(client, cb,
		llm.GatewayConfig{MaxAttempts: 1, AttemptTimeout: time.Second},
		llm.WithSleep(noSleep))
}

func chatRequest(message string, snap datatypes.Snapshot) Request {
	return Request{Message: message, Snapshot: snap}
}

// =============================================================================
// Respond
// =============================================================================

func TestRespond_LLMTier(t *testing.T) {
	client := &fakeClient{text: `{"speech":"좋아요","suggestions":[{"labelSuggestion":"종료"}],"quickQueries":["다음?"]}`}
	o := New(newGateway(client, nil), DefaultConfig())

	resp := o.Respond(context.Background(), chatRequest("검토해줘", linearFlow("a를 조회한다")))

	assert.Equal(t, datatypes.SourceLLM, resp.Source)
	assert.Equal(t, 0, resp.FallbackLevel)
	assert.Equal(t, "좋아요", resp.Speech)
	require.Len(t, resp.Suggestions, 1)
	assert.Equal(t, datatypes.SuggestEnd, resp.Suggestions[0].Type)
	assert.Equal(t, CoachSystemPrompt, client.systems[0])
	assert.Contains(t, client.users[0], "노드 상세 목록")
}

func TestRespond_PlainTextIsWrapped(t *testing.T) {
	client := &fakeClient{text: "그냥 텍스트 답변입니다"}
	o := New(newGateway(client, nil), DefaultConfig())

	resp := o.Respond(context.Background(), chatRequest("검토해줘", datatypes.Snapshot{}))

	assert.Equal(t, datatypes.SourceLLM, resp.Source)
	assert.Equal(t, "그냥 텍스트 답변입니다", resp.Speech)
}

func TestRespond_KnowledgePromptUsesSummary(t *testing.T) {
	client := &fakeClient{text: `{"speech":"L7은 ..."}`}
	o := New(newGateway(client, nil), DefaultConfig())

	o.Respond(context.Background(), chatRequest("L7 라벨이 뭐야?", linearFlow("a를 조회한다")))

	require.Equal(t, 1, client.Calls())
	assert.Equal(t, KnowledgeSystemPrompt, client.systems[0])
	assert.NotContains(t, client.users[0], "노드 상세 목록")
}

func TestRespond_UnusablePayloadFallsToRules(t *testing.T) {
	client := &fakeClient{text: `{"speech":"","suggestions":[]}`}
	cb := llm.NewCircuitBreaker(llm.BreakerConfig{FailThreshold: 3, Cooldown: time.Minute})
	o := New(newGateway(client, cb), DefaultConfig())

	resp := o.Respond(context.Background(), chatRequest("", datatypes.Snapshot{}))

	assert.Equal(t, datatypes.SourceRules, resp.Source)
	assert.Equal(t, 1, resp.FallbackLevel)
	assert.Contains(t, resp.Speech, "시작 노드가 없습니다")
	assert.Equal(t, 1, cb.Failures())
}

func TestRespond_OpenBreakerSkipsCall(t *testing.T) {
	client := &fakeClient{err: errors.New("503")}
	cb := llm.NewCircuitBreaker(llm.BreakerConfig{FailThreshold: 1, Cooldown: time.Minute})
	o := New(newGateway(client, cb), DefaultConfig())

	first := o.Respond(context.Background(), chatRequest("", datatypes.Snapshot{}))
	second := o.Respond(context.Background(), chatRequest("", datatypes.Snapshot{}))

	assert.Equal(t, datatypes.SourceRules, first.Source)
	assert.Equal(t, datatypes.SourceRules, second.Source)
	assert.Equal(t, 1, client.Calls())

	st := o.Status()
	assert.False(t, st.LLMGatewayAvailable)
	assert.Equal(t, 1, st.LLMFailCount)
	assert.Equal(t, 60, st.LLMCooldownLeftSec)
}

func TestRespond_MockTierWhenRulesDisabled(t *testing.T) {
	o := New(nil, Config{ChainEnabled: true, StaticEnabled: true})

	resp := o.Respond(context.Background(), chatRequest("", datatypes.Snapshot{}))

	assert.Equal(t, datatypes.SourceMock, resp.Source)
	assert.Equal(t, 2, resp.FallbackLevel)
	assert.Equal(t, "긍정적", resp.Tone)
}

func TestRespond_AllTiersDisabled(t *testing.T) {
	o := New(nil, Config{})

	resp := o.Respond(context.Background(), chatRequest("hi", datatypes.Snapshot{}))

	assert.Equal(t, TerminalResponse(), resp)
	assert.Equal(t, datatypes.SourceNone, resp.Source)
	assert.Equal(t, 3, resp.FallbackLevel)
	assert.Equal(t, terminalSpeech, resp.Speech)
}

func TestRespond_ChainDisabledBypassesBreaker(t *testing.T) {
	client := &fakeClient{text: `{"speech":"직접 호출"}`}
	cb := llm.NewCircuitBreaker(llm.BreakerConfig{FailThreshold: 1, Cooldown: time.Minute})
	cb.RecordFailure()
	require.True(t, cb.Open())
	o := New(newGateway(client, cb), Config{RulesEnabled: true})

	resp := o.Respond(context.Background(), chatRequest("검토해줘", datatypes.Snapshot{}))

	assert.Equal(t, datatypes.SourceLLM, resp.Source)
	assert.Equal(t, "직접 호출", resp.Speech)
	assert.False(t, o.Status().Enabled)
}

func TestRespond_ChainDisabledFallsThroughToGuardedCall(t *testing.T) {
	client := &fakeClient{text: `{"suggestions":[{"summary":"종료 추가"}]}`}
	o := New(newGateway(client, nil), Config{RulesEnabled: true})

	resp := o.Respond(context.Background(), chatRequest("", datatypes.Snapshot{}))

	assert.Equal(t, datatypes.SourceLLM, resp.Source)
	require.Len(t, resp.Suggestions, 1)
	assert.Equal(t, 2, client.Calls())
}

func TestRespond_ChainDisabledWithOpenBreakerUsesRules(t *testing.T) {
	client := &fakeClient{text: `{"suggestions":[{"summary":"종료 추가"}]}`}
	cb := llm.NewCircuitBreaker(llm.BreakerConfig{FailThreshold: 1, Cooldown: time.Minute})
	cb.RecordFailure()
	o := New(newGateway(client, cb), Config{RulesEnabled: true})

	resp := o.Respond(context.Background(), chatRequest("", datatypes.Snapshot{}))

	assert.Equal(t, datatypes.SourceRules, resp.Source)
	assert.Equal(t, 1, client.Calls())
}

func TestRespond_PanicBecomesApology(t *testing.T) {
	client := &fakeClient{panics: true}
	o := New(newGateway(client, nil), DefaultConfig())

	resp := o.Respond(context.Background(), chatRequest("검토해줘", datatypes.Snapshot{}))

	assert.Equal(t, ApologyResponse(), resp)
	assert.Equal(t, 3, resp.FallbackLevel)
}

func TestRespond_TaxonomyReferenceAndMetrics(t *testing.T) {
	client := &fakeClient{text: `{"speech":"ok"}`}
	reg := prometheus.NewRegistry()
	m := observability.NewCoachMetrics(reg)
	o := New(newGateway(client, nil), DefaultConfig(), WithMetrics(m))

	o.Respond(context.Background(), Request{
		Message: "검토해줘",
		Context: datatypes.ChatContext{L4: "채용", ProcessName: "공고 게시"},
	})

	assert.Contains(t, client.users[0], "[HR 프로세스 참조:")
	assert.Contains(t, client.users[0], "공고 게시")
	assert.Equal(t, 1.0, testutil.ToFloat64(m.TaxonomyLookupsTotal.WithLabelValues("exact_group")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ResponsesTotal.WithLabelValues("llm", "0", "coaching")))
}

func TestRequestFromChat(t *testing.T) {
	req := RequestFromChat(datatypes.ChatRequest{
		Message:             "  안녕  ",
		Nodes:               []datatypes.Node{{ID: "a"}},
		RecentTurns:         []datatypes.Turn{{Role: "user", Content: "x"}},
		ConversationSummary: "요약",
	})

	assert.Equal(t, "안녕", req.Message)
	assert.Len(t, req.Snapshot.Nodes, 1)
	assert.Len(t, req.Turns, 1)
	assert.Equal(t, "요약", req.Summary)
}

// =============================================================================
// Review
// =============================================================================

func TestReview_FallsBackToStaticReview(t *testing.T) {
	o := New(nil, DefaultConfig())

	resp := o.Review(context.Background(), datatypes.ReviewRequest{})

	assert.Equal(t, datatypes.SourceMock, resp.Source)
	assert.Equal(t, datatypes.SuggestEnd, resp.Suggestions[0].Type)
}

func TestReview_UsesReviewPrompt(t *testing.T) {
	client := &fakeClient{text: `{"speech":"검토 완료"}`}
	o := New(newGateway(client, nil), DefaultConfig())

	resp := o.Review(context.Background(), datatypes.ReviewRequest{UserMessage: "꼼꼼히"})

	assert.Equal(t, datatypes.SourceLLM, resp.Source)
	assert.Equal(t, ReviewSystemPrompt, client.systems[0])
	assert.Contains(t, client.users[0], "요청: 꼼꼼히")
}

func TestReview_IgnoresOpenBreaker(t *testing.T) {
	client := &fakeClient{text: `{"speech":"검토 완료"}`}
	cb := llm.NewCircuitBreaker(llm.BreakerConfig{FailThreshold: 1, Cooldown: time.Minute})
	cb.RecordFailure()
	o := New(newGateway(client, cb), DefaultConfig())

	resp := o.Review(context.Background(), datatypes.ReviewRequest{})

	assert.Equal(t, datatypes.SourceLLM, resp.Source)
	assert.Equal(t, 1, cb.Failures())
}

// =============================================================================
// ValidateLabel
// =============================================================================

func TestValidateLabel_RulesAreAuthoritative(t *testing.T) {
	client := &fakeClient{text: `{"pass":true,"score":100,"rewriteSuggestion":"휴가 신청서를 승인한다"}`}
	o := New(newGateway(client, nil), DefaultConfig())

	v := o.ValidateLabel(context.Background(), datatypes.ValidateLabelRequest{NodeID: "n1", Label: "처리한다"})

	assert.False(t, v.Pass)
	assert.True(t, v.HasRule(lint.RuleBannedVerb))
	require.NotNil(t, v.RewriteSuggestion)
	assert.Equal(t, "휴가 신청서를 승인한다", *v.RewriteSuggestion)
	assert.False(t, v.Degraded)
}

func TestValidateLabel_GatewayFailureIsDegraded(t *testing.T) {
	client := &fakeClient{err: errors.New("down")}
	o := New(newGateway(client, nil), DefaultConfig())

	v := o.ValidateLabel(context.Background(), datatypes.ValidateLabelRequest{Label: "급여 명세서를 조회한다"})

	assert.True(t, v.Degraded)
	assert.Equal(t, lint.DegradedWarning, v.Warning)
	assert.Nil(t, v.RewriteSuggestion)
}

// TestValidateLabel_LeavesChatBreakerAlone checks that answers without a
// rewrite are not failures and that label checks never gate chat.
func TestValidateLabel_LeavesChatBreakerAlone(t *testing.T) {
	client := &fakeClient{text: `{"rewriteSuggestion":null,"encouragement":"좋아요"}`}
	cb := llm.NewCircuitBreaker(llm.BreakerConfig{FailThreshold: 3, Cooldown: time.Minute})
	o := New(newGateway(client, cb), DefaultConfig())

	for i := 0; i < 3; i++ {
		v := o.ValidateLabel(context.Background(), datatypes.ValidateLabelRequest{Label: "급여 명세서를 조회한다"})
		assert.False(t, v.Degraded)
		assert.Nil(t, v.RewriteSuggestion)
	}
	assert.Equal(t, 0, cb.Failures())
	assert.False(t, cb.Open())

	client.text = `{"speech":"분기를 추가해 보세요"}`
	resp := o.Respond(context.Background(), chatRequest("검토해줘", datatypes.Snapshot{}))

	assert.Equal(t, datatypes.SourceLLM, resp.Source)
	assert.Equal(t, 4, client.Calls())
}

func TestValidateLabel_FailuresDoNotCount(t *testing.T) {
	client := &fakeClient{err: errors.New("down")}
	cb := llm.NewCircuitBreaker(llm.BreakerConfig{FailThreshold: 1, Cooldown: time.Minute})
	o := New(newGateway(client, cb), DefaultConfig())

	v := o.ValidateLabel(context.Background(), datatypes.ValidateLabelRequest{Label: "급여 명세서를 조회한다"})

	assert.True(t, v.Degraded)
	assert.Equal(t, 0, cb.Failures())
	assert.False(t, cb.Open())
}

func TestValidateLabel_MockModeIsNotDegraded(t *testing.T) {
	o := New(nil, DefaultConfig())

	v := o.ValidateLabel(context.Background(), datatypes.ValidateLabelRequest{Label: "승인 여부", NodeType: "decision"})

	assert.False(t, v.Degraded)
	assert.False(t, v.HasRule(lint.RuleNoCriterion))
}

// =============================================================================
// Status & Health
// =============================================================================

func TestStatus_MockMode(t *testing.T) {
	o := New(nil, DefaultConfig())

	st := o.Status()

	assert.Equal(t, datatypes.ChainStatus{Enabled: true, RuleEnabled: true, MockEnabled: true}, st)
	assert.Equal(t, "mock", o.Mode())
}

func TestHealth(t *testing.T) {
	o := New(newGateway(&fakeClient{}, nil), DefaultConfig())

	h := o.Health(context.Background())

	assert.Equal(t, datatypes.HealthResponse{Status: "ok", Version: Version, LLMConnected: true, Mode: "live"}, h)
}
