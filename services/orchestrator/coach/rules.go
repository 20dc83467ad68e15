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
	"fmt"
	"strings"

	"github.com/AleutianAI/flowcoach/services/orchestrator/datatypes"
	"github.com/AleutianAI/flowcoach/services/orchestrator/intent"
)

// =============================================================================
// Canned Text
// =============================================================================

const (
	offlineKnowledgeSpeech = "좋은 질문이에요! 현재 오프라인 모드라 상세한 설명을 드리기 어렵지만, " +
		"프로세스 설계에 대해 궁금한 점이 있으면 구체적으로 질문해주시면 " +
		"제가 아는 범위에서 안내해드리겠습니다."

	issueNoStart       = "시작 노드가 없습니다"
	issueNoEnd         = "종료 노드가 없습니다"
	issueOrphansFmt    = "연결되지 않은 노드 %d개"
	issueMissingBranch = "분기 노드가 없어 예외/판단 경로가 누락될 수 있습니다"
	issuesHeader       = "\n\n점검 결과: "
	issuesSeparator    = " / "
	speechNext         = "다음 단계는 현재 마지막 업무 이후의 검토/승인 또는 종료 조건을 명확히 두는 것입니다."
	speechMissing      = "누락 가능성이 큰 항목은 종료 조건, 예외 분기, 그리고 연결되지 않은 노드입니다."
	speechDecision     = "분기 기준은 '~여부' 형태로 명확히 두고 Yes/No 후속 단계를 각각 연결하는 방식이 안전합니다."
	speechSummaryFmt   = "현재 플로우는 노드 %d개, 연결 %d개이며 핵심 점검 항목은 종료 조건과 분기 완결성입니다."
	speechReview       = "구조 점검 관점에서 시작/종료, orphan 노드, 분기 기준 명확성을 우선 검토하세요."
	speechEmpty        = "아직 플로우가 비어 있어요. 캔버스에 우클릭해서 첫 번째 업무 단계를 추가해보세요!"
	speechFewNodesFmt  = "현재 %d개 노드가 있어요. 다음 업무 단계를 이어서 추가하거나, 궁금한 점을 질문해주세요."
	speechManyNodesFmt = "현재 %d개 노드, %d개 연결이 있어요. 구조를 점검하거나 다음 단계를 추가해볼까요?"
	fewNodesThreshold  = 3
)

var offlineKnowledgeQueries = []string{
	"L7 라벨은 어떻게 작성하나요?",
	"분기 노드는 언제 사용하나요?",
	"프로세스 종료 조건은 어떻게 정하나요?",
}

var ruleQuickQueries = []string{
	"다음 단계로 무엇을 추가하면 좋을까요?",
	"누락된 종료 조건이 있나요?",
	"분기 기준을 어떻게 적으면 좋을까요?",
}

// =============================================================================
// Rule Responder
// =============================================================================

// RuleResponder answers from diagram structure alone.
//
// Thread Safety: Safe for concurrent use.
type RuleResponder struct {
	classifier *intent.Classifier
}

// NewRuleResponder creates a responder using c, or the default
// classifier when c is nil.
func NewRuleResponder(c *intent.Classifier) *RuleResponder {
	if c == nil {
		c = intent.NewClassifier()
	}
	return &RuleResponder{classifier: c}
}

// Respond builds a structural coaching reply.
//
// # Description
//
// Knowledge questions get a fixed offline answer with starter questions.
// Everything else gets a topic-specific opening sentence followed by a
// "점검 결과" line listing structural issues, plus END and DECISION
// suggestions when those are missing. An empty diagram always reports
// both a missing start and a missing end.
func (r *RuleResponder) Respond(message string, snap datatypes.Snapshot) datatypes.NormalizedResponse {
	if r.classifier.Intent(message) == intent.Knowledge {
		return datatypes.NormalizedResponse{
			Speech:       offlineKnowledgeSpeech,
			Suggestions:  []datatypes.Suggestion{},
			QuickQueries: append([]string(nil), offlineKnowledgeQueries...),
		}
	}

	sig := ComputeSignals(snap)

	var issues []string
	if !sig.HasStart {
		issues = append(issues, issueNoStart)
	}
	if !sig.HasEnd {
		issues = append(issues, issueNoEnd)
	}
	if len(sig.OrphanIDs) > 0 {
		issues = append(issues, fmt.Sprintf(issueOrphansFmt, len(sig.OrphanIDs)))
	}
	if sig.MissingBranch() {
		issues = append(issues, issueMissingBranch)
	}

	speech := topicSpeech(r.classifier.Topic(message), sig)
	if len(issues) > 0 {
		speech += issuesHeader + strings.Join(issues, issuesSeparator)
	}

	suggestions := []datatypes.Suggestion{}
	if !sig.HasEnd {
		suggestions = append(suggestions, datatypes.Suggestion{
			Action:          "ADD",
			Type:            datatypes.SuggestEnd,
			Summary:         "종료 노드 추가",
			LabelSuggestion: "종료",
			Confidence:      "high",
			Reason:          "프로세스 완료 조건 명확화",
		})
	}
	if sig.MissingBranch() {
		suggestions = append(suggestions, datatypes.Suggestion{
			Action:          "ADD",
			Type:            datatypes.SuggestDecision,
			Summary:         "분기 노드 추가",
			LabelSuggestion: "승인 여부를 판단한다",
			Confidence:      "medium",
			Reason:          "예외/판단 경로 명확화",
		})
	}

	return datatypes.NormalizedResponse{
		Speech:       speech,
		Suggestions:  suggestions,
		QuickQueries: append([]string(nil), ruleQuickQueries...),
	}
}

func topicSpeech(t intent.Topic, sig FlowSignals) string {
	switch t {
	case intent.TopicNext:
		return speechNext
	case intent.TopicMissing:
		return speechMissing
	case intent.TopicDecision:
		return speechDecision
	case intent.TopicSummary:
		return fmt.Sprintf(speechSummaryFmt, sig.NodeCount, sig.EdgeCount)
	case intent.TopicReview:
		return speechReview
	}
	switch {
	case sig.NodeCount == 0:
		return speechEmpty
	case sig.NodeCount <= fewNodesThreshold:
		return fmt.Sprintf(speechFewNodesFmt, sig.NodeCount)
	default:
		return fmt.Sprintf(speechManyNodesFmt, sig.NodeCount, sig.EdgeCount)
	}
}
