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

	"github.com/AleutianAI/flowcoach/services/orchestrator/datatypes"
)

const (
	staticDefaultSpeech = "테스트 모드입니다. 질문 의도를 기준으로 기본 코칭을 제공합니다."
	maxStaticQueries    = 3
	bigFlowThreshold    = 5
)

var staticDefaultQueries = []string{"다음 단계 제안", "누락 항목 점검", "분기 기준 작성법"}

// StaticResponder produces the degraded-mode review. It ignores the
// message and looks only at the diagram.
type StaticResponder struct{}

// NewStaticResponder returns a StaticResponder.
func NewStaticResponder() *StaticResponder {
	return &StaticResponder{}
}

// Respond returns the review with default speech and follow-ups filled
// in when the review produced none.
func (StaticResponder) Respond(_ string, snap datatypes.Snapshot) datatypes.NormalizedResponse {
	r := Review(snap)
	if r.Speech == "" {
		r.Speech = staticDefaultSpeech
	}
	if len(r.QuickQueries) == 0 {
		r.QuickQueries = append([]string(nil), staticDefaultQueries...)
	}
	return r
}

// Review is the structural review used when no model is available.
//
// Suggestions: an END node when none exists, a MODIFY for unconnected
// task nodes, and a DECISION when a flow of more than five nodes has no
// branch.
func Review(snap datatypes.Snapshot) datatypes.NormalizedResponse {
	suggestions := []datatypes.Suggestion{}

	if !snap.HasKind(datatypes.NodeEnd) {
		suggestions = append(suggestions, datatypes.Suggestion{
			Action:          "ADD",
			Type:            datatypes.SuggestEnd,
			Summary:         "종료 노드 추가",
			LabelSuggestion: "종료",
			NewLabel:        "종료",
			Reason:          "플로우의 끝을 명확히 표시하면 완결성이 높아집니다",
			Reasoning:       "프로세스의 시작과 끝이 명확하면 제3자가 전체 범위를 이해하기 쉬워집니다. HR 프로세스에서는 특히 완료 조건(예: 결과 저장, 알림)을 명시하는 것이 중요합니다.",
			Confidence:      "high",
		})
	}

	if orphans := snap.Orphans(true); len(orphans) > 0 {
		suggestions = append(suggestions, datatypes.Suggestion{
			Action:     "MODIFY",
			Summary:    fmt.Sprintf("연결되지 않은 노드 %d개 발견", len(orphans)),
			Reason:     "모든 단계를 연결하면 플로우가 더 명확해집니다",
			Reasoning:  "독립적으로 떠있는 노드는 실행 순서가 불명확합니다. 어느 단계 이후에 수행되는지, 또는 병렬로 진행되는지를 표현하면 운영 효율성이 높아집니다.",
			Confidence: "high",
		})
	}

	if !snap.HasKind(datatypes.NodeDecision) && len(snap.Nodes) > bigFlowThreshold {
		suggestions = append(suggestions, datatypes.Suggestion{
			Action:          "ADD",
			Type:            datatypes.SuggestDecision,
			Summary:         "분기점 추가 고려",
			LabelSuggestion: "승인 여부",
			Reason:          "승인/반려 같은 판단 지점을 추가하면 실제 프로세스에 더 가까워집니다",
			Reasoning:       "HR 프로세스는 대부분 조건부 분기를 포함합니다(예: 조건 검토 → 승인/반려 결정). 5개 이상의 단계가 있는데 분기가 없다면, 예외 처리나 검토 프로세스를 추가하는 것이 좋습니다.",
			Confidence:      "medium",
		})
	}

	tone := "긍정적"
	if len(suggestions) >= 2 {
		tone = "건설적"
	}

	speech := "프로세스 설계를 시작해볼게요. "
	if len(snap.Nodes) > 2 {
		speech = "좋은 구조예요! "
	}
	if len(suggestions) > 0 {
		speech += fmt.Sprintf("%d가지 개선 아이디어를 공유드릴게요.", len(suggestions))
	} else {
		speech += "구조적으로 탄탄합니다. 세부 내용을 다듬어가시면 됩니다!"
	}

	return datatypes.NormalizedResponse{
		Speech:       speech,
		Suggestions:  suggestions,
		QuickQueries: staticQuickQueries(snap),
		Tone:         tone,
	}
}

// staticQuickQueries proposes up to three follow-up questions.
func staticQuickQueries(snap datatypes.Snapshot) []string {
	processes := snap.CountKind(datatypes.NodeProcess)
	qs := []string{}
	if !snap.HasKind(datatypes.NodeEnd) && processes >= 2 {
		qs = append(qs, "어떤 상황에서 이 프로세스가 완료되나요?")
	}
	if !snap.HasKind(datatypes.NodeDecision) && processes >= 3 {
		qs = append(qs, "중간에 판단이나 승인이 필요한 지점이 있을까요?")
	}
	if processes >= 2 {
		qs = append(qs, "예외적으로 처리해야 하는 상황은 어떤 것들이 있을까요?")
	}
	for _, n := range snap.Nodes {
		if n.SystemName != "" {
			qs = append(qs, "시스템 간 데이터 연계는 어떻게 이루어지나요?")
			break
		}
	}
	if len(qs) > maxStaticQueries {
		qs = qs[:maxStaticQueries]
	}
	return qs
}
