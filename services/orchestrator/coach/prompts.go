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
)

// =============================================================================
// System Prompts
// =============================================================================

const toneGuide = `[말투]
- 지시 대신 제안으로 말합니다: "~해 보면 어떨까요?", "~를 고려해 보세요"
- "반드시", "금지", "틀렸다" 같은 단정적 표현은 쓰지 않습니다
- 사용자가 겪는 어려움에 먼저 공감합니다
- 모든 제안에 그것이 왜 도움이 되는지 한 문장으로 덧붙입니다`

const labelGuide = `[L7 라벨 작성 기준]
- 처음 보는 사람도 수행할 수 있도록 대상(을/를)과 동작을 함께 적습니다
- 한 화면에서 이어지는 동작은 하나의 라벨로 묶습니다
- 판단 노드는 "~여부", "~인가?"처럼 기준이 드러나게 적습니다
- 시스템명은 라벨이 아니라 노드의 시스템명 필드에 적습니다

[권장 동사] 조회한다, 입력한다, 수정한다, 저장한다, 추출한다, 비교한다, 집계한다,
기록한다, 첨부한다, 판정한다, 승인한다, 반려한다, 요청한다, 안내한다, 공지한다
[바꾸면 좋은 동사] 처리한다, 진행한다, 관리한다, 대응한다, 지원한다, 확인한다,
검토한다, 정리한다, 공유한다, 조율한다, 협의한다, 반영한다`

const suggestionShape = `"suggestions": [
    {
      "action": "ADD|MODIFY|DELETE",
      "type": "START|PROCESS|DECISION|SUBPROCESS|END",
      "summary": "제안 한 줄 요약",
      "labelSuggestion": "추가하거나 바꿀 라벨",
      "insertAfterNodeId": "ADD일 때 앞에 올 노드 ID",
      "targetNodeId": "MODIFY/DELETE 대상 노드 ID",
      "reason": "이 제안이 도움이 되는 이유",
      "confidence": "high|medium|low"
    }
  ]`

// CoachSystemPrompt drives coaching and flow-action replies.
var CoachSystemPrompt = fmt.Sprintf(`당신은 HR 담당자와 함께 업무 프로세스 맵을 그려 나가는 코치입니다.

%s

%s

사용자의 질문에 답하고, 필요하면 플로우에 대한 구체적인 변경을 제안하세요.
노드 ID는 아래 플로우 설명에 있는 ID만 사용하고, [AI추가] 표시된 노드는 다시 고치자고 제안하지 마세요.

JSON 하나로만 답하세요:
{
  "speech": "사용자에게 건넬 답변",
  %s,
  "quickQueries": ["이어서 물어볼 만한 질문 2~3개"]
}`, toneGuide, labelGuide, suggestionShape)

// KnowledgeSystemPrompt answers conceptual questions about process mapping.
var KnowledgeSystemPrompt = fmt.Sprintf(`당신은 업무 프로세스 설계 방법론을 설명해 주는 안내자입니다.
L1~L7 프로세스 계층, BPMN 기호, 스윔레인, 분기 설계 같은 개념 질문에 답합니다.

%s

%s

설명은 짧은 예시와 함께 3~6문장으로 하고, 현재 플로우가 주어지면 그 안의 예로 연결해 주세요.
플로우 변경 제안은 질문이 명시적으로 요청할 때만 합니다.

JSON 하나로만 답하세요:
{
  "speech": "개념 설명",
  "suggestions": [],
  "quickQueries": ["관련해서 더 물어볼 만한 질문 2~3개"]
}`, toneGuide, labelGuide)

// ReviewSystemPrompt drives a full-flow review.
var ReviewSystemPrompt = fmt.Sprintf(`당신은 HR 업무 프로세스 맵을 검토하는 동료입니다.

%s

%s

플로우 전체를 살펴보고 빠진 단계, 연결되지 않은 노드, 판단 기준이 흐린 분기를 찾아 개선 아이디어로 제안하세요.

JSON 하나로만 답하세요:
{
  "speech": "검토 결과를 두세 문장으로 요약",
  %s,
  "quickQueries": ["후속 질문 2개"]
}`, toneGuide, labelGuide, suggestionShape)

// ValidateSystemPrompt asks for an L7 label review. Only the rewrite is
// used; the rule engine owns the verdict.
var ValidateSystemPrompt = fmt.Sprintf(`당신은 L7 라벨 품질을 함께 다듬는 코치입니다.

%s

%s

주어진 라벨을 기준에 맞게 고쳐 쓴 문장을 하나 제안하세요. 이미 충분히 좋다면 원문을 그대로 돌려주세요.

JSON 하나로만 답하세요:
{
  "rewriteSuggestion": "고쳐 쓴 라벨",
  "encouragement": "짧은 격려 한 문장"
}`, toneGuide, labelGuide)

// SuggestSystemPrompt asks for one quiet nudge about the current flow.
var SuggestSystemPrompt = fmt.Sprintf(`당신은 조용히 지켜보다가 필요한 순간에만 한마디 건네는 코치입니다.

%s

%s

현재 플로우를 보고 빠진 단계나 예외 처리를 짧고 부드럽게 짚어 주세요. 말할 것이 없으면 guidance를 비워 두세요.

JSON 하나로만 답하세요:
{
  "guidance": "한 줄 제안",
  "tone": "gentle",
  "quickQueries": ["궁금할 만한 질문 2개"]
}`, toneGuide, labelGuide)

// WelcomeSystemPrompt greets a user who just added the first step.
var WelcomeSystemPrompt = fmt.Sprintf(`당신은 HR 프로세스 설계를 처음 시작하는 사용자를 반기는 코치입니다.

%s

첫 단계를 추가한 사용자에게 환영 인사를 건네고, 이 프로세스의 일반적인 흐름과 고려할 점(예외 처리, 승인 분기)을 제안형으로 알려 주세요.

JSON 하나로만 답하세요:
{
  "greeting": "환영 인사",
  "processFlowExample": "일반적인 흐름 (단계를 →로 연결)",
  "guidanceText": "고려할 점을 담은 두세 문장",
  "quickQueries": ["후속 질문 3개"]
}`, toneGuide)

// PDDSystemPrompt asks for an automation category per task.
const PDDSystemPrompt = `당신은 HR 프로세스 자동화 전문가입니다. 각 태스크를 분석해 카테고리를 추천하세요.
카테고리: digital_worker(반복 데이터 작업), ssc_transfer(공유 서비스 센터 이관), as_is(현행 유지).

JSON 하나로만 답하세요:
{"recommendations":[{"nodeId":"...","nodeLabel":"...","suggestedCategory":"...","reason":"...","confidence":"high|medium|low"}],"summary":"전체 요약"}`

// =============================================================================
// User Prompts
// =============================================================================

// maxPromptTurns caps the conversation tail included in a prompt.
const maxPromptTurns = 6

// PromptInput is everything that goes into a chat user prompt.
type PromptInput struct {
	Message   string
	Context   datatypes.ChatContext
	Snapshot  datatypes.Snapshot
	Turns     []datatypes.Turn
	Summary   string
	Reference string // taxonomy block; empty when no match
	Mode      DescribeMode
}

// BuildUserPrompt assembles the chat user prompt.
//
// Sections, in order: 컨텍스트, the taxonomy reference when present, the
// conversation summary and the last six turns when present, 플로우 and
// 질문.
func BuildUserPrompt(in PromptInput) string {
	var b strings.Builder
	b.WriteString("컨텍스트: " + in.Context.String() + "\n")

	if in.Reference != "" {
		b.WriteString("\n" + in.Reference + "\n\n")
	}
	if s := strings.TrimSpace(in.Summary); s != "" {
		b.WriteString("[이전 대화 요약]\n" + s + "\n\n")
	}
	if turns := in.Turns; len(turns) > 0 {
		if len(turns) > maxPromptTurns {
			turns = turns[len(turns)-maxPromptTurns:]
		}
		b.WriteString("[최근 대화]\n")
		for _, t := range turns {
			speaker := "사용자"
			if t.Role == "assistant" {
				speaker = "코치"
			}
			b.WriteString(speaker + ": " + strings.TrimSpace(t.Content) + "\n")
		}
		b.WriteString("\n")
	}

	b.WriteString("플로우:\n" + DescribeFlow(in.Snapshot, in.Mode) + "\n")
	b.WriteString("질문: " + in.Message)
	return b.String()
}

// BuildReviewPrompt assembles the review user prompt.
func BuildReviewPrompt(ctx datatypes.ChatContext, snap datatypes.Snapshot, reference, message string) string {
	var b strings.Builder
	b.WriteString("컨텍스트: " + ctx.String() + "\n")
	if reference != "" {
		b.WriteString("\n" + reference + "\n\n")
	}
	b.WriteString("플로우:\n" + DescribeFlow(snap, DescribeDetail))
	if m := strings.TrimSpace(message); m != "" {
		b.WriteString("\n요청: " + m)
	}
	return b.String()
}

// BuildValidatePrompt assembles the label review user prompt.
func BuildValidatePrompt(nodeID string, kind datatypes.NodeKind, label string, ctx datatypes.ChatContext) string {
	return fmt.Sprintf("노드: [%s] %s\nL7: %q\n컨텍스트: %s", nodeID, kind, label, ctx.String())
}

// BuildAssistPrompt assembles the user prompt for suggestion and PDD
// requests: context and the detailed flow.
func BuildAssistPrompt(ctx datatypes.ChatContext, snap datatypes.Snapshot) string {
	return "컨텍스트: " + ctx.String() + "\n플로우:\n" + DescribeFlow(snap, DescribeDetail)
}

// BuildWelcomePrompt assembles the first-shape user prompt.
func BuildWelcomePrompt(processName, processType string) string {
	return fmt.Sprintf("프로세스명: %s\n프로세스 타입: %s\n\n사용자가 이 프로세스의 첫 번째 단계를 추가했습니다. 환영하고 격려해 주세요.",
		processName, processType)
}
