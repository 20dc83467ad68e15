// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package lint

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/AleutianAI/flowcoach/services/orchestrator/datatypes"
)

const (
	rejectPenalty  = 30
	warningPenalty = 10

	encourageClean   = "잘 작성하셨어요!"
	encouragePassing = "좋은 방향입니다. 제안을 반영하면 더 명확해질 수 있어요."
	encourageFailing = "수정이 필요한 항목이 있어요. 제안을 참고해주세요."

	// DegradedWarning is attached when the AI review was unavailable.
	DegradedWarning = "⚠️ AI 분석이 불가능해 표준 가이드라인으로 검증했습니다."
)

// =============================================================================
// RULE TABLE
// =============================================================================

// scope limits a rule to some node kinds.
type scope int

const (
	scopeAll scope = iota
	scopeTask
	scopeDecision
)

func (s scope) applies(k datatypes.NodeKind) bool {
	switch s {
	case scopeTask:
		return k != datatypes.NodeDecision
	case scopeDecision:
		return k == datatypes.NodeDecision
	default:
		return true
	}
}

// label is the input every rule sees.
type label struct {
	text  string
	runes int
	rules *RuleSet
}

// finding is what a matching rule reports.
type finding struct {
	message    string
	suggestion string
	system     string
}

// rule is one independent predicate.
type rule struct {
	id        RuleID
	severity  Severity
	tag       string
	scope     scope
	rationale string
	check     func(l label) (finding, bool)
}

// ruleTable is evaluated in order; issue order follows it.
var ruleTable = []rule{
	{
		id: RuleTooShort, severity: SeverityWarning, tag: "길이 부족", scope: scopeAll,
		rationale: "명확한 라벨은 제3자가 정확히 이해할 수 있도록 도와줍니다",
		check: func(l label) (finding, bool) {
			if l.runes >= l.rules.MinRunes {
				return finding{}, false
			}
			return finding{
				message:    "라벨이 너무 짧아 의미 전달이 어려울 수 있어요",
				suggestion: "동작과 대상이 드러나도록 조금 더 구체화해보세요.",
			}, true
		},
	},
	{
		id: RuleTooLong, severity: SeverityWarning, tag: "길이 초과", scope: scopeAll,
		rationale: "간결한 표현이 플로우 전체의 가독성을 높입니다",
		check: func(l label) (finding, bool) {
			if l.runes <= l.rules.MaxRunes {
				return finding{}, false
			}
			return finding{
				message:    "라벨이 길어지면 핵심 동작이 흐려질 수 있어요",
				suggestion: "핵심 동작 1개 중심으로 간결하게 줄여보세요.",
			}, true
		},
	},
	{
		id: RuleBannedVerb, severity: SeverityReject, tag: "금지 동사", scope: scopeAll,
		rationale: "이 동사는 어떤 맥락에서도 구체적 행위를 나타내지 않아 제3자가 수행할 수 없습니다.",
		check: func(l label) (finding, bool) {
			verb, ok := l.rules.bannedVerb(l.text)
			if !ok {
				return finding{}, false
			}
			return finding{
				message:    fmt.Sprintf("'%s'는 L7 라벨로 사용할 수 없어요", verb),
				suggestion: "조회한다, 입력한다, 저장한다, 승인한다 같은 구체 동사로 바꿔주세요.",
			}, true
		},
	},
	{
		id: RuleSystemName, severity: SeverityWarning, tag: "시스템명 분리", scope: scopeAll,
		rationale: "라벨과 시스템명을 분리하면 프로세스 로직이 명확해집니다.",
		check: func(l label) (finding, bool) {
			name, ok := l.rules.systemName(l.text)
			if !ok {
				return finding{}, false
			}
			return finding{
				message:    fmt.Sprintf("시스템명 '%s'이 감지되었습니다. 메타데이터로 분리하면 라벨이 깔끔해져요", name),
				suggestion: fmt.Sprintf("라벨은 동작만 남기고 '%s'은 시스템명 필드에 입력해보세요.", name),
				system:     name,
			}, true
		},
	},
	{
		id: RuleRefinableVerb, severity: SeverityWarning, tag: "구체화 권장", scope: scopeTask,
		rationale: "구체적 동사는 제3자가 정확히 이해할 수 있도록 도와줍니다.",
		check: func(l label) (finding, bool) {
			if _, banned := l.rules.bannedVerb(l.text); banned {
				return finding{}, false
			}
			rv, ok := l.rules.refinableVerb(l.text)
			if !ok {
				return finding{}, false
			}
			return finding{
				message:    fmt.Sprintf("'%s' 대신 구체 동사를 쓰면 더 명확해질 수 있어요", rv.Verb),
				suggestion: "대안: " + rv.Alternatives,
			}, true
		},
	},
	{
		id: RuleCompoundAction, severity: SeverityReject, tag: "복수 동작", scope: scopeTask,
		rationale: "하나의 화면 내 연속 동작 = 1개 L7 원칙에 따라 분리가 필요합니다.",
		check: func(l label) (finding, bool) {
			first, second, ok := l.rules.compoundAction(l.text)
			if !ok {
				return finding{}, false
			}
			return finding{
				message:    "한 라벨에 동작이 2개 이상 포함되어 있어요",
				suggestion: fmt.Sprintf("각 동작을 별도 단계로 분리해보세요: \"%s\" / \"%s\"", first, second),
			}, true
		},
	},
	{
		id: RuleMissingObject, severity: SeverityReject, tag: "목적어 누락", scope: scopeTask,
		rationale: "목적어가 있으면 제3자가 무엇에 대한 동작인지 바로 알 수 있습니다.",
		check: func(l label) (finding, bool) {
			if l.runes < l.rules.MinRunes {
				return finding{}, false
			}
			verb, ok := firstContained(l.text, l.rules.TransitiveVerbs)
			if !ok || l.rules.objectMarker.MatchString(l.text) {
				return finding{}, false
			}
			return finding{
				message:    fmt.Sprintf("'%s'는 타동사인데 목적어(을/를)가 없어요", verb),
				suggestion: fmt.Sprintf("예: \"급여를 %s\" 형태로 대상을 명시해보세요.", verb),
			}, true
		},
	},
	{
		id: RuleNoCriterion, severity: SeverityWarning, tag: "기준값 누락", scope: scopeDecision,
		rationale: "명확한 기준은 분기 누락과 운영 해석 차이를 줄여줍니다.",
		check: func(l label) (finding, bool) {
			if _, ok := firstContained(l.text, l.rules.DecisionHints); ok {
				return finding{}, false
			}
			return finding{
				message: "분기 기준이 드러나지 않아 판단 조건이 모호할 수 있어요",
				suggestion: "Decision 5패턴 중 하나를 사용해보세요: '~여부'(범용), '~인가?'(유형 판별), " +
					"'~가 있는가?'(존재 확인), '~되어 있는가?'(상태 확인), 'D-N 이전인가?'(기한 기준). " +
					"예: '승인 여부', '대기자가 있는가?', 'D-7 이전인가?'",
			}, true
		},
	},
	{
		id: RuleDecisionForm, severity: SeverityWarning, tag: "Decision 형식", scope: scopeDecision,
		rationale: "Decision 노드는 분기 조건을 나타내므로 동작형 어미보다 조건형 어미가 적합합니다.",
		check: func(l label) (finding, bool) {
			if !l.rules.decisionEnding.MatchString(l.text) {
				return finding{}, false
			}
			return finding{
				message:    "판단 노드에 '~한다' 형식이 사용되었어요. '~여부' 또는 '~인가?' 형태가 적합합니다",
				suggestion: "'승인 여부', '적격 인가?' 등 판단 조건 형식으로 바꿔주세요.",
			}, true
		},
	},
}

// =============================================================================
// LINTER
// =============================================================================

// Linter validates task and decision labels against a RuleSet.
//
// Thread Safety: Safe for concurrent use; holds only immutable state.
type Linter struct {
	rules *RuleSet
}

// New creates a linter over rs. A nil rs uses the embedded rules.
func New(rs *RuleSet) *Linter {
	if rs == nil {
		rs = DefaultRuleSet()
	}
	return &Linter{rules: rs}
}

// Validate checks a single label.
//
// Description:
//
//	Trims the label, evaluates every rule whose scope covers kind, and
//	scores the result. The outcome depends only on label and kind;
//	primaryFailed only adds the degraded marker.
//
// Inputs:
//
//	text - The label as typed.
//	kind - Node kind. Empty means process.
//	primaryFailed - True when the AI review could not run.
//
// Outputs:
//
//	Verdict - Never nil issues slice.
func (l *Linter) Validate(text string, kind datatypes.NodeKind, primaryFailed bool) Verdict {
	if kind == "" {
		kind = datatypes.NodeProcess
	}
	in := label{
		text:  strings.TrimSpace(text),
		rules: l.rules,
	}
	in.runes = utf8.RuneCountInString(in.text)

	v := Verdict{
		Confidence: "high",
		Issues:     []Issue{},
	}
	for _, r := range ruleTable {
		if !r.scope.applies(kind) {
			continue
		}
		f, hit := r.check(in)
		if !hit {
			continue
		}
		v.Issues = append(v.Issues, Issue{
			RuleID:      r.id,
			Severity:    r.severity,
			FriendlyTag: r.tag,
			Message:     f.message,
			Suggestion:  f.suggestion,
			Rationale:   r.rationale,
		})
		if f.system != "" {
			v.DetectedSystemName = f.system
		}
	}

	rejects, warnings := v.Counts()
	v.Score = max(0, 100-rejectPenalty*rejects-warningPenalty*warnings)
	v.Pass = rejects == 0

	switch {
	case len(v.Issues) == 0:
		v.Encouragement = encourageClean
	case v.Pass:
		v.Encouragement = encouragePassing
	default:
		v.Encouragement = encourageFailing
	}

	if primaryFailed {
		v.Degraded = true
		v.Warning = DegradedWarning
	}
	return v
}
