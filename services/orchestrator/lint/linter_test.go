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
	"encoding/json"
	"strings"
	"testing"

	"github.com/AleutianAI/flowcoach/services/orchestrator/datatypes"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ruleIDs(v Verdict) []RuleID {
	ids := make([]RuleID, 0, len(v.Issues))
	for _, is := range v.Issues {
		ids = append(ids, is.RuleID)
	}
	return ids
}

// =============================================================================
// Rule Behavior
// =============================================================================

func TestValidate_BannedVerbOnTask(t *testing.T) {
	v := New(nil).Validate("처리한다", datatypes.NodeProcess, false)

	assert.Equal(t, []RuleID{RuleBannedVerb}, ruleIDs(v))
	assert.Equal(t, 70, v.Score)
	assert.False(t, v.Pass)
	assert.Equal(t, "'처리한다'는 L7 라벨로 사용할 수 없어요", v.Issues[0].Message)
	assert.Equal(t, encourageFailing, v.Encouragement)
}

func TestValidate_CleanLabel(t *testing.T) {
	v := New(nil).Validate("  급여를 조회한다 ", datatypes.NodeProcess, false)

	assert.Empty(t, v.Issues)
	assert.Equal(t, 100, v.Score)
	assert.True(t, v.Pass)
	assert.Equal(t, encourageClean, v.Encouragement)
	assert.Nil(t, v.RewriteSuggestion)
	assert.Equal(t, "high", v.Confidence)
}

func TestValidate_Rules(t *testing.T) {
	tests := []struct {
		name  string
		text  string
		kind  datatypes.NodeKind
		want  []RuleID
		score int
		pass  bool
	}{
		{"too short", "조회", datatypes.NodeProcess, []RuleID{RuleTooShort}, 90, true},
		{"empty counts as short", "", datatypes.NodeProcess, []RuleID{RuleTooShort}, 90, true},
		{"refinable verb", "지급 내역을 확인한다", datatypes.NodeProcess, []RuleID{RuleRefinableVerb}, 90, true},
		{"missing object", "급여 조회한다", datatypes.NodeProcess, []RuleID{RuleMissingObject}, 70, false},
		{"compound action", "급여를 조회하고 저장한다", datatypes.NodeProcess, []RuleID{RuleCompoundAction}, 70, false},
		{"intent phrasing is one action", "급여를 조회하고자 한다", datatypes.NodeProcess, nil, 100, true},
		{"system name uppercase", "SAP에서 급여를 조회한다", datatypes.NodeProcess, []RuleID{RuleSystemName}, 90, true},
		{"system name keyword", "급여를 조회한다(인사 시스템)", datatypes.NodeProcess, []RuleID{RuleSystemName}, 90, true},
		{"file format is not a system", "보고서를 저장한다 (PPT)", datatypes.NodeProcess, nil, 100, true},
		{"decision with criterion", "승인 여부", datatypes.NodeDecision, nil, 100, true},
		{"decision with task ending", "금액을 확인한다", datatypes.NodeDecision, []RuleID{RuleNoCriterion, RuleDecisionForm}, 80, true},
		{"decision skips task rules", "급여 조회한다", datatypes.NodeDecision, []RuleID{RuleNoCriterion, RuleDecisionForm}, 80, true},
		{"banned verb applies to decisions", "처리한다", datatypes.NodeDecision, []RuleID{RuleBannedVerb, RuleNoCriterion, RuleDecisionForm}, 50, false},
		{"empty kind is task", "급여 조회한다", "", []RuleID{RuleMissingObject}, 70, false},
	}

	linter := New(nil)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := linter.Validate(tt.text, tt.kind, false)
			if tt.want == nil {
				assert.Empty(t, v.Issues)
			} else {
				assert.Equal(t, tt.want, ruleIDs(v))
			}
			assert.Equal(t, tt.score, v.Score)
			assert.Equal(t, tt.pass, v.Pass)
		})
	}
}

func TestValidate_BannedSuppressesRefinable(t *testing.T) {
	v := New(nil).Validate("내역을 확인한다 그리고 처리한다", datatypes.NodeProcess, false)

	assert.True(t, v.HasRule(RuleBannedVerb))
	assert.False(t, v.HasRule(RuleRefinableVerb))
}

func TestValidate_CompoundSuggestionSplitsActions(t *testing.T) {
	v := New(nil).Validate("급여를 조회한 후 결과를 저장한다", datatypes.NodeProcess, false)

	require.True(t, v.HasRule(RuleCompoundAction))
	for _, is := range v.Issues {
		if is.RuleID == RuleCompoundAction {
			assert.Equal(t, `각 동작을 별도 단계로 분리해보세요: "급여를 조회한다" / "결과를 저장한다"`, is.Suggestion)
		}
	}
}

func TestValidate_DetectedSystemName(t *testing.T) {
	v := New(nil).Validate("SAP에서 급여를 조회한다", datatypes.NodeProcess, false)
	assert.Equal(t, "SAP", v.DetectedSystemName)
}

func TestValidate_TooLong(t *testing.T) {
	v := New(nil).Validate(strings.Repeat("가", 101), datatypes.NodeProcess, false)
	assert.True(t, v.HasRule(RuleTooLong))
}

func TestValidate_ScoreFloorsAtZero(t *testing.T) {
	// banned + compound + missing object + system name + too long
	text := "SAP에서 " + strings.Repeat("가", 90) + " 처리하고 조회한다"
	v := New(nil).Validate(text, datatypes.NodeProcess, false)

	rejects, warnings := v.Counts()
	assert.Equal(t, max(0, 100-30*rejects-10*warnings), v.Score)
	assert.GreaterOrEqual(t, v.Score, 0)
}

// =============================================================================
// Degraded Marker
// =============================================================================

func TestValidate_PrimaryFailedOnlyAddsMarker(t *testing.T) {
	linter := New(nil)

	normal := linter.Validate("급여 조회한다", datatypes.NodeProcess, false)
	degraded := linter.Validate("급여 조회한다", datatypes.NodeProcess, true)

	assert.Equal(t, normal.Issues, degraded.Issues)
	assert.Equal(t, normal.Score, degraded.Score)
	assert.True(t, degraded.Degraded)
	assert.Equal(t, DegradedWarning, degraded.Warning)
	assert.False(t, normal.Degraded)
}

func TestVerdict_JSONShape(t *testing.T) {
	v := New(nil).Validate("처리한다", datatypes.NodeProcess, true)

	raw, err := json.Marshal(v)
	require.NoError(t, err)

	var m map[string]any
	require.NoError(t, json.Unmarshal(raw, &m))
	assert.Equal(t, false, m["pass"])
	assert.Nil(t, m["rewriteSuggestion"])
	assert.Equal(t, true, m["llm_failed"])
	issue := m["issues"].([]any)[0].(map[string]any)
	assert.Equal(t, "reject", issue["severity"])
	assert.Equal(t, "R-03a", issue["ruleId"])
	assert.Contains(t, issue, "reasoning")
}

// =============================================================================
// Rule Set Loading
// =============================================================================

func TestLoadRuleSet_Embedded(t *testing.T) {
	rs, err := LoadRuleSet(embeddedRules)
	require.NoError(t, err)

	assert.Equal(t, 4, rs.MinRunes)
	assert.Equal(t, 100, rs.MaxRunes)
	assert.Equal(t, "처리한다", rs.BannedVerbs[0])
	assert.Equal(t, "확인한다", rs.RefinableVerbs[0].Verb)
}

func TestLoadRuleSet_BadPattern(t *testing.T) {
	data := strings.Replace(string(embeddedRules), "object_marker_pattern: '[을를]'", "object_marker_pattern: '[을를'", 1)
	_, err := LoadRuleSet([]byte(data))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "object_marker_pattern")
}

func TestLoadRuleSet_MissingLists(t *testing.T) {
	_, err := LoadRuleSet([]byte("version: 2\nlength:\n  min_runes: 4\n  max_runes: 100\n"))
	assert.Error(t, err)
}
