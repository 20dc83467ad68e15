// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package datatypes

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// =============================================================================
// Snapshot Tests
// =============================================================================

func TestParseNodeKind(t *testing.T) {
	k, err := ParseNodeKind("Decision")
	require.NoError(t, err)
	assert.Equal(t, NodeDecision, k)

	k, err = ParseNodeKind("")
	require.NoError(t, err)
	assert.Equal(t, NodeProcess, k)

	_, err = ParseNodeKind("swimlane")
	assert.Error(t, err)
}

func TestSnapshot_Validate_DanglingEdge(t *testing.T) {
	s := Snapshot{
		Nodes: []Node{{ID: "a", Kind: NodeStart}},
		Edges: []Edge{{ID: "e1", Source: "a", Target: "missing"}},
	}

	err := s.Validate()

	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing")
}

func TestSnapshot_Validate_DuplicateNode(t *testing.T) {
	s := Snapshot{Nodes: []Node{{ID: "a"}, {ID: "a"}}}
	assert.Error(t, s.Validate())
}

func TestSnapshot_Validate_UnknownKind(t *testing.T) {
	s := Snapshot{Nodes: []Node{{ID: "a", Kind: "lane"}}}
	assert.Error(t, s.Validate())
}

func TestSnapshot_Orphans(t *testing.T) {
	s := Snapshot{
		Nodes: []Node{
			{ID: "s", Kind: NodeStart},
			{ID: "p1", Kind: NodeProcess},
			{ID: "p2", Kind: NodeProcess},
			{ID: "x", Kind: NodeEnd},
		},
		Edges: []Edge{{ID: "e1", Source: "s", Target: "p1"}},
	}

	assert.Equal(t, []string{"p2", "x"}, s.Orphans(false))
	assert.Equal(t, []string{"p2"}, s.Orphans(true))
	assert.Equal(t, 2, s.CountKind(NodeProcess))
	assert.True(t, s.HasKind(NodeEnd))
	assert.False(t, s.HasKind(NodeDecision))
}

// =============================================================================
// Suggestion Tests
// =============================================================================

func TestInferSuggestionType(t *testing.T) {
	tests := []struct {
		name    string
		label   string
		summary string
		want    SuggestionType
	}{
		{"end keyword", "종료", "", SuggestEnd},
		{"end beats decision", "승인 완료", "", SuggestEnd},
		{"english start", "", "Begin intake", SuggestStart},
		{"decision", "승인 여부", "분기 추가", SuggestDecision},
		{"subprocess", "", "하위 프로세스 연결", SuggestSubprocess},
		{"fallback", "급여를 조회한다", "", SuggestProcess},
		{"empty", "", "", SuggestProcess},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, InferSuggestionType(tt.label, tt.summary))
		})
	}
}

func TestSuggestionFromMap_KeepsGivenType(t *testing.T) {
	s := SuggestionFromMap(map[string]any{"type": "decision", "summary": "종료 노드 추가"})
	assert.Equal(t, SuggestDecision, s.Type)
}

func TestSuggestionFromMap_InfersUnknownType(t *testing.T) {
	s := SuggestionFromMap(map[string]any{"type": "GATEWAY", "summary": "종료 노드 추가"})
	assert.Equal(t, SuggestEnd, s.Type)
}

func TestSuggestion_JSONPreservesExtraFields(t *testing.T) {
	raw := `{"action":"ADD","summary":"분기 추가","priority":2,"meta":{"k":"v"}}`

	var s Suggestion
	require.NoError(t, json.Unmarshal([]byte(raw), &s))
	out, err := json.Marshal(s)
	require.NoError(t, err)

	var back map[string]any
	require.NoError(t, json.Unmarshal(out, &back))
	assert.Equal(t, "ADD", back["action"])
	assert.Equal(t, "DECISION", back["type"])
	assert.Equal(t, float64(2), back["priority"])
	assert.Equal(t, map[string]any{"k": "v"}, back["meta"])
}

// =============================================================================
// Request Validation Tests
// =============================================================================

func TestChatRequest_Validate_MessageTooLarge(t *testing.T) {
	req := ChatRequest{Message: strings.Repeat("가", MaxMessageBytes/3+1)}
	assert.Error(t, req.Validate())
}

func TestChatRequest_Validate_OK(t *testing.T) {
	req := ChatRequest{
		Message: "다음 단계 추천해줘",
		Nodes:   []Node{{ID: "n1", Kind: NodeProcess, Label: "급여를 조회한다"}},
		RecentTurns: []Turn{
			{Role: "user", Content: "안녕"},
			{Role: "assistant", Content: "반가워요"},
		},
	}
	assert.NoError(t, req.Validate())
}

func TestChatRequest_Validate_BadTurnRole(t *testing.T) {
	req := ChatRequest{RecentTurns: []Turn{{Role: "system", Content: "x"}}}
	assert.Error(t, req.Validate())
}

func TestProvenance_Level(t *testing.T) {
	var r NormalizedResponse
	r.Tag(SourceRules)
	assert.Equal(t, 1, r.FallbackLevel)
	assert.Equal(t, SourceRules, r.Source)

	assert.Equal(t, 0, SourceLLM.Level())
	assert.Equal(t, 2, SourceMock.Level())
	assert.Equal(t, 3, SourceNone.Level())
}
