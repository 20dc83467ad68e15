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
)

// SuggestionType is the kind of node a suggestion proposes.
type SuggestionType string

const (
	SuggestStart      SuggestionType = "START"
	SuggestEnd        SuggestionType = "END"
	SuggestDecision   SuggestionType = "DECISION"
	SuggestSubprocess SuggestionType = "SUBPROCESS"
	SuggestProcess    SuggestionType = "PROCESS"
)

// ParseSuggestionType recognizes a wire value, case-insensitively.
func ParseSuggestionType(s string) (SuggestionType, bool) {
	switch SuggestionType(strings.ToUpper(strings.TrimSpace(s))) {
	case SuggestStart:
		return SuggestStart, true
	case SuggestEnd:
		return SuggestEnd, true
	case SuggestDecision:
		return SuggestDecision, true
	case SuggestSubprocess:
		return SuggestSubprocess, true
	case SuggestProcess:
		return SuggestProcess, true
	}
	return "", false
}

// typeKeywords is checked in order; the first group with a hit wins.
var typeKeywords = []struct {
	t     SuggestionType
	words []string
}{
	{SuggestEnd, []string{"종료", "완료", "끝", "end", "finish"}},
	{SuggestStart, []string{"시작", "start", "begin"}},
	{SuggestDecision, []string{"판단", "결정", "여부", "분기", "decision", "승인", "반려"}},
	{SuggestSubprocess, []string{"subprocess", "서브", "하위"}},
}

// InferSuggestionType derives a node type from a suggestion's label and summary.
//
// # Description
//
// Joins label and summary, lowercases, and checks keyword groups in
// precedence END, START, DECISION, SUBPROCESS. Anything else is PROCESS.
//
// # Inputs
//
//   - label: Proposed node label. May be empty.
//   - summary: Human summary of the suggestion. May be empty.
//
// # Outputs
//
//   - SuggestionType: Never empty.
func InferSuggestionType(label, summary string) SuggestionType {
	var parts []string
	if label != "" {
		parts = append(parts, label)
	}
	if summary != "" {
		parts = append(parts, summary)
	}
	text := strings.ToLower(strings.Join(parts, " "))
	for _, group := range typeKeywords {
		for _, w := range group.words {
			if strings.Contains(text, w) {
				return group.t
			}
		}
	}
	return SuggestProcess
}

// Suggestion is one proposed diagram change.
//
// Fields outside the known set are kept in Extra and written back
// unchanged, so a suggestion passes through normalization verbatim apart
// from its type.
type Suggestion struct {
	Action            string         `json:"action,omitempty"`
	Type              SuggestionType `json:"type"`
	Summary           string         `json:"summary,omitempty"`
	LabelSuggestion   string         `json:"labelSuggestion,omitempty"`
	NewLabel          string         `json:"newLabel,omitempty"`
	Reason            string         `json:"reason,omitempty"`
	Reasoning         string         `json:"reasoning,omitempty"`
	Confidence        string         `json:"confidence,omitempty"`
	TargetNodeID      string         `json:"targetNodeId,omitempty"`
	InsertAfterNodeID string         `json:"insertAfterNodeId,omitempty"`
	Extra             map[string]any `json:"-"`
}

var suggestionKnownKeys = map[string]struct{}{
	"action": {}, "type": {}, "summary": {}, "labelSuggestion": {}, "newLabel": {},
	"reason": {}, "reasoning": {}, "confidence": {}, "targetNodeId": {}, "insertAfterNodeId": {},
}

// suggestionFields mirrors Suggestion without its methods to avoid recursion.
type suggestionFields Suggestion

// SuggestionFromMap builds a Suggestion from a decoded JSON object.
//
// Known string fields are copied; non-string values for known keys are
// dropped. The type is recognized when valid and inferred otherwise.
func SuggestionFromMap(m map[string]any) Suggestion {
	str := func(key string) string {
		if v, ok := m[key].(string); ok {
			return v
		}
		return ""
	}
	s := Suggestion{
		Action:            str("action"),
		Summary:           str("summary"),
		LabelSuggestion:   str("labelSuggestion"),
		NewLabel:          str("newLabel"),
		Reason:            str("reason"),
		Reasoning:         str("reasoning"),
		Confidence:        str("confidence"),
		TargetNodeID:      str("targetNodeId"),
		InsertAfterNodeID: str("insertAfterNodeId"),
	}
	for k, v := range m {
		if _, known := suggestionKnownKeys[k]; known {
			continue
		}
		if s.Extra == nil {
			s.Extra = make(map[string]any)
		}
		s.Extra[k] = v
	}
	if t, ok := ParseSuggestionType(str("type")); ok {
		s.Type = t
	} else {
		s.Type = InferSuggestionType(s.LabelSuggestion, s.Summary)
	}
	return s
}

// UnmarshalJSON decodes known fields and keeps the rest in Extra.
func (s *Suggestion) UnmarshalJSON(data []byte) error {
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return err
	}
	*s = SuggestionFromMap(m)
	return nil
}

// MarshalJSON writes known fields and Extra as one object.
func (s Suggestion) MarshalJSON() ([]byte, error) {
	known, err := json.Marshal(suggestionFields(s))
	if err != nil {
		return nil, err
	}
	if len(s.Extra) == 0 {
		return known, nil
	}
	merged := make(map[string]any, len(s.Extra)+len(suggestionKnownKeys))
	for k, v := range s.Extra {
		merged[k] = v
	}
	var fields map[string]any
	if err := json.Unmarshal(known, &fields); err != nil {
		return nil, err
	}
	for k, v := range fields {
		merged[k] = v
	}
	return json.Marshal(merged)
}
