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
	"strings"

	"github.com/AleutianAI/flowcoach/services/llm"
	"github.com/AleutianAI/flowcoach/services/orchestrator/datatypes"
)

// speechKeys is the priority list of fields that may carry the reply text.
var speechKeys = []string{"speech", "message", "guidance", "text", "content", "answer"}

// extractSpeech returns the first non-blank speech field, falling back to
// an OpenAI-style choices[0].message.content.
func extractSpeech(p llm.Payload) string {
	for _, k := range speechKeys {
		if v, ok := p[k].(string); ok && strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}
	choices, _ := p["choices"].([]any)
	if len(choices) == 0 {
		return ""
	}
	first, _ := choices[0].(map[string]any)
	msg, _ := first["message"].(map[string]any)
	if v, ok := msg["content"].(string); ok {
		return strings.TrimSpace(v)
	}
	return ""
}

// Normalize converts a model payload into the response shape.
//
// Suggestions that are not objects and quick queries that are not
// strings are dropped. Suggestion types are recognized or inferred.
// The result is untagged.
func Normalize(p llm.Payload) datatypes.NormalizedResponse {
	out := datatypes.NormalizedResponse{
		Speech:       extractSpeech(p),
		Suggestions:  []datatypes.Suggestion{},
		QuickQueries: []string{},
	}
	if raw, ok := p["suggestions"].([]any); ok {
		for _, item := range raw {
			if m, ok := item.(map[string]any); ok {
				out.Suggestions = append(out.Suggestions, datatypes.SuggestionFromMap(m))
			}
		}
	}
	out.QuickQueries = append(out.QuickQueries, stringList(p["quickQueries"])...)
	if tone, ok := p["tone"].(string); ok {
		out.Tone = tone
	}
	return out
}

// normalizeResponse applies the same rules to a typed response built by a
// local responder: trimmed speech, non-nil lists, and every suggestion
// carrying a valid type.
func normalizeResponse(r datatypes.NormalizedResponse) datatypes.NormalizedResponse {
	r.Speech = strings.TrimSpace(r.Speech)
	if r.QuickQueries == nil {
		r.QuickQueries = []string{}
	}
	suggestions := make([]datatypes.Suggestion, len(r.Suggestions))
	for i, s := range r.Suggestions {
		if t, ok := datatypes.ParseSuggestionType(string(s.Type)); ok {
			s.Type = t
		} else {
			s.Type = datatypes.InferSuggestionType(s.LabelSuggestion, s.Summary)
		}
		suggestions[i] = s
	}
	r.Suggestions = suggestions
	return r
}

// usablePayload is the gateway acceptance predicate for chat.
func usablePayload(p llm.Payload) bool {
	return Normalize(p).Usable()
}

// speechPayload accepts only payloads that carry speech.
func speechPayload(p llm.Payload) bool {
	return Normalize(p).Speech != ""
}

// stringList keeps the string items of a decoded JSON array.
func stringList(v any) []string {
	raw, _ := v.([]any)
	out := make([]string, 0, len(raw))
	for _, item := range raw {
		if q, ok := item.(string); ok {
			out = append(out, q)
		}
	}
	return out
}
