// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package llm

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
)

// Payload is the decoded JSON object returned by the model.
type Payload map[string]any

const thinkClose = "</think>"

var outermostObject = regexp.MustCompile(`(?s)\{.*\}`)

// Unwrap strips reasoning preamble and code fences from a completion.
//
// Everything up to the last </think> is dropped. Then the body of the
// first ```json fence is taken, or failing that the body of the first
// bare ``` fence.
func Unwrap(raw string) string {
	text := raw
	if i := strings.LastIndex(text, thinkClose); i >= 0 {
		text = text[i+len(thinkClose):]
	}
	text = strings.TrimSpace(text)

	if _, after, ok := strings.Cut(text, "```json"); ok {
		body, _, _ := strings.Cut(after, "```")
		return strings.TrimSpace(body)
	}
	if _, after, ok := strings.Cut(text, "```"); ok {
		body, _, _ := strings.Cut(after, "```")
		return strings.TrimSpace(body)
	}
	return text
}

// ParsePayload unwraps a completion and decodes it as a JSON object.
//
// # Description
//
// When the unwrapped text is not an object, the outermost {...} span is
// tried. When that fails too and allowText is set, non-empty text is
// wrapped as a minimal coaching payload with the text as speech.
//
// # Outputs
//
//   - Payload: Decoded object.
//   - error: ErrEmptyCompletion or ErrMalformedPayload.
func ParsePayload(raw string, allowText bool) (Payload, error) {
	text := Unwrap(raw)
	if text == "" {
		return nil, ErrEmptyCompletion
	}

	if p, ok := decodeObject(text); ok {
		return p, nil
	}
	if span := outermostObject.FindString(text); span != "" {
		if p, ok := decodeObject(span); ok {
			return p, nil
		}
	}

	if allowText {
		return TextPayload(text), nil
	}
	return nil, fmt.Errorf("%w: %d bytes without a JSON object", ErrMalformedPayload, len(text))
}

// TextPayload wraps plain text in the coaching response shape.
func TextPayload(text string) Payload {
	return Payload{
		"speech":       text,
		"suggestions":  []any{},
		"quickQueries": []any{},
	}
}

func decodeObject(s string) (Payload, bool) {
	var p Payload
	if err := json.Unmarshal([]byte(s), &p); err != nil || p == nil {
		return nil, false
	}
	return p, true
}
