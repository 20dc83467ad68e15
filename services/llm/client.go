// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package llm talks to the completion endpoint behind the coach.
//
// ChatClient is the raw transport. Gateway wraps it with bounded retries,
// payload unwrapping and a CircuitBreaker so callers can skip the endpoint
// entirely while it is known to be failing.
package llm

import (
	"context"
	"errors"
)

var (
	// ErrCircuitOpen is returned without a network attempt while the
	// breaker is cooling down.
	ErrCircuitOpen = errors.New("llm: circuit open")

	// ErrEmptyCompletion means the endpoint answered with blank content.
	ErrEmptyCompletion = errors.New("llm: empty completion")

	// ErrMalformedPayload means the completion held no JSON object and
	// text fallback was not allowed.
	ErrMalformedPayload = errors.New("llm: malformed payload")

	// ErrUnusablePayload means the payload parsed but the caller rejected it.
	ErrUnusablePayload = errors.New("llm: unusable payload")
)

type GenerationParams struct {
	Temperature *float32 `json:"temperature"`
	TopP        *float32 `json:"top_p"`
	MaxTokens   *int     `json:"max_tokens"`
	Stop        []string `json:"stop"`
}

// ChatClient sends one system + user exchange and returns the raw
// completion text.
type ChatClient interface {
	Complete(ctx context.Context, system, user string, params GenerationParams) (string, error)

	// Models lists model ids; used as a liveness probe.
	Models(ctx context.Context) ([]string, error)
}
