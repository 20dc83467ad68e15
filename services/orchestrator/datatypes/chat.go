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
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

// =============================================================================
// Limits
// =============================================================================

const (
	// MaxMessageBytes bounds a single user message.
	MaxMessageBytes = 8 * 1024

	// MaxRecentTurns bounds the conversation tail a client may send.
	MaxRecentTurns = 50

	// MaxSummaryBytes bounds the client-side conversation summary.
	MaxSummaryBytes = 16 * 1024
)

// =============================================================================
// Shared Validator Instance
// =============================================================================

// chatValidate is the validator instance for request datatypes.
var chatValidate *validator.Validate

func init() {
	chatValidate = validator.New()
	_ = chatValidate.RegisterValidation("maxbytes", validateMaxBytes)
}

// validateMaxBytes checks byte length against the numeric tag parameter.
//
// Byte length rather than rune count so a Korean message cannot slip past
// the bound at three bytes per rune.
func validateMaxBytes(fl validator.FieldLevel) bool {
	var limit int
	if _, err := fmt.Sscanf(fl.Param(), "%d", &limit); err != nil {
		return false
	}
	return len(fl.Field().String()) <= limit
}

// =============================================================================
// Requests
// =============================================================================

// ChatContext carries where in the HR taxonomy the user is working.
//
// Unknown keys sent by the client are ignored.
type ChatContext struct {
	L4          string `json:"l4,omitempty"`
	L5          string `json:"l5,omitempty"`
	ProcessName string `json:"processName,omitempty"`
	Domain      string `json:"domain,omitempty"`
}

// IsZero reports whether no context fields were supplied.
func (c ChatContext) IsZero() bool {
	return c == ChatContext{}
}

// String renders the context for inclusion in a prompt.
func (c ChatContext) String() string {
	var parts []string
	if c.Domain != "" {
		parts = append(parts, "domain="+c.Domain)
	}
	if c.L4 != "" {
		parts = append(parts, "l4="+c.L4)
	}
	if c.L5 != "" {
		parts = append(parts, "l5="+c.L5)
	}
	if c.ProcessName != "" {
		parts = append(parts, "processName="+c.ProcessName)
	}
	if len(parts) == 0 {
		return "{}"
	}
	return "{" + strings.Join(parts, ", ") + "}"
}

// Turn is one prior exchange in the conversation tail.
type Turn struct {
	Role    string `json:"role" validate:"required,oneof=user assistant"`
	Content string `json:"content" validate:"maxbytes=8192"`
}

// ChatRequest is the body of POST /api/chat and of websocket chat frames.
type ChatRequest struct {
	Message             string      `json:"message" validate:"maxbytes=8192"`
	Context             ChatContext `json:"context"`
	Nodes               []Node      `json:"currentNodes" validate:"max=500,dive"`
	Edges               []Edge      `json:"currentEdges" validate:"max=2000,dive"`
	RecentTurns         []Turn      `json:"recentTurns,omitempty" validate:"max=50,dive"`
	ConversationSummary string      `json:"conversationSummary,omitempty" validate:"maxbytes=16384"`
}

// Snapshot returns the diagram carried by the request.
func (r ChatRequest) Snapshot() Snapshot {
	return Snapshot{Nodes: r.Nodes, Edges: r.Edges}
}

// Validate checks field constraints and the diagram invariants.
func (r ChatRequest) Validate() error {
	if err := chatValidate.Struct(r); err != nil {
		return fmt.Errorf("invalid chat request: %w", err)
	}
	return r.Snapshot().Validate()
}

// ReviewRequest is the body of POST /api/review.
type ReviewRequest struct {
	UserMessage string      `json:"userMessage,omitempty" validate:"maxbytes=8192"`
	Context     ChatContext `json:"context"`
	Nodes       []Node      `json:"currentNodes" validate:"max=500,dive"`
	Edges       []Edge      `json:"currentEdges" validate:"max=2000,dive"`
}

// Snapshot returns the diagram carried by the request.
func (r ReviewRequest) Snapshot() Snapshot {
	return Snapshot{Nodes: r.Nodes, Edges: r.Edges}
}

// Validate checks field constraints and the diagram invariants.
func (r ReviewRequest) Validate() error {
	if err := chatValidate.Struct(r); err != nil {
		return fmt.Errorf("invalid review request: %w", err)
	}
	return r.Snapshot().Validate()
}

// ValidateLabelRequest is the body of POST /api/validate-l7.
type ValidateLabelRequest struct {
	NodeID   string      `json:"nodeId" validate:"max=128"`
	Label    string      `json:"label" validate:"maxbytes=4096"`
	NodeType string      `json:"nodeType" validate:"omitempty,oneof=start process decision subprocess end"`
	Context  ChatContext `json:"context"`
}

// Validate checks field constraints.
func (r ValidateLabelRequest) Validate() error {
	if err := chatValidate.Struct(r); err != nil {
		return fmt.Errorf("invalid validate request: %w", err)
	}
	return nil
}

// =============================================================================
// Responses
// =============================================================================

// Provenance names the tier that produced a response.
type Provenance string

const (
	SourceLLM   Provenance = "llm"
	SourceRules Provenance = "rules"
	SourceMock  Provenance = "mock"
	SourceNone  Provenance = "none"
)

// Level returns the fallback level paired with the provenance.
func (p Provenance) Level() int {
	switch p {
	case SourceLLM:
		return 0
	case SourceRules:
		return 1
	case SourceMock:
		return 2
	default:
		return 3
	}
}

// NormalizedResponse is the single response shape every tier produces.
//
// Source and FallbackLevel always agree: llm/0, rules/1, mock/2, none/3.
type NormalizedResponse struct {
	RequestID     string       `json:"requestId,omitempty"`
	Speech        string       `json:"speech"`
	Suggestions   []Suggestion `json:"suggestions"`
	QuickQueries  []string     `json:"quickQueries"`
	Tone          string       `json:"tone,omitempty"`
	Source        Provenance   `json:"source"`
	FallbackLevel int          `json:"fallbackLevel"`
}

// Tag stamps the provenance and its matching level onto the response.
func (r *NormalizedResponse) Tag(p Provenance) {
	r.Source = p
	r.FallbackLevel = p.Level()
}

// Usable reports whether the response carries speech or suggestions.
func (r NormalizedResponse) Usable() bool {
	return r.Speech != "" || len(r.Suggestions) > 0
}

// ChainStatus is the body of GET /api/chat/chain-status.
type ChainStatus struct {
	Enabled             bool `json:"enabled"`
	LLMFailCount        int  `json:"llm_fail_count"`
	LLMCooldownLeftSec  int  `json:"llm_cooldown_left_sec"`
	RuleEnabled         bool `json:"rule_enabled"`
	MockEnabled         bool `json:"mock_enabled"`
	LLMGatewayAvailable bool `json:"llm_gateway_available"`
}

// HealthResponse is the body of GET /api/health.
type HealthResponse struct {
	Status       string `json:"status"`
	Version      string `json:"version"`
	LLMConnected bool   `json:"llm_connected"`
	Mode         string `json:"mode"`
}

// ErrorResponse is returned with 4xx statuses.
type ErrorResponse struct {
	Error string `json:"error"`
}
