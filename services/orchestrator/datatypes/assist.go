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

import "fmt"

// =============================================================================
// Assist Requests
// =============================================================================

// AssistRequest is the body of POST /api/contextual-suggest and
// POST /api/first-shape-welcome.
type AssistRequest struct {
	Context ChatContext `json:"context"`
	Nodes   []Node      `json:"currentNodes" validate:"max=500,dive"`
	Edges   []Edge      `json:"currentEdges" validate:"max=2000,dive"`
}

// Snapshot returns the diagram carried by the request.
func (r AssistRequest) Snapshot() Snapshot {
	return Snapshot{Nodes: r.Nodes, Edges: r.Edges}
}

// Validate checks field constraints and the diagram invariants.
func (r AssistRequest) Validate() error {
	if err := chatValidate.Struct(r); err != nil {
		return fmt.Errorf("invalid assist request: %w", err)
	}
	return r.Snapshot().Validate()
}

// =============================================================================
// Assist Responses
// =============================================================================

// ContextualSuggestion is a short, unprompted nudge about the diagram.
// An empty Guidance means there is nothing worth saying.
type ContextualSuggestion struct {
	Guidance     string   `json:"guidance"`
	Tone         string   `json:"tone,omitempty"`
	QuickQueries []string `json:"quickQueries"`
}

// Welcome greets a user who has just drawn the first shape.
type Welcome struct {
	Text         string   `json:"text"`
	QuickQueries []string `json:"quickQueries"`
}

// TaskCategory is the automation bucket a task is recommended for.
type TaskCategory string

const (
	// CategoryDigitalWorker is rote data work a bot can take over.
	CategoryDigitalWorker TaskCategory = "digital_worker"

	// CategorySSCTransfer is notification work for a shared service center.
	CategorySSCTransfer TaskCategory = "ssc_transfer"

	// CategoryAsIs stays with the current owner.
	CategoryAsIs TaskCategory = "as_is"
)

// TaskRecommendation classifies one task node.
type TaskRecommendation struct {
	NodeID            string       `json:"nodeId"`
	NodeLabel         string       `json:"nodeLabel"`
	SuggestedCategory TaskCategory `json:"suggestedCategory"`
	Reason            string       `json:"reason"`
	Confidence        string       `json:"confidence"`
}

// PDDAnalysis is the body returned by POST /api/analyze-pdd.
type PDDAnalysis struct {
	Recommendations []TaskRecommendation `json:"recommendations"`
	Summary         string               `json:"summary"`
	Source          Provenance           `json:"source"`
}
