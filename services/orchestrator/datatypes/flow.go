// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package datatypes provides data structures for the flowcoach service.
//
// This file contains the process diagram model: nodes, edges and the
// read-only snapshot the coaching chain reasons over.
package datatypes

import (
	"fmt"
	"strings"
)

// =============================================================================
// Node Kinds
// =============================================================================

// NodeKind identifies the role of a node in a process diagram.
type NodeKind string

const (
	// NodeStart marks the entry point of a process.
	NodeStart NodeKind = "start"

	// NodeProcess is a single task step. Labels follow the task-label rules.
	NodeProcess NodeKind = "process"

	// NodeDecision is a branch point. Labels are phrased as conditions.
	NodeDecision NodeKind = "decision"

	// NodeSubprocess links to a nested process.
	NodeSubprocess NodeKind = "subprocess"

	// NodeEnd marks a completion point.
	NodeEnd NodeKind = "end"
)

// AllNodeKinds lists every kind in display order.
var AllNodeKinds = []NodeKind{NodeStart, NodeProcess, NodeDecision, NodeSubprocess, NodeEnd}

// ParseNodeKind converts a wire value into a NodeKind.
//
// Matching is case-insensitive. An empty value maps to NodeProcess, the
// default kind for freshly drawn shapes.
func ParseNodeKind(s string) (NodeKind, error) {
	v := strings.ToLower(strings.TrimSpace(s))
	if v == "" {
		return NodeProcess, nil
	}
	for _, k := range AllNodeKinds {
		if string(k) == v {
			return k, nil
		}
	}
	return "", fmt.Errorf("unknown node kind %q", s)
}

// DisplayName returns the short Korean name used in prompts.
func (k NodeKind) DisplayName() string {
	switch k {
	case NodeStart:
		return "시작"
	case NodeProcess:
		return "태스크"
	case NodeDecision:
		return "분기"
	case NodeSubprocess:
		return "서브"
	case NodeEnd:
		return "종료"
	default:
		return string(k)
	}
}

// =============================================================================
// Diagram Model
// =============================================================================

// Position is the canvas coordinate of a node. Carried through untouched.
type Position struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Node is one shape on the process canvas.
type Node struct {
	ID          string    `json:"id" validate:"required,max=128"`
	Kind        NodeKind  `json:"type" validate:"omitempty,oneof=start process decision subprocess end"`
	Label       string    `json:"label" validate:"max=1000"`
	Position    *Position `json:"position,omitempty"`
	InputLabel  string    `json:"inputLabel,omitempty"`
	OutputLabel string    `json:"outputLabel,omitempty"`
	SystemName  string    `json:"systemName,omitempty"`
	Duration    string    `json:"duration,omitempty"`
	Category    string    `json:"category,omitempty"`
	LaneID      string    `json:"swimLaneId,omitempty"`
	AddedBy     string    `json:"addedBy,omitempty"`
}

// EffectiveKind returns the node kind, treating an empty kind as process.
func (n Node) EffectiveKind() NodeKind {
	if n.Kind == "" {
		return NodeProcess
	}
	return n.Kind
}

// Edge is a directed connection between two nodes.
type Edge struct {
	ID     string `json:"id" validate:"max=128"`
	Source string `json:"source" validate:"required"`
	Target string `json:"target" validate:"required"`
	Label  string `json:"label,omitempty"`
}

// Snapshot is the read-only diagram state sent with each request.
//
// # Invariants
//
//   - Node ids are unique.
//   - Every edge source and target names a node in Nodes.
//
// The coaching chain never mutates a snapshot.
type Snapshot struct {
	Nodes []Node `json:"currentNodes" validate:"max=500,dive"`
	Edges []Edge `json:"currentEdges" validate:"max=2000,dive"`
}

// Validate checks field constraints and the referential invariants.
func (s Snapshot) Validate() error {
	if err := chatValidate.Struct(s); err != nil {
		return fmt.Errorf("invalid snapshot: %w", err)
	}
	ids := make(map[string]struct{}, len(s.Nodes))
	for _, n := range s.Nodes {
		if _, dup := ids[n.ID]; dup {
			return fmt.Errorf("invalid snapshot: duplicate node id %q", n.ID)
		}
		ids[n.ID] = struct{}{}
	}
	for _, e := range s.Edges {
		if _, ok := ids[e.Source]; !ok {
			return fmt.Errorf("invalid snapshot: edge %q references unknown source %q", e.ID, e.Source)
		}
		if _, ok := ids[e.Target]; !ok {
			return fmt.Errorf("invalid snapshot: edge %q references unknown target %q", e.ID, e.Target)
		}
	}
	return nil
}

// CountKind returns how many nodes have the given kind.
func (s Snapshot) CountKind(k NodeKind) int {
	count := 0
	for _, n := range s.Nodes {
		if n.EffectiveKind() == k {
			count++
		}
	}
	return count
}

// HasKind reports whether at least one node has the given kind.
func (s Snapshot) HasKind(k NodeKind) bool {
	return s.CountKind(k) > 0
}

// Connected returns the set of node ids that appear on either end of an edge.
func (s Snapshot) Connected() map[string]struct{} {
	set := make(map[string]struct{}, len(s.Edges)*2)
	for _, e := range s.Edges {
		set[e.Source] = struct{}{}
		set[e.Target] = struct{}{}
	}
	return set
}

// Orphans returns the ids of nodes with no incident edge, in node order.
//
// When skipTerminals is true, start and end nodes are never reported.
func (s Snapshot) Orphans(skipTerminals bool) []string {
	connected := s.Connected()
	var out []string
	for _, n := range s.Nodes {
		k := n.EffectiveKind()
		if skipTerminals && (k == NodeStart || k == NodeEnd) {
			continue
		}
		if _, ok := connected[n.ID]; !ok {
			out = append(out, n.ID)
		}
	}
	return out
}
