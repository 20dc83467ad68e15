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

import "github.com/AleutianAI/flowcoach/services/orchestrator/datatypes"

// FlowSignals summarizes the structural health of a diagram.
type FlowSignals struct {
	HasStart bool
	HasEnd   bool

	// OrphanIDs lists nodes with no incident edge, start and end included.
	OrphanIDs []string

	DecisionCount int
	ProcessCount  int
	NodeCount     int
	EdgeCount     int
}

// ComputeSignals derives FlowSignals from a snapshot.
func ComputeSignals(s datatypes.Snapshot) FlowSignals {
	return FlowSignals{
		HasStart:      s.HasKind(datatypes.NodeStart),
		HasEnd:        s.HasKind(datatypes.NodeEnd),
		OrphanIDs:     s.Orphans(false),
		DecisionCount: s.CountKind(datatypes.NodeDecision),
		ProcessCount:  s.CountKind(datatypes.NodeProcess),
		NodeCount:     len(s.Nodes),
		EdgeCount:     len(s.Edges),
	}
}

// MissingBranch reports a process chain long enough to need a decision
// but without one.
func (f FlowSignals) MissingBranch() bool {
	return f.ProcessCount >= 3 && f.DecisionCount == 0
}
