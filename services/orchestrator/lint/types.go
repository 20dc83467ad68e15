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
	"fmt"
)

// =============================================================================
// SEVERITY
// =============================================================================

// Severity represents how strongly an issue blocks a label.
type Severity int

const (
	// SeverityWarning lowers the score but does not fail the label.
	SeverityWarning Severity = iota

	// SeverityReject fails the label.
	SeverityReject
)

// String returns the wire representation of the severity.
func (s Severity) String() string {
	switch s {
	case SeverityWarning:
		return "warning"
	case SeverityReject:
		return "reject"
	default:
		return "unknown"
	}
}

// MarshalText implements encoding.TextMarshaler.
func (s Severity) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
//
// Description:
//
//	Accepts "reject" and "warning". Anything else is an error so that a
//	remote review cannot smuggle in an unknown severity.
func (s *Severity) UnmarshalText(b []byte) error {
	switch string(b) {
	case "reject":
		*s = SeverityReject
	case "warning":
		*s = SeverityWarning
	default:
		return fmt.Errorf("unknown severity %q", string(b))
	}
	return nil
}

// =============================================================================
// RULE IDS
// =============================================================================

// RuleID identifies a label rule.
type RuleID string

const (
	RuleTooShort       RuleID = "R-01"
	RuleTooLong        RuleID = "R-02"
	RuleBannedVerb     RuleID = "R-03a"
	RuleRefinableVerb  RuleID = "R-03b"
	RuleSystemName     RuleID = "R-04"
	RuleCompoundAction RuleID = "R-05"
	RuleMissingObject  RuleID = "R-07"
	RuleNoCriterion    RuleID = "R-08"
	RuleDecisionForm   RuleID = "R-09"
)

// =============================================================================
// VERDICT
// =============================================================================

// Issue is one rule finding.
type Issue struct {
	RuleID      RuleID   `json:"ruleId"`
	Severity    Severity `json:"severity"`
	FriendlyTag string   `json:"friendlyTag"`
	Message     string   `json:"message"`
	Suggestion  string   `json:"suggestion"`
	Rationale   string   `json:"reasoning"`
}

// Verdict is the outcome of validating one label.
//
// Pass is true iff no issue has SeverityReject. Score is
// max(0, 100 - 30*rejects - 10*warnings).
type Verdict struct {
	Pass               bool    `json:"pass"`
	Score              int     `json:"score"`
	Confidence         string  `json:"confidence"`
	Issues             []Issue `json:"issues"`
	RewriteSuggestion  *string `json:"rewriteSuggestion"`
	Encouragement      string  `json:"encouragement"`
	DetectedSystemName string  `json:"detectedSystemName,omitempty"`
	Degraded           bool    `json:"llm_failed,omitempty"`
	Warning            string  `json:"warning,omitempty"`
}

// HasRule reports whether the verdict contains an issue for id.
func (v Verdict) HasRule(id RuleID) bool {
	for _, is := range v.Issues {
		if is.RuleID == id {
			return true
		}
	}
	return false
}

// Counts returns the number of reject and warning issues.
func (v Verdict) Counts() (rejects, warnings int) {
	for _, is := range v.Issues {
		switch is.Severity {
		case SeverityReject:
			rejects++
		case SeverityWarning:
			warnings++
		}
	}
	return rejects, warnings
}
