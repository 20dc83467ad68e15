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
	_ "embed"
	"fmt"
	"regexp"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

//go:embed l7_rules.yaml
var embeddedRules []byte

// =============================================================================
// RULE DATA
// =============================================================================

// RefinableVerb pairs a vague verb with more specific alternatives.
type RefinableVerb struct {
	Verb         string `yaml:"verb" validate:"required"`
	Alternatives string `yaml:"alternatives" validate:"required"`
}

// ruleFile is the YAML document layout.
type ruleFile struct {
	Version int `yaml:"version"`
	Length  struct {
		MinRunes int `yaml:"min_runes" validate:"gt=0"`
		MaxRunes int `yaml:"max_runes" validate:"gtfield=MinRunes"`
	} `yaml:"length"`
	BannedVerbs           []string        `yaml:"banned_verbs" validate:"required,min=1,dive,required"`
	RefinableVerbs        []RefinableVerb `yaml:"refinable_verbs" validate:"required,min=1,dive"`
	TransitiveVerbs       []string        `yaml:"transitive_verbs" validate:"required,min=1,dive,required"`
	DecisionHints         []string        `yaml:"decision_hints" validate:"required,min=1,dive,required"`
	DecisionEndingPattern string          `yaml:"decision_ending_pattern" validate:"required"`
	SystemName            struct {
		Patterns         []string `yaml:"patterns" validate:"required,min=1"`
		NonSystemTerms   []string `yaml:"non_system_terms"`
		KeywordsPattern  string   `yaml:"keywords_pattern" validate:"required"`
		UppercasePattern string   `yaml:"uppercase_pattern" validate:"required"`
	} `yaml:"system_name"`
	CompoundAction struct {
		Patterns        []string `yaml:"patterns" validate:"required,min=1"`
		ExcludePatterns []string `yaml:"exclude_patterns"`
	} `yaml:"compound_action"`
	ObjectMarkerPattern string `yaml:"object_marker_pattern" validate:"required"`
}

// RuleSet is the compiled rule data. Immutable after LoadRuleSet returns.
type RuleSet struct {
	Version         int
	MinRunes        int
	MaxRunes        int
	BannedVerbs     []string
	RefinableVerbs  []RefinableVerb
	TransitiveVerbs []string
	DecisionHints   []string

	decisionEnding   *regexp.Regexp
	systemPatterns   []*regexp.Regexp
	nonSystemTerms   map[string]struct{}
	systemKeywords   *regexp.Regexp
	uppercase        *regexp.Regexp
	compoundPatterns []*regexp.Regexp
	intentExclusions []*regexp.Regexp
	objectMarker     *regexp.Regexp
}

// LoadRuleSet parses and compiles rule data.
//
// Description:
//
//	Decodes the YAML document, validates required fields, and compiles
//	every pattern. Any bad pattern fails the whole load.
//
// Inputs:
//
//	data - YAML bytes in the l7_rules.yaml layout.
//
// Outputs:
//
//	*RuleSet - Compiled rules.
//	error - Non-nil if decoding, validation or compilation fails.
func LoadRuleSet(data []byte) (*RuleSet, error) {
	var f ruleFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("decode rule file: %w", err)
	}
	if err := validator.New().Struct(f); err != nil {
		return nil, fmt.Errorf("validate rule file: %w", err)
	}

	rs := &RuleSet{
		Version:         f.Version,
		MinRunes:        f.Length.MinRunes,
		MaxRunes:        f.Length.MaxRunes,
		BannedVerbs:     f.BannedVerbs,
		RefinableVerbs:  f.RefinableVerbs,
		TransitiveVerbs: f.TransitiveVerbs,
		DecisionHints:   f.DecisionHints,
		nonSystemTerms:  make(map[string]struct{}, len(f.SystemName.NonSystemTerms)),
	}
	for _, term := range f.SystemName.NonSystemTerms {
		rs.nonSystemTerms[strings.ToUpper(term)] = struct{}{}
	}

	var err error
	if rs.decisionEnding, err = compile("decision_ending_pattern", f.DecisionEndingPattern); err != nil {
		return nil, err
	}
	if rs.systemKeywords, err = compile("system_name.keywords_pattern", f.SystemName.KeywordsPattern); err != nil {
		return nil, err
	}
	if rs.uppercase, err = compile("system_name.uppercase_pattern", f.SystemName.UppercasePattern); err != nil {
		return nil, err
	}
	if rs.objectMarker, err = compile("object_marker_pattern", f.ObjectMarkerPattern); err != nil {
		return nil, err
	}
	if rs.systemPatterns, err = compileAll("system_name.patterns", f.SystemName.Patterns); err != nil {
		return nil, err
	}
	if rs.compoundPatterns, err = compileAll("compound_action.patterns", f.CompoundAction.Patterns); err != nil {
		return nil, err
	}
	if rs.intentExclusions, err = compileAll("compound_action.exclude_patterns", f.CompoundAction.ExcludePatterns); err != nil {
		return nil, err
	}
	return rs, nil
}

var (
	defaultRuleSet     *RuleSet
	defaultRuleSetErr  error
	defaultRuleSetOnce sync.Once
)

// DefaultRuleSet returns the embedded rule set, compiled once.
//
// Panics if the embedded file is invalid, which only a broken build can cause.
func DefaultRuleSet() *RuleSet {
	defaultRuleSetOnce.Do(func() {
		defaultRuleSet, defaultRuleSetErr = LoadRuleSet(embeddedRules)
	})
	if defaultRuleSetErr != nil {
		panic(fmt.Sprintf("embedded label rules: %v", defaultRuleSetErr))
	}
	return defaultRuleSet
}

func compile(field, expr string) (*regexp.Regexp, error) {
	re, err := regexp.Compile(expr)
	if err != nil {
		return nil, fmt.Errorf("compile %s: %w", field, err)
	}
	return re, nil
}

func compileAll(field string, exprs []string) ([]*regexp.Regexp, error) {
	out := make([]*regexp.Regexp, 0, len(exprs))
	for i, expr := range exprs {
		re, err := compile(fmt.Sprintf("%s[%d]", field, i), expr)
		if err != nil {
			return nil, err
		}
		out = append(out, re)
	}
	return out, nil
}

// =============================================================================
// LOOKUPS
// =============================================================================

// firstContained returns the first word contained in text.
func firstContained(text string, words []string) (string, bool) {
	for _, w := range words {
		if strings.Contains(text, w) {
			return w, true
		}
	}
	return "", false
}

// bannedVerb returns the first banned verb in text.
func (rs *RuleSet) bannedVerb(text string) (string, bool) {
	return firstContained(text, rs.BannedVerbs)
}

// refinableVerb returns the first refinable verb in text.
func (rs *RuleSet) refinableVerb(text string) (RefinableVerb, bool) {
	for _, rv := range rs.RefinableVerbs {
		if strings.Contains(text, rv.Verb) {
			return rv, true
		}
	}
	return RefinableVerb{}, false
}

// systemName extracts an embedded system name candidate.
//
// Each pattern is tried in order. A candidate that is a known non-system
// term moves on to the next pattern; otherwise it must contain an
// uppercase Latin letter or a system keyword.
func (rs *RuleSet) systemName(text string) (string, bool) {
	for _, re := range rs.systemPatterns {
		m := re.FindStringSubmatch(text)
		if len(m) < 2 || m[1] == "" {
			continue
		}
		candidate := strings.TrimSpace(m[1])
		if _, skip := rs.nonSystemTerms[strings.ToUpper(candidate)]; skip {
			continue
		}
		if rs.uppercase.MatchString(candidate) || rs.systemKeywords.MatchString(candidate) {
			return candidate, true
		}
	}
	return "", false
}

// compoundAction splits a label that joins two actions.
func (rs *RuleSet) compoundAction(text string) (first, second string, ok bool) {
	for _, re := range rs.intentExclusions {
		if re.MatchString(text) {
			return "", "", false
		}
	}
	for _, re := range rs.compoundPatterns {
		m := re.FindStringSubmatch(text)
		if len(m) < 3 || m[1] == "" || m[2] == "" {
			continue
		}
		return withEnding(m[1]), withEnding(m[2]), true
	}
	return "", "", false
}

// withEnding appends the declarative ending when a fragment lacks it.
func withEnding(s string) string {
	if strings.HasSuffix(s, "다") {
		return s
	}
	return s + "다"
}
