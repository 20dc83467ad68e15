// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package taxonomy

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

// MatchTier records which lookup rule resolved a category.
type MatchTier int

const (
	TierNone MatchTier = iota
	// TierExactGroup: the text equals a mid-level name.
	TierExactGroup
	// TierCategoryPrefix: the text equals or starts with a top-level name.
	TierCategoryPrefix
	// TierPartialGroup: a mid-level name and the text contain one another.
	TierPartialGroup
	// TierLooseCategory: a top-level name and the text contain one another.
	TierLooseCategory
)

// String returns a metric-friendly tier name.
func (t MatchTier) String() string {
	switch t {
	case TierExactGroup:
		return "exact_group"
	case TierCategoryPrefix:
		return "category_prefix"
	case TierPartialGroup:
		return "partial_group"
	case TierLooseCategory:
		return "loose_category"
	default:
		return "none"
	}
}

// Match is a resolved position in the taxonomy.
type Match struct {
	Category string
	Group    string // empty when matched on the category name
	Leaf     string
	Tier     MatchTier
}

var leadingName = regexp.MustCompile(`^([^(（]+)`)

// Normalize strips a parenthetical suffix: "채용(Recruiting)" becomes "채용".
//
// Text that starts with a parenthesis is returned trimmed as-is.
func Normalize(raw string) string {
	s := strings.TrimSpace(raw)
	if m := leadingName.FindStringSubmatch(s); m != nil {
		return strings.TrimSpace(m[1])
	}
	return s
}

// FindCategory resolves a mid-level name to its top-level category.
//
// # Description
//
// Tries four tiers in fixed precedence and stops at the first hit:
//
//  1. exact mid-level name
//  2. top-level name equal to, or a prefix of, the text
//  3. mid-level name and text containing one another; longest name wins,
//     first registered wins a tie
//  4. top-level name and text containing one another
//
// Tier 2 deliberately precedes tier 3 so that "채용 공고 작성" resolves
// to the 채용 category rather than the same-named group elsewhere.
func (t *Tree) FindCategory(mid string) (Match, bool) {
	norm := Normalize(mid)
	if norm == "" {
		return Match{}, false
	}

	if ci, ok := t.groupOwner[norm]; ok {
		return Match{Category: t.categories[ci].Name, Group: norm, Tier: TierExactGroup}, true
	}

	for _, c := range t.categories {
		if strings.HasPrefix(norm, c.Name) {
			return Match{Category: c.Name, Tier: TierCategoryPrefix}, true
		}
	}

	best, bestLen := "", -1
	for _, g := range t.groupOrder {
		if !strings.Contains(norm, g) && !strings.Contains(g, norm) {
			continue
		}
		if n := utf8.RuneCountInString(g); n > bestLen {
			best, bestLen = g, n
		}
	}
	if bestLen >= 0 {
		ci := t.groupOwner[best]
		return Match{Category: t.categories[ci].Name, Group: best, Tier: TierPartialGroup}, true
	}

	for _, c := range t.categories {
		if strings.Contains(norm, c.Name) || strings.Contains(c.Name, norm) {
			return Match{Category: c.Name, Tier: TierLooseCategory}, true
		}
	}
	return Match{}, false
}

// findLeaf locates a leaf within one top-level category.
func (t *Tree) findLeaf(category, leaf string) (group, name string, ok bool) {
	norm := Normalize(leaf)
	if norm == "" {
		return "", "", false
	}
	c, found := t.Category(category)
	if !found {
		return "", "", false
	}
	for _, g := range c.Groups {
		for _, l := range g.Leaves {
			if strings.Contains(l, norm) || strings.Contains(norm, l) {
				return g.Name, l, true
			}
		}
	}
	return "", "", false
}

// Find resolves a mid-level name and optional leaf to a position.
//
// A leaf found inside the resolved category overrides the mid-level group.
func (t *Tree) Find(mid, leaf string) (Match, bool) {
	m, ok := t.FindCategory(mid)
	if !ok {
		return Match{}, false
	}
	if leaf != "" {
		if g, l, found := t.findLeaf(m.Category, leaf); found {
			m.Group, m.Leaf = g, l
		}
	}
	return m, true
}

// Lookup renders the reference block for a user's position.
//
// Returns "" when the mid-level name cannot be resolved.
func (t *Tree) Lookup(mid, leaf, processName string) string {
	m, ok := t.Find(mid, leaf)
	if !ok {
		return ""
	}
	return t.Render(m, processName)
}

// Render formats the full top-level block with the current position marked.
func (t *Tree) Render(m Match, processName string) string {
	c, ok := t.Category(m.Category)
	if !ok {
		return ""
	}

	var parts []string
	if m.Group != "" {
		parts = append(parts, m.Group)
	}
	if m.Leaf != "" {
		parts = append(parts, m.Leaf)
	}
	if pn := Normalize(processName); pn != "" && !strings.Contains(strings.Join(parts, " "), pn) {
		parts = append(parts, pn)
	}
	current := "미상"
	if len(parts) > 0 {
		current = strings.Join(parts, " > ")
	}

	var b strings.Builder
	b.WriteString("[HR 프로세스 참조: " + c.Name + "]\n")
	b.WriteString("현재 작업: " + current + "\n")
	b.WriteString("\n")
	b.WriteString(c.Name + "의 전체 구조:\n")
	for _, g := range c.Groups {
		leaves := make([]string, len(g.Leaves))
		for i, l := range g.Leaves {
			if m.Leaf != "" && l == m.Leaf {
				leaves[i] = l + " ← 현재"
			} else {
				leaves[i] = l
			}
		}
		marker := ""
		if g.Name == m.Group && m.Leaf == "" {
			marker = " ←"
		}
		b.WriteString("  " + g.Name + marker + ": " + strings.Join(leaves, ", ") + "\n")
	}
	b.WriteString("\n")
	b.WriteString("이 구조를 참고하여 누락 단계, 전후 흐름, 분기점을 제안하세요.")
	return b.String()
}
