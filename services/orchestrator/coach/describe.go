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
	"fmt"
	"strings"

	"github.com/AleutianAI/flowcoach/services/orchestrator/datatypes"
)

// DescribeMode selects how much of the diagram DescribeFlow renders.
type DescribeMode int

const (
	// DescribeDetail adds per-node and per-edge listings.
	DescribeDetail DescribeMode = iota
	// DescribeSummary renders statistics and at most maxSummaryLabels labels.
	DescribeSummary
)

const (
	emptyFlowText    = "플로우 비어있음."
	maxSummaryLabels = 10
)

// hrKeywords are counted across labels, in this display order.
var hrKeywords = []string{"승인", "결재", "예외", "검토", "판정", "요청"}

// DescribeFlow renders a diagram as prompt text.
//
// # Description
//
// The header block covers node counts per kind, swim lane use, a coarse
// progress phase, structural status and warnings, and HR keyword
// coverage. Existing task and decision labels follow so the model does
// not propose duplicates. Detail mode then lists every node and edge
// with the ids suggestions must reference.
//
// Start and end nodes are never reported as unconnected here.
func DescribeFlow(snap datatypes.Snapshot, mode DescribeMode) string {
	if len(snap.Nodes) == 0 {
		return emptyFlowText
	}

	counts := make(map[datatypes.NodeKind]int, len(datatypes.AllNodeKinds))
	lanes := false
	for _, n := range snap.Nodes {
		counts[n.EffectiveKind()]++
		if n.LaneID != "" {
			lanes = true
		}
	}
	total, edges := len(snap.Nodes), len(snap.Edges)
	hasStart, hasEnd := counts[datatypes.NodeStart] > 0, counts[datatypes.NodeEnd] > 0

	phase := "완성 단계"
	switch {
	case total <= 2:
		phase = "초기 단계"
	case total <= 5 || !hasEnd:
		phase = "진행 중"
	}

	orphans := snap.Orphans(true)
	laneText := "미사용"
	if lanes {
		laneText = "사용 중"
	}

	var b strings.Builder
	line := func(format string, args ...any) {
		fmt.Fprintf(&b, format, args...)
		b.WriteByte('\n')
	}

	line("[플로우 통계] 총 %d개 노드, %d개 연결", total, edges)
	line("  구성: 시작(%d) > 태스크(%d) / 분기(%d) / L6 프로세스(%d) > 종료(%d)",
		counts[datatypes.NodeStart], counts[datatypes.NodeProcess], counts[datatypes.NodeDecision],
		counts[datatypes.NodeSubprocess], counts[datatypes.NodeEnd])
	line("  수영레인: %s", laneText)
	line("[진행도] %s", phase)
	line("[구조 상태] 시작(%t), 종료(%t), 고아(%d), 연결율(%d%%)",
		hasStart, hasEnd, len(orphans), 100*edges/max(total-1, 1))
	if len(orphans) > 0 {
		line("  ⚠ %d개 연결안됨: %s", len(orphans), strings.Join(orphans, ", "))
	}
	if !hasEnd {
		line("  ⚠ 종료 노드 없음")
	}
	if n := disconnectedEnds(snap); n > 0 {
		line("  ⚠ %d개 종료 노드 연결 안됨", n)
	}
	line("[HR 프로세스 요소] %s", keywordCoverage(snap))

	var labels []string
	for _, n := range snap.Nodes {
		if k := n.EffectiveKind(); k == datatypes.NodeProcess || k == datatypes.NodeDecision {
			labels = append(labels, n.Label)
		}
	}
	if len(labels) > 0 {
		line("")
		line("현재 존재하는 업무/판단 라벨 (중복 방지용):")
		shown := labels
		if mode == DescribeSummary && len(shown) > maxSummaryLabels {
			shown = shown[:maxSummaryLabels]
		}
		for _, l := range shown {
			if l != "" {
				line("  - %q", l)
			}
		}
		if mode == DescribeSummary && len(labels) > maxSummaryLabels {
			line("  ... 외 %d개", len(labels)-maxSummaryLabels)
		}
	}

	if mode == DescribeSummary {
		return strings.TrimRight(b.String(), "\n")
	}

	line("")
	line("==== 노드 상세 목록 (ID는 insertAfterNodeId/targetNodeId에 사용) ====")
	for _, n := range snap.Nodes {
		line("  %s | %s | %s%s", n.ID, n.EffectiveKind().DisplayName(), n.Label, nodeMeta(n))
	}
	line("")
	line("연결 구조:")
	for _, e := range snap.Edges {
		if e.Label != "" {
			line("  %s → %s [%s]", e.Source, e.Target, e.Label)
		} else {
			line("  %s → %s", e.Source, e.Target)
		}
	}
	return strings.TrimRight(b.String(), "\n")
}

func disconnectedEnds(snap datatypes.Snapshot) int {
	targets := make(map[string]struct{}, len(snap.Edges))
	for _, e := range snap.Edges {
		targets[e.Target] = struct{}{}
	}
	count := 0
	for _, n := range snap.Nodes {
		if n.EffectiveKind() != datatypes.NodeEnd {
			continue
		}
		if _, ok := targets[n.ID]; !ok {
			count++
		}
	}
	return count
}

func keywordCoverage(snap datatypes.Snapshot) string {
	var parts []string
	for _, kw := range hrKeywords {
		hits := 0
		for _, n := range snap.Nodes {
			if strings.Contains(n.Label, kw) {
				hits++
			}
		}
		if hits > 0 {
			parts = append(parts, fmt.Sprintf("%s(%d건)", kw, hits))
		}
	}
	if len(parts) == 0 {
		return "없음"
	}
	return strings.Join(parts, ", ")
}

func nodeMeta(n datatypes.Node) string {
	var meta []string
	if n.AddedBy == "ai" {
		meta = append(meta, "[AI추가]")
	}
	if n.SystemName != "" {
		meta = append(meta, "SYS:"+n.SystemName)
	}
	if n.Duration != "" {
		meta = append(meta, "⏱"+n.Duration)
	}
	if n.LaneID != "" {
		meta = append(meta, "레인:"+n.LaneID)
	}
	if len(meta) == 0 {
		return ""
	}
	return " (" + strings.Join(meta, " ") + ")"
}
