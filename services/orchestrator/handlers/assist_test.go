// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package handlers

import (
	"encoding/json"
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/flowcoach/services/orchestrator/coach"
	"github.com/AleutianAI/flowcoach/services/orchestrator/datatypes"
)

const pddFlow = `{
	"context": {"l4": "보상"},
	"currentNodes": [
		{"id": "s", "type": "start", "label": "시작"},
		{"id": "a", "type": "process", "label": "근태 기록을 집계한다"},
		{"id": "b", "type": "process", "label": "급여 명세서를 발송한다"},
		{"id": "c", "type": "process", "label": "이의 신청을 심사한다"},
		{"id": "e", "type": "end", "label": "종료"}
	],
	"currentEdges": [
		{"id": "e1", "source": "s", "target": "a"},
		{"id": "e2", "source": "a", "target": "b"},
		{"id": "e3", "source": "b", "target": "c"},
		{"id": "e4", "source": "c", "target": "e"}
	]
}`

// =============================================================================
// HandleContextualSuggest Tests
// =============================================================================

func TestHandleContextualSuggest_Success(t *testing.T) {
	stub := newStub()
	router := gin.New()
	router.POST("/api/contextual-suggest", HandleContextualSuggest(stub, nil))

	w := postJSON(router, "/api/contextual-suggest", `{"context": {"l4": "채용"}}`)

	require.Equal(t, http.StatusOK, w.Code)
	var s datatypes.ContextualSuggestion
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &s))
	assert.Equal(t, "예외 처리를 추가해 보세요", s.Guidance)
	require.Len(t, stub.assists, 1)
	assert.Equal(t, "채용", stub.assists[0].Context.L4)
}

func TestHandleContextualSuggest_DanglingEdge(t *testing.T) {
	stub := newStub()
	metrics := newMetrics()
	router := gin.New()
	router.POST("/api/contextual-suggest", HandleContextualSuggest(stub, metrics))

	w := postJSON(router, "/api/contextual-suggest", `{
		"context": {},
		"currentNodes": [{"id": "a", "type": "process", "label": "x"}],
		"currentEdges": [{"id": "e1", "source": "a", "target": "ghost"}]
	}`)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Empty(t, stub.assists)
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.ErrorsTotal.WithLabelValues("/api/contextual-suggest", "validation")))
}

func TestHandleContextualSuggest_QuietInMockMode(t *testing.T) {
	router := gin.New()
	router.POST("/api/contextual-suggest", HandleContextualSuggest(coach.New(nil, coach.DefaultConfig()), nil))

	w := postJSON(router, "/api/contextual-suggest", `{"context": {}}`)

	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"guidance": "", "quickQueries": []}`, w.Body.String())
}

// =============================================================================
// HandleFirstShapeWelcome Tests
// =============================================================================

func TestHandleFirstShapeWelcome_Success(t *testing.T) {
	stub := newStub()
	router := gin.New()
	router.POST("/api/first-shape-welcome", HandleFirstShapeWelcome(stub, nil))

	w := postJSON(router, "/api/first-shape-welcome", `{"context": {"processName": "입사 서류 제출"}}`)

	require.Equal(t, http.StatusOK, w.Code)
	var welcome datatypes.Welcome
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &welcome))
	assert.Contains(t, welcome.Text, "입사 서류 제출")
}

func TestHandleFirstShapeWelcome_MockModeUsesDefaultName(t *testing.T) {
	router := gin.New()
	router.POST("/api/first-shape-welcome", HandleFirstShapeWelcome(coach.New(nil, coach.DefaultConfig()), nil))

	w := postJSON(router, "/api/first-shape-welcome", `{"context": {}}`)

	require.Equal(t, http.StatusOK, w.Code)
	var welcome datatypes.Welcome
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &welcome))
	assert.Equal(t, coach.StaticWelcome("HR 프로세스"), welcome)
}

func TestHandleFirstShapeWelcome_MalformedJSON(t *testing.T) {
	router := gin.New()
	router.POST("/api/first-shape-welcome", HandleFirstShapeWelcome(newStub(), nil))

	w := postJSON(router, "/api/first-shape-welcome", `{"context":`)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

// =============================================================================
// HandleAnalyzePDD Tests
// =============================================================================

func TestHandleAnalyzePDD_MockModeClassifiesByKeyword(t *testing.T) {
	router := gin.New()
	router.POST("/api/analyze-pdd", HandleAnalyzePDD(coach.New(nil, coach.DefaultConfig()), nil))

	w := postJSON(router, "/api/analyze-pdd", pddFlow)

	require.Equal(t, http.StatusOK, w.Code)
	var analysis datatypes.PDDAnalysis
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &analysis))
	assert.Equal(t, datatypes.SourceRules, analysis.Source)
	require.Len(t, analysis.Recommendations, 3)

	got := map[string]datatypes.TaskCategory{}
	for _, rec := range analysis.Recommendations {
		got[rec.NodeID] = rec.SuggestedCategory
	}
	assert.Equal(t, map[string]datatypes.TaskCategory{
		"a": datatypes.CategoryDigitalWorker,
		"b": datatypes.CategorySSCTransfer,
		"c": datatypes.CategoryAsIs,
	}, got)
}

func TestHandleAnalyzePDD_UnknownNodeType(t *testing.T) {
	stub := newStub()
	router := gin.New()
	router.POST("/api/analyze-pdd", HandleAnalyzePDD(stub, nil))

	w := postJSON(router, "/api/analyze-pdd", `{"currentNodes": [{"id": "a", "type": "lane"}]}`)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Empty(t, stub.reviews)
}
