// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package intent classifies chat messages for the coaching chain.
//
// Classification is keyword based and deterministic. A message asking the
// assistant to change the diagram is a flow action even when it is phrased
// as a question; only then are knowledge questions considered; everything
// else is coaching.
package intent

import (
	"context"
	"regexp"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Intent is the coarse purpose of a message.
type Intent string

const (
	// Knowledge asks for an explanation of a concept.
	Knowledge Intent = "knowledge"
	// FlowAction asks for a change or addition to the diagram.
	FlowAction Intent = "flow_action"
	// Coaching is everything else: review, encouragement, open questions.
	Coaching Intent = "coaching"
)

// Topic narrows what a non-knowledge message is about. The rule-based
// responder picks its opening sentence from it.
type Topic string

const (
	TopicNext     Topic = "next"
	TopicMissing  Topic = "missing"
	TopicDecision Topic = "decision"
	TopicSummary  Topic = "summary"
	TopicReview   Topic = "review"
	TopicGeneral  Topic = "general"
)

// =============================================================================
// Keyword Tables
// =============================================================================

var actionTerms = []string{
	"추가", "삭제", "수정", "변경", "넣어", "빼", "만들어",
	"다음", "이어", "후속",
	"누락", "빠진", "빠졌", "없어", "보강",
	"추천", "제안",
}

var actionWords = `\b(?:add|remove|delete|change|modify|insert|next|missing|suggest\w*|recommend\w*)\b`

var knowledgeTerms = []string{
	"뭐야", "뭔가", "무엇", "무슨", "어떤", "왜", "어떻게", "언제",
	"의미", "차이", "종류", "개념", "정의", "설명", "알려",
	"L1", "L2", "L3", "L4", "L5", "L6", "L7",
	"BPMN", "스윔레인", "프로세스 맵",
	"모범사례", "일반적으로", "보통",
	"란", "이란", "인가요", "인건가", "건가요", "가요",
}

var knowledgeWords = `\b(?:what|why|how|when|explain\w*|difference|meaning|defin\w*|bpmn|swim\s?lanes?|best practices?)\b`

// topicTerms is checked in order; the first topic with a hit wins.
var topicTerms = []struct {
	topic Topic
	terms []string
}{
	{TopicNext, []string{"다음", "next", "이어", "후속"}},
	{TopicMissing, []string{"누락", "빠진", "missing", "없어", "보강"}},
	{TopicDecision, []string{"분기", "승인", "반려", "조건", "예외"}},
	{TopicSummary, []string{"요약", "정리", "summary"}},
	{TopicReview, []string{"검토", "개선", "리뷰", "review"}},
}

// =============================================================================
// Classifier
// =============================================================================

// Classifier holds the compiled keyword patterns.
//
// Thread Safety: Safe for concurrent use; immutable after construction.
type Classifier struct {
	action    *regexp.Regexp
	knowledge *regexp.Regexp
	topics    []topicPattern
}

type topicPattern struct {
	topic Topic
	re    *regexp.Regexp
}

// alternation builds one pattern from literal terms and an optional
// case-insensitive word pattern.
func alternation(terms []string, words string) *regexp.Regexp {
	quoted := make([]string, len(terms))
	for i, t := range terms {
		quoted[i] = regexp.QuoteMeta(t)
	}
	expr := strings.Join(quoted, "|")
	if words != "" {
		expr = expr + "|(?i:" + words + ")"
	}
	return regexp.MustCompile(expr)
}

// NewClassifier compiles the keyword tables.
func NewClassifier() *Classifier {
	c := &Classifier{
		action:    alternation(actionTerms, actionWords),
		knowledge: alternation(knowledgeTerms, knowledgeWords),
	}
	for _, tt := range topicTerms {
		c.topics = append(c.topics, topicPattern{
			topic: tt.topic,
			re:    regexp.MustCompile("(?i)" + alternation(tt.terms, "").String()),
		})
	}
	return c
}

var defaultClassifier = NewClassifier()

// Classify returns the intent of message using the default classifier.
func Classify(message string) Intent {
	return defaultClassifier.Intent(message)
}

// TopicOf returns the topic of message using the default classifier.
func TopicOf(message string) Topic {
	return defaultClassifier.Topic(message)
}

// Intent classifies a message.
//
// Description:
//
//	Flow-action keywords take precedence over knowledge keywords so that
//	"what should I add next?" is treated as a request to change the
//	diagram. Empty or whitespace-only messages are coaching.
//
// Inputs:
//
//	message - Raw user text.
//
// Outputs:
//
//	Intent - Never empty.
func (c *Classifier) Intent(message string) Intent {
	q := strings.TrimSpace(message)
	if q == "" {
		return Coaching
	}
	if c.action.MatchString(q) {
		return FlowAction
	}
	if c.knowledge.MatchString(q) {
		return Knowledge
	}
	return Coaching
}

// Topic returns the first matching topic, or TopicGeneral.
func (c *Classifier) Topic(message string) Topic {
	q := strings.TrimSpace(message)
	for _, tp := range c.topics {
		if tp.re.MatchString(q) {
			return tp.topic
		}
	}
	return TopicGeneral
}

// ClassifyTraced is Intent with a trace span around it.
//
// A nil ctx is treated as context.Background().
func (c *Classifier) ClassifyTraced(ctx context.Context, message string) Intent {
	if ctx == nil {
		ctx = context.Background()
	}
	_, span := otel.Tracer("intent").Start(ctx, "intent.Classifier.Classify",
		trace.WithAttributes(attribute.Int("message_length", len(message))),
	)
	defer span.End()

	result := c.Intent(message)
	span.SetAttributes(attribute.String("intent", string(result)))
	return result
}
