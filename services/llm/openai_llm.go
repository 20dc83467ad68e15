// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package llm

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/sashabaranov/go-openai"
)

const defaultAPIKeyHeader = "Authorization"

// OpenAIConfig points the client at any OpenAI-compatible endpoint.
type OpenAIConfig struct {
	BaseURL string
	Model   string
	APIKey  string

	// APIKeyHeader names the header carrying APIKey. "Authorization"
	// (the default) sends "Bearer <key>"; any other header gets the raw key.
	APIKeyHeader string

	// HTTPClient overrides the transport; nil uses http.DefaultTransport.
	HTTPClient *http.Client
}

type OpenAIClient struct {
	client *openai.Client
	model  string
	logger *slog.Logger
}

// headerTransport moves the API key from the bearer header go-openai
// always sets into a gateway-specific header.
type headerTransport struct {
	base   http.RoundTripper
	header string
	key    string
}

func (t *headerTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	r := req.Clone(req.Context())
	r.Header.Del(defaultAPIKeyHeader)
	if t.key != "" {
		r.Header.Set(t.header, t.key)
	}
	return t.base.RoundTrip(r)
}

// NewOpenAIClient builds a client for cfg.
//
// Returns an error when BaseURL or Model is empty.
func NewOpenAIClient(cfg OpenAIConfig, logger *slog.Logger) (*OpenAIClient, error) {
	if strings.TrimSpace(cfg.BaseURL) == "" {
		return nil, fmt.Errorf("openai client: base url is required")
	}
	if strings.TrimSpace(cfg.Model) == "" {
		return nil, fmt.Errorf("openai client: model is required")
	}
	if logger == nil {
		logger = slog.Default()
	}

	header := cfg.APIKeyHeader
	if header == "" {
		header = defaultAPIKeyHeader
	}

	oc := openai.DefaultConfig(cfg.APIKey)
	oc.BaseURL = strings.TrimRight(cfg.BaseURL, "/")

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	if !strings.EqualFold(header, defaultAPIKeyHeader) {
		base := httpClient.Transport
		if base == nil {
			base = http.DefaultTransport
		}
		wrapped := *httpClient
		wrapped.Transport = &headerTransport{base: base, header: header, key: cfg.APIKey}
		httpClient = &wrapped
	}
	oc.HTTPClient = httpClient

	logger.Info("Initializing OpenAI-compatible client", "base_url", oc.BaseURL, "model", cfg.Model, "key_header", header)
	return &OpenAIClient{
		client: openai.NewClientWithConfig(oc),
		model:  cfg.Model,
		logger: logger,
	}, nil
}

// Complete implements ChatClient.
func (o *OpenAIClient) Complete(ctx context.Context, system, user string, params GenerationParams) (string, error) {
	req := openai.ChatCompletionRequest{
		Model: o.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: system},
			{Role: openai.ChatMessageRoleUser, Content: user},
		},
	}
	if params.Temperature != nil {
		req.Temperature = *params.Temperature
	}
	if params.MaxTokens != nil {
		// Self-hosted gateways still expect max_tokens.
		req.MaxTokens = *params.MaxTokens
	}
	if params.TopP != nil {
		req.TopP = *params.TopP
	}
	if len(params.Stop) > 0 {
		req.Stop = params.Stop
	}

	resp, err := o.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return "", fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("chat completion: no choices: %w", ErrEmptyCompletion)
	}
	o.logger.Debug("Received completion", "model", o.model, "finish_reason", resp.Choices[0].FinishReason)
	return resp.Choices[0].Message.Content, nil
}

// Models implements ChatClient.
func (o *OpenAIClient) Models(ctx context.Context) ([]string, error) {
	list, err := o.client.ListModels(ctx)
	if err != nil {
		return nil, fmt.Errorf("list models: %w", err)
	}
	ids := make([]string, 0, len(list.Models))
	for _, m := range list.Models {
		ids = append(ids, m.ID)
	}
	return ids, nil
}

var _ ChatClient = (*OpenAIClient)(nil)
