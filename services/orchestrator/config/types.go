// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package config

import (
	"time"
)

// Mode values for LLMConfig.Mode.
const (
	ModeAuto = "auto"
	ModeLive = "live"
	ModeMock = "mock"
)

// Config is the full service configuration.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	LLM       LLMConfig       `yaml:"llm"`
	Breaker   BreakerConfig   `yaml:"breaker"`
	Chain     ChainConfig     `yaml:"chain"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
	Log       LogConfig       `yaml:"log"`
}

type ServerConfig struct {
	Port           int           `yaml:"port" validate:"min=1,max=65535"`
	GinMode        string        `yaml:"gin_mode" validate:"oneof=debug release test"`
	RateLimitRPS   float64       `yaml:"rate_limit_rps" validate:"gte=0"` // 0 disables limiting
	RateLimitBurst int           `yaml:"rate_limit_burst" validate:"gte=0"`
	RequestTimeout time.Duration `yaml:"request_timeout" validate:"gte=0"`
}

// LLMConfig describes the OpenAI-compatible completion endpoint.
type LLMConfig struct {
	BaseURL        string        `yaml:"base_url" validate:"omitempty,url"`
	Model          string        `yaml:"model"`
	APIKey         string        `yaml:"api_key"`
	APIKeyHeader   string        `yaml:"api_key_header"` // empty means Authorization: Bearer
	Temperature    float32       `yaml:"temperature" validate:"gte=0,lte=2"`
	MaxTokens      int           `yaml:"max_tokens" validate:"min=1"`
	AttemptTimeout time.Duration `yaml:"attempt_timeout" validate:"gt=0"`
	MaxAttempts    int           `yaml:"max_attempts" validate:"min=1,max=10"`
	BaseBackoff    time.Duration `yaml:"base_backoff" validate:"gte=0"`
	ProbeTTL       time.Duration `yaml:"probe_ttl" validate:"gt=0"`
	Mode           string        `yaml:"mode" validate:"oneof=auto live mock"`
}

type BreakerConfig struct {
	FailThreshold int           `yaml:"fail_threshold" validate:"min=1"`
	Cooldown      time.Duration `yaml:"cooldown" validate:"gt=0"`
}

// ChainConfig switches the tiers of the coaching chain.
type ChainConfig struct {
	Enabled       bool `yaml:"enabled"`
	RulesEnabled  bool `yaml:"rules_enabled"`
	StaticEnabled bool `yaml:"static_enabled"`
}

type TelemetryConfig struct {
	// Exporter is otlp, stdout or none.
	Exporter       string `yaml:"exporter" validate:"oneof=otlp stdout none"`
	OTelEndpoint   string `yaml:"otel_endpoint" validate:"required_if=Exporter otlp"`
	ServiceName    string `yaml:"service_name" validate:"required"`
	MetricsEnabled bool   `yaml:"metrics_enabled"`
}

type LogConfig struct {
	Level string `yaml:"level" validate:"oneof=debug info warn error"`
	Dir   string `yaml:"dir"`
	JSON  bool   `yaml:"json"`
}

// ResolvedMode turns auto into live or mock depending on whether an
// endpoint is configured.
func (c LLMConfig) ResolvedMode() string {
	if c.Mode != ModeAuto {
		return c.Mode
	}
	if c.BaseURL != "" && c.Model != "" {
		return ModeLive
	}
	return ModeMock
}

// Redacted returns a copy safe to print.
func (c Config) Redacted() Config {
	if c.LLM.APIKey != "" {
		c.LLM.APIKey = "********"
	}
	return c
}

// DefaultConfig returns the built-in defaults.
func DefaultConfig() Config {
	return Config{
		Server: ServerConfig{
			Port:           8000,
			GinMode:        "release",
			RateLimitRPS:   10,
			RateLimitBurst: 20,
			RequestTimeout: 210 * time.Second,
		},
		LLM: LLMConfig{
			Temperature:    0.7,
			MaxTokens:      2000,
			AttemptTimeout: 60 * time.Second,
			MaxAttempts:    3,
			BaseBackoff:    time.Second,
			ProbeTTL:       300 * time.Second,
			Mode:           ModeAuto,
		},
		Breaker: BreakerConfig{
			FailThreshold: 3,
			Cooldown:      90 * time.Second,
		},
		Chain: ChainConfig{
			Enabled:       true,
			RulesEnabled:  true,
			StaticEnabled: true,
		},
		Telemetry: TelemetryConfig{
			Exporter:       "none",
			ServiceName:    "flowcoach",
			MetricsEnabled: true,
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}
