// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package config loads the service configuration from defaults, an
// optional YAML file and environment variables, in that order.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// ErrInvalidConfig wraps every validation failure.
var ErrInvalidConfig = errors.New("invalid config")

// PathEnv names the environment variable holding the config file path.
const PathEnv = "FLOWCOACH_CONFIG"

var validate = validator.New()

// Load builds the effective configuration.
//
// Description:
//
//	Starts from DefaultConfig, overlays the YAML file at path (or at
//	$FLOWCOACH_CONFIG when path is empty; no file is fine), then applies
//	environment overrides and validates the result.
//
// Inputs:
//
//	path - Config file path. May be empty.
//
// Outputs:
//
//	Config - The effective configuration.
//	error - File, parse, or ErrInvalidConfig errors.
func Load(path string) (Config, error) {
	cfg := DefaultConfig()

	if path == "" {
		path = os.Getenv(PathEnv)
	}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("failed to read the config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("failed to parse the config file %s: %w", path, err)
		}
	}

	if err := applyEnv(&cfg, os.LookupEnv); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks field constraints and cross-field rules.
func (c Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	if c.LLM.Mode == ModeLive && (c.LLM.BaseURL == "" || c.LLM.Model == "") {
		return fmt.Errorf("%w: llm.mode=live needs llm.base_url and llm.model", ErrInvalidConfig)
	}
	return nil
}

// WriteDefault writes the default configuration as YAML, creating parent
// directories.
func WriteDefault(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create the config directory: %w", err)
	}
	data, err := yaml.Marshal(DefaultConfig())
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// =============================================================================
// Environment Overrides
// =============================================================================

type lookupFunc func(string) (string, bool)

// applyEnv overlays the recognized environment variables.
func applyEnv(cfg *Config, lookup lookupFunc) error {
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok {
			*dst = strings.TrimSpace(v)
		}
	}
	var errs []error
	// Chain switches stay on unless explicitly "false".
	enabled := func(key string, dst *bool) {
		if v, ok := lookup(key); ok {
			*dst = !strings.EqualFold(strings.TrimSpace(v), "false")
		}
	}
	integer := func(key string, dst *int) {
		v, ok := lookup(key)
		if !ok {
			return
		}
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", key, err))
			return
		}
		*dst = n
	}

	str("LLM_BASE_URL", &cfg.LLM.BaseURL)
	str("LLM_MODEL", &cfg.LLM.Model)
	str("LLM_API_KEY", &cfg.LLM.APIKey)
	str("LLM_API_KEY_HEADER", &cfg.LLM.APIKeyHeader)
	str("LOG_LEVEL", &cfg.Log.Level)
	cfg.Log.Level = strings.ToLower(cfg.Log.Level)

	if v, ok := lookup("USE_MOCK"); ok {
		mode, err := modeFromUseMock(v)
		if err != nil {
			errs = append(errs, err)
		} else {
			cfg.LLM.Mode = mode
		}
	}

	enabled("CHAT_CHAIN_ENABLED", &cfg.Chain.Enabled)
	enabled("RULE_COACH_ENABLED", &cfg.Chain.RulesEnabled)
	enabled("MOCK_COACH_ENABLED", &cfg.Chain.StaticEnabled)
	integer("LLM_CB_FAIL_THRESHOLD", &cfg.Breaker.FailThreshold)
	integer("FLOWCOACH_PORT", &cfg.Server.Port)

	var cooldown int
	if _, ok := lookup("LLM_CB_COOLDOWN_SEC"); ok {
		cooldown = int(cfg.Breaker.Cooldown / time.Second)
		integer("LLM_CB_COOLDOWN_SEC", &cooldown)
		cfg.Breaker.Cooldown = time.Duration(cooldown) * time.Second
	}

	if v, ok := lookup("OTEL_EXPORTER_OTLP_ENDPOINT"); ok && strings.TrimSpace(v) != "" {
		cfg.Telemetry.OTelEndpoint = strings.TrimSpace(v)
		cfg.Telemetry.Exporter = "otlp"
	}

	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, errors.Join(errs...))
	}
	return nil
}

// modeFromUseMock maps USE_MOCK onto an LLM mode: "true" forces mock,
// "false" forces live and "auto" (or empty) decides from the endpoint.
func modeFromUseMock(v string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "", ModeAuto:
		return ModeAuto, nil
	case "true":
		return ModeMock, nil
	case "false":
		return ModeLive, nil
	default:
		return "", fmt.Errorf("USE_MOCK: want auto, true or false, got %q", v)
	}
}
