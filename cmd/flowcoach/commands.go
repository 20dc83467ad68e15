// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/AleutianAI/flowcoach/pkg/logging"
	"github.com/AleutianAI/flowcoach/services/orchestrator"
	"github.com/AleutianAI/flowcoach/services/orchestrator/config"
	"github.com/AleutianAI/flowcoach/services/orchestrator/datatypes"
	"github.com/AleutianAI/flowcoach/services/orchestrator/intent"
	"github.com/AleutianAI/flowcoach/services/orchestrator/lint"
	"github.com/AleutianAI/flowcoach/services/orchestrator/taxonomy"
)

// errLabelRejected is returned by lint --strict for a failing label.
var errLabelRejected = errors.New("label did not pass")

var (
	rootCmd = &cobra.Command{
		Use:   "flowcoach",
		Short: "Coaching service for HR process-map diagrams",
		Long: `FlowCoach answers chat turns about a process diagram through a chain of
tiers: an OpenAI-compatible model behind a circuit breaker, a rule-based
coach, and a static review. It also lints task labels against the L7 rules.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	serveCmd = &cobra.Command{
		Use:   "serve",
		Short: "Runs the HTTP and websocket API",
		Long:  `Loads configuration, builds the coaching chain and serves until interrupted.`,
		Args:  cobra.NoArgs,
		RunE:  runServe,
	}
	lintCmd = &cobra.Command{
		Use:   "lint [label]",
		Short: "Checks a task label against the L7 rules",
		Long:  `Runs the rule engine offline and prints the verdict as JSON.`,
		Args:  cobra.MinimumNArgs(1),
		RunE:  runLint,
	}
	lookupCmd = &cobra.Command{
		Use:   "lookup [l4] [l5]",
		Short: "Prints the HR taxonomy reference for a position",
		Args:  cobra.RangeArgs(1, 2),
		RunE:  runLookup,
	}
	classifyCmd = &cobra.Command{
		Use:   "classify [message]",
		Short: "Shows the intent and topic a message is routed by",
		Args:  cobra.MinimumNArgs(1),
		RunE:  runClassify,
	}
	configCmd = &cobra.Command{
		Use:   "config",
		Short: "Prints the effective configuration with secrets masked",
		Args:  cobra.NoArgs,
		RunE:  runConfigShow,
	}
	configInitCmd = &cobra.Command{
		Use:   "init [path]",
		Short: "Writes a default configuration file",
		Args:  cobra.ExactArgs(1),
		RunE:  runConfigInit,
	}

	configPath  string
	lintType    string
	lintStrict  bool
	processName string
)

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "",
		"Path to the YAML config (default: $"+config.PathEnv+")")

	rootCmd.AddCommand(serveCmd)

	rootCmd.AddCommand(lintCmd)
	lintCmd.Flags().StringVarP(&lintType, "type", "t", "process",
		"Node type (start, process, decision, subprocess, end)")
	lintCmd.Flags().BoolVar(&lintStrict, "strict", false, "Exit non-zero when the label fails")

	rootCmd.AddCommand(lookupCmd)
	lookupCmd.Flags().StringVar(&processName, "process", "", "Process name to mark as the current position")

	rootCmd.AddCommand(classifyCmd)

	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configInitCmd)
}

// =============================================================================
// serve
// =============================================================================

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	level, err := logging.ParseLevel(cfg.Log.Level)
	if err != nil {
		return err
	}
	logger := logging.New(logging.Config{
		Level:   level,
		LogDir:  cfg.Log.Dir,
		Service: cfg.Telemetry.ServiceName,
		JSON:    cfg.Log.JSON,
	})
	defer logger.Close()
	logger.Install()

	svc, err := orchestrator.New(cfg, logger.Slog())
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return svc.Run(ctx)
}

// =============================================================================
// Offline tools
// =============================================================================

func runLint(cmd *cobra.Command, args []string) error {
	kind, err := datatypes.ParseNodeKind(lintType)
	if err != nil {
		return err
	}

	v := lint.New(nil).Validate(strings.Join(args, " "), kind, false)
	if err := writeJSON(cmd, v); err != nil {
		return err
	}
	if lintStrict && !v.Pass {
		return errLabelRejected
	}
	return nil
}

func runLookup(cmd *cobra.Command, args []string) error {
	leaf := ""
	if len(args) > 1 {
		leaf = args[1]
	}

	tree := taxonomy.DefaultTree()
	m, ok := tree.Find(args[0], leaf)
	if !ok {
		return fmt.Errorf("no taxonomy entry matches %q", args[0])
	}
	fmt.Fprintf(cmd.ErrOrStderr(), "matched by %s\n", m.Tier)
	fmt.Fprint(cmd.OutOrStdout(), tree.Render(m, processName))
	return nil
}

func runClassify(cmd *cobra.Command, args []string) error {
	message := strings.Join(args, " ")
	c := intent.NewClassifier()
	return writeJSON(cmd, map[string]string{
		"intent": string(c.Intent(message)),
		"topic":  string(c.Topic(message)),
	})
}

// =============================================================================
// config
// =============================================================================

func runConfigShow(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	out, err := yaml.Marshal(cfg.Redacted())
	if err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "# mode: %s\n", cfg.LLM.ResolvedMode())
	_, err = cmd.OutOrStdout().Write(out)
	return err
}

func runConfigInit(cmd *cobra.Command, args []string) error {
	if _, err := os.Stat(args[0]); err == nil {
		return fmt.Errorf("%s already exists", args[0])
	}
	if err := config.WriteDefault(args[0]); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Wrote default configuration to %s\n", args[0])
	return nil
}

func writeJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(v)
}
