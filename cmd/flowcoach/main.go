// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Command flowcoach runs the process-map coaching service and its
// offline tools.
//
// # Usage
//
//	# Serve the HTTP API (mock mode unless an LLM endpoint is configured)
//	flowcoach serve --config flowcoach.yaml
//
//	# Check a task label without a server
//	flowcoach lint "지원서를 검토한다" --type process
//
//	# Show the HR taxonomy reference for a position
//	flowcoach lookup 채용 "서류 전형"
//
//	# See how a message is routed
//	flowcoach classify "다음 단계는 뭐가 좋을까?"
//
//	# Print the effective configuration with secrets masked
//	flowcoach config
//
// # Environment Variables
//
// See config.Load; FLOWCOACH_CONFIG names the YAML file when --config
// is not given.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
