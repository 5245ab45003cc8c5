// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package main provides dashgate-monitor - an interactive demo of the idle
// timeout monitor. It runs the same state machine the dashboard uses to
// expire inactive sessions, with every keypress counting as activity.
package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	tea "github.com/charmbracelet/bubbletea"
)

const version = "1.0.0"

func main() {
	timeout := flag.Duration("timeout", 2*time.Minute, "idle timeout before the session expires")
	warning := flag.Duration("warning", 30*time.Second, "warning lead before expiry (0 disables)")
	showVersion := flag.Bool("version", false, "print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Printf("dashgate-monitor v%s\n", version)
		return
	}

	model, err := newMonitorModel(*timeout, *warning)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	p := tea.NewProgram(model, tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error running monitor: %v\n", err)
		os.Exit(1)
	}
}
