// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package main

import (
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/jeranaias/dashgate/internal/idle"
	"github.com/jeranaias/dashgate/internal/util"
)

// =============================================================================
// STYLES
// =============================================================================

var (
	// Colors
	brandPrimary = lipgloss.Color("#7C3AED") // Purple
	brandAccent  = lipgloss.Color("#10B981") // Emerald
	brandWarning = lipgloss.Color("#F59E0B") // Amber
	brandError   = lipgloss.Color("#EF4444") // Red
	textMuted    = lipgloss.Color("#6B7280") // Gray

	titleStyle = lipgloss.NewStyle().
			Foreground(brandPrimary).
			Bold(true).
			MarginBottom(1)

	activeStyle = lipgloss.NewStyle().
			Foreground(brandAccent).
			Bold(true)

	warnStyle = lipgloss.NewStyle().
			Foreground(brandWarning).
			Bold(true)

	expiredStyle = lipgloss.NewStyle().
			Foreground(brandError).
			Bold(true)

	dimStyle = lipgloss.NewStyle().
			Foreground(textMuted)

	boxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(brandPrimary).
			Padding(1, 2)
)

// =============================================================================
// MESSAGES
// =============================================================================

// tickMsg drives the countdown refresh.
type tickMsg time.Time

// idleEventMsg carries a monitor state transition into the update loop.
type idleEventMsg idle.State

// =============================================================================
// MODEL
// =============================================================================

// monitorModel renders the idle monitor's state machine. Keypresses count as
// activity; the countdown shows time left until expiry.
type monitorModel struct {
	monitor *idle.Monitor
	events  chan idle.State

	timeout time.Duration
	warning time.Duration

	width   int
	height  int
	state   idle.State
	lastKey string
	touches int
}

// newMonitorModel builds the model and its monitor. The monitor starts when
// the program does, via Init.
func newMonitorModel(timeout, warning time.Duration) (*monitorModel, error) {
	events := make(chan idle.State, 4)

	monitor, err := idle.NewMonitor(idle.Options{
		Timeout: timeout,
		Warning: warning,
		OnWarning: func() {
			events <- idle.StateWarned
		},
		OnTimeout: func() {
			events <- idle.StateExpired
		},
	})
	if err != nil {
		return nil, err
	}

	return &monitorModel{
		monitor: monitor,
		events:  events,
		timeout: timeout,
		warning: warning,
		state:   idle.StateActive,
	}, nil
}

// Init starts the monitor and the refresh loop.
func (m *monitorModel) Init() tea.Cmd {
	m.monitor.Start()
	return tea.Batch(tickCmd(), m.waitForEvent())
}

func tickCmd() tea.Cmd {
	return tea.Tick(250*time.Millisecond, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

// waitForEvent forwards monitor callbacks into the bubbletea update loop.
func (m *monitorModel) waitForEvent() tea.Cmd {
	return func() tea.Msg {
		return idleEventMsg(<-m.events)
	}
}

// Update handles messages
func (m *monitorModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q":
			m.monitor.Stop()
			return m, tea.Quit
		case "r":
			if m.state == idle.StateExpired {
				m.monitor.Start()
				m.state = idle.StateActive
				m.touches = 0
				m.lastKey = ""
				return m, nil
			}
		}

		// Any other key is activity.
		m.monitor.Touch()
		m.state = m.monitor.State()
		m.lastKey = msg.String()
		m.touches++
		return m, nil

	case idleEventMsg:
		m.state = idle.State(msg)
		return m, m.waitForEvent()

	case tickMsg:
		return m, tickCmd()
	}

	return m, nil
}

// View renders the monitor state
func (m *monitorModel) View() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render("dashgate idle monitor"))
	b.WriteString("\n")
	b.WriteString(dimStyle.Render(fmt.Sprintf("timeout %s / warning %s", m.timeout, m.warning)))
	b.WriteString("\n\n")

	switch m.state {
	case idle.StateExpired:
		b.WriteString(expiredStyle.Render("SESSION EXPIRED"))
		b.WriteString("\n")
		b.WriteString(dimStyle.Render("Press 'r' to start a new session, 'q' to quit."))
	case idle.StateWarned:
		b.WriteString(warnStyle.Render(fmt.Sprintf("EXPIRING IN %s", m.remaining())))
		b.WriteString("\n")
		b.WriteString(dimStyle.Render("Press any key to stay signed in."))
	default:
		b.WriteString(activeStyle.Render("ACTIVE"))
		b.WriteString("\n")
		b.WriteString(fmt.Sprintf("Time remaining: %s", m.remaining()))
	}

	b.WriteString("\n\n")
	if m.lastKey != "" {
		b.WriteString(dimStyle.Render(fmt.Sprintf(
			"activity events: %d (last key: %s)",
			m.touches,
			util.TruncateRunes(m.lastKey, 12),
		)))
		b.WriteString("\n")
	}
	b.WriteString(dimStyle.Render("q: quit"))

	box := boxStyle.Render(b.String())
	if m.width > 0 && m.height > 0 {
		return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, box)
	}
	return box
}

// remaining formats the countdown as m:ss.
func (m *monitorModel) remaining() string {
	r := m.monitor.Remaining()
	return fmt.Sprintf("%d:%02d", int(r.Minutes()), int(r.Seconds())%60)
}
