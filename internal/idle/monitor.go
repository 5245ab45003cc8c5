// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package idle implements the client-side inactivity monitor for dashboard
// sessions.
//
// A Monitor tracks activity for one session and drives two timers: a warning
// timer that fires a configurable lead before the deadline, and an expiry
// timer that fires at the deadline. Activity resets both. The monitor lives
// next to the UI that feeds it; it shares no state with the server, whose
// cookie-based session check is independent.
package idle

import (
	"errors"
	"fmt"
	"log"
	"sync"
	"time"
)

const (
	// DefaultTimeout is the default inactivity deadline: 30 minutes.
	DefaultTimeout = 30 * time.Minute

	// DefaultWarning is the default warning lead before expiry: 5 minutes.
	DefaultWarning = 5 * time.Minute

	// activityDebounce collapses bursts of activity events. Touches inside
	// this window of the last recorded activity do not reset the timers.
	activityDebounce = time.Second
)

// State is the lifecycle state of a Monitor.
type State int

const (
	// StateActive indicates the session is live and the deadline is ahead.
	StateActive State = iota
	// StateWarned indicates the warning callback has fired and the deadline
	// is near. Activity returns the monitor to StateActive.
	StateWarned
	// StateExpired indicates the deadline passed. Terminal until Start is
	// called again.
	StateExpired
	// StateStopped indicates Stop was called. Terminal until Start is
	// called again.
	StateStopped
)

// String returns a string representation of the State.
func (s State) String() string {
	switch s {
	case StateActive:
		return "ACTIVE"
	case StateWarned:
		return "WARNED"
	case StateExpired:
		return "EXPIRED"
	case StateStopped:
		return "STOPPED"
	default:
		return "UNKNOWN"
	}
}

// Options configures a Monitor.
type Options struct {
	// Timeout is the inactivity deadline. Required, must be positive.
	Timeout time.Duration

	// Warning is the lead before the deadline at which OnWarning fires.
	// Zero disables the warning. Values at or above Timeout are treated as
	// disabled, since no positive warning delay exists for them.
	Warning time.Duration

	// OnTimeout fires once when the deadline passes. Required.
	OnTimeout func()

	// OnWarning fires once per idle period when the warning lead is
	// reached. Optional.
	OnWarning func()

	// Debounce overrides the activity debounce window. Zero means the
	// 1-second default; negative disables debouncing.
	Debounce time.Duration
}

// Monitor is a two-timer inactivity watcher for a single session. All
// methods are safe for concurrent use. Callbacks are invoked outside the
// monitor's lock, so they may call back into the Monitor.
type Monitor struct {
	timeout   time.Duration
	warning   time.Duration
	debounce  time.Duration
	onTimeout func()
	onWarning func()

	mu           sync.Mutex
	state        State
	started      bool
	lastActivity time.Time
	warningTimer *time.Timer
	expireTimer  *time.Timer

	// gen invalidates callbacks from timers that fired before a reset or
	// Stop but had not yet acquired the lock.
	gen uint64
}

// NewMonitor validates opts and returns an unstarted Monitor.
func NewMonitor(opts Options) (*Monitor, error) {
	if opts.Timeout <= 0 {
		return nil, fmt.Errorf("idle timeout must be positive, got %v", opts.Timeout)
	}
	if opts.OnTimeout == nil {
		return nil, errors.New("timeout callback is required")
	}

	warning := opts.Warning
	if warning < 0 {
		warning = 0
	}
	if warning >= opts.Timeout {
		log.Printf("IDLE_WARNING_DISABLED | warning=%v timeout=%v reason=no_positive_lead", warning, opts.Timeout)
		warning = 0
	}

	debounce := opts.Debounce
	if debounce == 0 {
		debounce = activityDebounce
	}
	if debounce < 0 {
		debounce = 0
	}

	return &Monitor{
		timeout:   opts.Timeout,
		warning:   warning,
		debounce:  debounce,
		onTimeout: opts.OnTimeout,
		onWarning: opts.OnWarning,
		state:     StateStopped,
	}, nil
}

// Start begins (or restarts) an idle period: records activity now and arms
// the timers. Starting an already running monitor resets it.
func (m *Monitor) Start() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.started = true
	m.state = StateActive
	m.lastActivity = time.Now()
	m.armTimersLocked()

	log.Printf("IDLE_STARTED | timeout=%v warning=%v", m.timeout, m.warning)
}

// Touch records user activity. Activity within the debounce window of the
// previous touch is ignored, as is activity on an expired or stopped
// monitor. Otherwise both timers restart from now and a warned monitor
// returns to the active state.
func (m *Monitor) Touch() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.started || m.state == StateExpired || m.state == StateStopped {
		return
	}

	now := time.Now()
	if now.Sub(m.lastActivity) < m.debounce {
		return
	}

	m.lastActivity = now
	m.state = StateActive
	m.armTimersLocked()
}

// Stop tears the monitor down: both timers stop and no callback fires
// afterwards. Safe to call at any point, any number of times.
func (m *Monitor) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state == StateStopped && !m.started {
		return
	}

	m.gen++
	m.stopTimersLocked()
	m.state = StateStopped
	m.started = false

	log.Printf("IDLE_STOPPED |")
}

// State returns the current lifecycle state.
func (m *Monitor) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Remaining returns the time left until expiry, floored to a whole second.
// Returns 0 for an expired, stopped, or unstarted monitor; never negative.
func (m *Monitor) Remaining() time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.started || m.state == StateExpired || m.state == StateStopped {
		return 0
	}

	remaining := m.timeout - time.Since(m.lastActivity)
	if remaining < 0 {
		return 0
	}
	return remaining.Truncate(time.Second)
}

// LastActivity returns the timestamp of the most recent recorded activity.
// Zero for a monitor that was never started.
func (m *Monitor) LastActivity() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastActivity
}

// armTimersLocked stops any existing timers and arms fresh ones. The
// caller must hold m.mu.
func (m *Monitor) armTimersLocked() {
	m.stopTimersLocked()

	m.gen++
	gen := m.gen

	if m.warning > 0 {
		lead := m.timeout - m.warning
		m.warningTimer = time.AfterFunc(lead, func() { m.fireWarning(gen) })
	}
	m.expireTimer = time.AfterFunc(m.timeout, func() { m.fireTimeout(gen) })
}

// stopTimersLocked stops and clears both timers. The caller must hold m.mu.
func (m *Monitor) stopTimersLocked() {
	if m.warningTimer != nil {
		m.warningTimer.Stop()
		m.warningTimer = nil
	}
	if m.expireTimer != nil {
		m.expireTimer.Stop()
		m.expireTimer = nil
	}
}

// fireWarning transitions to StateWarned and invokes the warning callback,
// unless the timer generation is stale or the state already moved on.
func (m *Monitor) fireWarning(gen uint64) {
	m.mu.Lock()
	if gen != m.gen || m.state != StateActive {
		m.mu.Unlock()
		return
	}
	m.state = StateWarned
	callback := m.onWarning
	m.mu.Unlock()

	log.Printf("IDLE_WARNING | expires_in=%v", m.warning)

	if callback != nil {
		callback()
	}
}

// fireTimeout transitions to StateExpired and invokes the timeout callback,
// unless the timer generation is stale.
func (m *Monitor) fireTimeout(gen uint64) {
	m.mu.Lock()
	if gen != m.gen || m.state == StateExpired || m.state == StateStopped {
		m.mu.Unlock()
		return
	}
	m.state = StateExpired
	idle := time.Since(m.lastActivity)
	callback := m.onTimeout
	m.mu.Unlock()

	log.Printf("IDLE_EXPIRED | idle=%v", idle)

	callback()
}
