// Package idle forces a logout after a period without user interaction.
package idle

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

const (
	DefaultTimeout      = 12 * time.Minute
	DefaultPromptBefore = 2 * time.Minute
)

type Config struct {
	Timeout      time.Duration
	PromptBefore time.Duration
	Enabled      bool
}

type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// Status is derived on demand from the last interaction.
type Status struct {
	IdleFor     time.Duration
	UntilPrompt time.Duration
	UntilLogout time.Duration
	WillPrompt  bool
	WillLogout  bool
}

// Monitor tracks the last interaction and fires onLogout once per idle
// period. A prompt lead at or above the timeout is not rejected; the
// prompt then shows from the first check.
type Monitor struct {
	clock    Clock
	onLogout func()
	log      *zap.Logger

	mu           sync.Mutex
	cfg          Config
	lastActivity time.Time
	fired        bool
}

func New(cfg Config, clock Clock, onLogout func(), log *zap.Logger) *Monitor {
	if clock == nil {
		clock = systemClock{}
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Monitor{
		clock:        clock,
		onLogout:     onLogout,
		log:          log,
		cfg:          cfg,
		lastActivity: clock.Now(),
	}
}

// Activity records a user interaction and re-arms the logout callback.
func (m *Monitor) Activity() {
	m.mu.Lock()
	m.lastActivity = m.clock.Now()
	m.fired = false
	m.mu.Unlock()
}

// SetEnabled turns the monitor on at login and off at logout. Enabling
// starts a fresh idle period.
func (m *Monitor) SetEnabled(on bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if on && !m.cfg.Enabled {
		m.lastActivity = m.clock.Now()
		m.fired = false
	}
	m.cfg.Enabled = on
}

// SetThresholds replaces the timeout and prompt lead, keeping the idle
// period.
func (m *Monitor) SetThresholds(timeout, promptBefore time.Duration) {
	m.mu.Lock()
	m.cfg.Timeout = timeout
	m.cfg.PromptBefore = promptBefore
	m.mu.Unlock()
}

func (m *Monitor) Config() Config {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.cfg
}

func (m *Monitor) Status() Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.statusLocked(m.clock.Now())
}

func (m *Monitor) statusLocked(now time.Time) Status {
	if !m.cfg.Enabled {
		return Status{}
	}
	idleFor := max(0, now.Sub(m.lastActivity))
	promptAt := m.cfg.Timeout - m.cfg.PromptBefore
	st := Status{
		IdleFor:     idleFor,
		UntilPrompt: max(0, promptAt-idleFor),
		UntilLogout: max(0, m.cfg.Timeout-idleFor),
		WillLogout:  idleFor >= m.cfg.Timeout,
	}
	st.WillPrompt = idleFor >= promptAt && !st.WillLogout
	return st
}

// Check evaluates the current status and invokes the logout callback the
// first time the logout threshold is reached in an idle period.
func (m *Monitor) Check() Status {
	m.mu.Lock()
	st := m.statusLocked(m.clock.Now())
	fire := st.WillLogout && !m.fired
	if fire {
		m.fired = true
	}
	m.mu.Unlock()

	if fire {
		m.log.Info("idle timeout reached, logging out", zap.Duration("idle", st.IdleFor))
		if m.onLogout != nil {
			m.onLogout()
		}
	}
	return st
}

// Run checks every interval until ctx is done. onStatus, if set, receives
// each status so a view can show the warning.
func (m *Monitor) Run(ctx context.Context, interval time.Duration, onStatus func(Status)) {
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			st := m.Check()
			if onStatus != nil {
				onStatus(st)
			}
		}
	}
}
