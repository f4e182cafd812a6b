package idle

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

type manualClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *manualClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *manualClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

func newMonitor(t *testing.T) (*Monitor, *manualClock, *int) {
	t.Helper()
	clock := &manualClock{t: time.Date(2026, 10, 19, 9, 0, 0, 0, time.UTC)}
	fired := 0
	m := New(Config{
		Timeout:      720000 * time.Millisecond,
		PromptBefore: 120000 * time.Millisecond,
		Enabled:      true,
	}, clock, func() { fired++ }, nil)
	return m, clock, &fired
}

func TestThresholds(t *testing.T) {
	m, clock, fired := newMonitor(t)

	clock.Advance(650000 * time.Millisecond)
	st := m.Check()
	if !st.WillPrompt || st.WillLogout {
		t.Fatalf("at 650s expected prompt without logout, got %+v", st)
	}
	if st.UntilLogout != 70*time.Second {
		t.Fatalf("expected 70s until logout, got %s", st.UntilLogout)
	}
	if *fired != 0 {
		t.Fatal("logout fired early")
	}

	clock.Advance(70000 * time.Millisecond)
	st = m.Check()
	if !st.WillLogout || st.WillPrompt {
		t.Fatalf("at 720s expected logout, got %+v", st)
	}
	if *fired != 1 {
		t.Fatalf("expected logout once, got %d", *fired)
	}

	for i := 0; i < 5; i++ {
		clock.Advance(time.Second)
		m.Check()
	}
	if *fired != 1 {
		t.Fatalf("logout re-fired while idle persisted: %d", *fired)
	}
}

func TestPromptBoundary(t *testing.T) {
	m, clock, _ := newMonitor(t)

	clock.Advance(599 * time.Second)
	if st := m.Status(); st.WillPrompt {
		t.Fatalf("prompt before threshold: %+v", st)
	}
	clock.Advance(time.Second)
	st := m.Status()
	if !st.WillPrompt {
		t.Fatalf("prompt expected at exactly timeout-promptBefore: %+v", st)
	}
	if st.UntilPrompt != 0 {
		t.Fatalf("until prompt should be 0, got %s", st.UntilPrompt)
	}
}

func TestActivityResetsFired(t *testing.T) {
	m, clock, fired := newMonitor(t)

	clock.Advance(13 * time.Minute)
	m.Check()
	m.Activity()
	if st := m.Check(); st.WillPrompt || st.WillLogout || st.IdleFor != 0 {
		t.Fatalf("activity should reset idle, got %+v", st)
	}

	clock.Advance(12 * time.Minute)
	m.Check()
	if *fired != 2 {
		t.Fatalf("expected a second logout in the new idle period, got %d", *fired)
	}
}

func TestDisabledNeverFires(t *testing.T) {
	m, clock, fired := newMonitor(t)
	m.SetEnabled(false)

	clock.Advance(time.Hour)
	if st := m.Check(); st != (Status{}) {
		t.Fatalf("disabled monitor should report zero status, got %+v", st)
	}
	if *fired != 0 {
		t.Fatal("disabled monitor fired")
	}

	// fresh login starts a new idle period
	m.SetEnabled(true)
	if st := m.Check(); st.WillLogout {
		t.Fatalf("re-enabled monitor should start fresh, got %+v", st)
	}
}

func TestMisconfiguredPromptLead(t *testing.T) {
	m, _, _ := newMonitor(t)
	m.SetThresholds(time.Minute, 2*time.Minute)
	if st := m.Status(); !st.WillPrompt {
		t.Fatalf("lead above timeout should prompt immediately, got %+v", st)
	}
}

func TestRunInvokesLogout(t *testing.T) {
	var fired atomic.Int32
	m := New(Config{Timeout: 20 * time.Millisecond, PromptBefore: 10 * time.Millisecond, Enabled: true}, nil, func() { fired.Add(1) }, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()
	m.Run(ctx, 5*time.Millisecond, nil)

	if fired.Load() != 1 {
		t.Fatalf("expected exactly one logout, got %d", fired.Load())
	}
}
