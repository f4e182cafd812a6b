package attendance

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/sadopc/attendr/internal/timeservice"
)

type State int

const (
	ClockedOut State = iota
	Working
	OnBreak
)

func (s State) String() string {
	switch s {
	case Working:
		return "Working"
	case OnBreak:
		return "On Break"
	default:
		return "Clocked Out"
	}
}

var (
	ErrBusy              = errors.New("another attendance action is in progress")
	ErrInvalidTransition = errors.New("action not allowed in current state")
)

// TimeService is the remote owner of time entries.
type TimeService interface {
	Status(ctx context.Context, workDate string) (*timeservice.Status, error)
	Act(ctx context.Context, req timeservice.ActionRequest) (*timeservice.ActionResult, error)
}

// LogCache persists the synthesized log across restarts.
type LogCache interface {
	Load(ctx context.Context) ([]ClockLogEntry, error)
	Save(ctx context.Context, logs []ClockLogEntry) error
	Clear(ctx context.Context) error
}

type Clock interface {
	Now() time.Time
}

type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now() }

type Options struct {
	Service  TimeService
	Cache    LogCache
	Bus      *Bus
	Clock    Clock
	Location *time.Location
	Logger   *zap.Logger

	TickInterval time.Duration

	// OnTick runs on the ticker goroutine after each local recompute.
	OnTick func(Elapsed)
	// OnRefresh runs after each applied status fetch.
	OnRefresh func()
}

// Snapshot is a copy of the controller's display state.
type Snapshot struct {
	State         State
	Elapsed       Elapsed // active session
	Today         Elapsed // every session of the work date
	Logs          []ClockLogEntry
	Entries       []timeservice.TimeEntry
	ActiveEntryID int64
	ClockedInAt   time.Time
	Busy          bool
	Err           string
	Notice        string
	LastSync      time.Time
}

// Controller is the attendance state machine. It never advances state
// optimistically: every action ends with a full status fetch, and elapsed
// values are rebuilt from the fetched timestamps.
type Controller struct {
	svc          TimeService
	cache        LogCache
	bus          *Bus
	clock        Clock
	loc          *time.Location
	log          *zap.Logger
	tickInterval time.Duration
	onTick       func(Elapsed)
	onRefresh    func()

	busy atomic.Bool
	ref  atomic.Pointer[tickRef]

	fetchSeq atomic.Uint64
	applyMu  sync.Mutex
	applied  uint64

	mu        sync.Mutex
	state     State
	elapsed   Elapsed
	todayBase Elapsed // closed sessions of the work date
	logs      []ClockLogEntry
	entries   []timeservice.TimeEntry
	activeID  int64
	clockIn   time.Time
	lastErr   string
	notice    string
	lastSync  time.Time
	tickStop  chan struct{}
	pollStop  chan struct{}
	closed    bool
}

func NewController(opts Options) *Controller {
	c := &Controller{
		svc:          opts.Service,
		cache:        opts.Cache,
		bus:          opts.Bus,
		clock:        opts.Clock,
		loc:          opts.Location,
		log:          opts.Logger,
		tickInterval: opts.TickInterval,
		onTick:       opts.OnTick,
		onRefresh:    opts.OnRefresh,
	}
	if c.bus == nil {
		c.bus = NewBus()
	}
	if c.clock == nil {
		c.clock = SystemClock{}
	}
	if c.loc == nil {
		c.loc = time.Local
	}
	if c.log == nil {
		c.log = zap.NewNop()
	}
	if c.tickInterval <= 0 {
		c.tickInterval = time.Second
	}
	c.ref.Store(&tickRef{})
	return c
}

func (c *Controller) Bus() *Bus { return c.bus }

func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *Controller) Busy() bool { return c.busy.Load() }

func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	today := c.todayBase
	today.Total += c.elapsed.Total
	today.Work += c.elapsed.Work
	today.Break += c.elapsed.Break
	return Snapshot{
		State:         c.state,
		Elapsed:       c.elapsed,
		Today:         today,
		Logs:          append([]ClockLogEntry(nil), c.logs...),
		Entries:       append([]timeservice.TimeEntry(nil), c.entries...),
		ActiveEntryID: c.activeID,
		ClockedInAt:   c.clockIn,
		Busy:          c.busy.Load(),
		Err:           c.lastErr,
		Notice:        c.notice,
		LastSync:      c.lastSync,
	}
}

func (c *Controller) DismissError() {
	c.mu.Lock()
	c.lastErr = ""
	c.mu.Unlock()
}

// TickerArmed reports whether the local second tick is running.
func (c *Controller) TickerArmed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.tickStop != nil
}

// LoadCachedLogs seeds the log from the cache so it is visible before the
// first fetch completes. It is also used to pick up writes from other
// windows.
func (c *Controller) LoadCachedLogs(ctx context.Context) error {
	logs, err := c.cache.Load(ctx)
	if err != nil {
		c.log.Warn("loading cached clock log", zap.Error(err))
		return err
	}
	c.mu.Lock()
	c.logs = logs
	c.mu.Unlock()
	return nil
}

func (c *Controller) workDate(now time.Time) string {
	return now.In(c.loc).Format(logDateLayout)
}

// Refresh fetches the authoritative status and rebuilds all derived state.
// A fetch that started before a newer one already applied is discarded.
func (c *Controller) Refresh(ctx context.Context) error {
	seq := c.fetchSeq.Add(1)
	st, err := c.svc.Status(ctx, c.workDate(c.clock.Now()))
	if err != nil {
		c.log.Warn("status fetch failed", zap.Error(err))
		return err
	}
	if !c.apply(ctx, seq, st) {
		return nil
	}
	if c.onRefresh != nil {
		c.onRefresh()
	}
	return nil
}

func (c *Controller) apply(ctx context.Context, seq uint64, st *timeservice.Status) bool {
	c.applyMu.Lock()
	defer c.applyMu.Unlock()
	if seq < c.applied {
		c.log.Debug("dropping stale status", zap.Uint64("seq", seq), zap.Uint64("applied", c.applied))
		return false
	}
	c.applied = seq

	now := c.clock.Now()
	state := ClockedOut
	var active *timeservice.TimeEntry
	var openBreak *timeservice.BreakInterval
	if st.IsClockedIn && st.ActiveEntry != nil {
		active = st.ActiveEntry
		state = Working
		if st.IsOnBreak {
			state = OnBreak
			openBreak = st.ActiveBreak
			if openBreak == nil {
				openBreak = findOpenBreak(active)
			}
		}
	}

	elapsed := Reconcile(active, openBreak, now, c.loc)
	var base Elapsed
	for i := range st.TodayEntries {
		e := &st.TodayEntries[i]
		if active != nil && e.ID == active.ID {
			continue
		}
		s := Reconcile(e, nil, now, c.loc)
		base.Total += s.Total
		base.Work += s.Work
		base.Break += s.Break
	}

	ref := &tickRef{onBreak: state == OnBreak, breakSeconds: elapsed.Break}
	var clockedInAt time.Time
	if active != nil {
		if t, ok := ParseTimestamp(active.ClockIn, c.loc); ok {
			ref.anchor = t
			ref.clockedIn = true
			clockedInAt = t
		}
	}

	orphan := active != nil && !containsEntry(st.TodayEntries, active.ID)
	if (len(st.TodayEntries) == 0 && st.ActiveEntry == nil) || orphan {
		if err := c.cache.Clear(ctx); err != nil {
			c.log.Warn("clearing clock log cache", zap.Error(err))
		}
	}
	logBreak := openBreak
	if orphan {
		logBreak = nil
	}
	logs := SynthesizeLog(st.TodayEntries, logBreak, c.loc)
	if len(logs) > 0 {
		if err := c.cache.Save(ctx, logs); err != nil {
			c.log.Warn("saving clock log cache", zap.Error(err))
		}
	}

	c.ref.Store(ref)

	c.mu.Lock()
	c.state = state
	c.elapsed = elapsed
	c.todayBase = base
	c.logs = logs
	c.entries = append([]timeservice.TimeEntry(nil), st.TodayEntries...)
	c.activeID = 0
	if active != nil {
		c.activeID = active.ID
	}
	c.clockIn = clockedInAt
	c.lastSync = now
	c.armTickerLocked()
	c.mu.Unlock()

	c.log.Debug("status applied",
		zap.Stringer("state", state),
		zap.Int64("total", elapsed.Total),
		zap.Int64("work", elapsed.Work),
		zap.Int64("break", elapsed.Break),
		zap.Int("entries", len(st.TodayEntries)))
	return true
}

func findOpenBreak(e *timeservice.TimeEntry) *timeservice.BreakInterval {
	for i := len(e.Breaks) - 1; i >= 0; i-- {
		if e.Breaks[i].BreakEnd == nil {
			return &e.Breaks[i]
		}
	}
	return nil
}

func containsEntry(entries []timeservice.TimeEntry, id int64) bool {
	for _, e := range entries {
		if e.ID == id {
			return true
		}
	}
	return false
}

// armTickerLocked replaces any running ticker. Only Working gets a new one.
func (c *Controller) armTickerLocked() {
	if c.tickStop != nil {
		close(c.tickStop)
		c.tickStop = nil
	}
	if c.closed || c.state != Working {
		return
	}
	stop := make(chan struct{})
	c.tickStop = stop
	interval := c.tickInterval
	go func() {
		t := time.NewTicker(interval)
		defer t.Stop()
		for {
			select {
			case <-stop:
				return
			case <-t.C:
				c.tick()
			}
		}
	}()
}

// tick recomputes elapsed from the current reference cell.
func (c *Controller) tick() {
	ref := c.ref.Load()
	if ref == nil || !ref.clockedIn || ref.onBreak {
		return
	}
	el := ref.elapsedAt(c.clock.Now())
	c.mu.Lock()
	if c.state != Working {
		c.mu.Unlock()
		return
	}
	c.elapsed = el
	c.mu.Unlock()
	if c.onTick != nil {
		c.onTick(el)
	}
}

func (c *Controller) ClockIn(ctx context.Context) error {
	return c.run(ctx, timeservice.ActionClockIn)
}

func (c *Controller) ClockOut(ctx context.Context) error {
	return c.run(ctx, timeservice.ActionClockOut)
}

// ToggleBreak starts a break while Working and ends it while OnBreak.
func (c *Controller) ToggleBreak(ctx context.Context) error {
	switch c.State() {
	case Working:
		return c.run(ctx, timeservice.ActionBreakIn)
	case OnBreak:
		return c.run(ctx, timeservice.ActionBreakOut)
	default:
		return fmt.Errorf("toggle break while %s: %w", ClockedOut, ErrInvalidTransition)
	}
}

var actionLabels = map[timeservice.ActionType]string{
	timeservice.ActionClockIn:  "clock in",
	timeservice.ActionClockOut: "clock out",
	timeservice.ActionBreakIn:  "start break",
	timeservice.ActionBreakOut: "end break",
}

func allowed(s State, a timeservice.ActionType) bool {
	switch a {
	case timeservice.ActionClockIn:
		return s == ClockedOut
	case timeservice.ActionClockOut:
		return s == Working || s == OnBreak
	case timeservice.ActionBreakIn:
		return s == Working
	case timeservice.ActionBreakOut:
		return s == OnBreak
	}
	return false
}

// run performs one mutating action. Remote failures are recorded on the
// controller and published as EventError; they are not returned. Only
// ErrBusy and ErrInvalidTransition reach the caller, and in both cases
// nothing was sent.
func (c *Controller) run(ctx context.Context, action timeservice.ActionType) error {
	if !c.busy.CompareAndSwap(false, true) {
		return ErrBusy
	}
	defer c.busy.Store(false)

	c.mu.Lock()
	state := c.state
	before := c.elapsed
	c.mu.Unlock()
	if !allowed(state, action) {
		return fmt.Errorf("%s while %s: %w", actionLabels[action], state, ErrInvalidTransition)
	}
	if action == timeservice.ActionClockOut && state == Working {
		before = c.ref.Load().elapsedAt(c.clock.Now())
	}

	req := timeservice.ActionRequest{Type: action}
	if action == timeservice.ActionClockIn {
		req.WorkDate = c.workDate(c.clock.Now())
	}

	_, actErr := c.svc.Act(ctx, req)
	if actErr != nil {
		c.log.Warn("attendance action failed", zap.String("action", string(action)), zap.Error(actErr))
		c.mu.Lock()
		c.lastErr = fmt.Sprintf("Could not %s: %s", actionLabels[action], actErr)
		c.notice = ""
		c.mu.Unlock()
	} else {
		c.mu.Lock()
		c.lastErr = ""
		switch action {
		case timeservice.ActionClockIn:
			c.notice = "Clocked in"
		case timeservice.ActionClockOut:
			c.notice = fmt.Sprintf("Clocked out after %s. %s", FormatHMS(before.Total), SummaryText(before))
		case timeservice.ActionBreakIn:
			c.notice = "Break started"
		case timeservice.ActionBreakOut:
			c.notice = "Break ended"
		}
		c.mu.Unlock()
	}

	if err := c.Refresh(ctx); err != nil {
		c.log.Warn("resync after action failed", zap.String("action", string(action)), zap.Error(err))
	}

	ev := Event{At: c.clock.Now()}
	switch {
	case actErr != nil:
		ev.Kind = EventError
		ev.Action = action
		ev.Reason = actErr.Error()
	case action == timeservice.ActionClockIn:
		ev.Kind = EventClockIn
	case action == timeservice.ActionClockOut:
		ev.Kind = EventClockOut
		ev.Elapsed = before
	default:
		ev.Kind = EventBreakToggle
		ev.OnBreak = action == timeservice.ActionBreakIn
	}
	c.bus.Publish(ev)
	return nil
}

// StartPolling refreshes status every interval until ctx ends or Close is
// called. Polls that land while an action is running are skipped; the
// action resyncs on its own.
func (c *Controller) StartPolling(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}
	c.mu.Lock()
	if c.pollStop != nil || c.closed {
		c.mu.Unlock()
		return
	}
	stop := make(chan struct{})
	c.pollStop = stop
	c.mu.Unlock()

	go func() {
		t := time.NewTicker(interval)
		defer t.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ctx.Done():
				return
			case <-t.C:
				if c.busy.Load() {
					continue
				}
				_ = c.Refresh(ctx)
			}
		}
	}()
}

// StopPolling stops the status poll so it can be restarted with a new
// interval.
func (c *Controller) StopPolling() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stopPollLocked()
}

func (c *Controller) stopPollLocked() {
	if c.pollStop != nil {
		close(c.pollStop)
		c.pollStop = nil
	}
}

// Close stops the ticker and the status poll.
func (c *Controller) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	if c.tickStop != nil {
		close(c.tickStop)
		c.tickStop = nil
	}
	c.stopPollLocked()
}
