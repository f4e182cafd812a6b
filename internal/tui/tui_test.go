package tui

import (
	"context"
	"errors"
	"os"
	"reflect"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"go.uber.org/zap"
	"golang.org/x/oauth2"

	"github.com/sadopc/attendr/internal/attendance"
	"github.com/sadopc/attendr/internal/auth"
	"github.com/sadopc/attendr/internal/crosstab"
	"github.com/sadopc/attendr/internal/idle"
	"github.com/sadopc/attendr/internal/logcache"
	"github.com/sadopc/attendr/internal/session"
	"github.com/sadopc/attendr/internal/store"
	"github.com/sadopc/attendr/internal/timeservice"
)

func newTestStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.NewMemory()
	if err != nil {
		t.Fatalf("new memory store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// fakeService is an in-memory time service.
type fakeService struct {
	mu       sync.Mutex
	entries  []timeservice.TimeEntry
	nextID   int64
	acts     int
	failNext error
}

func stamp() string { return time.Now().UTC().Format(time.RFC3339) }

func cloneEntries(in []timeservice.TimeEntry) []timeservice.TimeEntry {
	out := make([]timeservice.TimeEntry, len(in))
	for i, e := range in {
		e.Breaks = append([]timeservice.BreakInterval(nil), e.Breaks...)
		out[i] = e
	}
	return out
}

func (f *fakeService) Status(ctx context.Context, workDate string) (*timeservice.Status, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	st := &timeservice.Status{TodayEntries: cloneEntries(f.entries)}
	for i := range st.TodayEntries {
		e := st.TodayEntries[i]
		if e.ClockOut != nil {
			continue
		}
		st.IsClockedIn = true
		st.ActiveEntry = &e
		for _, b := range e.Breaks {
			if b.BreakEnd == nil {
				b := b
				st.IsOnBreak = true
				st.ActiveBreak = &b
			}
		}
	}
	return st, nil
}

func (f *fakeService) Act(ctx context.Context, req timeservice.ActionRequest) (*timeservice.ActionResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.acts++
	if err := f.failNext; err != nil {
		f.failNext = nil
		return nil, err
	}
	now := stamp()
	var open *timeservice.TimeEntry
	for i := range f.entries {
		if f.entries[i].ClockOut == nil {
			open = &f.entries[i]
		}
	}
	switch req.Type {
	case timeservice.ActionClockIn:
		f.nextID++
		f.entries = append(f.entries, timeservice.TimeEntry{ID: f.nextID, ClockIn: now})
	case timeservice.ActionClockOut:
		for i := range open.Breaks {
			if open.Breaks[i].BreakEnd == nil {
				open.Breaks[i].BreakEnd = &now
			}
		}
		open.ClockOut = &now
	case timeservice.ActionBreakIn:
		open.Breaks = append(open.Breaks, timeservice.BreakInterval{ID: int64(len(open.Breaks) + 1), BreakStart: now})
	case timeservice.ActionBreakOut:
		for i := range open.Breaks {
			if open.Breaks[i].BreakEnd == nil {
				open.Breaks[i].BreakEnd = &now
			}
		}
	}
	return &timeservice.ActionResult{}, nil
}

func (f *fakeService) actCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.acts
}

func testRecord() *session.Record {
	return &session.Record{
		User:  session.User{ID: 7, Username: "ada", Name: "Ada Lovelace", Email: "ada@example.com", Role: "employee"},
		Token: &oauth2.Token{AccessToken: "token-1", RefreshToken: "refresh-1", TokenType: "Bearer"},
	}
}

func newTestApp(t *testing.T) (App, *fakeService, *store.Store) {
	t.Helper()
	s := newTestStore(t)
	svc := &fakeService{}
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	app := NewApp(ctx, Services{
		Store:   s,
		Cache:   logcache.New(s, zap.NewNop()),
		Channel: crosstab.NewHub(),
		Login: func(ctx context.Context, username, password string) (*session.Record, error) {
			if password != "secret" {
				return nil, auth.ErrInvalidCredentials
			}
			return testRecord(), nil
		},
		Connect: func(ctx context.Context, rec *session.Record, sync *crosstab.Synchronizer, opts attendance.Options) *attendance.Controller {
			opts.Service = svc
			opts.Cache = logcache.New(s, zap.NewNop())
			opts.Location = time.UTC
			return attendance.NewController(opts)
		},
		Location:     time.UTC,
		PollInterval: time.Hour,
	})
	m, _ := app.Update(tea.WindowSizeMsg{Width: 120, Height: 40})
	return m.(App), svc, s
}

func signedInApp(t *testing.T) (App, *fakeService, *store.Store) {
	t.Helper()
	app, svc, s := newTestApp(t)
	rec := testRecord()
	if err := s.SaveSession(context.Background(), *rec); err != nil {
		t.Fatal(err)
	}
	app = settle(t, app, sessionLoadedMsg{rec: rec})
	if !app.signedIn() {
		t.Fatal("expected a signed-in app")
	}
	t.Cleanup(func() {
		if app.live != nil {
			app.live.close()
		}
	})
	return app, svc, s
}

// drain runs cmd and returns the messages it produces, expanding batches
// and sequences. Commands that take longer than a moment (ticks, blinks)
// are dropped.
func drain(cmd tea.Cmd) []tea.Msg {
	if cmd == nil {
		return nil
	}
	ch := make(chan tea.Msg, 1)
	go func() { ch <- cmd() }()
	var msg tea.Msg
	select {
	case msg = <-ch:
	case <-time.After(250 * time.Millisecond):
		return nil
	}
	if msg == nil {
		return nil
	}
	if v := reflect.ValueOf(msg); v.Kind() == reflect.Slice && v.Type().Elem() == reflect.TypeOf(tea.Cmd(nil)) {
		var out []tea.Msg
		for i := 0; i < v.Len(); i++ {
			c, _ := v.Index(i).Interface().(tea.Cmd)
			out = append(out, drain(c)...)
		}
		return out
	}
	switch msg.(type) {
	case tickMsg, spinner.TickMsg:
		return nil
	}
	return []tea.Msg{msg}
}

// settle feeds msgs and everything they produce back into the app.
func settle(t *testing.T, a App, msgs ...tea.Msg) App {
	t.Helper()
	queue := msgs
	for depth := 0; len(queue) > 0 && depth < 20; depth++ {
		var next []tea.Msg
		for _, msg := range queue {
			m, cmd := a.Update(msg)
			a = m.(App)
			next = append(next, drain(cmd)...)
		}
		queue = next
	}
	return a
}

func keyMsg(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

// ============================================================
// App model
// ============================================================

func TestNewApp(t *testing.T) {
	app, _, _ := newTestApp(t)

	if app.activeView != viewDashboard {
		t.Fatal("default view should be dashboard")
	}
	if app.signedIn() {
		t.Fatal("app should start signed out")
	}
	if app.showHelp || app.showDebug || app.exportPicking {
		t.Fatal("overlays should be hidden by default")
	}
	if app.idle.Config().Enabled {
		t.Fatal("idle monitor should be off while signed out")
	}
}

func TestAppLoadingState(t *testing.T) {
	s := newTestStore(t)
	app := NewApp(context.Background(), Services{Store: s, Channel: crosstab.NewHub()})
	if output := app.View(); output != "Loading..." {
		t.Fatalf("expected 'Loading...', got %q", output)
	}
}

func TestAppSignedOutShowsLogin(t *testing.T) {
	app, _, _ := newTestApp(t)
	out := app.View()
	if !strings.Contains(out, "Sign in") {
		t.Fatal("signed-out view should show the login form")
	}
	if strings.Contains(out, "Clock Log") {
		t.Fatal("tabs should be hidden while signed out")
	}
}

func TestAppRestoresStoredSession(t *testing.T) {
	app, _, _ := signedInApp(t)

	if app.user == nil || app.user.Name != "Ada Lovelace" {
		t.Fatalf("user = %+v", app.user)
	}
	if u, ok := app.sync.User(); !ok || u.ID != 7 {
		t.Fatal("synchronizer should know the user")
	}
	if !app.idle.Config().Enabled {
		t.Fatal("idle monitor should run while signed in")
	}
	if app.dashboard.snap.LastSync.IsZero() {
		t.Fatal("first fetch should have applied")
	}
	header := app.renderHeader()
	for _, name := range viewNames {
		if !strings.Contains(header, name) {
			t.Fatalf("header missing tab %q", name)
		}
	}
}

func TestAppIgnoresMissingSession(t *testing.T) {
	app, _, _ := newTestApp(t)
	app = settle(t, app, sessionLoadedMsg{err: store.ErrNoSession})
	if app.signedIn() {
		t.Fatal("no session should leave the app signed out")
	}
}

func TestAppLoginStoresSession(t *testing.T) {
	app, _, s := newTestApp(t)
	app = settle(t, app, loginResultMsg{rec: testRecord()})
	defer app.live.close()

	if !app.signedIn() {
		t.Fatal("expected signed in after login")
	}
	rec, err := s.LoadSession(context.Background())
	if err != nil {
		t.Fatalf("session should be stored: %v", err)
	}
	if rec.User.ID != 7 {
		t.Fatalf("stored user = %+v", rec.User)
	}
}

func TestAppLoginRejected(t *testing.T) {
	app, _, _ := newTestApp(t)
	app = settle(t, app, loginResultMsg{err: auth.ErrInvalidCredentials})
	if app.signedIn() {
		t.Fatal("rejected login must not sign in")
	}
	if !strings.Contains(app.View(), "Invalid username or password") {
		t.Fatal("login view should show the error")
	}
}

func TestAppFullDay(t *testing.T) {
	app, svc, _ := signedInApp(t)

	app = settle(t, app, keyMsg("i"))
	if app.dashboard.state() != attendance.Working {
		t.Fatalf("after clock in: %s", app.dashboard.state())
	}
	if !strings.Contains(app.View(), "WORKING") {
		t.Fatal("dashboard should show WORKING")
	}

	app = settle(t, app, keyMsg("b"))
	if app.dashboard.state() != attendance.OnBreak {
		t.Fatalf("after break: %s", app.dashboard.state())
	}
	if !strings.Contains(app.View(), "ON BREAK") {
		t.Fatal("dashboard should show ON BREAK")
	}

	app = settle(t, app, keyMsg("b"))
	if app.dashboard.state() != attendance.Working {
		t.Fatalf("after break end: %s", app.dashboard.state())
	}

	app = settle(t, app, keyMsg("o"))
	if app.dashboard.state() != attendance.ClockedOut {
		t.Fatalf("after clock out: %s", app.dashboard.state())
	}
	if !strings.HasPrefix(app.dashboard.snap.Notice, "Clocked out after") {
		t.Fatalf("notice = %q", app.dashboard.snap.Notice)
	}
	if svc.actCount() != 4 {
		t.Fatalf("expected 4 actions, got %d", svc.actCount())
	}
	hasSummary := false
	for _, l := range app.clockLog.logs {
		hasSummary = hasSummary || l.Type == attendance.LogSummary
	}
	if !hasSummary {
		t.Fatalf("log should carry the session summary, got %+v", app.clockLog.logs)
	}
}

func TestAppInvalidTransition(t *testing.T) {
	app, svc, _ := signedInApp(t)

	app = settle(t, app, keyMsg("o"))
	if app.status != "Cannot clock out now" || !app.statusErr {
		t.Fatalf("status = %q (err=%v)", app.status, app.statusErr)
	}
	if svc.actCount() != 0 {
		t.Fatal("invalid transition must not reach the service")
	}
}

func TestAppRemoteFailureAndDismiss(t *testing.T) {
	app, svc, _ := signedInApp(t)
	svc.failNext = errors.New("service down")

	app = settle(t, app, keyMsg("i"))
	if app.dashboard.state() != attendance.ClockedOut {
		t.Fatal("failed clock in must not change state")
	}
	if app.dashboard.snap.Err != "Could not clock in: service down" {
		t.Fatalf("err = %q", app.dashboard.snap.Err)
	}
	if !strings.Contains(app.View(), "Could not clock in") {
		t.Fatal("error should be visible")
	}

	app = settle(t, app, keyMsg("x"))
	if app.dashboard.snap.Err != "" {
		t.Fatal("x should dismiss the error")
	}
}

func TestAppTabSwitching(t *testing.T) {
	app, _, _ := signedInApp(t)

	tests := []struct {
		key  string
		want viewState
	}{
		{"2", viewLog},
		{"3", viewSessions},
		{"4", viewSettings},
		{"1", viewDashboard},
	}
	for _, tt := range tests {
		app = settle(t, app, keyMsg(tt.key))
		if app.activeView != tt.want {
			t.Fatalf("key %s: view = %d, want %d", tt.key, app.activeView, tt.want)
		}
		if app.View() == "" {
			t.Fatalf("view %d rendered empty", tt.want)
		}
	}

	app = settle(t, app, tea.KeyMsg{Type: tea.KeyTab})
	if app.activeView != viewLog {
		t.Fatalf("tab should move to the next view, got %d", app.activeView)
	}
}

func TestAppActionsFromOtherViews(t *testing.T) {
	app, _, _ := signedInApp(t)
	app = settle(t, app, keyMsg("2"), keyMsg("i"))
	if app.dashboard.state() != attendance.Working {
		t.Fatal("clock in should work from the log view")
	}
	if len(app.clockLog.logs) != 1 {
		t.Fatalf("log view should see the new line, got %+v", app.clockLog.logs)
	}
}

func TestAppSessionClearedElsewhere(t *testing.T) {
	app, _, s := signedInApp(t)

	app = settle(t, app, sessionClearedMsg{})
	if app.signedIn() {
		t.Fatal("expected signed out")
	}
	if app.status != "Signed out in another window" {
		t.Fatalf("status = %q", app.status)
	}
	if app.idle.Config().Enabled {
		t.Fatal("idle monitor should stop on logout")
	}
	// the other window already cleared its copy; this one must not write
	if _, err := s.LoadSession(context.Background()); err != nil {
		t.Fatalf("remote logout must not touch the store: %v", err)
	}
}

func TestAppLogoutKey(t *testing.T) {
	app, _, s := signedInApp(t)

	var got []crosstab.Message
	unsub, _ := app.svc.Channel.Subscribe(func(m crosstab.Message) { got = append(got, m) })
	defer unsub()

	app = settle(t, app, keyMsg("L"))
	if app.signedIn() {
		t.Fatal("expected signed out")
	}
	if _, err := s.LoadSession(context.Background()); !errors.Is(err, store.ErrNoSession) {
		t.Fatalf("logout should clear the stored session, got %v", err)
	}
	if len(got) != 1 || got[0].Kind != crosstab.KindCleared {
		t.Fatalf("logout should broadcast, got %+v", got)
	}
}

func TestAppIdleLogout(t *testing.T) {
	app, _, s := signedInApp(t)

	app = settle(t, app, idleLogoutMsg{})
	if app.signedIn() {
		t.Fatal("expected signed out")
	}
	if app.status != "Signed out after inactivity" {
		t.Fatalf("status = %q", app.status)
	}
	if _, err := s.LoadSession(context.Background()); !errors.Is(err, store.ErrNoSession) {
		t.Fatal("idle logout should end the session everywhere")
	}
}

func TestAppIdlePromptSwallowsKey(t *testing.T) {
	app, svc, _ := signedInApp(t)

	app = settle(t, app, idleStatusMsg(idle.Status{
		IdleFor:     630 * time.Second,
		UntilLogout: 90 * time.Second,
		WillPrompt:  true,
	}))
	out := app.View()
	if !strings.Contains(out, "Are you still there?") || !strings.Contains(out, "01:30") {
		t.Fatal("idle prompt should show the countdown")
	}

	app = settle(t, app, keyMsg("i"))
	if app.idleStatus.WillPrompt {
		t.Fatal("a key press should dismiss the prompt")
	}
	if svc.actCount() != 0 {
		t.Fatal("the dismissing key must not trigger an action")
	}
}

func TestAppAdoptsSessionFromOtherWindow(t *testing.T) {
	app, _, s := newTestApp(t)
	if err := s.SaveSession(context.Background(), *testRecord()); err != nil {
		t.Fatal(err)
	}

	app = settle(t, app, sessionAdoptedMsg{user: testRecord().User.Public()})
	if !app.signedIn() {
		t.Fatal("expected adoption to sign in")
	}
	app.live.close()
}

func TestAppCacheChangeDetectsStoreLogout(t *testing.T) {
	app, _, s := signedInApp(t)
	if err := s.ClearSession(context.Background()); err != nil {
		t.Fatal(err)
	}

	app = settle(t, app, cacheChangedMsg{})
	if app.signedIn() {
		t.Fatal("a session removed from the store should sign this window out")
	}
}

func TestAppSettingsSaved(t *testing.T) {
	app, _, _ := signedInApp(t)

	app = settle(t, app, settingsSavedMsg{
		idleTimeout:  5 * time.Minute,
		promptBefore: time.Minute,
		pollInterval: time.Minute,
	})
	cfg := app.idle.Config()
	if cfg.Timeout != 5*time.Minute || cfg.PromptBefore != time.Minute {
		t.Fatalf("idle config = %+v", cfg)
	}
	if app.poll != time.Minute {
		t.Fatalf("poll = %v", app.poll)
	}
	if app.status != "Settings saved" {
		t.Fatalf("status = %q", app.status)
	}
}

func TestAppAdoptsLoginFromOtherProcess(t *testing.T) {
	app, _, s := newTestApp(t)
	app = settle(t, app, sessionLoadedMsg{err: store.ErrNoSession})
	if err := s.SaveSession(context.Background(), *testRecord()); err != nil {
		t.Fatal(err)
	}

	app = settle(t, app, cacheChangedMsg{})
	if !app.signedIn() {
		t.Fatal("a session written by another process should sign this window in")
	}
	if app.user == nil || app.user.ID != 7 {
		t.Fatalf("user = %+v", app.user)
	}
	app.live.close()
}

func TestAppCacheChangeWithoutSessionStaysSignedOut(t *testing.T) {
	app, _, _ := newTestApp(t)
	app = settle(t, app, sessionLoadedMsg{err: store.ErrNoSession})

	app = settle(t, app, cacheChangedMsg{})
	if app.signedIn() {
		t.Fatal("no stored session should leave the app signed out")
	}
}

func TestAppConfigReloadAppliesDefaults(t *testing.T) {
	app, _, _ := signedInApp(t)

	app = settle(t, app, defaultsChangedMsg{
		IdleTimeout:      20 * time.Minute,
		IdlePromptBefore: 3 * time.Minute,
		PollInterval:     30 * time.Second,
	})
	cfg := app.idle.Config()
	if cfg.Timeout != 20*time.Minute || cfg.PromptBefore != 3*time.Minute {
		t.Fatalf("idle config = %+v", cfg)
	}
	if app.poll != 30*time.Second {
		t.Fatalf("poll = %v", app.poll)
	}
	if app.status != "Config reloaded" {
		t.Fatalf("status = %q", app.status)
	}
	app.live.close()
}

func TestAppConfigReloadKeepsOverrides(t *testing.T) {
	app, _, s := newTestApp(t)
	if err := s.SetSettingDuration(store.SettingIdleTimeout, 5*time.Minute); err != nil {
		t.Fatal(err)
	}

	app = settle(t, app, defaultsChangedMsg{
		IdleTimeout:      20 * time.Minute,
		IdlePromptBefore: 3 * time.Minute,
		PollInterval:     time.Hour,
	})
	cfg := app.idle.Config()
	if cfg.Timeout != 5*time.Minute {
		t.Fatalf("stored timeout should win, got %v", cfg.Timeout)
	}
	if cfg.PromptBefore != 3*time.Minute {
		t.Fatalf("prompt lead = %v, want reloaded value", cfg.PromptBefore)
	}
}

func TestForwardReloads(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	ch := make(chan Defaults, 1)
	got := make(chan tea.Msg, 1)
	done := make(chan struct{})
	go func() {
		forwardReloads(ctx, ch, func(m tea.Msg) { got <- m })
		close(done)
	}()

	ch <- Defaults{IdleTimeout: 15 * time.Minute}
	select {
	case m := <-got:
		d, ok := m.(defaultsChangedMsg)
		if !ok || d.IdleTimeout != 15*time.Minute {
			t.Fatalf("msg = %#v", m)
		}
	case <-time.After(time.Second):
		t.Fatal("reload not forwarded")
	}

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("forwarder did not stop on cancel")
	}
}

func TestAppDebugOverlay(t *testing.T) {
	app, _, _ := signedInApp(t)

	app = settle(t, app, busEventMsg(attendance.Event{Kind: attendance.EventClockIn, At: time.Now()}))
	if len(app.debug.events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(app.debug.events))
	}
	if strings.Contains(app.View(), "Events") {
		t.Fatal("overlay should be hidden until toggled")
	}
	app = settle(t, app, keyMsg("D"))
	if !strings.Contains(app.View(), "clock-in") {
		t.Fatal("overlay should list the event")
	}
}

func TestAppStatusMessage(t *testing.T) {
	app, _, _ := newTestApp(t)
	app.status = "test status"

	if !strings.Contains(app.renderFooter(), "test status") {
		t.Fatal("footer should contain status message")
	}
}

func TestAppFooterShowsSync(t *testing.T) {
	app, _, _ := signedInApp(t)
	if !strings.Contains(app.renderFooter(), "synced") {
		t.Fatal("footer should show when status was last synced")
	}
}

// ============================================================
// Export picker
// ============================================================

func TestExportPicker(t *testing.T) {
	app, _, _ := signedInApp(t)

	app = settle(t, app, keyMsg("e"))
	if !app.exportPicking {
		t.Fatal("e should open the export picker")
	}
	for i := 0; i < 5; i++ {
		app = settle(t, app, keyMsg("j"))
	}
	if app.exportCursor != len(exportFormats)-1 {
		t.Fatalf("cursor = %d", app.exportCursor)
	}
	app = settle(t, app, tea.KeyMsg{Type: tea.KeyEsc})
	if app.exportPicking {
		t.Fatal("esc should close the picker")
	}
}

func TestDoExport(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	app, _, _ := signedInApp(t)
	app = settle(t, app, keyMsg("i"))

	for format, ext := range []string{".csv", ".json", ".xlsx"} {
		msg := app.doExport(format)()
		done, ok := msg.(exportDoneMsg)
		if !ok {
			t.Fatalf("format %d: got %#v", format, msg)
		}
		if !strings.HasSuffix(done.path, ext) || !strings.HasPrefix(done.path, home) {
			t.Fatalf("format %d: path %q", format, done.path)
		}
		if _, err := os.Stat(done.path); err != nil {
			t.Fatalf("format %d: %v", format, err)
		}
	}
}

// ============================================================
// Views
// ============================================================

func TestLogModelScroll(t *testing.T) {
	var l logModel
	l.setSize(120, 12) // two visible rows
	l.setLogs([]attendance.ClockLogEntry{
		{Type: attendance.LogClockOut, Time: "17:00:00", Date: "2026-10-19"},
		{Type: attendance.LogBreakEnd, Time: "12:30:00", Date: "2026-10-19"},
		{Type: attendance.LogClockIn, Time: "09:00:00", Date: "2026-10-19"},
	})

	down := tea.KeyMsg{Type: tea.KeyDown}
	for i := 0; i < 4; i++ {
		l, _ = l.update(down)
	}
	if l.cursor != 2 {
		t.Fatalf("cursor = %d, want 2", l.cursor)
	}
	if l.offset != 1 {
		t.Fatalf("offset = %d, want 1", l.offset)
	}
	if !strings.Contains(l.view(), "09:00:00") || strings.Contains(l.view(), "17:00:00") {
		t.Fatal("view should follow the cursor")
	}

	l.setLogs(l.logs[:1])
	if l.cursor != 0 || l.offset != 0 {
		t.Fatalf("cursor/offset not clamped: %d/%d", l.cursor, l.offset)
	}
}

func TestLogModelEmpty(t *testing.T) {
	var l logModel
	l.setSize(80, 20)
	if !strings.Contains(l.view(), "No clock activity today.") {
		t.Fatal("empty log should say so")
	}
}

func strp(s string) *string { return &s }

func TestSessionsModel(t *testing.T) {
	m := newSessionsModel(time.UTC)
	m.setSize(120, 40)
	now := time.Date(2026, 10, 19, 15, 0, 0, 0, time.UTC)
	m.setEntries(attendance.Snapshot{Entries: []timeservice.TimeEntry{
		{ID: 1, ClockIn: "2026-10-19T09:00:00Z", ClockOut: strp("2026-10-19T12:00:00Z")},
		{ID: 2, ClockIn: "2026-10-19T13:00:00Z"},
	}}, now)

	if len(m.sessions) != 2 {
		t.Fatalf("expected 2 sessions, got %d", len(m.sessions))
	}
	out := m.view()
	for _, want := range []string{"Total", "09:00", "05:00:00"} {
		if !strings.Contains(out, want) {
			t.Fatalf("sessions view missing %q", want)
		}
	}
}

func TestSettingsModelDefaultsAndOverrides(t *testing.T) {
	s := newTestStore(t)
	defaults := settingDefaults{idleTimeout: 12 * time.Minute, promptBefore: 2 * time.Minute, pollInterval: 30 * time.Second}

	m := newSettingsModel(s, defaults)
	if m.current.idleTimeout != 12*time.Minute || m.current.pollInterval != 30*time.Second {
		t.Fatalf("defaults not applied: %+v", m.current)
	}

	if err := s.SetSettingDuration(store.SettingIdleTimeout, 5*time.Minute); err != nil {
		t.Fatal(err)
	}
	m = newSettingsModel(s, defaults)
	if m.current.idleTimeout != 5*time.Minute {
		t.Fatalf("stored override ignored: %+v", m.current)
	}
	m.setSize(120, 40)
	out := m.view()
	if !strings.Contains(out, "5 min") {
		t.Fatal("view should show the effective timeout")
	}
	if strings.Count(out, "(default)") != 2 {
		t.Fatal("only the untouched settings should be marked as defaults")
	}
}

func TestSettingsModelSave(t *testing.T) {
	s := newTestStore(t)
	m := newSettingsModel(s, settingDefaults{idleTimeout: 12 * time.Minute, promptBefore: 2 * time.Minute, pollInterval: 30 * time.Second})
	*m.idleTimeout = "20"
	*m.promptBefore = "3"
	*m.pollInterval = "45"

	saved, err := m.save()
	if err != nil {
		t.Fatal(err)
	}
	if saved.idleTimeout != 20*time.Minute || saved.promptBefore != 3*time.Minute || saved.pollInterval != 45*time.Second {
		t.Fatalf("saved = %+v", saved)
	}
	if got := s.SettingDuration(store.SettingPollInterval, 0); got != 45*time.Second {
		t.Fatalf("stored poll = %v", got)
	}
}

func TestSettingsFormOpens(t *testing.T) {
	s := newTestStore(t)
	m := newSettingsModel(s, settingDefaults{idleTimeout: 12 * time.Minute, promptBefore: 2 * time.Minute, pollInterval: 30 * time.Second})
	m.setSize(120, 40)
	m, _ = m.update(tea.KeyMsg{Type: tea.KeyEnter})
	if !m.formActive {
		t.Fatal("enter should open the form")
	}
	if *m.idleTimeout != "12" || *m.pollInterval != "30" {
		t.Fatalf("form not prefilled: %s / %s", *m.idleTimeout, *m.pollInterval)
	}
	m, _ = m.update(tea.KeyMsg{Type: tea.KeyEsc})
	if m.formActive {
		t.Fatal("esc should close the form")
	}
}

func TestPositiveInt(t *testing.T) {
	for _, v := range []string{"1", "30"} {
		if err := positiveInt(v); err != nil {
			t.Errorf("positiveInt(%q) = %v", v, err)
		}
	}
	for _, v := range []string{"", "0", "-3", "ten"} {
		if positiveInt(v) == nil {
			t.Errorf("positiveInt(%q) should fail", v)
		}
	}
}

// ============================================================
// Helpers
// ============================================================

func TestActionStatus(t *testing.T) {
	tests := []struct {
		err     error
		want    string
		reports bool
	}{
		{nil, "", false},
		{attendance.ErrBusy, "Another action is in progress", true},
		{attendance.ErrInvalidTransition, "Cannot clock in now", true},
		{errors.New("boom"), "Error: boom", true},
	}
	for _, tt := range tests {
		st, ok := actionStatus(actionDoneMsg{action: "clock in", err: tt.err})
		if ok != tt.reports || st.text != tt.want {
			t.Errorf("actionStatus(%v) = %q, %v", tt.err, st.text, ok)
		}
	}
}

func TestFormatCountdown(t *testing.T) {
	tests := []struct {
		in   time.Duration
		want string
	}{
		{0, "00:00"},
		{-time.Second, "00:00"},
		{500 * time.Millisecond, "00:01"},
		{90 * time.Second, "01:30"},
		{2 * time.Minute, "02:00"},
	}
	for _, tt := range tests {
		if got := formatCountdown(tt.in); got != tt.want {
			t.Errorf("formatCountdown(%v) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestDescribeEvent(t *testing.T) {
	tests := []struct {
		ev   attendance.Event
		want string
	}{
		{attendance.Event{Kind: attendance.EventClockIn}, "clock-in"},
		{attendance.Event{Kind: attendance.EventClockOut, Elapsed: attendance.Elapsed{Total: 3661}}, "01:01:01"},
		{attendance.Event{Kind: attendance.EventBreakToggle, OnBreak: true}, "on break"},
		{attendance.Event{Kind: attendance.EventError, Action: timeservice.ActionClockIn, Reason: "down"}, "clockin: down"},
	}
	for _, tt := range tests {
		if got := describeEvent(tt.ev); !strings.Contains(got, tt.want) {
			t.Errorf("describeEvent(%s) = %q, want it to contain %q", tt.ev.Kind, got, tt.want)
		}
	}
}

func TestDebugModelLimit(t *testing.T) {
	var d debugModel
	for i := 0; i < debugEventLimit+3; i++ {
		d.push(attendance.Event{Kind: attendance.EventClockIn, At: time.Unix(int64(i), 0)})
	}
	if len(d.events) != debugEventLimit {
		t.Fatalf("expected %d events, got %d", debugEventLimit, len(d.events))
	}
	if d.events[0].At.Unix() != int64(debugEventLimit+2) {
		t.Fatal("newest event should be first")
	}
}

func TestFormatHelpers(t *testing.T) {
	if got := formatDuration(3661 * time.Second); got != "01:01:01" {
		t.Errorf("formatDuration = %q", got)
	}
	if got := formatHours(5400); got != "1.5h" {
		t.Errorf("formatHours = %q", got)
	}
	if got := clockTime("2026-10-19T09:05:00Z"); got != "09:05" {
		t.Errorf("clockTime = %q", got)
	}
	if got := clockTime("nope"); got != "--:--" {
		t.Errorf("clockTime(bad) = %q", got)
	}
}

// ============================================================
// Key bindings
// ============================================================

func TestKeyMapShortHelp(t *testing.T) {
	bindings := keys.ShortHelp()
	if len(bindings) == 0 {
		t.Fatal("short help should have bindings")
	}
}

func TestKeyMapFullHelp(t *testing.T) {
	groups := keys.FullHelp()
	if len(groups) == 0 {
		t.Fatal("full help should have groups")
	}
	for i, g := range groups {
		if len(g) == 0 {
			t.Fatalf("full help group %d is empty", i)
		}
	}
}

// ============================================================
// Styles (smoke test: they render without panicking)
// ============================================================

func TestStylesRender(t *testing.T) {
	styles := []struct {
		name string
		fn   func() string
	}{
		{"activeTab", func() string { return activeTabStyle.Render("test") }},
		{"inactiveTab", func() string { return inactiveTabStyle.Render("test") }},
		{"panel", func() string { return panelStyle.Render("test") }},
		{"activePanel", func() string { return activePanelStyle.Render("test") }},
		{"idlePanel", func() string { return idlePanelStyle.Render("test") }},
		{"idleCountdown", func() string { return idleCountdownStyle.Render("test") }},
		{"workingClock", func() string { return workingClockStyle.Render("test") }},
		{"onBreakClock", func() string { return onBreakClockStyle.Render("test") }},
		{"clockedOutClock", func() string { return clockedOutClockStyle.Render("test") }},
		{"working", func() string { return workingStyle.Render("test") }},
		{"onBreak", func() string { return onBreakStyle.Render("test") }},
		{"clockedOut", func() string { return clockedOutStyle.Render("test") }},
		{"title", func() string { return titleStyle.Render("test") }},
		{"success", func() string { return successStyle.Render("test") }},
		{"warning", func() string { return warningStyle.Render("test") }},
		{"error", func() string { return errorStyle.Render("test") }},
		{"muted", func() string { return mutedStyle.Render("test") }},
		{"highlight", func() string { return highlightStyle.Render("test") }},
		{"header", func() string { return headerStyle.Render("test") }},
		{"footer", func() string { return footerStyle.Render("test") }},
		{"selectedItem", func() string { return selectedItemStyle.Render("test") }},
		{"normalItem", func() string { return normalItemStyle.Render("test") }},
	}

	for _, s := range styles {
		if result := s.fn(); result == "" {
			t.Fatalf("style %q rendered empty", s.name)
		}
	}
}

func TestStateBadge(t *testing.T) {
	cases := map[attendance.State]string{
		attendance.Working:    "WORKING",
		attendance.OnBreak:    "ON BREAK",
		attendance.ClockedOut: "CLOCKED OUT",
	}
	for state, want := range cases {
		if got := stateBadge(state); !strings.Contains(got, want) {
			t.Fatalf("stateBadge(%v) = %q, want %q", state, got, want)
		}
	}
	if stateStyles[attendance.Working].clock.GetForeground() == stateStyles[attendance.OnBreak].clock.GetForeground() {
		t.Fatal("working and on-break clocks should not share a colour")
	}
}
