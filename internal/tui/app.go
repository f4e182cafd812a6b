package tui

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/xeonx/timeago"
	"go.uber.org/zap"

	"github.com/sadopc/attendr/internal/attendance"
	"github.com/sadopc/attendr/internal/crosstab"
	"github.com/sadopc/attendr/internal/export"
	"github.com/sadopc/attendr/internal/idle"
	"github.com/sadopc/attendr/internal/logcache"
	"github.com/sadopc/attendr/internal/session"
	"github.com/sadopc/attendr/internal/store"
)

// ConnectFunc builds a controller for rec. Refreshed tokens must be stored
// through sync so other windows see them.
type ConnectFunc func(ctx context.Context, rec *session.Record, sync *crosstab.Synchronizer, opts attendance.Options) *attendance.Controller

// Services are the long-lived dependencies of the UI.
type Services struct {
	Store   *store.Store
	Cache   *logcache.Cache
	Channel crosstab.Channel
	Login   LoginFunc
	Connect ConnectFunc

	Location *time.Location
	Logger   *zap.Logger

	// Defaults for the settings the user can override in the Settings view.
	IdleTimeout      time.Duration
	IdlePromptBefore time.Duration
	PollInterval     time.Duration

	WatchInterval time.Duration

	// Reloads delivers new defaults when the config file changes.
	Reloads <-chan Defaults
}

// Defaults are the configured values behind the user-editable settings.
type Defaults struct {
	IdleTimeout      time.Duration
	IdlePromptBefore time.Duration
	PollInterval     time.Duration
}

// forwardReloads passes every Defaults from ch to send until ctx is done.
func forwardReloads(ctx context.Context, ch <-chan Defaults, send func(tea.Msg)) {
	for {
		select {
		case <-ctx.Done():
			return
		case d, ok := <-ch:
			if !ok {
				return
			}
			send(defaultsChangedMsg(d))
		}
	}
}

// liveSession is the signed-in state that has to be torn down on logout.
type liveSession struct {
	ctrl   *attendance.Controller
	ctx    context.Context
	cancel context.CancelFunc
	unsub  func()
}

func (l *liveSession) close() {
	l.unsub()
	l.ctrl.Close()
	l.cancel()
}

// App is the root Bubble Tea model.
type App struct {
	svc  Services
	ctx  context.Context
	out  *sender
	sync *crosstab.Synchronizer
	idle *idle.Monitor
	log  *zap.Logger

	width  int
	height int

	activeView    viewState
	showHelp      bool
	showDebug     bool
	exportPicking bool
	exportCursor  int

	live       *liveSession
	user       *session.PublicUser
	idleStatus idle.Status
	poll       time.Duration

	login     loginModel
	dashboard dashboardModel
	clockLog  logModel
	sessions  sessionsModel
	settings  settingsModel
	debug     debugModel

	help      help.Model
	status    string
	statusErr bool
}

func NewApp(ctx context.Context, svc Services) App {
	if svc.Logger == nil {
		svc.Logger = zap.NewNop()
	}
	if svc.Location == nil {
		svc.Location = time.Local
	}
	if svc.WatchInterval <= 0 {
		svc.WatchInterval = 2 * time.Second
	}
	if svc.IdleTimeout <= 0 {
		svc.IdleTimeout = idle.DefaultTimeout
	}
	if svc.IdlePromptBefore <= 0 {
		svc.IdlePromptBefore = idle.DefaultPromptBefore
	}

	out := &sender{}
	sync := crosstab.NewSynchronizer(svc.Channel, svc.Store, crosstab.Hooks{
		OnCleared: func() { out.send(sessionClearedMsg{}) },
		OnAdopt:   func(u session.PublicUser) { out.send(sessionAdoptedMsg{user: u}) },
	}, svc.Logger)

	settings := newSettingsModel(svc.Store, settingDefaults{
		idleTimeout:  svc.IdleTimeout,
		promptBefore: svc.IdlePromptBefore,
		pollInterval: svc.PollInterval,
	})
	monitor := idle.New(idle.Config{
		Timeout:      settings.current.idleTimeout,
		PromptBefore: settings.current.promptBefore,
	}, nil, func() { out.send(idleLogoutMsg{}) }, svc.Logger)

	h := help.New()
	h.ShowAll = false

	return App{
		svc:        svc,
		ctx:        ctx,
		out:        out,
		sync:       sync,
		idle:       monitor,
		log:        svc.Logger,
		activeView: viewDashboard,
		poll:       settings.current.pollInterval,
		login:      newLoginModel(ctx, svc.Login),
		dashboard:  newDashboardModel(),
		sessions:   newSessionsModel(svc.Location),
		settings:   settings,
		help:       h,
	}
}

// Run starts the UI and its background watchers and blocks until the user
// quits.
func Run(ctx context.Context, svc Services) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	app := NewApp(ctx, svc)
	if err := app.sync.Start(); err != nil {
		return err
	}
	defer app.sync.Close()

	p := tea.NewProgram(app, tea.WithAltScreen(), tea.WithContext(ctx))
	app.out.attach(p)

	go app.idle.Run(ctx, time.Second, func(st idle.Status) { app.out.send(idleStatusMsg(st)) })
	if app.svc.Cache != nil {
		go app.svc.Cache.Watch(ctx, app.svc.WatchInterval, func() { app.out.send(cacheChangedMsg{}) })
	}

	if svc.Reloads != nil {
		go forwardReloads(ctx, svc.Reloads, app.out.send)
	}

	final, err := p.Run()
	if a, ok := final.(App); ok && a.live != nil {
		a.live.close()
	}
	return err
}

func (a App) Init() tea.Cmd {
	st := a.svc.Store
	ctx := a.ctx
	return tea.Batch(
		func() tea.Msg {
			rec, err := st.LoadSession(ctx)
			return sessionLoadedMsg{rec: rec, err: err}
		},
		a.login.init(),
		tickCmd(),
	)
}

func tickCmd() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (a App) signedIn() bool { return a.live != nil }

func (a App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		a.width = msg.Width
		a.height = msg.Height
		a.help.Width = msg.Width
		contentHeight := a.height - 4 // header + footer
		a.login.setSize(a.width)
		a.dashboard.setSize(a.width, contentHeight)
		a.clockLog.setSize(a.width, contentHeight)
		a.sessions.setSize(a.width, contentHeight)
		a.settings.setSize(a.width, contentHeight)
		a.syncViews(true)
		return a, nil

	case tea.KeyMsg:
		a.idle.Activity()
		if a.idleStatus.WillPrompt {
			// the keypress only dismisses the warning
			a.idleStatus = idle.Status{}
			return a, nil
		}
		if msg.String() == "ctrl+c" {
			return a, tea.Quit
		}
		if !a.signedIn() {
			var cmd tea.Cmd
			a.login, cmd = a.login.update(msg)
			return a, cmd
		}
		return a.updateKey(msg)

	case tickMsg:
		a.syncViews(a.activeView == viewSessions)
		return a, tickCmd()

	case spinner.TickMsg:
		var cmd tea.Cmd
		a.dashboard, cmd = a.dashboard.update(msg)
		return a, cmd

	case statusMsg:
		a.status = msg.text
		a.statusErr = msg.isError
		return a, nil

	case refreshedMsg:
		if msg.err != nil {
			a.log.Debug("status refresh failed", zap.Error(msg.err))
		}
		a.syncViews(true)
		return a, nil

	case actionDoneMsg:
		a.syncViews(true)
		if st, ok := actionStatus(msg); ok {
			a.status = st.text
			a.statusErr = st.isError
		} else {
			a.status = ""
		}
		return a, nil

	case busEventMsg:
		a.debug.push(attendance.Event(msg))
		return a, nil

	case idleStatusMsg:
		a.idleStatus = idle.Status(msg)
		return a, nil

	case idleLogoutMsg:
		if !a.signedIn() {
			return a, nil
		}
		return a.signOut("Signed out after inactivity", true)

	case sessionClearedMsg:
		if !a.signedIn() {
			return a, nil
		}
		return a.signOut("Signed out in another window", false)

	case sessionAdoptedMsg:
		if a.signedIn() {
			return a, nil
		}
		st, ctx := a.svc.Store, a.ctx
		return a, func() tea.Msg {
			rec, err := st.LoadSession(ctx)
			return sessionLoadedMsg{rec: rec, err: err}
		}

	case sessionLoadedMsg:
		if a.signedIn() {
			return a, nil
		}
		if msg.err != nil {
			if !errors.Is(msg.err, store.ErrNoSession) {
				a.log.Warn("loading stored session", zap.Error(msg.err))
			}
			return a, nil
		}
		if !msg.rec.Active() {
			return a, nil
		}
		return a.connect(msg.rec)

	case loginResultMsg:
		var cmd tea.Cmd
		a.login, cmd = a.login.update(msg)
		if msg.err != nil {
			return a, cmd
		}
		rec, sync, ctx := msg.rec, a.sync, a.ctx
		next, connectCmd := a.connect(rec)
		return next, tea.Batch(cmd, connectCmd, func() tea.Msg {
			if err := sync.Login(ctx, *rec); err != nil {
				return statusMsg{text: "Signed in, but other windows were not notified", isError: true}
			}
			return nil
		})

	case signedOutMsg:
		return a, nil

	case cacheChangedMsg:
		if !a.signedIn() {
			// another process may have signed in
			st, ctx := a.svc.Store, a.ctx
			return a, func() tea.Msg {
				rec, err := st.LoadSession(ctx)
				return sessionLoadedMsg{rec: rec, err: err}
			}
		}
		ctrl, ctx, st := a.live.ctrl, a.live.ctx, a.svc.Store
		return a, func() tea.Msg {
			_ = ctrl.LoadCachedLogs(ctx)
			_, err := st.LoadSession(ctx)
			return cacheReloadedMsg{sessionGone: errors.Is(err, store.ErrNoSession)}
		}

	case cacheReloadedMsg:
		if !a.signedIn() {
			return a, nil
		}
		if msg.sessionGone {
			return a.signOut("Signed out in another window", false)
		}
		a.syncViews(a.activeView == viewSessions)
		return a, nil

	case settingsSavedMsg:
		a.applySettings(msg)
		a.status = "Settings saved"
		a.statusErr = false
		return a, nil

	case defaultsChangedMsg:
		// stored overrides still win; load() falls back to the new defaults
		if msg.IdleTimeout <= 0 {
			msg.IdleTimeout = idle.DefaultTimeout
		}
		if msg.IdlePromptBefore <= 0 {
			msg.IdlePromptBefore = idle.DefaultPromptBefore
		}
		a.settings.defaults = settingDefaults{
			idleTimeout:  msg.IdleTimeout,
			promptBefore: msg.IdlePromptBefore,
			pollInterval: msg.PollInterval,
		}
		a.settings.current = a.settings.load()
		a.applySettings(a.settings.current)
		a.status = "Config reloaded"
		a.statusErr = false
		return a, nil

	case exportDoneMsg:
		a.status = "Exported to " + msg.path
		a.statusErr = false
		a.exportPicking = false
		return a, nil
	}

	if !a.signedIn() {
		var cmd tea.Cmd
		a.login, cmd = a.login.update(msg)
		return a, cmd
	}
	return a.updateActiveView(msg)
}

func (a App) updateKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if a.exportPicking {
		return a.updateExportPicker(msg)
	}

	// A child view capturing input (the settings form) gets keys first.
	if a.isFormActive() {
		return a.updateActiveView(msg)
	}

	switch {
	case key.Matches(msg, keys.Export):
		a.exportPicking = true
		a.exportCursor = 0
		return a, nil
	case key.Matches(msg, keys.Quit):
		return a, tea.Quit
	case key.Matches(msg, keys.Help):
		a.showHelp = !a.showHelp
		a.help.ShowAll = a.showHelp
		return a, nil
	case key.Matches(msg, keys.Debug):
		a.showDebug = !a.showDebug
		return a, nil
	case key.Matches(msg, keys.Logout):
		return a.signOut("Signed out", true)
	case key.Matches(msg, keys.Tab1):
		a.activeView = viewDashboard
		return a, nil
	case key.Matches(msg, keys.Tab2):
		a.activeView = viewLog
		return a, nil
	case key.Matches(msg, keys.Tab3):
		a.activeView = viewSessions
		a.syncViews(true)
		return a, nil
	case key.Matches(msg, keys.Tab4):
		a.activeView = viewSettings
		return a, nil
	case key.Matches(msg, keys.Tab):
		a.activeView = (a.activeView + 1) % viewState(len(viewNames))
		a.syncViews(a.activeView == viewSessions)
		return a, nil
	}

	// Actions work from every view.
	if key.Matches(msg, keys.ClockIn, keys.ClockOut, keys.Break, keys.Dismiss, keys.Refresh) {
		var cmd tea.Cmd
		a.dashboard, cmd = a.dashboard.update(msg)
		return a, cmd
	}
	return a.updateActiveView(msg)
}

func (a App) updateActiveView(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd
	switch a.activeView {
	case viewDashboard:
		a.dashboard, cmd = a.dashboard.update(msg)
	case viewLog:
		a.clockLog, cmd = a.clockLog.update(msg)
	case viewSettings:
		a.settings, cmd = a.settings.update(msg)
	}
	return a, cmd
}

// applySettings pushes effective settings into the idle monitor and the
// status poll.
func (a *App) applySettings(st settingsSavedMsg) {
	a.idle.SetThresholds(st.idleTimeout, st.promptBefore)
	if st.pollInterval == a.poll {
		return
	}
	a.poll = st.pollInterval
	if a.signedIn() {
		a.live.ctrl.StopPolling()
		a.live.ctrl.StartPolling(a.live.ctx, a.poll)
	}
}

func (a App) isFormActive() bool {
	return a.activeView == viewSettings && a.settings.formActive
}

// syncViews copies the controller's snapshot into every view. The chart is
// only redrawn when asked; it is the one expensive view.
func (a *App) syncViews(chart bool) {
	if !a.signedIn() {
		return
	}
	a.dashboard.sync()
	a.clockLog.setLogs(a.dashboard.snap.Logs)
	if chart {
		a.sessions.setEntries(a.dashboard.snap, time.Now())
	}
}

// connect starts a signed-in session: controller, event subscription,
// cached log, first fetch and the status poll.
func (a App) connect(rec *session.Record) (App, tea.Cmd) {
	ctx, cancel := context.WithCancel(a.ctx)
	out := a.out
	ctrl := a.svc.Connect(ctx, rec, a.sync, attendance.Options{
		OnRefresh: func() { out.send(refreshedMsg{}) },
	})
	unsub := ctrl.Bus().Subscribe(func(ev attendance.Event) { out.send(busEventMsg(ev)) })
	a.live = &liveSession{ctrl: ctrl, ctx: ctx, cancel: cancel, unsub: unsub}

	u := rec.User.Public()
	a.user = &u
	a.sync.SetUser(&u)
	a.idle.SetEnabled(true)
	a.idleStatus = idle.Status{}
	a.dashboard.bind(ctx, ctrl)
	a.debug = debugModel{}
	a.activeView = viewDashboard
	a.status = "Signed in as " + u.Name
	a.statusErr = false

	poll := a.poll
	return a, tea.Sequence(
		func() tea.Msg {
			_ = ctrl.LoadCachedLogs(ctx)
			return refreshedMsg{}
		},
		func() tea.Msg {
			err := ctrl.Refresh(ctx)
			ctrl.StartPolling(ctx, poll)
			return refreshedMsg{err: err}
		},
	)
}

// signOut ends the local session. broadcast clears the stored session and
// tells every other window; a logout that came from another window does
// not.
func (a App) signOut(reason string, broadcast bool) (App, tea.Cmd) {
	if a.live != nil {
		a.live.close()
		a.live = nil
	}
	a.user = nil
	a.idle.SetEnabled(false)
	a.idleStatus = idle.Status{}
	a.dashboard.bind(nil, nil)
	a.clockLog.setLogs(nil)
	a.exportPicking = false
	a.status = reason
	a.statusErr = false
	a.login = newLoginModel(a.ctx, a.svc.Login)
	a.login.setSize(a.width)

	cmds := []tea.Cmd{a.login.init()}
	if broadcast {
		sync, ctx := a.sync, a.ctx
		cmds = append(cmds, func() tea.Msg {
			_ = sync.Logout(ctx)
			return signedOutMsg{}
		})
	} else {
		a.sync.SetUser(nil)
	}
	return a, tea.Batch(cmds...)
}

func (a App) View() string {
	if a.width == 0 {
		return "Loading..."
	}

	header := a.renderHeader()
	footer := a.renderFooter()

	var content string
	switch {
	case !a.signedIn():
		content = a.login.view()
	case a.idleStatus.WillPrompt:
		content = renderIdlePrompt(a.idleStatus, a.width)
	case a.exportPicking:
		content = a.renderExportPicker()
	default:
		switch a.activeView {
		case viewDashboard:
			content = a.dashboard.view()
		case viewLog:
			content = a.clockLog.view()
		case viewSessions:
			content = a.sessions.view()
		case viewSettings:
			content = a.settings.view()
		}
	}
	if a.showDebug && a.signedIn() {
		content = lipgloss.JoinVertical(lipgloss.Left, content, a.debug.view(a.width))
	}

	// Calculate available height for content
	headerHeight := lipgloss.Height(header)
	footerHeight := lipgloss.Height(footer)
	contentHeight := a.height - headerHeight - footerHeight
	if contentHeight < 1 {
		contentHeight = 1
	}

	content = lipgloss.NewStyle().
		Width(a.width).
		Height(contentHeight).
		Render(content)

	return lipgloss.JoinVertical(lipgloss.Left, header, content, footer)
}

func (a App) renderHeader() string {
	title := lipgloss.NewStyle().Bold(true).Foreground(colorPrimary).Render("attendr")
	if !a.signedIn() {
		return headerStyle.Render(title)
	}

	var tabs []string
	for i, name := range viewNames {
		if viewState(i) == a.activeView {
			tabs = append(tabs, activeTabStyle.Render(name))
		} else {
			tabs = append(tabs, inactiveTabStyle.Render(name))
		}
	}
	tabRow := lipgloss.JoinHorizontal(lipgloss.Bottom, tabs...)

	user := ""
	if a.user != nil {
		user = mutedStyle.Render("  " + a.user.Name)
	}

	gap := a.width - lipgloss.Width(title) - lipgloss.Width(user) - lipgloss.Width(tabRow) - 4
	if gap < 1 {
		gap = 1
	}
	spacer := lipgloss.NewStyle().Width(gap).Render("")

	return headerStyle.Render(
		lipgloss.JoinHorizontal(lipgloss.Bottom, title, user, spacer, tabRow),
	)
}

func (a App) renderFooter() string {
	helpView := ""
	if a.signedIn() {
		helpView = a.help.View(keys)
	}

	status := ""
	if a.status != "" {
		style := mutedStyle
		if a.statusErr {
			style = errorStyle
		}
		status = style.Render(" " + a.status)
	}

	info := ""
	if a.signedIn() {
		snap := a.dashboard.snap
		switch snap.State {
		case attendance.Working:
			info = successStyle.Render(" ● " + attendance.FormatHMS(snap.Elapsed.Work))
		case attendance.OnBreak:
			info = warningStyle.Render(" ⏸ " + attendance.FormatHMS(snap.Elapsed.Break))
		}
		if !snap.LastSync.IsZero() {
			info += mutedStyle.Render(" synced " + timeago.English.Format(snap.LastSync))
		}
	}

	left := footerStyle.Render(helpView)
	right := info + status

	gap := a.width - lipgloss.Width(left) - lipgloss.Width(right) - 2
	if gap < 1 {
		gap = 1
	}
	spacer := lipgloss.NewStyle().Width(gap).Render("")

	return lipgloss.JoinHorizontal(lipgloss.Bottom, left, spacer, right)
}

var exportFormats = []string{"CSV", "JSON", "XLSX"}

func (a App) renderExportPicker() string {
	title := titleStyle.Render("Export Today")
	var rows []string
	rows = append(rows, title)
	rows = append(rows, "")
	for i, f := range exportFormats {
		cursor := "  "
		style := normalItemStyle
		if i == a.exportCursor {
			cursor = "> "
			style = selectedItemStyle
		}
		rows = append(rows, style.Render(cursor+f))
	}
	rows = append(rows, "")
	rows = append(rows, mutedStyle.Render("  enter: export  esc: cancel"))

	w := a.width - 4
	return activePanelStyle.Width(w).Render(lipgloss.JoinVertical(lipgloss.Left, rows...))
}

func (a App) updateExportPicker(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, keys.Up):
		if a.exportCursor > 0 {
			a.exportCursor--
		}
	case key.Matches(msg, keys.Down):
		if a.exportCursor < len(exportFormats)-1 {
			a.exportCursor++
		}
	case key.Matches(msg, keys.Enter):
		a.exportPicking = false
		return a, a.doExport(a.exportCursor)
	case key.Matches(msg, keys.Back):
		a.exportPicking = false
	}
	return a, nil
}

func (a App) doExport(format int) tea.Cmd {
	snap := a.dashboard.snap
	loc := a.svc.Location
	return func() tea.Msg {
		now := time.Now()
		sessions := export.Sessions(snap.Entries, now, loc)

		home, _ := os.UserHomeDir()
		dateStr := now.In(loc).Format("2006-01-02")

		var path string
		var err error
		switch format {
		case 0:
			path = filepath.Join(home, fmt.Sprintf("attendr-export-%s.csv", dateStr))
			err = export.ToCSV(sessions, path)
		case 1:
			path = filepath.Join(home, fmt.Sprintf("attendr-export-%s.json", dateStr))
			err = export.ToJSON(sessions, snap.Logs, path)
		default:
			path = filepath.Join(home, fmt.Sprintf("attendr-export-%s.xlsx", dateStr))
			err = export.ToXLSX(sessions, snap.Logs, path)
		}
		if err != nil {
			return statusMsg{text: fmt.Sprintf("%s error: %v", exportFormats[format], err), isError: true}
		}
		return exportDoneMsg{path: path}
	}
}
