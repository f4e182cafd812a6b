package tui

import (
	"fmt"
	"sync/atomic"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/sadopc/attendr/internal/attendance"
	"github.com/sadopc/attendr/internal/idle"
	"github.com/sadopc/attendr/internal/session"
)

// viewState represents the currently active view.
type viewState int

const (
	viewDashboard viewState = iota
	viewLog
	viewSessions
	viewSettings
)

var viewNames = []string{"Attendance", "Clock Log", "Sessions", "Settings"}

// --- Messages ---

type tickMsg time.Time

type statusMsg struct {
	text    string
	isError bool
}

// refreshedMsg follows every applied status fetch.
type refreshedMsg struct {
	err error
}

type actionDoneMsg struct {
	action string
	err    error
}

type busEventMsg attendance.Event

type idleStatusMsg idle.Status

type idleLogoutMsg struct{}

// sessionClearedMsg means another window logged out.
type sessionClearedMsg struct{}

// sessionAdoptedMsg means another window signed in while this one had no
// user.
type sessionAdoptedMsg struct {
	user session.PublicUser
}

type sessionLoadedMsg struct {
	rec *session.Record
	err error
}

type loginResultMsg struct {
	rec *session.Record
	err error
}

type signedOutMsg struct{}

// cacheChangedMsg means another connection committed to the local store.
type cacheChangedMsg struct{}

type cacheReloadedMsg struct {
	sessionGone bool
}

type settingsSavedMsg struct {
	idleTimeout  time.Duration
	promptBefore time.Duration
	pollInterval time.Duration
}

// defaultsChangedMsg carries configured defaults after a config reload.
type defaultsChangedMsg Defaults

type exportDoneMsg struct {
	path string
}

// sender forwards messages from background goroutines into the running
// program. Messages sent before a program is attached are dropped.
type sender struct {
	p atomic.Pointer[tea.Program]
}

func (s *sender) attach(p *tea.Program) { s.p.Store(p) }

func (s *sender) send(msg tea.Msg) {
	if p := s.p.Load(); p != nil {
		p.Send(msg)
	}
}

// --- Helpers ---

func formatDuration(d time.Duration) string {
	return attendance.FormatHMS(int64(d / time.Second))
}

func formatHours(secs int64) string {
	h := float64(secs) / 3600
	return fmt.Sprintf("%.1fh", h)
}
