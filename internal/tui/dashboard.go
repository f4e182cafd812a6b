package tui

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/sadopc/attendr/internal/attendance"
)

type dashboardModel struct {
	ctrl    *attendance.Controller
	ctx     context.Context
	snap    attendance.Snapshot
	spinner spinner.Model
	width   int
	height  int
}

func newDashboardModel() dashboardModel {
	return dashboardModel{
		spinner: spinner.New(spinner.WithSpinner(spinner.Dot), spinner.WithStyle(warningStyle)),
	}
}

func (d *dashboardModel) setSize(w, h int) {
	d.width = w
	d.height = h
}

// bind points the dashboard at the signed-in user's controller. A nil
// controller unbinds it.
func (d *dashboardModel) bind(ctx context.Context, ctrl *attendance.Controller) {
	d.ctrl = ctrl
	d.ctx = ctx
	d.snap = attendance.Snapshot{}
}

func (d *dashboardModel) sync() {
	if d.ctrl != nil {
		d.snap = d.ctrl.Snapshot()
	}
}

func (d dashboardModel) state() attendance.State { return d.snap.State }

func (d dashboardModel) update(msg tea.Msg) (dashboardModel, tea.Cmd) {
	switch msg := msg.(type) {
	case spinner.TickMsg:
		if !d.snap.Busy {
			return d, nil
		}
		var cmd tea.Cmd
		d.spinner, cmd = d.spinner.Update(msg)
		return d, cmd

	case tea.KeyMsg:
		if d.ctrl == nil {
			return d, nil
		}
		switch {
		case key.Matches(msg, keys.ClockIn):
			return d.act("clock in", (*attendance.Controller).ClockIn)
		case key.Matches(msg, keys.ClockOut):
			return d.act("clock out", (*attendance.Controller).ClockOut)
		case key.Matches(msg, keys.Break):
			return d.act("toggle break", (*attendance.Controller).ToggleBreak)
		case key.Matches(msg, keys.Dismiss):
			d.ctrl.DismissError()
			d.sync()
			return d, nil
		case key.Matches(msg, keys.Refresh):
			ctrl, ctx := d.ctrl, d.ctx
			return d, func() tea.Msg { return refreshedMsg{err: ctrl.Refresh(ctx)} }
		}
	}
	return d, nil
}

// act runs an action off the UI goroutine. A second action while one is in
// flight is rejected here and again by the controller.
func (d dashboardModel) act(name string, fn func(*attendance.Controller, context.Context) error) (dashboardModel, tea.Cmd) {
	if d.ctrl.Busy() {
		return d, func() tea.Msg {
			return statusMsg{text: "Another action is in progress", isError: true}
		}
	}
	ctrl, ctx := d.ctrl, d.ctx
	d.snap.Busy = true
	return d, tea.Batch(
		func() tea.Msg { return actionDoneMsg{action: name, err: fn(ctrl, ctx)} },
		d.spinner.Tick,
	)
}

// actionStatus turns an action result into a footer message. Remote
// failures are not returned by the controller; they show in the panel.
func actionStatus(msg actionDoneMsg) (statusMsg, bool) {
	switch {
	case msg.err == nil:
		return statusMsg{}, false
	case errors.Is(msg.err, attendance.ErrBusy):
		return statusMsg{text: "Another action is in progress", isError: true}, true
	case errors.Is(msg.err, attendance.ErrInvalidTransition):
		return statusMsg{text: fmt.Sprintf("Cannot %s now", msg.action), isError: true}, true
	default:
		return statusMsg{text: fmt.Sprintf("Error: %v", msg.err), isError: true}, true
	}
}

func (d dashboardModel) view() string {
	if d.width < 20 {
		return "Terminal too small"
	}

	contentWidth := d.width - 4

	timerPanel := d.renderTimerPanel(contentWidth)
	summaryPanel := d.renderSummaryPanel(contentWidth)

	panels := []string{timerPanel, summaryPanel}
	if msg := d.renderMessages(contentWidth); msg != "" {
		panels = append(panels, msg)
	}
	return lipgloss.JoinVertical(lipgloss.Left, panels...)
}

func (d dashboardModel) renderTimerPanel(w int) string {
	busy := ""
	if d.snap.Busy {
		busy = " " + d.spinner.View()
	}

	switch d.snap.State {
	case attendance.Working, attendance.OnBreak:
		timeStr := attendance.FormatHMS(d.snap.Elapsed.Work)
		timeDisplay := stateStyles[d.snap.State].clock.Width(w - 6).Render(timeStr)
		indicator := stateBadge(d.snap.State) + busy

		since := mutedStyle.Render("since " + d.snap.ClockedInAt.Format("15:04:05"))
		detail := fmt.Sprintf("%s  %s",
			highlightStyle.Render("break "+attendance.FormatHMS(d.snap.Elapsed.Break)),
			mutedStyle.Render("total "+attendance.FormatHMS(d.snap.Elapsed.Total)),
		)
		hint := mutedStyle.Render("b: break  o: clock out")

		content := lipgloss.JoinVertical(lipgloss.Center,
			timeDisplay,
			indicator,
			since,
			detail,
			hint,
		)
		return activePanelStyle.Width(w).Render(content)
	}

	timeDisplay := clockedOutClockStyle.Width(w - 6).Render("00:00:00")
	indicator := stateBadge(attendance.ClockedOut) + busy
	hint := mutedStyle.Render("Press i to clock in")

	content := lipgloss.JoinVertical(lipgloss.Center,
		timeDisplay,
		indicator,
		hint,
	)
	return panelStyle.Width(w).Render(content)
}

func (d dashboardModel) renderSummaryPanel(w int) string {
	title := titleStyle.Render("Today")
	total := highlightStyle.Render(attendance.FormatHMS(d.snap.Today.Work))
	header := fmt.Sprintf("%s  %s", title, total)

	if len(d.snap.Entries) == 0 {
		content := lipgloss.JoinVertical(lipgloss.Left,
			header,
			mutedStyle.Render("No sessions today"),
		)
		return panelStyle.Width(w).Render(content)
	}

	rows := []string{
		header,
		fmt.Sprintf("  %-10s %s", "Worked", attendance.FormatHuman(d.snap.Today.Work)),
		fmt.Sprintf("  %-10s %s", "Breaks", attendance.FormatHuman(d.snap.Today.Break)),
		fmt.Sprintf("  %-10s %d", "Sessions", len(d.snap.Entries)),
	}
	return panelStyle.Width(w).Render(strings.Join(rows, "\n"))
}

func (d dashboardModel) renderMessages(w int) string {
	var rows []string
	if d.snap.Err != "" {
		rows = append(rows, errorStyle.Render("✗ "+d.snap.Err), mutedStyle.Render("  x: dismiss"))
	}
	if d.snap.Notice != "" {
		rows = append(rows, successStyle.Render("✓ "+d.snap.Notice))
	}
	if len(rows) == 0 {
		return ""
	}
	return panelStyle.Width(w).Render(strings.Join(rows, "\n"))
}
