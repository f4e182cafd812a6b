package tui

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/sadopc/attendr/internal/attendance"
)

// Chrome
var (
	colorPrimary   = lipgloss.Color("#5B8DEF")
	colorMuted     = lipgloss.Color("#6B7280")
	colorError     = lipgloss.Color("#EF4444")
	colorFg        = lipgloss.Color("#D1D5DB")
	colorSubtle    = lipgloss.Color("#374151")
	colorHighlight = lipgloss.Color("#93C5FD")
)

// Attendance states
var (
	colorWorking    = lipgloss.Color("#22C55E")
	colorOnBreak    = lipgloss.Color("#F59E0B")
	colorClockedOut = lipgloss.Color("#9CA3AF")
	colorIdle       = lipgloss.Color("#F97316")
)

var (
	activeTabStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(colorPrimary).
			Border(lipgloss.NormalBorder(), false, false, true, false).
			BorderForeground(colorPrimary).
			Padding(0, 2)

	inactiveTabStyle = lipgloss.NewStyle().
				Foreground(colorMuted).
				Padding(0, 2)

	panelStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(colorSubtle).
			Padding(1, 2)

	activePanelStyle = lipgloss.NewStyle().
				Border(lipgloss.RoundedBorder()).
				BorderForeground(colorPrimary).
				Padding(1, 2)

	idlePanelStyle = activePanelStyle.
			BorderForeground(colorIdle)

	idleCountdownStyle = clockFaceStyle.Foreground(colorIdle)

	// Clock face, one per attendance state
	clockFaceStyle = lipgloss.NewStyle().
			Bold(true).
			Align(lipgloss.Center)

	workingClockStyle    = clockFaceStyle.Foreground(colorWorking)
	onBreakClockStyle    = clockFaceStyle.Foreground(colorOnBreak)
	clockedOutClockStyle = clockFaceStyle.Foreground(colorClockedOut)

	workingStyle    = lipgloss.NewStyle().Foreground(colorWorking)
	onBreakStyle    = lipgloss.NewStyle().Foreground(colorOnBreak)
	clockedOutStyle = lipgloss.NewStyle().Foreground(colorClockedOut)

	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(colorFg)

	successStyle = workingStyle
	warningStyle = onBreakStyle

	errorStyle = lipgloss.NewStyle().
			Foreground(colorError)

	mutedStyle = lipgloss.NewStyle().
			Foreground(colorMuted)

	highlightStyle = lipgloss.NewStyle().
			Foreground(colorHighlight)

	headerStyle = lipgloss.NewStyle().
			Padding(0, 1)

	footerStyle = lipgloss.NewStyle().
			Foreground(colorMuted).
			Padding(0, 1)

	selectedItemStyle = lipgloss.NewStyle().
				Foreground(colorPrimary).
				Bold(true)

	normalItemStyle = lipgloss.NewStyle().
			Foreground(colorFg)
)

// stateStyles maps an attendance state to its clock face and badge.
var stateStyles = map[attendance.State]struct {
	clock lipgloss.Style
	badge lipgloss.Style
	label string
}{
	attendance.Working:    {workingClockStyle, workingStyle, "●  WORKING"},
	attendance.OnBreak:    {onBreakClockStyle, onBreakStyle, "⏸  ON BREAK"},
	attendance.ClockedOut: {clockedOutClockStyle, clockedOutStyle, "■  CLOCKED OUT"},
}

// stateBadge renders the indicator line for s.
func stateBadge(s attendance.State) string {
	st, ok := stateStyles[s]
	if !ok {
		return mutedStyle.Render(s.String())
	}
	return st.badge.Render(st.label)
}
