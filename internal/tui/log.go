package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/sadopc/attendr/internal/attendance"
)

type logModel struct {
	width  int
	height int

	logs   []attendance.ClockLogEntry
	cursor int
	offset int
}

func (l *logModel) setSize(w, h int) {
	l.width = w
	l.height = h
}

// setLogs replaces the lines, keeping the cursor in range.
func (l *logModel) setLogs(logs []attendance.ClockLogEntry) {
	l.logs = logs
	if l.cursor >= len(logs) {
		l.cursor = max(0, len(logs)-1)
	}
	l.clampOffset()
}

// visibleRows is how many log lines fit in the panel.
func (l logModel) visibleRows() int {
	// border, padding, title, blank, header, blank, hint
	return max(1, l.height-10)
}

func (l *logModel) clampOffset() {
	rows := l.visibleRows()
	if l.cursor < l.offset {
		l.offset = l.cursor
	}
	if l.cursor >= l.offset+rows {
		l.offset = l.cursor - rows + 1
	}
	l.offset = max(0, min(l.offset, len(l.logs)-1))
}

func (l logModel) update(msg tea.Msg) (logModel, tea.Cmd) {
	if msg, ok := msg.(tea.KeyMsg); ok {
		switch {
		case key.Matches(msg, keys.Up):
			if l.cursor > 0 {
				l.cursor--
			}
		case key.Matches(msg, keys.Down):
			if l.cursor < len(l.logs)-1 {
				l.cursor++
			}
		}
		l.clampOffset()
	}
	return l, nil
}

var logTypeStyles = map[attendance.LogType]lipgloss.Style{
	attendance.LogClockIn:    workingStyle,
	attendance.LogClockOut:   clockedOutStyle,
	attendance.LogBreakStart: onBreakStyle,
	attendance.LogBreakEnd:   workingStyle,
	attendance.LogSummary:    highlightStyle,
}

func (l logModel) view() string {
	w := l.width - 4
	title := titleStyle.Render("Clock Log")

	if len(l.logs) == 0 {
		content := lipgloss.JoinVertical(lipgloss.Left,
			title,
			"",
			mutedStyle.Render("No clock activity today."),
		)
		return panelStyle.Width(w).Render(content)
	}

	var rows []string
	rows = append(rows, title)
	rows = append(rows, "")
	rows = append(rows, mutedStyle.Render(fmt.Sprintf("  %-10s %-8s  %-15s %s", "Date", "Time", "Event", "Detail")))

	end := min(len(l.logs), l.offset+l.visibleRows())
	for i := l.offset; i < end; i++ {
		entry := l.logs[i]
		cursor := "  "
		style := normalItemStyle
		if i == l.cursor {
			cursor = "> "
			style = selectedItemStyle
		}
		typeStyle, ok := logTypeStyles[entry.Type]
		if !ok {
			typeStyle = normalItemStyle
		}
		row := style.Render(fmt.Sprintf("%s%-10s %-8s  ", cursor, entry.Date, entry.Time)) +
			typeStyle.Render(fmt.Sprintf("%-15s", entry.Type))
		if entry.Detail != "" {
			row += " " + mutedStyle.Render(entry.Detail)
		}
		rows = append(rows, row)
	}

	rows = append(rows, "")
	rows = append(rows, mutedStyle.Render(fmt.Sprintf("  %d of %d  ↑/↓: scroll", l.cursor+1, len(l.logs))))

	return panelStyle.Width(w).Render(strings.Join(rows, "\n"))
}
