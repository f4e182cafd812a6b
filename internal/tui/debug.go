package tui

import (
	"fmt"
	"strings"

	"github.com/sadopc/attendr/internal/attendance"
)

const debugEventLimit = 8

// debugModel lists the most recent controller events, newest first.
type debugModel struct {
	events []attendance.Event
}

func (d *debugModel) push(ev attendance.Event) {
	d.events = append([]attendance.Event{ev}, d.events...)
	if len(d.events) > debugEventLimit {
		d.events = d.events[:debugEventLimit]
	}
}

func (d debugModel) view(width int) string {
	w := width - 4
	rows := []string{titleStyle.Render("Events")}
	if len(d.events) == 0 {
		rows = append(rows, mutedStyle.Render("  none yet"))
	}
	for _, ev := range d.events {
		rows = append(rows, "  "+mutedStyle.Render(ev.At.Format("15:04:05"))+" "+describeEvent(ev))
	}
	return panelStyle.Width(w).Render(strings.Join(rows, "\n"))
}

func describeEvent(ev attendance.Event) string {
	switch ev.Kind {
	case attendance.EventClockIn:
		return successStyle.Render("clock-in")
	case attendance.EventClockOut:
		return clockedOutStyle.Render("clock-out") + fmt.Sprintf(" after %s", attendance.FormatHMS(ev.Elapsed.Total))
	case attendance.EventBreakToggle:
		if ev.OnBreak {
			return warningStyle.Render("break-toggle") + " on break"
		}
		return warningStyle.Render("break-toggle") + " back to work"
	case attendance.EventError:
		return errorStyle.Render("error") + fmt.Sprintf(" %s: %s", ev.Action, ev.Reason)
	}
	return string(ev.Kind)
}
