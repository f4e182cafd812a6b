package attendance

import (
	"fmt"
	"sort"
	"time"

	"github.com/sadopc/attendr/internal/timeservice"
)

type LogType string

const (
	LogClockIn    LogType = "Clock In"
	LogClockOut   LogType = "Clock Out"
	LogBreakStart LogType = "Break Start"
	LogBreakEnd   LogType = "Break End"
	LogSummary    LogType = "Session Summary"
)

const (
	logTimeLayout = "15:04:05"
	logDateLayout = "2006-01-02"
)

// ClockLogEntry is a display-only line derived from time entries. Time and
// Date sort lexicographically.
type ClockLogEntry struct {
	Type   LogType `json:"type"`
	Time   string  `json:"time"`
	Date   string  `json:"date"`
	Detail string  `json:"detail,omitempty"`
}

func (e ClockLogEntry) key() string {
	return string(e.Type) + "|" + e.Time + "|" + e.Date
}

// SynthesizeLog turns today's entries and the open break into a log ordered
// newest first, with no two lines sharing (type, time, date).
func SynthesizeLog(entries []timeservice.TimeEntry, openBreak *timeservice.BreakInterval, loc *time.Location) []ClockLogEntry {
	if loc == nil {
		loc = time.Local
	}

	sorted := make([]timeservice.TimeEntry, len(entries))
	copy(sorted, entries)
	sort.SliceStable(sorted, func(i, j int) bool {
		ti, okI := ParseTimestamp(sorted[i].ClockIn, loc)
		tj, okJ := ParseTimestamp(sorted[j].ClockIn, loc)
		if okI != okJ {
			return okI
		}
		return ti.After(tj)
	})

	var logs []ClockLogEntry
	line := func(typ LogType, ts, detail string) {
		if l, ok := newLogEntry(typ, ts, detail, loc); ok {
			logs = append(logs, l)
		}
	}

	for i := range sorted {
		e := &sorted[i]
		line(LogClockIn, e.ClockIn, "")
		for _, b := range e.Breaks {
			line(LogBreakStart, b.BreakStart, "")
			if b.BreakEnd != nil {
				line(LogBreakEnd, *b.BreakEnd, "")
			}
		}
		if e.ClockOut != nil {
			split := Reconcile(e, nil, time.Time{}, loc)
			line(LogSummary, *e.ClockOut, SummaryText(split))
			line(LogClockOut, *e.ClockOut, "")
		}
	}

	if openBreak != nil && openBreak.BreakEnd == nil {
		if l, ok := newLogEntry(LogBreakStart, openBreak.BreakStart, "", loc); ok {
			logs = append([]ClockLogEntry{l}, logs...)
		}
	}

	sort.SliceStable(logs, func(i, j int) bool {
		if logs[i].Date != logs[j].Date {
			return logs[i].Date > logs[j].Date
		}
		return logs[i].Time > logs[j].Time
	})

	return dedupe(logs)
}

// newLogEntry is false when ts does not parse; such lines are dropped.
func newLogEntry(typ LogType, ts, detail string, loc *time.Location) (ClockLogEntry, bool) {
	t, ok := ParseTimestamp(ts, loc)
	if !ok {
		return ClockLogEntry{}, false
	}
	t = t.In(loc)
	return ClockLogEntry{
		Type:   typ,
		Time:   t.Format(logTimeLayout),
		Date:   t.Format(logDateLayout),
		Detail: detail,
	}, true
}

func dedupe(logs []ClockLogEntry) []ClockLogEntry {
	seen := make(map[string]bool, len(logs))
	out := make([]ClockLogEntry, 0, len(logs))
	for _, l := range logs {
		if seen[l.key()] {
			continue
		}
		seen[l.key()] = true
		out = append(out, l)
	}
	return out
}

// SummaryText is the human-readable work/break split of a session.
func SummaryText(e Elapsed) string {
	return fmt.Sprintf("Worked %s, break %s", FormatHuman(e.Work), FormatHuman(e.Break))
}
