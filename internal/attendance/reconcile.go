package attendance

import (
	"fmt"
	"math"
	"time"

	"github.com/sadopc/attendr/internal/timeservice"
)

// Elapsed holds whole seconds. Work never goes negative and never exceeds
// Total.
type Elapsed struct {
	Total int64 `json:"total"`
	Work  int64 `json:"work"`
	Break int64 `json:"break"`
}

// zone-less layouts some backends emit
var localLayouts = []string{
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
}

// ParseTimestamp accepts RFC3339 and the zone-less layouts some backends
// emit, which are read in loc.
func ParseTimestamp(s string, loc *time.Location) (time.Time, bool) {
	if s == "" {
		return time.Time{}, false
	}
	if loc == nil {
		loc = time.Local
	}
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t, true
	}
	for _, layout := range localLayouts {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// secondsBetween is floor(b - a) in seconds, clamped to zero.
func secondsBetween(a, b time.Time) int64 {
	d := b.Sub(a)
	if d <= 0 {
		return 0
	}
	return int64(d / time.Second)
}

// Reconcile recomputes elapsed time for entry from its authoritative
// timestamps. activeBreak is the break the service reports as open, if
// any. Open entries run until now, truncated to the second so the value
// agrees with the local tick. Malformed timestamps drop only the term they
// belong to.
func Reconcile(entry *timeservice.TimeEntry, activeBreak *timeservice.BreakInterval, now time.Time, loc *time.Location) Elapsed {
	if entry == nil {
		return Elapsed{}
	}
	anchor, ok := ParseTimestamp(entry.ClockIn, loc)
	if !ok {
		return Elapsed{}
	}

	end := now.Truncate(time.Second)
	closed := false
	if entry.ClockOut != nil {
		if t, ok := ParseTimestamp(*entry.ClockOut, loc); ok {
			end = t
			closed = true
		}
	}

	total := secondsBetween(anchor, end)
	brk := closedBreakSeconds(entry.Breaks, loc)

	switch {
	case activeBreak != nil && activeBreak.BreakEnd == nil:
		if start, ok := ParseTimestamp(activeBreak.BreakStart, loc); ok {
			brk += secondsBetween(start, end)
		}
	case closed:
		// A break left open on a closed entry ends with the entry.
		for _, b := range entry.Breaks {
			if b.BreakEnd != nil {
				continue
			}
			if start, ok := ParseTimestamp(b.BreakStart, loc); ok {
				brk += secondsBetween(start, end)
			}
		}
	}

	return Elapsed{Total: total, Work: max(0, total-brk), Break: brk}
}

func closedBreakSeconds(breaks []timeservice.BreakInterval, loc *time.Location) int64 {
	var sum int64
	for _, b := range breaks {
		if b.BreakEnd == nil {
			continue
		}
		start, ok := ParseTimestamp(b.BreakStart, loc)
		if !ok {
			continue
		}
		end, ok := ParseTimestamp(*b.BreakEnd, loc)
		if !ok {
			continue
		}
		sum += secondsBetween(start, end)
	}
	return sum
}

// tickRef is the state a background tick reads. It is replaced wholesale on
// every reconcile so a tick never sees a value captured when it was armed.
type tickRef struct {
	anchor       time.Time
	clockedIn    bool
	onBreak      bool
	breakSeconds int64 // break total at the last fetch
}

func (r *tickRef) elapsedAt(now time.Time) Elapsed {
	if r == nil || !r.clockedIn {
		return Elapsed{}
	}
	total := secondsBetween(r.anchor, now.Truncate(time.Second))
	return Elapsed{Total: total, Work: max(0, total-r.breakSeconds), Break: r.breakSeconds}
}

// FormatHMS renders seconds as zero-padded HH:MM:SS. Negative input renders
// as 00:00:00.
func FormatHMS(seconds int64) string {
	if seconds < 0 {
		seconds = 0
	}
	h := seconds / 3600
	m := (seconds % 3600) / 60
	s := seconds % 60
	return fmt.Sprintf("%02d:%02d:%02d", h, m, s)
}

// FormatHMSFloat is FormatHMS for fractional input; NaN and ±Inf render as
// 00:00:00.
func FormatHMSFloat(seconds float64) string {
	if math.IsNaN(seconds) || math.IsInf(seconds, 0) || seconds < 0 {
		return "00:00:00"
	}
	return FormatHMS(int64(math.Floor(seconds)))
}

// FormatHuman renders seconds like "7h 30m", "45m" or "30s".
func FormatHuman(seconds int64) string {
	if seconds < 0 {
		seconds = 0
	}
	h := seconds / 3600
	m := (seconds % 3600) / 60
	s := seconds % 60
	if h > 0 {
		return fmt.Sprintf("%dh %dm", h, m)
	}
	if m > 0 {
		return fmt.Sprintf("%dm", m)
	}
	return fmt.Sprintf("%ds", s)
}
