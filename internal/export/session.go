package export

import (
	"sort"
	"time"

	"github.com/sadopc/attendr/internal/attendance"
	"github.com/sadopc/attendr/internal/timeservice"
)

// Session is one time entry flattened for export. ClockOut is empty while
// the entry is open.
type Session struct {
	ID       int64
	ClockIn  string
	ClockOut string
	Breaks   int
	Elapsed  attendance.Elapsed
}

// Sessions reconciles entries into export rows, oldest first. Entries whose
// clock-in does not parse are skipped; open entries run until now.
func Sessions(entries []timeservice.TimeEntry, now time.Time, loc *time.Location) []Session {
	if loc == nil {
		loc = time.Local
	}
	type keyed struct {
		at time.Time
		s  Session
	}
	rows := make([]keyed, 0, len(entries))
	for i := range entries {
		e := &entries[i]
		in, ok := attendance.ParseTimestamp(e.ClockIn, loc)
		if !ok {
			continue
		}
		s := Session{
			ID:      e.ID,
			ClockIn: in.In(loc).Format(time.RFC3339),
			Breaks:  len(e.Breaks),
			Elapsed: attendance.Reconcile(e, nil, now, loc),
		}
		if e.ClockOut != nil {
			if out, ok := attendance.ParseTimestamp(*e.ClockOut, loc); ok {
				s.ClockOut = out.In(loc).Format(time.RFC3339)
			}
		}
		rows = append(rows, keyed{at: in, s: s})
	}
	sort.SliceStable(rows, func(i, j int) bool { return rows[i].at.Before(rows[j].at) })

	out := make([]Session, len(rows))
	for i, r := range rows {
		out[i] = r.s
	}
	return out
}

func totals(sessions []Session) attendance.Elapsed {
	var t attendance.Elapsed
	for _, s := range sessions {
		t.Total += s.Elapsed.Total
		t.Work += s.Elapsed.Work
		t.Break += s.Elapsed.Break
	}
	return t
}
