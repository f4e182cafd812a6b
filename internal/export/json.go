package export

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/sadopc/attendr/internal/attendance"
)

type jsonExport struct {
	ExportedAt string                     `json:"exported_at"`
	Count      int                        `json:"count"`
	Totals     attendance.Elapsed         `json:"totals"`
	Sessions   []jsonSession              `json:"sessions"`
	Log        []attendance.ClockLogEntry `json:"log"`
}

type jsonSession struct {
	ID        int64  `json:"id"`
	ClockIn   string `json:"clock_in"`
	ClockOut  string `json:"clock_out,omitempty"`
	Breaks    int    `json:"breaks"`
	TotalSec  int64  `json:"total_seconds"`
	WorkSec   int64  `json:"work_seconds"`
	BreakSec  int64  `json:"break_seconds"`
	Work      string `json:"work"`
	BreakTime string `json:"break"`
}

// ToJSON writes sessions and the clock log in one document.
func ToJSON(sessions []Session, logs []attendance.ClockLogEntry, path string) error {
	export := jsonExport{
		ExportedAt: time.Now().UTC().Format(time.RFC3339),
		Count:      len(sessions),
		Totals:     totals(sessions),
		Sessions:   make([]jsonSession, 0, len(sessions)),
		Log:        logs,
	}
	if export.Log == nil {
		export.Log = []attendance.ClockLogEntry{}
	}

	for _, s := range sessions {
		export.Sessions = append(export.Sessions, jsonSession{
			ID:        s.ID,
			ClockIn:   s.ClockIn,
			ClockOut:  s.ClockOut,
			Breaks:    s.Breaks,
			TotalSec:  s.Elapsed.Total,
			WorkSec:   s.Elapsed.Work,
			BreakSec:  s.Elapsed.Break,
			Work:      attendance.FormatHMS(s.Elapsed.Work),
			BreakTime: attendance.FormatHMS(s.Elapsed.Break),
		})
	}

	data, err := json.MarshalIndent(export, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal json: %w", err)
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write json file: %w", err)
	}
	return nil
}
