package export

import (
	"encoding/csv"
	"fmt"
	"os"
	"strconv"

	"github.com/sadopc/attendr/internal/attendance"
)

var sessionHeader = []string{"ID", "Clock In", "Clock Out", "Breaks", "Total (s)", "Work (s)", "Break (s)", "Work", "Break"}

func sessionRow(s Session) []string {
	return []string{
		strconv.FormatInt(s.ID, 10),
		s.ClockIn,
		s.ClockOut,
		strconv.Itoa(s.Breaks),
		strconv.FormatInt(s.Elapsed.Total, 10),
		strconv.FormatInt(s.Elapsed.Work, 10),
		strconv.FormatInt(s.Elapsed.Break, 10),
		attendance.FormatHMS(s.Elapsed.Work),
		attendance.FormatHMS(s.Elapsed.Break),
	}
}

func ToCSV(sessions []Session, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create csv file: %w", err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(sessionHeader); err != nil {
		return err
	}
	for _, s := range sessions {
		if err := w.Write(sessionRow(s)); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}
