package export

import (
	"fmt"

	"github.com/xuri/excelize/v2"

	"github.com/sadopc/attendr/internal/attendance"
)

const (
	SessionsSheet = "Sessions"
	LogSheet      = "Log"
)

// ToXLSX writes a workbook with a Sessions sheet (one row per entry plus a
// totals row) and a Log sheet holding the clock log as displayed.
func ToXLSX(sessions []Session, logs []attendance.ClockLogEntry, path string) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", SessionsSheet); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}
	if _, err := f.NewSheet(LogSheet); err != nil {
		return fmt.Errorf("create log sheet: %w", err)
	}

	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("create header style: %w", err)
	}

	header := make([]any, len(sessionHeader))
	for i, h := range sessionHeader {
		header[i] = h
	}
	if err := writeRow(f, SessionsSheet, 1, header); err != nil {
		return err
	}
	for i, s := range sessions {
		row := []any{
			s.ID, s.ClockIn, s.ClockOut, s.Breaks,
			s.Elapsed.Total, s.Elapsed.Work, s.Elapsed.Break,
			attendance.FormatHMS(s.Elapsed.Work), attendance.FormatHMS(s.Elapsed.Break),
		}
		if err := writeRow(f, SessionsSheet, i+2, row); err != nil {
			return err
		}
	}
	t := totals(sessions)
	totalRow := len(sessions) + 2
	if err := writeRow(f, SessionsSheet, totalRow, []any{
		"Total", "", "", "",
		t.Total, t.Work, t.Break,
		attendance.FormatHMS(t.Work), attendance.FormatHMS(t.Break),
	}); err != nil {
		return err
	}
	if err := f.SetRowStyle(SessionsSheet, 1, 1, bold); err != nil {
		return fmt.Errorf("style header: %w", err)
	}
	if err := f.SetRowStyle(SessionsSheet, totalRow, totalRow, bold); err != nil {
		return fmt.Errorf("style totals: %w", err)
	}

	if err := writeRow(f, LogSheet, 1, []any{"Date", "Time", "Type", "Detail"}); err != nil {
		return err
	}
	for i, l := range logs {
		if err := writeRow(f, LogSheet, i+2, []any{l.Date, l.Time, string(l.Type), l.Detail}); err != nil {
			return err
		}
	}
	if err := f.SetRowStyle(LogSheet, 1, 1, bold); err != nil {
		return fmt.Errorf("style header: %w", err)
	}

	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("write xlsx file: %w", err)
	}
	return nil
}

func writeRow(f *excelize.File, sheet string, row int, values []any) error {
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return err
	}
	if err := f.SetSheetRow(sheet, cell, &values); err != nil {
		return fmt.Errorf("write %s row %d: %w", sheet, row, err)
	}
	return nil
}
