package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

var (
	ErrAlreadyClockedIn = errors.New("already clocked in")
	ErrNotClockedIn     = errors.New("not clocked in")
	ErrAlreadyOnBreak   = errors.New("already on break")
	ErrNotOnBreak       = errors.New("not on break")
)

func formatTS(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

type queryer interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// ClockIn opens a new entry for accountID. At most one entry per account
// may be open.
func (s *Store) ClockIn(ctx context.Context, accountID int64, workDate string, at time.Time) (*TimeEntry, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("clock in: %w", err)
	}
	defer tx.Rollback()

	open, err := openEntry(ctx, tx, accountID)
	if err != nil {
		return nil, err
	}
	if open != nil {
		return nil, ErrAlreadyClockedIn
	}

	res, err := tx.ExecContext(ctx,
		`INSERT INTO time_entries (account_id, work_date, clock_in) VALUES (?, ?, ?)`,
		accountID, workDate, formatTS(at),
	)
	if err != nil {
		return nil, fmt.Errorf("clock in: %w", err)
	}
	id, _ := res.LastInsertId()
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("clock in: %w", err)
	}
	return s.GetEntry(ctx, id)
}

// ClockOut closes the open entry, ending an open break at the same instant.
func (s *Store) ClockOut(ctx context.Context, accountID int64, at time.Time) (*TimeEntry, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("clock out: %w", err)
	}
	defer tx.Rollback()

	open, err := openEntry(ctx, tx, accountID)
	if err != nil {
		return nil, err
	}
	if open == nil {
		return nil, ErrNotClockedIn
	}

	ts := formatTS(at)
	if _, err := tx.ExecContext(ctx,
		`UPDATE breaks SET break_end = ? WHERE entry_id = ? AND break_end IS NULL`, ts, open.ID,
	); err != nil {
		return nil, fmt.Errorf("close break: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		`UPDATE time_entries SET clock_out = ? WHERE id = ?`, ts, open.ID,
	); err != nil {
		return nil, fmt.Errorf("clock out: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("clock out: %w", err)
	}
	return s.GetEntry(ctx, open.ID)
}

// StartBreak opens a break on the open entry.
func (s *Store) StartBreak(ctx context.Context, accountID int64, at time.Time) (*Break, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("start break: %w", err)
	}
	defer tx.Rollback()

	open, err := openEntry(ctx, tx, accountID)
	if err != nil {
		return nil, err
	}
	if open == nil {
		return nil, ErrNotClockedIn
	}
	if open.OpenBreak() != nil {
		return nil, ErrAlreadyOnBreak
	}

	res, err := tx.ExecContext(ctx,
		`INSERT INTO breaks (entry_id, break_start) VALUES (?, ?)`, open.ID, formatTS(at),
	)
	if err != nil {
		return nil, fmt.Errorf("start break: %w", err)
	}
	id, _ := res.LastInsertId()
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("start break: %w", err)
	}
	return &Break{ID: id, EntryID: open.ID, BreakStart: formatTS(at)}, nil
}

// EndBreak closes the open break of the open entry.
func (s *Store) EndBreak(ctx context.Context, accountID int64, at time.Time) (*Break, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("end break: %w", err)
	}
	defer tx.Rollback()

	open, err := openEntry(ctx, tx, accountID)
	if err != nil {
		return nil, err
	}
	if open == nil {
		return nil, ErrNotClockedIn
	}
	b := open.OpenBreak()
	if b == nil {
		return nil, ErrNotOnBreak
	}

	end := formatTS(at)
	if _, err := tx.ExecContext(ctx, `UPDATE breaks SET break_end = ? WHERE id = ?`, end, b.ID); err != nil {
		return nil, fmt.Errorf("end break: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("end break: %w", err)
	}
	b.BreakEnd = &end
	return b, nil
}

// OpenEntry returns the account's open entry, or nil when clocked out.
func (s *Store) OpenEntry(ctx context.Context, accountID int64) (*TimeEntry, error) {
	return openEntry(ctx, s.db, accountID)
}

func openEntry(ctx context.Context, q queryer, accountID int64) (*TimeEntry, error) {
	e := &TimeEntry{}
	var clockOut sql.NullString
	err := q.QueryRowContext(ctx,
		`SELECT id, account_id, work_date, clock_in, clock_out
		 FROM time_entries WHERE account_id = ? AND clock_out IS NULL ORDER BY id DESC LIMIT 1`, accountID,
	).Scan(&e.ID, &e.AccountID, &e.WorkDate, &e.ClockIn, &clockOut)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get open entry: %w", err)
	}
	if e.Breaks, err = listBreaks(ctx, q, e.ID); err != nil {
		return nil, err
	}
	return e, nil
}

func (s *Store) GetEntry(ctx context.Context, id int64) (*TimeEntry, error) {
	e := &TimeEntry{}
	var clockOut sql.NullString
	err := s.db.QueryRowContext(ctx,
		`SELECT id, account_id, work_date, clock_in, clock_out FROM time_entries WHERE id = ?`, id,
	).Scan(&e.ID, &e.AccountID, &e.WorkDate, &e.ClockIn, &clockOut)
	if err != nil {
		return nil, fmt.Errorf("get entry %d: %w", id, err)
	}
	if clockOut.Valid {
		e.ClockOut = &clockOut.String
	}
	if e.Breaks, err = listBreaks(ctx, s.db, e.ID); err != nil {
		return nil, err
	}
	return e, nil
}

// ListEntries returns the account's entries for one work date, oldest first.
func (s *Store) ListEntries(ctx context.Context, accountID int64, workDate string) ([]TimeEntry, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, account_id, work_date, clock_in, clock_out
		 FROM time_entries WHERE account_id = ? AND work_date = ? ORDER BY clock_in`,
		accountID, workDate,
	)
	if err != nil {
		return nil, fmt.Errorf("list entries: %w", err)
	}

	var entries []TimeEntry
	for rows.Next() {
		var e TimeEntry
		var clockOut sql.NullString
		if err := rows.Scan(&e.ID, &e.AccountID, &e.WorkDate, &e.ClockIn, &clockOut); err != nil {
			rows.Close()
			return nil, err
		}
		if clockOut.Valid {
			e.ClockOut = &clockOut.String
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, err
	}
	rows.Close()

	// Breaks are loaded after the cursor is closed: the pool holds one
	// connection.
	for i := range entries {
		if entries[i].Breaks, err = listBreaks(ctx, s.db, entries[i].ID); err != nil {
			return nil, err
		}
	}
	return entries, nil
}

// DeleteEntry removes an entry and its breaks (administrative correction).
func (s *Store) DeleteEntry(ctx context.Context, id int64) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM time_entries WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete entry %d: %w", id, err)
	}
	return nil
}

func listBreaks(ctx context.Context, q queryer, entryID int64) ([]Break, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT id, entry_id, break_start, break_end FROM breaks WHERE entry_id = ? ORDER BY id`, entryID,
	)
	if err != nil {
		return nil, fmt.Errorf("list breaks: %w", err)
	}
	defer rows.Close()

	var breaks []Break
	for rows.Next() {
		var b Break
		var end sql.NullString
		if err := rows.Scan(&b.ID, &b.EntryID, &b.BreakStart, &end); err != nil {
			return nil, err
		}
		if end.Valid {
			b.BreakEnd = &end.String
		}
		breaks = append(breaks, b)
	}
	return breaks, rows.Err()
}

// OpenBreak returns the entry's open break, if any.
func (e *TimeEntry) OpenBreak() *Break {
	for i := range e.Breaks {
		if e.Breaks[i].BreakEnd == nil {
			return &e.Breaks[i]
		}
	}
	return nil
}
