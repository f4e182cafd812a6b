package store

import "time"

// Account is an employee known to the development time service.
type Account struct {
	ID           int64
	Username     string
	Name         string
	Email        string
	Role         string
	PasswordHash string
	CreatedAt    time.Time
}

// TimeEntry is one clock-in/out session as persisted by the development
// time service. Timestamps are stored as RFC3339 strings, exactly as they
// travel on the wire.
type TimeEntry struct {
	ID        int64
	AccountID int64
	WorkDate  string
	ClockIn   string
	ClockOut  *string
	Breaks    []Break
}

// Break is a break interval inside a TimeEntry.
type Break struct {
	ID         int64
	EntryID    int64
	BreakStart string
	BreakEnd   *string
}

type Setting struct {
	Key   string
	Value string
}
