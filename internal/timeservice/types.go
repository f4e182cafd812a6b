// Package timeservice is the client for the HR backend's time-entry service.
// The service owns every TimeEntry; attendr only reads status and requests
// mutations.
package timeservice

import (
	"errors"
	"fmt"
)

// BreakInterval belongs to exactly one TimeEntry. A nil BreakEnd marks an
// open break.
type BreakInterval struct {
	ID         int64   `json:"id,omitempty"`
	BreakStart string  `json:"breakStart"`
	BreakEnd   *string `json:"breakEnd,omitempty"`
}

// TimeEntry is one clock-in/out session. A nil ClockOut marks an open
// entry. Timestamps are kept as the server sent them; callers parse them
// and skip the ones that do not parse.
type TimeEntry struct {
	ID       int64           `json:"id"`
	ClockIn  string          `json:"clockIn"`
	ClockOut *string         `json:"clockOut,omitempty"`
	Breaks   []BreakInterval `json:"breaks"`
}

// Status is the authoritative attendance state for one work date.
type Status struct {
	IsClockedIn  bool           `json:"isClockedIn"`
	IsOnBreak    bool           `json:"isOnBreak"`
	ActiveEntry  *TimeEntry     `json:"activeEntry"`
	ActiveBreak  *BreakInterval `json:"activeBreak"`
	TodayEntries []TimeEntry    `json:"todayEntries"`
}

type ActionType string

const (
	ActionClockIn  ActionType = "clockin"
	ActionClockOut ActionType = "clockout"
	ActionBreakIn  ActionType = "breakin"
	ActionBreakOut ActionType = "breakout"
)

// ActionRequest asks the service to mutate the caller's attendance.
// WorkDate is the caller's local calendar date (clock-in only) so the
// server never has to guess the employee's timezone.
type ActionRequest struct {
	Type     ActionType `json:"type" validate:"required,oneof=clockin clockout breakin breakout"`
	WorkDate string     `json:"workDate,omitempty" validate:"omitempty,datetime=2006-01-02"`
}

// ActionResult carries the record the service updated.
type ActionResult struct {
	Entry *TimeEntry     `json:"entry,omitempty"`
	Break *BreakInterval `json:"break,omitempty"`
	Error string         `json:"error,omitempty"`
}

// ErrUnauthorized is returned when the service rejects the bearer token.
var ErrUnauthorized = errors.New("unauthorized")

// APIError is a non-successful response from the service.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("time service error %d", e.Status)
	}
	return e.Message
}
