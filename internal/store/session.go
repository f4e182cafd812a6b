package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/sadopc/attendr/internal/session"
)

var ErrNoSession = errors.New("no active session")

// LoadSession returns the session record shared by every window, or
// ErrNoSession when nobody is signed in.
func (s *Store) LoadSession(ctx context.Context) (*session.Record, error) {
	var userJSON, tokenJSON string
	err := s.db.QueryRowContext(ctx, `SELECT user_json, token_json FROM session WHERE id = 1`).Scan(&userJSON, &tokenJSON)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNoSession
	}
	if err != nil {
		return nil, fmt.Errorf("load session: %w", err)
	}

	rec := &session.Record{}
	if err := json.Unmarshal([]byte(userJSON), &rec.User); err != nil {
		return nil, fmt.Errorf("decode session user: %w", err)
	}
	if err := json.Unmarshal([]byte(tokenJSON), &rec.Token); err != nil {
		return nil, fmt.Errorf("decode session token: %w", err)
	}
	return rec, nil
}

// SaveSession creates or replaces the session record. Token refreshes go
// through here too.
func (s *Store) SaveSession(ctx context.Context, rec session.Record) error {
	userJSON, err := json.Marshal(rec.User)
	if err != nil {
		return fmt.Errorf("encode session user: %w", err)
	}
	tokenJSON, err := json.Marshal(rec.Token)
	if err != nil {
		return fmt.Errorf("encode session token: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO session (id, user_json, token_json, updated_at)
		 VALUES (1, ?, ?, strftime('%Y-%m-%dT%H:%M:%SZ','now'))
		 ON CONFLICT(id) DO UPDATE SET user_json = excluded.user_json,
		   token_json = excluded.token_json, updated_at = excluded.updated_at`,
		string(userJSON), string(tokenJSON),
	)
	if err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	return nil
}

func (s *Store) ClearSession(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM session`); err != nil {
		return fmt.Errorf("clear session: %w", err)
	}
	return nil
}
