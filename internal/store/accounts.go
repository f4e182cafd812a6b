package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"golang.org/x/crypto/bcrypt"
)

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrUnknownToken       = errors.New("unknown or expired token")
)

// Authenticate checks username/password. Unknown usernames are enrolled
// on first sign-in with the supplied password (development service only).
func (s *Store) Authenticate(ctx context.Context, username, password string) (*Account, error) {
	a, err := s.accountBy(ctx, `username = ?`, username)
	if errors.Is(err, sql.ErrNoRows) {
		return s.createAccount(ctx, username, password)
	}
	if err != nil {
		return nil, err
	}
	if bcrypt.CompareHashAndPassword([]byte(a.PasswordHash), []byte(password)) != nil {
		return nil, ErrInvalidCredentials
	}
	return a, nil
}

func (s *Store) createAccount(ctx context.Context, username, password string) (*Account, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO accounts (username, name, email, password_hash) VALUES (?, ?, ?, ?)`,
		username, username, username+"@example.com", string(hash),
	)
	if err != nil {
		return nil, fmt.Errorf("create account: %w", err)
	}
	id, _ := res.LastInsertId()
	return s.AccountByID(ctx, id)
}

func (s *Store) AccountByID(ctx context.Context, id int64) (*Account, error) {
	a, err := s.accountBy(ctx, `id = ?`, id)
	if err != nil {
		return nil, fmt.Errorf("get account %d: %w", id, err)
	}
	return a, nil
}

func (s *Store) accountBy(ctx context.Context, where string, arg any) (*Account, error) {
	a := &Account{}
	var createdAt string
	err := s.db.QueryRowContext(ctx,
		`SELECT id, username, name, email, role, password_hash, created_at FROM accounts WHERE `+where, arg,
	).Scan(&a.ID, &a.Username, &a.Name, &a.Email, &a.Role, &a.PasswordHash, &createdAt)
	if err != nil {
		return nil, err
	}
	a.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	return a, nil
}

type TokenKind string

const (
	TokenAccess  TokenKind = "access"
	TokenRefresh TokenKind = "refresh"
)

// SaveToken records an issued token.
func (s *Store) SaveToken(ctx context.Context, token string, kind TokenKind, accountID int64, expiresAt time.Time) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO tokens (token, kind, account_id, expires_at) VALUES (?, ?, ?, ?)`,
		token, string(kind), accountID, formatTS(expiresAt),
	)
	if err != nil {
		return fmt.Errorf("save token: %w", err)
	}
	return nil
}

// AccountForToken resolves a token of the given kind that has not expired
// at now.
func (s *Store) AccountForToken(ctx context.Context, token string, kind TokenKind, now time.Time) (*Account, error) {
	var accountID int64
	var expires string
	err := s.db.QueryRowContext(ctx,
		`SELECT account_id, expires_at FROM tokens WHERE token = ? AND kind = ?`, token, string(kind),
	).Scan(&accountID, &expires)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrUnknownToken
	}
	if err != nil {
		return nil, fmt.Errorf("lookup token: %w", err)
	}
	exp, err := time.Parse(time.RFC3339, expires)
	if err != nil || !now.Before(exp) {
		return nil, ErrUnknownToken
	}
	return s.AccountByID(ctx, accountID)
}

func (s *Store) RevokeToken(ctx context.Context, token string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM tokens WHERE token = ?`, token); err != nil {
		return fmt.Errorf("revoke token: %w", err)
	}
	return nil
}
