package store

import (
	"fmt"
	"strconv"
	"time"
)

// Setting keys editable from the TUI. Values are stored as whole seconds.
const (
	SettingIdleTimeout      = "idle_timeout"
	SettingIdlePromptBefore = "idle_prompt_before"
	SettingPollInterval     = "poll_interval"
)

func (s *Store) GetSetting(key string) (string, error) {
	var value string
	err := s.db.QueryRow(`SELECT value FROM settings WHERE key = ?`, key).Scan(&value)
	if err != nil {
		return "", fmt.Errorf("get setting %q: %w", key, err)
	}
	return value, nil
}

func (s *Store) SetSetting(key, value string) error {
	_, err := s.db.Exec(
		`INSERT INTO settings (key, value) VALUES (?, ?) ON CONFLICT(key) DO UPDATE SET value = excluded.value`,
		key, value,
	)
	return err
}

// SettingDuration reads a seconds-valued setting. Missing or malformed
// values yield fallback.
func (s *Store) SettingDuration(key string, fallback time.Duration) time.Duration {
	v, err := s.GetSetting(key)
	if err != nil {
		return fallback
	}
	secs, err := strconv.Atoi(v)
	if err != nil || secs <= 0 {
		return fallback
	}
	return time.Duration(secs) * time.Second
}

func (s *Store) SetSettingDuration(key string, d time.Duration) error {
	return s.SetSetting(key, strconv.Itoa(int(d/time.Second)))
}

func (s *Store) GetAllSettings() ([]Setting, error) {
	rows, err := s.db.Query(`SELECT key, value FROM settings ORDER BY key`)
	if err != nil {
		return nil, fmt.Errorf("list settings: %w", err)
	}
	defer rows.Close()

	var settings []Setting
	for rows.Next() {
		var s Setting
		if err := rows.Scan(&s.Key, &s.Value); err != nil {
			return nil, err
		}
		settings = append(settings, s)
	}
	return settings, rows.Err()
}
