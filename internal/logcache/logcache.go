// Package logcache persists the synthesized clock log in the local store so
// it survives restarts and is shared by every window on the machine.
package logcache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/sadopc/attendr/internal/attendance"
	"github.com/sadopc/attendr/internal/store"
)

// Key is the fixed kv key holding the serialized log.
const Key = "attendance.clock_logs"

type Cache struct {
	store *store.Store
	log   *zap.Logger
}

func New(s *store.Store, log *zap.Logger) *Cache {
	if log == nil {
		log = zap.NewNop()
	}
	return &Cache{store: s, log: log}
}

// Load returns the cached log. A missing or unreadable value is an empty
// log, not an error.
func (c *Cache) Load(ctx context.Context) ([]attendance.ClockLogEntry, error) {
	raw, ok, err := c.store.GetValue(ctx, Key)
	if err != nil {
		return nil, fmt.Errorf("load clock log: %w", err)
	}
	if !ok || raw == "" {
		return []attendance.ClockLogEntry{}, nil
	}
	var logs []attendance.ClockLogEntry
	if err := json.Unmarshal([]byte(raw), &logs); err != nil {
		c.log.Warn("discarding unreadable clock log cache", zap.Error(err))
		return []attendance.ClockLogEntry{}, nil
	}
	if logs == nil {
		logs = []attendance.ClockLogEntry{}
	}
	return logs, nil
}

func (c *Cache) Save(ctx context.Context, logs []attendance.ClockLogEntry) error {
	if logs == nil {
		logs = []attendance.ClockLogEntry{}
	}
	data, err := json.Marshal(logs)
	if err != nil {
		return fmt.Errorf("encode clock log: %w", err)
	}
	if err := c.store.SetValue(ctx, Key, string(data)); err != nil {
		return fmt.Errorf("save clock log: %w", err)
	}
	return nil
}

// Clear stores an empty list so other windows observe the change.
func (c *Cache) Clear(ctx context.Context) error {
	if err := c.store.SetValue(ctx, Key, "[]"); err != nil {
		return fmt.Errorf("clear clock log: %w", err)
	}
	return nil
}

// Watch calls onChange whenever another connection commits to the store,
// checking every interval until ctx is done. Writes made through this
// process's own store do not trigger it.
func (c *Cache) Watch(ctx context.Context, interval time.Duration, onChange func()) {
	last, err := c.store.DataVersion(ctx)
	if err != nil {
		c.log.Warn("clock log watch disabled", zap.Error(err))
		return
	}
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			v, err := c.store.DataVersion(ctx)
			if err != nil {
				c.log.Debug("reading data_version", zap.Error(err))
				continue
			}
			if v != last {
				last = v
				onChange()
			}
		}
	}
}
