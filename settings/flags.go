package settings

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"strings"
	"time"

	"github.com/eringen/panelengine/audit"
	"github.com/eringen/panelengine/database"
)

var ErrInvalidFlag = errors.New("settings: flag needs a key, a name and a percentage between 0 and 100")

// Flag is a feature flag with an optional percentage rollout.
type Flag struct {
	Key         string    `json:"key"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Enabled     bool      `json:"enabled"`
	Percentage  int       `json:"percentage"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// Bucket maps key and subject to a stable value in 0..99: the FNV-1a hash
// of key+subject, mod 100.
func Bucket(key, subject string) int {
	h := fnv.New32a()
	h.Write([]byte(key + subject))
	return int(h.Sum32() % 100)
}

// EnabledFor reports whether the flag is on for subject.
func (f Flag) EnabledFor(subject string) bool {
	if !f.Enabled || f.Percentage <= 0 {
		return false
	}
	if f.Percentage >= 100 {
		return true
	}
	return Bucket(f.Key, subject) < f.Percentage
}

// UpsertFlag creates or replaces a flag.
func (s *Store) UpsertFlag(ctx context.Context, f Flag, actor audit.Actor) (Flag, error) {
	f.Key = strings.TrimSpace(f.Key)
	f.Name = sanitize(strings.TrimSpace(f.Name)).(string)
	f.Description = sanitize(f.Description).(string)
	if f.Key == "" || f.Name == "" || f.Percentage < 0 || f.Percentage > 100 {
		return Flag{}, ErrInvalidFlag
	}
	f.UpdatedAt = s.now().UTC().Truncate(time.Second)
	_, err := s.db.ExecContext(ctx, `
INSERT INTO feature_flags (key, name, description, enabled, percentage, updated_at) VALUES (?, ?, ?, ?, ?, ?)
ON CONFLICT(key) DO UPDATE SET name = excluded.name, description = excluded.description,
    enabled = excluded.enabled, percentage = excluded.percentage, updated_at = excluded.updated_at`,
		f.Key, f.Name, f.Description, database.Bool(f.Enabled), f.Percentage, database.FormatTime(f.UpdatedAt))
	if err != nil {
		return Flag{}, fmt.Errorf("upsert flag: %w", err)
	}
	return f, s.record(ctx, actor, audit.FlagUpdate, f.Key, f)
}

// GetFlag returns one flag.
func (s *Store) GetFlag(ctx context.Context, key string) (Flag, error) {
	var f Flag
	var enabled int
	var updated string
	err := s.db.QueryRowContext(ctx, `SELECT key, name, description, enabled, percentage, updated_at FROM feature_flags WHERE key = ?`, key).
		Scan(&f.Key, &f.Name, &f.Description, &enabled, &f.Percentage, &updated)
	if err != nil {
		return Flag{}, database.NotFound(err, ErrNotFound)
	}
	f.Enabled = enabled == 1
	f.UpdatedAt = database.ParseTime(updated)
	return f, nil
}

// ListFlags returns every flag ordered by key.
func (s *Store) ListFlags(ctx context.Context) ([]Flag, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT key, name, description, enabled, percentage, updated_at FROM feature_flags ORDER BY key`)
	if err != nil {
		return nil, fmt.Errorf("list flags: %w", err)
	}
	defer rows.Close()
	out := []Flag{}
	for rows.Next() {
		var f Flag
		var enabled int
		var updated string
		if err := rows.Scan(&f.Key, &f.Name, &f.Description, &enabled, &f.Percentage, &updated); err != nil {
			return nil, err
		}
		f.Enabled = enabled == 1
		f.UpdatedAt = database.ParseTime(updated)
		out = append(out, f)
	}
	return out, rows.Err()
}

// ToggleFlag flips a flag's enabled state and returns the updated flag.
func (s *Store) ToggleFlag(ctx context.Context, key string, actor audit.Actor) (Flag, error) {
	res, err := s.db.ExecContext(ctx, `UPDATE feature_flags SET enabled = 1 - enabled, updated_at = ? WHERE key = ?`, database.FormatTime(s.now()), key)
	if err != nil {
		return Flag{}, fmt.Errorf("toggle flag: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return Flag{}, ErrNotFound
	}
	f, err := s.GetFlag(ctx, key)
	if err != nil {
		return Flag{}, err
	}
	return f, s.record(ctx, actor, audit.FlagUpdate, key, map[string]bool{"enabled": f.Enabled})
}

// DeleteFlag removes a flag.
func (s *Store) DeleteFlag(ctx context.Context, key string, actor audit.Actor) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM feature_flags WHERE key = ?`, key)
	if err != nil {
		return fmt.Errorf("delete flag: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return s.record(ctx, actor, audit.FlagUpdate, key, map[string]bool{"deleted": true})
}

// FlagEnabled reports whether key is on for subject. Unknown flags are off.
func (s *Store) FlagEnabled(ctx context.Context, key, subject string) bool {
	f, err := s.GetFlag(ctx, key)
	if err != nil {
		return false
	}
	return f.EnabledFor(subject)
}
