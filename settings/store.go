package settings

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"time"

	"github.com/eringen/panelengine/audit"
	"github.com/eringen/panelengine/database"
)

// Store persists settings, flags, alerts and dashboard preferences. Every
// settings mutation is written to the audit log.
type Store struct {
	db    *sql.DB
	audit audit.Recorder
	now   func() time.Time
}

// NewStore wraps db and creates the settings tables. rec may be nil.
func NewStore(db *sql.DB, rec audit.Recorder) (*Store, error) {
	s := &Store{db: db, audit: rec, now: time.Now}
	if err := s.ensureSchema(); err != nil {
		return nil, fmt.Errorf("settings schema: %w", err)
	}
	return s, nil
}

// SetClock overrides the time source, for tests.
func (s *Store) SetClock(now func() time.Time) { s.now = now }

func (s *Store) ensureSchema() error {
	_, err := s.db.Exec(`
CREATE TABLE IF NOT EXISTS system_settings (
    key TEXT PRIMARY KEY,
    section TEXT NOT NULL,
    value TEXT NOT NULL,
    updated_at TEXT NOT NULL,
    updated_by TEXT NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS idx_system_settings_section ON system_settings(section);

CREATE TABLE IF NOT EXISTS feature_flags (
    key TEXT PRIMARY KEY,
    name TEXT NOT NULL,
    description TEXT NOT NULL DEFAULT '',
    enabled INTEGER NOT NULL DEFAULT 0,
    percentage INTEGER NOT NULL DEFAULT 100,
    updated_at TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS alert_thresholds (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    metric TEXT NOT NULL,
    operator TEXT NOT NULL,
    value REAL NOT NULL,
    severity TEXT NOT NULL,
    enabled INTEGER NOT NULL DEFAULT 1,
    created_at TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS dashboard_preferences (
    admin TEXT PRIMARY KEY,
    value TEXT NOT NULL,
    updated_at TEXT NOT NULL
);
`)
	return err
}

func (s *Store) record(ctx context.Context, actor audit.Actor, action, target string, details any) error {
	if s.audit == nil {
		return nil
	}
	return s.audit.Record(ctx, actor, action, target, details)
}

// Get returns a single setting.
func (s *Store) Get(ctx context.Context, key string) (Setting, error) {
	var st Setting
	var raw, updated string
	err := s.db.QueryRowContext(ctx, `SELECT key, section, value, updated_at, updated_by FROM system_settings WHERE key = ?`, key).
		Scan(&st.Key, &st.Section, &raw, &updated, &st.UpdatedBy)
	if err != nil {
		return Setting{}, database.NotFound(err, ErrNotFound)
	}
	_, st.Name, _ = SplitKey(st.Key)
	st.Value = decode(raw)
	st.UpdatedAt = database.ParseTime(updated)
	return st, nil
}

func (s *Store) query(ctx context.Context, where string, args ...any) ([]Setting, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT key, section, value, updated_at, updated_by FROM system_settings `+where+` ORDER BY key`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Setting
	for rows.Next() {
		var st Setting
		var raw, updated string
		if err := rows.Scan(&st.Key, &st.Section, &raw, &updated, &st.UpdatedBy); err != nil {
			return nil, err
		}
		_, st.Name, _ = SplitKey(st.Key)
		st.Value = decode(raw)
		st.UpdatedAt = database.ParseTime(updated)
		out = append(out, st)
	}
	return out, rows.Err()
}

// GetSection returns the values of one section keyed by name without the
// section prefix.
func (s *Store) GetSection(ctx context.Context, section string) (map[string]any, error) {
	list, err := s.query(ctx, `WHERE section = ?`, section)
	if err != nil {
		return nil, fmt.Errorf("get section %s: %w", section, err)
	}
	out := make(map[string]any, len(list))
	for _, st := range list {
		out[st.Name] = st.Value
	}
	return out, nil
}

// All returns every setting grouped by section.
func (s *Store) All(ctx context.Context) (map[string][]Setting, error) {
	list, err := s.query(ctx, ``)
	if err != nil {
		return nil, fmt.Errorf("list settings: %w", err)
	}
	out := make(map[string][]Setting)
	for _, st := range list {
		out[st.Section] = append(out[st.Section], st)
	}
	return out, nil
}

// Sections returns the section names in sorted order.
func Sections(all map[string][]Setting) []string {
	names := make([]string, 0, len(all))
	for k := range all {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func (s *Store) upsert(ctx context.Context, ex execer, key string, value any, by string) error {
	section, _, err := SplitKey(key)
	if err != nil {
		return err
	}
	raw, err := encode(value)
	if err != nil {
		return err
	}
	_, err = ex.ExecContext(ctx, `
INSERT INTO system_settings (key, section, value, updated_at, updated_by) VALUES (?, ?, ?, ?, ?)
ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at, updated_by = excluded.updated_by`,
		key, section, raw, database.FormatTime(s.now()), by)
	if err != nil {
		return fmt.Errorf("upsert setting %s: %w", key, err)
	}
	return nil
}

// Set stores one value.
func (s *Store) Set(ctx context.Context, key string, value any, actor audit.Actor) error {
	if err := s.upsert(ctx, s.db, key, value, actor.Name); err != nil {
		return err
	}
	return s.record(ctx, actor, audit.SettingsUpdate, key, map[string]any{"value": sanitize(value)})
}

// SetMany stores several values atomically.
func (s *Store) SetMany(ctx context.Context, values map[string]any, actor audit.Actor) error {
	keys := make([]string, 0, len(values))
	for k := range values {
		if !ValidKey(k) {
			return fmt.Errorf("%w: %q", ErrInvalidKey, k)
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	for _, k := range keys {
		if err := s.upsert(ctx, tx, k, values[k], actor.Name); err != nil {
			return err
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit settings: %w", err)
	}
	return s.record(ctx, actor, audit.SettingsUpdate, "batch", map[string]any{"keys": keys})
}

// Delete removes a key.
func (s *Store) Delete(ctx context.Context, key string, actor audit.Actor) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM system_settings WHERE key = ?`, key)
	if err != nil {
		return fmt.Errorf("delete setting: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return s.record(ctx, actor, audit.SettingsDelete, key, nil)
}

// InitDefaults inserts every default that is not already set and returns
// the number created.
func (s *Store) InitDefaults(ctx context.Context, actor audit.Actor) (int, error) {
	keys := make([]string, 0, len(Defaults))
	for k := range Defaults {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()
	created := 0
	now := database.FormatTime(s.now())
	for _, k := range keys {
		section, _, err := SplitKey(k)
		if err != nil {
			return 0, err
		}
		raw, err := encode(Defaults[k])
		if err != nil {
			return 0, err
		}
		res, err := tx.ExecContext(ctx, `INSERT OR IGNORE INTO system_settings (key, section, value, updated_at, updated_by) VALUES (?, ?, ?, ?, ?)`,
			k, section, raw, now, actor.Name)
		if err != nil {
			return 0, fmt.Errorf("seed %s: %w", k, err)
		}
		if n, _ := res.RowsAffected(); n > 0 {
			created++
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, err
	}
	if created > 0 {
		if err := s.record(ctx, actor, audit.SettingsInit, "defaults", map[string]int{"created": created}); err != nil {
			return created, err
		}
	}
	return created, nil
}

// Value returns the stored value for key, or fallback when unset.
func (s *Store) Value(ctx context.Context, key string, fallback any) any {
	st, err := s.Get(ctx, key)
	if err != nil {
		return fallback
	}
	return st.Value
}

// Bool reads a boolean setting.
func (s *Store) Bool(ctx context.Context, key string, fallback bool) bool {
	if b, ok := s.Value(ctx, key, fallback).(bool); ok {
		return b
	}
	return fallback
}

// Int reads an integer setting. JSON numbers decode as float64.
func (s *Store) Int(ctx context.Context, key string, fallback int) int {
	switch v := s.Value(ctx, key, fallback).(type) {
	case float64:
		return int(v)
	case int:
		return v
	default:
		return fallback
	}
}

// String reads a string setting.
func (s *Store) String(ctx context.Context, key, fallback string) string {
	if v, ok := s.Value(ctx, key, fallback).(string); ok {
		return v
	}
	return fallback
}
