package settings

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/eringen/panelengine/database"
)

// Themes accepted by the dashboard.
const (
	ThemeLight = "light"
	ThemeDark  = "dark"
	ThemeAuto  = "auto"
)

var ErrInvalidPreferences = errors.New("settings: invalid dashboard preferences")

// Preferences is an admin's dashboard layout.
type Preferences struct {
	Theme           string   `json:"theme"`
	RefreshInterval int      `json:"refreshInterval"`
	Widgets         []string `json:"widgets"`
}

// DefaultWidgets is the widget list for admins without saved preferences.
var DefaultWidgets = []string{"users", "sessions", "security", "revenue", "wizard"}

// DefaultPreferences returns the layout used before an admin saves one.
func DefaultPreferences() Preferences {
	return Preferences{Theme: ThemeAuto, RefreshInterval: 60, Widgets: append([]string(nil), DefaultWidgets...)}
}

// Validate checks theme and refresh bounds.
func (p Preferences) Validate() error {
	switch p.Theme {
	case ThemeLight, ThemeDark, ThemeAuto:
	default:
		return fmt.Errorf("%w: theme %q", ErrInvalidPreferences, p.Theme)
	}
	if p.RefreshInterval < 10 || p.RefreshInterval > 3600 {
		return fmt.Errorf("%w: refresh interval %d", ErrInvalidPreferences, p.RefreshInterval)
	}
	return nil
}

// Preferences returns the saved layout for admin, or the defaults.
func (s *Store) Preferences(ctx context.Context, admin string) (Preferences, error) {
	var raw string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM dashboard_preferences WHERE admin = ?`, admin).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return DefaultPreferences(), nil
	}
	if err != nil {
		return Preferences{}, fmt.Errorf("load preferences: %w", err)
	}
	p := DefaultPreferences()
	if err := json.Unmarshal([]byte(raw), &p); err != nil {
		return DefaultPreferences(), nil
	}
	return p, nil
}

// SavePreferences validates and stores an admin's layout.
func (s *Store) SavePreferences(ctx context.Context, admin string, p Preferences) error {
	if err := p.Validate(); err != nil {
		return err
	}
	b, err := json.Marshal(p)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
INSERT INTO dashboard_preferences (admin, value, updated_at) VALUES (?, ?, ?)
ON CONFLICT(admin) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		admin, string(b), database.FormatTime(s.now()))
	if err != nil {
		return fmt.Errorf("save preferences: %w", err)
	}
	return nil
}
