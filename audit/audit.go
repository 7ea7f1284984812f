// Package audit keeps the admin action log: who changed what, from where.
package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/eringen/panelengine/database"
	"github.com/eringen/panelengine/paging"
)

// Well-known admin actions.
const (
	SettingsUpdate = "SETTINGS_UPDATE"
	SettingsDelete = "SETTINGS_DELETE"
	SettingsInit   = "SETTINGS_INIT"
	FlagUpdate     = "FLAG_UPDATE"
	AlertUpdate    = "ALERT_UPDATE"
	UserStatus     = "USER_STATUS"
	UserTrust      = "USER_TRUST"
	UserCreate     = "USER_CREATE"
	OrgCreate      = "ORG_CREATE"
	OrgStatus      = "ORG_STATUS"
	OrgDelete      = "ORG_DELETE"
	MemberChange   = "MEMBER_CHANGE"
	InvoiceStatus  = "INVOICE_STATUS"
	InvoiceCreate  = "INVOICE_CREATE"
	Transaction    = "TRANSACTION"
	ProductChange  = "PRODUCT_CHANGE"
	PostStatus     = "POST_STATUS"
	MediaChange    = "MEDIA_CHANGE"
	AdminLogin     = "ADMIN_LOGIN"
)

// Actor identifies who performed an action.
type Actor struct {
	Name string `json:"name"`
	IP   string `json:"ip"`
}

// System is the actor used for CLI and scheduled changes.
var System = Actor{Name: "system"}

// Entry is one admin action.
type Entry struct {
	ID        int64           `json:"id"`
	Action    string          `json:"action"`
	Target    string          `json:"target"`
	Details   json.RawMessage `json:"details,omitempty"`
	Actor     Actor           `json:"actor"`
	CreatedAt time.Time       `json:"createdAt"`
}

// Recorder writes admin actions.
type Recorder interface {
	Record(ctx context.Context, actor Actor, action, target string, details any) error
}

// Log is the SQLite-backed admin action log.
type Log struct {
	db  *sql.DB
	now func() time.Time
}

// NewLog wraps db and creates the admin_actions table.
func NewLog(db *sql.DB) (*Log, error) {
	l := &Log{db: db, now: time.Now}
	_, err := db.Exec(`
CREATE TABLE IF NOT EXISTS admin_actions (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    action TEXT NOT NULL,
    target TEXT NOT NULL,
    details TEXT NOT NULL DEFAULT '',
    actor TEXT NOT NULL,
    ip TEXT NOT NULL DEFAULT '',
    created_at TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_admin_actions_created ON admin_actions(created_at);
`)
	if err != nil {
		return nil, fmt.Errorf("audit schema: %w", err)
	}
	return l, nil
}

// Record appends an entry. details is stored as JSON when non-nil.
func (l *Log) Record(ctx context.Context, actor Actor, action, target string, details any) error {
	var raw string
	if details != nil {
		b, err := json.Marshal(details)
		if err != nil {
			return fmt.Errorf("encode audit details: %w", err)
		}
		raw = string(b)
	}
	_, err := l.db.ExecContext(ctx, `INSERT INTO admin_actions (action, target, details, actor, ip, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
		action, target, raw, actor.Name, actor.IP, database.FormatTime(l.now()))
	if err != nil {
		return fmt.Errorf("record admin action: %w", err)
	}
	return nil
}

// List returns a page of entries, newest first. An empty action matches all.
func (l *Log) List(ctx context.Context, action string, p paging.Page) ([]Entry, paging.Page, error) {
	where := "1=1"
	var args []any
	if action != "" {
		where = "action = ?"
		args = append(args, action)
	}
	var total int
	if err := l.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM admin_actions WHERE `+where, args...).Scan(&total); err != nil {
		return nil, p, fmt.Errorf("count admin actions: %w", err)
	}
	p = p.WithTotal(total)
	rows, err := l.db.QueryContext(ctx, `SELECT id, action, target, details, actor, ip, created_at FROM admin_actions WHERE `+where+` ORDER BY id DESC LIMIT ? OFFSET ?`,
		append(args, p.Size, p.Offset())...)
	if err != nil {
		return nil, p, fmt.Errorf("list admin actions: %w", err)
	}
	defer rows.Close()
	out := []Entry{}
	for rows.Next() {
		var e Entry
		var details, created string
		if err := rows.Scan(&e.ID, &e.Action, &e.Target, &details, &e.Actor.Name, &e.Actor.IP, &created); err != nil {
			return nil, p, err
		}
		if details != "" {
			e.Details = json.RawMessage(details)
		}
		e.CreatedAt = database.ParseTime(created)
		out = append(out, e)
	}
	return out, p, rows.Err()
}
