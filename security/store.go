package security

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/eringen/panelengine/database"
	"github.com/eringen/panelengine/paging"
	"github.com/eringen/panelengine/report"
)

// Store persists the security log, access log and login attempts.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

// NewStore wraps db and creates the security tables.
func NewStore(db *sql.DB) (*Store, error) {
	s := &Store{db: db, now: time.Now}
	if err := s.ensureSchema(); err != nil {
		return nil, fmt.Errorf("security schema: %w", err)
	}
	return s, nil
}

// SetClock overrides the time source, for tests.
func (s *Store) SetClock(now func() time.Time) { s.now = now }

func (s *Store) ensureSchema() error {
	_, err := s.db.Exec(`
CREATE TABLE IF NOT EXISTS security_events (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    action TEXT NOT NULL,
    status TEXT NOT NULL,
    user_id TEXT NOT NULL DEFAULT '',
    ip TEXT NOT NULL,
    user_agent TEXT NOT NULL DEFAULT '',
    details TEXT NOT NULL DEFAULT '',
    created_at TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_security_events_created ON security_events(created_at);
CREATE INDEX IF NOT EXISTS idx_security_events_status ON security_events(status);

CREATE TABLE IF NOT EXISTS access_logs (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    method TEXT NOT NULL,
    path TEXT NOT NULL,
    status_code INTEGER NOT NULL,
    ip TEXT NOT NULL,
    user_id TEXT NOT NULL DEFAULT '',
    latency_ms INTEGER NOT NULL DEFAULT 0,
    created_at TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_access_logs_created ON access_logs(created_at);

CREATE TABLE IF NOT EXISTS login_attempts (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    email TEXT NOT NULL,
    ip TEXT NOT NULL,
    success INTEGER NOT NULL,
    created_at TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_login_attempts_created ON login_attempts(created_at);
CREATE INDEX IF NOT EXISTS idx_login_attempts_ip ON login_attempts(ip);
`)
	return err
}

func validAction(a Action) bool {
	for _, v := range Actions {
		if v == a {
			return true
		}
	}
	return false
}

func validStatus(st Status) bool {
	for _, v := range Statuses {
		if v == st {
			return true
		}
	}
	return false
}

// LogEvent appends to the security log. A zero CreatedAt is stamped with now.
func (s *Store) LogEvent(ctx context.Context, e Event) (Event, error) {
	if !validAction(e.Action) || !validStatus(e.Status) {
		return Event{}, ErrInvalidEvent
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = s.now()
	}
	e.CreatedAt = e.CreatedAt.UTC().Truncate(time.Second)
	res, err := s.db.ExecContext(ctx, `INSERT INTO security_events (action, status, user_id, ip, user_agent, details, created_at) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		e.Action, e.Status, e.UserID, e.IP, e.UserAgent, e.Details, database.FormatTime(e.CreatedAt))
	if err != nil {
		return Event{}, fmt.Errorf("insert security event: %w", err)
	}
	e.ID, _ = res.LastInsertId()
	return e, nil
}

// LogAccess appends to the access log.
func (s *Store) LogAccess(ctx context.Context, a Access) error {
	if a.CreatedAt.IsZero() {
		a.CreatedAt = s.now()
	}
	_, err := s.db.ExecContext(ctx, `INSERT INTO access_logs (method, path, status_code, ip, user_id, latency_ms, created_at) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		a.Method, a.Path, a.StatusCode, a.IP, a.UserID, a.LatencyMS, database.FormatTime(a.CreatedAt))
	if err != nil {
		return fmt.Errorf("insert access log: %w", err)
	}
	return nil
}

// RecordLoginAttempt stores a login attempt and mirrors it into the security
// log as a LOGIN event.
func (s *Store) RecordLoginAttempt(ctx context.Context, a LoginAttempt, userAgent string) error {
	if a.CreatedAt.IsZero() {
		a.CreatedAt = s.now()
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	at := database.FormatTime(a.CreatedAt)
	if _, err := tx.ExecContext(ctx, `INSERT INTO login_attempts (email, ip, success, created_at) VALUES (?, ?, ?, ?)`,
		a.Email, a.IP, database.Bool(a.Success), at); err != nil {
		return fmt.Errorf("insert login attempt: %w", err)
	}
	status := StatusSuccess
	if !a.Success {
		status = StatusFailure
	}
	if _, err := tx.ExecContext(ctx, `INSERT INTO security_events (action, status, ip, user_agent, details, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
		ActionLogin, status, a.IP, userAgent, a.Email, at); err != nil {
		return fmt.Errorf("insert login event: %w", err)
	}
	return tx.Commit()
}

// FailedLoginsSince counts failed attempts from ip since the given time.
func (s *Store) FailedLoginsSince(ctx context.Context, ip string, since time.Time) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM login_attempts WHERE ip = ? AND success = 0 AND created_at >= ?`,
		ip, database.FormatTime(since)).Scan(&n)
	return n, err
}

// LoginsByDay returns sparse daily counts of attempts since from.
func (s *Store) LoginsByDay(ctx context.Context, from time.Time) ([]report.SplitPoint, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT date(created_at) AS day,
       SUM(CASE WHEN success = 1 THEN 1 ELSE 0 END),
       SUM(CASE WHEN success = 0 THEN 1 ELSE 0 END)
FROM login_attempts WHERE created_at >= ? GROUP BY day ORDER BY day`, database.FormatTime(from))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []report.SplitPoint
	for rows.Next() {
		var p report.SplitPoint
		if err := rows.Scan(&p.Label, &p.Success, &p.Failed); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// Cleanup deletes log rows older than cutoff and returns how many were removed.
func (s *Store) Cleanup(ctx context.Context, cutoff time.Time) (int64, error) {
	var total int64
	for _, table := range []string{"security_events", "access_logs", "login_attempts"} {
		res, err := s.db.ExecContext(ctx, `DELETE FROM `+table+` WHERE created_at < ?`, database.FormatTime(cutoff))
		if err != nil {
			return total, fmt.Errorf("cleanup %s: %w", table, err)
		}
		n, _ := res.RowsAffected()
		total += n
	}
	return total, nil
}

func (s *Store) count(ctx context.Context, query string, args ...any) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, query, args...).Scan(&n)
	return n, err
}

// Overview gathers the security dashboard aggregates concurrently.
func (s *Store) Overview(ctx context.Context, now time.Time, users UserCounter) (*Overview, error) {
	now = now.UTC()
	ov := &Overview{GeneratedAt: now}
	windows := report.Windows(now)
	ov.EventWindows = make([]WindowCount, len(windows))
	dayAgo := database.FormatTime(now.Add(-24 * time.Hour))
	weekFrom := report.Since(now, 7)

	g, ctx := errgroup.WithContext(ctx)
	for i, w := range windows {
		g.Go(func() error {
			n, err := s.count(ctx, `SELECT COUNT(*) FROM security_events WHERE created_at >= ?`, database.FormatTime(w.From))
			if err != nil {
				return fmt.Errorf("count events %s: %w", w.Name, err)
			}
			ov.EventWindows[i] = WindowCount{Window: w.Name, Count: n}
			return nil
		})
	}
	g.Go(func() error {
		n, err := s.count(ctx, `SELECT COUNT(*) FROM login_attempts WHERE success = 0 AND created_at >= ?`, dayAgo)
		if err != nil {
			return fmt.Errorf("count failed logins: %w", err)
		}
		ov.FailedLogins24h = n
		return nil
	})
	g.Go(func() error {
		n, err := s.count(ctx, `SELECT COUNT(*) FROM security_events WHERE status = ? AND created_at >= ?`, StatusBlocked, dayAgo)
		if err != nil {
			return fmt.Errorf("count blocked: %w", err)
		}
		ov.Blocked24h = n
		return nil
	})
	g.Go(func() error {
		sparse, err := s.LoginsByDay(ctx, weekFrom)
		if err != nil {
			return fmt.Errorf("logins by day: %w", err)
		}
		ov.LoginsByDay = report.FillDailySplit(sparse, weekFrom, 7)
		return nil
	})
	g.Go(func() error {
		ips, err := s.topFailedIPs(ctx, database.FormatTime(now.AddDate(0, 0, -7)), 10)
		if err != nil {
			return fmt.Errorf("top failed ips: %w", err)
		}
		ov.TopFailedIPs = ips
		return nil
	})
	g.Go(func() error {
		events, err := s.suspicious(ctx, 10)
		if err != nil {
			return fmt.Errorf("suspicious events: %w", err)
		}
		ov.Suspicious = events
		return nil
	})
	if users != nil {
		g.Go(func() error {
			n, err := users.CountTotal(ctx)
			if err != nil {
				return fmt.Errorf("count users: %w", err)
			}
			ov.TotalUsers = n
			return nil
		})
		g.Go(func() error {
			n, err := users.CountTwoFactor(ctx)
			if err != nil {
				return fmt.Errorf("count 2fa users: %w", err)
			}
			ov.TwoFactorUsers = n
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	ov.TwoFactorPercent = report.Percent(ov.TwoFactorUsers, ov.TotalUsers)
	return ov, nil
}

func (s *Store) topFailedIPs(ctx context.Context, since string, limit int) ([]IPCount, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT ip, COUNT(*) AS n FROM login_attempts WHERE success = 0 AND created_at >= ? GROUP BY ip ORDER BY n DESC, ip LIMIT ?`, since, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []IPCount{}
	for rows.Next() {
		var c IPCount
		if err := rows.Scan(&c.IP, &c.Count); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (s *Store) suspicious(ctx context.Context, limit int) ([]Event, error) {
	return s.queryEvents(ctx, `WHERE status IN (?, ?) OR action = ? ORDER BY created_at DESC, id DESC LIMIT ?`,
		StatusFailure, StatusBlocked, ActionAccountLock, limit)
}

const eventColumns = `id, action, status, user_id, ip, user_agent, details, created_at`

func (s *Store) queryEvents(ctx context.Context, tail string, args ...any) ([]Event, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+eventColumns+` FROM security_events `+tail, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []Event{}
	for rows.Next() {
		var e Event
		var action, status, created string
		if err := rows.Scan(&e.ID, &action, &status, &e.UserID, &e.IP, &e.UserAgent, &e.Details, &created); err != nil {
			return nil, err
		}
		e.Action = Action(action)
		e.Status = Status(status)
		e.CreatedAt = database.ParseTime(created)
		out = append(out, e)
	}
	return out, rows.Err()
}

func (s *Store) queryAccess(ctx context.Context, tail string, args ...any) ([]Access, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, method, path, status_code, ip, user_id, latency_ms, created_at FROM access_logs `+tail, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []Access{}
	for rows.Next() {
		var a Access
		var created string
		if err := rows.Scan(&a.ID, &a.Method, &a.Path, &a.StatusCode, &a.IP, &a.UserID, &a.LatencyMS, &created); err != nil {
			return nil, err
		}
		a.CreatedAt = database.ParseTime(created)
		out = append(out, a)
	}
	return out, rows.Err()
}

// Events returns a page of security events matching f.
func (s *Store) Events(ctx context.Context, f EventFilter, p paging.Page) (*EventPage, error) {
	if f.Days <= 0 {
		f.Days = DefaultDays
	}
	where := []string{"created_at >= ?"}
	args := []any{database.FormatTime(s.now().AddDate(0, 0, -f.Days))}
	if f.Action != "" {
		where = append(where, "action = ?")
		args = append(args, f.Action)
	}
	if f.Status != "" {
		where = append(where, "status = ?")
		args = append(args, f.Status)
	}
	clause := "WHERE " + strings.Join(where, " AND ")

	total, err := s.count(ctx, `SELECT COUNT(*) FROM security_events `+clause, args...)
	if err != nil {
		return nil, fmt.Errorf("count events: %w", err)
	}
	p = p.WithTotal(total)
	events, err := s.queryEvents(ctx, clause+` ORDER BY created_at DESC, id DESC LIMIT ? OFFSET ?`, append(args, p.Size, p.Offset())...)
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	return &EventPage{Events: events, Page: p, Window: p.Window(paging.DefaultWindow), Filter: f}, nil
}

func (s *Store) eventClause(f LogFilter, since string) (string, []any) {
	clause := "WHERE created_at >= ?"
	args := []any{since}
	if f.Search != "" {
		pat := database.LikePattern(f.Search)
		clause += ` AND (lower(action) LIKE ? ESCAPE '\' OR lower(ip) LIKE ? ESCAPE '\' OR lower(details) LIKE ? ESCAPE '\')`
		args = append(args, pat, pat, pat)
	}
	return clause, args
}

func (s *Store) accessClause(f LogFilter, since string) (string, []any) {
	clause := "WHERE created_at >= ?"
	args := []any{since}
	if f.Search != "" {
		pat := database.LikePattern(f.Search)
		clause += ` AND (lower(path) LIKE ? ESCAPE '\' OR lower(ip) LIKE ? ESCAPE '\' OR lower(method) LIKE ? ESCAPE '\')`
		args = append(args, pat, pat, pat)
	}
	return clause, args
}

// Logs returns a page of the merged logs view. For LogAll it reads the newest
// Number*Size rows from each source, merges them by time and slices the page.
func (s *Store) Logs(ctx context.Context, f LogFilter, p paging.Page) (*LogPage, error) {
	f.Type = ParseLogType(string(f.Type))
	if f.Days <= 0 {
		f.Days = DefaultDays
	}
	since := database.FormatTime(s.now().AddDate(0, 0, -f.Days))
	evClause, evArgs := s.eventClause(f, since)
	acClause, acArgs := s.accessClause(f, since)

	out := &LogPage{Filter: f, Entries: []LogEntry{}}
	var evTotal, acTotal int
	g, gctx := errgroup.WithContext(ctx)
	if f.Type != LogAccess {
		g.Go(func() error {
			n, err := s.count(gctx, `SELECT COUNT(*) FROM security_events `+evClause, evArgs...)
			evTotal = n
			return err
		})
	}
	if f.Type != LogSecurity {
		g.Go(func() error {
			n, err := s.count(gctx, `SELECT COUNT(*) FROM access_logs `+acClause, acArgs...)
			acTotal = n
			return err
		})
	}
	g.Go(func() error {
		top, err := s.topActions(gctx, since, 5)
		out.TopActions = top
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("count logs: %w", err)
	}
	p = p.WithTotal(evTotal + acTotal)

	switch f.Type {
	case LogSecurity:
		events, err := s.queryEvents(ctx, evClause+` ORDER BY created_at DESC, id DESC LIMIT ? OFFSET ?`, append(evArgs, p.Size, p.Offset())...)
		if err != nil {
			return nil, err
		}
		for i := range events {
			out.Entries = append(out.Entries, LogEntry{Kind: LogSecurity, Event: &events[i], CreatedAt: events[i].CreatedAt})
		}
	case LogAccess:
		access, err := s.queryAccess(ctx, acClause+` ORDER BY created_at DESC, id DESC LIMIT ? OFFSET ?`, append(acArgs, p.Size, p.Offset())...)
		if err != nil {
			return nil, err
		}
		for i := range access {
			out.Entries = append(out.Entries, LogEntry{Kind: LogAccess, Access: &access[i], CreatedAt: access[i].CreatedAt})
		}
	default:
		start := p.Offset()
		if start < 0 || start >= p.Total {
			break
		}
		limit := start + p.Size
		events, err := s.queryEvents(ctx, evClause+` ORDER BY created_at DESC, id DESC LIMIT ?`, append(evArgs, limit)...)
		if err != nil {
			return nil, err
		}
		access, err := s.queryAccess(ctx, acClause+` ORDER BY created_at DESC, id DESC LIMIT ?`, append(acArgs, limit)...)
		if err != nil {
			return nil, err
		}
		merged := make([]LogEntry, 0, len(events)+len(access))
		for i := range events {
			merged = append(merged, LogEntry{Kind: LogSecurity, Event: &events[i], CreatedAt: events[i].CreatedAt})
		}
		for i := range access {
			merged = append(merged, LogEntry{Kind: LogAccess, Access: &access[i], CreatedAt: access[i].CreatedAt})
		}
		sort.SliceStable(merged, func(i, j int) bool {
			return merged[i].CreatedAt.After(merged[j].CreatedAt)
		})
		if start < len(merged) {
			out.Entries = merged[start:min(start+p.Size, len(merged))]
		}
	}
	out.Page = p
	out.Window = p.Window(paging.DefaultWindow)
	return out, nil
}

func (s *Store) topActions(ctx context.Context, since string, limit int) ([]ActionCount, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT action, COUNT(*) AS n FROM security_events WHERE created_at >= ? GROUP BY action ORDER BY n DESC, action LIMIT ?`, since, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []ActionCount{}
	for rows.Next() {
		var a ActionCount
		if err := rows.Scan(&a.Action, &a.Count); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}
