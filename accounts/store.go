package accounts

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/eringen/panelengine/database"
	"github.com/eringen/panelengine/paging"
	"github.com/eringen/panelengine/report"
)

// Store persists users and sessions.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

// NewStore wraps db and creates the account tables.
func NewStore(db *sql.DB) (*Store, error) {
	s := &Store{db: db, now: time.Now}
	if err := s.ensureSchema(); err != nil {
		return nil, fmt.Errorf("accounts schema: %w", err)
	}
	return s, nil
}

// SetClock overrides the time source, for tests.
func (s *Store) SetClock(now func() time.Time) { s.now = now }

func (s *Store) ensureSchema() error {
	_, err := s.db.Exec(`
CREATE TABLE IF NOT EXISTS users (
    id TEXT PRIMARY KEY,
    email TEXT NOT NULL UNIQUE,
    name TEXT NOT NULL,
    password_hash TEXT NOT NULL,
    status TEXT NOT NULL DEFAULT 'ACTIVE',
    trust_level TEXT NOT NULL DEFAULT 'UNVERIFIED',
    two_factor INTEGER NOT NULL DEFAULT 0,
    email_verified INTEGER NOT NULL DEFAULT 0,
    created_at TEXT NOT NULL,
    last_login_at TEXT
);
CREATE INDEX IF NOT EXISTS idx_users_created ON users(created_at);
CREATE INDEX IF NOT EXISTS idx_users_status ON users(status);

CREATE TABLE IF NOT EXISTS user_sessions (
    id TEXT PRIMARY KEY,
    user_id TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
    ip TEXT NOT NULL,
    user_agent TEXT NOT NULL,
    created_at TEXT NOT NULL,
    expires_at TEXT NOT NULL,
    ended_at TEXT
);
CREATE INDEX IF NOT EXISTS idx_user_sessions_user ON user_sessions(user_id);
`)
	return err
}

const userColumns = `id, email, name, status, trust_level, two_factor, email_verified, created_at, last_login_at`

type scanner interface {
	Scan(dest ...any) error
}

// scanUser reads userColumns followed by any extra destinations.
func scanUser(row scanner, extra ...any) (User, error) {
	var u User
	var status, trust, created string
	var twoFactor, verified int
	var lastLogin sql.NullString
	dest := append([]any{&u.ID, &u.Email, &u.Name, &status, &trust, &twoFactor, &verified, &created, &lastLogin}, extra...)
	if err := row.Scan(dest...); err != nil {
		return User{}, err
	}
	u.Status = Status(status)
	u.TrustLevel = TrustLevel(trust)
	u.TwoFactorEnabled = twoFactor == 1
	u.EmailVerified = verified == 1
	u.CreatedAt = database.ParseTime(created)
	u.LastLoginAt = database.ParseNullTime(lastLogin)
	return u, nil
}

// Create registers a user with a bcrypt-hashed password.
func (s *Store) Create(ctx context.Context, in NewUser) (User, error) {
	email, err := NormalizeEmail(in.Email)
	if err != nil {
		return User{}, err
	}
	if len(in.Password) < 8 {
		return User{}, ErrWeakPassword
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcrypt.DefaultCost)
	if err != nil {
		return User{}, fmt.Errorf("hash password: %w", err)
	}
	name := strings.TrimSpace(in.Name)
	if name == "" {
		name = email[:strings.IndexByte(email, '@')]
	}
	u := User{
		ID:         uuid.NewString(),
		Email:      email,
		Name:       name,
		Status:     StatusActive,
		TrustLevel: TrustUnverified,
		CreatedAt:  s.now().UTC().Truncate(time.Second),
	}
	_, err = s.db.ExecContext(ctx, `INSERT INTO users (id, email, name, password_hash, status, trust_level, created_at) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		u.ID, u.Email, u.Name, string(hash), u.Status, u.TrustLevel, database.FormatTime(u.CreatedAt))
	if database.IsUniqueViolation(err) {
		return User{}, ErrEmailTaken
	}
	if err != nil {
		return User{}, fmt.Errorf("insert user: %w", err)
	}
	return u, nil
}

// Get returns a user by ID.
func (s *Store) Get(ctx context.Context, id string) (User, error) {
	u, err := scanUser(s.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id = ?`, id))
	return u, database.NotFound(err, ErrNotFound)
}

// FindByEmail returns a user by email address.
func (s *Store) FindByEmail(ctx context.Context, email string) (User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	u, err := scanUser(s.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE email = ?`, email))
	return u, database.NotFound(err, ErrNotFound)
}

// List returns one page of users, newest first, and the page with its total.
func (s *Store) List(ctx context.Context, f Filter, p paging.Page) ([]User, paging.Page, error) {
	where := []string{"1=1"}
	var args []any
	if f.Status != "" {
		where = append(where, "status = ?")
		args = append(args, f.Status)
	}
	if f.Search != "" {
		where = append(where, `(lower(email) LIKE ? ESCAPE '\' OR lower(name) LIKE ? ESCAPE '\')`)
		pat := database.LikePattern(f.Search)
		args = append(args, pat, pat)
	}
	clause := strings.Join(where, " AND ")

	var total int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM users WHERE `+clause, args...).Scan(&total); err != nil {
		return nil, p, fmt.Errorf("count users: %w", err)
	}
	p = p.WithTotal(total)

	rows, err := s.db.QueryContext(ctx, `SELECT `+userColumns+` FROM users WHERE `+clause+` ORDER BY created_at DESC, email LIMIT ? OFFSET ?`,
		append(args, p.Size, p.Offset())...)
	if err != nil {
		return nil, p, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()
	users := []User{}
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, p, err
		}
		users = append(users, u)
	}
	return users, p, rows.Err()
}

// Authenticate checks credentials. Locked accounts are rejected after the
// password check so a wrong password never reveals account state.
func (s *Store) Authenticate(ctx context.Context, email, password string) (User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	var hash string
	u, err := scanUser(s.db.QueryRowContext(ctx, `SELECT `+userColumns+`, password_hash FROM users WHERE email = ?`, email), &hash)
	if errors.Is(err, sql.ErrNoRows) {
		return User{}, ErrInvalidCredentials
	}
	if err != nil {
		return User{}, err
	}
	if bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) != nil {
		return User{}, ErrInvalidCredentials
	}
	if u.Status != StatusActive {
		return User{}, ErrAccountLocked
	}
	return u, nil
}

func (s *Store) update(ctx context.Context, query string, args ...any) error {
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// SetStatus changes an account's status.
func (s *Store) SetStatus(ctx context.Context, id string, status Status) error {
	if !status.Valid() {
		return ErrInvalidStatus
	}
	return s.update(ctx, `UPDATE users SET status = ? WHERE id = ?`, status, id)
}

// SetTrustLevel changes an account's trust level.
func (s *Store) SetTrustLevel(ctx context.Context, id string, level TrustLevel) error {
	if !level.Valid() {
		return ErrInvalidTrustLevel
	}
	return s.update(ctx, `UPDATE users SET trust_level = ? WHERE id = ?`, level, id)
}

// SetTwoFactor enables or disables two-factor auth for a user.
func (s *Store) SetTwoFactor(ctx context.Context, id string, enabled bool) error {
	return s.update(ctx, `UPDATE users SET two_factor = ? WHERE id = ?`, database.Bool(enabled), id)
}

// SetEmailVerified marks the user's email as verified.
func (s *Store) SetEmailVerified(ctx context.Context, id string, verified bool) error {
	return s.update(ctx, `UPDATE users SET email_verified = ? WHERE id = ?`, database.Bool(verified), id)
}

// TouchLogin records a successful login time.
func (s *Store) TouchLogin(ctx context.Context, id string) error {
	return s.update(ctx, `UPDATE users SET last_login_at = ? WHERE id = ?`, database.FormatTime(s.now()), id)
}

// CountTotal returns the number of users.
func (s *Store) CountTotal(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM users`).Scan(&n)
	return n, err
}

// CountTwoFactor returns the number of users with two-factor auth enabled.
func (s *Store) CountTwoFactor(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM users WHERE two_factor = 1`).Scan(&n)
	return n, err
}

// CountByStatus returns user counts keyed by status. Every status is present.
func (s *Store) CountByStatus(ctx context.Context) (map[Status]int, error) {
	out := make(map[Status]int, len(Statuses))
	for _, st := range Statuses {
		out[st] = 0
	}
	rows, err := s.db.QueryContext(ctx, `SELECT status, COUNT(*) FROM users GROUP BY status`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var st string
		var n int
		if err := rows.Scan(&st, &n); err != nil {
			return nil, err
		}
		out[Status(st)] = n
	}
	return out, rows.Err()
}

// TrustDistribution returns user counts per trust level with shares.
func (s *Store) TrustDistribution(ctx context.Context) ([]report.Share, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT trust_level, COUNT(*) FROM users GROUP BY trust_level`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	counts := make(map[string]int)
	for rows.Next() {
		var lvl string
		var n int
		if err := rows.Scan(&lvl, &n); err != nil {
			return nil, err
		}
		counts[lvl] = n
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	names := make([]string, len(TrustLevels))
	for i, l := range TrustLevels {
		names[i] = string(l)
	}
	return report.Shares(names, counts), nil
}

// SignupsByDay returns sparse daily signup counts since from.
func (s *Store) SignupsByDay(ctx context.Context, from time.Time) ([]report.Point, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT date(created_at) AS day, COUNT(*) FROM users WHERE created_at >= ? GROUP BY day ORDER BY day`,
		database.FormatTime(from))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []report.Point
	for rows.Next() {
		var p report.Point
		if err := rows.Scan(&p.Label, &p.Value); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// StartSession opens a session for a user lasting ttl.
func (s *Store) StartSession(ctx context.Context, userID, ip, userAgent string, ttl time.Duration) (Session, error) {
	now := s.now().UTC().Truncate(time.Second)
	sess := Session{
		ID:        uuid.NewString(),
		UserID:    userID,
		IP:        ip,
		UserAgent: userAgent,
		CreatedAt: now,
		ExpiresAt: now.Add(ttl),
	}
	_, err := s.db.ExecContext(ctx, `INSERT INTO user_sessions (id, user_id, ip, user_agent, created_at, expires_at) VALUES (?, ?, ?, ?, ?, ?)`,
		sess.ID, sess.UserID, sess.IP, sess.UserAgent, database.FormatTime(sess.CreatedAt), database.FormatTime(sess.ExpiresAt))
	if err != nil {
		return Session{}, fmt.Errorf("start session: %w", err)
	}
	return sess, nil
}

// EndSession marks a session as ended.
func (s *Store) EndSession(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `UPDATE user_sessions SET ended_at = ? WHERE id = ? AND ended_at IS NULL`, database.FormatTime(s.now()), id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// ActiveSession returns a session that has neither ended nor expired.
func (s *Store) ActiveSession(ctx context.Context, id string) (Session, error) {
	var sess Session
	var created, expires string
	err := s.db.QueryRowContext(ctx, `SELECT id, user_id, ip, user_agent, created_at, expires_at FROM user_sessions WHERE id = ? AND ended_at IS NULL AND expires_at > ?`,
		id, database.FormatTime(s.now())).Scan(&sess.ID, &sess.UserID, &sess.IP, &sess.UserAgent, &created, &expires)
	if err != nil {
		return Session{}, database.NotFound(err, ErrNotFound)
	}
	sess.CreatedAt = database.ParseTime(created)
	sess.ExpiresAt = database.ParseTime(expires)
	return sess, nil
}

// CountActiveSessions counts sessions that have not ended or expired at now.
func (s *Store) CountActiveSessions(ctx context.Context, now time.Time) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM user_sessions WHERE ended_at IS NULL AND expires_at > ?`, database.FormatTime(now)).Scan(&n)
	return n, err
}
