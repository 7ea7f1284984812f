package orgs

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/eringen/panelengine/database"
	"github.com/eringen/panelengine/paging"
	"github.com/eringen/panelengine/slug"
)

// Store is the SQLite-backed organization store.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

// NewStore wraps db and creates the organization tables.
func NewStore(db *sql.DB) (*Store, error) {
	s := &Store{db: db, now: time.Now}
	if err := s.ensureSchema(); err != nil {
		return nil, fmt.Errorf("orgs schema: %w", err)
	}
	return s, nil
}

// SetClock overrides the time source, for tests.
func (s *Store) SetClock(now func() time.Time) { s.now = now }

func (s *Store) ensureSchema() error {
	_, err := s.db.Exec(`
CREATE TABLE IF NOT EXISTS organizations (
    id TEXT PRIMARY KEY,
    name TEXT NOT NULL,
    slug TEXT NOT NULL UNIQUE,
    plan TEXT NOT NULL DEFAULT 'free',
    status TEXT NOT NULL DEFAULT 'ACTIVE',
    created_at TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS org_members (
    org_id TEXT NOT NULL REFERENCES organizations(id) ON DELETE CASCADE,
    user_id TEXT NOT NULL,
    email TEXT NOT NULL,
    name TEXT NOT NULL DEFAULT '',
    role TEXT NOT NULL,
    joined_at TEXT NOT NULL,
    PRIMARY KEY (org_id, user_id)
);

CREATE TABLE IF NOT EXISTS org_invites (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    org_id TEXT NOT NULL REFERENCES organizations(id) ON DELETE CASCADE,
    email TEXT NOT NULL,
    role TEXT NOT NULL,
    token TEXT NOT NULL UNIQUE,
    status TEXT NOT NULL DEFAULT 'PENDING',
    invited_by TEXT NOT NULL DEFAULT '',
    created_at TEXT NOT NULL,
    expires_at TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_org_invites_org ON org_invites(org_id, status);
`)
	return err
}

const orgColumns = `o.id, o.name, o.slug, o.plan, o.status, o.created_at,
    (SELECT COUNT(*) FROM org_members m WHERE m.org_id = o.id)`

type scanner interface {
	Scan(dest ...any) error
}

func scanOrg(row scanner) (Organization, error) {
	var o Organization
	var status, created string
	if err := row.Scan(&o.ID, &o.Name, &o.Slug, &o.Plan, &status, &created, &o.MemberCount); err != nil {
		return Organization{}, err
	}
	o.Status = Status(status)
	o.CreatedAt = database.ParseTime(created)
	return o, nil
}

func (s *Store) slugTaken(ctx context.Context, sl string) bool {
	var n int
	s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM organizations WHERE slug = ?`, sl).Scan(&n)
	return n > 0
}

// Create inserts an organization and, when in.Owner is set, its first owner.
// An empty slug is derived from the name and made unique.
func (s *Store) Create(ctx context.Context, in NewOrganization) (Organization, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return Organization{}, ErrInvalidName
	}
	sl := slug.Make(in.Slug)
	if in.Slug == "" {
		base := slug.Make(name)
		if base == "" {
			base = "org"
		}
		sl = slug.Unique(base, func(c string) bool { return s.slugTaken(ctx, c) })
	}
	if sl == "" {
		return Organization{}, ErrInvalidName
	}
	plan := in.Plan
	if plan == "" {
		plan = "free"
	}
	o := Organization{
		ID:        uuid.NewString(),
		Name:      name,
		Slug:      sl,
		Plan:      plan,
		Status:    StatusActive,
		CreatedAt: s.now().UTC().Truncate(time.Second),
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return Organization{}, err
	}
	defer tx.Rollback()
	_, err = tx.ExecContext(ctx, `INSERT INTO organizations (id, name, slug, plan, status, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
		o.ID, o.Name, o.Slug, o.Plan, o.Status, database.FormatTime(o.CreatedAt))
	if database.IsUniqueViolation(err) {
		return Organization{}, ErrSlugTaken
	}
	if err != nil {
		return Organization{}, fmt.Errorf("insert organization: %w", err)
	}
	if in.Owner.UserID != "" {
		if err := s.insertMember(ctx, tx, o.ID, in.Owner, RoleOwner); err != nil {
			return Organization{}, err
		}
		o.MemberCount = 1
	}
	if err := tx.Commit(); err != nil {
		return Organization{}, fmt.Errorf("commit organization: %w", err)
	}
	return o, nil
}

// Get returns an organization by ID.
func (s *Store) Get(ctx context.Context, id string) (Organization, error) {
	o, err := scanOrg(s.db.QueryRowContext(ctx, `SELECT `+orgColumns+` FROM organizations o WHERE o.id = ?`, id))
	return o, database.NotFound(err, ErrNotFound)
}

// GetBySlug returns an organization by slug.
func (s *Store) GetBySlug(ctx context.Context, sl string) (Organization, error) {
	o, err := scanOrg(s.db.QueryRowContext(ctx, `SELECT `+orgColumns+` FROM organizations o WHERE o.slug = ?`, sl))
	return o, database.NotFound(err, ErrNotFound)
}

// List returns a page of organizations, newest first.
func (s *Store) List(ctx context.Context, f Filter, p paging.Page) ([]Organization, paging.Page, error) {
	where := []string{"1=1"}
	var args []any
	if f.Status != "" {
		where = append(where, "o.status = ?")
		args = append(args, f.Status)
	}
	if f.Search != "" {
		where = append(where, `(lower(o.name) LIKE ? ESCAPE '\' OR o.slug LIKE ? ESCAPE '\')`)
		pat := database.LikePattern(f.Search)
		args = append(args, pat, pat)
	}
	clause := strings.Join(where, " AND ")

	var total int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM organizations o WHERE `+clause, args...).Scan(&total); err != nil {
		return nil, p, fmt.Errorf("count organizations: %w", err)
	}
	p = p.WithTotal(total)
	rows, err := s.db.QueryContext(ctx, `SELECT `+orgColumns+` FROM organizations o WHERE `+clause+` ORDER BY o.created_at DESC, o.slug LIMIT ? OFFSET ?`,
		append(args, p.Size, p.Offset())...)
	if err != nil {
		return nil, p, fmt.Errorf("list organizations: %w", err)
	}
	defer rows.Close()
	out := []Organization{}
	for rows.Next() {
		o, err := scanOrg(rows)
		if err != nil {
			return nil, p, err
		}
		out = append(out, o)
	}
	return out, p, rows.Err()
}

func (s *Store) update(ctx context.Context, query string, args ...any) error {
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// Rename changes an organization's display name.
func (s *Store) Rename(ctx context.Context, id, name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return ErrInvalidName
	}
	return s.update(ctx, `UPDATE organizations SET name = ? WHERE id = ?`, name, id)
}

// SetPlan changes an organization's plan.
func (s *Store) SetPlan(ctx context.Context, id, plan string) error {
	return s.update(ctx, `UPDATE organizations SET plan = ? WHERE id = ?`, plan, id)
}

// Suspend blocks an organization.
func (s *Store) Suspend(ctx context.Context, id string) error {
	return s.update(ctx, `UPDATE organizations SET status = ? WHERE id = ?`, StatusSuspended, id)
}

// Activate lifts a suspension.
func (s *Store) Activate(ctx context.Context, id string) error {
	return s.update(ctx, `UPDATE organizations SET status = ? WHERE id = ?`, StatusActive, id)
}

// Delete removes an organization with its members and invites.
func (s *Store) Delete(ctx context.Context, id string) error {
	return s.update(ctx, `DELETE FROM organizations WHERE id = ?`, id)
}

// CountByStatus counts organizations per status.
func (s *Store) CountByStatus(ctx context.Context) (map[Status]int, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT status, COUNT(*) FROM organizations GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("count organizations: %w", err)
	}
	defer rows.Close()
	out := map[Status]int{StatusActive: 0, StatusSuspended: 0}
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
