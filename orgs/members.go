package orgs

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/eringen/panelengine/database"
)

const roleRank = `CASE role WHEN 'OWNER' THEN 0 WHEN 'ADMIN' THEN 1 WHEN 'MEMBER' THEN 2 ELSE 3 END`

type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *Store) insertMember(ctx context.Context, q querier, orgID string, p Person, role Role) error {
	_, err := q.ExecContext(ctx, `INSERT INTO org_members (org_id, user_id, email, name, role, joined_at) VALUES (?, ?, ?, ?, ?, ?)`,
		orgID, p.UserID, strings.ToLower(strings.TrimSpace(p.Email)), strings.TrimSpace(p.Name), role, database.FormatTime(s.now()))
	if database.IsUniqueViolation(err) {
		return ErrAlreadyMember
	}
	if err != nil {
		return fmt.Errorf("insert member: %w", err)
	}
	return nil
}

// ListMembers returns an organization's members, owners first, then by join
// time.
func (s *Store) ListMembers(ctx context.Context, orgID string) ([]Member, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT org_id, user_id, email, name, role, joined_at FROM org_members WHERE org_id = ? ORDER BY `+roleRank+`, joined_at, email`, orgID)
	if err != nil {
		return nil, fmt.Errorf("list members: %w", err)
	}
	defer rows.Close()
	out := []Member{}
	for rows.Next() {
		var m Member
		var role, joined string
		if err := rows.Scan(&m.OrgID, &m.UserID, &m.Email, &m.Name, &role, &joined); err != nil {
			return nil, err
		}
		m.Role = Role(role)
		m.JoinedAt = database.ParseTime(joined)
		out = append(out, m)
	}
	return out, rows.Err()
}

// AddMember adds p to the organization with role.
func (s *Store) AddMember(ctx context.Context, orgID string, p Person, role Role) (Member, error) {
	if !role.Valid() {
		return Member{}, ErrInvalidRole
	}
	if _, err := s.Get(ctx, orgID); err != nil {
		return Member{}, err
	}
	if err := s.insertMember(ctx, s.db, orgID, p, role); err != nil {
		return Member{}, err
	}
	return s.member(ctx, s.db, orgID, p.UserID)
}

func (s *Store) member(ctx context.Context, q querier, orgID, userID string) (Member, error) {
	var m Member
	var role, joined string
	err := q.QueryRowContext(ctx, `SELECT org_id, user_id, email, name, role, joined_at FROM org_members WHERE org_id = ? AND user_id = ?`, orgID, userID).
		Scan(&m.OrgID, &m.UserID, &m.Email, &m.Name, &role, &joined)
	if err != nil {
		return Member{}, database.NotFound(err, ErrNotFound)
	}
	m.Role = Role(role)
	m.JoinedAt = database.ParseTime(joined)
	return m, nil
}

func countOwners(ctx context.Context, q querier, orgID string) (int, error) {
	var n int
	err := q.QueryRowContext(ctx, `SELECT COUNT(*) FROM org_members WHERE org_id = ? AND role = ?`, orgID, RoleOwner).Scan(&n)
	return n, err
}

// UpdateRole changes a member's role. Demoting the only owner fails with
// ErrLastOwner.
func (s *Store) UpdateRole(ctx context.Context, orgID, userID string, role Role) error {
	if !role.Valid() {
		return ErrInvalidRole
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	m, err := s.member(ctx, tx, orgID, userID)
	if err != nil {
		return err
	}
	if m.Role == RoleOwner && role != RoleOwner {
		owners, err := countOwners(ctx, tx, orgID)
		if err != nil {
			return err
		}
		if owners <= 1 {
			return ErrLastOwner
		}
	}
	if _, err := tx.ExecContext(ctx, `UPDATE org_members SET role = ? WHERE org_id = ? AND user_id = ?`, role, orgID, userID); err != nil {
		return fmt.Errorf("update role: %w", err)
	}
	return tx.Commit()
}

// RemoveMember removes a member. Removing the only owner fails with
// ErrLastOwner.
func (s *Store) RemoveMember(ctx context.Context, orgID, userID string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	m, err := s.member(ctx, tx, orgID, userID)
	if err != nil {
		return err
	}
	if m.Role == RoleOwner {
		owners, err := countOwners(ctx, tx, orgID)
		if err != nil {
			return err
		}
		if owners <= 1 {
			return ErrLastOwner
		}
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM org_members WHERE org_id = ? AND user_id = ?`, orgID, userID); err != nil {
		return fmt.Errorf("remove member: %w", err)
	}
	return tx.Commit()
}

// RoleCounts counts an organization's members per role.
func (s *Store) RoleCounts(ctx context.Context, orgID string) (map[Role]int, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT role, COUNT(*) FROM org_members WHERE org_id = ? GROUP BY role`, orgID)
	if err != nil {
		return nil, fmt.Errorf("role counts: %w", err)
	}
	defer rows.Close()
	out := make(map[Role]int, len(Roles))
	for _, r := range Roles {
		out[r] = 0
	}
	for rows.Next() {
		var r string
		var n int
		if err := rows.Scan(&r, &n); err != nil {
			return nil, err
		}
		out[Role(r)] = n
	}
	return out, rows.Err()
}

const inviteColumns = `id, org_id, email, role, token, status, invited_by, created_at, expires_at`

func scanInvite(row scanner) (Invite, error) {
	var i Invite
	var role, status, created, expires string
	if err := row.Scan(&i.ID, &i.OrgID, &i.Email, &role, &i.Token, &status, &i.InvitedBy, &created, &expires); err != nil {
		return Invite{}, err
	}
	i.Role = Role(role)
	i.Status = InviteStatus(status)
	i.CreatedAt = database.ParseTime(created)
	i.ExpiresAt = database.ParseTime(expires)
	return i, nil
}

// CreateInvite issues an invite token valid for InviteTTL. Existing members
// and emails with a live pending invite are rejected.
func (s *Store) CreateInvite(ctx context.Context, orgID, email string, role Role, invitedBy string) (Invite, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || !strings.Contains(email, "@") {
		return Invite{}, fmt.Errorf("%w %q", ErrInvalidEmail, email)
	}
	if !role.Valid() {
		return Invite{}, ErrInvalidRole
	}
	if _, err := s.Get(ctx, orgID); err != nil {
		return Invite{}, err
	}
	now := s.now().UTC().Truncate(time.Second)

	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM org_members WHERE org_id = ? AND email = ?`, orgID, email).Scan(&n); err != nil {
		return Invite{}, err
	}
	if n > 0 {
		return Invite{}, ErrAlreadyMember
	}
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM org_invites WHERE org_id = ? AND email = ? AND status = ? AND expires_at > ?`,
		orgID, email, InvitePending, database.FormatTime(now)).Scan(&n); err != nil {
		return Invite{}, err
	}
	if n > 0 {
		return Invite{}, ErrInviteExists
	}

	inv := Invite{
		OrgID:     orgID,
		Email:     email,
		Role:      role,
		Token:     uuid.NewString(),
		Status:    InvitePending,
		InvitedBy: invitedBy,
		CreatedAt: now,
		ExpiresAt: now.Add(InviteTTL),
	}
	res, err := s.db.ExecContext(ctx, `INSERT INTO org_invites (org_id, email, role, token, status, invited_by, created_at, expires_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		inv.OrgID, inv.Email, inv.Role, inv.Token, inv.Status, inv.InvitedBy, database.FormatTime(inv.CreatedAt), database.FormatTime(inv.ExpiresAt))
	if err != nil {
		return Invite{}, fmt.Errorf("insert invite: %w", err)
	}
	inv.ID, _ = res.LastInsertId()
	return inv, nil
}

// ListInvites returns an organization's pending, unexpired invites, newest
// first.
func (s *Store) ListInvites(ctx context.Context, orgID string) ([]Invite, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+inviteColumns+` FROM org_invites WHERE org_id = ? AND status = ? AND expires_at > ? ORDER BY created_at DESC, id DESC`,
		orgID, InvitePending, database.FormatTime(s.now()))
	if err != nil {
		return nil, fmt.Errorf("list invites: %w", err)
	}
	defer rows.Close()
	out := []Invite{}
	for rows.Next() {
		i, err := scanInvite(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, i)
	}
	return out, rows.Err()
}

// RevokeInvite cancels a pending invite.
func (s *Store) RevokeInvite(ctx context.Context, orgID string, id int64) error {
	return s.update(ctx, `UPDATE org_invites SET status = ? WHERE id = ? AND org_id = ? AND status = ?`, InviteRevoked, id, orgID, InvitePending)
}

// InviteByToken returns the pending invite with token. Expired invites are
// returned too; callers check Expired.
func (s *Store) InviteByToken(ctx context.Context, token string) (Invite, error) {
	inv, err := scanInvite(s.db.QueryRowContext(ctx, `SELECT `+inviteColumns+` FROM org_invites WHERE token = ? AND status = ?`, token, InvitePending))
	return inv, database.NotFound(err, ErrNotFound)
}

// AcceptInvite turns a pending invite into a membership for p. p must use
// the invited email address.
func (s *Store) AcceptInvite(ctx context.Context, token string, p Person) (Member, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return Member{}, err
	}
	defer tx.Rollback()
	inv, err := scanInvite(tx.QueryRowContext(ctx, `SELECT `+inviteColumns+` FROM org_invites WHERE token = ? AND status = ?`, token, InvitePending))
	if errors.Is(err, sql.ErrNoRows) {
		return Member{}, ErrNotFound
	}
	if err != nil {
		return Member{}, err
	}
	if inv.Expired(s.now()) {
		return Member{}, ErrInviteExpired
	}
	if !strings.EqualFold(strings.TrimSpace(p.Email), inv.Email) {
		return Member{}, ErrWrongInvitee
	}
	var status string
	if err := tx.QueryRowContext(ctx, `SELECT status FROM organizations WHERE id = ?`, inv.OrgID).Scan(&status); err != nil {
		return Member{}, database.NotFound(err, ErrNotFound)
	}
	if Status(status) == StatusSuspended {
		return Member{}, ErrSuspended
	}
	if err := s.insertMember(ctx, tx, inv.OrgID, p, inv.Role); err != nil {
		return Member{}, err
	}
	if _, err := tx.ExecContext(ctx, `UPDATE org_invites SET status = ? WHERE id = ?`, InviteAccepted, inv.ID); err != nil {
		return Member{}, fmt.Errorf("accept invite: %w", err)
	}
	m, err := s.member(ctx, tx, inv.OrgID, p.UserID)
	if err != nil {
		return Member{}, err
	}
	return m, tx.Commit()
}
