package orgs

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/eringen/panelengine/database"
	"github.com/eringen/panelengine/paging"
)

var testNow = time.Date(2026, 4, 10, 12, 0, 0, 0, time.UTC)

func newTestStore(t *testing.T) (*Store, *time.Time) {
	t.Helper()
	db, err := database.Open(filepath.Join(t.TempDir(), "orgs.db"))
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	s, err := NewStore(db)
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	now := testNow
	s.SetClock(func() time.Time { return now })
	return s, &now
}

var (
	ada   = Person{UserID: "u-ada", Email: "ada@example.com", Name: "Ada"}
	grace = Person{UserID: "u-grace", Email: "grace@example.com", Name: "Grace"}
	linus = Person{UserID: "u-linus", Email: "linus@example.com", Name: "Linus"}
)

func mustOrg(t *testing.T, s *Store, name string) Organization {
	t.Helper()
	o, err := s.Create(context.Background(), NewOrganization{Name: name, Owner: ada})
	if err != nil {
		t.Fatalf("Create(%s): %v", name, err)
	}
	return o
}

func TestCreateDerivesUniqueSlug(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	a := mustOrg(t, s, "Acme Corp")
	b := mustOrg(t, s, "Acme  corp!")
	if a.Slug != "acme-corp" || b.Slug != "acme-corp-2" {
		t.Errorf("slugs = %q, %q", a.Slug, b.Slug)
	}
	if a.MemberCount != 1 || a.Plan != "free" || a.Status != StatusActive {
		t.Errorf("unexpected org: %+v", a)
	}

	if _, err := s.Create(ctx, NewOrganization{Name: "Other", Slug: "acme-corp"}); !errors.Is(err, ErrSlugTaken) {
		t.Errorf("explicit duplicate slug: err = %v, want ErrSlugTaken", err)
	}
	if _, err := s.Create(ctx, NewOrganization{Name: "  "}); !errors.Is(err, ErrInvalidName) {
		t.Errorf("blank name: err = %v", err)
	}

	got, err := s.GetBySlug(ctx, "acme-corp-2")
	if err != nil {
		t.Fatalf("GetBySlug: %v", err)
	}
	if diff := cmp.Diff(b, got); diff != "" {
		t.Errorf("GetBySlug mismatch (-want +got):\n%s", diff)
	}
}

func TestListAndStatus(t *testing.T) {
	s, now := newTestStore(t)
	ctx := context.Background()

	for _, name := range []string{"Alpha", "Beta", "Gamma"} {
		mustOrg(t, s, name)
		*now = now.Add(time.Minute)
	}
	beta, _ := s.GetBySlug(ctx, "beta")
	if err := s.Suspend(ctx, beta.ID); err != nil {
		t.Fatalf("Suspend: %v", err)
	}

	list, p, err := s.List(ctx, Filter{}, paging.New(1, 2, 0))
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if p.Total != 3 || len(list) != 2 || list[0].Slug != "gamma" {
		t.Errorf("List page 1 = %d items, total %d, first %q", len(list), p.Total, list[0].Slug)
	}

	list, _, err = s.List(ctx, Filter{Status: StatusSuspended}, paging.New(1, 20, 0))
	if err != nil || len(list) != 1 || list[0].Slug != "beta" {
		t.Errorf("List suspended = %+v, %v", list, err)
	}
	list, _, _ = s.List(ctx, Filter{Search: "ALP"}, paging.New(1, 20, 0))
	if len(list) != 1 || list[0].Name != "Alpha" {
		t.Errorf("List search = %+v", list)
	}

	counts, err := s.CountByStatus(ctx)
	if err != nil {
		t.Fatalf("CountByStatus: %v", err)
	}
	if diff := cmp.Diff(map[Status]int{StatusActive: 2, StatusSuspended: 1}, counts); diff != "" {
		t.Errorf("CountByStatus (-want +got):\n%s", diff)
	}

	if err := s.Rename(ctx, "missing", "x"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Rename missing: %v", err)
	}
}

func TestMembers(t *testing.T) {
	s, now := newTestStore(t)
	ctx := context.Background()
	o := mustOrg(t, s, "Acme")

	*now = now.Add(time.Hour)
	if _, err := s.AddMember(ctx, o.ID, linus, RoleViewer); err != nil {
		t.Fatalf("AddMember: %v", err)
	}
	*now = now.Add(time.Hour)
	if _, err := s.AddMember(ctx, o.ID, grace, RoleAdmin); err != nil {
		t.Fatalf("AddMember: %v", err)
	}
	if _, err := s.AddMember(ctx, o.ID, grace, RoleMember); !errors.Is(err, ErrAlreadyMember) {
		t.Errorf("duplicate AddMember: %v", err)
	}
	if _, err := s.AddMember(ctx, o.ID, Person{UserID: "x"}, "GOD"); !errors.Is(err, ErrInvalidRole) {
		t.Errorf("invalid role: %v", err)
	}

	members, err := s.ListMembers(ctx, o.ID)
	if err != nil {
		t.Fatalf("ListMembers: %v", err)
	}
	var order []Role
	for _, m := range members {
		order = append(order, m.Role)
	}
	if diff := cmp.Diff([]Role{RoleOwner, RoleAdmin, RoleViewer}, order); diff != "" {
		t.Errorf("member order (-want +got):\n%s", diff)
	}

	if err := s.UpdateRole(ctx, o.ID, ada.UserID, RoleAdmin); !errors.Is(err, ErrLastOwner) {
		t.Errorf("demote last owner: %v", err)
	}
	if err := s.RemoveMember(ctx, o.ID, ada.UserID); !errors.Is(err, ErrLastOwner) {
		t.Errorf("remove last owner: %v", err)
	}
	if err := s.UpdateRole(ctx, o.ID, grace.UserID, RoleOwner); err != nil {
		t.Fatalf("promote: %v", err)
	}
	if err := s.RemoveMember(ctx, o.ID, ada.UserID); err != nil {
		t.Fatalf("remove owner with successor: %v", err)
	}
	if err := s.RemoveMember(ctx, o.ID, ada.UserID); !errors.Is(err, ErrNotFound) {
		t.Errorf("remove twice: %v", err)
	}

	counts, err := s.RoleCounts(ctx, o.ID)
	if err != nil {
		t.Fatalf("RoleCounts: %v", err)
	}
	want := map[Role]int{RoleOwner: 1, RoleAdmin: 0, RoleMember: 0, RoleViewer: 1}
	if diff := cmp.Diff(want, counts); diff != "" {
		t.Errorf("RoleCounts (-want +got):\n%s", diff)
	}
}

func TestInvites(t *testing.T) {
	s, now := newTestStore(t)
	ctx := context.Background()
	o := mustOrg(t, s, "Acme")

	if _, err := s.CreateInvite(ctx, o.ID, "ADA@example.com", RoleMember, "admin"); !errors.Is(err, ErrAlreadyMember) {
		t.Errorf("invite existing member: %v", err)
	}
	inv, err := s.CreateInvite(ctx, o.ID, "Grace@Example.com", RoleAdmin, "admin")
	if err != nil {
		t.Fatalf("CreateInvite: %v", err)
	}
	if inv.Email != "grace@example.com" || !inv.ExpiresAt.Equal(testNow.Add(InviteTTL)) || inv.Token == "" {
		t.Errorf("unexpected invite: %+v", inv)
	}
	if _, err := s.CreateInvite(ctx, o.ID, "grace@example.com", RoleAdmin, "admin"); !errors.Is(err, ErrInviteExists) {
		t.Errorf("duplicate invite: %v", err)
	}

	found, err := s.InviteByToken(ctx, inv.Token)
	if err != nil || found.ID != inv.ID {
		t.Fatalf("InviteByToken = %+v, %v", found, err)
	}
	if _, err := s.AcceptInvite(ctx, inv.Token, linus); !errors.Is(err, ErrWrongInvitee) {
		t.Errorf("accept with other email: %v", err)
	}
	m, err := s.AcceptInvite(ctx, inv.Token, grace)
	if err != nil {
		t.Fatalf("AcceptInvite: %v", err)
	}
	if m.Role != RoleAdmin || m.OrgID != o.ID {
		t.Errorf("member = %+v", m)
	}
	if _, err := s.AcceptInvite(ctx, inv.Token, grace); !errors.Is(err, ErrNotFound) {
		t.Errorf("reuse token: %v", err)
	}
	if _, err := s.InviteByToken(ctx, inv.Token); !errors.Is(err, ErrNotFound) {
		t.Errorf("accepted invite still found: %v", err)
	}

	late, err := s.CreateInvite(ctx, o.ID, "linus@example.com", RoleMember, "admin")
	if err != nil {
		t.Fatalf("CreateInvite: %v", err)
	}
	revoked, _ := s.CreateInvite(ctx, o.ID, "ken@example.com", RoleMember, "admin")
	if err := s.RevokeInvite(ctx, o.ID, revoked.ID); err != nil {
		t.Fatalf("RevokeInvite: %v", err)
	}
	pending, err := s.ListInvites(ctx, o.ID)
	if err != nil {
		t.Fatalf("ListInvites: %v", err)
	}
	if len(pending) != 1 || pending[0].ID != late.ID {
		t.Errorf("pending = %+v", pending)
	}

	*now = now.Add(InviteTTL)
	if _, err := s.AcceptInvite(ctx, late.Token, linus); !errors.Is(err, ErrInviteExpired) {
		t.Errorf("expired invite: %v", err)
	}
	if pending, _ := s.ListInvites(ctx, o.ID); len(pending) != 0 {
		t.Errorf("expired invites still listed: %+v", pending)
	}
}

func TestDeleteCascades(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()
	o := mustOrg(t, s, "Acme")
	if _, err := s.CreateInvite(ctx, o.ID, "grace@example.com", RoleMember, "admin"); err != nil {
		t.Fatal(err)
	}
	if err := s.Delete(ctx, o.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	var n int
	s.db.QueryRow(`SELECT (SELECT COUNT(*) FROM org_members) + (SELECT COUNT(*) FROM org_invites)`).Scan(&n)
	if n != 0 {
		t.Errorf("%d member/invite rows survived delete", n)
	}
	if _, err := s.Get(ctx, o.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get after delete: %v", err)
	}
}
