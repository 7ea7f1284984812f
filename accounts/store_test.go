package accounts

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/eringen/panelengine/database"
	"github.com/eringen/panelengine/paging"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	db, err := database.Open(filepath.Join(t.TempDir(), "accounts.db"))
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	s, err := NewStore(db)
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	return s
}

func mustCreate(t *testing.T, s *Store, email string) User {
	t.Helper()
	u, err := s.Create(context.Background(), NewUser{Email: email, Password: "correct horse"})
	if err != nil {
		t.Fatalf("Create(%s): %v", email, err)
	}
	return u
}

func TestCreateAndGet(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	u := mustCreate(t, s, " Ada@Example.com ")
	if u.Email != "ada@example.com" {
		t.Errorf("Email = %q, want normalized", u.Email)
	}
	if u.Name != "ada" {
		t.Errorf("Name = %q, want derived from email", u.Name)
	}
	if u.Status != StatusActive || u.TrustLevel != TrustUnverified {
		t.Errorf("unexpected defaults: %+v", u)
	}

	got, err := s.Get(ctx, u.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Email != u.Email || !got.CreatedAt.Equal(u.CreatedAt) {
		t.Errorf("Get = %+v, want %+v", got, u)
	}

	if _, err := s.Get(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get missing err = %v, want ErrNotFound", err)
	}
}

func TestCreateValidation(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	mustCreate(t, s, "dup@example.com")

	tests := []struct {
		name string
		in   NewUser
		want error
	}{
		{"duplicate", NewUser{Email: "DUP@example.com", Password: "longenough"}, ErrEmailTaken},
		{"bad email", NewUser{Email: "not-an-email", Password: "longenough"}, ErrInvalidEmail},
		{"short password", NewUser{Email: "x@example.com", Password: "short"}, ErrWeakPassword},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := s.Create(ctx, tt.in); !errors.Is(err, tt.want) {
				t.Errorf("err = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestAuthenticate(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	u := mustCreate(t, s, "auth@example.com")

	if _, err := s.Authenticate(ctx, "auth@example.com", "correct horse"); err != nil {
		t.Fatalf("Authenticate: %v", err)
	}
	if _, err := s.Authenticate(ctx, "auth@example.com", "wrong"); !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("wrong password err = %v", err)
	}
	if _, err := s.Authenticate(ctx, "nobody@example.com", "x"); !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("unknown user err = %v", err)
	}

	if err := s.SetStatus(ctx, u.ID, StatusFrozen); err != nil {
		t.Fatalf("SetStatus: %v", err)
	}
	if _, err := s.Authenticate(ctx, "auth@example.com", "correct horse"); !errors.Is(err, ErrAccountLocked) {
		t.Errorf("frozen account err = %v, want ErrAccountLocked", err)
	}
}

func TestListFiltersAndPages(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	base := time.Date(2026, 2, 1, 12, 0, 0, 0, time.UTC)
	for i, email := range []string{"a@example.com", "b@example.com", "c@example.com", "carol@test.org"} {
		at := base.Add(time.Duration(i) * time.Hour)
		s.SetClock(func() time.Time { return at })
		mustCreate(t, s, email)
	}
	c, _ := s.FindByEmail(ctx, "c@example.com")
	if err := s.SetStatus(ctx, c.ID, StatusSuspended); err != nil {
		t.Fatal(err)
	}

	users, p, err := s.List(ctx, Filter{}, paging.New(1, 3, 0))
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if p.Total != 4 || len(users) != 3 {
		t.Fatalf("total=%d len=%d, want 4 and 3", p.Total, len(users))
	}
	if users[0].Email != "carol@test.org" {
		t.Errorf("newest first: got %s", users[0].Email)
	}

	users, p, err = s.List(ctx, Filter{Status: StatusSuspended}, paging.New(1, 10, 0))
	if err != nil || p.Total != 1 || users[0].Email != "c@example.com" {
		t.Errorf("status filter: %v %+v %v", users, p, err)
	}

	users, _, err = s.List(ctx, Filter{Search: "CAROL"}, paging.New(1, 10, 0))
	if err != nil || len(users) != 1 {
		t.Errorf("search filter: %v %v", users, err)
	}
}

func TestAggregates(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	now := time.Date(2026, 3, 5, 9, 0, 0, 0, time.UTC)
	s.SetClock(func() time.Time { return now })

	a := mustCreate(t, s, "a@example.com")
	b := mustCreate(t, s, "b@example.com")
	mustCreate(t, s, "c@example.com")
	mustCreate(t, s, "d@example.com")

	if err := s.SetTwoFactor(ctx, a.ID, true); err != nil {
		t.Fatal(err)
	}
	if err := s.SetTrustLevel(ctx, a.ID, TrustSecure); err != nil {
		t.Fatal(err)
	}
	if err := s.SetStatus(ctx, b.ID, StatusSuspended); err != nil {
		t.Fatal(err)
	}
	if err := s.SetStatus(ctx, b.ID, "BOGUS"); !errors.Is(err, ErrInvalidStatus) {
		t.Errorf("invalid status err = %v", err)
	}

	total, _ := s.CountTotal(ctx)
	twoFA, _ := s.CountTwoFactor(ctx)
	if total != 4 || twoFA != 1 {
		t.Errorf("total=%d twoFA=%d", total, twoFA)
	}

	byStatus, err := s.CountByStatus(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if byStatus[StatusActive] != 3 || byStatus[StatusSuspended] != 1 || byStatus[StatusFrozen] != 0 {
		t.Errorf("CountByStatus = %v", byStatus)
	}

	dist, err := s.TrustDistribution(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(dist) != 4 || dist[0].Count != 3 || dist[0].Percent != 75 || dist[3].Count != 1 {
		t.Errorf("TrustDistribution = %+v", dist)
	}

	days, err := s.SignupsByDay(ctx, now.AddDate(0, 0, -1))
	if err != nil {
		t.Fatal(err)
	}
	if len(days) != 1 || days[0].Label != "2026-03-05" || days[0].Value != 4 {
		t.Errorf("SignupsByDay = %+v", days)
	}
}

func TestSessions(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	now := time.Date(2026, 3, 5, 9, 0, 0, 0, time.UTC)
	s.SetClock(func() time.Time { return now })
	u := mustCreate(t, s, "sess@example.com")

	short, err := s.StartSession(ctx, u.ID, "10.0.0.1", "test", time.Minute)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := s.StartSession(ctx, u.ID, "10.0.0.1", "test", time.Hour); err != nil {
		t.Fatal(err)
	}
	ended, err := s.StartSession(ctx, u.ID, "10.0.0.2", "test", time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	if err := s.EndSession(ctx, ended.ID); err != nil {
		t.Fatal(err)
	}
	if err := s.EndSession(ctx, ended.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("double end err = %v", err)
	}

	n, err := s.CountActiveSessions(ctx, now.Add(10*time.Minute))
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Errorf("active sessions = %d, want 1 (short=%s expired)", n, short.ID)
	}

	if got, err := s.ActiveSession(ctx, short.ID); err != nil || got.UserID != u.ID {
		t.Errorf("ActiveSession(short) = %+v, %v", got, err)
	}
	if _, err := s.ActiveSession(ctx, ended.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("ActiveSession(ended) err = %v", err)
	}
	now = now.Add(2 * time.Minute)
	if _, err := s.ActiveSession(ctx, short.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("ActiveSession(expired) err = %v", err)
	}
}
