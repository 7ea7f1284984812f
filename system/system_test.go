package system

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/eringen/panelengine/accounts"
	"github.com/eringen/panelengine/database"
	"github.com/eringen/panelengine/report"
	"github.com/eringen/panelengine/security"
)

func TestStatusAggregates(t *testing.T) {
	db, err := database.Open(filepath.Join(t.TempDir(), "system.db"))
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()
	users, err := accounts.NewStore(db)
	if err != nil {
		t.Fatal(err)
	}
	sec, err := security.NewStore(db)
	if err != nil {
		t.Fatal(err)
	}
	now := time.Date(2026, 6, 1, 8, 0, 0, 0, time.UTC)
	users.SetClock(func() time.Time { return now })
	ctx := context.Background()

	var ids []string
	for _, email := range []string{"a@example.com", "b@example.com", "c@example.com", "d@example.com"} {
		u, err := users.Create(ctx, accounts.NewUser{Email: email, Password: "password123"})
		if err != nil {
			t.Fatal(err)
		}
		ids = append(ids, u.ID)
	}
	if err := users.SetStatus(ctx, ids[0], accounts.StatusFrozen); err != nil {
		t.Fatal(err)
	}
	if _, err := users.StartSession(ctx, ids[1], "10.0.0.1", "ua", time.Hour); err != nil {
		t.Fatal(err)
	}
	if err := sec.RecordLoginAttempt(ctx, security.LoginAttempt{Email: "b@example.com", IP: "10.0.0.1", Success: true, CreatedAt: now}, "ua"); err != nil {
		t.Fatal(err)
	}

	m := NewMonitor(db, users, sec, now.Add(-90*time.Minute))
	st, err := m.Status(ctx, now)
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if st.TotalUsers != 4 {
		t.Errorf("TotalUsers = %d, want 4", st.TotalUsers)
	}
	if st.UsersByStatus[0].Name != "ACTIVE" || st.UsersByStatus[0].Count != 3 || st.UsersByStatus[0].Percent != 75 {
		t.Errorf("UsersByStatus[0] = %+v", st.UsersByStatus[0])
	}
	if st.UsersByStatus[2].Count != 1 {
		t.Errorf("frozen = %+v", st.UsersByStatus[2])
	}
	if st.ActiveSessions != 1 {
		t.Errorf("ActiveSessions = %d", st.ActiveSessions)
	}
	if len(st.SignupsByDay) != 7 || st.SignupsByDay[6].Value != 4 {
		t.Errorf("SignupsByDay = %+v", st.SignupsByDay)
	}
	if st.LoginsByDay[6].Success != 1 {
		t.Errorf("LoginsByDay today = %+v", st.LoginsByDay[6])
	}
	if st.Uptime != 90*time.Minute {
		t.Errorf("Uptime = %v", st.Uptime)
	}
	if st.Health != Healthy {
		t.Errorf("Health = %s (%s)", st.Health, st.DBError)
	}
	if st.Runtime.Goroutines == 0 || st.Runtime.GoVersion == "" {
		t.Errorf("Runtime = %+v", st.Runtime)
	}
}

type failingUsers struct{}

func (failingUsers) CountByStatus(context.Context) (map[accounts.Status]int, error) {
	return nil, errors.New("boom")
}
func (failingUsers) CountActiveSessions(context.Context, time.Time) (int, error) { return 0, nil }
func (failingUsers) SignupsByDay(context.Context, time.Time) ([]report.Point, error) {
	return nil, nil
}
func (failingUsers) TrustDistribution(context.Context) ([]report.Share, error) { return nil, nil }

type noLogins struct{}

func (noLogins) LoginsByDay(context.Context, time.Time) ([]report.SplitPoint, error) {
	return nil, nil
}

func TestStatusPropagatesErrors(t *testing.T) {
	db, err := database.Open(filepath.Join(t.TempDir(), "system.db"))
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()
	m := NewMonitor(db, failingUsers{}, noLogins{}, time.Now())
	if _, err := m.Status(context.Background(), time.Now()); err == nil {
		t.Fatal("expected error from users")
	}
}

func TestHealthDegradedWhenClosed(t *testing.T) {
	db, err := database.Open(filepath.Join(t.TempDir(), "system.db"))
	if err != nil {
		t.Fatal(err)
	}
	m := NewMonitor(db, failingUsers{}, noLogins{}, time.Now())
	db.Close()
	health, _, err := m.Health(context.Background())
	if health != Degraded || err == nil {
		t.Errorf("Health = %s, %v; want degraded with error", health, err)
	}
}
