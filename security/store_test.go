package security

import (
	"context"
	"errors"
	"net/url"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/eringen/panelengine/database"
	"github.com/eringen/panelengine/paging"
)

var testNow = time.Date(2026, 4, 10, 12, 0, 0, 0, time.UTC)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	db, err := database.Open(filepath.Join(t.TempDir(), "security.db"))
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	s, err := NewStore(db)
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	s.SetClock(func() time.Time { return testNow })
	return s
}

type fakeUsers struct{ total, twoFA int }

func (f fakeUsers) CountTotal(context.Context) (int, error)     { return f.total, nil }
func (f fakeUsers) CountTwoFactor(context.Context) (int, error) { return f.twoFA, nil }

func logEvent(t *testing.T, s *Store, a Action, st Status, ago time.Duration) {
	t.Helper()
	if _, err := s.LogEvent(context.Background(), Event{Action: a, Status: st, IP: "10.0.0.1", CreatedAt: testNow.Add(-ago)}); err != nil {
		t.Fatalf("LogEvent: %v", err)
	}
}

func attempt(t *testing.T, s *Store, ip string, ok bool, ago time.Duration) {
	t.Helper()
	err := s.RecordLoginAttempt(context.Background(), LoginAttempt{Email: "x@example.com", IP: ip, Success: ok, CreatedAt: testNow.Add(-ago)}, "ua")
	if err != nil {
		t.Fatalf("RecordLoginAttempt: %v", err)
	}
}

func TestLogEventRejectsUnknownValues(t *testing.T) {
	s := newTestStore(t)
	_, err := s.LogEvent(context.Background(), Event{Action: "DANCE", Status: StatusSuccess})
	if !errors.Is(err, ErrInvalidEvent) {
		t.Fatalf("err = %v, want ErrInvalidEvent", err)
	}
}

func TestOverview(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	logEvent(t, s, ActionPasswordChange, StatusSuccess, time.Hour)
	logEvent(t, s, ActionAccountLock, StatusSuccess, 2*time.Hour)
	logEvent(t, s, ActionAPIKeyCreate, StatusBlocked, 3*time.Hour)
	logEvent(t, s, ActionLogout, StatusSuccess, 10*24*time.Hour)
	logEvent(t, s, ActionLogout, StatusSuccess, 40*24*time.Hour)

	attempt(t, s, "203.0.113.5", false, time.Hour)
	attempt(t, s, "203.0.113.5", false, 2*time.Hour)
	attempt(t, s, "203.0.113.9", false, 3*24*time.Hour)
	attempt(t, s, "203.0.113.9", true, 3*24*time.Hour)

	ov, err := s.Overview(ctx, testNow, fakeUsers{total: 8, twoFA: 3})
	if err != nil {
		t.Fatalf("Overview: %v", err)
	}

	// Each login attempt also writes a LOGIN event.
	wantWindows := []WindowCount{{"24h", 5}, {"7d", 7}, {"30d", 8}}
	if diff := cmp.Diff(wantWindows, ov.EventWindows); diff != "" {
		t.Errorf("EventWindows mismatch (-want +got):\n%s", diff)
	}
	if ov.FailedLogins24h != 2 {
		t.Errorf("FailedLogins24h = %d, want 2", ov.FailedLogins24h)
	}
	if ov.Blocked24h != 1 {
		t.Errorf("Blocked24h = %d, want 1", ov.Blocked24h)
	}
	if len(ov.LoginsByDay) != 7 {
		t.Fatalf("LoginsByDay len = %d, want 7", len(ov.LoginsByDay))
	}
	last := ov.LoginsByDay[6]
	if last.Label != "2026-04-10" || last.Failed != 2 || last.Success != 0 {
		t.Errorf("today bucket = %+v", last)
	}
	if b := ov.LoginsByDay[3]; b.Success != 1 || b.Failed != 1 {
		t.Errorf("three days ago bucket = %+v", b)
	}
	wantIPs := []IPCount{{"203.0.113.5", 2}, {"203.0.113.9", 1}}
	if diff := cmp.Diff(wantIPs, ov.TopFailedIPs); diff != "" {
		t.Errorf("TopFailedIPs mismatch (-want +got):\n%s", diff)
	}
	for _, e := range ov.Suspicious {
		if !e.Suspicious() {
			t.Errorf("non-suspicious event listed: %+v", e)
		}
	}
	if len(ov.Suspicious) != 5 {
		t.Errorf("Suspicious len = %d, want 5", len(ov.Suspicious))
	}
	if ov.TwoFactorPercent != 38 {
		t.Errorf("TwoFactorPercent = %d, want 38", ov.TwoFactorPercent)
	}
}

func TestEventsPaging(t *testing.T) {
	s := newTestStore(t)
	for i := 0; i < 25; i++ {
		logEvent(t, s, ActionLogin, StatusSuccess, time.Duration(i)*time.Minute)
	}
	logEvent(t, s, ActionLogin, StatusFailure, time.Minute)
	logEvent(t, s, ActionLogin, StatusSuccess, 9*24*time.Hour)

	page, err := s.Events(context.Background(), EventFilter{Status: StatusSuccess}, paging.New(2, EventPageSize, 0))
	if err != nil {
		t.Fatalf("Events: %v", err)
	}
	if page.Page.Total != 25 {
		t.Errorf("Total = %d, want 25 (old event outside 7 days)", page.Page.Total)
	}
	if len(page.Events) != 5 {
		t.Errorf("len = %d, want 5", len(page.Events))
	}
	if page.Page.First() != 21 || page.Page.Last() != 25 {
		t.Errorf("range %d-%d", page.Page.First(), page.Page.Last())
	}

	page, err = s.Events(context.Background(), EventFilter{Days: 30}, paging.New(1, EventPageSize, 0))
	if err != nil {
		t.Fatal(err)
	}
	if page.Page.Total != 27 {
		t.Errorf("30 day total = %d, want 27", page.Page.Total)
	}
}

func TestLogsMergesSources(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	for i := 0; i < 4; i++ {
		logEvent(t, s, ActionLogout, StatusSuccess, time.Duration(2*i)*time.Minute)
		if err := s.LogAccess(ctx, Access{Method: "GET", Path: "/admin/", StatusCode: 200, IP: "10.0.0.2", CreatedAt: testNow.Add(-time.Duration(2*i+1) * time.Minute)}); err != nil {
			t.Fatal(err)
		}
	}

	page, err := s.Logs(ctx, LogFilter{Type: "bogus"}, paging.New(2, 3, 0))
	if err != nil {
		t.Fatalf("Logs: %v", err)
	}
	if page.Filter.Type != LogAll {
		t.Errorf("Type = %q, want all", page.Filter.Type)
	}
	if page.Page.Total != 8 {
		t.Errorf("Total = %d, want 8", page.Page.Total)
	}
	var kinds []LogType
	for _, e := range page.Entries {
		kinds = append(kinds, e.Kind)
	}
	// Minutes 3, 4, 5 ago: access, security, access.
	if diff := cmp.Diff([]LogType{LogAccess, LogSecurity, LogAccess}, kinds); diff != "" {
		t.Errorf("kinds mismatch (-want +got):\n%s", diff)
	}
	for i := 1; i < len(page.Entries); i++ {
		if page.Entries[i].CreatedAt.After(page.Entries[i-1].CreatedAt) {
			t.Errorf("entries not sorted newest first")
		}
	}

	page, err = s.Logs(ctx, LogFilter{Type: LogAccess, Search: "/ADMIN"}, paging.New(1, 30, 0))
	if err != nil {
		t.Fatal(err)
	}
	if page.Page.Total != 4 || len(page.Entries) != 4 || page.Entries[0].Access == nil {
		t.Errorf("access page = %+v", page.Page)
	}
	if len(page.TopActions) != 1 || page.TopActions[0].Action != "LOGOUT" || page.TopActions[0].Count != 4 {
		t.Errorf("TopActions = %+v", page.TopActions)
	}
}

func TestLogsHugePage(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	logEvent(t, s, ActionLogout, StatusSuccess, time.Minute)

	q := url.Values{"page": {"1000000000000000000"}}
	page, err := s.Logs(ctx, LogFilter{}, paging.Parse(q, LogPageSize, LogPageSize))
	if err != nil {
		t.Fatalf("Logs: %v", err)
	}
	if len(page.Entries) != 0 || page.Page.Total != 1 {
		t.Errorf("huge page = %d entries, total %d; want 0 entries, total 1", len(page.Entries), page.Page.Total)
	}
}

func TestFailedLoginsSinceAndCleanup(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	attempt(t, s, "198.51.100.1", false, time.Minute)
	attempt(t, s, "198.51.100.1", false, 30*time.Minute)
	attempt(t, s, "198.51.100.1", true, time.Minute)

	n, err := s.FailedLoginsSince(ctx, "198.51.100.1", testNow.Add(-15*time.Minute))
	if err != nil || n != 1 {
		t.Errorf("FailedLoginsSince = %d, %v; want 1", n, err)
	}

	removed, err := s.Cleanup(ctx, testNow.Add(-10*time.Minute))
	if err != nil {
		t.Fatal(err)
	}
	if removed != 2 {
		t.Errorf("removed = %d, want 2 (one attempt and its event)", removed)
	}
}
