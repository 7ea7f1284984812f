package wizard

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/eringen/panelengine/database"
)

var testNow = time.Date(2026, 4, 10, 12, 0, 0, 0, time.UTC)

func newTestStore(t *testing.T) (*Store, *time.Time) {
	t.Helper()
	db, err := database.Open(filepath.Join(t.TempDir(), "wizard.db"))
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	s, err := NewStore(db, "sites.test")
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	now := testNow
	s.SetClock(func() time.Time { return now })
	return s, &now
}

var answers = []Data{
	{"businessName": "Luigi's"},
	{"colorScheme": "sunset"},
	{"templateStyle": "classic"},
	{"subdomain": "  Luigis "},
	{"plan": "starter"},
}

// walk starts a restaurant session and advances it to the plan step.
func walk(t *testing.T, s *Store) Session {
	t.Helper()
	ctx := context.Background()
	ses, err := s.Start(ctx, "restaurant")
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	for _, d := range answers {
		if ses, err = s.Advance(ctx, ses.ID, d); err != nil {
			t.Fatalf("Advance at step %d: %v", ses.Step, err)
		}
	}
	return ses
}

func TestSubdomainValidation(t *testing.T) {
	tests := []struct {
		in string
		ok bool
	}{
		{"luigis", true},
		{"my-site-2", true},
		{"ab", false},
		{"-abc", false},
		{"abc-", false},
		{"has space", false},
		{"admin", false},
		{"console", false},
		{"abcdefghijabcdefghijabcdefghijx", false},
	}
	for _, tt := range tests {
		err := ValidateSubdomain(tt.in)
		if (err == nil) != tt.ok {
			t.Errorf("ValidateSubdomain(%q) = %v, want ok=%v", tt.in, err, tt.ok)
		}
		if err != nil && !errors.Is(err, ErrInvalidSubdomain) {
			t.Errorf("ValidateSubdomain(%q) error does not wrap ErrInvalidSubdomain", tt.in)
		}
	}
	if got := NormalizeSubdomain("  MySite "); got != "mysite" {
		t.Errorf("NormalizeSubdomain = %q", got)
	}
}

func TestCanProceed(t *testing.T) {
	tests := []struct {
		step  int
		data  Data
		field string
	}{
		{1, Data{"businessType": "restaurant"}, "businessName"},
		{1, Data{"businessType": "spaceship", "businessName": "x"}, "businessType"},
		{1, Data{"businessType": "restaurant", "businessName": " Luigi "}, ""},
		{2, Data{"colorScheme": "neon"}, "colorScheme"},
		{2, Data{"colorScheme": "ocean"}, ""},
		{3, Data{}, "templateStyle"},
		{4, Data{"subdomain": "www"}, "subdomain"},
		{5, Data{"plan": "enterprise"}, "plan"},
		{5, Data{"plan": "pro"}, ""},
	}
	for _, tt := range tests {
		err := CanProceed(tt.step, tt.data)
		if tt.field == "" {
			if err != nil {
				t.Errorf("CanProceed(%d, %v) = %v, want nil", tt.step, tt.data, err)
			}
			continue
		}
		var se *StepError
		if !errors.As(err, &se) || se.Field != tt.field || se.Step != tt.step {
			t.Errorf("CanProceed(%d, %v) = %v, want StepError on %s", tt.step, tt.data, err, tt.field)
		}
	}
	if err := CanProceed(9, nil); !errors.Is(err, ErrInvalidStep) {
		t.Errorf("CanProceed(9) = %v", err)
	}
}

func TestProgress(t *testing.T) {
	want := []int{17, 33, 50, 67, 83, 100}
	for i, pct := range want {
		got := ProgressOf(Session{Step: i + 1})
		if got.Percent != pct || got.TotalSteps != TotalSteps {
			t.Errorf("step %d progress = %+v, want %d%%", i+1, got, pct)
		}
	}
}

func TestDefaultPages(t *testing.T) {
	got := DefaultPages("restaurant")
	want := []PageSpec{{"", "Home"}, {"about", "About"}, {"menu", "Menu"}, {"contact", "Contact"}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("DefaultPages(restaurant) (-want +got):\n%s", diff)
	}
	if got := DefaultPages("other"); len(got) != 3 {
		t.Errorf("DefaultPages(other) = %v", got)
	}
}

func TestSessionFlow(t *testing.T) {
	s, now := newTestStore(t)
	ctx := context.Background()

	if _, err := s.Start(ctx, "spaceship"); !errors.Is(err, ErrInvalidBusinessType) {
		t.Errorf("Start unknown type: %v", err)
	}
	ses, err := s.Start(ctx, "ecommerce")
	if err != nil {
		t.Fatalf("Start: %v", err)
	}

	_, err = s.Advance(ctx, ses.ID, Data{"businessName": ""})
	if !IsStepError(err) {
		t.Fatalf("Advance without name = %v, want StepError", err)
	}
	*now = now.Add(time.Minute)
	ses, err = s.Advance(ctx, ses.ID, Data{"businessName": "Shop", "tagline": "best"})
	if err != nil || ses.Step != 2 {
		t.Fatalf("Advance = %+v, %v", ses, err)
	}
	if _, err := s.Update(ctx, ses.ID, 3, nil); !errors.Is(err, ErrInvalidStep) {
		t.Errorf("Update forward = %v, want ErrInvalidStep", err)
	}
	ses, err = s.Update(ctx, ses.ID, 1, Data{"businessName": "Shop Two"})
	if err != nil || ses.Step != 1 {
		t.Fatalf("Update back = %+v, %v", ses, err)
	}
	if ses.Data.String("tagline") != "best" || ses.Data.String("businessName") != "Shop Two" {
		t.Errorf("merge lost data: %v", ses.Data)
	}
	ses, err = s.Update(ctx, ses.ID, 1, Data{"businessType": "fitness"})
	if err != nil || ses.BusinessType != "fitness" {
		t.Errorf("business type change = %+v, %v", ses, err)
	}
	if ses, _ = s.Back(ctx, ses.ID); ses.Step != 1 {
		t.Errorf("Back at step 1 = %d", ses.Step)
	}

	got, err := s.Get(ctx, ses.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if !got.UpdatedAt.Equal(testNow.Add(time.Minute)) || !got.CreatedAt.Equal(testNow) {
		t.Errorf("timestamps = %v / %v", got.CreatedAt, got.UpdatedAt)
	}

	if err := s.Reset(ctx, ses.ID); err != nil {
		t.Fatalf("Reset: %v", err)
	}
	if _, err := s.Get(ctx, ses.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get after reset = %v", err)
	}
}

func TestCreateWebsite(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	ses := walk(t, s)
	if ses.Step != LastInputStep || ses.Data.String("subdomain") != "luigis" {
		t.Fatalf("after walk: %+v", ses)
	}
	if ses, _ = s.SetLogo(ctx, ses.ID, "logo.jpg"); ses.Data.String("logo") != "logo.jpg" {
		t.Errorf("SetLogo data = %v", ses.Data)
	}

	check, err := s.CheckSubdomain(ctx, "Luigis")
	if err != nil || !check.Available || check.URL != "https://luigis.sites.test" {
		t.Errorf("CheckSubdomain before = %+v, %v", check, err)
	}

	w, err := s.CreateWebsite(ctx, ses.ID)
	if err != nil {
		t.Fatalf("CreateWebsite: %v", err)
	}
	if w.Subdomain != "luigis" || w.Name != "Luigi's" || w.Plan != "starter" || w.Logo != "logo.jpg" {
		t.Errorf("website = %+v", w)
	}
	pages, err := s.Pages(ctx, w.ID)
	if err != nil {
		t.Fatalf("Pages: %v", err)
	}
	var slugs []string
	for _, p := range pages {
		slugs = append(slugs, p.Slug)
	}
	if diff := cmp.Diff([]string{"", "about", "menu", "contact"}, slugs); diff != "" {
		t.Errorf("page slugs (-want +got):\n%s", diff)
	}

	done, _ := s.Get(ctx, ses.ID)
	if !done.Completed || done.Step != TotalSteps || done.WebsiteID != w.ID {
		t.Errorf("session after create = %+v", done)
	}
	if _, err := s.Advance(ctx, ses.ID, nil); !errors.Is(err, ErrCompleted) {
		t.Errorf("Advance completed = %v", err)
	}

	check, _ = s.CheckSubdomain(ctx, "luigis")
	if check.Available || check.Reason == "" {
		t.Errorf("CheckSubdomain after = %+v", check)
	}
	byName, err := s.WebsiteBySubdomain(ctx, "LUIGIS")
	if err != nil || byName.ID != w.ID {
		t.Errorf("WebsiteBySubdomain = %+v, %v", byName, err)
	}

	// A second visitor who picked the same name before it was taken.
	other, _ := s.Start(ctx, "restaurant")
	for _, d := range answers[:3] {
		other, _ = s.Advance(ctx, other.ID, d)
	}
	_, err = s.Advance(ctx, other.ID, answers[3])
	var se *StepError
	if !errors.As(err, &se) || se.Field != "subdomain" {
		t.Errorf("Advance with taken subdomain = %v", err)
	}
}

func TestCreateWebsiteRequiresPlanStep(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()
	ses, _ := s.Start(ctx, "blog")
	if _, err := s.CreateWebsite(ctx, ses.ID); !IsStepError(err) {
		t.Errorf("CreateWebsite at step 1 = %v", err)
	}
	if _, err := s.CreateWebsite(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("CreateWebsite missing = %v", err)
	}
}

func TestAnalyticsAndExpire(t *testing.T) {
	s, now := newTestStore(t)
	ctx := context.Background()

	done := walk(t, s)
	if _, err := s.CreateWebsite(ctx, done.ID); err != nil {
		t.Fatal(err)
	}
	s.Start(ctx, "restaurant")
	second, _ := s.Start(ctx, "blog")
	s.Advance(ctx, second.ID, Data{"businessName": "Notes"})

	a, err := s.Analytics(ctx)
	if err != nil {
		t.Fatalf("Analytics: %v", err)
	}
	if a.TotalSessions != 3 || a.CompletedWebsites != 1 || a.AbandonedSessions != 2 {
		t.Errorf("counts = %+v", a)
	}
	if a.ConversionRate != 33.3 {
		t.Errorf("ConversionRate = %v", a.ConversionRate)
	}
	if a.BusinessTypes[0] != (Count{"restaurant", 2}) {
		t.Errorf("top business type = %+v", a.BusinessTypes)
	}
	wantFunnel := []Count{{"business", 1}, {"design", 1}, {"template", 0}, {"domain", 0}, {"plan", 0}, {"complete", 1}}
	if diff := cmp.Diff(wantFunnel, a.Funnel); diff != "" {
		t.Errorf("funnel (-want +got):\n%s", diff)
	}

	*now = now.Add(48 * time.Hour)
	fresh, _ := s.Start(ctx, "tech")
	n, err := s.ExpireStale(ctx, now.Add(-24*time.Hour))
	if err != nil || n != 2 {
		t.Errorf("ExpireStale = %d, %v", n, err)
	}
	if _, err := s.Get(ctx, fresh.ID); err != nil {
		t.Errorf("fresh session expired: %v", err)
	}
	if _, err := s.Get(ctx, done.ID); err != nil {
		t.Errorf("completed session expired: %v", err)
	}
}
