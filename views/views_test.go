package views

import (
	"bytes"
	"context"
	"encoding/json"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/a-h/templ"

	"github.com/eringen/panelengine/accounts"
	"github.com/eringen/panelengine/blog"
	"github.com/eringen/panelengine/catalog"
	"github.com/eringen/panelengine/paging"
	"github.com/eringen/panelengine/settings"
	"github.com/eringen/panelengine/wizard"
)

func render(t *testing.T, c templ.Component) string {
	t.Helper()
	var buf bytes.Buffer
	if err := c.Render(context.Background(), &buf); err != nil {
		t.Fatalf("render: %v", err)
	}
	return buf.String()
}

func assertContains(t *testing.T, html string, want ...string) {
	t.Helper()
	for _, s := range want {
		if !strings.Contains(html, s) {
			t.Errorf("output missing %q", s)
		}
	}
}

var testPage = Page{
	Site: SiteConfig{Name: "Panel", URL: "https://example.com", Description: "Websites for small businesses"},
	CSRF: "tok<en>",
}

func TestBuildURL(t *testing.T) {
	tests := []struct {
		base     string
		segments []string
		want     string
	}{
		{"https://example.com", nil, "https://example.com"},
		{"https://example.com", []string{"blog", "hello"}, "https://example.com/blog/hello/"},
		{"https://example.com/", []string{"templates"}, "https://example.com/templates/"},
	}
	for _, tt := range tests {
		if got := BuildURL(tt.base, tt.segments...); got != tt.want {
			t.Errorf("BuildURL(%q, %v) = %q, want %q", tt.base, tt.segments, got, tt.want)
		}
	}
}

func TestFilterRelatedPosts(t *testing.T) {
	current := blog.Post{Slug: "a", Tags: []string{"go"}, Category: "dev"}
	posts := []blog.Post{
		{Slug: "a", Tags: []string{"go"}},
		{Slug: "b", Tags: []string{"rust"}},
		{Slug: "c", Tags: []string{"go"}},
		{Slug: "d", Category: "dev"},
		{Slug: "e", Tags: []string{"go"}},
	}
	got := FilterRelatedPosts(current, posts, 2)
	if len(got) != 2 || got[0].Slug != "c" || got[1].Slug != "d" {
		t.Fatalf("got %+v", got)
	}
}

func TestBlogPostingJsonLD(t *testing.T) {
	post := blog.Post{
		Slug:        "hello",
		Title:       "Hello",
		Tags:        []string{"go", "web"},
		CoverImage:  "/uploads/cover.webp",
		PublishedAt: time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC),
		UpdatedAt:   time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC),
	}
	var got map[string]any
	if err := json.Unmarshal([]byte(BlogPostingJsonLD(testPage.Site, post)), &got); err != nil {
		t.Fatal(err)
	}
	if got["url"] != "https://example.com/blog/hello/" {
		t.Errorf("url = %v", got["url"])
	}
	if got["image"] != "https://example.com/uploads/cover.webp" {
		t.Errorf("image = %v", got["image"])
	}
	if got["datePublished"] != "2026-03-01" || got["dateModified"] != "2026-03-02" {
		t.Errorf("dates = %v / %v", got["datePublished"], got["dateModified"])
	}
	if got["keywords"] != "go, web" {
		t.Errorf("keywords = %v", got["keywords"])
	}
}

func TestLayoutEscapes(t *testing.T) {
	p := testPage
	p.Flash = "<b>saved</b>"
	html := render(t, BlogList(BlogListPage{Page: p, Tags: []string{"go"}}))
	assertContains(t, html,
		"<title>Blog | Panel</title>",
		`name="csrf-token" content="tok&lt;en&gt;"`,
		"&lt;b&gt;saved&lt;/b&gt;",
		"No posts yet.",
		`href="/blog/?tag=go"`,
	)
}

func TestPostRendersHTML(t *testing.T) {
	html := render(t, Post(PostPage{
		Page: testPage,
		Post: blog.Post{Slug: "hello", Title: "Hello <world>", UpdatedAt: time.Now()},
		HTML: "<p>body</p>",
	}))
	assertContains(t, html, "Hello &lt;world&gt;", "<p>body</p>", "application/ld+json")
}

func TestTemplatesPager(t *testing.T) {
	p := testPage
	p.Query = url.Values{"category": {"business"}, "page": {"2"}}
	html := render(t, Templates(TemplatesPage{
		Page:  p,
		Query: catalog.TemplateQuery{Category: "business"},
		Result: catalog.TemplateResult{
			Items:      []catalog.Template{{Slug: "shop", Name: "Shop", Price: 49}},
			Page:       paging.New(2, 1, 3),
			Categories: map[string]int{"all": 3, "business": 3},
		},
		Categories: catalog.TemplateCategories,
	}))
	assertContains(t, html,
		`href="/templates/shop/"`,
		"$49.00",
		"All (3)",
		`href="/templates/?category=business&amp;page=1"`,
		`href="/templates/?category=business&amp;page=3"`,
	)
}

func TestOnboardingSteps(t *testing.T) {
	start := render(t, Onboarding(OnboardingPage{Page: testPage}))
	assertContains(t, start, `name="action" value="start"`, `value="restaurant"`)

	ses := &wizard.Session{ID: "s1", Step: 4, Data: wizard.Data{"subdomain": "acme"}}
	step4 := render(t, Onboarding(OnboardingPage{
		Page:     testPage,
		Session:  ses,
		Progress: wizard.ProgressOf(*ses),
		Step:     ses.CurrentStep(),
	}))
	assertContains(t, step4, `hx-get="/console/onboarding/subdomain/"`, `value="acme"`, `value="back"`, `<progress max="100" value="67">`)

	ses = &wizard.Session{ID: "s1", Step: 5, Data: wizard.Data{"plan": "pro"}}
	step5 := render(t, Onboarding(OnboardingPage{Page: testPage, Session: ses, Step: ses.CurrentStep()}))
	assertContains(t, step5, `action="/console/onboarding/create/"`, "$29.00/mo", `value="pro" checked`)
}

func TestSubdomainCheck(t *testing.T) {
	ok := render(t, SubdomainCheck(wizard.SubdomainCheck{Available: true, URL: "https://acme.example.com"}))
	assertContains(t, ok, `class="ok"`, "https://acme.example.com is available")
	taken := render(t, SubdomainCheck(wizard.SubdomainCheck{Reason: "is already taken"}))
	assertContains(t, taken, `class="error"`, "is already taken")
}

func TestAdminUsers(t *testing.T) {
	p := testPage
	p.Nav = "users"
	html := render(t, AdminUsers(UsersPage{
		Page:   p,
		Users:  []accounts.User{{ID: "u1", Email: "a@example.com", Status: accounts.StatusActive, TrustLevel: accounts.TrustBasic}},
		Paging: paging.New(1, 20, 1),
		Counts: map[accounts.Status]int{accounts.StatusActive: 1},
	}))
	assertContains(t, html,
		`<a href="/admin/users/" class="active">Users</a>`,
		`action="/admin/users/u1/status/"`,
		`<option value="BASIC" selected>`,
		`action="/admin/logout/"`,
	)
}

func TestAdminSettingsDeleteUsesOverride(t *testing.T) {
	html := render(t, AdminSettings(SettingsPage{
		Page:        testPage,
		Sections:    []string{"general"},
		Settings:    map[string][]settings.Setting{"general": {{Key: "general.maintenanceMode", Section: "general", Name: "maintenanceMode", Value: false}}},
		Flags:       []settings.Flag{{Key: "beta", Name: "Beta", Enabled: true, Percentage: 50}},
		Preferences: settings.DefaultPreferences(),
	}))
	assertContains(t, html,
		`<select name="general.maintenanceMode">`,
		`action="/admin/settings/flags/beta/"`,
		`name="_method" value="DELETE"`,
		`action="/admin/settings/flags/beta/toggle/"`,
	)
	if strings.Contains(html, "Load defaults") {
		t.Error("init button shown although settings exist")
	}
}
