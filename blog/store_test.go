package blog

import (
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap"

	"github.com/eringen/panelengine/database"
	"github.com/eringen/panelengine/paging"
)

var testNow = time.Date(2026, 4, 10, 12, 0, 0, 0, time.UTC)

func newTestStore(t *testing.T) (*Store, *time.Time) {
	t.Helper()
	db, err := database.Open(filepath.Join(t.TempDir(), "blog.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	s, err := NewStore(db)
	require.NoError(t, err)
	now := testNow
	s.SetClock(func() time.Time { return now })
	return s, &now
}

func TestSaveAndGet(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	_, err := s.Save(ctx, Post{Title: "  "})
	assert.ErrorIs(t, err, ErrInvalidPost)
	_, err = s.Save(ctx, Post{Title: "x", Status: "LIVE"})
	assert.ErrorIs(t, err, ErrInvalidStatus)

	p, err := s.Save(ctx, Post{
		Title:    "Hello, Wörld!",
		Summary:  "first",
		Content:  "# Hi",
		Category: " News ",
		Tags:     []string{" Go ", "web", "go", ""},
		Status:   StatusPublished,
	})
	require.NoError(t, err)
	assert.Equal(t, "hello-world", p.Slug)
	assert.Equal(t, []string{"go", "web"}, p.Tags)
	assert.Equal(t, "News", p.Category)
	assert.True(t, p.PublishedAt.Equal(testNow))
	assert.Equal(t, "/blog/hello-world/", p.Link())
	assert.Equal(t, "2026-04-10", p.Date())

	draft, err := s.Save(ctx, Post{Title: "Draft"})
	require.NoError(t, err)
	assert.Equal(t, StatusDraft, draft.Status)
	assert.True(t, draft.PublishedAt.IsZero())

	_, err = s.Get(ctx, "draft")
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = s.GetAny(ctx, "draft")
	assert.NoError(t, err)

	require.NoError(t, s.IncrementViews(ctx, "hello-world"))
	p.Title = "Hello again"
	p.PublishedAt = time.Time{}
	updated, err := s.Save(ctx, p)
	require.NoError(t, err)
	assert.Equal(t, 1, updated.Views, "views survive an update")
	assert.True(t, updated.PublishedAt.Equal(testNow), "first publication time is kept")

	assert.ErrorIs(t, s.IncrementViews(ctx, "draft"), ErrNotFound)
	require.NoError(t, s.Delete(ctx, "draft"))
	assert.ErrorIs(t, s.Delete(ctx, "draft"), ErrNotFound)
}

func TestListOrderingAndFilters(t *testing.T) {
	s, now := newTestStore(t)
	ctx := context.Background()

	for i, title := range []string{"Alpha", "Beta", "Gamma"} {
		*now = testNow.Add(time.Duration(i) * time.Hour)
		_, err := s.Save(ctx, Post{Title: title, Status: StatusPublished, Category: "news", Tags: []string{"go"}})
		require.NoError(t, err)
	}
	_, err := s.Save(ctx, Post{Title: "Delta", Content: "about Go % things", Category: "guides"})
	require.NoError(t, err)

	pinned, err := s.TogglePinned(ctx, "alpha")
	require.NoError(t, err)
	assert.True(t, pinned)

	posts, page, err := s.List(ctx, Query{Status: StatusPublished}, paging.New(1, 10, 0))
	require.NoError(t, err)
	assert.Equal(t, 3, page.Total)
	var slugs []string
	for _, p := range posts {
		slugs = append(slugs, p.Slug)
	}
	assert.Equal(t, []string{"alpha", "gamma", "beta"}, slugs)

	posts, _, err = s.List(ctx, Query{Search: "go %"}, paging.New(1, 10, 0))
	require.NoError(t, err)
	require.Len(t, posts, 1)
	assert.Equal(t, "delta", posts[0].Slug)

	posts, _, err = s.List(ctx, Query{Tag: "GO", Category: "news"}, paging.New(2, 2, 0))
	require.NoError(t, err)
	assert.Len(t, posts, 1)

	cats, err := s.Categories(ctx)
	require.NoError(t, err)
	assert.Equal(t, []CategoryCount{{"news", 3}}, cats)

	counts, err := s.StatusCounts(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[Status]int{StatusDraft: 1, StatusScheduled: 0, StatusPublished: 3, StatusArchived: 0}, counts)

	featured, err := s.ToggleFeatured(ctx, "beta")
	require.NoError(t, err)
	assert.True(t, featured)
	featured, _ = s.ToggleFeatured(ctx, "beta")
	assert.False(t, featured)
	_, err = s.ToggleFeatured(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestLifecycle(t *testing.T) {
	s, now := newTestStore(t)
	ctx := context.Background()

	_, err := s.Save(ctx, Post{Title: "Launch"})
	require.NoError(t, err)

	assert.ErrorIs(t, s.Schedule(ctx, "launch", testNow.Add(-time.Minute)), ErrScheduleInPast)
	at := testNow.Add(time.Hour)
	require.NoError(t, s.Schedule(ctx, "launch", at))

	n, err := s.PublishDue(ctx, testNow)
	require.NoError(t, err)
	assert.Zero(t, n)

	n, err = s.PublishDue(ctx, at.Add(time.Minute))
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	p, err := s.Get(ctx, "launch")
	require.NoError(t, err)
	assert.True(t, p.PublishedAt.Equal(at))
	assert.True(t, p.ScheduledAt.IsZero())

	require.NoError(t, s.Archive(ctx, "launch"))
	p, _ = s.GetAny(ctx, "launch")
	assert.Equal(t, StatusArchived, p.Status)

	*now = testNow.Add(24 * time.Hour)
	require.NoError(t, s.Publish(ctx, "launch"))
	p, _ = s.Get(ctx, "launch")
	assert.True(t, p.PublishedAt.Equal(at), "republishing keeps the first publication time")

	require.NoError(t, s.Unpublish(ctx, "launch"))
	p, _ = s.GetAny(ctx, "launch")
	assert.Equal(t, StatusDraft, p.Status)
	assert.ErrorIs(t, s.Publish(ctx, "missing"), ErrNotFound)
}

func TestCache(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()
	c := NewCache(s, time.Hour)

	posts, err := c.Posts(ctx, "", "")
	require.NoError(t, err)
	assert.Empty(t, posts)

	_, err = s.Save(ctx, Post{Title: "One", Status: StatusPublished, Tags: []string{"go"}, Category: "news", Featured: true})
	require.NoError(t, err)
	posts, _ = c.Posts(ctx, "", "")
	assert.Empty(t, posts, "stale until invalidated")

	c.Invalidate()
	posts, _ = c.Posts(ctx, "Go", "")
	assert.Len(t, posts, 1)
	posts, _ = c.Posts(ctx, "", "other")
	assert.Empty(t, posts)
	tags, _ := c.Tags(ctx)
	assert.Equal(t, []string{"go"}, tags)
	featured, _ := c.Featured(ctx, 3)
	assert.Len(t, featured, 1)

	_, err = c.Get(ctx, "one")
	assert.NoError(t, err)
	_, err = c.Get(ctx, "two")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestStartPublisher(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreTopFunction("database/sql.(*DB).connectionOpener"))

	s, _ := newTestStore(t)
	ctx := context.Background()
	_, err := s.Save(ctx, Post{Title: "Later"})
	require.NoError(t, err)
	require.NoError(t, s.Schedule(ctx, "later", testNow.Add(time.Minute)))
	s.SetClock(func() time.Time { return testNow.Add(time.Hour) })

	published := make(chan int, 1)
	stop := s.StartPublisher(5*time.Millisecond, zap.NewNop(), func(n int) {
		select {
		case published <- n:
		default:
		}
	})
	select {
	case n := <-published:
		assert.Equal(t, 1, n)
	case <-time.After(2 * time.Second):
		t.Fatal("scheduled post was not published")
	}
	stop()

	_, err = s.Get(ctx, "later")
	assert.NoError(t, err)
}

func TestRender(t *testing.T) {
	out, err := Render("# Hi\n\n**bold** <script>alert(1)</script>\n\n| a | b |\n|---|---|\n| 1 | 2 |\n")
	require.NoError(t, err)
	assert.Contains(t, out, `<h1 id="hi">Hi</h1>`)
	assert.Contains(t, out, "<strong>bold</strong>")
	assert.Contains(t, out, "<table>")
	assert.False(t, strings.Contains(out, "<script"), out)
}
