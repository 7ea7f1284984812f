package blog

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/eringen/panelengine/database"
	"github.com/eringen/panelengine/paging"
	"github.com/eringen/panelengine/slug"
)

// Store wraps a SQLite database and provides CRUD operations for blog posts.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

// NewStore wraps db and creates the posts table.
func NewStore(db *sql.DB) (*Store, error) {
	s := &Store{db: db, now: time.Now}
	if err := s.ensureSchema(); err != nil {
		return nil, fmt.Errorf("blog schema: %w", err)
	}
	return s, nil
}

// SetClock overrides the time source, for tests.
func (s *Store) SetClock(now func() time.Time) { s.now = now }

func (s *Store) ensureSchema() error {
	_, err := s.db.Exec(`
CREATE TABLE IF NOT EXISTS posts (
    slug TEXT PRIMARY KEY,
    title TEXT NOT NULL,
    summary TEXT NOT NULL DEFAULT '',
    content TEXT NOT NULL DEFAULT '',
    category TEXT NOT NULL DEFAULT '',
    tags TEXT NOT NULL DEFAULT '',
    cover_image TEXT NOT NULL DEFAULT '',
    status TEXT NOT NULL DEFAULT 'DRAFT',
    featured INTEGER NOT NULL DEFAULT 0,
    pinned INTEGER NOT NULL DEFAULT 0,
    views INTEGER NOT NULL DEFAULT 0,
    published_at TEXT,
    scheduled_at TEXT,
    updated_at TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_posts_status ON posts(status, published_at);
`)
	return err
}

const postColumns = `slug, title, summary, content, category, tags, cover_image, status,
    featured, pinned, views, published_at, scheduled_at, updated_at`

type scanner interface {
	Scan(dest ...any) error
}

func scanPost(row scanner) (Post, error) {
	var p Post
	var tags, status, updated string
	var featured, pinned int
	var published, scheduled sql.NullString
	err := row.Scan(&p.Slug, &p.Title, &p.Summary, &p.Content, &p.Category, &tags, &p.CoverImage, &status,
		&featured, &pinned, &p.Views, &published, &scheduled, &updated)
	if err != nil {
		return Post{}, err
	}
	p.Tags = ParseTags(tags)
	p.Status = Status(status)
	p.Featured = featured == 1
	p.Pinned = pinned == 1
	p.PublishedAt = database.ParseNullTime(published)
	p.ScheduledAt = database.ParseNullTime(scheduled)
	p.UpdatedAt = database.ParseTime(updated)
	return p, nil
}

func (s *Store) stamp() time.Time { return s.now().UTC().Truncate(time.Second) }

// Save upserts a post and returns it as stored. An empty slug is derived
// from the title. Views and the first publication time are kept across
// updates.
func (s *Store) Save(ctx context.Context, p Post) (Post, error) {
	p.Title = strings.TrimSpace(p.Title)
	if p.Title == "" {
		return Post{}, ErrInvalidPost
	}
	if p.Slug == "" {
		p.Slug = slug.Make(p.Title)
	} else {
		p.Slug = slug.Make(p.Slug)
	}
	if p.Slug == "" {
		return Post{}, ErrInvalidPost
	}
	if p.Status == "" {
		p.Status = StatusDraft
	}
	if !p.Status.Valid() {
		return Post{}, ErrInvalidStatus
	}
	now := s.stamp()
	if p.Status == StatusPublished && p.PublishedAt.IsZero() {
		p.PublishedAt = now
	}
	if p.Status != StatusScheduled {
		p.ScheduledAt = time.Time{}
	}
	p.Category = strings.TrimSpace(p.Category)
	_, err := s.db.ExecContext(ctx, `
INSERT INTO posts (slug, title, summary, content, category, tags, cover_image, status, featured, pinned, published_at, scheduled_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(slug) DO UPDATE SET
    title = excluded.title,
    summary = excluded.summary,
    content = excluded.content,
    category = excluded.category,
    tags = excluded.tags,
    cover_image = excluded.cover_image,
    status = excluded.status,
    featured = excluded.featured,
    pinned = excluded.pinned,
    published_at = COALESCE(posts.published_at, excluded.published_at),
    scheduled_at = excluded.scheduled_at,
    updated_at = excluded.updated_at`,
		p.Slug, p.Title, p.Summary, p.Content, p.Category, formatTags(p.Tags), p.CoverImage, p.Status,
		database.Bool(p.Featured), database.Bool(p.Pinned),
		database.NullTime(p.PublishedAt), database.NullTime(p.ScheduledAt), database.FormatTime(now))
	if err != nil {
		return Post{}, fmt.Errorf("save post: %w", err)
	}
	return s.GetAny(ctx, p.Slug)
}

// Get returns a single published post by slug.
func (s *Store) Get(ctx context.Context, slug string) (Post, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+postColumns+` FROM posts WHERE slug = ? AND status = ?`, slug, StatusPublished)
	p, err := scanPost(row)
	return p, database.NotFound(err, ErrNotFound)
}

// GetAny returns a post by slug regardless of status (for admin).
func (s *Store) GetAny(ctx context.Context, slug string) (Post, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+postColumns+` FROM posts WHERE slug = ?`, slug)
	p, err := scanPost(row)
	return p, database.NotFound(err, ErrNotFound)
}

func (q Query) where() (string, []any) {
	var conds []string
	var args []any
	if q.Status != "" {
		conds = append(conds, "status = ?")
		args = append(args, q.Status)
	}
	if q.Category != "" {
		conds = append(conds, "category = ?")
		args = append(args, q.Category)
	}
	if tag := NormalizeTag(q.Tag); tag != "" {
		conds = append(conds, "instr(tags, ',' || ? || ',') > 0")
		args = append(args, tag)
	}
	if strings.TrimSpace(q.Search) != "" {
		like := database.LikePattern(q.Search)
		conds = append(conds, `(lower(title) LIKE ? ESCAPE '\' OR lower(summary) LIKE ? ESCAPE '\' OR lower(content) LIKE ? ESCAPE '\')`)
		args = append(args, like, like, like)
	}
	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

// List returns one page of posts matching q, pinned posts first and then
// newest first by publication (or last update) time.
func (s *Store) List(ctx context.Context, q Query, p paging.Page) ([]Post, paging.Page, error) {
	where, args := q.where()
	var total int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM posts`+where, args...).Scan(&total); err != nil {
		return nil, p, fmt.Errorf("count posts: %w", err)
	}
	p = p.WithTotal(total)
	rows, err := s.db.QueryContext(ctx, `SELECT `+postColumns+` FROM posts`+where+`
ORDER BY pinned DESC, COALESCE(published_at, updated_at) DESC, slug
LIMIT ? OFFSET ?`, append(args, p.Size, p.Offset())...)
	if err != nil {
		return nil, p, fmt.Errorf("list posts: %w", err)
	}
	defer rows.Close()
	posts := []Post{}
	for rows.Next() {
		post, err := scanPost(rows)
		if err != nil {
			return nil, p, err
		}
		posts = append(posts, post)
	}
	return posts, p, rows.Err()
}

// Published returns every published post, pinned first then newest first.
func (s *Store) Published(ctx context.Context) ([]Post, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+postColumns+` FROM posts WHERE status = ?
ORDER BY pinned DESC, published_at DESC, slug`, StatusPublished)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var posts []Post
	for rows.Next() {
		p, err := scanPost(rows)
		if err != nil {
			return nil, err
		}
		posts = append(posts, p)
	}
	return posts, rows.Err()
}

// Tags returns a sorted, deduplicated slice of all tags from published posts.
func (s *Store) Tags(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT tags FROM posts WHERE status = ?`, StatusPublished)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	set := make(map[string]struct{})
	for rows.Next() {
		var tags string
		if err := rows.Scan(&tags); err != nil {
			return nil, err
		}
		for _, t := range ParseTags(tags) {
			set[t] = struct{}{}
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	result := make([]string, 0, len(set))
	for t := range set {
		result = append(result, t)
	}
	sort.Strings(result)
	return result, nil
}

func (s *Store) exec(ctx context.Context, query string, args ...any) error {
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

// Delete removes a post by slug.
func (s *Store) Delete(ctx context.Context, slug string) error {
	return s.exec(ctx, `DELETE FROM posts WHERE slug = ?`, slug)
}

// Publish makes a post public. The first publication time is kept when a
// post is republished.
func (s *Store) Publish(ctx context.Context, slug string) error {
	now := database.FormatTime(s.stamp())
	return s.exec(ctx, `UPDATE posts SET status = ?, published_at = COALESCE(published_at, ?), scheduled_at = NULL, updated_at = ? WHERE slug = ?`,
		StatusPublished, now, now, slug)
}

// Unpublish moves a post back to draft.
func (s *Store) Unpublish(ctx context.Context, slug string) error {
	return s.setStatus(ctx, slug, StatusDraft)
}

// Archive hides a post without deleting it.
func (s *Store) Archive(ctx context.Context, slug string) error {
	return s.setStatus(ctx, slug, StatusArchived)
}

func (s *Store) setStatus(ctx context.Context, slug string, st Status) error {
	return s.exec(ctx, `UPDATE posts SET status = ?, scheduled_at = NULL, updated_at = ? WHERE slug = ?`,
		st, database.FormatTime(s.stamp()), slug)
}

// Schedule queues a post for publication at at.
func (s *Store) Schedule(ctx context.Context, slug string, at time.Time) error {
	now := s.stamp()
	if !at.After(now) {
		return ErrScheduleInPast
	}
	return s.exec(ctx, `UPDATE posts SET status = ?, scheduled_at = ?, updated_at = ? WHERE slug = ?`,
		StatusScheduled, database.FormatTime(at), database.FormatTime(now), slug)
}

func (s *Store) toggle(ctx context.Context, slug, column string) (bool, error) {
	var v int
	err := s.db.QueryRowContext(ctx, `UPDATE posts SET `+column+` = 1 - `+column+`, updated_at = ? WHERE slug = ? RETURNING `+column,
		database.FormatTime(s.stamp()), slug).Scan(&v)
	if err != nil {
		return false, database.NotFound(err, ErrNotFound)
	}
	return v == 1, nil
}

// ToggleFeatured flips the featured flag and returns the new value.
func (s *Store) ToggleFeatured(ctx context.Context, slug string) (bool, error) {
	return s.toggle(ctx, slug, "featured")
}

// TogglePinned flips the pinned flag and returns the new value.
func (s *Store) TogglePinned(ctx context.Context, slug string) (bool, error) {
	return s.toggle(ctx, slug, "pinned")
}

// IncrementViews counts one read of a published post.
func (s *Store) IncrementViews(ctx context.Context, slug string) error {
	return s.exec(ctx, `UPDATE posts SET views = views + 1 WHERE slug = ? AND status = ?`, slug, StatusPublished)
}

// Categories returns categories with their published post counts, largest first.
func (s *Store) Categories(ctx context.Context) ([]CategoryCount, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT category, COUNT(*) FROM posts
WHERE status = ? AND category != '' GROUP BY category ORDER BY COUNT(*) DESC, category`, StatusPublished)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []CategoryCount
	for rows.Next() {
		var c CategoryCount
		if err := rows.Scan(&c.Name, &c.Count); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// StatusCounts returns the number of posts per status, including zeros.
func (s *Store) StatusCounts(ctx context.Context) (map[Status]int, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT status, COUNT(*) FROM posts GROUP BY status`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make(map[Status]int, len(Statuses))
	for _, st := range Statuses {
		out[st] = 0
	}
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

// PublishDue publishes scheduled posts whose time has come and returns how
// many were published. Their publication time is the scheduled time.
func (s *Store) PublishDue(ctx context.Context, now time.Time) (int, error) {
	ts := database.FormatTime(now)
	res, err := s.db.ExecContext(ctx, `UPDATE posts SET status = ?, published_at = COALESCE(published_at, scheduled_at), scheduled_at = NULL, updated_at = ?
WHERE status = ? AND scheduled_at <= ?`, StatusPublished, ts, StatusScheduled, ts)
	if err != nil {
		return 0, fmt.Errorf("publish due posts: %w", err)
	}
	n, err := res.RowsAffected()
	return int(n), err
}
