package blog

import (
	"context"
	"sync"
	"time"
)

// Cache is an in-memory cache of published posts and tags with a TTL.
type Cache struct {
	mu      sync.RWMutex
	posts   []Post
	tags    []string
	fetched time.Time
	ttl     time.Duration
	store   *Store
}

// NewCache creates a Cache backed by the given Store.
func NewCache(s *Store, ttl time.Duration) *Cache {
	return &Cache{store: s, ttl: ttl}
}

func (c *Cache) valid() bool {
	return c.posts != nil && time.Since(c.fetched) < c.ttl
}

// Invalidate clears the cache so the next read triggers a fresh load.
func (c *Cache) Invalidate() {
	c.mu.Lock()
	c.posts = nil
	c.tags = nil
	c.mu.Unlock()
}

func (c *Cache) load(ctx context.Context) error {
	if c.valid() {
		return nil
	}
	posts, err := c.store.Published(ctx)
	if err != nil {
		return err
	}
	tags, err := c.store.Tags(ctx)
	if err != nil {
		return err
	}
	if posts == nil {
		posts = []Post{}
	}
	c.posts = posts
	c.tags = tags
	c.fetched = time.Now()
	return nil
}

// ensureLoaded returns cached posts and tags after ensuring the cache is fresh.
// It tries a read lock first; only takes a write lock if a reload is needed.
func (c *Cache) ensureLoaded(ctx context.Context) ([]Post, []string, error) {
	c.mu.RLock()
	if c.valid() {
		posts, tags := c.posts, c.tags
		c.mu.RUnlock()
		return posts, tags, nil
	}
	c.mu.RUnlock()

	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.load(ctx); err != nil {
		return nil, nil, err
	}
	return c.posts, c.tags, nil
}

// Posts returns published posts, optionally filtered by tag and category.
func (c *Cache) Posts(ctx context.Context, tag, category string) ([]Post, error) {
	posts, _, err := c.ensureLoaded(ctx)
	if err != nil {
		return nil, err
	}
	if tag == "" && category == "" {
		return posts, nil
	}
	normalized := NormalizeTag(tag)
	var filtered []Post
	for _, p := range posts {
		if category != "" && p.Category != category {
			continue
		}
		if normalized == "" || hasTag(p, normalized) {
			filtered = append(filtered, p)
		}
	}
	return filtered, nil
}

func hasTag(p Post, tag string) bool {
	for _, t := range p.Tags {
		if NormalizeTag(t) == tag {
			return true
		}
	}
	return false
}

// Tags returns all unique tags from published posts.
func (c *Cache) Tags(ctx context.Context) ([]string, error) {
	_, tags, err := c.ensureLoaded(ctx)
	return tags, err
}

// Featured returns up to n featured posts.
func (c *Cache) Featured(ctx context.Context, n int) ([]Post, error) {
	posts, _, err := c.ensureLoaded(ctx)
	if err != nil {
		return nil, err
	}
	var out []Post
	for _, p := range posts {
		if p.Featured && len(out) < n {
			out = append(out, p)
		}
	}
	return out, nil
}

// Get returns a single published post by slug from the cache.
func (c *Cache) Get(ctx context.Context, slug string) (Post, error) {
	posts, _, err := c.ensureLoaded(ctx)
	if err != nil {
		return Post{}, err
	}
	for _, p := range posts {
		if p.Slug == slug {
			return p, nil
		}
	}
	return Post{}, ErrNotFound
}
