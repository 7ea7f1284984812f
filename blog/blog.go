// Package blog is the marketing blog: posts written in markdown, moved
// through a draft/scheduled/published/archived lifecycle and served from a
// read-through cache.
package blog

import (
	"errors"
	"strings"
	"time"

	"github.com/eringen/panelengine/markdown"
)

// Status is the lifecycle state of a post.
type Status string

const (
	StatusDraft     Status = "DRAFT"
	StatusScheduled Status = "SCHEDULED"
	StatusPublished Status = "PUBLISHED"
	StatusArchived  Status = "ARCHIVED"
)

// Statuses lists every status in lifecycle order.
var Statuses = []Status{StatusDraft, StatusScheduled, StatusPublished, StatusArchived}

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	for _, v := range Statuses {
		if s == v {
			return true
		}
	}
	return false
}

var (
	ErrNotFound       = errors.New("blog: post not found")
	ErrInvalidPost    = errors.New("blog: title is required")
	ErrInvalidStatus  = errors.New("blog: unknown status")
	ErrScheduleInPast = errors.New("blog: schedule time must be in the future")
	ErrSlugTaken      = errors.New("blog: slug already in use")
)

// Post is a blog article.
type Post struct {
	Slug        string    `json:"slug"`
	Title       string    `json:"title"`
	Summary     string    `json:"summary"`
	Content     string    `json:"content"`
	Category    string    `json:"category"`
	Tags        []string  `json:"tags"`
	CoverImage  string    `json:"coverImage,omitempty"`
	Status      Status    `json:"status"`
	Featured    bool      `json:"featured"`
	Pinned      bool      `json:"pinned"`
	Views       int       `json:"views"`
	PublishedAt time.Time `json:"publishedAt,omitzero"`
	ScheduledAt time.Time `json:"scheduledAt,omitzero"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// Link is the public path of the post.
func (p Post) Link() string { return "/blog/" + p.Slug + "/" }

// Date is the publication day, or the last update for unpublished posts.
func (p Post) Date() string {
	if !p.PublishedAt.IsZero() {
		return p.PublishedAt.Format("2006-01-02")
	}
	return p.UpdatedAt.Format("2006-01-02")
}

// Query filters List. Empty fields match everything.
type Query struct {
	Status   Status
	Category string
	Tag      string
	Search   string
}

// CategoryCount is a category with its number of published posts.
type CategoryCount struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

// NormalizeTag lowercases and trims a tag.
func NormalizeTag(t string) string {
	return strings.ToLower(strings.TrimSpace(t))
}

// ParseTags splits a comma-delimited tag string (e.g. ",go,web,") into a slice.
func ParseTags(tagString string) []string {
	tagString = strings.Trim(tagString, ",")
	if tagString == "" {
		return nil
	}
	parts := strings.Split(tagString, ",")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	return parts
}

// formatTags stores tags as ",a,b," so a single tag can be matched with instr.
func formatTags(tags []string) string {
	var kept []string
	seen := map[string]bool{}
	for _, t := range tags {
		t = NormalizeTag(t)
		if t == "" || seen[t] {
			continue
		}
		seen[t] = true
		kept = append(kept, t)
	}
	if len(kept) == 0 {
		return ""
	}
	return "," + strings.Join(kept, ",") + ","
}

// Render converts post markdown to sanitized HTML.
func Render(source string) (string, error) { return markdown.Render(source) }
