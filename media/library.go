package media

import (
	"bytes"
	"context"
	"database/sql"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/eringen/panelengine/database"
	"github.com/eringen/panelengine/slug"
)

// Library keeps image files under dir and their metadata in SQLite.
type Library struct {
	dir string
	db  *sql.DB
	now func() time.Time
}

// NewLibrary creates the media table and returns a library writing to dir.
func NewLibrary(db *sql.DB, dir string) (*Library, error) {
	l := &Library{dir: dir, db: db, now: time.Now}
	_, err := db.Exec(`
CREATE TABLE IF NOT EXISTS media (
    filename TEXT PRIMARY KEY,
    original_name TEXT NOT NULL,
    kind TEXT NOT NULL,
    width INTEGER NOT NULL,
    height INTEGER NOT NULL,
    size INTEGER NOT NULL,
    uploaded_at TEXT NOT NULL
);`)
	if err != nil {
		return nil, fmt.Errorf("media schema: %w", err)
	}
	return l, nil
}

// SetClock overrides the time source, for tests.
func (l *Library) SetClock(now func() time.Time) { l.now = now }

// Dir is the directory files are written to.
func (l *Library) Dir() string { return l.dir }

func (l *Library) taken(ctx context.Context, filename string) bool {
	if _, err := os.Stat(filepath.Join(l.dir, filename)); err == nil {
		return true
	}
	var n int
	l.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM media WHERE filename = ?`, filename).Scan(&n)
	return n > 0
}

// Save processes an upload of the given kind and stores it under a unique
// filename derived from name.
func (l *Library) Save(ctx context.Context, src io.Reader, name string, kind Kind) (Image, error) {
	if !kind.Valid() {
		return Image{}, ErrInvalidKind
	}
	data, err := io.ReadAll(io.LimitReader(src, MaxUploadSize+1))
	if err != nil {
		return Image{}, fmt.Errorf("read upload: %w", err)
	}
	if len(data) > MaxUploadSize {
		return Image{}, ErrTooLarge
	}
	img, out, err := Process(bytes.NewReader(data), name, kind.MaxWidth())
	if err != nil {
		return Image{}, err
	}
	base := strings.TrimSuffix(img.Filename, ".jpg")
	img.Filename = slug.Unique(base, func(c string) bool { return l.taken(ctx, c+".jpg") }) + ".jpg"
	img.Kind = kind
	img.UploadedAt = l.now().UTC().Truncate(time.Second)

	if err := os.MkdirAll(l.dir, 0o755); err != nil {
		return Image{}, fmt.Errorf("create uploads dir: %w", err)
	}
	path := filepath.Join(l.dir, img.Filename)
	if err := os.WriteFile(path, out, 0o644); err != nil {
		return Image{}, fmt.Errorf("write image: %w", err)
	}
	_, err = l.db.ExecContext(ctx, `INSERT INTO media (filename, original_name, kind, width, height, size, uploaded_at) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		img.Filename, img.OriginalName, img.Kind, img.Width, img.Height, img.Size, database.FormatTime(img.UploadedAt))
	if err != nil {
		os.Remove(path)
		return Image{}, fmt.Errorf("save image metadata: %w", err)
	}
	return img, nil
}

// List returns images of kind, newest first. An empty kind lists all.
func (l *Library) List(ctx context.Context, kind Kind) ([]Image, error) {
	query := `SELECT filename, original_name, kind, width, height, size, uploaded_at FROM media`
	var args []any
	if kind != "" {
		query += ` WHERE kind = ?`
		args = append(args, kind)
	}
	rows, err := l.db.QueryContext(ctx, query+` ORDER BY uploaded_at DESC, filename`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	images := []Image{}
	for rows.Next() {
		var img Image
		var k, uploaded string
		if err := rows.Scan(&img.Filename, &img.OriginalName, &k, &img.Width, &img.Height, &img.Size, &uploaded); err != nil {
			return nil, err
		}
		img.Kind = Kind(k)
		img.UploadedAt = database.ParseTime(uploaded)
		images = append(images, img)
	}
	return images, rows.Err()
}

// Delete removes an image file and its metadata.
func (l *Library) Delete(ctx context.Context, filename string) error {
	if filename == "" || filename != filepath.Base(filename) {
		return ErrNotFound
	}
	res, err := l.db.ExecContext(ctx, `DELETE FROM media WHERE filename = ?`, filename)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	if err := os.Remove(filepath.Join(l.dir, filename)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove image: %w", err)
	}
	return nil
}
