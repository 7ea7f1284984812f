package database

import (
	"database/sql"
	"errors"
	"path/filepath"
	"testing"
	"time"
)

func TestOpenCreatesDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "app.db")
	db, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer db.Close()

	var mode string
	if err := db.QueryRow(`PRAGMA journal_mode`).Scan(&mode); err != nil {
		t.Fatalf("journal_mode: %v", err)
	}
	if mode != "wal" {
		t.Errorf("journal_mode = %q, want wal", mode)
	}
}

func TestTimeRoundTrip(t *testing.T) {
	in := time.Date(2026, 5, 1, 10, 4, 5, 0, time.FixedZone("x", 3*3600))
	s := FormatTime(in)
	if s != "2026-05-01T07:04:05Z" {
		t.Fatalf("FormatTime = %q", s)
	}
	if got := ParseTime(s); !got.Equal(in) {
		t.Errorf("ParseTime = %v, want %v", got, in)
	}
	if !ParseTime("").IsZero() || !ParseTime("garbage").IsZero() {
		t.Error("expected zero time for empty and invalid input")
	}
	if NullTime(time.Time{}).Valid {
		t.Error("zero time should be stored as NULL")
	}
}

func TestStoredTimesSortAndGroup(t *testing.T) {
	db, err := Open(filepath.Join(t.TempDir(), "t.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer db.Close()
	if _, err := db.Exec(`CREATE TABLE ev (at TEXT NOT NULL)`); err != nil {
		t.Fatal(err)
	}
	base := time.Date(2026, 1, 1, 23, 0, 0, 0, time.UTC)
	for _, d := range []time.Duration{0, 2 * time.Hour, 26 * time.Hour} {
		if _, err := db.Exec(`INSERT INTO ev (at) VALUES (?)`, FormatTime(base.Add(d))); err != nil {
			t.Fatal(err)
		}
	}
	var n int
	if err := db.QueryRow(`SELECT COUNT(*) FROM ev WHERE at >= ?`, FormatTime(base.Add(time.Hour))).Scan(&n); err != nil {
		t.Fatal(err)
	}
	if n != 2 {
		t.Errorf("count since = %d, want 2", n)
	}
	var days int
	if err := db.QueryRow(`SELECT COUNT(DISTINCT date(at)) FROM ev`).Scan(&days); err != nil {
		t.Fatal(err)
	}
	if days != 3 {
		t.Errorf("distinct days = %d, want 3", days)
	}
}

func TestHelpers(t *testing.T) {
	if got := Placeholders(3); got != "?, ?, ?" {
		t.Errorf("Placeholders(3) = %q", got)
	}
	if got := LikePattern(" 50%_Off "); got != `%50\%\_off%` {
		t.Errorf("LikePattern = %q", got)
	}
	sentinel := errors.New("missing")
	if !errors.Is(NotFound(sql.ErrNoRows, sentinel), sentinel) {
		t.Error("NotFound should map ErrNoRows")
	}
	if Bool(true) != 1 || Bool(false) != 0 {
		t.Error("Bool conversion")
	}
}
