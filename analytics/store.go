package analytics

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/eringen/panelengine/database"
	"github.com/eringen/panelengine/report"
)

// RealtimeWindow is how far back GetRealtimeVisitors looks.
const RealtimeWindow = 5 * time.Minute

// Store provides database operations for analytics.
type Store struct {
	db   *sql.DB
	salt string
	now  func() time.Time
}

// NewStore creates the analytics tables in db and loads (or generates) the
// per-installation salt used for IP hashing.
func NewStore(ctx context.Context, db *sql.DB) (*Store, error) {
	s := &Store{db: db, now: time.Now}
	if err := s.ensureSchema(); err != nil {
		return nil, fmt.Errorf("analytics schema: %w", err)
	}
	if err := s.initSalt(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

// SetClock overrides the time source, for tests.
func (s *Store) SetClock(now func() time.Time) { s.now = now }

func (s *Store) ensureSchema() error {
	_, err := s.db.Exec(`
CREATE TABLE IF NOT EXISTS visits (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    site TEXT NOT NULL,
    visitor_id TEXT NOT NULL,
    session_id TEXT NOT NULL,
    ip_hash TEXT NOT NULL,
    browser TEXT NOT NULL,
    os TEXT NOT NULL,
    device TEXT NOT NULL,
    path TEXT NOT NULL,
    referrer TEXT NOT NULL DEFAULT '',
    screen_size TEXT NOT NULL DEFAULT '',
    timestamp TEXT NOT NULL,
    duration_sec INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS bot_visits (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    site TEXT NOT NULL,
    bot_name TEXT NOT NULL,
    ip_hash TEXT NOT NULL,
    user_agent TEXT NOT NULL,
    path TEXT NOT NULL,
    timestamp TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_visits_site_ts ON visits(site, timestamp);
CREATE INDEX IF NOT EXISTS idx_visits_visitor ON visits(visitor_id, path);
CREATE INDEX IF NOT EXISTS idx_bot_visits_site_ts ON bot_visits(site, timestamp);

CREATE TABLE IF NOT EXISTS analytics_settings (
    key TEXT PRIMARY KEY,
    value TEXT NOT NULL
);
`)
	return err
}

// GetSetting retrieves a setting value by key. Returns "" if not found.
func (s *Store) GetSetting(ctx context.Context, key string) (string, error) {
	var val string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM analytics_settings WHERE key = ?`, key).Scan(&val)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	return val, err
}

// SetSetting stores a setting value by key (upsert).
func (s *Store) SetSetting(ctx context.Context, key, value string) error {
	_, err := s.db.ExecContext(ctx, `INSERT INTO analytics_settings (key, value) VALUES (?, ?)
ON CONFLICT(key) DO UPDATE SET value = excluded.value`, key, value)
	return err
}

func (s *Store) initSalt(ctx context.Context) error {
	salt, err := s.GetSetting(ctx, "hash_salt")
	if err != nil {
		return fmt.Errorf("read hash salt: %w", err)
	}
	if salt == "" {
		b := make([]byte, 32)
		if _, err := rand.Read(b); err != nil {
			return fmt.Errorf("generate salt: %w", err)
		}
		salt = hex.EncodeToString(b)
		if err := s.SetSetting(ctx, "hash_salt", salt); err != nil {
			return fmt.Errorf("store hash salt: %w", err)
		}
	}
	s.salt = salt
	return nil
}

// HashIP creates a salted hash of an IP address.
func (s *Store) HashIP(ip string) string { return hash16(s.salt, ip) }

// VisitorID creates a salted visitor ID from IP and User-Agent.
func (s *Store) VisitorID(ip, userAgent string) string { return hash16(s.salt, ip, userAgent) }

// SaveVisit stores a new visit.
func (s *Store) SaveVisit(ctx context.Context, v *Visit) error {
	res, err := s.db.ExecContext(ctx, `INSERT INTO visits
(site, visitor_id, session_id, ip_hash, browser, os, device, path, referrer, screen_size, timestamp, duration_sec)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		v.Site, v.VisitorID, v.SessionID, v.IPHash, v.Browser, v.OS, v.Device, v.Path, v.Referrer, v.ScreenSize,
		database.FormatTime(v.Timestamp), v.DurationSec)
	if err != nil {
		return fmt.Errorf("save visit: %w", err)
	}
	v.ID, _ = res.LastInsertId()
	return nil
}

// UpdateVisitDuration sets the duration of the most recent visit for a
// visitor and path on site.
func (s *Store) UpdateVisitDuration(ctx context.Context, site, visitorID, path string, durationSec int) error {
	_, err := s.db.ExecContext(ctx, `UPDATE visits SET duration_sec = ? WHERE id = (
    SELECT id FROM visits WHERE site = ? AND visitor_id = ? AND path = ? ORDER BY timestamp DESC, id DESC LIMIT 1)`,
		durationSec, site, visitorID, path)
	return err
}

// SaveBotVisit stores a new bot visit.
func (s *Store) SaveBotVisit(ctx context.Context, bv *BotVisit) error {
	_, err := s.db.ExecContext(ctx, `INSERT INTO bot_visits (site, bot_name, ip_hash, user_agent, path, timestamp) VALUES (?, ?, ?, ?, ?, ?)`,
		bv.Site, bv.BotName, bv.IPHash, bv.UserAgent, bv.Path, database.FormatTime(bv.Timestamp))
	if err != nil {
		return fmt.Errorf("save bot visit: %w", err)
	}
	return nil
}

// bucket is the SQL expression grouping timestamps into series labels that
// match the report.Fill* helpers.
func bucket(g report.Granularity) string {
	switch g {
	case report.Hourly:
		return `substr(timestamp, 12, 2) || ':00'`
	case report.Monthly:
		return `substr(timestamp, 1, 7)`
	default:
		return `substr(timestamp, 1, 10)`
	}
}

func periodLabel(from, to time.Time) string {
	return from.Format(report.DayLayout) + " to " + to.Format(report.DayLayout)
}

func (s *Store) dimension(ctx context.Context, table, column, site string, from, to time.Time, limit int) ([]DimensionStat, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+column+`, COUNT(*) AS n FROM `+table+`
WHERE site = ? AND timestamp >= ? AND timestamp <= ?
GROUP BY `+column+` ORDER BY n DESC, `+column+` LIMIT ?`,
		site, database.FormatTime(from), database.FormatTime(to), limit)
	if err != nil {
		return nil, fmt.Errorf("%s breakdown: %w", column, err)
	}
	defer rows.Close()
	out := []DimensionStat{}
	for rows.Next() {
		var d DimensionStat
		if err := rows.Scan(&d.Name, &d.Count); err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

func (s *Store) series(ctx context.Context, table, site string, from, to time.Time, g report.Granularity) ([]report.Point, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+bucket(g)+` AS label, COUNT(*) FROM `+table+`
WHERE site = ? AND timestamp >= ? AND timestamp <= ? GROUP BY label`,
		site, database.FormatTime(from), database.FormatTime(to))
	if err != nil {
		return nil, fmt.Errorf("%s series: %w", table, err)
	}
	defer rows.Close()
	var sparse []report.Point
	for rows.Next() {
		var p report.Point
		if err := rows.Scan(&p.Label, &p.Value); err != nil {
			return nil, err
		}
		sparse = append(sparse, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return report.Fill(sparse, from, to, g), nil
}

func toPages(d []DimensionStat) []PageStat {
	out := make([]PageStat, len(d))
	for i, x := range d {
		out[i] = PageStat{Path: x.Name, Views: x.Count}
	}
	return out
}

// GetStats returns aggregated statistics for site between from and to. The
// queries run in parallel.
func (s *Store) GetStats(ctx context.Context, site string, from, to time.Time, g report.Granularity) (*Stats, error) {
	stats := &Stats{Site: site, Period: periodLabel(from, to), Granularity: g}
	f, t := database.FormatTime(from), database.FormatTime(to)
	eg, ctx := errgroup.WithContext(ctx)

	eg.Go(func() error {
		return s.db.QueryRowContext(ctx, `SELECT COUNT(*), COUNT(DISTINCT visitor_id) FROM visits WHERE site = ? AND timestamp >= ? AND timestamp <= ?`,
			site, f, t).Scan(&stats.TotalViews, &stats.UniqueVisitors)
	})
	eg.Go(func() error {
		var avg sql.NullFloat64
		err := s.db.QueryRowContext(ctx, `SELECT AVG(duration_sec) FROM visits WHERE site = ? AND timestamp >= ? AND timestamp <= ? AND duration_sec > 0`,
			site, f, t).Scan(&avg)
		stats.AvgDuration = int(avg.Float64)
		return err
	})
	eg.Go(func() error {
		pages, err := s.dimension(ctx, "visits", "path", site, from, to, 10)
		stats.TopPages = toPages(pages)
		return err
	})
	eg.Go(func() error {
		rows, err := s.db.QueryContext(ctx, `SELECT path, timestamp, browser FROM visits
WHERE site = ? AND timestamp >= ? AND timestamp <= ? ORDER BY timestamp DESC, id DESC LIMIT 10`, site, f, t)
		if err != nil {
			return fmt.Errorf("latest pages: %w", err)
		}
		defer rows.Close()
		stats.LatestPages = []LatestPageVisit{}
		for rows.Next() {
			var lp LatestPageVisit
			var ts string
			if err := rows.Scan(&lp.Path, &ts, &lp.Browser); err != nil {
				return err
			}
			lp.Timestamp = database.ParseTime(ts)
			stats.LatestPages = append(stats.LatestPages, lp)
		}
		return rows.Err()
	})
	for _, d := range []struct {
		column string
		dst    *[]DimensionStat
	}{
		{"browser", &stats.Browsers},
		{"os", &stats.OS},
		{"device", &stats.Devices},
		{"referrer", &stats.Referrers},
	} {
		eg.Go(func() error {
			res, err := s.dimension(ctx, "visits", d.column, site, from, to, 10)
			*d.dst = res
			return err
		})
	}
	eg.Go(func() error {
		pts, err := s.series(ctx, "visits", site, from, to, g)
		stats.Series = pts
		return err
	})

	if err := eg.Wait(); err != nil {
		return nil, err
	}
	return stats, nil
}

// GetBotStats returns aggregated bot statistics for site.
func (s *Store) GetBotStats(ctx context.Context, site string, from, to time.Time, g report.Granularity) (*BotStats, error) {
	stats := &BotStats{Site: site, Period: periodLabel(from, to)}
	eg, ctx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		return s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM bot_visits WHERE site = ? AND timestamp >= ? AND timestamp <= ?`,
			site, database.FormatTime(from), database.FormatTime(to)).Scan(&stats.TotalVisits)
	})
	eg.Go(func() error {
		bots, err := s.dimension(ctx, "bot_visits", "bot_name", site, from, to, 10)
		stats.TopBots = bots
		return err
	})
	eg.Go(func() error {
		pages, err := s.dimension(ctx, "bot_visits", "path", site, from, to, 10)
		stats.TopPages = toPages(pages)
		return err
	})
	eg.Go(func() error {
		pts, err := s.series(ctx, "bot_visits", site, from, to, g)
		stats.Series = pts
		return err
	})
	if err := eg.Wait(); err != nil {
		return nil, err
	}
	return stats, nil
}

// GetRealtimeVisitors returns the number of unique visitors on site in the
// last RealtimeWindow.
func (s *Store) GetRealtimeVisitors(ctx context.Context, site string) (int, error) {
	cutoff := s.now().Add(-RealtimeWindow)
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(DISTINCT visitor_id) FROM visits WHERE site = ? AND timestamp >= ?`,
		site, database.FormatTime(cutoff)).Scan(&n)
	return n, err
}

// Sites returns every site with recorded visits, most viewed first.
func (s *Store) Sites(ctx context.Context) ([]DimensionStat, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT site, COUNT(*) AS n FROM visits GROUP BY site ORDER BY n DESC, site`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []DimensionStat
	for rows.Next() {
		var d DimensionStat
		if err := rows.Scan(&d.Name, &d.Count); err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

// CleanupOldVisits removes visits and bot visits older than the retention
// period and returns how many rows were deleted.
func (s *Store) CleanupOldVisits(ctx context.Context, retentionDays int) (int64, error) {
	cutoff := database.FormatTime(s.now().AddDate(0, 0, -retentionDays))
	var total int64
	for _, table := range []string{"visits", "bot_visits"} {
		res, err := s.db.ExecContext(ctx, `DELETE FROM `+table+` WHERE timestamp < ?`, cutoff)
		if err != nil {
			return total, fmt.Errorf("cleanup %s: %w", table, err)
		}
		n, _ := res.RowsAffected()
		total += n
	}
	return total, nil
}

// StartCleanupScheduler runs periodic cleanup of old data. Returns a stop function.
func (s *Store) StartCleanupScheduler(retentionDays int, interval time.Duration, log *zap.Logger) func() {
	if log == nil {
		log = zap.NewNop()
	}
	ticker := time.NewTicker(interval)
	done := make(chan struct{})
	stopped := make(chan struct{})

	go func() {
		defer close(stopped)
		for {
			select {
			case <-ticker.C:
				n, err := s.CleanupOldVisits(context.Background(), retentionDays)
				if err != nil {
					log.Error("analytics cleanup", zap.Error(err))
				} else if n > 0 {
					log.Info("analytics cleanup", zap.Int64("deleted", n))
				}
			case <-done:
				ticker.Stop()
				return
			}
		}
	}()

	return func() {
		close(done)
		<-stopped
	}
}

// NormalizeSite lowercases and trims a site key.
func NormalizeSite(site string) string {
	return strings.ToLower(strings.TrimSpace(site))
}
