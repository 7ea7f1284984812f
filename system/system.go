// Package system builds the admin system status page: account totals,
// activity series, database latency and process health.
package system

import (
	"context"
	"database/sql"
	"fmt"
	"runtime"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/eringen/panelengine/accounts"
	"github.com/eringen/panelengine/report"
)

// SlowLatency is the database round trip above which health is degraded.
const SlowLatency = 500 * time.Millisecond

// Health values.
const (
	Healthy  = "healthy"
	Degraded = "degraded"
)

// UserStats is the subset of the accounts store the monitor reads.
type UserStats interface {
	CountByStatus(ctx context.Context) (map[accounts.Status]int, error)
	CountActiveSessions(ctx context.Context, now time.Time) (int, error)
	SignupsByDay(ctx context.Context, from time.Time) ([]report.Point, error)
	TrustDistribution(ctx context.Context) ([]report.Share, error)
}

// LoginStats is the subset of the security store the monitor reads.
type LoginStats interface {
	LoginsByDay(ctx context.Context, from time.Time) ([]report.SplitPoint, error)
}

// Runtime holds process statistics.
type Runtime struct {
	GoVersion  string `json:"goVersion"`
	Goroutines int    `json:"goroutines"`
	HeapAlloc  uint64 `json:"heapAlloc"`
	NumGC      uint32 `json:"numGc"`
}

// Status is the data behind the system page.
type Status struct {
	Health         string              `json:"health"`
	UsersByStatus  []report.Share      `json:"usersByStatus"`
	TotalUsers     int                 `json:"totalUsers"`
	ActiveSessions int                 `json:"activeSessions"`
	SignupsByDay   []report.Point      `json:"signupsByDay"`
	LoginsByDay    []report.SplitPoint `json:"loginsByDay"`
	Trust          []report.Share      `json:"trust"`
	DBLatency      time.Duration       `json:"dbLatency"`
	DBError        string              `json:"dbError,omitempty"`
	Uptime         time.Duration       `json:"uptime"`
	Runtime        Runtime             `json:"runtime"`
	GeneratedAt    time.Time           `json:"generatedAt"`
}

// Monitor gathers system status.
type Monitor struct {
	db      *sql.DB
	users   UserStats
	logins  LoginStats
	started time.Time
}

// NewMonitor returns a Monitor whose uptime counts from started.
func NewMonitor(db *sql.DB, users UserStats, logins LoginStats, started time.Time) *Monitor {
	return &Monitor{db: db, users: users, logins: logins, started: started}
}

// Ping measures a SELECT 1 round trip.
func (m *Monitor) Ping(ctx context.Context) (time.Duration, error) {
	start := time.Now()
	var one int
	if err := m.db.QueryRowContext(ctx, `SELECT 1`).Scan(&one); err != nil {
		return 0, err
	}
	return time.Since(start), nil
}

// Health returns Healthy or Degraded based on a database ping.
func (m *Monitor) Health(ctx context.Context) (string, time.Duration, error) {
	d, err := m.Ping(ctx)
	if err != nil {
		return Degraded, 0, err
	}
	if d > SlowLatency {
		return Degraded, d, nil
	}
	return Healthy, d, nil
}

// Status collects every system page figure concurrently.
func (m *Monitor) Status(ctx context.Context, now time.Time) (*Status, error) {
	now = now.UTC()
	st := &Status{GeneratedAt: now, Uptime: now.Sub(m.started).Truncate(time.Second)}
	from := report.Since(now, 7)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		counts, err := m.users.CountByStatus(gctx)
		if err != nil {
			return fmt.Errorf("users by status: %w", err)
		}
		names := make([]string, len(accounts.Statuses))
		byName := make(map[string]int, len(counts))
		for i, s := range accounts.Statuses {
			names[i] = string(s)
			byName[string(s)] = counts[s]
			st.TotalUsers += counts[s]
		}
		st.UsersByStatus = report.Shares(names, byName)
		return nil
	})
	g.Go(func() error {
		n, err := m.users.CountActiveSessions(gctx, now)
		if err != nil {
			return fmt.Errorf("active sessions: %w", err)
		}
		st.ActiveSessions = n
		return nil
	})
	g.Go(func() error {
		pts, err := m.users.SignupsByDay(gctx, from)
		if err != nil {
			return fmt.Errorf("signups by day: %w", err)
		}
		st.SignupsByDay = report.FillDaily(pts, from, 7)
		return nil
	})
	g.Go(func() error {
		pts, err := m.logins.LoginsByDay(gctx, from)
		if err != nil {
			return fmt.Errorf("logins by day: %w", err)
		}
		st.LoginsByDay = report.FillDailySplit(pts, from, 7)
		return nil
	})
	g.Go(func() error {
		trust, err := m.users.TrustDistribution(gctx)
		if err != nil {
			return fmt.Errorf("trust distribution: %w", err)
		}
		st.Trust = trust
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	// Ping once the aggregate queries are done.
	health, latency, err := m.Health(ctx)
	st.Health = health
	st.DBLatency = latency
	if err != nil {
		st.DBError = err.Error()
	}
	st.Runtime = readRuntime()
	return st, nil
}

func readRuntime() Runtime {
	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)
	return Runtime{
		GoVersion:  runtime.Version(),
		Goroutines: runtime.NumGoroutine(),
		HeapAlloc:  ms.HeapAlloc,
		NumGC:      ms.NumGC,
	}
}
