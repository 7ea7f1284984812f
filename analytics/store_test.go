package analytics

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/eringen/panelengine/database"
	"github.com/eringen/panelengine/report"
)

var testNow = time.Date(2026, 4, 10, 12, 30, 0, 0, time.UTC)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	db, err := database.Open(filepath.Join(t.TempDir(), "analytics.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	s, err := NewStore(context.Background(), db)
	require.NoError(t, err)
	s.SetClock(func() time.Time { return testNow })
	return s
}

func visit(site, visitor, path, browser string, at time.Time) *Visit {
	return &Visit{
		Site:      site,
		VisitorID: visitor,
		SessionID: SessionID(visitor, at),
		IPHash:    "ip",
		Browser:   browser,
		OS:        "Linux",
		Device:    "Desktop",
		Path:      path,
		Referrer:  "Direct",
		Timestamp: at,
	}
}

func TestSaltIsStable(t *testing.T) {
	dir := t.TempDir()
	db, err := database.Open(filepath.Join(dir, "analytics.db"))
	require.NoError(t, err)
	defer db.Close()

	a, err := NewStore(context.Background(), db)
	require.NoError(t, err)
	b, err := NewStore(context.Background(), db)
	require.NoError(t, err)
	assert.Equal(t, a.HashIP("10.0.0.1"), b.HashIP("10.0.0.1"))
	assert.NotEqual(t, a.HashIP("10.0.0.1"), a.HashIP("10.0.0.2"))
	assert.NotEqual(t, a.VisitorID("10.0.0.1", "ua"), a.VisitorID("10.0.0.1", "other"))
}

func TestGetStats(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	day := 24 * time.Hour

	for _, v := range []*Visit{
		visit("acme", "v1", "/", "Chrome", testNow.Add(-time.Hour)),
		visit("acme", "v1", "/about", "Chrome", testNow.Add(-50*time.Minute)),
		visit("acme", "v2", "/", "Firefox", testNow.Add(-2*day)),
		visit("acme", "v3", "/", "Chrome", testNow.Add(-10*day)), // outside the week
		visit("other", "v9", "/", "Safari", testNow.Add(-time.Hour)),
	} {
		require.NoError(t, s.SaveVisit(ctx, v))
	}
	require.NoError(t, s.UpdateVisitDuration(ctx, "acme", "v1", "/", 30))
	require.NoError(t, s.UpdateVisitDuration(ctx, "acme", "v2", "/", 90))

	from, to, g := report.Range(testNow, "week")
	stats, err := s.GetStats(ctx, "acme", from, to, g)
	require.NoError(t, err)

	assert.Equal(t, 3, stats.TotalViews)
	assert.Equal(t, 2, stats.UniqueVisitors)
	assert.Equal(t, 60, stats.AvgDuration)
	if diff := cmp.Diff([]PageStat{{"/", 2}, {"/about", 1}}, stats.TopPages); diff != "" {
		t.Errorf("top pages (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]DimensionStat{{"Chrome", 2}, {"Firefox", 1}}, stats.Browsers); diff != "" {
		t.Errorf("browsers (-want +got):\n%s", diff)
	}
	require.Len(t, stats.LatestPages, 3)
	assert.Equal(t, "/about", stats.LatestPages[0].Path)

	require.Len(t, stats.Series, 7)
	assert.Equal(t, report.Point{Label: "2026-04-10", Value: 2}, stats.Series[6])
	assert.Equal(t, report.Point{Label: "2026-04-08", Value: 1}, stats.Series[4])
	assert.Equal(t, 0, stats.Series[0].Value)

	from, to, g = report.Range(testNow, "today")
	hourly, err := s.GetStats(ctx, "acme", from, to, g)
	require.NoError(t, err)
	require.Len(t, hourly.Series, 24)
	assert.Equal(t, report.Point{Label: "11:00", Value: 2}, hourly.Series[22])
	assert.Equal(t, report.Point{Label: "12:00", Value: 0}, hourly.Series[23])

	empty, err := s.GetStats(ctx, "nobody", from, to, g)
	require.NoError(t, err)
	assert.Zero(t, empty.TotalViews)
	assert.NotNil(t, empty.TopPages)
}

func TestBotStatsAndRealtime(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	for _, name := range []string{"Googlebot", "Googlebot", "Bingbot"} {
		require.NoError(t, s.SaveBotVisit(ctx, &BotVisit{
			Site: "acme", BotName: name, IPHash: "ip", UserAgent: name, Path: "/robots.txt", Timestamp: testNow.Add(-time.Hour),
		}))
	}
	from, to, g := report.Range(testNow, "month")
	bots, err := s.GetBotStats(ctx, "acme", from, to, g)
	require.NoError(t, err)
	assert.Equal(t, 3, bots.TotalVisits)
	assert.Equal(t, []DimensionStat{{"Googlebot", 2}, {"Bingbot", 1}}, bots.TopBots)
	assert.Len(t, bots.Series, 30)

	require.NoError(t, s.SaveVisit(ctx, visit("acme", "v1", "/", "Chrome", testNow.Add(-2*time.Minute))))
	require.NoError(t, s.SaveVisit(ctx, visit("acme", "v2", "/", "Chrome", testNow.Add(-10*time.Minute))))
	n, err := s.GetRealtimeVisitors(ctx, "acme")
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	sites, err := s.Sites(ctx)
	require.NoError(t, err)
	assert.Equal(t, []DimensionStat{{"acme", 2}}, sites)
}

func TestCleanupOldVisits(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.SaveVisit(ctx, visit("acme", "old", "/", "Chrome", testNow.AddDate(0, 0, -400))))
	require.NoError(t, s.SaveVisit(ctx, visit("acme", "new", "/", "Chrome", testNow.AddDate(0, 0, -1))))
	require.NoError(t, s.SaveBotVisit(ctx, &BotVisit{Site: "acme", BotName: "Googlebot", Path: "/", Timestamp: testNow.AddDate(0, 0, -400)}))

	n, err := s.CleanupOldVisits(ctx, 365)
	require.NoError(t, err)
	assert.EqualValues(t, 2, n)

	sites, err := s.Sites(ctx)
	require.NoError(t, err)
	assert.Equal(t, []DimensionStat{{"acme", 1}}, sites)
}

func TestStartCleanupScheduler(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreTopFunction("database/sql.(*DB).connectionOpener"))

	s := newTestStore(t)
	require.NoError(t, s.SaveVisit(context.Background(), visit("acme", "old", "/", "Chrome", testNow.AddDate(0, 0, -400))))

	stop := s.StartCleanupScheduler(365, 10*time.Millisecond, nil)
	require.Eventually(t, func() bool {
		sites, err := s.Sites(context.Background())
		return err == nil && len(sites) == 0
	}, 2*time.Second, 10*time.Millisecond)
	stop()
}
