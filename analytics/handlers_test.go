package analytics

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eringen/panelengine/report"
)

const chromeUA = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0 Safari/537.36"

func newTestServer(t *testing.T) (*echo.Echo, *Store) {
	t.Helper()
	s := newTestStore(t)
	h := NewHandler(s, func(_ context.Context, site string) bool { return site == "acme" }, nil)
	h.now = func() time.Time { return testNow }
	e := echo.New()
	h.RegisterRoutes(e, e.Group(""), nil)
	return e, s
}

func collect(e *echo.Echo, body string, headers map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/api/analytics/collect", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	req.Header.Set("User-Agent", chromeUA)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestCollect(t *testing.T) {
	e, s := newTestServer(t)
	ctx := context.Background()
	from, to, g := report.Range(testNow, "week")

	rec := collect(e, `{"site":"ACME","path":"/pricing","referrer":"https://www.google.com/"}`, nil)
	require.Equal(t, http.StatusNoContent, rec.Code)

	stats, err := s.GetStats(ctx, "acme", from, to, g)
	require.NoError(t, err)
	require.Equal(t, 1, stats.TotalViews)
	assert.Equal(t, []DimensionStat{{"Google", 1}}, stats.Referrers)
	assert.Equal(t, []DimensionStat{{"Chrome", 1}}, stats.Browsers)

	rec = collect(e, `{"site":"acme","path":"/pricing","duration_sec":45}`, nil)
	require.Equal(t, http.StatusNoContent, rec.Code)
	stats, err = s.GetStats(ctx, "acme", from, to, g)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.TotalViews, "beacon must not add a view")
	assert.Equal(t, 45, stats.AvgDuration)

	rec = collect(e, `{"site":"acme","path":"/"}`, map[string]string{"DNT": "1"})
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = collect(e, `{"site":"acme","path":"/"}`, map[string]string{"User-Agent": "Googlebot/2.1"})
	assert.Equal(t, http.StatusNoContent, rec.Code)
	bots, err := s.GetBotStats(ctx, "acme", from, to, g)
	require.NoError(t, err)
	assert.Equal(t, 1, bots.TotalVisits)

	stats, err = s.GetStats(ctx, "acme", from, to, g)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.TotalViews, "DNT and bot requests are not views")

	assert.Equal(t, http.StatusNotFound, collect(e, `{"site":"ghost","path":"/"}`, nil).Code)
	assert.Equal(t, http.StatusBadRequest, collect(e, `{"path":"/"}`, nil).Code)
	assert.Equal(t, http.StatusBadRequest, collect(e, `{"site":"acme","duration_sec":-1}`, nil).Code)
	assert.Equal(t, http.StatusBadRequest, collect(e, `not json`, nil).Code)
}

func TestCollectRateLimit(t *testing.T) {
	e, _ := newTestServer(t)
	headers := map[string]string{"X-Real-IP": "203.0.113.9"}
	for i := 0; i < 60; i++ {
		require.Equal(t, http.StatusNoContent, collect(e, `{"site":"acme","path":"/"}`, headers).Code)
	}
	assert.Equal(t, http.StatusTooManyRequests, collect(e, `{"site":"acme","path":"/"}`, headers).Code)
}

func TestConsoleEndpoints(t *testing.T) {
	e, _ := newTestServer(t)
	require.Equal(t, http.StatusNoContent, collect(e, `{"site":"acme","path":"/menu"}`, nil).Code)

	get := func(path string) *httptest.ResponseRecorder {
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		return rec
	}

	rec := get("/console/websites/acme/analytics/api/stats?period=today")
	require.Equal(t, http.StatusOK, rec.Code)
	var resp StatsResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "today", resp.Period)
	assert.Equal(t, 1, resp.Stats.TotalViews)
	assert.Equal(t, 1, resp.Realtime)
	assert.Len(t, resp.Stats.Series, 24)

	rec = get("/console/websites/acme/analytics/api/bot-stats?period=bogus")
	require.Equal(t, http.StatusOK, rec.Code)
	var bots BotStatsResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &bots))
	assert.Equal(t, "week", bots.Period)

	rec = get("/console/websites/acme/analytics/fragments/stats?period=week")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "/menu")

	rec = get("/console/websites/acme/analytics/fragments/setup")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `data-site=&#34;acme&#34;`)

	rec = get("/console/websites/acme/analytics/")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Analytics: acme")

	assert.Equal(t, http.StatusNotFound, get("/console/websites/ghost/analytics/api/stats").Code)
}
