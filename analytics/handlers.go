package analytics

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/a-h/templ"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/eringen/panelengine/analytics/templates"
	"github.com/eringen/panelengine/report"
)

// Handler handles analytics HTTP requests.
type Handler struct {
	store          *Store
	collectLimiter *rateLimiter
	siteExists     func(ctx context.Context, site string) bool
	log            *zap.Logger
	now            func() time.Time
}

// NewHandler creates a new analytics handler. siteExists rejects visits for
// unknown sites; nil accepts every site. The collect endpoint is
// rate-limited to 60 requests per IP per minute.
func NewHandler(store *Store, siteExists func(ctx context.Context, site string) bool, log *zap.Logger) *Handler {
	if log == nil {
		log = zap.NewNop()
	}
	return &Handler{
		store:          store,
		collectLimiter: newRateLimiter(60, time.Minute),
		siteExists:     siteExists,
		log:            log,
		now:            time.Now,
	}
}

// CollectRequest is the expected request body for the collect endpoint.
type CollectRequest struct {
	Site        string `json:"site"`
	Path        string `json:"path"`
	Referrer    string `json:"referrer"`
	ScreenSize  string `json:"screen_size"`
	UserAgent   string `json:"user_agent"`
	DurationSec int    `json:"duration_sec"`
}

// Input validation limits for the collect endpoint.
const (
	maxSiteLen       = 64
	maxPathLen       = 2048
	maxReferrerLen   = 2048
	maxScreenSizeLen = 32
	maxUserAgentLen  = 512
	maxDurationSec   = 86400 // 24 hours
)

func validateCollectRequest(req *CollectRequest) error {
	switch {
	case req.Site == "":
		return fmt.Errorf("site is required")
	case len(req.Site) > maxSiteLen:
		return fmt.Errorf("site exceeds maximum length of %d", maxSiteLen)
	case len(req.Path) > maxPathLen:
		return fmt.Errorf("path exceeds maximum length of %d", maxPathLen)
	case len(req.Referrer) > maxReferrerLen:
		return fmt.Errorf("referrer exceeds maximum length of %d", maxReferrerLen)
	case len(req.ScreenSize) > maxScreenSizeLen:
		return fmt.Errorf("screen_size exceeds maximum length of %d", maxScreenSizeLen)
	case len(req.UserAgent) > maxUserAgentLen:
		return fmt.Errorf("user_agent exceeds maximum length of %d", maxUserAgentLen)
	case req.DurationSec < 0:
		return fmt.Errorf("duration_sec must not be negative")
	case req.DurationSec > maxDurationSec:
		return fmt.Errorf("duration_sec exceeds maximum of %d", maxDurationSec)
	}
	return nil
}

// Collect handles incoming analytics data from tracked websites.
func (h *Handler) Collect(c echo.Context) error {
	ip := c.RealIP()
	if !h.collectLimiter.allow(ip) {
		return c.NoContent(http.StatusTooManyRequests)
	}
	if c.Request().Header.Get("DNT") == "1" {
		return c.NoContent(http.StatusNoContent)
	}

	var req CollectRequest
	if err := c.Bind(&req); err != nil {
		return c.String(http.StatusBadRequest, "Invalid request")
	}
	req.Site = NormalizeSite(req.Site)
	if err := validateCollectRequest(&req); err != nil {
		return c.String(http.StatusBadRequest, "Invalid request")
	}
	ctx := c.Request().Context()
	if h.siteExists != nil && !h.siteExists(ctx, req.Site) {
		return c.NoContent(http.StatusNotFound)
	}
	if req.Path == "" {
		req.Path = "/"
	}

	userAgent := req.UserAgent
	if userAgent == "" {
		userAgent = c.Request().UserAgent()
	}
	now := h.now().UTC()

	if IsBot(userAgent) {
		bv := &BotVisit{
			Site:      req.Site,
			BotName:   BotName(userAgent),
			IPHash:    h.store.HashIP(ip),
			UserAgent: userAgent,
			Path:      req.Path,
			Timestamp: now,
		}
		if err := h.store.SaveBotVisit(ctx, bv); err != nil {
			h.log.Error("save bot visit", zap.String("site", req.Site), zap.Error(err))
		}
		return c.NoContent(http.StatusNoContent)
	}

	visitorID := h.store.VisitorID(ip, userAgent)

	// A duration marks the unload beacon for a visit already recorded.
	if req.DurationSec > 0 {
		if err := h.store.UpdateVisitDuration(ctx, req.Site, visitorID, req.Path, req.DurationSec); err != nil {
			h.log.Error("update visit duration", zap.String("site", req.Site), zap.Error(err))
		}
		return c.NoContent(http.StatusNoContent)
	}

	browser, os, device := ParseUserAgent(userAgent)
	visit := &Visit{
		Site:       req.Site,
		VisitorID:  visitorID,
		SessionID:  SessionID(visitorID, now),
		IPHash:     h.store.HashIP(ip),
		Browser:    browser,
		OS:         os,
		Device:     device,
		Path:       req.Path,
		Referrer:   CleanReferrer(req.Referrer),
		ScreenSize: req.ScreenSize,
		Timestamp:  now,
	}
	if err := h.store.SaveVisit(ctx, visit); err != nil {
		h.log.Error("save visit", zap.String("site", req.Site), zap.Error(err))
	}
	return c.NoContent(http.StatusNoContent)
}

// StatsResponse is the JSON response for the stats endpoint.
type StatsResponse struct {
	Stats    *Stats `json:"stats"`
	Realtime int    `json:"realtimeVisitors"`
	Period   string `json:"period"`
}

// BotStatsResponse is the JSON response for the bot stats endpoint.
type BotStatsResponse struct {
	Stats  *BotStats `json:"stats"`
	Period string    `json:"period"`
}

// site resolves the :subdomain path parameter, answering 404 for unknown
// sites.
func (h *Handler) site(c echo.Context) (string, error) {
	site := NormalizeSite(c.Param("subdomain"))
	if site == "" || (h.siteExists != nil && !h.siteExists(c.Request().Context(), site)) {
		return "", echo.NewHTTPError(http.StatusNotFound, "website not found")
	}
	return site, nil
}

func (h *Handler) period(c echo.Context) (name string, from, to time.Time, g report.Granularity) {
	name, _, _ = report.Period(c.QueryParam("period"))
	from, to, g = report.Range(h.now(), name)
	return name, from, to, g
}

// GetStats returns visitor statistics as JSON.
func (h *Handler) GetStats(c echo.Context) error {
	site, err := h.site(c)
	if err != nil {
		return err
	}
	name, from, to, g := h.period(c)
	ctx := c.Request().Context()
	stats, err := h.store.GetStats(ctx, site, from, to, g)
	if err != nil {
		h.log.Error("get stats", zap.String("site", site), zap.Error(err))
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Internal server error"})
	}
	realtime, _ := h.store.GetRealtimeVisitors(ctx, site)
	return c.JSON(http.StatusOK, StatsResponse{Stats: stats, Realtime: realtime, Period: name})
}

// GetBotStats returns bot statistics as JSON.
func (h *Handler) GetBotStats(c echo.Context) error {
	site, err := h.site(c)
	if err != nil {
		return err
	}
	name, from, to, g := h.period(c)
	stats, err := h.store.GetBotStats(c.Request().Context(), site, from, to, g)
	if err != nil {
		h.log.Error("get bot stats", zap.String("site", site), zap.Error(err))
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Internal server error"})
	}
	return c.JSON(http.StatusOK, BotStatsResponse{Stats: stats, Period: name})
}

func render(c echo.Context, status int, comp templ.Component) error {
	c.Response().Header().Set(echo.HeaderContentType, echo.MIMETextHTMLCharsetUTF8)
	c.Response().WriteHeader(status)
	return comp.Render(c.Request().Context(), c.Response())
}

// GetStatsFragment returns the visitor tab for htmx.
func (h *Handler) GetStatsFragment(c echo.Context) error {
	site, err := h.site(c)
	if err != nil {
		return err
	}
	_, from, to, g := h.period(c)
	ctx := c.Request().Context()
	stats, err := h.store.GetStats(ctx, site, from, to, g)
	if err != nil {
		h.log.Error("get stats fragment", zap.String("site", site), zap.Error(err))
		return c.HTML(http.StatusInternalServerError, "<div class='loading'>Error loading data</div>")
	}
	realtime, _ := h.store.GetRealtimeVisitors(ctx, site)
	return render(c, http.StatusOK, templates.StatsFragment(statsViewModel(stats, realtime)))
}

// GetBotStatsFragment returns the bots tab for htmx.
func (h *Handler) GetBotStatsFragment(c echo.Context) error {
	site, err := h.site(c)
	if err != nil {
		return err
	}
	_, from, to, g := h.period(c)
	stats, err := h.store.GetBotStats(c.Request().Context(), site, from, to, g)
	if err != nil {
		h.log.Error("get bot stats fragment", zap.String("site", site), zap.Error(err))
		return c.HTML(http.StatusInternalServerError, "<div class='loading'>Error loading data</div>")
	}
	return render(c, http.StatusOK, templates.BotStatsFragment(botStatsViewModel(stats)))
}

// GetSetupFragment returns the tracking snippet tab for htmx.
func (h *Handler) GetSetupFragment(c echo.Context) error {
	site, err := h.site(c)
	if err != nil {
		return err
	}
	origin := c.Scheme() + "://" + c.Request().Host
	return render(c, http.StatusOK, templates.SetupContent(origin, site))
}

// DashboardHTML serves the analytics page for one website.
func (h *Handler) DashboardHTML(c echo.Context) error {
	site, err := h.site(c)
	if err != nil {
		return err
	}
	name, _, _ := report.Period(c.QueryParam("period"))
	base := "/console/websites/" + site + "/analytics/"
	return render(c, http.StatusOK, templates.Dashboard(site, base, name))
}

// RegisterRoutes mounts the collect endpoint on public and the console pages
// under /console/websites/:subdomain/analytics behind auth.
func (h *Handler) RegisterRoutes(e *echo.Echo, public *echo.Group, auth echo.MiddlewareFunc) {
	public.POST("/api/analytics/collect", h.Collect)

	console := e.Group("/console/websites/:subdomain/analytics")
	if auth != nil {
		console.Use(auth)
	}
	console.GET("/", h.DashboardHTML)
	console.GET("/api/stats", h.GetStats)
	console.GET("/api/bot-stats", h.GetBotStats)
	console.GET("/fragments/stats", h.GetStatsFragment)
	console.GET("/fragments/bot-stats", h.GetBotStatsFragment)
	console.GET("/fragments/setup", h.GetSetupFragment)
}

func rows(d []DimensionStat) []templates.RowViewModel {
	total := 0
	for _, x := range d {
		total += x.Count
	}
	out := make([]templates.RowViewModel, len(d))
	for i, x := range d {
		out[i] = templates.RowViewModel{Name: x.Name, Count: x.Count, Percent: report.Percent(x.Count, total)}
	}
	return out
}

func pageRows(p []PageStat) []templates.RowViewModel {
	d := make([]DimensionStat, len(p))
	for i, x := range p {
		d[i] = DimensionStat{Name: x.Path, Count: x.Views}
	}
	return rows(d)
}

func bars(series []report.Point) []templates.BarViewModel {
	peak := 0
	for _, p := range series {
		peak = max(peak, p.Value)
	}
	out := make([]templates.BarViewModel, len(series))
	for i, p := range series {
		out[i] = templates.BarViewModel{Label: p.Label, Value: p.Value, Height: report.Percent(p.Value, peak)}
	}
	return out
}

// FormatDuration renders seconds as "1m 05s" or "42s".
func FormatDuration(sec int) string {
	if sec < 60 {
		return fmt.Sprintf("%ds", sec)
	}
	return fmt.Sprintf("%dm %02ds", sec/60, sec%60)
}

func statsViewModel(s *Stats, realtime int) *templates.StatsViewModel {
	vm := &templates.StatsViewModel{
		Site:           s.Site,
		Period:         s.Period,
		UniqueVisitors: report.FormatCount(s.UniqueVisitors),
		TotalViews:     report.FormatCount(s.TotalViews),
		AvgDuration:    FormatDuration(s.AvgDuration),
		Realtime:       realtime,
		TopPages:       pageRows(s.TopPages),
		Browsers:       rows(s.Browsers),
		OS:             rows(s.OS),
		Devices:        rows(s.Devices),
		Referrers:      rows(s.Referrers),
		Series:         bars(s.Series),
	}
	vm.LatestPages = make([]templates.LatestPageVisitViewModel, len(s.LatestPages))
	for i, lp := range s.LatestPages {
		vm.LatestPages[i] = templates.LatestPageVisitViewModel{
			Path:    lp.Path,
			When:    lp.Timestamp.Format("Jan 2 15:04"),
			Browser: lp.Browser,
		}
	}
	return vm
}

func botStatsViewModel(s *BotStats) *templates.BotStatsViewModel {
	return &templates.BotStatsViewModel{
		Site:        s.Site,
		Period:      s.Period,
		TotalVisits: report.FormatCount(s.TotalVisits),
		TopBots:     rows(s.TopBots),
		TopPages:    pageRows(s.TopPages),
		Series:      bars(s.Series),
	}
}

// IsCollectPath reports whether path is the collect endpoint, for CSRF
// skippers.
func IsCollectPath(path string) bool {
	return strings.TrimSuffix(path, "/") == "/api/analytics/collect"
}
