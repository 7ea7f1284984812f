package panelengine

import (
	"crypto/subtle"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"golang.org/x/sync/errgroup"

	"github.com/eringen/panelengine/audit"
	"github.com/eringen/panelengine/billing"
	"github.com/eringen/panelengine/paging"
	"github.com/eringen/panelengine/report"
	"github.com/eringen/panelengine/security"
	"github.com/eringen/panelengine/system"
	"github.com/eringen/panelengine/views"
	"github.com/eringen/panelengine/wizard"
)

// adminUser is the name recorded for the single password-protected admin.
const adminUser = "admin"

const auditPageSize = 20

func actor(c echo.Context) audit.Actor {
	return audit.Actor{Name: adminUser, IP: c.RealIP()}
}

// record writes an audit entry. Failures are logged, never returned: the
// change itself has already been committed.
func (a *App) record(c echo.Context, action, target string, details any) {
	if err := a.Audit.Record(c.Request().Context(), actor(c), action, target, details); err != nil {
		a.Logger.Warn("audit", zap.String("action", action), zap.String("target", target), zap.Error(err))
	}
}

func (a *App) handleAdmin(c echo.Context) error {
	if !IsAdmin(c) {
		return Render(c, a.Views.AdminLogin(views.LoginPage{Page: a.page(c, "")}))
	}
	return a.handleOverview(c)
}

func (a *App) checkPassword(pass string) bool {
	if a.Config.AdminPasswordHash != "" {
		return bcrypt.CompareHashAndPassword([]byte(a.Config.AdminPasswordHash), []byte(pass)) == nil
	}
	return subtle.ConstantTimeCompare([]byte(pass), []byte(a.Config.AdminPassword)) == 1
}

// lockedOut reports whether ip has used up auth.maxLoginAttempts within the
// last auth.lockoutDuration minutes, counting both this process and the
// recorded attempts.
func (a *App) lockedOut(c echo.Context, ip string) bool {
	if !a.loginLimiter.Check(ip) {
		return true
	}
	ctx := c.Request().Context()
	limit := a.Settings.Int(ctx, "auth.maxLoginAttempts", 5)
	window := time.Duration(a.Settings.Int(ctx, "auth.lockoutDuration", 15)) * time.Minute
	failed, err := a.Security.FailedLoginsSince(ctx, ip, a.now().Add(-window))
	if err != nil {
		a.Logger.Warn("count failed logins", zap.String("ip", ip), zap.Error(err))
		return false
	}
	return limit > 0 && failed >= limit
}

func (a *App) logEvent(c echo.Context, action security.Action, status security.Status, details string) {
	_, err := a.Security.LogEvent(c.Request().Context(), security.Event{
		Action:    action,
		Status:    status,
		UserID:    adminUser,
		IP:        c.RealIP(),
		UserAgent: c.Request().UserAgent(),
		Details:   details,
	})
	if err != nil {
		a.Logger.Warn("security event", zap.String("action", string(action)), zap.Error(err))
	}
}

func (a *App) handleAdminLogin(c echo.Context) error {
	ctx := c.Request().Context()
	ip := c.RealIP()
	if a.lockedOut(c, ip) {
		a.logEvent(c, security.ActionLogin, security.StatusBlocked, "too many failed attempts")
		return RenderStatus(c, http.StatusTooManyRequests, a.Views.AdminLogin(views.LoginPage{Page: a.page(c, ""), Locked: true}))
	}

	ok := a.checkPassword(c.FormValue("password"))
	attempt := security.LoginAttempt{Email: adminUser, IP: ip, Success: ok}
	if err := a.Security.RecordLoginAttempt(ctx, attempt, c.Request().UserAgent()); err != nil {
		a.Logger.Warn("record login attempt", zap.Error(err))
	}
	if !ok {
		a.loginLimiter.Record(ip)
		a.logEvent(c, security.ActionLogin, security.StatusFailure, "invalid password")
		return RenderStatus(c, http.StatusUnauthorized, a.Views.AdminLogin(views.LoginPage{Page: a.page(c, ""), Failed: true}))
	}

	a.loginLimiter.Reset(ip)
	timeout := time.Duration(a.Settings.Int(ctx, "auth.sessionTimeout", 720)) * time.Minute
	if err := setAdminSession(c, timeout); err != nil {
		return err
	}
	a.logEvent(c, security.ActionLogin, security.StatusSuccess, "")
	a.record(c, audit.AdminLogin, adminUser, nil)
	return c.Redirect(http.StatusSeeOther, "/admin/")
}

func (a *App) handleAdminLogout(c echo.Context) error {
	if IsAdmin(c) {
		a.logEvent(c, security.ActionLogout, security.StatusSuccess, "")
	}
	if err := clearAdminSession(c); err != nil {
		return err
	}
	return c.Redirect(http.StatusSeeOther, "/admin/")
}

// metrics flattens dashboard figures into the names alert rules refer to.
// Nil sources are left out.
func metrics(sec *security.Overview, sys *system.Status, bill *billing.Stats, wiz *wizard.Analytics) map[string]float64 {
	m := make(map[string]float64)
	if sec != nil {
		m["security.failedLogins24h"] = float64(sec.FailedLogins24h)
		m["security.blocked24h"] = float64(sec.Blocked24h)
		m["security.twoFactorPercent"] = float64(sec.TwoFactorPercent)
	}
	if sys != nil {
		m["users.total"] = float64(sys.TotalUsers)
		m["sessions.active"] = float64(sys.ActiveSessions)
		m["db.latencyMs"] = float64(sys.DBLatency.Milliseconds())
	}
	if bill != nil {
		m["billing.outstanding"] = float64(bill.OutstandingCents) / 100
		m["billing.revenue"] = float64(bill.RevenueCents) / 100
		m["billing.revenueGrowth"] = bill.Growth
	}
	if wiz != nil {
		m["wizard.conversionRate"] = wiz.ConversionRate
		m["wizard.abandoned"] = float64(wiz.AbandonedSessions)
	}
	return m
}

func (a *App) handleOverview(c echo.Context) error {
	ctx := c.Request().Context()
	now := a.now()
	data := views.OverviewPage{Page: a.page(c, "overview")}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		data.Security, err = a.Security.Overview(gctx, now, a.Accounts)
		return err
	})
	g.Go(func() (err error) {
		data.System, err = a.Monitor.Status(gctx, now)
		return err
	})
	g.Go(func() (err error) {
		data.Billing, err = a.Billing.Stats(gctx, c.QueryParam("period"), now)
		return err
	})
	g.Go(func() (err error) {
		data.Wizard, err = a.Wizard.Analytics(gctx)
		return err
	})
	g.Go(func() (err error) {
		data.Preferences, err = a.Settings.Preferences(gctx, adminUser)
		return err
	})
	if err := g.Wait(); err != nil {
		return err
	}

	alerts, err := a.Settings.Evaluate(ctx, metrics(data.Security, data.System, &data.Billing, &data.Wizard))
	if err != nil {
		return err
	}
	data.Alerts = alerts
	return respond(c, data, a.Views.AdminOverview)
}

func (a *App) handleSecurity(c echo.Context) error {
	ctx := c.Request().Context()
	q := c.QueryParams()
	filter := security.EventFilter{
		Action: security.Action(q.Get("action")),
		Status: security.Status(q.Get("status")),
		Days:   report.ParseDays(q.Get("days"), security.DefaultDays, 1, 7, 30, 90),
	}
	data := views.SecurityPage{Page: a.page(c, "security")}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		data.Overview, err = a.Security.Overview(gctx, a.now(), a.Accounts)
		return err
	})
	g.Go(func() (err error) {
		data.Events, err = a.Security.Events(gctx, filter, paging.Parse(q, security.EventPageSize, security.EventPageSize))
		return err
	})
	if err := g.Wait(); err != nil {
		return err
	}
	return respond(c, data, a.Views.AdminSecurity)
}

func (a *App) handleLogs(c echo.Context) error {
	ctx := c.Request().Context()
	q := c.QueryParams()
	filter := security.LogFilter{
		Type:   security.ParseLogType(q.Get("type")),
		Search: q.Get("q"),
		Days:   report.ParseDays(q.Get("days"), security.DefaultDays, 1, 7, 30, 90),
	}
	logs, err := a.Security.Logs(ctx, filter, paging.Parse(q, security.LogPageSize, security.LogPageSize))
	if err != nil {
		return err
	}
	entries, _, err := a.Audit.List(ctx, q.Get("action"), paging.New(1, auditPageSize, 0))
	if err != nil {
		return err
	}
	return respond(c, views.LogsPage{Page: a.page(c, "logs"), Logs: logs, Audit: entries}, a.Views.AdminLogs)
}

func (a *App) handleSystem(c echo.Context) error {
	ctx := c.Request().Context()
	st, err := a.Monitor.Status(ctx, a.now())
	if err != nil {
		return err
	}
	alerts, err := a.Settings.Evaluate(ctx, metrics(nil, st, nil, nil))
	if err != nil {
		return err
	}
	return respond(c, views.SystemPage{Page: a.page(c, "system"), Status: st, Alerts: alerts}, a.Views.AdminSystem)
}
