package panelengine

import (
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/sessions"
	"github.com/labstack/echo-contrib/session"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"

	"github.com/eringen/panelengine/analytics"
	"github.com/eringen/panelengine/security"
)

const (
	sessionName       = "admin_session"
	wizardSessionName = "wizard_session"
	userSessionName   = "user_session"
)

func (a *App) setupMiddleware() {
	e := a.Echo

	e.IPExtractor = echo.ExtractIPFromXFFHeader(
		echo.TrustLoopback(true),
		echo.TrustLinkLocal(false),
		echo.TrustPrivateNet(true),
	)

	e.HTTPErrorHandler = a.httpErrorHandler

	e.Pre(middleware.NonWWWRedirect())
	// HTML forms can only POST; _method carries PUT, PATCH and DELETE.
	e.Pre(middleware.MethodOverrideWithConfig(middleware.MethodOverrideConfig{
		Getter: middleware.MethodFromForm("_method"),
	}))

	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogStatus:   true,
		LogURI:      true,
		LogMethod:   true,
		LogLatency:  true,
		LogRemoteIP: true,
		LogError:    true,
		HandleError: true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			fields := []zap.Field{
				zap.String("method", v.Method),
				zap.String("uri", v.URI),
				zap.Int("status", v.Status),
				zap.Duration("latency", v.Latency),
				zap.String("remote_ip", v.RemoteIP),
			}
			if v.Error != nil {
				fields = append(fields, zap.Error(v.Error))
			}
			a.Logger.Info("request", fields...)
			return nil
		},
	}))

	e.Use(middleware.Recover())

	e.Use(middleware.GzipWithConfig(middleware.GzipConfig{
		Level: 5,
		Skipper: func(c echo.Context) bool {
			p := c.Request().URL.Path
			return strings.HasPrefix(p, "/public/") || strings.HasPrefix(p, "/uploads/")
		},
	}))

	e.Use(middleware.SecureWithConfig(middleware.SecureConfig{
		XSSProtection:         "1; mode=block",
		ContentTypeNosniff:    "nosniff",
		XFrameOptions:         "DENY",
		ReferrerPolicy:        "strict-origin-when-cross-origin",
		ContentSecurityPolicy: "default-src 'self'; script-src 'self' 'unsafe-inline'; style-src 'self' 'unsafe-inline'; img-src 'self' https: data:; font-src 'self'; connect-src 'self'",
		HSTSMaxAge:            31536000,
		HSTSExcludeSubdomains: false,
	}))

	// Tracked websites live on other origins.
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		Skipper: func(c echo.Context) bool {
			return !analytics.IsCollectPath(c.Request().URL.Path)
		},
		AllowOrigins: []string{"*"},
		AllowMethods: []string{http.MethodPost, http.MethodOptions},
		AllowHeaders: []string{echo.HeaderContentType},
	}))

	e.Use(session.Middleware(a.newSessionStore()))

	e.Use(middleware.CSRFWithConfig(middleware.CSRFConfig{
		ContextKey:     middleware.DefaultCSRFConfig.ContextKey,
		TokenLookup:    "header:X-CSRF-Token,form:_csrf",
		CookieName:     "_csrf",
		CookiePath:     "/",
		CookieSameSite: http.SameSiteLaxMode,
		CookieSecure:   a.Config.CookieSecure,
		Skipper: func(c echo.Context) bool {
			return analytics.IsCollectPath(c.Request().URL.Path)
		},
		ErrorHandler: func(err error, c echo.Context) error {
			return echo.NewHTTPError(http.StatusForbidden, "invalid csrf token")
		},
	}))

	e.Use(middleware.AddTrailingSlashWithConfig(middleware.TrailingSlashConfig{
		RedirectCode: http.StatusMovedPermanently,
		Skipper:      skipTrailingSlash,
	}))

	e.Use(cacheControlMiddleware)
	e.Use(a.accessLogMiddleware)
	e.Use(a.maintenanceMiddleware)
}

func skipTrailingSlash(c echo.Context) bool {
	path := c.Request().URL.Path
	return strings.HasPrefix(path, "/public") ||
		strings.HasPrefix(path, "/uploads") ||
		strings.HasPrefix(path, "/api/") ||
		strings.Contains(path, "/analytics/api/") ||
		strings.Contains(path, "/analytics/fragments/") ||
		path == "/sitemap.xml" || path == "/feed.xml" || path == "/robots.txt" ||
		path == "/favicon.svg" || path == "/healthz"
}

func cacheControlMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		path := c.Request().URL.Path
		switch {
		case strings.HasPrefix(path, "/public/"):
			c.Response().Header().Set("Cache-Control", "public, max-age=31536000, immutable")
		case strings.HasPrefix(path, "/uploads/"):
			c.Response().Header().Set("Cache-Control", "public, max-age=604800")
		case path == "/sitemap.xml" || path == "/feed.xml" || path == "/robots.txt":
			c.Response().Header().Set("Cache-Control", "public, max-age=86400")
		case strings.HasPrefix(path, "/admin"), strings.HasPrefix(path, "/console"), path == "/healthz":
			c.Response().Header().Set("Cache-Control", "no-store")
		default:
			c.Response().Header().Set("Cache-Control", "public, max-age=300")
		}
		return next(c)
	}
}

// accessLogMiddleware writes every admin request to the security access log.
func (a *App) accessLogMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		path := c.Request().URL.Path
		if !strings.HasPrefix(path, "/admin") {
			return next(c)
		}
		start := time.Now()
		if err := next(c); err != nil {
			c.Error(err)
		}
		entry := security.Access{
			Method:     c.Request().Method,
			Path:       path,
			StatusCode: c.Response().Status,
			IP:         c.RealIP(),
			LatencyMS:  time.Since(start).Milliseconds(),
		}
		if IsAdmin(c) {
			entry.UserID = adminUser
		}
		if err := a.Security.LogAccess(c.Request().Context(), entry); err != nil {
			a.Logger.Warn("access log", zap.Error(err))
		}
		return nil
	}
}

// maintenanceMiddleware answers public pages with 503 while
// general.maintenanceMode is on. Admin and console pages stay available.
func (a *App) maintenanceMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		path := c.Request().URL.Path
		if strings.HasPrefix(path, "/admin") || strings.HasPrefix(path, "/console") ||
			strings.HasPrefix(path, "/public/") || strings.HasPrefix(path, "/uploads/") ||
			strings.HasPrefix(path, "/api/") || path == "/healthz" || IsAdmin(c) {
			return next(c)
		}
		if !a.Settings.Bool(c.Request().Context(), "general.maintenanceMode", false) {
			return next(c)
		}
		c.Response().Header().Set("Retry-After", "3600")
		return a.renderError(c, http.StatusServiceUnavailable, "The site is undergoing scheduled maintenance.")
	}
}

func (a *App) newSessionStore() *sessions.CookieStore {
	store := sessions.NewCookieStore([]byte(a.Config.SessionSecret))
	store.Options = &sessions.Options{
		Path:     "/",
		HttpOnly: true,
		MaxAge:   60 * 60 * 12,
		SameSite: http.SameSiteLaxMode,
		Secure:   a.Config.CookieSecure,
	}
	return store
}

// requireAdmin guards the admin group. Browsers are sent to the login form;
// htmx and JSON clients get 401.
func (a *App) requireAdmin(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		if IsAdmin(c) {
			return next(c)
		}
		if isHTMX(c) || wantsJSON(c) {
			return echo.NewHTTPError(http.StatusUnauthorized, "login required")
		}
		return c.Redirect(http.StatusSeeOther, "/admin/")
	}
}

// requireWebsiteAccess lets admins and the wizard session that created the
// website see its analytics.
func (a *App) requireWebsiteAccess(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		if IsAdmin(c) {
			return next(c)
		}
		id := wizardSessionID(c)
		if id != "" {
			ses, err := a.Wizard.Get(c.Request().Context(), id)
			if err == nil && ses.WebsiteID != "" {
				site, err := a.Wizard.Website(c.Request().Context(), ses.WebsiteID)
				if err == nil && site.Subdomain == c.Param("subdomain") {
					return next(c)
				}
			}
		}
		if isHTMX(c) || wantsJSON(c) {
			return echo.NewHTTPError(http.StatusUnauthorized, "login required")
		}
		return c.Redirect(http.StatusSeeOther, "/admin/")
	}
}

// IsAdmin checks if the current session is authenticated.
func IsAdmin(c echo.Context) bool {
	sess, err := session.Get(sessionName, c)
	if err != nil {
		return false
	}
	auth, ok := sess.Values["authenticated"].(bool)
	return ok && auth
}

// setAdminSession marks the session authenticated for timeout.
func setAdminSession(c echo.Context, timeout time.Duration) error {
	sess, err := session.Get(sessionName, c)
	if err != nil {
		return err
	}
	sess.Values["authenticated"] = true
	if timeout > 0 {
		sess.Options.MaxAge = int(timeout.Seconds())
	}
	return sess.Save(c.Request(), c.Response())
}

func clearAdminSession(c echo.Context) error {
	sess, err := session.Get(sessionName, c)
	if err != nil {
		return err
	}
	sess.Options.MaxAge = -1
	return sess.Save(c.Request(), c.Response())
}

func wizardSessionID(c echo.Context) string {
	sess, err := session.Get(wizardSessionName, c)
	if err != nil {
		return ""
	}
	id, _ := sess.Values["id"].(string)
	return id
}

// setWizardSession remembers the onboarding session id for 30 days. An empty
// id clears the cookie.
func setWizardSession(c echo.Context, id string) error {
	sess, err := session.Get(wizardSessionName, c)
	if err != nil {
		return err
	}
	if id == "" {
		sess.Options.MaxAge = -1
	} else {
		sess.Values["id"] = id
		sess.Options.MaxAge = int(StaleWizardAge.Seconds())
	}
	return sess.Save(c.Request(), c.Response())
}

func userSessionID(c echo.Context) string {
	sess, err := session.Get(userSessionName, c)
	if err != nil {
		return ""
	}
	id, _ := sess.Values["id"].(string)
	return id
}

// setUserSession stores the account session id for ttl. An empty id clears
// the cookie.
func setUserSession(c echo.Context, id string, ttl time.Duration) error {
	sess, err := session.Get(userSessionName, c)
	if err != nil {
		return err
	}
	if id == "" {
		delete(sess.Values, "id")
		sess.Options.MaxAge = -1
	} else {
		sess.Values["id"] = id
		sess.Options.MaxAge = int(ttl.Seconds())
	}
	return sess.Save(c.Request(), c.Response())
}

// CsrfToken extracts the CSRF token from the Echo context.
func CsrfToken(c echo.Context) string {
	token, _ := c.Get(middleware.DefaultCSRFConfig.ContextKey).(string)
	return token
}

func isHTMX(c echo.Context) bool {
	return c.Request().Header.Get("HX-Request") == "true"
}
