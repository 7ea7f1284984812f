package panelengine

import (
	"errors"
	"net/http"
	"net/url"
	"strings"

	"github.com/a-h/templ"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/eringen/panelengine/accounts"
	"github.com/eringen/panelengine/billing"
	"github.com/eringen/panelengine/blog"
	"github.com/eringen/panelengine/catalog"
	"github.com/eringen/panelengine/media"
	"github.com/eringen/panelengine/orgs"
	"github.com/eringen/panelengine/products"
	"github.com/eringen/panelengine/security"
	"github.com/eringen/panelengine/settings"
	"github.com/eringen/panelengine/views"
	"github.com/eringen/panelengine/wizard"
)

// Render writes a templ component as an HTTP 200 HTML response.
func Render(c echo.Context, cmp templ.Component) error {
	return RenderStatus(c, http.StatusOK, cmp)
}

// RenderStatus writes a templ component with a specific HTTP status code.
func RenderStatus(c echo.Context, code int, cmp templ.Component) error {
	c.Response().Header().Set(echo.HeaderContentType, echo.MIMETextHTMLCharsetUTF8)
	c.Response().WriteHeader(code)
	return cmp.Render(c.Request().Context(), c.Response().Writer)
}

// wantsJSON reports whether the client asked for JSON with ?format=json or
// an Accept header that prefers it.
func wantsJSON(c echo.Context) bool {
	if c.QueryParam("format") == "json" {
		return true
	}
	accept := c.Request().Header.Get(echo.HeaderAccept)
	return strings.HasPrefix(accept, echo.MIMEApplicationJSON)
}

// respond renders data as JSON for API clients and as cmp otherwise. Page
// chrome is tagged json:"-" so the same struct serves both.
func respond[P any](c echo.Context, data P, cmp func(P) templ.Component) error {
	if wantsJSON(c) {
		return c.JSON(http.StatusOK, data)
	}
	return Render(c, cmp(data))
}

// page builds the chrome shared by every page.
func (a *App) page(c echo.Context, nav string) views.Page {
	return views.Page{
		Site:  a.Config.site(),
		CSRF:  CsrfToken(c),
		Flash: c.QueryParam("msg"),
		Nav:   nav,
		Query: c.QueryParams(),
	}
}

// redirectMsg redirects to path with a flash message. htmx requests get an
// HX-Redirect header so the swap is replaced by a full navigation.
func redirectMsg(c echo.Context, path, msg string) error {
	if msg != "" {
		sep := "?"
		if strings.Contains(path, "?") {
			sep = "&"
		}
		path += sep + "msg=" + url.QueryEscape(msg)
	}
	if isHTMX(c) {
		c.Response().Header().Set("HX-Redirect", path)
		return c.NoContent(http.StatusOK)
	}
	return c.Redirect(http.StatusSeeOther, path)
}

var (
	notFoundErrors = []error{
		accounts.ErrNotFound, billing.ErrNotFound, blog.ErrNotFound, catalog.ErrNotFound,
		media.ErrNotFound, orgs.ErrNotFound, settings.ErrNotFound, wizard.ErrNotFound,
		products.ErrNotFound, wizard.ErrWebsiteNotFound,
	}
	conflictErrors = []error{
		accounts.ErrEmailTaken, blog.ErrSlugTaken, orgs.ErrSlugTaken, orgs.ErrAlreadyMember, orgs.ErrInviteExists,
		orgs.ErrLastOwner, orgs.ErrSuspended, billing.ErrInvalidTransition, wizard.ErrCompleted,
		wizard.ErrSubdomainTaken, products.ErrSlugTaken, products.ErrSKUTaken, products.ErrCategoryInUse,
	}
	badRequestErrors = []error{
		accounts.ErrInvalidEmail, accounts.ErrWeakPassword, accounts.ErrInvalidStatus,
		accounts.ErrInvalidTrustLevel, billing.ErrInvalidInvoice, billing.ErrInvalidCurrency,
		billing.ErrInvalidStatus, billing.ErrInvalidAmount, blog.ErrInvalidPost, blog.ErrInvalidStatus,
		blog.ErrScheduleInPast, media.ErrUnsupportedImage, media.ErrInvalidKind, orgs.ErrInvalidName,
		orgs.ErrInvalidEmail, orgs.ErrInvalidRole, orgs.ErrInviteExpired, orgs.ErrWrongInvitee,
		products.ErrInvalidCategory, products.ErrInvalidProduct, products.ErrInvalidVariant,
		products.ErrInvalidStatus, products.ErrCategoryCycle, security.ErrInvalidEvent,
		settings.ErrInvalidKey, settings.ErrInvalidFlag, settings.ErrInvalidAlert, settings.ErrInvalidPreferences,
		wizard.ErrInvalidBusinessType, wizard.ErrInvalidStep, wizard.ErrInvalidSubdomain,
	}
)

func matches(err error, targets []error) bool {
	for _, t := range targets {
		if errors.Is(err, t) {
			return true
		}
	}
	return false
}

// errorStatus maps store errors to HTTP status codes.
func errorStatus(err error) (int, string) {
	var he *echo.HTTPError
	switch {
	case errors.As(err, &he):
		msg, ok := he.Message.(string)
		if !ok {
			msg = http.StatusText(he.Code)
		}
		return he.Code, msg
	case matches(err, notFoundErrors):
		return http.StatusNotFound, err.Error()
	case matches(err, conflictErrors):
		return http.StatusConflict, err.Error()
	case errors.Is(err, accounts.ErrInvalidCredentials):
		return http.StatusUnauthorized, err.Error()
	case errors.Is(err, accounts.ErrAccountLocked):
		return http.StatusForbidden, err.Error()
	case errors.Is(err, media.ErrTooLarge):
		return http.StatusRequestEntityTooLarge, err.Error()
	case matches(err, badRequestErrors), wizard.IsStepError(err):
		return http.StatusBadRequest, err.Error()
	}
	return http.StatusInternalServerError, http.StatusText(http.StatusInternalServerError)
}

func (a *App) httpErrorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}
	code, msg := errorStatus(err)
	if code >= 500 {
		a.Logger.Error("server error",
			zap.Error(err),
			zap.String("method", c.Request().Method),
			zap.String("uri", c.Request().RequestURI),
		)
	}
	if rerr := a.renderError(c, code, msg); rerr != nil {
		a.Logger.Warn("render error page", zap.Error(rerr))
	}
}

// renderError writes an error page, a JSON error or a bare htmx fragment.
func (a *App) renderError(c echo.Context, code int, msg string) error {
	if c.Request().Method == http.MethodHead {
		return c.NoContent(code)
	}
	if wantsJSON(c) || strings.HasPrefix(c.Request().URL.Path, "/api/") {
		return c.JSON(code, map[string]any{"error": msg, "code": code})
	}
	if isHTMX(c) {
		return c.HTML(code, `<p class="error" role="alert">`+templ.EscapeString(msg)+`</p>`)
	}
	p := views.ErrorPage{Page: a.page(c, ""), Code: code, Message: msg}
	switch {
	case code == http.StatusNotFound:
		return RenderStatus(c, code, a.Views.NotFound(p))
	case code == http.StatusServiceUnavailable:
		return RenderStatus(c, code, a.Views.Maintenance(p))
	case code >= 500:
		p.Message = ""
		return RenderStatus(c, code, a.Views.ServerError(p))
	}
	return RenderStatus(c, code, a.Views.ServerError(p))
}
