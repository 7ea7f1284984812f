package panelengine

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/eringen/panelengine/accounts"
	"github.com/eringen/panelengine/orgs"
	"github.com/eringen/panelengine/security"
	"github.com/eringen/panelengine/views"
)

const consoleLoginPath = "/console/login/"

// currentUser resolves the user_session cookie. Ended or expired sessions
// clear the cookie and yield nil without error.
func (a *App) currentUser(c echo.Context) (*accounts.User, error) {
	id := userSessionID(c)
	if id == "" {
		return nil, nil
	}
	ctx := c.Request().Context()
	sess, err := a.Accounts.ActiveSession(ctx, id)
	if errors.Is(err, accounts.ErrNotFound) {
		return nil, setUserSession(c, "", 0)
	}
	if err != nil {
		return nil, err
	}
	u, err := a.Accounts.Get(ctx, sess.UserID)
	if errors.Is(err, accounts.ErrNotFound) {
		return nil, setUserSession(c, "", 0)
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// signIn opens an account session for u and stores it in the cookie.
func (a *App) signIn(c echo.Context, u accounts.User) error {
	ctx := c.Request().Context()
	ttl := time.Duration(a.Settings.Int(ctx, "auth.sessionTimeout", 720)) * time.Minute
	sess, err := a.Accounts.StartSession(ctx, u.ID, c.RealIP(), c.Request().UserAgent(), ttl)
	if err != nil {
		return err
	}
	if err := a.Accounts.TouchLogin(ctx, u.ID); err != nil {
		a.Logger.Warn("touch login", zap.String("user", u.ID), zap.Error(err))
	}
	return setUserSession(c, sess.ID, ttl)
}

// safeNext keeps post-login redirects on this site.
func safeNext(next string) string {
	if !strings.HasPrefix(next, "/") || strings.HasPrefix(next, "//") || strings.HasPrefix(next, "/\\") {
		return onboardingPath
	}
	return next
}

func (a *App) handleConsoleLogin(c echo.Context) error {
	p := views.ConsoleLoginPage{Page: a.page(c, ""), Next: c.QueryParam("next")}
	return respond(c, p, a.Views.ConsoleLogin)
}

func (a *App) handleConsoleLoginSubmit(c echo.Context) error {
	ctx := c.Request().Context()
	ip := c.RealIP()
	p := views.ConsoleLoginPage{Page: a.page(c, ""), Next: c.FormValue("next")}
	if a.lockedOut(c, ip) {
		p.Locked = true
		return RenderStatus(c, http.StatusTooManyRequests, a.Views.ConsoleLogin(p))
	}
	email := strings.TrimSpace(c.FormValue("email"))
	u, err := a.Accounts.Authenticate(ctx, email, c.FormValue("password"))
	attempt := security.LoginAttempt{Email: strings.ToLower(email), IP: ip, Success: err == nil}
	if rerr := a.Security.RecordLoginAttempt(ctx, attempt, c.Request().UserAgent()); rerr != nil {
		a.Logger.Warn("record login attempt", zap.Error(rerr))
	}
	switch {
	case wantsJSON(c) && err != nil:
		return err
	case errors.Is(err, accounts.ErrInvalidCredentials):
		a.loginLimiter.Record(ip)
		p.Failed = true
		return RenderStatus(c, http.StatusUnauthorized, a.Views.ConsoleLogin(p))
	case errors.Is(err, accounts.ErrAccountLocked):
		p.Locked = true
		return RenderStatus(c, http.StatusForbidden, a.Views.ConsoleLogin(p))
	case err != nil:
		return err
	}
	if err := a.signIn(c, u); err != nil {
		return err
	}
	if wantsJSON(c) {
		return c.JSON(http.StatusOK, u)
	}
	return c.Redirect(http.StatusSeeOther, safeNext(p.Next))
}

func (a *App) handleConsoleLogout(c echo.Context) error {
	if id := userSessionID(c); id != "" {
		if err := a.Accounts.EndSession(c.Request().Context(), id); err != nil && !errors.Is(err, accounts.ErrNotFound) {
			return err
		}
	}
	if err := setUserSession(c, "", 0); err != nil {
		return err
	}
	return redirectMsg(c, consoleLoginPath, "You have been logged out.")
}

func (a *App) invitePage(c echo.Context) (views.InvitePage, error) {
	ctx := c.Request().Context()
	token := c.Param("token")
	inv, err := a.Orgs.InviteByToken(ctx, token)
	if err != nil {
		return views.InvitePage{}, err
	}
	o, err := a.Orgs.Get(ctx, inv.OrgID)
	if err != nil {
		return views.InvitePage{}, err
	}
	u, err := a.currentUser(c)
	if err != nil {
		return views.InvitePage{}, err
	}
	p := views.InvitePage{Page: a.page(c, ""), Token: token, Invite: inv, Org: o, User: u, Expired: inv.Expired(a.now())}
	p.Meta.Title = "Join " + o.Name
	return p, nil
}

func (a *App) handleInvite(c echo.Context) error {
	p, err := a.invitePage(c)
	if err != nil {
		return err
	}
	return respond(c, p, a.Views.InviteAccept)
}

// inviteAccount finds the account accepting an invite: the logged-in user,
// the existing account for the invited email when the password matches, or
// a new account.
func (a *App) inviteAccount(c echo.Context, p views.InvitePage) (accounts.User, error) {
	if p.User != nil {
		return *p.User, nil
	}
	ctx := c.Request().Context()
	password := c.FormValue("password")
	_, err := a.Accounts.FindByEmail(ctx, p.Invite.Email)
	switch {
	case err == nil:
		return a.Accounts.Authenticate(ctx, p.Invite.Email, password)
	case errors.Is(err, accounts.ErrNotFound):
		name := strings.TrimSpace(c.FormValue("name"))
		if name == "" {
			name = strings.Split(p.Invite.Email, "@")[0]
		}
		return a.Accounts.Create(ctx, accounts.NewUser{Email: p.Invite.Email, Name: name, Password: password})
	}
	return accounts.User{}, err
}

// handleInviteAccept joins the invited organization. Form errors re-render
// the invite with the message; JSON clients get the usual error body.
func (a *App) handleInviteAccept(c echo.Context) error {
	p, err := a.invitePage(c)
	if err != nil {
		return err
	}
	fail := func(err error) error {
		code, msg := errorStatus(err)
		if wantsJSON(c) || code >= 500 {
			return err
		}
		p.Error = msg
		return RenderStatus(c, code, a.Views.InviteAccept(p))
	}
	if p.Expired {
		return fail(orgs.ErrInviteExpired)
	}
	u, err := a.inviteAccount(c, p)
	if err != nil {
		return fail(err)
	}
	m, err := a.Orgs.AcceptInvite(c.Request().Context(), p.Token, orgs.Person{UserID: u.ID, Email: u.Email, Name: u.Name})
	if err != nil {
		return fail(err)
	}
	if p.User == nil {
		if err := a.signIn(c, u); err != nil {
			return err
		}
	}
	a.Logger.Info("invite accepted", zap.String("org", m.OrgID), zap.String("user", u.ID), zap.String("role", string(m.Role)))
	if wantsJSON(c) {
		return c.JSON(http.StatusOK, m)
	}
	return redirectMsg(c, onboardingPath, "You joined "+p.Org.Name+".")
}
