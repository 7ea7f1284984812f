package panelengine

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"
	"golang.org/x/sync/errgroup"

	"github.com/eringen/panelengine/audit"
	"github.com/eringen/panelengine/billing"
	"github.com/eringen/panelengine/orgs"
	"github.com/eringen/panelengine/paging"
	"github.com/eringen/panelengine/views"
)

const (
	orgPageSize         = 20
	orgTransactionsShow = 10
)

func orgPath(id string) string { return "/admin/orgs/" + id + "/" }

func (a *App) handleOrgs(c echo.Context) error {
	ctx := c.Request().Context()
	q := c.QueryParams()
	data := views.OrgsPage{
		Page: a.page(c, "orgs"),
		Filter: orgs.Filter{
			Status: orgs.Status(q.Get("status")),
			Search: strings.TrimSpace(q.Get("q")),
		},
	}
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		data.Orgs, data.Paging, err = a.Orgs.List(gctx, data.Filter, paging.Parse(q, orgPageSize, maxPageSize))
		return err
	})
	g.Go(func() (err error) {
		data.Counts, err = a.Orgs.CountByStatus(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		return err
	}
	return respond(c, data, a.Views.AdminOrgs)
}

// person resolves a platform account by email into the member data stored
// on a membership.
func (a *App) person(c echo.Context, email string) (orgs.Person, error) {
	u, err := a.Accounts.FindByEmail(c.Request().Context(), email)
	if err != nil {
		return orgs.Person{}, err
	}
	return orgs.Person{UserID: u.ID, Email: u.Email, Name: u.Name}, nil
}

func (a *App) handleOrgCreate(c echo.Context) error {
	in := orgs.NewOrganization{
		Name: c.FormValue("name"),
		Slug: strings.TrimSpace(c.FormValue("slug")),
		Plan: strings.TrimSpace(c.FormValue("plan")),
	}
	if email := strings.TrimSpace(c.FormValue("owner")); email != "" {
		p, err := a.person(c, email)
		if err != nil {
			return err
		}
		in.Owner = p
	}
	o, err := a.Orgs.Create(c.Request().Context(), in)
	if err != nil {
		return err
	}
	a.record(c, audit.OrgCreate, o.ID, map[string]any{"name": o.Name, "slug": o.Slug, "owner": in.Owner.Email})
	if wantsJSON(c) {
		return c.JSON(http.StatusCreated, o)
	}
	return redirectMsg(c, orgPath(o.ID), "Organization created.")
}

func (a *App) handleOrg(c echo.Context) error {
	ctx := c.Request().Context()
	o, err := a.Orgs.Get(ctx, c.Param("id"))
	if err != nil {
		return err
	}
	data := views.OrgPage{Page: a.page(c, "orgs"), Org: o}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		data.Members, err = a.Orgs.ListMembers(gctx, o.ID)
		return err
	})
	g.Go(func() (err error) {
		data.Invites, err = a.Orgs.ListInvites(gctx, o.ID)
		return err
	})
	g.Go(func() (err error) {
		data.Roles, err = a.Orgs.RoleCounts(gctx, o.ID)
		return err
	})
	g.Go(func() error {
		subs, err := a.Billing.ListSubscriptions(gctx, "")
		if err != nil {
			return err
		}
		data.Subscriptions = orgSubscriptions(subs, o.ID)
		return nil
	})
	g.Go(func() (err error) {
		data.Transactions, _, err = a.Billing.ListTransactions(gctx, o.ID, paging.New(1, orgTransactionsShow, 0))
		return err
	})
	g.Go(func() (err error) {
		data.BalanceCents, err = a.Billing.Balance(gctx, o.ID)
		return err
	})
	if err := g.Wait(); err != nil {
		return err
	}
	return respond(c, data, a.Views.AdminOrg)
}

func orgSubscriptions(subs []billing.Subscription, orgID string) []billing.Subscription {
	out := []billing.Subscription{}
	for _, s := range subs {
		if s.OrgID == orgID {
			out = append(out, s)
		}
	}
	return out
}

func (a *App) handleOrgRename(c echo.Context) error {
	id := c.Param("id")
	name := c.FormValue("name")
	if err := a.Orgs.Rename(c.Request().Context(), id, name); err != nil {
		return err
	}
	a.record(c, audit.OrgStatus, id, map[string]any{"name": strings.TrimSpace(name)})
	return redirectMsg(c, orgPath(id), "Organization renamed.")
}

func (a *App) handleOrgSuspend(c echo.Context) error {
	id := c.Param("id")
	if err := a.Orgs.Suspend(c.Request().Context(), id); err != nil {
		return err
	}
	a.record(c, audit.OrgStatus, id, map[string]any{"status": orgs.StatusSuspended})
	return redirectMsg(c, orgPath(id), "Organization suspended.")
}

func (a *App) handleOrgActivate(c echo.Context) error {
	id := c.Param("id")
	if err := a.Orgs.Activate(c.Request().Context(), id); err != nil {
		return err
	}
	a.record(c, audit.OrgStatus, id, map[string]any{"status": orgs.StatusActive})
	return redirectMsg(c, orgPath(id), "Organization activated.")
}

func (a *App) handleOrgDelete(c echo.Context) error {
	id := c.Param("id")
	if err := a.Orgs.Delete(c.Request().Context(), id); err != nil {
		return err
	}
	a.record(c, audit.OrgDelete, id, nil)
	if wantsJSON(c) {
		return c.NoContent(http.StatusNoContent)
	}
	return redirectMsg(c, "/admin/orgs/", "Organization deleted.")
}

func (a *App) handleMemberAdd(c echo.Context) error {
	id := c.Param("id")
	p, err := a.person(c, strings.TrimSpace(c.FormValue("email")))
	if err != nil {
		return err
	}
	m, err := a.Orgs.AddMember(c.Request().Context(), id, p, orgs.Role(c.FormValue("role")))
	if err != nil {
		return err
	}
	a.record(c, audit.MemberChange, id, map[string]any{"added": m.Email, "role": m.Role})
	return redirectMsg(c, orgPath(id), "Member added.")
}

func (a *App) handleMemberRole(c echo.Context) error {
	id, user := c.Param("id"), c.Param("user")
	role := orgs.Role(c.FormValue("role"))
	if err := a.Orgs.UpdateRole(c.Request().Context(), id, user, role); err != nil {
		return err
	}
	a.record(c, audit.MemberChange, id, map[string]any{"user": user, "role": role})
	return redirectMsg(c, orgPath(id), "Role updated.")
}

func (a *App) handleMemberRemove(c echo.Context) error {
	id, user := c.Param("id"), c.Param("user")
	if err := a.Orgs.RemoveMember(c.Request().Context(), id, user); err != nil {
		return err
	}
	a.record(c, audit.MemberChange, id, map[string]any{"removed": user})
	return redirectMsg(c, orgPath(id), "Member removed.")
}

func (a *App) handleInviteCreate(c echo.Context) error {
	id := c.Param("id")
	inv, err := a.Orgs.CreateInvite(c.Request().Context(), id, c.FormValue("email"), orgs.Role(c.FormValue("role")), adminUser)
	if err != nil {
		return err
	}
	a.record(c, audit.MemberChange, id, map[string]any{"invited": inv.Email, "role": inv.Role})
	if wantsJSON(c) {
		return c.JSON(http.StatusCreated, inv)
	}
	return redirectMsg(c, orgPath(id), "Invite sent to "+inv.Email+".")
}

func (a *App) handleInviteRevoke(c echo.Context) error {
	id := c.Param("id")
	invite, err := strconv.ParseInt(c.Param("invite"), 10, 64)
	if err != nil {
		return echo.NewHTTPError(http.StatusNotFound, "invite not found")
	}
	if err := a.Orgs.RevokeInvite(c.Request().Context(), id, invite); err != nil {
		return err
	}
	a.record(c, audit.MemberChange, id, map[string]any{"revoked": invite})
	return redirectMsg(c, orgPath(id), "Invite revoked.")
}
