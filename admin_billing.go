package panelengine

import (
	"context"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/eringen/panelengine/accounts"
	"github.com/eringen/panelengine/audit"
	"github.com/eringen/panelengine/billing"
	"github.com/eringen/panelengine/orgs"
	"github.com/eringen/panelengine/paging"
	"github.com/eringen/panelengine/views"
)

const (
	userPageSize = 20
	maxPageSize  = 100
)

func (a *App) handleBilling(c echo.Context) error {
	ctx := c.Request().Context()
	q := c.QueryParams()
	data := views.BillingPage{
		Page: a.page(c, "billing"),
		Filter: billing.InvoiceFilter{
			Status: billing.InvoiceStatus(q.Get("status")),
			Search: strings.TrimSpace(q.Get("q")),
		},
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		data.Stats, err = a.Billing.Stats(gctx, q.Get("period"), a.now())
		return err
	})
	g.Go(func() (err error) {
		data.Invoices, data.Paging, err = a.Billing.ListInvoices(gctx, data.Filter, paging.Parse(q, billing.InvoicePageSize, maxPageSize))
		return err
	})
	g.Go(func() (err error) {
		data.Subscriptions, err = a.Billing.ListSubscriptions(gctx, "")
		return err
	})
	if err := g.Wait(); err != nil {
		return err
	}
	return respond(c, data, a.Views.AdminBilling)
}

// handleInvoiceStatus moves an invoice along its lifecycle. Submitting the
// current status is a no-op.
func (a *App) handleInvoiceStatus(c echo.Context) error {
	ctx := c.Request().Context()
	inv, err := a.Billing.GetInvoice(ctx, c.Param("id"))
	if err != nil {
		return err
	}
	to := billing.InvoiceStatus(c.FormValue("status"))
	if to == inv.Status {
		return redirectMsg(c, "/admin/billing/", "")
	}
	updated, err := a.Billing.UpdateInvoiceStatus(ctx, inv.ID, to)
	if err != nil {
		return err
	}
	a.record(c, audit.InvoiceStatus, updated.Number, map[string]any{"from": inv.Status, "to": updated.Status})
	a.settleInvoice(ctx, updated)
	if wantsJSON(c) {
		return c.JSON(http.StatusOK, updated)
	}
	return redirectMsg(c, "/admin/billing/", "Invoice "+updated.Number+" is now "+string(updated.Status)+".")
}

// settleInvoice mirrors a paid or refunded organization invoice in the
// organization's wallet. The status change has already been committed, so a
// failure is only logged.
func (a *App) settleInvoice(ctx context.Context, inv billing.Invoice) {
	if inv.OrgID == "" {
		return
	}
	t := billing.Transaction{OrgID: inv.OrgID, AmountCents: inv.TotalCents, Currency: inv.Currency}
	switch inv.Status {
	case billing.InvoicePaid:
		t.Type, t.Description = billing.TxCharge, "Invoice "+inv.Number+" paid"
	case billing.InvoiceRefunded:
		t.Type, t.Description = billing.TxRefund, "Invoice "+inv.Number+" refunded"
	default:
		return
	}
	if t.AmountCents == 0 {
		return
	}
	if _, err := a.Billing.RecordTransaction(ctx, t); err != nil {
		a.Logger.Warn("record invoice transaction", zap.String("invoice", inv.Number), zap.Error(err))
	}
}

// handleInvoiceCreate issues a single-line invoice. An org field links it
// to an organization, whose name and owner email fill in blank customer
// fields.
func (a *App) handleInvoiceCreate(c echo.Context) error {
	ctx := c.Request().Context()
	unit, err := billing.ParseCents(c.FormValue("unitPrice"))
	if err != nil {
		return err
	}
	qty := 1
	if v := strings.TrimSpace(c.FormValue("quantity")); v != "" {
		if qty, err = strconv.Atoi(v); err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "quantity must be a whole number")
		}
	}
	tax, _ := strconv.ParseFloat(strings.TrimSpace(c.FormValue("taxRate")), 64)
	due, _ := strconv.Atoi(strings.TrimSpace(c.FormValue("dueDays")))
	in := billing.NewInvoice{
		Customer: c.FormValue("customer"),
		Email:    c.FormValue("email"),
		Items:    []billing.LineItem{{Description: strings.TrimSpace(c.FormValue("description")), Quantity: qty, UnitCents: unit}},
		TaxRate:  tax,
		Currency: c.FormValue("currency"),
		DueDays:  due,
		Status:   billing.InvoiceStatus(c.FormValue("status")),
	}
	if ref := strings.TrimSpace(c.FormValue("org")); ref != "" {
		o, err := a.Orgs.Get(ctx, ref)
		if err != nil {
			return err
		}
		in.OrgID = o.ID
		if strings.TrimSpace(in.Customer) == "" {
			in.Customer = o.Name
		}
		if strings.TrimSpace(in.Email) == "" {
			// Owners sort first.
			members, err := a.Orgs.ListMembers(ctx, o.ID)
			if err != nil {
				return err
			}
			if len(members) > 0 && members[0].Role == orgs.RoleOwner {
				in.Email = members[0].Email
			}
		}
	}
	inv, err := a.Billing.CreateInvoice(ctx, in)
	if err != nil {
		return err
	}
	a.record(c, audit.InvoiceCreate, inv.Number, map[string]any{"org": inv.OrgID, "total": inv.TotalCents, "currency": inv.Currency})
	if wantsJSON(c) {
		return c.JSON(http.StatusCreated, inv)
	}
	return redirectMsg(c, "/admin/billing/", "Invoice "+inv.Number+" created.")
}

// handleTransactionCreate records a manual wallet movement for an
// organization.
func (a *App) handleTransactionCreate(c echo.Context) error {
	ctx := c.Request().Context()
	o, err := a.Orgs.Get(ctx, c.Param("id"))
	if err != nil {
		return err
	}
	raw := strings.TrimSpace(c.FormValue("amount"))
	negative := strings.HasPrefix(raw, "-")
	amount, err := billing.ParseCents(strings.TrimPrefix(raw, "-"))
	if err != nil {
		return err
	}
	if negative {
		amount = -amount
	}
	t, err := a.Billing.RecordTransaction(ctx, billing.Transaction{
		OrgID:       o.ID,
		Type:        billing.TransactionType(c.FormValue("type")),
		AmountCents: amount,
		Currency:    c.FormValue("currency"),
		Description: c.FormValue("description"),
	})
	if err != nil {
		return err
	}
	a.record(c, audit.Transaction, o.ID, map[string]any{"type": t.Type, "amount": t.AmountCents, "currency": t.Currency})
	if wantsJSON(c) {
		return c.JSON(http.StatusCreated, t)
	}
	return redirectMsg(c, orgPath(o.ID), "Transaction recorded.")
}

// handleUserCreate registers a platform account on someone's behalf.
func (a *App) handleUserCreate(c echo.Context) error {
	u, err := a.Accounts.Create(c.Request().Context(), accounts.NewUser{
		Email:    c.FormValue("email"),
		Name:     c.FormValue("name"),
		Password: c.FormValue("password"),
	})
	if err != nil {
		return err
	}
	a.record(c, audit.UserCreate, u.ID, map[string]any{"email": u.Email})
	if wantsJSON(c) {
		return c.JSON(http.StatusCreated, u)
	}
	return redirectMsg(c, "/admin/users/", "Account "+u.Email+" created.")
}

func (a *App) handleUsers(c echo.Context) error {
	ctx := c.Request().Context()
	q := c.QueryParams()
	data := views.UsersPage{
		Page: a.page(c, "users"),
		Filter: accounts.Filter{
			Status: accounts.Status(q.Get("status")),
			Search: strings.TrimSpace(q.Get("q")),
		},
	}
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		data.Users, data.Paging, err = a.Accounts.List(gctx, data.Filter, paging.Parse(q, userPageSize, maxPageSize))
		return err
	})
	g.Go(func() (err error) {
		data.Counts, err = a.Accounts.CountByStatus(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		return err
	}
	return respond(c, data, a.Views.AdminUsers)
}

func (a *App) handleUserStatus(c echo.Context) error {
	ctx := c.Request().Context()
	id := c.Param("id")
	status := accounts.Status(c.FormValue("status"))
	if err := a.Accounts.SetStatus(ctx, id, status); err != nil {
		return err
	}
	a.record(c, audit.UserStatus, id, map[string]any{"status": status})
	return redirectMsg(c, usersReturn(c), "User status updated.")
}

func (a *App) handleUserTrust(c echo.Context) error {
	ctx := c.Request().Context()
	id := c.Param("id")
	level := accounts.TrustLevel(c.FormValue("trust"))
	if err := a.Accounts.SetTrustLevel(ctx, id, level); err != nil {
		return err
	}
	a.record(c, audit.UserTrust, id, map[string]any{"trust": level})
	return redirectMsg(c, usersReturn(c), "Trust level updated.")
}

// usersReturn keeps the list filters of the referring page.
func usersReturn(c echo.Context) string {
	ref, err := url.Parse(c.Request().Referer())
	if err != nil || ref.Path != "/admin/users/" {
		return "/admin/users/"
	}
	q := ref.Query()
	q.Del("msg")
	if len(q) == 0 {
		return ref.Path
	}
	return ref.Path + "?" + q.Encode()
}
