package panelengine

import (
	"context"
	"net/http"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/eringen/panelengine/accounts"
	"github.com/eringen/panelengine/audit"
	"github.com/eringen/panelengine/billing"
	"github.com/eringen/panelengine/orgs"
	"github.com/eringen/panelengine/paging"
	"github.com/eringen/panelengine/products"
)

const jsonAccept = "application/json"

func mustUser(t *testing.T, app *App, email, name, password string) accounts.User {
	t.Helper()
	u, err := app.Accounts.Create(context.Background(), accounts.NewUser{Email: email, Name: name, Password: password})
	require.NoError(t, err)
	return u
}

func mustOrgOwnedBy(t *testing.T, app *App, name string, owner accounts.User) orgs.Organization {
	t.Helper()
	o, err := app.Orgs.Create(context.Background(), orgs.NewOrganization{
		Name:  name,
		Owner: orgs.Person{UserID: owner.ID, Email: owner.Email, Name: owner.Name},
	})
	require.NoError(t, err)
	return o
}

func TestAdminConflictAndValidationStatuses(t *testing.T) {
	app := newTestApp(t, testClock())
	c := newClient(t, app)
	c.login()
	ctx := context.Background()

	ada := mustUser(t, app, "ada@example.com", "Ada", "analytical-engine")
	o := mustOrgOwnedBy(t, app, "Acme", ada)
	member := orgPath(o.ID) + "members/" + ada.ID + "/"

	rec := c.post(member+"role/", url.Values{"role": {string(orgs.RoleMember)}}, "Accept", jsonAccept)
	require.Equal(t, http.StatusConflict, rec.Code, rec.Body.String())
	require.Contains(t, decode[map[string]any](t, rec)["error"], "owner")

	rec = c.post(member, url.Values{"_method": {http.MethodDelete}}, "Accept", jsonAccept)
	require.Equal(t, http.StatusConflict, rec.Code, rec.Body.String())

	rec = c.post(orgPath(o.ID)+"members/", url.Values{"email": {"ada@example.com"}, "role": {string(orgs.RoleMember)}}, "Accept", jsonAccept)
	require.Equal(t, http.StatusConflict, rec.Code, rec.Body.String())

	inv, err := app.Billing.CreateInvoice(ctx, billing.NewInvoice{
		Customer: "Acme",
		Items:    []billing.LineItem{{Description: "Setup", Quantity: 1, UnitCents: 5000}},
	})
	require.NoError(t, err)
	rec = c.post("/admin/billing/invoices/"+inv.ID+"/status/", url.Values{"status": {string(billing.InvoiceRefunded)}}, "Accept", jsonAccept)
	require.Equal(t, http.StatusConflict, rec.Code, rec.Body.String())
	got, err := app.Billing.GetInvoice(ctx, inv.ID)
	require.NoError(t, err)
	require.Equal(t, billing.InvoiceDraft, got.Status)

	rec = c.post("/admin/users/"+ada.ID+"/trust/", url.Values{"trust": {"GODLIKE"}}, "Accept", jsonAccept)
	require.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())

	rec = c.post("/admin/users/"+ada.ID+"/status/", url.Values{"status": {"BANNED"}}, "Accept", jsonAccept)
	require.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())
}

func TestAdminUserCreate(t *testing.T) {
	app := newTestApp(t, testClock())
	c := newClient(t, app)
	c.login()

	form := url.Values{"email": {"Grace@Example.com"}, "name": {"Grace"}, "password": {"cobol-forever"}}
	rec := c.post("/admin/users/", form, "Accept", jsonAccept)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	u := decode[accounts.User](t, rec)
	require.Equal(t, "grace@example.com", u.Email)
	require.Equal(t, accounts.StatusActive, u.Status)

	rec = c.post("/admin/users/", form, "Accept", jsonAccept)
	require.Equal(t, http.StatusConflict, rec.Code)

	rec = c.post("/admin/users/", url.Values{"email": {"linus@example.com"}, "password": {"short"}}, "Accept", jsonAccept)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = c.post("/admin/users/", url.Values{"email": {"not-an-email"}, "password": {"long-enough"}})
	require.Equal(t, http.StatusBadRequest, rec.Code)

	entries, _, err := app.Audit.List(context.Background(), audit.UserCreate, paging.New(1, 10, 0))
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.Equal(t, u.ID, entries[0].Target)
}

func TestAdminInvoiceCreateAndSettle(t *testing.T) {
	app := newTestApp(t, testClock())
	c := newClient(t, app)
	c.login()
	ctx := context.Background()

	ada := mustUser(t, app, "ada@example.com", "Ada", "analytical-engine")
	o := mustOrgOwnedBy(t, app, "Acme", ada)

	rec := c.post("/admin/billing/invoices/", url.Values{
		"org":         {o.ID},
		"description": {"Pro plan"},
		"quantity":    {"2"},
		"unitPrice":   {"49.90"},
		"currency":    {"usd"},
		"status":      {string(billing.InvoicePending)},
	}, "Accept", jsonAccept)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	inv := decode[billing.Invoice](t, rec)
	require.Equal(t, "Acme", inv.Customer)
	require.Equal(t, "ada@example.com", inv.Email)
	require.Equal(t, o.ID, inv.OrgID)
	require.EqualValues(t, 9980, inv.TotalCents)
	require.Equal(t, billing.InvoicePending, inv.Status)

	rec = c.post("/admin/billing/invoices/"+inv.ID+"/status/", url.Values{"status": {string(billing.InvoicePaid)}}, "Accept", jsonAccept)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	balance, err := app.Billing.Balance(ctx, o.ID)
	require.NoError(t, err)
	require.EqualValues(t, -9980, balance)

	rec = c.post("/admin/billing/invoices/"+inv.ID+"/status/", url.Values{"status": {string(billing.InvoiceRefunded)}}, "Accept", jsonAccept)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	balance, err = app.Billing.Balance(ctx, o.ID)
	require.NoError(t, err)
	require.EqualValues(t, 0, balance)

	rec = c.post("/admin/billing/invoices/", url.Values{"customer": {"Walk-in"}, "description": {"Fix"}, "unitPrice": {"abc"}}, "Accept", jsonAccept)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = c.post("/admin/billing/invoices/", url.Values{"org": {"missing"}, "description": {"Fix"}, "unitPrice": {"1"}}, "Accept", jsonAccept)
	require.Equal(t, http.StatusNotFound, rec.Code)

	rec = c.post("/admin/billing/invoices/", url.Values{"customer": {"Walk-in"}, "description": {"Fix"}, "unitPrice": {"10"}})
	require.Equal(t, http.StatusSeeOther, rec.Code)
	require.Contains(t, rec.Header().Get("Location"), "/admin/billing/?msg=")

	entries, _, err := app.Audit.List(ctx, audit.InvoiceCreate, paging.New(1, 10, 0))
	require.NoError(t, err)
	require.Len(t, entries, 2)
}

func TestOrgTransactionCreate(t *testing.T) {
	app := newTestApp(t, testClock())
	c := newClient(t, app)
	c.login()
	ctx := context.Background()

	o, err := app.Orgs.Create(ctx, orgs.NewOrganization{Name: "Acme"})
	require.NoError(t, err)
	path := orgPath(o.ID) + "transactions/"

	rec := c.post(path, url.Values{"type": {string(billing.TxDeposit)}, "amount": {"25.00"}, "currency": {"USD"}}, "Accept", jsonAccept)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	rec = c.post(path, url.Values{"type": {string(billing.TxAdjustment)}, "amount": {"-5"}, "description": {"Goodwill correction"}})
	require.Equal(t, http.StatusSeeOther, rec.Code)

	balance, err := app.Billing.Balance(ctx, o.ID)
	require.NoError(t, err)
	require.EqualValues(t, 2000, balance)

	rec = c.post(path, url.Values{"type": {"GIFT"}, "amount": {"1"}}, "Accept", jsonAccept)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	rec = c.post(path, url.Values{"type": {string(billing.TxDeposit)}, "amount": {"0"}}, "Accept", jsonAccept)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	rec = c.post(orgPath("missing")+"transactions/", url.Values{"type": {string(billing.TxDeposit)}, "amount": {"1"}}, "Accept", jsonAccept)
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestConsoleLoginLogout(t *testing.T) {
	clock := testClock()
	app := newTestApp(t, clock)
	ctx := context.Background()
	mustUser(t, app, "ada@example.com", "Ada", "analytical-engine")

	c := newClient(t, app)
	require.Equal(t, http.StatusOK, c.get("/console/login/").Code)

	rec := c.post("/console/login/", url.Values{"email": {"ada@example.com"}, "password": {"wrong-password"}})
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	require.NotContains(t, c.cookies, userSessionName)

	rec = c.post("/console/login/", url.Values{"email": {"ada@example.com"}, "password": {"analytical-engine"}, "next": {"//evil.test/"}})
	require.Equal(t, http.StatusSeeOther, rec.Code)
	require.Equal(t, onboardingPath, rec.Header().Get("Location"))
	require.Contains(t, c.cookies, userSessionName)

	active, err := app.Accounts.CountActiveSessions(ctx, clock.t)
	require.NoError(t, err)
	require.Equal(t, 1, active)
	u, err := app.Accounts.FindByEmail(ctx, "ada@example.com")
	require.NoError(t, err)
	require.True(t, u.LastLoginAt.Equal(clock.t), "last login %v", u.LastLoginAt)

	rec = c.post("/console/logout/", nil)
	require.Equal(t, http.StatusSeeOther, rec.Code)
	require.NotContains(t, c.cookies, userSessionName)
	active, err = app.Accounts.CountActiveSessions(ctx, clock.t)
	require.NoError(t, err)
	require.Zero(t, active)

	require.NoError(t, app.Accounts.SetStatus(ctx, u.ID, accounts.StatusSuspended))
	rec = c.post("/console/login/", url.Values{"email": {"ada@example.com"}, "password": {"analytical-engine"}}, "Accept", jsonAccept)
	require.Equal(t, http.StatusForbidden, rec.Code)
}

func TestInviteAcceptance(t *testing.T) {
	clock := testClock()
	app := newTestApp(t, clock)
	ctx := context.Background()

	ada := mustUser(t, app, "ada@example.com", "Ada", "analytical-engine")
	mustUser(t, app, "grace@example.com", "Grace", "cobol-forever")
	o := mustOrgOwnedBy(t, app, "Acme", ada)

	existing, err := app.Orgs.CreateInvite(ctx, o.ID, "grace@example.com", orgs.RoleAdmin, adminUser)
	require.NoError(t, err)
	path := "/console/invites/" + existing.Token + "/"

	c := newClient(t, app)
	rec := c.get(path)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "Join Acme")

	rec = c.post(path, url.Values{"password": {"not-her-password"}})
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	require.Contains(t, rec.Body.String(), "invalid email or password")

	rec = c.post(path, url.Values{"password": {"cobol-forever"}})
	require.Equal(t, http.StatusSeeOther, rec.Code, rec.Body.String())
	require.Contains(t, c.cookies, userSessionName)
	roles, err := app.Orgs.RoleCounts(ctx, o.ID)
	require.NoError(t, err)
	require.Equal(t, 1, roles[orgs.RoleAdmin])
	require.Equal(t, http.StatusNotFound, c.get(path).Code)

	// Grace is now logged in; an invite for someone else is refused.
	other, err := app.Orgs.CreateInvite(ctx, o.ID, "linus@example.com", orgs.RoleMember, adminUser)
	require.NoError(t, err)
	rec = c.post("/console/invites/"+other.Token+"/", nil, "Accept", jsonAccept)
	require.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())

	fresh := newClient(t, app)
	rec = fresh.post("/console/invites/"+other.Token+"/", url.Values{"name": {"Linus"}, "password": {"penguins-rule"}}, "Accept", jsonAccept)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	m := decode[orgs.Member](t, rec)
	require.Equal(t, orgs.RoleMember, m.Role)
	linus, err := app.Accounts.FindByEmail(ctx, "linus@example.com")
	require.NoError(t, err)
	require.Equal(t, linus.ID, m.UserID)
	require.Equal(t, "Linus", linus.Name)

	late, err := app.Orgs.CreateInvite(ctx, o.ID, "ken@example.com", orgs.RoleMember, adminUser)
	require.NoError(t, err)
	clock.advance(orgs.InviteTTL + time.Hour)
	rec = newClient(t, app).post("/console/invites/"+late.Token+"/", url.Values{"password": {"plan-nine-os"}})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Contains(t, rec.Body.String(), "expired")
	_, err = app.Accounts.FindByEmail(ctx, "ken@example.com")
	require.ErrorIs(t, err, accounts.ErrNotFound)
}

func TestAdminProducts(t *testing.T) {
	app := newTestApp(t, testClock())
	c := newClient(t, app)
	c.login()
	ctx := context.Background()

	rec := c.post("/admin/products/categories/", url.Values{"name": {"Themes"}, "active": {"1"}}, "Accept", jsonAccept)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	cat := decode[products.Category](t, rec)

	rec = c.post("/admin/products/", url.Values{
		"type":      {string(products.TypeDigital)},
		"name":      {"Portfolio Theme"},
		"category":  {cat.ID},
		"basePrice": {"19.99"},
		"tags":      {"dark, minimal"},
	}, "Accept", jsonAccept)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	p := decode[products.Product](t, rec)
	require.Equal(t, "portfolio-theme", p.Slug)
	require.EqualValues(t, 1999, p.BasePriceCents)
	require.Equal(t, products.StatusDraft, p.Status)
	base := productPath(p.ID)

	rec = c.post(base+"variants/", url.Values{"sku": {"theme-std"}, "name": {"Standard"}, "price": {"19.99"}, "active": {"on"}}, "Accept", jsonAccept)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	v := decode[products.Variant](t, rec)
	require.True(t, v.Default)
	rec = c.post(base+"variants/", url.Values{"sku": {"THEME-STD"}, "name": {"Copy"}}, "Accept", jsonAccept)
	require.Equal(t, http.StatusConflict, rec.Code)
	rec = c.post(base+"variants/"+v.ID+"/", url.Values{"sku": {"THEME-STD"}, "name": {"Standard"}, "price": {"24"}, "active": {"on"}}, "Accept", jsonAccept)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	require.EqualValues(t, 2400, decode[products.Variant](t, rec).PriceCents)

	rec = c.post(base+"status/", url.Values{"status": {string(products.StatusActive)}})
	require.Equal(t, http.StatusSeeOther, rec.Code)
	rec = c.post(base+"status/", url.Values{"status": {"SOLD"}}, "Accept", jsonAccept)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = c.get("/admin/products/?format=json&status=ACTIVE")
	require.Equal(t, http.StatusOK, rec.Code)
	list := decode[struct {
		Products []products.Product     `json:"products"`
		Counts   map[products.Status]int `json:"counts"`
	}](t, rec)
	require.Len(t, list.Products, 1)
	require.EqualValues(t, 2400, list.Products[0].LowestPriceCents)
	require.Equal(t, 1, list.Counts[products.StatusActive])

	require.Equal(t, http.StatusOK, c.get("/admin/products/").Code)
	require.Equal(t, http.StatusOK, c.get(base).Code)
	require.Equal(t, http.StatusOK, c.get("/admin/products/?page=1000000000000000000").Code)

	rec = c.post("/admin/products/", url.Values{"type": {"PHYSICAL"}, "name": {"Mug"}}, "Accept", jsonAccept)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	rec = c.post("/admin/products/", url.Values{"type": {string(products.TypeDigital)}, "name": {"Portfolio Theme"}}, "Accept", jsonAccept)
	require.Equal(t, http.StatusConflict, rec.Code)

	rec = c.post("/admin/products/categories/"+cat.ID+"/", url.Values{"_method": {http.MethodDelete}}, "Accept", jsonAccept)
	require.Equal(t, http.StatusConflict, rec.Code)

	rec = c.post(base+"variants/"+v.ID+"/", url.Values{"_method": {http.MethodDelete}})
	require.Equal(t, http.StatusSeeOther, rec.Code)
	rec = c.post(base, url.Values{"_method": {http.MethodDelete}})
	require.Equal(t, http.StatusSeeOther, rec.Code)
	require.Equal(t, http.StatusNotFound, c.get(base).Code)

	rec = c.post("/admin/products/categories/"+cat.ID+"/", url.Values{"_method": {http.MethodDelete}})
	require.Equal(t, http.StatusSeeOther, rec.Code)
	_, err := app.Products.Category(ctx, cat.ID)
	require.ErrorIs(t, err, products.ErrNotFound)

	entries, _, err := app.Audit.List(ctx, audit.ProductChange, paging.New(1, 20, 0))
	require.NoError(t, err)
	require.Len(t, entries, 8)
}

func TestHugePageNumbersDoNotFail(t *testing.T) {
	app := newTestApp(t, testClock())
	c := newClient(t, app)
	for _, path := range []string{
		"/templates/?page=9223372036854775807",
		"/templates/?page=1000000000000000000&limit=12",
		"/freelancers/?page=9223372036854775807",
	} {
		rec := c.get(path, "Accept", jsonAccept)
		require.Equal(t, http.StatusOK, rec.Code, path)
	}
	c.login()
	for _, path := range []string{
		"/admin/logs/?page=1000000000000000000",
		"/admin/users/?page=9223372036854775807",
		"/admin/billing/?page=9223372036854775807",
	} {
		require.Equal(t, http.StatusOK, c.get(path).Code, path)
	}
}
