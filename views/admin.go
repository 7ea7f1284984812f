package views

import (
	"fmt"
	"net/url"
	"slices"
	"strings"

	"github.com/a-h/templ"

	"github.com/eringen/panelengine/accounts"
	"github.com/eringen/panelengine/billing"
	"github.com/eringen/panelengine/blog"
	"github.com/eringen/panelengine/media"
	"github.com/eringen/panelengine/orgs"
	"github.com/eringen/panelengine/report"
	"github.com/eringen/panelengine/security"
	"github.com/eringen/panelengine/settings"
)

func strs[T ~string](vals []T) []string {
	out := make([]string, len(vals))
	for i, v := range vals {
		out[i] = string(v)
	}
	return out
}

// selectForm renders a form with a single select that submits itself.
func selectForm(h *w, csrf, action, name string, options []string, selected string) {
	h.rawf(`<form method="post" action="%s" class="inline" hx-post="%s" hx-trigger="change" hx-swap="none">`, attr(action), attr(action))
	csrfField(h, csrf)
	selectField(h, name, options, selected, "")
	h.raw(`<noscript><button type="submit">Save</button></noscript></form>`)
}

func splitChart(h *w, title string, points []report.SplitPoint) {
	peak := 0
	for _, p := range points {
		peak = max(peak, p.Success+p.Failed)
	}
	h.raw(`<figure class="chart chart-split">`)
	h.el("figcaption", "", title)
	h.raw(`<div class="bars">`)
	for _, p := range points {
		h.rawf(`<div class="bar" title="%s"><span class="ok" style="height:%d%%"></span><span class="fail" style="height:%d%%"></span></div>`,
			attr(fmt.Sprintf("%s: %d ok, %d failed", p.Label, p.Success, p.Failed)),
			report.Percent(p.Success, peak), report.Percent(p.Failed, peak))
	}
	h.raw(`</div></figure>`)
}

func money(cents int64) string { return billing.FormatMoney(cents, "USD") }

func triggeredList(h *w, alerts []settings.Triggered) {
	if len(alerts) == 0 {
		return
	}
	h.raw(`<ul class="alerts">`)
	for _, t := range alerts {
		h.rawf(`<li class="alert alert-%s">`, attr(string(t.Alert.Severity)))
		h.text(fmt.Sprintf("%s is %g (%s %g)", t.Alert.Metric, t.Current, t.Alert.Operator, t.Alert.Value))
		h.raw(`</li>`)
	}
	h.raw(`</ul>`)
}

// AdminLogin renders the admin login form.
func AdminLogin(p LoginPage) templ.Component {
	return Layout(p.Page, "Admin login", component(func(h *w) {
		h.raw(`<section class="login"><h1>Admin login</h1>`)
		switch {
		case p.Locked:
			h.el("p", `class="error" role="alert"`, "Too many failed attempts. Try again later.")
		case p.Failed:
			h.el("p", `class="error" role="alert"`, "Invalid password.")
		}
		h.raw(`<form method="post" action="/admin/login/">`)
		csrfField(h, p.CSRF)
		h.raw(`<label>Password <input type="password" name="password" required autofocus></label><button type="submit">Log in</button></form></section>`)
	}))
}

// AdminOverview renders the dashboard widgets the admin has enabled.
func AdminOverview(p OverviewPage) templ.Component {
	return AdminLayout(p.Page, "Overview", component(func(h *w) {
		if n := p.Preferences.RefreshInterval; n > 0 {
			h.rawf(`<div hx-get="/admin/" hx-trigger="every %ds" hx-select="main" hx-target="main" hx-swap="outerHTML"></div>`, n)
		}
		triggeredList(h, p.Alerts)
		on := func(widget string) bool { return slices.Contains(p.Preferences.Widgets, widget) }
		var cards []stat
		if on("users") && p.System != nil {
			cards = append(cards, stat{"Users", report.FormatCount(p.System.TotalUsers), ""})
		}
		if on("sessions") && p.System != nil {
			cards = append(cards, stat{"Active sessions", itoa(p.System.ActiveSessions), ""})
		}
		if on("security") && p.Security != nil {
			cards = append(cards,
				stat{"Failed logins (24h)", itoa(p.Security.FailedLogins24h), ""},
				stat{"2FA adoption", itoa(p.Security.TwoFactorPercent) + "%", ""})
		}
		if on("revenue") {
			cards = append(cards, stat{"Revenue (" + p.Billing.Period + ")", money(p.Billing.RevenueCents), fmt.Sprintf("%+.1f%%", p.Billing.Growth)})
		}
		if on("wizard") {
			cards = append(cards, stat{"Websites created", itoa(p.Wizard.CompletedWebsites), fmt.Sprintf("%.1f%% conversion", p.Wizard.ConversionRate)})
		}
		statCards(h, cards...)
		if p.System != nil && on("users") {
			barChart(h, "Signups", p.System.SignupsByDay)
		}
		if on("revenue") {
			barChart(h, "Revenue", p.Billing.RevenueByDay)
		}
		if p.Security != nil && on("security") {
			splitChart(h, "Logins", p.Security.LoginsByDay)
		}
	}))
}

// AdminSecurity renders the security dashboard and event log.
func AdminSecurity(p SecurityPage) templ.Component {
	return AdminLayout(p.Page, "Security", component(func(h *w) {
		if ov := p.Overview; ov != nil {
			cards := make([]stat, 0, len(ov.EventWindows)+3)
			for _, wc := range ov.EventWindows {
				cards = append(cards, stat{"Events (" + wc.Window + ")", itoa(wc.Count), ""})
			}
			cards = append(cards,
				stat{"Failed logins (24h)", itoa(ov.FailedLogins24h), ""},
				stat{"Blocked (24h)", itoa(ov.Blocked24h), ""},
				stat{"Two-factor", fmt.Sprintf("%d%%", ov.TwoFactorPercent), fmt.Sprintf("%d of %d users", ov.TwoFactorUsers, ov.TotalUsers)})
			statCards(h, cards...)
			splitChart(h, "Logins by day", ov.LoginsByDay)
			h.raw(`<h2>Top failed IPs</h2>`)
			table(h, []string{"IP", "Failures"}, len(ov.TopFailedIPs), func(i int) {
				td(h, ov.TopFailedIPs[i].IP)
				td(h, itoa(ov.TopFailedIPs[i].Count))
			})
			h.raw(`<h2>Suspicious activity</h2>`)
			eventTable(h, ov.Suspicious)
		}
		ev := p.Events
		if ev == nil {
			return
		}
		h.raw(`<h2>Events</h2><form class="filters" method="get" action="/admin/security/">`)
		selectField(h, "action", strs(security.Actions), string(ev.Filter.Action), "All actions")
		selectField(h, "status", strs(security.Statuses), string(ev.Filter.Status), "All statuses")
		selectField(h, "days", []string{"1", "7", "30", "90"}, itoa(ev.Filter.Days), "")
		h.raw(`<button type="submit">Filter</button></form>`)
		eventTable(h, ev.Events)
		pager(h, "/admin/security/", p.Filters(), ev.Page)
	}))
}

func eventTable(h *w, events []security.Event) {
	table(h, []string{"When", "Action", "Status", "User", "IP", "Details"}, len(events), func(i int) {
		e := events[i]
		td(h, formatDateTime(e.CreatedAt))
		td(h, string(e.Action))
		h.el("td", `class="status-`+strings.ToLower(string(e.Status))+`"`, string(e.Status))
		td(h, e.UserID)
		td(h, e.IP)
		td(h, e.Details)
	})
}

// AdminLogs renders the merged security and access log with the admin
// action log.
func AdminLogs(p LogsPage) templ.Component {
	return AdminLayout(p.Page, "Logs", component(func(h *w) {
		lp := p.Logs
		if lp != nil {
			h.raw(`<form class="filters" method="get" action="/admin/logs/">`)
			selectField(h, "type", strs([]security.LogType{security.LogAll, security.LogSecurity, security.LogAccess}), string(lp.Filter.Type), "")
			h.rawf(`<input type="search" name="q" placeholder="Search path, IP or action" value="%s">`, attr(lp.Filter.Search))
			selectField(h, "days", []string{"1", "7", "30", "90"}, itoa(lp.Filter.Days), "")
			h.raw(`<button type="submit">Filter</button></form>`)
			if len(lp.TopActions) > 0 {
				h.raw(`<ul class="top-actions">`)
				for _, a := range lp.TopActions {
					h.el("li", "", fmt.Sprintf("%s: %d", a.Action, a.Count))
				}
				h.raw(`</ul>`)
			}
			table(h, []string{"When", "Kind", "What", "Status", "IP"}, len(lp.Entries), func(i int) {
				e := lp.Entries[i]
				td(h, formatDateTime(e.CreatedAt))
				td(h, string(e.Kind))
				switch {
				case e.Event != nil:
					td(h, string(e.Event.Action)+" "+e.Event.Details)
					td(h, string(e.Event.Status))
					td(h, e.Event.IP)
				case e.Access != nil:
					td(h, fmt.Sprintf("%s %s (%dms)", e.Access.Method, e.Access.Path, e.Access.LatencyMS))
					td(h, itoa(e.Access.StatusCode))
					td(h, e.Access.IP)
				default:
					td(h, "")
					td(h, "")
					td(h, "")
				}
			})
			pager(h, "/admin/logs/", p.Filters(), lp.Page)
		}
		h.raw(`<h2>Admin actions</h2>`)
		table(h, []string{"When", "Action", "Target", "Actor", "Details"}, len(p.Audit), func(i int) {
			e := p.Audit[i]
			td(h, formatDateTime(e.CreatedAt))
			td(h, e.Action)
			td(h, e.Target)
			td(h, e.Actor.Name+" "+e.Actor.IP)
			h.raw(`<td><code>`)
			h.text(string(e.Details))
			h.raw(`</code></td>`)
		})
	}))
}

// AdminSystem renders system health, user and runtime statistics.
func AdminSystem(p SystemPage) templ.Component {
	return AdminLayout(p.Page, "System", component(func(h *w) {
		triggeredList(h, p.Alerts)
		st := p.Status
		if st == nil {
			return
		}
		db := st.DBLatency.String()
		if st.DBError != "" {
			db = st.DBError
		}
		h.rawf(`<p class="health health-%s">`, attr(st.Health))
		h.text("System is " + st.Health)
		h.raw(`</p>`)
		statCards(h,
			stat{"Users", report.FormatCount(st.TotalUsers), ""},
			stat{"Active sessions", itoa(st.ActiveSessions), ""},
			stat{"Database", db, ""},
			stat{"Uptime", st.Uptime.Truncate(1e9).String(), ""},
			stat{"Goroutines", itoa(st.Runtime.Goroutines), st.Runtime.GoVersion},
			stat{"Heap", fmt.Sprintf("%.1f MB", float64(st.Runtime.HeapAlloc)/(1<<20)), fmt.Sprintf("%d GC cycles", st.Runtime.NumGC)},
		)
		shareList(h, "Users by status", st.UsersByStatus)
		shareList(h, "Trust levels", st.Trust)
		barChart(h, "Signups", st.SignupsByDay)
		splitChart(h, "Logins", st.LoginsByDay)
		h.el("p", `class="meta"`, "Generated "+formatDateTime(st.GeneratedAt))
	}))
}

func settingInput(h *w, s settings.Setting) {
	name := attr(s.Key)
	switch v := s.Value.(type) {
	case bool:
		sel := "false"
		if v {
			sel = "true"
		}
		selectField(h, s.Key, []string{"true", "false"}, sel, "")
	case float64, int, int64:
		h.rawf(`<input type="number" step="any" name="%s" value="%s">`, name, attr(fmt.Sprint(v)))
	default:
		h.rawf(`<input name="%s" value="%s">`, name, attr(fmt.Sprint(v)))
	}
}

// AdminSettings renders settings by section, feature flags, alert rules and
// dashboard preferences.
func AdminSettings(p SettingsPage) templ.Component {
	return AdminLayout(p.Page, "Settings", component(func(h *w) {
		if len(p.Settings) == 0 {
			postButton(h, p.CSRF, "/admin/settings/init/", "", "Load defaults", "primary")
		}
		h.raw(`<form method="post" action="/admin/settings/" class="settings">`)
		csrfField(h, p.CSRF)
		for _, sec := range p.Sections {
			h.rawf(`<fieldset><legend>%s</legend>`, attr(sec))
			for _, s := range p.Settings[sec] {
				h.raw(`<label class="setting">`)
				h.el("span", "", s.Name)
				settingInput(h, s)
				h.el("small", "", "updated "+formatDateTime(s.UpdatedAt)+" by "+s.UpdatedBy)
				h.raw(`</label>`)
			}
			h.raw(`</fieldset>`)
		}
		if len(p.Sections) > 0 {
			h.raw(`<button type="submit">Save settings</button>`)
		}
		h.raw(`</form>`)

		h.raw(`<h2>Feature flags</h2>`)
		table(h, []string{"Key", "Name", "Rollout", "Enabled", ""}, len(p.Flags), func(i int) {
			f := p.Flags[i]
			td(h, f.Key)
			td(h, f.Name)
			td(h, itoa(f.Percentage)+"%")
			h.raw(`<td>`)
			label := "Off"
			if f.Enabled {
				label = "On"
			}
			postButton(h, p.CSRF, "/admin/settings/flags/"+url.PathEscape(f.Key)+"/toggle/", "", label, "toggle")
			h.raw(`</td><td>`)
			postButton(h, p.CSRF, "/admin/settings/flags/"+url.PathEscape(f.Key)+"/", "DELETE", "Delete", "danger")
			h.raw(`</td>`)
		})
		h.raw(`<form method="post" action="/admin/settings/flags/" class="inline-form">`)
		csrfField(h, p.CSRF)
		h.raw(`<input name="key" placeholder="key" required><input name="name" placeholder="Name" required>` +
			`<input name="description" placeholder="Description"><input type="number" name="percentage" min="0" max="100" value="100">` +
			`<label><input type="checkbox" name="enabled" value="true"> Enabled</label><button type="submit">Save flag</button></form>`)

		h.raw(`<h2>Alert rules</h2>`)
		table(h, []string{"Metric", "Condition", "Severity", "Enabled", ""}, len(p.Alerts), func(i int) {
			a := p.Alerts[i]
			td(h, a.Metric)
			td(h, fmt.Sprintf("%s %g", a.Operator, a.Value))
			td(h, string(a.Severity))
			td(h, fmt.Sprint(a.Enabled))
			h.raw(`<td>`)
			postButton(h, p.CSRF, fmt.Sprintf("/admin/settings/alerts/%d/", a.ID), "DELETE", "Delete", "danger")
			h.raw(`</td>`)
		})
		h.raw(`<form method="post" action="/admin/settings/alerts/" class="inline-form">`)
		csrfField(h, p.CSRF)
		h.raw(`<input name="metric" placeholder="metric" required>`)
		selectField(h, "operator", strs([]settings.Operator{settings.OpGT, settings.OpGTE, settings.OpLT, settings.OpLTE, settings.OpEQ}), "", "")
		h.raw(`<input type="number" step="any" name="value" required>`)
		selectField(h, "severity", strs([]settings.Severity{settings.SeverityInfo, settings.SeverityWarning, settings.SeverityCritical}), string(settings.SeverityWarning), "")
		h.raw(`<label><input type="checkbox" name="enabled" value="true" checked> Enabled</label><button type="submit">Add alert</button></form>`)

		h.raw(`<h2>Dashboard preferences</h2><form method="post" action="/admin/settings/preferences/" class="inline-form">`)
		csrfField(h, p.CSRF)
		selectField(h, "theme", []string{settings.ThemeLight, settings.ThemeDark, settings.ThemeAuto}, p.Preferences.Theme, "")
		h.rawf(`<label>Refresh every <input type="number" name="refreshInterval" min="0" value="%d"> s</label>`, p.Preferences.RefreshInterval)
		for _, wd := range settings.DefaultWidgets {
			checked := ""
			if slices.Contains(p.Preferences.Widgets, wd) {
				checked = " checked"
			}
			h.rawf(`<label><input type="checkbox" name="widgets" value="%s"%s> %s</label>`, attr(wd), checked, attr(wd))
		}
		h.raw(`<button type="submit">Save preferences</button></form>`)
	}))
}

// AdminBilling renders revenue stats, invoices and subscriptions.
func AdminBilling(p BillingPage) templ.Component {
	return AdminLayout(p.Page, "Billing", component(func(h *w) {
		st := p.Stats
		h.raw(`<nav class="periods">`)
		for _, period := range []string{"today", "week", "month", "year"} {
			cls := ""
			if period == st.Period {
				cls = ` class="active"`
			}
			h.rawf(`<a href="/admin/billing/?period=%s"%s>%s</a>`, period, cls, period)
		}
		h.raw(`</nav>`)
		statCards(h,
			stat{"Revenue", money(st.RevenueCents), fmt.Sprintf("%+.1f%% vs previous %d days", st.Growth, st.Days)},
			stat{"Outstanding", money(st.OutstandingCents), ""},
			stat{"Active subscriptions", itoa(st.ActiveSubscriptions), ""},
		)
		barChart(h, "Revenue by day", st.RevenueByDay)

		h.raw(`<h2>Invoices</h2><form class="filters" method="get" action="/admin/billing/">`)
		h.rawf(`<input type="hidden" name="period" value="%s">`, attr(st.Period))
		selectField(h, "status", strs(billing.InvoiceStatuses), string(p.Filter.Status), "All statuses")
		h.rawf(`<input type="search" name="q" placeholder="Customer, email or number" value="%s">`, attr(p.Filter.Search))
		h.raw(`<button type="submit">Filter</button></form>`)
		table(h, []string{"Number", "Customer", "Total", "Status", "Due", ""}, len(p.Invoices), func(i int) {
			inv := p.Invoices[i]
			td(h, inv.Number)
			td(h, inv.Customer+" <"+inv.Email+">")
			td(h, billing.FormatMoney(inv.TotalCents, inv.Currency))
			h.el("td", `class="status-`+strings.ToLower(string(inv.Status))+`"`, fmt.Sprintf("%s (%d)", inv.Status, st.ByStatus[inv.Status]))
			td(h, formatDate(inv.DueAt))
			h.raw(`<td>`)
			if next := billing.NextStatuses(inv.Status); len(next) > 0 {
				selectForm(h, p.CSRF, "/admin/billing/invoices/"+url.PathEscape(inv.ID)+"/status/", "status", append([]string{string(inv.Status)}, strs(next)...), string(inv.Status))
			}
			h.raw(`</td>`)
		})
		pager(h, "/admin/billing/", p.Filters(), p.Paging)

		h.raw(`<h2>New invoice</h2><form method="post" action="/admin/billing/invoices/" class="inline-form">`)
		csrfField(h, p.CSRF)
		h.raw(`<input name="org" placeholder="Organization ID (optional)"><input name="customer" placeholder="Customer">` +
			`<input type="email" name="email" placeholder="Email"><input name="description" placeholder="Description" required>` +
			`<input type="number" name="quantity" value="1" min="1"><input name="unitPrice" placeholder="Unit price" inputmode="decimal" required>` +
			`<input name="taxRate" placeholder="Tax %" inputmode="decimal"><input name="currency" value="USD" size="3">` +
			`<input type="number" name="dueDays" value="14" min="1">`)
		selectField(h, "status", []string{string(billing.InvoiceDraft), string(billing.InvoicePending)}, string(billing.InvoiceDraft), "")
		h.raw(`<button type="submit">Create</button></form>`)

		h.raw(`<h2>Subscriptions</h2>`)
		subscriptionTable(h, p.Subscriptions)
	}))
}

func subscriptionTable(h *w, subs []billing.Subscription) {
	table(h, []string{"Org", "Plan", "Amount", "Status", "Renews"}, len(subs), func(i int) {
		s := subs[i]
		h.rawf(`<td><a href="/admin/orgs/%s/">%s</a></td>`, attr(url.PathEscape(s.OrgID)), attr(s.OrgID))
		td(h, s.Plan)
		td(h, billing.FormatMoney(s.AmountCents, s.Currency))
		td(h, string(s.Status))
		td(h, formatDate(s.RenewsAt))
	})
}

// AdminUsers renders the member list with status and trust controls.
func AdminUsers(p UsersPage) templ.Component {
	return AdminLayout(p.Page, "Users", component(func(h *w) {
		cards := make([]stat, 0, len(accounts.Statuses))
		for _, s := range accounts.Statuses {
			cards = append(cards, stat{string(s), itoa(p.Counts[s]), ""})
		}
		statCards(h, cards...)
		h.raw(`<form class="filters" method="get" action="/admin/users/">`)
		selectField(h, "status", strs(accounts.Statuses), string(p.Filter.Status), "All statuses")
		h.rawf(`<input type="search" name="q" placeholder="Email or name" value="%s">`, attr(p.Filter.Search))
		h.raw(`<button type="submit">Filter</button></form>`)
		table(h, []string{"Email", "Name", "Status", "Trust", "2FA", "Joined", "Last login"}, len(p.Users), func(i int) {
			u := p.Users[i]
			base := "/admin/users/" + url.PathEscape(u.ID) + "/"
			td(h, u.Email)
			td(h, u.Name)
			h.raw(`<td>`)
			selectForm(h, p.CSRF, base+"status/", "status", strs(accounts.Statuses), string(u.Status))
			h.raw(`</td><td>`)
			selectForm(h, p.CSRF, base+"trust/", "trust", strs(accounts.TrustLevels), string(u.TrustLevel))
			h.raw(`</td>`)
			td(h, map[bool]string{true: "yes", false: "no"}[u.TwoFactorEnabled])
			td(h, formatDate(u.CreatedAt))
			td(h, formatDateTime(u.LastLoginAt))
		})
		pager(h, "/admin/users/", p.Filters(), p.Paging)

		h.raw(`<h2>New account</h2><form method="post" action="/admin/users/" class="inline-form">`)
		csrfField(h, p.CSRF)
		h.raw(`<input type="email" name="email" placeholder="Email" required><input name="name" placeholder="Name">` +
			`<input type="password" name="password" placeholder="Password" minlength="8" required><button type="submit">Create</button></form>`)
	}))
}

// AdminOrgs renders the organization list and the create form.
func AdminOrgs(p OrgsPage) templ.Component {
	return AdminLayout(p.Page, "Organizations", component(func(h *w) {
		statCards(h,
			stat{"Active", itoa(p.Counts[orgs.StatusActive]), ""},
			stat{"Suspended", itoa(p.Counts[orgs.StatusSuspended]), ""},
		)
		h.raw(`<form class="filters" method="get" action="/admin/orgs/">`)
		selectField(h, "status", []string{string(orgs.StatusActive), string(orgs.StatusSuspended)}, string(p.Filter.Status), "All statuses")
		h.rawf(`<input type="search" name="q" placeholder="Name or slug" value="%s">`, attr(p.Filter.Search))
		h.raw(`<button type="submit">Filter</button></form>`)
		table(h, []string{"Name", "Slug", "Plan", "Members", "Status", "Created"}, len(p.Orgs), func(i int) {
			o := p.Orgs[i]
			h.rawf(`<td><a href="/admin/orgs/%s/">`, attr(url.PathEscape(o.ID)))
			h.text(o.Name)
			h.raw(`</a></td>`)
			td(h, o.Slug)
			td(h, o.Plan)
			td(h, itoa(o.MemberCount))
			td(h, string(o.Status))
			td(h, formatDate(o.CreatedAt))
		})
		pager(h, "/admin/orgs/", p.Filters(), p.Paging)

		h.raw(`<h2>New organization</h2><form method="post" action="/admin/orgs/" class="inline-form">`)
		csrfField(h, p.CSRF)
		h.raw(`<input name="name" placeholder="Name" required><input name="slug" placeholder="slug (optional)">` +
			`<input name="plan" placeholder="Plan" value="free"><input type="email" name="owner" placeholder="Owner email" required>` +
			`<button type="submit">Create</button></form>`)
	}))
}

// AdminOrg renders one organization with members, invites and billing.
func AdminOrg(p OrgPage) templ.Component {
	o := p.Org
	base := "/admin/orgs/" + url.PathEscape(o.ID) + "/"
	return AdminLayout(p.Page, o.Name, component(func(h *w) {
		h.el("p", `class="meta"`, fmt.Sprintf("%s · %s plan · %s · created %s", o.Slug, o.Plan, o.Status, formatDate(o.CreatedAt)))
		h.raw(`<div class="actions">`)
		h.rawf(`<form method="post" action="%srename/" class="inline">`, attr(base))
		csrfField(h, p.CSRF)
		h.rawf(`<input name="name" value="%s" required><button type="submit">Rename</button></form>`, attr(o.Name))
		if o.Status == orgs.StatusActive {
			postButton(h, p.CSRF, base+"suspend/", "", "Suspend", "warning")
		} else {
			postButton(h, p.CSRF, base+"activate/", "", "Activate", "")
		}
		postButton(h, p.CSRF, base, "DELETE", "Delete", "danger")
		h.raw(`</div>`)

		roleCards := make([]stat, 0, len(orgs.Roles))
		for _, r := range orgs.Roles {
			roleCards = append(roleCards, stat{string(r), itoa(p.Roles[r]), ""})
		}
		statCards(h, roleCards...)

		h.raw(`<h2>Members</h2>`)
		table(h, []string{"Email", "Name", "Role", "Joined", ""}, len(p.Members), func(i int) {
			m := p.Members[i]
			mb := base + "members/" + url.PathEscape(m.UserID) + "/"
			td(h, m.Email)
			td(h, m.Name)
			h.raw(`<td>`)
			selectForm(h, p.CSRF, mb+"role/", "role", strs(orgs.Roles), string(m.Role))
			h.raw(`</td>`)
			td(h, formatDate(m.JoinedAt))
			h.raw(`<td>`)
			postButton(h, p.CSRF, mb, "DELETE", "Remove", "danger")
			h.raw(`</td>`)
		})
		h.rawf(`<form method="post" action="%smembers/" class="inline-form">`, attr(base))
		csrfField(h, p.CSRF)
		h.raw(`<input type="email" name="email" placeholder="User email" required>`)
		selectField(h, "role", strs(orgs.Roles), string(orgs.RoleMember), "")
		h.raw(`<button type="submit">Add member</button></form>`)

		h.raw(`<h2>Invites</h2>`)
		table(h, []string{"Email", "Role", "Status", "Expires", ""}, len(p.Invites), func(i int) {
			inv := p.Invites[i]
			td(h, inv.Email)
			td(h, string(inv.Role))
			td(h, string(inv.Status))
			td(h, formatDate(inv.ExpiresAt))
			h.raw(`<td>`)
			if inv.Status == orgs.InvitePending {
				postButton(h, p.CSRF, fmt.Sprintf("%sinvites/%d/", base, inv.ID), "DELETE", "Revoke", "danger")
			}
			h.raw(`</td>`)
		})
		h.rawf(`<form method="post" action="%sinvites/" class="inline-form">`, attr(base))
		csrfField(h, p.CSRF)
		h.raw(`<input type="email" name="email" placeholder="Email" required>`)
		selectField(h, "role", strs(orgs.Roles), string(orgs.RoleMember), "")
		h.raw(`<button type="submit">Invite</button></form>`)

		h.raw(`<h2>Billing</h2>`)
		statCards(h, stat{"Balance", money(p.BalanceCents), ""})
		subscriptionTable(h, p.Subscriptions)
		table(h, []string{"When", "Type", "Amount", "Description"}, len(p.Transactions), func(i int) {
			t := p.Transactions[i]
			td(h, formatDateTime(t.CreatedAt))
			td(h, string(t.Type))
			td(h, billing.FormatMoney(t.AmountCents, t.Currency))
			td(h, t.Description)
		})
		h.rawf(`<form method="post" action="%stransactions/" class="inline-form">`, attr(base))
		csrfField(h, p.CSRF)
		txTypes := []billing.TransactionType{billing.TxDeposit, billing.TxCharge, billing.TxRefund, billing.TxAdjustment, billing.TxBonus}
		selectField(h, "type", strs(txTypes), string(billing.TxDeposit), "")
		h.raw(`<input name="amount" placeholder="Amount" inputmode="decimal" required><input name="currency" value="USD" size="3">` +
			`<input name="description" placeholder="Description"><button type="submit">Record</button></form>`)
	}))
}

// AdminBlog renders the post list and, when editing, the post editor.
func AdminBlog(p AdminBlogPage) templ.Component {
	return AdminLayout(p.Page, "Blog", component(func(h *w) {
		h.raw(`<nav class="tabs"><a href="/admin/blog/">All</a>`)
		for _, s := range blog.Statuses {
			h.rawf(`<a href="/admin/blog/?status=%s">%s (%d)</a>`, s, s, p.Counts[s])
		}
		h.raw(`<a href="/admin/blog/?new=1" class="button">New post</a></nav>`)
		if p.Editing != nil {
			postEditor(h, p.CSRF, *p.Editing)
		}
		h.raw(`<form class="filters" method="get" action="/admin/blog/">`)
		h.rawf(`<input type="hidden" name="status" value="%s">`, attr(string(p.Query.Status)))
		h.rawf(`<input type="search" name="q" placeholder="Search posts" value="%s">`, attr(p.Query.Search))
		h.raw(`<button type="submit">Search</button></form>`)
		table(h, []string{"Title", "Status", "Category", "Views", "Date", ""}, len(p.Posts), func(i int) {
			post := p.Posts[i]
			base := "/admin/blog/" + url.PathEscape(post.Slug) + "/"
			h.rawf(`<td><a href="%s">`, attr(base))
			h.text(post.Title)
			h.raw(`</a>`)
			if post.Pinned {
				h.raw(` <span class="badge">pinned</span>`)
			}
			if post.Featured {
				h.raw(` <span class="badge">featured</span>`)
			}
			h.raw(`</td>`)
			td(h, string(post.Status))
			td(h, post.Category)
			td(h, itoa(post.Views))
			td(h, post.Date())
			h.raw(`<td class="actions">`)
			switch post.Status {
			case blog.StatusPublished:
				postButton(h, p.CSRF, base+"unpublish/", "", "Unpublish", "")
				postButton(h, p.CSRF, base+"archive/", "", "Archive", "")
			default:
				postButton(h, p.CSRF, base+"publish/", "", "Publish", "primary")
			}
			postButton(h, p.CSRF, base+"featured/", "", "Feature", "toggle")
			postButton(h, p.CSRF, base+"pinned/", "", "Pin", "toggle")
			postButton(h, p.CSRF, base, "DELETE", "Delete", "danger")
			h.raw(`</td>`)
		})
		pager(h, "/admin/blog/", p.Filters(), p.Paging)
	}))
}

func postEditor(h *w, csrf string, post blog.Post) {
	h.raw(`<form method="post" action="/admin/blog/" class="editor">`)
	csrfField(h, csrf)
	h.rawf(`<input type="hidden" name="original" value="%s">`, attr(post.Slug))
	h.rawf(`<label>Title <input name="title" required value="%s"></label>`, attr(post.Title))
	h.rawf(`<label>Slug <input name="slug" value="%s"></label>`, attr(post.Slug))
	h.rawf(`<label>Summary <input name="summary" value="%s"></label>`, attr(post.Summary))
	h.rawf(`<label>Category <input name="category" value="%s"></label>`, attr(post.Category))
	h.rawf(`<label>Tags <input name="tags" value="%s"></label>`, attr(JoinTags(post.Tags)))
	h.rawf(`<label>Cover image <input name="coverImage" value="%s"></label>`, attr(post.CoverImage))
	h.raw(`<label>Content <textarea name="content" rows="20">`)
	h.text(post.Content)
	h.raw(`</textarea></label><button type="submit">Save</button></form>`)
	if post.Slug != "" && post.Status != blog.StatusPublished {
		h.rawf(`<form method="post" action="/admin/blog/%s/schedule/" class="inline-form">`, attr(url.PathEscape(post.Slug)))
		csrfField(h, csrf)
		at := ""
		if !post.ScheduledAt.IsZero() {
			at = post.ScheduledAt.Format("2006-01-02T15:04")
		}
		h.rawf(`<label>Publish at <input type="datetime-local" name="at" value="%s" required></label><button type="submit">Schedule</button></form>`, attr(at))
	}
}

// AdminMedia renders the media library and upload form.
func AdminMedia(p MediaPage) templ.Component {
	return AdminLayout(p.Page, "Media", component(func(h *w) {
		h.raw(`<nav class="tabs"><a href="/admin/media/">All</a>`)
		for _, k := range media.Kinds {
			h.rawf(`<a href="/admin/media/?kind=%s">%s</a>`, k, k)
		}
		h.raw(`</nav><form method="post" action="/admin/media/" enctype="multipart/form-data" class="inline-form">`)
		csrfField(h, p.CSRF)
		h.raw(`<input type="file" name="image" accept="image/*" required>`)
		selectField(h, "kind", strs(media.Kinds), string(p.Kind), "")
		h.raw(`<button type="submit">Upload</button></form><div class="media-grid">`)
		if len(p.Images) == 0 {
			h.raw(`<p class="empty">No images uploaded.</p>`)
		}
		for _, img := range p.Images {
			h.rawf(`<figure><img src="%s" alt="" loading="lazy"><figcaption>`, attr(img.URL()))
			h.text(fmt.Sprintf("%s · %dx%d · %d KB", img.OriginalName, img.Width, img.Height, img.Size/1024))
			h.raw(`</figcaption>`)
			postButton(h, p.CSRF, "/admin/media/"+url.PathEscape(img.Filename)+"/", "DELETE", "Delete", "danger")
			h.raw(`</figure>`)
		}
		h.raw(`</div>`)
	}))
}

// AdminWizard renders onboarding funnel analytics and created websites.
func AdminWizard(p WizardPage) templ.Component {
	return AdminLayout(p.Page, "Onboarding", component(func(h *w) {
		a := p.Analytics
		statCards(h,
			stat{"Sessions", itoa(a.TotalSessions), ""},
			stat{"Websites", itoa(a.CompletedWebsites), ""},
			stat{"Abandoned", itoa(a.AbandonedSessions), ""},
			stat{"Conversion", fmt.Sprintf("%.1f%%", a.ConversionRate), ""},
		)
		funnel := make([]report.Share, len(a.Funnel))
		for i, c := range a.Funnel {
			funnel[i] = report.Share{Name: c.Name, Count: c.Count, Percent: report.Percent(c.Count, a.TotalSessions)}
		}
		shareList(h, "Funnel", funnel)
		total := 0
		for _, c := range a.BusinessTypes {
			total += c.Count
		}
		types := make([]report.Share, len(a.BusinessTypes))
		for i, c := range a.BusinessTypes {
			types[i] = report.Share{Name: c.Name, Count: c.Count, Percent: report.Percent(c.Count, total)}
		}
		shareList(h, "Business types", types)

		h.raw(`<h2>Websites</h2>`)
		table(h, []string{"Name", "Subdomain", "Type", "Plan", "Created", ""}, len(p.Websites), func(i int) {
			ws := p.Websites[i]
			td(h, ws.Name)
			td(h, ws.Subdomain)
			td(h, ws.BusinessType)
			td(h, ws.Plan)
			td(h, formatDate(ws.CreatedAt))
			h.rawf(`<td><a href="/console/websites/%s/analytics/">Analytics</a></td>`, attr(url.PathEscape(ws.Subdomain)))
		})
		pager(h, "/admin/wizard/", p.Filters(), p.Paging)
	}))
}
