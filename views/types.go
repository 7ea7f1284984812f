package views

import (
	"net/url"

	"github.com/eringen/panelengine/accounts"
	"github.com/eringen/panelengine/audit"
	"github.com/eringen/panelengine/billing"
	"github.com/eringen/panelengine/blog"
	"github.com/eringen/panelengine/catalog"
	"github.com/eringen/panelengine/media"
	"github.com/eringen/panelengine/orgs"
	"github.com/eringen/panelengine/paging"
	"github.com/eringen/panelengine/products"
	"github.com/eringen/panelengine/security"
	"github.com/eringen/panelengine/settings"
	"github.com/eringen/panelengine/system"
	"github.com/eringen/panelengine/wizard"
)

// SiteConfig holds the site-wide settings every page needs.
type SiteConfig struct {
	Name        string
	URL         string
	Description string
	Author      string
}

// PageMeta carries per-page OpenGraph and SEO metadata into the <head> template.
type PageMeta struct {
	Title       string
	Description string
	URL         string // canonical + og:url
	OGType      string // "website" or "article"
}

// Page is the chrome shared by every page. It is never part of a JSON
// response.
type Page struct {
	Site  SiteConfig
	Meta  PageMeta
	CSRF  string
	Flash string
	Nav   string     // active admin section
	Query url.Values // current query, for filter forms and pagers
}

// HomePage is the marketing home.
type HomePage struct {
	Page       `json:"-"`
	Featured   []blog.Post          `json:"featured"`
	Latest     []blog.Post          `json:"latest"`
	Categories []blog.CategoryCount `json:"categories"`
	Templates  []catalog.Template   `json:"templates"`
}

// BlogListPage lists published posts.
type BlogListPage struct {
	Page           `json:"-"`
	Posts          []blog.Post          `json:"posts"`
	Tags           []string             `json:"tags"`
	Categories     []blog.CategoryCount `json:"categories"`
	ActiveTag      string               `json:"activeTag,omitempty"`
	ActiveCategory string               `json:"activeCategory,omitempty"`
}

// PostPage shows one post.
type PostPage struct {
	Page    `json:"-"`
	Post    blog.Post   `json:"post"`
	HTML    string      `json:"html"`
	Related []blog.Post `json:"related"`
}

// TemplatesPage is the template catalog.
type TemplatesPage struct {
	Page       `json:"-"`
	Query      catalog.TemplateQuery  `json:"-"`
	Result     catalog.TemplateResult `json:"result"`
	Categories []catalog.Category     `json:"categories"`
}

// TemplatePage shows one template.
type TemplatePage struct {
	Page     `json:"-"`
	Template catalog.Template   `json:"template"`
	Related  []catalog.Template `json:"related"`
}

// FreelancersPage is the freelancer marketplace.
type FreelancersPage struct {
	Page       `json:"-"`
	Query      catalog.FreelancerQuery  `json:"-"`
	Result     catalog.FreelancerResult `json:"result"`
	Categories []catalog.Category       `json:"categories"`
}

// FreelancerPage shows one freelancer profile.
type FreelancerPage struct {
	Page       `json:"-"`
	Freelancer catalog.Freelancer `json:"freelancer"`
}

// OnboardingPage is the website wizard. Session is nil before the visitor
// picks a business type.
type OnboardingPage struct {
	Page     `json:"-"`
	Session  *wizard.Session `json:"session"`
	Progress wizard.Progress `json:"progress"`
	Step     wizard.Step     `json:"step"`
	Error    string          `json:"error,omitempty"`
	Field    string          `json:"field,omitempty"`
	Website  *wizard.Website `json:"website,omitempty"`
	Pages    []wizard.Page   `json:"pages,omitempty"`
	SiteURL  string          `json:"siteUrl,omitempty"`
}

// ConsoleLoginPage is the customer account login form. Next is where a
// successful login continues to.
type ConsoleLoginPage struct {
	Page   `json:"-"`
	Failed bool   `json:"failed"`
	Locked bool   `json:"locked"`
	Next   string `json:"next,omitempty"`
}

// InvitePage lets an invited person join an organization, either with the
// account they are logged in as, an existing account or a new one.
type InvitePage struct {
	Page    `json:"-"`
	Token   string            `json:"-"`
	Invite  orgs.Invite       `json:"invite"`
	Org     orgs.Organization `json:"org"`
	User    *accounts.User    `json:"user,omitempty"`
	Expired bool              `json:"expired"`
	Error   string            `json:"error,omitempty"`
}

// LoginPage is the admin login form.
type LoginPage struct {
	Page   `json:"-"`
	Failed bool `json:"failed"`
	Locked bool `json:"locked"`
}

// OverviewPage is the admin landing dashboard.
type OverviewPage struct {
	Page        `json:"-"`
	Security    *security.Overview   `json:"security"`
	System      *system.Status       `json:"system"`
	Billing     billing.Stats        `json:"billing"`
	Wizard      wizard.Analytics     `json:"wizard"`
	Alerts      []settings.Triggered `json:"alerts"`
	Preferences settings.Preferences `json:"preferences"`
}

// SecurityPage is the security dashboard with its event list.
type SecurityPage struct {
	Page     `json:"-"`
	Overview *security.Overview  `json:"overview"`
	Events   *security.EventPage `json:"events"`
}

// LogsPage is the merged security and access log plus the admin action log.
type LogsPage struct {
	Page  `json:"-"`
	Logs  *security.LogPage `json:"logs"`
	Audit []audit.Entry     `json:"audit"`
}

// SystemPage is the system status dashboard.
type SystemPage struct {
	Page   `json:"-"`
	Status *system.Status       `json:"status"`
	Alerts []settings.Triggered `json:"alerts"`
}

// SettingsPage lists settings by section with flags, alerts and the
// current admin's dashboard preferences.
type SettingsPage struct {
	Page        `json:"-"`
	Sections    []string                      `json:"sections"`
	Settings    map[string][]settings.Setting `json:"settings"`
	Flags       []settings.Flag               `json:"flags"`
	Alerts      []settings.Alert              `json:"alerts"`
	Preferences settings.Preferences          `json:"preferences"`
}

// BillingPage is the billing dashboard and invoice list.
type BillingPage struct {
	Page          `json:"-"`
	Stats         billing.Stats          `json:"stats"`
	Invoices      []billing.Invoice      `json:"invoices"`
	Paging        paging.Page            `json:"page"`
	Filter        billing.InvoiceFilter  `json:"-"`
	Subscriptions []billing.Subscription `json:"subscriptions"`
}

// UsersPage is the member list.
type UsersPage struct {
	Page   `json:"-"`
	Users  []accounts.User         `json:"users"`
	Paging paging.Page             `json:"page"`
	Filter accounts.Filter         `json:"-"`
	Counts map[accounts.Status]int `json:"counts"`
}

// OrgsPage is the organization list.
type OrgsPage struct {
	Page   `json:"-"`
	Orgs   []orgs.Organization `json:"orgs"`
	Paging paging.Page         `json:"page"`
	Filter orgs.Filter         `json:"-"`
	Counts map[orgs.Status]int `json:"counts"`
}

// OrgPage is one organization with its members, invites and billing.
type OrgPage struct {
	Page          `json:"-"`
	Org           orgs.Organization      `json:"org"`
	Members       []orgs.Member          `json:"members"`
	Invites       []orgs.Invite          `json:"invites"`
	Roles         map[orgs.Role]int      `json:"roles"`
	Subscriptions []billing.Subscription `json:"subscriptions"`
	Transactions  []billing.Transaction  `json:"transactions"`
	BalanceCents  int64                  `json:"balanceCents"`
}

// ProductsPage is the product list with the category tree.
type ProductsPage struct {
	Page       `json:"-"`
	Products   []products.Product      `json:"products"`
	Paging     paging.Page             `json:"page"`
	Filter     products.Filter         `json:"-"`
	Counts     map[products.Status]int `json:"counts"`
	Categories []products.Category     `json:"categories"`
}

// ProductPage is the product editor with its variants.
type ProductPage struct {
	Page       `json:"-"`
	Product    products.Product    `json:"product"`
	Categories []products.Category `json:"categories"`
}

// AdminBlogPage lists every post and optionally shows the editor.
type AdminBlogPage struct {
	Page    `json:"-"`
	Posts   []blog.Post         `json:"posts"`
	Paging  paging.Page         `json:"page"`
	Query   blog.Query          `json:"-"`
	Counts  map[blog.Status]int `json:"counts"`
	Editing *blog.Post          `json:"editing,omitempty"`
}

// MediaPage lists uploaded images.
type MediaPage struct {
	Page   `json:"-"`
	Images []media.Image `json:"images"`
	Kind   media.Kind    `json:"kind,omitempty"`
}

// WizardPage is the onboarding analytics dashboard.
type WizardPage struct {
	Page      `json:"-"`
	Analytics wizard.Analytics `json:"analytics"`
	Websites  []wizard.Website `json:"websites"`
	Paging    paging.Page      `json:"page"`
}

// ErrorPage renders not found, server error and maintenance pages.
type ErrorPage struct {
	Page    `json:"-"`
	Code    int    `json:"code"`
	Message string `json:"error"`
}
