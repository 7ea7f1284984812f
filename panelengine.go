// Package panelengine is a multi-app web platform built with Go, Echo, and
// templ: an admin back office, a customer onboarding console, a marketing
// blog and a catalog browser, all server-rendered over SQLite.
//
// Every page is rendered through the ViewFuncs struct. Fields left nil fall
// back to the default components in package views, so users can replace any
// page while panelengine handles the handler logic, middleware, and storage.
package panelengine

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"time"

	"github.com/a-h/templ"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/eringen/panelengine/accounts"
	"github.com/eringen/panelengine/analytics"
	"github.com/eringen/panelengine/audit"
	"github.com/eringen/panelengine/billing"
	"github.com/eringen/panelengine/blog"
	"github.com/eringen/panelengine/catalog"
	"github.com/eringen/panelengine/database"
	"github.com/eringen/panelengine/media"
	"github.com/eringen/panelengine/orgs"
	"github.com/eringen/panelengine/products"
	"github.com/eringen/panelengine/security"
	"github.com/eringen/panelengine/settings"
	"github.com/eringen/panelengine/system"
	"github.com/eringen/panelengine/views"
	"github.com/eringen/panelengine/wizard"
)

// ViewFuncs holds the templ components the framework calls when rendering
// pages. Nil fields use the matching component from package views.
type ViewFuncs struct {
	Home           func(views.HomePage) templ.Component
	BlogList       func(views.BlogListPage) templ.Component
	Post           func(views.PostPage) templ.Component
	Templates      func(views.TemplatesPage) templ.Component
	Template       func(views.TemplatePage) templ.Component
	Freelancers    func(views.FreelancersPage) templ.Component
	Freelancer     func(views.FreelancerPage) templ.Component
	Onboarding     func(views.OnboardingPage) templ.Component
	SubdomainCheck func(wizard.SubdomainCheck) templ.Component
	ConsoleLogin   func(views.ConsoleLoginPage) templ.Component
	InviteAccept   func(views.InvitePage) templ.Component
	AdminLogin     func(views.LoginPage) templ.Component
	AdminOverview  func(views.OverviewPage) templ.Component
	AdminSecurity  func(views.SecurityPage) templ.Component
	AdminLogs      func(views.LogsPage) templ.Component
	AdminSystem    func(views.SystemPage) templ.Component
	AdminSettings  func(views.SettingsPage) templ.Component
	AdminBilling   func(views.BillingPage) templ.Component
	AdminUsers     func(views.UsersPage) templ.Component
	AdminOrgs      func(views.OrgsPage) templ.Component
	AdminOrg       func(views.OrgPage) templ.Component
	AdminProducts  func(views.ProductsPage) templ.Component
	AdminProduct   func(views.ProductPage) templ.Component
	AdminBlog      func(views.AdminBlogPage) templ.Component
	AdminMedia     func(views.MediaPage) templ.Component
	AdminWizard    func(views.WizardPage) templ.Component
	NotFound       func(views.ErrorPage) templ.Component
	ServerError    func(views.ErrorPage) templ.Component
	Maintenance    func(views.ErrorPage) templ.Component
}

// DefaultViews returns the components shipped in package views.
func DefaultViews() ViewFuncs {
	return ViewFuncs{
		Home:           views.Home,
		BlogList:       views.BlogList,
		Post:           views.Post,
		Templates:      views.Templates,
		Template:       views.Template,
		Freelancers:    views.Freelancers,
		Freelancer:     views.Freelancer,
		Onboarding:     views.Onboarding,
		SubdomainCheck: views.SubdomainCheck,
		ConsoleLogin:   views.ConsoleLogin,
		InviteAccept:   views.InviteAccept,
		AdminLogin:     views.AdminLogin,
		AdminOverview:  views.AdminOverview,
		AdminSecurity:  views.AdminSecurity,
		AdminLogs:      views.AdminLogs,
		AdminSystem:    views.AdminSystem,
		AdminSettings:  views.AdminSettings,
		AdminBilling:   views.AdminBilling,
		AdminUsers:     views.AdminUsers,
		AdminOrgs:      views.AdminOrgs,
		AdminOrg:       views.AdminOrg,
		AdminProducts:  views.AdminProducts,
		AdminProduct:   views.AdminProduct,
		AdminBlog:      views.AdminBlog,
		AdminMedia:     views.AdminMedia,
		AdminWizard:    views.AdminWizard,
		NotFound:       views.NotFound,
		ServerError:    views.ServerError,
		Maintenance:    views.Maintenance,
	}
}

func fill[P any](f *func(P) templ.Component, def func(P) templ.Component) {
	if *f == nil {
		*f = def
	}
}

func (v *ViewFuncs) withDefaults() {
	d := DefaultViews()
	fill(&v.Home, d.Home)
	fill(&v.BlogList, d.BlogList)
	fill(&v.Post, d.Post)
	fill(&v.Templates, d.Templates)
	fill(&v.Template, d.Template)
	fill(&v.Freelancers, d.Freelancers)
	fill(&v.Freelancer, d.Freelancer)
	fill(&v.Onboarding, d.Onboarding)
	fill(&v.SubdomainCheck, d.SubdomainCheck)
	fill(&v.ConsoleLogin, d.ConsoleLogin)
	fill(&v.InviteAccept, d.InviteAccept)
	fill(&v.AdminLogin, d.AdminLogin)
	fill(&v.AdminOverview, d.AdminOverview)
	fill(&v.AdminSecurity, d.AdminSecurity)
	fill(&v.AdminLogs, d.AdminLogs)
	fill(&v.AdminSystem, d.AdminSystem)
	fill(&v.AdminSettings, d.AdminSettings)
	fill(&v.AdminBilling, d.AdminBilling)
	fill(&v.AdminUsers, d.AdminUsers)
	fill(&v.AdminOrgs, d.AdminOrgs)
	fill(&v.AdminOrg, d.AdminOrg)
	fill(&v.AdminProducts, d.AdminProducts)
	fill(&v.AdminProduct, d.AdminProduct)
	fill(&v.AdminBlog, d.AdminBlog)
	fill(&v.AdminMedia, d.AdminMedia)
	fill(&v.AdminWizard, d.AdminWizard)
	fill(&v.NotFound, d.NotFound)
	fill(&v.ServerError, d.ServerError)
	fill(&v.Maintenance, d.Maintenance)
}

// App is the central panelengine application. It wires together the stores,
// caches, handlers, middleware, and page components.
type App struct {
	Config SiteConfig
	Echo   *echo.Echo
	Logger *zap.Logger
	Views  ViewFuncs

	DB        *sql.DB
	Accounts  *accounts.Store
	Security  *security.Store
	Audit     *audit.Log
	Settings  *settings.Store
	Orgs      *orgs.Store
	Billing   *billing.Store
	Products  *products.Store
	Wizard    *wizard.Store
	Blog      *blog.Store
	Cache     *blog.Cache
	Media     *media.Library
	Catalog   *catalog.Catalog
	Monitor   *system.Monitor
	Analytics *analytics.Store

	analyticsDB  *sql.DB
	loginLimiter *LoginLimiter
	customRoutes []func(*App)
	staticDir    string
	now          func() time.Time
	started      time.Time
	stops        []func()
	ready        bool
}

// New creates a panelengine App. Nil fields in v use the default views.
func New(cfg SiteConfig, v ViewFuncs, opts ...Option) *App {
	cfg.setDefaults()
	v.withDefaults()

	a := &App{
		Config:    cfg,
		Echo:      echo.New(),
		Views:     v,
		staticDir: "public",
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(a)
	}
	if a.Logger == nil {
		a.Logger = newLogger(cfg.Debug)
	}
	a.Echo.HideBanner = true
	return a
}

func newLogger(debug bool) *zap.Logger {
	var (
		l   *zap.Logger
		err error
	)
	if debug {
		l, err = zap.NewDevelopment()
	} else {
		l, err = zap.NewProduction()
	}
	if err != nil {
		return zap.NewNop()
	}
	return l
}

// Init opens the databases, creates every store and mounts middleware and
// routes. Start calls it; tests call it directly and drive a.Echo.
func (a *App) Init() error {
	if a.ready {
		return nil
	}
	if err := a.Config.validate(); err != nil {
		return err
	}
	if err := a.Open(); err != nil {
		return err
	}

	a.loginLimiter = NewLoginLimiter(5, time.Minute)
	a.loginLimiter.now = a.now

	a.setupMiddleware()
	a.setupRoutes()
	for _, fn := range a.customRoutes {
		fn(a)
	}
	a.ready = true
	return nil
}

// Open creates the stores without mounting any HTTP routes. CLI commands
// that only touch data use it instead of Init.
func (a *App) Open() error {
	if a.DB != nil {
		return nil
	}
	if err := a.openStores(); err != nil {
		a.Close()
		return err
	}
	return nil
}

func (a *App) openStores() error {
	db, err := database.Open(a.Config.DatabasePath)
	if err != nil {
		return fmt.Errorf("panelengine: open database: %w", err)
	}
	a.DB = db

	if a.Audit, err = audit.NewLog(db); err != nil {
		return fmt.Errorf("panelengine: init audit log: %w", err)
	}
	if a.Accounts, err = accounts.NewStore(db); err != nil {
		return fmt.Errorf("panelengine: init accounts: %w", err)
	}
	if a.Security, err = security.NewStore(db); err != nil {
		return fmt.Errorf("panelengine: init security: %w", err)
	}
	if a.Settings, err = settings.NewStore(db, a.Audit); err != nil {
		return fmt.Errorf("panelengine: init settings: %w", err)
	}
	if a.Orgs, err = orgs.NewStore(db); err != nil {
		return fmt.Errorf("panelengine: init orgs: %w", err)
	}
	if a.Billing, err = billing.NewStore(db, a.Config.InvoicePrefix); err != nil {
		return fmt.Errorf("panelengine: init billing: %w", err)
	}
	if a.Products, err = products.NewStore(db); err != nil {
		return fmt.Errorf("panelengine: init products: %w", err)
	}
	if a.Wizard, err = wizard.NewStore(db, a.Config.RootDomain); err != nil {
		return fmt.Errorf("panelengine: init wizard: %w", err)
	}
	if a.Blog, err = blog.NewStore(db); err != nil {
		return fmt.Errorf("panelengine: init blog: %w", err)
	}
	if a.Media, err = media.NewLibrary(db, a.Config.UploadsDir); err != nil {
		return fmt.Errorf("panelengine: init media: %w", err)
	}
	if a.Catalog, err = catalog.Load(); err != nil {
		return fmt.Errorf("panelengine: load catalog: %w", err)
	}

	a.started = a.now()
	a.Monitor = system.NewMonitor(db, a.Accounts, a.Security, a.started)
	a.Cache = blog.NewCache(a.Blog, a.Config.PostCacheTTL)

	if a.Config.AnalyticsEnabled {
		adb, err := database.Open(a.Config.AnalyticsDatabasePath)
		if err != nil {
			return fmt.Errorf("panelengine: open analytics database: %w", err)
		}
		a.analyticsDB = adb
		if a.Analytics, err = analytics.NewStore(context.Background(), adb); err != nil {
			return fmt.Errorf("panelengine: init analytics: %w", err)
		}
	}

	a.Accounts.SetClock(a.now)
	a.Security.SetClock(a.now)
	a.Settings.SetClock(a.now)
	a.Orgs.SetClock(a.now)
	a.Billing.SetClock(a.now)
	a.Products.SetClock(a.now)
	a.Wizard.SetClock(a.now)
	a.Blog.SetClock(a.now)
	a.Media.SetClock(a.now)
	if a.Analytics != nil {
		a.Analytics.SetClock(a.now)
	}
	// A stored prefix wins over the configured one.
	if p := a.Settings.String(context.Background(), "billing.invoicePrefix", ""); p != "" {
		a.Billing.SetPrefix(p)
	}
	return nil
}

// Start initializes the app, starts the background schedulers and serves
// HTTP until the server is shut down.
func (a *App) Start() error {
	if err := a.Init(); err != nil {
		return err
	}
	a.startSchedulers()
	a.Logger.Info("listening", zap.String("addr", a.Config.Addr), zap.String("url", a.Config.URL))
	if err := a.Echo.Start(a.Config.Addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops the HTTP server gracefully and releases every resource.
func (a *App) Shutdown(ctx context.Context) error {
	err := a.Echo.Shutdown(ctx)
	return errors.Join(err, a.Close())
}

// Close stops the schedulers and closes the databases. Call this when the
// app is shutting down.
func (a *App) Close() error {
	for _, stop := range a.stops {
		stop()
	}
	a.stops = nil
	var errs []error
	if a.DB != nil {
		errs = append(errs, a.DB.Close())
		a.DB = nil
	}
	if a.analyticsDB != nil {
		errs = append(errs, a.analyticsDB.Close())
		a.analyticsDB = nil
	}
	_ = a.Logger.Sync()
	return errors.Join(errs...)
}

func (a *App) setupRoutes() {
	e := a.Echo

	// Embedded framework assets are served under /public/ and fall through to
	// the user's static dir.
	embeddedFS, _ := fs.Sub(EmbeddedAssets, "embedded")
	embeddedHandler := http.StripPrefix("/public/", http.FileServer(http.FS(embeddedFS)))
	for _, name := range embeddedNames() {
		e.GET("/public/"+name, echo.WrapHandler(embeddedHandler))
	}
	e.Static("/public", a.staticDir)
	e.Static("/uploads", a.Media.Dir())
	e.GET("/favicon.svg", a.handleFavicon)
	e.GET("/robots.txt", a.handleRobots)
	e.GET("/healthz", a.handleHealth)

	// Public pages
	e.GET("/sitemap.xml", a.handleSitemap)
	e.GET("/feed.xml", a.handleFeed)
	e.GET("/", a.handleHome)
	e.GET("/blog/", a.handleBlogList)
	e.GET("/blog/:slug/", a.handlePost)
	e.GET("/templates/", a.handleTemplates)
	e.GET("/templates/:slug/", a.handleTemplate)
	e.GET("/freelancers/", a.handleFreelancers)
	e.GET("/freelancers/:slug/", a.handleFreelancer)

	// Customer console
	con := e.Group("/console/onboarding")
	con.GET("/", a.handleOnboarding)
	con.POST("/", a.handleOnboardingStep)
	con.GET("/subdomain/", a.handleSubdomainCheck)
	con.POST("/logo/", a.handleOnboardingLogo)
	con.POST("/create/", a.handleOnboardingCreate)

	e.GET("/console/login/", a.handleConsoleLogin)
	e.POST("/console/login/", a.handleConsoleLoginSubmit)
	e.POST("/console/logout/", a.handleConsoleLogout)
	e.GET("/console/invites/:token/", a.handleInvite)
	e.POST("/console/invites/:token/", a.handleInviteAccept)

	// Admin
	e.GET("/admin/", a.handleAdmin)
	e.POST("/admin/login/", a.handleAdminLogin)
	e.POST("/admin/logout/", a.handleAdminLogout)

	adm := e.Group("/admin", a.requireAdmin)
	adm.GET("/security/", a.handleSecurity)
	adm.GET("/logs/", a.handleLogs)
	adm.GET("/system/", a.handleSystem)

	adm.GET("/settings/", a.handleSettings)
	adm.POST("/settings/", a.handleSettingsSave)
	adm.POST("/settings/init/", a.handleSettingsInit)
	adm.DELETE("/settings/:key/", a.handleSettingDelete)
	adm.POST("/settings/flags/", a.handleFlagSave)
	adm.POST("/settings/flags/:key/toggle/", a.handleFlagToggle)
	adm.DELETE("/settings/flags/:key/", a.handleFlagDelete)
	adm.POST("/settings/alerts/", a.handleAlertSave)
	adm.DELETE("/settings/alerts/:id/", a.handleAlertDelete)
	adm.POST("/settings/preferences/", a.handlePreferencesSave)

	adm.GET("/billing/", a.handleBilling)
	adm.POST("/billing/invoices/", a.handleInvoiceCreate)
	adm.POST("/billing/invoices/:id/status/", a.handleInvoiceStatus)

	adm.GET("/users/", a.handleUsers)
	adm.POST("/users/", a.handleUserCreate)
	adm.POST("/users/:id/status/", a.handleUserStatus)
	adm.POST("/users/:id/trust/", a.handleUserTrust)

	adm.GET("/orgs/", a.handleOrgs)
	adm.POST("/orgs/", a.handleOrgCreate)
	adm.GET("/orgs/:id/", a.handleOrg)
	adm.DELETE("/orgs/:id/", a.handleOrgDelete)
	adm.POST("/orgs/:id/rename/", a.handleOrgRename)
	adm.POST("/orgs/:id/suspend/", a.handleOrgSuspend)
	adm.POST("/orgs/:id/activate/", a.handleOrgActivate)
	adm.POST("/orgs/:id/members/", a.handleMemberAdd)
	adm.POST("/orgs/:id/members/:user/role/", a.handleMemberRole)
	adm.DELETE("/orgs/:id/members/:user/", a.handleMemberRemove)
	adm.POST("/orgs/:id/invites/", a.handleInviteCreate)
	adm.DELETE("/orgs/:id/invites/:invite/", a.handleInviteRevoke)
	adm.POST("/orgs/:id/transactions/", a.handleTransactionCreate)

	adm.GET("/products/", a.handleProducts)
	adm.POST("/products/", a.handleProductCreate)
	adm.POST("/products/categories/", a.handleCategoryCreate)
	adm.POST("/products/categories/:id/", a.handleCategoryUpdate)
	adm.DELETE("/products/categories/:id/", a.handleCategoryDelete)
	adm.GET("/products/:id/", a.handleProduct)
	adm.POST("/products/:id/", a.handleProductUpdate)
	adm.DELETE("/products/:id/", a.handleProductDelete)
	adm.POST("/products/:id/status/", a.handleProductStatus)
	adm.POST("/products/:id/variants/", a.handleVariantCreate)
	adm.POST("/products/:id/variants/:variant/", a.handleVariantUpdate)
	adm.DELETE("/products/:id/variants/:variant/", a.handleVariantDelete)

	adm.GET("/blog/", a.handleAdminBlog)
	adm.POST("/blog/", a.handleAdminBlogSave)
	adm.GET("/blog/:slug/", a.handleAdminBlogEdit)
	adm.DELETE("/blog/:slug/", a.handleAdminBlogDelete)
	adm.POST("/blog/:slug/:action/", a.handleAdminBlogAction)

	adm.GET("/media/", a.handleMedia)
	adm.POST("/media/", a.handleMediaUpload)
	adm.DELETE("/media/:filename/", a.handleMediaDelete)

	adm.GET("/wizard/", a.handleWizardAnalytics)

	if a.Analytics != nil {
		h := analytics.NewHandler(a.Analytics, a.websiteExists, a.Logger)
		h.RegisterRoutes(e, e.Group(""), a.requireWebsiteAccess)
	}
}

// websiteExists reports whether a wizard website owns the analytics site key.
func (a *App) websiteExists(ctx context.Context, site string) bool {
	_, err := a.Wizard.WebsiteBySubdomain(ctx, site)
	return err == nil
}
