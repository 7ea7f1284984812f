package panelengine

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/eringen/panelengine/views"
)

// SiteConfig holds all configuration for a panelengine site. Values come from
// an optional YAML file, then the environment, then defaults.
type SiteConfig struct {
	Name        string `yaml:"name" env:"SITE_NAME"`               // Site name (default "Panel")
	URL         string `yaml:"url" env:"SITE_URL"`                 // Canonical URL (default "http://localhost:3000")
	Description string `yaml:"description" env:"SITE_DESCRIPTION"` // Site description for RSS and meta tags
	Author      string `yaml:"author" env:"SITE_AUTHOR"`           // Author name for JSON-LD

	Addr                  string `yaml:"addr" env:"ADDR"`                                     // Listen address (default ":3000")
	DatabasePath          string `yaml:"databasePath" env:"DATABASE_PATH"`                    // SQLite path (default "data/panel.db")
	AnalyticsDatabasePath string `yaml:"analyticsDatabasePath" env:"ANALYTICS_DATABASE_PATH"` // Analytics SQLite path (default "data/analytics.db")
	UploadsDir            string `yaml:"uploadsDir" env:"UPLOADS_DIR"`                        // Media directory (default "data/uploads")
	AnalyticsEnabled      bool   `yaml:"analyticsEnabled" env:"ANALYTICS_ENABLED"`            // Per-website analytics (LoadConfig defaults it on)
	RetentionDays         int    `yaml:"retentionDays" env:"ANALYTICS_RETENTION_DAYS"`        // Analytics retention (default 365)

	AdminPassword     string `yaml:"adminPassword" env:"ADMIN_PASSWORD"`          // Plain admin password
	AdminPasswordHash string `yaml:"adminPasswordHash" env:"ADMIN_PASSWORD_HASH"` // bcrypt hash, preferred over AdminPassword
	SessionSecret     string `yaml:"sessionSecret" env:"SESSION_SECRET"`          // Required: session encryption secret
	CookieSecure      bool   `yaml:"cookieSecure" env:"COOKIE_SECURE"`            // Set true for HTTPS

	RootDomain    string        `yaml:"rootDomain" env:"ROOT_DOMAIN"`       // Domain websites are created under (default "localhost")
	InvoicePrefix string        `yaml:"invoicePrefix" env:"INVOICE_PREFIX"` // Invoice number prefix (default "INV")
	PostCacheTTL  time.Duration `yaml:"postCacheTTL" env:"POST_CACHE_TTL"`  // Post cache TTL (default 5m)
	Debug         bool          `yaml:"debug" env:"DEBUG"`                  // Development logging
}

// LoadConfig reads path (if it exists) and then applies environment overrides.
// An empty path skips the file.
func LoadConfig(path string) (SiteConfig, error) {
	cfg := SiteConfig{AnalyticsEnabled: true}
	if path != "" {
		b, err := os.ReadFile(path)
		switch {
		case errors.Is(err, os.ErrNotExist):
		case err != nil:
			return cfg, fmt.Errorf("read config: %w", err)
		default:
			if err := yaml.Unmarshal(b, &cfg); err != nil {
				return cfg, fmt.Errorf("parse config %s: %w", path, err)
			}
		}
	}
	if err := env.Parse(&cfg); err != nil {
		return cfg, fmt.Errorf("parse env: %w", err)
	}
	cfg.setDefaults()
	return cfg, nil
}

func (c *SiteConfig) setDefaults() {
	if c.Name == "" {
		c.Name = "Panel"
	}
	if c.URL == "" {
		c.URL = "http://localhost:3000"
	}
	if c.Addr == "" {
		c.Addr = ":3000"
	}
	if c.DatabasePath == "" {
		c.DatabasePath = "data/panel.db"
	}
	if c.AnalyticsDatabasePath == "" {
		c.AnalyticsDatabasePath = "data/analytics.db"
	}
	if c.UploadsDir == "" {
		c.UploadsDir = "data/uploads"
	}
	if c.RetentionDays <= 0 {
		c.RetentionDays = 365
	}
	if c.RootDomain == "" {
		c.RootDomain = "localhost"
	}
	if c.InvoicePrefix == "" {
		c.InvoicePrefix = "INV"
	}
	if c.PostCacheTTL == 0 {
		c.PostCacheTTL = 5 * time.Minute
	}
}

func (c SiteConfig) validate() error {
	if c.AdminPassword == "" && c.AdminPasswordHash == "" {
		return errors.New("panelengine: ADMIN_PASSWORD or ADMIN_PASSWORD_HASH is required")
	}
	if c.SessionSecret == "" {
		return errors.New("panelengine: SESSION_SECRET is required")
	}
	return nil
}

func (c SiteConfig) site() views.SiteConfig {
	return views.SiteConfig{Name: c.Name, URL: c.URL, Description: c.Description, Author: c.Author}
}

// Option configures additional App behavior.
type Option func(*App)

// WithCustomRoutes registers additional routes on the Echo instance.
// The callback runs after the built-in routes are mounted.
func WithCustomRoutes(fn func(*App)) Option {
	return func(a *App) {
		a.customRoutes = append(a.customRoutes, fn)
	}
}

// WithStaticDir sets the directory for user-owned static assets (default "public").
func WithStaticDir(dir string) Option {
	return func(a *App) {
		a.staticDir = dir
	}
}

// WithLogger replaces the default zap logger.
func WithLogger(l *zap.Logger) Option {
	return func(a *App) {
		a.Logger = l
	}
}

// WithClock replaces time.Now for every store. Used by tests.
func WithClock(now func() time.Time) Option {
	return func(a *App) {
		a.now = now
	}
}
