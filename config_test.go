package panelengine

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig("")
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if !cfg.AnalyticsEnabled {
		t.Errorf("analytics should default on")
	}
	if cfg.Addr != ":3000" || cfg.DatabasePath != "data/panel.db" || cfg.RetentionDays != 365 {
		t.Errorf("unexpected defaults: %+v", cfg)
	}
	if cfg.PostCacheTTL != 5*time.Minute {
		t.Errorf("PostCacheTTL = %v, want 5m", cfg.PostCacheTTL)
	}
}

func TestLoadConfigFileThenEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "panelengine.yaml")
	yaml := `name: Acme
url: https://acme.test
addr: ":8080"
analyticsEnabled: false
retentionDays: 30
postCacheTTL: 1m
adminPassword: from-file
`
	if err := os.WriteFile(path, []byte(yaml), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("ADDR", ":9090")
	t.Setenv("SESSION_SECRET", "env-secret")

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	got := struct {
		Name, URL, Addr, AdminPassword, SessionSecret string
		AnalyticsEnabled                              bool
		RetentionDays                                 int
		PostCacheTTL                                  time.Duration
	}{cfg.Name, cfg.URL, cfg.Addr, cfg.AdminPassword, cfg.SessionSecret, cfg.AnalyticsEnabled, cfg.RetentionDays, cfg.PostCacheTTL}
	want := got
	want.Name, want.URL, want.Addr = "Acme", "https://acme.test", ":9090"
	want.AdminPassword, want.SessionSecret = "from-file", "env-secret"
	want.AnalyticsEnabled, want.RetentionDays, want.PostCacheTTL = false, 30, time.Minute
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("config mismatch (-want +got):\n%s", diff)
	}
}

func TestLoadConfigMissingFile(t *testing.T) {
	if _, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml")); err != nil {
		t.Fatalf("missing file should be ignored: %v", err)
	}
}

func TestLoadConfigBadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	if err := os.WriteFile(path, []byte("addr: [unclosed"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadConfig(path); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     SiteConfig
		wantErr bool
	}{
		{"missing password", SiteConfig{SessionSecret: "s"}, true},
		{"missing secret", SiteConfig{AdminPassword: "p"}, true},
		{"plain password", SiteConfig{AdminPassword: "p", SessionSecret: "s"}, false},
		{"hash only", SiteConfig{AdminPasswordHash: "$2a$10$abc", SessionSecret: "s"}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
