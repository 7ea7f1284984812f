// Package settings stores system configuration as sectioned key/value pairs,
// together with feature flags, alert thresholds and per-admin dashboard
// preferences.
package settings

import (
	"encoding/json"
	"errors"
	"fmt"
	"html"
	"regexp"
	"strings"
	"time"

	"github.com/microcosm-cc/bluemonday"
)

var (
	ErrNotFound   = errors.New("settings: not found")
	ErrInvalidKey = errors.New("settings: key must look like section.name")
)

var keyPattern = regexp.MustCompile(`^[a-z][a-z0-9_]*\.[a-zA-Z][a-zA-Z0-9_.]*$`)

// ValidKey reports whether key is a well-formed "section.name" key.
func ValidKey(key string) bool {
	return keyPattern.MatchString(key)
}

// SplitKey returns the section and name parts of key.
func SplitKey(key string) (section, name string, err error) {
	if !ValidKey(key) {
		return "", "", fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}
	section, name, _ = strings.Cut(key, ".")
	return section, name, nil
}

// Setting is one stored value.
type Setting struct {
	Key       string    `json:"key"`
	Section   string    `json:"section"`
	Name      string    `json:"name"`
	Value     any       `json:"value"`
	UpdatedAt time.Time `json:"updatedAt"`
	UpdatedBy string    `json:"updatedBy"`
}

// Defaults are seeded by InitDefaults.
var Defaults = map[string]any{
	"general.siteName":              "Panel",
	"general.siteDescription":       "Build and run your website",
	"general.maintenanceMode":       false,
	"general.defaultLanguage":       "en",
	"general.timezone":              "UTC",
	"auth.allowRegistration":        true,
	"auth.requireEmailVerification": true,
	"auth.sessionTimeout":           720,
	"auth.maxLoginAttempts":         5,
	"auth.lockoutDuration":          15,
	"auth.require2FA":               false,
	"billing.currency":              "USD",
	"billing.taxRate":               20,
	"billing.trialDays":             14,
	"billing.invoicePrefix":         "INV",
	"email.fromName":                "Panel",
	"email.fromAddress":             "noreply@example.com",
	"email.smtpHost":                "",
	"email.smtpPort":                587,
	"wallet.enabled":                true,
	"wallet.minDeposit":             10,
	"wallet.maxDeposit":             10000,
}

var strict = bluemonday.StrictPolicy()

// sanitize strips markup from string values, recursing into maps and slices.
func sanitize(v any) any {
	switch t := v.(type) {
	case string:
		return html.UnescapeString(strict.Sanitize(t))
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = sanitize(e)
		}
		return out
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, e := range t {
			out[k] = sanitize(e)
		}
		return out
	default:
		return v
	}
}

// encode converts a value to its stored JSON text.
func encode(v any) (string, error) {
	b, err := json.Marshal(sanitize(v))
	if err != nil {
		return "", fmt.Errorf("encode setting: %w", err)
	}
	return string(b), nil
}

// decode parses stored text as JSON and falls back to the raw string.
func decode(raw string) any {
	var v any
	if err := json.Unmarshal([]byte(raw), &v); err != nil {
		return raw
	}
	return v
}

// ParseFormValue interprets a submitted form string: booleans and numbers
// become typed values, everything else stays a string.
func ParseFormValue(s string) any {
	trimmed := strings.TrimSpace(s)
	switch trimmed {
	case "true", "on":
		return true
	case "false", "off":
		return false
	}
	var n json.Number
	if err := json.Unmarshal([]byte(trimmed), &n); err == nil && trimmed != "" {
		if i, err := n.Int64(); err == nil {
			return i
		}
		if f, err := n.Float64(); err == nil {
			return f
		}
	}
	return s
}
