// Package analytics provides privacy-first visitor analytics for the
// websites built with the wizard. Every visit is keyed by the website's
// subdomain; IPs are only ever stored as salted hashes.
package analytics

import (
	"crypto/sha256"
	"encoding/hex"
	"regexp"
	"strings"
	"time"

	"github.com/eringen/panelengine/report"
)

// Visit represents a single page view.
type Visit struct {
	ID          int64     `json:"-"`
	Site        string    `json:"site"`
	VisitorID   string    `json:"visitorId"` // anonymous fingerprint hash
	SessionID   string    `json:"sessionId"`
	IPHash      string    `json:"-"`
	Browser     string    `json:"browser"`
	OS          string    `json:"os"`
	Device      string    `json:"device"` // Desktop, Mobile, Tablet
	Path        string    `json:"path"`
	Referrer    string    `json:"referrer"`
	ScreenSize  string    `json:"screenSize"` // e.g. "1920x1080"
	Timestamp   time.Time `json:"timestamp"`
	DurationSec int       `json:"durationSec"` // 0 until the unload beacon arrives
}

// BotVisit represents a single bot/crawler page view.
type BotVisit struct {
	ID        int64     `json:"-"`
	Site      string    `json:"site"`
	BotName   string    `json:"botName"`
	IPHash    string    `json:"-"`
	UserAgent string    `json:"userAgent"`
	Path      string    `json:"path"`
	Timestamp time.Time `json:"timestamp"`
}

// Stats holds aggregated analytics data for one site.
type Stats struct {
	Site           string             `json:"site"`
	Period         string             `json:"period"`
	Granularity    report.Granularity `json:"granularity"`
	UniqueVisitors int                `json:"uniqueVisitors"`
	TotalViews     int                `json:"totalViews"`
	AvgDuration    int                `json:"avgDurationSec"`
	TopPages       []PageStat         `json:"topPages"`
	LatestPages    []LatestPageVisit  `json:"latestPages"`
	Browsers       []DimensionStat    `json:"browsers"`
	OS             []DimensionStat    `json:"os"`
	Devices        []DimensionStat    `json:"devices"`
	Referrers      []DimensionStat    `json:"referrers"`
	Series         []report.Point     `json:"series"`
}

// BotStats holds aggregated bot analytics data.
type BotStats struct {
	Site        string          `json:"site"`
	Period      string          `json:"period"`
	TotalVisits int             `json:"totalVisits"`
	TopBots     []DimensionStat `json:"topBots"`
	TopPages    []PageStat      `json:"topPages"`
	Series      []report.Point  `json:"series"`
}

// PageStat represents page view statistics.
type PageStat struct {
	Path  string `json:"path"`
	Views int    `json:"views"`
}

// LatestPageVisit represents a single recent page visit.
type LatestPageVisit struct {
	Path      string    `json:"path"`
	Timestamp time.Time `json:"timestamp"`
	Browser   string    `json:"browser"`
}

// DimensionStat represents a dimension breakdown (browser, OS, etc.).
type DimensionStat struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

func hash16(parts ...string) string {
	h := sha256.New()
	h.Write([]byte(strings.Join(parts, "|")))
	return hex.EncodeToString(h.Sum(nil))[:16]
}

// SessionID derives a session from visitor identity and UTC day.
func SessionID(visitorID string, now time.Time) string {
	return hash16(visitorID, now.UTC().Format(report.DayLayout))
}

// ParseUserAgent extracts browser, OS, and device from User-Agent string.
func ParseUserAgent(ua string) (browser, os, device string) {
	ua = strings.ToLower(ua)

	// Order matters: more specific patterns before generic ones.
	switch {
	case strings.Contains(ua, "firefox"):
		browser = "Firefox"
	case strings.Contains(ua, "opera") || strings.Contains(ua, "opr/"):
		browser = "Opera"
	case strings.Contains(ua, "edg"):
		browser = "Edge"
	case strings.Contains(ua, "chrome"):
		browser = "Chrome"
	case strings.Contains(ua, "safari"):
		browser = "Safari"
	default:
		browser = "Other"
	}

	// Android UAs contain "linux".
	switch {
	case strings.Contains(ua, "windows"):
		os = "Windows"
	case strings.Contains(ua, "android"):
		os = "Android"
	case strings.Contains(ua, "iphone") || strings.Contains(ua, "ipad"):
		os = "iOS"
	case strings.Contains(ua, "macintosh") || strings.Contains(ua, "mac os"):
		os = "macOS"
	case strings.Contains(ua, "linux"):
		os = "Linux"
	default:
		os = "Other"
	}

	// iPad UAs contain "mobile".
	switch {
	case strings.Contains(ua, "tablet") || strings.Contains(ua, "ipad"):
		device = "Tablet"
	case strings.Contains(ua, "mobile"):
		device = "Mobile"
	default:
		device = "Desktop"
	}

	return
}

// knownBots is checked in order; the generic patterns come last.
var knownBots = []struct{ pattern, name string }{
	{"googlebot", "Googlebot"},
	{"bingbot", "Bingbot"},
	{"yandex", "Yandex"},
	{"baidu", "Baidu"},
	{"duckduckbot", "DuckDuckBot"},
	{"facebookexternalhit", "Facebook"},
	{"twitterbot", "Twitterbot"},
	{"linkedinbot", "LinkedIn"},
	{"ahrefsbot", "Ahrefs"},
	{"semrushbot", "SEMrush"},
	{"mj12bot", "Majestic"},
	{"dotbot", "Moz"},
	{"slurp", "Yahoo Slurp"},
	{"crawler", "Generic Crawler"},
	{"spider", "Generic Spider"},
}

// IsBot checks if the User-Agent is likely a bot/crawler.
func IsBot(ua string) bool {
	ua = strings.ToLower(ua)
	for _, s := range []string{"bot", "crawl", "spider", "slurp", "scrape", "yandex", "baidu", "facebookexternalhit"} {
		if strings.Contains(ua, s) {
			return true
		}
	}
	return false
}

// BotName extracts the bot name from a User-Agent string.
func BotName(ua string) string {
	ua = strings.ToLower(ua)
	for _, b := range knownBots {
		if strings.Contains(ua, b.pattern) {
			return b.name
		}
	}
	if strings.Contains(ua, "bot") {
		return "Other Bot"
	}
	return "Unknown"
}

var referrerDomainRegex = regexp.MustCompile(`^https?://(?:www\.)?([^/:?#]+)`)

// CleanReferrer reduces a referrer URL to a source name: a search engine,
// the bare domain, or "Direct".
func CleanReferrer(ref string) string {
	if ref == "" {
		return "Direct"
	}
	refLower := strings.ToLower(ref)
	for _, se := range []struct{ host, name string }{
		{"google.", "Google"},
		{"bing.", "Bing"},
		{"duckduckgo.", "DuckDuckGo"},
		{"yahoo.", "Yahoo"},
		{"github.", "GitHub"},
	} {
		if strings.Contains(refLower, se.host) {
			return se.name
		}
	}
	if m := referrerDomainRegex.FindStringSubmatch(refLower); len(m) > 1 {
		return m[1]
	}
	return "Other"
}
