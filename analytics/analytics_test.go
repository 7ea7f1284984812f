package analytics

import (
	"testing"
	"time"
)

func TestParseUserAgent(t *testing.T) {
	tests := []struct {
		ua                    string
		browser, os, device string
	}{
		{"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0 Safari/537.36", "Chrome", "Windows", "Desktop"},
		{"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0 Safari/537.36 Edg/120.0", "Edge", "Windows", "Desktop"},
		{"Mozilla/5.0 (Macintosh; Intel Mac OS X 14_1) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.1 Safari/605.1.15", "Safari", "macOS", "Desktop"},
		{"Mozilla/5.0 (iPhone; CPU iPhone OS 17_1 like Mac OS X) AppleWebKit/605.1.15 Version/17.1 Mobile/15E148 Safari/604.1", "Safari", "iOS", "Mobile"},
		{"Mozilla/5.0 (iPad; CPU OS 17_1 like Mac OS X) AppleWebKit/605.1.15 Version/17.1 Mobile/15E148 Safari/604.1", "Safari", "iOS", "Tablet"},
		{"Mozilla/5.0 (Linux; Android 14; Pixel 8) AppleWebKit/537.36 Chrome/120.0 Mobile Safari/537.36", "Chrome", "Android", "Mobile"},
		{"Mozilla/5.0 (X11; Linux x86_64; rv:121.0) Gecko/20100101 Firefox/121.0", "Firefox", "Linux", "Desktop"},
		{"curl/8.4.0", "Other", "Other", "Desktop"},
	}
	for _, tt := range tests {
		b, o, d := ParseUserAgent(tt.ua)
		if b != tt.browser || o != tt.os || d != tt.device {
			t.Errorf("ParseUserAgent(%q) = %s/%s/%s, want %s/%s/%s", tt.ua, b, o, d, tt.browser, tt.os, tt.device)
		}
	}
}

func TestBotDetection(t *testing.T) {
	tests := []struct {
		ua    string
		isBot bool
		name  string
	}{
		{"Mozilla/5.0 (compatible; Googlebot/2.1; +http://www.google.com/bot.html)", true, "Googlebot"},
		{"Mozilla/5.0 (compatible; bingbot/2.0)", true, "Bingbot"},
		{"Mozilla/5.0 (compatible; AhrefsBot/7.0)", true, "Ahrefs"},
		{"facebookexternalhit/1.1", true, "Facebook"},
		{"SomeCrawler/1.0", true, "Generic Crawler"},
		{"FancyBot/3", true, "Other Bot"},
		{"Mozilla/5.0 (X11; Linux x86_64) Firefox/121.0", false, "Unknown"},
	}
	for _, tt := range tests {
		if got := IsBot(tt.ua); got != tt.isBot {
			t.Errorf("IsBot(%q) = %v, want %v", tt.ua, got, tt.isBot)
		}
		if got := BotName(tt.ua); got != tt.name {
			t.Errorf("BotName(%q) = %q, want %q", tt.ua, got, tt.name)
		}
	}
}

func TestCleanReferrer(t *testing.T) {
	tests := map[string]string{
		"":                                   "Direct",
		"https://www.google.com/search?q=go": "Google",
		"https://duckduckgo.com/":            "DuckDuckGo",
		"https://www.example.org/some/page":  "example.org",
		"http://news.ycombinator.com:8080/":  "news.ycombinator.com",
		"android-app://com.slack":            "Other",
	}
	for in, want := range tests {
		if got := CleanReferrer(in); got != want {
			t.Errorf("CleanReferrer(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestSessionID(t *testing.T) {
	morning := time.Date(2026, 4, 10, 8, 0, 0, 0, time.UTC)
	evening := time.Date(2026, 4, 10, 23, 59, 0, 0, time.UTC)
	next := time.Date(2026, 4, 11, 0, 1, 0, 0, time.UTC)

	a := SessionID("visitor", morning)
	if len(a) != 16 {
		t.Fatalf("session id length = %d, want 16", len(a))
	}
	if b := SessionID("visitor", evening); a != b {
		t.Errorf("same day produced different sessions: %s != %s", a, b)
	}
	if c := SessionID("visitor", next); a == c {
		t.Error("next day produced the same session")
	}
	if d := SessionID("other", morning); a == d {
		t.Error("different visitors produced the same session")
	}
}

func TestFormatDuration(t *testing.T) {
	for sec, want := range map[int]string{0: "0s", 42: "42s", 65: "1m 05s", 600: "10m 00s"} {
		if got := FormatDuration(sec); got != want {
			t.Errorf("FormatDuration(%d) = %q, want %q", sec, got, want)
		}
	}
}
