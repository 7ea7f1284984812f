package analytics

import (
	"testing"
	"time"
)

func TestRateLimiter(t *testing.T) {
	now := time.Date(2026, 4, 10, 12, 0, 0, 0, time.UTC)
	rl := newRateLimiter(3, time.Minute)
	rl.now = func() time.Time { return now }

	for i := 0; i < 3; i++ {
		if !rl.allow("1.1.1.1") {
			t.Fatalf("request %d rejected", i+1)
		}
	}
	if rl.allow("1.1.1.1") {
		t.Fatal("fourth request within window allowed")
	}
	if !rl.allow("2.2.2.2") {
		t.Fatal("other key rejected")
	}

	now = now.Add(61 * time.Second)
	if !rl.allow("1.1.1.1") {
		t.Fatal("request after window rejected")
	}
	// The sweep on the last call dropped the idle key.
	if got := rl.size(); got != 1 {
		t.Errorf("size = %d, want 1", got)
	}
}
