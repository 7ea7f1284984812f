package panelengine

import (
	"testing"
	"time"
)

type fakeClock struct{ t time.Time }

func (f *fakeClock) now() time.Time          { return f.t }
func (f *fakeClock) advance(d time.Duration) { f.t = f.t.Add(d) }

func newTestLimiter(max int, window time.Duration) (*LoginLimiter, *fakeClock) {
	clock := &fakeClock{t: time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)}
	l := NewLoginLimiter(max, window)
	l.now = clock.now
	return l, clock
}

func TestLoginLimiterBlocksAfterMax(t *testing.T) {
	limiter, _ := newTestLimiter(2, time.Minute)
	ip := "203.0.113.10"

	if !limiter.Allow(ip) {
		t.Fatalf("expected first attempt to be allowed")
	}
	if !limiter.Allow(ip) {
		t.Fatalf("expected second attempt to be allowed")
	}
	if limiter.Allow(ip) {
		t.Fatalf("expected third attempt to be blocked")
	}
}

func TestLoginLimiterResetsAfterWindow(t *testing.T) {
	limiter, clock := newTestLimiter(1, time.Minute)
	ip := "203.0.113.20"

	if !limiter.Allow(ip) {
		t.Fatalf("expected first attempt to be allowed")
	}
	if limiter.Allow(ip) {
		t.Fatalf("expected second attempt to be blocked")
	}

	clock.advance(61 * time.Second)
	if !limiter.Allow(ip) {
		t.Fatalf("expected attempt after window to be allowed")
	}
}

func TestLoginLimiterIsPerIP(t *testing.T) {
	limiter, _ := newTestLimiter(1, time.Minute)

	if !limiter.Allow("203.0.113.30") {
		t.Fatalf("expected first ip to be allowed")
	}
	if !limiter.Allow("203.0.113.31") {
		t.Fatalf("expected second ip to be allowed independently")
	}
	if limiter.Allow("203.0.113.30") {
		t.Fatalf("expected first ip to be blocked after max")
	}
}

func TestLoginLimiterCheckDoesNotRecord(t *testing.T) {
	limiter, _ := newTestLimiter(1, time.Minute)
	ip := "203.0.113.40"
	for range 3 {
		if !limiter.Check(ip) {
			t.Fatalf("Check alone must not consume attempts")
		}
	}
	limiter.Record(ip)
	if limiter.Check(ip) {
		t.Fatalf("expected block after a recorded failure")
	}
	limiter.Reset(ip)
	if !limiter.Check(ip) {
		t.Fatalf("expected Reset to clear the ip")
	}
}

func TestLoginLimiterSweepsIdleIPs(t *testing.T) {
	limiter, clock := newTestLimiter(3, time.Minute)
	limiter.Record("203.0.113.50")
	limiter.Record("203.0.113.51")

	clock.advance(2 * time.Minute)
	limiter.Check("203.0.113.52")

	limiter.mu.Lock()
	n := len(limiter.attempts)
	limiter.mu.Unlock()
	if n != 0 {
		t.Fatalf("expected idle ips to be swept, %d left", n)
	}
}
