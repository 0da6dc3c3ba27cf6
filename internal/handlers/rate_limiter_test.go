package handlers

import (
	"testing"
	"time"
)

func TestSimpleRateLimiterDisabled(t *testing.T) {
	if limiter := newSimpleRateLimiter(0, time.Minute, nil); limiter != nil {
		t.Fatalf("expected nil limiter for zero limit")
	}
	if limiter := newSimpleRateLimiter(5, 0, nil); limiter != nil {
		t.Fatalf("expected nil limiter for zero window")
	}
}

func TestSimpleRateLimiterKeysAreCaseInsensitive(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	limiter := newSimpleRateLimiter(1, time.Second, func() time.Time { return now })

	if !limiter.Allow("Client|Slug") {
		t.Fatalf("first request must pass")
	}
	if limiter.Allow(" client|slug ") {
		t.Fatalf("normalised key must share the window")
	}
	if !limiter.Allow("") {
		t.Fatalf("anonymous key gets its own window")
	}
}

func TestSimpleRateLimiterPrunesExpiredWindows(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	limiter := newSimpleRateLimiter(1, time.Second, func() time.Time { return now }).(*simpleRateLimiter)

	limiter.Allow("a")
	limiter.Allow("b")
	now = now.Add(2 * time.Second)
	limiter.Allow("c")

	limiter.mu.Lock()
	defer limiter.mu.Unlock()
	if len(limiter.windows) != 1 {
		t.Fatalf("expected expired windows to be pruned, have %d", len(limiter.windows))
	}
}
