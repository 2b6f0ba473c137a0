package services

import (
	"testing"
	"time"

	"github.com/yungbote/mindtrace-backend/internal/observability"
	"github.com/yungbote/mindtrace-backend/internal/platform/apierr"
)

func TestAuthWindowBudget(t *testing.T) {
	clock := newClock()
	rl := NewRateLimiter(DefaultRateLimitPolicy(), nil, observability.NewMetrics(), clock.Now)
	for i := 0; i < 12; i++ {
		if err := rl.AllowAuthAttempt("1.2.3.4"); err != nil {
			t.Fatalf("attempt %d rejected: %v", i, err)
		}
		clock.Advance(time.Second)
	}
	err := rl.AllowAuthAttempt("1.2.3.4")
	if apierr.StatusOf(err) != 429 {
		t.Fatalf("13th attempt err = %v", err)
	}
	if err := rl.AllowAuthAttempt("5.6.7.8"); err != nil {
		t.Fatalf("other ip throttled: %v", err)
	}
	clock.Advance(50 * time.Second)
	if err := rl.AllowAuthAttempt("1.2.3.4"); err != nil {
		t.Fatalf("window did not slide: %v", err)
	}
}

func TestAuthFailureStreakCooldown(t *testing.T) {
	clock := newClock()
	rl := NewRateLimiter(DefaultRateLimitPolicy(), nil, nil, clock.Now)
	for i := 0; i < 4; i++ {
		if err := rl.AllowAuthAttempt("ip"); err != nil {
			t.Fatalf("attempt %d: %v", i, err)
		}
		rl.RecordAuthFailure("ip")
	}
	err := rl.AllowAuthAttempt("ip")
	ae, ok := err.(*apierr.Error)
	if !ok || ae.RetryAfter != 45*time.Second {
		t.Fatalf("expected 45s cooldown, got %v", err)
	}
	clock.Advance(45 * time.Second)
	if err := rl.AllowAuthAttempt("ip"); err != nil {
		t.Fatalf("cooldown did not lift: %v", err)
	}
}

func TestAuthFailureStreakResets(t *testing.T) {
	clock := newClock()
	rl := NewRateLimiter(DefaultRateLimitPolicy(), nil, nil, clock.Now)
	for i := 0; i < 3; i++ {
		rl.RecordAuthFailure("ip")
	}
	clock.Advance(6 * time.Minute)
	rl.RecordAuthFailure("ip")
	if err := rl.AllowAuthAttempt("ip"); err != nil {
		t.Fatalf("idle streak should reset: %v", err)
	}

	for i := 0; i < 3; i++ {
		rl.RecordAuthFailure("ip2")
	}
	rl.ClearAuthFailures("ip2")
	rl.RecordAuthFailure("ip2")
	if err := rl.AllowAuthAttempt("ip2"); err != nil {
		t.Fatalf("cleared streak should not block: %v", err)
	}
}

func TestSessionBurst(t *testing.T) {
	clock := newClock()
	rl := NewRateLimiter(DefaultRateLimitPolicy(), nil, nil, clock.Now)

	if err := rl.AllowSessionAction("answer", "s1"); err != nil {
		t.Fatalf("first hit: %v", err)
	}
	clock.Advance(100 * time.Millisecond)
	if err := rl.AllowSessionAction("answer", "s1"); apierr.StatusOf(err) != 429 {
		t.Fatalf("spacing not enforced: %v", err)
	}
	if err := rl.AllowSessionAction("finalize", "s1"); err != nil {
		t.Fatalf("actions must be keyed separately: %v", err)
	}

	clock = newClock()
	rl = NewRateLimiter(DefaultRateLimitPolicy(), nil, nil, clock.Now)
	for i := 0; i < 5; i++ {
		if err := rl.AllowSessionAction("answer", "s1"); err != nil {
			t.Fatalf("hit %d: %v", i, err)
		}
		clock.Advance(300 * time.Millisecond)
	}
	if err := rl.AllowSessionAction("answer", "s1"); apierr.StatusOf(err) != 429 {
		t.Fatalf("burst not enforced: %v", err)
	}
	clock.Advance(2 * time.Second)
	if err := rl.AllowSessionAction("answer", "s1"); err != nil {
		t.Fatalf("window did not slide: %v", err)
	}
}
