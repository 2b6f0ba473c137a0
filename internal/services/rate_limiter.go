package services

import (
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/yungbote/mindtrace-backend/internal/observability"
	"github.com/yungbote/mindtrace-backend/internal/platform/apierr"
	"github.com/yungbote/mindtrace-backend/internal/platform/logger"
)

// RateLimitPolicy bounds passcode attempts per client IP and request bursts
// per (action, session).
type RateLimitPolicy struct {
	AuthWindow         time.Duration
	AuthMaxAttempts    int
	AuthFailureStreak  int
	AuthCooldown       time.Duration
	AuthFailureReset   time.Duration
	SessionWindow      time.Duration
	SessionMaxHits     int
	SessionMinInterval time.Duration
}

func DefaultRateLimitPolicy() RateLimitPolicy {
	return RateLimitPolicy{
		AuthWindow:         60 * time.Second,
		AuthMaxAttempts:    12,
		AuthFailureStreak:  4,
		AuthCooldown:       45 * time.Second,
		AuthFailureReset:   5 * time.Minute,
		SessionWindow:      2 * time.Second,
		SessionMaxHits:     5,
		SessionMinInterval: 260 * time.Millisecond,
	}
}

type authIPState struct {
	attempts      []time.Time
	failureStreak int
	lastFailureAt time.Time
	blockedUntil  time.Time
}

type burstState struct {
	hits   []time.Time
	lastAt time.Time
}

type RateLimiter struct {
	policy  RateLimitPolicy
	log     *logger.Logger
	metrics *observability.Metrics
	now     func() time.Time

	mu     sync.Mutex
	authIP map[string]*authIPState
	bursts map[string]*burstState
}

func NewRateLimiter(policy RateLimitPolicy, log *logger.Logger, metrics *observability.Metrics, now func() time.Time) *RateLimiter {
	if log == nil {
		log = logger.NewNop()
	}
	if now == nil {
		now = time.Now
	}
	return &RateLimiter{
		policy:  policy,
		log:     log.With("service", "RateLimiter"),
		metrics: metrics,
		now:     now,
		authIP:  make(map[string]*authIPState),
		bursts:  make(map[string]*burstState),
	}
}

func within(ts []time.Time, now time.Time, window time.Duration) []time.Time {
	out := ts[:0]
	for _, t := range ts {
		if now.Sub(t) <= window {
			out = append(out, t)
		}
	}
	return out
}

func (rl *RateLimiter) pruneAuth(st *authIPState, now time.Time) {
	st.attempts = within(st.attempts, now, rl.policy.AuthWindow)
	if !st.lastFailureAt.IsZero() && now.Sub(st.lastFailureAt) > rl.policy.AuthFailureReset {
		st.failureStreak = 0
	}
	if !st.blockedUntil.IsZero() && !now.Before(st.blockedUntil) {
		st.blockedUntil = time.Time{}
	}
}

func (rl *RateLimiter) sweepAuthLocked(now time.Time) {
	for ip, st := range rl.authIP {
		rl.pruneAuth(st, now)
		last := st.lastFailureAt
		if n := len(st.attempts); n > 0 && st.attempts[n-1].After(last) {
			last = st.attempts[n-1]
		}
		if now.Sub(last) > rl.policy.AuthFailureReset && len(st.attempts) == 0 && st.blockedUntil.IsZero() {
			delete(rl.authIP, ip)
		}
	}
}

func (rl *RateLimiter) authState(ip string) *authIPState {
	st, ok := rl.authIP[ip]
	if !ok {
		st = &authIPState{}
		rl.authIP[ip] = st
	}
	return st
}

// AllowAuthAttempt counts one passcode attempt from ip, or rejects it while
// the ip is cooling down or over the window budget.
func (rl *RateLimiter) AllowAuthAttempt(ip string) error {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	now := rl.now()
	rl.sweepAuthLocked(now)
	st := rl.authState(ip)
	rl.pruneAuth(st, now)

	if st.blockedUntil.After(now) {
		wait := st.blockedUntil.Sub(now)
		rl.block("auth", "cooldown", "ip", ip, "retry_after_ms", wait.Milliseconds())
		secs := int(math.Ceil(wait.Seconds()))
		return apierr.TooManyRequests(fmt.Sprintf("요청이 잠시 제한되었습니다. %d초 후 다시 시도해 주세요.", secs), wait)
	}
	if len(st.attempts) >= rl.policy.AuthMaxAttempts {
		wait := rl.policy.AuthWindow - now.Sub(st.attempts[0])
		if wait < time.Millisecond {
			wait = time.Millisecond
		}
		rl.block("auth", "too_many_attempts", "ip", ip, "retry_after_ms", wait.Milliseconds())
		return apierr.TooManyRequests("요청이 너무 빠릅니다. 잠시 후 다시 시도해 주세요.", wait)
	}
	st.attempts = append(st.attempts, now)
	return nil
}

// RecordAuthFailure extends the failure streak of ip; reaching the streak
// limit starts a cooldown and resets the streak.
func (rl *RateLimiter) RecordAuthFailure(ip string) {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	now := rl.now()
	st := rl.authState(ip)
	rl.pruneAuth(st, now)

	st.failureStreak++
	st.lastFailureAt = now
	if st.failureStreak >= rl.policy.AuthFailureStreak {
		st.failureStreak = 0
		st.blockedUntil = now.Add(rl.policy.AuthCooldown)
		rl.log.Info("rate_limit.cooldown", "type", "auth", "ip", ip, "cooldown_ms", rl.policy.AuthCooldown.Milliseconds())
	}
	rl.log.Full("rate_limit.auth_failure", "ip", ip, "failure_streak", st.failureStreak, "blocked_until", st.blockedUntil)
}

func (rl *RateLimiter) ClearAuthFailures(ip string) {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	if st, ok := rl.authIP[ip]; ok {
		st.failureStreak = 0
		st.lastFailureAt = time.Time{}
		st.blockedUntil = time.Time{}
	}
}

// AllowSessionAction dampens rapid repeats of one action on one session.
func (rl *RateLimiter) AllowSessionAction(action, sessionID string) error {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	now := rl.now()
	for key, st := range rl.bursts {
		st.hits = within(st.hits, now, rl.policy.SessionWindow)
		if len(st.hits) == 0 && now.Sub(st.lastAt) > rl.policy.SessionWindow {
			delete(rl.bursts, key)
		}
	}

	key := action + ":" + sessionID
	st, ok := rl.bursts[key]
	if !ok {
		st = &burstState{}
		rl.bursts[key] = st
	}
	if !st.lastAt.IsZero() && now.Sub(st.lastAt) < rl.policy.SessionMinInterval {
		wait := rl.policy.SessionMinInterval - now.Sub(st.lastAt)
		rl.block("session", "too_fast", "action", action, "session_id", sessionID)
		return apierr.TooManyRequests("입력이 너무 빠릅니다. 잠시만 기다려 주세요.", wait)
	}
	if len(st.hits) >= rl.policy.SessionMaxHits {
		wait := rl.policy.SessionWindow - now.Sub(st.hits[0])
		rl.block("session", "burst", "action", action, "session_id", sessionID)
		return apierr.TooManyRequests("요청이 너무 빠릅니다. 잠시 후 다시 시도해 주세요.", wait)
	}
	st.hits = append(st.hits, now)
	st.lastAt = now
	return nil
}

func (rl *RateLimiter) block(scope, reason string, kv ...interface{}) {
	rl.metrics.IncRateLimited(scope)
	rl.log.Info("rate_limit.block", append([]interface{}{"type", scope, "reason", reason}, kv...)...)
}
