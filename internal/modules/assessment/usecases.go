// Package assessment orchestrates an interview session end to end: auth,
// start, answer, undo, finalize and the read-only result and resume views.
package assessment

import (
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/yungbote/mindtrace-backend/internal/clients/redis"
	"github.com/yungbote/mindtrace-backend/internal/modules/assessment/flow"
	"github.com/yungbote/mindtrace-backend/internal/modules/assessment/prefetch"
	"github.com/yungbote/mindtrace-backend/internal/modules/assessment/report"
	"github.com/yungbote/mindtrace-backend/internal/observability"
	"github.com/yungbote/mindtrace-backend/internal/platform/logger"
	"github.com/yungbote/mindtrace-backend/internal/services"
)

type UsecasesDeps struct {
	Log     *logger.Logger
	Metrics *observability.Metrics

	Store   services.SessionStore
	Auth    services.AuthService
	Limiter *services.RateLimiter

	Pipeline  *flow.Pipeline
	Finalizer *report.Finalizer
	// Optional: nil disables speculative branches.
	Prefetch *prefetch.Scheduler
	// Optional: keeps finalized reports readable after the session expires.
	Mirror    redis.ReportMirror
	ReportTTL time.Duration

	SessionTTL time.Duration
	Now        func() time.Time
}

type Usecases struct {
	deps     UsecasesDeps
	finalize *singleflight.Group
	locks    *sessionLocks
}

func New(deps UsecasesDeps) Usecases {
	if deps.Log == nil {
		deps.Log = logger.NewNop()
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.ReportTTL <= 0 {
		deps.ReportTTL = 24 * time.Hour
	}
	deps.Log = deps.Log.With("module", "assessment")
	if deps.Limiter == nil {
		deps.Limiter = services.NewRateLimiter(services.DefaultRateLimitPolicy(), deps.Log, deps.Metrics, deps.Now)
	}
	return Usecases{deps: deps, finalize: &singleflight.Group{}, locks: newSessionLocks()}
}

func (u Usecases) WithLog(log *logger.Logger) Usecases {
	u.deps.Log = log
	return u
}

func (u Usecases) MaxQuestions() int { return u.deps.Pipeline.Config().MaxQuestions }

// sessionLocks serializes mutations of one session across requests. Each
// session id gets its own mutex, held only while some request uses it.
type sessionLocks struct {
	mu    sync.Mutex
	locks map[string]*sessionLock
}

type sessionLock struct {
	mu   sync.Mutex
	refs int
}

func newSessionLocks() *sessionLocks {
	return &sessionLocks{locks: map[string]*sessionLock{}}
}

func (l *sessionLocks) lock(sessionID string) func() {
	l.mu.Lock()
	sl, ok := l.locks[sessionID]
	if !ok {
		sl = &sessionLock{}
		l.locks[sessionID] = sl
	}
	sl.refs++
	l.mu.Unlock()

	sl.mu.Lock()
	return func() {
		sl.mu.Unlock()
		l.mu.Lock()
		sl.refs--
		if sl.refs == 0 {
			delete(l.locks, sessionID)
		}
		l.mu.Unlock()
	}
}

func (l *sessionLocks) len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.locks)
}
