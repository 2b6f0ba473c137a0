package services

import (
	"errors"
	"sync"
	"time"

	"github.com/jellydator/ttlcache/v3"

	"github.com/yungbote/mindtrace-backend/internal/domain/assessment"
	"github.com/yungbote/mindtrace-backend/internal/observability"
	"github.com/yungbote/mindtrace-backend/internal/platform/apierr"
	"github.com/yungbote/mindtrace-backend/internal/platform/logger"
)

// SessionStore is the process-lifetime session cache. Every call sweeps expired
// sessions first. Reads hand out deep copies; writes store a deep copy, so no
// caller ever shares a session with the store.
type SessionStore interface {
	Save(s *assessment.Session)
	// Get returns SESSION_NOT_FOUND or SESSION_EXPIRED as *apierr.Error.
	Get(id string) (*assessment.Session, error)
	// Lookup is the non-failing read used by background work.
	Lookup(id string) (*assessment.Session, bool)
	// Update runs fn on the stored session under the store lock and keeps the
	// result unless fn returns an error.
	Update(id string, fn func(s *assessment.Session) error) error
	Delete(id string)
	Len() int
}

// ErrSessionGone is returned by Update when the session expired or never existed.
var ErrSessionGone = errors.New("session gone")

type sessionStore struct {
	log     *logger.Logger
	metrics *observability.Metrics
	now     func() time.Time

	// mu makes Update a single read-modify-write against the cache.
	mu    sync.Mutex
	cache *ttlcache.Cache[string, *assessment.Session]
}

func NewSessionStore(log *logger.Logger, metrics *observability.Metrics, now func() time.Time) SessionStore {
	if log == nil {
		log = logger.NewNop()
	}
	if now == nil {
		now = time.Now
	}
	return &sessionStore{
		log:     log.With("service", "SessionStore"),
		metrics: metrics,
		now:     now,
		cache: ttlcache.New[string, *assessment.Session](
			ttlcache.WithDisableTouchOnHit[string, *assessment.Session](),
		),
	}
}

// ttlFor is the cache lifetime of s: the time left until ExpiresAt on the
// store clock. Sessions without an expiry never leave on their own.
func (st *sessionStore) ttlFor(s *assessment.Session, now time.Time) time.Duration {
	if s.ExpiresAt.IsZero() {
		return ttlcache.NoTTL
	}
	if left := s.ExpiresAt.Sub(now); left > 0 {
		return left
	}
	return time.Nanosecond
}

// sweepLocked drops sessions the store clock considers expired. The cache
// evicts on wall-clock time as well, which covers sessions nobody reads.
func (st *sessionStore) sweepLocked(now time.Time) {
	st.cache.DeleteExpired()
	var expired []string
	for id, item := range st.cache.Items() {
		if item.Value().Expired(now) {
			expired = append(expired, id)
		}
	}
	for _, id := range expired {
		st.cache.Delete(id)
	}
	if len(expired) > 0 {
		st.log.Debug("expired sessions swept", "count", len(expired))
	}
	st.metrics.SetActiveSessions(st.cache.Len())
}

func (st *sessionStore) lookupLocked(id string) (*assessment.Session, bool) {
	item := st.cache.Get(id)
	if item == nil {
		return nil, false
	}
	return item.Value(), true
}

func (st *sessionStore) Save(s *assessment.Session) {
	if s == nil {
		return
	}
	st.mu.Lock()
	defer st.mu.Unlock()
	now := st.now()
	st.sweepLocked(now)
	st.cache.Set(s.ID, s.Clone(), st.ttlFor(s, now))
	st.metrics.SetActiveSessions(st.cache.Len())
}

func (st *sessionStore) Get(id string) (*assessment.Session, error) {
	st.mu.Lock()
	defer st.mu.Unlock()
	now := st.now()
	if s, ok := st.lookupLocked(id); ok && s.Expired(now) {
		st.sweepLocked(now)
		return nil, apierr.Reason(apierr.CodeSessionExpired)
	}
	st.sweepLocked(now)
	s, ok := st.lookupLocked(id)
	if !ok {
		return nil, apierr.Reason(apierr.CodeSessionNotFound)
	}
	return s.Clone(), nil
}

func (st *sessionStore) Lookup(id string) (*assessment.Session, bool) {
	st.mu.Lock()
	defer st.mu.Unlock()
	st.sweepLocked(st.now())
	s, ok := st.lookupLocked(id)
	if !ok {
		return nil, false
	}
	return s.Clone(), true
}

func (st *sessionStore) Update(id string, fn func(s *assessment.Session) error) error {
	st.mu.Lock()
	defer st.mu.Unlock()
	now := st.now()
	st.sweepLocked(now)
	s, ok := st.lookupLocked(id)
	if !ok {
		return ErrSessionGone
	}
	work := s.Clone()
	if err := fn(work); err != nil {
		return err
	}
	st.cache.Set(id, work, st.ttlFor(work, now))
	return nil
}

func (st *sessionStore) Delete(id string) {
	st.mu.Lock()
	defer st.mu.Unlock()
	st.cache.Delete(id)
	st.metrics.SetActiveSessions(st.cache.Len())
}

func (st *sessionStore) Len() int {
	st.mu.Lock()
	defer st.mu.Unlock()
	st.sweepLocked(st.now())
	return st.cache.Len()
}
