package services

import (
	"errors"
	"testing"
	"time"

	"github.com/jellydator/ttlcache/v3"

	"github.com/yungbote/mindtrace-backend/internal/domain/assessment"
	"github.com/yungbote/mindtrace-backend/internal/platform/apierr"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) Now() time.Time          { return c.t }
func (c *fakeClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

func newClock() *fakeClock { return &fakeClock{t: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)} }

func TestSessionStoreHandsOutCopies(t *testing.T) {
	clock := newClock()
	st := NewSessionStore(nil, nil, clock.Now)
	s := &assessment.Session{ID: "s1", ExpiresAt: clock.t.Add(time.Hour), History: []assessment.Question{{ID: "q1"}}}
	st.Save(s)

	s.History[0].ID = "mutated"
	got, err := st.Get("s1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.History[0].ID != "q1" {
		t.Fatalf("store shares memory with caller: %q", got.History[0].ID)
	}
	got.Done = true
	again, _ := st.Get("s1")
	if again.Done {
		t.Fatalf("mutating a read copy leaked into the store")
	}
}

func TestSessionStoreExpiry(t *testing.T) {
	clock := newClock()
	st := NewSessionStore(nil, nil, clock.Now)
	st.Save(&assessment.Session{ID: "short", ExpiresAt: clock.t.Add(time.Minute)})
	st.Save(&assessment.Session{ID: "long", ExpiresAt: clock.t.Add(time.Hour)})

	clock.Advance(2 * time.Minute)
	_, err := st.Get("short")
	if apierr.CodeOf(err) != apierr.CodeSessionExpired {
		t.Fatalf("expected expired, got %v", err)
	}
	_, err = st.Get("short")
	if apierr.CodeOf(err) != apierr.CodeSessionNotFound {
		t.Fatalf("expected not found after sweep, got %v", err)
	}
	if _, ok := st.Lookup("long"); !ok {
		t.Fatalf("long-lived session swept early")
	}
	if st.Len() != 1 {
		t.Fatalf("Len = %d", st.Len())
	}
	clock.Advance(time.Hour)
	if _, ok := st.Lookup("long"); ok {
		t.Fatalf("expired session still visible to Lookup")
	}
}

func TestSessionStoreUpdate(t *testing.T) {
	clock := newClock()
	st := NewSessionStore(nil, nil, clock.Now)
	st.Save(&assessment.Session{ID: "s1", ExpiresAt: clock.t.Add(time.Hour)})

	if err := st.Update("s1", func(s *assessment.Session) error { s.Done = true; return nil }); err != nil {
		t.Fatalf("Update: %v", err)
	}
	boom := errors.New("boom")
	if err := st.Update("s1", func(s *assessment.Session) error { s.Finalized = true; return boom }); !errors.Is(err, boom) {
		t.Fatalf("Update err = %v", err)
	}
	got, _ := st.Get("s1")
	if !got.Done || got.Finalized {
		t.Fatalf("unexpected state done=%v finalized=%v", got.Done, got.Finalized)
	}
	if err := st.Update("missing", func(*assessment.Session) error { return nil }); !errors.Is(err, ErrSessionGone) {
		t.Fatalf("missing session err = %v", err)
	}
	st.Delete("s1")
	if _, ok := st.Lookup("s1"); ok {
		t.Fatalf("deleted session still present")
	}
}

func TestSessionStoreCacheLifetimeFollowsExpiresAt(t *testing.T) {
	clock := newClock()
	st := NewSessionStore(nil, nil, clock.Now).(*sessionStore)
	st.Save(&assessment.Session{ID: "s1", ExpiresAt: clock.t.Add(30 * time.Minute)})
	st.Save(&assessment.Session{ID: "forever"})

	item := st.cache.Get("s1")
	if item == nil {
		t.Fatalf("session not cached")
	}
	if item.TTL() != 30*time.Minute {
		t.Fatalf("TTL = %v, want 30m", item.TTL())
	}

	clock.Advance(10 * time.Minute)
	if err := st.Update("s1", func(s *assessment.Session) error { s.Done = true; return nil }); err != nil {
		t.Fatalf("Update: %v", err)
	}
	if got := st.cache.Get("s1").TTL(); got != 20*time.Minute {
		t.Fatalf("TTL after update = %v, want 20m", got)
	}
	if got := st.cache.Get("forever").TTL(); got != ttlcache.NoTTL {
		t.Fatalf("session without expiry got TTL %v", got)
	}
}
