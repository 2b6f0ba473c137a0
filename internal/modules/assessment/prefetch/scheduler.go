// Package prefetch speculatively computes both answer branches for the pending
// question of a session while the respondent is still reading it.
package prefetch

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
	"golang.org/x/sync/errgroup"

	"github.com/yungbote/mindtrace-backend/internal/domain/assessment"
	"github.com/yungbote/mindtrace-backend/internal/observability"
	"github.com/yungbote/mindtrace-backend/internal/platform/logger"
)

// KeepPerSession bounds cached entries to the most recent pending questions.
const KeepPerSession = 2

// Miss reasons reported by Take.
const (
	MissNoEntry      = "no_entry"
	MissStale        = "stale"
	MissInFlight     = "in_flight"
	MissHesitant     = "hesitant"
	MissBranchFailed = "branch_failed"
	MissNoBranch     = "branch_missing"
)

// Store is the slice of the session store the scheduler needs. Lookup must
// not fail loudly; Update must report a vanished session as an error.
type Store interface {
	Lookup(id string) (*assessment.Session, bool)
	Update(id string, fn func(s *assessment.Session) error) error
}

// Brancher computes one speculative branch without touching s.
type Brancher interface {
	Branch(ctx context.Context, s *assessment.Session, questionID string, answer assessment.Answer) (*assessment.PrefetchBranch, error)
}

type key struct {
	sessionID  string
	questionID string
}

type Scheduler struct {
	store    Store
	brancher Brancher
	log      *logger.Logger
	metrics  *observability.Metrics
	tracer   trace.Tracer
	timeout  time.Duration
	now      func() time.Time

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu       sync.Mutex
	inflight map[key]struct{}
}

type Option func(*Scheduler)

func WithLogger(log *logger.Logger) Option {
	return func(s *Scheduler) {
		if log != nil {
			s.log = log
		}
	}
}

func WithMetrics(m *observability.Metrics) Option { return func(s *Scheduler) { s.metrics = m } }

func WithTracer(t trace.Tracer) Option {
	return func(s *Scheduler) {
		if t != nil {
			s.tracer = t
		}
	}
}

// WithTimeout bounds one prefetch task, both branches included.
func WithTimeout(d time.Duration) Option { return func(s *Scheduler) { s.timeout = d } }

func WithClock(now func() time.Time) Option {
	return func(s *Scheduler) {
		if now != nil {
			s.now = now
		}
	}
}

func New(store Store, brancher Brancher, opts ...Option) *Scheduler {
	ctx, cancel := context.WithCancel(context.Background())
	s := &Scheduler{
		store:    store,
		brancher: brancher,
		log:      logger.NewNop(),
		tracer:   noop.NewTracerProvider().Tracer("prefetch"),
		timeout:  2 * time.Minute,
		now:      time.Now,
		ctx:      ctx,
		cancel:   cancel,
		inflight: make(map[key]struct{}),
	}
	for _, o := range opts {
		o(s)
	}
	s.log = s.log.With("component", "PrefetchScheduler")
	return s
}

// Schedule starts a detached prefetch for (sessionID, questionID) and returns
// immediately. It reports false when the same pair is already in flight.
func (s *Scheduler) Schedule(sessionID, questionID string) bool {
	k := key{sessionID: sessionID, questionID: questionID}
	s.mu.Lock()
	if _, busy := s.inflight[k]; busy {
		s.mu.Unlock()
		s.metrics.IncPrefetch("skipped", MissInFlight)
		s.log.Full("prefetch.skip", "session_id", sessionID, "question_id", questionID, "reason", MissInFlight)
		return false
	}
	s.inflight[k] = struct{}{}
	s.wg.Add(1)
	s.mu.Unlock()

	s.metrics.IncPrefetch("scheduled", "")
	go s.run(k)
	return true
}

func (s *Scheduler) release(k key) {
	s.mu.Lock()
	delete(s.inflight, k)
	s.mu.Unlock()
}

func (s *Scheduler) run(k key) {
	defer s.wg.Done()
	defer s.release(k)
	defer func() {
		if r := recover(); r != nil {
			s.metrics.IncPrefetch("failed", "panic")
			s.log.Error("prefetch.panic", "session_id", k.sessionID, "question_id", k.questionID, "panic", fmt.Sprint(r))
		}
	}()

	ctx, cancel := context.WithTimeout(s.ctx, s.timeout)
	defer cancel()
	ctx, span := s.tracer.Start(ctx, "prefetch.run", trace.WithAttributes(
		attribute.String("prefetch.question_id", k.questionID),
	))
	defer span.End()

	sess, ok := s.store.Lookup(k.sessionID)
	if reason := abortReason(sess, ok, k.questionID); reason != "" {
		s.metrics.IncPrefetch("aborted", reason)
		s.log.Full("prefetch.abort", "session_id", k.sessionID, "question_id", k.questionID, "reason", reason)
		return
	}
	base := sess.AnswerCount()
	started := s.now()

	err := s.store.Update(k.sessionID, func(live *assessment.Session) error {
		if abortReason(live, true, k.questionID) != "" || live.AnswerCount() != base {
			return errStale
		}
		if live.Prefetch == nil {
			live.Prefetch = make(map[string]*assessment.PrefetchEntry)
		}
		live.Prefetch[k.questionID] = &assessment.PrefetchEntry{
			QuestionID:      k.questionID,
			BaseAnswerCount: base,
			CreatedAt:       started,
			InFlight:        true,
			Branches:        map[assessment.Answer]*assessment.PrefetchBranch{},
			Errors:          map[assessment.Answer]string{},
		}
		prune(live.Prefetch, KeepPerSession)
		return nil
	})
	if err != nil {
		s.metrics.IncPrefetch("aborted", MissStale)
		return
	}

	branches := make(map[assessment.Answer]*assessment.PrefetchBranch, len(assessment.Answers))
	failures := make(map[assessment.Answer]string)
	var mu sync.Mutex
	var g errgroup.Group
	for _, ans := range assessment.Answers {
		g.Go(func() error {
			b, err := s.branch(ctx, sess, k.questionID, ans)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				failures[ans] = err.Error()
				s.log.Warn("prefetch.branch_failed", "session_id", k.sessionID, "question_id", k.questionID, "answer", string(ans), "error", err)
				return nil
			}
			branches[ans] = b
			return nil
		})
	}
	_ = g.Wait()

	completed := s.now()
	err = s.store.Update(k.sessionID, func(live *assessment.Session) error {
		entry := live.Prefetch[k.questionID]
		if entry == nil || entry.BaseAnswerCount != base || live.AnswerCount() != base {
			return errStale
		}
		entry.InFlight = false
		entry.CompletedAt = &completed
		entry.Branches = branches
		entry.Errors = failures
		return nil
	})
	if err != nil {
		s.metrics.IncPrefetch("discarded", MissStale)
		s.log.Full("prefetch.discard", "session_id", k.sessionID, "question_id", k.questionID, "reason", MissStale)
		return
	}
	s.metrics.IncPrefetch("completed", "")
	s.log.Full("prefetch.completed",
		"session_id", k.sessionID,
		"question_id", k.questionID,
		"base_answer_count", base,
		"branches", len(branches),
		"failures", len(failures),
		"latency_ms", completed.Sub(started).Milliseconds(),
	)
}

var errStale = errors.New("prefetch target changed")

func (s *Scheduler) branch(ctx context.Context, sess *assessment.Session, questionID string, ans assessment.Answer) (b *assessment.PrefetchBranch, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("branch panic: %v", r)
		}
	}()
	return s.brancher.Branch(ctx, sess, questionID, ans)
}

func abortReason(s *assessment.Session, ok bool, questionID string) string {
	switch {
	case !ok || s == nil:
		return "session_gone"
	case s.Done:
		return "done"
	case s.Finalized:
		return "finalized"
	}
	pending, has := s.PendingQuestion()
	if !has || pending.ID != questionID {
		return "question_changed"
	}
	return ""
}

// prune keeps the keep most recently created entries.
func prune(entries map[string]*assessment.PrefetchEntry, keep int) {
	if len(entries) <= keep {
		return
	}
	ids := make([]string, 0, len(entries))
	for id := range entries {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool {
		return entries[ids[i]].CreatedAt.After(entries[ids[j]].CreatedAt)
	})
	for _, id := range ids[keep:] {
		delete(entries, id)
	}
}

// Take looks up the branch for answer on the pending question of sess, the
// caller's working copy. A hit needs a completed entry whose base answer count
// equals the live count and an answer given at full confidence. The entry is
// consumed on a hit and dropped when stale.
func (s *Scheduler) Take(sess *assessment.Session, questionID string, answer assessment.Answer, confidence float64) (*assessment.PrefetchBranch, string) {
	b, reason := take(sess, questionID, answer, confidence)
	if b != nil {
		s.metrics.IncPrefetch("hit", "")
		s.log.Full("prefetch.hit", "session_id", sess.ID, "question_id", questionID, "answer", string(answer))
		return b, ""
	}
	s.metrics.IncPrefetch("miss", reason)
	s.log.Full("prefetch.miss", "session_id", sess.ID, "question_id", questionID, "answer", string(answer), "reason", reason)
	return nil, reason
}

func take(sess *assessment.Session, questionID string, answer assessment.Answer, confidence float64) (*assessment.PrefetchBranch, string) {
	entry := sess.Prefetch[questionID]
	if entry == nil {
		return nil, MissNoEntry
	}
	if entry.BaseAnswerCount != sess.AnswerCount() {
		delete(sess.Prefetch, questionID)
		return nil, MissStale
	}
	if entry.InFlight {
		return nil, MissInFlight
	}
	if confidence < 1 {
		delete(sess.Prefetch, questionID)
		return nil, MissHesitant
	}
	b := entry.Branches[answer]
	if b == nil {
		if _, failed := entry.Errors[answer]; failed {
			return nil, MissBranchFailed
		}
		return nil, MissNoBranch
	}
	delete(sess.Prefetch, questionID)
	return b.Clone(), ""
}

// Wait blocks until every scheduled task has returned.
func (s *Scheduler) Wait() { s.wg.Wait() }

// Close cancels running tasks and waits for them, or for ctx.
func (s *Scheduler) Close(ctx context.Context) error {
	s.cancel()
	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
