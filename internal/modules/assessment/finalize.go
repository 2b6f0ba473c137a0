package assessment

import (
	"context"
	"errors"
	"strings"

	"github.com/yungbote/mindtrace-backend/internal/clients/redis"
	domain "github.com/yungbote/mindtrace-backend/internal/domain/assessment"
	"github.com/yungbote/mindtrace-backend/internal/modules/assessment/distribution"
	"github.com/yungbote/mindtrace-backend/internal/platform/apierr"
	"github.com/yungbote/mindtrace-backend/internal/platform/ctxutil"
	"github.com/yungbote/mindtrace-backend/internal/services"
)

type FinalizeInput struct {
	Token     string
	SessionID string
}

// Finalize produces the report once per session. Concurrent calls for the
// same session share one oracle request; later calls return the stored report.
func (u Usecases) Finalize(ctx context.Context, in FinalizeInput) (*domain.FinalReport, error) {
	token, err := u.authorize(ctx, in.Token)
	if err != nil {
		return nil, err
	}
	sessionID := strings.TrimSpace(in.SessionID)
	if sessionID == "" {
		return nil, apierr.BadRequest("sessionId가 필요합니다.")
	}
	if err := u.deps.Limiter.AllowSessionAction("finalize", sessionID); err != nil {
		return nil, err
	}
	s, err := u.loadOwned(ctx, sessionID, token)
	if err != nil {
		return nil, err
	}
	if s.Report != nil {
		u.deps.Log.Full("finalize.cached", "request_id", ctxutil.RequestID(ctx), "session_id", s.ID)
		return s.Report, nil
	}

	v, err, shared := u.finalize.Do(sessionID, func() (any, error) {
		return u.finalizeOnce(ctx, sessionID)
	})
	if err != nil {
		return nil, err
	}
	if shared {
		u.deps.Log.Full("finalize.shared", "request_id", ctxutil.RequestID(ctx), "session_id", sessionID)
	}
	return v.(*domain.FinalReport).Clone(), nil
}

func (u Usecases) finalizeOnce(ctx context.Context, sessionID string) (*domain.FinalReport, error) {
	s, err := u.deps.Store.Get(sessionID)
	if err != nil {
		return nil, err
	}
	if s.Report != nil {
		return s.Report, nil
	}

	rep := u.deps.Finalizer.Finalize(ctx, s)

	unlock := u.locks.lock(sessionID)
	live, err := u.deps.Store.Get(sessionID)
	if err != nil {
		unlock()
		return nil, err
	}
	// the report was built without the lock; an undo or answer in between
	// makes it describe answers the session no longer has
	if live.AnswerCount() != s.AnswerCount() || len(live.History) != len(s.History) {
		unlock()
		u.deps.Log.Full("finalize.stale",
			"request_id", ctxutil.RequestID(ctx),
			"session_id", sessionID,
			"answer_count", live.AnswerCount(),
			"report_answer_count", s.AnswerCount(),
		)
		return nil, apierr.Conflict("응답이 변경되었습니다. 다시 시도해 주세요.")
	}
	live.Done = true
	live.Finalized = true
	live.Report = rep.Clone()
	live.LastUpdatedAt = u.deps.Now()
	u.deps.Store.Save(live)
	unlock()

	u.mirror(ctx, rep, live.Token)

	reqID := ctxutil.RequestID(ctx)
	u.deps.Log.Info("finalize.completed",
		"request_id", reqID,
		"session_id", sessionID,
		"mbti", string(rep.MBTI.Top),
		"enneagram", rep.Enneagram.Top,
		"final_distributions", distribution.Summarize(live.Distribution),
	)
	u.deps.Log.Full("finalize.report", "request_id", reqID, "report", rep)
	return rep, nil
}

func (u Usecases) mirror(ctx context.Context, rep *domain.FinalReport, ownerToken string) {
	if u.deps.Mirror == nil {
		return
	}
	rec := redis.MirroredReport{Owner: services.OwnerDigest(ownerToken), Report: rep}
	if err := u.deps.Mirror.Put(context.WithoutCancel(ctx), rec, u.deps.ReportTTL); err != nil {
		u.deps.Log.Warn("report.mirror.put_failed", "session_id", rep.SessionID, "error", err)
	}
}

type ResultInput struct {
	Token     string
	SessionID string
}

// Result returns the finalized report. Once the session itself has expired the
// report is served from the mirror, when one is configured, to the same token
// that owned the session.
func (u Usecases) Result(ctx context.Context, in ResultInput) (*domain.FinalReport, error) {
	token, err := u.authorize(ctx, in.Token)
	if err != nil {
		return nil, err
	}
	sessionID := strings.TrimSpace(in.SessionID)
	if sessionID == "" {
		return nil, apierr.BadRequest("sessionId가 필요합니다.")
	}

	s, err := u.loadOwned(ctx, sessionID, token)
	if err != nil {
		return u.mirrored(ctx, sessionID, token, err)
	}
	if s.Report == nil {
		return nil, apierr.NotFound("아직 결과가 생성되지 않았습니다.")
	}
	return s.Report, nil
}

// mirrored falls back to the mirror when the live lookup failed because the
// session is gone. Any other cause, or a miss, is returned unchanged.
func (u Usecases) mirrored(ctx context.Context, sessionID, token string, cause error) (*domain.FinalReport, error) {
	if u.deps.Mirror == nil {
		return nil, cause
	}
	switch apierr.CodeOf(cause) {
	case apierr.CodeSessionNotFound, apierr.CodeSessionExpired:
	default:
		return nil, cause
	}
	rec, err := u.deps.Mirror.Get(ctx, sessionID)
	if err != nil {
		if !errors.Is(err, redis.ErrReportNotFound) {
			u.deps.Log.Warn("report.mirror.get_failed", "session_id", sessionID, "error", err)
		}
		return nil, cause
	}
	if !services.OwnsDigest(rec.Owner, token) {
		u.deps.Log.Full("session.ownership.fail", "request_id", ctxutil.RequestID(ctx), "session_id", sessionID, "source", "mirror")
		return nil, apierr.Reason(apierr.CodeSessionTokenMismatch)
	}
	u.deps.Log.Full("report.mirror.hit", "request_id", ctxutil.RequestID(ctx), "session_id", sessionID)
	return rec.Report, nil
}
