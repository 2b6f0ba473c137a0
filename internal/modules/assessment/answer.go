package assessment

import (
	"context"
	"net/http"
	"strings"

	domain "github.com/yungbote/mindtrace-backend/internal/domain/assessment"
	"github.com/yungbote/mindtrace-backend/internal/modules/assessment/bank"
	"github.com/yungbote/mindtrace-backend/internal/modules/assessment/distribution"
	"github.com/yungbote/mindtrace-backend/internal/modules/assessment/flow"
	"github.com/yungbote/mindtrace-backend/internal/platform/apierr"
	"github.com/yungbote/mindtrace-backend/internal/platform/ctxutil"
)

// Confidence weights for hesitant answers.
const (
	DeferredWeight  = 0.35
	AmbiguousWeight = 0.7
)

type AnswerMetaInput struct {
	DwellMs          int64  `json:"dwellMs"`
	HesitationReason string `json:"hesitationReason"`
	DeferScoring     bool   `json:"deferScoring"`
}

type AnswerInput struct {
	Token      string
	SessionID  string
	QuestionID string
	Answer     string
	Meta       *AnswerMetaInput
}

type AnswerOutput struct {
	Done                 bool                   `json:"done"`
	NextQuestion         *domain.PublicQuestion `json:"nextQuestion,omitempty"`
	Progress             domain.Progress        `json:"progress"`
	DistributionsSummary *domain.Summary        `json:"distributionsSummary,omitempty"`
}

// ConfidenceWeight maps hesitation metadata to the weight applied to the answer.
func ConfidenceWeight(meta *AnswerMetaInput) float64 {
	switch {
	case meta == nil:
		return 1
	case meta.DeferScoring:
		return DeferredWeight
	case domain.HesitationReason(meta.HesitationReason) == domain.HesitationAmbiguousMeaning:
		return AmbiguousWeight
	default:
		return 1
	}
}

func answerMeta(meta *AnswerMetaInput) domain.AnswerMeta {
	out := domain.AnswerMeta{ConfidenceWeight: ConfidenceWeight(meta)}
	if meta == nil {
		return out
	}
	out.DwellMs = max(0, meta.DwellMs)
	out.Deferred = meta.DeferScoring
	if r := domain.HesitationReason(meta.HesitationReason); r.Valid() {
		out.HesitationReason = r
	}
	return out
}

func (u Usecases) Answer(ctx context.Context, in AnswerInput) (AnswerOutput, error) {
	started := u.deps.Now()
	token, err := u.authorize(ctx, in.Token)
	if err != nil {
		return AnswerOutput{}, err
	}
	sessionID := strings.TrimSpace(in.SessionID)
	questionID := strings.TrimSpace(in.QuestionID)
	ans := domain.Answer(in.Answer)
	if sessionID == "" || questionID == "" || !ans.Valid() {
		return AnswerOutput{}, apierr.BadRequest("요청 형식이 올바르지 않습니다.")
	}
	if err := u.deps.Limiter.AllowSessionAction("answer", sessionID); err != nil {
		return AnswerOutput{}, err
	}

	unlock := u.locks.lock(sessionID)
	defer unlock()

	s, err := u.loadOwned(ctx, sessionID, token)
	if err != nil {
		return AnswerOutput{}, err
	}
	maxQ := u.MaxQuestions()
	reqID := ctxutil.RequestID(ctx)

	if s.Finalized {
		u.deps.Log.Full("session.lookup.fail", "request_id", reqID, "session_id", s.ID,
			"reason_code", apierr.CodeSessionAlreadyFinalized)
		return AnswerOutput{Done: true, Progress: domain.NewProgress(s.AnswerCount(), maxQ)}, nil
	}
	current, ok := s.CurrentQuestion()
	if !ok || current.ID != questionID {
		return AnswerOutput{}, apierr.Conflict("현재 질문과 응답이 일치하지 않습니다.")
	}
	if s.HasAnswered(questionID) {
		return AnswerOutput{}, apierr.Conflict("이미 응답한 질문입니다.")
	}

	rec := domain.AnswerRecord{
		QuestionID: questionID,
		Answer:     ans,
		AnsweredAt: u.deps.Now(),
		Meta:       answerMeta(in.Meta),
	}

	out, hit := u.applyPrefetched(s, rec)
	if !hit {
		out, err = u.deps.Pipeline.Advance(ctx, s, rec, flow.PathLive)
		if err != nil {
			return AnswerOutput{}, apierr.Conflict("현재 질문과 응답이 일치하지 않습니다.")
		}
	}
	u.deps.Store.Save(s)
	if !out.Done && out.NextQuestion != nil {
		u.schedulePrefetch(s.ID, out.NextQuestion.ID)
	}

	u.deps.Log.Info("answer.metrics",
		"request_id", reqID,
		"session_id", s.ID,
		"phase", string(s.Phase),
		"source", out.Source,
		"deterministic_update_ms", out.Stages.DeterministicUpdate.Milliseconds(),
		"calibration_ms", out.Stages.Calibration.Milliseconds(),
		"selection_ms", out.Stages.Selection.Milliseconds(),
		"answer_total_ms", u.deps.Now().Sub(started).Milliseconds(),
	)

	summary := distribution.Summarize(s.Distribution)
	resp := AnswerOutput{
		Done:                 out.Done,
		Progress:             domain.NewProgress(s.AnswerCount(), maxQ),
		DistributionsSummary: &summary,
	}
	if !out.Done && out.NextQuestion != nil {
		pub := out.NextQuestion.Public()
		resp.NextQuestion = &pub
	}
	return resp, nil
}

// applyPrefetched replays a cached branch when one matches rec exactly.
func (u Usecases) applyPrefetched(s *domain.Session, rec domain.AnswerRecord) (flow.Outcome, bool) {
	if u.deps.Prefetch == nil {
		return flow.Outcome{}, false
	}
	b, _ := u.deps.Prefetch.Take(s, rec.QuestionID, rec.Answer, rec.Weight())
	if b == nil {
		return flow.Outcome{}, false
	}
	out, err := u.deps.Pipeline.ApplyBranch(s, rec, b)
	if err != nil {
		u.deps.Log.Warn("prefetch.apply_failed", "session_id", s.ID, "question_id", rec.QuestionID, "error", err)
		return flow.Outcome{}, false
	}
	return out, true
}

type UndoInput struct {
	Token     string
	SessionID string
}

// Undo drops the most recent answer and rebuilds the posterior from the
// remaining answers with their stored confidence weights. Calibration blends
// are not replayed.
func (u Usecases) Undo(ctx context.Context, in UndoInput) (AnswerOutput, error) {
	token, err := u.authorize(ctx, in.Token)
	if err != nil {
		return AnswerOutput{}, err
	}
	sessionID := strings.TrimSpace(in.SessionID)
	if sessionID == "" {
		return AnswerOutput{}, apierr.BadRequest("sessionId가 필요합니다.")
	}
	if err := u.deps.Limiter.AllowSessionAction("answer", sessionID); err != nil {
		return AnswerOutput{}, err
	}

	unlock := u.locks.lock(sessionID)
	defer unlock()

	s, err := u.loadOwned(ctx, sessionID, token)
	if err != nil {
		return AnswerOutput{}, err
	}
	if s.AnswerCount() == 0 || len(s.History) <= 1 {
		return AnswerOutput{}, apierr.Conflict("되돌릴 이전 응답이 없습니다.")
	}

	if _, pending := s.PendingQuestion(); pending {
		s.History = s.History[:len(s.History)-1]
	}
	s.Answers = s.Answers[:len(s.Answers)-1]
	s.Distribution = distribution.Replay(s.History, s.Answers)
	s.StopSnapshots = []domain.StopSnapshot{}
	s.Prefetch = map[string]*domain.PrefetchEntry{}
	s.Done = false
	s.Finalized = false
	s.Report = nil
	s.Phase = bank.PhaseFor(s, u.MaxQuestions())
	s.LastUpdatedAt = u.deps.Now()

	current, ok := s.PendingQuestion()
	if !ok {
		return AnswerOutput{}, apierr.Msg(http.StatusInternalServerError, apierr.CodeInternal, "현재 질문 복원에 실패했습니다.")
	}
	u.deps.Store.Save(s)
	u.schedulePrefetch(s.ID, current.ID)

	u.deps.Log.Info("session.undo",
		"request_id", ctxutil.RequestID(ctx),
		"session_id", s.ID,
		"answer_count", s.AnswerCount(),
		"question_id", current.ID,
	)

	summary := distribution.Summarize(s.Distribution)
	pub := current.Public()
	return AnswerOutput{
		Done:                 false,
		NextQuestion:         &pub,
		Progress:             domain.NewProgress(s.AnswerCount(), u.MaxQuestions()),
		DistributionsSummary: &summary,
	}, nil
}
