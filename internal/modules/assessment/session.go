package assessment

import (
	"context"
	"net/http"
	"strings"

	"github.com/google/uuid"

	domain "github.com/yungbote/mindtrace-backend/internal/domain/assessment"
	"github.com/yungbote/mindtrace-backend/internal/modules/assessment/distribution"
	"github.com/yungbote/mindtrace-backend/internal/platform/apierr"
	"github.com/yungbote/mindtrace-backend/internal/platform/ctxutil"
)

type StartInput struct {
	Token string
}

type StartOutput struct {
	SessionID     string                `json:"sessionId"`
	FirstQuestion domain.PublicQuestion `json:"firstQuestion"`
	MaxQuestions  int                   `json:"maxQuestions"`
}

func (u Usecases) Start(ctx context.Context, in StartInput) (StartOutput, error) {
	token, err := u.authorize(ctx, in.Token)
	if err != nil {
		return StartOutput{}, err
	}
	first := u.deps.Pipeline.FirstQuestion()
	if first.ID == "" {
		return StartOutput{}, apierr.Msg(http.StatusInternalServerError, apierr.CodeInternal, "초기 질문 세트를 찾을 수 없습니다.")
	}

	now := u.deps.Now()
	s := &domain.Session{
		ID:            uuid.NewString(),
		Token:         token,
		CreatedAt:     now,
		ExpiresAt:     now.Add(u.deps.SessionTTL),
		LastUpdatedAt: now,
		Phase:         domain.PhaseA,
		History:       []domain.Question{first},
		Answers:       []domain.AnswerRecord{},
		Distribution:  distribution.Init(),
		StopSnapshots: []domain.StopSnapshot{},
		Prefetch:      map[string]*domain.PrefetchEntry{},
	}
	u.deps.Store.Save(s)
	u.schedulePrefetch(s.ID, first.ID)

	u.deps.Log.Info("session.start",
		"request_id", ctxutil.RequestID(ctx),
		"session_id", s.ID,
		"max_questions", u.MaxQuestions(),
	)
	return StartOutput{
		SessionID:     s.ID,
		FirstQuestion: first.Public(),
		MaxQuestions:  u.MaxQuestions(),
	}, nil
}

type ResumeInput struct {
	Token     string
	SessionID string
}

type ResumeOutput struct {
	SessionID       string                 `json:"sessionId"`
	Done            bool                   `json:"done"`
	Finalized       bool                   `json:"finalized"`
	AnswerCount     int                    `json:"answerCount"`
	MaxQuestions    int                    `json:"maxQuestions"`
	CurrentQuestion *domain.PublicQuestion `json:"currentQuestion"`
	Progress        domain.Progress        `json:"progress"`
}

// Resume reports where a session stands so a reloaded client can pick up at
// the pending question.
func (u Usecases) Resume(ctx context.Context, in ResumeInput) (ResumeOutput, error) {
	token, err := u.authorize(ctx, in.Token)
	if err != nil {
		return ResumeOutput{}, err
	}
	s, err := u.loadOwned(ctx, strings.TrimSpace(in.SessionID), token)
	if err != nil {
		return ResumeOutput{}, err
	}
	out := ResumeOutput{
		SessionID:    s.ID,
		Done:         s.Done,
		Finalized:    s.Finalized,
		AnswerCount:  s.AnswerCount(),
		MaxQuestions: u.MaxQuestions(),
		Progress:     domain.NewProgress(s.AnswerCount(), u.MaxQuestions()),
	}
	if q, ok := s.CurrentQuestion(); ok && !s.Done {
		pub := q.Public()
		out.CurrentQuestion = &pub
	}
	return out, nil
}

// loadOwned reads a session and checks that token started it.
func (u Usecases) loadOwned(ctx context.Context, sessionID, token string) (*domain.Session, error) {
	if sessionID == "" {
		return nil, apierr.BadRequest("sessionId가 필요합니다.")
	}
	s, err := u.deps.Store.Get(sessionID)
	if err != nil {
		u.deps.Log.Full("session.lookup.fail",
			"request_id", ctxutil.RequestID(ctx),
			"session_id", sessionID,
			"reason_code", apierr.CodeOf(err),
		)
		return nil, err
	}
	if err := u.deps.Auth.AssertOwnership(s, token); err != nil {
		u.deps.Log.Full("session.ownership.fail", "request_id", ctxutil.RequestID(ctx), "session_id", sessionID)
		return nil, err
	}
	return s, nil
}

func (u Usecases) schedulePrefetch(sessionID, questionID string) {
	if u.deps.Prefetch == nil || questionID == "" {
		return
	}
	u.deps.Prefetch.Schedule(sessionID, questionID)
}
