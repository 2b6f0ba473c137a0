package flow

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yungbote/mindtrace-backend/internal/domain/assessment"
	"github.com/yungbote/mindtrace-backend/internal/inference/engine/mock"
	"github.com/yungbote/mindtrace-backend/internal/inference/oracle"
	"github.com/yungbote/mindtrace-backend/internal/modules/assessment/bank"
	"github.com/yungbote/mindtrace-backend/internal/modules/assessment/calibration"
	"github.com/yungbote/mindtrace-backend/internal/modules/assessment/distribution"
	"github.com/yungbote/mindtrace-backend/internal/modules/assessment/stopping"
)

func newPipeline(t *testing.T, cfg Config, deps Deps) *Pipeline {
	t.Helper()
	c, err := bank.LoadCatalog()
	require.NoError(t, err)
	deps.Catalog = c
	return New(cfg, deps)
}

func newSession(p *Pipeline) *assessment.Session {
	return &assessment.Session{
		ID:           "s1",
		Distribution: distribution.Init(),
		History:      []assessment.Question{p.FirstQuestion()},
		Answers:      []assessment.AnswerRecord{},
		Prefetch:     map[string]*assessment.PrefetchEntry{},
	}
}

func answer(t *testing.T, p *Pipeline, s *assessment.Session, a assessment.Answer) Outcome {
	t.Helper()
	q, ok := s.PendingQuestion()
	require.True(t, ok)
	out, err := p.Advance(context.Background(), s, assessment.AnswerRecord{QuestionID: q.ID, Answer: a}, PathLive)
	require.NoError(t, err)
	return out
}

func TestCuratedPrefixThenBank(t *testing.T) {
	p := newPipeline(t, Config{MinQuestions: 9, MaxQuestions: 28, QuestionSource: SourceBank}, Deps{})
	s := newSession(p)

	var out Outcome
	for i := 0; i < p.catalog.CuratedCount(); i++ {
		out = answer(t, p, s, assessment.AnswerYes)
		require.False(t, out.Done)
		if i < p.catalog.CuratedCount()-1 {
			assert.Equal(t, NextCurated, out.Source, "answer %d", i)
		}
	}
	assert.Equal(t, NextBank, out.Source)
	require.NotNil(t, out.Selection)
	for _, a := range assessment.Axes {
		assert.Greater(t, s.Distribution.AxisScores[a], 0.0, string(a))
	}
	assert.NotEqual(t, assessment.PhaseA, s.Phase)
	assert.Len(t, s.Answers, 6)
	assert.Len(t, s.History, 7)
	assert.Len(t, s.StopSnapshots, 6)
	assert.Equal(t, stopping.DetailMinQuestions, out.Decision.Detail)
}

func TestCapEndsSession(t *testing.T) {
	p := newPipeline(t, Config{MinQuestions: 2, MaxQuestions: 3, QuestionSource: SourceBank}, Deps{})
	s := newSession(p)
	answer(t, p, s, assessment.AnswerNo)
	answer(t, p, s, assessment.AnswerNo)
	out := answer(t, p, s, assessment.AnswerNo)

	assert.True(t, out.Done)
	assert.True(t, s.Done)
	assert.Equal(t, stopping.ReasonCap, out.Decision.Reason)
	assert.Nil(t, out.NextQuestion)
	_, pending := s.PendingQuestion()
	assert.False(t, pending)
}

func TestAdvanceRejectsMismatchedQuestion(t *testing.T) {
	p := newPipeline(t, Config{MinQuestions: 9, MaxQuestions: 28}, Deps{})
	s := newSession(p)
	before := s.Clone()

	_, err := p.Advance(context.Background(), s, assessment.AnswerRecord{QuestionID: "other", Answer: assessment.AnswerYes}, PathLive)
	require.Error(t, err)
	assert.Equal(t, before, s)

	s.History = nil
	_, err = p.Advance(context.Background(), s, assessment.AnswerRecord{QuestionID: "x"}, PathLive)
	assert.ErrorIs(t, err, ErrNoPendingQuestion)
}

func TestCalibrationFiresAtPhaseTransition(t *testing.T) {
	eng := mock.New().On(oracle.LabelDistributionUpdate, mock.Fail(nil))
	cal := calibration.New(oracle.NewWithEngine(eng, "o3"), nil, nil)
	p := newPipeline(t, Config{MinQuestions: 9, MaxQuestions: 28, QuestionSource: SourceBank}, Deps{Calibrator: cal})
	s := newSession(p)

	var out Outcome
	for i := 0; i < p.catalog.CuratedCount(); i++ {
		out = answer(t, p, s, assessment.AnswerYes)
	}
	assert.Equal(t, 1, eng.CallCount(oracle.LabelDistributionUpdate))
	assert.Equal(t, assessment.CalibrationInfo{Attempted: true, Applied: false}, out.Calibration)
}

func TestAdaptiveSourceWithoutGeneratorUsesFallback(t *testing.T) {
	p := newPipeline(t, Config{MinQuestions: 9, MaxQuestions: 28, QuestionSource: SourceAdaptive}, Deps{})
	s := newSession(p)
	var out Outcome
	for i := 0; i < p.catalog.CuratedCount(); i++ {
		out = answer(t, p, s, assessment.AnswerNo)
	}
	assert.Equal(t, NextFallback, out.Source)
	require.NotNil(t, out.Generation)
	assert.True(t, out.Generation.UsedFallback)
	require.NotNil(t, out.NextQuestion)
	assert.Contains(t, out.NextQuestion.ID, "adaptive_fb_6_")
}

func TestBranchIsPureAndApplyBranchMatchesAdvance(t *testing.T) {
	p := newPipeline(t, Config{MinQuestions: 9, MaxQuestions: 28, QuestionSource: SourceBank}, Deps{})
	s := newSession(p)
	answer(t, p, s, assessment.AnswerYes)
	answer(t, p, s, assessment.AnswerNo)
	pending, _ := s.PendingQuestion()

	before := s.Clone()
	b, err := p.Branch(context.Background(), s, pending.ID, assessment.AnswerYes)
	require.NoError(t, err)
	assert.Equal(t, before, s, "branch must not touch the live session")
	assert.Equal(t, assessment.AnswerYes, b.Answer)
	require.NotNil(t, b.NextQuestion)

	cold := s.Clone()
	coldOut := answer(t, p, cold, assessment.AnswerYes)

	hit := s.Clone()
	hitOut, err := p.ApplyBranch(hit, assessment.AnswerRecord{QuestionID: pending.ID, Answer: assessment.AnswerYes}, b)
	require.NoError(t, err)
	assert.Equal(t, NextPrefetch, hitOut.Source)
	assert.Equal(t, cold.Distribution, hit.Distribution)
	assert.Equal(t, coldOut.NextQuestion.ID, hitOut.NextQuestion.ID)
	assert.Equal(t, cold.StopSnapshots, hit.StopSnapshots)

	_, err = p.ApplyBranch(s.Clone(), assessment.AnswerRecord{QuestionID: pending.ID, Answer: assessment.AnswerNo}, b)
	assert.Error(t, err)
}

func TestPathIntervals(t *testing.T) {
	assert.Equal(t, calibration.LiveInterval, PathLive.Interval())
	assert.Equal(t, calibration.PrefetchInterval, PathPrefetch.Interval())
	assert.Equal(t, SourceAdaptive, ParseQuestionSource("adaptive"))
	assert.Equal(t, SourceBank, ParseQuestionSource("anything"))
}
