package synthesis

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yungbote/mindtrace-backend/internal/domain/assessment"
	"github.com/yungbote/mindtrace-backend/internal/inference/engine/mock"
	"github.com/yungbote/mindtrace-backend/internal/inference/oracle"
)

const (
	goodReply = `{"id":"m1","text_ko":"나는 업무 회의에서 결론이 나면 바로 다음 할 일을 정리한다",
		"targets":{"mbtiAxes":["JP"],"enneagram":["1"]},"rationale_short":"JP 확인",
		"scoring":{"mbti":{"JP":0.9},"enneagram":{"1":0.3}}}`
	badReply = `{"id":"m2","text_ko":"나는 보통 사람들과 있을 때 에너지를 얻는다",
		"targets":{"mbtiAxes":["IE","SN"],"enneagram":[]},"rationale_short":"x",
		"scoring":{"mbti":{"IE":-0.8},"enneagram":{}}}`
)

func generatorWith(h mock.Handler) (*Generator, *mock.Engine) {
	eng := mock.New().On(oracle.LabelQuestionGeneration, h)
	return NewGenerator(oracle.NewWithEngine(eng, "o3"), nil), eng
}

func TestGenerateAcceptsValidModelQuestion(t *testing.T) {
	g, eng := generatorWith(mock.Reply(goodReply))
	got := g.Generate(context.Background(), sessionWithAnswers(6))

	assert.True(t, got.UsedModel)
	assert.False(t, got.UsedFallback)
	assert.Equal(t, SourceModel, got.Source)
	assert.Equal(t, 0, got.RetryCount)
	assert.True(t, strings.HasPrefix(got.Question.ID, "adaptive_6_"))
	assert.InDelta(t, 0.9, got.Question.Effect.Scoring.MBTI[assessment.AxisJP], 1e-12)
	assert.Equal(t, 1, eng.CallCount(oracle.LabelQuestionGeneration))
}

func TestGenerateTakesAxisFromScoringBlock(t *testing.T) {
	reply := `{"id":"m3","text_ko":"나는 업무 회의에서 결론이 나면 바로 다음 할 일을 정리한다",
		"targets":{"mbtiAxes":[],"enneagram":[]},"rationale_short":"JP 확인",
		"scoring":{"mbti":{"JP":0.7}}}`
	g, eng := generatorWith(mock.Reply(reply))
	got := g.Generate(context.Background(), sessionWithAnswers(6))

	assert.True(t, got.UsedModel)
	assert.Equal(t, 0, got.RetryCount)
	assert.NotContains(t, got.Quality.Reasons, ReasonAxisCountInvalid)
	assert.Equal(t, []assessment.Axis{assessment.AxisJP}, got.Question.Targets.MBTIAxes)
	assert.InDelta(t, 0.7, got.Question.Effect.Scoring.MBTI[assessment.AxisJP], 1e-12)
	assert.Equal(t, 1, eng.CallCount(oracle.LabelQuestionGeneration))
}

func TestGenerateRegeneratesWithFailureFeedback(t *testing.T) {
	g, eng := generatorWith(mock.Sequence(badReply, badReply, goodReply))
	got := g.Generate(context.Background(), sessionWithAnswers(6))

	assert.True(t, got.UsedModel)
	assert.Equal(t, 2, got.RetryCount)

	calls := eng.Calls()
	require.Len(t, calls, 3)
	assert.Contains(t, calls[0].Messages[1].Content, "Previous filter failures: none")
	assert.Contains(t, calls[1].Messages[1].Content, "attempt_0: ")
	assert.Contains(t, calls[1].Messages[1].Content, ReasonBannedHedgeWord)
	assert.Contains(t, calls[2].Messages[1].Content, "attempt_1: ")
}

func TestGenerateFallsBackAfterRetryBudget(t *testing.T) {
	g, eng := generatorWith(mock.Reply(badReply))
	s := sessionWithAnswers(6)
	got := g.Generate(context.Background(), s)

	assert.False(t, got.UsedModel)
	assert.True(t, got.UsedFallback)
	assert.Equal(t, MaxRegenerations, got.RetryCount)
	assert.Equal(t, 1+MaxRegenerations, eng.CallCount(oracle.LabelQuestionGeneration))
	assert.Equal(t, Fallback(s, false), got.Question)
	assert.True(t, got.Quality.Valid)
}

func TestGenerateWithoutOracleUsesFallbackImmediately(t *testing.T) {
	s := sessionWithAnswers(7)
	for _, g := range []*Generator{NewGenerator(nil, nil), NewGenerator(oracle.NewWithEngine(nil, "o3"), nil)} {
		got := g.Generate(context.Background(), s)
		assert.True(t, got.UsedFallback)
		assert.Equal(t, 0, got.RetryCount)
		assert.Equal(t, Fallback(s, false).ID, got.Question.ID)
	}
}

func TestGenerateTreatsOracleErrorsAsFailedAttempts(t *testing.T) {
	g, eng := generatorWith(mock.Fail(nil))
	got := g.Generate(context.Background(), sessionWithAnswers(6))
	assert.True(t, got.UsedFallback)
	assert.Equal(t, 3, eng.CallCount(oracle.LabelQuestionGeneration))
	assert.Equal(t, &assessment.GenerationInfo{Source: SourceFallback, RetryCount: 2, UsedFallback: true}, got.Info())
}
