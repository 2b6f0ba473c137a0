package synthesis

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yungbote/mindtrace-backend/internal/domain/assessment"
	"github.com/yungbote/mindtrace-backend/internal/modules/assessment/distribution"
)

// sessionWithAnswers builds a session with n answered placeholder questions.
func sessionWithAnswers(n int) *assessment.Session {
	s := &assessment.Session{ID: "s1", Distribution: distribution.Init()}
	for i := 0; i < n; i++ {
		q := assessment.Question{ID: fmt.Sprintf("q%d", i), Text: fmt.Sprintf("자리표시 질문 %d", i)}
		s.History = append(s.History, q)
		s.Answers = append(s.Answers, assessment.AnswerRecord{QuestionID: q.ID, Answer: assessment.AnswerYes})
	}
	return s
}

func TestFallbackIsDeterministic(t *testing.T) {
	s := sessionWithAnswers(0)
	a := Fallback(s, false)
	b := Fallback(s.Clone(), false)
	assert.Equal(t, a, b)
	assert.Equal(t, "adaptive_fb_0_ie_1", a.ID)
	assert.Equal(t, assessment.EffectScoring, a.Effect.Kind)
	assert.InDelta(t, 0.8, a.Effect.Scoring.MBTI[assessment.AxisIE], 1e-12)
}

func TestFallbackAlternatesAxisAndEnneagram(t *testing.T) {
	even := sessionWithAnswers(2)
	even.Distribution.AxisScores = map[assessment.Axis]float64{
		assessment.AxisIE: 1.2, assessment.AxisSN: -0.9, assessment.AxisTF: 0.1, assessment.AxisJP: 0.7,
	}
	q := Fallback(even, false)
	assert.Equal(t, []assessment.Axis{assessment.AxisTF}, q.Targets.MBTIAxes)
	assert.Equal(t, "adaptive_fb_2_tf_3", q.ID)

	odd := sessionWithAnswers(3)
	odd.Distribution.EnneagramProbs["5"] = 0.5
	q = Fallback(odd, false)
	assert.Equal(t, "adaptive_fb_3_e5", q.ID)
	assert.Equal(t, []assessment.EnneagramType{"5"}, q.Targets.Enneagram)
	assert.Len(t, q.Targets.MBTIAxes, 1)
}

func TestFallbackTargetsConflictedAxis(t *testing.T) {
	s := sessionWithAnswers(1)
	s.Distribution.Conflicts = []string{distribution.AxisFlipConflict(assessment.AxisSN)}

	q := Fallback(s, false)
	assert.Equal(t, []assessment.Axis{assessment.AxisSN}, q.Targets.MBTIAxes)
	assert.NotEqual(t, assessment.PatternIncongruence, q.Meta.Pattern)

	q = Fallback(s, true)
	assert.Equal(t, "adaptive_fb_1_inc_sn", q.ID)
	assert.Equal(t, assessment.PatternIncongruence, q.Meta.Pattern)
	assert.Equal(t, assessment.ModeValidation, q.Meta.Mode)
}

func TestFallbackIncongruenceWithoutAxisFlipPrefersTF(t *testing.T) {
	s := sessionWithAnswers(4)
	s.Distribution.Conflicts = []string{"Enneagram 상위 후보 간 간격이 매우 좁음"}
	q := Fallback(s, true)
	assert.Equal(t, "adaptive_fb_4_inc_tf", q.ID)
}

func TestFallbackSkipsRecentDuplicates(t *testing.T) {
	s := sessionWithAnswers(0)
	first := Fallback(s, false)
	require.Equal(t, "adaptive_fb_0_ie_1", first.ID)

	// the first template is pending in history, so the next pool entry is used
	s.History = append(s.History, assessment.Question{ID: "shown", Text: first.Text})
	next := Fallback(s, false)
	assert.Equal(t, "adaptive_fb_0_ie_2", next.ID)
	assert.True(t, Validate(next, RecentQuestions(s), Options{}).Valid)
}

func TestShouldUseIncongruence(t *testing.T) {
	s := sessionWithAnswers(0)
	assert.False(t, ShouldUseIncongruence(s))

	s.Distribution.AxisEvidence[assessment.AxisTF] = assessment.AxisEvidence{Positive: 2, Negative: 1}
	assert.False(t, ShouldUseIncongruence(s))

	s.Distribution.AxisEvidence[assessment.AxisTF] = assessment.AxisEvidence{Positive: 2, Negative: 2}
	assert.True(t, ShouldUseIncongruence(s))

	s = sessionWithAnswers(0)
	s.Distribution.Conflicts = []string{"x"}
	assert.True(t, ShouldUseIncongruence(s))
}

func TestEnsureScoring(t *testing.T) {
	q := assessment.Question{
		ID:      "gen",
		Text:    "  " + goodText + " ",
		Targets: assessment.Targets{MBTIAxes: []assessment.Axis{"XX", assessment.AxisJP, assessment.AxisTF}, Enneagram: []assessment.EnneagramType{"1", "0", "6"}},
		Effect: assessment.ScoringEffect(assessment.Delta{
			MBTI:      map[assessment.Axis]float64{assessment.AxisJP: 4, assessment.AxisTF: 0.3},
			Enneagram: map[assessment.EnneagramType]float64{"6": 2, "7": 0.1, "8": 0.1},
		}),
	}
	got := EnsureScoring(q, assessment.AxisIE)

	assert.Equal(t, goodText, got.Text)
	assert.Equal(t, []assessment.Axis{assessment.AxisJP}, got.Targets.MBTIAxes)
	assert.Equal(t, map[assessment.Axis]float64{assessment.AxisJP: 1.5}, got.Effect.Scoring.MBTI)
	assert.Equal(t, []assessment.EnneagramType{"1", "6", "7"}, got.Targets.Enneagram)
	assert.InDelta(t, 0.2, got.Effect.Scoring.Enneagram["1"], 1e-12)
	assert.InDelta(t, 1.0, got.Effect.Scoring.Enneagram["6"], 1e-12)
	require.NotNil(t, got.Meta)
	assert.Equal(t, assessment.ContextWork, got.Meta.Context)
	assert.Equal(t, "adaptive_JP", got.Meta.CooldownGroup)

	// input is untouched
	assert.Len(t, q.Targets.MBTIAxes, 3)

	bare := EnsureScoring(assessment.Question{Text: goodText}, assessment.AxisSN)
	assert.Equal(t, []assessment.Axis{assessment.AxisSN}, bare.Targets.MBTIAxes)
	assert.InDelta(t, 0.8, bare.Effect.Scoring.MBTI[assessment.AxisSN], 1e-12)
}
