package distribution

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yungbote/mindtrace-backend/internal/domain/assessment"
)

func axisQuestion(id string, axis assessment.Axis, w float64) assessment.Question {
	return assessment.Question{
		ID:      id,
		Text:    "회의에서 먼저 의견을 말하는 편이다",
		Targets: assessment.Targets{MBTIAxes: []assessment.Axis{axis}, Enneagram: []assessment.EnneagramType{"3"}},
		Effect: assessment.ScoringEffect(assessment.Delta{
			MBTI:      map[assessment.Axis]float64{axis: w},
			Enneagram: map[assessment.EnneagramType]float64{"3": 0.4},
		}),
	}
}

func requireValidPosterior(t *testing.T, d assessment.Distribution) {
	t.Helper()
	sumM := 0.0
	for _, ty := range assessment.MBTITypes {
		p := d.MBTIProbs[ty]
		require.False(t, math.IsNaN(p))
		require.GreaterOrEqual(t, p, 0.0)
		sumM += p
	}
	sumE := 0.0
	for _, ty := range assessment.EnneagramTypes {
		p := d.EnneagramProbs[ty]
		require.False(t, math.IsNaN(p))
		require.GreaterOrEqual(t, p, 0.0)
		sumE += p
	}
	require.InDelta(t, 1.0, sumM, 1e-9)
	require.InDelta(t, 1.0, sumE, 1e-9)
}

func TestInitIsUniform(t *testing.T) {
	d := Init()
	requireValidPosterior(t, d)
	assert.InDelta(t, 1.0/16, d.MBTIProbs["INTJ"], 1e-12)
	assert.InDelta(t, 1.0/9, d.EnneagramProbs["5"], 1e-12)
	assert.Empty(t, d.Conflicts)
}

func TestPosteriorStaysValidAcrossAnswerSequences(t *testing.T) {
	d := Init()
	answers := []assessment.Answer{"yes", "no", "yes", "yes", "no", "no", "yes", "no", "yes", "yes", "yes", "no"}
	for i, ans := range answers {
		axis := assessment.Axes[i%len(assessment.Axes)]
		ApplyInPlace(&d, axisQuestion("q", axis, 1.1+float64(i)*0.3), ans, 1)
		requireValidPosterior(t, d)
	}
}

func TestPosteriorSurvivesExtremeScores(t *testing.T) {
	d := Init()
	q := assessment.Question{
		ID: "huge",
		Effect: assessment.ScoringEffect(assessment.Delta{
			MBTI:      map[assessment.Axis]float64{assessment.AxisIE: 1e6},
			Enneagram: map[assessment.EnneagramType]float64{"1": 1e308, "2": -1e308},
		}),
	}
	ApplyInPlace(&d, q, assessment.AnswerYes, 1)
	ApplyInPlace(&d, q, assessment.AnswerYes, 1)
	requireValidPosterior(t, d)
}

func TestRepeatedSamePolarityNeverShrinksAxisScore(t *testing.T) {
	for _, ans := range assessment.Answers {
		d := Init()
		q := axisQuestion("ie", assessment.AxisIE, 1.2)
		prev := 0.0
		for i := 0; i < 10; i++ {
			ApplyInPlace(&d, q, ans, 1)
			cur := math.Abs(d.AxisScores[assessment.AxisIE])
			require.GreaterOrEqual(t, cur, prev)
			prev = cur
		}
	}
}

func TestApplyIsPure(t *testing.T) {
	d := Init()
	before := d.Clone()
	out := Apply(d, axisQuestion("q", assessment.AxisSN, 1.4), assessment.AnswerYes, 1)
	assert.Equal(t, before, d)
	assert.InDelta(t, 1.4, out.AxisScores[assessment.AxisSN], 1e-12)
	assert.Equal(t, 1, out.AxisEvidence[assessment.AxisSN].Positive)
}

func TestConfidenceWeightScalesAndClamps(t *testing.T) {
	q := axisQuestion("q", assessment.AxisTF, 1.0)
	half := Apply(Init(), q, assessment.AnswerNo, 0.35)
	assert.InDelta(t, -0.35, half.AxisScores[assessment.AxisTF], 1e-12)

	over := Apply(Init(), q, assessment.AnswerYes, 4)
	assert.InDelta(t, 1.0, over.AxisScores[assessment.AxisTF], 1e-12)

	zero := Apply(Init(), q, assessment.AnswerYes, -1)
	assert.Zero(t, zero.AxisScores[assessment.AxisTF])
	assert.Zero(t, zero.AxisEvidence[assessment.AxisTF].Total())
}

func TestTransitionsTakePrecedence(t *testing.T) {
	q := assessment.Question{
		ID: "t",
		Effect: assessment.SymmetricTransitions(assessment.Delta{
			MBTI: map[assessment.Axis]float64{assessment.AxisJP: 0.9},
		}),
	}
	yes := Apply(Init(), q, assessment.AnswerYes, 1)
	no := Apply(Init(), q, assessment.AnswerNo, 1)
	assert.InDelta(t, 0.9, yes.AxisScores[assessment.AxisJP], 1e-12)
	assert.InDelta(t, -0.9, no.AxisScores[assessment.AxisJP], 1e-12)
	assert.Greater(t, FirstLetterMass(yes, assessment.AxisJP), 0.5)
}

func TestConflictDetection(t *testing.T) {
	d := Init()
	q := axisQuestion("tf", assessment.AxisTF, 1.0)
	for _, ans := range []assessment.Answer{"yes", "yes", "no", "no"} {
		ApplyInPlace(&d, q, ans, 1)
	}
	assert.Contains(t, d.Conflicts, AxisFlipConflict(assessment.AxisTF))
	assert.Contains(t, d.Conflicts, conflictTFCrossing)
	assert.True(t, HasAxisFlip(d, assessment.AxisTF))
	assert.False(t, HasAxisFlip(d, assessment.AxisIE))
}

func TestBlend(t *testing.T) {
	d := Apply(Init(), axisQuestion("q", assessment.AxisIE, 2), assessment.AnswerYes, 1)
	assert.Equal(t, d, Blend(d, nil, DefaultBlendWeight))

	update := &assessment.Update{
		MBTIProbs:      map[assessment.MBTIType]float64{"ENFP": 1},
		EnneagramProbs: map[assessment.EnneagramType]float64{"7": 2, "2": 2},
		Conflicts:      []string{"oracle flag", "oracle flag"},
	}
	out := Blend(d, update, DefaultBlendWeight)
	requireValidPosterior(t, out)
	assert.InDelta(t, d.MBTIProbs["ENFP"]*0.7+0.3, out.MBTIProbs["ENFP"], 1e-9)
	assert.InDelta(t, d.EnneagramProbs["7"]*0.7+0.15, out.EnneagramProbs["7"], 1e-9)
	assert.Equal(t, append(append([]string{}, d.Conflicts...), "oracle flag"), out.Conflicts)

	garbage := Blend(Init(), &assessment.Update{MBTIProbs: map[assessment.MBTIType]float64{"INTJ": math.NaN()}}, DefaultBlendWeight)
	requireValidPosterior(t, garbage)
}

func TestReplayMatchesIncrementalApply(t *testing.T) {
	qs := []assessment.Question{
		axisQuestion("a", assessment.AxisIE, 1.1),
		axisQuestion("b", assessment.AxisSN, 0.9),
		axisQuestion("c", assessment.AxisTF, 1.3),
	}
	answers := []assessment.AnswerRecord{
		{QuestionID: "a", Answer: assessment.AnswerYes, Meta: assessment.AnswerMeta{ConfidenceWeight: 1}},
		{QuestionID: "b", Answer: assessment.AnswerNo, Meta: assessment.AnswerMeta{ConfidenceWeight: 0.7}},
		{QuestionID: "c", Answer: assessment.AnswerYes, Meta: assessment.AnswerMeta{ConfidenceWeight: 0.35}},
	}
	live := Init()
	for i, rec := range answers {
		ApplyInPlace(&live, qs[i], rec.Answer, rec.Meta.ConfidenceWeight)
	}
	assert.Equal(t, live, Replay(qs, answers))
}

func TestHelpers(t *testing.T) {
	d := Init()
	d = Apply(d, axisQuestion("q1", assessment.AxisIE, 2), assessment.AnswerYes, 1)
	d = Apply(d, axisQuestion("q2", assessment.AxisSN, -2), assessment.AnswerYes, 1)
	d = Apply(d, axisQuestion("q3", assessment.AxisJP, 0.4), assessment.AnswerYes, 1)

	assert.Equal(t, assessment.AxisTF, MostUncertainAxis(d))
	assert.Equal(t, 2, UncertainAxisCount(d))

	s := Summarize(d)
	require.Len(t, s.MBTITop3, 3)
	require.Len(t, s.EnneagramTop2, 2)
	assert.Equal(t, "3", s.EnneagramTop2[0].Type)
	assert.GreaterOrEqual(t, s.MBTITop3[0].P, s.MBTITop3[1].P)
	assert.Equal(t, byte('I'), s.MBTITop3[0].Type[0])
	assert.Equal(t, byte('N'), s.MBTITop3[0].Type[1])

	// ties keep canonical order
	top := TopMBTI(Init().MBTIProbs, 2)
	assert.Equal(t, "ISTJ", top[0].Type)
	assert.Equal(t, "ISFJ", top[1].Type)
}
