package bank

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yungbote/mindtrace-backend/internal/domain/assessment"
	"github.com/yungbote/mindtrace-backend/internal/modules/assessment/distribution"
)

func mustCatalog(t *testing.T) *Catalog {
	t.Helper()
	c, err := LoadCatalog()
	require.NoError(t, err)
	return c
}

// answered builds a session that has answered every question in qs.
func answered(qs []assessment.Question, ans assessment.Answer) *assessment.Session {
	s := &assessment.Session{ID: "s1", Distribution: distribution.Init()}
	for _, q := range qs {
		s.History = append(s.History, q)
		s.Answers = append(s.Answers, assessment.AnswerRecord{QuestionID: q.ID, Answer: ans, Targets: q.Targets})
		distribution.ApplyInPlace(&s.Distribution, q, ans, 1)
	}
	return s
}

func TestCatalogShape(t *testing.T) {
	c := mustCatalog(t)
	require.Equal(t, 28, c.Len())

	modes := map[assessment.Mode]int{}
	for _, q := range c.All() {
		require.NotNil(t, q.Meta)
		modes[q.Meta.Mode]++
		assert.Equal(t, assessment.EffectTransitions, q.Effect.Kind)
		for axis, w := range q.Effect.Yes.MBTI {
			assert.Equal(t, -w, q.Effect.No.MBTI[axis], q.ID)
		}
	}
	assert.Equal(t, 8, modes[assessment.ModeAxisScan])
	assert.Equal(t, 12, modes[assessment.ModeTieBreak])
	assert.Equal(t, 8, modes[assessment.ModeValidation])

	require.Equal(t, 6, c.CuratedCount())
	want := []string{"bank_a_01", "bank_a_03", "bank_a_05", "bank_a_07", "bank_a_04", "bank_a_06"}
	for i, id := range want {
		q, ok := c.Curated(i)
		require.True(t, ok)
		assert.Equal(t, id, q.ID)
	}
	_, ok := c.Curated(6)
	assert.False(t, ok)

	q, ok := c.ByID("bank_b_02")
	require.True(t, ok)
	assert.Equal(t, []assessment.Axis{assessment.AxisSN, assessment.AxisJP}, q.Targets.MBTIAxes)
	assert.InDelta(t, 0.24, q.Effect.Yes.Enneagram["6"], 1e-12)
}

func TestByIDReturnsCopies(t *testing.T) {
	c := mustCatalog(t)
	q, _ := c.ByID("bank_a_01")
	q.Meta.CooldownGroup = "mutated"
	q.Effect.Yes.MBTI[assessment.AxisIE] = 99
	again, _ := c.ByID("bank_a_01")
	assert.Equal(t, "ie_energy_1", again.Meta.CooldownGroup)
	assert.InDelta(t, 1.0, again.Effect.Yes.MBTI[assessment.AxisIE], 1e-12)
}

func TestParseCatalogRejectsBadEntries(t *testing.T) {
	_, err := ParseCatalog([]byte("questions: []"))
	assert.Error(t, err)

	_, err = ParseCatalog([]byte(`
curated: [missing]
questions:
  - id: q1
    text_ko: "텍스트"
    mode: axis_scan
    targets: {mbti_axes: [IE]}
    yes: {mbti: {IE: 1}}
`))
	assert.ErrorContains(t, err, "curated")

	_, err = ParseCatalog([]byte(`
questions:
  - id: q1
    text_ko: "텍스트"
    mode: wander
    targets: {mbti_axes: [IE]}
`))
	assert.ErrorContains(t, err, "unknown mode")
}

func TestClassifyPhase(t *testing.T) {
	cases := []struct {
		answers, uncertain, max int
		want                    assessment.Phase
	}{
		{0, 4, 28, assessment.PhaseA},
		{4, 0, 28, assessment.PhaseA},
		{5, 3, 28, assessment.PhaseB},
		{7, 4, 28, assessment.PhaseB},
		{6, 1, 28, assessment.PhaseC},
		{7, 2, 28, assessment.PhaseB},
		{8, 3, 28, assessment.PhaseC},
		{8, 2, 28, assessment.PhaseC},
		{6, 2, 9, assessment.PhaseC},
		{5, 2, 9, assessment.PhaseB},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, ClassifyPhase(tc.answers, tc.uncertain, tc.max), "%+v", tc)
	}
}

func TestSelectNeverRepeatsWhileBankHasUnasked(t *testing.T) {
	c := mustCatalog(t)
	for _, ans := range assessment.Answers {
		s := answered(nil, ans)
		for i := 0; i < c.Len(); i++ {
			sel := c.Select(s, 28)
			for _, h := range s.History {
				require.NotEqual(t, h.ID, sel.Question.ID, "step %d", i)
			}
			s.History = append(s.History, sel.Question)
			s.Answers = append(s.Answers, assessment.AnswerRecord{QuestionID: sel.Question.ID, Answer: ans})
			distribution.ApplyInPlace(&s.Distribution, sel.Question, ans, 1)
		}
		// exhausted bank falls back to the whole catalog
		sel := c.Select(s, 28)
		assert.Equal(t, PassExhausted, sel.Pass)
		assert.NotEmpty(t, sel.Question.ID)
	}
}

func TestSelectRespectsPhaseModes(t *testing.T) {
	c := mustCatalog(t)
	s := answered(nil, assessment.AnswerYes)
	sel := c.Select(s, 28)
	assert.Equal(t, assessment.PhaseA, sel.Phase)
	assert.Equal(t, assessment.ModeAxisScan, sel.Question.Meta.Mode)
	assert.Equal(t, PassStrict, sel.Pass)
	assert.LessOrEqual(t, len(sel.Ranked), 5)
	for i := 1; i < len(sel.Ranked); i++ {
		assert.GreaterOrEqual(t, sel.Ranked[i-1].Score, sel.Ranked[i].Score)
	}
	assert.Equal(t, sel.Question.ID, sel.Ranked[0].ID)
	assert.Contains(t, sel.Reason, "phase=A")
}

func TestSelectStrictFilterAvoidsLastContext(t *testing.T) {
	c := mustCatalog(t)
	first, _ := c.ByID("bank_a_07") // work / behavior
	s := answered([]assessment.Question{first}, assessment.AnswerYes)
	sel := c.Select(s, 28)
	require.Equal(t, PassStrict, sel.Pass)
	assert.NotEqual(t, assessment.ContextWork, sel.Question.Meta.Context)
	assert.NotEqual(t, assessment.PatternBehavior, sel.Question.Meta.Pattern)
}

func TestCountValidationAnswers(t *testing.T) {
	c := mustCatalog(t)
	var qs []assessment.Question
	for _, id := range []string{"bank_a_01", "bank_c_01", "bank_b_01", "bank_c_02"} {
		q, ok := c.ByID(id)
		require.True(t, ok)
		qs = append(qs, q)
	}
	s := answered(qs, assessment.AnswerNo)
	assert.Equal(t, 2, CountValidationAnswers(s))

	// pending tail question is not counted
	pending, _ := c.ByID("bank_c_03")
	s.History = append(s.History, pending)
	assert.Equal(t, 2, CountValidationAnswers(s))
}
