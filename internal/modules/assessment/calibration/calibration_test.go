package calibration

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yungbote/mindtrace-backend/internal/domain/assessment"
	"github.com/yungbote/mindtrace-backend/internal/inference/engine/mock"
	"github.com/yungbote/mindtrace-backend/internal/inference/oracle"
	"github.com/yungbote/mindtrace-backend/internal/modules/assessment/distribution"
	"github.com/yungbote/mindtrace-backend/internal/observability"
)

func TestShouldCalibrate(t *testing.T) {
	base := Trigger{CuratedCount: 6, MaxQuestions: 28, Interval: LiveInterval}
	cases := []struct {
		answers, conflicts int
		interval           int
		want               bool
	}{
		{3, 1, LiveInterval, false}, // inside curated prefix even with conflicts
		{5, 0, LiveInterval, false},
		{6, 0, LiveInterval, true}, // phase transition
		{7, 0, LiveInterval, false},
		{7, 2, LiveInterval, true},
		{9, 0, LiveInterval, true},
		{9, 0, PrefetchInterval, false},
		{8, 0, PrefetchInterval, true},
		{25, 0, LiveInterval, false},
		{26, 0, LiveInterval, true},
		{27, 0, PrefetchInterval, true},
		{10, 0, 0, false},
	}
	for _, tc := range cases {
		trig := base
		trig.AnswerCount = tc.answers
		trig.ConflictCount = tc.conflicts
		trig.Interval = tc.interval
		assert.Equal(t, tc.want, ShouldCalibrate(trig), "%+v", tc)
	}
}

func oracleReply(conflicts int) string {
	var mbti, ennea []string
	for _, typ := range assessment.MBTITypes {
		p := 0.0
		if typ == "ENFP" {
			p = 1
		}
		mbti = append(mbti, fmt.Sprintf("%q:%v", typ, p))
	}
	for _, typ := range assessment.EnneagramTypes {
		p := 0.0
		if typ == "7" {
			p = 1
		}
		ennea = append(ennea, fmt.Sprintf("%q:%v", typ, p))
	}
	var cs []string
	for i := 0; i < conflicts; i++ {
		cs = append(cs, fmt.Sprintf("%q", fmt.Sprintf("oracle conflict %d", i)))
	}
	return fmt.Sprintf(`{"mbtiProbs16":{%s},"enneagramProbs9":{%s},"conflicts":[%s]}`,
		strings.Join(mbti, ","), strings.Join(ennea, ","), strings.Join(cs, ","))
}

func TestCalibrateBlendsOracleUpdate(t *testing.T) {
	eng := mock.New().On(oracle.LabelDistributionUpdate, mock.Reply(oracleReply(9)))
	c := New(oracle.NewWithEngine(eng, "o3"), nil, observability.NewMetrics())

	d := distribution.Init()
	before := d.Clone()
	q := assessment.Question{ID: "q1", Text: "t", Targets: assessment.Targets{MBTIAxes: []assessment.Axis{assessment.AxisIE}}}
	res := c.Calibrate(context.Background(), "live", d, q, assessment.AnswerNo)

	require.True(t, res.Attempted)
	require.True(t, res.Applied)
	assert.Equal(t, before, d, "input must not be mutated")
	assert.InDelta(t, (1.0/16)*0.7+0.3, res.Distribution.MBTIProbs["ENFP"], 1e-9)
	assert.InDelta(t, (1.0/9)*0.7+0.3, res.Distribution.EnneagramProbs["7"], 1e-9)
	assert.Len(t, res.Distribution.Conflicts, MaxConflicts)
	assert.Equal(t, assessment.CalibrationInfo{Attempted: true, Applied: true}, res.Info())

	calls := eng.Calls()
	require.Len(t, calls, 1)
	assert.Contains(t, calls[0].Messages[1].Content, "Answer: no")
}

func TestCalibrateFallsBackToLocalPosterior(t *testing.T) {
	d := distribution.Init()

	failing := New(oracle.NewWithEngine(mock.New().Otherwise(mock.Reply("garbage")), "o3"), nil, nil)
	res := failing.Calibrate(context.Background(), "prefetch", d, assessment.Question{ID: "q"}, assessment.AnswerYes)
	assert.True(t, res.Attempted)
	assert.False(t, res.Applied)
	assert.Equal(t, d, res.Distribution)

	disabled := New(nil, nil, nil)
	res = disabled.Calibrate(context.Background(), "live", d, assessment.Question{ID: "q"}, assessment.AnswerYes)
	assert.False(t, res.Attempted)
	assert.False(t, res.Applied)
}
