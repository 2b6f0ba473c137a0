package report

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yungbote/mindtrace-backend/internal/domain/assessment"
	"github.com/yungbote/mindtrace-backend/internal/inference/engine/mock"
	"github.com/yungbote/mindtrace-backend/internal/inference/oracle"
	"github.com/yungbote/mindtrace-backend/internal/modules/assessment/distribution"
)

func TestDeriveWing(t *testing.T) {
	cases := []struct{ top, second, want string }{
		{"5", "6", "5w6"},
		{"5", "4", "5w4"},
		{"1", "9", "1w9"},
		{"9", "1", "9w1"},
		{"5", "5", "5w4"},
		{"5", "8", "5w6"},
		{"2", "7", "2w3"},
		{"1", "5", "1w2"},
		{"9", "3", "9w1"},
		{"5", "5w6", "5w5"},
		{"x", "5", "xwx"},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, DeriveWing(tc.top, tc.second), "%s/%s", tc.top, tc.second)
	}
}

func TestDeriveQuadra(t *testing.T) {
	assert.Equal(t, assessment.QuadraNT, DeriveQuadra("INTJ"))
	assert.Equal(t, assessment.QuadraST, DeriveQuadra("ESTP"))
	assert.Equal(t, assessment.QuadraNF, DeriveQuadra("ENFP"))
	assert.Equal(t, assessment.QuadraSF, DeriveQuadra("ISFJ"))
	assert.Equal(t, assessment.QuadraSF, DeriveQuadra("I"))
}

func TestFallbackFromUniformPosterior(t *testing.T) {
	s := &assessment.Session{ID: "s1", Distribution: distribution.Init()}
	r := Fallback(s)

	assert.Equal(t, "s1", r.SessionID)
	assert.Equal(t, assessment.MBTIType("ISTJ"), r.MBTI.Top)
	require.Len(t, r.MBTI.Candidates, 3)
	assert.Equal(t, 0.063, r.MBTI.Candidates[0].P)
	assert.Equal(t, "1w2", r.Enneagram.Top)
	require.Len(t, r.Enneagram.Candidates, 3)
	assert.Equal(t, 0.111, r.Enneagram.Candidates[0].P)
	assert.Equal(t, "ST 탐색가", r.Nickname)
	assert.Equal(t, assessment.StyleTags{Quadra: assessment.QuadraST, Tone: "C"}, r.StyleTags)
	assert.True(t, strings.HasPrefix(r.Misperception, "겉으로는"))
	assert.Contains(t, r.ShortCaption, "ISTJ · 1w2")
}

func TestFallbackWithEmptyPosteriorUsesDefaults(t *testing.T) {
	r := Fallback(&assessment.Session{ID: "s2"})
	assert.Equal(t, assessment.MBTIType("INFP"), r.MBTI.Top)
	assert.Equal(t, "5w4", r.Enneagram.Top)
	assert.Equal(t, assessment.QuadraNF, r.StyleTags.Quadra)
	assert.Empty(t, r.MBTI.Candidates)
}

const modelReply = `{
  "mbti": {"top": "ENFP", "candidates": [
    {"type": "ENFP", "p": 0.41234},
    {"type": "XXXX", "p": 0.3},
    {"type": "INFP", "p": 0.22},
    {"type": "ENFJ", "p": 0.1},
    {"type": "ENTP", "p": 0.05}
  ]},
  "enneagram": {"top": "7", "candidates": [
    {"type": "7", "p": 0.5},
    {"type": "10", "p": 0.2},
    {"type": "6", "p": 0.2}
  ]},
  "nickname_ko": "바람을 읽는 항해사",
  "narrative_ko": "서술",
  "misperception_ko": "가벼워 보이지만 깊이 고민합니다.",
  "short_caption_ko": "",
  "style_tags": {"quadra": "XX", "tone": "C"}
}`

func TestFinalizeSanitizesModelReport(t *testing.T) {
	eng := mock.New().On(oracle.LabelFinalReport, mock.Reply(modelReply))
	f := NewFinalizer(oracle.NewWithEngine(eng, "o3"), nil)
	s := &assessment.Session{ID: "s3", Distribution: distribution.Init()}

	r := f.Finalize(context.Background(), s)
	fb := Fallback(s)

	assert.Equal(t, assessment.MBTIType("ENFP"), r.MBTI.Top)
	require.Len(t, r.MBTI.Candidates, 3)
	assert.Equal(t, []string{"ENFP", "INFP", "ENFJ"}, types(r.MBTI.Candidates))
	assert.Equal(t, 0.412, r.MBTI.Candidates[0].P)
	assert.Equal(t, []string{"7", "6"}, types(r.Enneagram.Candidates))
	assert.Equal(t, "7w6", r.Enneagram.Top)
	assert.Equal(t, "바람을 읽는 항해사", r.Nickname)
	assert.Equal(t, "겉으로는 이렇게 보일 수 있으나 실제로는 가벼워 보이지만 깊이 고민합니다.", r.Misperception)
	assert.Equal(t, fb.ShortCaption, r.ShortCaption)
	assert.Equal(t, fb.StyleTags.Quadra, r.StyleTags.Quadra)
	assert.Equal(t, "C", r.StyleTags.Tone)

	calls := eng.Calls()
	require.Len(t, calls, 1)
	assert.Contains(t, calls[0].Messages[1].Content, "Enneagram top should include wing string like 5w6.")
}

func TestFinalizeFallsBackOnBadLabels(t *testing.T) {
	reply := `{"mbti":{"top":"NOPE","candidates":[{"type":"NOPE","p":1}]},
	"enneagram":{"top":"0","candidates":[{"type":"0","p":1}]},
	"nickname_ko":"","narrative_ko":"","misperception_ko":"겉으로는 조용합니다.","short_caption_ko":"캡션",
	"style_tags":{"quadra":"NT","tone":"C"}}`
	eng := mock.New().On(oracle.LabelFinalReport, mock.Reply(reply))
	f := NewFinalizer(oracle.NewWithEngine(eng, "o3"), nil)
	s := &assessment.Session{ID: "s4", Distribution: distribution.Init()}

	r := f.Finalize(context.Background(), s)
	fb := Fallback(s)
	assert.Equal(t, fb.MBTI, r.MBTI)
	assert.Equal(t, fb.Enneagram.Candidates, r.Enneagram.Candidates)
	assert.Equal(t, "1w2", r.Enneagram.Top)
	assert.Equal(t, fb.Nickname, r.Nickname)
	assert.Equal(t, "겉으로는 조용합니다.", r.Misperception)
	assert.Equal(t, "캡션", r.ShortCaption)
	assert.Equal(t, assessment.QuadraNT, r.StyleTags.Quadra)
}

func TestFinalizeWithoutOracle(t *testing.T) {
	s := &assessment.Session{ID: "s5", Distribution: distribution.Init()}
	assert.Equal(t, Fallback(s), NewFinalizer(nil, nil).Finalize(context.Background(), s))

	failing := NewFinalizer(oracle.NewWithEngine(mock.New().Otherwise(mock.Fail(nil)), "o3"), nil)
	assert.Equal(t, Fallback(s), failing.Finalize(context.Background(), s))
}

func types(cs []assessment.TypeCandidate) []string {
	out := make([]string, len(cs))
	for i, c := range cs {
		out[i] = c.Type
	}
	return out
}
