package report

import (
	"fmt"
	"math"
	"strconv"

	"github.com/yungbote/mindtrace-backend/internal/domain/assessment"
	"github.com/yungbote/mindtrace-backend/internal/modules/assessment/distribution"
)

const (
	defaultMBTI      = "INFP"
	defaultEnneagram = "5"
	candidateLimit   = 3
	toneC            = "C"

	misperceptionLead   = "겉으로는"
	misperceptionPrefix = "겉으로는 이렇게 보일 수 있으나 실제로는 "

	fallbackNarrative = "당신은 상황을 해석할 때 큰 구조를 먼저 보고, 실행에서는 현실적인 제약을 함께 점검하는 편입니다. " +
		"관계에서는 거리를 조절하며 신뢰를 쌓고, 판단 순간에는 감정의 맥락과 논리적 정합성을 동시에 고려합니다. " +
		"무리하게 자신을 바꾸기보다, 자신이 잘 작동하는 리듬을 설계할 때 성과가 안정적으로 커집니다."
	fallbackMisperception = "겉으로는 차갑거나 느리게 보일 수 있으나 실제로는 섣부른 결정보다 오래 가는 선택을 만들기 위해 속도를 조절하는 타입입니다."
)

// Fallback builds the deterministic report from the session posterior alone.
func Fallback(s *assessment.Session) *assessment.FinalReport {
	mbti := rounded(distribution.TopMBTI(s.Distribution.MBTIProbs, candidateLimit))
	ennea := rounded(distribution.TopEnneagram(s.Distribution.EnneagramProbs, candidateLimit))

	top := defaultMBTI
	if len(mbti) > 0 {
		top = mbti[0].Type
	}
	topEnnea := defaultEnneagram
	if len(ennea) > 0 {
		topEnnea = ennea[0].Type
	}
	second := topEnnea
	if len(ennea) > 1 {
		second = ennea[1].Type
	}
	wing := DeriveWing(topEnnea, second)
	quadra := DeriveQuadra(top)

	return &assessment.FinalReport{
		SessionID:     s.ID,
		MBTI:          assessment.MBTIResult{Top: assessment.MBTIType(top), Candidates: mbti},
		Enneagram:     assessment.EnneagramResult{Top: wing, Candidates: ennea},
		Nickname:      fmt.Sprintf("%s 탐색가", quadra),
		Narrative:     fallbackNarrative,
		Misperception: fallbackMisperception,
		ShortCaption:  fmt.Sprintf("mindtrace 결과: %s · %s. 겉보기보다 깊게 설계하고, 천천히 확실하게 움직이는 편.", top, wing),
		StyleTags:     assessment.StyleTags{Quadra: quadra, Tone: toneC},
	}
}

// DeriveWing returns "<top>w<wing>". An adjacent second type (1 and 9 wrap)
// becomes the wing; otherwise the neighbour of top numerically closer to
// second wins, the lower neighbour on ties.
func DeriveWing(top, second string) string {
	t, errT := strconv.Atoi(top)
	s, errS := strconv.Atoi(second)
	if errT != nil || errS != nil {
		return top + "w" + top
	}
	if adjacent(t, s) {
		return fmt.Sprintf("%dw%d", t, s)
	}
	left := t - 1
	if t == 1 {
		left = 9
	}
	right := t + 1
	if t == 9 {
		right = 1
	}
	wing := right
	if abs(s-left) <= abs(s-right) {
		wing = left
	}
	return fmt.Sprintf("%dw%d", t, wing)
}

func adjacent(a, b int) bool {
	d := abs(a - b)
	return d == 1 || d == 8
}

// DeriveQuadra reads the perceiving and judging letters of an MBTI type.
func DeriveQuadra(mbti string) assessment.Quadra {
	if len(mbti) < 3 {
		return assessment.QuadraSF
	}
	switch mbti[1:3] {
	case "NT":
		return assessment.QuadraNT
	case "ST":
		return assessment.QuadraST
	case "NF":
		return assessment.QuadraNF
	}
	return assessment.QuadraSF
}

func rounded(in []assessment.TypeCandidate) []assessment.TypeCandidate {
	out := make([]assessment.TypeCandidate, len(in))
	for i, c := range in {
		out[i] = assessment.TypeCandidate{Type: c.Type, P: round3(c.P)}
	}
	return out
}

func round3(v float64) float64 { return math.Round(v*1000) / 1000 }

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
