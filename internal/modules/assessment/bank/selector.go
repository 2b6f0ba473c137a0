package bank

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/yungbote/mindtrace-backend/internal/domain/assessment"
	"github.com/yungbote/mindtrace-backend/internal/modules/assessment/distribution"
)

const (
	recentWindow           = 3
	validationRecentWindow = 5
	splitCandidates        = 4
	rankedLimit            = 5
	axisScoreSpan          = 1.6
)

var phaseModes = map[assessment.Phase][]assessment.Mode{
	assessment.PhaseA: {assessment.ModeAxisScan},
	assessment.PhaseB: {assessment.ModeAxisScan, assessment.ModeTieBreak},
	assessment.PhaseC: {assessment.ModeTieBreak, assessment.ModeValidation},
}

// ClassifyPhase maps progress and remaining axis uncertainty to a session phase.
func ClassifyPhase(answerCount, uncertainAxisCount, maxQuestions int) assessment.Phase {
	if answerCount < 5 {
		return assessment.PhaseA
	}
	if answerCount < 8 && uncertainAxisCount >= 3 {
		return assessment.PhaseB
	}
	if answerCount >= min(maxQuestions-3, 8) || uncertainAxisCount <= 1 {
		return assessment.PhaseC
	}
	return assessment.PhaseB
}

// PhaseFor classifies the phase of a session from its answers and distribution.
func PhaseFor(s *assessment.Session, maxQuestions int) assessment.Phase {
	return ClassifyPhase(s.AnswerCount(), distribution.UncertainAxisCount(s.Distribution), maxQuestions)
}

func ModeAllowed(mode assessment.Mode, phase assessment.Phase) bool {
	for _, m := range phaseModes[phase] {
		if m == mode {
			return true
		}
	}
	return false
}

type Breakdown struct {
	AxisUncertainty  float64 `json:"axisUncertainty"`
	MBTISplit        float64 `json:"mbtiSplit"`
	EnneaSplit       float64 `json:"enneaSplit"`
	NoveltyPenalty   float64 `json:"noveltyPenalty"`
	AmbiguityPenalty float64 `json:"ambiguityPenalty"`
	QualityBoost     float64 `json:"qualityBoost"`
	PhaseBonus       float64 `json:"phaseBonus"`
}

type Candidate struct {
	ID        string    `json:"id"`
	Score     float64   `json:"score"`
	Breakdown Breakdown `json:"breakdown"`
}

type Selection struct {
	Question assessment.Question
	Phase    assessment.Phase
	Reason   string
	Ranked   []Candidate
	// Pass names the filter stage that produced the candidate pool.
	Pass string
}

const (
	PassStrict    = "strict"
	PassRelaxed   = "relaxed"
	PassUnasked   = "unasked"
	PassExhausted = "exhausted"
)

// Select scores eligible candidates and returns the best one. The returned
// question is never already in the session history while unasked questions remain.
func (c *Catalog) Select(s *assessment.Session, maxQuestions int) Selection {
	phase := PhaseFor(s, maxQuestions)
	mbtiTop := distribution.TopMBTI(s.Distribution.MBTIProbs, splitCandidates)
	enneaTop := distribution.TopEnneagram(s.Distribution.EnneagramProbs, splitCandidates)

	pool, pass := c.candidatePool(s, phase)

	type scored struct {
		q    assessment.Question
		cand Candidate
	}
	ranked := make([]scored, 0, len(pool))
	for _, q := range pool {
		ranked = append(ranked, scored{q: q, cand: scoreCandidate(q, s, phase, mbtiTop, enneaTop)})
	}
	sort.SliceStable(ranked, func(i, j int) bool { return ranked[i].cand.Score > ranked[j].cand.Score })

	if len(ranked) == 0 {
		return Selection{
			Question: c.questions[0].Clone(),
			Phase:    phase,
			Reason:   "fallback:first_bank_question",
			Pass:     pass,
		}
	}

	best := ranked[0]
	meta := best.q.MetaOrDefault()
	reason := strings.Join([]string{
		"phase=" + string(phase),
		"id=" + best.q.ID,
		fmt.Sprintf("score=%v", best.cand.Score),
		"mode=" + string(meta.Mode),
		"context=" + string(meta.Context),
	}, " | ")

	top := make([]Candidate, 0, rankedLimit)
	for i := 0; i < len(ranked) && i < rankedLimit; i++ {
		top = append(top, ranked[i].cand)
	}
	return Selection{
		Question: best.q.Clone(),
		Phase:    phase,
		Reason:   reason,
		Ranked:   top,
		Pass:     pass,
	}
}

func (c *Catalog) candidatePool(s *assessment.Session, phase assessment.Phase) ([]assessment.Question, string) {
	if pool := c.filter(s, phase, false); len(pool) > 0 {
		return pool, PassStrict
	}
	if pool := c.filter(s, phase, true); len(pool) > 0 {
		return pool, PassRelaxed
	}
	asked := askedIDs(s)
	pool := make([]assessment.Question, 0, len(c.questions))
	for _, q := range c.questions {
		if _, ok := asked[q.ID]; !ok {
			pool = append(pool, q)
		}
	}
	if len(pool) > 0 {
		return pool, PassUnasked
	}
	return c.questions, PassExhausted
}

func (c *Catalog) filter(s *assessment.Session, phase assessment.Phase, relaxed bool) []assessment.Question {
	asked := askedIDs(s)
	recent := recentQuestions(s, recentWindow)
	groups := cooldownGroups(recent)
	var lastContext assessment.Context
	var lastPattern assessment.Pattern
	if len(recent) > 0 && recent[len(recent)-1].Meta != nil {
		lastContext = recent[len(recent)-1].Meta.Context
		lastPattern = recent[len(recent)-1].Meta.Pattern
	}

	out := make([]assessment.Question, 0, len(c.questions))
	for _, q := range c.questions {
		if _, ok := asked[q.ID]; ok {
			continue
		}
		meta := q.MetaOrDefault()
		if !ModeAllowed(meta.Mode, phase) || !meta.AllowsPhase(phase) {
			continue
		}
		if !relaxed {
			if _, ok := groups[meta.CooldownGroup]; ok {
				continue
			}
			if lastContext != "" && meta.Context == lastContext && meta.Mode != assessment.ModeValidation {
				continue
			}
			if lastPattern != "" && meta.Pattern == lastPattern && meta.Mode == assessment.ModeAxisScan {
				continue
			}
		}
		out = append(out, q)
	}
	return out
}

func scoreCandidate(q assessment.Question, s *assessment.Session, phase assessment.Phase, mbtiTop, enneaTop []assessment.TypeCandidate) Candidate {
	meta := q.MetaOrDefault()
	uncertainAxis := distribution.MostUncertainAxis(s.Distribution)
	axes := q.Targets.MBTIAxes

	var axisUncertainty, mbtiSplit float64
	if len(axes) > 0 {
		for _, a := range axes {
			axisUncertainty += 1 - math.Min(1, math.Abs(s.Distribution.AxisScores[a])/axisScoreSpan)
			mbtiSplit += axisSplit(mbtiTop, a)
		}
		axisUncertainty /= float64(len(axes))
		mbtiSplit /= float64(len(axes))
	}
	enneaSplit := enneagramSplit(enneaTop, q.Targets.Enneagram)

	recent := recentQuestions(s, recentWindow)
	novelty := 0.0
	if _, ok := cooldownGroups(recent)[meta.CooldownGroup]; ok {
		novelty += 0.26
	}
	if len(recent) > 0 && recent[len(recent)-1].Meta != nil {
		last := recent[len(recent)-1].Meta
		if last.Context == meta.Context {
			novelty += 0.10
		}
		if last.Pattern == meta.Pattern {
			novelty += 0.08
		}
	}

	ambiguity := meta.AmbiguityScore * 0.45
	quality := meta.QualityScore * 0.35

	bonus := 0.0
	switch {
	case phase == assessment.PhaseA && meta.Mode == assessment.ModeAxisScan:
		bonus += 0.28
	case phase == assessment.PhaseB && meta.Mode == assessment.ModeTieBreak:
		bonus += 0.25
	case phase == assessment.PhaseC && meta.Mode == assessment.ModeValidation:
		bonus += 0.34
	}
	if q.Targets.HasAxis(uncertainAxis) {
		bonus += 0.24
	}
	if phase == assessment.PhaseC && meta.Mode == assessment.ModeValidation && countRecentMode(s, assessment.ModeValidation, validationRecentWindow) == 0 {
		bonus += 0.14
	}

	score := axisUncertainty*1.9 + mbtiSplit*1.8 + enneaSplit*1.2 + quality + bonus - novelty - ambiguity
	return Candidate{
		ID:    q.ID,
		Score: round3(score),
		Breakdown: Breakdown{
			AxisUncertainty:  round3(axisUncertainty),
			MBTISplit:        round3(mbtiSplit),
			EnneaSplit:       round3(enneaSplit),
			NoveltyPenalty:   round3(novelty),
			AmbiguityPenalty: round3(ambiguity),
			QualityBoost:     round3(quality),
			PhaseBonus:       round3(bonus),
		},
	}
}

// axisSplit peaks at 1 when the top candidates split their mass evenly on the axis.
func axisSplit(top []assessment.TypeCandidate, a assessment.Axis) float64 {
	first := 0.0
	for _, c := range top {
		if assessment.MBTIType(c.Type).HasFirstLetter(a) {
			first += c.P
		}
	}
	return 1 - math.Min(1, math.Abs(0.5-first)*2)
}

func enneagramSplit(top []assessment.TypeCandidate, targets []assessment.EnneagramType) float64 {
	if len(targets) == 0 {
		return 0
	}
	set := make(map[string]struct{}, len(targets))
	for _, t := range targets {
		set[string(t)] = struct{}{}
	}
	mass := 0.0
	for _, c := range top {
		if _, ok := set[c.Type]; ok {
			mass += c.P
		}
	}
	return 1 - math.Min(1, math.Abs(0.5-mass)*2)
}

// CountValidationAnswers counts answered questions whose mode is validation.
func CountValidationAnswers(s *assessment.Session) int {
	return countRecentMode(s, assessment.ModeValidation, s.AnswerCount())
}

func countRecentMode(s *assessment.Session, mode assessment.Mode, window int) int {
	n := 0
	from := max(0, s.AnswerCount()-window)
	for i := from; i < s.AnswerCount(); i++ {
		q, ok := s.AnsweredQuestion(i)
		if ok && q.Meta != nil && q.Meta.Mode == mode {
			n++
		}
	}
	return n
}

func askedIDs(s *assessment.Session) map[string]struct{} {
	out := make(map[string]struct{}, len(s.History))
	for _, q := range s.History {
		out[q.ID] = struct{}{}
	}
	return out
}

func recentQuestions(s *assessment.Session, n int) []assessment.Question {
	if len(s.History) <= n {
		return s.History
	}
	return s.History[len(s.History)-n:]
}

func cooldownGroups(qs []assessment.Question) map[string]struct{} {
	out := make(map[string]struct{}, len(qs))
	for _, q := range qs {
		if q.Meta != nil && q.Meta.CooldownGroup != "" {
			out[q.Meta.CooldownGroup] = struct{}{}
		}
	}
	return out
}

func round3(v float64) float64 { return math.Round(v*1000) / 1000 }
