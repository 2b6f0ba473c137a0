package synthesis

import (
	"math"
	"strings"

	"github.com/yungbote/mindtrace-backend/internal/domain/assessment"
)

const (
	defaultAxisWeight      = 0.8
	maxAxisWeight          = 1.5
	defaultEnneagramWeight = 0.2
	maxEnneagramTargets    = 3
)

// EnsureScoring normalizes a generated question into a scoreable one: exactly
// one target axis, a finite bounded axis weight, at most three enneagram
// targets with bounded weights, and a complete meta block.
func EnsureScoring(q assessment.Question, fallbackAxis assessment.Axis) assessment.Question {
	out := q.Clone()
	weights := out.Effect.Weights()

	axis := firstValidAxis(out.Targets.MBTIAxes)
	if axis == "" {
		for _, a := range assessment.Axes {
			if _, ok := weights.MBTI[a]; ok {
				axis = a
				break
			}
		}
	}
	if axis == "" {
		axis = fallbackAxis
	}
	if !axis.Valid() {
		axis = assessment.AxisIE
	}

	w, ok := weights.MBTI[axis]
	if !ok || w == 0 || math.IsNaN(w) || math.IsInf(w, 0) {
		w = defaultAxisWeight
	}
	w = math.Max(-maxAxisWeight, math.Min(maxAxisWeight, w))

	ennea := map[assessment.EnneagramType]float64{}
	var targets []assessment.EnneagramType
	add := func(t assessment.EnneagramType, v float64) {
		if !t.Valid() || len(targets) >= maxEnneagramTargets {
			return
		}
		if _, dup := ennea[t]; dup {
			return
		}
		if math.IsNaN(v) || math.IsInf(v, 0) {
			v = defaultEnneagramWeight
		}
		ennea[t] = math.Max(-1, math.Min(1, v))
		targets = append(targets, t)
	}
	for _, t := range out.Targets.Enneagram {
		v, ok := weights.Enneagram[t]
		if !ok {
			v = defaultEnneagramWeight
		}
		add(t, v)
	}
	for _, t := range assessment.EnneagramTypes {
		if v, ok := weights.Enneagram[t]; ok {
			add(t, v)
		}
	}

	scoring := assessment.Delta{MBTI: map[assessment.Axis]float64{axis: w}}
	if len(ennea) > 0 {
		scoring.Enneagram = ennea
	}
	out.Targets = assessment.Targets{MBTIAxes: []assessment.Axis{axis}, Enneagram: targets}
	out.Effect = assessment.ScoringEffect(scoring)
	out.Text = strings.TrimSpace(out.Text)
	out.Rationale = strings.TrimSpace(out.Rationale)

	if out.Meta == nil {
		scope, _ := DetectScope(out.Text)
		out.Meta = &assessment.Meta{
			Context:        scope,
			Mode:           assessment.ModeTieBreak,
			Pattern:        inferPattern(out.Text),
			CooldownGroup:  "adaptive_" + string(axis),
			AmbiguityScore: 0.3,
			QualityScore:   0.6,
		}
	} else if out.Meta.CooldownGroup == "" {
		out.Meta.CooldownGroup = "adaptive_" + string(axis)
	}
	return out
}

func inferPattern(text string) assessment.Pattern {
	switch {
	case containsAny(text, outerMarkers) && containsAny(text, innerMarkers):
		return assessment.PatternIncongruence
	case containsAny(text, judgmentMarkers):
		return assessment.PatternJudgment
	case containsAny(text, internalMarkers):
		return assessment.PatternInternal
	default:
		return assessment.PatternBehavior
	}
}

func firstValidAxis(axes []assessment.Axis) assessment.Axis {
	for _, a := range axes {
		if a.Valid() {
			return a
		}
	}
	return ""
}
