package distribution

import (
	"math"
	"sort"

	"github.com/yungbote/mindtrace-backend/internal/domain/assessment"
)

const (
	// DefaultBlendWeight is the share given to an oracle update when blending.
	DefaultBlendWeight = 0.3
	// UncertainThreshold bounds |axis score| below which an axis counts as undecided.
	UncertainThreshold = 0.58

	tfNearZero         = 0.25
	tfEvidenceMin      = 4
	flipEvidenceMin    = 2
	enneaSeparationMin = 0.04
)

const (
	conflictTFCrossing  = "사고/감정(T/F) 판단 기준이 상황에 따라 교차함"
	conflictEnneaNarrow = "Enneagram 상위 후보 간 간격이 매우 좁음"
)

// AxisFlipConflict is the conflict flag raised for an axis with repeated opposite evidence.
func AxisFlipConflict(axis assessment.Axis) string {
	return string(axis) + " 축에서 상반된 신호가 반복됨"
}

func Init() assessment.Distribution {
	d := assessment.Distribution{
		AxisScores:      make(map[assessment.Axis]float64, len(assessment.Axes)),
		AxisEvidence:    make(map[assessment.Axis]assessment.AxisEvidence, len(assessment.Axes)),
		EnneagramScores: make(map[assessment.EnneagramType]float64, len(assessment.EnneagramTypes)),
		Conflicts:       []string{},
	}
	for _, a := range assessment.Axes {
		d.AxisScores[a] = 0
		d.AxisEvidence[a] = assessment.AxisEvidence{}
	}
	for _, t := range assessment.EnneagramTypes {
		d.EnneagramScores[t] = 0
	}
	d.MBTIProbs = uniformMBTI()
	d.EnneagramProbs = uniformEnnea()
	return d
}

// Apply is the pure variant used for speculative branches: d is never mutated.
func Apply(d assessment.Distribution, q assessment.Question, answer assessment.Answer, confidenceWeight float64) assessment.Distribution {
	out := d.Clone()
	ApplyInPlace(&out, q, answer, confidenceWeight)
	return out
}

// ApplyInPlace mutates d. Only the live path, which owns its session copy, calls it directly.
func ApplyInPlace(d *assessment.Distribution, q assessment.Question, answer assessment.Answer, confidenceWeight float64) {
	ensureMaps(d)
	w := clamp01(confidenceWeight)
	delta := q.ResolveDelta(answer)

	for _, axis := range assessment.Axes {
		raw, ok := delta.MBTI[axis]
		if !ok {
			continue
		}
		v := raw * w
		d.AxisScores[axis] += v
		ev := d.AxisEvidence[axis]
		switch {
		case v > 0:
			ev.Positive++
		case v < 0:
			ev.Negative++
		}
		d.AxisEvidence[axis] = ev
	}
	for _, t := range assessment.EnneagramTypes {
		if raw, ok := delta.Enneagram[t]; ok {
			d.EnneagramScores[t] += raw * w
		}
	}

	d.MBTIProbs = mbtiFromAxisScores(d.AxisScores)
	d.EnneagramProbs = softmax(d.EnneagramScores)
	d.Conflicts = detectConflicts(*d)
}

// Blend mixes an oracle posterior into d. A nil update returns d unchanged.
func Blend(d assessment.Distribution, update *assessment.Update, weight float64) assessment.Distribution {
	if update == nil {
		return d
	}
	out := d.Clone()
	w := clamp01(weight)

	oracleMBTI := sanitizeMBTI(update.MBTIProbs)
	oracleEnnea := sanitizeEnnea(update.EnneagramProbs)

	mbti := make(map[assessment.MBTIType]float64, len(assessment.MBTITypes))
	for _, t := range assessment.MBTITypes {
		mbti[t] = out.MBTIProbs[t]*(1-w) + oracleMBTI[t]*w
	}
	ennea := make(map[assessment.EnneagramType]float64, len(assessment.EnneagramTypes))
	for _, t := range assessment.EnneagramTypes {
		ennea[t] = out.EnneagramProbs[t]*(1-w) + oracleEnnea[t]*w
	}
	out.MBTIProbs = normalizeMBTI(mbti)
	out.EnneagramProbs = normalizeEnnea(ennea)
	out.Conflicts = dedupe(append(append([]string{}, out.Conflicts...), update.Conflicts...))
	return out
}

// Replay rebuilds a distribution from scratch by applying each answered question in order.
func Replay(questions []assessment.Question, answers []assessment.AnswerRecord) assessment.Distribution {
	d := Init()
	for i, rec := range answers {
		if i >= len(questions) {
			break
		}
		ApplyInPlace(&d, questions[i], rec.Answer, rec.Weight())
	}
	return d
}

func mbtiFromAxisScores(scores map[assessment.Axis]float64) map[assessment.MBTIType]float64 {
	first := make(map[assessment.Axis]float64, len(assessment.Axes))
	for _, a := range assessment.Axes {
		first[a] = sigmoid(scores[a])
	}
	raw := make(map[assessment.MBTIType]float64, len(assessment.MBTITypes))
	for _, t := range assessment.MBTITypes {
		p := 1.0
		for _, a := range assessment.Axes {
			if t.HasFirstLetter(a) {
				p *= first[a]
			} else {
				p *= 1 - first[a]
			}
		}
		raw[t] = p
	}
	return normalizeMBTI(raw)
}

func detectConflicts(d assessment.Distribution) []string {
	out := []string{}
	for _, a := range assessment.Axes {
		ev := d.AxisEvidence[a]
		if ev.Positive >= flipEvidenceMin && ev.Negative >= flipEvidenceMin {
			out = append(out, AxisFlipConflict(a))
		}
	}
	if math.Abs(d.AxisScores[assessment.AxisTF]) < tfNearZero && d.AxisEvidence[assessment.AxisTF].Total() >= tfEvidenceMin {
		out = append(out, conflictTFCrossing)
	}
	top := TopEnneagram(d.EnneagramProbs, 2)
	if len(top) >= 2 && top[0].P-top[1].P < enneaSeparationMin {
		out = append(out, conflictEnneaNarrow)
	}
	return dedupe(out)
}

func sigmoid(x float64) float64 { return 1 / (1 + math.Exp(-x)) }

func softmax(scores map[assessment.EnneagramType]float64) map[assessment.EnneagramType]float64 {
	maxV := math.Inf(-1)
	for _, t := range assessment.EnneagramTypes {
		if v := scores[t]; v > maxV {
			maxV = v
		}
	}
	exp := make(map[assessment.EnneagramType]float64, len(assessment.EnneagramTypes))
	sum := 0.0
	for _, t := range assessment.EnneagramTypes {
		e := math.Exp(scores[t] - maxV)
		exp[t] = e
		sum += e
	}
	if math.IsNaN(sum) || math.IsInf(sum, 0) || sum <= 0 {
		return normalizeEnnea(scores)
	}
	for t := range exp {
		exp[t] /= sum
	}
	return exp
}

func normalizeMBTI(in map[assessment.MBTIType]float64) map[assessment.MBTIType]float64 {
	total := 0.0
	for _, t := range assessment.MBTITypes {
		total += positive(in[t])
	}
	if !finitePositive(total) {
		return uniformMBTI()
	}
	out := make(map[assessment.MBTIType]float64, len(assessment.MBTITypes))
	for _, t := range assessment.MBTITypes {
		out[t] = positive(in[t]) / total
	}
	return out
}

func normalizeEnnea(in map[assessment.EnneagramType]float64) map[assessment.EnneagramType]float64 {
	total := 0.0
	for _, t := range assessment.EnneagramTypes {
		total += positive(in[t])
	}
	if !finitePositive(total) {
		return uniformEnnea()
	}
	out := make(map[assessment.EnneagramType]float64, len(assessment.EnneagramTypes))
	for _, t := range assessment.EnneagramTypes {
		out[t] = positive(in[t]) / total
	}
	return out
}

func sanitizeMBTI(in map[assessment.MBTIType]float64) map[assessment.MBTIType]float64 {
	merged := make(map[assessment.MBTIType]float64, len(assessment.MBTITypes))
	for _, t := range assessment.MBTITypes {
		merged[t] = in[t]
	}
	return normalizeMBTI(merged)
}

func sanitizeEnnea(in map[assessment.EnneagramType]float64) map[assessment.EnneagramType]float64 {
	merged := make(map[assessment.EnneagramType]float64, len(assessment.EnneagramTypes))
	for _, t := range assessment.EnneagramTypes {
		merged[t] = in[t]
	}
	return normalizeEnnea(merged)
}

func uniformMBTI() map[assessment.MBTIType]float64 {
	out := make(map[assessment.MBTIType]float64, len(assessment.MBTITypes))
	v := 1 / float64(len(assessment.MBTITypes))
	for _, t := range assessment.MBTITypes {
		out[t] = v
	}
	return out
}

func uniformEnnea() map[assessment.EnneagramType]float64 {
	out := make(map[assessment.EnneagramType]float64, len(assessment.EnneagramTypes))
	v := 1 / float64(len(assessment.EnneagramTypes))
	for _, t := range assessment.EnneagramTypes {
		out[t] = v
	}
	return out
}

// positive drops negative and NaN mass.
func positive(v float64) float64 {
	if math.IsNaN(v) || v < 0 {
		return 0
	}
	return v
}

func finitePositive(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0) && v > 0
}

func clamp01(v float64) float64 {
	if math.IsNaN(v) || v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func ensureMaps(d *assessment.Distribution) {
	if d.AxisScores == nil || d.AxisEvidence == nil || d.EnneagramScores == nil {
		fresh := Init()
		if d.AxisScores == nil {
			d.AxisScores = fresh.AxisScores
		}
		if d.AxisEvidence == nil {
			d.AxisEvidence = fresh.AxisEvidence
		}
		if d.EnneagramScores == nil {
			d.EnneagramScores = fresh.EnneagramScores
		}
	}
}

func dedupe(in []string) []string {
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s == "" {
			continue
		}
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}

// TopMBTI ranks the posterior; equal probabilities keep canonical type order.
func TopMBTI(probs map[assessment.MBTIType]float64, n int) []assessment.TypeCandidate {
	out := make([]assessment.TypeCandidate, 0, len(assessment.MBTITypes))
	for _, t := range assessment.MBTITypes {
		if p, ok := probs[t]; ok {
			out = append(out, assessment.TypeCandidate{Type: string(t), P: p})
		}
	}
	return topN(out, n)
}

func TopEnneagram(probs map[assessment.EnneagramType]float64, n int) []assessment.TypeCandidate {
	out := make([]assessment.TypeCandidate, 0, len(assessment.EnneagramTypes))
	for _, t := range assessment.EnneagramTypes {
		if p, ok := probs[t]; ok {
			out = append(out, assessment.TypeCandidate{Type: string(t), P: p})
		}
	}
	return topN(out, n)
}

func topN(in []assessment.TypeCandidate, n int) []assessment.TypeCandidate {
	sort.SliceStable(in, func(i, j int) bool { return in[i].P > in[j].P })
	if n >= 0 && len(in) > n {
		in = in[:n]
	}
	return in
}

func Summarize(d assessment.Distribution) assessment.Summary {
	return assessment.Summary{
		MBTITop3:      TopMBTI(d.MBTIProbs, 3),
		EnneagramTop2: TopEnneagram(d.EnneagramProbs, 2),
		Conflicts:     append([]string{}, d.Conflicts...),
	}
}

// MostUncertainAxis returns the axis with the smallest |score|, first in canonical order on ties.
func MostUncertainAxis(d assessment.Distribution) assessment.Axis {
	best := assessment.AxisIE
	bestV := math.Inf(1)
	for _, a := range assessment.Axes {
		if v := math.Abs(d.AxisScores[a]); v < bestV {
			best, bestV = a, v
		}
	}
	return best
}

func UncertainAxisCount(d assessment.Distribution) int {
	n := 0
	for _, a := range assessment.Axes {
		if math.Abs(d.AxisScores[a]) < UncertainThreshold {
			n++
		}
	}
	return n
}

// FirstLetterMass is the posterior mass on types resolving axis a to its first letter.
func FirstLetterMass(d assessment.Distribution, a assessment.Axis) float64 {
	mass := 0.0
	for _, t := range assessment.MBTITypes {
		if t.HasFirstLetter(a) {
			mass += d.MBTIProbs[t]
		}
	}
	return mass
}

// HasAxisFlip reports whether axis a carries a repeated-opposite-evidence conflict.
func HasAxisFlip(d assessment.Distribution, a assessment.Axis) bool {
	flag := AxisFlipConflict(a)
	for _, c := range d.Conflicts {
		if c == flag {
			return true
		}
	}
	return false
}
