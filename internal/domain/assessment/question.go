package assessment

type Targets struct {
	MBTIAxes  []Axis          `json:"mbtiAxes" yaml:"mbti_axes"`
	Enneagram []EnneagramType `json:"enneagram" yaml:"enneagram"`
}

func (t Targets) Clone() Targets {
	return Targets{
		MBTIAxes:  append([]Axis(nil), t.MBTIAxes...),
		Enneagram: append([]EnneagramType(nil), t.Enneagram...),
	}
}

func (t Targets) HasAxis(a Axis) bool {
	for _, ax := range t.MBTIAxes {
		if ax == a {
			return true
		}
	}
	return false
}

// Delta is a per-axis / per-enneagram-type signed adjustment.
type Delta struct {
	MBTI      map[Axis]float64          `json:"mbti,omitempty" yaml:"mbti"`
	Enneagram map[EnneagramType]float64 `json:"enneagram,omitempty" yaml:"enneagram"`
}

func (d Delta) Clone() Delta {
	out := Delta{}
	if d.MBTI != nil {
		out.MBTI = make(map[Axis]float64, len(d.MBTI))
		for k, v := range d.MBTI {
			out.MBTI[k] = v
		}
	}
	if d.Enneagram != nil {
		out.Enneagram = make(map[EnneagramType]float64, len(d.Enneagram))
		for k, v := range d.Enneagram {
			out.Enneagram[k] = v
		}
	}
	return out
}

// Scaled returns a copy with every weight multiplied by f.
func (d Delta) Scaled(f float64) Delta {
	out := d.Clone()
	for k := range out.MBTI {
		out.MBTI[k] *= f
	}
	for k := range out.Enneagram {
		out.Enneagram[k] *= f
	}
	return out
}

func (d Delta) IsZero() bool { return len(d.MBTI) == 0 && len(d.Enneagram) == 0 }

type EffectKind string

const (
	// EffectScoring holds signed weights combined with answer polarity.
	EffectScoring EffectKind = "scoring"
	// EffectTransitions holds explicit per-answer deltas.
	EffectTransitions EffectKind = "transitions"
)

// Effect is the tagged answer-effect representation of a question.
type Effect struct {
	Kind    EffectKind `json:"kind"`
	Scoring Delta      `json:"scoring,omitempty"`
	Yes     Delta      `json:"yes,omitempty"`
	No      Delta      `json:"no,omitempty"`
}

func ScoringEffect(weights Delta) Effect {
	return Effect{Kind: EffectScoring, Scoring: weights.Clone()}
}

// SymmetricTransitions builds a transition table whose no-deltas negate the yes-deltas.
func SymmetricTransitions(yes Delta) Effect {
	return Effect{Kind: EffectTransitions, Yes: yes.Clone(), No: yes.Scaled(-1)}
}

// Resolve normalizes both representations to the delta applied for answer.
func (e Effect) Resolve(answer Answer) Delta {
	switch e.Kind {
	case EffectTransitions:
		if answer == AnswerYes {
			return e.Yes.Clone()
		}
		return e.No.Clone()
	default:
		return e.Scoring.Scaled(answer.Sign())
	}
}

func (e Effect) Clone() Effect {
	return Effect{Kind: e.Kind, Scoring: e.Scoring.Clone(), Yes: e.Yes.Clone(), No: e.No.Clone()}
}

// Weights returns the yes-direction weights regardless of representation.
func (e Effect) Weights() Delta {
	if e.Kind == EffectTransitions {
		return e.Yes.Clone()
	}
	return e.Scoring.Clone()
}

type Meta struct {
	Context          Context  `json:"context"`
	Mode             Mode     `json:"mode"`
	Pattern          Pattern  `json:"pattern"`
	CooldownGroup    string   `json:"cooldownGroup"`
	AmbiguityScore   float64  `json:"ambiguityScore"`
	QualityScore     float64  `json:"qualityScore"`
	ExpressionSignal *float64 `json:"expressionSignal,omitempty"`
	JudgmentSignal   *float64 `json:"judgmentSignal,omitempty"`
	PhaseHints       []Phase  `json:"phaseHints,omitempty"`
}

func (m Meta) AllowsPhase(p Phase) bool {
	if len(m.PhaseHints) == 0 {
		return true
	}
	for _, h := range m.PhaseHints {
		if h == p {
			return true
		}
	}
	return false
}

var defaultMeta = Meta{
	Context:        ContextDaily,
	Mode:           ModeTieBreak,
	Pattern:        PatternBehavior,
	CooldownGroup:  "unknown",
	AmbiguityScore: 0.3,
	QualityScore:   0.6,
}

// Question is an immutable catalog or generated entry.
type Question struct {
	ID        string  `json:"id"`
	Text      string  `json:"text_ko"`
	Rationale string  `json:"rationale_short"`
	Targets   Targets `json:"targets"`
	Effect    Effect  `json:"effect"`
	Meta      *Meta   `json:"meta,omitempty"`
}

// PublicQuestion is the client-facing projection of a Question.
type PublicQuestion struct {
	ID        string  `json:"id"`
	Text      string  `json:"text_ko"`
	Targets   Targets `json:"targets"`
	Rationale string  `json:"rationale_short"`
}

func (q Question) Public() PublicQuestion {
	return PublicQuestion{ID: q.ID, Text: q.Text, Targets: q.Targets.Clone(), Rationale: q.Rationale}
}

func (q Question) ResolveDelta(answer Answer) Delta { return q.Effect.Resolve(answer) }

// MetaOrDefault returns the question meta, or neutral defaults for untagged questions.
func (q Question) MetaOrDefault() Meta {
	if q.Meta == nil {
		return defaultMeta
	}
	return *q.Meta
}

func (q Question) Mode() Mode { return q.MetaOrDefault().Mode }

func (q Question) Clone() Question {
	out := q
	out.Targets = q.Targets.Clone()
	out.Effect = q.Effect.Clone()
	if q.Meta != nil {
		m := *q.Meta
		m.PhaseHints = append([]Phase(nil), q.Meta.PhaseHints...)
		out.Meta = &m
	}
	return out
}
