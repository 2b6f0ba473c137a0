package stopping

import (
	"math"

	"github.com/yungbote/mindtrace-backend/internal/domain/assessment"
	"github.com/yungbote/mindtrace-backend/internal/modules/assessment/distribution"
)

type Reason string

const (
	ReasonContinue  Reason = "continue"
	ReasonEarlyStop Reason = "early_stop"
	ReasonCap       Reason = "cap"
)

const (
	DetailMaxCap               = "max_cap"
	DetailMinQuestions         = "min_questions"
	DetailPhaseNotReady        = "phase_not_ready"
	DetailValidationIncomplete = "validation_incomplete"
	DetailLowConfidence        = "low_confidence"
	DetailConflictHigh         = "conflict_high"
	DetailUnstable             = "unstable"
	DetailThresholdMet         = "threshold_met"
)

// Config holds the confidence and stability thresholds.
type Config struct {
	MBTITop1        float64
	MBTIGap         float64
	EnneaTop1       float64
	EnneaGap        float64
	MaxConflicts    int
	StabilityMin    float64
	StabilityWindow int
	MBTIProbBand    float64
	EnneaProbBand   float64
	MBTIGapBand     float64
	EnneaGapBand    float64
}

func DefaultConfig() Config {
	return Config{
		MBTITop1:        0.63,
		MBTIGap:         0.16,
		EnneaTop1:       0.53,
		EnneaGap:        0.10,
		MaxConflicts:    1,
		StabilityMin:    0.58,
		StabilityWindow: 3,
		MBTIProbBand:    0.05,
		EnneaProbBand:   0.055,
		MBTIGapBand:     0.055,
		EnneaGapBand:    0.055,
	}
}

// Options carries the optional phase gate and validation requirement.
type Options struct {
	Phase                   assessment.Phase
	ValidationCount         int
	RequiredValidationCount int
}

type Metrics struct {
	AnswerCount             int              `json:"answerCount"`
	MinQuestions            int              `json:"minQuestions"`
	MaxQuestions            int              `json:"maxQuestions"`
	MBTITop1                float64          `json:"mbtiTop1"`
	MBTIGap                 float64          `json:"mbtiGap"`
	EnneaTop1               float64          `json:"enneaTop1"`
	EnneaGap                float64          `json:"enneaGap"`
	ConflictCount           int              `json:"conflictCount"`
	StabilityScore          float64          `json:"stabilityScore"`
	Phase                   assessment.Phase `json:"phase,omitempty"`
	ValidationCount         int              `json:"validationCount"`
	RequiredValidationCount int              `json:"requiredValidationCount"`
}

// Decision always carries the snapshot the caller must append to the session history.
type Decision struct {
	Done     bool                    `json:"done"`
	Reason   Reason                  `json:"reason"`
	Detail   string                  `json:"detail"`
	Snapshot assessment.StopSnapshot `json:"snapshot"`
	Metrics  Metrics                 `json:"metrics"`
}

type Engine struct {
	cfg Config
}

func New(cfg Config) *Engine {
	return &Engine{cfg: cfg}
}

func (e *Engine) Config() Config { return e.cfg }

// Evaluate applies the ordered stop rules; the first match wins.
func (e *Engine) Evaluate(d assessment.Distribution, answerCount, minQuestions, maxQuestions int, history []assessment.StopSnapshot, opts Options) Decision {
	snap := BuildSnapshot(d)
	window := make([]assessment.StopSnapshot, 0, len(history)+1)
	window = append(window, history...)
	window = append(window, snap)
	stability := e.Stability(window)

	m := Metrics{
		AnswerCount:             answerCount,
		MinQuestions:            minQuestions,
		MaxQuestions:            maxQuestions,
		MBTITop1:                snap.MBTITopProb,
		MBTIGap:                 snap.MBTIGap,
		EnneaTop1:               snap.EnneaTopProb,
		EnneaGap:                snap.EnneaGap,
		ConflictCount:           len(d.Conflicts),
		StabilityScore:          stability,
		Phase:                   opts.Phase,
		ValidationCount:         opts.ValidationCount,
		RequiredValidationCount: opts.RequiredValidationCount,
	}
	decide := func(done bool, reason Reason, detail string) Decision {
		return Decision{Done: done, Reason: reason, Detail: detail, Snapshot: snap, Metrics: m}
	}

	switch {
	case answerCount >= maxQuestions:
		return decide(true, ReasonCap, DetailMaxCap)
	case answerCount < minQuestions:
		return decide(false, ReasonContinue, DetailMinQuestions)
	case opts.Phase != "" && opts.Phase != assessment.PhaseC:
		return decide(false, ReasonContinue, DetailPhaseNotReady)
	case opts.RequiredValidationCount > 0 && opts.ValidationCount < opts.RequiredValidationCount:
		return decide(false, ReasonContinue, DetailValidationIncomplete)
	}

	mbtiConfident := snap.MBTITopProb >= e.cfg.MBTITop1 && snap.MBTIGap >= e.cfg.MBTIGap
	enneaConfident := snap.EnneaTopProb >= e.cfg.EnneaTop1 && snap.EnneaGap >= e.cfg.EnneaGap
	switch {
	case !mbtiConfident || !enneaConfident:
		return decide(false, ReasonContinue, DetailLowConfidence)
	case len(d.Conflicts) > e.cfg.MaxConflicts:
		return decide(false, ReasonContinue, DetailConflictHigh)
	case stability < e.cfg.StabilityMin:
		return decide(false, ReasonContinue, DetailUnstable)
	}
	return decide(true, ReasonEarlyStop, DetailThresholdMet)
}

// Stability scores the last window of snapshots. Fewer snapshots than the window
// score 0, so stopping is blocked until the window has filled.
func (e *Engine) Stability(snapshots []assessment.StopSnapshot) float64 {
	n := e.cfg.StabilityWindow
	if n <= 0 || len(snapshots) < n {
		return 0
	}
	recent := snapshots[len(snapshots)-n:]

	sameMBTI, sameEnnea := true, true
	mbtiProb := make([]float64, 0, n)
	enneaProb := make([]float64, 0, n)
	mbtiGap := make([]float64, 0, n)
	enneaGap := make([]float64, 0, n)
	for _, s := range recent {
		if s.MBTITop != recent[0].MBTITop {
			sameMBTI = false
		}
		if s.EnneaTop != recent[0].EnneaTop {
			sameEnnea = false
		}
		mbtiProb = append(mbtiProb, s.MBTITopProb)
		enneaProb = append(enneaProb, s.EnneaTopProb)
		mbtiGap = append(mbtiGap, s.MBTIGap)
		enneaGap = append(enneaGap, s.EnneaGap)
	}

	checks := []bool{
		sameMBTI,
		sameEnnea,
		spread(mbtiProb) <= e.cfg.MBTIProbBand,
		spread(enneaProb) <= e.cfg.EnneaProbBand,
		spread(mbtiGap) <= e.cfg.MBTIGapBand,
		spread(enneaGap) <= e.cfg.EnneaGapBand,
	}
	passed := 0
	for _, ok := range checks {
		if ok {
			passed++
		}
	}
	return float64(passed) / float64(len(checks))
}

func BuildSnapshot(d assessment.Distribution) assessment.StopSnapshot {
	mbti := distribution.TopMBTI(d.MBTIProbs, 2)
	ennea := distribution.TopEnneagram(d.EnneagramProbs, 2)

	snap := assessment.StopSnapshot{MBTITop: "INFP", EnneaTop: "5"}
	if len(mbti) > 0 {
		snap.MBTITop = assessment.MBTIType(mbti[0].Type)
		snap.MBTITopProb = mbti[0].P
		if len(mbti) > 1 {
			snap.MBTIGap = math.Max(0, mbti[0].P-mbti[1].P)
		} else {
			snap.MBTIGap = mbti[0].P
		}
	}
	if len(ennea) > 0 {
		snap.EnneaTop = assessment.EnneagramType(ennea[0].Type)
		snap.EnneaTopProb = ennea[0].P
		if len(ennea) > 1 {
			snap.EnneaGap = math.Max(0, ennea[0].P-ennea[1].P)
		} else {
			snap.EnneaGap = ennea[0].P
		}
	}
	return snap
}

func spread(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	lo, hi := values[0], values[0]
	for _, v := range values[1:] {
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
	}
	return hi - lo
}
