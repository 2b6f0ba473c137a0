package calibration

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/yungbote/mindtrace-backend/internal/domain/assessment"
	"github.com/yungbote/mindtrace-backend/internal/inference/oracle"
	"github.com/yungbote/mindtrace-backend/internal/modules/assessment/distribution"
	"github.com/yungbote/mindtrace-backend/internal/observability"
	"github.com/yungbote/mindtrace-backend/internal/platform/ctxutil"
	"github.com/yungbote/mindtrace-backend/internal/platform/logger"
)

const (
	LiveInterval     = 3
	PrefetchInterval = 4
	MaxConflicts     = 6
)

// Trigger is the state the calibration policy looks at.
type Trigger struct {
	AnswerCount   int
	CuratedCount  int
	MaxQuestions  int
	ConflictCount int
	Interval      int
}

// ShouldCalibrate gates oracle recalibration. Nothing is attempted inside the
// curated prefix; afterwards the phase transition, any conflict, the last two
// slots before the cap, and every Interval-th answer trigger a call.
func ShouldCalibrate(t Trigger) bool {
	if t.AnswerCount < t.CuratedCount {
		return false
	}
	switch {
	case t.AnswerCount == t.CuratedCount:
		return true
	case t.ConflictCount > 0:
		return true
	case t.AnswerCount >= t.MaxQuestions-2:
		return true
	case t.Interval > 0 && t.AnswerCount%t.Interval == 0:
		return true
	}
	return false
}

type Result struct {
	Attempted    bool
	Applied      bool
	Distribution assessment.Distribution
}

func (r Result) Info() assessment.CalibrationInfo {
	return assessment.CalibrationInfo{Attempted: r.Attempted, Applied: r.Applied}
}

type Calibrator struct {
	oracle  oracle.Requester
	weight  float64
	log     *logger.Logger
	metrics *observability.Metrics
}

func New(o oracle.Requester, log *logger.Logger, metrics *observability.Metrics) *Calibrator {
	if log == nil {
		log = logger.NewNop()
	}
	return &Calibrator{oracle: o, weight: distribution.DefaultBlendWeight, log: log, metrics: metrics}
}

// Calibrate asks the oracle to rescore d after answer to q and blends the
// reply in. d is never mutated; on any oracle failure the returned
// distribution is d unchanged and Applied is false. path labels the caller
// (live or prefetch) in metrics.
func (c *Calibrator) Calibrate(ctx context.Context, path string, d assessment.Distribution, q assessment.Question, answer assessment.Answer) Result {
	update, outcome := oracle.Call(ctx, c.oracle, oracle.Request{
		Label:  oracle.LabelDistributionUpdate,
		System: calibrationSystemPrompt,
		User:   calibrationUserPrompt(d, q, answer),
		Schema: updateSchema,
	}, func() *assessment.Update { return nil })

	res := Result{Attempted: outcome != oracle.OutcomeDisabled, Distribution: d}
	if update != nil && outcome == oracle.OutcomeModel {
		if len(update.Conflicts) > MaxConflicts {
			update.Conflicts = update.Conflicts[:MaxConflicts]
		}
		res.Distribution = distribution.Blend(d, update, c.weight)
		res.Applied = true
	}
	c.metrics.IncCalibration(path, res.Applied)
	c.log.Full("calibration.result",
		"request_id", ctxutil.RequestID(ctx),
		"path", path,
		"question_id", q.ID,
		"attempted", res.Attempted,
		"applied", res.Applied,
		"outcome", string(outcome),
	)
	return res
}

const calibrationSystemPrompt = "You are calibrating MBTI16 and Enneagram9 posterior distributions. " +
	"Return valid JSON only. Respect current posterior and answer signal; adjust smoothly, not abruptly."

func calibrationUserPrompt(d assessment.Distribution, q assessment.Question, answer assessment.Answer) string {
	summary := map[string]any{
		"axisScores":    d.AxisScores,
		"mbtiTop3":      distribution.TopMBTI(d.MBTIProbs, 3),
		"enneagramTop3": distribution.TopEnneagram(d.EnneagramProbs, 3),
		"conflicts":     d.Conflicts,
	}
	return strings.Join([]string{
		"Question text: " + q.Text,
		"Targets: " + toJSON(q.Targets),
		"Scoring reference: " + toJSON(q.Effect.Weights()),
		"Answer: " + string(answer),
		"Current distribution summary: " + toJSON(summary),
		"Return JSON with mbtiProbs16(16 types), enneagramProbs9(types 1-9), conflicts(list).",
		"Probabilities must each sum to 1.0 approximately.",
	}, "\n")
}

var updateSchema = map[string]any{
	"type":                 "object",
	"additionalProperties": false,
	"properties": map[string]any{
		"mbtiProbs16":     map[string]any{"type": "object", "additionalProperties": map[string]any{"type": "number"}},
		"enneagramProbs9": map[string]any{"type": "object", "additionalProperties": map[string]any{"type": "number"}},
		"conflicts":       map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
	},
	"required": []string{"mbtiProbs16", "enneagramProbs9", "conflicts"},
}

func toJSON(v any) string {
	b, err := json.Marshal(v)
	if err != nil {
		return "{}"
	}
	return string(b)
}
