package synthesis

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/yungbote/mindtrace-backend/internal/domain/assessment"
	"github.com/yungbote/mindtrace-backend/internal/inference/oracle"
	"github.com/yungbote/mindtrace-backend/internal/modules/assessment/distribution"
	"github.com/yungbote/mindtrace-backend/internal/platform/ctxutil"
	"github.com/yungbote/mindtrace-backend/internal/platform/logger"
)

// MaxRegenerations is the number of extra oracle attempts after a rejected question.
const MaxRegenerations = 2

// Sources reported in Generated.Source.
const (
	SourceModel    = "model"
	SourceFallback = "fallback"
)

type Generated struct {
	Question     assessment.Question
	Source       string
	UsedModel    bool
	RetryCount   int
	UsedFallback bool
	Quality      Quality
}

func (g Generated) Info() *assessment.GenerationInfo {
	return &assessment.GenerationInfo{
		Source:       g.Source,
		UsedModel:    g.UsedModel,
		RetryCount:   g.RetryCount,
		UsedFallback: g.UsedFallback,
	}
}

type Generator struct {
	oracle oracle.Requester
	log    *logger.Logger
}

func NewGenerator(o oracle.Requester, log *logger.Logger) *Generator {
	if log == nil {
		log = logger.NewNop()
	}
	return &Generator{oracle: o, log: log}
}

type generatedQuestion struct {
	ID        string             `json:"id"`
	Text      string             `json:"text_ko"`
	Targets   assessment.Targets `json:"targets"`
	Rationale string             `json:"rationale_short"`
	Scoring   assessment.Delta   `json:"scoring"`
}

// Generate asks the oracle for the next question and validates each reply. A
// disabled oracle, or MaxRegenerations+1 rejected replies, yields the
// deterministic fallback. s is read only.
func (g *Generator) Generate(ctx context.Context, s *assessment.Session) Generated {
	allow := ShouldUseIncongruence(s)
	recent := RecentQuestions(s)
	uncertain := distribution.MostUncertainAxis(s.Distribution)
	opts := Options{AllowIncongruence: allow}
	reqID := ctxutil.RequestID(ctx)

	var failures []string
	attempts := 0
	for attempt := 0; attempt <= MaxRegenerations; attempt++ {
		raw, outcome := oracle.Call(ctx, g.oracle, oracle.Request{
			Label:  oracle.LabelQuestionGeneration,
			System: generationSystemPrompt(allow),
			User:   generationUserPrompt(s, uncertain, allow, failures),
			Schema: questionSchema,
		}, func() *generatedQuestion { return nil })
		if outcome == oracle.OutcomeDisabled {
			break
		}
		attempts = attempt + 1
		if raw == nil {
			failures = append(failures, fmt.Sprintf("attempt_%d: oracle_error", attempt))
			continue
		}

		q := assessment.Question{
			ID:        fmt.Sprintf("adaptive_%d_%s", s.AnswerCount(), uuid.NewString()[:8]),
			Text:      strings.TrimSpace(raw.Text),
			Rationale: raw.Rationale,
			Targets:   raw.Targets,
			Effect:    assessment.ScoringEffect(raw.Scoring),
		}
		ensured := EnsureScoring(q, uncertain)
		quality := Validate(ensured, recent, opts)
		if quality.Valid {
			g.log.Full("question.filter.pass", "request_id", reqID, "attempt", attempt, "question_id", ensured.ID, "text", ensured.Text)
			return Generated{Question: ensured, Source: SourceModel, UsedModel: true, RetryCount: attempt, Quality: quality}
		}

		failures = append(failures, fmt.Sprintf("attempt_%d: %s", attempt, strings.Join(quality.Reasons, ", ")))
		g.log.Full("question.filter.reject",
			"request_id", reqID,
			"attempt", attempt,
			"text", q.Text,
			"reasons", quality.Reasons,
			"similarity", quality.Similarity,
		)
		if len(quality.AmbiguityFlags) > 0 {
			g.log.Full("question.ambiguity.flag", "request_id", reqID, "attempt", attempt, "flags", quality.AmbiguityFlags)
		}
	}

	fb := Fallback(s, allow)
	g.log.Full("question.filter.fallback",
		"request_id", reqID,
		"attempts", attempts,
		"fallback_question_id", fb.ID,
		"reason_summary", failures,
	)
	return Generated{
		Question:     fb,
		Source:       SourceFallback,
		RetryCount:   max(0, attempts-1),
		UsedFallback: true,
		Quality:      Validate(fb, recent, opts),
	}
}

func generationSystemPrompt(allowIncongruence bool) string {
	mode := "Conflict mode is disabled: avoid incongruence framing."
	if allowIncongruence {
		mode = "Conflict mode is enabled: one incongruence check question is allowed (outer expression vs real judgment), but keep sentence short and concrete."
	}
	return strings.Join([]string{
		"You generate one Korean yes/no scenario question for personality inference.",
		"Must be answerable with yes/no only (no neutral).",
		"Question text must be 18~70 Korean characters and concise.",
		"Use exactly one psychological angle per question: behavior OR internal reaction OR judgment criterion.",
		"Do not mix outer behavior, inner feeling, and decision criterion in one sentence.",
		"If situational, lock context clearly to one of: 업무/공식, 사적 관계, 일반 일상.",
		"Avoid ambiguous context labels like 갈등 회의, 중요한 상황.",
		"Comparison (A vs B) is allowed only within one axis.",
		"Avoid moral framing and socially desirable cues.",
		"Avoid abstract definition statements and avoid translation-like awkward wording.",
		"Forbidden expressions: " + strings.Join(bannedHedgeWords, ", ") + ".",
		mode,
		"Question must be habit/reaction oriented and concise.",
		"Return strict JSON only.",
	}, " ")
}

func generationUserPrompt(s *assessment.Session, uncertain assessment.Axis, allowIncongruence bool, failures []string) string {
	d := s.Distribution
	conflicts := "none"
	if len(d.Conflicts) > 0 {
		conflicts = strings.Join(d.Conflicts, " | ")
	}
	recent := RecentQuestions(s)
	texts := make([]string, 0, len(recent))
	for _, q := range recent {
		texts = append(texts, q.Text)
	}
	mode := "single_dimension_only"
	if allowIncongruence {
		mode = "single_dimension_or_incongruence"
	}
	prev := "none"
	if len(failures) > 0 {
		prev = strings.Join(failures, "; ")
	}
	return strings.Join([]string{
		"Current uncertainty axis: " + string(uncertain),
		"Conflict signals: " + conflicts,
		"Top MBTI: " + mustJSON(distribution.TopMBTI(d.MBTIProbs, 3)),
		"Top Enneagram: " + mustJSON(distribution.TopEnneagram(d.EnneagramProbs, 3)),
		"Recent questions (avoid overlap): " + mustJSON(texts),
		"Question mode: " + mode,
		"Previous filter failures: " + prev,
		"Provide one discriminative question in Korean.",
		"targets.mbtiAxes must include exactly one axis only.",
		"scoring.mbti should use IE/SN/TF/JP with positive value meaning yes -> first letter (I/S/T/J).",
		"scoring.enneagram should contain one to three types with positive weights.",
		"JSON keys: id, text_ko, targets, rationale_short, scoring.",
	}, "\n")
}

var questionSchema = map[string]any{
	"type":                 "object",
	"additionalProperties": false,
	"properties": map[string]any{
		"id":      map[string]any{"type": "string"},
		"text_ko": map[string]any{"type": "string"},
		"targets": map[string]any{
			"type":                 "object",
			"additionalProperties": false,
			"properties": map[string]any{
				"mbtiAxes": map[string]any{
					"type":  "array",
					"items": map[string]any{"type": "string", "enum": []string{"IE", "SN", "TF", "JP"}},
				},
				"enneagram": map[string]any{
					"type":  "array",
					"items": map[string]any{"type": "string", "enum": []string{"1", "2", "3", "4", "5", "6", "7", "8", "9"}},
				},
			},
			"required": []string{"mbtiAxes", "enneagram"},
		},
		"rationale_short": map[string]any{"type": "string"},
		"scoring": map[string]any{
			"type": "object",
			"properties": map[string]any{
				"mbti":      map[string]any{"type": "object", "additionalProperties": map[string]any{"type": "number"}},
				"enneagram": map[string]any{"type": "object", "additionalProperties": map[string]any{"type": "number"}},
			},
			"required": []string{"mbti", "enneagram"},
		},
	},
	"required": []string{"id", "text_ko", "targets", "rationale_short", "scoring"},
}

func mustJSON(v any) string {
	b, err := json.Marshal(v)
	if err != nil {
		return "[]"
	}
	return string(b)
}
