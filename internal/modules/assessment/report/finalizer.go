package report

import (
	"context"
	"encoding/json"
	"regexp"
	"strings"

	"github.com/yungbote/mindtrace-backend/internal/domain/assessment"
	"github.com/yungbote/mindtrace-backend/internal/inference/oracle"
	"github.com/yungbote/mindtrace-backend/internal/modules/assessment/distribution"
	"github.com/yungbote/mindtrace-backend/internal/platform/ctxutil"
	"github.com/yungbote/mindtrace-backend/internal/platform/logger"
)

const promptAnswerWindow = 12

var enneagramLabel = regexp.MustCompile(`^(?:[1-9]|[1-9]w[1-9])$`)

type Finalizer struct {
	oracle oracle.Requester
	log    *logger.Logger
}

func NewFinalizer(o oracle.Requester, log *logger.Logger) *Finalizer {
	if log == nil {
		log = logger.NewNop()
	}
	return &Finalizer{oracle: o, log: log}
}

type modelTypeResult struct {
	Top        string                     `json:"top"`
	Candidates []assessment.TypeCandidate `json:"candidates"`
}

type modelReport struct {
	MBTI          modelTypeResult `json:"mbti"`
	Enneagram     modelTypeResult `json:"enneagram"`
	Nickname      string          `json:"nickname_ko"`
	Narrative     string          `json:"narrative_ko"`
	Misperception string          `json:"misperception_ko"`
	ShortCaption  string          `json:"short_caption_ko"`
	StyleTags     struct {
		Quadra string `json:"quadra"`
		Tone   string `json:"tone"`
	} `json:"style_tags"`
}

// Finalize produces the session report. The oracle writes the prose; its type
// labels are checked against the known types and the deterministic report
// fills anything missing. An unavailable oracle yields Fallback(s).
func (f *Finalizer) Finalize(ctx context.Context, s *assessment.Session) *assessment.FinalReport {
	fallback := Fallback(s)
	out, outcome := oracle.Call(ctx, f.oracle, oracle.Request{
		Label:  oracle.LabelFinalReport,
		System: finalSystemPrompt,
		User:   finalUserPrompt(s),
		Schema: reportSchema,
	}, func() *modelReport { return nil })

	f.log.Full("report.finalize",
		"request_id", ctxutil.RequestID(ctx),
		"session_id", s.ID,
		"outcome", string(outcome),
	)
	if out == nil || outcome != oracle.OutcomeModel {
		return fallback
	}
	return sanitize(s.ID, out, fallback)
}

func sanitize(sessionID string, m *modelReport, fallback *assessment.FinalReport) *assessment.FinalReport {
	var mbti, ennea []assessment.TypeCandidate
	for _, c := range m.MBTI.Candidates {
		if assessment.MBTIType(c.Type).Valid() {
			mbti = append(mbti, c)
		}
	}
	for _, c := range m.Enneagram.Candidates {
		if enneagramLabel.MatchString(c.Type) {
			ennea = append(ennea, c)
		}
	}
	if len(mbti) == 0 {
		mbti = fallback.MBTI.Candidates
	}
	if len(ennea) == 0 {
		ennea = fallback.Enneagram.Candidates
	}

	topEnnea := fallback.Enneagram.Top
	if len(ennea) > 0 {
		topEnnea = ennea[0].Type
	}
	if !strings.Contains(topEnnea, "w") {
		second := "6"
		if len(ennea) > 1 {
			second = ennea[1].Type
		}
		topEnnea = DeriveWing(topEnnea, second)
	}

	top := assessment.MBTIType(m.MBTI.Top)
	if !top.Valid() {
		top = fallback.MBTI.Top
		if len(mbti) > 0 {
			top = assessment.MBTIType(mbti[0].Type)
		}
	}

	quadra := assessment.Quadra(m.StyleTags.Quadra)
	switch quadra {
	case assessment.QuadraNT, assessment.QuadraST, assessment.QuadraNF, assessment.QuadraSF:
	default:
		quadra = fallback.StyleTags.Quadra
	}

	misperception := strings.TrimSpace(m.Misperception)
	switch {
	case misperception == "":
		misperception = fallback.Misperception
	case !strings.HasPrefix(misperception, misperceptionLead):
		misperception = misperceptionPrefix + misperception
	}

	return &assessment.FinalReport{
		SessionID:     sessionID,
		MBTI:          assessment.MBTIResult{Top: top, Candidates: rounded(limit(mbti))},
		Enneagram:     assessment.EnneagramResult{Top: topEnnea, Candidates: rounded(limit(ennea))},
		Nickname:      orDefault(m.Nickname, fallback.Nickname),
		Narrative:     orDefault(m.Narrative, fallback.Narrative),
		Misperception: misperception,
		ShortCaption:  orDefault(m.ShortCaption, fallback.ShortCaption),
		StyleTags:     assessment.StyleTags{Quadra: quadra, Tone: toneC},
	}
}

func limit(in []assessment.TypeCandidate) []assessment.TypeCandidate {
	if len(in) > candidateLimit {
		return in[:candidateLimit]
	}
	return in
}

func orDefault(v, def string) string {
	if strings.TrimSpace(v) == "" {
		return def
	}
	return v
}

const finalSystemPrompt = "You produce a Korean personality summary report (non-medical). " +
	"Tone C: analysis 60 + counseling 40. Avoid diagnosis or clinical claims. Return JSON only."

func finalUserPrompt(s *assessment.Session) string {
	answers := s.Answers
	if len(answers) > promptAnswerWindow {
		answers = answers[len(answers)-promptAnswerWindow:]
	}
	data := map[string]any{
		"answers":      answers,
		"summary":      distribution.Summarize(s.Distribution),
		"topMbti":      distribution.TopMBTI(s.Distribution.MBTIProbs, 3),
		"topEnneagram": distribution.TopEnneagram(s.Distribution.EnneagramProbs, 3),
	}
	b, err := json.Marshal(data)
	if err != nil {
		b = []byte("{}")
	}
	return strings.Join([]string{
		"Input data follows as JSON.",
		string(b),
		"Requirements:",
		"- MBTI candidates should reflect probabilities and include 2-3 items.",
		"- Enneagram top should include wing string like 5w6.",
		`- Include section for misperception vs reality starting with phrase similar to "겉으로는 이렇게 보일 수 있으나 실제로는".`,
		"- nickname should be metaphorical but not overly specific.",
	}, "\n")
}

func typeResultSchema() map[string]any {
	return map[string]any{
		"type":                 "object",
		"additionalProperties": false,
		"properties": map[string]any{
			"top": map[string]any{"type": "string"},
			"candidates": map[string]any{
				"type": "array",
				"items": map[string]any{
					"type":                 "object",
					"additionalProperties": false,
					"properties": map[string]any{
						"type": map[string]any{"type": "string"},
						"p":    map[string]any{"type": "number"},
					},
					"required": []string{"type", "p"},
				},
			},
		},
		"required": []string{"top", "candidates"},
	}
}

var reportSchema = map[string]any{
	"type":                 "object",
	"additionalProperties": false,
	"properties": map[string]any{
		"mbti":             typeResultSchema(),
		"enneagram":        typeResultSchema(),
		"nickname_ko":      map[string]any{"type": "string"},
		"narrative_ko":     map[string]any{"type": "string"},
		"misperception_ko": map[string]any{"type": "string"},
		"short_caption_ko": map[string]any{"type": "string"},
		"style_tags": map[string]any{
			"type":                 "object",
			"additionalProperties": false,
			"properties": map[string]any{
				"quadra": map[string]any{"type": "string", "enum": []string{"NT", "ST", "NF", "SF"}},
				"tone":   map[string]any{"type": "string", "enum": []string{"C"}},
			},
			"required": []string{"quadra", "tone"},
		},
	},
	"required": []string{"mbti", "enneagram", "nickname_ko", "narrative_ko", "misperception_ko", "short_caption_ko", "style_tags"},
}
