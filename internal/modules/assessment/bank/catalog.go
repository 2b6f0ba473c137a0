package bank

import (
	"embed"
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/yungbote/mindtrace-backend/internal/domain/assessment"
)

const catalogPathEnv = "QUESTION_CATALOG_YAML"

//go:embed catalog.yaml
var catalogFS embed.FS

type yamlCatalog struct {
	Version   int            `yaml:"version"`
	Curated   []string       `yaml:"curated"`
	Questions []yamlQuestion `yaml:"questions"`
}

type yamlQuestion struct {
	ID               string             `yaml:"id"`
	Text             string             `yaml:"text_ko"`
	Rationale        string             `yaml:"rationale_short"`
	Mode             assessment.Mode    `yaml:"mode"`
	Context          assessment.Context `yaml:"context"`
	Pattern          assessment.Pattern `yaml:"pattern"`
	CooldownGroup    string             `yaml:"cooldown_group"`
	Ambiguity        float64            `yaml:"ambiguity"`
	Quality          float64            `yaml:"quality"`
	ExpressionSignal *float64           `yaml:"expression_signal"`
	JudgmentSignal   *float64           `yaml:"judgment_signal"`
	PhaseHints       []assessment.Phase `yaml:"phase_hints"`
	Targets          assessment.Targets `yaml:"targets"`
	Yes              assessment.Delta   `yaml:"yes"`
}

// Catalog is the immutable, versioned question bank.
type Catalog struct {
	version   int
	questions []assessment.Question
	byID      map[string]int
	curated   []string
}

// ReadCatalog reads the catalog from QUESTION_CATALOG_YAML when set, otherwise
// from the embedded copy.
func ReadCatalog() ([]byte, error) {
	if path := strings.TrimSpace(os.Getenv(catalogPathEnv)); path != "" {
		return os.ReadFile(path)
	}
	return catalogFS.ReadFile("catalog.yaml")
}

func LoadCatalog() (*Catalog, error) {
	data, err := ReadCatalog()
	if err != nil {
		return nil, fmt.Errorf("read question catalog: %w", err)
	}
	return ParseCatalog(data)
}

func ParseCatalog(data []byte) (*Catalog, error) {
	var raw yamlCatalog
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse question catalog: %w", err)
	}
	if len(raw.Questions) == 0 {
		return nil, errors.New("question catalog is empty")
	}

	c := &Catalog{
		version:   raw.Version,
		questions: make([]assessment.Question, 0, len(raw.Questions)),
		byID:      make(map[string]int, len(raw.Questions)),
	}
	for _, q := range raw.Questions {
		if err := validateEntry(q); err != nil {
			return nil, err
		}
		if _, dup := c.byID[q.ID]; dup {
			return nil, fmt.Errorf("duplicate question id %q", q.ID)
		}
		c.byID[q.ID] = len(c.questions)
		c.questions = append(c.questions, assessment.Question{
			ID:        q.ID,
			Text:      q.Text,
			Rationale: q.Rationale,
			Targets:   q.Targets.Clone(),
			Effect:    assessment.SymmetricTransitions(q.Yes),
			Meta: &assessment.Meta{
				Context:          q.Context,
				Mode:             q.Mode,
				Pattern:          q.Pattern,
				CooldownGroup:    q.CooldownGroup,
				AmbiguityScore:   q.Ambiguity,
				QualityScore:     q.Quality,
				ExpressionSignal: q.ExpressionSignal,
				JudgmentSignal:   q.JudgmentSignal,
				PhaseHints:       q.PhaseHints,
			},
		})
	}
	for _, id := range raw.Curated {
		if _, ok := c.byID[id]; !ok {
			return nil, fmt.Errorf("curated question %q not in catalog", id)
		}
		c.curated = append(c.curated, id)
	}
	return c, nil
}

func validateEntry(q yamlQuestion) error {
	if strings.TrimSpace(q.ID) == "" || strings.TrimSpace(q.Text) == "" {
		return errors.New("question entry missing id or text")
	}
	switch q.Mode {
	case assessment.ModeAxisScan, assessment.ModeTieBreak, assessment.ModeValidation:
	default:
		return fmt.Errorf("question %s: unknown mode %q", q.ID, q.Mode)
	}
	if len(q.Targets.MBTIAxes) == 0 {
		return fmt.Errorf("question %s: no target axes", q.ID)
	}
	for _, a := range q.Targets.MBTIAxes {
		if !a.Valid() {
			return fmt.Errorf("question %s: invalid axis %q", q.ID, a)
		}
	}
	for t := range q.Yes.Enneagram {
		if !t.Valid() {
			return fmt.Errorf("question %s: invalid enneagram type %q", q.ID, t)
		}
	}
	return nil
}

func (c *Catalog) Version() int { return c.version }

func (c *Catalog) Len() int { return len(c.questions) }

// All returns copies of every question in catalog order.
func (c *Catalog) All() []assessment.Question {
	out := make([]assessment.Question, len(c.questions))
	for i, q := range c.questions {
		out[i] = q.Clone()
	}
	return out
}

func (c *Catalog) ByID(id string) (assessment.Question, bool) {
	i, ok := c.byID[id]
	if !ok {
		return assessment.Question{}, false
	}
	return c.questions[i].Clone(), true
}

func (c *Catalog) CuratedCount() int { return len(c.curated) }

// Curated returns the i-th question of the fixed opening sequence.
func (c *Catalog) Curated(i int) (assessment.Question, bool) {
	if i < 0 || i >= len(c.curated) {
		return assessment.Question{}, false
	}
	return c.ByID(c.curated[i])
}
