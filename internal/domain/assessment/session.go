package assessment

import "time"

type HesitationReason string

const (
	HesitationAmbiguousMeaning HesitationReason = "ambiguous_meaning"
	HesitationDidOtherTasks    HesitationReason = "did_other_tasks"
)

func (h HesitationReason) Valid() bool {
	return h == HesitationAmbiguousMeaning || h == HesitationDidOtherTasks
}

type AnswerMeta struct {
	DwellMs          int64            `json:"dwellMs,omitempty"`
	HesitationReason HesitationReason `json:"hesitationReason,omitempty"`
	Deferred         bool             `json:"deferred,omitempty"`
	ConfidenceWeight float64          `json:"confidenceWeight"`
}

type AnswerRecord struct {
	QuestionID string     `json:"questionId"`
	Answer     Answer     `json:"answer"`
	AnsweredAt time.Time  `json:"answeredAt"`
	Targets    Targets    `json:"targets"`
	Meta       AnswerMeta `json:"meta"`
}

// Weight returns the stored confidence weight, treating an unset weight as full confidence.
func (r AnswerRecord) Weight() float64 {
	if r.Meta.ConfidenceWeight <= 0 {
		return 1
	}
	return r.Meta.ConfidenceWeight
}

type StopSnapshot struct {
	MBTITop      MBTIType      `json:"mbtiTop"`
	MBTITopProb  float64       `json:"mbtiTopProb"`
	MBTIGap      float64       `json:"mbtiGap"`
	EnneaTop     EnneagramType `json:"enneaTop"`
	EnneaTopProb float64       `json:"enneaTopProb"`
	EnneaGap     float64       `json:"enneaGap"`
}

type CalibrationInfo struct {
	Attempted bool `json:"attempted"`
	Applied   bool `json:"applied"`
}

type GenerationInfo struct {
	Source       string `json:"source"`
	UsedModel    bool   `json:"usedModel"`
	RetryCount   int    `json:"retryCount"`
	UsedFallback bool   `json:"usedFallback"`
}

// PrefetchBranch is the complete speculative outcome for one answer.
type PrefetchBranch struct {
	Answer       Answer           `json:"answer"`
	Done         bool             `json:"done"`
	Reason       string           `json:"reason"`
	Detail       string           `json:"detail"`
	Phase        Phase            `json:"phase"`
	NextQuestion *Question        `json:"nextQuestion,omitempty"`
	Distribution Distribution     `json:"distribution"`
	Summary      Summary          `json:"summary"`
	Snapshot     StopSnapshot     `json:"snapshot"`
	LatencyMs    int64            `json:"latencyMs"`
	Calibration  CalibrationInfo  `json:"modelCalibration"`
	Generation   *GenerationInfo  `json:"questionGeneration,omitempty"`
}

func (b *PrefetchBranch) Clone() *PrefetchBranch {
	if b == nil {
		return nil
	}
	out := *b
	out.Distribution = b.Distribution.Clone()
	if b.NextQuestion != nil {
		q := b.NextQuestion.Clone()
		out.NextQuestion = &q
	}
	out.Summary = Summary{
		MBTITop3:      append([]TypeCandidate(nil), b.Summary.MBTITop3...),
		EnneagramTop2: append([]TypeCandidate(nil), b.Summary.EnneagramTop2...),
		Conflicts:     append([]string(nil), b.Summary.Conflicts...),
	}
	if b.Generation != nil {
		g := *b.Generation
		out.Generation = &g
	}
	return &out
}

// PrefetchEntry caches both branches for one pending question. It is valid only
// while the session's answer count equals BaseAnswerCount.
type PrefetchEntry struct {
	QuestionID      string                     `json:"questionId"`
	BaseAnswerCount int                        `json:"baseAnswerCount"`
	CreatedAt       time.Time                  `json:"createdAt"`
	InFlight        bool                       `json:"inFlight"`
	CompletedAt     *time.Time                 `json:"completedAt,omitempty"`
	Branches        map[Answer]*PrefetchBranch `json:"branches"`
	Errors          map[Answer]string          `json:"errors"`
}

func (e *PrefetchEntry) Clone() *PrefetchEntry {
	if e == nil {
		return nil
	}
	out := *e
	if e.CompletedAt != nil {
		t := *e.CompletedAt
		out.CompletedAt = &t
	}
	out.Branches = make(map[Answer]*PrefetchBranch, len(e.Branches))
	for k, v := range e.Branches {
		out.Branches[k] = v.Clone()
	}
	out.Errors = make(map[Answer]string, len(e.Errors))
	for k, v := range e.Errors {
		out.Errors[k] = v
	}
	return &out
}

type Quadra string

const (
	QuadraNT Quadra = "NT"
	QuadraST Quadra = "ST"
	QuadraNF Quadra = "NF"
	QuadraSF Quadra = "SF"
)

type StyleTags struct {
	Quadra Quadra `json:"quadra"`
	Tone   string `json:"tone"`
}

type MBTIResult struct {
	Top        MBTIType        `json:"top"`
	Candidates []TypeCandidate `json:"candidates"`
}

type EnneagramResult struct {
	Top        string          `json:"top"`
	Candidates []TypeCandidate `json:"candidates"`
}

type FinalReport struct {
	SessionID       string          `json:"sessionId"`
	MBTI            MBTIResult      `json:"mbti"`
	Enneagram       EnneagramResult `json:"enneagram"`
	Nickname        string          `json:"nickname_ko"`
	Narrative       string          `json:"narrative_ko"`
	Misperception   string          `json:"misperception_ko"`
	ShortCaption    string          `json:"short_caption_ko"`
	StyleTags       StyleTags       `json:"style_tags"`
}

func (r *FinalReport) Clone() *FinalReport {
	if r == nil {
		return nil
	}
	out := *r
	out.MBTI.Candidates = append([]TypeCandidate(nil), r.MBTI.Candidates...)
	out.Enneagram.Candidates = append([]TypeCandidate(nil), r.Enneagram.Candidates...)
	return &out
}

// Session is the aggregate root. QuestionHistory[i] prompted Answers[i]; while
// the session is running the history holds one extra pending tail question.
type Session struct {
	ID            string                    `json:"id"`
	Token         string                    `json:"-"`
	CreatedAt     time.Time                 `json:"createdAt"`
	ExpiresAt     time.Time                 `json:"expiresAt"`
	LastUpdatedAt time.Time                 `json:"lastUpdatedAt"`
	Done          bool                      `json:"done"`
	Finalized     bool                      `json:"finalized"`
	Phase         Phase                     `json:"phase"`
	History       []Question                `json:"questionHistory"`
	Answers       []AnswerRecord            `json:"answers"`
	Distribution  Distribution              `json:"distribution"`
	StopSnapshots []StopSnapshot            `json:"stopSnapshots"`
	Prefetch      map[string]*PrefetchEntry `json:"prefetchByQuestionId"`
	Report        *FinalReport              `json:"report,omitempty"`
}

func (s *Session) AnswerCount() int { return len(s.Answers) }

// PendingQuestion returns the unanswered tail question, if any.
func (s *Session) PendingQuestion() (Question, bool) {
	if len(s.History) == 0 || len(s.History) <= len(s.Answers) {
		return Question{}, false
	}
	return s.History[len(s.History)-1], true
}

// CurrentQuestion returns the last question in history, answered or not.
func (s *Session) CurrentQuestion() (Question, bool) {
	if len(s.History) == 0 {
		return Question{}, false
	}
	return s.History[len(s.History)-1], true
}

func (s *Session) HasAnswered(questionID string) bool {
	for _, a := range s.Answers {
		if a.QuestionID == questionID {
			return true
		}
	}
	return false
}

// AnsweredQuestion returns the question that prompted the i-th answer.
func (s *Session) AnsweredQuestion(i int) (Question, bool) {
	if i < 0 || i >= len(s.Answers) || i >= len(s.History) {
		return Question{}, false
	}
	return s.History[i], true
}

func (s *Session) Expired(now time.Time) bool {
	return !s.ExpiresAt.IsZero() && !now.Before(s.ExpiresAt)
}

func (s *Session) Clone() *Session {
	if s == nil {
		return nil
	}
	out := *s
	out.History = make([]Question, len(s.History))
	for i, q := range s.History {
		out.History[i] = q.Clone()
	}
	out.Answers = make([]AnswerRecord, len(s.Answers))
	for i, a := range s.Answers {
		a.Targets = a.Targets.Clone()
		out.Answers[i] = a
	}
	out.Distribution = s.Distribution.Clone()
	out.StopSnapshots = append([]StopSnapshot(nil), s.StopSnapshots...)
	out.Prefetch = make(map[string]*PrefetchEntry, len(s.Prefetch))
	for k, v := range s.Prefetch {
		out.Prefetch[k] = v.Clone()
	}
	out.Report = s.Report.Clone()
	return &out
}
