// Package flow is the advance pipeline shared by the live answer path and the
// speculative prefetch branches. Callers own the session they pass in: the
// live path hands over its working copy, prefetch hands over a clone.
package flow

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/yungbote/mindtrace-backend/internal/domain/assessment"
	"github.com/yungbote/mindtrace-backend/internal/modules/assessment/bank"
	"github.com/yungbote/mindtrace-backend/internal/modules/assessment/calibration"
	"github.com/yungbote/mindtrace-backend/internal/modules/assessment/distribution"
	"github.com/yungbote/mindtrace-backend/internal/modules/assessment/stopping"
	"github.com/yungbote/mindtrace-backend/internal/modules/assessment/synthesis"
	"github.com/yungbote/mindtrace-backend/internal/observability"
	"github.com/yungbote/mindtrace-backend/internal/platform/ctxutil"
	"github.com/yungbote/mindtrace-backend/internal/platform/logger"
)

var ErrNoPendingQuestion = errors.New("session has no pending question")

// QuestionSource selects how post-curated questions are produced.
type QuestionSource string

const (
	SourceBank     QuestionSource = "bank"
	SourceAdaptive QuestionSource = "adaptive"
)

func ParseQuestionSource(raw string) QuestionSource {
	if QuestionSource(raw) == SourceAdaptive {
		return SourceAdaptive
	}
	return SourceBank
}

// Path distinguishes the live request from a speculative branch; the two use
// different calibration intervals.
type Path string

const (
	PathLive     Path = "live"
	PathPrefetch Path = "prefetch"
)

func (p Path) Interval() int {
	if p == PathPrefetch {
		return calibration.PrefetchInterval
	}
	return calibration.LiveInterval
}

// Next-question sources reported in Outcome.Source.
const (
	NextCurated  = "curated"
	NextBank     = "bank"
	NextModel    = synthesis.SourceModel
	NextFallback = synthesis.SourceFallback
	NextPrefetch = "prefetch"
)

type Config struct {
	MinQuestions   int
	MaxQuestions   int
	QuestionSource QuestionSource
}

type Outcome struct {
	Done         bool
	Decision     stopping.Decision
	Phase        assessment.Phase
	NextQuestion *assessment.Question
	Source       string
	Calibration  assessment.CalibrationInfo
	Generation   *assessment.GenerationInfo
	Selection    *bank.Selection
	Stages       Stages
}

// Stages holds per-stage timings for the answer.metrics event.
type Stages struct {
	DeterministicUpdate time.Duration
	Calibration         time.Duration
	Selection           time.Duration
}

type Pipeline struct {
	cfg        Config
	catalog    *bank.Catalog
	stopper    *stopping.Engine
	calibrator *calibration.Calibrator
	generator  *synthesis.Generator
	log        *logger.Logger
	metrics    *observability.Metrics
	now        func() time.Time
}

type Deps struct {
	Catalog    *bank.Catalog
	Stopper    *stopping.Engine
	Calibrator *calibration.Calibrator
	Generator  *synthesis.Generator
	Log        *logger.Logger
	Metrics    *observability.Metrics
	Now        func() time.Time
}

func New(cfg Config, deps Deps) *Pipeline {
	if deps.Log == nil {
		deps.Log = logger.NewNop()
	}
	if deps.Stopper == nil {
		deps.Stopper = stopping.New(stopping.DefaultConfig())
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	return &Pipeline{
		cfg:        cfg,
		catalog:    deps.Catalog,
		stopper:    deps.Stopper,
		calibrator: deps.Calibrator,
		generator:  deps.Generator,
		log:        deps.Log.With("component", "AssessmentFlow"),
		metrics:    deps.Metrics,
		now:        deps.Now,
	}
}

func (p *Pipeline) Config() Config { return p.cfg }

// FirstQuestion is the opening curated question every session starts with.
func (p *Pipeline) FirstQuestion() assessment.Question {
	if q, ok := p.catalog.Curated(0); ok {
		return q
	}
	return p.catalog.All()[0]
}

// Advance records rec against the pending question of s and runs the rest of
// the pipeline, mutating s in place: deterministic update, gated calibration,
// phase, stop decision, then the next question when the session continues.
func (p *Pipeline) Advance(ctx context.Context, s *assessment.Session, rec assessment.AnswerRecord, path Path) (Outcome, error) {
	q, ok := s.PendingQuestion()
	if !ok {
		return Outcome{}, ErrNoPendingQuestion
	}
	if q.ID != rec.QuestionID {
		return Outcome{}, fmt.Errorf("answer for %q does not match pending question %q", rec.QuestionID, q.ID)
	}
	reqID := ctxutil.RequestID(ctx)
	var out Outcome

	rec.Targets = q.Targets.Clone()
	if rec.AnsweredAt.IsZero() {
		rec.AnsweredAt = p.now()
	}
	s.Answers = append(s.Answers, rec)

	before := make(map[assessment.Axis]float64, len(s.Distribution.AxisScores))
	for k, v := range s.Distribution.AxisScores {
		before[k] = v
	}
	started := time.Now()
	distribution.ApplyInPlace(&s.Distribution, q, rec.Answer, rec.Weight())
	out.Stages.DeterministicUpdate = time.Since(started)

	trig := calibration.Trigger{
		AnswerCount:   s.AnswerCount(),
		CuratedCount:  p.catalog.CuratedCount(),
		MaxQuestions:  p.cfg.MaxQuestions,
		ConflictCount: len(s.Distribution.Conflicts),
		Interval:      path.Interval(),
	}
	if p.calibrator != nil && calibration.ShouldCalibrate(trig) {
		started = time.Now()
		res := p.calibrator.Calibrate(ctx, string(path), s.Distribution, q, rec.Answer)
		s.Distribution = res.Distribution
		out.Calibration = res.Info()
		out.Stages.Calibration = time.Since(started)
	}

	phase := bank.PhaseFor(s, p.cfg.MaxQuestions)
	opts := stopping.Options{Phase: phase}
	if p.cfg.QuestionSource == SourceBank && phase == assessment.PhaseC {
		opts.ValidationCount = bank.CountValidationAnswers(s)
		opts.RequiredValidationCount = 1
	}
	decision := p.stopper.Evaluate(s.Distribution, s.AnswerCount(), p.cfg.MinQuestions, p.cfg.MaxQuestions, s.StopSnapshots, opts)
	s.StopSnapshots = append(s.StopSnapshots, decision.Snapshot)
	s.Phase = phase
	s.LastUpdatedAt = p.now()
	out.Decision = decision
	out.Phase = phase

	p.log.Full("earlyStop.check",
		"request_id", reqID, "session_id", s.ID, "path", string(path),
		"phase", string(phase), "detail", decision.Detail, "metrics", decision.Metrics)
	p.log.Full("answer.score_updates",
		"request_id", reqID, "question_id", q.ID,
		"before_axis", before, "after_axis", s.Distribution.AxisScores,
		"conflicts", s.Distribution.Conflicts)

	if path == PathLive {
		p.metrics.IncStopDecision(string(decision.Reason), decision.Detail)
	}
	if decision.Done {
		s.Done = true
		out.Done = true
		p.log.Full("earlyStop.result", "request_id", reqID, "session_id", s.ID,
			"result", "hit", "reason", string(decision.Reason), "detail", decision.Detail)
		return out, nil
	}
	p.log.Full("earlyStop.result", "request_id", reqID, "session_id", s.ID,
		"result", "skip", "reason", string(decision.Reason), "detail", decision.Detail)

	started = time.Now()
	next := p.nextQuestion(ctx, s, &out)
	out.Stages.Selection = time.Since(started)
	s.History = append(s.History, next)
	out.NextQuestion = &next

	if path == PathLive {
		p.metrics.IncQuestionSource(out.Source)
	}
	p.log.Full("question.source", "request_id", reqID, "session_id", s.ID,
		"path", string(path), "source", out.Source, "question_id", next.ID)
	return out, nil
}

func (p *Pipeline) nextQuestion(ctx context.Context, s *assessment.Session, out *Outcome) assessment.Question {
	n := s.AnswerCount()
	if n < p.catalog.CuratedCount() {
		if q, ok := p.catalog.Curated(n); ok && !asked(s, q.ID) {
			out.Source = NextCurated
			return q
		}
	}

	if p.cfg.QuestionSource == SourceAdaptive {
		var gen synthesis.Generated
		if p.generator != nil {
			gen = p.generator.Generate(ctx, s)
		} else {
			q := synthesis.Fallback(s, synthesis.ShouldUseIncongruence(s))
			gen = synthesis.Generated{Question: q, Source: synthesis.SourceFallback, UsedFallback: true}
		}
		out.Source = gen.Source
		out.Generation = gen.Info()
		return gen.Question
	}

	sel := p.catalog.Select(s, p.cfg.MaxQuestions)
	s.Phase = sel.Phase
	out.Phase = sel.Phase
	out.Selection = &sel
	out.Source = NextBank
	reqID := ctxutil.RequestID(ctx)
	p.log.Full("question.select.score", "request_id", reqID, "session_id", s.ID,
		"phase", string(sel.Phase), "pass", sel.Pass, "top_candidates", sel.Ranked)
	p.log.Full("question.select.reason", "request_id", reqID, "session_id", s.ID,
		"phase", string(sel.Phase), "reason", sel.Reason, "picked_question_id", sel.Question.ID)
	return sel.Question
}

// ApplyBranch replays a precomputed prefetch branch onto s as if Advance had
// run. The branch distribution is taken verbatim.
func (p *Pipeline) ApplyBranch(s *assessment.Session, rec assessment.AnswerRecord, b *assessment.PrefetchBranch) (Outcome, error) {
	q, ok := s.PendingQuestion()
	if !ok {
		return Outcome{}, ErrNoPendingQuestion
	}
	if q.ID != rec.QuestionID || b == nil || b.Answer != rec.Answer {
		return Outcome{}, fmt.Errorf("prefetch branch does not match answer for %q", rec.QuestionID)
	}
	if !b.Done && b.NextQuestion == nil {
		return Outcome{}, errors.New("prefetch branch continues without a next question")
	}
	rec.Targets = q.Targets.Clone()
	if rec.AnsweredAt.IsZero() {
		rec.AnsweredAt = p.now()
	}
	s.Answers = append(s.Answers, rec)
	s.Distribution = b.Distribution.Clone()
	s.StopSnapshots = append(s.StopSnapshots, b.Snapshot)
	s.Phase = b.Phase
	s.LastUpdatedAt = p.now()

	out := Outcome{
		Done:        b.Done,
		Phase:       b.Phase,
		Source:      NextPrefetch,
		Calibration: b.Calibration,
		Generation:  b.Generation,
		Decision: stopping.Decision{
			Done:     b.Done,
			Reason:   stopping.Reason(b.Reason),
			Detail:   b.Detail,
			Snapshot: b.Snapshot,
		},
	}
	p.metrics.IncStopDecision(b.Reason, b.Detail)
	if b.Done {
		s.Done = true
		return out, nil
	}
	next := b.NextQuestion.Clone()
	s.History = append(s.History, next)
	out.NextQuestion = &next
	p.metrics.IncQuestionSource(NextPrefetch)
	return out, nil
}

// Branch runs Advance on a clone of s for one answer at full confidence and
// packages the result. s is never mutated.
func (p *Pipeline) Branch(ctx context.Context, s *assessment.Session, questionID string, answer assessment.Answer) (*assessment.PrefetchBranch, error) {
	started := time.Now()
	work := s.Clone()
	work.Prefetch = nil
	out, err := p.Advance(ctx, work, assessment.AnswerRecord{
		QuestionID: questionID,
		Answer:     answer,
		Meta:       assessment.AnswerMeta{ConfidenceWeight: 1},
	}, PathPrefetch)
	if err != nil {
		return nil, err
	}
	b := &assessment.PrefetchBranch{
		Answer:       answer,
		Done:         out.Done,
		Reason:       string(out.Decision.Reason),
		Detail:       out.Decision.Detail,
		Phase:        work.Phase,
		NextQuestion: out.NextQuestion,
		Distribution: work.Distribution,
		Summary:      distribution.Summarize(work.Distribution),
		Snapshot:     out.Decision.Snapshot,
		LatencyMs:    time.Since(started).Milliseconds(),
		Calibration:  out.Calibration,
		Generation:   out.Generation,
	}
	return b, nil
}

func asked(s *assessment.Session, id string) bool {
	for _, q := range s.History {
		if q.ID == id {
			return true
		}
	}
	return false
}
