// Package audit wires the two fan-out stages, arbitration and report
// compilation into one run.
package audit

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"tribunal/internal/arbitrate"
	"tribunal/internal/detective"
	"tribunal/internal/fanout"
	"tribunal/internal/judge"
	"tribunal/internal/logging"
	"tribunal/internal/report"
	"tribunal/internal/rubric"
	"tribunal/internal/store"
)

// Default stage deadlines.
const (
	DefaultDetectiveDeadline = 2 * time.Minute
	DefaultJudgeDeadline     = 3 * time.Minute
)

// Config holds the configuration of an audit run.
type Config struct {
	Rubric            *rubric.Rubric
	Judges            []judge.Judge
	Inspectors        []detective.Inspector
	DetectiveDeadline time.Duration
	JudgeDeadline     time.Duration
	Parallel          int              // max concurrent tasks per stage; 0 = all at once
	Rules             []arbitrate.Rule // optional; replaces the default rule pipeline
	Archive           store.Archive    // optional; when set, completed runs are saved
}

// DefaultConfig returns the embedded rubric with the heuristic panel.
func DefaultConfig() Config {
	return Config{
		Rubric:            rubric.Default(),
		Judges:            judge.Panel(),
		DetectiveDeadline: DefaultDetectiveDeadline,
		JudgeDeadline:     DefaultJudgeDeadline,
	}
}

// Auditor runs audits under one configuration. It is safe for concurrent use.
type Auditor struct {
	cfg Config
}

// New returns an Auditor. A nil rubric falls back to the embedded default.
func New(cfg Config) *Auditor {
	if cfg.Rubric == nil {
		cfg.Rubric = rubric.Default()
	}
	return &Auditor{cfg: cfg}
}

// Rubric returns the rubric the auditor scores against.
func (a *Auditor) Rubric() *rubric.Rubric { return a.cfg.Rubric }

// RunAudit scores criteria against a frozen evidence snapshot: the judge
// panel fans out over the snapshot, then every criterion is arbitrated and
// the report compiled. It returns once both steps are complete. Judge
// failures degrade opinions and never fail the audit.
func (a *Auditor) RunAudit(ctx context.Context, criteria []rubric.Criterion, ev *store.EvidenceSnapshot) *report.AuditReport {
	return a.audit(ctx, criteria, ev, report.Meta{RunID: NewRunID()})
}

// Run executes the full pipeline against target: detectives, judges,
// arbitration and report. The archive, when configured, receives the run;
// an archive failure is returned together with the report.
func (a *Auditor) Run(ctx context.Context, target string) (*report.AuditReport, error) {
	logger := logging.New("audit").With("target", target)
	if len(a.cfg.Inspectors) == 0 {
		return nil, fmt.Errorf("audit %s: no inspectors configured", target)
	}

	stage := detective.Stage(a.cfg.Rubric, a.cfg.DetectiveDeadline, a.cfg.Parallel, a.cfg.Inspectors...)
	evSnap, reports := fanout.Run(ctx, stage, store.NewEvidenceStore())
	logger.Info("evidence frozen", "records", evSnap.Len(), "confidence", store.StageConfidence(evSnap))

	rep := a.audit(ctx, a.cfg.Rubric.Criteria, evSnap, report.Meta{
		RunID:  NewRunID(),
		Target: target,
		Stages: reports,
	})

	if a.cfg.Archive != nil {
		if err := a.cfg.Archive.SaveRun(rep.Run()); err != nil {
			return rep, fmt.Errorf("archive run %s: %w", rep.RunID, err)
		}
		logger.Info("run archived", "run_id", rep.RunID)
	}
	return rep, nil
}

func (a *Auditor) audit(ctx context.Context, criteria []rubric.Criterion, ev *store.EvidenceSnapshot, meta report.Meta) *report.AuditReport {
	logger := logging.New("audit").With("run_id", meta.RunID)
	if ev == nil {
		ev = store.NewEvidenceStore().Freeze()
	}

	stage := judge.Stage(a.cfg.Judges, criteria, ev, a.cfg.JudgeDeadline, a.cfg.Parallel)
	opSnap, reports := fanout.Run(ctx, stage, store.NewOpinionStore())
	meta.Stages = append(meta.Stages, reports...)

	eng := arbitrate.NewEngine(a.config(criteria), a.engineOptions()...)
	confidence := store.StageConfidence(ev)
	records := ev.All()
	results := make([]arbitrate.CriterionResult, 0, len(criteria))
	for _, c := range criteria {
		results = append(results, eng.Arbitrate(arbitrate.Case{
			CriterionID:     c.ID,
			Name:            c.Name,
			Opinions:        opSnap.Partition(c.ID),
			Evidence:        records,
			StageConfidence: confidence,
		}))
	}

	if meta.GeneratedAt.IsZero() {
		meta.GeneratedAt = time.Now().UTC()
	}
	rep := report.Compile(results, ev, meta)
	logger.Info("audit compiled", "criteria", len(results), "overall_score", rep.OverallScore,
		"contradictions", len(rep.DetectedContradictions), "degraded_tasks", len(rep.Failed()))
	return rep
}

// config is the rubric configuration with the policies of the scored
// criteria layered on top, so ad hoc criteria keep their own flags.
func (a *Auditor) config(criteria []rubric.Criterion) arbitrate.Config {
	cfg := a.cfg.Rubric.Config()
	for _, c := range criteria {
		cfg.Policies[c.ID] = c.Policy()
	}
	return cfg
}

func (a *Auditor) engineOptions() []arbitrate.Option {
	opts := []arbitrate.Option{arbitrate.WithLogger(logging.New("arbitrate"))}
	if len(a.cfg.Rules) > 0 {
		opts = append(opts, arbitrate.WithRules(a.cfg.Rules...))
	}
	return opts
}

// NewRunID returns a fresh run identifier.
func NewRunID() string {
	return "run_" + uuid.NewString()
}
