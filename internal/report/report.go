// Package report folds arbitrated criteria into the audit report and renders
// it for humans (Markdown, terminal tables) and machines (JSON).
package report

import (
	"math"
	"slices"
	"time"

	"tribunal/internal/arbitrate"
	"tribunal/internal/evidence"
	"tribunal/internal/fanout"
	"tribunal/internal/store"
)

// Action is one remediation entry, in criteria order.
type Action struct {
	CriterionID string `json:"criterion_id"`
	Name        string `json:"name"`
	FinalScore  int    `json:"final_score"`
	Remediation string `json:"remediation"`
}

// AuditReport is the terminal artifact of a run. It is assembled once.
type AuditReport struct {
	RunID                  string                      `json:"run_id"`
	Target                 string                      `json:"target,omitempty"`
	GeneratedAt            time.Time                   `json:"generated_at"`
	OverallScore           float64                     `json:"overall_score"`
	Criteria               []arbitrate.CriterionResult `json:"criteria"`
	EvidenceSummary        map[evidence.Category]int   `json:"evidence_summary"`
	DetectedContradictions []string                    `json:"detected_contradictions,omitempty"`
	Remediation            []Action                    `json:"remediation"`
	Stages                 []fanout.TaskReport         `json:"stages,omitempty"`

	// Evidence is kept for archiving; it is not part of the rendered report.
	Evidence []evidence.Record `json:"-"`
}

// Meta carries the run context that is not derived from arbitration.
type Meta struct {
	RunID       string
	Target      string
	GeneratedAt time.Time
	Stages      []fanout.TaskReport
}

// Compile builds the report. Criteria keep the given order. Every criterion
// counts toward the overall score, degraded or not. The evidence summary
// comes straight from the snapshot and ignores arbitration outcomes; a nil
// snapshot counts as empty.
func Compile(results []arbitrate.CriterionResult, ev *store.EvidenceSnapshot, meta Meta) *AuditReport {
	rep := &AuditReport{
		RunID:           meta.RunID,
		Target:          meta.Target,
		GeneratedAt:     meta.GeneratedAt,
		OverallScore:    OverallScore(results),
		Criteria:        slices.Clone(results),
		EvidenceSummary: make(map[evidence.Category]int, len(evidence.Categories)),
		Remediation:     make([]Action, 0, len(results)),
		Stages:          slices.Clone(meta.Stages),
	}
	if rep.GeneratedAt.IsZero() {
		rep.GeneratedAt = time.Now().UTC()
	}
	if ev != nil {
		rep.EvidenceSummary = store.CategoryCounts(ev)
		rep.Evidence = ev.All()
	} else {
		for _, c := range evidence.Categories {
			rep.EvidenceSummary[c] = 0
		}
	}
	for _, res := range results {
		if res.ContradictionFlag {
			rep.DetectedContradictions = append(rep.DetectedContradictions, res.CriterionID+": "+res.Contradiction)
		}
		rep.Remediation = append(rep.Remediation, Action{
			CriterionID: res.CriterionID,
			Name:        res.Name,
			FinalScore:  res.FinalScore,
			Remediation: res.Remediation,
		})
	}
	return rep
}

// OverallScore is the unweighted mean of the final scores rounded to one
// decimal, or 0 when there are no criteria.
func OverallScore(results []arbitrate.CriterionResult) float64 {
	if len(results) == 0 {
		return 0
	}
	var sum int
	for _, r := range results {
		sum += r.FinalScore
	}
	return math.Round(float64(sum)/float64(len(results))*10) / 10
}

// Run converts the report into its archived form.
func (r *AuditReport) Run() *store.Run {
	run := &store.Run{
		ID:             r.RunID,
		Target:         r.Target,
		CreatedAt:      r.GeneratedAt,
		OverallScore:   r.OverallScore,
		Evidence:       slices.Clone(r.Evidence),
		Contradictions: slices.Clone(r.DetectedContradictions),
	}
	for _, c := range r.Criteria {
		run.Criteria = append(run.Criteria, store.CriterionScore{
			CriterionID:   c.CriterionID,
			FinalScore:    c.FinalScore,
			Contradiction: c.ContradictionFlag,
		})
		run.Opinions = append(run.Opinions, c.Opinions...)
	}
	return run
}

// Failed returns the stage task reports that did not end ok.
func (r *AuditReport) Failed() []fanout.TaskReport {
	var out []fanout.TaskReport
	for _, s := range r.Stages {
		if s.Status != fanout.StatusOK {
			out = append(out, s)
		}
	}
	return out
}
