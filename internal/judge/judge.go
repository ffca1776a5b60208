// Package judge contains the opinion-producing collaborators. Each judge
// occupies one seat of the panel and scores every criterion from the
// frozen evidence snapshot.
package judge

import (
	"context"
	"fmt"
	"strings"
	"time"

	"tribunal/internal/evidence"
	"tribunal/internal/fanout"
	"tribunal/internal/rubric"
	"tribunal/internal/store"
)

// StageName labels the judge panel stage.
const StageName = "judges"

// Judge scores one criterion.
type Judge interface {
	Role() evidence.JudgeRole
	Evaluate(ctx context.Context, c rubric.Criterion, ev *store.EvidenceSnapshot) (evidence.Opinion, error)
}

// Task runs one judge over every criterion. A criterion the judge cannot
// evaluate yields a neutral degraded opinion; if the task as a whole fails
// or times out, every criterion it did not reach is degraded too.
func Task(j Judge, criteria []rubric.Criterion, ev *store.EvidenceSnapshot) fanout.Task[evidence.Opinion] {
	return fanout.Task[evidence.Opinion]{
		Name: strings.ToLower(string(j.Role())),
		Run: func(ctx context.Context, emit fanout.Emit[evidence.Opinion]) error {
			for _, c := range criteria {
				if err := ctx.Err(); err != nil {
					return err
				}
				op, err := j.Evaluate(ctx, c, ev)
				if err != nil {
					if ctx.Err() != nil {
						return ctx.Err()
					}
					op = evidence.DegradedOpinion(j.Role(), c.ID, err)
				} else {
					op.Role = j.Role()
					op.CriterionID = c.ID
				}
				if err := emit(op); err != nil {
					return err
				}
			}
			return nil
		},
		Degrade: func(err error, emitted []evidence.Opinion) []evidence.Opinion {
			done := make(map[string]bool, len(emitted))
			for _, o := range emitted {
				done[o.CriterionID] = true
			}
			var out []evidence.Opinion
			for _, c := range criteria {
				if !done[c.ID] {
					out = append(out, evidence.DegradedOpinion(j.Role(), c.ID, err))
				}
			}
			return out
		},
	}
}

// Stage builds the judge panel stage, one task per judge.
func Stage(judges []Judge, criteria []rubric.Criterion, ev *store.EvidenceSnapshot, deadline time.Duration, parallel int) fanout.Stage[evidence.Opinion] {
	st := fanout.Stage[evidence.Opinion]{Name: StageName, Deadline: deadline, Parallel: parallel}
	for _, j := range judges {
		st.Tasks = append(st.Tasks, Task(j, criteria, ev))
	}
	return st
}

// Relevant returns the records of the snapshot that address criterionID,
// in canonical order.
func Relevant(criterionID string, ev *store.EvidenceSnapshot) []evidence.Record {
	return evidence.Filter(ev.All(), criterionID)
}

// Summarize renders the evidence a judge is shown for one criterion.
func Summarize(criterionID string, ev *store.EvidenceSnapshot) string {
	recs := Relevant(criterionID, ev)
	if len(recs) == 0 {
		return "No relevant evidence found."
	}
	var b strings.Builder
	for _, r := range recs {
		status := "MISSING"
		if r.Found {
			status = "FOUND"
		}
		if r.Degraded {
			status = "UNAVAILABLE"
		}
		fmt.Fprintf(&b, "[%s] %s: %s (id %s)\n", r.Category, r.Goal, status, r.ID)
		if r.Location != "" {
			fmt.Fprintf(&b, "  Location: %s\n", r.Location)
		}
		if r.Rationale != "" {
			fmt.Fprintf(&b, "  Rationale: %s\n", r.Rationale)
		}
		fmt.Fprintf(&b, "  Confidence: %.0f%%\n", r.Confidence*100)
	}
	return b.String()
}
