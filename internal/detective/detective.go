// Package detective contains the evidence-producing collaborators: the
// repository, document and visual inspectors, plus a static inspector that
// replays recorded evidence. Each inspector runs as one task of the
// detective fan-out stage.
package detective

import (
	"context"
	"time"

	"tribunal/internal/evidence"
	"tribunal/internal/fanout"
	"tribunal/internal/rubric"
)

// StageName labels the detective stage in logs, metrics and reports.
const StageName = "detectives"

// Inspector produces evidence records of one category for a set of goals.
// Inspectors report per-goal failures as degraded records and only return
// an error when they cannot continue at all.
type Inspector interface {
	Name() string
	Category() evidence.Category
	Inspect(ctx context.Context, goals []rubric.CriterionGoal, emit fanout.Emit[evidence.Record]) error
}

// Task wraps an inspector as a fan-out task. When the inspector fails or
// times out, every goal it did not report on gets a degraded record.
func Task(in Inspector, goals []rubric.CriterionGoal) fanout.Task[evidence.Record] {
	return fanout.Task[evidence.Record]{
		Name: in.Name(),
		Run: func(ctx context.Context, emit fanout.Emit[evidence.Record]) error {
			return in.Inspect(ctx, goals, emit)
		},
		Degrade: func(err error, emitted []evidence.Record) []evidence.Record {
			return degradeMissing(in, goals, err, emitted)
		},
	}
}

func degradeMissing(in Inspector, goals []rubric.CriterionGoal, err error, emitted []evidence.Record) []evidence.Record {
	if len(goals) == 0 {
		if len(emitted) > 0 {
			return nil
		}
		return []evidence.Record{evidence.DegradedRecord(in.Category(), in.Name(), in.Name()+" inspection", "", err)}
	}
	seen := make(map[string]bool, len(emitted))
	for _, r := range emitted {
		seen[r.Goal] = true
	}
	var out []evidence.Record
	for _, g := range goals {
		if !seen[g.Description] {
			out = append(out, evidence.DegradedRecord(in.Category(), in.Name(), g.Description, "", err))
		}
	}
	return out
}

// Stage builds the detective fan-out stage. Each inspector is given the
// rubric goals of its category; inspectors without goals are left out
// unless they replay recorded evidence.
func Stage(r *rubric.Rubric, deadline time.Duration, parallel int, inspectors ...Inspector) fanout.Stage[evidence.Record] {
	st := fanout.Stage[evidence.Record]{Name: StageName, Deadline: deadline, Parallel: parallel}
	for _, in := range inspectors {
		goals := r.GoalsFor(in.Category())
		if _, replay := in.(*Static); len(goals) == 0 && !replay {
			continue
		}
		st.Tasks = append(st.Tasks, Task(in, goals))
	}
	return st
}

// emitGoal sends one record for a goal, tagging it with the inspector name.
func emitGoal(emit fanout.Emit[evidence.Record], source string, cat evidence.Category, g rubric.CriterionGoal, found bool, content, location, rationale string, confidence float64) error {
	return emit(evidence.Record{
		Category:   cat,
		Goal:       g.Description,
		Found:      found,
		Content:    content,
		Location:   location,
		Rationale:  rationale,
		Confidence: confidence,
		Source:     source,
	})
}

// emitGoalFailure reports a goal the inspector could not evaluate.
func emitGoalFailure(emit fanout.Emit[evidence.Record], source string, cat evidence.Category, g rubric.CriterionGoal, location string, err error) error {
	return emit(evidence.DegradedRecord(cat, source, g.Description, location, err))
}

func requiredHits(g rubric.CriterionGoal) int {
	return max(g.MinHits, 1)
}
