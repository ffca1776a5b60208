package audit

import (
	"fmt"

	"tribunal/internal/arbitrate"
	"tribunal/internal/evidence"
	"tribunal/internal/logging"
	"tribunal/internal/rubric"
	"tribunal/internal/store"
)

// Submission is one criterion scored outside the pipeline, e.g. from the
// CLI or an MCP client.
type Submission struct {
	CriterionID string
	// Scores by seat. A seat left out is synthesized by the panel rule.
	Scores   map[evidence.JudgeRole]int
	Evidence []evidence.Record
	// StageConfidence defaults to the mean confidence of Evidence.
	StageConfidence float64
	// Policy replaces the rubric policy of the criterion when set.
	Policy *arbitrate.Policy
}

// Arbitrate runs the rule pipeline over a single submission. Unknown
// criteria are accepted and keep their id as name.
func Arbitrate(r *rubric.Rubric, sub Submission) (arbitrate.CriterionResult, error) {
	if sub.CriterionID == "" {
		return arbitrate.CriterionResult{}, fmt.Errorf("arbitrate: criterion id is required")
	}
	if r == nil {
		r = rubric.Default()
	}

	var ops []evidence.Opinion
	for _, role := range []evidence.JudgeRole{evidence.Prosecutor, evidence.Defense, evidence.TechLead} {
		score, ok := sub.Scores[role]
		if !ok {
			continue
		}
		o := evidence.Opinion{Role: role, CriterionID: sub.CriterionID, Score: score, Rationale: "submitted score"}
		if err := evidence.ValidateOpinion(o); err != nil {
			return arbitrate.CriterionResult{}, fmt.Errorf("arbitrate: %w", err)
		}
		ops = append(ops, o)
	}

	snap, err := store.FreezeEvidence(sub.Evidence...)
	if err != nil {
		return arbitrate.CriterionResult{}, fmt.Errorf("arbitrate: %w", err)
	}

	cfg := r.Config()
	name := sub.CriterionID
	if c, err := r.Criterion(sub.CriterionID); err == nil {
		name = c.Name
	}
	if sub.Policy != nil {
		cfg.Policies[sub.CriterionID] = *sub.Policy
	}
	confidence := sub.StageConfidence
	if confidence == 0 {
		confidence = store.StageConfidence(snap)
	}

	eng := arbitrate.NewEngine(cfg, arbitrate.WithLogger(logging.New("arbitrate")))
	return eng.Arbitrate(arbitrate.Case{
		CriterionID:     sub.CriterionID,
		Name:            name,
		Opinions:        ops,
		Evidence:        snap.All(),
		StageConfidence: confidence,
	}), nil
}
