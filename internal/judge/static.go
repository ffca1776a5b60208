package judge

import (
	"context"
	"fmt"

	"tribunal/internal/evidence"
	"tribunal/internal/rubric"
	"tribunal/internal/store"
)

// Static replays fixed scores, keyed by criterion id. Criteria without a
// score fail, which the panel turns into a degraded opinion. Fail makes
// every evaluation fail.
type Static struct {
	Seat   evidence.JudgeRole
	Scores map[string]int
	Fail   error
}

func (s *Static) Role() evidence.JudgeRole { return s.Seat }

func (s *Static) Evaluate(_ context.Context, c rubric.Criterion, ev *store.EvidenceSnapshot) (evidence.Opinion, error) {
	if s.Fail != nil {
		return evidence.Opinion{}, s.Fail
	}
	score, ok := s.Scores[c.ID]
	if !ok {
		return evidence.Opinion{}, fmt.Errorf("no recorded score for %s", c.ID)
	}
	var cited []string
	for _, r := range Relevant(c.ID, ev) {
		cited = append(cited, r.ID)
	}
	return evidence.Opinion{
		Role:          s.Seat,
		CriterionID:   c.ID,
		Score:         score,
		Rationale:     fmt.Sprintf("recorded %s score", s.Seat),
		CitedEvidence: cited,
	}, nil
}
