package judge

import (
	"context"
	"fmt"

	"tribunal/internal/evidence"
	"tribunal/internal/rubric"
	"tribunal/internal/store"
)

// Persona scores deterministically from the evidence, following the
// temperament of its seat: the prosecutor assumes the worst, the defense
// rewards intent and the tech lead only credits what is shown to work.
type Persona struct {
	Seat evidence.JudgeRole
}

// Panel returns the three heuristic judges.
func Panel() []Judge {
	out := make([]Judge, 0, len(evidence.Roles))
	for _, r := range evidence.Roles {
		out = append(out, &Persona{Seat: r})
	}
	return out
}

func (p *Persona) Role() evidence.JudgeRole { return p.Seat }

// tally summarises the usable evidence for a criterion.
type tally struct {
	total, found, degraded int
	confidence             float64 // mean over non-degraded records
	cited                  []string
}

func count(recs []evidence.Record) tally {
	var t tally
	var sum float64
	for _, r := range recs {
		t.cited = append(t.cited, r.ID)
		if r.Degraded {
			t.degraded++
			continue
		}
		t.total++
		sum += r.Confidence
		if r.Found {
			t.found++
		}
	}
	if t.total > 0 {
		t.confidence = sum / float64(t.total)
	}
	return t
}

func (p *Persona) Evaluate(ctx context.Context, c rubric.Criterion, ev *store.EvidenceSnapshot) (evidence.Opinion, error) {
	if err := ctx.Err(); err != nil {
		return evidence.Opinion{}, err
	}
	t := count(Relevant(c.ID, ev))
	var score int
	var why string
	switch p.Seat {
	case evidence.Prosecutor:
		score, why = prosecute(c, t)
	case evidence.Defense:
		score, why = defend(t)
	case evidence.TechLead:
		score, why = review(c, t)
	default:
		return evidence.Opinion{}, fmt.Errorf("unknown seat %q", p.Seat)
	}
	return evidence.Opinion{
		Role:          p.Seat,
		CriterionID:   c.ID,
		Score:         score,
		Rationale:     fmt.Sprintf("%s (%d of %d records found, %d unavailable)", why, t.found, t.total, t.degraded),
		CitedEvidence: t.cited,
	}, nil
}

func prosecute(c rubric.Criterion, t tally) (int, string) {
	switch {
	case t.total == 0:
		return 1, "no verifiable artifact, claim treated as hallucinated"
	case t.found == 0:
		return 1, "every check came back missing"
	case c.SafetyCritical && t.found < t.total:
		return 1, "safety-critical criterion with missing safeguards"
	case t.found < t.total:
		return 2, "partial implementation with gaps"
	default:
		return 3, "nothing to object to beyond standard practice"
	}
}

func defend(t tally) (int, string) {
	switch {
	case t.total == 0:
		return 3, "no evidence either way, effort presumed"
	case t.found == 0:
		return 3, "intent visible even though artifacts are missing"
	case t.found < t.total:
		return 4, "substantial effort with partial artifacts"
	default:
		return 5, "artifacts confirm the intended design"
	}
}

func review(c rubric.Criterion, t tally) (int, string) {
	switch {
	case t.total == 0:
		return 3, "undetermined, no evidence collected"
	case t.found == 0:
		return 1, "not implemented"
	case t.found < t.total:
		return 3, "works in part"
	case c.SafetyCritical && t.confidence < 0.7:
		return 3, "present but weakly evidenced on a safety-critical axis"
	case t.confidence >= 0.7:
		return 5, "implemented and evidenced"
	default:
		return 4, "implemented, evidence moderately confident"
	}
}
