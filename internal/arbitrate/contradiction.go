package arbitrate

import (
	"fmt"

	"tribunal/internal/evidence"
)

// DetectContradiction reports documentation claiming a capability that the
// repository evidence does not show. A claim counts when a confident
// document record for the criterion is found; it is contradicted by a
// confident repository record that was not found, or by the absence of any
// repository record for the criterion while other repository evidence
// exists. The returned detail is empty when there is no contradiction.
func DetectContradiction(criterionID string, records []evidence.Record, minConfidence float64) string {
	var claim *evidence.Record
	var repoAny bool
	var repoMatch []evidence.Record
	for i := range records {
		rec := records[i]
		if rec.Degraded {
			continue
		}
		matches := evidence.Matches(criterionID, rec.Goal)
		switch rec.Category {
		case evidence.Document:
			if matches && claim == nil && rec.Found && rec.Confidence > minConfidence {
				claim = &records[i]
			}
		case evidence.Repository:
			repoAny = true
			if matches {
				repoMatch = append(repoMatch, rec)
			}
		}
	}
	if claim == nil {
		return ""
	}
	for _, rec := range repoMatch {
		if !rec.Found && rec.Confidence > minConfidence {
			return fmt.Sprintf("documentation claims %q (%s) but the repository shows it missing (%s)",
				claim.Goal, where(claim.Location), where(rec.Location))
		}
	}
	if len(repoMatch) == 0 && repoAny {
		return fmt.Sprintf("documentation claims %q (%s) but no repository evidence supports it",
			claim.Goal, where(claim.Location))
	}
	return ""
}

func where(loc string) string {
	if loc == "" {
		return "unknown location"
	}
	return loc
}
