package arbitrate

import (
	"fmt"
	"math"
	"slices"
	"strings"

	"tribunal/internal/evidence"
)

// Rule is one step of the pipeline. Apply narrows the active judge set,
// transforms the candidate score, or halts, and returns the trace lines it
// contributes. A rule that returns no lines did not fire.
type Rule struct {
	Name  string
	Apply func(r *Ruling) []string
}

// Rule names, in pipeline order.
const (
	RulePanel                  = "Panel"
	RuleFactSupremacy          = "Fact Supremacy"
	RuleSecurityOverride       = "Security Override"
	RuleVarianceArbitration    = "Variance Arbitration"
	RuleFunctionalityWeighting = "Functionality Weighting"
	RuleStabilization          = "Stabilization"
	RuleContradictionPenalty   = "Contradiction Penalty"
	RuleClampAndEmit           = "Clamp & Emit"
)

// DefaultRules returns the arbitration pipeline in priority order.
func DefaultRules() []Rule {
	return []Rule{
		{Name: RulePanel, Apply: panelRule},
		{Name: RuleFactSupremacy, Apply: factSupremacy},
		{Name: RuleSecurityOverride, Apply: securityOverride},
		{Name: RuleVarianceArbitration, Apply: varianceArbitration},
		{Name: RuleFunctionalityWeighting, Apply: functionalityWeighting},
		{Name: RuleStabilization, Apply: stabilization},
		{Name: RuleContradictionPenalty, Apply: contradictionPenalty},
		{Name: RuleClampAndEmit, Apply: clampAndEmit},
	}
}

// panelRule records degraded seats and summarises disagreement.
func panelRule(r *Ruling) []string {
	var lines []string
	for _, n := range r.notes {
		lines = append(lines, "Panel: "+n)
	}
	lo, hi := extremes(r, evidence.Roles)
	if spread := r.Score(hi) - r.Score(lo); spread > r.Th.Spread {
		r.dissent = fmt.Sprintf("%s scored %d while %s scored %d (spread %d)",
			lo, r.Score(lo), hi, r.Score(hi), spread)
		lines = append(lines, "Panel: dissent, "+r.dissent)
	}
	return lines
}

// factSupremacy removes judges whose implied verdict contradicts
// unambiguous evidence.
func factSupremacy(r *Ruling) []string {
	if len(r.facts) == 0 {
		return nil
	}
	present := r.facts[0].Found
	for _, rec := range r.facts[1:] {
		if rec.Found != present {
			return []string{fmt.Sprintf("Fact Supremacy: %d matching records disagree, evidence ambiguous, no judge invalidated", len(r.facts))}
		}
	}

	verdict := "absent"
	if present {
		verdict = "present"
	}
	var lines []string
	for _, role := range r.Active() {
		s := r.Score(role)
		contradicts := (present && s <= r.Th.AbsentAt) || (!present && s >= r.Th.PresentAt)
		if !contradicts {
			continue
		}
		r.invalidated = append(r.invalidated, role)
		r.deactivate(role)
		lines = append(lines, fmt.Sprintf("Fact Supremacy: %s (score %d) invalidated, %d matching record(s) show the capability %s",
			role, s, len(r.facts), verdict))
	}
	if len(lines) == 0 {
		lines = append(lines, fmt.Sprintf("Fact Supremacy: all judges consistent with evidence (capability %s)", verdict))
	}
	return lines
}

// securityOverride caps safety-critical criteria when the prosecutor found
// a critical flaw. It reads the panel score even when the prosecutor was
// invalidated, since the cap concerns the flaw rather than the verdict.
func securityOverride(r *Ruling) []string {
	if !r.Policy.SafetyCritical {
		return nil
	}
	if r.Score(evidence.Prosecutor) != r.Th.SecurityTrigger {
		return nil
	}
	r.capScore = r.Th.SecurityCap
	return []string{fmt.Sprintf("Security Override Triggered: %s scored %d on a safety-critical criterion, final score capped at %d",
		evidence.Prosecutor, r.Th.SecurityTrigger, r.Th.SecurityCap)}
}

// varianceArbitration prunes at most one low outlier when the panel is
// split and the evidence stage is confident enough.
func varianceArbitration(r *Ruling) []string {
	active := r.Active()
	if len(active) < 2 {
		return nil
	}
	lo, hi := extremes(r, active)
	spread := r.Score(hi) - r.Score(lo)
	if spread < r.Th.Spread {
		if len(r.invalidated) > 0 {
			all, allHi := extremes(r, evidence.Roles)
			if raw := r.Score(allHi) - r.Score(all); raw >= r.Th.Spread {
				return []string{fmt.Sprintf("Variance Arbitration: raw spread %d already resolved by evidentiary invalidation, active spread %d",
					raw, spread)}
			}
		}
		return nil
	}
	conf := r.Case.StageConfidence
	if conf > r.Th.PruneConfidence {
		r.pruned = lo
		r.deactivate(lo)
		return []string{fmt.Sprintf("Variance Arbitration: spread %d, %s (score %d) pruned as outlier (stage confidence %.2f > %.2f)",
			spread, lo, r.Score(lo), conf, r.Th.PruneConfidence)}
	}
	return []string{fmt.Sprintf("Variance Arbitration: spread %d, %s (score %d) kept within calibrated bounds (stage confidence %.2f <= %.2f)",
		spread, lo, r.Score(lo), conf, r.Th.PruneConfidence)}
}

// functionalityWeighting multiplies the TECHLEAD weight for criteria that
// configure it.
func functionalityWeighting(r *Ruling) []string {
	if !r.Policy.Weighted() {
		return nil
	}
	if !slices.Contains(r.active, evidence.TechLead) {
		return []string{fmt.Sprintf("Functionality Weighting: %s inactive, multiplier %s not applied",
			evidence.TechLead, formatWeight(r.Policy.TechLeadMultiplier))}
	}
	r.weights[evidence.TechLead] = r.Policy.TechLeadMultiplier
	return []string{fmt.Sprintf("Functionality Weighting: %s weight %s, other active judges weight 1",
		evidence.TechLead, formatWeight(r.Policy.TechLeadMultiplier))}
}

// stabilization computes the baseline from the active judges.
func stabilization(r *Ruling) []string {
	var lines []string
	pool := r.Active()
	var value float64
	var method string
	switch {
	case len(pool) == 0:
		pool = slices.Clone(evidence.Roles)
		value = mean(r, pool, nil)
		method = "unweighted mean of the full panel (every judge was removed)"
	case r.Policy.Weighted():
		value = mean(r, pool, r.weights)
		method = "weighted mean"
	default:
		value = median(r, pool)
		method = "median"
	}
	r.base = clampScore(roundHalfUp(value))
	r.score = r.base
	lines = append(lines, fmt.Sprintf("Stabilization: %s %.2f of %s, baseline %d",
		method, value, formatScores(r, pool), r.base))

	if r.capScore > 0 && r.score > r.capScore {
		r.score = r.capScore
		lines = append(lines, fmt.Sprintf("Stabilization: baseline %d capped at %d by security override", r.base, r.capScore))
	}
	return lines
}

// contradictionPenalty lowers the score when documentation claims what the
// repository does not show.
func contradictionPenalty(r *Ruling) []string {
	detail := DetectContradiction(r.Case.CriterionID, r.Case.Evidence, r.Th.ContradictionConfidence)
	if detail == "" {
		return nil
	}
	r.contradiction = detail
	r.penalty = r.Th.ContradictionPenalty
	before := r.score
	r.score = max(evidence.MinScore, r.score-r.penalty)
	return []string{fmt.Sprintf("Contradiction Penalty: %s, -%d applied, %d -> %d", detail, r.penalty, before, r.score)}
}

// clampAndEmit bounds the score and ends the pipeline.
func clampAndEmit(r *Ruling) []string {
	r.final = clampScore(r.score)
	if r.capScore > 0 {
		r.final = min(r.final, r.capScore)
	}
	r.halted = true
	return []string{fmt.Sprintf("Clamp & Emit: final score %d", r.final)}
}

// extremes returns the lowest and highest scoring roles. Ties resolve to
// the earliest seat.
func extremes(r *Ruling, roles []evidence.JudgeRole) (lo, hi evidence.JudgeRole) {
	lo, hi = roles[0], roles[0]
	for _, role := range roles[1:] {
		if r.Score(role) < r.Score(lo) {
			lo = role
		}
		if r.Score(role) > r.Score(hi) {
			hi = role
		}
	}
	return lo, hi
}

func mean(r *Ruling, roles []evidence.JudgeRole, weights map[evidence.JudgeRole]float64) float64 {
	var sum, total float64
	for _, role := range roles {
		w := 1.0
		if weights != nil {
			w = weights[role]
		}
		sum += w * float64(r.Score(role))
		total += w
	}
	return sum / total
}

func median(r *Ruling, roles []evidence.JudgeRole) float64 {
	scores := make([]int, 0, len(roles))
	for _, role := range roles {
		scores = append(scores, r.Score(role))
	}
	slices.Sort(scores)
	n := len(scores)
	if n%2 == 1 {
		return float64(scores[n/2])
	}
	return float64(scores[n/2-1]+scores[n/2]) / 2
}

// roundHalfUp rounds to the nearest integer, halves away from zero. Scores
// are positive, so halves round up.
func roundHalfUp(x float64) int {
	return int(math.Round(x))
}

func formatWeight(w float64) string {
	s := fmt.Sprintf("%.2f", w)
	s = strings.TrimRight(s, "0")
	return strings.TrimSuffix(s, ".")
}
