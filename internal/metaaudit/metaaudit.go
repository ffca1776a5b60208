// Package metaaudit consolidates several archived runs of the same target:
// it measures how reliably each piece of evidence reappears, flags judges
// whose scores jump between runs, and derives a stability-weighted
// consensus score per criterion.
package metaaudit

import (
	"cmp"
	"fmt"
	"math"
	"slices"

	"tribunal/internal/evidence"
	"tribunal/internal/logging"
	"tribunal/internal/store"
)

const (
	// TransientBelow is the stability under which evidence is transient.
	TransientBelow = 0.6
	// JumpAbove is the cross-run score span above which a judge is flagged.
	JumpAbove = 1
)

// Stability describes one piece of evidence across runs. Evidence is the
// same when category, location and goal agree; record ids are not compared.
type Stability struct {
	Category  evidence.Category `json:"category"`
	Goal      string            `json:"goal"`
	Location  string            `json:"location"`
	SeenIn    []string          `json:"seen_in"`
	Stability float64           `json:"stability"`
	Transient bool              `json:"transient,omitempty"`
}

// Jump is a judge whose score for one criterion moved by more than
// JumpAbove across runs.
type Jump struct {
	Role        evidence.JudgeRole `json:"judge_role"`
	CriterionID string             `json:"criterion_id"`
	Min         int                `json:"min"`
	Max         int                `json:"max"`
}

// Delta is the score span of the jump.
func (j Jump) Delta() int { return j.Max - j.Min }

// Consensus is the stability-weighted score of one criterion.
type Consensus struct {
	CriterionID string  `json:"criterion_id"`
	MeanScore   float64 `json:"mean_score"`
	Stability   float64 `json:"stability"`
	Score       float64 `json:"score"`
}

// Result is the consolidated view of a set of runs.
type Result struct {
	Runs      int         `json:"runs"`
	Evidence  []Stability `json:"evidence"`
	Jumps     []Jump      `json:"jumps,omitempty"`
	Consensus []Consensus `json:"consensus"`
	Trace     []string    `json:"trace"`
}

// Transient returns the evidence below TransientBelow.
func (r *Result) Transient() []Stability {
	var out []Stability
	for _, s := range r.Evidence {
		if s.Transient {
			out = append(out, s)
		}
	}
	return out
}

// Consolidate folds runs into one Result. The output is sorted and does not
// depend on the order of runs.
func Consolidate(runs []*store.Run) *Result {
	logger := logging.New("metaaudit")
	res := &Result{Runs: len(runs), Evidence: []Stability{}, Consensus: []Consensus{}, Trace: []string{}}
	if len(runs) == 0 {
		logger.Warn("no runs to consolidate")
		return res
	}

	res.Evidence = stabilities(runs)
	for _, s := range res.Evidence {
		if s.Transient {
			logger.Warn("transient evidence", "goal", s.Goal, "location", s.Location, "stability", s.Stability)
			res.Trace = append(res.Trace, fmt.Sprintf("Flagged transient evidence: %s at %q (stability %.2f)", s.Goal, s.Location, s.Stability))
		}
	}

	res.Jumps = jumps(runs)
	for _, j := range res.Jumps {
		logger.Warn("judge score jump", "judge", j.Role, "criterion", j.CriterionID, "delta", j.Delta())
		res.Trace = append(res.Trace, fmt.Sprintf("CRITICAL: %s score jump (Δ%d) for %s across runs", j.Role, j.Delta(), j.CriterionID))
	}

	res.Consensus = consensus(runs, res.Evidence)
	for _, c := range res.Consensus {
		res.Trace = append(res.Trace, fmt.Sprintf("Consensus for %s: %.2f (mean %.2f, stability %.2f)", c.CriterionID, c.Score, c.MeanScore, c.Stability))
	}
	res.Trace = append(res.Trace, fmt.Sprintf("Meta-audit complete across %d runs.", len(runs)))
	logger.Info("runs consolidated", "runs", len(runs), "evidence", len(res.Evidence), "jumps", len(res.Jumps))
	return res
}

type evidenceKey struct {
	cat      evidence.Category
	location string
	goal     string
}

func stabilities(runs []*store.Run) []Stability {
	seen := make(map[evidenceKey][]string)
	for _, run := range runs {
		inRun := make(map[evidenceKey]bool)
		for _, r := range run.Evidence {
			k := evidenceKey{r.Category, r.Location, r.Goal}
			if inRun[k] {
				continue
			}
			inRun[k] = true
			seen[k] = append(seen[k], run.ID)
		}
	}

	out := make([]Stability, 0, len(seen))
	for k, ids := range seen {
		s := float64(len(ids)) / float64(len(runs))
		out = append(out, Stability{
			Category:  k.cat,
			Goal:      k.goal,
			Location:  k.location,
			SeenIn:    slices.Sorted(slices.Values(ids)),
			Stability: s,
			Transient: s < TransientBelow,
		})
	}
	slices.SortFunc(out, func(a, b Stability) int {
		return cmp.Or(
			cmp.Compare(a.Category, b.Category),
			cmp.Compare(a.Goal, b.Goal),
			cmp.Compare(a.Location, b.Location),
		)
	})
	return out
}

func jumps(runs []*store.Run) []Jump {
	type key struct {
		role evidence.JudgeRole
		crit string
	}
	spans := make(map[key]*Jump)
	for _, run := range runs {
		for _, o := range run.Opinions {
			k := key{o.Role, o.CriterionID}
			j, ok := spans[k]
			if !ok {
				spans[k] = &Jump{Role: o.Role, CriterionID: o.CriterionID, Min: o.Score, Max: o.Score}
				continue
			}
			j.Min = min(j.Min, o.Score)
			j.Max = max(j.Max, o.Score)
		}
	}

	var out []Jump
	for _, j := range spans {
		if j.Delta() > JumpAbove {
			out = append(out, *j)
		}
	}
	slices.SortFunc(out, func(a, b Jump) int {
		return cmp.Or(cmp.Compare(a.CriterionID, b.CriterionID), cmp.Compare(a.Role.Rank(), b.Role.Rank()))
	})
	return out
}

func consensus(runs []*store.Run, stab []Stability) []Consensus {
	finals := make(map[string][]int)
	for _, run := range runs {
		for _, c := range run.Criteria {
			finals[c.CriterionID] = append(finals[c.CriterionID], c.FinalScore)
		}
	}

	out := make([]Consensus, 0, len(finals))
	for id, scores := range finals {
		var sum int
		for _, s := range scores {
			sum += s
		}
		mean := float64(sum) / float64(len(scores))
		st := criterionStability(id, stab)
		out = append(out, Consensus{
			CriterionID: id,
			MeanScore:   round2(mean),
			Stability:   round2(st),
			Score:       round2(mean * st),
		})
	}
	slices.SortFunc(out, func(a, b Consensus) int { return cmp.Compare(a.CriterionID, b.CriterionID) })
	return out
}

// criterionStability is the mean stability of the evidence addressing the
// criterion, or 1 when none does.
func criterionStability(id string, stab []Stability) float64 {
	var sum float64
	var n int
	for _, s := range stab {
		if evidence.Matches(id, s.Goal) {
			sum += s.Stability
			n++
		}
	}
	if n == 0 {
		return 1
	}
	return sum / float64(n)
}

func round2(x float64) float64 {
	return math.Round(x*100) / 100
}
