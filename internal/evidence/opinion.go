package evidence

import (
	"cmp"
	"fmt"
)

// JudgeRole is one of the three fixed perspectives on the panel.
type JudgeRole string

const (
	Prosecutor JudgeRole = "PROSECUTOR"
	Defense    JudgeRole = "DEFENSE"
	TechLead   JudgeRole = "TECHLEAD"
)

// Roles lists the panel seats in canonical order.
var Roles = []JudgeRole{Prosecutor, Defense, TechLead}

// Rank returns the canonical seat index of the role, or len(Roles) for
// unknown roles.
func (r JudgeRole) Rank() int {
	for i, k := range Roles {
		if k == r {
			return i
		}
	}
	return len(Roles)
}

// Valid reports whether r is one of the three panel roles.
func (r JudgeRole) Valid() bool { return r.Rank() < len(Roles) }

// Score bounds shared by every opinion and final score.
const (
	MinScore     = 1
	MaxScore     = 5
	NeutralScore = 3
)

// Opinion is one judge's score for one criterion.
type Opinion struct {
	Role             JudgeRole `json:"judge_role" yaml:"judge_role" validate:"required,oneof=PROSECUTOR DEFENSE TECHLEAD"`
	CriterionID      string    `json:"criterion_id" yaml:"criterion_id" validate:"nonblank"`
	Score            int       `json:"score" yaml:"score" validate:"min=1,max=5"`
	Rationale        string    `json:"rationale" yaml:"rationale"`
	CitedEvidence    []string  `json:"cited_evidence,omitempty" yaml:"cited_evidence,omitempty"`
	EvaluationFailed bool      `json:"evaluation_failed,omitempty" yaml:"evaluation_failed,omitempty"`
	Synthesized      bool      `json:"synthesized,omitempty" yaml:"synthesized,omitempty"`
}

// DegradedOpinion is the neutral opinion substituted when a judge could not
// evaluate a criterion.
func DegradedOpinion(role JudgeRole, criterionID string, cause error) Opinion {
	reason := "scorer unavailable"
	if cause != nil {
		reason = cause.Error()
	}
	return Opinion{
		Role:             role,
		CriterionID:      criterionID,
		Score:            NeutralScore,
		Rationale:        fmt.Sprintf("evaluation failed, assuming average: %s", reason),
		EvaluationFailed: true,
	}
}

// SynthesizedOpinion fills a panel seat for which no opinion arrived at all.
func SynthesizedOpinion(role JudgeRole, criterionID string) Opinion {
	return Opinion{
		Role:             role,
		CriterionID:      criterionID,
		Score:            NeutralScore,
		Rationale:        "no opinion submitted, assuming average",
		EvaluationFailed: true,
		Synthesized:      true,
	}
}

// CompareOpinions orders opinions by criterion, then seat, then content.
func CompareOpinions(a, b Opinion) int {
	if c := cmp.Compare(a.CriterionID, b.CriterionID); c != 0 {
		return c
	}
	if c := cmp.Compare(a.Role.Rank(), b.Role.Rank()); c != 0 {
		return c
	}
	if c := cmp.Compare(a.Score, b.Score); c != 0 {
		return c
	}
	if c := compareBool(a.EvaluationFailed, b.EvaluationFailed); c != 0 {
		return c
	}
	return cmp.Compare(a.Rationale, b.Rationale)
}
