// Package rubric defines the evaluation criteria of an audit: what each
// detective looks for, the static arbitration policy per criterion and the
// pipeline thresholds.
package rubric

import (
	"errors"
	"fmt"
	"slices"

	"tribunal/internal/arbitrate"
	"tribunal/internal/evidence"
)

// ErrUnknownCriterion is returned when a criterion id is not in the rubric.
var ErrUnknownCriterion = errors.New("unknown criterion")

// Goal is one thing a detective checks for a criterion. Description is used
// as the evidence goal, so it must mention the criterion.
type Goal struct {
	Description string            `json:"description" yaml:"description" validate:"nonblank"`
	Category    evidence.Category `json:"category" yaml:"category" validate:"required,oneof=REPOSITORY DOCUMENT VISUAL"`
	// Keywords are searched case-insensitively in source files or document
	// text. A goal is found when at least MinHits keywords occur.
	Keywords []string `json:"keywords,omitempty" yaml:"keywords,omitempty"`
	// Paths are glob patterns (relative to the repository root) that must
	// exist, or that restrict the keyword search for repository goals.
	Paths   []string `json:"paths,omitempty" yaml:"paths,omitempty"`
	MinHits int      `json:"min_hits,omitempty" yaml:"min_hits,omitempty" validate:"gte=0"`
	// MinCommits turns a repository goal into a commit-history check: it is
	// found when git log lists at least this many commits.
	MinCommits int `json:"min_commits,omitempty" yaml:"min_commits,omitempty" validate:"gte=0"`
}

// Criterion is one axis of evaluation.
type Criterion struct {
	ID                 string  `json:"id" yaml:"id" validate:"nonblank"`
	Name               string  `json:"name" yaml:"name" validate:"nonblank"`
	Description        string  `json:"description,omitempty" yaml:"description,omitempty"`
	SafetyCritical     bool    `json:"safety_critical,omitempty" yaml:"safety_critical,omitempty"`
	TechLeadMultiplier float64 `json:"techlead_multiplier,omitempty" yaml:"techlead_multiplier,omitempty" validate:"gte=0,lte=10"`
	Goals              []Goal  `json:"goals,omitempty" yaml:"goals,omitempty" validate:"dive"`
}

// Policy returns the arbitration policy of the criterion.
func (c Criterion) Policy() arbitrate.Policy {
	return arbitrate.Policy{SafetyCritical: c.SafetyCritical, TechLeadMultiplier: c.TechLeadMultiplier}
}

// Rubric is a complete criteria set with its thresholds.
type Rubric struct {
	Name       string               `json:"name" yaml:"name"`
	Criteria   []Criterion          `json:"criteria" yaml:"criteria" validate:"min=1,dive"`
	Thresholds arbitrate.Thresholds `json:"thresholds" yaml:"thresholds"`
}

// Config builds the arbitration configuration from the rubric.
func (r *Rubric) Config() arbitrate.Config {
	cfg := arbitrate.Config{Thresholds: r.Thresholds, Policies: make(map[string]arbitrate.Policy, len(r.Criteria))}
	for _, c := range r.Criteria {
		cfg.Policies[c.ID] = c.Policy()
	}
	return cfg
}

// Criterion looks up a criterion by id.
func (r *Rubric) Criterion(id string) (Criterion, error) {
	for _, c := range r.Criteria {
		if c.ID == id {
			return c, nil
		}
	}
	return Criterion{}, fmt.Errorf("%w: %s", ErrUnknownCriterion, id)
}

// IDs returns the criterion ids in rubric order.
func (r *Rubric) IDs() []string {
	ids := make([]string, 0, len(r.Criteria))
	for _, c := range r.Criteria {
		ids = append(ids, c.ID)
	}
	return ids
}

// Select returns a rubric restricted to the given ids, in the order given.
// No ids means the whole rubric.
func (r *Rubric) Select(ids ...string) (*Rubric, error) {
	if len(ids) == 0 {
		return r, nil
	}
	out := &Rubric{Name: r.Name, Thresholds: r.Thresholds}
	for _, id := range ids {
		c, err := r.Criterion(id)
		if err != nil {
			return nil, err
		}
		out.Criteria = append(out.Criteria, c)
	}
	return out, nil
}

// GoalsFor returns every goal of the given category across all criteria,
// paired with its criterion id.
func (r *Rubric) GoalsFor(cat evidence.Category) []CriterionGoal {
	var out []CriterionGoal
	for _, c := range r.Criteria {
		for _, g := range c.Goals {
			if g.Category == cat {
				out = append(out, CriterionGoal{CriterionID: c.ID, Goal: g})
			}
		}
	}
	return out
}

// CriterionGoal is a goal together with the criterion it serves.
type CriterionGoal struct {
	CriterionID string
	Goal
}

// Validate checks structure, thresholds, id uniqueness and that every goal
// description is recognisable as evidence for its criterion.
func (r *Rubric) Validate() error {
	if err := evidence.ValidateStruct("rubric", r); err != nil {
		return err
	}
	if err := r.Config().Validate(); err != nil {
		return err
	}
	var seen []string
	for _, c := range r.Criteria {
		if slices.Contains(seen, c.ID) {
			return fmt.Errorf("duplicate criterion id %q", c.ID)
		}
		seen = append(seen, c.ID)
		for _, g := range c.Goals {
			if !evidence.Matches(c.ID, g.Description) {
				return fmt.Errorf("criterion %s: goal %q does not mention the criterion", c.ID, g.Description)
			}
		}
	}
	return nil
}
