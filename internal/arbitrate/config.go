package arbitrate

import (
	"fmt"

	"tribunal/internal/evidence"
)

// Thresholds are the numeric gates of the rule pipeline.
type Thresholds struct {
	// Spread is the max-min distance across active judges that triggers
	// variance arbitration.
	Spread int `json:"spread" yaml:"spread" validate:"min=1,max=4"`
	// PruneConfidence must be strictly exceeded by stage confidence before
	// an outlier is pruned.
	PruneConfidence float64 `json:"prune_confidence" yaml:"prune_confidence" validate:"gte=0,lte=1"`
	// ContradictionPenalty is subtracted from the baseline on contradiction.
	ContradictionPenalty int `json:"contradiction_penalty" yaml:"contradiction_penalty" validate:"min=0,max=4"`
	// ContradictionConfidence must be strictly exceeded by a record before it
	// can take part in a contradiction.
	ContradictionConfidence float64 `json:"contradiction_confidence" yaml:"contradiction_confidence" validate:"gte=0,lte=1"`
	// SecurityTrigger is the PROSECUTOR score that triggers the override.
	SecurityTrigger int `json:"security_trigger" yaml:"security_trigger" validate:"min=1,max=5"`
	// SecurityCap is the ceiling applied by the override.
	SecurityCap int `json:"security_cap" yaml:"security_cap" validate:"min=1,max=5"`
	// PresentAt and AbsentAt map a score to an implied verdict.
	PresentAt int `json:"present_at" yaml:"present_at" validate:"min=1,max=5,gtfield=AbsentAt"`
	AbsentAt  int `json:"absent_at" yaml:"absent_at" validate:"min=1,max=5"`
}

// DefaultThresholds returns the calibrated defaults.
func DefaultThresholds() Thresholds {
	return Thresholds{
		Spread:                  2,
		PruneConfidence:         0.8,
		ContradictionPenalty:    1,
		ContradictionConfidence: 0.6,
		SecurityTrigger:         1,
		SecurityCap:             3,
		PresentAt:               4,
		AbsentAt:                2,
	}
}

// Policy is the static per-criterion treatment.
type Policy struct {
	SafetyCritical bool `json:"safety_critical" yaml:"safety_critical"`
	// TechLeadMultiplier weights TECHLEAD in the stabilised mean. Values of
	// 1 or less disable weighting.
	TechLeadMultiplier float64 `json:"techlead_multiplier,omitempty" yaml:"techlead_multiplier,omitempty" validate:"gte=0,lte=10"`
}

// Weighted reports whether functionality weighting is configured.
func (p Policy) Weighted() bool { return p.TechLeadMultiplier > 1 }

// Config is everything the engine needs besides the case itself.
type Config struct {
	Thresholds Thresholds        `json:"thresholds" yaml:"thresholds"`
	Policies   map[string]Policy `json:"policies,omitempty" yaml:"policies,omitempty"`
}

// DefaultConfig returns default thresholds and an empty policy table.
func DefaultConfig() Config {
	return Config{Thresholds: DefaultThresholds()}
}

// PolicyFor returns the policy of a criterion. Criteria without an entry
// get no special treatment.
func (c Config) PolicyFor(criterionID string) Policy {
	return c.Policies[criterionID]
}

// Validate checks thresholds and every policy entry.
func (c Config) Validate() error {
	if err := evidence.ValidateStruct("thresholds", c.Thresholds); err != nil {
		return err
	}
	for id, p := range c.Policies {
		if err := evidence.ValidateStruct("policy", p); err != nil {
			return fmt.Errorf("criterion %s: %w", id, err)
		}
	}
	return nil
}
