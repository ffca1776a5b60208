// Package arbitrate resolves the three judge opinions of one criterion into
// a single score through an ordered, deterministic rule pipeline. Every
// decision is recorded in the rule trace, and replaying a case always
// yields the same score and trace.
package arbitrate

import (
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"tribunal/internal/evidence"
	"tribunal/internal/logging"
	"tribunal/internal/metrics"
)

// Case is the input of one arbitration.
type Case struct {
	CriterionID string
	Name        string
	// Opinions for this criterion. Opinions for other criteria are ignored;
	// missing seats are synthesized as neutral.
	Opinions []evidence.Opinion
	// Evidence is the frozen evidence set of the run. The engine selects the
	// records that match the criterion itself.
	Evidence []evidence.Record
	// StageConfidence is the mean confidence of the evidence snapshot.
	StageConfidence float64
}

// CriterionResult is the arbitrated outcome of one criterion. It is created
// once and never revised.
type CriterionResult struct {
	CriterionID       string                     `json:"criterion_id"`
	Name              string                     `json:"name"`
	JudgeScores       map[evidence.JudgeRole]int `json:"judge_scores"`
	Opinions          []evidence.Opinion         `json:"opinions"`
	RuleTrace         []string                   `json:"rule_trace"`
	BaseScore         int                        `json:"base_score"`
	FinalScore        int                        `json:"final_score"`
	PenaltyApplied    int                        `json:"penalty_applied,omitempty"`
	Remediation       string                     `json:"remediation"`
	ContradictionFlag bool                       `json:"contradiction_flag"`
	Contradiction     string                     `json:"contradiction,omitempty"`
	SafetyCritical    bool                       `json:"safety_critical,omitempty"`
	Invalidated       []evidence.JudgeRole       `json:"invalidated,omitempty"`
	Pruned            evidence.JudgeRole         `json:"pruned,omitempty"`
	DegradedRoles     []evidence.JudgeRole       `json:"degraded_roles,omitempty"`
	Dissent           string                     `json:"dissent,omitempty"`
}

// Engine applies the rule pipeline. It holds no per-case state and is safe
// for concurrent use.
type Engine struct {
	cfg    Config
	rules  []Rule
	logger *slog.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithRules replaces the rule pipeline. Rules run in the given order.
func WithRules(rules ...Rule) Option {
	return func(e *Engine) { e.rules = slices.Clone(rules) }
}

// WithLogger sets the engine logger.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

// NewEngine returns an engine running DefaultRules under cfg.
func NewEngine(cfg Config, opts ...Option) *Engine {
	e := &Engine{cfg: cfg, rules: DefaultRules(), logger: logging.New("arbitrate")}
	for _, o := range opts {
		o(e)
	}
	return e
}

// Config returns the engine configuration.
func (e *Engine) Config() Config { return e.cfg }

// Arbitrate runs the pipeline over one case.
func (e *Engine) Arbitrate(c Case) CriterionResult {
	r := newRuling(c, e.cfg)
	for _, rule := range e.rules {
		lines := rule.Apply(r)
		if len(lines) > 0 {
			metrics.CountRule(rule.Name)
			for _, l := range lines {
				r.trace = append(r.trace, l)
				e.logger.Debug("rule fired", "criterion", c.CriterionID, "rule", rule.Name, "effect", l)
			}
		}
		if r.halted {
			break
		}
	}
	if !r.halted {
		// A custom pipeline without an emit step still yields a bounded score.
		r.final = clampScore(r.score)
	}

	res := r.result()
	metrics.ObserveFinalScore(res.FinalScore)
	e.logger.Info("criterion arbitrated",
		"criterion", c.CriterionID, "final_score", res.FinalScore,
		"base_score", res.BaseScore, "contradiction", res.ContradictionFlag)
	return res
}

// Ruling is the working state threaded through the rule pipeline.
type Ruling struct {
	Case   Case
	Policy Policy
	Th     Thresholds

	// opinions holds exactly one opinion per seat, in canonical seat order.
	opinions [3]evidence.Opinion
	notes    []string

	facts  []evidence.Record
	active []evidence.JudgeRole

	invalidated []evidence.JudgeRole
	pruned      evidence.JudgeRole
	weights     map[evidence.JudgeRole]float64
	capScore    int

	base   int
	score  int
	final  int
	halted bool

	penalty       int
	contradiction string
	dissent       string
	trace         []string
}

func newRuling(c Case, cfg Config) *Ruling {
	r := &Ruling{
		Case:    c,
		Policy:  cfg.PolicyFor(c.CriterionID),
		Th:      cfg.Thresholds,
		weights: make(map[evidence.JudgeRole]float64),
	}
	r.opinions, r.notes = seatPanel(c.CriterionID, c.Opinions)
	r.Case.Evidence = slices.Clone(c.Evidence)
	slices.SortFunc(r.Case.Evidence, evidence.CompareRecords)
	for _, rec := range r.Case.Evidence {
		if !rec.Degraded && evidence.Matches(c.CriterionID, rec.Goal) {
			r.facts = append(r.facts, rec)
		}
	}
	for _, role := range evidence.Roles {
		r.active = append(r.active, role)
		r.weights[role] = 1
	}
	return r
}

// seatPanel returns one opinion per seat. Missing seats are synthesized;
// when a seat has several opinions a genuine one is preferred over a
// degraded one, then the lowest in canonical order wins.
func seatPanel(criterionID string, ops []evidence.Opinion) ([3]evidence.Opinion, []string) {
	var seats [3]evidence.Opinion
	var filled [3]bool
	var notes []string
	sorted := slices.Clone(ops)
	slices.SortFunc(sorted, func(a, b evidence.Opinion) int {
		if a.EvaluationFailed != b.EvaluationFailed {
			if a.EvaluationFailed {
				return 1
			}
			return -1
		}
		return evidence.CompareOpinions(a, b)
	})
	dups := make(map[evidence.JudgeRole]int)
	for _, o := range sorted {
		if o.CriterionID != criterionID || !o.Role.Valid() {
			continue
		}
		i := o.Role.Rank()
		if filled[i] {
			dups[o.Role]++
			continue
		}
		seats[i], filled[i] = o, true
	}
	for i, role := range evidence.Roles {
		if !filled[i] {
			seats[i] = evidence.SynthesizedOpinion(role, criterionID)
			notes = append(notes, fmt.Sprintf("%s seat empty, neutral opinion synthesized", role))
		} else if seats[i].EvaluationFailed {
			notes = append(notes, fmt.Sprintf("%s evaluation failed, assumed average %d", role, seats[i].Score))
		}
		if n := dups[role]; n > 0 {
			notes = append(notes, fmt.Sprintf("%s submitted %d extra opinion(s), ignored", role, n))
		}
	}
	return seats, notes
}

// Score returns the panel score of a seat.
func (r *Ruling) Score(role evidence.JudgeRole) int {
	return r.opinions[role.Rank()].Score
}

// Active returns the judges still taking part, in seat order.
func (r *Ruling) Active() []evidence.JudgeRole { return slices.Clone(r.active) }

func (r *Ruling) deactivate(role evidence.JudgeRole) {
	r.active = slices.DeleteFunc(r.active, func(x evidence.JudgeRole) bool { return x == role })
}

func (r *Ruling) result() CriterionResult {
	res := CriterionResult{
		CriterionID:       r.Case.CriterionID,
		Name:              r.Case.Name,
		JudgeScores:       make(map[evidence.JudgeRole]int, len(evidence.Roles)),
		Opinions:          r.opinions[:],
		RuleTrace:         slices.Clone(r.trace),
		BaseScore:         r.base,
		FinalScore:        r.final,
		PenaltyApplied:    r.penalty,
		ContradictionFlag: r.contradiction != "",
		Contradiction:     r.contradiction,
		SafetyCritical:    r.Policy.SafetyCritical,
		Invalidated:       slices.Clone(r.invalidated),
		Pruned:            r.pruned,
		Dissent:           r.dissent,
	}
	if res.Name == "" {
		res.Name = res.CriterionID
	}
	for _, o := range r.opinions {
		res.JudgeScores[o.Role] = o.Score
		if o.EvaluationFailed {
			res.DegradedRoles = append(res.DegradedRoles, o.Role)
		}
	}
	res.Opinions = slices.Clone(res.Opinions)
	res.Remediation = Remediation(res)
	return res
}

func formatScores(r *Ruling, roles []evidence.JudgeRole) string {
	parts := make([]string, 0, len(roles))
	for _, role := range roles {
		parts = append(parts, fmt.Sprintf("%s=%d", role, r.Score(role)))
	}
	return strings.Join(parts, " ")
}

func clampScore(s int) int {
	return max(evidence.MinScore, min(evidence.MaxScore, s))
}
