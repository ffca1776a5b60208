package arbitrate

import "fmt"

// Remediation texts.
const (
	RemediationContinue      = "Continue tracking"
	RemediationImmediateFix  = "Immediate fix required"
	RemediationContradiction = "Resolve contradiction"
)

// Remediation derives the remediation text of a result from its final
// score, safety flag and contradiction. A contradiction takes precedence.
func Remediation(res CriterionResult) string {
	switch {
	case res.ContradictionFlag:
		return fmt.Sprintf("%s: %s", RemediationContradiction, res.Contradiction)
	case res.SafetyCritical && res.FinalScore <= 3:
		return fmt.Sprintf("%s: safety-critical criterion scored %d/5", RemediationImmediateFix, res.FinalScore)
	default:
		return RemediationContinue
	}
}
