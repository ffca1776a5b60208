// Package display provides human-readable names for machine codes.
//
// Rule: code is for machines, words are for humans.
// Use these functions in CLI output, markdown reports, logs, and docs.
// Keep raw codes for JSON fields, map keys, and equality comparisons.
package display

import (
	"strconv"
	"strings"
)

// --- Evidence Categories ---

var categories = map[string]string{
	"REPOSITORY": "Repository",
	"DOCUMENT":   "Document",
	"VISUAL":     "Visual",
}

// Category returns the human-readable name for an evidence category.
// Unknown codes are returned as-is.
func Category(code string) string {
	if name, ok := categories[code]; ok {
		return name
	}
	return code
}

// --- Judge Roles ---

var roles = map[string]string{
	"PROSECUTOR": "Prosecutor",
	"DEFENSE":    "Defense",
	"TECHLEAD":   "Tech Lead",
}

// Role returns the human-readable name for a judge role.
func Role(code string) string {
	if name, ok := roles[code]; ok {
		return name
	}
	return code
}

// RoleScores renders a role->score map in seat order:
// "Prosecutor 1, Defense 5, Tech Lead 3". Roles without a score are skipped.
func RoleScores(scores map[string]int) string {
	var parts []string
	for _, code := range []string{"PROSECUTOR", "DEFENSE", "TECHLEAD"} {
		if s, ok := scores[code]; ok {
			parts = append(parts, Role(code)+" "+strconv.Itoa(s))
		}
	}
	return strings.Join(parts, ", ")
}

// --- Pipeline Stages ---

var stages = map[string]string{
	"detectives": "Evidence Collection",
	"judges":     "Judicial Panel",
	"arbitrate":  "Arbitration",
	"report":     "Report",
}

// Stage returns the human-readable name for a pipeline stage.
// "detectives" -> "Evidence Collection".
func Stage(code string) string {
	if name, ok := stages[code]; ok {
		return name
	}
	return code
}

// StagePath converts a slice of stage codes to a human-readable path.
// ["detectives", "judges"] -> "Evidence Collection → Judicial Panel"
func StagePath(codes []string) string {
	names := make([]string, len(codes))
	for i, c := range codes {
		names[i] = Stage(c)
	}
	return strings.Join(names, " → ")
}

// --- Task Status ---

var statuses = map[string]string{
	"ok":        "OK",
	"failed":    "Failed",
	"timed_out": "Timed Out",
}

// Status returns the human-readable name for a task status.
func Status(code string) string {
	if name, ok := statuses[code]; ok {
		return name
	}
	return code
}

// --- Criteria ---

// CriterionWithID returns "Graph Orchestration (graph_orchestration)" format.
// An empty name falls back to the humanized ID.
func CriterionWithID(id, name string) string {
	if name == "" {
		name = Humanize(id)
	}
	return name + " (" + id + ")"
}

// Humanize turns a snake_case identifier into title case.
// "safe_tool_engineering" -> "Safe Tool Engineering".
func Humanize(id string) string {
	words := strings.FieldsFunc(id, func(r rune) bool { return r == '_' || r == '-' })
	for i, w := range words {
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}
