package evidence

import "strings"

// minWordLen keeps short connective words ("of", "id") from matching every goal.
const minWordLen = 3

// Matches reports whether a record goal addresses the given criterion. The
// criterion id matches when it appears in the goal, or when any of its
// words does.
func Matches(criterionID, goal string) bool {
	id := strings.ToLower(strings.TrimSpace(criterionID))
	g := strings.ToLower(goal)
	if id == "" || g == "" {
		return false
	}
	if strings.Contains(g, id) {
		return true
	}
	for _, w := range criterionWords(id) {
		if strings.Contains(g, w) {
			return true
		}
	}
	return false
}

func criterionWords(id string) []string {
	parts := strings.FieldsFunc(id, func(r rune) bool {
		return r == '_' || r == ' ' || r == '-'
	})
	words := parts[:0]
	for _, p := range parts {
		if len(p) >= minWordLen {
			words = append(words, p)
		}
	}
	return words
}

// Filter returns the records whose goal matches criterionID, preserving
// order.
func Filter(records []Record, criterionID string) []Record {
	var out []Record
	for _, r := range records {
		if Matches(criterionID, r.Goal) {
			out = append(out, r)
		}
	}
	return out
}
