package metaaudit

import (
	"fmt"
	"strings"

	"tribunal/internal/display"
	"tribunal/internal/format"
)

// Markdown renders the consolidated result.
func Markdown(r *Result, target string) string {
	var b strings.Builder
	title := "Meta-Audit"
	if target != "" {
		title += ": " + target
	}
	b.WriteString("# " + title + "\n\n")
	if r == nil || r.Runs == 0 {
		b.WriteString("No archived runs.\n")
		return b.String()
	}
	b.WriteString(fmt.Sprintf("Consolidated **%d** runs.\n\n", r.Runs))

	b.WriteString("## Consensus\n\n")
	tbl := format.NewTable(format.Markdown)
	tbl.Header("Criterion", "Mean", "Stability", "Consensus")
	for _, c := range r.Consensus {
		tbl.Row(display.Humanize(c.CriterionID), fmt.Sprintf("%.2f", c.MeanScore), format.FmtPercent(c.Stability), fmt.Sprintf("%.2f", c.Score))
	}
	b.WriteString(tbl.String())
	b.WriteString("\n\n")

	if len(r.Jumps) > 0 {
		b.WriteString("## Judge Jumps\n\n")
		for _, j := range r.Jumps {
			b.WriteString(fmt.Sprintf("- %s on %s: %d → %d\n", display.Role(string(j.Role)), display.Humanize(j.CriterionID), j.Min, j.Max))
		}
		b.WriteString("\n")
	}

	if t := r.Transient(); len(t) > 0 {
		b.WriteString("## Transient Evidence\n\n")
		tbl := format.NewTable(format.Markdown)
		tbl.Header("Category", "Goal", "Location", "Stability")
		for _, s := range t {
			tbl.Row(display.Category(string(s.Category)), format.Truncate(s.Goal, 60), s.Location, format.FmtPercent(s.Stability))
		}
		b.WriteString(tbl.String())
		b.WriteString("\n")
	}
	return b.String()
}
