package report

import (
	"encoding/json"
	"fmt"
	"strings"

	"tribunal/internal/display"
	"tribunal/internal/evidence"
	"tribunal/internal/format"
)

// JSON renders the report as indented JSON.
func JSON(r *AuditReport) ([]byte, error) {
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal report: %w", err)
	}
	return data, nil
}

// Markdown renders the full report: header, verdict table, evidence
// summary, remediation plan, per-criterion rule traces and stage health.
func Markdown(r *AuditReport) string {
	if r == nil || len(r.Criteria) == 0 {
		return "# Audit Report\n\nNo criteria arbitrated.\n"
	}

	var b strings.Builder
	writeHeader(&b, r)
	writeVerdicts(&b, r, format.Markdown)
	writeEvidence(&b, r)
	writeRemediation(&b, r)
	writeTraces(&b, r)
	writeStages(&b, r)
	return b.String()
}

// Table renders the verdict table alone in the given mode, with the overall
// score as footer.
func Table(r *AuditReport, mode format.Mode) string {
	var b strings.Builder
	writeVerdictTable(&b, r, mode)
	return b.String()
}

func writeHeader(b *strings.Builder, r *AuditReport) {
	title := "Audit Report"
	if r.Target != "" {
		title += ": " + r.Target
	}
	b.WriteString("# " + title + "\n\n")

	tbl := format.NewTable(format.Markdown)
	tbl.Header("Field", "Value")
	tbl.Row("Run", r.RunID)
	tbl.Row("Generated", r.GeneratedAt.UTC().Format("2006-01-02 15:04 UTC"))
	tbl.Row("Overall score", fmt.Sprintf("%.1f / 5", r.OverallScore))
	tbl.Row("Contradictions", len(r.DetectedContradictions))
	b.WriteString(tbl.String())
	b.WriteString("\n\n")
}

func writeVerdicts(b *strings.Builder, r *AuditReport, mode format.Mode) {
	b.WriteString("## Verdicts\n\n")
	writeVerdictTable(b, r, mode)
	b.WriteString("\n\n")
}

func writeVerdictTable(b *strings.Builder, r *AuditReport, mode format.Mode) {
	tbl := format.NewTable(mode)
	tbl.Title("Verdicts")
	tbl.Header("Criterion", "Judges", "Base", "Final", "Contradiction")
	tbl.AlignRight(3, 4)
	for _, c := range r.Criteria {
		scores := make(map[string]int, len(c.JudgeScores))
		for role, s := range c.JudgeScores {
			scores[string(role)] = s
		}
		tbl.Row(
			display.CriterionWithID(c.CriterionID, c.Name),
			display.RoleScores(scores),
			c.BaseScore,
			format.FmtScore(c.FinalScore),
			format.BoolMark(c.ContradictionFlag),
		)
	}
	tbl.Footer("OVERALL", "", "", fmt.Sprintf("%.1f", r.OverallScore), "")
	b.WriteString(tbl.String())
}

func writeEvidence(b *strings.Builder, r *AuditReport) {
	b.WriteString("## Evidence\n\n")
	parts := make([]string, 0, len(evidence.Categories))
	for _, c := range evidence.Categories {
		parts = append(parts, fmt.Sprintf("%s **%d**", display.Category(string(c)), r.EvidenceSummary[c]))
	}
	b.WriteString("- " + strings.Join(parts, ", ") + "\n")
	for _, c := range r.DetectedContradictions {
		b.WriteString("- Contradiction: " + c + "\n")
	}
	b.WriteString("\n")
}

func writeRemediation(b *strings.Builder, r *AuditReport) {
	b.WriteString("## Remediation\n\n")
	for _, a := range r.Remediation {
		b.WriteString(fmt.Sprintf("- **%s** (%s): %s\n", a.Name, format.FmtScore(a.FinalScore), a.Remediation))
	}
	b.WriteString("\n")
}

func writeTraces(b *strings.Builder, r *AuditReport) {
	b.WriteString("## Rule Traces\n\n")
	for _, c := range r.Criteria {
		b.WriteString(fmt.Sprintf("### %s %s\n\n", c.Name, format.Bar(c.FinalScore, evidence.MaxScore)))
		for i, line := range c.RuleTrace {
			b.WriteString(fmt.Sprintf("%d. %s\n", i+1, line))
		}
		if c.Dissent != "" {
			b.WriteString("\n> Dissent: " + c.Dissent + "\n")
		}
		b.WriteString("\n")
	}
}

func writeStages(b *strings.Builder, r *AuditReport) {
	if len(r.Stages) == 0 {
		return
	}
	b.WriteString("## Stages\n\n")
	tbl := format.NewTable(format.Markdown)
	tbl.Header("Stage", "Task", "Status", "Emitted", "Degraded", "Duration")
	for _, s := range r.Stages {
		tbl.Row(
			display.Stage(s.Stage),
			s.Task,
			display.Status(string(s.Status)),
			s.Emitted,
			s.Degraded,
			format.FmtDuration(s.Duration),
		)
	}
	b.WriteString(tbl.String())
	b.WriteString("\n")
}
