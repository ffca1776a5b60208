package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"tribunal/internal/format"
)

func newRubricCmd() *cobra.Command {
	var f struct {
		rubricPath string
		format     string
	}
	cmd := &cobra.Command{
		Use:   "rubric",
		Short: "List the rubric criteria and their arbitration policies",
		Long: `Load the rubric (embedded by default), validate it and list its criteria
with the safety flag, the TECHLEAD multiplier and the number of goals.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			r, err := loadRubric(f.rubricPath)
			if err != nil {
				return err
			}
			tbl := format.NewTable(format.ParseMode(f.format))
			tbl.Title(r.Name)
			tbl.Header("ID", "Name", "Safety", "TechLead x", "Goals")
			tbl.AlignRight(4, 5)
			tbl.Wrap(2, 40)
			for _, c := range r.Criteria {
				mult := "-"
				if c.Policy().Weighted() {
					mult = fmt.Sprintf("%g", c.TechLeadMultiplier)
				}
				tbl.Row(c.ID, c.Name, format.BoolMark(c.SafetyCritical), mult, len(c.Goals))
			}
			out := tbl.String()
			if !strings.HasSuffix(out, "\n") {
				out += "\n"
			}
			return writeOutput(cmd, "", []byte(out))
		},
	}
	fl := cmd.Flags()
	fl.StringVar(&f.rubricPath, "rubric", "", "Rubric YAML (default: embedded rubric)")
	fl.StringVar(&f.format, "format", "table", "Output format: table, markdown or csv")
	return cmd
}
