package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"tribunal/internal/arbitrate"
	"tribunal/internal/audit"
	"tribunal/internal/evidence"
	"tribunal/internal/report"
	"tribunal/internal/store"
)

type arbitrateFlags struct {
	criterion          string
	prosecutor         int
	defense            int
	techlead           int
	evidencePath       string
	stageConfidence    float64
	safetyCritical     bool
	techLeadMultiplier float64
	rubricPath         string
	format             string
}

func newArbitrateCmd() *cobra.Command {
	var f arbitrateFlags
	cmd := &cobra.Command{
		Use:   "arbitrate",
		Short: "Arbitrate one criterion from submitted judge scores",
		Long: `Run the deterministic rule pipeline over three judge scores without
collecting evidence or calling a model.

Usage:
  tribunal arbitrate --criterion safe_tool_engineering --prosecutor 1 --defense 5 --techlead 5
  tribunal arbitrate --criterion state_management_rigor --prosecutor 2 --defense 4 --techlead 3 \
      --evidence evidence.yaml

A seat left at 0 is treated as missing and synthesized with a neutral score.
The evidence file is a YAML or JSON list of evidence records.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runArbitrate(cmd, f)
		},
	}
	fl := cmd.Flags()
	fl.StringVar(&f.criterion, "criterion", "", "Criterion id (required)")
	fl.IntVar(&f.prosecutor, "prosecutor", 0, "PROSECUTOR score 1-5 (0 = missing)")
	fl.IntVar(&f.defense, "defense", 0, "DEFENSE score 1-5 (0 = missing)")
	fl.IntVar(&f.techlead, "techlead", 0, "TECHLEAD score 1-5 (0 = missing)")
	fl.StringVar(&f.evidencePath, "evidence", "", "YAML or JSON file with evidence records")
	fl.Float64Var(&f.stageConfidence, "stage-confidence", 0, "Evidence stage confidence (default: mean record confidence)")
	fl.BoolVar(&f.safetyCritical, "safety-critical", false, "Treat the criterion as safety-critical")
	fl.Float64Var(&f.techLeadMultiplier, "techlead-multiplier", 0, "TECHLEAD weight; values above 1 enable functionality weighting")
	fl.StringVar(&f.rubricPath, "rubric", "", "Rubric YAML (default: embedded rubric)")
	fl.StringVar(&f.format, "format", "markdown", "Output format: markdown, table, csv or json")
	_ = cmd.MarkFlagRequired("criterion")
	return cmd
}

func runArbitrate(cmd *cobra.Command, f arbitrateFlags) error {
	r, err := loadRubric(f.rubricPath)
	if err != nil {
		return err
	}

	sub := audit.Submission{
		CriterionID:     f.criterion,
		Scores:          make(map[evidence.JudgeRole]int),
		StageConfidence: f.stageConfidence,
	}
	for role, score := range map[evidence.JudgeRole]int{
		evidence.Prosecutor: f.prosecutor,
		evidence.Defense:    f.defense,
		evidence.TechLead:   f.techlead,
	} {
		if score != 0 {
			sub.Scores[role] = score
		}
	}
	if f.evidencePath != "" {
		if sub.Evidence, err = loadEvidence(f.evidencePath); err != nil {
			return err
		}
	}
	if f.safetyCritical || f.techLeadMultiplier > 0 {
		p := r.Config().PolicyFor(f.criterion)
		p.SafetyCritical = p.SafetyCritical || f.safetyCritical
		if f.techLeadMultiplier > 0 {
			p.TechLeadMultiplier = f.techLeadMultiplier
		}
		sub.Policy = &p
	}

	res, err := audit.Arbitrate(r, sub)
	if err != nil {
		return err
	}

	if f.format == "json" {
		data, err := json.MarshalIndent(res, "", "  ")
		if err != nil {
			return err
		}
		return writeOutput(cmd, "", append(data, '\n'))
	}
	snap, err := store.FreezeEvidence(sub.Evidence...)
	if err != nil {
		return err
	}
	rep := report.Compile([]arbitrate.CriterionResult{res}, snap, report.Meta{RunID: audit.NewRunID(), Target: f.criterion})
	data, err := renderReport(rep, f.format)
	if err != nil {
		return err
	}
	return writeOutput(cmd, "", data)
}

func loadEvidence(path string) ([]evidence.Record, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read evidence: %w", err)
	}
	var records []evidence.Record
	if err := yaml.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("parse evidence %s: %w", path, err)
	}
	for i := range records {
		if records[i].Source == "" {
			records[i].Source = "cli"
		}
	}
	return records, nil
}
