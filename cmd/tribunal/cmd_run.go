package main

import (
	"cmp"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/spf13/cobra"

	"tribunal/internal/audit"
	"tribunal/internal/detective"
	"tribunal/internal/format"
	"tribunal/internal/judge"
	"tribunal/internal/report"
	"tribunal/internal/scenario"
	"tribunal/internal/store"
)

type runFlags struct {
	scenario          string
	repo              string
	doc               string
	visualURL         string
	target            string
	judges            string
	rubricPath        string
	criteria          string
	format            string
	output            string
	dbPath            string
	detectiveDeadline time.Duration
	judgeDeadline     time.Duration
	parallel          int
}

func newRunCmd() *cobra.Command {
	var f runFlags
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Audit a repository and its report, or replay a recorded scenario",
		Long: `Run the full pipeline: evidence collection, the judge panel, arbitration
and the audit report.

Usage:
  tribunal run --repo ./agent --doc ./report.md          # live audit, heuristic panel
  tribunal run --repo ./agent --doc ./report.md --judges openai
  tribunal run --scenario end-to-end                      # embedded replay
  tribunal run --scenario ./my-scenario.yaml --format json

The openai panel reads OPENAI_API_KEY, OPENAI_MODEL and OPENAI_BASE_URL.
Completed runs are archived in --db for "tribunal meta"; pass --db="" to
skip archiving.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runAudit(cmd, f)
		},
	}
	fl := cmd.Flags()
	fl.StringVar(&f.scenario, "scenario", "", "Embedded scenario name or path to a scenario YAML")
	fl.StringVar(&f.repo, "repo", "", "Path to the repository under audit")
	fl.StringVar(&f.doc, "doc", "", "Path to the report (text, Markdown or HTML)")
	fl.StringVar(&f.visualURL, "visual-url", "", "URL of the rendered report to inspect for diagrams (needs Chrome)")
	fl.StringVar(&f.target, "target", "", "Target name recorded in the archive (default: scenario target or --repo)")
	fl.StringVar(&f.judges, "judges", "", "Judge panel: heuristic, openai or scenario (default: scenario with --scenario, else heuristic)")
	fl.StringVar(&f.rubricPath, "rubric", "", "Rubric YAML (default: embedded rubric)")
	fl.StringVar(&f.criteria, "criteria", "", "Comma-separated criterion ids to score (default: all)")
	fl.StringVar(&f.format, "format", "markdown", "Output format: markdown, table, csv or json")
	fl.StringVarP(&f.output, "output", "o", "", "Write the report to this file instead of stdout")
	fl.StringVar(&f.dbPath, "db", store.DefaultArchivePath, "Run archive DB path")
	fl.DurationVar(&f.detectiveDeadline, "detective-deadline", audit.DefaultDetectiveDeadline, "Deadline of the evidence collection stage")
	fl.DurationVar(&f.judgeDeadline, "judge-deadline", audit.DefaultJudgeDeadline, "Deadline of the judge panel stage")
	fl.IntVar(&f.parallel, "parallel", 0, "Max concurrent tasks per stage (0 = all at once)")
	return cmd
}

func runAudit(cmd *cobra.Command, f runFlags) error {
	if f.scenario == "" && f.repo == "" && f.doc == "" {
		return errors.New("nothing to audit: pass --scenario, or --repo and/or --doc")
	}
	if f.scenario != "" && (f.repo != "" || f.doc != "" || f.visualURL != "") {
		return errors.New("--scenario cannot be combined with --repo, --doc or --visual-url")
	}

	if !slices.Contains(reportFormats, f.format) {
		return fmt.Errorf("unknown format %q (want markdown, table, csv or json)", f.format)
	}

	base, err := loadRubric(f.rubricPath)
	if err != nil {
		return err
	}

	cfg := audit.Config{
		DetectiveDeadline: f.detectiveDeadline,
		JudgeDeadline:     f.judgeDeadline,
		Parallel:          f.parallel,
	}
	target := f.target
	panel := f.judges

	if f.scenario != "" {
		sc, err := scenario.Resolve(f.scenario)
		if err != nil {
			return err
		}
		if cfg.Rubric, err = sc.Rubric(base); err != nil {
			return err
		}
		cfg.Inspectors = sc.Inspectors()
		if panel == "" || panel == "scenario" {
			panel = "scenario"
			cfg.Judges = sc.Panel()
		}
		if target == "" {
			target = cmp.Or(sc.Target, sc.Name)
		}
	} else {
		cfg.Rubric = base
		if f.repo != "" {
			cfg.Inspectors = append(cfg.Inspectors, &detective.Repo{Root: f.repo})
		}
		if f.doc != "" {
			cfg.Inspectors = append(cfg.Inspectors, &detective.Document{Path: f.doc})
		}
		cfg.Inspectors = append(cfg.Inspectors, &detective.Visual{URL: f.visualURL})
		if target == "" {
			target = cmp.Or(f.repo, f.doc)
		}
	}

	if ids := splitList(f.criteria); len(ids) > 0 {
		if cfg.Rubric, err = cfg.Rubric.Select(ids...); err != nil {
			return err
		}
	}

	if cfg.Judges == nil {
		if cfg.Judges, err = selectPanel(panel); err != nil {
			return err
		}
	}

	archive, err := openArchive(f.dbPath)
	if err != nil {
		return err
	}
	defer closeQuietly(archive)
	cfg.Archive = archive

	rep, err := audit.New(cfg).Run(cmd.Context(), target)
	if rep == nil {
		return err
	}
	if err != nil {
		fmt.Fprintf(cmd.ErrOrStderr(), "WARNING: %v\n", err)
	}

	data, err := renderReport(rep, f.format)
	if err != nil {
		return err
	}
	return writeOutput(cmd, f.output, data)
}

func selectPanel(name string) ([]judge.Judge, error) {
	switch name {
	case "", "heuristic":
		return judge.Panel(), nil
	case "openai":
		cfg, err := judge.OpenAIConfigFromEnv()
		if err != nil {
			return nil, err
		}
		return judge.OpenAIPanel(cfg), nil
	case "scenario":
		return nil, errors.New("--judges scenario needs --scenario")
	default:
		return nil, fmt.Errorf("unknown judge panel %q (want heuristic, openai or scenario)", name)
	}
}

var reportFormats = []string{"markdown", "md", "table", "csv", "json"}

func renderReport(rep *report.AuditReport, name string) ([]byte, error) {
	switch name {
	case "", "markdown", "md":
		return []byte(report.Markdown(rep)), nil
	case "json":
		data, err := report.JSON(rep)
		if err != nil {
			return nil, err
		}
		return append(data, '\n'), nil
	case "table", "csv":
		return []byte(report.Table(rep, format.ParseMode(name)) + "\n"), nil
	default:
		return nil, fmt.Errorf("unknown format %q (want markdown, table, csv or json)", name)
	}
}
