package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"tribunal/internal/metaaudit"
	"tribunal/internal/store"
)

func newMetaCmd() *cobra.Command {
	var f struct {
		target string
		dbPath string
		format string
	}
	cmd := &cobra.Command{
		Use:   "meta",
		Short: "Consolidate archived runs of a target",
		Long: `Read every archived run of a target and report evidence stability,
judge score jumps between runs and per-criterion consensus scores.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			archive, err := store.OpenArchive(f.dbPath)
			if err != nil {
				return fmt.Errorf("open archive %s: %w", f.dbPath, err)
			}
			defer closeQuietly(archive)

			runs, err := archive.ListRuns(f.target)
			if err != nil {
				return err
			}
			res := metaaudit.Consolidate(runs)

			switch f.format {
			case "json":
				data, err := json.MarshalIndent(res, "", "  ")
				if err != nil {
					return err
				}
				return writeOutput(cmd, "", append(data, '\n'))
			case "", "markdown", "md":
				return writeOutput(cmd, "", []byte(metaaudit.Markdown(res, f.target)))
			default:
				return fmt.Errorf("unknown format %q (want markdown or json)", f.format)
			}
		},
	}
	fl := cmd.Flags()
	fl.StringVar(&f.target, "target", "", "Target whose runs to consolidate (default: all runs)")
	fl.StringVar(&f.dbPath, "db", store.DefaultArchivePath, "Run archive DB path")
	fl.StringVar(&f.format, "format", "markdown", "Output format: markdown or json")
	return cmd
}
