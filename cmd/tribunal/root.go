package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"tribunal/internal/logging"
)

// version is set at build time via -ldflags.
var version = "dev"

func newRootCmd() *cobra.Command {
	var logFlags struct {
		level  string
		format string
	}
	rootCmd := &cobra.Command{
		Use:   "tribunal",
		Short: "Evidence-first code audits with a dialectical judge panel",
		Long: "Tribunal collects evidence about a repository and its report in parallel,\n" +
			"has a three-seat panel score every rubric criterion, and arbitrates the\n" +
			"verdicts with deterministic rules into a Markdown audit report.",
		CompletionOptions: cobra.CompletionOptions{
			HiddenDefaultCmd: true,
		},
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return logging.Setup(logFlags.level, logFlags.format, cmd.ErrOrStderr())
		},
	}
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&logFlags.level, "log-level", "info", "Log level: debug, info, warn, error")
	pf.StringVar(&logFlags.format, "log-format", "text", "Log format: text or json")

	rootCmd.AddCommand(newRunCmd())
	rootCmd.AddCommand(newArbitrateCmd())
	rootCmd.AddCommand(newMetaCmd())
	rootCmd.AddCommand(newRubricCmd())
	rootCmd.AddCommand(newServeCmd())
	rootCmd.Version = version
	return rootCmd
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
