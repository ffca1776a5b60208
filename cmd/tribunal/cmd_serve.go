package main

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"tribunal/internal/logging"
	mcpserver "tribunal/internal/mcp"
	"tribunal/internal/metrics"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"
)

func newServeCmd() *cobra.Command {
	var f struct {
		rubricPath  string
		dbPath      string
		metricsAddr string
	}
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the MCP server over stdio",
		Long: `Starts an MCP server over stdin/stdout exposing run_audit, arbitrate,
list_criteria, list_scenarios and meta_audit.

The server monitors for parent process death. When the client disconnects,
the server self-terminates to prevent zombie processes. Runs are kept in
memory unless --db names a SQLite archive.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			r, err := loadRubric(f.rubricPath)
			if err != nil {
				return err
			}
			archive, err := openArchive(f.dbPath)
			if err != nil {
				return err
			}
			srv := mcpserver.NewServer(r, archive)
			defer srv.Shutdown()

			ctx, cancel := context.WithCancel(cmd.Context())
			defer cancel()

			if f.metricsAddr != "" {
				stop := serveMetrics(f.metricsAddr)
				defer stop()
			}

			mcpserver.WatchParent(ctx, cancel)

			logging.New("mcp").Info("starting tribunal MCP server over stdio (parent watchdog active)")
			return srv.MCPServer.Run(ctx, &sdkmcp.StdioTransport{})
		},
	}
	fl := cmd.Flags()
	fl.StringVar(&f.rubricPath, "rubric", "", "Rubric YAML (default: embedded rubric)")
	fl.StringVar(&f.dbPath, "db", "", "Run archive DB path (default: in memory)")
	fl.StringVar(&f.metricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address, e.g. :9090")
	return cmd
}

// serveMetrics exposes /metrics in the background and returns a func that
// shuts the listener down.
func serveMetrics(addr string) func() {
	logger := logging.New("metrics")
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		logger.Info("serving metrics", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server", "error", err)
		}
	}()
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}
}
