package mcp

import (
	"context"
	"os"
	"time"

	"tribunal/internal/logging"
)

// ParentPollInterval is how often WatchParent checks the parent process.
var ParentPollInterval = 2 * time.Second

// WatchParent calls cancel once the parent process goes away (the MCP
// client exited), so a stdio server does not outlive its client. It never
// reads stdin, which belongs to the stdio transport. The goroutine exits
// when ctx is done.
func WatchParent(ctx context.Context, cancel context.CancelFunc) {
	ppid := os.Getppid()
	logger := logging.New("mcp")
	go func() {
		ticker := time.NewTicker(ParentPollInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if os.Getppid() != ppid {
					logger.Warn("parent process exited, shutting down", "parent_pid", ppid)
					cancel()
					return
				}
			}
		}
	}()
}
