package cmd

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/huangsam/activity/internal/server"
	"github.com/spf13/cobra"
)

// serveCmd serves graph sessions over HTTP.
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve interactive activity graphs over HTTP",
	Long: `Start an HTTP server that keeps one session per displayed graph.

Clients create a session for a project branch, then drive it with one request
per interaction (graph choice, custom metrics, window, zoom, pointer, selected
date). Every change is pushed to websocket subscribers of the session.

Event edits made through the API reload every session showing the project.
Prometheus metrics are exposed on /metrics.

Examples:
  # Serve the fixture and reload sessions when it changes
  activity serve --fixture history.yaml --watch

  # Serve the SQL history store on all interfaces
  activity serve --source sql --listen 0.0.0.0:8420`,
	PreRunE: sharedSetupWrapper,
	RunE: func(_ *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(rootCtx, os.Interrupt, syscall.SIGTERM)
		defer stop()
		return server.Run(ctx, cfg, cacheManager)
	},
}
