package cli

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"Tradyxa/internal/di"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API, simulation workers and live ingestion",
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := di.InitializeApp(getConfig())
		if err != nil {
			return fmt.Errorf("app initialization failed: %w", err)
		}
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()
		return app.Run(ctx)
	},
}
