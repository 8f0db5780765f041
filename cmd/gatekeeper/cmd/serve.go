package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/aussiebroadwan/gatekeeper/internal/oauth/app"
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the authorization server",
		Long: `Start the HTTP server exposing /oauth/authorize, /oauth/authorize-submit,
/oauth/token and /oauth/logout, plus the metrics server when METRICS_ENABLED
is set. Pending migrations are applied on startup.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			application, err := app.New(app.LoadConfig())
			if err != nil {
				return fmt.Errorf("failed to initialize application: %w", err)
			}
			return application.Run()
		},
	}
}
