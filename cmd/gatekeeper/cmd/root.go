package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/aussiebroadwan/gatekeeper/internal/oauth/app"
	"github.com/aussiebroadwan/gatekeeper/internal/oauth/store"
	"github.com/aussiebroadwan/gatekeeper/pkg/cryptox"
)

// rootCmd is the gatekeeper command line
var rootCmd = newRootCmd()

// version will be set by main
var version = "dev"

// SetVersion sets the version reported by the binary and the health probes
func SetVersion(v string) {
	version = v
	rootCmd.Version = v
	app.BuildVersion = v
}

// Execute is the main entry point for the CLI application
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "gatekeeper",
		Short: "OAuth2 authorization server",
		Long: `gatekeeper issues and revokes OAuth2 tokens for registered clients.

It serves the authorization_code, refresh_token and password grants, an
interactive login form and logout. Configuration is read from the
environment; the same variables select the database for every command.`,
		SilenceUsage: true,
	}
	root.SetVersionTemplate(`{{printf "gatekeeper version %s\n" .Version}}`)

	root.AddCommand(newServeCmd())
	root.AddCommand(newMigrateCmd())
	root.AddCommand(newClientsCmd())
	root.AddCommand(newUsersCmd())
	root.AddCommand(newVersionCmd())
	return root
}

// withStore opens and migrates the configured token store for the duration
// of fn.
func withStore(ctx context.Context, fn func(ctx context.Context, st store.Store) error) error {
	cfg := app.LoadConfig()
	cryptox.SetBcryptCost(cfg.BcryptCost)

	st, err := app.OpenStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() { _ = st.Close() }()

	if err := st.ApplyMigrations(); err != nil {
		return fmt.Errorf("failed to apply database migrations: %w", err)
	}
	return fn(ctx, st)
}
