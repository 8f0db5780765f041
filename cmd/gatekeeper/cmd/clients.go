package cmd

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/aussiebroadwan/gatekeeper/internal/oauth/domain"
	"github.com/aussiebroadwan/gatekeeper/internal/oauth/store"
	"github.com/aussiebroadwan/gatekeeper/pkg/cryptox"
	"github.com/aussiebroadwan/gatekeeper/pkg/idx"
)

var knownGrantTypes = []string{
	domain.GrantTypeAuthorizationCode,
	domain.GrantTypeRefreshToken,
	domain.GrantTypePassword,
	domain.GrantTypeImplicit,
}

func newClientsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "clients",
		Short: "Manage registered OAuth2 clients",
	}
	cmd.AddCommand(newClientsAddCmd())
	cmd.AddCommand(newClientsListCmd())
	return cmd
}

func newClientsAddCmd() *cobra.Command {
	var (
		id           string
		secret       string
		public       bool
		grantTypes   []string
		redirectURIs []string
		scope        string
		userID       string
	)

	cmd := &cobra.Command{
		Use:   "add",
		Short: "Register a client",
		Long: `Register a client. Confidential clients get a generated secret unless
--secret is given; the secret is stored hashed and printed once.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if public && secret != "" {
				return errors.New("--public and --secret are mutually exclusive")
			}
			for _, gt := range grantTypes {
				if !slices.Contains(knownGrantTypes, gt) {
					return fmt.Errorf("unknown grant type %q", gt)
				}
			}
			if id == "" {
				id = idx.New().String()
			}
			if !public && secret == "" {
				generated, err := cryptox.GenerateToken(cryptox.TokenSize256)
				if err != nil {
					return err
				}
				secret = generated
			}

			return withStore(cmd.Context(), func(ctx context.Context, st store.Store) error {
				c := domain.Client{
					ID:           id,
					GrantTypes:   grantTypes,
					RedirectURIs: redirectURIs,
					Scope:        scope,
					UserID:       userID,
				}
				if secret != "" {
					hash, err := cryptox.HashPassword(secret)
					if err != nil {
						return err
					}
					c.Secret = hash
				}

				if err := st.Clients().CreateClient(ctx, c); err != nil {
					if errors.Is(err, store.ErrAlreadyExists) {
						return fmt.Errorf("client %q already exists", id)
					}
					return fmt.Errorf("failed to create client: %w", err)
				}

				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "client_id: %s\n", c.ID)
				if secret != "" {
					fmt.Fprintf(out, "client_secret: %s\n", secret)
				}
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&id, "id", "", "Client ID (generated when empty)")
	cmd.Flags().StringVar(&secret, "secret", "", "Client secret (generated when empty)")
	cmd.Flags().BoolVar(&public, "public", false, "Register a public client without a secret")
	cmd.Flags().StringSliceVar(&grantTypes, "grant-type", nil, "Allowed grant type (repeatable; empty allows all)")
	cmd.Flags().StringSliceVar(&redirectURIs, "redirect-uri", nil, "Registered redirect URI (repeatable)")
	cmd.Flags().StringVar(&scope, "scope", "", "Space-delimited scope ceiling (empty is unrestricted)")
	cmd.Flags().StringVar(&userID, "user-id", "", "Owning user ID")

	return cmd
}

func newClientsListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List registered clients",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withStore(cmd.Context(), func(ctx context.Context, st store.Store) error {
				clients, err := st.Clients().ListClients(ctx)
				if err != nil {
					return fmt.Errorf("failed to list clients: %w", err)
				}

				tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
				fmt.Fprintln(tw, "ID\tTYPE\tGRANT TYPES\tREDIRECT URIS\tSCOPE")
				for _, c := range clients {
					kind := "confidential"
					if c.IsPublic() {
						kind = "public"
					}
					fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", c.ID, kind,
						orAny(strings.Join(c.GrantTypes, ",")),
						strings.Join(c.RedirectURIs, ","),
						orAny(c.Scope),
					)
				}
				return tw.Flush()
			})
		},
	}
}

func orAny(s string) string {
	if s == "" {
		return "*"
	}
	return s
}
