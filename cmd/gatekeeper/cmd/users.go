package cmd

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/aussiebroadwan/gatekeeper/internal/oauth/domain"
	"github.com/aussiebroadwan/gatekeeper/internal/oauth/store"
	"github.com/aussiebroadwan/gatekeeper/pkg/cryptox"
	"github.com/aussiebroadwan/gatekeeper/pkg/idx"
)

func newUsersCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "users",
		Short: "Manage resource owners",
	}
	cmd.AddCommand(newUsersAddCmd(), newUsersSetStatusCmd())
	return cmd
}

func newUsersAddCmd() *cobra.Command {
	var (
		email      string
		password   string
		unverified bool
		disabled   bool
	)

	cmd := &cobra.Command{
		Use:   "add",
		Short: "Create a user",
		Long: `Create a user. A random password is generated and printed when
--password is not given.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			email = strings.TrimSpace(email)
			if email == "" {
				return errors.New("--email is required")
			}

			generated := password == ""
			if generated {
				p, err := cryptox.GeneratePassword()
				if err != nil {
					return err
				}
				password = p
			}

			return withStore(cmd.Context(), func(ctx context.Context, st store.Store) error {
				hash, err := cryptox.HashPassword(password)
				if err != nil {
					return err
				}

				u := domain.User{
					ID:           idx.New().String(),
					Email:        email,
					PasswordHash: hash,
					Enabled:      !disabled,
					Verified:     !unverified,
					CreatedAt:    st.Now(),
				}
				if err := st.Users().CreateUser(ctx, u); err != nil {
					if errors.Is(err, store.ErrAlreadyExists) {
						return fmt.Errorf("user %q already exists", email)
					}
					return fmt.Errorf("failed to create user: %w", err)
				}

				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "user_id: %s\n", u.ID)
				if generated {
					fmt.Fprintf(out, "password: %s\n", password)
				}
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&email, "email", "", "Login email (required)")
	cmd.Flags().StringVar(&password, "password", "", "Password (generated when empty)")
	cmd.Flags().BoolVar(&unverified, "unverified", false, "Create the user without a verified email")
	cmd.Flags().BoolVar(&disabled, "disabled", false, "Create the user disabled")

	return cmd
}

func newUsersSetStatusCmd() *cobra.Command {
	var (
		email    string
		enabled  bool
		verified bool
	)

	cmd := &cobra.Command{
		Use:   "set-status",
		Short: "Enable, disable or verify a user",
		Long: `Change a user's enabled and verified flags. Flags that are not given keep
their current value. Browser sessions of a disabled user stop working on their
next authorize request.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			email = strings.TrimSpace(email)
			if email == "" {
				return errors.New("--email is required")
			}
			flags := cmd.Flags()
			if !flags.Changed("enabled") && !flags.Changed("verified") {
				return errors.New("at least one of --enabled or --verified is required")
			}

			return withStore(cmd.Context(), func(ctx context.Context, st store.Store) error {
				u, err := st.Users().GetUserByEmail(ctx, email)
				if errors.Is(err, store.ErrNotFound) {
					return fmt.Errorf("user %q not found", email)
				}
				if err != nil {
					return fmt.Errorf("failed to load user: %w", err)
				}

				if flags.Changed("enabled") {
					u.Enabled = enabled
				}
				if flags.Changed("verified") {
					u.Verified = verified
				}
				if err := st.Users().SetUserStatus(ctx, u.ID, u.Enabled, u.Verified); err != nil {
					return fmt.Errorf("failed to update user: %w", err)
				}

				fmt.Fprintf(cmd.OutOrStdout(), "user_id: %s\nenabled: %t\nverified: %t\n", u.ID, u.Enabled, u.Verified)
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&email, "email", "", "Login email (required)")
	cmd.Flags().BoolVar(&enabled, "enabled", true, "Whether the user may sign in")
	cmd.Flags().BoolVar(&verified, "verified", true, "Whether the user's email is verified")

	return cmd
}
