package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/nerrad567/gray-logic-lgtv/internal/auth"
)

func newTokenCmd() *cobra.Command {
	var (
		role    string
		subject string
		ttl     int
	)

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Mint an API bearer token",
		Long: `Mint a bearer token signed with security.jwt.secret.

Roles: viewer (read), operator (read and run actions), admin (everything,
including provisioning).`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if ttl <= 0 {
				ttl = cfg.Security.JWT.AccessTokenTTL
			}

			token, err := auth.GenerateAccessToken(subject, auth.Role(role), cfg.Security.JWT.Secret, ttl)
			if err != nil {
				return fmt.Errorf("minting token: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}
	cmd.Flags().StringVar(&role, "role", string(auth.RoleViewer), "Role: viewer, operator or admin")
	cmd.Flags().StringVar(&subject, "subject", "installer", "Token subject")
	cmd.Flags().IntVar(&ttl, "ttl", 0, "Lifetime in minutes (default security.jwt.access_token_ttl)")
	return cmd
}
