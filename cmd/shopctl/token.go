package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"ethioshop.com/app/internal/auth"
	"ethioshop.com/app/internal/config"
)

func tokenCmd() *cobra.Command {
	var (
		userID string
		role   string
		ttl    time.Duration
	)
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue a bearer token signed with JWT_SECRET",
		Long: `Issue a bearer token for local testing and operator access.

Example:
  shopctl token --user admin-1 --role ADMIN --ttl 1h`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			r := auth.Role(strings.ToUpper(role))
			if !r.Valid() {
				return fmt.Errorf("unknown role %q", role)
			}
			tok, err := auth.NewSigner(cfg.JWTSecret, auth.Issuer).Issue(userID, r, ttl)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), tok)
			return nil
		},
	}
	cmd.Flags().StringVar(&userID, "user", "", "user id (sub claim)")
	cmd.Flags().StringVar(&role, "role", string(auth.RoleCustomer), "CUSTOMER, VENDOR or ADMIN")
	cmd.Flags().DurationVar(&ttl, "ttl", time.Hour, "token lifetime")
	_ = cmd.MarkFlagRequired("user")
	return cmd
}
