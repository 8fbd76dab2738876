package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	jwttoken "prelaunch/internal/jwt_token"
)

func newAdminTokenCmd(opts *rootOptions) *cobra.Command {
	var subject string
	var ttl time.Duration
	cmd := &cobra.Command{
		Use:   "admin-token",
		Short: "Issue a bearer token for the registration export endpoints",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := opts.load()
			if err != nil {
				return err
			}
			if ttl <= 0 {
				ttl = cfg.Admin.TokenTTL
			}
			if cfg.UsesDevSigningKey() {
				fmt.Fprintln(cmd.ErrOrStderr(), "warning: signing with the development key")
			}
			svc := jwttoken.NewJWTService(cfg.Admin.JWTSigningKey, cfg.Admin.Issuer, cfg.Admin.Audience)
			token, err := svc.GenerateAdminToken(subject, ttl)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), token)
			return err
		},
	}
	cmd.Flags().StringVar(&subject, "subject", "", "operator the token is issued to (required)")
	cmd.Flags().DurationVar(&ttl, "ttl", 0, "token lifetime; defaults to admin.token_ttl")
	_ = cmd.MarkFlagRequired("subject")
	return cmd
}
