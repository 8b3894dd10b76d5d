package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/sakif/social-feed/internal/auth"
	"github.com/sakif/social-feed/internal/repository/sqlstore"
	"github.com/sakif/social-feed/internal/service"
)

func newUserCmd(opts *options) *cobra.Command {
	user := &cobra.Command{
		Use:   "user",
		Short: "Manage accounts",
	}
	user.AddCommand(newUserCreateCmd(opts))
	return user
}

func newUserCreateCmd(opts *options) *cobra.Command {
	var username, password string

	cmd := &cobra.Command{
		Use:   "create --username NAME",
		Short: "Create an account",
		Long: `Creates an account with the same rules as POST /auth/register.

The password is read from --password or, preferably, FEED_PASSWORD so it
stays out of shell history.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if password == "" {
				password = os.Getenv("FEED_PASSWORD")
			}
			if password == "" {
				return errors.New("password required: pass --password or set FEED_PASSWORD")
			}

			logger, err := opts.logger()
			if err != nil {
				return err
			}
			cfg, err := opts.storeConfig()
			if err != nil {
				return err
			}

			db, err := sqlstore.New(cmd.Context(), cfg)
			if err != nil {
				return fmt.Errorf("user create: %w", err)
			}
			defer db.Close()

			// Registration never signs tokens, so no TokenService is needed.
			svc := service.NewAuthService(db, nil, auth.NewPasswordServiceWithParams(opts.argon2()), logger)
			u, err := svc.Register(cmd.Context(), username, password)
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "created user %q with id %d\n", u.Username, u.ID)
			return nil
		},
	}
	cmd.Flags().StringVar(&username, "username", "", "account name (required)")
	cmd.Flags().StringVar(&password, "password", "", "account password [FEED_PASSWORD]")
	_ = cmd.MarkFlagRequired("username")

	return cmd
}
