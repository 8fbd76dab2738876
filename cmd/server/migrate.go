package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"prelaunch/internal/platform/database"
)

func newMigrateCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create the pre_lancamento_cadastros table in the configured database",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := opts.load()
			if err != nil {
				return err
			}
			if cfg.Database.Driver == "" {
				return errors.New("no database configured; set PRELAUNCH_DB_DRIVER and PRELAUNCH_DB_URL")
			}
			db, dialect, err := database.Open(cmd.Context(), cfg.Database)
			if err != nil {
				return err
			}
			defer db.Close()

			if err := database.Migrate(cmd.Context(), db, dialect); err != nil {
				return err
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "schema applied (%s)\n", dialect)
			return err
		},
	}
}
