package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ledgerlens/ledgerlens/internal/cli"
)

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations",
		RunE: func(cmd *cobra.Command, _ []string) error {
			db, err := openStorage()
			if err != nil {
				return err
			}
			defer func() { _ = db.Close() }()

			if err := db.Migrate(cmd.Context()); err != nil {
				return err
			}
			version, err := db.SchemaVersion(cmd.Context())
			if err != nil {
				return err
			}
			cmd.Println(cli.SuccessStyle.Render(fmt.Sprintf("database is at schema version %d", version)))
			return nil
		},
	}
}
