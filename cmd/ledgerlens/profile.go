package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ledgerlens/ledgerlens/internal/cli"
	"github.com/ledgerlens/ledgerlens/internal/profile"
)

func profileCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "profile",
		Short: "Manage ledger fingerprints",
	}
	cmd.AddCommand(profileRebuildCmd())
	cmd.AddCommand(profileShowCmd())
	return cmd
}

func profileRebuildCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rebuild <ledger-id>",
		Short: "Recompute a ledger's fingerprint from its full history",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := openStorage()
			if err != nil {
				return err
			}
			defer func() { _ = db.Close() }()
			if err := db.Migrate(cmd.Context()); err != nil {
				return err
			}

			accountNames, _ := cmd.Flags().GetStringSlice("account")
			p, err := profile.NewBuilder(db, db).Rebuild(cmd.Context(), args[0], accountNames)
			if err != nil {
				return err
			}
			cmd.Println(cli.SuccessStyle.Render(fmt.Sprintf("rebuilt profile for %s from %d transactions", args[0], p.Total)))
			return nil
		},
	}
	cmd.Flags().StringSlice("account", nil, "account names to treat as stopwords during keyword extraction")
	return cmd
}

func profileShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <ledger-id>",
		Short: "Print a ledger's fingerprint summary",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := openStorage()
			if err != nil {
				return err
			}
			defer func() { _ = db.Close() }()
			if err := db.Migrate(cmd.Context()); err != nil {
				return err
			}

			p, err := db.GetProfile(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			cmd.Print(p.Summary())
			return nil
		},
	}
}
