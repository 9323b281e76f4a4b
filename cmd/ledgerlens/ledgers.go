package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/ledgerlens/ledgerlens/internal/cli"
	"github.com/ledgerlens/ledgerlens/internal/model"
)

func ledgersCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ledgers",
		Short: "Manage the ledger directory",
	}
	cmd.AddCommand(ledgersListCmd())
	cmd.AddCommand(ledgersAddCmd())
	return cmd
}

func ledgersListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List the user's ledgers",
		RunE: func(cmd *cobra.Command, _ []string) error {
			db, err := openStorage()
			if err != nil {
				return err
			}
			defer func() { _ = db.Close() }()
			if err := db.Migrate(cmd.Context()); err != nil {
				return err
			}

			ledgers, err := db.ListLedgers(cmd.Context(), viper.GetString("user"))
			if err != nil {
				return err
			}
			if len(ledgers) == 0 {
				cmd.Println(cli.SubtleStyle.Render("no ledgers yet; add one with 'ledgerlens ledgers add'"))
				return nil
			}
			for _, l := range ledgers {
				line := fmt.Sprintf("%-12s %s", l.ID, l.Name)
				if l.Description != "" {
					line += cli.SubtleStyle.Render("  " + l.Description)
				}
				cmd.Println(line)
			}
			return nil
		},
	}
}

func ledgersAddCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "add <id>",
		Short: "Register a new ledger",
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

			name, _ := cmd.Flags().GetString("name")
			description, _ := cmd.Flags().GetString("description")
			if name == "" {
				name = args[0]
			}

			ledger := &model.Ledger{ID: args[0], Name: name, Description: description}
			if err := db.CreateLedger(cmd.Context(), viper.GetString("user"), ledger); err != nil {
				return err
			}
			cmd.Println(cli.SuccessStyle.Render(fmt.Sprintf("added ledger %s (%s)", ledger.ID, ledger.Name)))
			return nil
		},
	}
	cmd.Flags().String("name", "", "display name")
	cmd.Flags().String("description", "", "what belongs in this ledger (shown to the model)")
	return cmd
}
