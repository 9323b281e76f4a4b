package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/ledgerlens/ledgerlens/internal/cli"
	"github.com/ledgerlens/ledgerlens/internal/model"
	"github.com/ledgerlens/ledgerlens/internal/rules"
)

func rulesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rules",
		Short: "Inspect and teach matching rules",
	}
	cmd.AddCommand(rulesListCmd())
	cmd.AddCommand(rulesLearnCmd())
	cmd.AddCommand(rulesBootstrapCmd())
	return cmd
}

func rulesListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List enabled rules",
		RunE: func(cmd *cobra.Command, _ []string) error {
			db, err := openStorage()
			if err != nil {
				return err
			}
			defer func() { _ = db.Close() }()
			if err := db.Migrate(cmd.Context()); err != nil {
				return err
			}

			list, err := db.EnabledRules(cmd.Context(), viper.GetString("user"))
			if err != nil {
				return err
			}
			cmd.Print(cli.RenderRules(list))
			return nil
		},
	}
}

func rulesLearnCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "learn",
		Short: "Learn a rule from one correction",
		Long: `Teach the classifier from a manual correction: describe the transaction
and the ledger (and optionally category) it should have landed in. A matching
rule is synthesized, or a near-duplicate existing rule is strengthened.`,
		RunE: runRulesLearn,
	}

	cmd.Flags().String("merchant", "", "counterparty name of the corrected transaction")
	cmd.Flags().String("memo", "", "memo text of the corrected transaction")
	cmd.Flags().Float64("amount", 0, "amount of the corrected transaction")
	cmd.Flags().String("paytype", "", "pay channel (bank_card, wallet, cash)")
	cmd.Flags().String("ledger", "", "corrected ledger id (required)")
	cmd.Flags().String("category", "", "corrected category, primary/secondary form")
	cmd.Flags().String("direction", string(model.FlowExpense), "flow direction")
	_ = cmd.MarkFlagRequired("ledger")

	return cmd
}

func runRulesLearn(cmd *cobra.Command, _ []string) error {
	db, err := openStorage()
	if err != nil {
		return err
	}
	defer func() { _ = db.Close() }()
	if err := db.Migrate(cmd.Context()); err != nil {
		return err
	}

	merchant, _ := cmd.Flags().GetString("merchant")
	memo, _ := cmd.Flags().GetString("memo")
	amount, _ := cmd.Flags().GetFloat64("amount")
	payType, _ := cmd.Flags().GetString("paytype")
	ledgerID, _ := cmd.Flags().GetString("ledger")
	category, _ := cmd.Flags().GetString("category")
	direction, _ := cmd.Flags().GetString("direction")

	learner := rules.NewLearner(db, db)
	rule, err := learner.Learn(cmd.Context(), rules.Correction{
		UserID:    viper.GetString("user"),
		LedgerID:  ledgerID,
		Category:  category,
		Direction: model.FlowDirection(direction),
		Txn: model.Transaction{
			Merchant:   merchant,
			Memo:       memo,
			Amount:     amount,
			PayChannel: model.PayChannel(payType),
			Direction:  model.FlowDirection(direction),
		},
	})
	if err != nil {
		return err
	}

	cmd.Println(cli.SuccessStyle.Render(fmt.Sprintf("rule %d (%s) → %s, priority %d", rule.ID, rule.Name, rule.LedgerID, rule.Priority)))
	return nil
}

func rulesBootstrapCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "bootstrap",
		Short: "Seed rules from committed history",
		RunE: func(cmd *cobra.Command, _ []string) error {
			db, err := openStorage()
			if err != nil {
				return err
			}
			defer func() { _ = db.Close() }()
			if err := db.Migrate(cmd.Context()); err != nil {
				return err
			}

			seeded, err := rules.NewBootstrapper(db, db, rules.NewLearner(db, db)).Seed(cmd.Context(), viper.GetString("user"))
			if err != nil {
				return err
			}
			if seeded == 0 {
				cmd.Println(cli.SubtleStyle.Render("nothing to seed: rules already exist or history is too thin"))
				return nil
			}
			cmd.Println(cli.SuccessStyle.Render(fmt.Sprintf("seeded %d rules from history", seeded)))
			return nil
		},
	}
}
