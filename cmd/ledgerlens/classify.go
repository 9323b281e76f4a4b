package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/ledgerlens/ledgerlens/internal/cli"
	"github.com/ledgerlens/ledgerlens/internal/engine"
	"github.com/ledgerlens/ledgerlens/internal/model"
	"github.com/ledgerlens/ledgerlens/internal/profile"
	"github.com/ledgerlens/ledgerlens/internal/rules"
	"github.com/ledgerlens/ledgerlens/internal/storage"
)

func classifyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "classify <file.csv>",
		Short: "Import a transaction export and classify it",
		Long: `Run the full pipeline over an export: layout detection, row parsing,
refund/family pairing, then ledger and category classification through rules,
historical profiles, and the configured model endpoint.

Examples:
  ledgerlens classify alipay.csv
  ledgerlens classify --mode ledger-only --strategy history-only wechat.csv
  ledgerlens classify --commit --ledger daily,family bank.csv`,
		Args: cobra.ExactArgs(1),
		RunE: runClassify,
	}

	cmd.Flags().String("mode", string(engine.ModeBoth), "what to resolve: ledger-only, category-only, both")
	cmd.Flags().String("strategy", string(engine.StrategyHistoryFirst), "match strategy: history-first, history-only, model-only")
	cmd.Flags().StringSlice("ledger", nil, "restrict candidates to these ledger ids")
	cmd.Flags().Int("batch-size", engine.DefaultBatchSize, "transactions per model call")
	cmd.Flags().Bool("rematch", false, "clear prior ledger suggestions and re-match")
	cmd.Flags().Bool("commit", false, "persist selected, fully-classified transactions to history")

	return cmd
}

func runClassify(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	_, rowErrs, result, err := importFile(args[0])
	if err != nil {
		return err
	}
	if len(rowErrs) > 0 {
		slog.Warn("some rows were skipped", "count", len(rowErrs))
	}

	db, err := openStorage()
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer func() {
		if closeErr := db.Close(); closeErr != nil {
			slog.Error("failed to close database", "error", closeErr)
		}
	}()
	if err := db.Migrate(ctx); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	userID := viper.GetString("user")
	ruleEngine := rules.NewEngine(db)

	// Seed rules from history on a first run.
	bootstrapper := rules.NewBootstrapper(db, db, rules.NewLearner(db, db))
	if seeded, seedErr := bootstrapper.Seed(ctx, userID); seedErr != nil {
		slog.Warn("rule bootstrap failed", "error", seedErr)
	} else if seeded > 0 {
		slog.Info("bootstrapped rules from history", "count", seeded)
	}

	coordinator := engine.New(db, db, db, ruleEngine, dictionaryMatcher(), modelClient())

	mode, _ := cmd.Flags().GetString("mode")
	strategy, _ := cmd.Flags().GetString("strategy")
	ledgerIDs, _ := cmd.Flags().GetStringSlice("ledger")
	batchSize, _ := cmd.Flags().GetInt("batch-size")
	rematch, _ := cmd.Flags().GetBool("rematch")

	token := uuid.NewString()
	stopProgress := watchProgress(ctx, db, token)

	res, err := coordinator.Classify(ctx, engine.Request{
		UserID:        userID,
		Transactions:  result.Display,
		LedgerIDs:     ledgerIDs,
		Mode:          engine.Mode(mode),
		Strategy:      engine.MatchStrategy(strategy),
		BatchSize:     batchSize,
		ReMatchLedger: rematch,
		ProgressToken: token,
	})
	stopProgress()
	if err != nil {
		return err
	}

	cmd.Print(cli.RenderTransactions(res.Transactions))
	cmd.Println(cli.SuccessStyle.Render(res.Message))

	if commit, _ := cmd.Flags().GetBool("commit"); commit {
		return commitTransactions(ctx, db, userID, res.Transactions, result.Pairs)
	}
	return nil
}

// watchProgress polls the progress store and mirrors batch completion on a
// progress bar until the returned stop function is called.
func watchProgress(ctx context.Context, db *storage.SQLiteStorage, token string) func() {
	done := make(chan struct{})
	go func() {
		var bar *progressbar.ProgressBar
		ticker := time.NewTicker(200 * time.Millisecond)
		defer ticker.Stop()

		for {
			select {
			case <-done:
				return
			case <-ctx.Done():
				return
			case <-ticker.C:
			}

			prog, err := db.Get(ctx, token)
			if err != nil {
				continue
			}
			if bar == nil && prog.TotalBatches > 0 {
				bar = progressbar.NewOptions(prog.TotalBatches,
					progressbar.OptionSetDescription(prog.Stage),
					progressbar.OptionShowCount(),
					progressbar.OptionClearOnFinish())
			}
			if bar != nil {
				bar.Describe(prog.Stage)
				_ = bar.Set(prog.CompletedBatches + prog.FailedBatches)
			}
		}
	}()
	return func() { close(done) }
}

// commitRows selects the rows to persist, grouped by resolved ledger, with
// each row's suggestion folded in. A selected family twin is swapped for its
// pair's merged row: the commit always stores the expense-typed merge
// carrying the payer's channel and order id, never the raw not-counted twin.
func commitRows(txns []model.Transaction, pairs []model.PairedTransaction) map[string][]model.Transaction {
	familyMerged := make(map[string]*model.Transaction, len(pairs))
	for i := range pairs {
		if pairs[i].Kind == model.PairFamily && pairs[i].Merged != nil {
			familyMerged[pairs[i].ID] = pairs[i].Merged
		}
	}

	byLedger := make(map[string][]model.Transaction)
	committedPairs := make(map[string]bool)
	for i := range txns {
		t := txns[i]
		s := t.Meta.Suggestion
		if !t.Meta.Selected || s == nil || s.LedgerID == "" {
			continue
		}

		if m, ok := familyMerged[t.Meta.PairID]; ok {
			if committedPairs[t.Meta.PairID] {
				continue
			}
			committedPairs[t.Meta.PairID] = true
			t = *m
			t.Meta.Suggestion = s
		} else if s.Direction != "" {
			t.Direction = s.Direction
		}

		t.LedgerID = s.LedgerID
		if s.Category != "" {
			t.Category = s.Category
		}
		if s.SimplifiedMemo != "" {
			t.Memo = s.SimplifiedMemo
		}
		byLedger[t.LedgerID] = append(byLedger[t.LedgerID], t)
	}
	return byLedger
}

// commitTransactions persists the selected, ledger-resolved subset and folds
// it into each ledger's profile incrementally.
func commitTransactions(ctx context.Context, db *storage.SQLiteStorage, userID string, txns []model.Transaction, pairs []model.PairedTransaction) error {
	byLedger := commitRows(txns, pairs)
	if len(byLedger) == 0 {
		return nil
	}

	builder := profile.NewBuilder(db, db)
	committed := 0
	for ledgerID, batch := range byLedger {
		if err := db.SaveTransactions(ctx, userID, batch); err != nil {
			return fmt.Errorf("failed to commit transactions for ledger %s: %w", ledgerID, err)
		}
		for i := range batch {
			if batch[i].Category != "" {
				if err := db.AddCategory(ctx, ledgerID, batch[i].Category); err != nil {
					slog.Warn("failed to record category", "ledger_id", ledgerID, "error", err)
				}
			}
		}
		if _, err := builder.Update(ctx, ledgerID, batch, nil); err != nil {
			slog.Warn("failed to update ledger profile", "ledger_id", ledgerID, "error", err)
		}
		committed += len(batch)
	}

	slog.Info("committed transactions", "count", committed, "ledgers", len(byLedger))
	return nil
}
