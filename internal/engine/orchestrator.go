package engine

import (
	"context"
	"log/slog"

	"github.com/ledgerlens/ledgerlens/internal/model"
)

// runBookPhase batches the still-unledgered transactions through the model's
// book selection. A failed batch is logged and skipped; later batches still
// run.
func (c *Coordinator) runBookPhase(ctx context.Context, sc *stageContext, req Request, txns []model.Transaction, resolved map[string]int) {
	var pending []int
	for i := range txns {
		if !txns[i].HasLedger() {
			pending = append(pending, i)
		}
	}
	if len(pending) == 0 {
		return
	}

	batches := chunk(pending, req.BatchSize)
	prog := model.StageProgress{
		Stage:        StageLLMBook,
		BatchSize:    req.BatchSize,
		TotalBatches: len(batches),
	}
	c.reportProgress(ctx, req.ProgressToken, prog)

	for _, batch := range batches {
		prog.LastBatchSize = len(batch)

		picks, err := c.model.PickLedgers(ctx, bookPrompt(sc.ledgers, txns, batch))
		if err != nil {
			slog.Warn("book-selection batch failed", "batch_size", len(batch), "error", err)
			prog.FailedBatches++
			c.reportProgress(ctx, req.ProgressToken, prog)
			continue
		}

		for _, pick := range picks {
			if pick.Index < 0 || pick.Index >= len(batch) {
				continue
			}
			name, ok := sc.ledgerName[pick.LedgerID]
			if !ok {
				continue
			}
			i := batch[pick.Index]
			if txns[i].HasLedger() {
				continue
			}
			ensureSuggestion(&txns[i]).Merge(&model.Suggestion{
				LedgerID:   pick.LedgerID,
				LedgerName: name,
				Source:     StageLLMBook,
				Reason:     "模型判断所属账本",
				Confidence: pick.Confidence,
			})
			resolved[StageLLMBook]++
		}
		prog.CompletedBatches++
		c.reportProgress(ctx, req.ProgressToken, prog)
	}
}

// runCategoryPhase resolves categories ledger by ledger: dictionary first,
// then a zero-cost fuzzy match against the ledger's known vocabulary, and
// only the leftovers go to the model.
func (c *Coordinator) runCategoryPhase(ctx context.Context, sc *stageContext, req Request, txns []model.Transaction, resolved map[string]int, wantModel bool) {
	useHistory := req.Strategy != StrategyModelOnly

	var pending []int
	for i := range txns {
		if txns[i].HasCategory() {
			continue
		}
		if useHistory && c.dict != nil {
			if m := c.dict.Lookup(&txns[i]); m != nil {
				primary, secondary := model.SplitCategory(m.Category)
				ensureSuggestion(&txns[i]).Merge(&model.Suggestion{
					Category:          m.Category,
					CategoryPrimary:   primary,
					CategorySecondary: secondary,
					Reason:            "词典命中「" + m.Keyword + "」",
					Confidence:        m.Confidence,
				})
				resolved[StageDictionary]++
				continue
			}
		}
		pending = append(pending, i)
	}
	if len(pending) == 0 {
		return
	}

	// Group by resolved ledger, preserving transaction order within a group.
	groupIdx := make(map[string][]int)
	var groupOrder []string
	for _, i := range pending {
		id := suggestedLedger(&txns[i])
		if _, seen := groupIdx[id]; !seen {
			groupOrder = append(groupOrder, id)
		}
		groupIdx[id] = append(groupIdx[id], i)
	}

	var modelBatches [][]int
	var fuzzyMatched []int
	groupOf := make(map[int]string)

	for _, ledgerID := range groupOrder {
		members := groupIdx[ledgerID]
		var vocab []string
		if ledgerID != "" {
			vocab = c.ledgerVocabulary(ctx, sc, ledgerID)
		}

		var unresolved []int
		for _, i := range members {
			if useHistory && ledgerID != "" {
				if category, confidence, ok := fuzzyCategory(txns[i].Category, vocab); ok {
					primary, secondary := model.SplitCategory(category)
					ensureSuggestion(&txns[i]).Merge(&model.Suggestion{
						Category:          category,
						CategoryPrimary:   primary,
						CategorySecondary: secondary,
						Reason:            "匹配账本已有分类",
						Confidence:        confidence,
					})
					resolved[StageFuzzy]++
					fuzzyMatched = append(fuzzyMatched, i)
					continue
				}
			}
			unresolved = append(unresolved, i)
		}

		for _, batch := range chunk(unresolved, req.BatchSize) {
			for _, i := range batch {
				groupOf[i] = ledgerID
			}
			modelBatches = append(modelBatches, batch)
		}
	}

	if !wantModel {
		return
	}

	prog := model.StageProgress{
		Stage:        StageLLMCategory,
		BatchSize:    req.BatchSize,
		TotalBatches: len(modelBatches),
	}
	c.reportProgress(ctx, req.ProgressToken, prog)

	for _, batch := range modelBatches {
		prog.LastBatchSize = len(batch)
		ledgerID := groupOf[batch[0]]

		var vocab []string
		if ledgerID != "" {
			vocab = sc.categories[ledgerID]
		}

		picks, err := c.model.PickCategories(ctx, categoryPrompt(sc.ledgerName[ledgerID], vocab, txns, batch))
		if err != nil {
			slog.Warn("category-selection batch failed", "ledger_id", ledgerID, "batch_size", len(batch), "error", err)
			prog.FailedBatches++
			c.reportProgress(ctx, req.ProgressToken, prog)
			continue
		}

		for _, pick := range picks {
			if pick.Index < 0 || pick.Index >= len(batch) {
				continue
			}
			i := batch[pick.Index]
			if txns[i].HasCategory() {
				continue
			}
			ensureSuggestion(&txns[i]).Merge(&model.Suggestion{
				Direction:         parseFlowType(pick.FlowType),
				Category:          pick.Category,
				CategoryPrimary:   pick.Primary,
				CategorySecondary: pick.Secondary,
				SimplifiedMemo:    pick.SimplifiedMemo,
				Reason:            "模型判断分类",
				Confidence:        pick.Confidence,
			})
			resolved[StageLLMCategory]++
		}
		prog.CompletedBatches++
		c.reportProgress(ctx, req.ProgressToken, prog)
	}

	c.simplifyMemos(ctx, txns, fuzzyMatched, req.BatchSize)
}

// simplifyMemos rewrites memos for transactions the fuzzy matcher resolved,
// which skipped the category call that would otherwise have produced one.
func (c *Coordinator) simplifyMemos(ctx context.Context, txns []model.Transaction, matched []int, batchSize int) {
	var needed []int
	for _, i := range matched {
		s := txns[i].Meta.Suggestion
		if s != nil && s.SimplifiedMemo == "" && txns[i].Memo != "" {
			needed = append(needed, i)
		}
	}

	for _, batch := range chunk(needed, batchSize) {
		rewrites, err := c.model.SimplifyMemos(ctx, memoPrompt(txns, batch))
		if err != nil {
			// Memos are cosmetic; keep the originals.
			slog.Warn("memo simplification failed", "batch_size", len(batch), "error", err)
			continue
		}
		for _, rw := range rewrites {
			if rw.Index < 0 || rw.Index >= len(batch) {
				continue
			}
			txns[batch[rw.Index]].Meta.Suggestion.SimplifiedMemo = rw.Memo
		}
	}
}

func (c *Coordinator) reportProgress(ctx context.Context, token string, prog model.StageProgress) {
	if token == "" || c.progress == nil {
		return
	}
	if err := c.progress.Set(ctx, token, prog); err != nil {
		slog.Warn("failed to write progress", "token", token, "stage", prog.Stage, "error", err)
	}
}

func suggestedLedger(txn *model.Transaction) string {
	if txn.Meta.Suggestion != nil && txn.Meta.Suggestion.LedgerID != "" {
		return txn.Meta.Suggestion.LedgerID
	}
	return txn.LedgerID
}

func parseFlowType(s string) model.FlowDirection {
	switch model.FlowDirection(s) {
	case model.FlowExpense, model.FlowIncome, model.FlowTransfer, model.FlowNotCounted,
		model.FlowLoanOut, model.FlowLoanIn, model.FlowLoanRepay:
		return model.FlowDirection(s)
	default:
		return ""
	}
}

func chunk(idx []int, size int) [][]int {
	if len(idx) == 0 {
		return nil
	}
	var out [][]int
	for start := 0; start < len(idx); start += size {
		end := start + size
		if end > len(idx) {
			end = len(idx)
		}
		out = append(out, idx[start:end])
	}
	return out
}
