package profile

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/ledgerlens/ledgerlens/internal/model"
	"github.com/ledgerlens/ledgerlens/internal/service"
)

// Builder derives ledger profiles from committed history.
type Builder struct {
	history  service.HistoryStore
	profiles service.ProfileStore
}

// NewBuilder creates a profile builder over the given stores.
func NewBuilder(history service.HistoryStore, profiles service.ProfileStore) *Builder {
	return &Builder{history: history, profiles: profiles}
}

// Rebuild recomputes a ledger's profile wholesale from its committed history.
// accountNames are the caller's own account names, used as dynamic stopwords.
func (b *Builder) Rebuild(ctx context.Context, ledgerID string, accountNames []string) (*model.LedgerProfile, error) {
	txns, err := b.history.TransactionsByLedger(ctx, ledgerID)
	if err != nil {
		return nil, fmt.Errorf("failed to load history for ledger %s: %w", ledgerID, err)
	}

	p := model.NewLedgerProfile(ledgerID)
	for i := range txns {
		Apply(p, &txns[i], accountNames)
	}
	p.TruncateKeywords()
	p.UpdatedAt = time.Now()

	if err := b.profiles.SaveProfile(ctx, p); err != nil {
		return nil, fmt.Errorf("failed to save profile: %w", err)
	}

	slog.Info("ledger profile rebuilt",
		"ledger_id", ledgerID,
		"transactions", p.Total,
		"keywords", len(p.Keywords))
	return p, nil
}

// Update merges only the new transactions into the stored profile. Starting
// from the same history, Rebuild and repeated Updates converge to the same
// keyword top set and identical totals.
func (b *Builder) Update(ctx context.Context, ledgerID string, txns []model.Transaction, accountNames []string) (*model.LedgerProfile, error) {
	p, err := b.profiles.GetProfile(ctx, ledgerID)
	if err != nil {
		return nil, fmt.Errorf("failed to load profile for ledger %s: %w", ledgerID, err)
	}
	if p == nil {
		p = model.NewLedgerProfile(ledgerID)
	}

	for i := range txns {
		Apply(p, &txns[i], accountNames)
	}
	p.TruncateKeywords()
	p.UpdatedAt = time.Now()

	if err := b.profiles.SaveProfile(ctx, p); err != nil {
		return nil, fmt.Errorf("failed to save profile: %w", err)
	}
	return p, nil
}

// Apply tallies a single transaction into a profile. Exported so that both
// rebuild and incremental update run the exact same per-transaction
// extraction.
func Apply(p *model.LedgerProfile, txn *model.Transaction, accountNames []string) {
	if txn.Category != "" {
		p.Categories[txn.Category]++
	}
	for _, kw := range extractTxnKeywords(txn, accountNames) {
		p.Keywords[kw]++
	}
	if txn.PayChannel != model.ChannelUnknown {
		p.PayTypes[string(txn.PayChannel)]++
	}
	p.AmountBuckets[model.AmountBucket(txn.Amount)]++
	p.Total++
}

// extractTxnKeywords gathers keyword-bearing text from a transaction.
func extractTxnKeywords(txn *model.Transaction, accountNames []string) []string {
	text := txn.Merchant + " " + txn.Memo + " " + txn.Goods
	if txn.Meta.Suggestion != nil && txn.Meta.Suggestion.Attribution != "" {
		text += " " + txn.Meta.Suggestion.Attribution
	}
	return ExtractKeywords(text, accountNames)
}
