package rules

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"github.com/ledgerlens/ledgerlens/internal/model"
	"github.com/ledgerlens/ledgerlens/internal/service"
)

// Bootstrap thresholds.
const (
	bootstrapMinHistory = 40 // history rows needed before mining is worthwhile
	bootstrapMinSupport = 4  // occurrences a (ledger, merchant, category) group needs
)

// bootstrapLedgerCap scales how many groups per ledger are promoted with the
// user's total transaction volume.
func bootstrapLedgerCap(total int) int {
	switch {
	case total >= 10000:
		return 100
	case total >= 5000:
		return 75
	case total >= 1000:
		return 50
	default:
		return 25
	}
}

// Bootstrapper seeds an initial rule set for users who have history but no
// rules, by mining high-frequency (ledger, merchant, category) triples and
// feeding each group's most recent sample to the learner.
type Bootstrapper struct {
	rules   service.RuleStore
	history service.HistoryStore
	learner *Learner
}

// NewBootstrapper creates a rule bootstrapper.
func NewBootstrapper(rules service.RuleStore, history service.HistoryStore, learner *Learner) *Bootstrapper {
	return &Bootstrapper{rules: rules, history: history, learner: learner}
}

// Seed mines the user's history into initial rules. It is a no-op when the
// user already has rules or not enough history exists. Returns the number of
// rules created or bumped.
func (b *Bootstrapper) Seed(ctx context.Context, userID string) (int, error) {
	existing, err := b.rules.CountRules(ctx, userID)
	if err != nil {
		return 0, fmt.Errorf("failed to count rules: %w", err)
	}
	if existing > 0 {
		return 0, nil
	}

	history, err := b.history.TransactionsByUser(ctx, userID)
	if err != nil {
		return 0, fmt.Errorf("failed to load history: %w", err)
	}
	if len(history) < bootstrapMinHistory {
		slog.Debug("not enough history to bootstrap rules",
			"user_id", userID, "history", len(history))
		return 0, nil
	}

	groups := groupTriples(history)
	sort.SliceStable(groups, func(i, j int) bool { return groups[i].count > groups[j].count })

	ledgerCap := bootstrapLedgerCap(len(history))
	perLedger := make(map[string]int)
	created := 0

	for _, g := range groups {
		if g.count < bootstrapMinSupport {
			break // groups are sorted, nothing later clears the bar
		}
		if g.ledgerID == "" || perLedger[g.ledgerID] >= ledgerCap {
			continue
		}

		_, err := b.learner.Learn(ctx, Correction{
			Txn:       g.newest,
			UserID:    userID,
			LedgerID:  g.ledgerID,
			Category:  g.category,
			Direction: g.newest.Direction,
		})
		if err != nil {
			slog.Warn("bootstrap learning failed for group, skipping",
				"ledger_id", g.ledgerID, "merchant", g.merchant, "error", err)
			continue
		}
		perLedger[g.ledgerID]++
		created++
	}

	slog.Info("bootstrapped initial rule set",
		"user_id", userID, "rules", created, "groups", len(groups))
	return created, nil
}

type triple struct {
	ledgerID string
	merchant string
	category string
	newest   model.Transaction
	count    int
}

// groupTriples buckets history by (ledger, merchant, category). History
// arrives newest first, so the first sample seen for a group is its newest.
func groupTriples(history []model.Transaction) []triple {
	index := make(map[string]int)
	var groups []triple

	for _, txn := range history {
		if txn.Merchant == "" || txn.Category == "" {
			continue
		}
		key := txn.LedgerID + "\x00" + txn.Merchant + "\x00" + txn.Category
		if i, ok := index[key]; ok {
			groups[i].count++
			continue
		}
		index[key] = len(groups)
		groups = append(groups, triple{
			ledgerID: txn.LedgerID,
			merchant: txn.Merchant,
			category: txn.Category,
			newest:   txn,
			count:    1,
		})
	}
	return groups
}
