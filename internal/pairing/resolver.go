package pairing

import (
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/ledgerlens/ledgerlens/internal/model"
)

// Matching limits shared by both detectors.
const (
	maxPairDays     = 30
	amountTolerance = 0.01
)

// Match penalties, lowest score wins.
const (
	penaltyNameMatch  = 0
	penaltyMemoMatch  = 20
	penaltySameDay    = 50
	penaltyAmountOnly = 80
)

// Result is the resolver's output: the display set plus the pairs behind it.
type Result struct {
	Display []model.Transaction
	Pairs   []model.PairedTransaction
}

// Resolve runs the refund and family-account detectors over parsed
// transactions and builds the display set. Re-running it on an already-paired
// set is a no-op for those pairs: paired rows are never paired again.
func Resolve(txns []model.Transaction) Result {
	work := make([]model.Transaction, len(txns))
	copy(work, txns)

	var pairs []model.PairedTransaction

	for i := range work {
		if !isRefundCandidate(&work[i]) || work[i].Meta.Paired || work[i].Meta.PairID != "" {
			continue
		}
		if j, ok := bestMatch(work, i, refundMatch); ok {
			pairs = append(pairs, buildRefundPair(work, i, j))
		}
	}

	for i := range work {
		if !isFamilyCandidate(&work[i]) || work[i].Meta.Paired || work[i].Meta.PairID != "" {
			continue
		}
		if j, ok := bestMatch(work, i, familyMatch); ok {
			pairs = append(pairs, buildFamilyPair(work, i, j))
		}
	}

	if len(pairs) > 0 {
		slog.Debug("special patterns resolved", "pairs", len(pairs))
	}

	return Result{Display: buildDisplay(work, pairs), Pairs: pairs}
}

// matchScore rates candidate i against other j. ok is false when the pair is
// structurally impossible (wrong direction, date window, amounts).
type matchFn func(candidate, other *model.Transaction) (score float64, ok bool)

// bestMatch scans all other unpaired transactions for the lowest-scoring
// match.
func bestMatch(work []model.Transaction, i int, match matchFn) (int, bool) {
	bestIdx := -1
	bestScore := math.MaxFloat64

	for j := range work {
		if j == i || work[j].Meta.Paired || work[j].Meta.PairID != "" {
			continue
		}
		score, ok := match(&work[i], &work[j])
		if !ok {
			continue
		}
		if score < bestScore {
			bestScore = score
			bestIdx = j
		}
	}
	return bestIdx, bestIdx >= 0
}

// refundMatch pairs a refund candidate with the expense it reverses. The
// expense must cover the refunded amount and share name or memo text.
func refundMatch(candidate, other *model.Transaction) (float64, bool) {
	if other.Direction != model.FlowExpense {
		return 0, false
	}
	days, ok := dateDiffDays(candidate.Date, other.Date)
	if !ok || days > maxPairDays {
		return 0, false
	}
	amountDiff := other.Amount - candidate.Amount
	if amountDiff < -amountTolerance {
		// An expense cannot be refunded for more than was paid.
		return 0, false
	}
	if amountDiff < 0 {
		amountDiff = 0
	}

	penalty, ok := overlapPenalty(candidate, other)
	if !ok {
		return 0, false
	}
	return float64(days)*100 + amountDiff + float64(penalty), true
}

// familyMatch pairs a duplicate-payer candidate with its expense twin. Text
// overlap is preferred but the channel-specific heuristics accept pure
// date/amount agreement at a stiff penalty.
func familyMatch(candidate, other *model.Transaction) (float64, bool) {
	if candidate.Direction != model.FlowExpense && other.Direction != model.FlowExpense {
		return 0, false
	}
	days, ok := dateDiffDays(candidate.Date, other.Date)
	if !ok || days > maxPairDays {
		return 0, false
	}
	amountDiff := math.Abs(candidate.Amount - other.Amount)

	if penalty, ok := overlapPenalty(candidate, other); ok {
		return float64(days)*100 + amountDiff + float64(penalty), true
	}

	// Relaxed heuristics: identical amount, no shared text.
	if amountDiff <= amountTolerance {
		if days == 0 {
			return amountDiff + penaltySameDay, true
		}
		return float64(days)*100 + amountDiff + penaltyAmountOnly, true
	}
	return 0, false
}

// overlapPenalty checks name overlap first, then memo overlap with pairing
// noise stripped.
func overlapPenalty(a, b *model.Transaction) (int, bool) {
	if textOverlap(a.Merchant, b.Merchant) ||
		textOverlap(a.Memo, b.Merchant) ||
		textOverlap(a.Merchant, b.Memo) {
		return penaltyNameMatch, true
	}
	if textOverlap(stripNoise(a.Memo), stripNoise(b.Memo)) ||
		textOverlap(stripNoise(a.Memo), b.Goods) ||
		textOverlap(a.Goods, stripNoise(b.Memo)) ||
		textOverlap(a.Goods, b.Goods) {
		return penaltyMemoMatch, true
	}
	return 0, false
}

func isRefundCandidate(txn *model.Transaction) bool {
	if containsAny(txn.RawField(model.ColDirection), refundKeywords) ||
		containsAny(txn.Category, refundKeywords) ||
		containsAny(txn.Memo, refundKeywords) ||
		containsAny(txn.RawField(model.ColStatus), refundKeywords) {
		return true
	}
	return txn.Direction == model.FlowIncome && containsAny(txn.Memo, incomeRefundHints)
}

func isFamilyCandidate(txn *model.Transaction) bool {
	return containsAny(txn.Category, familyKeywords) ||
		containsAny(txn.Memo, familyKeywords) ||
		containsAny(txn.Merchant, familyKeywords) ||
		containsAny(txn.PayText, familyKeywords)
}

func dateDiffDays(a, b string) (int, bool) {
	ta, errA := time.Parse("2006-01-02", a)
	tb, errB := time.Parse("2006-01-02", b)
	if errA != nil || errB != nil {
		return 0, false
	}
	days := int(ta.Sub(tb).Hours() / 24)
	if days < 0 {
		days = -days
	}
	return days, true
}

// buildDisplay assembles the display set. Pair members stay in place, tagged
// and with their default selection applied. A partial refund's synthesized
// net row is inserted right after its members; a family pair's merged row is
// not displayed, it only backs the commit of the selected twin.
func buildDisplay(work []model.Transaction, pairs []model.PairedTransaction) []model.Transaction {
	merged := make(map[string]*model.Transaction, len(pairs))
	for _, p := range pairs {
		if p.Kind == model.PairPartialRefund && p.Merged != nil {
			merged[p.ID] = p.Merged
		}
	}

	display := make([]model.Transaction, 0, len(work)+len(merged))
	seen := make(map[string]bool, len(merged))
	for _, txn := range work {
		display = append(display, txn)
		if id := txn.Meta.PairID; id != "" && !seen[id] {
			if m, ok := merged[id]; ok {
				display = append(display, *m)
				seen[id] = true
			}
		}
	}
	return display
}

func buildRefundPair(work []model.Transaction, refundIdx, expenseIdx int) model.PairedTransaction {
	id := uuid.NewString()
	refund := &work[refundIdx]
	expense := &work[expenseIdx]

	full := math.Abs(expense.Amount-refund.Amount) <= amountTolerance

	for _, txn := range []*model.Transaction{refund, expense} {
		txn.Meta.Paired = true
		txn.Meta.PairID = id
		txn.Meta.IsRefund = true
		txn.Meta.PairTag = "refund"
		txn.Meta.Selected = false
	}

	if full {
		// Both original records stay visible, default-unselected: a fully
		// refunded expense is only imported if the user opts in.
		return model.PairedTransaction{
			ID:      id,
			Kind:    model.PairFullRefund,
			Members: []model.Transaction{*expense, *refund},
		}
	}

	net := *expense
	net.Amount = round2(expense.Amount - refund.Amount)
	net.Memo = annotatePartialRefund(expense, refund)
	net.Meta.PairID = id
	net.Meta.PairTag = "refund"
	net.Meta.IsRefund = true
	net.Meta.Paired = false
	net.Meta.Selected = true
	net.Meta.Suggestion = nil

	return model.PairedTransaction{
		ID:      id,
		Kind:    model.PairPartialRefund,
		Members: []model.Transaction{*expense, *refund},
		Merged:  &net,
	}
}

func buildFamilyPair(work []model.Transaction, candIdx, otherIdx int) model.PairedTransaction {
	id := uuid.NewString()

	// The expense-typed row is the duplicate payer; its twin carries the
	// fields worth keeping.
	expense := &work[candIdx]
	twin := &work[otherIdx]
	if expense.Direction != model.FlowExpense && twin.Direction == model.FlowExpense {
		expense, twin = twin, expense
	}

	for _, txn := range []*model.Transaction{expense, twin} {
		txn.Meta.Paired = true
		txn.Meta.PairID = id
		txn.Meta.IsFamily = true
		txn.Meta.PairTag = "family payment"
	}
	expense.Meta.Selected = false
	twin.Meta.Selected = true

	merged := *twin
	merged.Direction = model.FlowExpense
	// Prefer the twin's category/name/goods, borrow the payer's channel and
	// order id.
	if merged.Category == "" {
		merged.Category = expense.Category
	}
	if merged.Merchant == "" {
		merged.Merchant = expense.Merchant
	}
	if merged.Goods == "" {
		merged.Goods = expense.Goods
	}
	merged.PayChannel = expense.PayChannel
	merged.PayText = expense.PayText
	merged.OrderID = expense.OrderID
	merged.Meta.PairID = id
	merged.Meta.PairTag = "family payment"
	merged.Meta.IsFamily = true
	merged.Meta.Paired = false
	merged.Meta.Selected = true
	merged.Meta.Suggestion = nil

	return model.PairedTransaction{
		ID:      id,
		Kind:    model.PairFamily,
		Members: []model.Transaction{*expense, *twin},
		Merged:  &merged,
	}
}

func annotatePartialRefund(expense, refund *model.Transaction) string {
	memo := expense.Memo
	if memo == "" {
		memo = expense.Goods
	}
	if memo == "" {
		memo = expense.Merchant
	}
	return fmt.Sprintf("%s (原价%.2f 已退%.2f)", memo, expense.Amount, refund.Amount)
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
