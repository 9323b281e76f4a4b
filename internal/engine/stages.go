package engine

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"unicode/utf8"

	"github.com/ledgerlens/ledgerlens/internal/detect"
	"github.com/ledgerlens/ledgerlens/internal/model"
)

// Attribution and ratio stage tuning.
const (
	attributionConfidence = 0.85
	ratioMinShare         = 0.2
	ratioMinCount         = 3
	ratioBaseConfidence   = 0.5
	ratioShareWeight      = 0.4
)

// matchRules asks the rule engine for the best stored rule. Store failures
// are logged and treated as "no match" so the pipeline keeps moving.
func (c *Coordinator) matchRules(ctx context.Context, sc *stageContext, txn *model.Transaction) *model.Suggestion {
	if c.rules == nil {
		return nil
	}
	result, err := c.rules.Match(ctx, sc.userID, txn)
	if err != nil {
		slog.Warn("rule matching failed", "error", err)
		return nil
	}
	if result == nil {
		return nil
	}

	name, ok := sc.ledgerName[result.Rule.LedgerID]
	if !ok {
		// Rule points at a ledger outside the request's candidate set.
		return nil
	}

	s := &model.Suggestion{
		LedgerID:   result.Rule.LedgerID,
		LedgerName: name,
		Direction:  result.Rule.Direction,
		Source:     StageRules,
		RuleID:     result.Rule.ID,
		Reason:     result.Rule.Name,
		Confidence: result.Confidence,
	}
	if result.Rule.Category != "" {
		s.Category = result.Rule.Category
		s.CategoryPrimary, s.CategorySecondary = model.SplitCategory(result.Rule.Category)
	}
	return s
}

// matchAttribution assigns a ledger whose name is literally mentioned in the
// transaction text, e.g. a memo "家庭开支-买菜" against a ledger named 家庭开支.
func matchAttribution(_ context.Context, sc *stageContext, txn *model.Transaction) *model.Suggestion {
	text := txn.Merchant + " " + txn.Memo + " " + txn.Goods
	for _, l := range sc.ledgers {
		if utf8.RuneCountInString(l.Name) < 2 {
			continue
		}
		if strings.Contains(text, l.Name) {
			return &model.Suggestion{
				LedgerID:    l.ID,
				LedgerName:  l.Name,
				Attribution: l.Name,
				Source:      StageAttribution,
				Reason:      fmt.Sprintf("交易描述中出现账本名称「%s」", l.Name),
				Confidence:  attributionConfidence,
			}
		}
	}
	return nil
}

// matchRatio uses the imported category text: when one ledger's history holds
// a clear share of that category, the transaction likely belongs there.
func matchRatio(_ context.Context, sc *stageContext, txn *model.Transaction) *model.Suggestion {
	if txn.Category == "" {
		return nil
	}

	var (
		bestID    string
		bestShare float64
	)
	for _, p := range sc.profiles {
		if p.Total == 0 {
			continue
		}
		count := p.Categories[txn.Category]
		if count < ratioMinCount {
			continue
		}
		share := float64(count) / float64(p.Total)
		if share < ratioMinShare {
			continue
		}
		if share > bestShare {
			bestShare = share
			bestID = p.LedgerID
		}
	}
	if bestID == "" {
		return nil
	}

	confidence := ratioBaseConfidence + ratioShareWeight*bestShare
	if confidence > 0.9 {
		confidence = 0.9
	}
	return &model.Suggestion{
		LedgerID:   bestID,
		LedgerName: sc.ledgerName[bestID],
		Source:     StageRatio,
		Reason:     fmt.Sprintf("分类「%s」在该账本历史中占比 %.0f%%", txn.Category, bestShare*100),
		Confidence: confidence,
	}
}

// matchProfile scores the transaction against every ledger fingerprint and
// takes the best candidate, if any.
func matchProfile(_ context.Context, sc *stageContext, txn *model.Transaction) *model.Suggestion {
	candidates := detect.Rank(txn, sc.profiles, sc.accountNames, 1)
	if len(candidates) == 0 {
		return nil
	}

	best := candidates[0]
	return &model.Suggestion{
		LedgerID:   best.LedgerID,
		LedgerName: sc.ledgerName[best.LedgerID],
		Source:     StageProfile,
		Reason:     "历史画像匹配",
		Confidence: best.Confidence,
	}
}
