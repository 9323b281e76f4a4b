package rules

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/ledgerlens/ledgerlens/internal/model"
	"github.com/ledgerlens/ledgerlens/internal/profile"
	"github.com/ledgerlens/ledgerlens/internal/service"
)

// Learning thresholds.
const (
	merchantStableMin = 3   // merchant occurrences needed for a merchant rule
	keywordStableMin  = 2   // keyword occurrences needed for a description rule
	maxDescKeywords   = 3   // keywords carried into a description rule
	amountRuleCeiling = 1000.0
	amountWindowRatio = 0.20
)

// Fixed priorities per learning strategy. Combined rules scale with their
// condition count so they outrank weak single-signal fallbacks in the engine.
const (
	priorityMerchant     = 60
	priorityDescription  = 55
	priorityAmount       = 45
	priorityPayType      = 40
	priorityCombinedBase = 60 // +5 per condition
	priorityBumpStep     = 5
	priorityCeiling      = 100
)

// Correction is one user fix: the original transaction plus where it should
// have gone.
type Correction struct {
	Txn       model.Transaction
	UserID    string
	LedgerID  string
	Category  string
	Direction model.FlowDirection
}

// Learner synthesizes a matching rule from a single correction.
type Learner struct {
	rules   service.RuleStore
	history service.HistoryStore
}

// NewLearner creates a rule learner.
func NewLearner(rules service.RuleStore, history service.HistoryStore) *Learner {
	return &Learner{rules: rules, history: history}
}

// Learn turns a correction into a rule. When an existing rule targeting the
// same ledger already matches the transaction, that rule's priority and hit
// count are bumped instead of creating a near-duplicate.
func (l *Learner) Learn(ctx context.Context, c Correction) (*model.MatchingRule, error) {
	existing, err := l.rules.EnabledRules(ctx, c.UserID)
	if err != nil {
		return nil, fmt.Errorf("failed to load rules: %w", err)
	}

	var sameLedger []model.MatchingRule
	for _, r := range existing {
		if r.LedgerID == c.LedgerID {
			sameLedger = append(sameLedger, r)
		}
	}
	if dup := BestMatch(sameLedger, &c.Txn); dup != nil {
		rule := dup.Rule
		rule.Priority = min(rule.Priority+priorityBumpStep, priorityCeiling)
		rule.HitCount++
		rule.UpdatedAt = time.Now()
		if err := l.rules.UpdateRule(ctx, &rule); err != nil {
			return nil, fmt.Errorf("failed to bump existing rule: %w", err)
		}
		slog.Debug("correction matched an existing rule, bumped instead of duplicating",
			"rule_id", rule.ID, "priority", rule.Priority)
		return &rule, nil
	}

	rule, err := l.synthesize(ctx, c)
	if err != nil {
		return nil, err
	}
	if err := l.rules.CreateRule(ctx, rule); err != nil {
		return nil, fmt.Errorf("failed to save learned rule: %w", err)
	}
	slog.Info("learned new rule from correction",
		"kind", rule.Kind, "priority", rule.Priority, "ledger_id", rule.LedgerID)
	return rule, nil
}

// synthesize picks a rule strategy by waterfall over the stable signals the
// transaction carries. Two or more simultaneous signals produce a combined
// rule, preferred over any single-signal rule.
func (l *Learner) synthesize(ctx context.Context, c Correction) (*model.MatchingRule, error) {
	txn := &c.Txn

	merchantStable := false
	if txn.Merchant != "" {
		count, err := l.history.CountByMerchant(ctx, c.UserID, txn.Merchant)
		if err != nil {
			return nil, fmt.Errorf("failed to count merchant history: %w", err)
		}
		merchantStable = count >= merchantStableMin
	}

	stableKeywords, err := l.stableKeywords(ctx, c)
	if err != nil {
		return nil, err
	}

	amountUsable := txn.Amount > 0 && txn.Amount < amountRuleCeiling
	payTypeUsable := txn.PayChannel != model.ChannelUnknown

	signals := 0
	for _, on := range []bool{merchantStable, len(stableKeywords) > 0, amountUsable, payTypeUsable} {
		if on {
			signals++
		}
	}

	rule := &model.MatchingRule{
		UserID:     c.UserID,
		LedgerID:   c.LedgerID,
		Category:   c.Category,
		Direction:  c.Direction,
		Provenance: model.RuleLearned,
		Enabled:    true,
		CreatedAt:  time.Now(),
		UpdatedAt:  time.Now(),
	}

	switch {
	case signals >= 2:
		rule.Kind = model.RuleCombined
		if merchantStable {
			rule.Condition.MerchantKeywords = []string{txn.Merchant}
		}
		if len(stableKeywords) > 0 {
			rule.Condition.DescKeywords = stableKeywords
		}
		if amountUsable {
			lo, hi := amountWindow(txn.Amount)
			rule.Condition.AmountMin = &lo
			rule.Condition.AmountMax = &hi
		}
		if payTypeUsable {
			rule.Condition.PayTypes = []string{string(txn.PayChannel)}
		}
		rule.Priority = priorityCombinedBase + priorityBumpStep*rule.Condition.ConditionCount()
		rule.Name = fmt.Sprintf("组合规则: %s", ruleLabel(txn))

	case merchantStable:
		rule.Kind = model.RuleMerchantKeyword
		rule.Condition.MerchantKeywords = []string{txn.Merchant}
		rule.Priority = priorityMerchant
		rule.Name = fmt.Sprintf("商家规则: %s", txn.Merchant)

	case len(stableKeywords) > 0:
		rule.Kind = model.RuleDescriptionKeyword
		rule.Condition.DescKeywords = stableKeywords
		rule.Priority = priorityDescription
		rule.Name = fmt.Sprintf("描述规则: %s", strings.Join(stableKeywords, " "))

	case amountUsable:
		rule.Kind = model.RuleAmountRange
		lo, hi := amountWindow(txn.Amount)
		rule.Condition.AmountMin = &lo
		rule.Condition.AmountMax = &hi
		rule.Priority = priorityAmount
		rule.Name = fmt.Sprintf("金额规则: %.2f-%.2f", lo, hi)

	case payTypeUsable:
		rule.Kind = model.RulePayType
		rule.Condition.PayTypes = []string{string(txn.PayChannel)}
		rule.Priority = priorityPayType
		rule.Name = fmt.Sprintf("支付方式规则: %s", txn.PayChannel)

	default:
		// Last resort: a merchant rule on whatever merchant text exists.
		rule.Kind = model.RuleMerchantKeyword
		rule.Condition.MerchantKeywords = []string{txn.Merchant}
		rule.Priority = priorityPayType
		rule.Name = fmt.Sprintf("商家规则: %s", ruleLabel(txn))
	}

	return rule, nil
}

// stableKeywords extracts the transaction's keywords and keeps those that
// recur in the user's history, most frequent first.
func (l *Learner) stableKeywords(ctx context.Context, c Correction) ([]string, error) {
	extracted := profile.ExtractKeywords(c.Txn.Memo+" "+c.Txn.Goods, nil)
	if len(extracted) == 0 {
		return nil, nil
	}

	history, err := l.history.TransactionsByUser(ctx, c.UserID)
	if err != nil {
		return nil, fmt.Errorf("failed to load history: %w", err)
	}

	counts := make(map[string]int, len(extracted))
	for _, h := range history {
		text := strings.ToLower(h.Merchant + " " + h.Memo + " " + h.Goods)
		for _, kw := range extracted {
			if strings.Contains(text, strings.ToLower(kw)) {
				counts[kw]++
			}
		}
	}

	var stable []string
	seen := make(map[string]bool, len(extracted))
	for _, kw := range extracted {
		if counts[kw] >= keywordStableMin && !seen[kw] {
			stable = append(stable, kw)
			seen[kw] = true
		}
	}
	sort.SliceStable(stable, func(i, j int) bool { return counts[stable[i]] > counts[stable[j]] })
	if len(stable) > maxDescKeywords {
		stable = stable[:maxDescKeywords]
	}
	return stable, nil
}

func amountWindow(amount float64) (lo, hi float64) {
	lo = amount * (1 - amountWindowRatio)
	hi = amount * (1 + amountWindowRatio)
	return lo, hi
}

func ruleLabel(txn *model.Transaction) string {
	if txn.Merchant != "" {
		return txn.Merchant
	}
	if txn.Memo != "" {
		return txn.Memo
	}
	return txn.Goods
}
