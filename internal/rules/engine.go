// Package rules evaluates, learns, and bootstraps stored matching rules.
package rules

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/ledgerlens/ledgerlens/internal/model"
	"github.com/ledgerlens/ledgerlens/internal/service"
)

// Confidence formula constants.
const (
	baseConfidence = 0.70
	minConfidence  = 0.50
	maxConfidence  = 0.95
)

// Specificity scoring constants.
const (
	specBase         = 10
	specNarrowAmount = 5
	narrowAmountSpan = 50.0
)

// MatchResult is the winning rule plus its derived scores.
type MatchResult struct {
	Rule        model.MatchingRule
	Confidence  float64
	Specificity int
}

// Engine evaluates stored matching rules against transactions.
type Engine struct {
	store service.RuleStore
}

// NewEngine creates a rule engine over the given store.
func NewEngine(store service.RuleStore) *Engine {
	return &Engine{store: store}
}

// Match evaluates the user's enabled rules and returns the best-ranked match,
// or nil when no rule matches. A successful match increments the winning
// rule's hit counter.
func (e *Engine) Match(ctx context.Context, userID string, txn *model.Transaction) (*MatchResult, error) {
	rules, err := e.store.EnabledRules(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load rules: %w", err)
	}

	result := BestMatch(rules, txn)
	if result == nil {
		return nil, nil
	}

	if err := e.store.IncrementHitCount(ctx, result.Rule.ID); err != nil {
		// Losing a hit-count tick is not worth failing the classification.
		slog.Warn("failed to increment rule hit count", "rule_id", result.Rule.ID, "error", err)
	}
	return result, nil
}

// BestMatch evaluates rules in declaration order and returns the highest
// ranked match: rank = priority×100 + specificity, ties broken by declaration
// order. Deterministic for identical inputs. Any internal panic is treated as
// "no match".
func BestMatch(rules []model.MatchingRule, txn *model.Transaction) (result *MatchResult) {
	defer func() {
		if r := recover(); r != nil {
			result = nil
		}
	}()

	bestRank := -1
	for i := range rules {
		rule := &rules[i]
		if !rule.Enabled {
			continue
		}
		spec, ok := matches(rule, txn)
		if !ok {
			continue
		}
		rank := rule.Priority*100 + spec
		if rank > bestRank {
			bestRank = rank
			result = &MatchResult{
				Rule:        *rule,
				Specificity: spec,
				Confidence:  confidence(rule, spec),
			}
		}
	}
	return result
}

// matches checks every populated condition group; all must hold. The returned
// specificity sums per-group scores.
func matches(rule *model.MatchingRule, txn *model.Transaction) (int, bool) {
	cond := rule.Condition
	if cond.ConditionCount() == 0 {
		return 0, false
	}
	if rule.Direction != "" && rule.Direction != txn.Direction {
		return 0, false
	}

	spec := 0

	if len(cond.MerchantKeywords) > 0 {
		if !containsAnyKeyword(txn.Merchant, cond.MerchantKeywords) {
			return 0, false
		}
		spec += specBase + len(cond.MerchantKeywords) - 1
	}

	if len(cond.DescKeywords) > 0 {
		desc := txn.Memo + " " + txn.Goods
		if !containsAnyKeyword(desc, cond.DescKeywords) {
			return 0, false
		}
		spec += specBase + len(cond.DescKeywords) - 1
	}

	if cond.HasAmountRange() {
		if cond.AmountMin != nil && txn.Amount < *cond.AmountMin {
			return 0, false
		}
		if cond.AmountMax != nil && txn.Amount > *cond.AmountMax {
			return 0, false
		}
		spec += specBase
		if cond.AmountMin != nil && cond.AmountMax != nil && *cond.AmountMax-*cond.AmountMin < narrowAmountSpan {
			spec += specNarrowAmount
		}
	}

	if len(cond.PayTypes) > 0 {
		if !payTypeMatches(txn, cond.PayTypes) {
			return 0, false
		}
		spec += specBase + len(cond.PayTypes) - 1
	}

	return spec, true
}

// confidence blends priority, usage history, and specificity into [0.5,0.95].
func confidence(rule *model.MatchingRule, specificity int) float64 {
	c := baseConfidence +
		0.2*capRatio(rule.Priority) +
		0.1*capRatio(rule.HitCount) +
		0.1*capRatio(specificity)
	if c < minConfidence {
		return minConfidence
	}
	if c > maxConfidence {
		return maxConfidence
	}
	return c
}

func capRatio(v int) float64 {
	if v <= 0 {
		return 0
	}
	if v >= 100 {
		return 1
	}
	return float64(v) / 100
}

func containsAnyKeyword(text string, keywords []string) bool {
	text = strings.ToLower(text)
	for _, kw := range keywords {
		kw = strings.ToLower(strings.TrimSpace(kw))
		if kw != "" && strings.Contains(text, kw) {
			return true
		}
	}
	return false
}

func payTypeMatches(txn *model.Transaction, payTypes []string) bool {
	for _, pt := range payTypes {
		if pt == "" {
			continue
		}
		if string(txn.PayChannel) == pt || strings.Contains(strings.ToLower(txn.PayText), strings.ToLower(pt)) {
			return true
		}
	}
	return false
}
