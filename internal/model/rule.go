package model

import "time"

// RuleKind identifies which condition payload a matching rule carries.
type RuleKind string

// Rule kind constants.
const (
	RuleMerchantKeyword    RuleKind = "merchant_keyword"
	RuleDescriptionKeyword RuleKind = "description_keyword"
	RuleAmountRange        RuleKind = "amount_range"
	RulePayType            RuleKind = "pay_type"
	RuleCombined           RuleKind = "combined"
)

// RuleProvenance records how a rule came to exist.
type RuleProvenance string

// Rule provenance constants.
const (
	RuleUserAuthored RuleProvenance = "user"
	RuleLearned      RuleProvenance = "learned"
)

// RuleCondition is the kind-specific condition payload. For single-kind rules
// exactly one group is populated; a combined rule populates two or more, and
// every populated group must hold for the rule to match.
type RuleCondition struct {
	MerchantKeywords []string `json:"merchantKeywords,omitempty"`
	DescKeywords     []string `json:"descKeywords,omitempty"`
	PayTypes         []string `json:"payTypes,omitempty"`
	AmountMin        *float64 `json:"amountMin,omitempty"`
	AmountMax        *float64 `json:"amountMax,omitempty"`
}

// HasAmountRange reports whether the condition constrains the amount.
func (c RuleCondition) HasAmountRange() bool {
	return c.AmountMin != nil || c.AmountMax != nil
}

// ConditionCount returns the number of populated condition groups.
func (c RuleCondition) ConditionCount() int {
	n := 0
	if len(c.MerchantKeywords) > 0 {
		n++
	}
	if len(c.DescKeywords) > 0 {
		n++
	}
	if len(c.PayTypes) > 0 {
		n++
	}
	if c.HasAmountRange() {
		n++
	}
	return n
}

// MatchingRule is a stored, explainable condition → target mapping evaluated
// before the model fallback.
type MatchingRule struct {
	CreatedAt  time.Time
	UpdatedAt  time.Time
	UserID     string
	Name       string
	Kind       RuleKind
	LedgerID   string
	Category   string // optional target category, combined form
	Direction  FlowDirection
	Provenance RuleProvenance
	Condition  RuleCondition
	ID         int64
	Priority   int // 0-100
	HitCount   int
	Enabled    bool
}
