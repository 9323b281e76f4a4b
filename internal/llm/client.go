// Package llm talks to a generative-model endpoint for the transactions the
// deterministic stages could not resolve.
package llm

import (
	"context"
	"time"
)

// Client defines the interface for model providers.
type Client interface {
	// PickLedgers asks the model to choose a ledger per listed transaction.
	PickLedgers(ctx context.Context, prompt string) ([]LedgerPick, error)
	// PickCategories asks the model to choose a category per listed
	// transaction within one ledger's vocabulary.
	PickCategories(ctx context.Context, prompt string) ([]CategoryPick, error)
	// SimplifyMemos asks the model to rewrite memos into short labels.
	SimplifyMemos(ctx context.Context, prompt string) ([]MemoRewrite, error)
}

// LedgerPick is one element of the book-selection response.
type LedgerPick struct {
	LedgerID   string
	Index      int
	Confidence float64
}

// CategoryPick is one element of the category-selection response.
type CategoryPick struct {
	FlowType       string
	Primary        string
	Secondary      string
	Category       string // combined form
	SimplifiedMemo string
	Index          int
	Confidence     float64
}

// MemoRewrite is one element of the memo-simplification response.
type MemoRewrite struct {
	Memo  string
	Index int
}

// Config holds configuration for the model client.
type Config struct {
	Provider    string
	APIKey      string
	BaseURL     string
	Model       string
	Timeout     time.Duration
	RateLimit   int
	Temperature float64
	MaxTokens   int
}

// DefaultTimeout bounds every network call to the model.
const DefaultTimeout = 300 * time.Second

// Configured reports whether the config points at a usable endpoint.
func (c Config) Configured() bool {
	return c.BaseURL != "" && c.APIKey != ""
}
