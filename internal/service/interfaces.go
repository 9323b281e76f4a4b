// Package service defines the collaborator contracts the pipeline consumes.
// Persistence and the upload/display surfaces live behind these interfaces.
package service

import (
	"context"
	"time"

	"github.com/ledgerlens/ledgerlens/internal/model"
)

// LedgerStore is the ledger directory: which books a user owns and which
// category vocabulary each book carries.
type LedgerStore interface {
	ListLedgers(ctx context.Context, userID string) ([]model.Ledger, error)
	GetLedger(ctx context.Context, ledgerID string) (*model.Ledger, error)
	// ListCategories returns the ledger's known categories in combined
	// "primary/secondary" form.
	ListCategories(ctx context.Context, ledgerID string) ([]string, error)
}

// HistoryStore queries committed historical transactions for profiling and
// rule mining. Implementations return transactions newest first.
type HistoryStore interface {
	TransactionsByLedger(ctx context.Context, ledgerID string) ([]model.Transaction, error)
	TransactionsByUser(ctx context.Context, userID string) ([]model.Transaction, error)
	CountByMerchant(ctx context.Context, userID, merchant string) (int, error)
}

// RuleStore persists matching rules.
type RuleStore interface {
	EnabledRules(ctx context.Context, userID string) ([]model.MatchingRule, error)
	CountRules(ctx context.Context, userID string) (int, error)
	CreateRule(ctx context.Context, rule *model.MatchingRule) error
	UpdateRule(ctx context.Context, rule *model.MatchingRule) error
	IncrementHitCount(ctx context.Context, ruleID int64) error
}

// ProfileStore persists derived ledger profiles.
type ProfileStore interface {
	GetProfile(ctx context.Context, ledgerID string) (*model.LedgerProfile, error)
	SaveProfile(ctx context.Context, profile *model.LedgerProfile) error
}

// ProgressStore is the key-value progress channel between a running pipeline
// and a polling caller. The pipeline only writes; the caller only reads.
type ProgressStore interface {
	Set(ctx context.Context, token string, progress model.StageProgress) error
	Get(ctx context.Context, token string) (*model.StageProgress, error)
	Clear(ctx context.Context, token string) error
}

// RetryOptions configures retry behavior for operations.
type RetryOptions struct {
	MaxAttempts  int
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Multiplier   float64
}
