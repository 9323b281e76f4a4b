// Package engine sequences the classification stages per request: stored
// rules, attribution text, category ratios, ledger profiles, and finally the
// generative-model fallback.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/ledgerlens/ledgerlens/internal/common"
	"github.com/ledgerlens/ledgerlens/internal/dictionary"
	"github.com/ledgerlens/ledgerlens/internal/llm"
	"github.com/ledgerlens/ledgerlens/internal/model"
	"github.com/ledgerlens/ledgerlens/internal/rules"
	"github.com/ledgerlens/ledgerlens/internal/service"
)

// Mode selects which half of the classification a request wants.
type Mode string

// Classification modes.
const (
	ModeLedgerOnly   Mode = "ledger-only"
	ModeCategoryOnly Mode = "category-only"
	ModeBoth         Mode = "both"
)

// MatchStrategy selects how history and the model are combined.
type MatchStrategy string

// Match strategies.
const (
	StrategyHistoryFirst MatchStrategy = "history-first"
	StrategyHistoryOnly  MatchStrategy = "history-only"
	StrategyModelOnly    MatchStrategy = "model-only"
)

// Stage names used as resolution counters and progress keys.
const (
	StageRules       = "rules"
	StageAttribution = "attribution"
	StageRatio       = "ratio"
	StageProfile     = "profile"
	StageDictionary  = "dictionary"
	StageFuzzy       = "fuzzy"
	StageLLMBook     = "llm_book"
	StageLLMCategory = "llm_category"
)

// DefaultBatchSize is the number of transactions per model call.
const DefaultBatchSize = 20

// Request describes one classification run.
type Request struct {
	UserID        string
	ProgressToken string
	Mode          Mode
	Strategy      MatchStrategy
	Transactions  []model.Transaction
	LedgerIDs     []string // optional candidate-ledger allowlist
	BatchSize     int
	ReMatchLedger bool // clear prior ledger suggestions before classifying
}

// Result is the annotated transaction set plus aggregate counters.
type Result struct {
	Resolved     map[string]int
	Message      string
	Transactions []model.Transaction
	Unresolved   int
}

// Coordinator folds each transaction through the ordered stage list.
type Coordinator struct {
	ledgers  service.LedgerStore
	profiles service.ProfileStore
	progress service.ProgressStore
	rules    *rules.Engine
	dict     *dictionary.Matcher
	model    llm.Client
}

// New creates a coordinator. dict and model may be nil; the matching stages
// they back are then skipped.
func New(ledgers service.LedgerStore, profiles service.ProfileStore, progress service.ProgressStore, ruleEngine *rules.Engine, dict *dictionary.Matcher, model llm.Client) *Coordinator {
	return &Coordinator{
		ledgers:  ledgers,
		profiles: profiles,
		progress: progress,
		rules:    ruleEngine,
		dict:     dict,
		model:    model,
	}
}

// ledgerStage is one deterministic ledger-resolution attempt. A nil return
// means the stage has nothing to offer for this transaction.
type ledgerStage struct {
	match func(ctx context.Context, sc *stageContext, txn *model.Transaction) *model.Suggestion
	name  string
}

// Classify runs the requested stages over the transactions. Transactions that
// already carry a ledger suggestion are skipped by every ledger stage.
// Partial coverage is success; the error path is reserved for requests where
// no stage produced anything at all.
func (c *Coordinator) Classify(ctx context.Context, req Request) (*Result, error) {
	if len(req.Transactions) == 0 {
		return nil, common.ErrNoTransactions
	}
	if req.Mode == "" {
		req.Mode = ModeBoth
	}
	if req.Strategy == "" {
		req.Strategy = StrategyHistoryFirst
	}
	if req.BatchSize <= 0 {
		req.BatchSize = DefaultBatchSize
	}

	txns := req.Transactions
	preResolved := 0
	for i := range txns {
		if req.ReMatchLedger && txns[i].Meta.Suggestion != nil {
			txns[i].Meta.Suggestion.ClearLedger()
		}
		if txns[i].HasLedger() || txns[i].HasCategory() {
			preResolved++
		}
	}

	sc, err := c.buildContext(ctx, req, txns)
	if err != nil {
		return nil, err
	}

	if req.ProgressToken != "" {
		defer func() {
			if clearErr := c.progress.Clear(context.WithoutCancel(ctx), req.ProgressToken); clearErr != nil {
				slog.Warn("failed to clear progress", "token", req.ProgressToken, "error", clearErr)
			}
		}()
	}

	resolved := make(map[string]int)
	var notes []string

	if req.Mode != ModeCategoryOnly && req.Strategy != StrategyModelOnly {
		for _, stage := range c.ledgerStages() {
			for i := range txns {
				if txns[i].HasLedger() {
					continue
				}
				if s := stage.match(ctx, sc, &txns[i]); s != nil {
					ensureSuggestion(&txns[i]).Merge(s)
					resolved[stage.name]++
				}
			}
		}
	}

	wantModel := req.Strategy != StrategyHistoryOnly
	if wantModel && c.model == nil {
		wantModel = false
		notes = append(notes, "model endpoint not configured")
	}

	if req.Mode != ModeCategoryOnly && wantModel {
		c.runBookPhase(ctx, sc, req, txns, resolved)
	}

	if req.Mode != ModeLedgerOnly {
		c.runCategoryPhase(ctx, sc, req, txns, resolved, wantModel)
	}

	unresolved := 0
	for i := range txns {
		done := txns[i].HasLedger()
		if req.Mode == ModeCategoryOnly {
			done = txns[i].HasCategory()
		}
		if !done {
			unresolved++
		}
	}

	total := 0
	for _, n := range resolved {
		total += n
	}
	if total == 0 && preResolved == 0 {
		return nil, common.ErrNoSuggestions
	}

	return &Result{
		Transactions: txns,
		Resolved:     resolved,
		Unresolved:   unresolved,
		Message:      buildMessage(len(txns), unresolved, resolved, notes),
	}, nil
}

// ledgerStages is the deterministic resolution order before the model.
func (c *Coordinator) ledgerStages() []ledgerStage {
	return []ledgerStage{
		{name: StageRules, match: c.matchRules},
		{name: StageAttribution, match: matchAttribution},
		{name: StageRatio, match: matchRatio},
		{name: StageProfile, match: matchProfile},
	}
}

// stageContext is the per-request snapshot shared by all stages.
type stageContext struct {
	ledgerName   map[string]string
	profileByID  map[string]*model.LedgerProfile
	categories   map[string][]string
	userID       string
	ledgers      []model.Ledger
	profiles     []*model.LedgerProfile
	accountNames []string
}

func (c *Coordinator) buildContext(ctx context.Context, req Request, txns []model.Transaction) (*stageContext, error) {
	all, err := c.ledgers.ListLedgers(ctx, req.UserID)
	if err != nil {
		return nil, fmt.Errorf("failed to load ledgers: %w", err)
	}

	allowed := all
	if len(req.LedgerIDs) > 0 {
		want := make(map[string]bool, len(req.LedgerIDs))
		for _, id := range req.LedgerIDs {
			want[id] = true
		}
		allowed = make([]model.Ledger, 0, len(want))
		for _, l := range all {
			if want[l.ID] {
				allowed = append(allowed, l)
			}
		}
	}
	if len(allowed) == 0 {
		return nil, common.NewUserError("no candidate ledgers for this user", common.ErrNotFound)
	}

	sc := &stageContext{
		userID:      req.UserID,
		ledgers:     allowed,
		ledgerName:  make(map[string]string, len(allowed)),
		profileByID: make(map[string]*model.LedgerProfile, len(allowed)),
		categories:  make(map[string][]string),
	}
	for _, l := range allowed {
		sc.ledgerName[l.ID] = l.Name

		p, err := c.profiles.GetProfile(ctx, l.ID)
		if err != nil {
			if !errors.Is(err, common.ErrNotFound) {
				return nil, fmt.Errorf("failed to load profile for ledger %s: %w", l.ID, err)
			}
			continue
		}
		sc.profileByID[l.ID] = p
		sc.profiles = append(sc.profiles, p)
	}

	seen := make(map[string]bool)
	for i := range txns {
		if name := txns[i].Account; name != "" && !seen[name] {
			seen[name] = true
			sc.accountNames = append(sc.accountNames, name)
		}
	}
	return sc, nil
}

// ledgerVocabulary loads and caches one ledger's known categories.
func (c *Coordinator) ledgerVocabulary(ctx context.Context, sc *stageContext, ledgerID string) []string {
	if vocab, ok := sc.categories[ledgerID]; ok {
		return vocab
	}
	vocab, err := c.ledgers.ListCategories(ctx, ledgerID)
	if err != nil {
		slog.Warn("failed to load ledger categories", "ledger_id", ledgerID, "error", err)
		vocab = nil
	}
	sc.categories[ledgerID] = vocab
	return vocab
}

func ensureSuggestion(txn *model.Transaction) *model.Suggestion {
	if txn.Meta.Suggestion == nil {
		txn.Meta.Suggestion = &model.Suggestion{}
	}
	return txn.Meta.Suggestion
}

func buildMessage(total, unresolved int, resolved map[string]int, notes []string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "classified %d of %d transactions", total-unresolved, total)

	parts := make([]string, 0, len(resolved))
	for _, stage := range []string{StageRules, StageAttribution, StageRatio, StageProfile, StageDictionary, StageFuzzy, StageLLMBook, StageLLMCategory} {
		if n := resolved[stage]; n > 0 {
			parts = append(parts, fmt.Sprintf("%s: %d", stage, n))
		}
	}
	if len(parts) > 0 {
		fmt.Fprintf(&b, " (%s)", strings.Join(parts, ", "))
	}
	if unresolved > 0 {
		fmt.Fprintf(&b, "; %d left unresolved", unresolved)
	}
	for _, note := range notes {
		b.WriteString("; ")
		b.WriteString(note)
	}
	return b.String()
}
