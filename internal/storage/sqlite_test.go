package storage

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ledgerlens/ledgerlens/internal/common"
	"github.com/ledgerlens/ledgerlens/internal/model"
	"github.com/ledgerlens/ledgerlens/internal/service"
)

// Compile-time checks that the storage satisfies the pipeline contracts.
var (
	_ service.LedgerStore   = (*SQLiteStorage)(nil)
	_ service.HistoryStore  = (*SQLiteStorage)(nil)
	_ service.RuleStore     = (*SQLiteStorage)(nil)
	_ service.ProfileStore  = (*SQLiteStorage)(nil)
	_ service.ProgressStore = (*SQLiteStorage)(nil)
)

func testStorage(t *testing.T) *SQLiteStorage {
	t.Helper()
	s, err := NewSQLiteStorage(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	require.NoError(t, s.Migrate(context.Background()))
	return s
}

func TestMigrateIsIdempotent(t *testing.T) {
	s := testStorage(t)
	require.NoError(t, s.Migrate(context.Background()))

	version, err := s.SchemaVersion(context.Background())
	require.NoError(t, err)
	assert.Equal(t, ExpectedSchemaVersion, version)
}

func TestLedgerRoundtrip(t *testing.T) {
	s := testStorage(t)
	ctx := context.Background()

	require.NoError(t, s.CreateLedger(ctx, "u1", &model.Ledger{ID: "daily", Name: "日常开销", Description: "everyday"}))
	require.NoError(t, s.CreateLedger(ctx, "u1", &model.Ledger{ID: "family", Name: "家庭开支"}))
	require.NoError(t, s.CreateLedger(ctx, "u2", &model.Ledger{ID: "other", Name: "别人的"}))

	ledgers, err := s.ListLedgers(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, ledgers, 2)

	got, err := s.GetLedger(ctx, "daily")
	require.NoError(t, err)
	assert.Equal(t, "日常开销", got.Name)
	assert.Equal(t, "everyday", got.Description)

	_, err = s.GetLedger(ctx, "missing")
	assert.ErrorIs(t, err, common.ErrNotFound)

	require.NoError(t, s.AddCategory(ctx, "daily", "餐饮/外卖"))
	require.NoError(t, s.AddCategory(ctx, "daily", "交通/打车"))
	require.NoError(t, s.AddCategory(ctx, "daily", "餐饮/外卖")) // duplicate ignored

	categories, err := s.ListCategories(ctx, "daily")
	require.NoError(t, err)
	assert.Equal(t, []string{"交通/打车", "餐饮/外卖"}, categories)
}

func TestTransactionHistory(t *testing.T) {
	s := testStorage(t)
	ctx := context.Background()

	txns := []model.Transaction{
		{LedgerID: "daily", Date: "2024-03-01", Direction: model.FlowExpense, Category: "餐饮/外卖",
			PayChannel: model.ChannelWallet, Merchant: "美团", Memo: "午餐", Amount: 32.5},
		{LedgerID: "daily", Date: "2024-03-03", Direction: model.FlowExpense, Category: "交通/打车",
			Merchant: "滴滴出行", Amount: 18},
		{LedgerID: "family", Date: "2024-03-02", Direction: model.FlowExpense, Category: "购物",
			Merchant: "美团", Amount: 99},
	}
	require.NoError(t, s.SaveTransactions(ctx, "u1", txns))

	// Newest first within a ledger.
	daily, err := s.TransactionsByLedger(ctx, "daily")
	require.NoError(t, err)
	require.Len(t, daily, 2)
	assert.Equal(t, "2024-03-03", daily[0].Date)
	assert.Equal(t, "滴滴出行", daily[0].Merchant)
	assert.Equal(t, model.FlowExpense, daily[0].Direction)
	assert.Equal(t, model.ChannelWallet, daily[1].PayChannel)
	assert.InDelta(t, 32.5, daily[1].Amount, 0.001)

	all, err := s.TransactionsByUser(ctx, "u1")
	require.NoError(t, err)
	assert.Len(t, all, 3)

	count, err := s.CountByMerchant(ctx, "u1", "美团")
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}

func TestRuleRoundtrip(t *testing.T) {
	s := testStorage(t)
	ctx := context.Background()

	minAmount, maxAmount := 20.0, 40.0
	rule := &model.MatchingRule{
		UserID:     "u1",
		Name:       "组合规则: 滴滴",
		Kind:       model.RuleCombined,
		LedgerID:   "daily",
		Category:   "交通/打车",
		Direction:  model.FlowExpense,
		Provenance: model.RuleLearned,
		Priority:   70,
		Enabled:    true,
		Condition: model.RuleCondition{
			MerchantKeywords: []string{"滴滴"},
			AmountMin:        &minAmount,
			AmountMax:        &maxAmount,
		},
	}
	require.NoError(t, s.CreateRule(ctx, rule))
	require.NotZero(t, rule.ID)

	disabled := &model.MatchingRule{
		UserID: "u1", Name: "停用", Kind: model.RuleMerchantKeyword, LedgerID: "daily",
		Provenance: model.RuleUserAuthored, Enabled: false,
		Condition: model.RuleCondition{MerchantKeywords: []string{"无"}},
	}
	require.NoError(t, s.CreateRule(ctx, disabled))

	enabled, err := s.EnabledRules(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, enabled, 1)
	got := enabled[0]
	assert.Equal(t, rule.ID, got.ID)
	assert.Equal(t, model.RuleCombined, got.Kind)
	assert.Equal(t, []string{"滴滴"}, got.Condition.MerchantKeywords)
	require.NotNil(t, got.Condition.AmountMin)
	assert.InDelta(t, 20.0, *got.Condition.AmountMin, 0.001)

	count, err := s.CountRules(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	require.NoError(t, s.IncrementHitCount(ctx, rule.ID))
	require.NoError(t, s.IncrementHitCount(ctx, rule.ID))

	got.Priority = 75
	require.NoError(t, s.UpdateRule(ctx, &got))

	enabled, err = s.EnabledRules(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 75, enabled[0].Priority)
	assert.Equal(t, 2, enabled[0].HitCount)
}

func TestProfileRoundtrip(t *testing.T) {
	s := testStorage(t)
	ctx := context.Background()

	_, err := s.GetProfile(ctx, "daily")
	assert.ErrorIs(t, err, common.ErrNotFound)

	p := model.NewLedgerProfile("daily")
	p.Categories["餐饮/外卖"] = 12
	p.Keywords["美团"] = 9
	p.PayTypes[string(model.ChannelWallet)] = 11
	p.AmountBuckets[model.Bucket0To50] = 10
	p.Total = 12
	require.NoError(t, s.SaveProfile(ctx, p))

	got, err := s.GetProfile(ctx, "daily")
	require.NoError(t, err)
	assert.Equal(t, 12, got.Categories["餐饮/外卖"])
	assert.Equal(t, 9, got.Keywords["美团"])
	assert.Equal(t, 12, got.Total)

	// Upsert overwrites.
	p.Total = 13
	require.NoError(t, s.SaveProfile(ctx, p))
	got, err = s.GetProfile(ctx, "daily")
	require.NoError(t, err)
	assert.Equal(t, 13, got.Total)
}

func TestProgressRoundtrip(t *testing.T) {
	s := testStorage(t)
	ctx := context.Background()

	prog := model.StageProgress{Stage: "llm_book", BatchSize: 20, TotalBatches: 5, CompletedBatches: 2, FailedBatches: 1, LastBatchSize: 20}
	require.NoError(t, s.Set(ctx, "tok", prog))

	got, err := s.Get(ctx, "tok")
	require.NoError(t, err)
	assert.Equal(t, prog, *got)

	prog.CompletedBatches = 3
	require.NoError(t, s.Set(ctx, "tok", prog))
	got, err = s.Get(ctx, "tok")
	require.NoError(t, err)
	assert.Equal(t, 3, got.CompletedBatches)

	require.NoError(t, s.Clear(ctx, "tok"))
	_, err = s.Get(ctx, "tok")
	assert.ErrorIs(t, err, common.ErrNotFound)
}
