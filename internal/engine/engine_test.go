package engine

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ledgerlens/ledgerlens/internal/common"
	"github.com/ledgerlens/ledgerlens/internal/dictionary"
	"github.com/ledgerlens/ledgerlens/internal/llm"
	"github.com/ledgerlens/ledgerlens/internal/model"
	"github.com/ledgerlens/ledgerlens/internal/rules"
)

// --- fakes ---

type fakeLedgers struct {
	categories map[string][]string
	ledgers    []model.Ledger
}

func (f *fakeLedgers) ListLedgers(_ context.Context, _ string) ([]model.Ledger, error) {
	return f.ledgers, nil
}

func (f *fakeLedgers) GetLedger(_ context.Context, id string) (*model.Ledger, error) {
	for i := range f.ledgers {
		if f.ledgers[i].ID == id {
			return &f.ledgers[i], nil
		}
	}
	return nil, common.ErrNotFound
}

func (f *fakeLedgers) ListCategories(_ context.Context, id string) ([]string, error) {
	return f.categories[id], nil
}

type fakeProfiles struct {
	profiles map[string]*model.LedgerProfile
}

func (f *fakeProfiles) GetProfile(_ context.Context, id string) (*model.LedgerProfile, error) {
	if p, ok := f.profiles[id]; ok {
		return p, nil
	}
	return nil, common.ErrNotFound
}

func (f *fakeProfiles) SaveProfile(_ context.Context, p *model.LedgerProfile) error {
	f.profiles[p.LedgerID] = p
	return nil
}

type fakeProgress struct {
	sets    []model.StageProgress
	cleared []string
}

func (f *fakeProgress) Set(_ context.Context, _ string, p model.StageProgress) error {
	f.sets = append(f.sets, p)
	return nil
}

func (f *fakeProgress) Get(_ context.Context, _ string) (*model.StageProgress, error) {
	if len(f.sets) == 0 {
		return nil, common.ErrNotFound
	}
	return &f.sets[len(f.sets)-1], nil
}

func (f *fakeProgress) Clear(_ context.Context, token string) error {
	f.cleared = append(f.cleared, token)
	return nil
}

type fakeRuleStore struct {
	rules []model.MatchingRule
}

func (f *fakeRuleStore) EnabledRules(_ context.Context, _ string) ([]model.MatchingRule, error) {
	return f.rules, nil
}

func (f *fakeRuleStore) CountRules(_ context.Context, _ string) (int, error) {
	return len(f.rules), nil
}

func (f *fakeRuleStore) CreateRule(_ context.Context, r *model.MatchingRule) error {
	r.ID = int64(len(f.rules) + 1)
	f.rules = append(f.rules, *r)
	return nil
}

func (f *fakeRuleStore) UpdateRule(_ context.Context, r *model.MatchingRule) error {
	for i := range f.rules {
		if f.rules[i].ID == r.ID {
			f.rules[i] = *r
			return nil
		}
	}
	return common.ErrNotFound
}

func (f *fakeRuleStore) IncrementHitCount(_ context.Context, _ int64) error { return nil }

type mockModel struct {
	pickLedgers    func(prompt string) ([]llm.LedgerPick, error)
	pickCategories func(prompt string) ([]llm.CategoryPick, error)
	simplifyMemos  func(prompt string) ([]llm.MemoRewrite, error)
	bookCalls      int
	categoryCalls  int
	memoCalls      int
}

func (m *mockModel) PickLedgers(_ context.Context, prompt string) ([]llm.LedgerPick, error) {
	m.bookCalls++
	if m.pickLedgers == nil {
		return nil, common.ErrModelBadResponse
	}
	return m.pickLedgers(prompt)
}

func (m *mockModel) PickCategories(_ context.Context, prompt string) ([]llm.CategoryPick, error) {
	m.categoryCalls++
	if m.pickCategories == nil {
		return nil, common.ErrModelBadResponse
	}
	return m.pickCategories(prompt)
}

func (m *mockModel) SimplifyMemos(_ context.Context, prompt string) ([]llm.MemoRewrite, error) {
	m.memoCalls++
	if m.simplifyMemos == nil {
		return nil, common.ErrModelBadResponse
	}
	return m.simplifyMemos(prompt)
}

// --- helpers ---

func twoLedgers() *fakeLedgers {
	return &fakeLedgers{
		ledgers: []model.Ledger{
			{ID: "daily", Name: "日常开销", Description: "everyday spending"},
			{ID: "family", Name: "家庭开支", Description: "shared household costs"},
		},
		categories: map[string][]string{
			"daily": {"餐饮/外卖", "交通/打车", "购物"},
		},
	}
}

func commuteRule() model.MatchingRule {
	return model.MatchingRule{
		ID:       1,
		UserID:   "u1",
		Name:     "商家规则: 滴滴",
		Kind:     model.RuleMerchantKeyword,
		LedgerID: "daily",
		Category: "交通/打车",
		Priority: 60,
		Enabled:  true,
		Condition: model.RuleCondition{
			MerchantKeywords: []string{"滴滴"},
		},
	}
}

func newCoordinator(ledgers *fakeLedgers, ruleStore *fakeRuleStore, dict *dictionary.Matcher, m llm.Client) (*Coordinator, *fakeProgress) {
	progress := &fakeProgress{}
	profiles := &fakeProfiles{profiles: map[string]*model.LedgerProfile{}}
	var engine *rules.Engine
	if ruleStore != nil {
		engine = rules.NewEngine(ruleStore)
	}
	return New(ledgers, profiles, progress, engine, dict, m), progress
}

// --- tests ---

func TestClassifyEmptyRequest(t *testing.T) {
	c, _ := newCoordinator(twoLedgers(), nil, nil, nil)
	_, err := c.Classify(context.Background(), Request{UserID: "u1"})
	assert.ErrorIs(t, err, common.ErrNoTransactions)
}

func TestRuleStageResolvesLedgerAndCategory(t *testing.T) {
	c, _ := newCoordinator(twoLedgers(), &fakeRuleStore{rules: []model.MatchingRule{commuteRule()}}, nil, nil)

	res, err := c.Classify(context.Background(), Request{
		UserID:       "u1",
		Strategy:     StrategyHistoryOnly,
		Transactions: []model.Transaction{{Merchant: "滴滴出行", Direction: model.FlowExpense, Amount: 23.5}},
	})
	require.NoError(t, err)

	s := res.Transactions[0].Meta.Suggestion
	require.NotNil(t, s)
	assert.Equal(t, "daily", s.LedgerID)
	assert.Equal(t, "日常开销", s.LedgerName)
	assert.Equal(t, "交通/打车", s.Category)
	assert.Equal(t, StageRules, s.Source)
	assert.Equal(t, int64(1), s.RuleID)
	assert.Equal(t, 1, res.Resolved[StageRules])
	assert.Zero(t, res.Unresolved)
}

func TestAttributionStageMatchesLedgerName(t *testing.T) {
	c, _ := newCoordinator(twoLedgers(), nil, nil, nil)

	res, err := c.Classify(context.Background(), Request{
		UserID:       "u1",
		Strategy:     StrategyHistoryOnly,
		Transactions: []model.Transaction{{Merchant: "永辉超市", Memo: "家庭开支-买菜", Direction: model.FlowExpense, Amount: 88}},
	})
	require.NoError(t, err)

	s := res.Transactions[0].Meta.Suggestion
	require.NotNil(t, s)
	assert.Equal(t, "family", s.LedgerID)
	assert.Equal(t, StageAttribution, s.Source)
	assert.Equal(t, "家庭开支", s.Attribution)
	assert.InDelta(t, attributionConfidence, s.Confidence, 0.001)
}

func TestRatioStageUsesCategoryShare(t *testing.T) {
	c, _ := newCoordinator(twoLedgers(), nil, nil, nil)
	p := model.NewLedgerProfile("daily")
	p.Categories["餐饮/外卖"] = 30
	p.Total = 50
	c.profiles.(*fakeProfiles).profiles["daily"] = p

	res, err := c.Classify(context.Background(), Request{
		UserID:       "u1",
		Strategy:     StrategyHistoryOnly,
		Transactions: []model.Transaction{{Merchant: "某外卖", Category: "餐饮/外卖", Direction: model.FlowExpense, Amount: 32}},
	})
	require.NoError(t, err)

	s := res.Transactions[0].Meta.Suggestion
	require.NotNil(t, s)
	assert.Equal(t, "daily", s.LedgerID)
	assert.Equal(t, StageRatio, s.Source)
	assert.InDelta(t, ratioBaseConfidence+ratioShareWeight*0.6, s.Confidence, 0.001)
}

func TestStagePrecedenceHolds(t *testing.T) {
	m := &mockModel{
		pickLedgers: func(string) ([]llm.LedgerPick, error) {
			return []llm.LedgerPick{{Index: 0, LedgerID: "family", Confidence: 0.9}}, nil
		},
	}
	c, _ := newCoordinator(twoLedgers(), &fakeRuleStore{rules: []model.MatchingRule{commuteRule()}}, nil, m)

	res, err := c.Classify(context.Background(), Request{
		UserID: "u1",
		Mode:   ModeLedgerOnly,
		Transactions: []model.Transaction{
			{Merchant: "滴滴出行", Direction: model.FlowExpense, Amount: 23.5},
			{Merchant: "神秘商户", Direction: model.FlowExpense, Amount: 999},
		},
	})
	require.NoError(t, err)

	// The rule-resolved transaction keeps its ledger; only the unresolved one
	// reaches the model, as batch index 0.
	assert.Equal(t, StageRules, res.Transactions[0].Meta.Suggestion.Source)
	assert.Equal(t, "daily", res.Transactions[0].Meta.Suggestion.LedgerID)
	assert.Equal(t, StageLLMBook, res.Transactions[1].Meta.Suggestion.Source)
	assert.Equal(t, "family", res.Transactions[1].Meta.Suggestion.LedgerID)
	assert.Equal(t, 1, m.bookCalls)
}

func TestUnconfiguredModelIsPartialSuccess(t *testing.T) {
	c, _ := newCoordinator(twoLedgers(), &fakeRuleStore{rules: []model.MatchingRule{commuteRule()}}, nil, nil)

	res, err := c.Classify(context.Background(), Request{
		UserID: "u1",
		Mode:   ModeLedgerOnly,
		Transactions: []model.Transaction{
			{Merchant: "滴滴出行", Direction: model.FlowExpense, Amount: 23.5},
			{Merchant: "神秘商户", Direction: model.FlowExpense, Amount: 999},
		},
	})
	require.NoError(t, err)

	assert.Equal(t, 1, res.Resolved[StageRules])
	assert.Equal(t, 1, res.Unresolved)
	assert.Contains(t, res.Message, "model endpoint not configured")
	assert.Contains(t, res.Message, "1 left unresolved")
}

func TestNoStageProducesAnythingIsError(t *testing.T) {
	c, _ := newCoordinator(twoLedgers(), nil, nil, nil)

	_, err := c.Classify(context.Background(), Request{
		UserID:       "u1",
		Mode:         ModeLedgerOnly,
		Transactions: []model.Transaction{{Merchant: "神秘商户", Direction: model.FlowExpense, Amount: 1}},
	})
	assert.ErrorIs(t, err, common.ErrNoSuggestions)
}

func TestReMatchModeClearsPriorLedger(t *testing.T) {
	c, _ := newCoordinator(twoLedgers(), &fakeRuleStore{rules: []model.MatchingRule{commuteRule()}}, nil, nil)

	txn := model.Transaction{Merchant: "滴滴出行", Direction: model.FlowExpense, Amount: 23.5}
	txn.Meta.Suggestion = &model.Suggestion{LedgerID: "family", LedgerName: "家庭开支", Source: StageLLMBook, Confidence: 0.6}

	res, err := c.Classify(context.Background(), Request{
		UserID:        "u1",
		Mode:          ModeLedgerOnly,
		Strategy:      StrategyHistoryOnly,
		ReMatchLedger: true,
		Transactions:  []model.Transaction{txn},
	})
	require.NoError(t, err)

	s := res.Transactions[0].Meta.Suggestion
	assert.Equal(t, "daily", s.LedgerID)
	assert.Equal(t, StageRules, s.Source)
}

func TestBookPhaseBatchFailureIsolation(t *testing.T) {
	call := 0
	m := &mockModel{
		pickLedgers: func(string) ([]llm.LedgerPick, error) {
			call++
			if call == 1 {
				return nil, fmt.Errorf("%w: garbled output", common.ErrModelBadResponse)
			}
			return []llm.LedgerPick{{Index: 0, LedgerID: "daily", Confidence: 0.8}}, nil
		},
	}
	c, progress := newCoordinator(twoLedgers(), nil, nil, m)

	txns := make([]model.Transaction, 3)
	for i := range txns {
		txns[i] = model.Transaction{Merchant: fmt.Sprintf("商户%d", i), Direction: model.FlowExpense, Amount: 10}
	}

	res, err := c.Classify(context.Background(), Request{
		UserID:        "u1",
		Mode:          ModeLedgerOnly,
		BatchSize:     2,
		ProgressToken: "tok",
		Transactions:  txns,
	})
	require.NoError(t, err)

	// First batch of two failed, second batch of one resolved its only member.
	assert.Equal(t, 2, m.bookCalls)
	assert.Equal(t, 1, res.Resolved[StageLLMBook])
	assert.Equal(t, 2, res.Unresolved)

	last := progress.sets[len(progress.sets)-1]
	assert.Equal(t, StageLLMBook, last.Stage)
	assert.Equal(t, 2, last.TotalBatches)
	assert.Equal(t, 1, last.CompletedBatches)
	assert.Equal(t, 1, last.FailedBatches)
	assert.Equal(t, 1, last.LastBatchSize)
	assert.Equal(t, []string{"tok"}, progress.cleared)
}

func TestCategoryPhaseFuzzyBeforeModel(t *testing.T) {
	m := &mockModel{
		simplifyMemos: func(string) ([]llm.MemoRewrite, error) {
			return []llm.MemoRewrite{{Index: 0, Memo: "午餐外卖"}}, nil
		},
	}
	c, _ := newCoordinator(twoLedgers(), nil, nil, m)

	txn := model.Transaction{Merchant: "美团", Category: "外卖", Memo: "美团平台商户-午餐订单", Direction: model.FlowExpense, Amount: 30}
	txn.Meta.Suggestion = &model.Suggestion{LedgerID: "daily", LedgerName: "日常开销", Source: StageRules, Confidence: 0.8}

	res, err := c.Classify(context.Background(), Request{
		UserID:       "u1",
		Mode:         ModeCategoryOnly,
		Transactions: []model.Transaction{txn},
	})
	require.NoError(t, err)

	s := res.Transactions[0].Meta.Suggestion
	assert.Equal(t, "餐饮/外卖", s.Category)
	assert.Equal(t, "餐饮", s.CategoryPrimary)
	assert.Equal(t, "外卖", s.CategorySecondary)
	assert.Equal(t, 1, res.Resolved[StageFuzzy])

	// The fuzzy-matched row still gets its memo simplified, without a
	// category call.
	assert.Equal(t, "午餐外卖", s.SimplifiedMemo)
	assert.Equal(t, 0, m.categoryCalls)
	assert.Equal(t, 1, m.memoCalls)
}

func TestCategoryPhaseDictionaryFirst(t *testing.T) {
	dict := dictionary.NewMatcherFromEntries([]dictionary.Entry{
		{Category: "餐饮/咖啡", Keywords: []string{"星巴克"}},
	})
	c, _ := newCoordinator(twoLedgers(), nil, dict, nil)

	txn := model.Transaction{Merchant: "星巴克", Direction: model.FlowExpense, Amount: 35}
	txn.Meta.Suggestion = &model.Suggestion{LedgerID: "daily", LedgerName: "日常开销", Source: StageRules, Confidence: 0.8}

	res, err := c.Classify(context.Background(), Request{
		UserID:       "u1",
		Mode:         ModeCategoryOnly,
		Strategy:     StrategyHistoryOnly,
		Transactions: []model.Transaction{txn},
	})
	require.NoError(t, err)

	s := res.Transactions[0].Meta.Suggestion
	assert.Equal(t, "餐饮/咖啡", s.Category)
	assert.Equal(t, 1, res.Resolved[StageDictionary])
}

func TestCategoryPhaseModelFallback(t *testing.T) {
	m := &mockModel{
		pickCategories: func(prompt string) ([]llm.CategoryPick, error) {
			assert.Contains(t, prompt, "日常开销")
			assert.Contains(t, prompt, "餐饮/外卖")
			return []llm.CategoryPick{{
				Index:          0,
				FlowType:       "expense",
				Primary:        "娱乐",
				Secondary:      "游戏",
				Category:       "娱乐/游戏",
				SimplifiedMemo: "游戏充值",
				Confidence:     0.75,
			}}, nil
		},
	}
	c, _ := newCoordinator(twoLedgers(), nil, nil, m)

	txn := model.Transaction{Merchant: "某游戏公司", Memo: "充值中心", Direction: model.FlowExpense, Amount: 68}
	txn.Meta.Suggestion = &model.Suggestion{LedgerID: "daily", LedgerName: "日常开销", Source: StageRules, Confidence: 0.8}

	res, err := c.Classify(context.Background(), Request{
		UserID:       "u1",
		Mode:         ModeCategoryOnly,
		Transactions: []model.Transaction{txn},
	})
	require.NoError(t, err)

	s := res.Transactions[0].Meta.Suggestion
	assert.Equal(t, "娱乐/游戏", s.Category)
	assert.Equal(t, "游戏充值", s.SimplifiedMemo)
	assert.Equal(t, model.FlowExpense, s.Direction)
	assert.Equal(t, 1, res.Resolved[StageLLMCategory])
}

func TestLedgerAllowlistFilters(t *testing.T) {
	m := &mockModel{
		pickLedgers: func(prompt string) ([]llm.LedgerPick, error) {
			assert.NotContains(t, prompt, "family")
			// A pick outside the allowlist must be dropped.
			return []llm.LedgerPick{{Index: 0, LedgerID: "family", Confidence: 0.9}}, nil
		},
	}
	c, _ := newCoordinator(twoLedgers(), nil, nil, m)

	_, err := c.Classify(context.Background(), Request{
		UserID:       "u1",
		Mode:         ModeLedgerOnly,
		LedgerIDs:    []string{"daily"},
		Transactions: []model.Transaction{{Merchant: "神秘商户", Direction: model.FlowExpense, Amount: 1}},
	})
	assert.ErrorIs(t, err, common.ErrNoSuggestions)
	assert.Equal(t, 1, m.bookCalls)
}

func TestAllStageConfidencesInRange(t *testing.T) {
	c, _ := newCoordinator(twoLedgers(), &fakeRuleStore{rules: []model.MatchingRule{commuteRule()}}, nil, nil)
	p := model.NewLedgerProfile("daily")
	p.Categories["餐饮/外卖"] = 30
	p.Keywords["星巴克"] = 40
	p.PayTypes[string(model.ChannelWallet)] = 50
	p.AmountBuckets[model.Bucket0To50] = 45
	p.Total = 50
	c.profiles.(*fakeProfiles).profiles["daily"] = p

	res, err := c.Classify(context.Background(), Request{
		UserID:   "u1",
		Mode:     ModeLedgerOnly,
		Strategy: StrategyHistoryOnly,
		Transactions: []model.Transaction{
			{Merchant: "滴滴出行", Direction: model.FlowExpense, Amount: 23.5},
			{Merchant: "永辉超市", Memo: "家庭开支-买菜", Direction: model.FlowExpense, Amount: 88},
			{Merchant: "某外卖", Category: "餐饮/外卖", Direction: model.FlowExpense, Amount: 32},
			{Merchant: "星巴克", Memo: "拿铁", PayChannel: model.ChannelWallet, Direction: model.FlowExpense, Amount: 35},
		},
	})
	require.NoError(t, err)

	for _, txn := range res.Transactions {
		s := txn.Meta.Suggestion
		require.NotNil(t, s)
		assert.GreaterOrEqual(t, s.Confidence, 0.0, "stage %s", s.Source)
		assert.LessOrEqual(t, s.Confidence, 1.0, "stage %s", s.Source)
	}
	assert.Zero(t, res.Unresolved)
}
