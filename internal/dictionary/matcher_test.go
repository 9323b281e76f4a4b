package dictionary

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/ledgerlens/ledgerlens/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testEntries() []Entry {
	return []Entry{
		{
			Category:   "餐饮/咖啡",
			Keywords:   []string{"星巴克", "咖啡", "luckin"},
			PaySignals: []string{"花呗"},
		},
		{
			Category: "交通/打车",
			Keywords: []string{"滴滴出行", "出租车"},
		},
		{
			Category: "日用",
			Keywords: []string{"超", "日用品"},
		},
	}
}

func TestLookup_MultiCharKeyword(t *testing.T) {
	m := NewMatcherFromEntries(testEntries())

	match := m.Lookup(&model.Transaction{Merchant: "星巴克咖啡有限公司"})
	require.NotNil(t, match)
	assert.Equal(t, "餐饮/咖啡", match.Category)
	assert.Equal(t, "星巴克", match.Keyword)
	assert.GreaterOrEqual(t, match.Confidence, 0.7)
	assert.LessOrEqual(t, match.Confidence, 0.95)
}

func TestLookup_LongKeywordBoosted(t *testing.T) {
	m := NewMatcherFromEntries(testEntries())

	long := m.Lookup(&model.Transaction{Merchant: "滴滴出行科技"})
	require.NotNil(t, long)
	short := m.Lookup(&model.Transaction{Memo: "咖啡"})
	require.NotNil(t, short)
	assert.Greater(t, long.Confidence, short.Confidence)
}

func TestLookup_PaySignalBoostCapped(t *testing.T) {
	m := NewMatcherFromEntries(testEntries())

	plain := m.Lookup(&model.Transaction{Merchant: "星巴克"})
	require.NotNil(t, plain)
	boosted := m.Lookup(&model.Transaction{Merchant: "星巴克", PayText: "花呗"})
	require.NotNil(t, boosted)

	assert.Greater(t, boosted.Confidence, plain.Confidence)
	assert.LessOrEqual(t, boosted.Confidence, 0.98)
}

func TestLookup_SingleCharBoundary(t *testing.T) {
	m := NewMatcherFromEntries(testEntries())

	// "超" embedded in a CJK word must not match.
	inside := m.Lookup(&model.Transaction{Merchant: "超级工厂"})
	assert.Nil(t, inside)

	// At a boundary it matches, in the lower confidence band.
	boundary := m.Lookup(&model.Transaction{Merchant: "超 market"})
	require.NotNil(t, boundary)
	assert.Equal(t, "日用", boundary.Category)
	assert.GreaterOrEqual(t, boundary.Confidence, 0.55)
	assert.LessOrEqual(t, boundary.Confidence, 0.65)
}

func TestLookup_NoMatchReturnsNil(t *testing.T) {
	m := NewMatcherFromEntries(testEntries())
	assert.Nil(t, m.Lookup(&model.Transaction{Merchant: "无关商户名称"}))
}

func TestLookup_HighestConfidenceWins(t *testing.T) {
	m := NewMatcherFromEntries([]Entry{
		{Category: "a", Keywords: []string{"咖啡"}},
		{Category: "b", Keywords: []string{"星巴克咖啡"}},
	})

	match := m.Lookup(&model.Transaction{Merchant: "星巴克咖啡"})
	require.NotNil(t, match)
	assert.Equal(t, "b", match.Category)
}

func TestReloadFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "dict.yaml")
	content := `categories:
  - category: 餐饮/咖啡
    keywords: ["星巴克"]
    paySignals: ["花呗"]
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	m, err := NewMatcher(path)
	require.NoError(t, err)

	match := m.Lookup(&model.Transaction{Merchant: "星巴克"})
	require.NotNil(t, match)
	assert.Equal(t, "餐饮/咖啡", match.Category)

	// Swap the file and reload.
	next := `categories:
  - category: 交通
    keywords: ["地铁"]
`
	require.NoError(t, os.WriteFile(path, []byte(next), 0o600))
	require.NoError(t, m.Reload())

	assert.Nil(t, m.Lookup(&model.Transaction{Merchant: "星巴克"}))
	assert.NotNil(t, m.Lookup(&model.Transaction{Merchant: "地铁"}))
}
