package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFuzzyCategory(t *testing.T) {
	vocab := []string{"餐饮/外卖", "餐饮/咖啡", "交通/打车", "购物"}

	tests := []struct {
		name           string
		raw            string
		wantCategory   string
		wantConfidence float64
		wantOK         bool
	}{
		{"exact", "餐饮/外卖", "餐饮/外卖", fuzzyExactConfidence, true},
		{"secondary part exact", "外卖", "餐饮/外卖", fuzzyPartExactConfidence, true},
		{"primary part exact", "购物", "购物", fuzzyExactConfidence, true},
		{"secondary of raw matches", "美食/咖啡", "餐饮/咖啡", fuzzyPartExactConfidence, true},
		{"substring", "打车费", "交通/打车", fuzzySubstringConfidence, true},
		{"parent only", "交通/地铁", "交通/打车", fuzzyParentConfidence, true},
		{"no match", "医疗", "", 0, false},
		{"empty raw", "", "", 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			category, confidence, ok := fuzzyCategory(tt.raw, vocab)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.wantCategory, category)
			assert.InDelta(t, tt.wantConfidence, confidence, 0.001)

			if ok {
				assert.GreaterOrEqual(t, confidence, 0.80)
				assert.LessOrEqual(t, confidence, 0.95)
			}
		})
	}
}

func TestFuzzyCategoryEmptyVocabulary(t *testing.T) {
	_, _, ok := fuzzyCategory("餐饮", nil)
	assert.False(t, ok)
}
