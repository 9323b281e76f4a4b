package sniff

import (
	"testing"

	"github.com/ledgerlens/ledgerlens/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func alipayHeader() []string {
	return []string{"交易时间", "交易分类", "交易对方", "商品说明", "收/支", "金额", "收/付款方式", "交易状态", "交易订单号", "备注"}
}

func TestDetect_Alipay(t *testing.T) {
	tests := []struct {
		name       string
		banner     int
		wantHeader int
	}{
		{name: "nominal offset", banner: 4, wantHeader: 4},
		{name: "extra banner row", banner: 5, wantHeader: 5},
		{name: "one banner row fewer", banner: 3, wantHeader: 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rows := make([][]string, 0, tt.banner+2)
			for i := 0; i < tt.banner; i++ {
				rows = append(rows, []string{"支付宝交易明细清单"})
			}
			rows = append(rows, alipayHeader())
			rows = append(rows, []string{"2024-03-01 12:30:00", "餐饮美食", "星巴克", "拿铁", "支出", "128.50", "招商银行储蓄卡", "交易成功", "2024030112345", ""})

			det := Detect(rows)
			assert.Equal(t, model.LayoutAlipay, det.Layout)
			assert.Equal(t, tt.wantHeader, det.HeaderRow)
			assert.InDelta(t, 1.0, det.Confidence, 0.001)
			assert.Equal(t, 0, det.Columns[model.ColDate])
			assert.Equal(t, 5, det.Columns[model.ColAmount])
			// Optional headers still land in the column map.
			assert.Equal(t, 7, det.Columns[model.ColStatus])
		})
	}
}

func TestDetect_WeChat(t *testing.T) {
	rows := make([][]string, 16)
	for i := range rows {
		rows[i] = []string{"微信支付账单明细"}
	}
	rows = append(rows, []string{"交易时间", "交易类型", "交易对方", "商品", "收/支", "金额(元)", "支付方式", "当前状态", "交易单号", "备注"})

	det := Detect(rows)
	assert.Equal(t, model.LayoutWeChat, det.Layout)
	assert.Equal(t, 16, det.HeaderRow)
	assert.InDelta(t, 1.0, det.Confidence, 0.001)
}

func TestDetect_PartialHeaders(t *testing.T) {
	// Only 3 of Alipay's 4 required headers present.
	rows := [][]string{
		{}, {}, {}, {},
		{"交易时间", "交易对方", "金额"},
	}

	det := Detect(rows)
	assert.Equal(t, model.LayoutAlipay, det.Layout)
	assert.InDelta(t, 0.75, det.Confidence, 0.001)
}

func TestDetect_FallbackNeverFails(t *testing.T) {
	rows := [][]string{
		{"nothing", "recognizable", "here"},
		{"1", "2", "3"},
	}

	det := Detect(rows)
	require.Equal(t, model.LayoutBankCard, det.Layout)
	assert.Less(t, det.Confidence, Threshold)
}

func TestDetect_FallbackKeepsOwnColumnMap(t *testing.T) {
	// The Alipay probe scores highest but stays below threshold; the result
	// must be the bank layout's own probe, not a relabeled Alipay column map.
	rows := [][]string{
		{"交易日期"},
		{}, {}, {},
		{"收/支", "交易对方"},
	}

	det := Detect(rows)
	require.Equal(t, model.LayoutBankCard, det.Layout)
	assert.Equal(t, 0, det.HeaderRow)
	assert.Equal(t, 0, det.Columns[model.ColDate])
	assert.NotContains(t, det.Columns, model.ColMerchant)
	assert.NotContains(t, det.Columns, model.ColDirection)
}

func TestDetect_BankStatement(t *testing.T) {
	rows := [][]string{
		{"交易日期", "摘要", "对方户名", "交易金额", "余额"},
		{"2024-01-02", "消费", "某商户", "-35.00", "1200.00"},
	}

	det := Detect(rows)
	assert.Equal(t, model.LayoutBankCard, det.Layout)
	assert.Equal(t, 0, det.HeaderRow)
	assert.InDelta(t, 1.0, det.Confidence, 0.001)
	assert.Equal(t, 1, det.Columns[model.ColMemo])
	assert.Equal(t, 2, det.Columns[model.ColMerchant])
}
