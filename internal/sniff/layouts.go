// Package sniff detects which known spreadsheet export layout a file uses.
package sniff

import "github.com/ledgerlens/ledgerlens/internal/model"

// headerLabel binds one canonical column field to the header strings vendors
// use for it. Matching is substring-based after trimming, because exports
// often pad headers with spaces or BOM bytes.
type headerLabel struct {
	field   string
	aliases []string
}

// layoutSpec describes one known export layout. NominalOffset is where the
// header row usually sits; vendors periodically add banner rows, so the
// detector probes NominalOffset ± Window.
type layoutSpec struct {
	id       model.LayoutID
	required []headerLabel
	optional []headerLabel
	nominal  int
	window   int
}

var layouts = []layoutSpec{
	{
		id:      model.LayoutAlipay,
		nominal: 4,
		window:  2,
		required: []headerLabel{
			{field: model.ColDate, aliases: []string{"交易时间", "交易创建时间"}},
			{field: model.ColAmount, aliases: []string{"金额"}},
			{field: model.ColDirection, aliases: []string{"收/支"}},
			{field: model.ColMerchant, aliases: []string{"交易对方"}},
		},
		optional: []headerLabel{
			{field: model.ColGoods, aliases: []string{"商品说明", "商品名称"}},
			{field: model.ColPayText, aliases: []string{"收/付款方式", "支付渠道"}},
			{field: model.ColCategory, aliases: []string{"交易分类"}},
			{field: model.ColStatus, aliases: []string{"交易状态"}},
			{field: model.ColOrderID, aliases: []string{"交易订单号", "交易号"}},
			{field: model.ColMemo, aliases: []string{"备注"}},
		},
	},
	{
		id:      model.LayoutWeChat,
		nominal: 16,
		window:  2,
		required: []headerLabel{
			{field: model.ColDate, aliases: []string{"交易时间"}},
			{field: model.ColAmount, aliases: []string{"金额(元)", "金额（元）"}},
			{field: model.ColDirection, aliases: []string{"收/支"}},
			{field: model.ColMerchant, aliases: []string{"交易对方"}},
		},
		optional: []headerLabel{
			{field: model.ColGoods, aliases: []string{"商品"}},
			{field: model.ColPayText, aliases: []string{"支付方式"}},
			{field: model.ColStatus, aliases: []string{"当前状态"}},
			{field: model.ColOrderID, aliases: []string{"交易单号"}},
			{field: model.ColMemo, aliases: []string{"备注"}},
			{field: model.ColCategory, aliases: []string{"交易类型"}},
		},
	},
	{
		id:      model.LayoutBankCard,
		nominal: 0,
		window:  2,
		required: []headerLabel{
			{field: model.ColDate, aliases: []string{"交易日期", "交易日", "记账日期", "Date"}},
			{field: model.ColAmount, aliases: []string{"交易金额", "金额", "Amount"}},
		},
		optional: []headerLabel{
			{field: model.ColMerchant, aliases: []string{"对方户名", "对方账户名", "交易对手"}},
			{field: model.ColMemo, aliases: []string{"摘要", "备注", "交易摘要", "Description"}},
			{field: model.ColCategory, aliases: []string{"交易类型"}},
			{field: model.ColDirection, aliases: []string{"借贷标志", "收/支"}},
			{field: model.ColAccount, aliases: []string{"账号", "卡号"}},
			{field: model.ColPayText, aliases: []string{"交易渠道"}},
		},
	},
}

// defaultLayout is the best-effort fallback when nothing clears the
// confidence threshold.
const defaultLayout = model.LayoutBankCard
