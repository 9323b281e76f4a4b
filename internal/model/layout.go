package model

// LayoutID identifies a known spreadsheet export layout.
type LayoutID string

// Known layouts. LayoutBankCard doubles as the low-confidence fallback.
const (
	LayoutAlipay   LayoutID = "alipay"
	LayoutWeChat   LayoutID = "wechat"
	LayoutBankCard LayoutID = "bankcard"
)

// Canonical column field names shared by the detector and the row parser.
// These key the column-index map stored in transaction metadata.
const (
	ColDate      = "date"
	ColAmount    = "amount"
	ColDirection = "direction"
	ColCategory  = "category"
	ColMerchant  = "merchant"
	ColMemo      = "memo"
	ColGoods     = "goods"
	ColPayText   = "paytext"
	ColStatus    = "status"
	ColOrderID   = "orderid"
	ColAccount   = "account"
)

// LayoutDetection is the format detector's verdict for one sheet.
type LayoutDetection struct {
	Columns    map[string]int
	Layout     LayoutID
	HeaderRow  int
	Confidence float64
}
