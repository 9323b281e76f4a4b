// Package model defines the core domain models used throughout the application.
package model

// FlowDirection classifies how a transaction moves money.
type FlowDirection string

// Flow direction constants.
const (
	FlowExpense    FlowDirection = "expense"
	FlowIncome     FlowDirection = "income"
	FlowTransfer   FlowDirection = "transfer"
	FlowNotCounted FlowDirection = "not_counted"
	FlowLoanOut    FlowDirection = "loan_out"
	FlowLoanIn     FlowDirection = "loan_in"
	FlowLoanRepay  FlowDirection = "loan_repay"
)

// PayChannel is the inferred payment channel of a transaction.
type PayChannel string

// Pay channel constants.
const (
	ChannelBankCard PayChannel = "bank_card"
	ChannelWallet   PayChannel = "wallet"
	ChannelCash     PayChannel = "cash"
	ChannelUnknown  PayChannel = ""
)

// Transaction is a normalized transaction row from any supported export.
type Transaction struct {
	Meta       TxnMetadata
	Date       string // YYYY-MM-DD
	Direction  FlowDirection
	Category   string // "primary" or "primary/secondary", as exported by the source
	PayChannel PayChannel
	PayText    string // raw pay-channel/account text the channel was inferred from
	Merchant   string // counterparty name
	Memo       string
	Goods      string
	Account    string // source account name, when the export carries one
	LedgerID   string // set on committed history rows, empty on fresh imports
	OrderID    string
	Amount     float64 // always positive; sign lives in Direction
}

// TxnMetadata is the mutable bag of per-row state that travels with a
// transaction through the pipeline but is never persisted.
type TxnMetadata struct {
	Suggestion *Suggestion
	Columns    map[string]int // canonical field -> raw column index
	Raw        []string       // original row, for re-extracting dropped fields
	PairID     string
	PairTag    string // display tag, e.g. "refund" or "family payment"
	RowIndex   int    // zero-based row in the source sheet
	IsRefund   bool
	IsFamily   bool
	Paired     bool // matched into a pair and excluded from the normal list
	Selected   bool // default selection state for the confirm screen
}

// RawField re-extracts a raw column value the normalizer dropped, such as a
// transaction-status column used only for refund matching.
func (t *Transaction) RawField(field string) string {
	idx, ok := t.Meta.Columns[field]
	if !ok || idx < 0 || idx >= len(t.Meta.Raw) {
		return ""
	}
	return t.Meta.Raw[idx]
}

// HasLedger reports whether any stage has already suggested a ledger.
func (t *Transaction) HasLedger() bool {
	return t.Meta.Suggestion != nil && t.Meta.Suggestion.LedgerID != ""
}

// HasCategory reports whether any stage has already suggested a category.
func (t *Transaction) HasCategory() bool {
	return t.Meta.Suggestion != nil && t.Meta.Suggestion.Category != ""
}
