package rowparser

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/ledgerlens/ledgerlens/internal/model"
)

// RowError records a row that could not be parsed. The row is excluded from
// the emitted set; it never aborts the whole file.
type RowError struct {
	Message string
	Row     int
}

func (e RowError) Error() string {
	return fmt.Sprintf("row %d: %s", e.Row, e.Message)
}

// Parse converts the rows below the detected header into normalized
// transactions. Rows missing a date or carrying a zero amount are dropped and
// reported in the returned error list.
func Parse(rows [][]string, det model.LayoutDetection) ([]model.Transaction, []RowError) {
	txns := make([]model.Transaction, 0, len(rows))
	var failures []RowError

	for i := det.HeaderRow + 1; i < len(rows); i++ {
		row := rows[i]
		if isBlank(row) {
			continue
		}

		txn, err := parseRow(row, det, i)
		if err != nil {
			failures = append(failures, RowError{Row: i, Message: err.Error()})
			continue
		}
		txns = append(txns, txn)
	}

	if len(failures) > 0 {
		slog.Debug("some rows failed to parse",
			"layout", det.Layout,
			"parsed", len(txns),
			"failed", len(failures))
	}
	return txns, failures
}

func parseRow(row []string, det model.LayoutDetection, rowIndex int) (model.Transaction, error) {
	cell := func(field string) string {
		idx, ok := det.Columns[field]
		if !ok || idx < 0 || idx >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[idx])
	}

	date, ok := parseDate(cell(model.ColDate))
	if !ok {
		return model.Transaction{}, fmt.Errorf("missing or unparseable date %q", cell(model.ColDate))
	}

	amount, negative, ok := parseAmount(cell(model.ColAmount))
	if !ok {
		return model.Transaction{}, fmt.Errorf("missing or zero amount %q", cell(model.ColAmount))
	}

	direction := parseDirection(cell(model.ColDirection))
	if direction == "" {
		// No explicit type column: infer from the amount's sign.
		if negative {
			direction = model.FlowExpense
		} else {
			direction = model.FlowIncome
		}
	}

	payText := cell(model.ColPayText)

	// The memo stays free of derived fields; money, pay-channel, and account
	// text all have homes of their own.
	memo := cell(model.ColMemo)
	if memo == "/" {
		memo = ""
	}

	rawCopy := make([]string, len(row))
	copy(rawCopy, row)

	return model.Transaction{
		Date:       date,
		Direction:  direction,
		Category:   cell(model.ColCategory),
		Merchant:   cell(model.ColMerchant),
		Memo:       memo,
		Goods:      strings.Trim(cell(model.ColGoods), "/"),
		Amount:     amount,
		PayText:    payText,
		PayChannel: InferChannel(payText),
		Account:    cell(model.ColAccount),
		OrderID:    cell(model.ColOrderID),
		Meta: model.TxnMetadata{
			Raw:      rawCopy,
			Columns:  det.Columns,
			RowIndex: rowIndex,
			Selected: true,
		},
	}, nil
}

// parseDirection maps an explicit flow-type cell onto a direction. Returns ""
// when the cell carries no recognizable label.
func parseDirection(raw string) model.FlowDirection {
	switch {
	case raw == "" || raw == "/":
		return ""
	case strings.Contains(raw, "不计收支"):
		return model.FlowNotCounted
	case strings.Contains(raw, "支出") || raw == "借" || strings.EqualFold(raw, "D"):
		return model.FlowExpense
	case strings.Contains(raw, "收入") || raw == "贷" || strings.EqualFold(raw, "C"):
		return model.FlowIncome
	case strings.Contains(raw, "转账") || strings.Contains(raw, "转入") || strings.Contains(raw, "转出"):
		return model.FlowTransfer
	case strings.Contains(raw, "借入"):
		return model.FlowLoanIn
	case strings.Contains(raw, "借出"):
		return model.FlowLoanOut
	case strings.Contains(raw, "还款"):
		return model.FlowLoanRepay
	default:
		return ""
	}
}

func isBlank(row []string) bool {
	for _, cell := range row {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}
