// Package rowparser converts raw rows of a detected layout into normalized
// transactions.
package rowparser

import (
	"strings"

	"github.com/shopspring/decimal"
)

// amountNoise covers the currency decorations vendors embed in amount cells.
var amountNoise = strings.NewReplacer(
	"¥", "",
	"￥", "",
	"$", "",
	"CNY", "",
	"RMB", "",
	"元", "",
	",", "",
	" ", "",
)

// parseAmount strips currency symbols and thousands separators and returns
// the absolute value plus the original sign. Direction is taken from an
// explicit type column when present; the sign is only a fallback.
func parseAmount(raw string) (amount float64, negative bool, ok bool) {
	cleaned := amountNoise.Replace(strings.TrimSpace(raw))
	if cleaned == "" {
		return 0, false, false
	}

	d, err := decimal.NewFromString(cleaned)
	if err != nil {
		return 0, false, false
	}

	negative = d.IsNegative()
	amount, _ = d.Abs().Float64()
	if amount == 0 {
		return 0, negative, false
	}
	return amount, negative, true
}
