package engine

import (
	"fmt"
	"strings"

	"github.com/ledgerlens/ledgerlens/internal/model"
)

// bookPrompt asks the model to file each listed transaction into one of the
// candidate ledgers. Only name, category, memo, and amount are sent.
func bookPrompt(ledgers []model.Ledger, txns []model.Transaction, batch []int) string {
	var b strings.Builder

	b.WriteString("Assign each transaction below to the most fitting ledger.\n\nLedgers:\n")
	for _, l := range ledgers {
		fmt.Fprintf(&b, "- id=%q name=%q", l.ID, l.Name)
		if l.Description != "" {
			fmt.Fprintf(&b, " description=%q", l.Description)
		}
		b.WriteString("\n")
	}

	b.WriteString("\nTransactions:\n")
	for n, i := range batch {
		t := &txns[i]
		fmt.Fprintf(&b, "%d. merchant=%q category=%q memo=%q amount=%.2f\n", n, t.Merchant, t.Category, summarizeMemo(t), t.Amount)
	}

	b.WriteString(`
Respond with a JSON array, one element per transaction you can place:
[{"index": <transaction number>, "ledger_id": "<ledger id>", "confidence": <0.0-1.0>}]
Omit transactions you cannot place. Use only the ledger ids listed above.`)
	return b.String()
}

// categoryPrompt asks the model to categorize a ledger group's transactions
// within that ledger's vocabulary.
func categoryPrompt(ledgerName string, vocab []string, txns []model.Transaction, batch []int) string {
	var b strings.Builder

	if ledgerName != "" {
		fmt.Fprintf(&b, "Categorize each transaction below for the ledger %q.\n", ledgerName)
	} else {
		b.WriteString("Categorize each transaction below.\n")
	}
	if len(vocab) > 0 {
		b.WriteString("Prefer these existing categories (primary/secondary form):\n")
		for _, v := range vocab {
			fmt.Fprintf(&b, "- %s\n", v)
		}
	}

	b.WriteString("\nTransactions:\n")
	for n, i := range batch {
		t := &txns[i]
		fmt.Fprintf(&b, "%d. merchant=%q category=%q memo=%q goods=%q amount=%.2f direction=%q\n",
			n, t.Merchant, t.Category, summarizeMemo(t), t.Goods, t.Amount, t.Direction)
	}

	b.WriteString(`
Respond with a JSON array, one element per transaction:
[{"index": <transaction number>, "flow_type": "expense|income|transfer", "primary_category": "...", "secondary_category": "...", "simplified_memo": "<short label, same language as the memo>", "confidence": <0.0-1.0>}]
Omit transactions you cannot categorize.`)
	return b.String()
}

// memoPrompt asks for short display labels for already-categorized rows.
func memoPrompt(txns []model.Transaction, batch []int) string {
	var b strings.Builder

	b.WriteString("Rewrite each transaction memo below as a short display label in the memo's own language, keeping the merchant or item that identifies it.\n\nMemos:\n")
	for n, i := range batch {
		t := &txns[i]
		fmt.Fprintf(&b, "%d. merchant=%q memo=%q goods=%q\n", n, t.Merchant, t.Memo, t.Goods)
	}

	b.WriteString(`
Respond with a JSON array, one element per memo:
[{"index": <memo number>, "memo": "<short label>"}]`)
	return b.String()
}

// summarizeMemo keeps prompts compact for sources whose memos run long.
func summarizeMemo(t *model.Transaction) string {
	memo := t.Memo
	if memo == "" {
		memo = t.Goods
	}
	runes := []rune(memo)
	if len(runes) > 60 {
		return string(runes[:60])
	}
	return memo
}
