package cli

import (
	"fmt"
	"strings"

	"github.com/ledgerlens/ledgerlens/internal/model"
)

// RenderTransactions renders the import display set as a table: selection
// state, date, direction, amount, merchant, memo, and any pairing tag.
func RenderTransactions(txns []model.Transaction) string {
	var b strings.Builder

	b.WriteString(TitleStyle.Render("Transactions"))
	b.WriteString("\n")
	for i := range txns {
		t := &txns[i]

		mark := "[ ]"
		if t.Meta.Selected {
			mark = "[x]"
		}

		line := fmt.Sprintf("%s %s %-11s %10.2f  %s", mark, t.Date, t.Direction, t.Amount, firstNonEmpty(t.Merchant, t.Memo, t.Goods))
		if tag := pairTag(t); tag != "" {
			line += "  " + WarningStyle.Render(tag)
		}
		if s := t.Meta.Suggestion; s != nil && s.LedgerID != "" {
			line += "  " + SuccessStyle.Render(fmt.Sprintf("→ %s", firstNonEmpty(s.LedgerName, s.LedgerID)))
			if s.Category != "" {
				line += SuccessStyle.Render(" / " + s.Category)
			}
		}
		if !t.Meta.Selected {
			line = SubtleStyle.Render(line)
		}
		b.WriteString(line)
		b.WriteString("\n")
	}
	return b.String()
}

// RenderRules renders a rule list with its targets and usage counters.
func RenderRules(rules []model.MatchingRule) string {
	var b strings.Builder

	b.WriteString(TitleStyle.Render("Rules"))
	b.WriteString("\n")
	if len(rules) == 0 {
		b.WriteString(SubtleStyle.Render("no rules yet"))
		b.WriteString("\n")
		return b.String()
	}
	for i := range rules {
		r := &rules[i]
		fmt.Fprintf(&b, "%4d  %-20s  %-19s  p%-3d  hits %-4d  → %s",
			r.ID, r.Name, r.Kind, r.Priority, r.HitCount, r.LedgerID)
		if r.Category != "" {
			b.WriteString(" / " + r.Category)
		}
		b.WriteString("\n")
	}
	return b.String()
}

// RenderParseErrors renders per-row import failures.
func RenderParseErrors(errs []string) string {
	if len(errs) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString(WarningStyle.Render(fmt.Sprintf("%d rows skipped:", len(errs))))
	b.WriteString("\n")
	for _, e := range errs {
		b.WriteString(SubtleStyle.Render("  " + e))
		b.WriteString("\n")
	}
	return b.String()
}

func pairTag(t *model.Transaction) string {
	switch {
	case t.Meta.PairTag != "":
		return t.Meta.PairTag
	case t.Meta.IsRefund:
		return "refund"
	case t.Meta.IsFamily:
		return "family payment"
	default:
		return ""
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
