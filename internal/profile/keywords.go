// Package profile computes per-ledger statistical fingerprints from committed
// history and keeps them current as new transactions land.
package profile

import (
	"strings"
	"unicode"
)

// templatePhrases are transfer/loan boilerplate stripped before tokenizing so
// bookkeeping scaffolding never becomes a keyword.
var templatePhrases = []string{
	"转账给", "转给", "借给", "借入", "借出", "还款给", "还款", "收到转账",
	"transfer to", "borrowed from", "repayment to",
}

// staticStopwords are tokens with no discriminating power.
var staticStopwords = map[string]bool{
	"的": true, "了": true, "和": true, "在": true, "是": true,
	"消费": true, "支付": true, "订单": true, "交易": true, "商户": true,
	"the": true, "and": true, "for": true, "pay": true, "payment": true,
	"order": true, "via": true,
}

const (
	minTokenRunes = 2
	maxCJKRunes   = 8
)

// ExtractKeywords tokenizes free text into profile keywords. Account names
// supplied by the caller act as dynamic stopwords on top of the static list.
func ExtractKeywords(text string, accountNames []string) []string {
	for _, phrase := range templatePhrases {
		text = strings.ReplaceAll(text, phrase, " ")
	}
	for _, name := range accountNames {
		if name != "" {
			text = strings.ReplaceAll(text, name, " ")
		}
	}

	var keywords []string
	for _, span := range splitSpans(text) {
		runes := []rune(span)
		if len(runes) < minTokenRunes {
			continue
		}
		if isCJK(runes[0]) {
			if len(runes) > maxCJKRunes {
				runes = runes[:maxCJKRunes]
			}
			keywords = append(keywords, string(runes))
			continue
		}
		token := strings.ToLower(string(runes))
		if staticStopwords[token] {
			continue
		}
		keywords = append(keywords, token)
	}

	// Static stopwords also apply to CJK tokens.
	filtered := keywords[:0]
	for _, kw := range keywords {
		if !staticStopwords[kw] {
			filtered = append(filtered, kw)
		}
	}
	return filtered
}

// splitSpans cuts text into uniform spans: a run of CJK characters or a run
// of Latin letters/digits. Everything else is a separator.
func splitSpans(text string) []string {
	var spans []string
	var current []rune
	var currentCJK bool

	flush := func() {
		if len(current) > 0 {
			spans = append(spans, string(current))
			current = nil
		}
	}

	for _, r := range text {
		switch {
		case isCJK(r):
			if !currentCJK {
				flush()
			}
			currentCJK = true
			current = append(current, r)
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			if currentCJK {
				flush()
			}
			currentCJK = false
			current = append(current, r)
		default:
			flush()
		}
	}
	flush()
	return spans
}

func isCJK(r rune) bool {
	return unicode.Is(unicode.Han, r)
}
