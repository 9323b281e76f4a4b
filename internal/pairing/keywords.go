// Package pairing finds refund pairs and split-payment ("family account")
// duplicate pairs among parsed transactions and merges or tags them for
// display. Pairs are transient: computed once per parse request, never
// persisted.
package pairing

import "strings"

// refundKeywords flag a transaction as a refund candidate when they appear in
// its direction label, category, memo, or status text.
var refundKeywords = []string{"退款", "退货", "退回", "已退", "refund"}

// incomeRefundHints mark income-direction rows whose memo mentions a return.
var incomeRefundHints = []string{"退", "refund", "return"}

// familyKeywords are the channel-specific signals of a shared/relative
// account paying on someone's behalf.
var familyKeywords = []string{"亲属卡", "亲情卡", "家人代付", "家庭卡", "代付", "亲属消费"}

// pairingNoise phrases are stripped before memo-overlap comparison so that
// transfer/loan template text does not fake a match.
var pairingNoise = []string{
	"转账给", "转给", "借给", "还款给", "收到", "来自",
	"transferred to", "borrowed from", "repaid to",
}

func containsAny(text string, keywords []string) bool {
	if text == "" {
		return false
	}
	lower := strings.ToLower(text)
	for _, kw := range keywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

// stripNoise removes pairing-noise phrases and whitespace.
func stripNoise(text string) string {
	for _, phrase := range pairingNoise {
		text = strings.ReplaceAll(text, phrase, "")
	}
	return strings.TrimSpace(text)
}

// textOverlap reports whether two cleaned strings meaningfully overlap:
// either contains the other and the shorter side is at least two runes.
func textOverlap(a, b string) bool {
	a = strings.ToLower(strings.TrimSpace(a))
	b = strings.ToLower(strings.TrimSpace(b))
	if a == "" || b == "" {
		return false
	}
	shorter := a
	if len([]rune(b)) < len([]rune(shorter)) {
		shorter = b
	}
	if len([]rune(shorter)) < 2 {
		return false
	}
	return strings.Contains(a, b) || strings.Contains(b, a)
}
