package engine

import (
	"strings"

	"github.com/ledgerlens/ledgerlens/internal/model"
)

// Fuzzy-match confidence tiers against a ledger's known categories.
const (
	fuzzyExactConfidence     = 0.95
	fuzzyPartExactConfidence = 0.90
	fuzzySubstringConfidence = 0.85
	fuzzyParentConfidence    = 0.80
)

// fuzzyCategory maps the category text the source export carried onto one of
// the ledger's known categories without a model call. Tiers, best first:
// exact, exact on the primary or secondary part, substring either direction,
// and same one-level parent.
func fuzzyCategory(raw string, vocab []string) (string, float64, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" || len(vocab) == 0 {
		return "", 0, false
	}

	for _, v := range vocab {
		if v == raw {
			return v, fuzzyExactConfidence, true
		}
	}

	rawPrimary, rawSecondary := model.SplitCategory(raw)
	for _, v := range vocab {
		primary, secondary := model.SplitCategory(v)
		if raw == primary || raw == secondary {
			return v, fuzzyPartExactConfidence, true
		}
		if rawSecondary != "" && rawSecondary == secondary {
			return v, fuzzyPartExactConfidence, true
		}
	}

	for _, v := range vocab {
		if strings.Contains(v, raw) || strings.Contains(raw, v) {
			return v, fuzzySubstringConfidence, true
		}
		_, secondary := model.SplitCategory(v)
		if secondary != "" && (strings.Contains(secondary, raw) || strings.Contains(raw, secondary)) {
			return v, fuzzySubstringConfidence, true
		}
	}

	if rawPrimary != "" {
		for _, v := range vocab {
			primary, _ := model.SplitCategory(v)
			if primary == rawPrimary {
				return v, fuzzyParentConfidence, true
			}
		}
	}

	return "", 0, false
}
