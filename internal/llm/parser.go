package llm

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/ledgerlens/ledgerlens/internal/common"
	"github.com/ledgerlens/ledgerlens/internal/model"
)

// cleanMarkdownWrapper strips a ```json ... ``` fence that some models wrap
// around their output despite the system prompt.
func cleanMarkdownWrapper(content string) string {
	content = strings.TrimSpace(content)

	if strings.HasPrefix(content, "```") {
		if idx := strings.Index(content, "\n"); idx >= 0 {
			content = content[idx+1:]
		} else {
			content = strings.TrimPrefix(content, "```json")
			content = strings.TrimPrefix(content, "```")
		}
	}
	if idx := strings.LastIndex(content, "```"); idx >= 0 {
		content = content[:idx]
	}

	return strings.TrimSpace(content)
}

// extractJSONArray finds the outermost JSON array in the content. Models
// sometimes prepend or append prose despite instructions.
func extractJSONArray(content string) (string, error) {
	content = cleanMarkdownWrapper(content)

	start := strings.Index(content, "[")
	end := strings.LastIndex(content, "]")
	if start < 0 || end < start {
		return "", fmt.Errorf("%w: no JSON array in content", common.ErrModelBadResponse)
	}

	return content[start : end+1], nil
}

// parseLedgerPicks parses the book-selection reply. Elements missing the
// mandatory keys are skipped so one malformed entry does not sink the batch.
func parseLedgerPicks(content string) ([]LedgerPick, error) {
	raw, err := extractJSONArray(content)
	if err != nil {
		return nil, err
	}

	var elements []struct {
		LedgerID   string  `json:"ledger_id"`
		Index      *int    `json:"index"`
		Confidence float64 `json:"confidence"`
	}
	if err := json.Unmarshal([]byte(raw), &elements); err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrModelBadResponse, err)
	}

	picks := make([]LedgerPick, 0, len(elements))
	for _, el := range elements {
		if el.Index == nil || el.LedgerID == "" {
			continue
		}
		picks = append(picks, LedgerPick{
			LedgerID:   el.LedgerID,
			Index:      *el.Index,
			Confidence: clampConfidence(el.Confidence),
		})
	}

	if len(picks) == 0 {
		return nil, fmt.Errorf("%w: no valid ledger picks in response", common.ErrModelBadResponse)
	}
	return picks, nil
}

// parseCategoryPicks parses the category-selection reply.
func parseCategoryPicks(content string) ([]CategoryPick, error) {
	raw, err := extractJSONArray(content)
	if err != nil {
		return nil, err
	}

	var elements []struct {
		FlowType       string  `json:"flow_type"`
		Primary        string  `json:"primary_category"`
		Secondary      string  `json:"secondary_category"`
		SimplifiedMemo string  `json:"simplified_memo"`
		Index          *int    `json:"index"`
		Confidence     float64 `json:"confidence"`
	}
	if err := json.Unmarshal([]byte(raw), &elements); err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrModelBadResponse, err)
	}

	picks := make([]CategoryPick, 0, len(elements))
	for _, el := range elements {
		if el.Index == nil || el.Primary == "" {
			continue
		}
		picks = append(picks, CategoryPick{
			FlowType:       el.FlowType,
			Primary:        el.Primary,
			Secondary:      el.Secondary,
			Category:       model.JoinCategory(el.Primary, el.Secondary),
			SimplifiedMemo: el.SimplifiedMemo,
			Index:          *el.Index,
			Confidence:     clampConfidence(el.Confidence),
		})
	}

	if len(picks) == 0 {
		return nil, fmt.Errorf("%w: no valid category picks in response", common.ErrModelBadResponse)
	}
	return picks, nil
}

// parseMemoRewrites parses the memo-simplification reply.
func parseMemoRewrites(content string) ([]MemoRewrite, error) {
	raw, err := extractJSONArray(content)
	if err != nil {
		return nil, err
	}

	var elements []struct {
		Memo  string `json:"memo"`
		Index *int   `json:"index"`
	}
	if err := json.Unmarshal([]byte(raw), &elements); err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrModelBadResponse, err)
	}

	rewrites := make([]MemoRewrite, 0, len(elements))
	for _, el := range elements {
		if el.Index == nil || el.Memo == "" {
			continue
		}
		rewrites = append(rewrites, MemoRewrite{Memo: el.Memo, Index: *el.Index})
	}

	if len(rewrites) == 0 {
		return nil, fmt.Errorf("%w: no valid memo rewrites in response", common.ErrModelBadResponse)
	}
	return rewrites, nil
}

func clampConfidence(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
