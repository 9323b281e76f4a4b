// Package dictionary performs deterministic keyword → category lookup against
// a curated external dictionary.
package dictionary

import (
	"fmt"
	"os"
	"sort"
	"strings"
	"sync"
	"unicode"

	"gopkg.in/yaml.v3"

	"github.com/ledgerlens/ledgerlens/internal/model"
)

// Confidence bands for dictionary matches.
const (
	singleCharBase = 0.55
	singleCharMax  = 0.65
	multiCharBase  = 0.70
	multiCharMax   = 0.95
	longBoost      = 0.10 // keywords of 4+ runes
	paySignalBoost = 0.05
	maxConfidence  = 0.98
)

// Entry is one category's keyword set, with optional payment-channel signals
// that boost confidence when the transaction's pay-text carries one.
type Entry struct {
	Category   string   `yaml:"category"`
	Keywords   []string `yaml:"keywords"`
	PaySignals []string `yaml:"paySignals,omitempty"`
}

type dictFile struct {
	Categories []Entry `yaml:"categories"`
}

// Match is a dictionary hit.
type Match struct {
	Category   string
	Keyword    string
	Confidence float64
}

// Matcher holds the loaded dictionary. Reload-safe.
type Matcher struct {
	mu      sync.RWMutex
	entries []Entry
	path    string
}

// NewMatcher loads the dictionary from a YAML file.
func NewMatcher(path string) (*Matcher, error) {
	m := &Matcher{path: path}
	if err := m.Reload(); err != nil {
		return nil, err
	}
	return m, nil
}

// NewMatcherFromEntries builds a matcher over an in-memory table.
func NewMatcherFromEntries(entries []Entry) *Matcher {
	return &Matcher{entries: entries}
}

// Reload re-reads the dictionary file.
func (m *Matcher) Reload() error {
	if m.path == "" {
		return nil
	}
	data, err := os.ReadFile(m.path)
	if err != nil {
		return fmt.Errorf("failed to read dictionary: %w", err)
	}
	var f dictFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return fmt.Errorf("failed to parse dictionary: %w", err)
	}

	m.mu.Lock()
	m.entries = f.Categories
	m.mu.Unlock()
	return nil
}

// Lookup checks the transaction's counterparty/memo/goods text against every
// category's keywords and returns the highest-confidence match, or nil when
// nothing matches. Internal panics are contained: a dictionary miss is always
// preferable to aborting the pipeline.
func (m *Matcher) Lookup(txn *model.Transaction) (match *Match) {
	defer func() {
		if r := recover(); r != nil {
			match = nil
		}
	}()

	m.mu.RLock()
	entries := m.entries
	m.mu.RUnlock()

	text := strings.ToLower(txn.Merchant + " " + txn.Memo + " " + txn.Goods)
	payText := strings.ToLower(txn.PayText)

	var best *Match
	for i := range entries {
		candidate := matchEntry(&entries[i], text, payText)
		if candidate == nil {
			continue
		}
		if best == nil || candidate.Confidence > best.Confidence {
			best = candidate
		}
	}
	return best
}

// matchEntry tries one category's keywords against the text, longest keyword
// first.
func matchEntry(entry *Entry, text, payText string) *Match {
	keywords := make([]string, len(entry.Keywords))
	copy(keywords, entry.Keywords)
	sort.SliceStable(keywords, func(i, j int) bool {
		return len([]rune(keywords[i])) > len([]rune(keywords[j]))
	})

	for _, kw := range keywords {
		kwLower := strings.ToLower(kw)
		runes := []rune(kwLower)
		if len(runes) == 0 {
			continue
		}

		var confidence float64
		switch {
		case len(runes) == 1:
			if !matchesAtBoundary(text, kwLower) {
				continue
			}
			confidence = singleCharBase
			if hasPaySignal(entry, payText) {
				confidence = singleCharMax
			}
		default:
			if !strings.Contains(text, kwLower) {
				continue
			}
			confidence = multiCharBase + 0.05*float64(len(runes)-2)
			if len(runes) >= 4 {
				confidence += longBoost
			}
			if confidence > multiCharMax {
				confidence = multiCharMax
			}
			if hasPaySignal(entry, payText) {
				confidence += paySignalBoost
			}
		}

		if confidence > maxConfidence {
			confidence = maxConfidence
		}
		return &Match{Category: entry.Category, Keyword: kw, Confidence: confidence}
	}
	return nil
}

func hasPaySignal(entry *Entry, payText string) bool {
	if payText == "" {
		return false
	}
	for _, sig := range entry.PaySignals {
		if sig != "" && strings.Contains(payText, strings.ToLower(sig)) {
			return true
		}
	}
	return false
}

// matchesAtBoundary reports whether a single-character keyword occurs in the
// text without a CJK character on either side. A lone character inside a CJK
// word is almost always a coincidence.
func matchesAtBoundary(text, kw string) bool {
	runes := []rune(text)
	target := []rune(kw)[0]
	for i, r := range runes {
		if r != target {
			continue
		}
		beforeOK := i == 0 || !isCJK(runes[i-1])
		afterOK := i == len(runes)-1 || !isCJK(runes[i+1])
		if beforeOK && afterOK {
			return true
		}
	}
	return false
}

func isCJK(r rune) bool {
	return unicode.Is(unicode.Han, r)
}
