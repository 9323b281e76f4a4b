package model

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// MaxProfileKeywords is the number of keyword entries a profile retains after
// any rebuild or incremental update.
const MaxProfileKeywords = 30

// Amount bucket labels, fixed across all profiles.
const (
	Bucket0To50     = "0-50"
	Bucket50To200   = "50-200"
	Bucket200To500  = "200-500"
	Bucket500To1000 = "500-1000"
	BucketOver1000  = "1000+"
)

// AmountBucket maps an amount into its fixed histogram bucket.
func AmountBucket(amount float64) string {
	switch {
	case amount < 50:
		return Bucket0To50
	case amount < 200:
		return Bucket50To200
	case amount < 500:
		return Bucket200To500
	case amount < 1000:
		return Bucket500To1000
	default:
		return BucketOver1000
	}
}

// LedgerProfile is a statistical fingerprint of a ledger's committed history.
// It is always derived from transactions, never hand-edited.
type LedgerProfile struct {
	UpdatedAt     time.Time
	LedgerID      string
	Categories    map[string]int
	Keywords      map[string]int // at most MaxProfileKeywords entries
	PayTypes      map[string]int
	AmountBuckets map[string]int
	Total         int
}

// NewLedgerProfile returns an empty profile for a ledger.
func NewLedgerProfile(ledgerID string) *LedgerProfile {
	return &LedgerProfile{
		LedgerID:      ledgerID,
		Categories:    make(map[string]int),
		Keywords:      make(map[string]int),
		PayTypes:      make(map[string]int),
		AmountBuckets: make(map[string]int),
	}
}

// TruncateKeywords drops all but the MaxProfileKeywords highest-count
// keywords. Ties are broken alphabetically so the result is deterministic.
func (p *LedgerProfile) TruncateKeywords() {
	if len(p.Keywords) <= MaxProfileKeywords {
		return
	}
	type kw struct {
		word  string
		count int
	}
	all := make([]kw, 0, len(p.Keywords))
	for w, c := range p.Keywords {
		all = append(all, kw{w, c})
	}
	sort.Slice(all, func(i, j int) bool {
		if all[i].count != all[j].count {
			return all[i].count > all[j].count
		}
		return all[i].word < all[j].word
	})
	kept := make(map[string]int, MaxProfileKeywords)
	for _, k := range all[:MaxProfileKeywords] {
		kept[k.word] = k.count
	}
	p.Keywords = kept
}

// MaxKeywordCount returns the highest keyword count in the profile.
func (p *LedgerProfile) MaxKeywordCount() int {
	maxCount := 0
	for _, c := range p.Keywords {
		if c > maxCount {
			maxCount = c
		}
	}
	return maxCount
}

// Summary renders a human-readable digest of the profile.
func (p *LedgerProfile) Summary() string {
	type kw struct {
		word  string
		count int
	}
	all := make([]kw, 0, len(p.Keywords))
	for w, c := range p.Keywords {
		all = append(all, kw{w, c})
	}
	sort.Slice(all, func(i, j int) bool {
		if all[i].count != all[j].count {
			return all[i].count > all[j].count
		}
		return all[i].word < all[j].word
	})

	var b strings.Builder
	fmt.Fprintf(&b, "ledger %s: %d transactions\n", p.LedgerID, p.Total)
	fmt.Fprintf(&b, "top keywords:")
	for _, k := range all {
		fmt.Fprintf(&b, " %s(%d)", k.word, k.count)
	}
	b.WriteString("\n")
	return b.String()
}
