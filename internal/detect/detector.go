// Package detect scores candidate ledgers for a transaction against their
// statistical profiles.
package detect

import (
	"sort"
	"strings"

	"github.com/ledgerlens/ledgerlens/internal/model"
	"github.com/ledgerlens/ledgerlens/internal/profile"
)

// Signal weights for the blended score.
const (
	weightMerchant = 0.35
	weightKeyword  = 0.45
	weightAmount   = 0.10
	weightPayType  = 0.10
)

// Confidence blending: score carries 70%, data volume 30%, volume capped at
// profile size 100.
const (
	scoreShare    = 0.70
	volumeShare   = 0.30
	volumeCap     = 100
	minConfidence = 0.30
	maxConfidence = 0.95
)

// amountScoreCap keeps the amount-bucket signal from dominating; it is the
// least reliable of the four.
const amountScoreCap = 0.5

// Candidate is one scored ledger.
type Candidate struct {
	LedgerID   string
	Score      float64
	Confidence float64
}

// Rank scores every profiled ledger against the transaction and returns the
// positive-score candidates, best first, truncated to topN. Profiles with no
// data are skipped.
func Rank(txn *model.Transaction, profiles []*model.LedgerProfile, accountNames []string, topN int) []Candidate {
	keywords := profile.ExtractKeywords(txn.Merchant+" "+txn.Memo+" "+txn.Goods, accountNames)

	var out []Candidate
	for _, p := range profiles {
		if p == nil || p.Total == 0 {
			continue
		}
		score := weightMerchant*merchantScore(txn, p) +
			weightKeyword*keywordScore(keywords, p) +
			weightAmount*amountScore(txn, p) +
			weightPayType*payTypeScore(txn, p)
		if score <= 0 {
			continue
		}

		volume := float64(p.Total)
		if volume > volumeCap {
			volume = volumeCap
		}
		confidence := scoreShare*score + volumeShare*(volume/volumeCap)
		if confidence < minConfidence {
			confidence = minConfidence
		}
		if confidence > maxConfidence {
			confidence = maxConfidence
		}

		out = append(out, Candidate{LedgerID: p.LedgerID, Score: score, Confidence: confidence})
	}

	sort.SliceStable(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	if topN > 0 && len(out) > topN {
		out = out[:topN]
	}
	return out
}

// merchantScore matches the transaction's merchant against profile keywords:
// exact hit scores 1.0, substring either direction is weighted by length
// ratio and the keyword's relative weight.
func merchantScore(txn *model.Transaction, p *model.LedgerProfile) float64 {
	merchant := strings.ToLower(strings.TrimSpace(txn.Merchant))
	if merchant == "" {
		return 0
	}
	maxCount := p.MaxKeywordCount()
	if maxCount == 0 {
		return 0
	}

	best := 0.0
	for kw, count := range p.Keywords {
		kwLower := strings.ToLower(kw)
		var s float64
		switch {
		case kwLower == merchant:
			s = 1.0
		case strings.Contains(merchant, kwLower) || strings.Contains(kwLower, merchant):
			shorter, longer := len([]rune(kwLower)), len([]rune(merchant))
			if shorter > longer {
				shorter, longer = longer, shorter
			}
			ratio := float64(shorter) / float64(longer)
			s = ratio * (float64(count) / float64(maxCount))
		}
		if s > best {
			best = s
		}
	}
	return best
}

// keywordScore blends the fraction of extracted transaction keywords found in
// the profile with the matched weight relative to the maximum possible.
func keywordScore(keywords []string, p *model.LedgerProfile) float64 {
	if len(keywords) == 0 || len(p.Keywords) == 0 {
		return 0
	}
	maxCount := p.MaxKeywordCount()
	if maxCount == 0 {
		return 0
	}

	matched := 0
	weight := 0.0
	for _, kw := range keywords {
		if count, ok := p.Keywords[kw]; ok {
			matched++
			weight += float64(count) / float64(maxCount)
		}
	}
	if matched == 0 {
		return 0
	}

	fraction := float64(matched) / float64(len(keywords))
	avgWeight := weight / float64(matched)
	return fraction * avgWeight
}

// amountScore is the transaction bucket's share of the profile, capped low.
func amountScore(txn *model.Transaction, p *model.LedgerProfile) float64 {
	if p.Total == 0 {
		return 0
	}
	s := float64(p.AmountBuckets[model.AmountBucket(txn.Amount)]) / float64(p.Total)
	if s > amountScoreCap {
		s = amountScoreCap
	}
	return s
}

// payTypeScore is the exact-channel share within the profile.
func payTypeScore(txn *model.Transaction, p *model.LedgerProfile) float64 {
	if txn.PayChannel == model.ChannelUnknown || p.Total == 0 {
		return 0
	}
	return float64(p.PayTypes[string(txn.PayChannel)]) / float64(p.Total)
}
