package model

// Suggestion is the evolving classification attached to a transaction as it
// moves through the pipeline. Later stages refine it additively: a stage never
// downgrades a field an earlier stage already set.
type Suggestion struct {
	LedgerID          string
	LedgerName        string
	Direction         FlowDirection
	CategoryPrimary   string
	CategorySecondary string
	Category          string // combined "primary/secondary" form
	Attribution       string
	SimplifiedMemo    string
	Reason            string
	Source            string // name of the stage that set the ledger
	RuleID            int64  // winning rule, when Source is the rule engine
	Confidence        float64
}

// Merge copies fields from other into s without overwriting anything already
// set. Confidence is only raised for fields the merge actually contributed.
func (s *Suggestion) Merge(other *Suggestion) {
	if other == nil {
		return
	}
	if s.LedgerID == "" && other.LedgerID != "" {
		s.LedgerID = other.LedgerID
		s.LedgerName = other.LedgerName
		s.Source = other.Source
		s.RuleID = other.RuleID
	}
	if s.Direction == "" {
		s.Direction = other.Direction
	}
	if s.Category == "" && other.Category != "" {
		s.Category = other.Category
		s.CategoryPrimary = other.CategoryPrimary
		s.CategorySecondary = other.CategorySecondary
	}
	if s.Attribution == "" {
		s.Attribution = other.Attribution
	}
	if s.SimplifiedMemo == "" {
		s.SimplifiedMemo = other.SimplifiedMemo
	}
	if s.Reason == "" {
		s.Reason = other.Reason
	}
	if s.Confidence == 0 {
		s.Confidence = other.Confidence
	}
}

// ClearLedger drops the ledger fields so an explicit re-match pass can assign
// a fresh one. Category fields are left alone.
func (s *Suggestion) ClearLedger() {
	s.LedgerID = ""
	s.LedgerName = ""
	s.Source = ""
	s.RuleID = 0
}

// SplitCategory breaks a combined "primary/secondary" category string.
func SplitCategory(combined string) (primary, secondary string) {
	for i, r := range combined {
		if r == '/' {
			return combined[:i], combined[i+1:]
		}
	}
	return combined, ""
}

// JoinCategory builds the combined category form.
func JoinCategory(primary, secondary string) string {
	if secondary == "" {
		return primary
	}
	return primary + "/" + secondary
}
