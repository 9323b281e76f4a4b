package model

// PairKind distinguishes the special patterns the resolver recognizes.
type PairKind string

// Pair kind constants.
const (
	PairFullRefund    PairKind = "full_refund"
	PairPartialRefund PairKind = "partial_refund"
	PairFamily        PairKind = "family"
)

// PairedTransaction groups the 1-2 member rows of a detected special pattern
// plus, for partial refunds and family duplicates, a synthesized merged row.
// Lifecycle is transient: computed once per parse request, never persisted.
type PairedTransaction struct {
	ID      string
	Kind    PairKind
	Members []Transaction
	Merged  *Transaction
}
