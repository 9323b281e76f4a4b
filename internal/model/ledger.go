package model

// Ledger is a logical "book" that transactions are filed into.
type Ledger struct {
	ID          string
	Name        string
	Description string
}

// StageProgress is the running per-stage progress snapshot written to the
// progress store and polled by the caller.
type StageProgress struct {
	Stage            string
	BatchSize        int
	TotalBatches     int
	CompletedBatches int
	FailedBatches    int
	LastBatchSize    int
}
