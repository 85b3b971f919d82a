package recorder

import (
	"time"

	"CryptoDCA/internal/model"
)

// Cycle outcomes recorded for every executed iteration of the purchase loop.
const (
	OutcomeSucceeded      = "SUCCEEDED"
	OutcomeSkipped        = "SKIPPED"
	OutcomeRetryScheduled = "RETRY_SCHEDULED"
	OutcomeAbandoned      = "ABANDONED"
	OutcomeFatal          = "FATAL"
)

// CycleEvent is the outcome of one purchase attempt.
type CycleEvent struct {
	Coin       string
	Outcome    string
	ErrorClass string // empty when the attempt did not fail
	Attempt    int
	NextDue    time.Time
	Err        string
}

// Recorder mirrors purchase history into a queryable store.
type Recorder interface {
	RecordPurchase(rec *model.PurchaseRecord) error
	RecordStats(stats *model.CoinStats) error
	RecordCycle(evt *CycleEvent) error
	Close() error
}
