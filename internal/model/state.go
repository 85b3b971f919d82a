package model

import "time"

// ErrorClass is the outcome of classifying a failed exchange interaction.
type ErrorClass int

const (
	ClassNone ErrorClass = iota
	ClassFunds
	ClassTransient
	ClassFatal
)

func (c ErrorClass) String() string {
	switch c {
	case ClassNone:
		return "none"
	case ClassFunds:
		return "funds"
	case ClassTransient:
		return "transient"
	default:
		return "fatal"
	}
}

// CoinState holds the mutable runtime fields of one coin. It is owned by the
// scheduler and kept apart from the immutable Coin configuration.
type CoinState struct {
	// Schedule is the next nominal due time. It only moves forward by whole cycles.
	Schedule       time.Time
	LastError      error
	LastErrorClass ErrorClass
	ErrorAttempt   int
}

// ClearError resets the error streak after a consumed cycle.
func (s *CoinState) ClearError() {
	s.LastError = nil
	s.LastErrorClass = ClassNone
	s.ErrorAttempt = 0
}

// OrderBookEntry is one row of the persisted next-purchase table.
type OrderBookEntry struct {
	Coin     string
	Due      time.Time
	Cycle    CycleKind
	Strategy string
}
