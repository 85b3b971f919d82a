package model

import (
	"fmt"
	"strings"

	"CryptoDCA/internal/strategy"
)

// CycleKind is the repetition period of a coin's purchase schedule.
type CycleKind string

const (
	CycleMinutely CycleKind = "minutely" // test mode only
	CycleDaily    CycleKind = "daily"
	CycleWeekly   CycleKind = "weekly"
	CycleBiWeekly CycleKind = "bi-weekly"
	CycleMonthly  CycleKind = "monthly"
)

// ParseCycleKind normalizes a configured cycle string.
func ParseCycleKind(s string) (CycleKind, bool) {
	switch c := CycleKind(strings.ToLower(strings.TrimSpace(s))); c {
	case CycleMinutely, CycleDaily, CycleWeekly, CycleBiWeekly, CycleMonthly:
		return c, true
	default:
		return c, false
	}
}

// AtTime is the time-of-day anchor of a schedule.
type AtTime struct {
	Hour   int
	Minute int
}

func (a AtTime) String() string {
	return fmt.Sprintf("%02d:%02d", a.Hour, a.Minute)
}

// Coin is the immutable configuration of one scheduled asset.
type Coin struct {
	Name    string // base asset, e.g. BTC
	Pairing string // quote asset, e.g. USDT
	Cycle   CycleKind
	At      AtTime
	// Weekday follows the Monday=0 ... Sunday=6 convention (weekly and bi-weekly).
	Weekday int
	// Day is the day of month in [1,28] (monthly).
	Day      int
	Strategy strategy.Strategy
}

// Symbol is the exchange market symbol (base followed by quote).
func (c Coin) Symbol() string {
	return c.Name + c.Pairing
}

// Pair is the human readable trading pair.
func (c Coin) Pair() string {
	return c.Name + "/" + c.Pairing
}
