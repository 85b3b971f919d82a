package model

import "time"

// Balance is the amount held in a single currency.
type Balance struct {
	Free  float64
	Used  float64
	Total float64
}

// Ticker is the latest traded price of a market.
type Ticker struct {
	Symbol string
	Last   float64
}

// MarketLimits describes the order constraints of a market. Nil bounds are unknown.
type MarketLimits struct {
	CostMin *float64
	CostMax *float64
	// AmountStep is the quantity increment; zero means no rounding.
	AmountStep float64
}

// Fee is the commission charged for an order. Nil fields are unknown.
type Fee struct {
	Cost     *float64 `json:"cost,omitempty"`
	Currency string   `json:"currency,omitempty"`
	Rate     *float64 `json:"rate,omitempty"`
}

// Known reports whether the fee amount was reported by the exchange.
func (f Fee) Known() bool {
	return f.Cost != nil
}

// Order statuses, normalized across exchanges.
const (
	OrderOpen     = "open"
	OrderClosed   = "closed"
	OrderCanceled = "canceled"
	OrderRejected = "rejected"
	OrderExpired  = "expired"
)

// OrderResult is the exchange's view of a submitted order.
type OrderResult struct {
	ID            string    `json:"id"`
	ClientOrderID string    `json:"client_order_id,omitempty"`
	Symbol        string    `json:"symbol"`
	Side          string    `json:"side"`
	Type          string    `json:"type"`
	Status        string    `json:"status"`
	Timestamp     time.Time `json:"timestamp"`
	Filled        float64   `json:"filled"`
	Average       float64   `json:"average"`
	Cost          float64   `json:"cost"`
	Remaining     float64   `json:"remaining"`
	Fee           Fee       `json:"fee"`
}

// Trade is a single fill belonging to an order.
type Trade struct {
	OrderID         string
	Price           float64
	Quantity        float64
	Cost            float64
	Commission      float64
	CommissionAsset string
}

// PurchaseRecord is one immutable ledger row for an executed order.
type PurchaseRecord struct {
	LocalTime    time.Time
	ExchangeTime time.Time
	Coin         string
	Symbol       string
	Status       string
	Filled       float64
	Price        float64
	Cost         float64
	Remaining    float64
	Fee          *float64
	FeeCurrency  string
	FeeRate      *float64
}

// NewPurchaseRecord builds a ledger row from a confirmed order.
func NewPurchaseRecord(coin string, local time.Time, o OrderResult) PurchaseRecord {
	return PurchaseRecord{
		LocalTime:    local,
		ExchangeTime: o.Timestamp,
		Coin:         coin,
		Symbol:       o.Symbol,
		Status:       o.Status,
		Filled:       o.Filled,
		Price:        o.Average,
		Cost:         o.Cost,
		Remaining:    o.Remaining,
		Fee:          o.Fee.Cost,
		FeeCurrency:  o.Fee.Currency,
		FeeRate:      o.Fee.Rate,
	}
}
