package exchange

import (
	"context"

	"CryptoDCA/internal/model"

	"github.com/sirupsen/logrus"
)

var log = logrus.WithField("component", "exchange")

// Capabilities lists the optional features of an exchange.
type Capabilities struct {
	// QuoteOrderQty means market buys can be sized in quote currency.
	QuoteOrderQty bool
	// FetchOrder means an order can be re-read after creation.
	FetchOrder bool
	// FetchOrderTrades means the fills of an order can be listed, for fee backfill.
	FetchOrderTrades bool
}

// OrderRequest describes an order to submit. Exactly one of Amount (base quantity)
// and QuoteAmount (quote currency to spend) is set for market buys.
type OrderRequest struct {
	Symbol        string
	Type          string // "market"
	Side          string // "buy"
	Amount        float64
	QuoteAmount   float64
	Price         *float64
	ClientOrderID string
}

// Client is the exchange capability the purchase cycle depends on. Errors are
// returned as *Error so that Classify can route them.
type Client interface {
	Name() string
	Capabilities() Capabilities
	LoadMarkets(ctx context.Context) error
	// MarketLimits requires a prior LoadMarkets.
	MarketLimits(symbol string) (model.MarketLimits, error)
	FetchBalance(ctx context.Context) (map[string]model.Balance, error)
	FetchTicker(ctx context.Context, symbol string) (model.Ticker, error)
	CreateOrder(ctx context.Context, req OrderRequest) (model.OrderResult, error)
	FetchOrder(ctx context.Context, id, symbol string) (model.OrderResult, error)
	FetchOrderTrades(ctx context.Context, id, symbol string) ([]model.Trade, error)
}
