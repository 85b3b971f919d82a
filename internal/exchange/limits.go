package exchange

import (
	"context"
	"errors"
	"fmt"

	"CryptoDCA/internal/model"

	"github.com/shopspring/decimal"
)

// ErrCostOutOfLimits is returned when a configured spend can never be ordered.
var ErrCostOutOfLimits = errors.New("cost out of market limits")

// CheckCostLimits loads the markets and verifies that every amount a coin's strategy
// can spend lies strictly between the market's cost bounds.
func CheckCostLimits(ctx context.Context, c Client, coins []model.Coin) error {
	if err := c.LoadMarkets(ctx); err != nil {
		return fmt.Errorf("load markets: %w", err)
	}
	for _, coin := range coins {
		limits, err := c.MarketLimits(coin.Symbol())
		if err != nil {
			return fmt.Errorf("market limits %s: %w", coin.Pair(), err)
		}
		if spend := coin.Strategy.MinSpend(); limits.CostMin != nil && spend <= *limits.CostMin {
			return fmt.Errorf("%w: %s spend %v must be greater than %v %s",
				ErrCostOutOfLimits, coin.Pair(), spend, *limits.CostMin, coin.Pairing)
		}
		if spend := coin.Strategy.MaxSpend(); limits.CostMax != nil && spend >= *limits.CostMax {
			return fmt.Errorf("%w: %s spend %v must be less than %v %s",
				ErrCostOutOfLimits, coin.Pair(), spend, *limits.CostMax, coin.Pairing)
		}
	}
	return nil
}

// QuantityToBuy converts a quote spend into a base quantity at price, truncated to
// the market's quantity step. A zero step leaves the quantity unrounded.
func QuantityToBuy(spend, price, step float64) float64 {
	if price <= 0 || spend <= 0 {
		return 0
	}
	q := decimal.NewFromFloat(spend).Div(decimal.NewFromFloat(price))
	if step > 0 {
		s := decimal.NewFromFloat(step)
		q = q.Div(s).Truncate(0).Mul(s)
	}
	return q.InexactFloat64()
}
