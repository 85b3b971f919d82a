package exchange

import (
	"context"
	"fmt"

	"CryptoDCA/internal/model"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

// Buy submits a market buy spending the given quote amount. price is the last known
// price, or zero when none was fetched.
//
// Only a failed submission is returned as an error. Once the exchange has accepted
// the order, follow-up failures are logged and the order as known so far is returned:
// retrying at that point would buy twice.
func Buy(ctx context.Context, c Client, coin model.Coin, spend, price float64) (model.OrderResult, error) {
	symbol := coin.Symbol()
	caps := c.Capabilities()
	req := OrderRequest{
		Symbol:        symbol,
		Type:          "market",
		Side:          "buy",
		ClientOrderID: uuid.NewString(),
	}

	if caps.QuoteOrderQty {
		req.QuoteAmount = spend
	} else {
		if price <= 0 {
			t, err := c.FetchTicker(ctx, symbol)
			if err != nil {
				return model.OrderResult{}, err
			}
			price = t.Last
		}
		limits, err := c.MarketLimits(symbol)
		if err != nil {
			return model.OrderResult{}, err
		}
		req.Amount = QuantityToBuy(spend, price, limits.AmountStep)
	}

	order, err := c.CreateOrder(ctx, req)
	if err != nil {
		return model.OrderResult{}, err
	}
	entry := log.WithFields(logrus.Fields{"coin": coin.Name, "order": order.ID})

	if caps.FetchOrder && (order.Status == model.OrderOpen || order.Filled == 0) {
		fetched, err := c.FetchOrder(ctx, order.ID, symbol)
		if err != nil {
			entry.WithError(err).Warn("fetch order after creation failed")
		} else {
			if !fetched.Fee.Known() {
				fetched.Fee = order.Fee
			}
			order = fetched
		}
	}

	// A final order without a fill bought nothing. An expired market order ran out of
	// liquidity and can be retried; anything else was refused.
	if order.Filled == 0 && order.Status != model.OrderOpen {
		kind := KindRejected
		if order.Status == model.OrderExpired {
			kind = KindUnavailable
		}
		return model.OrderResult{}, &Error{Kind: kind, Op: "buy " + coin.Pair(),
			Msg: fmt.Sprintf("order %s is %s without a fill", order.ID, order.Status)}
	}

	if !order.Fee.Known() && caps.FetchOrderTrades {
		trades, err := c.FetchOrderTrades(ctx, order.ID, symbol)
		if err != nil {
			entry.WithError(err).Warn("fee backfill failed")
		} else {
			order.Fee = feeFromTrades(trades, coin.Pairing, order.Cost)
		}
	}
	return order, nil
}

// feeFromTrades sums the commissions of an order's fills. The rate is only known when
// the commission was charged in the quote currency.
func feeFromTrades(trades []model.Trade, quote string, cost float64) model.Fee {
	if len(trades) == 0 {
		return model.Fee{}
	}
	total := decimal.Zero
	for _, t := range trades {
		total = total.Add(decimal.NewFromFloat(t.Commission))
	}
	feeCost := total.InexactFloat64()
	fee := model.Fee{Cost: &feeCost, Currency: trades[0].CommissionAsset}
	if fee.Currency == quote && cost > 0 {
		r := total.Div(decimal.NewFromFloat(cost)).InexactFloat64()
		fee.Rate = &r
	}
	return fee
}
