package exchange

import (
	"context"
	"fmt"
	"sync"
	"time"

	"CryptoDCA/internal/model"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// PaperMarket is one simulated market.
type PaperMarket struct {
	Base       string
	Quote      string
	Price      float64
	CostMin    float64
	AmountStep float64
}

// PaperExchange fills market orders immediately against virtual balances at the
// configured prices. It is used in test mode to run the whole loop offline.
type PaperExchange struct {
	mu       sync.Mutex
	markets  map[string]PaperMarket
	balances map[string]float64
	orders   map[string]model.OrderResult
	feeRate  float64
	now      func() time.Time
}

// NewPaperExchange creates a paper exchange. Fees are charged in the base asset.
func NewPaperExchange(balances map[string]float64, markets []PaperMarket, feeRate float64) *PaperExchange {
	p := &PaperExchange{
		markets:  make(map[string]PaperMarket, len(markets)),
		balances: make(map[string]float64, len(balances)),
		orders:   make(map[string]model.OrderResult),
		feeRate:  feeRate,
		now:      time.Now,
	}
	for k, v := range balances {
		p.balances[k] = v
	}
	for _, m := range markets {
		p.markets[m.Base+m.Quote] = m
	}
	return p
}

func (p *PaperExchange) Name() string { return "paper" }

func (p *PaperExchange) Capabilities() Capabilities {
	return Capabilities{QuoteOrderQty: true, FetchOrder: true, FetchOrderTrades: true}
}

// SetPrice updates the price of a simulated market.
func (p *PaperExchange) SetPrice(symbol string, price float64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if m, ok := p.markets[symbol]; ok {
		m.Price = price
		p.markets[symbol] = m
	}
}

func (p *PaperExchange) LoadMarkets(ctx context.Context) error { return ctx.Err() }

func (p *PaperExchange) MarketLimits(symbol string) (model.MarketLimits, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	m, ok := p.markets[symbol]
	if !ok {
		return model.MarketLimits{}, &Error{Kind: KindRejected, Op: "market limits", Msg: "unknown symbol " + symbol}
	}
	limits := model.MarketLimits{AmountStep: m.AmountStep}
	if m.CostMin > 0 {
		v := m.CostMin
		limits.CostMin = &v
	}
	return limits, nil
}

func (p *PaperExchange) FetchBalance(ctx context.Context) (map[string]model.Balance, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make(map[string]model.Balance, len(p.balances))
	for k, v := range p.balances {
		out[k] = model.Balance{Free: v, Total: v}
	}
	return out, nil
}

func (p *PaperExchange) FetchTicker(ctx context.Context, symbol string) (model.Ticker, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	m, ok := p.markets[symbol]
	if !ok || m.Price <= 0 {
		return model.Ticker{}, &Error{Kind: KindRejected, Op: "fetch ticker", Msg: "no price for " + symbol}
	}
	return model.Ticker{Symbol: symbol, Last: m.Price}, nil
}

func (p *PaperExchange) CreateOrder(ctx context.Context, req OrderRequest) (model.OrderResult, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	m, ok := p.markets[req.Symbol]
	if !ok || m.Price <= 0 {
		return model.OrderResult{}, &Error{Kind: KindRejected, Op: "create order", Msg: "no price for " + req.Symbol}
	}
	if req.Side != "buy" || req.Type != "market" {
		return model.OrderResult{}, &Error{Kind: KindRejected, Op: "create order",
			Msg: fmt.Sprintf("unsupported %s %s order", req.Type, req.Side)}
	}

	price := decimal.NewFromFloat(m.Price)
	var qty, cost decimal.Decimal
	if req.QuoteAmount > 0 {
		cost = decimal.NewFromFloat(req.QuoteAmount)
		qty = cost.Div(price)
	} else {
		qty = decimal.NewFromFloat(req.Amount)
		cost = qty.Mul(price)
	}
	if !qty.IsPositive() {
		return model.OrderResult{}, &Error{Kind: KindRejected, Op: "create order", Msg: "order has no amount"}
	}

	available := decimal.NewFromFloat(p.balances[m.Quote])
	if available.LessThan(cost) {
		return model.OrderResult{}, &Error{Kind: KindInsufficientFunds, Op: "create order",
			Msg: fmt.Sprintf("need %s %s, have %s", cost.String(), m.Quote, available.String())}
	}

	fee := qty.Mul(decimal.NewFromFloat(p.feeRate))
	p.balances[m.Quote] = available.Sub(cost).InexactFloat64()
	p.balances[m.Base] = decimal.NewFromFloat(p.balances[m.Base]).Add(qty).Sub(fee).InexactFloat64()

	feeCost, rate := fee.InexactFloat64(), p.feeRate
	order := model.OrderResult{
		ID:            uuid.NewString(),
		ClientOrderID: req.ClientOrderID,
		Symbol:        req.Symbol,
		Side:          req.Side,
		Type:          req.Type,
		Status:        model.OrderClosed,
		Timestamp:     p.now(),
		Filled:        qty.InexactFloat64(),
		Average:       m.Price,
		Cost:          cost.InexactFloat64(),
		Fee:           model.Fee{Cost: &feeCost, Currency: m.Base, Rate: &rate},
	}
	p.orders[order.ID] = order
	return order, nil
}

func (p *PaperExchange) FetchOrder(ctx context.Context, id, symbol string) (model.OrderResult, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	o, ok := p.orders[id]
	if !ok || o.Symbol != symbol {
		return model.OrderResult{}, &Error{Kind: KindRejected, Op: "fetch order", Msg: "order not found"}
	}
	return o, nil
}

func (p *PaperExchange) FetchOrderTrades(ctx context.Context, id, symbol string) ([]model.Trade, error) {
	o, err := p.FetchOrder(ctx, id, symbol)
	if err != nil {
		return nil, err
	}
	t := model.Trade{OrderID: o.ID, Price: o.Average, Quantity: o.Filled, Cost: o.Cost}
	if o.Fee.Cost != nil {
		t.Commission = *o.Fee.Cost
		t.CommissionAsset = o.Fee.Currency
	}
	return []model.Trade{t}, nil
}
