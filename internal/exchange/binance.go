package exchange

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"CryptoDCA/internal/model"

	"github.com/go-resty/resty/v2"
	"github.com/goccy/go-json"
	"github.com/shopspring/decimal"
	"golang.org/x/time/rate"
)

const defaultBinanceURL = "https://api.binance.com"

// BinanceConfig holds the spot REST API settings.
type BinanceConfig struct {
	BaseURL           string
	APIKey            string
	APISecret         string
	RecvWindow        time.Duration
	RequestsPerSecond float64
	Timeout           time.Duration
}

// BinanceClient talks to the Binance spot REST API.
type BinanceClient struct {
	cfg     BinanceConfig
	http    *resty.Client
	limiter *rate.Limiter
	now     func() time.Time

	mu      sync.RWMutex
	markets map[string]binanceSymbol
}

// NewBinanceClient creates a client. Requests are throttled client side; no HTTP
// level retries are made, retries are decided by the purchase cycle.
func NewBinanceClient(cfg BinanceConfig) *BinanceClient {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBinanceURL
	}
	if cfg.RecvWindow == 0 {
		cfg.RecvWindow = 5 * time.Second
	}
	if cfg.RequestsPerSecond <= 0 {
		cfg.RequestsPerSecond = 5
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}

	client := resty.New().
		SetBaseURL(strings.TrimSuffix(cfg.BaseURL, "/")).
		SetTimeout(cfg.Timeout).
		SetJSONMarshaler(json.Marshal).
		SetJSONUnmarshaler(json.Unmarshal).
		SetHeader("Accept", "application/json").
		SetHeader("X-MBX-APIKEY", cfg.APIKey)

	return &BinanceClient{
		cfg:     cfg,
		http:    client,
		limiter: rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), 1),
		now:     time.Now,
		markets: make(map[string]binanceSymbol),
	}
}

func (c *BinanceClient) Name() string { return "binance" }

func (c *BinanceClient) Capabilities() Capabilities {
	return Capabilities{QuoteOrderQty: true, FetchOrder: true, FetchOrderTrades: true}
}

type binanceFilter struct {
	FilterType  string `json:"filterType"`
	StepSize    string `json:"stepSize"`
	MinNotional string `json:"minNotional"`
	MaxNotional string `json:"maxNotional"`
}

type binanceSymbol struct {
	Symbol                     string          `json:"symbol"`
	Status                     string          `json:"status"`
	BaseAsset                  string          `json:"baseAsset"`
	QuoteAsset                 string          `json:"quoteAsset"`
	QuoteOrderQtyMarketAllowed bool            `json:"quoteOrderQtyMarketAllowed"`
	Filters                    []binanceFilter `json:"filters"`
}

type binanceAPIError struct {
	Code int    `json:"code"`
	Msg  string `json:"msg"`
}

// LoadMarkets caches the symbol rules of the exchange.
func (c *BinanceClient) LoadMarkets(ctx context.Context) error {
	var out struct {
		Symbols []binanceSymbol `json:"symbols"`
	}
	if err := c.do(ctx, "load markets", http.MethodGet, "/api/v3/exchangeInfo", nil, false, &out); err != nil {
		return err
	}

	markets := make(map[string]binanceSymbol, len(out.Symbols))
	for _, s := range out.Symbols {
		markets[s.Symbol] = s
	}
	c.mu.Lock()
	c.markets = markets
	c.mu.Unlock()
	log.WithField("markets", len(markets)).Debug("binance markets loaded")
	return nil
}

func (c *BinanceClient) MarketLimits(symbol string) (model.MarketLimits, error) {
	c.mu.RLock()
	s, ok := c.markets[symbol]
	c.mu.RUnlock()
	if !ok {
		return model.MarketLimits{}, &Error{Kind: KindRejected, Op: "market limits", Msg: "unknown symbol " + symbol}
	}

	var limits model.MarketLimits
	for _, f := range s.Filters {
		switch f.FilterType {
		case "LOT_SIZE":
			limits.AmountStep = parseFloat(f.StepSize)
		case "NOTIONAL", "MIN_NOTIONAL":
			if v := parseFloat(f.MinNotional); v > 0 {
				limits.CostMin = &v
			}
			if v := parseFloat(f.MaxNotional); v > 0 {
				limits.CostMax = &v
			}
		}
	}
	return limits, nil
}

func (c *BinanceClient) FetchBalance(ctx context.Context) (map[string]model.Balance, error) {
	var out struct {
		Balances []struct {
			Asset  string `json:"asset"`
			Free   string `json:"free"`
			Locked string `json:"locked"`
		} `json:"balances"`
	}
	params := url.Values{}
	params.Set("omitZeroBalances", "true")
	if err := c.do(ctx, "fetch balance", http.MethodGet, "/api/v3/account", params, true, &out); err != nil {
		return nil, err
	}

	balances := make(map[string]model.Balance, len(out.Balances))
	for _, b := range out.Balances {
		free, used := parseDecimal(b.Free), parseDecimal(b.Locked)
		balances[b.Asset] = model.Balance{
			Free:  free.InexactFloat64(),
			Used:  used.InexactFloat64(),
			Total: free.Add(used).InexactFloat64(),
		}
	}
	return balances, nil
}

func (c *BinanceClient) FetchTicker(ctx context.Context, symbol string) (model.Ticker, error) {
	var out struct {
		Symbol string `json:"symbol"`
		Price  string `json:"price"`
	}
	params := url.Values{}
	params.Set("symbol", symbol)
	if err := c.do(ctx, "fetch ticker", http.MethodGet, "/api/v3/ticker/price", params, false, &out); err != nil {
		return model.Ticker{}, err
	}
	return model.Ticker{Symbol: out.Symbol, Last: parseFloat(out.Price)}, nil
}

type binanceFill struct {
	Price           string `json:"price"`
	Qty             string `json:"qty"`
	Commission      string `json:"commission"`
	CommissionAsset string `json:"commissionAsset"`
}

type binanceOrder struct {
	Symbol              string        `json:"symbol"`
	OrderID             int64         `json:"orderId"`
	ClientOrderID       string        `json:"clientOrderId"`
	TransactTime        int64         `json:"transactTime"`
	Time                int64         `json:"time"`
	OrigQty             string        `json:"origQty"`
	ExecutedQty         string        `json:"executedQty"`
	CummulativeQuoteQty string        `json:"cummulativeQuoteQty"`
	Status              string        `json:"status"`
	Type                string        `json:"type"`
	Side                string        `json:"side"`
	Fills               []binanceFill `json:"fills"`
}

func (c *BinanceClient) CreateOrder(ctx context.Context, req OrderRequest) (model.OrderResult, error) {
	params := url.Values{}
	params.Set("symbol", req.Symbol)
	params.Set("side", strings.ToUpper(req.Side))
	params.Set("type", strings.ToUpper(req.Type))
	switch {
	case req.QuoteAmount > 0:
		params.Set("quoteOrderQty", decimal.NewFromFloat(req.QuoteAmount).String())
	case req.Amount > 0:
		params.Set("quantity", decimal.NewFromFloat(req.Amount).String())
	default:
		return model.OrderResult{}, &Error{Kind: KindRejected, Op: "create order", Msg: "order has no amount"}
	}
	if req.Price != nil {
		params.Set("price", decimal.NewFromFloat(*req.Price).String())
	}
	if req.ClientOrderID != "" {
		params.Set("newClientOrderId", req.ClientOrderID)
	}
	params.Set("newOrderRespType", "FULL")

	var out binanceOrder
	if err := c.do(ctx, "create order", http.MethodPost, "/api/v3/order", params, true, &out); err != nil {
		return model.OrderResult{}, err
	}
	return c.convertOrder(out), nil
}

func (c *BinanceClient) FetchOrder(ctx context.Context, id, symbol string) (model.OrderResult, error) {
	params := url.Values{}
	params.Set("symbol", symbol)
	params.Set("orderId", id)
	var out binanceOrder
	if err := c.do(ctx, "fetch order", http.MethodGet, "/api/v3/order", params, true, &out); err != nil {
		return model.OrderResult{}, err
	}
	return c.convertOrder(out), nil
}

func (c *BinanceClient) FetchOrderTrades(ctx context.Context, id, symbol string) ([]model.Trade, error) {
	params := url.Values{}
	params.Set("symbol", symbol)
	params.Set("orderId", id)
	var out []struct {
		OrderID         int64  `json:"orderId"`
		Price           string `json:"price"`
		Qty             string `json:"qty"`
		QuoteQty        string `json:"quoteQty"`
		Commission      string `json:"commission"`
		CommissionAsset string `json:"commissionAsset"`
	}
	if err := c.do(ctx, "fetch order trades", http.MethodGet, "/api/v3/myTrades", params, true, &out); err != nil {
		return nil, err
	}

	trades := make([]model.Trade, 0, len(out))
	for _, t := range out {
		trades = append(trades, model.Trade{
			OrderID:         strconv.FormatInt(t.OrderID, 10),
			Price:           parseFloat(t.Price),
			Quantity:        parseFloat(t.Qty),
			Cost:            parseFloat(t.QuoteQty),
			Commission:      parseFloat(t.Commission),
			CommissionAsset: t.CommissionAsset,
		})
	}
	return trades, nil
}

func (c *BinanceClient) convertOrder(o binanceOrder) model.OrderResult {
	filled := parseDecimal(o.ExecutedQty)
	cost := parseDecimal(o.CummulativeQuoteQty)
	remaining := parseDecimal(o.OrigQty).Sub(filled)
	if remaining.IsNegative() {
		remaining = decimal.Zero
	}

	ts := o.TransactTime
	if ts == 0 {
		ts = o.Time
	}
	res := model.OrderResult{
		ID:            strconv.FormatInt(o.OrderID, 10),
		ClientOrderID: o.ClientOrderID,
		Symbol:        o.Symbol,
		Side:          strings.ToLower(o.Side),
		Type:          strings.ToLower(o.Type),
		Status:        binanceStatus(o.Status),
		Timestamp:     time.UnixMilli(ts),
		Filled:        filled.InexactFloat64(),
		Cost:          cost.InexactFloat64(),
		Remaining:     remaining.InexactFloat64(),
	}
	if filled.IsPositive() {
		res.Average = cost.Div(filled).InexactFloat64()
	}

	if len(o.Fills) > 0 {
		fee := decimal.Zero
		for _, f := range o.Fills {
			fee = fee.Add(parseDecimal(f.Commission))
		}
		feeCost := fee.InexactFloat64()
		res.Fee = model.Fee{Cost: &feeCost, Currency: o.Fills[0].CommissionAsset}
		if quote := c.quoteAsset(o.Symbol); quote != "" && quote == res.Fee.Currency && cost.IsPositive() {
			r := fee.Div(cost).InexactFloat64()
			res.Fee.Rate = &r
		}
	}
	return res
}

func (c *BinanceClient) quoteAsset(symbol string) string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.markets[symbol].QuoteAsset
}

func binanceStatus(s string) string {
	switch s {
	case "FILLED":
		return model.OrderClosed
	case "CANCELED", "PENDING_CANCEL":
		return model.OrderCanceled
	case "REJECTED":
		return model.OrderRejected
	case "EXPIRED", "EXPIRED_IN_MATCH":
		return model.OrderExpired
	default:
		return model.OrderOpen
	}
}

// do performs one throttled request. Signed requests get a timestamp, recvWindow and
// an HMAC-SHA256 signature over the encoded query, which is sent verbatim so the
// parameter order matches the signed payload.
func (c *BinanceClient) do(ctx context.Context, op, method, path string, params url.Values, signed bool, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("%s: throttle: %w", op, err)
	}

	if params == nil {
		params = url.Values{}
	}
	query := params.Encode()
	if signed {
		params.Set("timestamp", strconv.FormatInt(c.now().UnixMilli(), 10))
		params.Set("recvWindow", strconv.FormatInt(c.cfg.RecvWindow.Milliseconds(), 10))
		query = params.Encode()
		query += "&signature=" + c.sign(query)
	}
	if query != "" {
		path += "?" + query
	}

	resp, err := c.http.R().SetContext(ctx).Execute(method, path)
	if err != nil {
		return transportError(op, err)
	}
	if resp.IsError() {
		return responseError(op, resp)
	}
	if out != nil {
		if err := json.Unmarshal(resp.Body(), out); err != nil {
			return &Error{Kind: KindUnknown, Op: op, Msg: "decode response", Err: err}
		}
	}
	return nil
}

func (c *BinanceClient) sign(payload string) string {
	mac := hmac.New(sha256.New, []byte(c.cfg.APISecret))
	mac.Write([]byte(payload))
	return hex.EncodeToString(mac.Sum(nil))
}

func transportError(op string, err error) *Error {
	if errors.Is(err, context.DeadlineExceeded) {
		return &Error{Kind: KindTimeout, Op: op, Err: err}
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return &Error{Kind: KindTimeout, Op: op, Err: err}
	}
	return &Error{Kind: KindNetwork, Op: op, Err: err}
}

func responseError(op string, resp *resty.Response) *Error {
	var apiErr binanceAPIError
	_ = json.Unmarshal(resp.Body(), &apiErr)
	e := &Error{Op: op, Code: apiErr.Code, Msg: apiErr.Msg}
	if e.Msg == "" {
		e.Msg = fmt.Sprintf("http %d", resp.StatusCode())
	}

	status := resp.StatusCode()
	switch {
	case status == http.StatusTooManyRequests || status == http.StatusTeapot:
		e.Kind = KindRateLimited
	case status >= 500:
		e.Kind = KindUnavailable
	default:
		e.Kind = binanceCodeKind(apiErr.Code, apiErr.Msg)
	}
	return e
}

func binanceCodeKind(code int, msg string) ErrorKind {
	switch code {
	case -2010:
		if strings.Contains(strings.ToLower(msg), "insufficient balance") {
			return KindInsufficientFunds
		}
		return KindRejected
	case -1003, -1015:
		return KindRateLimited
	case -1021:
		return KindInvalidNonce
	case -1001:
		return KindNetwork
	case -1007:
		return KindTimeout
	case -1016:
		return KindUnavailable
	default:
		return KindRejected
	}
}

func parseDecimal(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}

func parseFloat(s string) float64 {
	return parseDecimal(s).InexactFloat64()
}
