package notifier

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"CryptoDCA/internal/ledger"
	"CryptoDCA/internal/model"
	"CryptoDCA/internal/orderbook"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRoundPrice(t *testing.T) {
	tests := []struct {
		in   float64
		want string
	}{
		{0, "0"},
		{0.000123456, "0.000123"},
		{0.5, "0.5"},
		{-0.0456789, "-0.0457"},
		{1, "1.00"},
		{60123.456, "60123.46"},
		{-37.5, "-37.50"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, RoundPrice(tt.in), "in=%v", tt.in)
	}
}

func TestFormatPurchase_Fee(t *testing.T) {
	fee, rate := 0.05, 0.001
	msg := FormatPurchase("binance", Purchase{
		Record:  model.PurchaseRecord{Coin: "BTC", Filled: 0.001, Price: 50000, Cost: 50, Fee: &fee, FeeCurrency: "USDT", FeeRate: &rate},
		Pairing: "USDT",
		Stats:   model.CoinStats{N: 3, Gain: -1.5, ROIPercent: -2.25},
	})
	assert.Contains(t, msg, "Fee: 0.05 USDT (0.1 %)")
	assert.Contains(t, msg, "(3 purchases)")
	assert.Contains(t, msg, "Gain: -1.50 USDT (-2.25%)")
}

func TestFormatCritical_EscapesHTML(t *testing.T) {
	msg := FormatCritical("", errors.New("bad <symbol>"), "loading markets")
	assert.Contains(t, msg, "bad &lt;symbol&gt;")
	assert.Contains(t, msg, "The bot has stopped.")
}

func TestFormatInfo_Header(t *testing.T) {
	assert.Equal(t, "ℹ️ <b>DCA info</b> | binance &amp; co\n\nstarted", FormatInfo("binance & co", "started"))
	assert.Equal(t, "ℹ️ <b>DCA info</b>\n\nstarted", FormatInfo("", "started"))
}

func TestFormatNextPurchases(t *testing.T) {
	now := time.Date(2026, 10, 19, 10, 0, 0, 0, time.UTC)
	msg := FormatNextPurchases([]model.OrderBookEntry{
		{Coin: "BTC", Due: time.Date(2026, 10, 20, 9, 0, 0, 0, time.UTC), Cycle: model.CycleDaily, Strategy: "classic 50"},
	}, now)
	assert.Contains(t, msg, "<b>Next purchases</b> | "+now.Format(timeLayout)+"\n\n")
	assert.Contains(t, msg, "<b>BTC</b>: "+time.Date(2026, 10, 20, 9, 0, 0, 0, time.UTC).Format(timeLayout)+" (daily, classic 50)\n")

	assert.Contains(t, FormatNextPurchases(nil, now), "No purchases scheduled yet.")
}

func TestCommands(t *testing.T) {
	dir := t.TempDir()
	bookPath := filepath.Join(dir, "orderbook.csv")
	statsPath := filepath.Join(dir, "stats.csv")
	now := time.Date(2026, 10, 19, 10, 0, 0, 0, time.UTC)
	c := Commands{OrderBookPath: bookPath, StatsPath: statsPath, Location: time.UTC, Now: func() time.Time { return now }}

	assert.Contains(t, c.Handle("/next"), "No purchases scheduled yet.")
	assert.Contains(t, c.Handle("/stats"), "No purchases yet.")

	require.NoError(t, orderbook.Save(bookPath, []model.OrderBookEntry{
		{Coin: "BTC", Due: now.Add(23 * time.Hour), Cycle: model.CycleDaily, Strategy: "classic 50"},
	}))
	require.NoError(t, ledger.SaveStats(statsPath, []model.CoinStats{{Coin: "BTC", N: 1, Quantity: 0.001, AvgPrice: 50000, TotalCost: 50}}))

	assert.Contains(t, c.Handle("/next@DCABot"), "<b>BTC</b>: 2026-10-20 09:00 (daily, classic 50)")
	assert.Contains(t, c.Handle(" /STATS "), "<b>BTC</b>: 1 buys, 0.001 held, avg 50000.00")
	assert.Contains(t, c.Handle("/help"), "/next")
	assert.Empty(t, c.Handle("hello"))
	assert.Empty(t, c.Handle("   "))

	require.NoError(t, os.WriteFile(bookPath, []byte("garbage"), 0644))
	assert.Equal(t, "Order book unavailable.", c.Handle("/next"))
}
