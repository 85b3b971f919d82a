package notifier

import (
	"fmt"
	"html"
	"math"
	"strconv"
	"strings"
	"time"

	"CryptoDCA/internal/model"
	"CryptoDCA/internal/retry"
)

const timeLayout = "2006-01-02 15:04"

// RoundPrice renders a price or amount for humans: two decimals from 1 upwards,
// three significant digits below 1.
func RoundPrice(x float64) string {
	switch {
	case x == 0:
		return "0"
	case math.Abs(x) < 1:
		v, _ := strconv.ParseFloat(strconv.FormatFloat(x, 'e', 2, 64), 64)
		return strconv.FormatFloat(v, 'f', -1, 64)
	default:
		return strconv.FormatFloat(x, 'f', 2, 64)
	}
}

func header(b *strings.Builder, icon, title, exchange string) {
	fmt.Fprintf(b, "%s <b>%s</b>", icon, html.EscapeString(title))
	if exchange != "" {
		fmt.Fprintf(b, " | %s", html.EscapeString(exchange))
	}
	b.WriteString("\n\n")
}

// FormatInfo formats a plain informational message.
func FormatInfo(exchange, text string) string {
	var b strings.Builder
	header(&b, "ℹ️", "DCA info", exchange)
	b.WriteString(html.EscapeString(text))
	return b.String()
}

// FormatFundsWarning formats a low balance warning.
func FormatFundsWarning(exchange string, w FundsWarning) string {
	var b strings.Builder
	header(&b, "⚠️", w.Coin+" warning", exchange)
	fmt.Fprintf(&b, "Insufficient %s balance for the next %s purchase.\n", w.Pairing, w.Coin)
	fmt.Fprintf(&b, "Required: %s %s\n", RoundPrice(w.RequiredCost), w.Pairing)
	fmt.Fprintf(&b, "Available: %s %s\n", RoundPrice(w.Available), w.Pairing)
	fmt.Fprintf(&b, "Next purchase: %s\n", w.NextPurchase.Format(timeLayout))
	return b.String()
}

// FormatRecoverableError formats the first failure of an error streak.
func FormatRecoverableError(exchange, coin string, p retry.Policy, err error) string {
	var b strings.Builder
	header(&b, "❗", coin+" purchase failed", exchange)
	fmt.Fprintf(&b, "Error: <code>%s</code>\n", html.EscapeString(errText(err)))
	fmt.Fprintf(&b, "Retrying up to %d times every %s.\n", p.MaxAttempts, p.Backoff)
	return b.String()
}

// FormatCritical formats an error that stops the bot.
func FormatCritical(exchange string, err error, when string) string {
	var b strings.Builder
	header(&b, "🛑", "Critical error", exchange)
	fmt.Fprintf(&b, "While %s:\n<code>%s</code>\n\n", html.EscapeString(when), html.EscapeString(errText(err)))
	b.WriteString("The bot has stopped.")
	return b.String()
}

// FormatPurchase formats a completed purchase with the coin's updated statistics.
func FormatPurchase(exchange string, p Purchase) string {
	r, s := p.Record, p.Stats
	var b strings.Builder
	header(&b, "✅", r.Coin+" purchase complete", exchange)

	fmt.Fprintf(&b, "Bought %s %s at %s %s\n", RoundPrice(r.Filled), r.Coin, RoundPrice(r.Price), p.Pairing)
	fmt.Fprintf(&b, "Cost: %s %s\n", RoundPrice(r.Cost), p.Pairing)
	fmt.Fprintf(&b, "Fee: %s\n", formatFee(r.Fee, r.FeeCurrency, r.FeeRate))
	fmt.Fprintf(&b, "Bought on: %s\n", p.PurchasedOn.Format(timeLayout))
	fmt.Fprintf(&b, "Cycle: %s | %s\n", p.Cycle, html.EscapeString(p.Strategy))
	fmt.Fprintf(&b, "Next purchase: %s\n\n", p.NextPurchase.Format(timeLayout))

	fmt.Fprintf(&b, "📈 <b>%s totals</b> (%d purchases)\n", r.Coin, s.N)
	fmt.Fprintf(&b, "Holdings: %s %s\n", RoundPrice(s.Quantity), r.Coin)
	fmt.Fprintf(&b, "Average price: %s %s\n", RoundPrice(s.AvgPrice), p.Pairing)
	fmt.Fprintf(&b, "Total cost: %s %s\n", RoundPrice(s.TotalCost), p.Pairing)
	fmt.Fprintf(&b, "Gain: %s %s (%s%%)\n", RoundPrice(s.Gain), p.Pairing, RoundPrice(s.ROIPercent))
	return b.String()
}

func formatFee(fee *float64, currency string, rate *float64) string {
	if fee == nil {
		return "N.A."
	}
	out := RoundPrice(*fee)
	if currency != "" {
		out += " " + currency
	}
	if rate != nil {
		out += fmt.Sprintf(" (%s %%)", RoundPrice(*rate*100))
	}
	return out
}

// FormatNextPurchases renders the order book for the /next command.
func FormatNextPurchases(entries []model.OrderBookEntry, now time.Time) string {
	var b strings.Builder
	fmt.Fprintf(&b, "🗓 <b>Next purchases</b> | %s\n\n", now.Format(timeLayout))
	if len(entries) == 0 {
		b.WriteString("No purchases scheduled yet.")
		return b.String()
	}
	for _, e := range entries {
		fmt.Fprintf(&b, "<b>%s</b>: %s (%s, %s)\n",
			html.EscapeString(e.Coin), e.Due.Format(timeLayout), e.Cycle, html.EscapeString(e.Strategy))
	}
	return b.String()
}

// FormatStatsTable renders the statistics for the /stats command.
func FormatStatsTable(stats []model.CoinStats) string {
	var b strings.Builder
	b.WriteString("📊 <b>Statistics</b>\n\n")
	if len(stats) == 0 {
		b.WriteString("No purchases yet.")
		return b.String()
	}
	for _, s := range stats {
		fmt.Fprintf(&b, "<b>%s</b>: %d buys, %s held, avg %s, cost %s, gain %s (%s%%)\n",
			html.EscapeString(s.Coin), s.N, RoundPrice(s.Quantity), RoundPrice(s.AvgPrice),
			RoundPrice(s.TotalCost), RoundPrice(s.Gain), RoundPrice(s.ROIPercent))
	}
	return b.String()
}

func errText(err error) string {
	if err == nil {
		return "unknown error"
	}
	return err.Error()
}
