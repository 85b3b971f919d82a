package strategy

import (
	"fmt"
	"strconv"
)

// Strategy maps the current market price to the amount of quote currency to spend.
// Variants are fixed when the configuration is loaded.
type Strategy interface {
	// Spend returns the amount to spend at the given price. Zero means skip this cycle.
	Spend(price float64) float64
	// NeedsPrice reports whether Spend depends on the current price.
	NeedsPrice() bool
	// MaxSpend is the largest amount Spend can return, used for balance checks and limits.
	MaxSpend() float64
	// MinSpend is the smallest amount Spend can return without skipping the cycle.
	MinSpend() float64
	String() string
}

// Classic spends a fixed amount every cycle.
type Classic struct {
	Amount float64
}

func (c Classic) Spend(float64) float64 { return c.Amount }
func (c Classic) NeedsPrice() bool      { return false }
func (c Classic) MaxSpend() float64     { return c.Amount }
func (c Classic) MinSpend() float64     { return c.Amount }
func (c Classic) String() string        { return "classic " + formatNum(c.Amount) }

// BuyBelow spends a fixed amount only while the price is at or below MaxPrice.
type BuyBelow struct {
	Amount   float64
	MaxPrice float64
}

func (b BuyBelow) Spend(price float64) float64 {
	if price > b.MaxPrice {
		return 0
	}
	return b.Amount
}
func (b BuyBelow) NeedsPrice() bool  { return true }
func (b BuyBelow) MaxSpend() float64 { return b.Amount }
func (b BuyBelow) MinSpend() float64 { return b.Amount }
func (b BuyBelow) String() string {
	return fmt.Sprintf("buy-below %s if price <= %s", formatNum(b.Amount), formatNum(b.MaxPrice))
}

// VariableAmount spends an amount derived from the price through a PriceMapper.
type VariableAmount struct {
	Mapper *PriceMapper
}

func (v VariableAmount) Spend(price float64) float64 { return v.Mapper.Amount(price) }
func (v VariableAmount) NeedsPrice() bool            { return true }
func (v VariableAmount) MaxSpend() float64           { return v.Mapper.MaxAmount }

// MinSpend is the amount at MaxPrice. With a zero minimum the spend gets arbitrarily
// close to zero just below MaxPrice.
func (v VariableAmount) MinSpend() float64 { return v.Mapper.MinAmount }
func (v VariableAmount) String() string {
	m := v.Mapper
	return fmt.Sprintf("variable %s %s-%s for price %s-%s", m.Kind,
		formatNum(m.MinAmount), formatNum(m.MaxAmount), formatNum(m.MinPrice), formatNum(m.MaxPrice))
}

func formatNum(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
