package strategy

import (
	"errors"
	"fmt"
	"math"
	"strings"
)

// MappingKind selects the curve between the price range and the amount range.
type MappingKind string

const (
	Linear      MappingKind = "linear"
	Exponential MappingKind = "exponential"
)

// ParseMappingKind normalizes a configured mapping name.
func ParseMappingKind(s string) (MappingKind, error) {
	switch k := MappingKind(strings.ToLower(strings.TrimSpace(s))); k {
	case Linear, Exponential:
		return k, nil
	default:
		return "", fmt.Errorf("unrecognized mapping function %q", s)
	}
}

// PriceMapper maps a price to a spend amount:
//   - below MinPrice it spends MaxAmount,
//   - above MaxPrice it spends nothing,
//   - in between it follows the curve from MaxAmount at MinPrice down to MinAmount at MaxPrice.
type PriceMapper struct {
	MinAmount float64
	MaxAmount float64
	MinPrice  float64
	MaxPrice  float64
	Kind      MappingKind

	// exponential curve amount = k * exp(r * price)
	r, k float64
}

// NewPriceMapper validates the ranges and precomputes the curve.
func NewPriceMapper(amounts, prices [2]float64, kind MappingKind) (*PriceMapper, error) {
	m := &PriceMapper{
		MinAmount: amounts[0],
		MaxAmount: amounts[1],
		MinPrice:  prices[0],
		MaxPrice:  prices[1],
		Kind:      kind,
	}
	if m.MinAmount < 0 || m.MaxAmount <= 0 || m.MinAmount > m.MaxAmount {
		return nil, fmt.Errorf("amount range [%v, %v] must satisfy 0 <= min <= max, max > 0", m.MinAmount, m.MaxAmount)
	}
	if m.MinPrice < 0 || m.MinPrice >= m.MaxPrice {
		return nil, fmt.Errorf("price range [%v, %v] must satisfy 0 <= min < max", m.MinPrice, m.MaxPrice)
	}
	switch kind {
	case Linear:
	case Exponential:
		if m.MinAmount <= 0 {
			return nil, errors.New("exponential mapping needs a positive minimum amount")
		}
		m.r = (math.Log(m.MinAmount) - math.Log(m.MaxAmount)) / (m.MaxPrice - m.MinPrice)
		m.k = m.MinAmount * math.Exp(-m.MaxPrice*m.r)
	default:
		return nil, fmt.Errorf("unrecognized mapping function %q", kind)
	}
	return m, nil
}

// Amount returns the spend amount for the given price.
func (m *PriceMapper) Amount(price float64) float64 {
	switch {
	case price < m.MinPrice:
		return m.MaxAmount
	case price > m.MaxPrice:
		return 0
	}
	if m.Kind == Exponential {
		return m.k * math.Exp(m.r*price)
	}
	return m.MaxAmount + (m.MaxAmount-m.MinAmount)/(m.MaxPrice-m.MinPrice)*(m.MinPrice-price)
}
