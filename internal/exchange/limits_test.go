package exchange

import (
	"context"
	"testing"

	"CryptoDCA/internal/model"
	"CryptoDCA/internal/strategy"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCheckCostLimits(t *testing.T) {
	p := NewPaperExchange(nil, []PaperMarket{{Base: "BTC", Quote: "USDT", Price: 50000, CostMin: 10}}, 0)
	coin := func(amount float64) []model.Coin {
		return []model.Coin{{Name: "BTC", Pairing: "USDT", Strategy: strategy.Classic{Amount: amount}}}
	}

	require.NoError(t, CheckCostLimits(context.Background(), p, coin(10.01)))
	assert.ErrorIs(t, CheckCostLimits(context.Background(), p, coin(10)), ErrCostOutOfLimits)
	assert.ErrorIs(t, CheckCostLimits(context.Background(), p, coin(5)), ErrCostOutOfLimits)

	unknown := []model.Coin{{Name: "ETH", Pairing: "USDT", Strategy: strategy.Classic{Amount: 50}}}
	assert.Error(t, CheckCostLimits(context.Background(), p, unknown))
}

func TestCheckCostLimits_UsesUpperBoundOfRange(t *testing.T) {
	max := 100.0
	c := new(mockClient)
	c.On("LoadMarkets", context.Background()).Return(nil)
	c.On("MarketLimits", "ETHUSDT").Return(model.MarketLimits{CostMax: &max}, nil)

	mapper, err := strategy.NewPriceMapper([2]float64{10, 100}, [2]float64{2000, 4000}, strategy.Linear)
	require.NoError(t, err)
	coins := []model.Coin{{Name: "ETH", Pairing: "USDT", Strategy: strategy.VariableAmount{Mapper: mapper}}}

	assert.ErrorIs(t, CheckCostLimits(context.Background(), c, coins), ErrCostOutOfLimits)
}

func TestCheckCostLimits_UsesLowerBoundOfRange(t *testing.T) {
	p := NewPaperExchange(nil, []PaperMarket{{Base: "ETH", Quote: "USDT", Price: 3000, CostMin: 10}}, 0)
	variable := func(minAmount float64) []model.Coin {
		mapper, err := strategy.NewPriceMapper([2]float64{minAmount, 100}, [2]float64{1000, 4000}, strategy.Linear)
		require.NoError(t, err)
		return []model.Coin{{Name: "ETH", Pairing: "USDT", Strategy: strategy.VariableAmount{Mapper: mapper}}}
	}

	// Near the top of the price range the spend would fall under the market minimum.
	low := variable(2)
	assert.Less(t, low[0].Strategy.Spend(3999), 10.0)
	assert.ErrorIs(t, CheckCostLimits(context.Background(), p, low), ErrCostOutOfLimits)

	assert.ErrorIs(t, CheckCostLimits(context.Background(), p, variable(0)), ErrCostOutOfLimits)
	assert.ErrorIs(t, CheckCostLimits(context.Background(), p, variable(10)), ErrCostOutOfLimits)
	require.NoError(t, CheckCostLimits(context.Background(), p, variable(12)))
}

func TestQuantityToBuy(t *testing.T) {
	tests := []struct {
		name               string
		spend, price, step float64
		want               float64
	}{
		{"no step", 50, 20000, 0, 0.0025},
		{"truncated to step", 50, 30000, 0.00001, 0.00166},
		{"exact multiple", 100, 50000, 0.001, 0.002},
		{"below one step", 1, 50000, 0.001, 0},
		{"no price", 50, 0, 0.001, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, QuantityToBuy(tt.spend, tt.price, tt.step))
		})
	}
}
