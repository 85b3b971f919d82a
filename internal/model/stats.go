package model

// CoinStats is the aggregate of all ledger rows of one coin.
type CoinStats struct {
	Coin       string
	N          int
	Quantity   float64
	AvgPrice   float64 // cost-weighted
	TotalCost  float64
	Gain       float64 // unrealized, at the latest purchase price
	ROIPercent float64
}
