package ledger

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"os"
	"strconv"

	"CryptoDCA/internal/atomicfile"
	"CryptoDCA/internal/model"

	"github.com/shopspring/decimal"
)

var statsHeader = []string{"Coin", "N", "Quantity", "AvgPrice", "TotalCost", "ROI", "ROI%"}

// ComputeStats aggregates the ledger rows of one coin. The latest price is the price
// of the coin's last purchase, so the result depends on the ledger alone.
func ComputeStats(coin string, records []model.PurchaseRecord) (model.CoinStats, bool) {
	var (
		n        int
		qty      = decimal.Zero
		cost     = decimal.Zero
		weighted = decimal.Zero
		latest   = decimal.Zero
	)
	for _, r := range records {
		if r.Coin != coin {
			continue
		}
		price, c := decimal.NewFromFloat(r.Price), decimal.NewFromFloat(r.Cost)
		n++
		qty = qty.Add(decimal.NewFromFloat(r.Filled))
		cost = cost.Add(c)
		weighted = weighted.Add(price.Mul(c))
		latest = price
	}
	if n == 0 {
		return model.CoinStats{}, false
	}

	s := model.CoinStats{
		Coin:      coin,
		N:         n,
		Quantity:  qty.InexactFloat64(),
		TotalCost: cost.InexactFloat64(),
	}
	if cost.IsPositive() {
		avg := weighted.Div(cost)
		s.AvgPrice = avg.InexactFloat64()
		if avg.IsPositive() {
			roi := latest.Sub(avg).Div(avg).Mul(decimal.NewFromInt(100))
			s.ROIPercent = roi.InexactFloat64()
			s.Gain = roi.Mul(cost).Div(decimal.NewFromInt(100)).InexactFloat64()
		}
	}
	return s, true
}

// ComputeAll aggregates every coin of the ledger, in order of first purchase.
func ComputeAll(records []model.PurchaseRecord) []model.CoinStats {
	seen := make(map[string]bool)
	var out []model.CoinStats
	for _, r := range records {
		if seen[r.Coin] {
			continue
		}
		seen[r.Coin] = true
		if s, ok := ComputeStats(r.Coin, records); ok {
			out = append(out, s)
		}
	}
	return out
}

// SaveStats rewrites the statistics file.
func SaveStats(path string, stats []model.CoinStats) error {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(statsHeader); err != nil {
		return fmt.Errorf("encode stats: %w", err)
	}
	for _, s := range stats {
		if err := w.Write([]string{
			s.Coin,
			strconv.Itoa(s.N),
			formatFloat(s.Quantity),
			formatFloat(s.AvgPrice),
			formatFloat(s.TotalCost),
			formatFloat(s.Gain),
			formatFloat(s.ROIPercent),
		}); err != nil {
			return fmt.Errorf("encode stats: %w", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("encode stats: %w", err)
	}
	if err := atomicfile.WriteFile(path, buf.Bytes(), 0644); err != nil {
		return fmt.Errorf("save stats: %w", err)
	}
	return nil
}

// LoadStats reads the statistics file. A missing file has no rows.
func LoadStats(path string) ([]model.CoinStats, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("open stats: %w", err)
	}
	defer f.Close()

	cr := csv.NewReader(f)
	cr.FieldsPerRecord = len(statsHeader)
	rows, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read stats: %w", err)
	}
	if len(rows) == 0 {
		return nil, nil
	}

	out := make([]model.CoinStats, 0, len(rows)-1)
	for i, row := range rows[1:] {
		s := model.CoinStats{Coin: row[0]}
		if s.N, err = strconv.Atoi(row[1]); err != nil {
			return nil, fmt.Errorf("stats row %d: %w", i+1, err)
		}
		fields := []*float64{&s.Quantity, &s.AvgPrice, &s.TotalCost, &s.Gain, &s.ROIPercent}
		for j, p := range fields {
			if *p, err = strconv.ParseFloat(row[2+j], 64); err != nil {
				return nil, fmt.Errorf("stats row %d: %w", i+1, err)
			}
		}
		out = append(out, s)
	}
	return out, nil
}
