package orderbook

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"CryptoDCA/internal/atomicfile"
	"CryptoDCA/internal/model"
)

// TimeLayout is the format of the next-purchase column.
const TimeLayout = "2006-01-02 15:04:05"

var header = []string{"Coin", "Purchase Time", "Cycle", "Strategy"}

// Load reads the order book written by a previous run. Times are interpreted in loc.
// A missing file yields no rows.
func Load(path string, loc *time.Location) ([]model.OrderBookEntry, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("open order book: %w", err)
	}
	defer f.Close()
	return Decode(f, loc)
}

// Decode parses order-book CSV rows.
func Decode(r io.Reader, loc *time.Location) ([]model.OrderBookEntry, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = len(header)
	rows, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read order book: %w", err)
	}
	if len(rows) == 0 {
		return nil, nil
	}

	entries := make([]model.OrderBookEntry, 0, len(rows)-1)
	for i, row := range rows[1:] {
		due, err := time.ParseInLocation(TimeLayout, row[1], loc)
		if err != nil {
			return nil, fmt.Errorf("order book row %d: %w", i+1, err)
		}
		entries = append(entries, model.OrderBookEntry{
			Coin:     row[0],
			Due:      due,
			Cycle:    model.CycleKind(row[2]),
			Strategy: row[3],
		})
	}
	return entries, nil
}

// Encode renders rows as CSV in the given order.
func Encode(entries []model.OrderBookEntry) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(header); err != nil {
		return nil, err
	}
	for _, e := range entries {
		if err := w.Write([]string{e.Coin, e.Due.Format(TimeLayout), string(e.Cycle), e.Strategy}); err != nil {
			return nil, err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Save rewrites the order-book file.
func Save(path string, entries []model.OrderBookEntry) error {
	data, err := Encode(entries)
	if err != nil {
		return fmt.Errorf("encode order book: %w", err)
	}
	if err := atomicfile.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("save order book: %w", err)
	}
	return nil
}
