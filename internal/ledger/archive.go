package ledger

import (
	"errors"
	"fmt"
	"os"

	"CryptoDCA/internal/atomicfile"
	"CryptoDCA/internal/model"

	"github.com/goccy/go-json"
)

// Archive keeps the raw confirmed orders as a JSON array.
type Archive struct {
	path string
}

func NewArchive(path string) *Archive {
	return &Archive{path: path}
}

// Append adds one order to the array.
func (a *Archive) Append(order model.OrderResult) error {
	orders, err := a.Orders()
	if err != nil {
		return err
	}
	orders = append(orders, order)

	data, err := json.MarshalIndent(orders, "", "  ")
	if err != nil {
		return fmt.Errorf("encode orders: %w", err)
	}
	if err := atomicfile.WriteFile(a.path, data, 0644); err != nil {
		return fmt.Errorf("save orders: %w", err)
	}
	return nil
}

// Orders reads the archived orders.
func (a *Archive) Orders() ([]model.OrderResult, error) {
	data, err := os.ReadFile(a.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("read orders: %w", err)
	}
	var orders []model.OrderResult
	if err := json.Unmarshal(data, &orders); err != nil {
		return nil, fmt.Errorf("decode orders: %w", err)
	}
	return orders, nil
}
