package notifier

import (
	"context"
	"time"

	"CryptoDCA/internal/model"
	"CryptoDCA/internal/retry"

	"github.com/sirupsen/logrus"
)

var log = logrus.WithField("component", "notifier")

// FundsWarning describes a balance that does not cover the next purchase.
type FundsWarning struct {
	Coin         string
	NextPurchase time.Time
	Pairing      string
	RequiredCost float64
	Available    float64
}

// Purchase describes a completed purchase.
type Purchase struct {
	Record       model.PurchaseRecord
	Cycle        model.CycleKind
	NextPurchase time.Time
	PurchasedOn  time.Time
	Pairing      string
	Stats        model.CoinStats
	Strategy     string
}

// Notifier delivers user-facing messages. Delivery failures are logged by the
// implementation and never returned.
type Notifier interface {
	Info(ctx context.Context, text string)
	WarningInsufficientFunds(ctx context.Context, w FundsWarning)
	ErrorRecoverable(ctx context.Context, coin string, policy retry.Policy, err error)
	Critical(ctx context.Context, err error, when string)
	SuccessPurchase(ctx context.Context, p Purchase)
}

// Noop discards every message. It is used when notifications are disabled.
type Noop struct{}

func (Noop) Info(context.Context, string)                                  {}
func (Noop) WarningInsufficientFunds(context.Context, FundsWarning)        {}
func (Noop) ErrorRecoverable(context.Context, string, retry.Policy, error) {}
func (Noop) Critical(context.Context, error, string)                       {}
func (Noop) SuccessPurchase(context.Context, Purchase)                     {}
