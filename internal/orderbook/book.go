package orderbook

import (
	"fmt"
	"sort"
	"time"

	"CryptoDCA/internal/model"

	"github.com/sirupsen/logrus"
)

var log = logrus.WithField("component", "orderbook")

// Book maps every configured coin to its effective due time. During a retry backoff
// the due time is the retry time, not the coin's nominal schedule.
type Book struct {
	coins []model.Coin // configuration order, used for tie-breaks
	due   map[string]time.Time
	path  string
}

// New creates an empty book over the configured coins. Every coin must get a due
// time through SetDue before the first Recompute.
func New(path string, coins []model.Coin) *Book {
	return &Book{
		coins: coins,
		due:   make(map[string]time.Time, len(coins)),
		path:  path,
	}
}

// Path is the file the book is persisted to.
func (b *Book) Path() string { return b.path }

// SetDue overwrites the due time of one coin.
func (b *Book) SetDue(coin string, due time.Time) error {
	if _, ok := b.coin(coin); !ok {
		return fmt.Errorf("set due: unknown coin %q", coin)
	}
	b.due[coin] = due
	return nil
}

// Due returns the effective due time of a coin.
func (b *Book) Due(coin string) (time.Time, bool) {
	t, ok := b.due[coin]
	return t, ok
}

// Recompute selects the coin with the earliest due time and persists the book sorted
// by due time. Ties go to the coin listed first in the configuration. A failed write
// is returned to the caller: the on-disk book must never fall behind the in-memory one.
func (b *Book) Recompute() (model.Coin, []model.OrderBookEntry, error) {
	if len(b.coins) == 0 {
		return model.Coin{}, nil, fmt.Errorf("recompute: no coins configured")
	}

	var next model.Coin
	var nextDue time.Time
	entries := make([]model.OrderBookEntry, 0, len(b.coins))
	for i, c := range b.coins {
		due, ok := b.due[c.Name]
		if !ok {
			return model.Coin{}, nil, fmt.Errorf("recompute: coin %s has no due time", c.Name)
		}
		if i == 0 || due.Before(nextDue) {
			next, nextDue = c, due
		}
		entries = append(entries, model.OrderBookEntry{
			Coin:     c.Name,
			Due:      due,
			Cycle:    c.Cycle,
			Strategy: c.Strategy.String(),
		})
	}
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].Due.Before(entries[j].Due)
	})

	if err := Save(b.path, entries); err != nil {
		return model.Coin{}, nil, err
	}
	log.WithFields(logrus.Fields{
		"next": next.Name,
		"due":  nextDue.Format(TimeLayout),
	}).Debug("order book recomputed")
	return next, entries, nil
}

func (b *Book) coin(name string) (model.Coin, bool) {
	for _, c := range b.coins {
		if c.Name == name {
			return c, true
		}
	}
	return model.Coin{}, false
}
