package scheduler

import (
	"context"
	"fmt"
	"time"

	"CryptoDCA/internal/exchange"
	"CryptoDCA/internal/ledger"
	"CryptoDCA/internal/model"
	"CryptoDCA/internal/notifier"
	"CryptoDCA/internal/orderbook"
	"CryptoDCA/internal/recorder"
	"CryptoDCA/internal/retry"
	"CryptoDCA/internal/schedule"

	"github.com/sirupsen/logrus"
)

var log = logrus.WithField("component", "scheduler")

// State is a step of the purchase cycle.
type State string

const (
	StateSelecting      State = "SELECTING"
	StateWaiting        State = "WAITING"
	StateExecuting      State = "EXECUTING"
	StateSucceeded      State = "SUCCEEDED"
	StateSkipped        State = "SKIPPED"
	StateRetryScheduled State = "RETRY_SCHEDULED"
	StateFatal          State = "FATAL"
)

// SleepFunc blocks for d or until ctx is done.
type SleepFunc func(ctx context.Context, d time.Duration) error

// Sleep is the real SleepFunc.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Deps are the collaborators of the purchase cycle.
type Deps struct {
	Coins     []model.Coin
	Book      *orderbook.Book
	Exchange  exchange.Client
	Ledger    *ledger.Ledger
	Archive   *ledger.Archive
	StatsPath string
	Notifier  notifier.Notifier
	Recorder  recorder.Recorder
	// Now and Sleep default to the wall clock.
	Now   func() time.Time
	Sleep SleepFunc
}

// Scheduler runs the purchase cycle: one coin at a time, strictly serialized.
type Scheduler struct {
	coins     []model.Coin
	states    map[string]*model.CoinState
	book      *orderbook.Book
	ex        exchange.Client
	ledger    *ledger.Ledger
	archive   *ledger.Archive
	statsPath string
	notify    notifier.Notifier
	rec       recorder.Recorder
	now       func() time.Time
	sleep     SleepFunc
}

// New creates a scheduler. Init must be called before Run or Step.
func New(d Deps) *Scheduler {
	s := &Scheduler{
		coins:     d.Coins,
		states:    make(map[string]*model.CoinState, len(d.Coins)),
		book:      d.Book,
		ex:        d.Exchange,
		ledger:    d.Ledger,
		archive:   d.Archive,
		statsPath: d.StatsPath,
		notify:    d.Notifier,
		rec:       d.Recorder,
		now:       d.Now,
		sleep:     d.Sleep,
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.sleep == nil {
		s.sleep = Sleep
	}
	if s.notify == nil {
		s.notify = notifier.Noop{}
	}
	if s.rec == nil {
		s.rec = recorder.NewNoopRecorder()
	}
	for _, c := range d.Coins {
		s.states[c.Name] = &model.CoinState{}
	}
	return s
}

// Init computes every coin's first due time. persisted is the order book left by a
// previous run, used to keep bi-weekly coins in their week.
func (s *Scheduler) Init(persisted []model.OrderBookEntry, testMode bool) error {
	now := s.now()
	for _, c := range s.coins {
		due, err := schedule.Initial(c, now, testMode, persisted)
		if err != nil {
			return err
		}
		s.states[c.Name].Schedule = due
		if err := s.book.SetDue(c.Name, due); err != nil {
			return err
		}
		log.WithFields(logrus.Fields{
			"coin":     c.Name,
			"cycle":    c.Cycle,
			"due":      due.Format(orderbook.TimeLayout),
			"strategy": c.Strategy.String(),
		}).Info("coin scheduled")
	}
	s.rebuildStats()
	return nil
}

// rebuildStats rewrites the statistics file from the ledger at startup so a file left
// by an earlier version never disagrees with the current formulas.
func (s *Scheduler) rebuildStats() {
	if s.statsPath == "" {
		return
	}
	records, err := s.ledger.Records()
	if err != nil {
		log.WithError(err).Warn("read ledger for stats, keeping the previous file")
		return
	}
	if len(records) == 0 {
		return
	}
	if err := ledger.SaveStats(s.statsPath, ledger.ComputeAll(records)); err != nil {
		log.WithError(err).Warn("rebuild stats")
	}
}

// State returns a copy of a coin's runtime state.
func (s *Scheduler) State(coin string) (model.CoinState, bool) {
	st, ok := s.states[coin]
	if !ok {
		return model.CoinState{}, false
	}
	return *st, true
}

// Run repeats the purchase cycle until a fatal error or until ctx is cancelled.
// Cancellation is a clean stop and returns nil.
func (s *Scheduler) Run(ctx context.Context) error {
	for {
		state, err := s.Step(ctx)
		if ctx.Err() != nil {
			log.Info("purchase cycle stopped")
			return nil
		}
		if state == StateFatal {
			return err
		}
	}
}

// Step runs one iteration: select the next coin, wait until it is due, attempt the
// purchase and reschedule. It returns the terminal state of the iteration.
func (s *Scheduler) Step(ctx context.Context) (State, error) {
	coin, due, err := s.selectNext(ctx)
	if err != nil {
		return s.fatal(ctx, err, "saving the order book", "")
	}

	entry := log.WithField("coin", coin.Name)
	remaining := due.Sub(s.now())
	if remaining < 0 {
		remaining = 0
	}
	entry.WithFields(logrus.Fields{
		"state":     StateWaiting,
		"due":       due.Format(orderbook.TimeLayout),
		"remaining": remaining.Round(time.Second),
	}).Infof("next purchase: %s on %s", coin.Pair(), due.Format("2006-01-02 15:04"))
	if err := s.sleep(ctx, remaining); err != nil {
		return StateWaiting, err
	}

	entry.WithField("state", StateExecuting).Info("executing purchase")
	return s.execute(ctx, coin)
}

func (s *Scheduler) selectNext(ctx context.Context) (model.Coin, time.Time, error) {
	coin, _, err := s.book.Recompute()
	if err != nil {
		return model.Coin{}, time.Time{}, err
	}
	due, _ := s.book.Due(coin.Name)
	st := s.states[coin.Name]
	log.WithFields(logrus.Fields{"coin": coin.Name, "state": StateSelecting}).Debug("coin selected")

	// During a funds retry the balance is known to be short; skip the extra call.
	if st.LastErrorClass != model.ClassFunds {
		s.checkFunds(ctx, coin, due)
	}
	return coin, due, nil
}

// checkFunds warns when the free quote balance cannot cover the coin's largest spend.
// Failures only log.
func (s *Scheduler) checkFunds(ctx context.Context, coin model.Coin, due time.Time) {
	balances, err := s.ex.FetchBalance(ctx)
	if err != nil {
		log.WithError(err).WithField("coin", coin.Name).Warn("balance check failed")
		return
	}
	required := coin.Strategy.MaxSpend()
	free := balances[coin.Pairing].Free
	if free >= required {
		return
	}
	log.WithFields(logrus.Fields{
		"coin":      coin.Name,
		"required":  required,
		"available": free,
	}).Warnf("insufficient funds for the next %s purchase, top up your account", coin.Name)
	s.notify.WarningInsufficientFunds(ctx, notifier.FundsWarning{
		Coin:         coin.Name,
		NextPurchase: due,
		Pairing:      coin.Pairing,
		RequiredCost: required,
		Available:    free,
	})
}

func (s *Scheduler) execute(ctx context.Context, coin model.Coin) (State, error) {
	var price float64
	if coin.Strategy.NeedsPrice() {
		t, err := s.ex.FetchTicker(ctx, coin.Symbol())
		if err != nil {
			return s.fail(ctx, coin, err)
		}
		price = t.Last
	}

	spend := coin.Strategy.Spend(price)
	if spend <= 0 {
		return s.skip(ctx, coin, price)
	}

	order, err := exchange.Buy(ctx, s.ex, coin, spend, price)
	if err != nil {
		return s.fail(ctx, coin, err)
	}
	return s.succeed(ctx, coin, order)
}

// advance consumes the current cycle: the nominal schedule moves one cycle forward.
func (s *Scheduler) advance(coin model.Coin) (time.Time, error) {
	st := s.states[coin.Name]
	st.Schedule = schedule.Advance(coin, st.Schedule)
	if err := s.book.SetDue(coin.Name, st.Schedule); err != nil {
		return time.Time{}, err
	}
	return st.Schedule, nil
}

func (s *Scheduler) skip(ctx context.Context, coin model.Coin, price float64) (State, error) {
	s.states[coin.Name].ClearError()
	next, err := s.advance(coin)
	if err != nil {
		return s.fatal(ctx, err, "rescheduling "+coin.Name, coin.Name)
	}
	log.WithFields(logrus.Fields{
		"coin":  coin.Name,
		"state": StateSkipped,
		"price": price,
		"next":  next.Format(orderbook.TimeLayout),
	}).Infof("%s: no purchase at this price, cycle skipped", coin.Strategy)
	s.recordCycle(&recorder.CycleEvent{Coin: coin.Name, Outcome: recorder.OutcomeSkipped, NextDue: next})
	return StateSkipped, nil
}

func (s *Scheduler) succeed(ctx context.Context, coin model.Coin, order model.OrderResult) (State, error) {
	s.states[coin.Name].ClearError()
	next, err := s.advance(coin)
	if err != nil {
		return s.fatal(ctx, err, "rescheduling "+coin.Name, coin.Name)
	}

	rec := model.NewPurchaseRecord(coin.Name, s.now(), order)
	entry := log.WithFields(logrus.Fields{"coin": coin.Name, "state": StateSucceeded, "order": order.ID})
	entry.Infof("bought %v %s at price %v %s (cost = %v %s)",
		rec.Filled, coin.Name, rec.Price, coin.Pairing, rec.Cost, coin.Pairing)

	if s.archive != nil {
		if err := s.archive.Append(order); err != nil {
			entry.WithError(err).Error("archive order")
		}
	}
	if err := s.ledger.Append(rec); err != nil {
		return s.fatal(ctx, err, fmt.Sprintf("recording the %s purchase", coin.Name), coin.Name)
	}
	if err := s.rec.RecordPurchase(&rec); err != nil {
		entry.WithError(err).Error("record purchase")
	}

	stats := s.refreshStats(coin)
	s.recordCycle(&recorder.CycleEvent{Coin: coin.Name, Outcome: recorder.OutcomeSucceeded, NextDue: next})

	s.notify.SuccessPurchase(ctx, notifier.Purchase{
		Record:       rec,
		Cycle:        coin.Cycle,
		NextPurchase: next,
		PurchasedOn:  rec.LocalTime,
		Pairing:      coin.Pairing,
		Stats:        stats,
		Strategy:     coin.Strategy.String(),
	})
	return StateSucceeded, nil
}

// refreshStats recomputes every coin's statistics from the full ledger and rewrites
// the statistics file. It returns the purchased coin's row.
func (s *Scheduler) refreshStats(coin model.Coin) model.CoinStats {
	entry := log.WithField("coin", coin.Name)
	records, err := s.ledger.Records()
	if err != nil {
		entry.WithError(err).Error("read ledger for stats")
		return model.CoinStats{Coin: coin.Name}
	}
	all := ledger.ComputeAll(records)
	if s.statsPath != "" {
		if err := ledger.SaveStats(s.statsPath, all); err != nil {
			entry.WithError(err).Error("save stats")
		}
	}

	var stats model.CoinStats
	for _, st := range all {
		if st.Coin == coin.Name {
			stats = st
			if err := s.rec.RecordStats(&st); err != nil {
				entry.WithError(err).Error("record stats")
			}
		}
	}
	return stats
}

// fail routes a failed attempt. Recoverable errors are retried after the policy's
// backoff until its attempts run out, then the cycle is abandoned. Anything else is
// fatal.
func (s *Scheduler) fail(ctx context.Context, coin model.Coin, err error) (State, error) {
	if ctx.Err() != nil {
		return StateExecuting, ctx.Err()
	}

	class := exchange.Classify(err)
	policy, ok := retry.PolicyFor(class, coin.Cycle)
	if !ok {
		return s.fatal(ctx, err, fmt.Sprintf("attempting to purchase %s", coin.Name), coin.Name)
	}

	st := s.states[coin.Name]
	st.LastError = err
	st.LastErrorClass = class
	st.ErrorAttempt++
	attempt := st.ErrorAttempt

	entry := log.WithError(err).WithFields(logrus.Fields{
		"coin":    coin.Name,
		"state":   StateRetryScheduled,
		"class":   class,
		"attempt": attempt,
		"max":     policy.MaxAttempts,
	})

	evt := &recorder.CycleEvent{Coin: coin.Name, ErrorClass: class.String(), Attempt: attempt, Err: err.Error()}
	if attempt <= policy.MaxAttempts {
		due := s.now().Add(policy.Backoff)
		if err := s.book.SetDue(coin.Name, due); err != nil {
			return s.fatal(ctx, err, "rescheduling "+coin.Name, coin.Name)
		}
		evt.Outcome, evt.NextDue = recorder.OutcomeRetryScheduled, due
		entry.Warnf("next attempt in %s", policy.Backoff)
	} else {
		st.ErrorAttempt = 0
		next, err := s.advance(coin)
		if err != nil {
			return s.fatal(ctx, err, "rescheduling "+coin.Name, coin.Name)
		}
		evt.Outcome, evt.NextDue = recorder.OutcomeAbandoned, next
		entry.Errorf("too many attempts, skipping this cycle until %s", next.Format(orderbook.TimeLayout))
	}
	s.recordCycle(evt)

	if attempt == 1 {
		s.notify.ErrorRecoverable(ctx, coin.Name, policy, err)
	}
	return StateRetryScheduled, nil
}

func (s *Scheduler) fatal(ctx context.Context, err error, when, coin string) (State, error) {
	log.WithError(err).WithFields(logrus.Fields{"coin": coin, "state": StateFatal}).Error("unrecoverable error while " + when)
	if coin != "" {
		s.recordCycle(&recorder.CycleEvent{Coin: coin, Outcome: recorder.OutcomeFatal, ErrorClass: model.ClassFatal.String(), Err: err.Error()})
	}
	s.notify.Critical(ctx, err, when)
	return StateFatal, fmt.Errorf("%s: %w", when, err)
}

func (s *Scheduler) recordCycle(evt *recorder.CycleEvent) {
	if err := s.rec.RecordCycle(evt); err != nil {
		log.WithError(err).WithField("coin", evt.Coin).Error("record cycle event")
	}
}
