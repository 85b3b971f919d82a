package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sort"
	"syscall"
	"time"
	_ "time/tzdata"

	"CryptoDCA/internal/config"
	"CryptoDCA/internal/exchange"
	"CryptoDCA/internal/ledger"
	"CryptoDCA/internal/logging"
	"CryptoDCA/internal/model"
	"CryptoDCA/internal/notifier"
	"CryptoDCA/internal/orderbook"
	"CryptoDCA/internal/recorder"
	"CryptoDCA/internal/scheduler"

	"github.com/sirupsen/logrus"
)

var log = logrus.WithField("component", "main")

func main() {
	// Load config
	cfgPath := "configs/config.yaml"
	if v := os.Getenv("CONFIG_PATH"); v != "" {
		cfgPath = v
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	if err := logging.Init(logging.Config{
		Level:      cfg.Logging.Level,
		File:       cfg.Logging.File,
		MaxSizeMB:  cfg.Logging.MaxSizeMB,
		MaxBackups: cfg.Logging.MaxBackups,
		MaxAgeDays: cfg.Logging.MaxAgeDays,
		Compress:   cfg.Logging.Compress,
	}); err != nil {
		log.Fatalf("init logging: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("config validation: %v", err)
	}

	// Context for graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		log.Fatal(err)
	}
	log.Info("DCA bot stopped")
}

func run(ctx context.Context, cfg *config.Config) error {
	loc, err := cfg.Location()
	if err != nil {
		return err
	}
	coins, err := cfg.CoinList()
	if err != nil {
		return err
	}
	now := func() time.Time { return time.Now().In(loc) }

	ex, err := newExchange(cfg, coins)
	if err != nil {
		return err
	}
	label := ex.Name()
	if cfg.Test {
		label += " (test mode)"
	}
	log.WithFields(logrus.Fields{"exchange": label, "coins": len(coins)}).Info("DCA bot starting")

	// Init notifier
	var notify notifier.Notifier = notifier.Noop{}
	var tn *notifier.TelegramNotifier
	if cfg.SendNotifications {
		tn = notifier.NewTelegramNotifier(cfg.Telegram.BotToken, cfg.Telegram.ChatID, label, cfg.Proxy)
		notify = tn
	}

	reportBalances(ctx, ex)
	if err := exchange.CheckCostLimits(ctx, ex, coins); err != nil {
		notify.Critical(ctx, err, "checking the market cost limits")
		return err
	}

	// Init stores
	l, err := ledger.Open(cfg.LedgerPath())
	if err != nil {
		return fmt.Errorf("open ledger: %w", err)
	}
	persisted, err := orderbook.Load(cfg.OrderBookPath(), loc)
	if err != nil {
		log.WithError(err).Warn("previous order book unreadable, scheduling from scratch")
		persisted = nil
	}

	// Init recorder
	var rec recorder.Recorder
	if cfg.Database.SQLitePath != "" {
		sr, err := recorder.NewSQLiteRecorder(cfg.Database.SQLitePath)
		if err != nil {
			log.WithError(err).Warn("init sqlite recorder failed, using noop")
			rec = recorder.NewNoopRecorder()
		} else {
			rec = sr
		}
	} else {
		rec = recorder.NewNoopRecorder()
	}
	defer rec.Close()

	sched := scheduler.New(scheduler.Deps{
		Coins:     coins,
		Book:      orderbook.New(cfg.OrderBookPath(), coins),
		Exchange:  ex,
		Ledger:    l,
		Archive:   ledger.NewArchive(cfg.ArchivePath()),
		StatsPath: cfg.StatsPath(),
		Notifier:  notify,
		Recorder:  rec,
		Now:       now,
	})
	if err := sched.Init(persisted, cfg.Test); err != nil {
		notify.Critical(ctx, err, "scheduling the coins")
		return err
	}

	// Start Telegram polling
	if tn != nil {
		cmds := notifier.Commands{
			OrderBookPath: cfg.OrderBookPath(),
			StatsPath:     cfg.StatsPath(),
			Location:      loc,
			Now:           now,
		}
		go tn.StartPolling(ctx, cmds.Handle)
		log.Info("Telegram polling started")
	}

	notify.Info(ctx, "DCA bot has just been started")
	return sched.Run(ctx)
}

func newExchange(cfg *config.Config, coins []model.Coin) (exchange.Client, error) {
	switch cfg.Exchange.Name {
	case config.ExchangePaper:
		balances := make(map[string]float64)
		markets := make([]exchange.PaperMarket, 0, len(coins))
		for _, c := range coins {
			balances[c.Pairing] = cfg.Paper.QuoteBalance
			markets = append(markets, exchange.PaperMarket{
				Base:  c.Name,
				Quote: c.Pairing,
				Price: cfg.Paper.Prices[c.Symbol()],
			})
		}
		return exchange.NewPaperExchange(balances, markets, cfg.Paper.FeeRate), nil
	case config.ExchangeBinance:
		return exchange.NewBinanceClient(exchange.BinanceConfig{
			BaseURL:           cfg.Exchange.BaseURL,
			APIKey:            cfg.Exchange.APIKey,
			APISecret:         cfg.Exchange.APISecret,
			RecvWindow:        time.Duration(cfg.Exchange.RecvWindowMs) * time.Millisecond,
			RequestsPerSecond: cfg.Exchange.RequestsPerSecond,
		}), nil
	default:
		return nil, fmt.Errorf("unsupported exchange %q", cfg.Exchange.Name)
	}
}

// reportBalances logs every non-zero balance. Failures only warn.
func reportBalances(ctx context.Context, ex exchange.Client) {
	balances, err := ex.FetchBalance(ctx)
	if err != nil {
		log.WithError(err).Warn("fetch balance failed")
		return
	}
	currencies := make([]string, 0, len(balances))
	for cur, b := range balances {
		if b.Total > 0 {
			currencies = append(currencies, cur)
		}
	}
	sort.Strings(currencies)
	for _, cur := range currencies {
		b := balances[cur]
		log.WithFields(logrus.Fields{"currency": cur, "free": b.Free, "total": b.Total}).Info("balance")
	}
}
