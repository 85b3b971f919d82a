package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"CryptoDCA/internal/model"
	"CryptoDCA/internal/schedule"
	"CryptoDCA/internal/strategy"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	ExchangeBinance = "binance"
	ExchangePaper   = "paper"

	binanceURL        = "https://api.binance.com"
	binanceTestnetURL = "https://testnet.binance.vision"
)

// Config holds all application configuration.
type Config struct {
	Exchange struct {
		Name              string  `yaml:"name"`
		BaseURL           string  `yaml:"base_url"`
		APIKey            string  `yaml:"api_key"`
		APISecret         string  `yaml:"api_secret"`
		RecvWindowMs      int     `yaml:"recv_window_ms"`
		RequestsPerSecond float64 `yaml:"requests_per_second"`
	} `yaml:"exchange"`
	Test              bool   `yaml:"test"`
	SendNotifications bool   `yaml:"send_notifications"`
	Timezone          string `yaml:"timezone"`
	DataDir           string `yaml:"data_dir"`
	Telegram          struct {
		BotToken string `yaml:"bot_token"`
		ChatID   string `yaml:"chat_id"`
	} `yaml:"telegram"`
	Database struct {
		SQLitePath string `yaml:"sqlite_path"`
	} `yaml:"database"`
	Logging struct {
		Level      string `yaml:"level"`
		File       string `yaml:"file"`
		MaxSizeMB  int    `yaml:"max_size_mb"`
		MaxBackups int    `yaml:"max_backups"`
		MaxAgeDays int    `yaml:"max_age_days"`
		Compress   bool   `yaml:"compress"`
	} `yaml:"logging"`
	Paper struct {
		QuoteBalance float64            `yaml:"quote_balance"`
		FeeRate      float64            `yaml:"fee_rate"`
		Prices       map[string]float64 `yaml:"prices"`
	} `yaml:"paper"`
	Proxy string       `yaml:"proxy"`
	Coins []CoinConfig `yaml:"coins"`
}

// CoinConfig is one entry of the ordered coin list.
type CoinConfig struct {
	Symbol      string    `yaml:"symbol"`
	Pairing     string    `yaml:"pairing"`
	Cycle       string    `yaml:"cycle"`
	AtTime      ClockTime `yaml:"at_time"`
	OnWeekday   *int      `yaml:"on_weekday"`
	OnDay       int       `yaml:"on_day"`
	Amount      float64   `yaml:"amount"`
	Strategy    string    `yaml:"strategy"`
	MaxPrice    float64   `yaml:"max_price"`
	AmountRange []float64 `yaml:"amount_range"`
	PriceRange  []float64 `yaml:"price_range"`
	Mapping     string    `yaml:"mapping"`
}

// ClockTime is a time of day written either as an hour (9) or as HH:MM ("09:30").
type ClockTime string

func (c *ClockTime) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind != yaml.ScalarNode {
		return fmt.Errorf("line %d: at_time must be a scalar", value.Line)
	}
	*c = ClockTime(value.Value)
	return nil
}

// Parse converts the value to an anchor. Empty means midnight.
func (c ClockTime) Parse() (model.AtTime, error) {
	s := strings.TrimSpace(string(c))
	if s == "" {
		return model.AtTime{}, nil
	}
	hour, minute := s, "0"
	if h, m, ok := strings.Cut(s, ":"); ok {
		hour, minute = h, m
	}
	h, err := strconv.Atoi(hour)
	if err != nil || h < 0 || h > 23 {
		return model.AtTime{}, fmt.Errorf("%w: invalid at_time %q", schedule.ErrConfiguration, s)
	}
	m, err := strconv.Atoi(minute)
	if err != nil || m < 0 || m > 59 {
		return model.AtTime{}, fmt.Errorf("%w: invalid at_time %q", schedule.ErrConfiguration, s)
	}
	return model.AtTime{Hour: h, Minute: m}, nil
}

// Load reads config from a YAML file, then an optional .env file next to it, then
// applies environment variable overrides and defaults.
func Load(path string) (*Config, error) {
	cfg := &Config{}

	data, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("read config: %w", err)
	}
	if len(data) > 0 {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	// Credentials usually live in .env; variables already set win.
	envFile := filepath.Join(filepath.Dir(path), ".env")
	if err := godotenv.Load(envFile); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("load %s: %w", envFile, err)
	}

	// Environment variable overrides
	if v := os.Getenv("EXCHANGE_API_KEY"); v != "" {
		cfg.Exchange.APIKey = v
	}
	if v := os.Getenv("EXCHANGE_API_SECRET"); v != "" {
		cfg.Exchange.APISecret = v
	}
	if v := os.Getenv("TELEGRAM_BOT_TOKEN"); v != "" {
		cfg.Telegram.BotToken = v
	}
	if v := os.Getenv("TELEGRAM_CHAT_ID"); v != "" {
		cfg.Telegram.ChatID = v
	}
	if v := os.Getenv("DCA_TEST_MODE"); v != "" {
		test, err := strconv.ParseBool(v)
		if err != nil {
			return nil, fmt.Errorf("DCA_TEST_MODE: %w", err)
		}
		cfg.Test = test
	}
	if v := os.Getenv("DATA_DIR"); v != "" {
		cfg.DataDir = v
	}
	if v := os.Getenv("SQLITE_PATH"); v != "" {
		cfg.Database.SQLitePath = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("HTTPS_PROXY"); v != "" {
		cfg.Proxy = v
	}

	cfg.applyDefaults()
	return cfg, nil
}

func (c *Config) applyDefaults() {
	c.Exchange.Name = strings.ToLower(strings.TrimSpace(c.Exchange.Name))
	if c.Exchange.Name == "" {
		c.Exchange.Name = ExchangeBinance
	}
	if c.Exchange.BaseURL == "" && c.Exchange.Name == ExchangeBinance {
		c.Exchange.BaseURL = binanceURL
		if c.Test {
			c.Exchange.BaseURL = binanceTestnetURL
		}
	}
	if c.Exchange.RecvWindowMs == 0 {
		c.Exchange.RecvWindowMs = 5000
	}
	if c.Exchange.RequestsPerSecond == 0 {
		c.Exchange.RequestsPerSecond = 10
	}
	if c.Timezone == "" {
		c.Timezone = "Local"
	}
	if c.DataDir == "" {
		c.DataDir = "trades"
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.File == "" {
		c.Logging.File = filepath.Join(c.DataDir, "log.txt")
	}
	if c.Logging.MaxSizeMB == 0 {
		c.Logging.MaxSizeMB = 10
	}
	if c.Logging.MaxBackups == 0 {
		c.Logging.MaxBackups = 5
	}
	if c.Logging.MaxAgeDays == 0 {
		c.Logging.MaxAgeDays = 90
	}
	if c.Paper.QuoteBalance == 0 {
		c.Paper.QuoteBalance = 10000
	}
	if c.Paper.FeeRate == 0 {
		c.Paper.FeeRate = 0.001
	}
	for i := range c.Coins {
		cc := &c.Coins[i]
		cc.Symbol = strings.ToUpper(strings.TrimSpace(cc.Symbol))
		cc.Pairing = strings.ToUpper(strings.TrimSpace(cc.Pairing))
		if cc.Strategy == "" {
			cc.Strategy = "classic"
		}
		if cc.Mapping == "" {
			cc.Mapping = string(strategy.Linear)
		}
	}
}

// Validate checks that all required fields are set and every coin resolves.
func (c *Config) Validate() error {
	switch c.Exchange.Name {
	case ExchangeBinance:
		if c.Exchange.APIKey == "" || c.Exchange.APISecret == "" {
			return fmt.Errorf("exchange.api_key and exchange.api_secret are required")
		}
	case ExchangePaper:
		if !c.Test {
			return fmt.Errorf("the paper exchange is only available in test mode")
		}
	default:
		return fmt.Errorf("unsupported exchange %q", c.Exchange.Name)
	}
	if c.SendNotifications {
		if c.Telegram.BotToken == "" {
			return fmt.Errorf("telegram.bot_token is required when send_notifications is on")
		}
		if c.Telegram.ChatID == "" {
			return fmt.Errorf("telegram.chat_id is required when send_notifications is on")
		}
	}
	if _, err := c.Location(); err != nil {
		return err
	}
	if _, err := c.CoinList(); err != nil {
		return err
	}
	return nil
}

// Location resolves the configured timezone.
func (c *Config) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("timezone %q: %w", c.Timezone, err)
	}
	return loc, nil
}

// CoinList converts the configured coins, in order, into validated coins with their
// strategy resolved.
func (c *Config) CoinList() ([]model.Coin, error) {
	if len(c.Coins) == 0 {
		return nil, fmt.Errorf("%w: no coins configured", schedule.ErrConfiguration)
	}
	seen := make(map[string]bool, len(c.Coins))
	coins := make([]model.Coin, 0, len(c.Coins))
	for i, cc := range c.Coins {
		coin, err := cc.coin(c.Test)
		if err != nil {
			return nil, fmt.Errorf("coins[%d]: %w", i, err)
		}
		if seen[coin.Name] {
			return nil, fmt.Errorf("%w: coin %s configured twice", schedule.ErrConfiguration, coin.Name)
		}
		seen[coin.Name] = true
		coins = append(coins, coin)
	}
	return coins, nil
}

func (cc CoinConfig) coin(testMode bool) (model.Coin, error) {
	if cc.Symbol == "" || cc.Pairing == "" {
		return model.Coin{}, fmt.Errorf("%w: symbol and pairing are required", schedule.ErrConfiguration)
	}
	cycle, ok := model.ParseCycleKind(cc.Cycle)
	if !ok {
		return model.Coin{}, fmt.Errorf("%w: %s: unrecognized cycle %q", schedule.ErrConfiguration, cc.Symbol, cc.Cycle)
	}
	at, err := cc.AtTime.Parse()
	if err != nil {
		return model.Coin{}, fmt.Errorf("%s: %w", cc.Symbol, err)
	}
	strat, err := cc.strategy()
	if err != nil {
		return model.Coin{}, fmt.Errorf("%w: %s: %v", schedule.ErrConfiguration, cc.Symbol, err)
	}
	var weekday int
	if cycle == model.CycleWeekly || cycle == model.CycleBiWeekly {
		if cc.OnWeekday == nil {
			return model.Coin{}, fmt.Errorf("%w: %s: on_weekday is required for %s cycles",
				schedule.ErrConfiguration, cc.Symbol, cycle)
		}
		weekday = *cc.OnWeekday
	}

	coin := model.Coin{
		Name:     cc.Symbol,
		Pairing:  cc.Pairing,
		Cycle:    cycle,
		At:       at,
		Weekday:  weekday,
		Day:      cc.OnDay,
		Strategy: strat,
	}
	if err := schedule.Validate(coin, testMode); err != nil {
		return model.Coin{}, err
	}
	return coin, nil
}

func (cc CoinConfig) strategy() (strategy.Strategy, error) {
	switch strings.ToLower(strings.TrimSpace(cc.Strategy)) {
	case "classic":
		if cc.Amount <= 0 {
			return nil, fmt.Errorf("amount must be positive")
		}
		return strategy.Classic{Amount: cc.Amount}, nil
	case "buy_below", "buy-below":
		if cc.Amount <= 0 {
			return nil, fmt.Errorf("amount must be positive")
		}
		if cc.MaxPrice <= 0 {
			return nil, fmt.Errorf("max_price must be positive")
		}
		return strategy.BuyBelow{Amount: cc.Amount, MaxPrice: cc.MaxPrice}, nil
	case "variable", "variable_amount":
		if len(cc.AmountRange) != 2 || len(cc.PriceRange) != 2 {
			return nil, fmt.Errorf("amount_range and price_range need exactly two values")
		}
		kind, err := strategy.ParseMappingKind(cc.Mapping)
		if err != nil {
			return nil, err
		}
		m, err := strategy.NewPriceMapper(
			[2]float64{cc.AmountRange[0], cc.AmountRange[1]},
			[2]float64{cc.PriceRange[0], cc.PriceRange[1]},
			kind,
		)
		if err != nil {
			return nil, err
		}
		return strategy.VariableAmount{Mapper: m}, nil
	default:
		return nil, fmt.Errorf("unrecognized strategy %q", cc.Strategy)
	}
}

// Paths of the files kept in the data directory.
func (c *Config) OrderBookPath() string { return filepath.Join(c.DataDir, "orderbook.csv") }
func (c *Config) LedgerPath() string    { return filepath.Join(c.DataDir, "orders.csv") }
func (c *Config) StatsPath() string     { return filepath.Join(c.DataDir, "stats.csv") }
func (c *Config) ArchivePath() string   { return filepath.Join(c.DataDir, "orders.json") }
