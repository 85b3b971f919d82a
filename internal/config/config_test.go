package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"CryptoDCA/internal/model"
	"CryptoDCA/internal/schedule"
	"CryptoDCA/internal/strategy"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var overrideVars = []string{
	"EXCHANGE_API_KEY", "EXCHANGE_API_SECRET", "TELEGRAM_BOT_TOKEN", "TELEGRAM_CHAT_ID",
	"DCA_TEST_MODE", "DATA_DIR", "SQLITE_PATH", "LOG_LEVEL", "HTTPS_PROXY",
}

// clearEnv unsets the override variables for the duration of the test.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range overrideVars {
		t.Setenv(k, "")
		os.Unsetenv(k)
	}
}

func intPtr(v int) *int { return &v }

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0644))
	return path
}

const sample = `
exchange:
  name: Binance
  api_key: key
  api_secret: secret
send_notifications: true
timezone: UTC
telegram:
  bot_token: token
  chat_id: "42"
coins:
  - symbol: btc
    pairing: usdt
    cycle: Weekly
    on_weekday: 2
    at_time: "09:30"
    amount: 50
  - symbol: ETH
    pairing: USDT
    cycle: monthly
    on_day: 15
    at_time: 18
    strategy: variable
    amount_range: [20, 100]
    price_range: [1500, 4000]
    mapping: exponential
  - symbol: SOL
    pairing: USDT
    cycle: daily
    strategy: buy_below
    amount: 10
    max_price: 120
`

func TestLoadAndCoinList(t *testing.T) {
	clearEnv(t)
	cfg, err := Load(writeConfig(t, sample))
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, ExchangeBinance, cfg.Exchange.Name)
	assert.Equal(t, binanceURL, cfg.Exchange.BaseURL)
	assert.Equal(t, 5000, cfg.Exchange.RecvWindowMs)
	assert.Equal(t, "trades", cfg.DataDir)
	assert.Equal(t, filepath.Join("trades", "log.txt"), cfg.Logging.File)
	assert.Equal(t, filepath.Join("trades", "orderbook.csv"), cfg.OrderBookPath())
	assert.Equal(t, filepath.Join("trades", "orders.csv"), cfg.LedgerPath())
	assert.Equal(t, filepath.Join("trades", "stats.csv"), cfg.StatsPath())
	assert.Equal(t, filepath.Join("trades", "orders.json"), cfg.ArchivePath())

	coins, err := cfg.CoinList()
	require.NoError(t, err)
	require.Len(t, coins, 3)

	btc := coins[0]
	assert.Equal(t, "BTC", btc.Name)
	assert.Equal(t, "USDT", btc.Pairing)
	assert.Equal(t, model.CycleWeekly, btc.Cycle)
	assert.Equal(t, model.AtTime{Hour: 9, Minute: 30}, btc.At)
	assert.Equal(t, 2, btc.Weekday)
	assert.Equal(t, strategy.Classic{Amount: 50}, btc.Strategy)

	eth := coins[1]
	assert.Equal(t, model.AtTime{Hour: 18}, eth.At)
	assert.Equal(t, 15, eth.Day)
	v, ok := eth.Strategy.(strategy.VariableAmount)
	require.True(t, ok)
	assert.Equal(t, strategy.Exponential, v.Mapper.Kind)
	assert.Equal(t, 100.0, eth.Strategy.MaxSpend())

	sol := coins[2]
	assert.Equal(t, model.AtTime{}, sol.At)
	assert.Equal(t, strategy.BuyBelow{Amount: 10, MaxPrice: 120}, sol.Strategy)
}

func TestLoadLoggingCompress(t *testing.T) {
	clearEnv(t)
	cfg, err := Load(writeConfig(t, sample+"logging:\n  compress: true\n  max_backups: 2\n"))
	require.NoError(t, err)
	assert.True(t, cfg.Logging.Compress)
	assert.Equal(t, 2, cfg.Logging.MaxBackups)
	assert.Equal(t, 90, cfg.Logging.MaxAgeDays)
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	clearEnv(t)
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.False(t, cfg.Logging.Compress)
	assert.Equal(t, "Local", cfg.Timezone)
	assert.Equal(t, 10000.0, cfg.Paper.QuoteBalance)

	err = cfg.Validate()
	require.Error(t, err)
}

func TestLoadEnvOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("EXCHANGE_API_KEY", "env-key")
	t.Setenv("EXCHANGE_API_SECRET", "env-secret")
	t.Setenv("DCA_TEST_MODE", "true")
	t.Setenv("DATA_DIR", "/var/lib/dca")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("SQLITE_PATH", "/var/lib/dca/history.db")

	cfg, err := Load(writeConfig(t, sample))
	require.NoError(t, err)
	assert.Equal(t, "env-key", cfg.Exchange.APIKey)
	assert.Equal(t, "env-secret", cfg.Exchange.APISecret)
	assert.True(t, cfg.Test)
	assert.Equal(t, binanceTestnetURL, cfg.Exchange.BaseURL)
	assert.Equal(t, "/var/lib/dca", cfg.DataDir)
	assert.Equal(t, filepath.Join("/var/lib/dca", "stats.csv"), cfg.StatsPath())
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, "/var/lib/dca/history.db", cfg.Database.SQLitePath)
}

func TestLoadBadTestModeEnv(t *testing.T) {
	clearEnv(t)
	t.Setenv("DCA_TEST_MODE", "sometimes")
	_, err := Load(writeConfig(t, sample))
	require.Error(t, err)
}

func TestLoadDotEnv(t *testing.T) {
	clearEnv(t)
	path := writeConfig(t, "exchange:\n  name: binance\n")
	env := "EXCHANGE_API_KEY=dotenv-key\nEXCHANGE_API_SECRET=dotenv-secret\n"
	require.NoError(t, os.WriteFile(filepath.Join(filepath.Dir(path), ".env"), []byte(env), 0600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "dotenv-key", cfg.Exchange.APIKey)
	assert.Equal(t, "dotenv-secret", cfg.Exchange.APISecret)
}

func TestLoadParseError(t *testing.T) {
	clearEnv(t)
	_, err := Load(writeConfig(t, "coins: [\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse config")
}

func TestValidate(t *testing.T) {
	base := func(t *testing.T) *Config {
		clearEnv(t)
		cfg, err := Load(writeConfig(t, sample))
		require.NoError(t, err)
		return cfg
	}

	tests := []struct {
		name      string
		mutate    func(*Config)
		wantErr   string
		configErr bool
	}{
		{"valid", func(*Config) {}, "", false},
		{"missing secret", func(c *Config) { c.Exchange.APISecret = "" }, "api_secret", false},
		{"unknown exchange", func(c *Config) { c.Exchange.Name = "kraken" }, "unsupported exchange", false},
		{"paper outside test", func(c *Config) { c.Exchange.Name = ExchangePaper }, "test mode", false},
		{"paper in test", func(c *Config) { c.Exchange.Name = ExchangePaper; c.Test = true }, "", false},
		{"notifications without token", func(c *Config) { c.Telegram.BotToken = "" }, "bot_token", false},
		{"notifications off", func(c *Config) { c.Telegram.BotToken = ""; c.SendNotifications = false }, "", false},
		{"bad timezone", func(c *Config) { c.Timezone = "Mars/Olympus" }, "timezone", false},
		{"no coins", func(c *Config) { c.Coins = nil }, "no coins", true},
		{"unknown cycle", func(c *Config) { c.Coins[0].Cycle = "yearly" }, "unrecognized cycle", true},
		{"weekday out of range", func(c *Config) { c.Coins[0].OnWeekday = intPtr(7) }, "on_weekday", true},
		{"missing weekday", func(c *Config) { c.Coins[0].OnWeekday = nil }, "on_weekday is required", true},
		{"explicit monday", func(c *Config) { c.Coins[0].OnWeekday = intPtr(0) }, "", false},
		{"missing weekday bi-weekly", func(c *Config) { c.Coins[0].Cycle = "bi-weekly"; c.Coins[0].OnWeekday = nil }, "on_weekday is required", true},
		{"weekday ignored for daily", func(c *Config) { c.Coins[0].Cycle = "daily"; c.Coins[0].OnWeekday = nil }, "", false},
		{"day out of range", func(c *Config) { c.Coins[1].OnDay = 31 }, "on_day", true},
		{"missing monthly day", func(c *Config) { c.Coins[1].OnDay = 0 }, "on_day", true},
		{"minutely outside test", func(c *Config) { c.Coins[2].Cycle = "minutely" }, "test mode", true},
		{"minutely in test", func(c *Config) { c.Coins[2].Cycle = "minutely"; c.Test = true }, "", false},
		{"bad at_time", func(c *Config) { c.Coins[0].AtTime = "25:00" }, "at_time", true},
		{"unknown strategy", func(c *Config) { c.Coins[0].Strategy = "martingale" }, "unrecognized strategy", true},
		{"classic without amount", func(c *Config) { c.Coins[0].Amount = 0 }, "amount", true},
		{"buy below without price", func(c *Config) { c.Coins[2].MaxPrice = 0 }, "max_price", true},
		{"variable without ranges", func(c *Config) { c.Coins[1].PriceRange = nil }, "price_range", true},
		{"variable bad mapping", func(c *Config) { c.Coins[1].Mapping = "cubic" }, "mapping", true},
		{"duplicate coin", func(c *Config) { c.Coins[2].Symbol = "BTC" }, "twice", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := base(t)
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
			assert.Equal(t, tt.configErr, errors.Is(err, schedule.ErrConfiguration))
		})
	}
}

func TestClockTimeParse(t *testing.T) {
	tests := []struct {
		in      ClockTime
		want    model.AtTime
		wantErr bool
	}{
		{"", model.AtTime{}, false},
		{"9", model.AtTime{Hour: 9}, false},
		{"09:30", model.AtTime{Hour: 9, Minute: 30}, false},
		{" 23:59 ", model.AtTime{Hour: 23, Minute: 59}, false},
		{"24", model.AtTime{}, true},
		{"9:60", model.AtTime{}, true},
		{"nine", model.AtTime{}, true},
	}
	for _, tt := range tests {
		got, err := tt.in.Parse()
		if tt.wantErr {
			assert.ErrorIs(t, err, schedule.ErrConfiguration, "input %q", tt.in)
			continue
		}
		require.NoError(t, err, "input %q", tt.in)
		assert.Equal(t, tt.want, got)
	}
}

func TestExampleConfigIsValid(t *testing.T) {
	clearEnv(t)
	cfg, err := Load(filepath.Join("..", "..", "configs", "config.yaml"))
	require.NoError(t, err)
	cfg.Exchange.APIKey, cfg.Exchange.APISecret = "k", "s"
	cfg.Telegram.BotToken, cfg.Telegram.ChatID = "t", "1"
	cfg.Timezone = "UTC"
	require.NoError(t, cfg.Validate())
}
