package notifier

import (
	"strings"
	"time"

	"CryptoDCA/internal/ledger"
	"CryptoDCA/internal/orderbook"
)

// Commands answers chat commands from the persisted files, the same view any
// external reader gets.
type Commands struct {
	OrderBookPath string
	StatsPath     string
	Location      *time.Location
	Now           func() time.Time
}

// Handle implements CommandHandler.
func (c Commands) Handle(command string) string {
	fields := strings.Fields(command)
	if len(fields) == 0 {
		return ""
	}
	cmd := strings.ToLower(fields[0])
	if i := strings.Index(cmd, "@"); i > 0 {
		cmd = cmd[:i] // "/next@MyBot" in group chats
	}

	switch cmd {
	case "/next":
		entries, err := orderbook.Load(c.OrderBookPath, c.location())
		if err != nil {
			log.WithError(err).Warn("read order book for /next")
			return "Order book unavailable."
		}
		return FormatNextPurchases(entries, c.now())
	case "/stats":
		stats, err := ledger.LoadStats(c.StatsPath)
		if err != nil {
			log.WithError(err).Warn("read stats for /stats")
			return "Statistics unavailable."
		}
		return FormatStatsTable(stats)
	case "/start", "/help":
		return "Commands:\n/next - upcoming purchases\n/stats - purchase statistics"
	default:
		return ""
	}
}

func (c Commands) location() *time.Location {
	if c.Location == nil {
		return time.Local
	}
	return c.Location
}

func (c Commands) now() time.Time {
	if c.Now == nil {
		return time.Now().In(c.location())
	}
	return c.Now()
}
