package recorder

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"CryptoDCA/internal/model"

	"github.com/sirupsen/logrus"
	_ "modernc.org/sqlite"
)

var log = logrus.WithField("component", "recorder")

// SQLiteRecorder persists purchase history to a SQLite database.
type SQLiteRecorder struct {
	db  *sql.DB
	mu  sync.Mutex
	now func() time.Time
}

// NewSQLiteRecorder opens (or creates) the SQLite database and runs migrations.
func NewSQLiteRecorder(dbPath string) (*SQLiteRecorder, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db dir: %w", err)
	}
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// WAL lets external readers query while the bot writes.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}

	r := &SQLiteRecorder{db: db, now: time.Now}
	if err := r.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	log.WithField("path", dbPath).Info("sqlite recorder opened")
	return r, nil
}

func (r *SQLiteRecorder) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS purchases (
			id            INTEGER PRIMARY KEY AUTOINCREMENT,
			local_time    INTEGER NOT NULL,
			exchange_time INTEGER,
			coin          TEXT NOT NULL,
			symbol        TEXT,
			status        TEXT,
			filled        REAL,
			price         REAL,
			cost          REAL,
			remaining     REAL,
			fee           REAL,
			fee_currency  TEXT,
			fee_rate      REAL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_purchases_coin_ts ON purchases(coin, local_time)`,

		`CREATE TABLE IF NOT EXISTS coin_stats (
			coin        TEXT PRIMARY KEY,
			updated_at  INTEGER NOT NULL,
			n           INTEGER,
			quantity    REAL,
			avg_price   REAL,
			total_cost  REAL,
			gain        REAL,
			roi_percent REAL
		)`,

		`CREATE TABLE IF NOT EXISTS cycle_events (
			id          INTEGER PRIMARY KEY AUTOINCREMENT,
			timestamp   INTEGER NOT NULL,
			coin        TEXT NOT NULL,
			outcome     TEXT NOT NULL,
			error_class TEXT,
			attempt     INTEGER,
			next_due    INTEGER,
			error       TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS idx_cycle_events_ts ON cycle_events(timestamp)`,
	}

	for _, s := range stmts {
		if _, err := r.db.Exec(s); err != nil {
			return fmt.Errorf("exec %q: %w", s[:40], err)
		}
	}
	return nil
}

func (r *SQLiteRecorder) RecordPurchase(rec *model.PurchaseRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	var exchangeTime sql.NullInt64
	if !rec.ExchangeTime.IsZero() {
		exchangeTime = sql.NullInt64{Int64: rec.ExchangeTime.Unix(), Valid: true}
	}
	_, err := r.db.Exec(`INSERT INTO purchases
		(local_time, exchange_time, coin, symbol, status, filled, price, cost, remaining,
		 fee, fee_currency, fee_rate)
		VALUES (?,?,?,?,?,?,?,?,?,?,?,?)`,
		rec.LocalTime.Unix(), exchangeTime, rec.Coin, rec.Symbol, rec.Status,
		rec.Filled, rec.Price, rec.Cost, rec.Remaining,
		nullFloat(rec.Fee), nullString(rec.FeeCurrency), nullFloat(rec.FeeRate),
	)
	return err
}

func (r *SQLiteRecorder) RecordStats(s *model.CoinStats) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	_, err := r.db.Exec(`INSERT INTO coin_stats
		(coin, updated_at, n, quantity, avg_price, total_cost, gain, roi_percent)
		VALUES (?,?,?,?,?,?,?,?)
		ON CONFLICT(coin) DO UPDATE SET
			updated_at = excluded.updated_at,
			n = excluded.n,
			quantity = excluded.quantity,
			avg_price = excluded.avg_price,
			total_cost = excluded.total_cost,
			gain = excluded.gain,
			roi_percent = excluded.roi_percent`,
		s.Coin, r.now().Unix(), s.N, s.Quantity, s.AvgPrice, s.TotalCost, s.Gain, s.ROIPercent,
	)
	return err
}

func (r *SQLiteRecorder) RecordCycle(evt *CycleEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	var nextDue sql.NullInt64
	if !evt.NextDue.IsZero() {
		nextDue = sql.NullInt64{Int64: evt.NextDue.Unix(), Valid: true}
	}
	_, err := r.db.Exec(`INSERT INTO cycle_events
		(timestamp, coin, outcome, error_class, attempt, next_due, error)
		VALUES (?,?,?,?,?,?,?)`,
		r.now().Unix(), evt.Coin, evt.Outcome, nullString(evt.ErrorClass),
		evt.Attempt, nextDue, nullString(evt.Err),
	)
	return err
}

func (r *SQLiteRecorder) Close() error {
	log.Info("closing sqlite recorder")
	return r.db.Close()
}

func nullFloat(v *float64) sql.NullFloat64 {
	if v == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *v, Valid: true}
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
