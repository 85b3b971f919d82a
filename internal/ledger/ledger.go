package ledger

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"CryptoDCA/internal/model"
)

// NA marks a value the exchange did not report.
const NA = "N.A."

var ledgerHeader = []string{
	"N", "Datetime (local)", "Datetime (exchange)", "Coin", "Symbol", "Status",
	"Filled", "Price", "Cost", "Remaining", "Fee", "Fee Currency", "Fee Rate",
}

// Ledger is the append-only CSV file of executed purchases. Rows are never
// rewritten; each Append adds exactly one line.
type Ledger struct {
	path string
	next int
}

// Open opens or creates the ledger file and positions the row counter after the
// existing rows.
func Open(path string) (*Ledger, error) {
	l := &Ledger{path: path}
	records, err := l.Records()
	if err != nil {
		return nil, err
	}
	l.next = len(records)

	if fi, err := os.Stat(path); errors.Is(err, os.ErrNotExist) || (err == nil && fi.Size() == 0) {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, fmt.Errorf("create ledger dir: %w", err)
		}
		if err := l.appendRow(ledgerHeader); err != nil {
			return nil, fmt.Errorf("write ledger header: %w", err)
		}
	}
	return l, nil
}

// Path is the ledger file location.
func (l *Ledger) Path() string { return l.path }

// Append writes one purchase row.
func (l *Ledger) Append(rec model.PurchaseRecord) error {
	if err := l.appendRow(encodeRecord(l.next, rec)); err != nil {
		return fmt.Errorf("append ledger: %w", err)
	}
	l.next++
	return nil
}

// Records reads every row of the ledger. A missing file has no rows.
func (l *Ledger) Records() ([]model.PurchaseRecord, error) {
	f, err := os.Open(l.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("open ledger: %w", err)
	}
	defer f.Close()
	return decodeRecords(f)
}

func (l *Ledger) appendRow(row []string) error {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(row); err != nil {
		return err
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return err
	}

	f, err := os.OpenFile(l.path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return err
	}
	if _, err := f.Write(buf.Bytes()); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func encodeRecord(n int, r model.PurchaseRecord) []string {
	return []string{
		strconv.Itoa(n),
		formatTime(r.LocalTime),
		formatTime(r.ExchangeTime),
		r.Coin,
		r.Symbol,
		r.Status,
		formatFloat(r.Filled),
		formatFloat(r.Price),
		formatFloat(r.Cost),
		formatFloat(r.Remaining),
		formatOptional(r.Fee),
		orNA(r.FeeCurrency),
		formatOptional(r.FeeRate),
	}
}

func decodeRecords(r io.Reader) ([]model.PurchaseRecord, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = len(ledgerHeader)
	rows, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read ledger: %w", err)
	}
	if len(rows) == 0 {
		return nil, nil
	}

	out := make([]model.PurchaseRecord, 0, len(rows)-1)
	for i, row := range rows[1:] {
		rec, err := decodeRecord(row)
		if err != nil {
			return nil, fmt.Errorf("ledger row %d: %w", i+1, err)
		}
		out = append(out, rec)
	}
	return out, nil
}

func decodeRecord(row []string) (model.PurchaseRecord, error) {
	var (
		rec model.PurchaseRecord
		err error
	)
	if rec.LocalTime, err = parseTime(row[1]); err != nil {
		return rec, err
	}
	if rec.ExchangeTime, err = parseTime(row[2]); err != nil {
		return rec, err
	}
	rec.Coin, rec.Symbol, rec.Status = row[3], row[4], row[5]

	nums := []*float64{&rec.Filled, &rec.Price, &rec.Cost, &rec.Remaining}
	for i, p := range nums {
		if *p, err = strconv.ParseFloat(row[6+i], 64); err != nil {
			return rec, err
		}
	}
	if rec.Fee, err = parseOptional(row[10]); err != nil {
		return rec, err
	}
	if row[11] != NA {
		rec.FeeCurrency = row[11]
	}
	if rec.FeeRate, err = parseOptional(row[12]); err != nil {
		return rec, err
	}
	return rec, nil
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return NA
	}
	return t.Format(time.RFC3339Nano)
}

func parseTime(s string) (time.Time, error) {
	if s == NA {
		return time.Time{}, nil
	}
	return time.Parse(time.RFC3339Nano, s)
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func formatOptional(v *float64) string {
	if v == nil {
		return NA
	}
	return formatFloat(*v)
}

func parseOptional(s string) (*float64, error) {
	if s == NA {
		return nil, nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil, err
	}
	return &v, nil
}

func orNA(s string) string {
	if s == "" {
		return NA
	}
	return s
}
