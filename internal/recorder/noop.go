package recorder

import "CryptoDCA/internal/model"

// NoopRecorder is a no-op implementation used when SQLite is not configured.
type NoopRecorder struct{}

func NewNoopRecorder() *NoopRecorder { return &NoopRecorder{} }

func (n *NoopRecorder) RecordPurchase(_ *model.PurchaseRecord) error { return nil }
func (n *NoopRecorder) RecordStats(_ *model.CoinStats) error         { return nil }
func (n *NoopRecorder) RecordCycle(_ *CycleEvent) error              { return nil }
func (n *NoopRecorder) Close() error                                 { return nil }
