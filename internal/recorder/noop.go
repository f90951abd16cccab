package recorder

import "TradeSentinel/internal/model"

// NoopRecorder is a no-op implementation used when SQLite is not configured.
type NoopRecorder struct{}

func NewNoopRecorder() *NoopRecorder { return &NoopRecorder{} }

func (n *NoopRecorder) RecordTrade(_ *model.Trade) error                  { return nil }
func (n *NoopRecorder) RecordPositionClose(_ *model.ClosedPosition) error { return nil }
func (n *NoopRecorder) RecordCycle(_ *model.CycleResult) error            { return nil }
func (n *NoopRecorder) Close() error                                      { return nil }
