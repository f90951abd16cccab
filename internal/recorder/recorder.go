package recorder

import "TradeSentinel/internal/model"

// Recorder is a write-only journal of executions and cycles for offline analysis.
// Nothing is read back at startup.
type Recorder interface {
	RecordTrade(trade *model.Trade) error
	RecordPositionClose(closed *model.ClosedPosition) error
	RecordCycle(cycle *model.CycleResult) error
	Close() error
}
