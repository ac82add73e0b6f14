package nest

import (
	"context"
	"sync"

	"github.com/nerrad567/gray-logic-nest/internal/device"
)

// HistoryStore is the persistence side of HistoryRecorder.
// *device.SQLiteStateHistoryRepository satisfies it.
type HistoryStore interface {
	RecordStateChange(ctx context.Context, address string, state device.State, source string) error
}

// TelemetryWriter is the time-series side of TelemetryRecorder.
// *influxdb.Client satisfies it.
type TelemetryWriter interface {
	WriteThermostat(address, name string, fields map[string]any)
}

// HistoryRecorder appends a state-history row whenever a unit's snapshot
// differs from the last one recorded for it.
type HistoryRecorder struct {
	store  HistoryStore
	logger Logger

	mu   sync.Mutex
	last map[string]Snapshot
}

// NewHistoryRecorder creates a recorder writing to store.
func NewHistoryRecorder(store HistoryStore, logger Logger) *HistoryRecorder {
	return &HistoryRecorder{
		store:  store,
		logger: orNop(logger),
		last:   make(map[string]Snapshot),
	}
}

// RecordState implements StateRecorder.
func (r *HistoryRecorder) RecordState(ctx context.Context, node NodeInfo, snapshot Snapshot, source string) {
	r.mu.Lock()
	prev, seen := r.last[node.Address]
	if seen && prev == snapshot {
		r.mu.Unlock()
		return
	}
	r.last[node.Address] = snapshot
	r.mu.Unlock()

	if err := r.store.RecordStateChange(ctx, node.Address, device.State(snapshot.Fields()), source); err != nil {
		r.logger.Warn("failed to record state history", "address", node.Address, "error", err)
	}
}

// TelemetryRecorder writes every snapshot as a time-series point.
type TelemetryRecorder struct {
	writer TelemetryWriter
}

// NewTelemetryRecorder creates a recorder writing to w.
func NewTelemetryRecorder(w TelemetryWriter) *TelemetryRecorder {
	return &TelemetryRecorder{writer: w}
}

// RecordState implements StateRecorder.
func (r *TelemetryRecorder) RecordState(_ context.Context, node NodeInfo, snapshot Snapshot, _ string) {
	r.writer.WriteThermostat(node.Address, node.Name, snapshot.Fields())
}

// Recorders fans a snapshot out to several recorders.
type Recorders []StateRecorder

// RecordState implements StateRecorder.
func (rs Recorders) RecordState(ctx context.Context, node NodeInfo, snapshot Snapshot, source string) {
	for _, r := range rs {
		if r != nil {
			r.RecordState(ctx, node, snapshot, source)
		}
	}
}
