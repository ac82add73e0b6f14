package device

import (
	"context"
	"time"
)

// State history source values.
const (
	StateHistorySourcePoll    = "poll"
	StateHistorySourceCommand = "command"
	StateHistorySourceQuery   = "query"
)

// StateHistoryEntry represents a single thermostat snapshot record.
//
// Each entry stores the full projected driver set at the time it was
// recorded. This provides a local audit trail even when InfluxDB is
// disabled or unavailable.
type StateHistoryEntry struct {
	ID      int64  `json:"id"`
	Address string `json:"address"`
	State   State  `json:"state"`

	// Source identifies what produced the snapshot (poll, command, query).
	Source    string    `json:"source"`
	CreatedAt time.Time `json:"created_at"`
}

// StateHistoryRepository stores and retrieves thermostat snapshot history.
//
// Implementations must be thread-safe and use UTC timestamps.
type StateHistoryRepository interface {
	// RecordStateChange records a snapshot for the thermostat at address.
	//
	// Parameters:
	//   - ctx: Context for cancellation and timeout
	//   - address: Local thermostat identifier
	//   - state: Snapshot to persist
	//   - source: Origin of the snapshot (poll, command, query)
	//
	// Returns:
	//   - error: nil on success, otherwise the underlying persistence error
	RecordStateChange(ctx context.Context, address string, state State, source string) error

	// GetHistory returns recent snapshots, newest first.
	// Implementations may clamp limit.
	GetHistory(ctx context.Context, address string, limit int) ([]StateHistoryEntry, error)
}
