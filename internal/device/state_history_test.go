package device

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"
)

// insertStateHistoryRow inserts a state history row with a specific timestamp.
func insertStateHistoryRow(t *testing.T, db *sql.DB, address, stateJSON, source string, createdAt time.Time) {
	t.Helper()

	_, err := db.Exec(
		"INSERT INTO state_history (address, state, source, created_at) VALUES (?, ?, ?, ?)",
		address,
		stateJSON,
		source,
		createdAt.UTC().Format(time.RFC3339),
	)
	if err != nil {
		t.Fatalf("failed to insert state history row: %v", err)
	}
}

func TestRecordStateChange(t *testing.T) {
	repo := NewSQLiteStateHistoryRepository(setupTestDB(t))
	ctx := context.Background()

	state := State{"CLIMD": 3, "ST": 71, "CLIHUM": 41.5}
	if err := repo.RecordStateChange(ctx, "therm-1", state, ""); err != nil {
		t.Fatalf("RecordStateChange() error = %v", err)
	}

	entries, err := repo.GetHistory(ctx, "therm-1", 10)
	if err != nil {
		t.Fatalf("GetHistory() error = %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("entries length = %d, want 1", len(entries))
	}

	entry := entries[0]
	if entry.Address != "therm-1" {
		t.Errorf("Address = %q, want %q", entry.Address, "therm-1")
	}
	if entry.Source != StateHistorySourcePoll {
		t.Errorf("Source = %q, want default %q", entry.Source, StateHistorySourcePoll)
	}
	if entry.CreatedAt.IsZero() {
		t.Error("CreatedAt is zero, want non-zero")
	}
	if mode, ok := entry.State["CLIMD"].(float64); !ok || mode != 3 {
		t.Errorf("State[CLIMD] = %v, want 3", entry.State["CLIMD"])
	}
	if hum, ok := entry.State["CLIHUM"].(float64); !ok || hum != 41.5 {
		t.Errorf("State[CLIHUM] = %v, want 41.5", entry.State["CLIHUM"])
	}
}

func TestRecordStateChange_RequiresAddress(t *testing.T) {
	repo := NewSQLiteStateHistoryRepository(setupTestDB(t))

	err := repo.RecordStateChange(context.Background(), "", State{}, StateHistorySourceCommand)
	if !errors.Is(err, ErrAddressRequired) {
		t.Errorf("RecordStateChange() = %v, want ErrAddressRequired", err)
	}
	if _, err := repo.GetHistory(context.Background(), "", 1); !errors.Is(err, ErrAddressRequired) {
		t.Errorf("GetHistory() = %v, want ErrAddressRequired", err)
	}
}

func TestGetHistory(t *testing.T) {
	db := setupTestDB(t)
	repo := NewSQLiteStateHistoryRepository(db)
	ctx := context.Background()

	now := time.Now().UTC().Truncate(time.Second)
	insertStateHistoryRow(t, db, "therm-1", `{"CLIMD":0}`, StateHistorySourceCommand, now.Add(-2*time.Hour))
	insertStateHistoryRow(t, db, "therm-1", `{"CLIMD":1}`, StateHistorySourcePoll, now.Add(-1*time.Hour))
	insertStateHistoryRow(t, db, "therm-1", `{"CLIMD":3}`, StateHistorySourceQuery, now)
	insertStateHistoryRow(t, db, "therm-2", `{"CLIMD":2}`, StateHistorySourcePoll, now)

	entries, err := repo.GetHistory(ctx, "therm-1", 2)
	if err != nil {
		t.Fatalf("GetHistory() error = %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("entries length = %d, want 2", len(entries))
	}
	if !entries[0].CreatedAt.Equal(now) {
		t.Errorf("entry[0] CreatedAt = %s, want %s", entries[0].CreatedAt, now)
	}
	if !entries[1].CreatedAt.Equal(now.Add(-1 * time.Hour)) {
		t.Errorf("entry[1] CreatedAt = %s, want %s", entries[1].CreatedAt, now.Add(-1*time.Hour))
	}
	if entries[0].Source != StateHistorySourceQuery {
		t.Errorf("entry[0] Source = %q, want %q", entries[0].Source, StateHistorySourceQuery)
	}
}

func TestPruneHistory(t *testing.T) {
	db := setupTestDB(t)
	repo := NewSQLiteStateHistoryRepository(db)
	ctx := context.Background()

	now := time.Now().UTC().Truncate(time.Second)
	insertStateHistoryRow(t, db, "therm-1", `{"ST":70}`, StateHistorySourcePoll, now.Add(-40*24*time.Hour))
	insertStateHistoryRow(t, db, "therm-1", `{"ST":71}`, StateHistorySourcePoll, now.Add(-12*time.Hour))

	deleted, err := repo.PruneHistory(ctx, 30*24*time.Hour)
	if err != nil {
		t.Fatalf("PruneHistory() error = %v", err)
	}
	if deleted != 1 {
		t.Fatalf("deleted = %d, want 1", deleted)
	}

	entries, err := repo.GetHistory(ctx, "therm-1", 10)
	if err != nil {
		t.Fatalf("GetHistory() error = %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("entries length = %d, want 1", len(entries))
	}

	if _, err := repo.PruneHistory(ctx, 0); err == nil {
		t.Error("PruneHistory(0) expected error")
	}
}
