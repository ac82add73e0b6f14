package device

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// Repository persists the set of discovered thermostats.
//
// The bridge seeds a row at discovery and reloads all rows at start-up so
// known thermostats get synchronization units before the cloud API answers.
type Repository interface {
	// Upsert inserts a thermostat or refreshes the names of an existing one.
	Upsert(ctx context.Context, t *Thermostat) error

	// GetByAddress returns ErrThermostatNotFound for unknown addresses.
	GetByAddress(ctx context.Context, address string) (*Thermostat, error)

	// List returns every registered thermostat ordered by address.
	List(ctx context.Context) ([]Thermostat, error)
}

// SQLiteRepository implements Repository using SQLite.
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository creates a new SQLite-backed repository.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

// Upsert inserts the thermostat, or updates name fields if the address exists.
// Address, DeviceID and StructureID are required. CreatedAt is preserved on update.
func (r *SQLiteRepository) Upsert(ctx context.Context, t *Thermostat) error {
	if t == nil || t.Address == "" || t.DeviceID == "" || t.StructureID == "" {
		return fmt.Errorf("%w: address, device_id and structure_id are required", ErrInvalidThermostat)
	}

	now := time.Now().UTC()
	if t.CreatedAt.IsZero() {
		t.CreatedAt = now
	}
	t.UpdatedAt = now

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO thermostats (address, device_id, structure_id, name, structure_name, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(address) DO UPDATE SET
			structure_id = excluded.structure_id,
			name = excluded.name,
			structure_name = excluded.structure_name,
			updated_at = excluded.updated_at`,
		t.Address,
		t.DeviceID,
		t.StructureID,
		t.Name,
		t.StructureName,
		t.CreatedAt.Format(time.RFC3339),
		t.UpdatedAt.Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("upserting thermostat: %w", err)
	}
	return nil
}

// GetByAddress retrieves a thermostat by its local identifier.
func (r *SQLiteRepository) GetByAddress(ctx context.Context, address string) (*Thermostat, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT address, device_id, structure_id, name, structure_name, created_at, updated_at
		FROM thermostats
		WHERE address = ?`, address)

	t, err := scanThermostat(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrThermostatNotFound
		}
		return nil, fmt.Errorf("querying thermostat by address: %w", err)
	}
	return t, nil
}

// List retrieves all registered thermostats.
func (r *SQLiteRepository) List(ctx context.Context) ([]Thermostat, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT address, device_id, structure_id, name, structure_name, created_at, updated_at
		FROM thermostats
		ORDER BY address`)
	if err != nil {
		return nil, fmt.Errorf("querying thermostats: %w", err)
	}
	defer rows.Close()

	var out []Thermostat
	for rows.Next() {
		t, err := scanThermostat(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning thermostat: %w", err)
		}
		out = append(out, *t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating thermostats: %w", err)
	}
	return out, nil
}

// scanner is satisfied by *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanThermostat(s scanner) (*Thermostat, error) {
	var t Thermostat
	var createdAt, updatedAt string
	if err := s.Scan(&t.Address, &t.DeviceID, &t.StructureID, &t.Name, &t.StructureName, &createdAt, &updatedAt); err != nil {
		return nil, err
	}

	var err error
	if t.CreatedAt, err = parseTimestamp(createdAt); err != nil {
		return nil, err
	}
	if t.UpdatedAt, err = parseTimestamp(updatedAt); err != nil {
		return nil, err
	}
	return &t, nil
}

// parseTimestamp parses a timestamp stored in SQLite.
func parseTimestamp(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, fmt.Errorf("timestamp is empty")
	}
	ts, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("parsing timestamp %q: %w", value, err)
	}
	return ts, nil
}
