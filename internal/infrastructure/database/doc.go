// Package database provides SQLite connectivity for the Nest bridge.
//
// The bridge persists two things: the thermostat registry (so nodes known
// from earlier discoveries exist before the cloud API is reachable) and a
// bounded per-thermostat state history.
//
// Usage:
//
//	db, err := database.Open(ctx, database.ConfigFrom(cfg.Database))
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer db.Close()
//
//	if err := db.Migrate(ctx, migrations.Source()); err != nil {
//	    log.Fatal(err)
//	}
//
// Migrations are embedded files named YYYYMMDD_HHMMSS_description.up.sql
// with a matching .down.sql. They are additive-only: new columns must be
// NULLABLE or have DEFAULT values.
package database
