// Package device persists what the bridge knows about thermostats.
//
//   - Repository (repository.go): the registry of discovered thermostats,
//     keyed by local address and seeded at discovery time.
//   - StateHistoryRepository (state_history*.go): bounded snapshots of the
//     projected driver values after each sync or command.
//
// Both are backed by the SQLite schema in migrations/. All queries use
// parameterised statements and UTC RFC3339 timestamps.
package device
