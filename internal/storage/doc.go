// Package storage records the daemon's run history: one entry per launch
// attempt, including catch-up launches.
//
// Drivers:
//   - "file": JSON Lines, compacted to the newest Keep entries
//   - "sqlite": a single SQLite database (modernc.org/sqlite, no cgo)
package storage
