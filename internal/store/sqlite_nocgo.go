//go:build !cgo
// +build !cgo

package store

import (
	_ "modernc.org/sqlite"
)

// DriverName is the database/sql driver used for SQLite files.
const DriverName = "sqlite"

const dsnParams = "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"
