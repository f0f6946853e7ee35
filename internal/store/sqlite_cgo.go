//go:build cgo
// +build cgo

package store

import (
	_ "github.com/mattn/go-sqlite3"
)

// DriverName is the database/sql driver used for SQLite files.
const DriverName = "sqlite3"

const dsnParams = "?_journal_mode=WAL&_busy_timeout=5000"
