package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// Store is the local SQLite snapshot of the backend collections. It lets
// the console start with the last known data when the backend is down and
// receives findings dropped into the import folder.
type Store struct {
	db *sql.DB
}

// SyncEntry records when a collection was last written
type SyncEntry struct {
	Collection string    `json:"collection"`
	ItemCount  int       `json:"item_count"`
	SyncedAt   time.Time `json:"synced_at"`
}

// NewStore opens (and migrates) the database at dbPath. ":memory:" gives a
// private in-memory database.
func NewStore(dbPath string) (*Store, error) {
	if dbPath != ":memory:" {
		if dir := filepath.Dir(dbPath); dir != "" && dir != "." {
			if err := os.MkdirAll(dir, 0755); err != nil {
				return nil, fmt.Errorf("failed to create database directory %s: %w", dir, err)
			}
		}
	}

	db, err := sql.Open(DriverName, dbPath+dsnParams)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// a single connection keeps ":memory:" databases shared and serializes writers
	db.SetMaxOpenConns(1)

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// Close closes the database connection
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS connections (
			position INTEGER PRIMARY KEY,
			id INTEGER,
			connection_name TEXT NOT NULL,
			db_type TEXT,
			server_address TEXT,
			file_path TEXT,
			port INTEGER,
			database_name TEXT,
			use_windows_auth INTEGER NOT NULL DEFAULT 0,
			username TEXT
		)`,

		`CREATE TABLE IF NOT EXISTS entities (
			position INTEGER PRIMARY KEY,
			id INTEGER,
			name TEXT NOT NULL,
			entity_type TEXT NOT NULL,
			created_at INTEGER
		)`,

		`CREATE TABLE IF NOT EXISTS findings (
			id INTEGER PRIMARY KEY,
			position INTEGER NOT NULL,
			entity_name TEXT NOT NULL,
			source_url TEXT,
			title TEXT,
			content TEXT,
			risk_score REAL,
			risk_level TEXT NOT NULL,
			data_coleta TEXT,
			categoria TEXT
		)`,

		`CREATE TABLE IF NOT EXISTS jobs (
			position INTEGER PRIMARY KEY,
			id INTEGER NOT NULL,
			status TEXT NOT NULL,
			tipo_gatilho TEXT,
			iniciado_em INTEGER,
			finalizado_em INTEGER,
			resultado TEXT
		)`,

		`CREATE TABLE IF NOT EXISTS sync_log (
			collection TEXT PRIMARY KEY,
			item_count INTEGER NOT NULL,
			synced_at INTEGER NOT NULL
		)`,

		`CREATE INDEX IF NOT EXISTS idx_findings_position ON findings(position)`,
		`CREATE INDEX IF NOT EXISTS idx_findings_entity_name ON findings(entity_name)`,
		`CREATE INDEX IF NOT EXISTS idx_findings_risk_level ON findings(risk_level)`,
		`CREATE INDEX IF NOT EXISTS idx_jobs_id ON jobs(id)`,
	}

	for _, migration := range migrations {
		if _, err := s.db.Exec(migration); err != nil {
			return fmt.Errorf("failed to execute migration: %w", err)
		}
	}
	return nil
}

// Reset removes every cached row.
func (s *Store) Reset(ctx context.Context) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	for _, table := range []string{"connections", "entities", "findings", "jobs", "sync_log"} {
		if _, err := tx.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return fmt.Errorf("failed to clear %s: %w", table, err)
		}
	}
	return tx.Commit()
}

// LastSync returns when collection was last written, if ever.
func (s *Store) LastSync(ctx context.Context, collection string) (SyncEntry, bool, error) {
	var entry SyncEntry
	var syncedAt int64
	err := s.db.QueryRowContext(ctx,
		`SELECT collection, item_count, synced_at FROM sync_log WHERE collection = ?`, collection,
	).Scan(&entry.Collection, &entry.ItemCount, &syncedAt)
	if err == sql.ErrNoRows {
		return SyncEntry{}, false, nil
	}
	if err != nil {
		return SyncEntry{}, false, fmt.Errorf("failed to read sync log: %w", err)
	}
	entry.SyncedAt = time.Unix(syncedAt, 0)
	return entry, true, nil
}

// SyncLog lists every sync entry ordered by collection.
func (s *Store) SyncLog(ctx context.Context) ([]SyncEntry, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT collection, item_count, synced_at FROM sync_log ORDER BY collection`)
	if err != nil {
		return nil, fmt.Errorf("failed to query sync log: %w", err)
	}
	defer rows.Close()

	var entries []SyncEntry
	for rows.Next() {
		var e SyncEntry
		var syncedAt int64
		if err := rows.Scan(&e.Collection, &e.ItemCount, &syncedAt); err != nil {
			return nil, fmt.Errorf("failed to scan sync entry: %w", err)
		}
		e.SyncedAt = time.Unix(syncedAt, 0)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func recordSync(ctx context.Context, tx *sql.Tx, collection string, count int) error {
	_, err := tx.ExecContext(ctx,
		`INSERT INTO sync_log (collection, item_count, synced_at) VALUES (?, ?, ?)
		 ON CONFLICT(collection) DO UPDATE SET item_count = excluded.item_count, synced_at = excluded.synced_at`,
		collection, count, time.Now().Unix())
	if err != nil {
		return fmt.Errorf("failed to record sync for %s: %w", collection, err)
	}
	return nil
}
