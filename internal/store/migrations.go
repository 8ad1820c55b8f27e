package store

import (
	"database/sql"
	"fmt"
)

const createSavedConnectionsTable = `
CREATE TABLE saved_connections (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	name TEXT NOT NULL UNIQUE,
	host TEXT NOT NULL,
	port INTEGER NOT NULL DEFAULT 22,
	username TEXT NOT NULL,
	remote_path TEXT NOT NULL,
	local_path TEXT NOT NULL,
	ssh_key_path TEXT,
	sync_mode TEXT NOT NULL DEFAULT 'one-way-safe',
	tags TEXT,
	is_favorite INTEGER NOT NULL DEFAULT 0,
	created_at TEXT NOT NULL,
	last_used TEXT
)`

const createSavedConnectionsIndices = `
CREATE INDEX idx_saved_connections_name ON saved_connections(name)`

// applyMigrations applies all database migrations in order.
func applyMigrations(db *sql.DB) error {
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		return fmt.Errorf("enable foreign keys: %w", err)
	}

	if _, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS migrations (
			version INTEGER PRIMARY KEY,
			name TEXT NOT NULL,
			applied_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)
	`); err != nil {
		return fmt.Errorf("create migrations table: %w", err)
	}

	migrations := []struct {
		version int
		name    string
		sql     string
	}{
		{1, "create_saved_connections_table", createSavedConnectionsTable},
		{2, "create_saved_connections_indices", createSavedConnectionsIndices},
	}

	for _, m := range migrations {
		var count int
		if err := db.QueryRow("SELECT COUNT(*) FROM migrations WHERE version = ?", m.version).Scan(&count); err != nil {
			return fmt.Errorf("check migration %d: %w", m.version, err)
		}
		if count > 0 {
			continue
		}
		if _, err := db.Exec(m.sql); err != nil {
			return fmt.Errorf("apply migration %d (%s): %w", m.version, m.name, err)
		}
		if _, err := db.Exec("INSERT INTO migrations (version, name) VALUES (?, ?)", m.version, m.name); err != nil {
			return fmt.Errorf("record migration %d: %w", m.version, err)
		}
	}
	return nil
}
