package sqlstore

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

// CurrentSchemaVersion is the latest schema version.
// Bump this when adding migrations.
const CurrentSchemaVersion = 2

// Init opens (creating if needed) the SQLite database at path in WAL mode
// and applies pending migrations.
func Init(path string) (*sql.DB, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	dsn := path + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := verifyWALMode(db); err != nil {
		db.Close()
		return nil, err
	}

	if err := migrate(db); err != nil {
		db.Close()
		return nil, err
	}

	_ = os.Chmod(path, 0600)

	return db, nil
}

// migrate applies schema migrations based on user_version.
func migrate(db *sql.DB) error {
	version, err := GetUserVersion(db)
	if err != nil {
		return err
	}

	// Migration 0 -> 1: items and bank membership
	if version < 1 {
		schema := `
		CREATE TABLE IF NOT EXISTS items (
		  id            TEXT PRIMARY KEY,
		  origin_source TEXT NOT NULL DEFAULT '',
		  origin_handle TEXT NOT NULL DEFAULT '',
		  display_time  TEXT NOT NULL DEFAULT '',
		  content       TEXT NOT NULL DEFAULT '',
		  created_at    INTEGER NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_items_created
		ON items(created_at DESC);

		CREATE TABLE IF NOT EXISTS bank (
		  item_id  TEXT PRIMARY KEY,
		  position INTEGER NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_bank_position
		ON bank(position);
		`
		if _, err := db.Exec(schema); err != nil {
			return fmt.Errorf("migration 1 failed: %w", err)
		}
		if err := SetUserVersion(db, 1); err != nil {
			return err
		}
	}

	// Migration 1 -> 2: persona catalog
	if version < 2 {
		schema := `
		CREATE TABLE IF NOT EXISTS personas (
		  id        TEXT PRIMARY KEY,
		  name      TEXT NOT NULL,
		  icon_slug TEXT NOT NULL DEFAULT '',
		  model     TEXT NOT NULL DEFAULT ''
		);
		`
		if _, err := db.Exec(schema); err != nil {
			return fmt.Errorf("migration 2 failed: %w", err)
		}
		if err := SetUserVersion(db, 2); err != nil {
			return err
		}
	}

	return nil
}

func verifyWALMode(db *sql.DB) error {
	var journalMode string
	if err := db.QueryRow("PRAGMA journal_mode;").Scan(&journalMode); err != nil {
		return fmt.Errorf("failed to verify journal mode: %w", err)
	}
	if journalMode != "wal" {
		return fmt.Errorf("expected WAL mode, got %s", journalMode)
	}
	return nil
}

// GetUserVersion returns the current schema version (user_version pragma).
func GetUserVersion(db *sql.DB) (int, error) {
	var version int
	if err := db.QueryRow("PRAGMA user_version;").Scan(&version); err != nil {
		return 0, fmt.Errorf("failed to get user_version: %w", err)
	}
	return version, nil
}

// SetUserVersion sets the schema version (user_version pragma).
func SetUserVersion(db *sql.DB, version int) error {
	_, err := db.Exec(fmt.Sprintf("PRAGMA user_version=%d", version))
	if err != nil {
		return fmt.Errorf("failed to set user_version: %w", err)
	}
	return nil
}
