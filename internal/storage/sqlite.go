package storage

import (
	"database/sql"
	"errors"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

const currentSchemaVersion = 1

// SQLiteStorage implements Storage using a SQLite database.
type SQLiteStorage struct {
	db   *sql.DB
	path string
}

// NewSQLiteStorage creates a new SQLiteStorage with the given database path.
func NewSQLiteStorage(path string) (*SQLiteStorage, error) {
	// Ensure directory exists
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, err
	}

	db, err := OpenSQLite(path)
	if err != nil {
		return nil, err
	}

	s := &SQLiteStorage{db: db, path: path}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, err
	}

	return s, nil
}

// OpenSQLite opens a database with the pragmas every store here relies on.
func OpenSQLite(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}

	pragmas := []string{
		"PRAGMA foreign_keys = ON",
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, err
		}
	}
	return db, nil
}

// Path returns the database file path.
func (s *SQLiteStorage) Path() string {
	return s.path
}

// Close closes the database connection.
func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}

// Shutdown closes the database when the application container shuts down.
func (s *SQLiteStorage) Shutdown() error {
	return s.Close()
}

// migrate runs database migrations.
func (s *SQLiteStorage) migrate() error {
	// Check current schema version
	var version int
	err := s.db.QueryRow("SELECT version FROM schema_version LIMIT 1").Scan(&version)
	if err != nil {
		// Table doesn't exist or is empty, start fresh
		version = 0
	}

	if version < currentSchemaVersion {
		if err := s.migrateV1(); err != nil {
			return err
		}
	}

	return nil
}

// migrateV1 creates the initial schema.
func (s *SQLiteStorage) migrateV1() error {
	schema := `
		CREATE TABLE IF NOT EXISTS schema_version (
			version INTEGER PRIMARY KEY
		);

		CREATE TABLE IF NOT EXISTS prefs (
			key TEXT PRIMARY KEY NOT NULL,
			value TEXT NOT NULL
		);

		CREATE TABLE IF NOT EXISTS pref_sets (
			key TEXT NOT NULL,
			value TEXT NOT NULL,
			position INTEGER NOT NULL,
			PRIMARY KEY (key, value)
		);

		CREATE INDEX IF NOT EXISTS idx_pref_sets_key ON pref_sets(key, position);

		INSERT OR REPLACE INTO schema_version (version) VALUES (1);
	`
	_, err := s.db.Exec(schema)
	return err
}

// GetString implements Storage.
func (s *SQLiteStorage) GetString(key, def string) (string, error) {
	var value string
	err := s.db.QueryRow("SELECT value FROM prefs WHERE key = ?", key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return def, nil
	}
	if err != nil {
		return def, err
	}
	return value, nil
}

// PutString implements Storage.
func (s *SQLiteStorage) PutString(key, value string) error {
	_, err := s.db.Exec(`
		INSERT INTO prefs (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value
	`, key, value)
	return err
}

// GetStringSet implements Storage.
func (s *SQLiteStorage) GetStringSet(key string) ([]string, error) {
	rows, err := s.db.Query(`
		SELECT value FROM pref_sets
		WHERE key = ?
		ORDER BY position
	`, key)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	values := []string{}
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, err
		}
		values = append(values, v)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return values, nil
}

// PutStringSet implements Storage.
// Uses a transaction for atomicity - all or nothing.
func (s *SQLiteStorage) PutStringSet(key string, values []string) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec("DELETE FROM pref_sets WHERE key = ?", key); err != nil {
		return err
	}

	stmt, err := tx.Prepare("INSERT INTO pref_sets (key, value, position) VALUES (?, ?, ?)")
	if err != nil {
		return err
	}
	defer stmt.Close()

	for i, v := range dedupe(values) {
		if _, err := stmt.Exec(key, v, i); err != nil {
			return err
		}
	}

	return tx.Commit()
}
