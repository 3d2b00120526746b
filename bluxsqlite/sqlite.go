// Package bluxsqlite provides a SQLite-backed preference store for the Blux
// SDK, as an alternative to the default file-backed store. It suits hosts
// that already ship a SQLite database and want identity state inside it.
//
// The store is created with DataStore and passed in through
// Config.PreferenceStore:
//
//	store, err := bluxsqlite.DataStore("/var/lib/myapp/blux.db")
//	if err != nil { ... }
//	config := blux.Config{PreferenceStore: store}
package bluxsqlite

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

const tableName = "blux_preferences"

// Store is a PreferenceStore backed by a SQLite database file. All state
// lives in a single key-value table, so the database can be shared with
// other application data.
type Store struct {
	db    *sql.DB
	owned bool
}

// DataStore opens (creating if necessary) the database at path and prepares
// the preference table.
func DataStore(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return nil, fmt.Errorf("create db dir: %w", err)
		}
	}
	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(
		`CREATE TABLE IF NOT EXISTS ` + tableName + ` (key TEXT PRIMARY KEY, value TEXT NOT NULL)`,
	); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create preference table: %w", err)
	}
	return &Store{db: db, owned: true}, nil
}

// DataStoreWithDB wraps an already-open database owned by the application.
// Close becomes a no-op; the application keeps responsibility for the
// connection.
func DataStoreWithDB(db *sql.DB) (*Store, error) {
	if _, err := db.Exec(
		`CREATE TABLE IF NOT EXISTS ` + tableName + ` (key TEXT PRIMARY KEY, value TEXT NOT NULL)`,
	); err != nil {
		return nil, fmt.Errorf("create preference table: %w", err)
	}
	return &Store{db: db}, nil
}

// Get returns the stored value for a key, if any.
func (s *Store) Get(key string) (string, bool) {
	var value string
	err := s.db.QueryRow(`SELECT value FROM `+tableName+` WHERE key = ?`, key).Scan(&value)
	if err != nil {
		return "", false
	}
	return value, true
}

// Set stores a value, replacing any previous one.
func (s *Store) Set(key, value string) error {
	_, err := s.db.Exec(
		`INSERT INTO `+tableName+` (key, value) VALUES (?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value`, key, value)
	return err
}

// Delete removes a key. Deleting a missing key is not an error.
func (s *Store) Delete(key string) error {
	_, err := s.db.Exec(`DELETE FROM `+tableName+` WHERE key = ?`, key)
	return err
}

// Close closes the underlying database, unless it was supplied through
// DataStoreWithDB.
func (s *Store) Close() error {
	if !s.owned {
		return nil
	}
	return s.db.Close()
}
