package db

import (
	"database/sql"
	_ "embed"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"
	_ "modernc.org/sqlite"
)

//go:embed schema.sql
var schema string

// Supported drivers. sqlite3 needs cgo; sqlite is pure Go.
const (
	DriverCGO    = "sqlite3"
	DriverPureGo = "sqlite"
)

// DB wraps the database connection
type DB struct {
	*sql.DB
}

// New opens the database at path with the given driver and initializes the schema
func New(driver, path string) (*DB, error) {
	dsn, err := dataSource(driver, path)
	if err != nil {
		return nil, err
	}

	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, err
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, err
	}

	// Initialize schema
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("init schema: %w", err)
	}

	// The file holds a bearer token.
	if err := os.Chmod(path, 0600); err != nil && !os.IsNotExist(err) {
		db.Close()
		return nil, err
	}

	return &DB{db}, nil
}

func dataSource(driver, path string) (string, error) {
	switch driver {
	case DriverCGO:
		return path + "?_foreign_keys=on", nil
	case DriverPureGo:
		return path + "?_pragma=foreign_keys(1)", nil
	}
	return "", fmt.Errorf("unsupported sqlite driver %q", driver)
}

// GetSetting retrieves a setting value by key
func (db *DB) GetSetting(key string) (string, error) {
	var value string
	err := db.QueryRow("SELECT value FROM settings WHERE key = ?", key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", nil
	}
	return value, err
}

// SetSetting sets a setting value
func (db *DB) SetSetting(key, value string) error {
	_, err := db.Exec(`
		INSERT INTO settings (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value
	`, key, value)
	return err
}
