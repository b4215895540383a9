// Package localdb persists the device-local subset in a small sqlite
// database: the remembered guest identity and a handful of UI
// preferences. A missing file is created on open.
package localdb

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
)

const guestIDKey = "guest_id"

const schema = `
CREATE TABLE IF NOT EXISTS prefs (
	key   TEXT PRIMARY KEY,
	value TEXT NOT NULL
);`

// Store implements ports.LocalStore over a single-table sqlite file.
type Store struct {
	db *sql.DB
}

// Open creates or opens the local database at path.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create local store dir: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", path+"?_busy_timeout=5000&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("open local store: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("init local store: %w", err)
	}
	return &Store{db: db}, nil
}

// GuestID returns the remembered guest identity, if one was saved.
func (s *Store) GuestID() (uuid.UUID, bool, error) {
	value, ok, err := s.GetPref(guestIDKey)
	if err != nil || !ok {
		return uuid.Nil, false, err
	}
	id, err := uuid.Parse(value)
	if err != nil {
		// A corrupt value is treated as absent so a fresh guest can be
		// created instead of failing startup.
		return uuid.Nil, false, nil
	}
	return id, true, nil
}

// SetGuestID remembers the guest identity across restarts.
func (s *Store) SetGuestID(id uuid.UUID) error {
	return s.SetPref(guestIDKey, id.String())
}

// ClearGuestID forgets the guest identity after migration or sign-out.
func (s *Store) ClearGuestID() error {
	if _, err := s.db.Exec(`DELETE FROM prefs WHERE key = ?`, guestIDKey); err != nil {
		return fmt.Errorf("clear guest id: %w", err)
	}
	return nil
}

// GetPref reads one preference value.
func (s *Store) GetPref(key string) (string, bool, error) {
	var value string
	err := s.db.QueryRow(`SELECT value FROM prefs WHERE key = ?`, key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("get pref %s: %w", key, err)
	}
	return value, true, nil
}

// SetPref writes one preference value.
func (s *Store) SetPref(key, value string) error {
	_, err := s.db.Exec(
		`INSERT INTO prefs (key, value) VALUES (?, ?)
		 ON CONFLICT (key) DO UPDATE SET value = excluded.value`, key, value)
	if err != nil {
		return fmt.Errorf("set pref %s: %w", key, err)
	}
	return nil
}

// Close releases the sqlite handle.
func (s *Store) Close() error {
	return s.db.Close()
}
