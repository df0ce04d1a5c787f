// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package state persists client-side key-value state, most importantly
// the last-selected index. The store is SQLite-backed and guarded by a
// file lock so only one kbctl session writes at a time.
package state

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"
	_ "github.com/mattn/go-sqlite3"

	"github.com/pdiddy/kbctl/pkg/types"
)

const (
	dbFile   = "state.db"
	lockFile = "session.lock"

	// selectionKey is the single fixed key holding the persisted
	// selection as a canonical JSON record.
	selectionKey = "selected_index"
)

// ErrSessionActive means another kbctl process holds the state lock.
var ErrSessionActive = errors.New("another kbctl session is active")

// Store is the durable client-side key-value store.
type Store struct {
	db   *sql.DB
	lock *flock.Flock
}

// Open creates dir if needed, acquires the session lock, and opens the
// SQLite store. Callers must Close to release the lock.
func Open(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating state directory: %w", err)
	}

	lock := flock.New(filepath.Join(dir, lockFile))
	locked, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("acquiring session lock: %w", err)
	}
	if !locked {
		return nil, ErrSessionActive
	}

	db, err := sql.Open("sqlite3", filepath.Join(dir, dbFile)+"?_journal_mode=WAL")
	if err != nil {
		lock.Unlock()
		return nil, fmt.Errorf("opening state database: %w", err)
	}

	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS kv (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL,
		updated_at TEXT NOT NULL
	)`); err != nil {
		db.Close()
		lock.Unlock()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	return &Store{db: db, lock: lock}, nil
}

// Close releases the database and the session lock.
func (s *Store) Close() error {
	err := s.db.Close()
	if uerr := s.lock.Unlock(); err == nil {
		err = uerr
	}
	return err
}

// Get returns the value for key and whether it exists.
func (s *Store) Get(key string) (string, bool, error) {
	var value string
	err := s.db.QueryRow(`SELECT value FROM kv WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("reading %s: %w", key, err)
	}
	return value, true, nil
}

// Put upserts a value.
func (s *Store) Put(key, value string) error {
	_, err := s.db.Exec(
		`INSERT INTO kv (key, value, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		key, value, time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("writing %s: %w", key, err)
	}
	return nil
}

// Delete removes a key; deleting an absent key is not an error.
func (s *Store) Delete(key string) error {
	if _, err := s.db.Exec(`DELETE FROM kv WHERE key = ?`, key); err != nil {
		return fmt.Errorf("deleting %s: %w", key, err)
	}
	return nil
}

// Selection reads the persisted selection. Absent or unparsable entries
// report ok=false; the selector treats both the same way.
func (s *Store) Selection() (types.Index, bool, error) {
	raw, ok, err := s.Get(selectionKey)
	if err != nil || !ok {
		return types.Index{}, false, err
	}

	// Older clients stored any of the historical wire shapes here, so
	// decode loosely and normalize.
	var v any
	if json.Unmarshal([]byte(raw), &v) != nil {
		return types.Index{}, false, nil
	}
	ix := types.NormalizeRef(v)
	if ix.IsZero() {
		return types.Index{}, false, nil
	}
	return ix, true, nil
}

// SaveSelection writes the canonical selection record.
func (s *Store) SaveSelection(ix types.Index) error {
	data, err := json.Marshal(ix)
	if err != nil {
		return fmt.Errorf("encoding selection: %w", err)
	}
	return s.Put(selectionKey, string(data))
}

// ClearSelection removes the persisted selection.
func (s *Store) ClearSelection() error {
	return s.Delete(selectionKey)
}
