// Package persistence saves and restores infomodel snapshots across process
// restarts. The default store is a plain JSON file; Store is implemented a
// second time over an embedded bbolt database for deployments that want a
// single durable file with atomic updates instead of a write-whole-file-
// every-time JSON dump.
package persistence

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/bimmerbailey/cyro/internal/infomodel"
	"github.com/google/uuid"
	bolt "go.etcd.io/bbolt"
)

// Store persists and loads a single infomodel.Snapshot plus the run_id
// stamped onto it at save time.
type Store interface {
	Save(snap infomodel.Snapshot, runID string) error
	Load() (snap infomodel.Snapshot, runID string, err error)
	Close() error
}

// StampedSnapshot wraps a snapshot with the run_id of the process that
// wrote it, so a restored model's diagnostics can distinguish "picked up
// where a previous run left off" from "started fresh".
type StampedSnapshot struct {
	RunID    string             `json:"run_id"`
	Snapshot infomodel.Snapshot `json:"snapshot"`
}

// NewRunID generates a fresh run identifier.
func NewRunID() string {
	return uuid.NewString()
}

// --- JSON file store -------------------------------------------------------

// JSONFileStore saves a snapshot as a single JSON file, written atomically
// via a temp-file-then-rename so a crash mid-write never leaves a truncated
// file behind.
type JSONFileStore struct {
	path string
}

// NewJSONFileStore returns a Store backed by the file at path.
func NewJSONFileStore(path string) *JSONFileStore {
	return &JSONFileStore{path: path}
}

func (s *JSONFileStore) Save(snap infomodel.Snapshot, runID string) error {
	data, err := json.Marshal(StampedSnapshot{RunID: runID, Snapshot: snap})
	if err != nil {
		return fmt.Errorf("persistence: marshal snapshot: %w", err)
	}

	dir := filepath.Dir(s.path)
	tmp, err := os.CreateTemp(dir, ".snapshot-*.tmp")
	if err != nil {
		return fmt.Errorf("persistence: create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath) // no-op once the rename below succeeds

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("persistence: write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("persistence: close temp file: %w", err)
	}
	if err := os.Rename(tmpPath, s.path); err != nil {
		return fmt.Errorf("persistence: rename into place: %w", err)
	}
	return nil
}

func (s *JSONFileStore) Load() (infomodel.Snapshot, string, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return infomodel.Snapshot{}, "", fmt.Errorf("persistence: read %s: %w", s.path, err)
	}
	var stamped StampedSnapshot
	if err := json.Unmarshal(data, &stamped); err != nil {
		return infomodel.Snapshot{}, "", fmt.Errorf("persistence: unmarshal %s: %w", s.path, err)
	}
	return stamped.Snapshot, stamped.RunID, nil
}

func (s *JSONFileStore) Close() error { return nil }

// --- bbolt store -----------------------------------------------------------

const (
	boltBucket = "snapshots"
	boltKey    = "current"
)

// BoltStore persists a snapshot as one value in an embedded bbolt database,
// grounded on the same single-bucket key-value pattern used for the
// anonymizing proxy's cross-session value cache.
type BoltStore struct {
	db *bolt.DB
}

// NewBoltStore opens (or creates) the bbolt database at path.
func NewBoltStore(path string) (*BoltStore, error) {
	db, err := bolt.Open(path, 0o600, nil)
	if err != nil {
		return nil, fmt.Errorf("persistence: open bbolt store %q: %w", path, err)
	}
	if err := db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(boltBucket))
		return err
	}); err != nil {
		db.Close()
		return nil, fmt.Errorf("persistence: create bbolt bucket: %w", err)
	}
	return &BoltStore{db: db}, nil
}

func (s *BoltStore) Save(snap infomodel.Snapshot, runID string) error {
	data, err := json.Marshal(StampedSnapshot{RunID: runID, Snapshot: snap})
	if err != nil {
		return fmt.Errorf("persistence: marshal snapshot: %w", err)
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(boltBucket))
		return b.Put([]byte(boltKey), data)
	})
}

func (s *BoltStore) Load() (infomodel.Snapshot, string, error) {
	var stamped StampedSnapshot
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(boltBucket))
		if b == nil {
			return fmt.Errorf("bucket %q not found", boltBucket)
		}
		v := b.Get([]byte(boltKey))
		if v == nil {
			return fmt.Errorf("no snapshot stored under key %q", boltKey)
		}
		return json.Unmarshal(v, &stamped)
	})
	if err != nil {
		return infomodel.Snapshot{}, "", fmt.Errorf("persistence: load from bbolt: %w", err)
	}
	return stamped.Snapshot, stamped.RunID, nil
}

func (s *BoltStore) Close() error {
	return s.db.Close()
}
