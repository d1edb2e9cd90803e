// Package storage implements the durable client-side store for snapshots
// and sync metadata on SQLite.
package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/praxical/rulesync/internal/common"
	"github.com/praxical/rulesync/internal/model"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

// Key layout in the kv table. Snapshots and scalar metadata live in two
// namespaces so ClearAll can wipe both without knowing every key.
const (
	snapshotKeyPrefix = "snapshot:"
	metaKeyPrefix     = "meta:"

	metaLastPullAt  = metaKeyPrefix + "lastPullAt"
	metaLastPushAt  = metaKeyPrefix + "lastPushAt"
	metaBaseVersion = metaKeyPrefix + "baseVersion"
)

// SQLiteStore implements the service.LocalStore interface using SQLite.
type SQLiteStore struct {
	db     *sql.DB
	dbPath string
}

// NewSQLiteStore creates a new SQLite-backed local store.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	if dbPath == "" {
		return nil, fmt.Errorf("dbPath cannot be empty")
	}

	// Ensure directory exists
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0750); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite doesn't benefit from multiple connections
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	store := &SQLiteStore{db: db, dbPath: dbPath}
	if err := store.migrate(context.Background()); err != nil {
		return nil, err
	}

	return store, nil
}

func (s *SQLiteStore) migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS kv (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL,
			updated_at DATETIME NOT NULL
		)`)
	if err != nil {
		return fmt.Errorf("failed to create kv table: %w", err)
	}
	return nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) put(ctx context.Context, key, value string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO kv (key, value, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		key, value, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("%w: failed to write key %s: %v", common.ErrStoreUnavailable, key, err)
	}
	return nil
}

// get returns ("", false, nil) when the key is absent.
func (s *SQLiteStore) get(ctx context.Context, key string) (string, bool, error) {
	var value string
	err := s.db.QueryRowContext(ctx, "SELECT value FROM kv WHERE key = ?", key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("%w: failed to read key %s: %v", common.ErrStoreUnavailable, key, err)
	}
	return value, true, nil
}

func snapshotKey(slot model.Slot) string {
	return snapshotKeyPrefix + string(slot)
}

// PutSnapshot fully replaces the snapshot stored under the slot.
func (s *SQLiteStore) PutSnapshot(ctx context.Context, slot model.Slot, snap model.Snapshot) error {
	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("failed to marshal snapshot: %w", err)
	}
	return s.put(ctx, snapshotKey(slot), string(data))
}

// GetSnapshot returns (nil, nil) when the slot has never been written.
func (s *SQLiteStore) GetSnapshot(ctx context.Context, slot model.Slot) (*model.Snapshot, error) {
	value, ok, err := s.get(ctx, snapshotKey(slot))
	if err != nil || !ok {
		return nil, err
	}

	var snap model.Snapshot
	if err := json.Unmarshal([]byte(value), &snap); err != nil {
		return nil, fmt.Errorf("%w: snapshot %s: %v", common.ErrStoreCorrupted, slot, err)
	}
	return &snap, nil
}

// PutLastPullAt records the time of the last successful pull.
func (s *SQLiteStore) PutLastPullAt(ctx context.Context, at time.Time) error {
	return s.put(ctx, metaLastPullAt, at.UTC().Format(time.RFC3339Nano))
}

// GetLastPullAt returns nil when no pull has been recorded.
func (s *SQLiteStore) GetLastPullAt(ctx context.Context) (*time.Time, error) {
	return s.getTime(ctx, metaLastPullAt)
}

// PutLastPushAt records the time of the last successful push.
func (s *SQLiteStore) PutLastPushAt(ctx context.Context, at time.Time) error {
	return s.put(ctx, metaLastPushAt, at.UTC().Format(time.RFC3339Nano))
}

// GetLastPushAt returns nil when no push has been recorded.
func (s *SQLiteStore) GetLastPushAt(ctx context.Context) (*time.Time, error) {
	return s.getTime(ctx, metaLastPushAt)
}

func (s *SQLiteStore) getTime(ctx context.Context, key string) (*time.Time, error) {
	value, ok, err := s.get(ctx, key)
	if err != nil || !ok {
		return nil, err
	}
	at, err := time.Parse(time.RFC3339Nano, value)
	if err != nil {
		return nil, fmt.Errorf("%w: %s timestamp: %v", common.ErrStoreCorrupted, key, err)
	}
	return &at, nil
}

// PutBaseVersion records the data generation the client is working from.
func (s *SQLiteStore) PutBaseVersion(ctx context.Context, version int64) error {
	return s.put(ctx, metaBaseVersion, strconv.FormatInt(version, 10))
}

// GetBaseVersion returns nil before the first pull has been persisted.
func (s *SQLiteStore) GetBaseVersion(ctx context.Context) (*int64, error) {
	value, ok, err := s.get(ctx, metaBaseVersion)
	if err != nil || !ok {
		return nil, err
	}
	version, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("%w: base version: %v", common.ErrStoreCorrupted, err)
	}
	return &version, nil
}

// SaveAfterPull records a fresh pull: origin and current both become the
// pulled snapshot, and the pull metadata follows in the same transaction
// so current and baseVersion can never diverge on success.
func (s *SQLiteStore) SaveAfterPull(ctx context.Context, snap model.Snapshot) error {
	if snap.BaseVersion == nil {
		return fmt.Errorf("cannot save pull snapshot without a base version")
	}

	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("failed to marshal snapshot: %w", err)
	}

	return s.inTx(ctx, func(tx *sql.Tx) error {
		writes := map[string]string{
			snapshotKey(model.SlotOrigin):  string(data),
			snapshotKey(model.SlotCurrent): string(data),
			metaLastPullAt:                 snap.SavedAt.UTC().Format(time.RFC3339Nano),
			metaBaseVersion:                strconv.FormatInt(*snap.BaseVersion, 10),
		}
		return putAllTx(ctx, tx, writes)
	})
}

// SaveAfterPush stamps the snapshot with the server-assigned version and
// push time, then records it as both lastPush and current.
func (s *SQLiteStore) SaveAfterPush(ctx context.Context, snap model.Snapshot, pushedAt time.Time, newVersion int64) error {
	stamped := snap.Clone()
	stamped.SavedAt = pushedAt
	stamped.BaseVersion = &newVersion

	data, err := json.Marshal(stamped)
	if err != nil {
		return fmt.Errorf("failed to marshal snapshot: %w", err)
	}

	return s.inTx(ctx, func(tx *sql.Tx) error {
		writes := map[string]string{
			snapshotKey(model.SlotLastPush): string(data),
			snapshotKey(model.SlotCurrent):  string(data),
			metaLastPushAt:                  pushedAt.UTC().Format(time.RFC3339Nano),
			metaBaseVersion:                 strconv.FormatInt(newVersion, 10),
		}
		return putAllTx(ctx, tx, writes)
	})
}

// ClearAll removes every snapshot slot and metadata key.
func (s *SQLiteStore) ClearAll(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx,
		"DELETE FROM kv WHERE key LIKE ? OR key LIKE ?",
		snapshotKeyPrefix+"%", metaKeyPrefix+"%")
	if err != nil {
		return fmt.Errorf("failed to clear store: %w", err)
	}
	return nil
}

func (s *SQLiteStore) inTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return fmt.Errorf("%w (rollback failed: %v)", err, rbErr)
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func putAllTx(ctx context.Context, tx *sql.Tx, writes map[string]string) error {
	now := time.Now().UTC()
	for key, value := range writes {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO kv (key, value, updated_at) VALUES (?, ?, ?)
			ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
			key, value, now); err != nil {
			return fmt.Errorf("failed to write key %s: %w", key, err)
		}
	}
	return nil
}
