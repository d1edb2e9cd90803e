package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/praxical/rulesync/internal/config"
	"github.com/praxical/rulesync/internal/remote"
	"github.com/praxical/rulesync/internal/storage"
	"github.com/praxical/rulesync/internal/syncer"
)

// initStore opens the local SQLite store, creating the data directory on
// first run.
func initStore() (*storage.SQLiteStore, error) {
	dbPath, err := config.DatabasePath()
	if err != nil {
		return nil, err
	}

	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	return storage.NewSQLiteStore(dbPath)
}

// initRemote builds the admin console client from configuration.
func initRemote() (*remote.Client, error) {
	cfg, err := config.LoadRemoteConfig()
	if err != nil {
		return nil, err
	}
	return remote.NewClient(cfg)
}

// initManager wires up the full sync stack and hydrates it from the local
// store. The returned cleanup drains pending writes and closes the store.
func initManager(ctx context.Context) (*syncer.Manager, func(), error) {
	store, err := initStore()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open local store: %w", err)
	}

	client, err := initRemote()
	if err != nil {
		if closeErr := store.Close(); closeErr != nil {
			slog.Error("failed to close store", "error", closeErr)
		}
		return nil, nil, err
	}

	manager := syncer.NewManager(store, client)
	manager.Hydrate(ctx)

	cleanup := func() {
		manager.Close()
		if closeErr := store.Close(); closeErr != nil {
			slog.Error("failed to close store", "error", closeErr)
		}
	}
	return manager, cleanup, nil
}

// formatVersion renders an optional version for display.
func formatVersion(v *int64) string {
	if v == nil {
		return "none"
	}
	return fmt.Sprintf("%d", *v)
}

// formatTimestamp renders an optional timestamp for display.
func formatTimestamp(t *time.Time) string {
	if t == nil {
		return "never"
	}
	return t.Local().Format("2006-01-02 15:04:05")
}

// formatActive renders a rule's active flag.
func formatActive(active bool) string {
	if active {
		return "active"
	}
	return "inactive"
}
