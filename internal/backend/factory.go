// Package backend opens the key/value store the workspace is persisted in.
package backend

import (
	"context"
	"fmt"

	"weddingsync/internal/log"
	"weddingsync/internal/storage"
	"weddingsync/internal/storage/memory"
)

// CleanupFunc releases the resources of a backend.
type CleanupFunc func() error

// Result is an opened store. Cleanup is never nil.
type Result struct {
	KV      storage.KV
	Cleanup CleanupFunc
	// Ping is nil for backends that cannot be probed.
	Ping func(ctx context.Context) error
}

// Open creates the store described by config.
func Open(config Config, logger *log.Logger) (*Result, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	logger = logger.WithComponent(log.ComponentStorage)

	switch config.Type {
	case SQLiteBackend:
		kv, err := storage.NewSQLiteKV(config.SQLiteDBPath, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize SQLite storage: %w", err)
		}
		logger.Info("Initialized SQLite backend", "db_path", config.SQLiteDBPath)
		return &Result{KV: kv, Cleanup: kv.Close, Ping: kv.Ping}, nil
	case MemoryBackend:
		logger.Warn("Initialized memory backend, data is lost on exit")
		return &Result{KV: memory.New(), Cleanup: func() error { return nil }}, nil
	default:
		return nil, fmt.Errorf("unsupported backend type: %s", config.Type)
	}
}
