// Package backend opens the key-value store the local ledger persists to.
package backend

import (
	"context"

	"expenzoo/internal/storage"
)

// CleanupFunc releases the resources held by a backend.
type CleanupFunc func() error

// BackendResult is an opened store and its cleanup.
type BackendResult struct {
	KV      storage.KV
	Cleanup CleanupFunc
}

// Factory opens backends from configuration.
type Factory interface {
	CreateBackend(ctx context.Context, config Config) (*BackendResult, error)
}

type Config struct {
	Type BackendType

	// SQLite
	DBPath string

	// Memory; seed files are read from here when present
	DataDirectory string
}

type BackendType string

const (
	SQLiteBackend BackendType = "sqlite"
	MemoryBackend BackendType = "memory"
)

func (bt BackendType) String() string {
	return string(bt)
}

func (bt BackendType) IsValid() bool {
	switch bt {
	case SQLiteBackend, MemoryBackend:
		return true
	default:
		return false
	}
}
