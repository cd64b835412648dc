package backend

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"

	"expenzoo/internal/config"
	"expenzoo/internal/ledger"
	"expenzoo/internal/storage"
	"expenzoo/internal/storage/memory"
)

// FromAppConfig converts the application config to a backend config.
func FromAppConfig(appConfig *config.Config) (Config, error) {
	if appConfig == nil {
		return Config{}, fmt.Errorf("app config is nil")
	}

	backendType := BackendType(appConfig.DataBackend)
	if !backendType.IsValid() {
		return Config{}, fmt.Errorf("invalid backend type in config: %s", appConfig.DataBackend)
	}

	dataDir := "data"
	if appConfig.LedgerDBPath != "" {
		dataDir = filepath.Dir(appConfig.LedgerDBPath)
	}
	return Config{
		Type:          backendType,
		DBPath:        appConfig.LedgerDBPath,
		DataDirectory: dataDir,
	}, nil
}

type DefaultFactory struct {
	logger *slog.Logger
}

func NewFactory(logger *slog.Logger) Factory {
	if logger == nil {
		logger = slog.Default()
	}
	return &DefaultFactory{logger: logger}
}

func (f *DefaultFactory) CreateBackend(ctx context.Context, config Config) (*BackendResult, error) {
	switch config.Type {
	case SQLiteBackend:
		if config.DBPath == "" {
			return nil, fmt.Errorf("database path is required for sqlite backend")
		}
		kv, err := storage.NewKVStore(config.DBPath)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize SQLite store: %w", err)
		}
		f.logger.InfoContext(ctx, "Initialized SQLite backend", "db_path", config.DBPath)
		return &BackendResult{KV: kv, Cleanup: kv.Close}, nil

	case MemoryBackend:
		dataDir := config.DataDirectory
		if dataDir == "" {
			dataDir = "data"
		}
		store := memory.NewFromFiles(dataDir, ledger.KeyBudget, ledger.KeyCategories, ledger.KeyExpenses)
		f.logger.InfoContext(ctx, "Initialized memory backend", "data_directory", dataDir)
		return &BackendResult{KV: store, Cleanup: func() error { return nil }}, nil

	default:
		return nil, fmt.Errorf("unsupported backend type: %s", config.Type)
	}
}
