package backend

import (
	"context"
	"fmt"

	"fintrack/internal/log"
	"fintrack/internal/services"
	"fintrack/internal/storage"
	"fintrack/internal/storage/memory"
)

var (
	_ services.DataProvider   = storage.Store(nil)
	_ services.RecurringStore = storage.Store(nil)
	_ storage.Store           = (*storage.SQLStore)(nil)
	_ storage.Store           = (*memory.Store)(nil)
)

// DefaultFactory implements the Factory interface
type DefaultFactory struct {
	logger *log.Logger
}

// NewFactory creates a new backend factory
func NewFactory(logger *log.Logger) Factory {
	if logger == nil {
		logger = log.Default(log.ComponentBackend)
	}
	return &DefaultFactory{
		logger: logger,
	}
}

// CreateBackend implements Factory.CreateBackend
func (f *DefaultFactory) CreateBackend(ctx context.Context, config Config) (*BackendResult, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	var (
		result *BackendResult
		err    error
	)
	switch config.Type {
	case SQLiteBackend:
		result, err = f.createSQLBackend(ctx, storage.SQLite, config.SQLiteDBPath)
	case PostgresBackend:
		result, err = f.createSQLBackend(ctx, storage.Postgres, config.DatabaseURL)
	case MemoryBackend:
		result = f.createMemoryBackend()
	default:
		return nil, fmt.Errorf("unsupported backend type: %s", config.Type)
	}
	if err != nil {
		return nil, err
	}

	result.Provider = result.Store
	if config.CacheTTL > 0 {
		result.Cache = services.NewCachingProvider(result.Store, config.CacheSize, config.CacheTTL)
		result.Provider = result.Cache
		f.logger.Info("Snapshot cache enabled",
			"ttl", config.CacheTTL.String(),
			"size", config.CacheSize)
	}
	return result, nil
}

func (f *DefaultFactory) createSQLBackend(ctx context.Context, d storage.Dialect, dsn string) (*BackendResult, error) {
	store, err := storage.Open(ctx, d, dsn, storage.WithLogger(f.logger.WithComponent(log.ComponentStorage)))
	if err != nil {
		return nil, fmt.Errorf("failed to initialize %s store: %w", d, err)
	}

	f.logger.Info("Initialized SQL backend", log.FieldBackend, string(d))

	return &BackendResult{
		Store:   store,
		Cleanup: store.Close,
	}, nil
}

func (f *DefaultFactory) createMemoryBackend() *BackendResult {
	f.logger.Info("Initialized memory backend")

	return &BackendResult{
		Store:   memory.New(),
		Cleanup: nil, // No cleanup needed for memory backend
	}
}
