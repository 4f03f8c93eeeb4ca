package backend

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fintrack/internal/config"
	"fintrack/internal/core"
	"fintrack/internal/log"
	"fintrack/internal/services"
)

func TestFromAppConfig(t *testing.T) {
	_, err := FromAppConfig(nil)
	assert.Error(t, err)

	_, err = FromAppConfig(&config.Config{DataBackend: "sheets"})
	assert.Error(t, err)

	cfg, err := FromAppConfig(&config.Config{
		DataBackend:       "postgres",
		DatabaseURL:       "postgres://localhost/fintrack",
		SnapshotCacheTTL:  time.Minute,
		SnapshotCacheSize: 32,
	})
	require.NoError(t, err)
	assert.Equal(t, PostgresBackend, cfg.Type)
	assert.Equal(t, "postgres://localhost/fintrack", cfg.DatabaseURL)
	assert.Equal(t, time.Minute, cfg.CacheTTL)
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{"memory", Config{Type: MemoryBackend}, false},
		{"sqlite without path", Config{Type: SQLiteBackend}, true},
		{"postgres without url", Config{Type: PostgresBackend}, true},
		{"unknown type", Config{Type: "sheets"}, true},
		{"negative ttl", Config{Type: MemoryBackend, CacheTTL: -time.Second}, true},
		{"cache without size", Config{Type: MemoryBackend, CacheTTL: time.Second}, true},
		{"cache with size", Config{Type: MemoryBackend, CacheTTL: time.Second, CacheSize: 8}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestBackendTypeStrings(t *testing.T) {
	assert.Equal(t, []string{"memory", "sqlite", "postgres"}, GetBackendTypeStrings())
}

func TestCreateMemoryBackend(t *testing.T) {
	f := NewFactory(log.Discard())
	res, err := f.CreateBackend(context.Background(), Config{Type: MemoryBackend})
	require.NoError(t, err)
	defer res.Close()

	assert.Nil(t, res.Cache)
	assert.Equal(t, res.Store, res.Provider)
}

func TestCreateCachedSQLiteBackend(t *testing.T) {
	ctx := context.Background()
	f := NewFactory(log.Discard())
	res, err := f.CreateBackend(ctx, Config{
		Type:         SQLiteBackend,
		SQLiteDBPath: filepath.Join(t.TempDir(), "fintrack.db"),
		CacheTTL:     time.Minute,
		CacheSize:    16,
	})
	require.NoError(t, err)
	defer res.Close()

	require.NotNil(t, res.Cache)
	_, ok := res.Provider.(*services.CachingProvider)
	assert.True(t, ok)

	u, err := res.Store.CreateUser(ctx, core.User{Email: "c@example.com", Name: "C"})
	require.NoError(t, err)

	goals, err := res.Provider.GetGoals(ctx, u.ID)
	require.NoError(t, err)
	assert.Empty(t, goals)
}

func TestCreateBackendRejectsInvalidConfig(t *testing.T) {
	f := NewFactory(nil)
	_, err := f.CreateBackend(context.Background(), Config{Type: SQLiteBackend})
	assert.Error(t, err)
}
