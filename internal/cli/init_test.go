package cli

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fintrack/internal/config"
	"fintrack/internal/core"
	"fintrack/internal/log"
)

func testConfig() *config.Config {
	return &config.Config{
		DataBackend:         "memory",
		RecommendationLimit: 5,
		ZScoreThreshold:     2.5,
		SpikeWindowDays:     30,
		WorkerConcurrency:   4,
		LogLevel:            "debug",
		LogFormat:           "json",
	}
}

func TestSetupLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := SetupLogger(testConfig(), &buf, log.ComponentCLI)

	logger.Debug("hello", log.FieldUserID, "u1")
	assert.Contains(t, buf.String(), `"component":"cli"`)
	assert.Contains(t, buf.String(), `"user_id":"u1"`)
}

func TestSetupLogger_BadLevelFallsBack(t *testing.T) {
	var buf bytes.Buffer
	cfg := testConfig()
	cfg.LogLevel = "loud"
	logger := SetupLogger(cfg, &buf, log.ComponentCLI)

	assert.Contains(t, buf.String(), "Falling back to info level")
	buf.Reset()
	logger.Debug("hidden")
	assert.Empty(t, buf.String())
}

func TestOpenBackendAndEngine(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig()
	res, err := OpenBackend(ctx, cfg, log.Discard())
	require.NoError(t, err)
	defer res.Close()

	assert.Nil(t, res.Cache)
	engine := NewEngine(cfg, res.Provider, log.Discard())
	recs := engine.GenerateRecommendations(ctx, "nobody", 0)
	require.Len(t, recs, 1)
	assert.Equal(t, core.KindInfo, recs[0].Kind)
}

func TestOpenBackend_Invalid(t *testing.T) {
	cfg := testConfig()
	cfg.DataBackend = "sqlite"
	cfg.SQLiteDBPath = ""
	_, err := OpenBackend(context.Background(), cfg, log.Discard())
	assert.Error(t, err)
}

func TestGracefulShutdown_ParentCancel(t *testing.T) {
	parent, cancel := context.WithCancel(context.Background())
	cleaned := make(chan struct{})
	ctx, done := GracefulShutdown(parent, log.Discard(), time.Second, func(context.Context) {
		close(cleaned)
	})

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("shutdown did not complete")
	}
	assert.Error(t, ctx.Err())
	select {
	case <-cleaned:
	default:
		t.Fatal("cleanup was not called")
	}
	WaitForShutdown(ctx, done)
}

func TestRunUntilDone(t *testing.T) {
	boom := errors.New("broker gone")
	tests := []struct {
		name    string
		fnErr   error
		wantErr error
	}{
		{"failure is reported", boom, boom},
		{"cancellation is clean", context.Canceled, nil},
		{"clean return", nil, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			parent, abort := context.WithCancel(context.Background())
			defer abort()
			ctx, done := GracefulShutdown(parent, log.Discard(), time.Second, nil)

			errc := RunUntilDone(ctx, log.Discard(), abort, func(context.Context) error {
				return tt.fnErr
			})

			// Returning from fn aborts the parent, which completes shutdown.
			WaitForShutdown(ctx, done)
			select {
			case err := <-errc:
				assert.Equal(t, tt.wantErr, err)
			case <-time.After(2 * time.Second):
				t.Fatal("no result from consumer")
			}
		})
	}
}

func TestRunUntilDone_StopsOnShutdown(t *testing.T) {
	parent, abort := context.WithCancel(context.Background())
	defer abort()

	errc := RunUntilDone(parent, log.Discard(), abort, func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	})
	abort()
	select {
	case err := <-errc:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("consumer did not stop")
	}
}
