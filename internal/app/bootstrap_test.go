package app_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"vectorproxy/internal/app"
	"vectorproxy/internal/config"
)

func TestWithRetry(t *testing.T) {
	t.Run("Success", func(t *testing.T) {
		calls := 0
		err := app.WithRetry(context.Background(), 1, time.Millisecond, func(context.Context) error {
			calls++
			return nil
		})
		assert.NoError(t, err)
		assert.Equal(t, 1, calls)
	})

	t.Run("Retries", func(t *testing.T) {
		calls := 0
		err := app.WithRetry(context.Background(), 5, time.Millisecond, func(context.Context) error {
			calls++
			if calls <= 2 {
				return errors.New("schema error")
			}
			return nil
		})
		assert.NoError(t, err)
		assert.Equal(t, 3, calls)
	})

	t.Run("Fail", func(t *testing.T) {
		calls := 0
		err := app.WithRetry(context.Background(), 3, time.Millisecond, func(context.Context) error {
			calls++
			return errors.New("permanent error")
		})
		assert.EqualError(t, err, "permanent error")
		assert.Equal(t, 3, calls)
	})

	t.Run("ContextCancelled", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		err := app.WithRetry(ctx, 3, time.Hour, func(context.Context) error {
			return errors.New("down")
		})
		assert.ErrorIs(t, err, context.Canceled)
	})
}

func TestBootstrap_DBDown(t *testing.T) {
	cfg := &config.Config{
		DBHost:                     "localhost",
		DBPort:                     54322,
		DBUser:                     "test",
		DBPass:                     "test",
		DBName:                     "test",
		BootstrapRetryAttempts:     1,
		BootstrapRetryDelaySeconds: 0,
	}

	start := time.Now()
	deps, err := app.Bootstrap(context.Background(), cfg)

	assert.Error(t, err)
	assert.Nil(t, deps)
	assert.Contains(t, err.Error(), "failed to ping db")
	assert.Less(t, time.Since(start), 5*time.Second)
}

func TestDependencies_CloseEmpty(t *testing.T) {
	assert.NoError(t, (&app.Dependencies{}).Close())
}
