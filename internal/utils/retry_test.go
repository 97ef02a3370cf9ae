package utils_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/goto/salt/log"
	"github.com/stretchr/testify/assert"

	"github.com/goto/pipewatch/internal/utils"
)

func TestRetry(t *testing.T) {
	logger := log.NewNoop()
	policy := utils.RetryPolicy{MaxAttempts: 3, Backoff: time.Millisecond}

	t.Run("stops at the first success", func(t *testing.T) {
		calls := 0
		err := utils.Retry(context.Background(), logger, policy, func() error {
			calls++
			if calls < 2 {
				return errors.New("connection refused")
			}
			return nil
		})
		assert.NoError(t, err)
		assert.Equal(t, 2, calls)
	})
	t.Run("returns the last error after the retries", func(t *testing.T) {
		calls := 0
		err := utils.Retry(context.Background(), logger, policy, func() error {
			calls++
			return errors.New("connection refused")
		})
		assert.ErrorContains(t, err, "connection refused")
		assert.Equal(t, 3, calls)
	})
	t.Run("does not retry a permanent error", func(t *testing.T) {
		calls := 0
		notFound := errors.New("not found")
		err := utils.Retry(context.Background(), logger, policy, func() error {
			calls++
			return utils.Permanent(notFound)
		})
		assert.ErrorIs(t, err, notFound)
		assert.Equal(t, 1, calls)
	})
	t.Run("gives up when the context is done", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		calls := 0
		err := utils.Retry(ctx, logger, utils.RetryPolicy{MaxAttempts: 5, Backoff: time.Second}, func() error {
			calls++
			return errors.New("connection refused")
		})
		assert.ErrorIs(t, err, context.Canceled)
		assert.Equal(t, 1, calls)
	})
	t.Run("runs once when no attempts are configured", func(t *testing.T) {
		calls := 0
		_ = utils.Retry(context.Background(), logger, utils.RetryPolicy{}, func() error {
			calls++
			return errors.New("boom")
		})
		assert.Equal(t, 1, calls)
	})
}
