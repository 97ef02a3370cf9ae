package utils

import (
	"context"
	"errors"
	"time"

	"github.com/goto/salt/log"
)

// RetryPolicy bounds Retry, the wait before attempt n+1 is Backoff * 2^n
type RetryPolicy struct {
	MaxAttempts int
	Backoff     time.Duration
}

type permanentError struct {
	err error
}

func (p *permanentError) Error() string { return p.err.Error() }
func (p *permanentError) Unwrap() error { return p.err }

// Permanent marks err as not worth retrying, Retry returns the wrapped error as is
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// Retry calls f until it succeeds, returns a Permanent error, the attempts run out or ctx is done
func Retry(ctx context.Context, l log.Logger, policy RetryPolicy, f func() error) error {
	attempts := max(policy.MaxAttempts, 1)

	var err error
	wait := policy.Backoff
	for i := 0; i < attempts; i++ {
		err = f()
		if err == nil {
			return nil
		}

		var permanent *permanentError
		if errors.As(err, &permanent) {
			return permanent.err
		}
		if i == attempts-1 {
			break
		}

		l.Warn("retry: %d, error: %v", i, err)
		select {
		case <-ctx.Done():
			return errors.Join(err, ctx.Err())
		case <-time.After(wait):
		}
		wait *= 2
	}
	return err
}
