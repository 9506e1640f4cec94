package service

import (
	"context"
	"math/rand"
	"time"

	"github.com/timmy/sermonkb/internal/domain"
	"github.com/timmy/sermonkb/internal/logger"
)

// RetryPolicy retries transient provider failures with exponential backoff
// and jitter. Non-transient errors abort immediately.
type RetryPolicy struct {
	MaxAttempts    int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
}

// DefaultRetryPolicy matches the embedding defaults: three attempts
// starting at one second.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts:    3,
		InitialBackoff: time.Second,
		MaxBackoff:     30 * time.Second,
	}
}

// Do runs op, retrying while the returned error is a transient provider
// error. The last error is returned once attempts are exhausted.
func (p RetryPolicy) Do(ctx context.Context, op func(ctx context.Context) error) error {
	attempts := p.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}

	backoff := p.InitialBackoff
	if backoff <= 0 {
		backoff = time.Second
	}

	var err error
	for attempt := 1; attempt <= attempts; attempt++ {
		err = op(ctx)
		if err == nil {
			return nil
		}
		if !domain.IsTransient(err) {
			return err
		}
		if attempt == attempts {
			break
		}

		// Full jitter over the current backoff window
		sleep := time.Duration(rand.Int63n(int64(backoff) + 1))
		logger.CtxWarn(ctx, "Transient provider error on attempt %d/%d, retrying in %s: %v",
			attempt, attempts, sleep.Round(time.Millisecond), err)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(sleep):
		}

		backoff *= 2
		if p.MaxBackoff > 0 && backoff > p.MaxBackoff {
			backoff = p.MaxBackoff
		}
	}
	return err
}
