// Package retry re-runs storage operations that fail transiently.
package retry

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/julianstephens/dayjot/internal/constants"
	jerrors "github.com/julianstephens/dayjot/internal/errors"
	"github.com/julianstephens/dayjot/internal/logger"
)

// Policy bounds how often and how long an operation is retried.
type Policy struct {
	MaxRetries  uint64
	Initial     time.Duration
	MaxInterval time.Duration
	MaxElapsed  time.Duration
}

// DefaultPolicy is used for all storage calls.
var DefaultPolicy = Policy{
	MaxRetries:  constants.StorageMaxRetries,
	Initial:     constants.StorageRetryInitial,
	MaxInterval: constants.StorageRetryMaxWait,
	MaxElapsed:  constants.StorageRetryMaxElapse,
}

func (p Policy) backOff(ctx context.Context) backoff.BackOff {
	eb := backoff.NewExponentialBackOff()
	eb.InitialInterval = p.Initial
	eb.MaxInterval = p.MaxInterval
	eb.MaxElapsedTime = p.MaxElapsed
	return backoff.WithContext(backoff.WithMaxRetries(eb, p.MaxRetries), ctx)
}

// Do runs op, retrying only errors classified as transient storage failures.
// Any other error is returned immediately.
func Do(ctx context.Context, op string, fn func() error) error {
	return DefaultPolicy.Do(ctx, op, fn)
}

func (p Policy) Do(ctx context.Context, op string, fn func() error) error {
	attempt := 0
	return backoff.RetryNotify(func() error {
		attempt++
		err := fn()
		if err == nil || jerrors.IsRetryable(err) {
			return err
		}
		return backoff.Permanent(err)
	}, p.backOff(ctx), func(err error, wait time.Duration) {
		logger.Debug("Retrying storage operation", "op", op, "attempt", attempt, "wait", wait, "error", err)
	})
}

// Value is Do for operations that return a result.
func Value[T any](ctx context.Context, op string, fn func() (T, error)) (T, error) {
	var out T
	err := Do(ctx, op, func() error {
		v, err := fn()
		if err != nil {
			return err
		}
		out = v
		return nil
	})
	return out, err
}
