package apiclient

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v5"
)

type retryPolicy struct {
	maxAttempts int
	initial     time.Duration
	max         time.Duration
}

func (p retryPolicy) backOff() backoff.BackOff {
	eb := backoff.NewExponentialBackOff()
	eb.InitialInterval = p.initial
	eb.Multiplier = 2
	eb.RandomizationFactor = 0
	eb.MaxInterval = p.max
	return eb
}

// run executes attempt up to maxAttempts times. Errors that cannot improve on retry stop
// the loop immediately.
func (p retryPolicy) run(ctx context.Context, attempt func() error, notify func(error, time.Duration)) error {
	if p.maxAttempts <= 1 {
		return attempt()
	}

	op := func() (struct{}, error) {
		err := attempt()
		if err != nil && (ctx.Err() != nil || !retryable(err)) {
			return struct{}{}, backoff.Permanent(err)
		}
		return struct{}{}, err
	}

	opts := []backoff.RetryOption{
		backoff.WithBackOff(p.backOff()),
		backoff.WithMaxTries(uint(p.maxAttempts)),
	}
	if notify != nil {
		opts = append(opts, backoff.WithNotify(notify))
	}

	_, err := backoff.Retry(ctx, op, opts...)
	var perm *backoff.PermanentError
	if errors.As(err, &perm) {
		return perm.Err
	}
	return err
}

func retryable(err error) bool {
	if errors.Is(err, ErrUnauthorized) || errors.Is(err, ErrInvalidResponse) {
		return false
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Temporary() || apiErr.Status == http.StatusRequestTimeout
	}
	return true
}
