package provider

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/LavaJover/shvark-smm-service/internal/domain"
)

type retryPolicy struct {
	maxRetries     uint64
	initialBackoff time.Duration
	maxBackoff     time.Duration
}

func (p retryPolicy) backOff(ctx context.Context) backoff.BackOff {
	exp := backoff.NewExponentialBackOff()
	exp.InitialInterval = p.initialBackoff
	exp.MaxInterval = p.maxBackoff
	exp.MaxElapsedTime = 0
	return backoff.WithContext(backoff.WithMaxRetries(exp, p.maxRetries), ctx)
}

// do runs op with retries when retryable is set. Only network errors are
// retried; vendor answers are final.
func (a *HTTPAdapter) do(ctx context.Context, action domain.ProviderAction, retryable bool, op func(ctx context.Context) error) error {
	attempt := func() error {
		callCtx, cancel := context.WithTimeout(ctx, a.timeout)
		defer cancel()

		started := time.Now()
		err := op(callCtx)
		a.observe(action, time.Since(started), err)
		if err == nil {
			return nil
		}
		if !retryable || !errors.Is(err, domain.ErrNetwork) {
			return backoff.Permanent(err)
		}
		return err
	}

	if !retryable {
		err := attempt()
		var perm *backoff.PermanentError
		if errors.As(err, &perm) {
			return perm.Err
		}
		return err
	}

	notify := func(err error, wait time.Duration) {
		a.logger.Warn("provider call failed, retrying",
			"action", string(action),
			"wait", wait,
			"error", err,
		)
	}
	return backoff.RetryNotify(attempt, a.policy.backOff(ctx), notify)
}
