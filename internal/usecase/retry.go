package usecase

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// RetryPolicy bounds the config-store write retry. Initial <= 0 retries
// without delay.
type RetryPolicy struct {
	Attempts int
	Initial  time.Duration
	Max      time.Duration
}

func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{Attempts: 3, Initial: time.Second, Max: 5 * time.Second}
}

func (p RetryPolicy) backOff(ctx context.Context) backoff.BackOff {
	var b backoff.BackOff = &backoff.ZeroBackOff{}
	if p.Initial > 0 {
		eb := backoff.NewExponentialBackOff()
		eb.InitialInterval = p.Initial
		if p.Max > 0 {
			eb.MaxInterval = p.Max
		}
		eb.MaxElapsedTime = 0
		b = eb
	}
	attempts := p.Attempts
	if attempts < 1 {
		attempts = 1
	}
	return backoff.WithContext(backoff.WithMaxRetries(b, uint64(attempts-1)), ctx)
}

// retry runs op until it succeeds, returns a backoff.Permanent error or the
// policy is exhausted. It reports how many times op ran.
func retry(ctx context.Context, p RetryPolicy, op func() error) (int, error) {
	attempts := 0
	err := backoff.Retry(func() error {
		attempts++
		return op()
	}, p.backOff(ctx))
	return attempts, err
}
