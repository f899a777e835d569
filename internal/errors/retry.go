package errors

import (
	"context"
	"errors"
	"math"
	"time"
)

const (
	MaxRetries        = 3
	InitialBackoff    = 100 * time.Millisecond
	MaxBackoff        = 5 * time.Second
	BackoffMultiplier = 2.0
)

// RetryPolicy bounds how often and how long an operation is retried.
type RetryPolicy struct {
	MaxRetries     int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	Multiplier     float64
	// OnRetry, when set, is called before each wait.
	OnRetry func(attempt int, wait time.Duration, err error)
}

// DefaultRetryPolicy backs off from InitialBackoff by BackoffMultiplier up
// to MaxRetries times.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxRetries:     MaxRetries,
		InitialBackoff: InitialBackoff,
		MaxBackoff:     MaxBackoff,
		Multiplier:     BackoffMultiplier,
	}
}

// Do calls fn until it succeeds, returns a non-retryable error, or the retry
// budget is exhausted. Waits between attempts honor ctx.
func (p RetryPolicy) Do(ctx context.Context, fn func() error) error {
	if fn == nil {
		return nil
	}

	if ctx == nil {
		ctx = context.Background()
	}

	var err error
	for attempt := 0; attempt <= p.MaxRetries; attempt++ {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}

		err = fn()
		if err == nil {
			return nil
		}

		if !IsRetryable(err) || attempt == p.MaxRetries {
			return err
		}

		backoff := p.backoff(attempt + 1)
		if p.OnRetry != nil {
			p.OnRetry(attempt+1, backoff, err)
		}

		wait := time.NewTimer(backoff)
		select {
		case <-ctx.Done():
			wait.Stop()
			return ctx.Err()
		case <-wait.C:
		}
	}

	return err
}

func IsRetryable(err error) bool {
	if err == nil {
		return false
	}

	var appErr *AppError
	if errors.As(err, &appErr) && appErr != nil {
		return appErr.Retryable
	}

	return false
}

func (p RetryPolicy) backoff(attempt int) time.Duration {
	multiplier := p.Multiplier
	if multiplier < 1 {
		multiplier = 1
	}

	delay := time.Duration(float64(p.InitialBackoff) * math.Pow(multiplier, float64(attempt)))
	if p.MaxBackoff > 0 && delay > p.MaxBackoff {
		return p.MaxBackoff
	}

	return delay
}
