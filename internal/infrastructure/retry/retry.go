// Package retry runs provider calls under a bounded exponential backoff.
package retry

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v5"
)

// Config describes the backoff envelope.
type Config struct {
	MaxAttempts   int
	BaseDelay     time.Duration
	MaxDelay      time.Duration
	BackoffFactor float64
	JitterFactor  float64
}

// DefaultConfig is three attempts starting at one second, doubling.
func DefaultConfig() Config {
	return Config{
		MaxAttempts:   3,
		BaseDelay:     time.Second,
		MaxDelay:      8 * time.Second,
		BackoffFactor: 2,
	}
}

// ErrorClassifier reports whether an error is transient and worth another attempt.
type ErrorClassifier func(error) bool

// Retrier executes operations with retries on transient failures only.
type Retrier struct {
	config      Config
	isRetryable ErrorClassifier
	logger      *slog.Logger
}

// NewRetrier creates a Retrier. A nil classifier retries nothing.
func NewRetrier(config Config, classifier ErrorClassifier, logger *slog.Logger) *Retrier {
	if config.MaxAttempts < 1 {
		config.MaxAttempts = 1
	}
	if config.BackoffFactor < 1 {
		config.BackoffFactor = 2
	}
	if config.MaxDelay < config.BaseDelay {
		config.MaxDelay = config.BaseDelay
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Retrier{config: config, isRetryable: classifier, logger: logger}
}

// Do runs operation until it succeeds, fails with a non-retryable error,
// exhausts the attempts, or ctx is done. The last operation error is returned
// unwrapped so callers can match it with errors.Is.
func Do[T any](ctx context.Context, r *Retrier, name string, operation func(ctx context.Context) (T, error)) (T, error) {
	attempt := 0
	op := func() (T, error) {
		attempt++
		result, err := operation(ctx)
		if err == nil {
			if attempt > 1 {
				r.logger.InfoContext(ctx, "operation succeeded after retry",
					"operation", name,
					"attempt", attempt)
			}
			return result, nil
		}

		retryable := r.isRetryable != nil && r.isRetryable(err)
		r.logger.WarnContext(ctx, "operation attempt failed",
			"operation", name,
			"attempt", attempt,
			"max_attempts", r.config.MaxAttempts,
			"retryable", retryable,
			"error", err)
		if !retryable {
			return result, backoff.Permanent(err)
		}
		return result, err
	}

	result, err := backoff.Retry(ctx, op,
		backoff.WithBackOff(r.newBackOff()),
		backoff.WithMaxTries(uint(r.config.MaxAttempts)), // #nosec G115 -- validated >= 1
		backoff.WithMaxElapsedTime(0),
		backoff.WithNotify(func(err error, delay time.Duration) {
			r.logger.InfoContext(ctx, "retry backoff wait",
				"operation", name,
				"attempt", attempt,
				"retry_delay_ms", delay.Milliseconds())
		}),
	)
	var permanent *backoff.PermanentError
	if errors.As(err, &permanent) {
		err = permanent.Err
	}
	return result, err
}

func (r *Retrier) newBackOff() *backoff.ExponentialBackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = r.config.BaseDelay
	b.Multiplier = r.config.BackoffFactor
	b.MaxInterval = r.config.MaxDelay
	b.RandomizationFactor = r.config.JitterFactor
	b.Reset()
	return b
}
