// Package retry runs startup operations (database pings, store connections)
// with exponential backoff.
package retry

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog"
)

// Config bounds one retried operation
type Config struct {
	MaxRetries      uint64
	InitialInterval time.Duration
	MaxInterval     time.Duration
	Multiplier      float64
}

// DefaultConfig suits connecting to a database that is still starting up
func DefaultConfig() Config {
	return Config{
		MaxRetries:      5,
		InitialInterval: 500 * time.Millisecond,
		MaxInterval:     5 * time.Second,
		Multiplier:      1.5,
	}
}

// Permanent marks err as not worth retrying, e.g. a malformed connection string.
// Do returns the wrapped error unchanged.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return backoff.Permanent(err)
}

// Do runs operation until it succeeds, returns a Permanent error, the retries
// are spent or ctx ends. The last operation error is returned.
func Do(ctx context.Context, log zerolog.Logger, name string, operation func() error, cfg Config) error {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = cfg.InitialInterval
	bo.MaxInterval = cfg.MaxInterval
	bo.Multiplier = cfg.Multiplier
	// Attempts are bounded by MaxRetries and ctx only.
	bo.MaxElapsedTime = 0
	bo.Reset()

	policy := backoff.WithContext(backoff.WithMaxRetries(bo, cfg.MaxRetries), ctx)

	attempt := 0
	return backoff.RetryNotify(func() error {
		attempt++
		return operation()
	}, policy, func(err error, wait time.Duration) {
		log.Warn().
			Err(err).
			Str("operation", name).
			Int("attempt", attempt).
			Uint64("max_retries", cfg.MaxRetries).
			Dur("next_attempt_in", wait.Round(time.Millisecond)).
			Msg("startup operation failed, retrying")
	})
}
