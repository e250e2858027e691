package database

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"strings"
	"time"

	apperrors "github.com/utafrali/storefront/pkg/errors"
)

const (
	startupAttempts = 3
	startupBaseWait = time.Second
	jitterFraction  = 0.25
)

// backoff returns base<<attempt with ±25% jitter: roughly 1s, 2s, 4s.
func backoff(attempt int) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	base := startupBaseWait << attempt
	jitter := time.Duration(float64(base) * jitterFraction * (2*rand.Float64() - 1)) // #nosec G404
	return base + jitter
}

// withStartupRetry runs connect up to startupAttempts times.
func withStartupRetry(ctx context.Context, logger *slog.Logger, store string, connect func() error) error {
	var lastErr error
	for attempt := 0; attempt < startupAttempts; attempt++ {
		if lastErr = connect(); lastErr == nil {
			return nil
		}
		if attempt == startupAttempts-1 {
			break
		}

		wait := backoff(attempt)
		if logger != nil {
			logger.Warn(store+" connection failed, retrying",
				slog.Int("attempt", attempt+1),
				slog.Int("max_attempts", startupAttempts),
				slog.Duration("backoff", wait),
				slog.String("error", lastErr.Error()),
			)
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("connect to %s: %w", store, ctx.Err())
		case <-time.After(wait):
		}
	}
	return fmt.Errorf("connect to %s after %d attempts: %w", store, startupAttempts, lastErr)
}

var connErrorFragments = []string{
	"connection refused",
	"connection reset",
	"broken pipe",
	"no such host",
	"i/o timeout",
	"dial tcp",
	"EOF",
	"server closed the connection unexpectedly",
	"could not connect",
}

// isConnectionError separates network failures, which are worth retrying,
// from SQL errors, which are not.
func isConnectionError(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	for _, f := range connErrorFragments {
		if strings.Contains(msg, f) {
			return true
		}
	}
	return false
}

// IsTransient reports whether a store call failed on a timeout or a dropped
// connection and may succeed if repeated.
func IsTransient(err error) bool {
	return apperrors.IsTransient(err) || isConnectionError(err)
}
