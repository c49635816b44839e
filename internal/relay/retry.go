package relay

import (
	"context"
	"errors"
	"time"

	"github.com/chandu-koti/whatsapp-translation-bot-prod/internal/models"
	"github.com/chandu-koti/whatsapp-translation-bot-prod/internal/translate"
)

// retryWithBackoff runs op up to attempts times with exponential backoff
// (base, 2*base, 4*base, ...) between attempts. Each attempt gets its own
// timeout derived from ctx. Non-retryable errors stop immediately; exceeding
// the budget returns the last error as the permanent failure.
func retryWithBackoff(ctx context.Context, attempts int, base, timeout time.Duration, op func(ctx context.Context) error) error {
	if attempts <= 0 {
		attempts = 1
	}

	var err error
	for attempt := 0; attempt < attempts; attempt++ {
		if attempt > 0 {
			backoff := base * (1 << (attempt - 1))
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return ctx.Err()
			}
		}

		callCtx, cancel := context.WithTimeout(ctx, timeout)
		err = op(callCtx)
		cancel()

		if err == nil {
			return nil
		}
		if !isRetryable(err) {
			return err
		}
	}
	return err
}

// isRetryable reports whether err is a transient provider or delivery
// failure. Raw deadline errors from a call that never got classified count as
// transient timeouts.
func isRetryable(err error) bool {
	if translate.Retryable(err) {
		return true
	}
	var de *models.DeliveryError
	if errors.As(err, &de) {
		return de.Retryable
	}
	return errors.Is(err, context.DeadlineExceeded)
}
