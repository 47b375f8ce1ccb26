package social

import "time"

// Transient failures (ErrBusy, ErrConflict) are retried here a bounded number
// of times before surfacing to the caller. Expected outcomes (ErrNotFound,
// ErrEmptyContent, ...) pass through on the first attempt.
const (
	retryAttempts  = 4
	retryBaseDelay = 25 * time.Millisecond
)

// withRetry runs fn, retrying transient errors with doubling backoff.
// The final attempt's error is returned as-is so errors.Is still works.
func withRetry(logger Logger, op string, fn func() error) error {
	var err error
	delay := retryBaseDelay
	for attempt := 1; attempt <= retryAttempts; attempt++ {
		err = fn()
		if err == nil || !IsTransient(err) {
			return err
		}
		if attempt < retryAttempts {
			logger.Debug("retrying after transient error",
				"op", op, "attempt", attempt, "delay", delay, "err", err)
			time.Sleep(delay)
			delay *= 2
		}
	}
	logger.Warn("giving up after transient errors", "op", op, "attempts", retryAttempts, "err", err)
	return err
}
