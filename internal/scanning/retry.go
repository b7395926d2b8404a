package scanning

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// RetryingCompleter bounds every model call with a timeout and retries failures with exponential backoff
type RetryingCompleter struct {
	next       Completer
	attempts   int
	timeout    time.Duration
	newBackOff func() backoff.BackOff
}

// NewRetryingCompleter wraps next; attempts counts the first call
func NewRetryingCompleter(next Completer, attempts int, timeout time.Duration) *RetryingCompleter {
	if attempts < 1 {
		attempts = 1
	}
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &RetryingCompleter{
		next:     next,
		attempts: attempts,
		timeout:  timeout,
		newBackOff: func() backoff.BackOff {
			b := backoff.NewExponentialBackOff()
			b.InitialInterval = time.Second
			b.MaxInterval = 10 * time.Second
			b.MaxElapsedTime = 0
			return b
		},
	}
}

// Complete calls the wrapped completer until it succeeds, attempts run out or ctx is done
func (r *RetryingCompleter) Complete(ctx context.Context, prompt string) (string, error) {
	var (
		text    string
		attempt int
	)

	op := func() error {
		attempt++
		attemptCtx, cancel := context.WithTimeout(ctx, r.timeout)
		defer cancel()

		out, err := r.next.Complete(attemptCtx, prompt)
		if err != nil {
			if ctx.Err() != nil {
				return backoff.Permanent(ctx.Err())
			}
			slog.Warn("Model call failed", "attempt", attempt, "max_attempts", r.attempts, "error", err)
			return err
		}
		text = out
		return nil
	}

	policy := backoff.WithContext(backoff.WithMaxRetries(r.newBackOff(), uint64(r.attempts-1)), ctx)
	if err := backoff.Retry(op, policy); err != nil {
		return "", fmt.Errorf("model call failed after %d attempt(s): %w", attempt, err)
	}
	return text, nil
}

// Close closes the wrapped completer
func (r *RetryingCompleter) Close() error {
	return r.next.Close()
}
