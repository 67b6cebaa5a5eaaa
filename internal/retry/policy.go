package retry

import (
	"context"
	"time"

	goretry "github.com/sethvargo/go-retry"
)

// Policy retries an operation with exponential backoff for a fixed number of
// attempts.
type Policy struct {
	// MaxAttempts is the total number of tries, including the first.
	MaxAttempts int
	// InitialBackoff is the pause after the first failure. It doubles for
	// each following failure.
	InitialBackoff time.Duration
	// MaxBackoff caps a single pause. Zero means no cap.
	MaxBackoff time.Duration
}

// Retryable reports whether an error is worth another attempt.
type Retryable func(err error) bool

// Do calls fn until it succeeds, returns an error that retryable rejects,
// the attempts run out or ctx ends. The last error from fn is returned.
func (p Policy) Do(ctx context.Context, retryable Retryable, fn func(ctx context.Context) error) error {
	return goretry.Do(ctx, p.backoff(), func(ctx context.Context) error {
		err := fn(ctx)
		if err != nil && retryable != nil && retryable(err) {
			return goretry.RetryableError(err)
		}
		return err
	})
}

func (p Policy) backoff() goretry.Backoff {
	attempts := p.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}
	initial := p.InitialBackoff
	if initial <= 0 {
		initial = time.Millisecond
	}

	b := goretry.NewExponential(initial)
	if p.MaxBackoff > 0 {
		b = goretry.WithCappedDuration(p.MaxBackoff, b)
	}
	return goretry.WithMaxRetries(uint64(attempts-1), b)
}
