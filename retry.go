package go_loco

import (
	"context"
	"fmt"
	"time"
)

// Caller-level retry support.
//
// A session never retries internally: a Failed session is terminal and each
// attempt runs through a fresh Session with fresh crypto state. These helpers
// implement the retry loop callers would otherwise hand-roll, classifying
// failures through IsTemporary/IsFatal so a bad oauth token or a malformed
// key is surfaced immediately instead of burning the retry budget.

// RetryableFunc runs one attempt. It should return nil on success; errors
// are classified with IsTemporary to decide whether another attempt is made.
type RetryableFunc func() error

// MaxRetriesExceededError is returned when every allowed attempt failed with
// a temporary error.
type MaxRetriesExceededError struct {
	Attempts int
	LastErr  error
}

func (e *MaxRetriesExceededError) Error() string {
	return fmt.Sprintf("loco: max retries (%d) exceeded: %v", e.Attempts, e.LastErr)
}

func (e *MaxRetriesExceededError) Unwrap() error {
	return e.LastErr
}

// RetryWithBackoff executes fn with exponential backoff. maxRetries 0 means
// a single attempt; negative means retry until the context is cancelled.
// The backoff doubles each attempt and is capped at 5 minutes. Fatal and
// non-temporary errors return immediately without further attempts.
func RetryWithBackoff(ctx context.Context, maxRetries int, initialBackoff time.Duration, fn RetryableFunc) error {
	const maxBackoff = 5 * time.Minute

	attempt := 0
	backoff := initialBackoff

	for {
		err := fn()
		if err == nil {
			if attempt > 0 {
				Debug("Retry succeeded after %d attempts", attempt)
			}
			return nil
		}

		attempt++

		if IsFatal(err) || !IsTemporary(err) {
			Debug("Not retrying after non-temporary error: %v", err)
			return err
		}
		if maxRetries >= 0 && attempt > maxRetries {
			return &MaxRetriesExceededError{Attempts: attempt, LastErr: err}
		}

		Debug("Attempt %d failed: %v (waiting %v before retry)", attempt, err, backoff)
		select {
		case <-ctx.Done():
			return fmt.Errorf("loco: retry cancelled after %d attempts: %w", attempt, ctx.Err())
		case <-time.After(backoff):
		}

		backoff *= 2
		if backoff > maxBackoff {
			backoff = maxBackoff
		}
	}
}

// ConnectWithRetry runs the full session flow with backoff, constructing a
// fresh session for every attempt. build customizes each new session
// (attach metrics, swap the transport or login payload); it may be nil.
// Returns the first session that reaches Authenticated.
func ConnectWithRetry(ctx context.Context, config *Config, creds *Credentials, maxRetries int, initialBackoff time.Duration, build func(*Session)) (*Session, error) {
	var session *Session

	err := RetryWithBackoff(ctx, maxRetries, initialBackoff, func() error {
		s, err := NewSession(config, creds)
		if err != nil {
			return err
		}
		if build != nil {
			build(s)
		}
		if err := s.Connect(); err != nil {
			s.Close()
			return err
		}
		session = s
		return nil
	})
	if err != nil {
		return nil, err
	}
	return session, nil
}
