package go_loco

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestRetryWithBackoffSucceedsAfterTemporaryFailures(t *testing.T) {
	attempts := 0
	err := RetryWithBackoff(context.Background(), 5, time.Millisecond, func() error {
		attempts++
		if attempts < 3 {
			return ErrTransport
		}
		return nil
	})
	if err != nil {
		t.Fatalf("RetryWithBackoff = %v", err)
	}
	if attempts != 3 {
		t.Errorf("attempts = %d, want 3", attempts)
	}
}

func TestRetryWithBackoffStopsOnFatal(t *testing.T) {
	attempts := 0
	err := RetryWithBackoff(context.Background(), 5, time.Millisecond, func() error {
		attempts++
		return ErrKeyFormat
	})
	if !errors.Is(err, ErrKeyFormat) {
		t.Errorf("RetryWithBackoff = %v, want ErrKeyFormat", err)
	}
	if attempts != 1 {
		t.Errorf("attempts = %d, want 1 (fatal must not retry)", attempts)
	}
}

func TestRetryWithBackoffStopsOnTokenRejection(t *testing.T) {
	attempts := 0
	err := RetryWithBackoff(context.Background(), 5, time.Millisecond, func() error {
		attempts++
		return NewStageError(StateLoggingIn, NewStatusError(LOCO_CMD_LOGINLIST, LOCO_STATUS_TOKEN_EXPIRED))
	})
	if !errors.Is(err, ErrTokenInvalid) {
		t.Errorf("RetryWithBackoff = %v, want ErrTokenInvalid", err)
	}
	if attempts != 1 {
		t.Errorf("attempts = %d, want 1 (token rejection must not retry)", attempts)
	}
}

func TestRetryWithBackoffExhaustsBudget(t *testing.T) {
	attempts := 0
	err := RetryWithBackoff(context.Background(), 2, time.Millisecond, func() error {
		attempts++
		return ErrTimeout
	})
	var exceeded *MaxRetriesExceededError
	if !errors.As(err, &exceeded) {
		t.Fatalf("RetryWithBackoff = %v, want MaxRetriesExceededError", err)
	}
	if !errors.Is(err, ErrTimeout) {
		t.Error("last error not reachable through MaxRetriesExceededError")
	}
	if attempts != 3 {
		t.Errorf("attempts = %d, want 3 (initial + 2 retries)", attempts)
	}
}

func TestRetryWithBackoffRespectsContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := RetryWithBackoff(ctx, -1, time.Hour, func() error {
		return ErrTransport
	})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("RetryWithBackoff = %v, want context.Canceled", err)
	}
}
