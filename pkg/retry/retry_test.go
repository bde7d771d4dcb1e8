package retry

import (
	"context"
	"errors"
	"testing"
	"time"
)

func fastConfig() *Config {
	return &Config{
		MaxRetries:    3,
		BackoffFactor: 2,
		InitialDelay:  time.Millisecond,
		MaxDelay:      5 * time.Millisecond,
	}
}

func TestRetry_SuccessOnFirstTry(t *testing.T) {
	ctx := context.Background()
	retrier := NewDefaultRetrier()

	counter := 0
	err := retrier.Do(ctx, func() error {
		counter++
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if counter != 1 {
		t.Errorf("expected 1 attempt, got %d", counter)
	}
}

func TestRetry_SuccessAfterRetries(t *testing.T) {
	ctx := context.Background()
	retrier := NewRetrier(fastConfig())

	counter := 0
	var resultValue int
	operation := func() error {
		counter++
		if counter < 3 {
			return errors.New("temporary error")
		}
		resultValue = 42
		return nil
	}

	if err := retrier.Do(ctx, operation); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resultValue != 42 {
		t.Errorf("expected 42, got %d", resultValue)
	}
	if counter != 3 {
		t.Errorf("expected 3 attempts, got %d", counter)
	}
}

func TestRetry_MaxRetriesExceeded(t *testing.T) {
	ctx := context.Background()
	config := fastConfig()
	config.MaxRetries = 2
	retrier := NewRetrier(config)

	expectedErr := errors.New("store unavailable")
	counter := 0
	err := retrier.Do(ctx, func() error {
		counter++
		return expectedErr
	})
	if !errors.Is(err, expectedErr) {
		t.Errorf("expected %v, got %v", expectedErr, err)
	}
	if counter != 3 { // Initial try + 2 retries
		t.Errorf("expected 3 attempts, got %d", counter)
	}
}

func TestRetry_NotRetryable(t *testing.T) {
	errBad := errors.New("bad input")
	config := fastConfig()
	config.Retryable = func(err error) bool { return !errors.Is(err, errBad) }
	retrier := NewRetrier(config)

	counter := 0
	err := retrier.Do(context.Background(), func() error {
		counter++
		return errBad
	})
	if !errors.Is(err, errBad) {
		t.Errorf("expected %v, got %v", errBad, err)
	}
	if counter != 1 {
		t.Errorf("expected 1 attempt, got %d", counter)
	}
}

func TestRetry_OnRetryHook(t *testing.T) {
	config := fastConfig()
	var attempts []int
	config.OnRetry = func(attempt int, delay time.Duration, err error) {
		attempts = append(attempts, attempt)
	}
	retrier := NewRetrier(config)

	_ = retrier.Do(context.Background(), func() error { return errors.New("boom") })

	if len(attempts) != 3 || attempts[0] != 1 || attempts[2] != 3 {
		t.Errorf("unexpected retry attempts: %v", attempts)
	}
}

func TestRetry_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	retrier := NewDefaultRetrier()

	operation := func() error {
		cancel() // Cancel the context during the operation
		return errors.New("operation error after cancel")
	}

	err := retrier.Do(ctx, operation)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

func TestRetry_Backoff(t *testing.T) {
	config := &Config{
		MaxRetries:    2,
		BackoffFactor: 2.0,
		InitialDelay:  50 * time.Millisecond,
		MaxDelay:      time.Second,
	}
	retrier := NewRetrier(config)

	start := time.Now()
	_ = retrier.Do(context.Background(), func() error { return errors.New("error") })
	elapsed := time.Since(start)

	// Two waits: 50ms then 100ms
	if elapsed < 150*time.Millisecond {
		t.Errorf("expected at least 150ms of backoff, got %v", elapsed)
	}
}

func TestDoValue(t *testing.T) {
	retrier := NewRetrier(fastConfig())

	counter := 0
	v, err := DoValue(context.Background(), retrier, func() (string, error) {
		counter++
		if counter == 1 {
			return "", errors.New("flaky")
		}
		return "ok", nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v != "ok" {
		t.Errorf("expected ok, got %q", v)
	}
}
