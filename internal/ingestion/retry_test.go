package ingestion

import (
	"context"
	"errors"
	"testing"
	"time"
)

// recordingSleeper captures requested waits without sleeping.
type recordingSleeper struct {
	waits []time.Duration
}

func (s *recordingSleeper) sleep(ctx context.Context, d time.Duration) error {
	s.waits = append(s.waits, d)
	return ctx.Err()
}

func TestRetry_Success(t *testing.T) {
	sleeper := &recordingSleeper{}

	attempts := 0
	err := Retry(context.Background(), DefaultRetryPolicy(), sleeper.sleep, func(int) error {
		attempts++
		return nil
	})
	if err != nil {
		t.Fatalf("expected success, got error: %v", err)
	}
	if attempts != 1 {
		t.Errorf("expected 1 attempt, got %d", attempts)
	}
	if len(sleeper.waits) != 0 {
		t.Errorf("expected no waits, got %v", sleeper.waits)
	}
}

func TestRetry_SuccessAfterRetries(t *testing.T) {
	sleeper := &recordingSleeper{}

	attempts := 0
	err := Retry(context.Background(), DefaultRetryPolicy(), sleeper.sleep, func(attempt int) error {
		attempts++
		if attempt < 3 {
			return NewRetryableError(errors.New("temporary error"))
		}
		return nil
	})
	if err != nil {
		t.Fatalf("expected success, got error: %v", err)
	}
	if attempts != 3 {
		t.Errorf("expected 3 attempts, got %d", attempts)
	}

	want := []time.Duration{2 * time.Second, 4 * time.Second}
	if len(sleeper.waits) != len(want) {
		t.Fatalf("expected waits %v, got %v", want, sleeper.waits)
	}
	for i := range want {
		if sleeper.waits[i] != want[i] {
			t.Errorf("wait %d = %v, want %v", i, sleeper.waits[i], want[i])
		}
	}
}

func TestRetry_NonRetryableError(t *testing.T) {
	sleeper := &recordingSleeper{}
	permanent := errors.New("permanent error")

	attempts := 0
	err := Retry(context.Background(), DefaultRetryPolicy(), sleeper.sleep, func(int) error {
		attempts++
		return permanent
	})
	if !errors.Is(err, permanent) {
		t.Fatalf("expected permanent error, got %v", err)
	}
	if attempts != 1 {
		t.Errorf("expected 1 attempt for non-retryable error, got %d", attempts)
	}
}

func TestRetry_MaxAttemptsExceeded(t *testing.T) {
	sleeper := &recordingSleeper{}
	transient := errors.New("temporary error")

	attempts := 0
	err := Retry(context.Background(), DefaultRetryPolicy(), sleeper.sleep, func(int) error {
		attempts++
		return NewRetryableError(transient)
	})
	if err == nil {
		t.Fatal("expected error after max attempts")
	}
	if !errors.Is(err, transient) {
		t.Errorf("expected wrapped transient error, got %v", err)
	}
	if attempts != 3 {
		t.Errorf("expected 3 attempts, got %d", attempts)
	}
	if len(sleeper.waits) != 2 {
		t.Errorf("expected 2 waits, got %d", len(sleeper.waits))
	}
}

func TestRetry_SingleAttemptReturnsErrorUnwrapped(t *testing.T) {
	policy := DefaultRetryPolicy()
	policy.MaxAttempts = 1
	transient := NewRetryableError(errors.New("down"))

	err := Retry(context.Background(), policy, (&recordingSleeper{}).sleep, func(int) error {
		return transient
	})
	if err != transient {
		t.Errorf("expected the attempt's own error, got %v", err)
	}
}

func TestRetry_ContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	attempts := 0
	err := Retry(ctx, DefaultRetryPolicy(), SleepContext, func(int) error {
		attempts++
		cancel()
		return NewRetryableError(errors.New("temporary error"))
	})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
	if attempts != 1 {
		t.Errorf("expected 1 attempt before cancellation, got %d", attempts)
	}
}

func TestRetryPolicy_Backoff(t *testing.T) {
	policy := DefaultRetryPolicy()

	tests := []struct {
		name    string
		attempt int
		err     error
		want    time.Duration
	}{
		{"first step", 1, NewRetryableError(errors.New("x")), 2 * time.Second},
		{"second step", 2, NewRetryableError(errors.New("x")), 4 * time.Second},
		{"retry-after wins", 1, NewRetryableErrorWithDelay(errors.New("x"), 7*time.Second), 7 * time.Second},
		{"retry-after capped", 1, NewRetryableErrorWithDelay(errors.New("x"), 10*time.Minute), 30 * time.Second},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := policy.backoff(tt.attempt, tt.err); got != tt.want {
				t.Errorf("backoff(%d) = %v, want %v", tt.attempt, got, tt.want)
			}
		})
	}
}

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected bool
	}{
		{"nil error", nil, false},
		{"regular error", errors.New("regular"), false},
		{"retryable error", NewRetryableError(errors.New("retryable")), true},
		{"wrapped retryable", errors.Join(errors.New("outer"), NewRetryableError(errors.New("inner"))), true},
		{"status error", &HTTPStatusError{StatusCode: 404, URL: "https://example.com"}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsRetryable(tt.err); got != tt.expected {
				t.Errorf("IsRetryable() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestParseRetryAfter(t *testing.T) {
	tests := []struct {
		header string
		want   time.Duration
	}{
		{"", 0},
		{"5", 5 * time.Second},
		{" 12 ", 12 * time.Second},
		{"-1", 0},
		{"Wed, 21 Oct 2015 07:28:00 GMT", 0},
	}

	for _, tt := range tests {
		if got := parseRetryAfter(tt.header); got != tt.want {
			t.Errorf("parseRetryAfter(%q) = %v, want %v", tt.header, got, tt.want)
		}
	}
}
