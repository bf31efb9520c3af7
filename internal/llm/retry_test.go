package llm

import (
	"context"
	"errors"
	"testing"
	"time"
)

func fastPolicy() RetryPolicy {
	return RetryPolicy{
		MaxRetries:   2,
		InitialDelay: time.Millisecond,
		MaxDelay:     5 * time.Millisecond,
		Multiplier:   2.0,
		Jitter:       false,
	}
}

func TestRetrySucceedsFirstAttempt(t *testing.T) {
	calls := 0
	got, err := RetryWithPolicy(context.Background(), fastPolicy(),
		func(ctx context.Context) (string, error) {
			calls++
			return "ok", nil
		}, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "ok" || calls != 1 {
		t.Errorf("got %q after %d calls, want %q after 1", got, calls, "ok")
	}
}

func TestRetryNonRetryableFailsImmediately(t *testing.T) {
	authErr := &ProviderError{Err: errors.New("invalid api key"), Class: RetryClassNonRetryable}
	calls := 0
	_, err := RetryWithPolicy(context.Background(), fastPolicy(),
		func(ctx context.Context) (string, error) {
			calls++
			return "", authErr
		}, nil)
	if !errors.Is(err, authErr) {
		t.Errorf("error = %v, want the original provider error", err)
	}
	if calls != 1 {
		t.Errorf("made %d calls, want 1", calls)
	}
}

func TestRetryRetryableExhausts(t *testing.T) {
	rateErr := &ProviderError{Err: errors.New("rate limit"), Class: RetryClassRetryable}
	calls := 0
	retries := 0
	_, err := RetryWithPolicy(context.Background(), fastPolicy(),
		func(ctx context.Context) (string, error) {
			calls++
			return "", rateErr
		},
		func(attempt int, delay time.Duration, err error) {
			retries++
		})

	var exhausted *RetryExhaustedError
	if !errors.As(err, &exhausted) {
		t.Fatalf("error = %v, want RetryExhaustedError", err)
	}
	if calls != 3 {
		t.Errorf("made %d calls, want 3 (initial + 2 retries)", calls)
	}
	if retries != 2 {
		t.Errorf("onRetry called %d times, want 2", retries)
	}
}

func TestRetryMaybeClassGetsOneExtraAttempt(t *testing.T) {
	calls := 0
	_, err := RetryWithPolicy(context.Background(), fastPolicy(),
		func(ctx context.Context) (string, error) {
			calls++
			return "", &StructuredOutputError{Errors: []string{"bad json"}}
		}, nil)

	var exhausted *RetryExhaustedError
	if !errors.As(err, &exhausted) {
		t.Fatalf("error = %v, want RetryExhaustedError", err)
	}
	if calls != 2 {
		t.Errorf("made %d calls, want 2", calls)
	}
}

func TestRetryRecoversAfterFailure(t *testing.T) {
	calls := 0
	got, err := RetryWithPolicy(context.Background(), fastPolicy(),
		func(ctx context.Context) (string, error) {
			calls++
			if calls == 1 {
				return "", &ProviderError{Err: errors.New("service unavailable"), Class: RetryClassRetryable}
			}
			return "recovered", nil
		}, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "recovered" || calls != 2 {
		t.Errorf("got %q after %d calls, want %q after 2", got, calls, "recovered")
	}
}

func TestRetryHonorsContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	policy := fastPolicy()
	policy.InitialDelay = time.Minute

	_, err := RetryWithPolicy(ctx, policy,
		func(ctx context.Context) (string, error) {
			return "", &ProviderError{Err: errors.New("rate limit"), Class: RetryClassRetryable}
		}, nil)
	if err == nil || !errors.Is(err, context.Canceled) {
		t.Errorf("error = %v, want context.Canceled", err)
	}
}

func TestClassifyError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want RetryClass
	}{
		{"nil", nil, RetryClassNonRetryable},
		{"rate limit text", errors.New("429 too many requests"), RetryClassRetryable},
		{"server error", errors.New("502 bad gateway"), RetryClassRetryable},
		{"network", errors.New("connection refused"), RetryClassRetryable},
		{"deadline", errors.New("context deadline exceeded"), RetryClassMaybe},
		{"context overflow", errors.New("maximum context length exceeded"), RetryClassMaybe},
		{"auth", errors.New("401 unauthorized"), RetryClassNonRetryable},
		{"unknown", errors.New("something odd"), RetryClassNonRetryable},
		{"wrapped provider class wins", &ProviderError{Err: errors.New("weird"), Class: RetryClassRetryable}, RetryClassRetryable},
		{"structured output", &StructuredOutputError{Errors: []string{"invalid"}}, RetryClassMaybe},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ClassifyError(tt.err); got != tt.want {
				t.Errorf("ClassifyError(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}

func TestExtractRetryAfter(t *testing.T) {
	err := &ProviderError{Err: errors.New("rate limit"), RetryAfter: "3"}
	if got := ExtractRetryAfter(err); got != 3*time.Second {
		t.Errorf("ExtractRetryAfter = %v, want 3s", got)
	}
	if got := ExtractRetryAfter(errors.New("plain")); got != 0 {
		t.Errorf("ExtractRetryAfter(plain) = %v, want 0", got)
	}
}
