package resilience

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"
)

func fastPolicy() Policy {
	return Policy{
		MaxAttempts:     3,
		InitialDelay:    time.Millisecond,
		MaxDelay:        2 * time.Millisecond,
		BreakerDisabled: true,
	}
}

func alwaysRetry(error) Verdict {
	return Verdict{Retry: true, Trip: true}
}

func TestExecuteRetriesUntilSuccess(t *testing.T) {
	executor := NewExecutor(fastPolicy())

	calls := 0
	err := executor.Execute(context.Background(), "op", func(context.Context) error {
		calls++
		if calls < 3 {
			return errors.New("transient")
		}
		return nil
	}, alwaysRetry)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if calls != 3 {
		t.Fatalf("calls = %d, want 3", calls)
	}
}

func TestExecuteExhaustsAttempts(t *testing.T) {
	executor := NewExecutor(fastPolicy())

	calls := 0
	err := executor.Execute(context.Background(), "op", func(context.Context) error {
		calls++
		return errors.New("still failing")
	}, alwaysRetry)
	if err == nil {
		t.Fatal("expected error after exhausted retries")
	}
	if calls != 3 {
		t.Fatalf("calls = %d, want 3", calls)
	}
}

func TestExecuteNonRetryableStopsImmediately(t *testing.T) {
	executor := NewExecutor(fastPolicy())

	calls := 0
	err := executor.Execute(context.Background(), "op", func(context.Context) error {
		calls++
		return errors.New("permanent")
	}, func(error) Verdict {
		return Verdict{Trip: true}
	})
	if err == nil {
		t.Fatal("expected error")
	}
	if calls != 1 {
		t.Fatalf("calls = %d, want 1", calls)
	}
}

func TestExecuteRespectsCancelledContext(t *testing.T) {
	executor := NewExecutor(fastPolicy())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	calls := 0
	err := executor.Execute(ctx, "op", func(context.Context) error {
		calls++
		return nil
	}, nil)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("want context.Canceled, got %v", err)
	}
	if calls != 0 {
		t.Fatalf("calls = %d, want 0", calls)
	}
}

func TestDelayDoublesUpToCap(t *testing.T) {
	executor := NewExecutor(Policy{
		MaxAttempts:     5,
		InitialDelay:    10 * time.Millisecond,
		MaxDelay:        25 * time.Millisecond,
		BreakerDisabled: true,
	})

	want := []time.Duration{10 * time.Millisecond, 20 * time.Millisecond, 25 * time.Millisecond, 25 * time.Millisecond}
	for i, attempt := range []int{2, 3, 4, 5} {
		if got := executor.delayBefore(attempt); got != want[i] {
			t.Errorf("delayBefore(%d) = %v, want %v", attempt, got, want[i])
		}
	}
}

func TestBreakerOpensAfterFailures(t *testing.T) {
	executor := NewExecutor(Policy{
		MaxAttempts:         1,
		InitialDelay:        time.Millisecond,
		MaxDelay:            time.Millisecond,
		BreakerMinCalls:     3,
		BreakerFailureRatio: 0.5,
		BreakerCooldown:     time.Minute,
		BreakerProbes:       1,
	})

	fail := func(context.Context) error { return errors.New("down") }
	for i := 0; i < 3; i++ {
		_ = executor.Execute(context.Background(), "flaky", fail, alwaysRetry)
	}

	err := executor.Execute(context.Background(), "flaky", fail, alwaysRetry)
	if !IsCircuitOpen(err) {
		t.Fatalf("breaker should be open, got %v", err)
	}
}

func TestBreakersAreIndependentPerOperation(t *testing.T) {
	executor := NewExecutor(Policy{
		MaxAttempts:         1,
		InitialDelay:        time.Millisecond,
		MaxDelay:            time.Millisecond,
		BreakerMinCalls:     3,
		BreakerFailureRatio: 0.5,
		BreakerCooldown:     time.Minute,
		BreakerProbes:       1,
	})

	fail := func(context.Context) error { return errors.New("down") }
	for i := 0; i < 4; i++ {
		_ = executor.Execute(context.Background(), "cohere.rerank", fail, alwaysRetry)
	}

	err := executor.Execute(context.Background(), "openai.embeddings", func(context.Context) error {
		return nil
	}, alwaysRetry)
	if err != nil {
		t.Fatalf("a tripped reranker must not affect the embedding breaker: %v", err)
	}
}

func TestClassifyHTTPError(t *testing.T) {
	cases := []struct {
		name  string
		err   error
		retry bool
		trip  bool
	}{
		{"cancelled", context.Canceled, false, false},
		{"deadline", context.DeadlineExceeded, false, false},
		{"throttled", &HTTPStatusError{StatusCode: http.StatusTooManyRequests}, true, true},
		{"server fault", &HTTPStatusError{StatusCode: http.StatusBadGateway}, true, true},
		{"bad request", &HTTPStatusError{StatusCode: http.StatusBadRequest}, false, false},
		{"not found", &HTTPStatusError{StatusCode: http.StatusNotFound}, false, false},
		{"unknown", errors.New("boom"), false, true},
	}
	for _, tc := range cases {
		got := ClassifyHTTPError(tc.err)
		if got.Retry != tc.retry || got.Trip != tc.trip {
			t.Errorf("%s: verdict = %+v, want retry=%v trip=%v", tc.name, got, tc.retry, tc.trip)
		}
	}
}

func TestHTTPStatusErrorMessage(t *testing.T) {
	err := &HTTPStatusError{Service: "openai", Operation: "embeddings", StatusCode: 429, Status: "429 Too Many Requests", Body: "slow down"}
	msg := err.Error()
	if msg != "openai embeddings status: 429 Too Many Requests: slow down" {
		t.Fatalf("message = %q", msg)
	}
}
