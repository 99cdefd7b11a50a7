// Package resilience guards the retrieval engine's outbound calls: the
// embedding provider, the lexical index, the reranker and the queue all run
// behind bounded retries and per-operation circuit breakers. A tripped
// upstream degrades the corresponding search branch; it never fails the
// request on its own.
package resilience

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/sony/gobreaker/v2"
)

// Verdict is a classifier's judgement of one upstream error: whether the
// call is worth repeating, and whether the failure counts toward tripping
// the operation's breaker. Cancellations are neither.
type Verdict struct {
	Retry bool
	Trip  bool
}

type Classifier func(err error) Verdict

// Executor runs upstream calls under one Policy, keyed by operation name
// ("openai.embeddings", "meilisearch.search", ...). Breakers are lazy and
// per-operation, so a dead reranker never opens the embedding breaker.
type Executor struct {
	policy Policy

	mu       sync.Mutex
	breakers map[string]*gobreaker.CircuitBreaker[any]
}

func NewExecutor(policy Policy) *Executor {
	return &Executor{
		policy:   policy.withDefaults(),
		breakers: make(map[string]*gobreaker.CircuitBreaker[any]),
	}
}

func (e *Executor) Execute(
	ctx context.Context,
	operation string,
	fn func(context.Context) error,
	classify Classifier,
) error {
	if fn == nil {
		return fmt.Errorf("resilience: operation callback is nil")
	}
	op := strings.TrimSpace(operation)
	if op == "" {
		op = "unknown"
	}
	if classify == nil {
		classify = func(error) Verdict { return Verdict{Trip: true} }
	}

	if e.policy.BreakerDisabled {
		return e.retry(ctx, op, fn, classify)
	}
	_, err := e.breaker(op, classify).Execute(func() (any, error) {
		return nil, e.retry(ctx, op, fn, classify)
	})
	return err
}

func (e *Executor) retry(
	ctx context.Context,
	operation string,
	fn func(context.Context) error,
	classify Classifier,
) error {
	var lastErr error
	for attempt := 1; attempt <= e.policy.MaxAttempts; attempt++ {
		if attempt > 1 {
			if waitErr := sleep(ctx, e.delayBefore(attempt)); waitErr != nil {
				return lastErr
			}
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		lastErr = fn(ctx)
		if lastErr == nil {
			return nil
		}
		if !classify(lastErr).Retry {
			return lastErr
		}
		if attempt < e.policy.MaxAttempts {
			slog.Warn("upstream_retry",
				"operation", operation,
				"attempt", attempt,
				"max_attempts", e.policy.MaxAttempts,
				"error", lastErr,
			)
		}
	}
	return lastErr
}

// delayBefore doubles the initial delay per completed attempt, capped at
// MaxDelay.
func (e *Executor) delayBefore(attempt int) time.Duration {
	delay := e.policy.InitialDelay
	for i := 2; i < attempt; i++ {
		delay *= 2
		if delay >= e.policy.MaxDelay {
			return e.policy.MaxDelay
		}
	}
	if delay > e.policy.MaxDelay {
		return e.policy.MaxDelay
	}
	return delay
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func (e *Executor) breaker(operation string, classify Classifier) *gobreaker.CircuitBreaker[any] {
	e.mu.Lock()
	defer e.mu.Unlock()

	if breaker, ok := e.breakers[operation]; ok {
		return breaker
	}

	breaker := gobreaker.NewCircuitBreaker[any](gobreaker.Settings{
		Name:        operation,
		MaxRequests: e.policy.BreakerProbes,
		Timeout:     e.policy.BreakerCooldown,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < e.policy.BreakerMinCalls {
				return false
			}
			ratio := float64(counts.TotalFailures) / float64(counts.Requests)
			return ratio >= e.policy.BreakerFailureRatio
		},
		IsSuccessful: func(err error) bool {
			return err == nil || !classify(err).Trip
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			slog.Warn("upstream_breaker_state", "operation", name, "from", from.String(), "to", to.String())
		},
	})
	e.breakers[operation] = breaker
	return breaker
}

func IsCircuitOpen(err error) bool {
	return errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests)
}
