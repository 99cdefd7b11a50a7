package nats

import (
	"context"
	"errors"

	"github.com/nats-io/nats.go"

	"github.com/mkorolev/helpcenter-rag/internal/infrastructure/resilience"
)

func classifyNATSError(err error) resilience.Verdict {
	if err == nil {
		return resilience.Verdict{}
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return resilience.Verdict{}
	}
	if resilience.IsCircuitOpen(err) {
		return resilience.Verdict{}
	}
	// Reconnect-window errors clear once the client re-establishes the
	// connection, so they are worth a bounded retry.
	if errors.Is(err, nats.ErrConnectionClosed) ||
		errors.Is(err, nats.ErrConnectionReconnecting) ||
		errors.Is(err, nats.ErrTimeout) ||
		errors.Is(err, nats.ErrNoResponders) {
		return resilience.Verdict{Retry: true, Trip: true}
	}
	return resilience.Verdict{Trip: true}
}
