package resilience

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
)

// HTTPStatusError carries a non-2xx upstream response so classifiers can
// distinguish throttling and server faults from permanent request errors.
type HTTPStatusError struct {
	Service    string
	Operation  string
	StatusCode int
	Status     string
	Body       string
}

func (e *HTTPStatusError) Error() string {
	if e == nil {
		return "upstream status error"
	}
	if strings.TrimSpace(e.Body) == "" {
		return fmt.Sprintf("%s %s status: %s", e.Service, e.Operation, e.Status)
	}
	return fmt.Sprintf("%s %s status: %s: %s", e.Service, e.Operation, e.Status, strings.TrimSpace(e.Body))
}

// ClassifyHTTPError is the shared classifier for the engine's REST upstreams
// (embedding provider, lexical index, reranker). Cancellation never trips a
// breaker; transport faults and retryable statuses do.
func ClassifyHTTPError(err error) Verdict {
	if err == nil {
		return Verdict{}
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return Verdict{}
	}
	if IsCircuitOpen(err) {
		return Verdict{}
	}

	var statusErr *HTTPStatusError
	if errors.As(err, &statusErr) {
		if isRetryableHTTPStatus(statusErr.StatusCode) {
			return Verdict{Retry: true, Trip: true}
		}
		// 4xx request errors: repeating the same request cannot help,
		// and a bad request says nothing about upstream health.
		return Verdict{}
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return Verdict{Retry: true, Trip: true}
	}

	return Verdict{Trip: true}
}

func isRetryableHTTPStatus(statusCode int) bool {
	switch statusCode {
	case http.StatusRequestTimeout, http.StatusTooManyRequests, http.StatusInternalServerError, http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return true
	default:
		return false
	}
}
