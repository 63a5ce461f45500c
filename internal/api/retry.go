package api

import (
	"math/rand"
	"net/http"
	"time"
)

// retryableStatuses are the transient server statuses worth retrying.
var retryableStatuses = map[int]bool{
	http.StatusRequestTimeout:      true,
	http.StatusTooManyRequests:     true,
	http.StatusInternalServerError: true,
	http.StatusBadGateway:          true,
	http.StatusServiceUnavailable:  true,
	http.StatusGatewayTimeout:      true,
}

// RetryPolicy decides whether a failed request is retried and how long to
// wait between attempts.
//
// Only idempotent methods (GET/HEAD/OPTIONS) are ever retried. Delays grow
// exponentially from BaseDelay with up to 30% random jitter, clamped to
// MaxDelay.
type RetryPolicy struct {
	MaxRetries int
	BaseDelay  time.Duration
	MaxDelay   time.Duration

	// jitter overrides the random source in tests; returns a value in [0, 1).
	jitter func() float64
}

// DefaultRetryPolicy returns the policy used by the pipeline unless
// configured otherwise: 3 retries, 1s base, 10s cap.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxRetries: 3,
		BaseDelay:  time.Second,
		MaxDelay:   10 * time.Second,
	}
}

// ShouldRetry reports whether another attempt is allowed for the given
// failure. status is 0 when the request never produced a response, in which
// case err is the transport error.
func (p RetryPolicy) ShouldRetry(method string, status int, err error, attempt int) bool {
	if attempt >= p.MaxRetries {
		return false
	}
	if !isIdempotent(method) {
		return false
	}
	if status != 0 {
		return retryableStatuses[status]
	}
	return isTransient(err)
}

// Delay computes the backoff before retry attempt (0-based): base*2^attempt
// plus up to 30% jitter, then clamped to MaxDelay.
func (p RetryPolicy) Delay(attempt int) time.Duration {
	base := p.BaseDelay
	if base <= 0 {
		base = time.Second
	}
	max := p.MaxDelay
	if max <= 0 {
		max = 10 * time.Second
	}

	backoff := base << uint(attempt)
	jitter := p.jitter
	if jitter == nil {
		jitter = rand.Float64
	}
	delay := backoff + time.Duration(0.3*jitter()*float64(backoff))
	if delay > max {
		delay = max
	}
	return delay
}

func isIdempotent(method string) bool {
	switch method {
	case http.MethodGet, http.MethodHead, http.MethodOptions:
		return true
	default:
		return false
	}
}
