package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"syscall"

	"github.com/quietloop/foliox/internal/shared"
)

// defaultPermissionMessage substitutes for 403 responses whose body carries
// no error text.
const defaultPermissionMessage = "You do not have permission to perform this action"

// Error is the normalized failure value returned by the request pipeline.
//
// StatusCode is 0 for pure transport failures (the request never produced an
// HTTP response).
type Error struct {
	Message    string
	Details    map[string][]string
	StatusCode int

	// offline marks transport failures that look like missing connectivity
	// rather than a flaky remote.
	offline bool
}

func (e *Error) Error() string {
	if e.StatusCode == 0 {
		return e.Message
	}
	return fmt.Sprintf("%s (status %d)", e.Message, e.StatusCode)
}

// Unwrap maps the error onto the shared sentinel taxonomy so callers can use
// errors.Is without inspecting status codes.
func (e *Error) Unwrap() error {
	switch e.StatusCode {
	case 0:
		if e.offline {
			return shared.ErrOffline
		}
		return shared.ErrAPIRequest
	case http.StatusUnauthorized:
		return shared.ErrSessionExpired
	case http.StatusForbidden:
		return shared.ErrPermissionDenied
	default:
		return shared.ErrAPIRequest
	}
}

// errorEnvelope is the backend's wire format for non-2xx responses.
type errorEnvelope struct {
	Error   string              `json:"error"`
	Details map[string][]string `json:"details"`
}

// classifyResponse builds a normalized [*Error] from a non-2xx response body.
func classifyResponse(status int, body []byte) *Error {
	var envelope errorEnvelope
	_ = json.Unmarshal(body, &envelope)

	message := envelope.Error
	if message == "" {
		if status == http.StatusForbidden {
			message = defaultPermissionMessage
		} else {
			message = http.StatusText(status)
		}
	}

	return &Error{
		Message:    message,
		Details:    envelope.Details,
		StatusCode: status,
	}
}

// classifyTransport builds a normalized [*Error] for a request that produced
// no HTTP response at all.
func classifyTransport(err error) *Error {
	apiErr := &Error{StatusCode: 0}
	if isOffline(err) {
		apiErr.offline = true
		apiErr.Message = "no network connection, check your connectivity"
	} else {
		apiErr.Message = fmt.Sprintf("request failed: %v", err)
	}
	return apiErr
}

// isTransient reports whether a transport error indicates a condition worth
// retrying: timeouts, connection resets, refused or unreachable hosts.
// Caller-initiated cancellation is never transient.
func isTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	if errors.Is(err, syscall.ECONNRESET) || errors.Is(err, syscall.ECONNREFUSED) || errors.Is(err, syscall.EPIPE) {
		return true
	}

	var opErr *net.OpError
	return errors.As(err, &opErr)
}

// isOffline reports whether the error looks like absent connectivity
// (unreachable network or failed name resolution) rather than a remote fault.
func isOffline(err error) bool {
	if errors.Is(err, syscall.ENETUNREACH) || errors.Is(err, syscall.ENETDOWN) || errors.Is(err, syscall.EHOSTUNREACH) {
		return true
	}
	var dnsErr *net.DNSError
	return errors.As(err, &dnsErr)
}
