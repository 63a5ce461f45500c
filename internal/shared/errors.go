package shared

import "fmt"

var (
	ErrNotImplemented = fmt.Errorf("not implemented")

	// Configuration errors
	ErrMissingConfig      = fmt.Errorf("configuration not found")
	ErrInvalidConfig      = fmt.Errorf("invalid configuration")
	ErrMissingCredentials = fmt.Errorf("missing credentials")

	// Authentication and session errors
	ErrAuthFailed       = fmt.Errorf("authentication failed")
	ErrNotAuthenticated = fmt.Errorf("not authenticated")
	ErrSessionExpired   = fmt.Errorf("session expired")
	ErrRefreshFailed    = fmt.Errorf("session refresh failed")
	ErrPermissionDenied = fmt.Errorf("permission denied")
	ErrTimeout          = fmt.Errorf("operation timed out")

	// API and connectivity errors
	ErrAPIRequest         = fmt.Errorf("API request failed")
	ErrServiceUnavailable = fmt.Errorf("service unavailable")
	ErrOffline            = fmt.Errorf("no network connection")
	ErrProjectNotFound    = fmt.Errorf("project not found")
	ErrClipNotFound       = fmt.Errorf("clip not found")

	// Event stream errors
	ErrConnectInProgress = fmt.Errorf("connection already in progress")
	ErrNotConnected      = fmt.Errorf("not connected")

	// Input validation errors
	ErrInvalidInput    = fmt.Errorf("invalid input")
	ErrMissingArgument = fmt.Errorf("missing required argument")
	ErrInvalidFlag     = fmt.Errorf("invalid flag value")
)
