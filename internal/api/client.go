package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/quietloop/foliox/internal/shared"
	"golang.org/x/time/rate"
)

const (
	csrfCookieName  = "csrftoken"
	csrfHeaderName  = "X-CSRFToken"
	requestIDHeader = "X-Request-ID"

	csrfPath    = "/auth/csrf/"
	refreshPath = "/auth/refresh/"
)

// publicPrefixes lists request paths that never trigger a session refresh.
// Unauthenticated visitors hit these; a 401 there is not a recoverable
// session expiry.
var publicPrefixes = []string{"/auth/", "/explore", "/pricing", "/legal", "/invites"}

// reservedSegments are top-level path segments that are application routes,
// not public profile handles.
var reservedSegments = map[string]bool{
	"projects": true, "clips": true, "battles": true, "quizzes": true,
	"chat": true, "market": true, "billing": true, "admin": true,
	"me": true, "notifications": true, "search": true,
}

// Options configures a [Client].
type Options struct {
	BaseURL    string
	LoginURL   string // login entry point for the redirect-on-failed-refresh path
	HTTPClient *http.Client
	Logger     *log.Logger
	Retry      *RetryPolicy
	RateLimit  float64 // client-side requests per second, 0 disables

	// Navigate opens the login entry point. Defaults to the system browser.
	Navigate func(url string) error

	// PassthroughKeys are request-body fields whose subtree skips snake_case
	// conversion. Defaults to {"content"}: editor content is owned by the
	// rendering subsystem and must reach the backend verbatim.
	PassthroughKeys []string
}

// Client is the single outbound gateway for all backend HTTP calls.
// See the package documentation for the pipeline order.
type Client struct {
	baseURL     string
	hc          *http.Client
	logger      *log.Logger
	retry       RetryPolicy
	coordinator *RefreshCoordinator
	limiter     *rate.Limiter
	passthrough map[string]bool

	// sleep is swapped in tests so backoff delays can be observed without
	// slowing the suite down.
	sleep func(ctx context.Context, d time.Duration) error
}

// New creates a Client. A cookie jar is attached to the HTTP client when it
// has none; the jar carries both the session cookies and the CSRF token.
func New(opts Options) (*Client, error) {
	if opts.BaseURL == "" {
		return nil, fmt.Errorf("%w: api base URL is required", shared.ErrInvalidConfig)
	}
	baseURL := strings.TrimRight(opts.BaseURL, "/")

	hc := opts.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: 30 * time.Second}
	}
	if hc.Jar == nil {
		jar, err := cookiejar.New(nil)
		if err != nil {
			return nil, fmt.Errorf("failed to create cookie jar: %w", err)
		}
		hc.Jar = jar
	}

	logger := opts.Logger
	if logger == nil {
		logger = shared.NewLogger(nil)
	}

	retry := DefaultRetryPolicy()
	if opts.Retry != nil {
		retry = *opts.Retry
	}

	navigate := opts.Navigate
	if navigate == nil {
		navigate = shared.OpenBrowser
	}

	loginURL := opts.LoginURL
	if loginURL == "" {
		loginURL = baseURL + "/auth"
	}

	passthrough := map[string]bool{"content": true}
	if opts.PassthroughKeys != nil {
		passthrough = make(map[string]bool, len(opts.PassthroughKeys))
		for _, k := range opts.PassthroughKeys {
			passthrough[k] = true
		}
	}

	c := &Client{
		baseURL:     baseURL,
		hc:          hc,
		logger:      shared.WithLogger(logger, "component", "api"),
		retry:       retry,
		passthrough: passthrough,
		sleep:       sleepContext,
	}
	if opts.RateLimit > 0 {
		c.limiter = rate.NewLimiter(rate.Limit(opts.RateLimit), 1)
	}
	c.coordinator = NewRefreshCoordinator(c.refreshSession, navigate, c.ClearSession, loginURL, logger)
	return c, nil
}

// BaseURL returns the configured backend base URL.
func (c *Client) BaseURL() string { return c.baseURL }

// Coordinator exposes the refresh coordinator, mainly for tests and status
// reporting.
func (c *Client) Coordinator() *RefreshCoordinator { return c.coordinator }

// SessionCookies returns the cookies currently held for the backend origin.
func (c *Client) SessionCookies() []*http.Cookie {
	u, err := url.Parse(c.baseURL)
	if err != nil {
		return nil
	}
	return c.hc.Jar.Cookies(u)
}

// RestoreSession loads previously persisted cookies into the jar.
func (c *Client) RestoreSession(cookies []*http.Cookie) {
	u, err := url.Parse(c.baseURL)
	if err != nil {
		return
	}
	c.hc.Jar.SetCookies(u, cookies)
}

// ClearSession drops every client-side session marker by replacing the jar.
func (c *Client) ClearSession() {
	if jar, err := cookiejar.New(nil); err == nil {
		c.hc.Jar = jar
	}
}

// requestConfig carries per-request options through the pipeline.
type requestConfig struct {
	skipAuthRedirect bool
	public           bool
	rawBody          []byte
	rawContentType   string
	query            url.Values
	headers          http.Header
}

// RequestOption customizes a single request.
type RequestOption func(*requestConfig)

// SkipAuthRedirect marks a request that must never trigger the session
// refresh and login-redirect machinery, e.g. a session status check.
func SkipAuthRedirect() RequestOption {
	return func(cfg *requestConfig) { cfg.skipAuthRedirect = true }
}

// Public marks a request to a public endpoint; a 401 there is surfaced
// directly instead of starting a refresh cycle.
func Public() RequestOption {
	return func(cfg *requestConfig) { cfg.public = true }
}

// WithRawBody sends the body verbatim with the given content type, bypassing
// the case transcoder. Used for multipart uploads and other opaque payloads.
func WithRawBody(body []byte, contentType string) RequestOption {
	return func(cfg *requestConfig) {
		cfg.rawBody = body
		cfg.rawContentType = contentType
	}
}

// WithQuery appends query parameters to the request URL.
func WithQuery(query url.Values) RequestOption {
	return func(cfg *requestConfig) { cfg.query = query }
}

// WithHeader adds a header to the request.
func WithHeader(key, value string) RequestOption {
	return func(cfg *requestConfig) {
		if cfg.headers == nil {
			cfg.headers = http.Header{}
		}
		cfg.headers.Add(key, value)
	}
}

// Get issues a GET request and decodes the transcoded response into out.
func (c *Client) Get(ctx context.Context, path string, out any, opts ...RequestOption) error {
	return c.Do(ctx, http.MethodGet, path, nil, out, opts...)
}

// Post issues a POST request with a JSON body.
func (c *Client) Post(ctx context.Context, path string, body, out any, opts ...RequestOption) error {
	return c.Do(ctx, http.MethodPost, path, body, out, opts...)
}

// Put issues a PUT request with a JSON body.
func (c *Client) Put(ctx context.Context, path string, body, out any, opts ...RequestOption) error {
	return c.Do(ctx, http.MethodPut, path, body, out, opts...)
}

// Patch issues a PATCH request with a JSON body.
func (c *Client) Patch(ctx context.Context, path string, body, out any, opts ...RequestOption) error {
	return c.Do(ctx, http.MethodPatch, path, body, out, opts...)
}

// Delete issues a DELETE request.
func (c *Client) Delete(ctx context.Context, path string, out any, opts ...RequestOption) error {
	return c.Do(ctx, http.MethodDelete, path, nil, out, opts...)
}

// Do runs one logical request through the full pipeline. body may be any
// JSON-serializable value with camelCase field tags; out receives the
// transcoded response body.
//
// The caller observes only the final outcome: retries of transient failures
// and the refresh-and-replay cycle for 401s are internal.
func (c *Client) Do(ctx context.Context, method, path string, body, out any, opts ...RequestOption) error {
	cfg := &requestConfig{}
	for _, opt := range opts {
		opt(cfg)
	}

	payload, contentType, err := c.encodeBody(body, cfg)
	if err != nil {
		return err
	}

	csrfToken := ""
	if !isIdempotent(method) {
		csrfToken, err = c.ensureCSRF(ctx)
		if err != nil {
			return err
		}
	}

	refreshed := false
	attempt := 0
	for {
		if c.limiter != nil {
			if err := c.limiter.Wait(ctx); err != nil {
				return err
			}
		}

		status, respBody, sendErr := c.send(ctx, method, path, payload, contentType, csrfToken, cfg)
		if sendErr == nil && status >= 200 && status < 300 {
			return decodeBody(respBody, out)
		}

		if ctx.Err() != nil {
			// An aborted request is the caller's doing, not a transient
			// transport failure.
			return ctx.Err()
		}

		var apiErr *Error
		if sendErr != nil {
			apiErr = classifyTransport(sendErr)
		} else {
			apiErr = classifyResponse(status, respBody)
		}

		if status == http.StatusUnauthorized && !refreshed && c.refreshEligible(path, cfg) {
			if refreshErr := c.coordinator.Do(ctx, path); refreshErr == nil {
				refreshed = true
				// A refresh rotates the session cookies, which may include
				// the CSRF cookie; the replay must carry the rotated token.
				if !isIdempotent(method) {
					if csrfToken = c.csrfToken(); csrfToken == "" {
						if csrfToken, err = c.ensureCSRF(ctx); err != nil {
							return err
						}
					}
				}
				continue
			}
			return apiErr
		}

		if c.retry.ShouldRetry(method, status, sendErr, attempt) {
			delay := c.retry.Delay(attempt)
			c.logger.Debug("retrying request", "method", method, "path", path, "attempt", attempt+1, "delay", delay)
			if err := c.sleep(ctx, delay); err != nil {
				return err
			}
			attempt++
			continue
		}

		return apiErr
	}
}

// send performs a single HTTP attempt and reads the whole response body.
func (c *Client) send(ctx context.Context, method, path string, payload []byte, contentType, csrfToken string, cfg *requestConfig) (int, []byte, error) {
	fullURL := c.baseURL + path
	if len(cfg.query) > 0 {
		fullURL += "?" + cfg.query.Encode()
	}

	var reader io.Reader
	if payload != nil {
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, fullURL, reader)
	if err != nil {
		return 0, nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Accept", "application/json")
	req.Header.Set(requestIDHeader, shared.GenerateID())
	if payload != nil {
		req.Header.Set("Content-Type", contentType)
	}
	if csrfToken != "" {
		req.Header.Set(csrfHeaderName, csrfToken)
	}
	for key, values := range cfg.headers {
		for _, v := range values {
			req.Header.Add(key, v)
		}
	}

	resp, err := c.hc.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, nil, fmt.Errorf("failed to read response: %w", err)
	}

	return resp.StatusCode, respBody, nil
}

// encodeBody serializes the request body, applying the snake_case transcoder
// unless the caller supplied a raw payload.
func (c *Client) encodeBody(body any, cfg *requestConfig) ([]byte, string, error) {
	if cfg.rawBody != nil {
		contentType := cfg.rawContentType
		if contentType == "" {
			contentType = "application/octet-stream"
		}
		return cfg.rawBody, contentType, nil
	}
	if body == nil {
		return nil, "", nil
	}

	encoded, err := json.Marshal(body)
	if err != nil {
		return nil, "", fmt.Errorf("failed to encode request body: %w", err)
	}

	var decoded any
	if err := json.Unmarshal(encoded, &decoded); err != nil {
		return nil, "", fmt.Errorf("failed to decode request body for transcoding: %w", err)
	}

	transcoded, err := json.Marshal(SnakeKeys(decoded, c.passthrough))
	if err != nil {
		return nil, "", fmt.Errorf("failed to encode transcoded body: %w", err)
	}
	return transcoded, "application/json", nil
}

// decodeBody applies the camelCase transcoder to a response body and decodes
// the result into out.
func decodeBody(respBody []byte, out any) error {
	if out == nil || len(respBody) == 0 {
		return nil
	}

	var decoded any
	if err := json.Unmarshal(respBody, &decoded); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}

	transcoded, err := json.Marshal(CamelKeys(decoded))
	if err != nil {
		return fmt.Errorf("failed to encode transcoded response: %w", err)
	}
	if err := json.Unmarshal(transcoded, out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

// ensureCSRF returns the anti-forgery token, bootstrapping it with a single
// GET /auth/csrf/ when the cookie is not present yet.
func (c *Client) ensureCSRF(ctx context.Context) (string, error) {
	if token := c.csrfToken(); token != "" {
		return token, nil
	}

	status, body, err := c.send(ctx, http.MethodGet, csrfPath, nil, "", "", &requestConfig{})
	if err != nil {
		return "", classifyTransport(err)
	}
	if status < 200 || status >= 300 {
		return "", classifyResponse(status, body)
	}
	return c.csrfToken(), nil
}

func (c *Client) csrfToken() string {
	for _, cookie := range c.SessionCookies() {
		if cookie.Name == csrfCookieName {
			return cookie.Value
		}
	}
	return ""
}

// refreshSession is the coordinator's refresh callback: a bare POST to the
// refresh endpoint. It goes through send directly so a failing refresh can
// never recurse into another refresh cycle.
func (c *Client) refreshSession(ctx context.Context) error {
	status, body, err := c.send(ctx, http.MethodPost, refreshPath, nil, "", c.csrfToken(), &requestConfig{})
	if err != nil {
		return fmt.Errorf("%w: %v", shared.ErrRefreshFailed, err)
	}
	if status < 200 || status >= 300 {
		return fmt.Errorf("%w: %s", shared.ErrRefreshFailed, classifyResponse(status, body).Message)
	}
	return nil
}

// refreshEligible reports whether a 401 on this request should start or join
// a refresh cycle.
func (c *Client) refreshEligible(path string, cfg *requestConfig) bool {
	if cfg.skipAuthRedirect || cfg.public {
		return false
	}
	if path == refreshPath {
		return false
	}
	return !isPublicPath(path)
}

// isPublicPath applies the public allowlist: known public prefixes plus the
// single-segment heuristic for public profile pages (/{handle}).
func isPublicPath(path string) bool {
	for _, prefix := range publicPrefixes {
		if strings.HasPrefix(path, prefix) {
			return true
		}
	}

	trimmed := strings.Trim(path, "/")
	if trimmed == "" {
		return true
	}
	if !strings.Contains(trimmed, "/") && !reservedSegments[trimmed] {
		return true
	}
	return false
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
