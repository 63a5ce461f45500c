package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"syscall"
	"testing"
	"time"

	"github.com/quietloop/foliox/internal/shared"
	tu "github.com/quietloop/foliox/internal/testing"
)

// newTestClient builds a Client against a test server with instant,
// observable backoff sleeps and browser navigation disabled.
func newTestClient(t *testing.T, srv *httptest.Server) (*Client, *[]time.Duration) {
	t.Helper()
	client, err := New(Options{
		BaseURL:  srv.URL,
		Navigate: func(string) error { return nil },
	})
	if err != nil {
		t.Fatalf("failed to create client: %v", err)
	}

	var mu sync.Mutex
	slept := []time.Duration{}
	client.sleep = func(ctx context.Context, d time.Duration) error {
		mu.Lock()
		slept = append(slept, d)
		mu.Unlock()
		return nil
	}
	return client, &slept
}

func TestClient(t *testing.T) {
	t.Run("Transcodes Request And Response", func(t *testing.T) {
		var wireBody map[string]any
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path == csrfPath {
				http.SetCookie(w, &http.Cookie{Name: csrfCookieName, Value: "tok123", Path: "/"})
				w.WriteHeader(http.StatusOK)
				return
			}

			raw, _ := io.ReadAll(r.Body)
			_ = json.Unmarshal(raw, &wireBody)
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"display_name": "ada", "view_count": 7}`))
		}))
		defer srv.Close()

		client, _ := newTestClient(t, srv)

		body := map[string]any{
			"sectionTitle": "About",
			"content":      map[string]any{"blockType": "markdown"},
		}
		var out struct {
			DisplayName string `json:"displayName"`
			ViewCount   int    `json:"viewCount"`
		}
		if err := client.Post(context.Background(), "/projects/1/sections/", body, &out); err != nil {
			t.Fatalf("expected success, got %v", err)
		}

		if _, ok := wireBody["section_title"]; !ok {
			t.Errorf("expected snake_case keys on the wire, got %v", wireBody)
		}
		content, ok := wireBody["content"].(map[string]any)
		if !ok {
			t.Fatal("expected content field on the wire")
		}
		if _, ok := content["blockType"]; !ok {
			t.Error("expected content subtree to pass through untranscoded")
		}
		if out.DisplayName != "ada" || out.ViewCount != 7 {
			t.Errorf("expected camelCase response decoding, got %+v", out)
		}
	})

	t.Run("CSRF Attached To State Changing Methods", func(t *testing.T) {
		var csrfBootstraps atomic.Int32
		var seenToken string
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path == csrfPath {
				csrfBootstraps.Add(1)
				http.SetCookie(w, &http.Cookie{Name: csrfCookieName, Value: "tok123", Path: "/"})
				w.WriteHeader(http.StatusOK)
				return
			}
			if r.Method == http.MethodPost {
				seenToken = r.Header.Get(csrfHeaderName)
			}
			w.WriteHeader(http.StatusOK)
		}))
		defer srv.Close()

		client, _ := newTestClient(t, srv)

		if err := client.Post(context.Background(), "/projects/", map[string]any{"title": "x"}, nil); err != nil {
			t.Fatalf("expected success, got %v", err)
		}
		if seenToken != "tok123" {
			t.Errorf("expected CSRF header tok123, got %q", seenToken)
		}

		// Second write reuses the cookie, no second bootstrap.
		if err := client.Post(context.Background(), "/projects/", map[string]any{"title": "y"}, nil); err != nil {
			t.Fatalf("expected success, got %v", err)
		}
		if csrfBootstraps.Load() != 1 {
			t.Errorf("expected exactly 1 CSRF bootstrap, got %d", csrfBootstraps.Load())
		}
	})

	t.Run("Scenario A Retries Transient GET", func(t *testing.T) {
		var attempts atomic.Int32
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if attempts.Add(1) <= 2 {
				w.WriteHeader(http.StatusServiceUnavailable)
				return
			}
			_, _ = w.Write([]byte(`{"ok": true}`))
		}))
		defer srv.Close()

		client, slept := newTestClient(t, srv)

		var out map[string]any
		if err := client.Get(context.Background(), "/projects/", &out); err != nil {
			t.Fatalf("expected eventual success, got %v", err)
		}
		if attempts.Load() != 3 {
			t.Errorf("expected 3 attempts, got %d", attempts.Load())
		}
		if len(*slept) != 2 {
			t.Errorf("expected 2 backoff delays, got %d", len(*slept))
		}
	})

	t.Run("Scenario B Never Retries POST", func(t *testing.T) {
		var postAttempts atomic.Int32
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path == csrfPath {
				http.SetCookie(w, &http.Cookie{Name: csrfCookieName, Value: "tok123", Path: "/"})
				w.WriteHeader(http.StatusOK)
				return
			}
			postAttempts.Add(1)
			w.WriteHeader(http.StatusInternalServerError)
		}))
		defer srv.Close()

		client, slept := newTestClient(t, srv)

		err := client.Post(context.Background(), "/projects/", map[string]any{"title": "x"}, nil)
		var apiErr *Error
		if !errors.As(err, &apiErr) {
			t.Fatalf("expected *Error, got %v", err)
		}
		if apiErr.StatusCode != http.StatusInternalServerError {
			t.Errorf("expected status 500, got %d", apiErr.StatusCode)
		}
		if postAttempts.Load() != 1 {
			t.Errorf("expected exactly 1 attempt, got %d", postAttempts.Load())
		}
		if len(*slept) != 0 {
			t.Errorf("expected no backoff delays, got %d", len(*slept))
		}
	})

	t.Run("Scenario C Single Flight Refresh And Replay", func(t *testing.T) {
		var refreshes atomic.Int32
		var refreshed atomic.Bool
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			switch r.URL.Path {
			case refreshPath:
				refreshes.Add(1)
				time.Sleep(100 * time.Millisecond)
				refreshed.Store(true)
				w.WriteHeader(http.StatusOK)
			default:
				if !refreshed.Load() {
					w.WriteHeader(http.StatusUnauthorized)
					return
				}
				_, _ = w.Write([]byte(`{"ok": true}`))
			}
		}))
		defer srv.Close()

		client, _ := newTestClient(t, srv)

		var wg sync.WaitGroup
		errs := make([]error, 2)
		for i := 0; i < 2; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				var out map[string]any
				errs[i] = client.Get(context.Background(), "/projects/", &out)
			}(i)
		}
		wg.Wait()

		if refreshes.Load() != 1 {
			t.Errorf("expected exactly 1 refresh call, got %d", refreshes.Load())
		}
		for i, err := range errs {
			if err != nil {
				t.Errorf("request %d: expected replay to succeed, got %v", i, err)
			}
		}
	})

	t.Run("Replay Carries Rotated CSRF Token", func(t *testing.T) {
		var refreshed atomic.Bool
		var replayToken atomic.Value
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			switch r.URL.Path {
			case csrfPath:
				http.SetCookie(w, &http.Cookie{Name: csrfCookieName, Value: "tok-old", Path: "/"})
				w.WriteHeader(http.StatusOK)
			case refreshPath:
				http.SetCookie(w, &http.Cookie{Name: csrfCookieName, Value: "tok-new", Path: "/"})
				refreshed.Store(true)
				w.WriteHeader(http.StatusOK)
			default:
				if !refreshed.Load() {
					w.WriteHeader(http.StatusUnauthorized)
					return
				}
				replayToken.Store(r.Header.Get(csrfHeaderName))
				if r.Header.Get(csrfHeaderName) != "tok-new" {
					w.WriteHeader(http.StatusForbidden)
					_, _ = w.Write([]byte(`{"error": "CSRF token mismatch"}`))
					return
				}
				_, _ = w.Write([]byte(`{"ok": true}`))
			}
		}))
		defer srv.Close()

		client, _ := newTestClient(t, srv)

		var out map[string]any
		if err := client.Post(context.Background(), "/projects/", map[string]any{"title": "New"}, &out); err != nil {
			t.Fatalf("expected replay to succeed after rotation, got %v", err)
		}
		if got, _ := replayToken.Load().(string); got != "tok-new" {
			t.Errorf("replay sent token %q, want the rotated %q", got, "tok-new")
		}
	})

	t.Run("Refresh Failure Surfaces Original Error", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path == refreshPath {
				w.WriteHeader(http.StatusUnauthorized)
				return
			}
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"error": "session expired"}`))
		}))
		defer srv.Close()

		client, _ := newTestClient(t, srv)

		err := client.Get(context.Background(), "/projects/", nil)
		var apiErr *Error
		if !errors.As(err, &apiErr) {
			t.Fatalf("expected *Error, got %v", err)
		}
		if apiErr.StatusCode != http.StatusUnauthorized {
			t.Errorf("expected 401, got %d", apiErr.StatusCode)
		}
		if !errors.Is(err, shared.ErrSessionExpired) {
			t.Error("expected error to map onto ErrSessionExpired")
		}
	})

	t.Run("Public Paths Never Refresh", func(t *testing.T) {
		var refreshes atomic.Int32
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path == refreshPath {
				refreshes.Add(1)
				w.WriteHeader(http.StatusOK)
				return
			}
			w.WriteHeader(http.StatusUnauthorized)
		}))
		defer srv.Close()

		client, _ := newTestClient(t, srv)

		for _, path := range []string{"/explore/trending", "/pricing", "/ada-lovelace", "/projects/1"} {
			opts := []RequestOption{}
			if path == "/projects/1" {
				opts = append(opts, SkipAuthRedirect())
			}
			if err := client.Get(context.Background(), path, nil, opts...); err == nil {
				t.Errorf("%s: expected 401 to surface", path)
			}
		}

		if refreshes.Load() != 0 {
			t.Errorf("expected no refresh calls, got %d", refreshes.Load())
		}
	})

	t.Run("Forbidden Gets Default Message", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusForbidden)
		}))
		defer srv.Close()

		client, _ := newTestClient(t, srv)

		err := client.Get(context.Background(), "/projects/1", nil)
		var apiErr *Error
		if !errors.As(err, &apiErr) {
			t.Fatalf("expected *Error, got %v", err)
		}
		if apiErr.Message != defaultPermissionMessage {
			t.Errorf("expected default permission message, got %q", apiErr.Message)
		}
		if !errors.Is(err, shared.ErrPermissionDenied) {
			t.Error("expected error to map onto ErrPermissionDenied")
		}
	})

	t.Run("Validation Details Preserved", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"error": "invalid project", "details": {"title": ["required"]}}`))
		}))
		defer srv.Close()

		client, _ := newTestClient(t, srv)

		err := client.Get(context.Background(), "/projects/1", nil)
		var apiErr *Error
		if !errors.As(err, &apiErr) {
			t.Fatalf("expected *Error, got %v", err)
		}
		if apiErr.Message != "invalid project" {
			t.Errorf("unexpected message: %q", apiErr.Message)
		}
		if got := apiErr.Details["title"]; len(got) != 1 || got[0] != "required" {
			t.Errorf("expected field details, got %v", apiErr.Details)
		}
	})

	t.Run("Canceled Context Propagates", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			time.Sleep(200 * time.Millisecond)
			w.WriteHeader(http.StatusOK)
		}))
		defer srv.Close()

		client, slept := newTestClient(t, srv)

		ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
		defer cancel()
		err := client.Get(ctx, "/projects/", nil)
		if !errors.Is(err, context.DeadlineExceeded) {
			t.Errorf("expected deadline error, got %v", err)
		}
		if len(*slept) != 0 {
			t.Error("expected an aborted request to not be retried")
		}
	})

	t.Run("Raw Body Bypasses Transcoding", func(t *testing.T) {
		var wire []byte
		var contentType string
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path == csrfPath {
				http.SetCookie(w, &http.Cookie{Name: csrfCookieName, Value: "tok123", Path: "/"})
				w.WriteHeader(http.StatusOK)
				return
			}
			wire, _ = io.ReadAll(r.Body)
			contentType = r.Header.Get("Content-Type")
			w.WriteHeader(http.StatusOK)
		}))
		defer srv.Close()

		client, _ := newTestClient(t, srv)

		payload := []byte("--boundary\r\nopaque multipart payload\r\n--boundary--")
		err := client.Post(context.Background(), "/projects/1/cover/", nil, nil,
			WithRawBody(payload, "multipart/form-data; boundary=boundary"))
		if err != nil {
			t.Fatalf("expected success, got %v", err)
		}
		if string(wire) != string(payload) {
			t.Error("expected raw body to reach the wire unmodified")
		}
		if contentType != "multipart/form-data; boundary=boundary" {
			t.Errorf("unexpected content type %q", contentType)
		}
	})

	t.Run("Unreachable Network Reported As Offline", func(t *testing.T) {
		opErr := &net.OpError{Op: "dial", Net: "tcp", Err: syscall.ENETUNREACH}
		client, err := New(Options{
			BaseURL:    "http://folio.test",
			HTTPClient: &http.Client{Transport: tu.NewMockRoundTripper(nil, opErr)},
			Navigate:   func(string) error { return nil },
		})
		if err != nil {
			t.Fatalf("failed to create client: %v", err)
		}
		slept := 0
		client.sleep = func(context.Context, time.Duration) error {
			slept++
			return nil
		}

		getErr := client.Get(context.Background(), "/projects/", nil)
		if !errors.Is(getErr, shared.ErrOffline) {
			t.Errorf("expected offline error, got %v", getErr)
		}
		if slept != 3 {
			t.Errorf("expected the full retry budget, slept %d times", slept)
		}
	})

	t.Run("Body Read Failure Surfaces", func(t *testing.T) {
		resp := &http.Response{
			StatusCode: http.StatusOK,
			Header:     http.Header{},
			Body:       &tu.FCloser{},
		}
		client, err := New(Options{
			BaseURL:    "http://folio.test",
			HTTPClient: &http.Client{Transport: tu.NewMockRoundTripper(resp, nil)},
			Navigate:   func(string) error { return nil },
		})
		if err != nil {
			t.Fatalf("failed to create client: %v", err)
		}
		client.sleep = func(context.Context, time.Duration) error { return nil }

		getErr := client.Get(context.Background(), "/projects/", nil)
		if !errors.Is(getErr, shared.ErrAPIRequest) {
			t.Errorf("expected API request error, got %v", getErr)
		}
		if getErr == nil || !strings.Contains(getErr.Error(), "read failed") {
			t.Errorf("expected read failure detail, got %v", getErr)
		}
	})
}

func TestIsPublicPath(t *testing.T) {
	public := []string{"/", "/auth/login", "/explore", "/pricing", "/legal/terms", "/invites/xyz", "/ada-lovelace"}
	private := []string{"/projects", "/projects/1", "/me", "/billing/invoices", "/admin"}

	for _, path := range public {
		if !isPublicPath(path) {
			t.Errorf("expected %s to be public", path)
		}
	}
	for _, path := range private {
		if isPublicPath(path) {
			t.Errorf("expected %s to be private", path)
		}
	}
}
