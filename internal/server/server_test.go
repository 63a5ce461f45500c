package server

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/quietloop/foliox/internal/shared"
)

func startServer(t *testing.T, state string) *LoginServer {
	t.Helper()
	srv, err := NewLoginServer(0, state, shared.NewLogger(io.Discard))
	if err != nil {
		t.Fatalf("NewLoginServer() error = %v", err)
	}
	srv.Start()
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		srv.Shutdown(ctx)
	})
	return srv
}

func TestLoginServer(t *testing.T) {
	t.Run("Delivers Code From Callback", func(t *testing.T) {
		srv := startServer(t, "s3cret")

		go func() {
			url := fmt.Sprintf("%s?code=abc123&state=s3cret", srv.RedirectURL())
			resp, err := http.Get(url)
			if err == nil {
				resp.Body.Close()
			}
		}()

		code, err := srv.WaitForCode(context.Background(), 2*time.Second)
		if err != nil {
			t.Fatalf("WaitForCode() error = %v", err)
		}
		if code != "abc123" {
			t.Errorf("code = %q, want %q", code, "abc123")
		}
	})

	t.Run("Rejects Mismatched State", func(t *testing.T) {
		srv := startServer(t, "s3cret")

		go func() {
			url := fmt.Sprintf("%s?code=abc123&state=wrong", srv.RedirectURL())
			resp, err := http.Get(url)
			if err == nil {
				resp.Body.Close()
			}
		}()

		_, err := srv.WaitForCode(context.Background(), 2*time.Second)
		if err == nil || !strings.Contains(err.Error(), "state") {
			t.Errorf("WaitForCode() error = %v, want state validation failure", err)
		}
	})

	t.Run("Missing Code Surfaces Login Error", func(t *testing.T) {
		srv := startServer(t, "s3cret")

		go func() {
			url := fmt.Sprintf("%s?state=s3cret&error=access_denied&error_description=user+cancelled", srv.RedirectURL())
			resp, err := http.Get(url)
			if err == nil {
				resp.Body.Close()
			}
		}()

		_, err := srv.WaitForCode(context.Background(), 2*time.Second)
		if err == nil || !strings.Contains(err.Error(), "access_denied") {
			t.Errorf("WaitForCode() error = %v, want access_denied detail", err)
		}
	})

	t.Run("Second Callback Rejected", func(t *testing.T) {
		srv := startServer(t, "s3cret")

		url := fmt.Sprintf("%s?code=first&state=s3cret", srv.RedirectURL())
		resp, err := http.Get(url)
		if err != nil {
			t.Fatalf("first callback: %v", err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("first callback status = %d, want 200", resp.StatusCode)
		}

		resp, err = http.Get(fmt.Sprintf("%s?code=second&state=s3cret", srv.RedirectURL()))
		if err != nil {
			t.Fatalf("second callback: %v", err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusBadRequest {
			t.Errorf("second callback status = %d, want 400", resp.StatusCode)
		}

		code, err := srv.WaitForCode(context.Background(), time.Second)
		if err != nil || code != "first" {
			t.Errorf("WaitForCode() = %q, %v, want first captured code", code, err)
		}
	})

	t.Run("Times Out Without Callback", func(t *testing.T) {
		srv := startServer(t, "s3cret")

		_, err := srv.WaitForCode(context.Background(), 50*time.Millisecond)
		if err == nil || !strings.Contains(err.Error(), "timed out") {
			t.Errorf("WaitForCode() error = %v, want timeout", err)
		}
	})

	t.Run("Honors Context Cancellation", func(t *testing.T) {
		srv := startServer(t, "s3cret")

		ctx, cancel := context.WithCancel(context.Background())
		go func() {
			time.Sleep(20 * time.Millisecond)
			cancel()
		}()

		_, err := srv.WaitForCode(ctx, 5*time.Second)
		if err != context.Canceled {
			t.Errorf("WaitForCode() error = %v, want context.Canceled", err)
		}
	})
}
