package server

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
)

// LoginServer is the loopback listener for the browser login handoff.
type LoginServer struct {
	handler *CallbackHandler
	srv     *http.Server
	ln      net.Listener
	logger  *log.Logger
}

// NewLoginServer binds a listener on 127.0.0.1:port (a free port when
// port is 0) and mounts the callback handler.
func NewLoginServer(port int, state string, logger *log.Logger) (*LoginServer, error) {
	ln, err := net.Listen("tcp", fmt.Sprintf("127.0.0.1:%d", port))
	if err != nil {
		return nil, fmt.Errorf("failed to bind callback listener: %w", err)
	}

	handler := NewCallbackHandler(state)

	r := chi.NewRouter()
	r.Use(chiMiddleware.Recoverer)
	r.Get("/callback", handler.ServeHTTP)

	return &LoginServer{
		handler: handler,
		srv:     &http.Server{Handler: r, ReadHeaderTimeout: 5 * time.Second},
		ln:      ln,
		logger:  logger,
	}, nil
}

// Addr returns the bound listener address, e.g. "127.0.0.1:52114".
func (s *LoginServer) Addr() string {
	return s.ln.Addr().String()
}

// RedirectURL returns the callback URL to hand to the login page.
func (s *LoginServer) RedirectURL() string {
	return fmt.Sprintf("http://%s/callback", s.Addr())
}

// Start serves in a background goroutine until Shutdown.
func (s *LoginServer) Start() {
	go func() {
		if err := s.srv.Serve(s.ln); err != nil && err != http.ErrServerClosed {
			s.logger.Error("callback server stopped", "error", err)
		}
	}()
}

// WaitForCode blocks until the browser delivers a code, the context is
// canceled, or the timeout elapses.
func (s *LoginServer) WaitForCode(ctx context.Context, timeout time.Duration) (string, error) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case result := <-s.handler.Result():
		if err := result.Error(); err != nil {
			return "", err
		}
		return result.Code, nil
	case <-timer.C:
		return "", fmt.Errorf("timed out waiting for browser login")
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

// Shutdown gracefully stops the listener.
func (s *LoginServer) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}
