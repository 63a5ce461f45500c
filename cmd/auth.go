package main

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/quietloop/foliox/internal/repositories"
	"github.com/quietloop/foliox/internal/server"
	"github.com/quietloop/foliox/internal/shared"
)

const loginTimeout = 3 * time.Minute

// AuthLogin runs the browser login handoff: opens the Folio login page with a
// loopback redirect, waits for the one-time code, and exchanges it for a
// session.
func (r *Runner) AuthLogin(ctx context.Context, cmd *cli.Command) error {
	state := shared.GenerateID()

	srv, err := server.NewLoginServer(r.config.Auth.CallbackPort, state, r.logger)
	if err != nil {
		return err
	}
	srv.Start()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	query := url.Values{}
	query.Set("redirect_uri", srv.RedirectURL())
	query.Set("state", state)
	query.Set("client", "cli")
	loginURL := fmt.Sprintf("%s%s?%s", r.config.API.BaseURL, r.config.Auth.LoginPath, query.Encode())

	r.logger.Info("waiting for browser login", "callback", srv.RedirectURL())
	r.writePlain("Opening browser to sign in...\n")
	if err := shared.OpenBrowser(loginURL); err != nil {
		r.writePlain("Could not open browser. Visit:\n  %s\n", loginURL)
	}

	code, err := srv.WaitForCode(ctx, loginTimeout)
	if err != nil {
		return fmt.Errorf("%w: %v", shared.ErrAuthFailed, err)
	}

	if err := r.auth.ExchangeCode(ctx, code); err != nil {
		return fmt.Errorf("%w: %v", shared.ErrAuthFailed, err)
	}

	session, err := r.auth.Session(ctx)
	if err != nil {
		return fmt.Errorf("%w: %v", shared.ErrAuthFailed, err)
	}

	if err := r.saveSession(); err != nil {
		r.logger.Warn("failed to persist session", "error", err)
	}

	return r.writePlain("✓ Signed in as @%s\n", session.Handle)
}

// AuthStatus reports the current session state.
func (r *Runner) AuthStatus(ctx context.Context, cmd *cli.Command) error {
	r.logger.Info("checking auth status")

	session, err := r.auth.Session(ctx)
	if err != nil {
		if errors.Is(err, shared.ErrNotAuthenticated) || errors.Is(err, shared.ErrSessionExpired) {
			return r.writePlain("✗ Not signed in\nRun 'foliox auth login' to sign in.\n")
		}
		return fmt.Errorf("%w: %v", shared.ErrServiceUnavailable, err)
	}

	r.writePlain("✓ Signed in as @%s\n", session.Handle)
	r.writePlain("Session expires: %s\n", session.ExpiresAt.Local().Format(time.RFC1123))
	return nil
}

// AuthLogout ends the server session and clears local session state.
func (r *Runner) AuthLogout(ctx context.Context, cmd *cli.Command) error {
	if err := r.auth.Logout(ctx); err != nil {
		r.logger.Warn("server logout failed", "error", err)
	}

	r.client.ClearSession()

	db, err := r.openCache()
	if err == nil {
		defer db.Close()
		if err := repositories.NewSessionRepository(db).Clear(); err != nil {
			r.logger.Warn("failed to clear cached session", "error", err)
		}
	}

	return r.writePlain("✓ Signed out\n")
}

// saveSession persists the client's current session cookies to the cache.
func (r *Runner) saveSession() error {
	db, err := r.openCache()
	if err != nil {
		return err
	}
	defer db.Close()
	return repositories.NewSessionRepository(db).Save(r.client.SessionCookies())
}

// authCommand handles session management
func authCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "auth",
		Usage: "Sign in and manage the session",
		Commands: []*cli.Command{
			{
				Name:   "login",
				Usage:  "Sign in through the browser",
				Action: r.AuthLogin,
			},
			{
				Name:   "status",
				Usage:  "Show the current session",
				Action: r.AuthStatus,
			},
			{
				Name:   "logout",
				Usage:  "Sign out and clear the local session",
				Action: r.AuthLogout,
			},
		},
	}
}
