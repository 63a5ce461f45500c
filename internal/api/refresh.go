package api

import (
	"context"
	"net/url"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/quietloop/foliox/internal/shared"
)

// RefreshState is the coordinator's phase. Exactly two phases exist; a 401
// observed while Refreshing joins the in-flight call instead of starting a
// second one.
type RefreshState int

const (
	RefreshIdle RefreshState = iota
	Refreshing
)

// RefreshCoordinator single-flights session refresh across all concurrent
// request failures.
//
// The first eligible 401 moves the coordinator from Idle to Refreshing and
// runs the refresh call; every 401 arriving during that window waits on the
// same call. The state returns to Idle unconditionally once the call
// settles, success or failure, so a later 401 can always start a new cycle.
//
// On a failed refresh the coordinator clears client-side session markers and
// fires the login navigation at most once per process (the redirect guard),
// carrying a return target so the user lands back where they left off.
// refreshCall is one refresh cycle. err is written before done closes, so
// joiners reading it after <-done observe the settled value.
type refreshCall struct {
	done chan struct{}
	err  error
}

type RefreshCoordinator struct {
	mu         sync.Mutex
	state      RefreshState
	inflight   *refreshCall
	redirected bool

	refresh      func(ctx context.Context) error
	navigate     func(loginURL string) error
	clearSession func()
	loginURL     string
	logger       *log.Logger
}

// NewRefreshCoordinator wires a coordinator with its collaborators. refresh
// performs the actual POST /auth/refresh/ call; navigate opens the login
// entry point (the browser, for the CLI); clearSession drops local session
// markers. Any of them may be nil.
func NewRefreshCoordinator(refresh func(ctx context.Context) error, navigate func(string) error, clearSession func(), loginURL string, logger *log.Logger) *RefreshCoordinator {
	if logger == nil {
		logger = shared.NewLogger(nil)
	}
	return &RefreshCoordinator{
		refresh:      refresh,
		navigate:     navigate,
		clearSession: clearSession,
		loginURL:     loginURL,
		logger:       shared.WithLogger(logger, "component", "refresh"),
	}
}

// State returns the current phase.
func (c *RefreshCoordinator) State() RefreshState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Do refreshes the session, joining an in-flight refresh when one exists.
// returnTo is the path the user should land on after re-authenticating; it
// is only used on the failure path.
//
// Returns nil when the session was refreshed and the caller should replay
// its original request.
func (c *RefreshCoordinator) Do(ctx context.Context, returnTo string) error {
	call, leader := c.acquireOrJoin()

	if leader {
		err := c.runRefresh(ctx, returnTo)
		c.release(call, err)
		return err
	}

	select {
	case <-call.done:
		return call.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// acquireOrJoin claims the refresh lock or returns the in-flight handle.
func (c *RefreshCoordinator) acquireOrJoin() (call *refreshCall, leader bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state == Refreshing {
		return c.inflight, false
	}

	c.state = Refreshing
	c.inflight = &refreshCall{done: make(chan struct{})}
	return c.inflight, true
}

// release records the outcome and returns to Idle. Always runs, regardless
// of how the refresh settled; a stuck lock would deadlock every subsequent
// 401.
func (c *RefreshCoordinator) release(call *refreshCall, err error) {
	c.mu.Lock()
	call.err = err
	c.state = RefreshIdle
	c.inflight = nil
	c.mu.Unlock()
	close(call.done)
}

func (c *RefreshCoordinator) runRefresh(ctx context.Context, returnTo string) error {
	if c.refresh == nil {
		return shared.ErrRefreshFailed
	}

	err := c.refresh(ctx)
	if err == nil {
		c.logger.Debug("session refreshed")
		return nil
	}

	c.logger.Warn("session refresh failed", "error", err)
	if c.clearSession != nil {
		c.clearSession()
	}
	c.redirectToLogin(returnTo)
	return err
}

// redirectToLogin fires the login navigation at most once per process.
// Concurrent failing requests must not each open the login page.
func (c *RefreshCoordinator) redirectToLogin(returnTo string) {
	c.mu.Lock()
	if c.redirected || c.navigate == nil {
		c.mu.Unlock()
		return
	}
	c.redirected = true
	c.mu.Unlock()

	target := c.loginURL
	if returnTo != "" {
		target += "?next=" + url.QueryEscape(returnTo)
	}
	if err := c.navigate(target); err != nil {
		c.logger.Warn("failed to open login page", "error", err)
	}
}
