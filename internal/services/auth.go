// Auth endpoints: session lifecycle and stream token issuance.
package services

import (
	"context"
	"fmt"

	"github.com/quietloop/foliox/internal/api"
	"github.com/quietloop/foliox/internal/shared"
)

// AuthService wraps the /auth/ endpoints.
type AuthService struct {
	client *api.Client
}

// NewAuthService creates an AuthService over the shared pipeline.
func NewAuthService(client *api.Client) *AuthService {
	return &AuthService{client: client}
}

// Session returns the current session, or [shared.ErrNotAuthenticated] when
// none exists. The lookup never triggers the refresh/redirect machinery.
func (s *AuthService) Session(ctx context.Context) (*Session, error) {
	var session Session
	err := s.client.Get(ctx, "/auth/session/", &session, api.SkipAuthRedirect())
	if err != nil {
		if apiErr, ok := err.(*api.Error); ok && apiErr.StatusCode == 401 {
			return nil, shared.ErrNotAuthenticated
		}
		return nil, err
	}
	return &session, nil
}

// ExchangeCode trades a one-time login code from the browser handoff for
// session cookies.
func (s *AuthService) ExchangeCode(ctx context.Context, code string) error {
	if code == "" {
		return fmt.Errorf("%w: login code", shared.ErrMissingArgument)
	}
	body := map[string]string{"code": code}
	if err := s.client.Post(ctx, "/auth/cli/exchange/", body, nil, api.SkipAuthRedirect()); err != nil {
		return fmt.Errorf("%w: %v", shared.ErrAuthFailed, err)
	}
	return nil
}

// ConnectionToken fetches a short-lived WebSocket connection token. Matches
// [stream.TokenFunc] so it can gate stream connections directly.
func (s *AuthService) ConnectionToken(ctx context.Context) (string, error) {
	var out struct {
		ConnectionToken string `json:"connectionToken"`
	}
	if err := s.client.Post(ctx, "/auth/ws-connection-token/", nil, &out); err != nil {
		return "", err
	}
	if out.ConnectionToken == "" {
		return "", fmt.Errorf("%w: backend returned an empty connection token", shared.ErrAuthFailed)
	}
	return out.ConnectionToken, nil
}

// Logout invalidates the server-side session and clears local markers.
func (s *AuthService) Logout(ctx context.Context) error {
	err := s.client.Post(ctx, "/auth/logout/", nil, nil, api.SkipAuthRedirect())
	s.client.ClearSession()
	return err
}
