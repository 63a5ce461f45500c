// Profile endpoints.
package services

import (
	"context"
	"fmt"

	"github.com/quietloop/foliox/internal/api"
	"github.com/quietloop/foliox/internal/shared"
)

// ProfileService wraps the profile endpoints.
type ProfileService struct {
	client *api.Client
}

// NewProfileService creates a ProfileService over the shared pipeline.
func NewProfileService(client *api.Client) *ProfileService {
	return &ProfileService{client: client}
}

// Me returns the authenticated user's own profile.
func (s *ProfileService) Me(ctx context.Context) (*Profile, error) {
	var profile Profile
	if err := s.client.Get(ctx, "/me/profile/", &profile); err != nil {
		return nil, err
	}
	return &profile, nil
}

// PublicProfile returns a profile by handle. Public profile pages never
// trigger a session refresh.
func (s *ProfileService) PublicProfile(ctx context.Context, handle string) (*Profile, error) {
	if handle == "" {
		return nil, fmt.Errorf("%w: profile handle", shared.ErrMissingArgument)
	}

	var profile Profile
	if err := s.client.Get(ctx, "/"+handle, &profile, api.Public()); err != nil {
		return nil, err
	}
	return &profile, nil
}
