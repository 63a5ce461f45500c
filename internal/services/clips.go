// Clip endpoints: the REST side of clip generation.
package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/quietloop/foliox/internal/api"
	"github.com/quietloop/foliox/internal/shared"
)

// ClipService wraps the /clips/ endpoints. Generation itself happens over
// the stream client; this service reads back the results.
type ClipService struct {
	client *api.Client
}

// NewClipService creates a ClipService over the shared pipeline.
func NewClipService(client *api.Client) *ClipService {
	return &ClipService{client: client}
}

// List returns the clips generated for a project.
func (s *ClipService) List(ctx context.Context, projectID string) ([]Clip, error) {
	if projectID == "" {
		return nil, fmt.Errorf("%w: project ID", shared.ErrMissingArgument)
	}

	var clips []Clip
	if err := s.client.Get(ctx, "/projects/"+projectID+"/clips/", &clips); err != nil {
		return nil, err
	}
	return clips, nil
}

// Get retrieves one clip by ID.
func (s *ClipService) Get(ctx context.Context, clipID string) (*Clip, error) {
	if clipID == "" {
		return nil, fmt.Errorf("%w: clip ID", shared.ErrMissingArgument)
	}

	var clip Clip
	err := s.client.Get(ctx, "/clips/"+clipID+"/", &clip)
	if err != nil {
		var apiErr *api.Error
		if errors.As(err, &apiErr) && apiErr.StatusCode == 404 {
			return nil, fmt.Errorf("%w: %s", shared.ErrClipNotFound, clipID)
		}
		return nil, err
	}
	return &clip, nil
}

// Delete removes a clip.
func (s *ClipService) Delete(ctx context.Context, clipID string) error {
	if clipID == "" {
		return fmt.Errorf("%w: clip ID", shared.ErrMissingArgument)
	}
	return s.client.Delete(ctx, "/clips/"+clipID+"/", nil)
}
