// Project endpoints: showcases and their editable sections.
package services

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strconv"

	"github.com/quietloop/foliox/internal/api"
	"github.com/quietloop/foliox/internal/shared"
)

// ProjectService wraps the /projects/ endpoints.
type ProjectService struct {
	client *api.Client
}

// NewProjectService creates a ProjectService over the shared pipeline.
func NewProjectService(client *api.Client) *ProjectService {
	return &ProjectService{client: client}
}

// List returns a page of the authenticated user's projects.
func (s *ProjectService) List(ctx context.Context, limit, offset int) (*Paginated[Project], error) {
	if limit <= 0 {
		limit = 50
	}
	query := url.Values{
		"limit":  {strconv.Itoa(limit)},
		"offset": {strconv.Itoa(offset)},
	}

	var page Paginated[Project]
	if err := s.client.Get(ctx, "/projects/", &page, api.WithQuery(query)); err != nil {
		return nil, err
	}
	return &page, nil
}

// Get retrieves a project with its sections.
func (s *ProjectService) Get(ctx context.Context, projectID string) (*Project, error) {
	if projectID == "" {
		return nil, fmt.Errorf("%w: project ID", shared.ErrMissingArgument)
	}

	var project Project
	err := s.client.Get(ctx, "/projects/"+projectID+"/", &project)
	if err != nil {
		var apiErr *api.Error
		if errors.As(err, &apiErr) && apiErr.StatusCode == 404 {
			return nil, fmt.Errorf("%w: %s", shared.ErrProjectNotFound, projectID)
		}
		return nil, err
	}
	return &project, nil
}

// Sections lists a project's content sections in sort order.
func (s *ProjectService) Sections(ctx context.Context, projectID string) ([]Section, error) {
	var sections []Section
	if err := s.client.Get(ctx, "/projects/"+projectID+"/sections/", &sections); err != nil {
		return nil, err
	}
	return sections, nil
}

// UpdateSection patches one section. The section content travels verbatim;
// everything else is transcoded like any other body.
func (s *ProjectService) UpdateSection(ctx context.Context, projectID string, section Section) (*Section, error) {
	if section.ID == "" {
		return nil, fmt.Errorf("%w: section ID", shared.ErrMissingArgument)
	}

	var updated Section
	path := "/projects/" + projectID + "/sections/" + section.ID + "/"
	if err := s.client.Patch(ctx, path, section, &updated); err != nil {
		return nil, err
	}
	return &updated, nil
}

// Search queries public projects. Search never requires a session.
func (s *ProjectService) Search(ctx context.Context, queryText string, limit int) ([]Project, error) {
	if limit <= 0 {
		limit = 20
	}
	query := url.Values{
		"q":     {queryText},
		"limit": {strconv.Itoa(limit)},
	}

	var page Paginated[Project]
	err := s.client.Get(ctx, "/search/projects/", &page, api.WithQuery(query), api.Public())
	if err != nil {
		return nil, err
	}
	return page.Items, nil
}
