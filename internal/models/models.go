package models

import (
	"fmt"
	"time"
)

// Model defines the base interface for all persistent models in the local cache.
type Model interface {
	ID() string           // ID returns the unique identifier for this model
	CreatedAt() time.Time // CreatedAt returns when this model was created
	UpdatedAt() time.Time // UpdatedAt returns when this model was last updated
	Validate() error      // Validate checks if the model's data is valid and returns an error if not
}

// Repository defines the interface for data access operations.
type Repository[T Model] interface {
	Create(model T) error     // Create inserts a new model into the database
	Get(id string) (T, error) // Get retrieves a model by its ID
	Update(model T) error     // Update modifies an existing model in the database
	Delete(id string) error   // Delete removes a model from the database by its ID
	List() ([]T, error)       // List retrieves all stored models
}

// CachedProject is a project snapshot persisted for offline reads.
type CachedProject struct {
	ProjectID   string
	Slug        string
	Title       string
	Description string
	OwnerHandle string
	ViewCount   int
	LikeCount   int
	SyncedAt    time.Time

	createdAt time.Time
	updatedAt time.Time
}

// NewCachedProject builds a cache record with creation timestamps set to now.
func NewCachedProject(projectID, slug, title, description, ownerHandle string, viewCount, likeCount int) *CachedProject {
	now := time.Now().UTC()
	return &CachedProject{
		ProjectID:   projectID,
		Slug:        slug,
		Title:       title,
		Description: description,
		OwnerHandle: ownerHandle,
		ViewCount:   viewCount,
		LikeCount:   likeCount,
		SyncedAt:    now,
		createdAt:   now,
		updatedAt:   now,
	}
}

func (p *CachedProject) ID() string           { return p.ProjectID }
func (p *CachedProject) CreatedAt() time.Time { return p.createdAt }
func (p *CachedProject) UpdatedAt() time.Time { return p.updatedAt }

// SetTimestamps restores persisted timestamps when a record is loaded.
func (p *CachedProject) SetTimestamps(createdAt, updatedAt time.Time) {
	p.createdAt = createdAt
	p.updatedAt = updatedAt
}

// Touch marks the record as updated now.
func (p *CachedProject) Touch() { p.updatedAt = time.Now().UTC() }

func (p *CachedProject) Validate() error {
	if p.ProjectID == "" {
		return fmt.Errorf("project id is required")
	}
	if p.Title == "" {
		return fmt.Errorf("project title is required")
	}
	return nil
}
