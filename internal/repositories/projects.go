package repositories

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/quietloop/foliox/internal/models"
	"github.com/quietloop/foliox/internal/shared"
)

// ProjectRepository implements models.Repository[*models.CachedProject].
type ProjectRepository struct {
	db *sql.DB
}

// NewProjectRepository creates a new ProjectRepository with the given database connection
func NewProjectRepository(db *sql.DB) *ProjectRepository {
	return &ProjectRepository{db: db}
}

// Create inserts a new cached project.
func (r *ProjectRepository) Create(project *models.CachedProject) error {
	if err := project.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	query := `
		INSERT INTO projects (project_id, slug, title, description, owner_handle, view_count, like_count, synced_at, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := r.db.Exec(query,
		project.ProjectID,
		project.Slug,
		project.Title,
		project.Description,
		project.OwnerHandle,
		project.ViewCount,
		project.LikeCount,
		project.SyncedAt,
		project.CreatedAt(),
		project.UpdatedAt(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert project: %w", err)
	}
	return nil
}

// Get retrieves a cached project by its platform ID.
func (r *ProjectRepository) Get(id string) (*models.CachedProject, error) {
	query := `
		SELECT project_id, slug, title, description, owner_handle, view_count, like_count, synced_at, created_at, updated_at
		FROM projects WHERE project_id = ?
	`
	return r.scanOne(r.db.QueryRow(query, id))
}

// Update rewrites an existing cached project.
func (r *ProjectRepository) Update(project *models.CachedProject) error {
	if err := project.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}
	project.Touch()

	query := `
		UPDATE projects
		SET slug = ?, title = ?, description = ?, owner_handle = ?, view_count = ?, like_count = ?, synced_at = ?, updated_at = ?
		WHERE project_id = ?
	`
	result, err := r.db.Exec(query,
		project.Slug,
		project.Title,
		project.Description,
		project.OwnerHandle,
		project.ViewCount,
		project.LikeCount,
		project.SyncedAt,
		project.UpdatedAt(),
		project.ProjectID,
	)
	if err != nil {
		return fmt.Errorf("failed to update project: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %s", shared.ErrProjectNotFound, project.ProjectID)
	}
	return nil
}

// Upsert creates or refreshes a cached project in one call; sync runs use
// this so re-syncing is idempotent.
func (r *ProjectRepository) Upsert(project *models.CachedProject) error {
	if _, err := r.Get(project.ProjectID); err != nil {
		if errors.Is(err, shared.ErrProjectNotFound) {
			return r.Create(project)
		}
		return err
	}
	return r.Update(project)
}

// Delete removes a cached project.
func (r *ProjectRepository) Delete(id string) error {
	result, err := r.db.Exec(`DELETE FROM projects WHERE project_id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete project: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %s", shared.ErrProjectNotFound, id)
	}
	return nil
}

// List returns all cached projects, most recently synced first.
func (r *ProjectRepository) List() ([]*models.CachedProject, error) {
	query := `
		SELECT project_id, slug, title, description, owner_handle, view_count, like_count, synced_at, created_at, updated_at
		FROM projects ORDER BY synced_at DESC
	`
	rows, err := r.db.Query(query)
	if err != nil {
		return nil, fmt.Errorf("failed to list projects: %w", err)
	}
	defer rows.Close()

	var projects []*models.CachedProject
	for rows.Next() {
		project, err := r.scanRow(rows)
		if err != nil {
			return nil, err
		}
		projects = append(projects, project)
	}
	return projects, rows.Err()
}

// Clear drops every cached project.
func (r *ProjectRepository) Clear() error {
	if _, err := r.db.Exec(`DELETE FROM projects`); err != nil {
		return fmt.Errorf("failed to clear project cache: %w", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func (r *ProjectRepository) scanOne(row *sql.Row) (*models.CachedProject, error) {
	project, err := r.scanRow(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, shared.ErrProjectNotFound
	}
	return project, err
}

func (r *ProjectRepository) scanRow(row rowScanner) (*models.CachedProject, error) {
	var p models.CachedProject
	var createdAt, updatedAt time.Time
	err := row.Scan(
		&p.ProjectID, &p.Slug, &p.Title, &p.Description, &p.OwnerHandle,
		&p.ViewCount, &p.LikeCount, &p.SyncedAt, &createdAt, &updatedAt,
	)
	if err != nil {
		return nil, err
	}
	p.SetTimestamps(createdAt, updatedAt)
	return &p, nil
}
