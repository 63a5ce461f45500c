package tasks

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/quietloop/foliox/internal/models"
	"github.com/quietloop/foliox/internal/services"
	"github.com/quietloop/foliox/internal/shared"
	"golang.org/x/time/rate"
)

// ProjectFetcher defines the API operations the export engine depends on.
// This abstraction allows for easier testing and decoupling from concrete implementation.
type ProjectFetcher interface {
	Get(ctx context.Context, projectID string) (*services.Project, error)
	Sections(ctx context.Context, projectID string) ([]services.Section, error)
	List(ctx context.Context, limit, offset int) (*services.Paginated[services.Project], error)
}

// ProjectCache defines the local persistence operations used by cache sync.
type ProjectCache interface {
	Upsert(project *models.CachedProject) error
	Clear() error
}

// ExportOpts contains configuration for bulk project exports.
type ExportOpts struct {
	Format     string  // Export format: json, markdown
	OutputDir  string  // Base output directory (default: folio_export_{epoch})
	NumWorkers int     // Concurrent workers (default: 4)
	RateLimit  float64 // Requests per second (default: 5)
}

// ProjectExportJob carries a fetched project into the worker pool.
type ProjectExportJob struct {
	ProjectID string
	Project   *services.Project
	Sections  []services.Section
}

// ProjectExportResult represents the outcome of exporting a single project.
type ProjectExportResult struct {
	ProjectID string   `json:"projectId"`
	Title     string   `json:"title"`
	Success   bool     `json:"success"`
	Files     []string `json:"files,omitempty"`
	Error     error    `json:"-"`
	ErrorMsg  string   `json:"error,omitempty"`
}

// BulkExportResult summarizes a full bulk export run.
type BulkExportResult struct {
	TotalProjects     int                   `json:"totalProjects"`
	SuccessfulExports int                   `json:"successfulExports"`
	FailedExports     int                   `json:"failedExports"`
	OutputDirectory   string                `json:"outputDirectory"`
	ManifestPath      string                `json:"manifestPath"`
	Results           []ProjectExportResult `json:"results"`
}

// CacheSyncResult summarizes a cache sync run.
type CacheSyncResult struct {
	Synced int
	Failed int
}

// ExportEngine orchestrates bulk exports and cache syncs over the Folio API.
type ExportEngine struct {
	projects ProjectFetcher
}

// NewExportEngine creates an ExportEngine backed by the given project fetcher.
func NewExportEngine(projects ProjectFetcher) *ExportEngine {
	return &ExportEngine{projects: projects}
}

// sendProgress sends a progress update through the channel without blocking.
// Uses select with default to ensure progress reporting never blocks execution.
func (e *ExportEngine) sendProgress(progress chan<- ProgressUpdate, update ProgressUpdate) {
	if progress == nil {
		return
	}
	select {
	case progress <- update:
	default:
	}
}

// BulkExport exports multiple projects concurrently with rate limiting and progress tracking.
//
// This method implements a worker pool pattern to efficiently export multiple projects.
// It respects API rate limits, handles partial failures gracefully, and generates
// a manifest file summarizing the export results.
func (e *ExportEngine) BulkExport(
	ctx context.Context,
	prog chan<- ProgressUpdate,
	ids []string,
	opts ExportOpts,
) (*BulkExportResult, error) {
	if e.projects == nil {
		return nil, fmt.Errorf("%w: project service not initialized", shared.ErrServiceUnavailable)
	}

	if opts.OutputDir == "" {
		opts.OutputDir = fmt.Sprintf("folio_export_%d", time.Now().Unix())
	}
	if opts.Format == "" {
		opts.Format = "json"
	}
	if opts.NumWorkers <= 0 {
		opts.NumWorkers = 4
	}
	if opts.NumWorkers > 8 {
		opts.NumWorkers = 8
	}
	if opts.RateLimit <= 0 {
		opts.RateLimit = 5.0
	}

	if err := os.MkdirAll(opts.OutputDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}

	result := &BulkExportResult{
		TotalProjects:   len(ids),
		OutputDirectory: opts.OutputDir,
		Results:         make([]ProjectExportResult, 0, len(ids)),
	}

	limiter := rate.NewLimiter(rate.Limit(opts.RateLimit), 1)

	jobs := make(chan ProjectExportJob, len(ids))
	results := make(chan ProjectExportResult, len(ids))

	var wg sync.WaitGroup
	for i := 0; i < opts.NumWorkers; i++ {
		wg.Add(1)
		go e.exportWorker(ctx, &wg, jobs, results, opts)
	}

	go func() {
		for i, projectID := range ids {
			select {
			case <-ctx.Done():
				close(jobs)
				return
			default:
			}

			if err := limiter.Wait(ctx); err != nil {
				close(jobs)
				return
			}

			project, err := e.projects.Get(ctx, projectID)
			if err != nil {
				results <- ProjectExportResult{
					ProjectID: projectID,
					Title:     fmt.Sprintf("Unknown (%s)", projectID),
					Success:   false,
					Error:     fmt.Errorf("failed to fetch project: %w", err),
				}
				continue
			}

			sections := project.Sections
			if len(sections) == 0 {
				sections, err = e.projects.Sections(ctx, projectID)
				if err != nil {
					results <- ProjectExportResult{
						ProjectID: projectID,
						Title:     project.Title,
						Success:   false,
						Error:     fmt.Errorf("failed to fetch sections: %w", err),
					}
					continue
				}
			}

			jobs <- ProjectExportJob{
				ProjectID: projectID,
				Project:   project,
				Sections:  sections,
			}

			e.sendProgress(prog, fetchingProjectUpdate(i+1, len(ids), project.Title))
		}
		close(jobs)
	}()

	go func() {
		wg.Wait()
		close(results)
	}()

	completed := 0
	for res := range results {
		completed++
		if res.Error != nil {
			res.ErrorMsg = res.Error.Error()
		}
		result.Results = append(result.Results, res)

		if res.Success {
			result.SuccessfulExports++
			e.sendProgress(prog, exportCompletedUpdate(completed, len(ids), res.Title, len(res.Files)))
		} else {
			result.FailedExports++
			e.sendProgress(prog, exportFailedUpdate(completed, len(ids), res.Title, res.Error))
		}
	}

	manifestPath := filepath.Join(opts.OutputDir, "export_manifest.json")
	if err := writeManifest(result, manifestPath); err != nil {
		return result, fmt.Errorf("export completed but failed to write manifest: %w", err)
	}
	result.ManifestPath = manifestPath
	return result, nil
}

// exportWorker is a worker goroutine that exports projects from the jobs channel.
func (e *ExportEngine) exportWorker(
	ctx context.Context,
	wg *sync.WaitGroup,
	jobs <-chan ProjectExportJob,
	results chan<- ProjectExportResult,
	opts ExportOpts,
) {
	defer wg.Done()

	for job := range jobs {
		select {
		case <-ctx.Done():
			return
		default:
		}

		results <- e.exportSingleProject(job, opts)
	}
}

// exportSingleProject writes a single project to disk in the requested format.
func (e *ExportEngine) exportSingleProject(j ProjectExportJob, opts ExportOpts) ProjectExportResult {
	result := ProjectExportResult{
		ProjectID: j.ProjectID,
		Title:     j.Project.Title,
		Success:   false,
		Files:     []string{},
	}

	base := j.Project.Slug
	if base == "" {
		base = j.ProjectID
	}

	switch opts.Format {
	case "markdown":
		path := filepath.Join(opts.OutputDir, base+".md")
		if err := writeMarkdownExport(j.Project, j.Sections, path); err != nil {
			result.Error = fmt.Errorf("markdown export failed: %w", err)
			return result
		}
		result.Files = []string{path}
		result.Success = true

	case "json":
		path := filepath.Join(opts.OutputDir, base+".json")
		if err := writeJSONExport(j.Project, j.Sections, path); err != nil {
			result.Error = fmt.Errorf("JSON export failed: %w", err)
			return result
		}
		result.Files = []string{path}
		result.Success = true

	default:
		result.Error = fmt.Errorf("unsupported export format: %s", opts.Format)
	}

	return result
}

// SyncCache mirrors the caller's projects into the local cache for offline reads.
// Existing cache rows are replaced so the cache reflects the current server state.
func (e *ExportEngine) SyncCache(
	ctx context.Context,
	prog chan<- ProgressUpdate,
	cache ProjectCache,
) (*CacheSyncResult, error) {
	if e.projects == nil {
		return nil, fmt.Errorf("%w: project service not initialized", shared.ErrServiceUnavailable)
	}
	if cache == nil {
		return nil, fmt.Errorf("%w: cache not initialized", shared.ErrServiceUnavailable)
	}

	result := &CacheSyncResult{}

	const pageSize = 50
	offset := 0
	cleared := false
	for {
		page, err := e.projects.List(ctx, pageSize, offset)
		if err != nil {
			return result, fmt.Errorf("failed to list projects: %w", err)
		}

		if !cleared {
			if err := cache.Clear(); err != nil {
				return result, fmt.Errorf("failed to clear cache: %w", err)
			}
			cleared = true
		}

		for i, project := range page.Items {
			record := models.NewCachedProject(
				project.ID,
				project.Slug,
				project.Title,
				project.Description,
				project.OwnerHandle,
				project.ViewCount,
				project.LikeCount,
			)
			if err := cache.Upsert(record); err != nil {
				result.Failed++
				continue
			}
			result.Synced++
			e.sendProgress(prog, syncingCacheUpdate(offset+i+1, page.Total, project.Title))
		}

		offset += len(page.Items)
		if len(page.Items) == 0 || offset >= page.Total {
			break
		}
	}

	return result, nil
}

func writeJSONExport(project *services.Project, sections []services.Section, path string) error {
	type export struct {
		Project  *services.Project  `json:"project"`
		Sections []services.Section `json:"sections"`
	}
	data, err := json.MarshalIndent(export{Project: project, Sections: sections}, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

func writeMarkdownExport(project *services.Project, sections []services.Section, path string) error {
	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n\n", project.Title)
	if project.Description != "" {
		fmt.Fprintf(&b, "%s\n\n", project.Description)
	}
	fmt.Fprintf(&b, "By @%s | %d views | %d likes\n", project.OwnerHandle, project.ViewCount, project.LikeCount)

	for _, section := range sections {
		fmt.Fprintf(&b, "\n## %s\n", section.Title)
		if len(section.Content) > 0 {
			fmt.Fprintf(&b, "\n```json\n%s\n```\n", string(section.Content))
		}
	}

	return os.WriteFile(path, []byte(b.String()), 0644)
}

func writeManifest(result *BulkExportResult, path string) error {
	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}
