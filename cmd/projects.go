package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/urfave/cli/v3"

	"github.com/quietloop/foliox/internal/formatter"
	"github.com/quietloop/foliox/internal/shared"
	"github.com/quietloop/foliox/internal/tasks"
)

// ProjectsList prints the caller's projects.
func (r *Runner) ProjectsList(ctx context.Context, cmd *cli.Command) error {
	format, err := r.outputFormat(cmd)
	if err != nil {
		return err
	}

	page, err := r.projects.List(ctx, int(cmd.Int("limit")), int(cmd.Int("offset")))
	if err != nil {
		return fmt.Errorf("failed to list projects: %w", err)
	}

	if len(page.Items) == 0 {
		return r.writePlain("No projects found.\n")
	}

	if err := formatter.WriteProjects(r.output, page.Items, format); err != nil {
		return err
	}
	if format == formatter.FormatTable && page.Total > len(page.Items) {
		r.writePlain("Showing %d of %d projects\n", len(page.Items), page.Total)
	}
	return nil
}

// ProjectsShow prints a single project with its sections.
func (r *Runner) ProjectsShow(ctx context.Context, cmd *cli.Command) error {
	projectID := cmd.StringArg("id")
	if projectID == "" {
		return fmt.Errorf("%w: project id", shared.ErrMissingArgument)
	}

	project, err := r.projects.Get(ctx, projectID)
	if err != nil {
		return fmt.Errorf("failed to fetch project: %w", err)
	}

	if len(project.Sections) == 0 {
		if sections, err := r.projects.Sections(ctx, projectID); err == nil {
			project.Sections = sections
		}
	}

	return r.writeJSON(project, true)
}

// ProjectsSearch searches public projects.
func (r *Runner) ProjectsSearch(ctx context.Context, cmd *cli.Command) error {
	queryText := strings.TrimSpace(cmd.StringArg("query"))
	if queryText == "" {
		return fmt.Errorf("%w: search query", shared.ErrMissingArgument)
	}

	format, err := r.outputFormat(cmd)
	if err != nil {
		return err
	}

	results, err := r.projects.Search(ctx, queryText, int(cmd.Int("limit")))
	if err != nil {
		return fmt.Errorf("search failed: %w", err)
	}

	if len(results) == 0 {
		return r.writePlain("No projects matched %q.\n", queryText)
	}
	return formatter.WriteProjects(r.output, results, format)
}

// ProjectsExport bulk-exports projects to local files with live progress.
func (r *Runner) ProjectsExport(ctx context.Context, cmd *cli.Command) error {
	ids := cmd.StringSlice("id")
	if len(ids) == 0 {
		page, err := r.projects.List(ctx, 100, 0)
		if err != nil {
			return fmt.Errorf("failed to list projects: %w", err)
		}
		for _, p := range page.Items {
			ids = append(ids, p.ID)
		}
	}
	if len(ids) == 0 {
		return r.writePlain("Nothing to export.\n")
	}

	opts := tasks.ExportOpts{
		Format:     cmd.String("export-format"),
		OutputDir:  cmd.String("output"),
		NumWorkers: int(cmd.Int("workers")),
		RateLimit:  r.config.API.RateLimit,
	}

	prog := make(chan tasks.ProgressUpdate, 64)
	done := make(chan struct{})
	go func() {
		defer close(done)
		for update := range prog {
			r.writePlain("%s\n", update.Message)
		}
	}()

	result, err := r.engine.BulkExport(ctx, prog, ids, opts)
	close(prog)
	<-done
	if err != nil {
		return err
	}

	r.writePlainln("✓ Exported %d/%d projects to %s", result.SuccessfulExports, result.TotalProjects, result.OutputDirectory)
	if result.FailedExports > 0 {
		r.writePlain("  %d exports failed, see %s\n", result.FailedExports, result.ManifestPath)
	}
	return nil
}

// projectsCommand handles project operations
func projectsCommand(r *Runner) *cli.Command {
	formatFlag := &cli.StringFlag{
		Name:    "format",
		Aliases: []string{"f"},
		Usage:   "Output format: table, json, markdown",
		Value:   "table",
	}

	return &cli.Command{
		Name:    "projects",
		Aliases: []string{"p"},
		Usage:   "Browse and export portfolio projects",
		Commands: []*cli.Command{
			{
				Name:  "list",
				Usage: "List your projects",
				Flags: []cli.Flag{
					formatFlag,
					&cli.IntFlag{Name: "limit", Usage: "Maximum number of projects to return", Value: 50},
					&cli.IntFlag{Name: "offset", Usage: "Pagination offset", Value: 0},
				},
				Action: r.ProjectsList,
			},
			{
				Name:  "show",
				Usage: "Show a project with its sections",
				Arguments: []cli.Argument{
					&cli.StringArg{Name: "id"},
				},
				Action: r.ProjectsShow,
			},
			{
				Name:  "search",
				Usage: "Search public projects",
				Arguments: []cli.Argument{
					&cli.StringArg{Name: "query"},
				},
				Flags: []cli.Flag{
					formatFlag,
					&cli.IntFlag{Name: "limit", Usage: "Maximum number of results", Value: 20},
				},
				Action: r.ProjectsSearch,
			},
			{
				Name:  "export",
				Usage: "Export projects to local files",
				Flags: []cli.Flag{
					&cli.StringSliceFlag{Name: "id", Usage: "Project IDs to export (default: all)"},
					&cli.StringFlag{Name: "export-format", Usage: "File format: json, markdown", Value: "json"},
					&cli.StringFlag{Name: "output", Aliases: []string{"o"}, Usage: "Output directory"},
					&cli.IntFlag{Name: "workers", Usage: "Concurrent export workers", Value: 4},
				},
				Action: r.ProjectsExport,
			},
		},
	}
}
