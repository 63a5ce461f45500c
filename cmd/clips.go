package main

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v3"

	"github.com/quietloop/foliox/internal/formatter"
	"github.com/quietloop/foliox/internal/shared"
)

// ClipsList prints the clips generated for a project.
func (r *Runner) ClipsList(ctx context.Context, cmd *cli.Command) error {
	projectID := cmd.StringArg("project")
	if projectID == "" {
		return fmt.Errorf("%w: project id", shared.ErrMissingArgument)
	}

	format, err := r.outputFormat(cmd)
	if err != nil {
		return err
	}

	clips, err := r.clips.List(ctx, projectID)
	if err != nil {
		return fmt.Errorf("failed to list clips: %w", err)
	}

	if len(clips) == 0 {
		return r.writePlain("No clips for this project yet. Try 'foliox chat'.\n")
	}
	return formatter.WriteClips(r.output, clips, format)
}

// ClipsShow prints a single clip.
func (r *Runner) ClipsShow(ctx context.Context, cmd *cli.Command) error {
	clipID := cmd.StringArg("id")
	if clipID == "" {
		return fmt.Errorf("%w: clip id", shared.ErrMissingArgument)
	}

	clip, err := r.clips.Get(ctx, clipID)
	if err != nil {
		return fmt.Errorf("failed to fetch clip: %w", err)
	}
	return r.writeJSON(clip, true)
}

// ClipsDelete removes a clip.
func (r *Runner) ClipsDelete(ctx context.Context, cmd *cli.Command) error {
	clipID := cmd.StringArg("id")
	if clipID == "" {
		return fmt.Errorf("%w: clip id", shared.ErrMissingArgument)
	}

	if err := r.clips.Delete(ctx, clipID); err != nil {
		return fmt.Errorf("failed to delete clip: %w", err)
	}

	r.logger.Info("clip deleted", "id", clipID)
	return r.writePlain("✓ Clip deleted\n")
}

// clipsCommand handles clip operations
func clipsCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "clips",
		Usage: "Inspect and manage generated clips",
		Commands: []*cli.Command{
			{
				Name:  "list",
				Usage: "List clips for a project",
				Arguments: []cli.Argument{
					&cli.StringArg{Name: "project"},
				},
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "format",
						Aliases: []string{"f"},
						Usage:   "Output format: table, json, markdown",
						Value:   "table",
					},
				},
				Action: r.ClipsList,
			},
			{
				Name:  "show",
				Usage: "Show a clip",
				Arguments: []cli.Argument{
					&cli.StringArg{Name: "id"},
				},
				Action: r.ClipsShow,
			},
			{
				Name:  "delete",
				Usage: "Delete a clip",
				Arguments: []cli.Argument{
					&cli.StringArg{Name: "id"},
				},
				Action: r.ClipsDelete,
			},
		},
	}
}
