package main

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v3"

	"github.com/quietloop/foliox/internal/formatter"
)

// ProfileMe prints the caller's profile.
func (r *Runner) ProfileMe(ctx context.Context, cmd *cli.Command) error {
	format, err := r.outputFormat(cmd)
	if err != nil {
		return err
	}

	profile, err := r.profiles.Me(ctx)
	if err != nil {
		return fmt.Errorf("failed to fetch profile: %w", err)
	}
	return formatter.WriteProfile(r.output, profile, format)
}

// ProfileShow prints a public profile by handle.
func (r *Runner) ProfileShow(ctx context.Context, cmd *cli.Command) error {
	handle := cmd.StringArg("handle")
	if handle == "" {
		return r.ProfileMe(ctx, cmd)
	}

	format, err := r.outputFormat(cmd)
	if err != nil {
		return err
	}

	profile, err := r.profiles.PublicProfile(ctx, handle)
	if err != nil {
		return fmt.Errorf("failed to fetch profile: %w", err)
	}
	return formatter.WriteProfile(r.output, profile, format)
}

// profileCommand handles profile lookups
func profileCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "profile",
		Usage: "Show your profile or a public one",
		Arguments: []cli.Argument{
			&cli.StringArg{Name: "handle"},
		},
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "format",
				Aliases: []string{"f"},
				Usage:   "Output format: table, json, markdown",
				Value:   "table",
			},
		},
		Action: r.ProfileShow,
	}
}
