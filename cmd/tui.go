package main

import (
	"context"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/urfave/cli/v3"

	"github.com/quietloop/foliox/internal/shared"
	"github.com/quietloop/foliox/internal/stream"
	"github.com/quietloop/foliox/internal/ui"
)

// Chat launches the interactive clip assistant over the event stream.
func (r *Runner) Chat(ctx context.Context, cmd *cli.Command) error {
	// Redirect logs to file to avoid interfering with TUI rendering
	fileLogger, err := shared.NewFileLogger("./tmp/foliox-chat.log")
	if err != nil {
		return fmt.Errorf("failed to create file logger: %w", err)
	}
	r.SetLogger(fileLogger)

	client, err := stream.NewClient(stream.Config{
		URL:       r.config.API.StreamURL,
		SessionID: cmd.String("session"),
		Logger:    fileLogger,
		Token: func(ctx context.Context) (string, error) {
			return r.auth.ConnectionToken(ctx)
		},
	})
	if err != nil {
		return fmt.Errorf("failed to create stream client: %w", err)
	}

	model := ui.NewModel(ctx, client, cmd.StringArg("prompt"))
	p := tea.NewProgram(model)

	if _, err := p.Run(); err != nil {
		return fmt.Errorf("error running TUI: %w", err)
	}

	return model.Err()
}

// chatCommand launches the clip assistant TUI
func chatCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "chat",
		Usage: "Generate clips with the interactive assistant",
		Arguments: []cli.Argument{
			&cli.StringArg{Name: "prompt"},
		},
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "session",
				Usage: "Resume an existing assistant conversation",
			},
		},
		Action: r.Chat,
	}
}
