package main

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/log"
	"github.com/urfave/cli/v3"

	"github.com/quietloop/foliox/internal/api"
	"github.com/quietloop/foliox/internal/formatter"
	"github.com/quietloop/foliox/internal/repositories"
	"github.com/quietloop/foliox/internal/services"
	"github.com/quietloop/foliox/internal/shared"
	"github.com/quietloop/foliox/internal/tasks"
)

// Runner holds all dependencies for CLI commands and provides methods for each command action.
type Runner struct {
	config   *shared.Config
	client   *api.Client
	auth     *services.AuthService
	projects *services.ProjectService
	profiles *services.ProfileService
	clips    *services.ClipService
	engine   *tasks.ExportEngine
	logger   *log.Logger
	output   io.Writer
}

// RunnerOpts contains configuration options for creating a Runner.
type RunnerOpts struct {
	Config *shared.Config
	Client *api.Client
	Logger *log.Logger
	Output io.Writer
}

// NewRunner creates a new Runner with the provided configuration
func NewRunner(opts RunnerOpts) *Runner {
	if opts.Config == nil {
		opts.Config = shared.DefaultConfig()
	}
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}
	if opts.Output == nil {
		opts.Output = os.Stdout
	}

	r := &Runner{
		config: opts.Config,
		client: opts.Client,
		logger: opts.Logger,
		output: opts.Output,
	}

	if opts.Client != nil {
		r.auth = services.NewAuthService(opts.Client)
		r.projects = services.NewProjectService(opts.Client)
		r.profiles = services.NewProfileService(opts.Client)
		r.clips = services.NewClipService(opts.Client)
		r.engine = tasks.NewExportEngine(r.projects)
	}

	return r
}

// SetLogger swaps the runner's logger, used when the TUI redirects logs to a file.
func (r *Runner) SetLogger(l *log.Logger) {
	r.logger = l
}

func (r *Runner) register() []*cli.Command {
	commands := []*cli.Command{}
	for _, fn := range [](func(*Runner) *cli.Command){
		setupCommand, authCommand, projectsCommand, clipsCommand, profileCommand, apiCommand, cacheCommand, chatCommand,
	} {
		commands = append(commands, fn(r))
	}

	return commands
}

// openCache opens the local cache database using the configured path.
// Callers own the returned handle.
func (r *Runner) openCache() (*sql.DB, error) {
	return repositories.Open(r.config.Cache.Path, r.config.Cache.MaxOpenConns, r.config.Cache.MaxIdleConns)
}

// outputFormat resolves the --format flag against the output writer.
func (r *Runner) outputFormat(cmd *cli.Command) (formatter.Format, error) {
	format, err := formatter.ParseFormat(cmd.String("format"))
	if err != nil {
		return "", fmt.Errorf("%w: %v", shared.ErrInvalidFlag, err)
	}
	return formatter.ResolveFormat(format, r.output), nil
}

func (r *Runner) writeJSON(data any, pretty bool) error {
	var output []byte
	var err error

	if pretty {
		output, err = json.MarshalIndent(data, "", "  ")
	} else {
		output, err = json.Marshal(data)
	}

	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}

	if _, err := r.output.Write(output); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}

	if _, err := r.output.Write([]byte("\n")); err != nil {
		return fmt.Errorf("failed to write newline: %w", err)
	}

	return nil
}

func (r *Runner) writePlain(format string, args ...any) error {
	text := fmt.Sprintf(format, args...)
	if _, err := r.output.Write([]byte(text)); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func (r *Runner) writePlainln(format string, args ...any) error {
	text := "\n" + fmt.Sprintf(format, args...) + "\n"
	if _, err := r.output.Write([]byte(text)); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}
