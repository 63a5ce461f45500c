package main

import (
	"context"
	"errors"
	"os"

	"github.com/urfave/cli/v3"

	"github.com/quietloop/foliox/internal/api"
	"github.com/quietloop/foliox/internal/repositories"
	"github.com/quietloop/foliox/internal/shared"
)

func main() {
	logger := shared.NewLogger(nil)

	config := shared.DefaultConfig()
	if _, err := os.Stat("config.toml"); err == nil {
		if loadedConfig, err := shared.LoadConfig("config.toml"); err == nil {
			config = loadedConfig
		}
	}

	client, err := api.New(api.Options{
		BaseURL:   config.API.BaseURL,
		LoginURL:  config.API.BaseURL + config.Auth.LoginPath,
		Logger:    logger,
		RateLimit: config.API.RateLimit,
	})
	if err != nil {
		logger.Fatalf("failed to create API client: %v", err)
	}

	restoreSession(config, client)

	runner := NewRunner(RunnerOpts{
		Config: config,
		Client: client,
		Logger: logger,
	})

	app := &cli.Command{
		Name:     "foliox",
		Usage:    "Folio portfolio platform from the terminal",
		Version:  "0.3.0",
		Commands: runner.register(),
	}

	if err := app.Run(context.Background(), os.Args); err != nil {
		err_ := errors.Unwrap(err)
		if errors.Is(err_, shared.ErrNotImplemented) {
			logger.Warn("not implemented")
			os.Exit(0)
		} else {
			logger.Fatalf("application error: %v", err)
		}
	}
}

// restoreSession loads persisted session cookies into the client so commands
// run authenticated without a fresh login. Missing cache is not an error.
func restoreSession(config *shared.Config, client *api.Client) {
	db, err := repositories.Open(config.Cache.Path, config.Cache.MaxOpenConns, config.Cache.MaxIdleConns)
	if err != nil {
		return
	}
	defer db.Close()

	cookies, err := repositories.NewSessionRepository(db).Load()
	if err != nil || len(cookies) == 0 {
		return
	}
	client.RestoreSession(cookies)
}
