package main

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v3"

	"github.com/quietloop/foliox/internal/repositories"
	"github.com/quietloop/foliox/internal/tasks"
)

// CacheSync mirrors the caller's projects into the local cache.
func (r *Runner) CacheSync(ctx context.Context, cmd *cli.Command) error {
	db, err := r.openCache()
	if err != nil {
		return fmt.Errorf("failed to open cache: %w", err)
	}
	defer db.Close()

	r.logger.Info("syncing project cache", "path", r.config.Cache.Path)

	prog := make(chan tasks.ProgressUpdate, 64)
	done := make(chan struct{})
	go func() {
		defer close(done)
		for update := range prog {
			r.logger.Debug(update.Message)
		}
	}()

	result, err := r.engine.SyncCache(ctx, prog, repositories.NewProjectRepository(db))
	close(prog)
	<-done
	if err != nil {
		return err
	}

	r.writePlain("✓ Cached %d projects\n", result.Synced)
	if result.Failed > 0 {
		r.writePlain("  %d projects failed to cache\n", result.Failed)
	}
	return nil
}

// CacheList prints locally cached projects without touching the network.
func (r *Runner) CacheList(ctx context.Context, cmd *cli.Command) error {
	db, err := r.openCache()
	if err != nil {
		return fmt.Errorf("failed to open cache: %w", err)
	}
	defer db.Close()

	cached, err := repositories.NewProjectRepository(db).List()
	if err != nil {
		return fmt.Errorf("failed to read cache: %w", err)
	}

	if len(cached) == 0 {
		return r.writePlain("Cache is empty. Run 'foliox cache sync' first.\n")
	}

	for _, p := range cached {
		r.writePlain("%s  %s (@%s) - synced %s\n",
			p.ProjectID, p.Title, p.OwnerHandle, p.SyncedAt.Local().Format("2006-01-02 15:04"))
	}
	return nil
}

// CacheClear empties the local project cache.
func (r *Runner) CacheClear(ctx context.Context, cmd *cli.Command) error {
	db, err := r.openCache()
	if err != nil {
		return fmt.Errorf("failed to open cache: %w", err)
	}
	defer db.Close()

	if err := repositories.NewProjectRepository(db).Clear(); err != nil {
		return fmt.Errorf("failed to clear cache: %w", err)
	}

	r.logger.Info("project cache cleared")
	return r.writePlain("✓ Cache cleared\n")
}

// cacheCommand handles the offline project cache
func cacheCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "cache",
		Usage: "Manage the offline project cache",
		Commands: []*cli.Command{
			{
				Name:   "sync",
				Usage:  "Mirror your projects into the local cache",
				Action: r.CacheSync,
			},
			{
				Name:   "list",
				Usage:  "List cached projects",
				Action: r.CacheList,
			},
			{
				Name:   "clear",
				Usage:  "Empty the local cache",
				Action: r.CacheClear,
			},
		},
	}
}
