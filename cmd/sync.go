package main

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"sync"
	"time"

	"github.com/desertthunder/trainhub/internal/events"
	"github.com/desertthunder/trainhub/internal/shared"
	"github.com/desertthunder/trainhub/internal/tasks"
	"github.com/urfave/cli/v3"
)

// Sync copies CMS content into the local cache and reports per-kind results.
func (r *Runner) Sync(ctx context.Context, cmd *cli.Command) error {
	engine, err := r.contentEngine(nil)
	if err != nil {
		return err
	}

	opts := r.syncOpts(cmd)
	r.logger.Info("starting sync", "workers", opts.NumWorkers, "rate", opts.RateLimit)
	r.writePlain("Syncing content from the CMS...\n\n")

	progressCh := make(chan tasks.ProgressUpdate, 50)
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for update := range progressCh {
			switch update.Phase {
			case tasks.FetchContent:
				r.writePlain("📥 %s\n", update.Message)
			case tasks.CacheContent:
				r.writePlain("💾 %s\n", update.Message)
			case tasks.PruneContent:
				r.writePlain("🧹 %s\n", update.Message)
			}
		}
	}()

	result, err := engine.Sync(ctx, progressCh, opts)
	close(progressCh)
	wg.Wait()

	if err != nil {
		return err
	}

	r.writePlain("\n")
	r.writePlainHeader("Sync Complete!")
	for _, kind := range slices.Sorted(maps.Keys(result.Counts)) {
		r.writePlain("%-10s %d cached, %d removed\n", kind+"s", result.Counts[kind], result.Pruned[kind])
	}
	r.writePlain("Duration: %s\n", result.Duration.Round(time.Millisecond))

	if result.Failed() {
		r.writePlain("\nFailed kinds (cached copies were kept):\n")
		for _, ke := range result.Errors {
			r.writePlain("  - %s: %v\n", ke.Kind, ke.Error)
		}
		return fmt.Errorf("%w: %d content kinds failed to sync", shared.ErrAPIRequest, len(result.Errors))
	}
	return nil
}

// syncLoop refreshes the cache every interval until ctx is done. Changes are
// published so open dashboards refresh.
func (r *Runner) syncLoop(ctx context.Context, interval time.Duration, pub events.Publisher, opts tasks.SyncOpts) {
	engine, err := r.contentEngine(pub)
	if err != nil {
		r.logger.Warn("background sync disabled", "error", err)
		return
	}

	logger := shared.WithLogger(r.logger, "component", "sync")
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			result, err := engine.Sync(ctx, nil, opts)
			if err != nil {
				logger.Error("background sync failed", "error", err)
				continue
			}
			logger.Info("background sync finished", "counts", result.Counts, "errors", len(result.Errors), "duration", result.Duration)
		}
	}
}
