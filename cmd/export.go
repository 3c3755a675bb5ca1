package main

import (
	"context"
	"sync"

	"github.com/desertthunder/trainhub/internal/formatter"
	"github.com/desertthunder/trainhub/internal/tasks"
	"github.com/urfave/cli/v3"
)

// ExportLibrary writes resources, trainings and optionally a user's progress to disk.
func (r *Runner) ExportLibrary(ctx context.Context, cmd *cli.Command) error {
	opts := tasks.ExportOpts{Images: cmd.Bool("images")}
	if email := cmd.String("email"); email != "" {
		user, err := r.userByEmail(email)
		if err != nil {
			return err
		}
		opts.UserID = user.ID
	}
	return r.export(ctx, cmd, opts)
}

// ExportProgress writes a single user's training progress report.
func (r *Runner) ExportProgress(ctx context.Context, cmd *cli.Command) error {
	user, err := r.userByEmail(cmd.String("email"))
	if err != nil {
		return err
	}
	return r.export(ctx, cmd, tasks.ExportOpts{
		UserID: user.ID,
		Units:  []tasks.ExportUnit{tasks.ExportProgress},
	})
}

func (r *Runner) export(ctx context.Context, cmd *cli.Command, opts tasks.ExportOpts) error {
	format, err := formatter.ParseFormat(cmd.String("format"))
	if err != nil {
		return err
	}
	opts.Format = format
	opts.OutputDir = cmd.String("output")
	opts.NumWorkers = cmd.Int("workers")

	lib, err := r.library(nil)
	if err != nil {
		return err
	}

	r.logger.Info("starting export", "format", opts.Format, "workers", opts.NumWorkers)

	progressCh := make(chan tasks.ProgressUpdate, 50)
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for update := range progressCh {
			if update.Phase == tasks.ExportContent {
				r.writePlain("📦 %s\n", update.Message)
			}
		}
	}()

	result, err := lib.Export(ctx, progressCh, opts)
	close(progressCh)
	wg.Wait()

	if err != nil {
		return err
	}

	m := result.Manifest
	r.writePlain("\n")
	r.writePlainHeader("Export Complete!")
	r.writePlain("Format: %s\n", m.Format)
	r.writePlain("Output: %s\n", m.OutputDir)
	r.writePlain("Successful: %d\n", m.Successful)
	if m.Failed > 0 {
		r.writePlain("Failed: %d\n", m.Failed)
	}
	r.writePlain("\n")
	for _, unit := range m.Units {
		if unit.Error != "" {
			r.writePlain("  ✗ %-10s %s\n", unit.Name, unit.Error)
			continue
		}
		r.writePlain("  ✓ %-10s %d items\n", unit.Name, unit.Items)
	}
	r.writePlain("\nManifest: %s\n", result.ManifestPath)
	return nil
}
