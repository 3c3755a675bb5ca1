package main

import (
	"context"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/trainhub/internal/models"
	"github.com/desertthunder/trainhub/internal/shared"
	"github.com/desertthunder/trainhub/internal/ui"
	"github.com/urfave/cli/v3"
)

// TUI launches the interactive terminal browser for resources and trainings.
func (r *Runner) TUI(ctx context.Context, cmd *cli.Command) error {
	// Redirect logs to file to avoid interfering with TUI rendering
	fileLogger, err := shared.NewFileLogger("./tmp/trainhub-tui.log")
	if err != nil {
		return fmt.Errorf("failed to create file logger: %w", err)
	}
	r.SetLogger(fileLogger)

	lib, err := r.library(nil)
	if err != nil {
		return err
	}

	opts := ui.Options{Library: lib, SyncOpts: r.syncOpts(cmd)}
	if engine, err := r.contentEngine(nil); err == nil {
		opts.Syncer = engine
	} else {
		r.logger.Warn("sync disabled in TUI", "error", err)
	}

	if email := cmd.String("email"); email != "" {
		var user *models.User
		if user, err = r.userByEmail(email); err != nil {
			return err
		}
		opts.User = user
	}

	p := tea.NewProgram(ui.NewModel(ctx, opts), tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("error running TUI: %w", err)
	}

	return nil
}
