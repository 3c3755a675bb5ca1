package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/desertthunder/trainhub/internal/shared"
	"github.com/urfave/cli/v3"
)

// Setup writes config.toml from the embedded template, initializes the
// database, runs migrations and creates the upload directory.
func (r *Runner) Setup(ctx context.Context, cmd *cli.Command) error {
	configPath := r.configPath
	if configPath == "" {
		configPath = "config.toml"
	}

	if cmd.Bool("force") {
		if err := os.Remove(configPath); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("failed to remove existing config: %w", err)
		}
	}

	if err := shared.CreateConfigFile(configPath); err != nil {
		if !errors.Is(err, shared.ErrConflict) {
			return err
		}
		r.logger.Info("config file exists, keeping it", "path", configPath)
	} else {
		r.logger.Info("config file created", "path", configPath)
	}

	config, err := shared.LoadConfig(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	shared.ApplyEnv(config)
	r.config = config

	r.logger.Info("initializing database", "path", config.Database.Path)
	if _, err := r.database(); err != nil {
		return err
	}

	store, err := r.objectStore()
	if err != nil {
		return err
	}

	r.logger.Infof("setup complete for database: %v", config.Database.Path)
	r.writePlain("✓ Config: %s\n", configPath)
	r.writePlain("✓ Database: %s\n", config.Database.Path)
	r.writePlain("✓ Uploads: %s (limit %d MB)\n", config.Storage.Path, store.MaxBytes()>>20)
	r.writePlainln("Next steps:")
	r.writePlain("1. Set cms.project_id in %s (and TRAINHUB_CMS_TOKEN for private datasets)\n", configPath)
	r.writePlain("2. Run 'trainhub sync' to fill the content cache\n")
	r.writePlain("3. Run 'trainhub user create --email you@example.com --password ...' and 'trainhub serve'\n")
	return nil
}

// MigrateUp applies pending migrations.
func (r *Runner) MigrateUp(ctx context.Context, cmd *cli.Command) error {
	db, err := r.openDatabase(false)
	if err != nil {
		return err
	}
	if err := shared.RunMigrations(db); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	r.writePlain("✓ Migrations applied\n")
	return nil
}

// MigrateStatus lists every migration and whether it is applied.
func (r *Runner) MigrateStatus(ctx context.Context, cmd *cli.Command) error {
	db, err := r.openDatabase(false)
	if err != nil {
		return err
	}
	status, err := shared.Migrations(db)
	if err != nil {
		return err
	}

	for _, m := range status {
		mark := " "
		if m.Applied {
			mark = "✓"
		}
		r.writePlain("[%s] %04d %s\n", mark, m.Version, m.Name)
	}
	return nil
}

// MigrateRollback rolls back the most recent migration.
func (r *Runner) MigrateRollback(ctx context.Context, cmd *cli.Command) error {
	db, err := r.openDatabase(false)
	if err != nil {
		return err
	}
	if err := shared.RollbackMigration(db); err != nil {
		return err
	}
	r.writePlain("✓ Rolled back the latest migration\n")
	return nil
}
