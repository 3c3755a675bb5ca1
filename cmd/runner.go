package main

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/trainhub/internal/events"
	"github.com/desertthunder/trainhub/internal/repositories"
	"github.com/desertthunder/trainhub/internal/services"
	"github.com/desertthunder/trainhub/internal/shared"
	"github.com/desertthunder/trainhub/internal/storage"
	"github.com/desertthunder/trainhub/internal/tasks"
	"github.com/urfave/cli/v3"
)

// Runner holds all dependencies for CLI commands and provides methods for each command action.
//
// The database, CMS client and object store are opened on first use so that
// commands which need none of them (setup, help) work without configuration.
type Runner struct {
	config     *shared.Config
	configPath string
	cms        services.ContentService
	db         *sql.DB
	ownsDB     bool
	store      *storage.DiskStore
	httpClient *http.Client
	logger     *log.Logger
	output     io.Writer
}

// RunnerOpts contains configuration options for creating a Runner.
type RunnerOpts struct {
	Config     *shared.Config
	ConfigPath string
	CMS        services.ContentService // built from [shared.CMSConfig] over HTTPClient when nil
	DB         *sql.DB                 // opened from [shared.DatabaseConfig] when nil
	HTTPClient *http.Client
	Logger     *log.Logger
	Output     io.Writer
}

// NewRunner creates a new Runner with the provided configuration
func NewRunner(opts RunnerOpts) *Runner {
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}
	if opts.Output == nil {
		opts.Output = os.Stdout
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = http.DefaultClient
	}

	return &Runner{
		config:     opts.Config,
		configPath: opts.ConfigPath,
		cms:        opts.CMS,
		db:         opts.DB,
		httpClient: opts.HTTPClient,
		logger:     opts.Logger,
		output:     opts.Output,
	}
}

func (r *Runner) register() []*cli.Command {
	commands := []*cli.Command{}
	for _, fn := range [](func(*Runner) *cli.Command){
		setupCommand, migrateCommand, serveCommand, cmsCommand, syncCommand, userCommand, exportCommand, tuiCommand,
	} {
		commands = append(commands, fn(r))
	}

	return commands
}

// SetLogger replaces the runner's logger, e.g. to keep log lines out of the TUI.
func (r *Runner) SetLogger(logger *log.Logger) {
	r.logger = logger
}

// Before loads configuration for every command. A missing config file falls
// back to the embedded defaults; environment secrets are applied on top.
func (r *Runner) Before(ctx context.Context, cmd *cli.Command) (context.Context, error) {
	if path := cmd.String("config"); path != "" && r.configPath == "" {
		r.configPath = path
	}
	if r.config == nil {
		config, err := r.readConfig()
		if err != nil {
			return ctx, err
		}
		r.config = config
	}

	if cmd.Bool("verbose") {
		shared.SetLogLevel(r.logger, log.DebugLevel)
	} else {
		shared.SetLogLevel(r.logger, shared.ParseLogLevel(r.config.Log.Level))
	}
	return ctx, nil
}

// After closes whatever the command opened.
func (r *Runner) After(ctx context.Context, cmd *cli.Command) error {
	return r.Close()
}

func (r *Runner) readConfig() (*shared.Config, error) {
	config := shared.DefaultConfig()
	if r.configPath != "" {
		if _, err := os.Stat(r.configPath); err == nil {
			loaded, err := shared.LoadConfig(r.configPath)
			if err != nil {
				return nil, err
			}
			config = loaded
		} else {
			r.logger.Debug("config file not found, using defaults", "path", r.configPath)
		}
	}
	shared.ApplyEnv(config)
	return config, nil
}

func (r *Runner) cfg() *shared.Config {
	if r.config == nil {
		r.config = shared.DefaultConfig()
	}
	return r.config
}

// Close releases the database handle if the runner opened it.
func (r *Runner) Close() error {
	if r.db != nil && r.ownsDB {
		err := r.db.Close()
		r.db, r.ownsDB = nil, false
		return err
	}
	return nil
}

// database opens the configured SQLite database and applies pending migrations.
func (r *Runner) database() (*sql.DB, error) {
	return r.openDatabase(true)
}

func (r *Runner) openDatabase(migrate bool) (*sql.DB, error) {
	if r.db != nil {
		return r.db, nil
	}

	config := r.cfg().Database
	if dir := filepath.Dir(config.Path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := shared.NewDatabase(config.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	shared.ConfigureDatabase(db, config.MaxOpenConns, config.MaxIdleConns)

	if migrate {
		if err := shared.RunMigrations(db); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to run migrations: %w", err)
		}
	}

	r.db, r.ownsDB = db, true
	return db, nil
}

// contentService returns the CMS client, building it from config on first use.
func (r *Runner) contentService() (services.ContentService, error) {
	if r.cms != nil {
		return r.cms, nil
	}
	svc, err := services.NewCMSService(r.cfg().CMS, r.httpClient)
	if err != nil {
		return nil, err
	}
	r.cms = svc
	return svc, nil
}

// objectStore returns the disk store for uploaded files.
func (r *Runner) objectStore() (*storage.DiskStore, error) {
	if r.store != nil {
		return r.store, nil
	}
	config := r.cfg().Storage
	store, err := storage.NewDiskStore(config.Path, "/files", config.MaxUploadBytes())
	if err != nil {
		return nil, err
	}
	r.store = store
	return store, nil
}

// library wires the CMS, repositories and storage into a [tasks.Library].
// A missing CMS configuration is not fatal: the library serves cached and
// user authored content only.
func (r *Runner) library(pub events.Publisher) (*tasks.Library, error) {
	db, err := r.database()
	if err != nil {
		return nil, err
	}
	store, err := r.objectStore()
	if err != nil {
		return nil, err
	}

	cms, err := r.contentService()
	if err != nil {
		r.logger.Warn("CMS unavailable, serving cached content only", "error", err)
		cms = nil
	}

	return tasks.NewLibrary(tasks.LibraryOpts{
		CMS:       cms,
		Cache:     repositories.NewContentCacheRepository(db),
		Resources: repositories.NewResourceRepository(db),
		Trainings: repositories.NewTrainingRepository(db),
		Favorites: repositories.NewFavoriteRepository(db),
		Progress:  repositories.NewProgressRepository(db),
		Store:     store,
		Events:    pub,
		Logger:    r.logger,
	}), nil
}

// contentEngine builds the CMS to cache sync engine.
func (r *Runner) contentEngine(pub events.Publisher) (*tasks.ContentEngine, error) {
	cms, err := r.contentService()
	if err != nil {
		return nil, err
	}
	db, err := r.database()
	if err != nil {
		return nil, err
	}
	return tasks.NewContentEngine(cms, repositories.NewContentCacheRepository(db), pub, r.logger), nil
}

func (r *Runner) syncOpts(cmd *cli.Command) tasks.SyncOpts {
	opts := tasks.SyncOpts{NumWorkers: r.cfg().Sync.Workers, RateLimit: r.cfg().Sync.RateLimit}
	if cmd.IsSet("workers") {
		opts.NumWorkers = cmd.Int("workers")
	}
	if cmd.IsSet("rate") {
		opts.RateLimit = cmd.Float("rate")
	}
	return opts
}

func (r *Runner) writeJSON(data any, pretty bool) error {
	output, err := shared.MarshalJSON(data, pretty)
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

func (r *Runner) writePlainHeader(title string) {
	r.writePlain("═══════════════════════════════════════\n")
	r.writePlain("%v\n", title)
	r.writePlain("═══════════════════════════════════════\n")
}
