// submodule cmd contains command definitions
package main

import "github.com/urfave/cli/v3"

func jsonFlags() []cli.Flag {
	return []cli.Flag{
		&cli.BoolFlag{
			Name:  "json",
			Usage: "Output raw JSON",
		},
		&cli.BoolFlag{
			Name:  "pretty",
			Usage: "Pretty-print JSON output",
			Value: true,
		},
	}
}

func syncFlags() []cli.Flag {
	return []cli.Flag{
		&cli.IntFlag{
			Name:    "workers",
			Aliases: []string{"w"},
			Usage:   "Concurrent cache writers (1-10)",
		},
		&cli.FloatFlag{
			Name:  "rate",
			Usage: "CMS requests per second",
		},
	}
}

// setupCommand writes a config file and prepares the database and storage directories.
func setupCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "setup",
		Usage: "Create config.toml, initialize the database and run migrations",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "force",
				Usage: "Overwrite an existing config file",
			},
		},
		Action: r.Setup,
	}
}

// migrateCommand handles schema migrations
func migrateCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "migrate",
		Usage: "Manage database migrations",
		Commands: []*cli.Command{
			{
				Name:   "up",
				Usage:  "Apply pending migrations",
				Action: r.MigrateUp,
			},
			{
				Name:   "status",
				Usage:  "List migrations and whether they are applied",
				Action: r.MigrateStatus,
			},
			{
				Name:   "rollback",
				Usage:  "Roll back the most recent migration",
				Action: r.MigrateRollback,
			},
		},
	}
}

// serveCommand runs the web dashboard
func serveCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Run the web dashboard",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "host",
				Usage: "Interface to listen on (default from config)",
			},
			&cli.IntFlag{
				Name:    "port",
				Aliases: []string{"p"},
				Usage:   "Port to listen on (default from config)",
			},
			&cli.BoolFlag{
				Name:  "open",
				Usage: "Open the dashboard in a browser",
			},
			&cli.DurationFlag{
				Name:  "sync-every",
				Usage: "Refresh the content cache from the CMS on this interval (0 disables)",
			},
		},
		Action: r.Serve,
	}
}

// cmsCommand reads content directly from the CMS
func cmsCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "cms",
		Usage: "Read content from the headless CMS",
		Commands: []*cli.Command{
			{
				Name:   "posts",
				Usage:  "List blog posts",
				Flags:  jsonFlags(),
				Action: r.CMSPosts,
			},
			{
				Name:  "resources",
				Usage: "List resources",
				Flags: append(jsonFlags(),
					&cli.StringSliceFlag{
						Name:    "tag",
						Aliases: []string{"t"},
						Usage:   "Only resources carrying every given tag",
					},
				),
				Action: r.CMSResources,
			},
			{
				Name:   "trainings",
				Usage:  "List trainings with their steps",
				Flags:  jsonFlags(),
				Action: r.CMSTrainings,
			},
			{
				Name:   "tags",
				Usage:  "List the tag taxonomy",
				Flags:  jsonFlags(),
				Action: r.CMSTags,
			},
			{
				Name:  "query",
				Usage: "Run a raw query and print the response",
				Arguments: []cli.Argument{
					&cli.StringArg{
						Name: "query",
					},
				},
				Flags: []cli.Flag{
					&cli.StringSliceFlag{
						Name:  "param",
						Usage: "Query parameter as name=value (value is parsed as JSON when possible)",
					},
					&cli.BoolFlag{
						Name:  "pretty",
						Usage: "Pretty-print output",
						Value: true,
					},
				},
				Action: r.CMSQuery,
			},
		},
	}
}

// syncCommand refreshes the local content cache
func syncCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:   "sync",
		Usage:  "Copy CMS content into the local cache",
		Flags:  syncFlags(),
		Action: r.Sync,
	}
}

// userCommand manages dashboard accounts
func userCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:    "user",
		Aliases: []string{"users"},
		Usage:   "Manage dashboard accounts",
		Commands: []*cli.Command{
			{
				Name:  "create",
				Usage: "Create an account with a password",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "email",
						Usage:    "Account email",
						Required: true,
					},
					&cli.StringFlag{
						Name:  "name",
						Usage: "Display name",
					},
					&cli.StringFlag{
						Name:     "password",
						Usage:    "Initial password",
						Required: true,
					},
				},
				Action: r.UserCreate,
			},
			{
				Name:   "list",
				Usage:  "List accounts",
				Flags:  jsonFlags(),
				Action: r.UserList,
			},
			{
				Name:  "passwd",
				Usage: "Set an account's password",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "email",
						Usage:    "Account email",
						Required: true,
					},
					&cli.StringFlag{
						Name:     "password",
						Usage:    "New password",
						Required: true,
					},
				},
				Action: r.UserPasswd,
			},
		},
	}
}

func exportFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "format",
			Aliases: []string{"f"},
			Usage:   "Output format: json, csv, markdown, txt",
			Value:   "json",
		},
		&cli.StringFlag{
			Name:    "output",
			Aliases: []string{"o"},
			Usage:   "Output directory (default: trainhub_export_<timestamp>)",
		},
		&cli.IntFlag{
			Name:    "workers",
			Aliases: []string{"w"},
			Usage:   "Concurrent export workers (1-10)",
			Value:   4,
		},
	}
}

// exportCommand writes content and progress to files
func exportCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "export",
		Usage: "Export content and progress to files",
		Commands: []*cli.Command{
			{
				Name:  "library",
				Usage: "Export resources and trainings (and a user's progress with --email)",
				Flags: append(exportFlags(),
					&cli.StringFlag{
						Name:  "email",
						Usage: "Include this user's training progress",
					},
					&cli.BoolFlag{
						Name:  "images",
						Usage: "Download training cover images (markdown only)",
					},
				),
				Action: r.ExportLibrary,
			},
			{
				Name:  "progress",
				Usage: "Export one user's training progress",
				Flags: append(exportFlags(),
					&cli.StringFlag{
						Name:     "email",
						Usage:    "Account email",
						Required: true,
					},
				),
				Action: r.ExportProgress,
			},
		},
	}
}

// tuiCommand returns the top-level TUI command for browsing the library.
func tuiCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:    "tui",
		Aliases: []string{"interactive", "ui"},
		Usage:   "Browse resources and trainings in the terminal",
		Flags: append(syncFlags(),
			&cli.StringFlag{
				Name:  "email",
				Usage: "Act as this user for favorites and progress",
			},
		),
		Action: r.TUI,
	}
}
