package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/desertthunder/trainhub/internal/events"
	"github.com/desertthunder/trainhub/internal/repositories"
	"github.com/desertthunder/trainhub/internal/server"
	"github.com/desertthunder/trainhub/internal/shared"
	"github.com/desertthunder/trainhub/internal/web"
	"github.com/urfave/cli/v3"
)

// newWebServer wires the library, accounts and live updates into the dashboard handler.
func (r *Runner) newWebServer(broker *events.Broker) (*web.Server, error) {
	lib, err := r.library(broker)
	if err != nil {
		return nil, err
	}
	db, err := r.database()
	if err != nil {
		return nil, err
	}
	store, err := r.objectStore()
	if err != nil {
		return nil, err
	}

	config := r.cfg()
	return web.New(web.Options{
		Library:        lib,
		Users:          repositories.NewUserRepository(db),
		Sessions:       repositories.NewSessionRepository(db),
		Broker:         broker,
		Files:          store.FS(),
		MaxUploadBytes: store.MaxBytes(),
		SessionTTL:     time.Duration(config.Server.SessionTTLHours) * time.Hour,
		CookieSecure:   config.Server.CookieSecure,
		OAuth:          config.Auth.OAuth,
		Logger:         shared.WithLogger(r.logger, "component", "web"),
	})
}

// httpServer builds the dashboard's [http.Server]. Event streams only end when
// their subscription closes, so the broker is closed as shutdown begins.
func (r *Runner) httpServer(broker *events.Broker) (*http.Server, error) {
	app, err := r.newWebServer(broker)
	if err != nil {
		return nil, err
	}

	srv := &http.Server{
		Addr:              r.cfg().Server.Addr(),
		Handler:           app.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	srv.RegisterOnShutdown(broker.Close)
	return srv, nil
}

// Serve runs the web dashboard until interrupted.
func (r *Runner) Serve(ctx context.Context, cmd *cli.Command) error {
	config := r.cfg()
	if cmd.IsSet("host") {
		config.Server.Host = cmd.String("host")
	}
	if cmd.IsSet("port") {
		config.Server.Port = cmd.Int("port")
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	broker := events.NewBroker()
	defer broker.Close()

	srv, err := r.httpServer(broker)
	if err != nil {
		return err
	}

	if interval := cmd.Duration("sync-every"); interval > 0 {
		go r.syncLoop(ctx, interval, broker, r.syncOpts(cmd))
	}

	url := "http://" + config.Server.Host + ":" + strconv.Itoa(config.Server.Port)
	r.writePlain("Dashboard running at %s (Ctrl+C to stop)\n", url)

	if cmd.Bool("open") {
		go func() {
			time.Sleep(300 * time.Millisecond)
			if err := shared.OpenBrowser(url); err != nil {
				r.logger.Warn("failed to open browser", "error", err)
			}
		}()
	}

	if err := server.Run(ctx, srv, r.logger); err != nil {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}
