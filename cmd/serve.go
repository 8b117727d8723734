package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/desertthunder/melodymatch/internal/storage"
	"github.com/desertthunder/melodymatch/internal/web"
	"github.com/urfave/cli/v3"
)

// Serve runs the web front-end until the context is cancelled.
func (r *Runner) Serve(ctx context.Context, cmd *cli.Command) error {
	cfg := r.config.Server
	if cmd.IsSet("host") {
		cfg.Host = cmd.String("host")
	}
	if cmd.IsSet("port") {
		cfg.Port = cmd.Int("port")
	}

	db, err := r.database()
	if err != nil {
		return err
	}

	sessions := storage.NewSQLiteStore(db)
	app, err := web.New(web.Options{
		Backend: r.backend,
		Stores:  func(visitor string) storage.Store { return sessions.Scope(visitor) },
		Origin:  cfg.Origin(),
		Logger:  r.logger,
		Health:  db,
	})
	if err != nil {
		return fmt.Errorf("failed to build web front-end: %w", err)
	}

	httpServer := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           app.Handler(storage.NewVisitorRepository(db), cfg),
		ReadHeaderTimeout: 10 * time.Second,
	}

	serverErrors := make(chan error, 1)
	go func() {
		r.logger.Info("serving Melody Match", "addr", cfg.Addr(), "origin", cfg.Origin(), "backend", r.config.Backend.APIURL)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErrors <- err
		}
	}()

	select {
	case err := <-serverErrors:
		return fmt.Errorf("server error: %w", err)
	case <-ctx.Done():
	}

	r.logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("error shutting down server: %w", err)
	}
	return nil
}
