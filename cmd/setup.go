package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/desertthunder/melodymatch/internal/shared"
	"github.com/desertthunder/melodymatch/internal/storage"
	"github.com/urfave/cli/v3"
)

// SetupConfig writes config.toml from the embedded example.
func (r *Runner) SetupConfig(ctx context.Context, cmd *cli.Command) error {
	configPath := cmd.String("config")
	if err := shared.CreateConfigFile(configPath); err != nil {
		return err
	}
	r.logger.Info("config file created", "path", configPath)
	return r.writePlain("✓ Wrote %s\nSet backend.api_url (or %s) to point at your Melody Match API.\n", configPath, shared.APIURLEnv)
}

// SetupDatabase initializes the database and runs migrations.
func (r *Runner) SetupDatabase(ctx context.Context, cmd *cli.Command) error {
	configPath := cmd.String("config")

	config, err := shared.LoadConfig(configPath)
	switch {
	case errors.Is(err, shared.ErrMissingConfig):
		config = r.config
		r.logger.Info("config file not found, creating from template", "path", configPath)
		if err := shared.CreateConfigFile(configPath); err != nil {
			r.logger.Warn("failed to create config file, using current config", "error", err)
		} else {
			r.logger.Info("config file created", "path", configPath)
		}
	case err != nil:
		r.logger.Warn("failed to load config, using current config", "error", err)
		config = r.config
	}

	r.logger.Info("initializing database", "path", config.Database.Path)

	db, err := shared.NewDatabase(config.Database.Path)
	if err != nil {
		return fmt.Errorf("failed to create database: %w", err)
	}
	defer db.Close()

	shared.ConfigureDatabase(db, config.Database.MaxOpenConns, config.Database.MaxIdleConns)

	r.logger.Info("running database migrations")
	if err := shared.RunMigrations(db); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	r.logger.Infof("setup complete for database: %v", config.Database.Path)
	return nil
}

// SetupPrune deletes web visitors idle for longer than --older-than, along with their sessions.
//
// Stored keys left under a namespace with no visitor row (and not the CLI's own origin) are cleared too.
func (r *Runner) SetupPrune(ctx context.Context, cmd *cli.Command) error {
	olderThan := cmd.Duration("older-than")
	if olderThan <= 0 {
		return fmt.Errorf("%w: --older-than must be positive", shared.ErrInvalidArgument)
	}

	db, err := r.database()
	if err != nil {
		return err
	}

	visitors := storage.NewVisitorRepository(db)
	cutoff := time.Now().Add(-olderThan)
	n, err := visitors.Prune(cutoff)
	if err != nil {
		return err
	}

	orphans, err := r.clearOrphans(storage.NewSQLiteStore(db), visitors)
	if err != nil {
		return err
	}

	r.logger.Info("pruned visitors", "count", n, "orphans", orphans, "cutoff", cutoff)
	return r.writePlain("✓ Pruned %d visitor(s) idle since before %s, cleared %d orphaned namespace(s)\n", n, cutoff.Format(time.RFC3339), orphans)
}

func (r *Runner) clearOrphans(store *storage.SQLiteStore, visitors *storage.VisitorRepository) (int, error) {
	namespaces, err := store.Namespaces()
	if err != nil {
		return 0, err
	}

	cleared := 0
	for _, ns := range namespaces {
		if ns == r.config.CLI.Origin {
			continue
		}
		_, known, err := visitors.LastSeen(ns)
		if err != nil {
			return cleared, err
		}
		if known {
			continue
		}
		if err := store.Scope(ns).Clear(); err != nil {
			return cleared, err
		}
		cleared++
	}
	return cleared, nil
}
