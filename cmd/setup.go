package main

import (
	"context"
	"fmt"
	"os"

	"github.com/urfave/cli/v3"

	"github.com/desertthunder/linkport/internal/shared"
)

// SetupDatabase initializes the database and runs migrations. A missing
// config file is created from the template first.
func (r *Runner) SetupDatabase(ctx context.Context, cmd *cli.Command) error {
	config := r.config
	if !r.pinned {
		if _, err := os.Stat(r.configPath); err != nil {
			r.logger.Info("config file not found, creating from template", "path", r.configPath)
			if err := shared.CreateConfigFile(r.configPath); err != nil {
				r.logger.Warn("failed to create config file, using defaults", "error", err)
			} else if loaded, err := shared.LoadConfig(r.configPath); err == nil {
				config = loaded
			}
		}
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

	versions, err := shared.AppliedVersions(db)
	if err != nil {
		return fmt.Errorf("failed to read migration versions: %w", err)
	}
	r.logger.Info("setup complete", "database", config.Database.Path, "migrations", len(versions))
	return r.writeOK("Database ready at %s (%d migrations applied)", config.Database.Path, len(versions))
}

// SetupConfig writes the default configuration next to the working directory.
func (r *Runner) SetupConfig(ctx context.Context, cmd *cli.Command) error {
	path := r.configPath
	if path == "" {
		path = "config.toml"
	}
	write := shared.CreateConfigFile
	if cmd.Bool("current") {
		write = func(path string) error { return shared.SaveConfig(r.config, path) }
	}
	if err := write(path); err != nil {
		return fmt.Errorf("%w: %v", shared.ErrInvalidConfig, err)
	}

	r.writeOK("Config written to %s", path)
	r.writePlain("Set client ids in the file or in .env:\n")
	for _, key := range []string{shared.EnvSpotifyClientID, shared.EnvDeezerAppID, shared.EnvDeezerSecret, shared.EnvQobuzAppID} {
		r.writePlain("  %s\n", r.styles.help.Render(key))
	}
	return nil
}

// SetupRollback reverts the most recent migration.
func (r *Runner) SetupRollback(ctx context.Context, cmd *cli.Command) error {
	db, err := shared.NewDatabase(r.config.Database.Path)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	if err := shared.RollbackMigration(db); err != nil {
		return err
	}
	versions, err := shared.AppliedVersions(db)
	if err != nil {
		return fmt.Errorf("failed to read migration versions: %w", err)
	}
	return r.writeOK("Rolled back, %d migrations remain", len(versions))
}
