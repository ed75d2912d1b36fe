package internal

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/dukerupert/emporium/migrations"
	"github.com/pressly/goose/v3"
)

// RunMigrations applies every pending migration and logs each one applied.
func RunMigrations(ctx context.Context, db *sql.DB, logger *slog.Logger) error {
	provider, err := goose.NewProvider(goose.DialectPostgres, db, migrations.MigrationsFS)
	if err != nil {
		return fmt.Errorf("failed to create migration provider: %w", err)
	}

	results, err := provider.Up(ctx)
	if err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	for _, r := range results {
		logger.Info("applied migration",
			"version", r.Source.Version,
			"file", r.Source.Path,
			"duration", r.Duration,
		)
	}
	if len(results) == 0 {
		logger.Debug("database schema up to date")
	}
	return nil
}
