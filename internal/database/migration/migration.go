package migration

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"
)

type migrationStep struct {
	Name string
	SQL  string
}

var postgresSteps = []migrationStep{
	{
		Name: "create_table_file_to_report",
		SQL: `CREATE TABLE IF NOT EXISTS file_to_report (
  id         BIGSERIAL   PRIMARY KEY,
  created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
  "fileLink" TEXT        NOT NULL,
  report     JSONB       NOT NULL,
  "userId"   TEXT        NOT NULL
);`,
	},
	{
		Name: "create_index_file_to_report_user_id",
		SQL:  `CREATE INDEX IF NOT EXISTS idx_file_to_report_user_id ON file_to_report ("userId", created_at DESC);`,
	},
}

var sqliteSteps = []migrationStep{
	{
		Name: "create_table_file_to_report",
		SQL: `CREATE TABLE IF NOT EXISTS file_to_report (
  id         INTEGER  PRIMARY KEY AUTOINCREMENT,
  created_at DATETIME NOT NULL,
  "fileLink" TEXT     NOT NULL,
  report     TEXT     NOT NULL,
  "userId"   TEXT     NOT NULL
);`,
	},
	{
		Name: "create_index_file_to_report_user_id",
		SQL:  `CREATE INDEX IF NOT EXISTS idx_file_to_report_user_id ON file_to_report ("userId", created_at);`,
	},
}

var sentinelQueries = map[string]string{
	"postgres": "SELECT to_regclass('public.file_to_report') IS NOT NULL",
	"sqlite":   "SELECT COUNT(*) > 0 FROM sqlite_master WHERE type = 'table' AND name = 'file_to_report'",
}

func stepsFor(driver string) ([]migrationStep, string, error) {
	if driver == "" {
		driver = "postgres"
	}
	q, ok := sentinelQueries[driver]
	if !ok {
		return nil, "", fmt.Errorf("no migrations for driver %q", driver)
	}
	if driver == "sqlite" {
		return sqliteSteps, q, nil
	}
	return postgresSteps, q, nil
}

// EnsureMigrated checks if the 'file_to_report' table exists and runs migrations if it doesn't.
func EnsureMigrated(ctx context.Context, db *sql.DB, driver string, logger *slog.Logger) error {
	start := time.Now()
	log := logger.With("component", "database", "db_driver", driver)

	steps, sentinel, err := stepsFor(driver)
	if err != nil {
		return err
	}

	log.Info("db_migration_check", "status", "starting")

	var exists bool
	if err := db.QueryRowContext(ctx, sentinel).Scan(&exists); err != nil {
		log.Error("db_migration_failed",
			"status", "error",
			"error_message", fmt.Sprintf("failed to check sentinel table: %v", err),
			"duration_ms", time.Since(start).Milliseconds(),
		)
		return fmt.Errorf("failed to check sentinel table: %w", err)
	}

	if exists {
		log.Info("db_migration_skip",
			"status", "success",
			"detail", "schema already exists, skipping migration",
			"duration_ms", time.Since(start).Milliseconds(),
		)
		return nil
	}

	log.Info("db_migration_start", "status", "in_progress")

	for _, step := range steps {
		stepStart := time.Now()
		if _, err := db.ExecContext(ctx, step.SQL); err != nil {
			log.Error("db_migration_failed",
				"status", "error",
				"migration_step", step.Name,
				"error_message", err.Error(),
				"duration_ms", time.Since(start).Milliseconds(),
				"step_duration_ms", time.Since(stepStart).Milliseconds(),
			)
			return fmt.Errorf("migration step %s failed: %w", step.Name, err)
		}

		log.Info("db_migration_step",
			"status", "success",
			"migration_step", step.Name,
			"step_duration_ms", time.Since(stepStart).Milliseconds(),
		)
	}

	log.Info("db_migration_success",
		"status", "success",
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return nil
}
