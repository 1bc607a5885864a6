package cmd

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/huangsam/apigrade/internal/contract"
	"github.com/huangsam/apigrade/internal/runstore"
	"github.com/huangsam/apigrade/schema"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// loadRunsBackend reads and validates the run history settings.
func loadRunsBackend() error {
	if err := loadConfigFile(); err != nil {
		return err
	}

	backend := schema.DatabaseBackend(strings.ToLower(viper.GetString("runs-backend")))
	if backend == "" {
		backend = schema.NoneBackend
	}
	if _, ok := schema.ValidDatabaseBackends[backend]; !ok {
		return fmt.Errorf("invalid runs backend '%s'. must be sqlite, mysql, postgresql, none", backend)
	}
	connStr := viper.GetString("runs-db-connect")

	// Basic validation for database backends
	if err := contract.ValidateDatabaseConnectionString(backend, connStr); err != nil {
		return err
	}

	cfg.RunsBackend = backend
	cfg.RunsDBConnect = connStr
	cfg.OutputFile = viper.GetString("output-file")
	return nil
}

// runsSetup loads minimal configuration and opens the run history.
// This is used by commands that need history access without full shared setup.
func runsSetup() error {
	if err := loadRunsBackend(); err != nil {
		return err
	}
	if err := runstore.InitStore(cfg.RunsBackend, cfg.RunsDBConnect); err != nil {
		return fmt.Errorf("failed to initialize run history: %w", err)
	}
	return nil
}

// runsSetupWrapper wraps runsSetup to provide PreRunE for runs commands.
func runsSetupWrapper(_ *cobra.Command, _ []string) error {
	return runsSetup()
}

// runsRawSetupWrapper loads the settings without opening the store or creating tables,
// allowing migrations to run on a fresh database.
func runsRawSetupWrapper(_ *cobra.Command, _ []string) error {
	return loadRunsBackend()
}

// sqliteFilePath returns the database file used by the sqlite backend.
func sqliteFilePath() string {
	if cfg.RunsDBConnect != "" {
		return cfg.RunsDBConnect
	}
	return contract.GetRunsDBFilePath()
}

// runsCmd focused on run history management.
//
// Note: runs subcommands use minimal initialization instead of the full
// sharedSetup. This avoids target resolution and document loading for simple
// history operations.
var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "Manage the history of graded runs",
	Long: `Manage the stored history of graded runs.

Every grade stores:
- Run metadata (target, scenario, timestamps, configuration, duration)
- The rating with achieved and total points
- Each weighted check with its HTTP status and outcome

Supported backends: SQLite (default), MySQL, PostgreSQL, or None (disabled)

Subcommands:
  status  - Show run history statistics
  export  - Export data to Parquet for analytics
  clear   - Remove all run history
  migrate - Run database schema migrations

Examples:
  # Check history status
  apigrade runs status

  # Export for analysis in pandas/DuckDB
  apigrade runs export --output-file runs-data`,
}

// runsStatusCmd shows run history status.
var runsStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Display run history statistics and connection details",
	Long: `Show the backend, the number of stored runs, the last and oldest run,
the average rating and the table sizes.

Examples:
  # Check run history status
  apigrade runs status`,
	PreRunE: runsSetupWrapper,
	Run: func(_ *cobra.Command, _ []string) {
		store := runsManager.GetRunStore()
		if store == nil {
			contract.LogFatal("Failed to get runs status", errors.New("run history is not initialized"))
		}
		status, err := store.GetStatus()
		if err != nil {
			contract.LogFatal("Failed to get runs status", err)
		}
		runstore.PrintStatus(os.Stdout, status)
	},
}

// runsClearCmd clears the run history.
var runsClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Remove all stored runs and checks",
	Long: `Delete all stored runs and their checks.

WARNING: This action cannot be undone. Consider exporting data first.

Examples:
  # Export before clearing
  apigrade runs export --output-file backup
  apigrade runs clear`,
	PreRunE: runsRawSetupWrapper,
	Run: func(_ *cobra.Command, _ []string) {
		if err := runstore.ClearRuns(cfg.RunsBackend, sqliteFilePath(), cfg.RunsDBConnect); err != nil {
			contract.LogFatal("Failed to clear run history", err)
		}
		fmt.Println("Run history cleared successfully.")
	},
}

// runsExportCmd exports run history to Parquet files.
var runsExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export run history to Parquet for BI tools and analytics",
	Long: `Export all stored runs and checks to Parquet files.

Writes two datasets next to --output-file:
- <output-file>.runs.parquet   one row per graded run
- <output-file>.checks.parquet one row per weighted check

Requires: --output-file parameter

Examples:
  # Export all data
  apigrade runs export --output-file apigrade

  # Average rating per project with DuckDB
  duckdb -c "SELECT project_id, avg(rating) FROM read_parquet('apigrade.runs.parquet') GROUP BY 1"`,
	PreRunE: runsSetupWrapper,
	Run: func(_ *cobra.Command, _ []string) {
		if err := runstore.ExportRuns(os.Stdout, runsManager.GetRunStore(), cfg.OutputFile); err != nil {
			contract.LogFatal("Failed to export run history", err)
		}
	},
}

// runsMigrateCmd runs database migrations for the run store.
var runsMigrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Run database schema migrations (upgrades/downgrades)",
	Long: `Manage database schema versions for the run history store.

By default, migrates to the latest version. Use --target-version for specific versions.

Examples:
  # Migrate to latest version (default)
  apigrade runs migrate

  # Migrate to specific version
  apigrade runs migrate --target-version 1

  # Rollback to initial state
  apigrade runs migrate --target-version 0`,
	PreRunE: runsRawSetupWrapper,
	Run: func(_ *cobra.Command, _ []string) {
		targetVersion := viper.GetInt("target-version")
		if err := runstore.MigrateRuns(os.Stdout, cfg.RunsBackend, cfg.RunsDBConnect, targetVersion); err != nil {
			contract.LogFatal("Failed to run migrations", err)
		}
	},
}
