package cmd

import (
	"fmt"
	"os"

	"github.com/huangsam/cfpscan/internal/contract"
	"github.com/huangsam/cfpscan/internal/iocache"
	"github.com/huangsam/cfpscan/schema"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// analysisSettings reads and validates the run tracking backend.
func analysisSettings() (schema.DatabaseBackend, string, error) {
	if err := loadConfigFile(); err != nil {
		return "", "", err
	}
	backend := backendSetting("analysis-backend")
	connStr := viper.GetString("analysis-db-connect")
	if err := contract.ValidateDatabaseConnectionString(backend, connStr); err != nil {
		return "", "", err
	}
	return backend, connStr, nil
}

// analysisSetup opens the run tracking store without a scan cache.
func analysisSetup(_ *cobra.Command, _ []string) error {
	backend, connStr, err := analysisSettings()
	if err != nil {
		return err
	}
	if err := iocache.InitStores("", "", backend, connStr); err != nil {
		return fmt.Errorf("failed to initialize analysis: %w", err)
	}

	cfg.AnalysisBackend = backend
	cfg.AnalysisDBConnect = connStr
	cfg.OutputFile = viper.GetString("output-file")
	return nil
}

// analysisMigrateSetup resolves the backend without opening the store, since
// opening it creates the tables the migrations manage.
func analysisMigrateSetup(_ *cobra.Command, _ []string) error {
	backend, connStr, err := analysisSettings()
	if err != nil {
		return err
	}
	if backend == schema.SQLiteBackend && connStr == "" {
		connStr = contract.GetAnalysisDBFilePath()
	}

	cfg.AnalysisBackend = backend
	cfg.AnalysisDBConnect = connStr
	return nil
}

// analysisCmd groups the run tracking commands.
var analysisCmd = &cobra.Command{
	Use:   "analysis",
	Short: "Manage estimation run history and exports",
	Long: `Manage the history of estimation runs.

When --analysis-backend is set, every estimate run stores:
- Run metadata (timestamp, configuration, duration, totals)
- One row per repository with line metrics, movement counts and derived metrics

Supported backends: SQLite, MySQL, PostgreSQL, or None (disabled)

Subcommands:
  status  - Show run tracking statistics
  export  - Export data to Parquet for analytics
  clear   - Remove all tracking data
  migrate - Run database schema migrations

Examples:
  # Check tracking status
  cfpscan analysis status --analysis-backend sqlite

  # Export for analysis in pandas/DuckDB
  cfpscan analysis export --analysis-backend sqlite --output-file runs`,
}

var analysisClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Remove all recorded estimation runs",
	Long: `Delete all stored runs and repository rows.

WARNING: This action cannot be undone. Consider exporting data first.`,
	PreRunE: analysisSetup,
	Run: func(_ *cobra.Command, _ []string) {
		path := cfg.AnalysisDBConnect
		if path == "" {
			path = contract.GetAnalysisDBFilePath()
		}
		if err := iocache.ClearAnalysis(cfg.AnalysisBackend, path, cfg.AnalysisDBConnect); err != nil {
			contract.LogFatal("Failed to clear analysis data", err)
		}
		fmt.Println("Analysis data cleared successfully.")
	},
}

var analysisStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Display run tracking statistics and connection details",
	Long: `Show the backend, connection state, number of runs, newest and oldest
run, number of repository rows and table sizes.`,
	PreRunE: analysisSetup,
	Run: func(_ *cobra.Command, _ []string) {
		status, err := iocache.Manager.GetAnalysisStore().GetStatus()
		if err != nil {
			contract.LogFatal("Failed to get analysis status", err)
		}
		iocache.PrintAnalysisStatus(os.Stdout, status)
	},
}

var analysisExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export run history to Parquet for BI tools and analytics",
	Long: `Export all stored runs to two Parquet files:
  <output-file>.analysis_runs.parquet
  <output-file>.repository_metrics.parquet

Requires: --output-file parameter

Examples:
  cfpscan analysis export --output-file cfp
  duckdb -c "SELECT repo, cfp_total FROM read_parquet('cfp.repository_metrics.parquet') LIMIT 10"`,
	PreRunE: analysisSetup,
	Run: func(_ *cobra.Command, _ []string) {
		if err := iocache.ExecuteAnalysisExport(cfg.OutputFile); err != nil {
			contract.LogFatal("Failed to export analysis data", err)
		}
	},
}

var analysisMigrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Run database schema migrations (upgrades/downgrades)",
	Long: `Manage schema versions of the run tracking store.

By default, migrates to the latest version. Use --target-version for specific versions.

Examples:
  # Migrate to latest version (default)
  cfpscan analysis migrate --analysis-backend sqlite

  # Roll back everything
  cfpscan analysis migrate --analysis-backend sqlite --target-version 0`,
	PreRunE: analysisMigrateSetup,
	Run: func(_ *cobra.Command, _ []string) {
		targetVersion := viper.GetInt("target-version")
		if err := iocache.MigrateAnalysis(os.Stdout, cfg.AnalysisBackend, cfg.AnalysisDBConnect, targetVersion); err != nil {
			contract.LogFatal("Failed to run migrations", err)
		}
	},
}
