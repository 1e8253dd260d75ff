package cmd

import (
	"fmt"
	"os"

	"github.com/huangsam/reposcout/internal/contract"
	"github.com/huangsam/reposcout/internal/iocache"
	"github.com/huangsam/reposcout/schema"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// storeDBPath returns the SQLite file the store uses.
func storeDBPath() string {
	if cfg.StoreDBConnect != "" {
		return cfg.StoreDBConnect
	}
	return contract.GetStoreDBFilePath()
}

// configOnlySetup validates config without opening the store.
// Clearing and migrating must run before anything holds the database.
func configOnlySetup(_ *cobra.Command, _ []string) error {
	return loadConfig()
}

// cacheCmd focused on snapshot store management.
var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Manage stored analysis snapshots",
	Long: `Manage the snapshot store that lets reposcout skip unchanged repositories.

Each snapshot holds the analysis result plus a fingerprint of every file,
so later runs can tell what changed without re-analyzing.

Supported backends: SQLite (default), MySQL, PostgreSQL, MongoDB, or None (disabled)

Subcommands:
  status  - Show store statistics and connection info
  cleanup - Remove snapshots not checked for a while
  clear   - Remove all stored snapshots
  export  - Export snapshots and fingerprints to Parquet
  migrate - Run database schema migrations

Examples:
  # Check store status
  reposcout cache status

  # Drop snapshots older than a week
  reposcout cache cleanup --days 7`,
}

// cacheStatusCmd shows store status.
var cacheStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Display store statistics and connection details",
	Long: `Show the backend, connection state, snapshot and fingerprint counts,
the oldest and newest snapshots, and an estimate of the stored size.

Examples:
  reposcout cache status
  REPOSCOUT_STORE_BACKEND=mongodb REPOSCOUT_STORE_DB_CONNECT="mongodb://localhost:27017/reposcout" reposcout cache status`,
	PreRunE: sharedSetupWrapper,
	RunE: func(_ *cobra.Command, _ []string) error {
		status, err := store.GetStatus()
		if err != nil {
			return fmt.Errorf("failed to get store status: %w", err)
		}
		iocache.PrintStoreStatus(os.Stdout, status)
		return nil
	},
}

// cacheCleanupCmd removes old snapshots.
var cacheCleanupCmd = &cobra.Command{
	Use:   "cleanup",
	Short: "Remove snapshots not checked within the retention window",
	Long: `Delete snapshots whose last check is older than --days days,
or --retention-days when the flag is not given. Their fingerprints go with them.

Examples:
  reposcout cache cleanup
  reposcout cache cleanup --days 7`,
	PreRunE: sharedSetupWrapper,
	RunE: func(_ *cobra.Command, _ []string) error {
		removed, err := svc.CleanupOldAnalyses(viper.GetInt("days"))
		if err != nil {
			return fmt.Errorf("failed to clean up snapshots: %w", err)
		}
		fmt.Printf("Removed %d snapshot(s).\n", removed)
		return nil
	},
}

// cacheClearCmd clears the store.
var cacheClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Remove all stored snapshots",
	Long: `Delete every snapshot and fingerprint from the configured backend.

For SQLite: Deletes the database file
For MySQL/PostgreSQL: Deletes all rows and keeps the schema
For MongoDB: Drops both collections

WARNING: This action cannot be undone. Consider exporting first.

Examples:
  reposcout cache export --output-file backup.parquet
  reposcout cache clear`,
	PreRunE: configOnlySetup,
	RunE: func(_ *cobra.Command, _ []string) error {
		if err := iocache.ClearStore(cfg.StoreBackend, storeDBPath(), cfg.StoreDBConnect); err != nil {
			return fmt.Errorf("failed to clear snapshot store: %w", err)
		}
		fmt.Println("Snapshot store cleared successfully.")
		return nil
	},
}

// cacheExportCmd exports snapshots to Parquet files.
var cacheExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export snapshots and fingerprints to Parquet",
	Long: `Export every stored snapshot and its fingerprints to two Parquet files
named after --output-file, for use with DuckDB, pandas or a BI tool.

Requires: --output-file parameter

Examples:
  reposcout cache export --output-file reposcout.parquet
  duckdb -c "SELECT owner, repo, file_count FROM read_parquet('reposcout.parquet.snapshots.parquet')"`,
	PreRunE: sharedSetupWrapper,
	RunE: func(_ *cobra.Command, _ []string) error {
		return iocache.ExportSnapshots(store, cfg.OutputFile, os.Stdout)
	},
}

// cacheMigrateCmd runs database migrations for the snapshot store.
var cacheMigrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Run database schema migrations (upgrades/downgrades)",
	Long: `Manage schema versions of the SQL snapshot store.

Stores are migrated to the latest version when opened, so this is
mostly useful for rollbacks. MongoDB needs no migrations.

Examples:
  # Migrate to latest version (default)
  reposcout cache migrate

  # Rollback to the initial state
  reposcout cache migrate --target-version 0`,
	PreRunE: configOnlySetup,
	RunE: func(_ *cobra.Command, _ []string) error {
		connStr := cfg.StoreDBConnect
		if cfg.StoreBackend == schema.SQLiteBackend {
			connStr = storeDBPath()
		}
		result, err := iocache.MigrateSnapshots(cfg.StoreBackend, connStr, viper.GetInt("target-version"))
		if err != nil {
			return fmt.Errorf("failed to run migrations: %w", err)
		}
		fmt.Println(iocache.FormatMigrationResult(result))
		return nil
	},
}
