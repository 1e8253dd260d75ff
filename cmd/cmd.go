// Package cmd defines the command-line interface for reposcout.
package cmd

import (
	"github.com/huangsam/reposcout/internal/contract"
	"github.com/huangsam/reposcout/schema"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func init() {
	// Call initConfig on Cobra's initialization
	cobra.OnInitialize(initConfig)

	// Add primary subcommands to the root command
	rootCmd.AddCommand(analyzeCmd)
	rootCmd.AddCommand(reanalyzeCmd)
	rootCmd.AddCommand(rankCmd)
	rootCmd.AddCommand(changesCmd)
	rootCmd.AddCommand(cacheCmd)
	rootCmd.AddCommand(mcpCmd)
	rootCmd.AddCommand(versionCmd)

	// Add the cache subcommands to the parent cache command
	cacheCmd.AddCommand(cacheStatusCmd)
	cacheCmd.AddCommand(cacheCleanupCmd)
	cacheCmd.AddCommand(cacheClearCmd)
	cacheCmd.AddCommand(cacheExportCmd)
	cacheCmd.AddCommand(cacheMigrateCmd)

	// Bind all persistent flags of rootCmd to Viper
	rootCmd.PersistentFlags().String("github-token", "", "GitHub API token (prefer GITHUB_TOKEN or REPOSCOUT_GITHUB_TOKEN)")
	rootCmd.PersistentFlags().String("api-url", contract.DefaultAPIURL, "Base URL of the GitHub REST API")
	rootCmd.PersistentFlags().IntP("limit", "l", contract.DefaultResultLimit, "Number of repositories to select (1-5)")
	rootCmd.PersistentFlags().Int("workers", contract.DefaultWorkers, "Number of repositories analyzed concurrently")
	rootCmd.PersistentFlags().String("fetch-timeout", contract.DefaultFetchTimeout.String(), "Timeout for each GitHub API request")
	rootCmd.PersistentFlags().Int("max-retries", contract.DefaultMaxRetries, "Retries for timed out GitHub API requests")
	rootCmd.PersistentFlags().Int("max-file-reads", contract.DefaultMaxFileReads, "Maximum file contents read per fingerprint pass (10-30)")
	rootCmd.PersistentFlags().Int("freshness-hours", contract.DefaultFreshnessHours, "Serve snapshots younger than this without any API call (0 disables)")
	rootCmd.PersistentFlags().Int("retention-days", contract.DefaultRetentionDays, "Default age in days for cache cleanup")
	rootCmd.PersistentFlags().Float64("min-score", contract.DefaultMinScore, "Minimum total score for a repository to qualify")
	rootCmd.PersistentFlags().Int("stale-days", contract.DefaultStaleDays, "Days without a push before a repository is considered stale")
	rootCmd.PersistentFlags().Int("fork-stale-days", contract.DefaultStaleDays, "Days without a push before a fork is considered stale")
	rootCmd.PersistentFlags().String("store-backend", string(schema.SQLiteBackend), "Snapshot store: sqlite or mysql or postgresql or mongodb or none")
	rootCmd.PersistentFlags().String("store-db-connect", "", "Connection string for the snapshot store (sqlite path, mysql DSN, postgres keywords, mongodb URI)")
	rootCmd.PersistentFlags().String("output", string(schema.TextOut), "Output format: text or csv or json or parquet")
	rootCmd.PersistentFlags().String("output-file", "", "Optional path to write output to")
	rootCmd.PersistentFlags().String("color", "yes", "Enable colored labels in output (yes/no/true/false/1/0)")
	rootCmd.PersistentFlags().Int("width", 0, "Terminal width override (0 = auto-detect)")
	rootCmd.PersistentFlags().Bool("debug", false, "Enable debug logging")
	rootCmd.PersistentFlags().Bool("json-logs", false, "Emit logs as JSON")
	rootCmd.PersistentFlags().Bool("summarize", false, "Add a Gemini narrative summary of the selected repositories (needs REPOSCOUT_GEMINI_API_KEY)")
	rootCmd.PersistentFlags().String("gemini-model", contract.DefaultGeminiModel, "Gemini model used for summaries")
	rootCmd.PersistentFlags().String("config", "", "Path to config file")
	if err := viper.BindPFlags(rootCmd.PersistentFlags()); err != nil {
		contract.LogFatal("Error binding root flags", err)
	}

	// Bind all flags of analyzeCmd to Viper
	analyzeCmd.Flags().Bool("force", false, "Discard the stored snapshot and analyze from scratch")
	if err := viper.BindPFlags(analyzeCmd.Flags()); err != nil {
		contract.LogFatal("Error binding analyze flags", err)
	}

	// Bind all flags of cacheCleanupCmd to Viper
	cacheCleanupCmd.Flags().Int("days", 0, "Remove snapshots last checked more than this many days ago (0 = retention-days)")
	if err := viper.BindPFlags(cacheCleanupCmd.Flags()); err != nil {
		contract.LogFatal("Error binding cache cleanup flags", err)
	}

	// Bind all flags of cacheMigrateCmd to Viper
	cacheMigrateCmd.Flags().Int("target-version", -1, "Target migration version (-1 means latest, 0 means rollback to initial state)")
	if err := viper.BindPFlags(cacheMigrateCmd.Flags()); err != nil {
		contract.LogFatal("Error binding cache migrate flags", err)
	}
}
