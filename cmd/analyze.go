package cmd

import (
	"time"

	"github.com/spf13/cobra"
)

// analyzeCmd returns the cached analysis, re-analyzing only when the target changed.
var analyzeCmd = &cobra.Command{
	Use:   "analyze <owner|owner/repo>",
	Short: "Analyze a repository or profile, reusing the cached result when possible.",
	Long: `Return the stored analysis for a GitHub repository or a whole profile.

A snapshot younger than --freshness-hours is served without any API call.
Older snapshots are fingerprinted against the current tree, and only a
meaningful change (a critical file or more than a few percent of files)
triggers a full re-analysis.

Examples:
  # Analyze a single repository
  reposcout analyze octocat/hello-world

  # Rank a whole profile and cache the result
  reposcout analyze octocat --limit 3

  # Ignore the cache
  reposcout analyze octocat/hello-world --force`,
	Args:    cobra.ExactArgs(1),
	PreRunE: sharedSetupWrapper,
	RunE: func(_ *cobra.Command, args []string) error {
		key, err := parseTarget(args)
		if err != nil {
			return err
		}
		start := time.Now()
		snap, err := svc.GetOrAnalyze(rootCtx, key, cfg.Force)
		if err != nil {
			return err
		}
		return writer.WriteSnapshot(snap, cfg, time.Since(start))
	},
}

// reanalyzeCmd discards the snapshot and analyzes from scratch.
var reanalyzeCmd = &cobra.Command{
	Use:   "reanalyze <owner|owner/repo>",
	Short: "Delete the stored snapshot and analyze from scratch.",
	Long: `Force a full analysis of a repository or profile.

The stored snapshot is deleted first, so a failed fetch leaves nothing
cached for the target.

Examples:
  reposcout reanalyze octocat/hello-world`,
	Args:    cobra.ExactArgs(1),
	PreRunE: sharedSetupWrapper,
	RunE: func(_ *cobra.Command, args []string) error {
		key, err := parseTarget(args)
		if err != nil {
			return err
		}
		start := time.Now()
		snap, err := svc.ForceReanalysis(rootCtx, key)
		if err != nil {
			return err
		}
		return writer.WriteSnapshot(snap, cfg, time.Since(start))
	},
}

// rankCmd ranks a profile without touching the snapshot store.
var rankCmd = &cobra.Command{
	Use:   "rank <owner>",
	Short: "Qualify and rank every public repository of a user.",
	Long: `List the public repositories of a GitHub user, qualify each one and
select the strongest few by total score.

Repositories are analyzed concurrently with --workers. Excluded
repositories are reported with the reason they were dropped.

Examples:
  # Top 4 repositories (default)
  reposcout rank octocat

  # Top 5 as JSON
  reposcout rank octocat --limit 5 --output json

  # With a narrative summary
  REPOSCOUT_GEMINI_API_KEY=... reposcout rank octocat --summarize`,
	Args:    cobra.ExactArgs(1),
	PreRunE: sharedSetupWrapper,
	RunE: func(_ *cobra.Command, args []string) error {
		start := time.Now()
		sel, err := svc.RankOwner(rootCtx, args[0], cfg.ResultLimit)
		if err != nil {
			return err
		}
		if err := writer.WriteSelection(args[0], sel, cfg, time.Since(start)); err != nil {
			return err
		}
		if summary := svc.Summarize(rootCtx, args[0], sel); summary != "" {
			return writer.WriteSummary(summary, cfg)
		}
		return nil
	},
}

// changesCmd lists what changed since the stored snapshot.
var changesCmd = &cobra.Command{
	Use:   "changes <owner|owner/repo>",
	Short: "Show files changed since the stored snapshot and their impact.",
	Long: `Fingerprint the current state of a repository or profile and compare
it with the stored snapshot. Nothing is saved.

Examples:
  reposcout changes octocat/hello-world
  reposcout changes octocat --output csv`,
	Args:    cobra.ExactArgs(1),
	PreRunE: sharedSetupWrapper,
	RunE: func(_ *cobra.Command, args []string) error {
		key, err := parseTarget(args)
		if err != nil {
			return err
		}
		report, err := svc.GetFileChanges(rootCtx, key)
		if err != nil {
			return err
		}
		return writer.WriteChanges(report, cfg)
	},
}
