package cmd

import (
	"context"
	"fmt"
	"strings"

	"github.com/fatih/color"
	"github.com/huangsam/reposcout/core"
	"github.com/huangsam/reposcout/internal/contract"
	"github.com/huangsam/reposcout/internal/github"
	"github.com/huangsam/reposcout/internal/iocache"
	"github.com/huangsam/reposcout/internal/logger"
	"github.com/huangsam/reposcout/internal/outwriter"
	"github.com/huangsam/reposcout/internal/summary"
	"github.com/huangsam/reposcout/schema"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// All linker flags will be set by goreleaser infra at build time.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// rootCtx is the root context for all operations.
var rootCtx = context.Background()

// cfg will hold the validated, final configuration.
var cfg = &contract.Config{}

// input holds the raw, unvalidated configuration from all sources (file, env, flags).
// Viper will unmarshal into this struct.
var input = &contract.ConfigRawInput{}

// store is the snapshot store opened by sharedSetup.
var store contract.SnapshotStore

// svc is the analysis service built by sharedSetup. It owns store.
var svc *core.Service

// log is the process logger built by sharedSetup.
var log = zap.NewNop()

// writer renders results to stdout or the output file.
var writer = outwriter.NewOutWriter()

// rootCmd is the command-line entrypoint for all other commands.
var rootCmd = &cobra.Command{
	Use:                "reposcout",
	Short:              "Pick the GitHub repositories worth showcasing.",
	Long:               `Reposcout analyzes a GitHub profile, scores every repository and only re-analyzes what changed.`,
	Version:            version,
	SilenceErrors:      true,
	SilenceUsage:       true,
	DisableSuggestions: true,
	Run: func(cmd *cobra.Command, _ []string) {
		_ = cmd.Help()
	},
}

// initConfig reads in config file and ENV variables if set.
func initConfig() {
	// Set environment variable prefix
	viper.SetEnvPrefix("REPOSCOUT")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv() // Read in environment variables that match

	// Set defaults in Viper
	viper.SetDefault("limit", contract.DefaultResultLimit)
	viper.SetDefault("workers", contract.DefaultWorkers)
	viper.SetDefault("output", schema.TextOut)
	viper.SetDefault("store-backend", schema.SQLiteBackend)
	viper.SetDefault("store-db-connect", "")
	viper.SetDefault("color", "yes")
	viper.SetDefault("gemini-api-key", "")
	viper.SetDefault("force", false)
	viper.SetDefault("summarize", false)
}

// loadConfigFile handles config file loading logic common to all setup functions.
func loadConfigFile() error {
	if configFile := viper.GetString("config"); configFile != "" {
		viper.SetConfigFile(configFile)
	} else {
		viper.SetConfigName(".reposcout") // Name of config file (without extension)
		viper.SetConfigType("yaml")       // We'll use YAML format
		viper.AddConfigPath(".")          // Look in the current directory
		viper.AddConfigPath("$HOME")      // Look in the home directory
	}

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			// Config file was found but another error was produced
			return fmt.Errorf("error reading config file: %w", err)
		}
		// Config file not found, which is fine; we'll use defaults/env/flags.
	}
	return nil
}

// loadConfig merges file, env and flags into cfg and builds the logger.
func loadConfig() error {
	if err := loadConfigFile(); err != nil {
		return err
	}
	if err := viper.Unmarshal(input); err != nil {
		return fmt.Errorf("unable to unmarshal config: %w", err)
	}
	if err := contract.ProcessAndValidate(cfg, input); err != nil {
		return err
	}

	color.NoColor = !cfg.UseColors

	l, err := logger.New(cfg.JSONLogs, cfg.Debug)
	if err != nil {
		return fmt.Errorf("failed to build logger: %w", err)
	}
	log = l
	return nil
}

// sharedSetup validates config and wires the store, GitHub client and analysis service.
func sharedSetup(ctx context.Context, _ *cobra.Command, _ []string) error {
	if err := loadConfig(); err != nil {
		return err
	}

	var err error
	store, err = iocache.NewSnapshotStore(cfg.StoreBackend, cfg.StoreDBConnect)
	if err != nil {
		return fmt.Errorf("failed to initialize snapshot store: %w", err)
	}

	opts := []core.Option{core.WithLogger(log)}
	if cfg.Summarize {
		sum, err := summary.NewGeminiSummarizer(ctx, cfg.GeminiAPIKey, cfg.GeminiModel, log)
		if err != nil {
			_ = store.Close()
			return err
		}
		opts = append(opts, core.WithSummarizer(sum))
	}

	client := github.NewClient(cfg, log)
	svc = core.NewService(cfg, store, client, opts...)
	log.Debug("service ready",
		zap.String("store_backend", string(cfg.StoreBackend)),
		zap.Int("workers", cfg.Workers))
	return nil
}

// sharedSetupWrapper wraps sharedSetup to provide context for Cobra's PreRunE.
func sharedSetupWrapper(cmd *cobra.Command, args []string) error {
	return sharedSetup(rootCtx, cmd, args)
}

// parseTarget turns the positional argument into a repository key.
func parseTarget(args []string) (schema.RepositoryKey, error) {
	key, err := schema.ParseRepositoryKey(args[0])
	if err != nil {
		return schema.RepositoryKey{}, fmt.Errorf("invalid target %q: %w", args[0], err)
	}
	return key, nil
}

// Execute runs the root command and releases the service afterwards.
func Execute() error {
	err := rootCmd.Execute()
	if svc != nil {
		if cerr := svc.Close(); cerr != nil {
			contract.LogWarn("Failed to close snapshot store", cerr)
		}
	}
	_ = log.Sync()
	return err
}
