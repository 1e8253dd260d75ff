package contract

import (
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/huangsam/reposcout/schema"
)

// Default values for configuration.
const (
	DefaultResultLimit    = 4
	MaxResultLimit        = 5
	DefaultWorkers        = 4
	DefaultFetchTimeout   = 30 * time.Second
	DefaultMaxRetries     = 3
	DefaultMaxFileReads   = 20
	MinMaxFileReads       = 10
	MaxMaxFileReads       = 30
	DefaultFreshnessHours = 24
	DefaultRetentionDays  = 30
	DefaultMinScore       = 35.0
	DefaultStaleDays      = 365
	DefaultCommitLimit    = 10
	DefaultAPIURL         = "https://api.github.com"
	DefaultGeminiModel    = "gemini-2.5-flash"
)

// DateTimeFormat is the default date time representation.
var DateTimeFormat = time.RFC3339

// Config holds the runtime configuration.
// This struct is the "final, validated" config.
type Config struct {
	GitHubToken  string // Please use env var as this is plaintext
	APIURL       string
	ResultLimit  int
	Workers      int
	FetchTimeout time.Duration
	MaxRetries   int
	MaxFileReads int
	CommitLimit  int

	FreshnessWindow time.Duration
	RetentionDays   int

	MinScore      float64
	StaleDays     int
	ForkStaleDays int

	StoreBackend   schema.DatabaseBackend
	StoreDBConnect string // Please use env var as this is plaintext

	Output     schema.OutputMode
	OutputFile string
	UseColors  bool
	Width      int

	Debug    bool
	JSONLogs bool

	Summarize    bool
	GeminiAPIKey string
	GeminiModel  string

	Force bool
}

// ConfigRawInput holds the raw inputs from all sources (flags, env, config file).
// Viper unmarshals into this struct.
type ConfigRawInput struct {
	// --- Fields from rootCmd.PersistentFlags() ---
	GitHubToken    string  `mapstructure:"github-token"`
	APIURL         string  `mapstructure:"api-url"`
	Limit          int     `mapstructure:"limit"`
	Workers        int     `mapstructure:"workers"`
	FetchTimeout   string  `mapstructure:"fetch-timeout"`
	MaxRetries     int     `mapstructure:"max-retries"`
	MaxFileReads   int     `mapstructure:"max-file-reads"`
	FreshnessHours int     `mapstructure:"freshness-hours"`
	RetentionDays  int     `mapstructure:"retention-days"`
	MinScore       float64 `mapstructure:"min-score"`
	StaleDays      int     `mapstructure:"stale-days"`
	ForkStaleDays  int     `mapstructure:"fork-stale-days"`
	StoreBackend   string  `mapstructure:"store-backend"`
	StoreDBConnect string  `mapstructure:"store-db-connect"`
	Output         string  `mapstructure:"output"`
	OutputFile     string  `mapstructure:"output-file"`
	Color          string  `mapstructure:"color"`
	Width          int     `mapstructure:"width"`
	Debug          bool    `mapstructure:"debug"`
	JSONLogs       bool    `mapstructure:"json-logs"`

	// --- Fields from subcommand flags ---
	Force     bool `mapstructure:"force"`
	Summarize bool `mapstructure:"summarize"`

	// --- Summarizer settings ---
	GeminiAPIKey string `mapstructure:"gemini-api-key"`
	GeminiModel  string `mapstructure:"gemini-model"`
}

// Clone returns a copy of the Config struct.
func (c *Config) Clone() *Config {
	clone := *c
	return &clone
}

// ProcessAndValidate performs all parsing and validation on the raw inputs
// and updates the final Config struct.
func ProcessAndValidate(cfg *Config, input *ConfigRawInput) error {
	if err := validateSimpleInputs(cfg, input); err != nil {
		return err
	}
	if err := validateSourceInputs(cfg, input); err != nil {
		return err
	}
	if err := validatePolicyInputs(cfg, input); err != nil {
		return err
	}
	if err := validateBackendConfigs(cfg, input); err != nil {
		return err
	}
	return nil
}

// ValidateDatabaseConnectionString validates the format of connection strings
// for the networked backends.
func ValidateDatabaseConnectionString(backend schema.DatabaseBackend, connStr string) error {
	switch backend {
	case schema.SQLiteBackend, schema.NoneBackend:
		return nil
	case schema.MySQLBackend:
		if connStr == "" {
			return fmt.Errorf("store-db-connect is required when using %s backend", backend)
		}
		if !strings.Contains(connStr, "@tcp(") {
			return fmt.Errorf("MySQL connection string must contain '@tcp(' for host:port specification")
		}
		if !strings.Contains(connStr, "/") {
			return fmt.Errorf("MySQL connection string must contain '/' followed by database name")
		}
	case schema.PostgreSQLBackend:
		if connStr == "" {
			return fmt.Errorf("store-db-connect is required when using %s backend", backend)
		}
		if !strings.Contains(connStr, "host=") {
			return fmt.Errorf("PostgreSQL connection string must contain 'host=' parameter")
		}
		if !strings.Contains(connStr, "dbname=") {
			return fmt.Errorf("PostgreSQL connection string must contain 'dbname=' parameter")
		}
	case schema.MongoDBBackend:
		if connStr == "" {
			return fmt.Errorf("store-db-connect is required when using %s backend", backend)
		}
		if !strings.HasPrefix(connStr, "mongodb://") && !strings.HasPrefix(connStr, "mongodb+srv://") {
			return fmt.Errorf("MongoDB connection string must start with 'mongodb://' or 'mongodb+srv://'")
		}
	}
	return nil
}

// validateBackendConfigs validates the snapshot store configuration.
func validateBackendConfigs(cfg *Config, input *ConfigRawInput) error {
	cfg.StoreBackend = schema.DatabaseBackend(strings.ToLower(input.StoreBackend))
	if _, ok := schema.ValidDatabaseBackends[cfg.StoreBackend]; !ok {
		return fmt.Errorf("invalid store backend '%s'. must be sqlite, mysql, postgresql, mongodb, none", input.StoreBackend)
	}
	cfg.StoreDBConnect = input.StoreDBConnect
	return ValidateDatabaseConnectionString(cfg.StoreBackend, cfg.StoreDBConnect)
}

// validateSimpleInputs processes and validates output and logging fields.
func validateSimpleInputs(cfg *Config, input *ConfigRawInput) error {
	cfg.OutputFile = input.OutputFile
	cfg.Width = input.Width
	cfg.Debug = input.Debug
	cfg.JSONLogs = input.JSONLogs
	cfg.Force = input.Force
	cfg.Summarize = input.Summarize

	colors, err := ParseBoolString(input.Color)
	if err != nil {
		return fmt.Errorf("invalid --color value: %w", err)
	}
	cfg.UseColors = colors

	if input.Limit <= 0 || input.Limit > MaxResultLimit {
		return fmt.Errorf("limit must be greater than 0 and cannot exceed %d (received %d)", MaxResultLimit, input.Limit)
	}
	cfg.ResultLimit = input.Limit

	if input.Workers <= 0 {
		return fmt.Errorf("workers must be greater than 0 (received %d)", input.Workers)
	}
	cfg.Workers = input.Workers

	cfg.Output = schema.OutputMode(strings.ToLower(input.Output))
	if _, ok := schema.ValidOutputModes[cfg.Output]; !ok {
		return fmt.Errorf("invalid output format '%s'. must be text, csv, json, parquet", cfg.Output)
	}

	cfg.GeminiAPIKey = strings.TrimSpace(input.GeminiAPIKey)
	cfg.GeminiModel = strings.TrimSpace(input.GeminiModel)
	if cfg.GeminiModel == "" {
		cfg.GeminiModel = DefaultGeminiModel
	}
	if cfg.Summarize && cfg.GeminiAPIKey == "" {
		return fmt.Errorf("--summarize requires gemini-api-key (set REPOSCOUT_GEMINI_API_KEY)")
	}

	return nil
}

// validateSourceInputs processes the remote source settings.
func validateSourceInputs(cfg *Config, input *ConfigRawInput) error {
	cfg.GitHubToken = strings.TrimSpace(input.GitHubToken)
	if cfg.GitHubToken == "" {
		cfg.GitHubToken = strings.TrimSpace(os.Getenv("GITHUB_TOKEN"))
	}

	cfg.APIURL = strings.TrimRight(strings.TrimSpace(input.APIURL), "/")
	if cfg.APIURL == "" {
		cfg.APIURL = DefaultAPIURL
	}
	u, err := url.Parse(cfg.APIURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("invalid api-url %q. Expected an absolute URL such as %s", input.APIURL, DefaultAPIURL)
	}

	cfg.FetchTimeout = DefaultFetchTimeout
	if input.FetchTimeout != "" {
		d, err := time.ParseDuration(input.FetchTimeout)
		if err != nil {
			return fmt.Errorf("invalid fetch-timeout %q: %w", input.FetchTimeout, err)
		}
		if d <= 0 {
			return fmt.Errorf("fetch-timeout must be positive (received %s)", d)
		}
		cfg.FetchTimeout = d
	}

	if input.MaxRetries < 0 {
		return fmt.Errorf("max-retries cannot be negative (received %d)", input.MaxRetries)
	}
	cfg.MaxRetries = input.MaxRetries

	if input.MaxFileReads < MinMaxFileReads || input.MaxFileReads > MaxMaxFileReads {
		return fmt.Errorf("max-file-reads must be between %d and %d (received %d)", MinMaxFileReads, MaxMaxFileReads, input.MaxFileReads)
	}
	cfg.MaxFileReads = input.MaxFileReads
	cfg.CommitLimit = DefaultCommitLimit

	return nil
}

// validatePolicyInputs processes cache and qualification policy values.
func validatePolicyInputs(cfg *Config, input *ConfigRawInput) error {
	if input.FreshnessHours < 0 {
		return fmt.Errorf("freshness-hours cannot be negative (received %d)", input.FreshnessHours)
	}
	cfg.FreshnessWindow = time.Duration(input.FreshnessHours) * time.Hour

	if input.RetentionDays <= 0 {
		return fmt.Errorf("retention-days must be greater than 0 (received %d)", input.RetentionDays)
	}
	cfg.RetentionDays = input.RetentionDays

	if input.MinScore < 0 || input.MinScore > schema.MaxTotalScore {
		return fmt.Errorf("min-score must be between 0 and %.0f (received %.1f)", schema.MaxTotalScore, input.MinScore)
	}
	cfg.MinScore = input.MinScore

	if input.StaleDays <= 0 {
		return fmt.Errorf("stale-days must be greater than 0 (received %d)", input.StaleDays)
	}
	cfg.StaleDays = input.StaleDays

	cfg.ForkStaleDays = input.ForkStaleDays
	if cfg.ForkStaleDays <= 0 {
		cfg.ForkStaleDays = cfg.StaleDays
	}

	return nil
}

// DefaultRawInput returns raw input populated with the documented defaults.
// It mirrors the viper defaults and is handy for tests and embedded callers.
func DefaultRawInput() *ConfigRawInput {
	return &ConfigRawInput{
		APIURL:         DefaultAPIURL,
		Limit:          DefaultResultLimit,
		Workers:        DefaultWorkers,
		FetchTimeout:   DefaultFetchTimeout.String(),
		MaxRetries:     DefaultMaxRetries,
		MaxFileReads:   DefaultMaxFileReads,
		FreshnessHours: DefaultFreshnessHours,
		RetentionDays:  DefaultRetentionDays,
		MinScore:       DefaultMinScore,
		StaleDays:      DefaultStaleDays,
		ForkStaleDays:  DefaultStaleDays,
		StoreBackend:   string(schema.SQLiteBackend),
		Output:         string(schema.TextOut),
		Color:          "yes",
	}
}
