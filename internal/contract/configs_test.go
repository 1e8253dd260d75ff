package contract

import (
	"testing"
	"time"

	"github.com/huangsam/reposcout/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProcessAndValidate(t *testing.T) {
	tests := []struct {
		name        string
		mutate      func(*ConfigRawInput)
		expectError string
	}{
		{name: "valid defaults", mutate: func(*ConfigRawInput) {}},
		{name: "limit too high", mutate: func(in *ConfigRawInput) { in.Limit = 6 }, expectError: "limit must be greater than 0"},
		{name: "limit zero", mutate: func(in *ConfigRawInput) { in.Limit = 0 }, expectError: "limit must be greater than 0"},
		{name: "zero workers", mutate: func(in *ConfigRawInput) { in.Workers = 0 }, expectError: "workers must be greater than 0"},
		{name: "invalid output", mutate: func(in *ConfigRawInput) { in.Output = "xml" }, expectError: "invalid output format"},
		{name: "invalid color", mutate: func(in *ConfigRawInput) { in.Color = "maybe" }, expectError: "invalid --color value"},
		{name: "bad timeout", mutate: func(in *ConfigRawInput) { in.FetchTimeout = "soon" }, expectError: "invalid fetch-timeout"},
		{name: "negative timeout", mutate: func(in *ConfigRawInput) { in.FetchTimeout = "-1s" }, expectError: "fetch-timeout must be positive"},
		{name: "file reads too low", mutate: func(in *ConfigRawInput) { in.MaxFileReads = 5 }, expectError: "max-file-reads must be between"},
		{name: "file reads too high", mutate: func(in *ConfigRawInput) { in.MaxFileReads = 31 }, expectError: "max-file-reads must be between"},
		{name: "negative freshness", mutate: func(in *ConfigRawInput) { in.FreshnessHours = -1 }, expectError: "freshness-hours cannot be negative"},
		{name: "min score out of range", mutate: func(in *ConfigRawInput) { in.MinScore = 120 }, expectError: "min-score must be between"},
		{name: "unknown backend", mutate: func(in *ConfigRawInput) { in.StoreBackend = "redis" }, expectError: "invalid store backend"},
		{name: "mysql without dsn", mutate: func(in *ConfigRawInput) { in.StoreBackend = "mysql" }, expectError: "store-db-connect is required"},
		{name: "bad api url", mutate: func(in *ConfigRawInput) { in.APIURL = "not a url" }, expectError: "invalid api-url"},
		{name: "summarize without key", mutate: func(in *ConfigRawInput) { in.Summarize = true }, expectError: "--summarize requires gemini-api-key"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			input := DefaultRawInput()
			tt.mutate(input)
			cfg := &Config{}
			err := ProcessAndValidate(cfg, input)
			if tt.expectError != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.expectError)
				return
			}
			require.NoError(t, err)
		})
	}
}

func TestProcessAndValidateDefaults(t *testing.T) {
	t.Setenv("GITHUB_TOKEN", "ghp_fallback")
	cfg := &Config{}
	require.NoError(t, ProcessAndValidate(cfg, DefaultRawInput()))

	assert.Equal(t, DefaultResultLimit, cfg.ResultLimit)
	assert.Equal(t, 24*time.Hour, cfg.FreshnessWindow)
	assert.Equal(t, DefaultFetchTimeout, cfg.FetchTimeout)
	assert.Equal(t, schema.SQLiteBackend, cfg.StoreBackend)
	assert.Equal(t, DefaultAPIURL, cfg.APIURL)
	assert.Equal(t, "ghp_fallback", cfg.GitHubToken)
	assert.Equal(t, DefaultGeminiModel, cfg.GeminiModel)
	assert.Equal(t, DefaultStaleDays, cfg.ForkStaleDays)
	assert.True(t, cfg.UseColors)
}

func TestForkStaleDaysFallsBackToStaleDays(t *testing.T) {
	input := DefaultRawInput()
	input.StaleDays = 500
	input.ForkStaleDays = 0
	cfg := &Config{}
	require.NoError(t, ProcessAndValidate(cfg, input))
	assert.Equal(t, 500, cfg.ForkStaleDays)
}

func TestValidateDatabaseConnectionString(t *testing.T) {
	tests := []struct {
		backend schema.DatabaseBackend
		connStr string
		wantErr bool
	}{
		{schema.SQLiteBackend, "", false},
		{schema.NoneBackend, "", false},
		{schema.MySQLBackend, "root:pw@tcp(localhost:3306)/reposcout", false},
		{schema.MySQLBackend, "root:pw@localhost", true},
		{schema.PostgreSQLBackend, "host=localhost dbname=reposcout", false},
		{schema.PostgreSQLBackend, "dbname=reposcout", true},
		{schema.MongoDBBackend, "mongodb://localhost:27017/reposcout", false},
		{schema.MongoDBBackend, "mongodb+srv://cluster.example.net/reposcout", false},
		{schema.MongoDBBackend, "localhost:27017", true},
		{schema.MongoDBBackend, "", true},
	}

	for _, tt := range tests {
		t.Run(string(tt.backend)+"/"+tt.connStr, func(t *testing.T) {
			err := ValidateDatabaseConnectionString(tt.backend, tt.connStr)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestConfigClone(t *testing.T) {
	cfg := &Config{ResultLimit: 3, Workers: 2}
	clone := cfg.Clone()
	clone.ResultLimit = 5
	assert.Equal(t, 3, cfg.ResultLimit)
	assert.Equal(t, 2, clone.Workers)
}
