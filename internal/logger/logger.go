// Package logger builds the structured zap logger and shared field helpers.
package logger

import (
	"strings"

	"github.com/huangsam/reposcout/schema"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Structured log field keys.
const (
	FieldOwner = "owner"
	FieldRepo  = "repo"
	FieldKey   = "snapshot_key"
)

// New builds a logger writing to stderr so stdout stays free for results and the MCP transport.
func New(json bool, debug bool) (*zap.Logger, error) {
	level := zapcore.InfoLevel
	encoding := "console"

	if json {
		encoding = "json"
	}

	if debug {
		level = zapcore.DebugLevel
	}

	cfg := zap.Config{
		Encoding:         encoding,
		Level:            zap.NewAtomicLevelAt(level),
		OutputPaths:      []string{"stderr"},
		ErrorOutputPaths: []string{"stderr"},
		EncoderConfig: zapcore.EncoderConfig{
			MessageKey: "msg",

			LevelKey:    "level",
			EncodeLevel: zapcore.LowercaseLevelEncoder,

			TimeKey:    "time",
			EncodeTime: zapcore.RFC3339TimeEncoder,

			CallerKey:    "caller",
			EncodeCaller: zapcore.ShortCallerEncoder,
		},
	}
	return cfg.Build()
}

// StringField describes a string-valued structured logging field.
type StringField struct {
	Key   string
	Value string
}

// StringFields converts the provided key/value pairs into zap fields, trimming
// whitespace and omitting entries with empty keys or values.
func StringFields(fields ...StringField) []zap.Field {
	result := make([]zap.Field, 0, len(fields))
	for _, field := range fields {
		key := strings.TrimSpace(field.Key)
		if key == "" {
			continue
		}

		value := strings.TrimSpace(field.Value)
		if value == "" {
			continue
		}

		result = append(result, zap.String(key, value))
	}

	return result
}

// WithFields safely attaches the provided fields to the logger.
// A nil logger becomes a no-op logger.
func WithFields(logger *zap.Logger, fields ...zap.Field) *zap.Logger {
	if logger == nil {
		logger = zap.NewNop()
	}

	if len(fields) == 0 {
		return logger
	}

	return logger.With(fields...)
}

// RepoFields returns the owner/repo/key fields for a repository key.
func RepoFields(key schema.RepositoryKey) []zap.Field {
	return StringFields(
		StringField{Key: FieldOwner, Value: key.Owner},
		StringField{Key: FieldRepo, Value: key.Repo},
		StringField{Key: FieldKey, Value: key.String()},
	)
}

// WithRepo attaches the repository fields to the logger.
func WithRepo(logger *zap.Logger, key schema.RepositoryKey) *zap.Logger {
	return WithFields(logger, RepoFields(key)...)
}

// OrNop returns logger, or a no-op logger when it is nil.
func OrNop(logger *zap.Logger) *zap.Logger {
	if logger == nil {
		return zap.NewNop()
	}
	return logger
}
