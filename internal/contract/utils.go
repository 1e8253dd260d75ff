package contract

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/fatih/color"
	"github.com/huangsam/reposcout/schema"
)

// Score tier label constants.
const (
	StrongValue = "Strong" // Strong portfolio candidate
	SolidValue  = "Solid"  // Solid candidate
	FairValue   = "Fair"   // Just above the selection threshold
	WeakValue   = "Weak"   // Below the selection threshold
)

// Color variables for console output.
var (
	StrongColor = color.New(color.FgGreen, color.Bold) // StrongColor highlights top candidates.
	SolidColor  = color.New(color.FgCyan, color.Bold)  // SolidColor marks dependable picks.
	FairColor   = color.New(color.FgYellow)            // FairColor marks borderline picks, not bold.
	WeakColor   = color.New(color.FgRed)               // WeakColor marks scores under the threshold.

	ImpactColors = map[schema.ImpactLevel]*color.Color{
		schema.ImpactNone:   color.New(color.FgGreen),
		schema.ImpactLow:    color.New(color.FgCyan),
		schema.ImpactMedium: color.New(color.FgYellow),
		schema.ImpactHigh:   color.New(color.FgRed, color.Bold),
	}
)

// GetPlainLabel returns a plain text tier label for a total score.
// This is the core logic used for CSV, JSON, and table printing.
func GetPlainLabel(score float64) string {
	switch {
	case score >= 70:
		return StrongValue
	case score >= 50:
		return SolidValue
	case score >= DefaultMinScore:
		return FairValue
	default:
		return WeakValue
	}
}

// GetColorLabel returns a colored tier label for console output (table).
func GetColorLabel(score float64) string {
	text := GetPlainLabel(score)

	switch text {
	case StrongValue:
		return StrongColor.Sprint(text)
	case SolidValue:
		return SolidColor.Sprint(text)
	case FairValue:
		return FairColor.Sprint(text)
	default: // "Weak"
		return WeakColor.Sprint(text)
	}
}

// GetImpactLabel returns the impact level, colored when useColors is set.
func GetImpactLabel(level schema.ImpactLevel, useColors bool) string {
	if c, ok := ImpactColors[level]; ok && useColors {
		return c.Sprint(string(level))
	}
	return string(level)
}

// SelectOutputFile returns the appropriate file handle for output, based on the provided
// file path. It falls back to os.Stdout when no path is given.
func SelectOutputFile(filePath string) (*os.File, error) {
	if filePath == "" {
		return os.Stdout, nil
	}
	return os.Create(filePath)
}

// LogFatal logs an error and exits the program.
func LogFatal(msg string, err error) {
	_, _ = fmt.Fprintf(os.Stderr, "Fatal %s: %v\n", msg, err)
	os.Exit(1)
}

// LogWarn logs a warning message to stderr.
func LogWarn(msg string, err error) {
	_, _ = fmt.Fprintf(os.Stderr, "Warn %s: %v\n", msg, err)
}

// GetStoreDBFilePath returns the path to the SQLite DB file for snapshot storage.
func GetStoreDBFilePath() string {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return ".reposcout_snapshots.db"
	}
	return filepath.Join(homeDir, ".reposcout_snapshots.db")
}

// TruncateText shortens text to maxWidth runes, keeping the beginning.
func TruncateText(text string, maxWidth int) string {
	runes := []rune(text)
	if len(runes) > maxWidth && maxWidth > 3 {
		return string(runes[:maxWidth-3]) + "..."
	}
	return text
}

// ParseBoolString parses a string value into a boolean.
// Accepts "yes", "no", "true", "false", "1", "0" (case-insensitive).
// Returns an error for invalid values.
func ParseBoolString(s string) (bool, error) {
	switch strings.ToLower(s) {
	case "yes", "true", "1":
		return true, nil
	case "no", "false", "0":
		return false, nil
	default:
		return false, fmt.Errorf("invalid boolean string: %s (expected yes/no/true/false/1/0)", s)
	}
}
