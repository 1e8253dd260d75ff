// Package outwriter renders selections, snapshots and change reports as text, CSV, JSON or Parquet.
package outwriter

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/huangsam/reposcout/internal/contract"
	"github.com/huangsam/reposcout/schema"
)

// OutWriter provides a unified interface for all output operations.
// Results go to cfg.OutputFile when set and to stdout otherwise.
type OutWriter struct {
	stdout io.Writer
	stderr io.Writer
}

// Option customizes an OutWriter.
type Option func(*OutWriter)

// WithStdout replaces the default destination.
func WithStdout(w io.Writer) Option {
	return func(ow *OutWriter) { ow.stdout = w }
}

// WithStderr replaces the destination of progress notes.
func WithStderr(w io.Writer) Option {
	return func(ow *OutWriter) { ow.stderr = w }
}

// NewOutWriter creates a new instance of the output writer.
func NewOutWriter(opts ...Option) *OutWriter {
	ow := &OutWriter{stdout: os.Stdout, stderr: os.Stderr}
	for _, opt := range opts {
		opt(ow)
	}
	return ow
}

// WriteSelection prints a ranking using the configured output format.
func (ow *OutWriter) WriteSelection(owner string, sel *schema.SelectionResult, cfg *contract.Config, duration time.Duration) error {
	return ow.writeSelectionResults(owner, sel, cfg, duration)
}

// WriteSnapshot prints a stored or fresh analysis using the configured output format.
func (ow *OutWriter) WriteSnapshot(snap *schema.AnalysisSnapshot, cfg *contract.Config, duration time.Duration) error {
	return ow.writeSnapshotResults(snap, cfg, duration)
}

// WriteChanges prints a change report using the configured output format.
func (ow *OutWriter) WriteChanges(report *schema.ChangeReport, cfg *contract.Config) error {
	return ow.writeChangeResults(report, cfg)
}

// WriteSummary prints a narrative summary after a text table. Structured or file output
// keeps its shape, so the summary goes to stderr instead.
func (ow *OutWriter) WriteSummary(summary string, cfg *contract.Config) error {
	w := ow.stdout
	if cfg.Output != schema.TextOut || cfg.OutputFile != "" {
		w = ow.stderr
	}
	_, err := fmt.Fprintf(w, "\n%s\n", strings.TrimSpace(summary))
	return err
}
