// Package parquet exports stored snapshots and rankings to Parquet files
// using github.com/parquet-go/parquet-go.
package parquet

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/huangsam/reposcout/schema"
	"github.com/parquet-go/parquet-go"
)

// Snapshot is one stored analysis snapshot.
// This struct maps to the repo_snapshots table.
type Snapshot struct {
	// SnapshotKey is the canonical owner/repo key
	SnapshotKey string `parquet:"snapshot_key,snappy"`

	// Owner is the lowercased account name
	Owner string `parquet:"owner,snappy"`

	// Repo is the repository name (nullable, absent for profile snapshots)
	Repo *string `parquet:"repo,optional,snappy"`

	// Payload is the JSON analysis payload
	Payload string `parquet:"payload,snappy"`

	// FileCount is the number of fingerprints stored with the payload
	FileCount int32 `parquet:"file_count,snappy"`

	// CreatedAt is when the analysis was produced
	CreatedAt time.Time `parquet:"created_at,snappy"`

	// LastCheckedAt is when the snapshot was last confirmed unchanged
	LastCheckedAt time.Time `parquet:"last_checked_at,snappy"`
}

// Fingerprint is the content hash of one file in a snapshot.
// This struct maps to the repo_fingerprints table.
type Fingerprint struct {
	SnapshotKey string `parquet:"snapshot_key,snappy"`
	Path        string `parquet:"path,snappy"`
	Hash        string `parquet:"hash,snappy"`
	Size        int64  `parquet:"size,snappy"`
}

// Ranked is one row of a selection result.
type Ranked struct {
	// Position is 1-based within selected repositories followed by runners-up
	Position   int32     `parquet:"position,snappy"`
	Name       string    `parquet:"name,snappy"`
	Selected   bool      `parquet:"selected,snappy"`
	Total      float64   `parquet:"total,snappy"`
	Maturity   float64   `parquet:"maturity,snappy"`
	Activity   float64   `parquet:"activity,snappy"`
	CodeScale  float64   `parquet:"code_scale,snappy"`
	Deployment float64   `parquet:"deployment,snappy"`
	Impact     float64   `parquet:"impact,snappy"`
	Stars      int32     `parquet:"stars,snappy"`
	PushedAt   time.Time `parquet:"pushed_at,snappy"`
	Badges     string    `parquet:"badges,snappy"`
}

// writeRows writes rows of T to w using the schema inferred from T's struct tags.
func writeRows[T any](w io.Writer, rows []T) error {
	writer := parquet.NewGenericWriter[T](w)
	if _, err := writer.Write(rows); err != nil {
		_ = writer.Close()
		return fmt.Errorf("failed to write data to parquet file: %w", err)
	}
	if err := writer.Close(); err != nil {
		return fmt.Errorf("failed to finalize parquet file: %w", err)
	}
	return nil
}

// writeFile creates outputPath and writes rows of T to it.
func writeFile[T any](rows []T, outputPath string) error {
	file, err := os.Create(outputPath)
	if err != nil {
		return fmt.Errorf("failed to create output file: %w", err)
	}
	if err := writeRows(file, rows); err != nil {
		_ = file.Close()
		return err
	}
	return file.Close()
}

// WriteSnapshotsParquet writes snapshot rows to a Parquet file.
func WriteSnapshotsParquet(data []Snapshot, outputPath string) error {
	return writeFile(data, outputPath)
}

// WriteFingerprintsParquet writes fingerprint rows to a Parquet file.
func WriteFingerprintsParquet(data []Fingerprint, outputPath string) error {
	return writeFile(data, outputPath)
}

// WriteRanked writes selected repositories followed by runners-up to w.
func WriteRanked(w io.Writer, result schema.SelectionResult) error {
	return writeRows(w, ConvertSelection(result))
}

// ConvertSnapshotRecords converts schema.SnapshotRecord to Snapshot for Parquet export.
func ConvertSnapshotRecords(records []schema.SnapshotRecord) []Snapshot {
	result := make([]Snapshot, len(records))
	for i, record := range records {
		var repo *string
		if record.Repo != "" {
			name := record.Repo
			repo = &name
		}
		result[i] = Snapshot{
			SnapshotKey:   record.SnapshotKey,
			Owner:         record.Owner,
			Repo:          repo,
			Payload:       record.Payload,
			FileCount:     record.FileCount,
			CreatedAt:     record.CreatedAt,
			LastCheckedAt: record.LastCheckedAt,
		}
	}
	return result
}

// ConvertFingerprintRecords converts schema.FingerprintRecord to Fingerprint for Parquet export.
func ConvertFingerprintRecords(records []schema.FingerprintRecord) []Fingerprint {
	result := make([]Fingerprint, len(records))
	for i, record := range records {
		result[i] = Fingerprint(record)
	}
	return result
}

// ConvertSelection flattens a selection result into ranked rows.
func ConvertSelection(result schema.SelectionResult) []Ranked {
	rows := make([]Ranked, 0, len(result.Selected)+len(result.RunnersUp))
	appendRows := func(repos []schema.RankedRepository, selected bool) {
		for _, r := range repos {
			labels := make([]string, 0, len(r.Badges))
			for _, b := range r.Badges {
				labels = append(labels, b.Label)
			}
			rows = append(rows, Ranked{
				Position:   int32(len(rows) + 1),
				Name:       r.Metadata.Name,
				Selected:   selected,
				Total:      r.Total,
				Maturity:   r.Score.Maturity,
				Activity:   r.Score.Activity,
				CodeScale:  r.Score.CodeScale,
				Deployment: r.Score.Deployment,
				Impact:     r.Score.Impact,
				Stars:      int32(r.Metadata.Stars),
				PushedAt:   r.Metadata.PushedAt,
				Badges:     strings.Join(labels, ", "),
			})
		}
	}
	appendRows(result.Selected, true)
	appendRows(result.RunnersUp, false)
	return rows
}
