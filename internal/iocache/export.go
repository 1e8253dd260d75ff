package iocache

import (
	"errors"
	"fmt"
	"io"

	"github.com/huangsam/reposcout/internal/contract"
	"github.com/huangsam/reposcout/internal/parquet"
	"github.com/huangsam/reposcout/schema"
)

// SnapshotRecords flattens snapshots into export rows. Fingerprints are ordered by key then path.
func SnapshotRecords(snapshots []schema.AnalysisSnapshot) ([]schema.SnapshotRecord, []schema.FingerprintRecord) {
	snaps := make([]schema.SnapshotRecord, 0, len(snapshots))
	var fps []schema.FingerprintRecord
	for _, s := range snapshots {
		key := s.Key.String()
		snaps = append(snaps, schema.SnapshotRecord{
			SnapshotKey:   key,
			Owner:         s.Key.Owner,
			Repo:          s.Key.Repo,
			Payload:       string(s.Payload),
			FileCount:     int32(len(s.Fingerprints)),
			CreatedAt:     s.CreatedAt,
			LastCheckedAt: s.LastCheckedAt,
		})
		for _, path := range sortedPaths(s.Fingerprints) {
			fp := s.Fingerprints[path]
			fps = append(fps, schema.FingerprintRecord{SnapshotKey: key, Path: path, Hash: fp.Hash, Size: fp.Size})
		}
	}
	return snaps, fps
}

// ExportSnapshots writes every stored snapshot and fingerprint to two Parquet files
// named after outputFile, and reports progress to w.
func ExportSnapshots(store contract.SnapshotStore, outputFile string, w io.Writer) error {
	// Validate that output file is specified
	if outputFile == "" {
		return errors.New("--output-file is required for export command")
	}

	status, err := store.GetStatus()
	if err != nil {
		return fmt.Errorf("failed to get store status: %w", err)
	}
	if status.TotalSnapshots == 0 {
		return errors.New("no snapshot data found to export")
	}

	_, _ = fmt.Fprintf(w, "Exporting data from %s backend...\n", status.Backend)
	_, _ = fmt.Fprintf(w, "Total snapshots: %d\n", status.TotalSnapshots)

	snapshots, err := store.ListSnapshots()
	if err != nil {
		return fmt.Errorf("failed to retrieve snapshots: %w", err)
	}
	snapRecords, fpRecords := SnapshotRecords(snapshots)

	snapshotsFile := outputFile + ".snapshots.parquet"
	if err := parquet.WriteSnapshotsParquet(parquet.ConvertSnapshotRecords(snapRecords), snapshotsFile); err != nil {
		return fmt.Errorf("failed to write snapshots: %w", err)
	}
	_, _ = fmt.Fprintf(w, "Exported %d snapshots to: %s\n", len(snapRecords), snapshotsFile)

	fingerprintsFile := outputFile + ".fingerprints.parquet"
	if err := parquet.WriteFingerprintsParquet(parquet.ConvertFingerprintRecords(fpRecords), fingerprintsFile); err != nil {
		return fmt.Errorf("failed to write fingerprints: %w", err)
	}
	_, _ = fmt.Fprintf(w, "Exported %d fingerprints to: %s\n", len(fpRecords), fingerprintsFile)
	return nil
}
