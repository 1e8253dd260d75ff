package outwriter

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/huangsam/reposcout/core/algo"
	"github.com/huangsam/reposcout/internal/contract"
	"github.com/huangsam/reposcout/internal/parquet"
	"github.com/huangsam/reposcout/schema"
	"github.com/olekukonko/tablewriter"
)

// snapshotJSON is the JSON envelope for a snapshot.
type snapshotJSON struct {
	Key           string          `json:"key"`
	CreatedAt     time.Time       `json:"created_at"`
	LastCheckedAt time.Time       `json:"last_checked_at"`
	FileCount     int             `json:"file_count"`
	Analysis      json.RawMessage `json:"analysis"`
}

// writeSnapshotResults dispatches a snapshot based on the output format configured.
func (ow *OutWriter) writeSnapshotResults(snap *schema.AnalysisSnapshot, cfg *contract.Config, duration time.Duration) error {
	if cfg.Output == schema.JSONOut {
		return ow.writeWithFile(cfg.OutputFile, func(w io.Writer) error {
			return writeJSON(w, snapshotJSON{
				Key:           snap.Key.String(),
				CreatedAt:     snap.CreatedAt,
				LastCheckedAt: snap.LastCheckedAt,
				FileCount:     len(snap.Fingerprints),
				Analysis:      snap.Payload,
			})
		}, "Wrote JSON")
	}

	var (
		sel      schema.SelectionResult
		profile  *schema.ProfileAnalysis
		analysis *schema.RepositoryAnalysis
	)
	if snap.Key.IsProfile() {
		profile = &schema.ProfileAnalysis{}
		if err := json.Unmarshal(snap.Payload, profile); err != nil {
			return fmt.Errorf("failed to decode profile analysis for %s: %w", snap.Key, err)
		}
		sel = profile.Selection
	} else {
		analysis = &schema.RepositoryAnalysis{}
		if err := json.Unmarshal(snap.Payload, analysis); err != nil {
			return fmt.Errorf("failed to decode analysis for %s: %w", snap.Key, err)
		}
		sel = RepositorySelection(analysis)
	}

	switch cfg.Output {
	case schema.CSVOut:
		return ow.writeWithFile(cfg.OutputFile, func(w io.Writer) error {
			return writeSelectionCSV(w, &sel)
		}, "Wrote CSV")
	case schema.ParquetOut:
		if err := requireFile(cfg.OutputFile); err != nil {
			return err
		}
		return ow.writeWithFile(cfg.OutputFile, func(w io.Writer) error {
			return parquet.WriteRanked(w, sel)
		}, "Wrote Parquet")
	default:
		return ow.writeWithFile(cfg.OutputFile, func(w io.Writer) error {
			if profile != nil {
				if err := writeSelectionTable(w, profile.Owner, &sel, cfg, duration); err != nil {
					return err
				}
				if profile.Summary != "" {
					if _, err := fmt.Fprintf(w, "\n%s\n\n", strings.TrimSpace(profile.Summary)); err != nil {
						return err
					}
				}
			} else if err := writeRepositoryDetail(w, snap.Key, analysis, cfg); err != nil {
				return err
			}
			return writeSnapshotFooter(w, snap)
		}, "Wrote table")
	}
}

// RepositorySelection presents one repository analysis as a selection of at most one.
func RepositorySelection(a *schema.RepositoryAnalysis) schema.SelectionResult {
	sel := schema.SelectionResult{
		Selected: []schema.RankedRepository{},
		Excluded: []schema.ExcludedRepository{},
		Failures: a.Facts.Failures,
		RankedAt: a.AnalyzedAt,
	}
	v := a.Verdict
	if v.Qualified && v.Score != nil {
		sel.Selected = append(sel.Selected, schema.RankedRepository{
			Metadata: a.Facts.Metadata,
			Score:    *v.Score,
			Total:    v.Score.Total(),
			Signals:  a.Facts.Signals,
			Badges:   a.Badges,
		})
		return sel
	}
	reason := schema.ReasonFetchFailed
	if v.ExclusionReason != nil {
		reason = *v.ExclusionReason
	}
	sel.Excluded = append(sel.Excluded, schema.ExcludedRepository{Metadata: a.Facts.Metadata, Reason: reason})
	return sel
}

// writeRepositoryDetail prints the verdict, score breakdown and signals of one repository.
func writeRepositoryDetail(w io.Writer, key schema.RepositoryKey, a *schema.RepositoryAnalysis, cfg *contract.Config) error {
	v := a.Verdict
	if v.Qualified && v.Score != nil {
		total := v.Score.Total()
		if _, err := fmt.Fprintf(w, "%s: qualified, total %s (%s)\n", key, fmtFloat(total), tierLabel(total, cfg)); err != nil {
			return err
		}
		table := tablewriter.NewWriter(w)
		table.Header([]string{"Category", "Score", "Cap"})
		rows := [][]string{
			{"Maturity", fmtFloat(v.Score.Maturity), fmtFloat(schema.MaturityCap)},
			{"Activity", fmtFloat(v.Score.Activity), fmtFloat(schema.ActivityCap)},
			{"Code scale", fmtFloat(v.Score.CodeScale), fmtFloat(schema.CodeScaleCap)},
			{"Deployment", fmtFloat(v.Score.Deployment), fmtFloat(schema.DeploymentCap)},
			{"Impact", fmtFloat(v.Score.Impact), fmtFloat(schema.ImpactCap)},
		}
		if err := table.Bulk(rows); err != nil {
			return err
		}
		if err := table.Render(); err != nil {
			return err
		}
		if len(a.Badges) > 0 {
			if _, err := fmt.Fprintf(w, "Badges: %s\n", algo.BadgeLabels(a.Badges)); err != nil {
				return err
			}
		}
	} else {
		reason := schema.ReasonFetchFailed
		if v.ExclusionReason != nil {
			reason = *v.ExclusionReason
		}
		if _, err := fmt.Fprintf(w, "%s: excluded (%s)\n", key, reason); err != nil {
			return err
		}
	}

	s := a.Facts.Signals
	if _, err := fmt.Fprintf(w, "Signals: manifest=%t tests=%t ci=%t container=%t readme=%t source_files=%d\n",
		s.HasManifest, s.HasTests, s.HasCI, s.HasContainer, s.HasReadme, s.SourceFileCount); err != nil {
		return err
	}
	for _, f := range a.Facts.Failures {
		if _, err := fmt.Fprintf(w, "Degraded %s %s: %s\n", f.Field, f.Path, f.Error); err != nil {
			return err
		}
	}
	return nil
}

// writeSnapshotFooter prints the snapshot age.
func writeSnapshotFooter(w io.Writer, snap *schema.AnalysisSnapshot) error {
	_, err := fmt.Fprintf(w, "Analyzed %s, last checked %s, %d files tracked\n",
		humanize.Time(snap.CreatedAt), humanize.Time(snap.LastCheckedAt), len(snap.Fingerprints))
	return err
}
