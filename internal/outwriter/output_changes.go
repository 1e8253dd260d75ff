package outwriter

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"

	"github.com/huangsam/reposcout/core/change"
	"github.com/huangsam/reposcout/internal/contract"
	"github.com/huangsam/reposcout/schema"
	"github.com/olekukonko/tablewriter"
)

// Change statuses shown per path.
const (
	statusAdded    = "added"
	statusModified = "modified"
	statusRemoved  = "removed"
)

// changeRow is one changed path.
type changeRow struct {
	Path     string
	Status   string
	Critical bool
}

// changeRows flattens a change set in added, modified, removed order.
func changeRows(cs schema.ChangeSet) []changeRow {
	rows := make([]changeRow, 0, cs.Len())
	for _, group := range []struct {
		status string
		paths  []string
	}{
		{statusAdded, cs.Added},
		{statusModified, cs.Modified},
		{statusRemoved, cs.Removed},
	} {
		for _, p := range group.paths {
			rows = append(rows, changeRow{Path: p, Status: group.status, Critical: change.IsCriticalFile(p)})
		}
	}
	return rows
}

// writeChangeResults dispatches a change report based on the output format configured.
func (ow *OutWriter) writeChangeResults(report *schema.ChangeReport, cfg *contract.Config) error {
	switch cfg.Output {
	case schema.JSONOut:
		return ow.writeWithFile(cfg.OutputFile, func(w io.Writer) error {
			return writeJSON(w, report)
		}, "Wrote JSON")
	case schema.CSVOut:
		return ow.writeWithFile(cfg.OutputFile, func(w io.Writer) error {
			return writeChangesCSV(w, report)
		}, "Wrote CSV")
	case schema.ParquetOut:
		return fmt.Errorf("parquet output is not supported for change reports")
	default:
		return ow.writeWithFile(cfg.OutputFile, func(w io.Writer) error {
			return writeChangesTable(w, report, cfg)
		}, "Wrote table")
	}
}

// writeChangesTable prints the impact summary and one row per changed path.
func writeChangesTable(w io.Writer, report *schema.ChangeReport, cfg *contract.Config) error {
	impact := report.Impact
	if _, err := fmt.Fprintf(w, "%s: impact %s, %d changed (%.1f%%)\n",
		report.Key, contract.GetImpactLabel(impact.Level, cfg.UseColors), report.Changes.Len(), impact.ChangedRatio*100); err != nil {
		return err
	}
	if report.Changes.IsEmpty() {
		_, err := fmt.Fprintln(w, "No changes since the stored snapshot")
		return err
	}

	nameWidth := changePaths.width(cfg)
	table := tablewriter.NewWriter(w)
	table.Header([]string{"Path", "Status", "Critical"})
	var data [][]string
	for _, r := range changeRows(report.Changes) {
		critical := ""
		if r.Critical {
			critical = "yes"
		}
		data = append(data, []string{truncateLeft(r.Path, nameWidth), r.Status, critical})
	}
	if err := table.Bulk(data); err != nil {
		return err
	}
	if err := table.Render(); err != nil {
		return err
	}
	if impact.CriticalFileTouched {
		if _, err := fmt.Fprintf(w, "Critical files: %s\n", strings.Join(impact.CriticalFiles, ", ")); err != nil {
			return err
		}
	}
	return nil
}

// writeChangesCSV writes one row per changed path.
func writeChangesCSV(w io.Writer, report *schema.ChangeReport) error {
	return writeCSVWithHeader(w, []string{"key", "path", "status", "critical", "impact"}, func(cw *csv.Writer) error {
		for _, r := range changeRows(report.Changes) {
			if err := cw.Write([]string{
				report.Key.String(), r.Path, r.Status, fmt.Sprintf("%t", r.Critical), string(report.Impact.Level),
			}); err != nil {
				return err
			}
		}
		return nil
	})
}

// truncateLeft keeps the end of a path, where the file name is.
func truncateLeft(p string, maxWidth int) string {
	runes := []rune(p)
	if len(runes) > maxWidth && maxWidth > 3 {
		return "..." + string(runes[len(runes)-maxWidth+3:])
	}
	return p
}
