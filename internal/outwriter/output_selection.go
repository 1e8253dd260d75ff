package outwriter

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"github.com/huangsam/reposcout/core/algo"
	"github.com/huangsam/reposcout/internal/contract"
	"github.com/huangsam/reposcout/internal/parquet"
	"github.com/huangsam/reposcout/schema"

	"github.com/olekukonko/tablewriter"
	"github.com/olekukonko/tablewriter/tw"
	"golang.org/x/term"
)

// columnBudget sizes the one flexible column of a table from what its fixed columns leave.
type columnBudget struct {
	fixed, min, max int
}

var (
	// Rank, Total, Tier, the five categories and Badges.
	selectionNames = columnBudget{fixed: 110, min: 15, max: 50}
	// Status and Critical.
	changePaths = columnBudget{fixed: 90, min: 35, max: 70}
)

// width returns the column width for the configured or detected terminal width.
// An undetectable terminal counts as 80 columns.
func (b columnBudget) width(cfg *contract.Config) int {
	cols := cfg.Width
	if cols <= 0 {
		cols = 80
		if w, _, err := term.GetSize(int(os.Stdout.Fd())); err == nil && w > 0 {
			cols = w
		}
	}
	return max(b.min, min(cols-b.fixed, b.max))
}

// writeSelectionResults dispatches a ranking based on the output format configured.
func (ow *OutWriter) writeSelectionResults(owner string, sel *schema.SelectionResult, cfg *contract.Config, duration time.Duration) error {
	switch cfg.Output {
	case schema.JSONOut:
		if err := ow.writeWithFile(cfg.OutputFile, func(w io.Writer) error {
			return writeJSON(w, sel)
		}, "Wrote JSON"); err != nil {
			return fmt.Errorf("error writing JSON output: %w", err)
		}
	case schema.CSVOut:
		if err := ow.writeWithFile(cfg.OutputFile, func(w io.Writer) error {
			return writeSelectionCSV(w, sel)
		}, "Wrote CSV"); err != nil {
			return fmt.Errorf("error writing CSV output: %w", err)
		}
	case schema.ParquetOut:
		if err := requireFile(cfg.OutputFile); err != nil {
			return err
		}
		if err := ow.writeWithFile(cfg.OutputFile, func(w io.Writer) error {
			return parquet.WriteRanked(w, *sel)
		}, "Wrote Parquet"); err != nil {
			return fmt.Errorf("error writing Parquet output: %w", err)
		}
	default:
		return ow.writeWithFile(cfg.OutputFile, func(w io.Writer) error {
			return writeSelectionTable(w, owner, sel, cfg, duration)
		}, "Wrote table")
	}
	return nil
}

// tierLabel returns the score tier, colored when enabled.
func tierLabel(score float64, cfg *contract.Config) string {
	if cfg.UseColors {
		return contract.GetColorLabel(score)
	}
	return contract.GetPlainLabel(score)
}

// rankedRow builds one table row.
func rankedRow(pos int, r schema.RankedRepository, cfg *contract.Config, nameWidth int) []string {
	return []string{
		strconv.Itoa(pos),
		contract.TruncateText(r.Metadata.Name, nameWidth),
		fmtFloat(r.Total),
		tierLabel(r.Total, cfg),
		fmtFloat(r.Score.Maturity),
		fmtFloat(r.Score.Activity),
		fmtFloat(r.Score.CodeScale),
		fmtFloat(r.Score.Deployment),
		fmtFloat(r.Score.Impact),
		algo.BadgeLabels(r.Badges),
	}
}

// writeSelectionTable generates and writes the human-readable ranking.
func writeSelectionTable(w io.Writer, owner string, sel *schema.SelectionResult, cfg *contract.Config, duration time.Duration) error {
	nameWidth := selectionNames.width(cfg)

	if _, err := fmt.Fprintf(w, "Top repositories for %s\n", owner); err != nil {
		return err
	}

	table := tablewriter.NewWriter(w)
	table.Header([]string{"Rank", "Repository", "Total", "Tier", "Maturity", "Activity", "Code", "Deploy", "Impact", "Badges"})
	table.Configure(func(c *tablewriter.Config) {
		c.Row.Alignment.Global = tw.AlignRight
	})

	var data [][]string
	for i, r := range sel.Selected {
		data = append(data, rankedRow(i+1, r, cfg, nameWidth))
	}
	if err := table.Bulk(data); err != nil {
		return err
	}
	if err := table.Render(); err != nil {
		return err
	}

	if len(sel.RunnersUp) > 0 {
		if _, err := fmt.Fprintf(w, "Runners-up: %d (next: %s at %s)\n",
			len(sel.RunnersUp), sel.RunnersUp[0].Metadata.Name, fmtFloat(sel.RunnersUp[0].Total)); err != nil {
			return err
		}
	}

	if len(sel.Excluded) > 0 {
		excluded := tablewriter.NewWriter(w)
		excluded.Header([]string{"Excluded", "Reason", "Total"})
		var rows [][]string
		for _, e := range sel.Excluded {
			total := "-"
			if e.Reason == schema.ReasonBelowThreshold {
				total = fmtFloat(e.Total)
			}
			rows = append(rows, []string{contract.TruncateText(e.Metadata.Name, nameWidth), string(e.Reason), total})
		}
		if err := excluded.Bulk(rows); err != nil {
			return err
		}
		if err := excluded.Render(); err != nil {
			return err
		}
	}

	if len(sel.Failures) > 0 {
		if _, err := fmt.Fprintf(w, "Degraded fetches: %d (see JSON output for details)\n", len(sel.Failures)); err != nil {
			return err
		}
	}
	_, err := fmt.Fprintf(w, "Ranked %d of %d repositories in %v with %d workers. Store backend: %s\n",
		len(sel.Selected), len(sel.Selected)+len(sel.RunnersUp)+len(sel.Excluded), duration.Round(time.Millisecond), cfg.Workers, cfg.StoreBackend)
	return err
}

// writeSelectionCSV writes selected repositories, runners-up and exclusions as one CSV.
func writeSelectionCSV(w io.Writer, sel *schema.SelectionResult) error {
	header := []string{
		"rank", "repository", "status", "total", "tier", "maturity", "activity",
		"code_scale", "deployment", "impact", "stars", "pushed_at", "reason", "badges",
	}
	return writeCSVWithHeader(w, header, func(cw *csv.Writer) error {
		write := func(rank string, r schema.RankedRepository, status string) error {
			return cw.Write([]string{
				rank,
				r.Metadata.Name,
				status,
				fmtFloat(r.Total),
				contract.GetPlainLabel(r.Total),
				fmtFloat(r.Score.Maturity),
				fmtFloat(r.Score.Activity),
				fmtFloat(r.Score.CodeScale),
				fmtFloat(r.Score.Deployment),
				fmtFloat(r.Score.Impact),
				strconv.Itoa(r.Metadata.Stars),
				r.Metadata.PushedAt.Format(contract.DateTimeFormat),
				"",
				algo.BadgeLabels(r.Badges),
			})
		}
		for i, r := range sel.Selected {
			if err := write(strconv.Itoa(i+1), r, "selected"); err != nil {
				return err
			}
		}
		for i, r := range sel.RunnersUp {
			if err := write(strconv.Itoa(len(sel.Selected)+i+1), r, "runner-up"); err != nil {
				return err
			}
		}
		for _, e := range sel.Excluded {
			total := ""
			if e.Reason == schema.ReasonBelowThreshold {
				total = fmtFloat(e.Total)
			}
			if err := cw.Write([]string{
				"", e.Metadata.Name, "excluded", total, "", "", "", "", "", "",
				strconv.Itoa(e.Metadata.Stars), e.Metadata.PushedAt.Format(contract.DateTimeFormat),
				string(e.Reason), "",
			}); err != nil {
				return err
			}
		}
		return nil
	})
}
