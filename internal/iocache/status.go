package iocache

import (
	"fmt"
	"io"
	"slices"

	"github.com/dustin/go-humanize"
	"github.com/huangsam/reposcout/schema"
)

// PrintStoreStatus prints snapshot store status information.
func PrintStoreStatus(w io.Writer, status schema.StoreStatus) {
	_, _ = fmt.Fprintf(w, "Store Backend: %s\n", status.Backend)
	_, _ = fmt.Fprintf(w, "Connected: %t\n", status.Connected)
	if !status.Connected {
		return
	}
	_, _ = fmt.Fprintf(w, "Total Snapshots: %d\n", status.TotalSnapshots)
	_, _ = fmt.Fprintf(w, "Total Fingerprints: %d\n", status.TotalFingerprints)
	if status.TotalSnapshots > 0 {
		_, _ = fmt.Fprintf(w, "Newest Snapshot: %s (%s)\n", status.NewestSnapshot.Format("2006-01-02 15:04:05"), humanize.Time(status.NewestSnapshot))
		_, _ = fmt.Fprintf(w, "Oldest Snapshot: %s (%s)\n", status.OldestSnapshot.Format("2006-01-02 15:04:05"), humanize.Time(status.OldestSnapshot))
	}
	_, _ = fmt.Fprintf(w, "Approximate Size: %s\n", humanize.Bytes(uint64(max(status.SizeBytes, 0))))
	if len(status.TableSizes) == 0 {
		return
	}
	_, _ = fmt.Fprintln(w, "Table Sizes:")
	tables := make([]string, 0, len(status.TableSizes))
	for table := range status.TableSizes {
		tables = append(tables, table)
	}
	slices.Sort(tables)
	for _, table := range tables {
		_, _ = fmt.Fprintf(w, "  %s: %d rows\n", table, status.TableSizes[table])
	}
}
