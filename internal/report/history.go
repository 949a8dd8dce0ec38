package report

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/cptspacemanspiff/battwhy/internal/storage"
)

// WriteHistory lists past runs, newest first, one per line.
func WriteHistory(w io.Writer, runs []storage.Run, loc *time.Location) error {
	if len(runs) == 0 {
		_, err := io.WriteString(w, "No recorded runs.\n")
		return err
	}
	if loc == nil {
		loc = time.Local
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "TIME\tSTATUS\tBATTERY\tPOWER\tCPU\tSEVERITY\tISSUES\tTOP PROCESS")
	for _, r := range runs {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%.1f%%\t%s\t%d\t%s\n",
			time.Unix(r.Timestamp, 0).In(loc).Format("2006-01-02 15:04:05"),
			r.Status,
			optional(r.CapacityPct, "%d%%"),
			optional(r.PowerWatts, "%.2fW"),
			r.OverallCPU,
			r.Severity,
			r.IssueCount,
			topProcess(r),
		)
	}
	return tw.Flush()
}

func optional[T any](v *T, format string) string {
	if v == nil {
		return "-"
	}
	return fmt.Sprintf(format, *v)
}

func topProcess(r storage.Run) string {
	if len(r.TopProcesses) == 0 {
		return "-"
	}
	p := r.TopProcesses[0]
	name := strings.ReplaceAll(p.Name, "\t", " ")
	return fmt.Sprintf("%s (%.1f%%)", name, p.Percent)
}
