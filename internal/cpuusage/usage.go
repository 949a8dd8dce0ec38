// Package cpuusage turns two procfs counter snapshots into utilization
// percentages.
package cpuusage

import (
	"sort"

	"github.com/cptspacemanspiff/battwhy/internal/collector"
)

// VisibilityThreshold is the percentage at or below which a process is not
// reported.
const VisibilityThreshold = 0.1

// ProcessUsage is one process's share of all CPU time during the interval.
type ProcessUsage struct {
	PID     int     `json:"pid" yaml:"pid"`
	Name    string  `json:"name" yaml:"name"`
	Percent float64 `json:"cpu_percent" yaml:"cpu_percent"`
}

// TotalTicksDelta returns how far the grand total advanced. ok is false when
// it stalled or went backwards.
func TotalTicksDelta(before, after collector.GlobalCounterSnapshot) (delta uint64, ok bool) {
	b, a := before.GrandTotal(), after.GrandTotal()
	if a <= b {
		return 0, false
	}
	return a - b, true
}

// OverallPercent is the share of non-idle time between two snapshots. A
// stalled or reset counter yields 0.
func OverallPercent(before, after collector.GlobalCounterSnapshot) float64 {
	total, ok := TotalTicksDelta(before, after)
	if !ok {
		return 0
	}
	b, a := before.ActiveTotal(), after.ActiveTotal()
	if a <= b {
		return 0
	}
	pct := 100 * float64(a-b) / float64(total)
	if pct > 100 {
		return 100
	}
	return pct
}

// ReconcilePIDs returns every pid seen in either snapshot: those in before
// first, then pids that only appeared in after, each group ascending.
func ReconcilePIDs(before, after collector.ProcessSnapshot) []int {
	pids := make([]int, 0, len(before)+len(after))
	for pid := range before {
		pids = append(pids, pid)
	}
	sort.Ints(pids)

	var started []int
	for pid := range after {
		if _, ok := before[pid]; !ok {
			started = append(started, pid)
		}
	}
	sort.Ints(started)
	return append(pids, started...)
}

// ProcessPercents computes per-process utilization over the union of both
// snapshots. Processes whose ticks did not advance, or whose share is at or
// below VisibilityThreshold, are dropped. name is only called for reported
// processes. The result is sorted by percentage, descending, stable on ties.
func ProcessPercents(before, after collector.ProcessSnapshot, totalDelta uint64, name func(pid int) string) []ProcessUsage {
	if totalDelta == 0 {
		return nil
	}

	var usage []ProcessUsage
	for _, pid := range ReconcilePIDs(before, after) {
		// A pid missing from either side has accumulated zero ticks there.
		start, end := before[pid].Total(), after[pid].Total()
		if end <= start {
			continue
		}
		pct := 100 * float64(end-start) / float64(totalDelta)
		if pct <= VisibilityThreshold {
			continue
		}
		usage = append(usage, ProcessUsage{PID: pid, Name: name(pid), Percent: pct})
	}

	sort.SliceStable(usage, func(i, j int) bool {
		return usage[i].Percent > usage[j].Percent
	})
	return usage
}

// Top returns at most n entries of an already sorted list.
func Top(usage []ProcessUsage, n int) []ProcessUsage {
	if n >= 0 && len(usage) > n {
		return usage[:n]
	}
	return usage
}
