package cpuusage

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/cptspacemanspiff/battwhy/internal/collector"
)

const (
	// DefaultDuration is the sampling window used when none is given.
	DefaultDuration = 2 * time.Second
	// DefaultTopN is how many processes a Result reports by default.
	DefaultTopN = 5
)

// sleep waits for d or until ctx is done. Tests stub it.
var sleep = sleepContext

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Source provides point-in-time counter readings.
type Source interface {
	GlobalSnapshot() (collector.GlobalCounterSnapshot, error)
	ProcessSnapshot() (collector.ProcessSnapshot, error)
	ProcessName(pid int) string
}

// Result is the outcome of one paired measurement.
type Result struct {
	OverallPercent float64
	TopProcesses   []ProcessUsage
	Elapsed        time.Duration
	// Stalled is set when the global counters did not advance, so the zero
	// utilization is a guard value rather than a measurement.
	Stalled bool
}

// Sampler takes two snapshots separated by Duration.
type Sampler struct {
	source   Source
	duration time.Duration
	topN     int
	log      *slog.Logger
}

// NewSampler creates a Sampler. Non-positive values fall back to defaults.
func NewSampler(source Source, duration time.Duration, topN int, logger *slog.Logger) *Sampler {
	if duration <= 0 {
		duration = DefaultDuration
	}
	if topN <= 0 {
		topN = DefaultTopN
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Sampler{source: source, duration: duration, topN: topN, log: logger}
}

// Sample blocks for the configured duration and returns utilization over it.
// An error means the global counters could not be read at all or ctx was
// cancelled during the wait; per-process read failures only shrink the
// process list.
func (s *Sampler) Sample(ctx context.Context) (*Result, error) {
	globalBefore, err := s.source.GlobalSnapshot()
	if err != nil {
		return nil, fmt.Errorf("first snapshot: %w", err)
	}
	procsBefore := s.processSnapshot("first")
	start := time.Now()

	if err := sleep(ctx, s.duration); err != nil {
		return nil, fmt.Errorf("sampling interrupted: %w", err)
	}

	globalAfter, err := s.source.GlobalSnapshot()
	if err != nil {
		return nil, fmt.Errorf("second snapshot: %w", err)
	}
	procsAfter := s.processSnapshot("second")
	elapsed := time.Since(start)

	res := &Result{Elapsed: elapsed}
	totalDelta, ok := TotalTicksDelta(globalBefore, globalAfter)
	if !ok {
		s.log.Debug("global counters did not advance", "before", globalBefore.GrandTotal(), "after", globalAfter.GrandTotal())
		res.Stalled = true
		return res, nil
	}

	res.OverallPercent = OverallPercent(globalBefore, globalAfter)
	all := ProcessPercents(procsBefore, procsAfter, totalDelta, s.source.ProcessName)
	res.TopProcesses = Top(all, s.topN)

	s.log.Debug("sample",
		"overall_pct", fmt.Sprintf("%.1f", res.OverallPercent),
		"total_ticks", totalDelta,
		"procs_before", len(procsBefore),
		"procs_after", len(procsAfter),
		"visible", len(all),
		"elapsed", elapsed)
	return res, nil
}

func (s *Sampler) processSnapshot(which string) collector.ProcessSnapshot {
	snap, err := s.source.ProcessSnapshot()
	if err != nil {
		s.log.Debug("process snapshot failed", "which", which, "err", err)
		return collector.ProcessSnapshot{}
	}
	return snap
}
