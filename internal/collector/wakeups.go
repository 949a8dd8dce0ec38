package collector

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// sleep waits for d or until ctx is done. Tests stub it.
var sleep = func(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

const (
	highWakeupRate     = 5000.0
	moderateWakeupRate = 1000.0
)

// ReadContextSwitches returns the "ctxt" counter from /proc/stat.
func ReadContextSwitches() (uint64, error) {
	path := filepath.Join(procRoot, "stat")
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) >= 2 && fields[0] == "ctxt" {
			return strconv.ParseUint(fields[1], 10, 64)
		}
	}
	if err := scanner.Err(); err != nil {
		return 0, err
	}
	return 0, fmt.Errorf("no ctxt line in %s", path)
}

// ReadInterruptTotal sums the per-CPU counts of every row in /proc/interrupts.
func ReadInterruptTotal() (uint64, error) {
	path := filepath.Join(procRoot, "interrupts")
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	var total uint64
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		// Header row lists CPU0 CPU1 ...; data rows start with "NAME:".
		if len(fields) < 2 || !strings.HasSuffix(fields[0], ":") {
			continue
		}
		for _, raw := range fields[1:] {
			v, err := strconv.ParseUint(raw, 10, 64)
			if err != nil {
				break
			}
			total += v
		}
	}
	if err := scanner.Err(); err != nil {
		return 0, err
	}
	if total == 0 {
		return 0, fmt.Errorf("no interrupt counts in %s", path)
	}
	return total, nil
}

// SampleWakeups measures context switch and interrupt rates over d.
// Either rate is nil when its counter is unreadable or did not advance. The
// only error is ctx ending before d has passed.
func SampleWakeups(ctx context.Context, d time.Duration) (WakeupFacts, error) {
	ctxtStart, ctxtErr := ReadContextSwitches()
	irqStart, irqErr := ReadInterruptTotal()

	if err := sleep(ctx, d); err != nil {
		return WakeupFacts{Level: WakeupUnknown}, fmt.Errorf("wakeup sampling interrupted: %w", err)
	}

	var facts WakeupFacts
	if ctxtErr == nil {
		if end, err := ReadContextSwitches(); err == nil {
			facts.ContextSwitchesPerSec = rate(ctxtStart, end, d)
		}
	}
	if irqErr == nil {
		if end, err := ReadInterruptTotal(); err == nil {
			facts.InterruptsPerSec = rate(irqStart, end, d)
		}
	}
	facts.Level = ClassifyWakeups(facts.ContextSwitchesPerSec)
	return facts, nil
}

// ClassifyWakeups buckets a context switch rate. Interrupts are reported but
// not classified.
func ClassifyWakeups(ctxtPerSec *float64) WakeupLevel {
	switch {
	case ctxtPerSec == nil:
		return WakeupUnknown
	case *ctxtPerSec > highWakeupRate:
		return WakeupHigh
	case *ctxtPerSec > moderateWakeupRate:
		return WakeupModerate
	}
	return WakeupLow
}

func rate(start, end uint64, d time.Duration) *float64 {
	if end <= start || d <= 0 {
		return nil
	}
	return ptr(float64(end-start) / d.Seconds())
}
