package collector

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
)

var (
	procRoot  = "/proc"
	sysfsRoot = "/sys"
)

// globalFieldCount is the number of time buckets on the aggregate cpu line.
const globalFieldCount = 10

// ReadGlobalSnapshot reads the aggregate cpu line from /proc/stat.
func ReadGlobalSnapshot() (GlobalCounterSnapshot, error) {
	path := filepath.Join(procRoot, "stat")
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return GlobalCounterSnapshot{}, fmt.Errorf("%s: %w", path, ErrSourceUnavailable)
		}
		return GlobalCounterSnapshot{}, fmt.Errorf("open %s: %w: %v", path, ErrSourceUnavailable, err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	if !scanner.Scan() {
		if err := scanner.Err(); err != nil {
			return GlobalCounterSnapshot{}, fmt.Errorf("read %s: %w: %v", path, ErrSourceUnavailable, err)
		}
		return GlobalCounterSnapshot{}, fmt.Errorf("%s is empty: %w", path, ErrMalformedSource)
	}
	return parseGlobalLine(scanner.Text())
}

// parseGlobalLine parses "cpu  user nice system idle ...". Missing trailing
// buckets are zero; older kernels report as few as four.
func parseGlobalLine(line string) (GlobalCounterSnapshot, error) {
	fields := strings.Fields(line)
	if len(fields) == 0 || fields[0] != "cpu" {
		return GlobalCounterSnapshot{}, fmt.Errorf("first line %q is not the aggregate cpu line: %w", line, ErrMalformedSource)
	}

	var values [globalFieldCount]uint64
	for i, raw := range fields[1:] {
		if i >= globalFieldCount {
			break
		}
		v, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			return GlobalCounterSnapshot{}, fmt.Errorf("field %d %q: %w", i+1, raw, ErrMalformedSource)
		}
		values[i] = v
	}

	return GlobalCounterSnapshot{
		User:      values[0],
		Nice:      values[1],
		System:    values[2],
		Idle:      values[3],
		IOWait:    values[4],
		IRQ:       values[5],
		SoftIRQ:   values[6],
		Steal:     values[7],
		Guest:     values[8],
		GuestNice: values[9],
	}, nil
}

// ReadProcessTimes returns utime and stime for pid. A missing, unreadable or
// malformed stat file yields zero: the process may have exited since it was
// enumerated.
func ReadProcessTimes(pid int) ProcessTimes {
	data, err := os.ReadFile(filepath.Join(procRoot, strconv.Itoa(pid), "stat"))
	if err != nil {
		return ProcessTimes{}
	}
	t, ok := parseProcStat(data)
	if !ok {
		return ProcessTimes{}
	}
	return t
}

// parseProcStat extracts utime and stime from a /proc/[pid]/stat record.
// comm is in parens and may itself contain spaces and parens, so the fields
// are counted from the last ')'.
func parseProcStat(data []byte) (ProcessTimes, bool) {
	end := bytes.LastIndexByte(data, ')')
	if end < 0 {
		return ProcessTimes{}, false
	}

	// After ')' come state, ppid, pgrp, session, tty_nr, tpgid, flags,
	// minflt, cminflt, majflt, cmajflt, then utime and stime.
	fields := strings.Fields(string(data[end+1:]))
	if len(fields) < 13 {
		return ProcessTimes{}, false
	}

	utime, err := strconv.ParseUint(fields[11], 10, 64)
	if err != nil {
		return ProcessTimes{}, false
	}
	stime, err := strconv.ParseUint(fields[12], 10, 64)
	if err != nil {
		return ProcessTimes{}, false
	}
	return ProcessTimes{UTime: utime, STime: stime}, true
}

// commFromStat returns the text between the first '(' and the last ')'.
func commFromStat(data []byte) (string, bool) {
	start := bytes.IndexByte(data, '(')
	end := bytes.LastIndexByte(data, ')')
	if start < 0 || end < 0 || start >= end {
		return "", false
	}
	return string(data[start+1 : end]), true
}

// ReadProcessName returns the short name of pid from /proc/[pid]/comm,
// falling back to the stat record, then to "PID <pid>".
func ReadProcessName(pid int) string {
	dir := filepath.Join(procRoot, strconv.Itoa(pid))
	if data, err := os.ReadFile(filepath.Join(dir, "comm")); err == nil {
		if name := strings.TrimSpace(string(data)); name != "" {
			return name
		}
	}
	if data, err := os.ReadFile(filepath.Join(dir, "stat")); err == nil {
		if name, ok := commFromStat(data); ok {
			return name
		}
	}
	return fmt.Sprintf("PID %d", pid)
}

// EnumeratePIDs lists the numeric entries of /proc in ascending order.
func EnumeratePIDs() ([]int, error) {
	entries, err := os.ReadDir(procRoot)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", procRoot, err)
	}
	pids := make([]int, 0, len(entries))
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		pid, err := strconv.Atoi(entry.Name())
		if err != nil || pid <= 0 {
			continue
		}
		pids = append(pids, pid)
	}
	sort.Ints(pids)
	return pids, nil
}

// ReadProcessSnapshot reads CPU ticks for every live process. Processes with
// no accumulated time are left out since absence already means zero.
func ReadProcessSnapshot() (ProcessSnapshot, error) {
	pids, err := EnumeratePIDs()
	if err != nil {
		return nil, err
	}
	snap := make(ProcessSnapshot, len(pids))
	for _, pid := range pids {
		t := ReadProcessTimes(pid)
		if t.Total() == 0 {
			continue
		}
		snap[pid] = t
	}
	return snap, nil
}

// ProcReader exposes the procfs readers as a value so samplers can take it
// behind an interface.
type ProcReader struct{}

func (ProcReader) GlobalSnapshot() (GlobalCounterSnapshot, error) { return ReadGlobalSnapshot() }
func (ProcReader) ProcessSnapshot() (ProcessSnapshot, error)      { return ReadProcessSnapshot() }
func (ProcReader) ProcessName(pid int) string                     { return ReadProcessName(pid) }
