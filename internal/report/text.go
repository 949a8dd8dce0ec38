package report

import (
	"fmt"
	"io"
	"strings"

	"github.com/cptspacemanspiff/battwhy/internal/collector"
	"github.com/cptspacemanspiff/battwhy/internal/diagnosis"
)

const (
	reset  = "\033[0m"
	bold   = "\033[1m"
	red    = "\033[31m"
	yellow = "\033[33m"
	green  = "\033[32m"
)

const ruleWidth = 60

// WriteText writes the human-readable report.
func WriteText(w io.Writer, r *Report, color bool) error {
	p := painter(color)
	var lines []string

	lines = append(lines,
		strings.Repeat("=", ruleWidth),
		p(bold, "BATTERY DRAIN DIAGNOSIS"),
		strings.Repeat("=", ruleWidth),
	)
	if r.Host != nil {
		lines = append(lines, fmt.Sprintf("Host: %s (Linux %s, %s)", r.Host.Hostname, r.Host.Kernel, r.Host.Machine))
	}
	lines = append(lines, "")

	lines = append(lines, batteryLines(r.Battery)...)
	if r.BatteryHealth != nil && r.BatteryHealth.HealthPct != nil {
		lines = append(lines, healthLine(*r.BatteryHealth))
	}
	if r.Backlight != nil {
		lines = append(lines, fmt.Sprintf("Screen Brightness: %.0f%%", r.Backlight.Percent))
	}
	lines = append(lines, "")
	lines = append(lines, cpuLines(r.CPU)...)
	lines = append(lines, "")
	lines = append(lines, deviceLines(r.Devices)...)
	lines = append(lines, "")
	if r.Wakeups != nil {
		lines = append(lines, wakeupLine(*r.Wakeups), "")
	}

	lines = append(lines,
		strings.Repeat("-", ruleWidth),
		p(bold, "DIAGNOSIS"),
		strings.Repeat("-", ruleWidth),
		"",
	)
	lines = append(lines, diagnosisLines(r.Diagnosis, p)...)

	_, err := io.WriteString(w, strings.Join(lines, "\n")+"\n")
	return err
}

func painter(enabled bool) func(code, s string) string {
	return func(code, s string) string {
		if !enabled {
			return s
		}
		return code + s + reset
	}
}

func statusLabel(s collector.BatteryStatus) string {
	switch s {
	case collector.StatusCharging:
		return "Charging"
	case collector.StatusDischarging:
		return "Discharging"
	case collector.StatusFull:
		return "Full"
	case collector.StatusNotCharging:
		return "Not charging"
	}
	return "Unknown"
}

func batteryLines(b collector.BatteryFacts) []string {
	status := "Battery Status: " + statusLabel(b.Status)
	if b.CapacityPct != nil {
		status += fmt.Sprintf(" (%d%%)", *b.CapacityPct)
	}
	lines := []string{status}

	if b.PowerWatts != nil {
		switch b.Status {
		case collector.StatusDischarging:
			lines = append(lines, fmt.Sprintf("Current Power Draw: ~%.2fW", *b.PowerWatts))
		case collector.StatusCharging:
			lines = append(lines, fmt.Sprintf("Current Power Input: ~%.2fW", *b.PowerWatts))
		}
	}

	if h := b.EstimatedRemainingHours; h != nil && b.Status == collector.StatusDischarging {
		if *h < 24 {
			lines = append(lines, fmt.Sprintf("Estimated Remaining: ~%.1f hours", *h))
		} else {
			lines = append(lines, fmt.Sprintf("Estimated Remaining: ~%.1f days", *h/24))
		}
	}
	return lines
}

func healthLine(h collector.BatteryHealth) string {
	line := fmt.Sprintf("Battery Health: %.0f%% of design capacity", *h.HealthPct)
	if h.CycleCount != nil {
		line += fmt.Sprintf(" (%d cycles)", *h.CycleCount)
	}
	return line
}

func cpuLines(c CPU) []string {
	lines := []string{fmt.Sprintf("Overall CPU Usage: %.1f%%", c.OverallPercent)}
	if c.Error != "" {
		lines = append(lines, "  (CPU sampling failed: "+c.Error+")")
	} else if c.Stalled {
		lines = append(lines, "  (CPU counters did not advance during the sample)")
	}
	lines = append(lines, "", "Top CPU Processes:")
	if len(c.TopProcesses) == 0 {
		return append(lines, "  (no processes using significant CPU)")
	}
	for i, p := range c.TopProcesses {
		lines = append(lines, fmt.Sprintf("  %d. %s (PID %d) - %.1f%%", i+1, p.Name, p.PID, p.Percent))
	}
	return lines
}

func deviceLines(devices []collector.Device) []string {
	lines := []string{"Active Devices:"}
	if len(devices) == 0 {
		return append(lines, "  (no active power-hungry devices detected)")
	}
	for _, d := range devices {
		line := fmt.Sprintf(" - %s: %s", d.Category.Label(), d.Name)
		if d.Details != "" {
			line += " (" + d.Details + ")"
		}
		lines = append(lines, line)
	}
	return lines
}

func wakeupLine(wf collector.WakeupFacts) string {
	var parts []string
	if wf.ContextSwitchesPerSec != nil {
		parts = append(parts, fmt.Sprintf("Context Switches: %.0f/sec", *wf.ContextSwitchesPerSec))
	}
	if wf.InterruptsPerSec != nil {
		parts = append(parts, fmt.Sprintf("Interrupts: %.0f/sec", *wf.InterruptsPerSec))
	}
	level := wf.Level
	if level == "" {
		level = collector.WakeupUnknown
	}
	parts = append(parts, "Wakeup Level: "+string(level))
	return "Wakeup Info: " + strings.Join(parts, ", ")
}

func severityColor(s diagnosis.Severity) string {
	switch s {
	case diagnosis.SeverityHigh:
		return red
	case diagnosis.SeverityMedium:
		return yellow
	}
	return green
}

func diagnosisLines(d diagnosis.Diagnosis, p func(code, s string) string) []string {
	lines := strings.Split(d.Text(), "\n")
	if len(lines) > 0 {
		lines[0] = p(bold+severityColor(d.Severity), lines[0])
	}
	for i, line := range lines {
		if strings.HasPrefix(line, "[HIGH] ") {
			lines[i] = p(red, "[HIGH]") + strings.TrimPrefix(line, "[HIGH]")
		}
	}
	return lines
}
