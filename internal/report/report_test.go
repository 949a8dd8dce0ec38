package report

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/cptspacemanspiff/battwhy/internal/collector"
	"github.com/cptspacemanspiff/battwhy/internal/cpuusage"
	"github.com/cptspacemanspiff/battwhy/internal/diagnosis"
	"github.com/cptspacemanspiff/battwhy/internal/storage"
)

func float(v float64) *float64 { return &v }
func integer(v int) *int       { return &v }

func sampleReport() *Report {
	cs := 6200.0
	return &Report{
		Battery: collector.BatteryFacts{
			Name:                    "BAT0",
			Source:                  "sysfs",
			Status:                  collector.StatusDischarging,
			CapacityPct:             integer(61),
			PowerWatts:              float(18.0),
			EstimatedRemainingHours: float(2.4),
		},
		BatteryHealth: &collector.BatteryHealth{HealthPct: float(87.4), CycleCount: integer(312)},
		Backlight:     &collector.BacklightFacts{Name: "intel_backlight", Brightness: 60, MaxBrightness: 120, Percent: 50},
		CPU: CPU{
			OverallPercent: 12.0,
			TopProcesses: []cpuusage.ProcessUsage{
				{PID: 42, Name: "firefox", Percent: 8.5},
			},
			SampleSeconds: 2,
		},
		Devices: []collector.Device{
			{Category: collector.CategoryWiFi, Name: "wlan0", Status: "connected", Details: "connected"},
		},
		Wakeups: &collector.WakeupFacts{ContextSwitchesPerSec: &cs, Level: collector.WakeupHigh},
		Diagnosis: diagnosis.Diagnosis{
			Severity:        diagnosis.SeverityMedium,
			Issues:          []diagnosis.Issue{{Text: "High power draw: ~18.0W", Severity: diagnosis.SeverityMedium}},
			Recommendations: []string{"Check for background processes and reduce system activity"},
		},
	}
}

func TestWriteText(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteText(&buf, sampleReport(), false); err != nil {
		t.Fatalf("WriteText() error = %v", err)
	}
	out := buf.String()

	for _, want := range []string{
		"BATTERY DRAIN DIAGNOSIS",
		"Battery Status: Discharging (61%)",
		"Current Power Draw: ~18.00W",
		"Estimated Remaining: ~2.4 hours",
		"Battery Health: 87% of design capacity (312 cycles)",
		"Screen Brightness: 50%",
		"Overall CPU Usage: 12.0%",
		"  1. firefox (PID 42) - 8.5%",
		" - Wi-Fi: wlan0 (connected)",
		"Wakeup Info: Context Switches: 6200/sec, Wakeup Level: high",
		"Battery drain is MODERATE. Some issues detected:",
		"• High power draw: ~18.0W",
		"  - Check for background processes and reduce system activity",
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("WriteText() output missing %q:\n%s", want, out)
		}
	}
	if strings.Contains(out, "\033[") {
		t.Fatalf("WriteText(color=false) emitted escape codes:\n%s", out)
	}
}

func TestWriteText_EmptySections(t *testing.T) {
	r := &Report{
		Battery:   collector.BatteryFacts{Status: collector.StatusCharging, PowerWatts: float(30)},
		Diagnosis: diagnosis.Diagnosis{Severity: diagnosis.SeverityLow},
	}
	var buf bytes.Buffer
	if err := WriteText(&buf, r, false); err != nil {
		t.Fatalf("WriteText() error = %v", err)
	}
	out := buf.String()
	for _, want := range []string{
		"Battery Status: Charging",
		"Current Power Input: ~30.00W",
		"(no processes using significant CPU)",
		"(no active power-hungry devices detected)",
		"No significant battery drain issues detected.",
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("WriteText() output missing %q:\n%s", want, out)
		}
	}
	if strings.Contains(out, "Wakeup Info") {
		t.Fatalf("WriteText() printed wakeups without data:\n%s", out)
	}
}

func TestWriteText_RemainingInDays(t *testing.T) {
	lines := batteryLines(collector.BatteryFacts{
		Status:                  collector.StatusDischarging,
		EstimatedRemainingHours: float(36),
	})
	if got := lines[len(lines)-1]; got != "Estimated Remaining: ~1.5 days" {
		t.Fatalf("batteryLines() last = %q", got)
	}
}

func TestWriteText_Color(t *testing.T) {
	r := sampleReport()
	r.Diagnosis = diagnosis.Diagnosis{
		Severity: diagnosis.SeverityHigh,
		Issues:   []diagnosis.Issue{{Text: "Dedicated GPU is active while on battery", Severity: diagnosis.SeverityHigh}},
	}
	var buf bytes.Buffer
	if err := WriteText(&buf, r, true); err != nil {
		t.Fatalf("WriteText() error = %v", err)
	}
	if !strings.Contains(buf.String(), red+"[HIGH]"+reset+" Dedicated GPU") {
		t.Fatalf("WriteText(color=true) did not color the HIGH marker:\n%q", buf.String())
	}
}

func TestWriteJSON(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteJSON(&buf, sampleReport()); err != nil {
		t.Fatalf("WriteJSON() error = %v", err)
	}

	var got struct {
		Battery map[string]any `json:"battery"`
		CPU     struct {
			OverallPercent float64          `json:"overall_percent"`
			TopProcesses   []map[string]any `json:"top_processes"`
		} `json:"cpu"`
		Devices   []map[string]any `json:"devices"`
		Wakeups   map[string]any   `json:"wakeups"`
		Diagnosis struct {
			Severity string `json:"severity"`
			Issues   []struct {
				Text     string `json:"text"`
				Severity string `json:"severity"`
			} `json:"issues"`
			Recommendations []string `json:"recommendations"`
		} `json:"diagnosis"`
	}
	if err := json.Unmarshal(buf.Bytes(), &got); err != nil {
		t.Fatalf("Unmarshal() error = %v\n%s", err, buf.String())
	}

	if got.Battery["status"] != "discharging" || got.Battery["power_watts"] != 18.0 {
		t.Fatalf("battery = %v", got.Battery)
	}
	if got.CPU.OverallPercent != 12 || len(got.CPU.TopProcesses) != 1 || got.CPU.TopProcesses[0]["cpu_percent"] != 8.5 {
		t.Fatalf("cpu = %+v", got.CPU)
	}
	if len(got.Devices) != 1 || got.Devices[0]["type"] != "wifi" {
		t.Fatalf("devices = %v", got.Devices)
	}
	if got.Wakeups["wakeup_level"] != "high" {
		t.Fatalf("wakeups = %v", got.Wakeups)
	}
	if got.Diagnosis.Severity != "medium" || len(got.Diagnosis.Issues) != 1 || got.Diagnosis.Issues[0].Severity != "medium" {
		t.Fatalf("diagnosis = %+v", got.Diagnosis)
	}
}

func TestWriteJSON_EmptyListsAreArrays(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteJSON(&buf, &Report{}); err != nil {
		t.Fatalf("WriteJSON() error = %v", err)
	}
	out := buf.String()
	for _, want := range []string{`"top_processes": []`, `"devices": []`, `"issues": []`, `"recommendations": []`, `"wakeups": null`} {
		if !strings.Contains(out, want) {
			t.Fatalf("WriteJSON() missing %s:\n%s", want, out)
		}
	}
}

func TestWriteYAML(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteYAML(&buf, sampleReport()); err != nil {
		t.Fatalf("WriteYAML() error = %v", err)
	}

	var got map[string]any
	if err := yaml.Unmarshal(buf.Bytes(), &got); err != nil {
		t.Fatalf("yaml.Unmarshal() error = %v\n%s", err, buf.String())
	}
	diag, ok := got["diagnosis"].(map[string]any)
	if !ok || diag["severity"] != "medium" {
		t.Fatalf("diagnosis = %v", got["diagnosis"])
	}
	cpu, ok := got["cpu"].(map[string]any)
	if !ok || fmt.Sprint(cpu["overall_percent"]) != "12" {
		t.Fatalf("cpu = %v", got["cpu"])
	}
	procs, ok := cpu["top_processes"].([]any)
	if !ok || len(procs) != 1 || procs[0].(map[string]any)["name"] != "firefox" {
		t.Fatalf("top_processes = %v", cpu["top_processes"])
	}
}

func TestWriteHistory(t *testing.T) {
	runs := []storage.Run{
		{
			Timestamp:    0,
			Status:       "discharging",
			CapacityPct:  integer(80),
			PowerWatts:   float(9.5),
			OverallCPU:   23.4,
			Severity:     diagnosis.SeverityMedium,
			IssueCount:   2,
			TopProcesses: []cpuusage.ProcessUsage{{PID: 1, Name: "cc1", Percent: 20.1}},
		},
		{Timestamp: 60, Status: "charging", Severity: diagnosis.SeverityLow, IssueCount: 1},
	}

	var buf bytes.Buffer
	if err := WriteHistory(&buf, runs, time.UTC); err != nil {
		t.Fatalf("WriteHistory() error = %v", err)
	}
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 3 {
		t.Fatalf("WriteHistory() lines = %d, want 3:\n%s", len(lines), buf.String())
	}
	if !strings.HasPrefix(lines[0], "TIME") {
		t.Fatalf("header = %q", lines[0])
	}
	for _, want := range []string{"1970-01-01 00:00:00", "80%", "9.50W", "23.4%", "medium", "cc1 (20.1%)"} {
		if !strings.Contains(lines[1], want) {
			t.Fatalf("row %q missing %q", lines[1], want)
		}
	}
	if fields := strings.Fields(lines[2]); fields[len(fields)-1] != "-" {
		t.Fatalf("row %q, want '-' for missing top process", lines[2])
	}

	buf.Reset()
	if err := WriteHistory(&buf, nil, time.UTC); err != nil || buf.String() != "No recorded runs.\n" {
		t.Fatalf("WriteHistory(nil) = %q, %v", buf.String(), err)
	}
}

func TestColorEnabled(t *testing.T) {
	f, err := os.Create(filepath.Join(t.TempDir(), "out"))
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	defer f.Close()

	if !ColorEnabled("always", f) {
		t.Fatal("ColorEnabled(always) = false")
	}
	if ColorEnabled("never", f) {
		t.Fatal("ColorEnabled(never) = true")
	}
	if ColorEnabled("auto", f) {
		t.Fatal("ColorEnabled(auto) = true for a regular file")
	}
}

func TestReadHost(t *testing.T) {
	h, err := ReadHost()
	if err != nil {
		t.Fatalf("ReadHost() error = %v", err)
	}
	if h.Kernel == "" {
		t.Fatal("ReadHost() Kernel is empty")
	}
}
