// Package report renders a diagnosis run for people (text) and for tools
// (JSON, YAML).
package report

import (
	"os"
	"strings"

	"golang.org/x/sys/unix"
	"golang.org/x/term"

	"github.com/cptspacemanspiff/battwhy/internal/collector"
	"github.com/cptspacemanspiff/battwhy/internal/cpuusage"
	"github.com/cptspacemanspiff/battwhy/internal/diagnosis"
)

// Report is everything one run collected and concluded.
type Report struct {
	Host          *Host                     `json:"host,omitempty" yaml:"host,omitempty"`
	Battery       collector.BatteryFacts    `json:"battery" yaml:"battery"`
	BatteryHealth *collector.BatteryHealth  `json:"battery_health,omitempty" yaml:"battery_health,omitempty"`
	Backlight     *collector.BacklightFacts `json:"backlight,omitempty" yaml:"backlight,omitempty"`
	CPU           CPU                       `json:"cpu" yaml:"cpu"`
	Devices       []collector.Device        `json:"devices" yaml:"devices"`
	Wakeups       *collector.WakeupFacts    `json:"wakeups" yaml:"wakeups"`
	Diagnosis     diagnosis.Diagnosis       `json:"diagnosis" yaml:"diagnosis"`
}

// CPU is the sampled CPU section.
type CPU struct {
	OverallPercent float64                 `json:"overall_percent" yaml:"overall_percent"`
	TopProcesses   []cpuusage.ProcessUsage `json:"top_processes" yaml:"top_processes"`
	SampleSeconds  float64                 `json:"sample_seconds" yaml:"sample_seconds"`
	Stalled        bool                    `json:"stalled,omitempty" yaml:"stalled,omitempty"`
	Error          string                  `json:"error,omitempty" yaml:"error,omitempty"`
}

// Host identifies the machine the report was taken on.
type Host struct {
	Hostname string `json:"hostname" yaml:"hostname"`
	Kernel   string `json:"kernel" yaml:"kernel"`
	Machine  string `json:"machine" yaml:"machine"`
}

// ReadHost returns the uname fields of the running kernel.
func ReadHost() (*Host, error) {
	var u unix.Utsname
	if err := unix.Uname(&u); err != nil {
		return nil, err
	}
	return &Host{
		Hostname: unix.ByteSliceToString(u.Nodename[:]),
		Kernel:   unix.ByteSliceToString(u.Release[:]),
		Machine:  unix.ByteSliceToString(u.Machine[:]),
	}, nil
}

// ColorEnabled resolves an auto/always/never color mode for f. Auto honors
// NO_COLOR and TERM=dumb and requires f to be a terminal.
func ColorEnabled(mode string, f *os.File) bool {
	switch strings.ToLower(mode) {
	case "always":
		return true
	case "never":
		return false
	}
	if os.Getenv("NO_COLOR") != "" || os.Getenv("TERM") == "dumb" {
		return false
	}
	return term.IsTerminal(int(f.Fd()))
}
