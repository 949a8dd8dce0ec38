package diagnosis

import (
	"fmt"
	"math"
	"strings"

	"github.com/cptspacemanspiff/battwhy/internal/collector"
	"github.com/cptspacemanspiff/battwhy/internal/cpuusage"
)

const (
	veryHighPowerWatts = 20.0
	highPowerWatts     = 15.0
	lowPowerWatts      = 5.0

	veryHighCPUPercent = 50.0
	highCPUPercent     = 30.0

	busyProcessPercent     = 10.0
	veryBusyProcessPercent = 20.0

	// manyUSBDevices is tracked as a candidate signal; on its own it does
	// not produce an issue.
	manyUSBDevices = 3

	maxNamedProcesses = 3
)

// Facts is everything the rules look at. Every field may be partially
// unavailable: nil pointers and empty slices are valid.
type Facts struct {
	Battery           collector.BatteryFacts
	OverallCPUPercent float64
	TopProcesses      []cpuusage.ProcessUsage
	Devices           []collector.Device
	Wakeups           *collector.WakeupFacts
}

// Options tunes rule behavior.
type Options struct {
	// SuppressRadiosWhenGPUActive reports only the GPU when a dedicated GPU
	// is active, leaving Wi-Fi and Bluetooth out of the issue list.
	SuppressRadiosWhenGPUActive bool
}

// DefaultOptions returns the standard rule behavior.
func DefaultOptions() Options {
	return Options{SuppressRadiosWhenGPUActive: true}
}

// signals is Facts with the derived partitions the rules share.
type signals struct {
	Facts
	opts          Options
	discharging   bool
	power         *float64
	busyProcesses []cpuusage.ProcessUsage
	wifi          []collector.Device
	gpus          []collector.Device
	usb           []collector.Device
	bluetooth     []collector.Device
}

type rule func(result, *signals) result

// rules run in order; a rule may stop evaluation.
var rules = []rule{
	batteryStatusRule,
	inputSanityRule,
	powerDrawRule,
	cpuLoadRule,
	busyProcessRule,
	deviceRule,
	wakeupRule,
	recommendationRule,
	defaultSeverityRule,
}

// Evaluate runs every rule with DefaultOptions.
func Evaluate(f Facts) Diagnosis {
	return EvaluateWithOptions(f, DefaultOptions())
}

// EvaluateWithOptions folds the rule chain over f. It is deterministic and
// never fails.
func EvaluateWithOptions(f Facts, opts Options) Diagnosis {
	s := derive(f, opts)
	var r result
	for _, apply := range rules {
		r = apply(r, s)
		if r.done {
			break
		}
	}
	return r.diagnosis()
}

func derive(f Facts, opts Options) *signals {
	s := &signals{
		Facts:       f,
		opts:        opts,
		discharging: f.Battery.Status == collector.StatusDischarging,
		power:       f.Battery.PowerWatts,
	}
	if s.power != nil && !validMeasurement(*s.power) {
		s.power = nil
	}
	for _, p := range f.TopProcesses {
		if p.Percent > busyProcessPercent {
			s.busyProcesses = append(s.busyProcesses, p)
		}
	}
	for _, d := range f.Devices {
		switch d.Category {
		case collector.CategoryWiFi:
			s.wifi = append(s.wifi, d)
		case collector.CategoryDedicatedGPU:
			s.gpus = append(s.gpus, d)
		case collector.CategoryUSB:
			s.usb = append(s.usb, d)
		case collector.CategoryBluetooth:
			s.bluetooth = append(s.bluetooth, d)
		}
	}
	return s
}

func validMeasurement(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0) && v >= 0
}

// batteryStatusRule ends evaluation when the battery is not draining.
func batteryStatusRule(r result, s *signals) result {
	if s.discharging {
		return r
	}
	return r.addIssue("Battery is not discharging (charging or full)", SeverityLow).
		raise(SeverityLow).
		stop()
}

// inputSanityRule reports measurements that cannot be trusted instead of
// feeding them to the threshold rules.
func inputSanityRule(r result, s *signals) result {
	if s.Battery.PowerWatts != nil && s.power == nil {
		r = r.addIssue("Power draw reading is invalid and was ignored", SeverityLow)
	}
	if !validMeasurement(s.OverallCPUPercent) {
		r = r.addIssue("Overall CPU usage reading is invalid and was ignored", SeverityLow)
	}
	return r
}

func powerDrawRule(r result, s *signals) result {
	if s.power == nil {
		return r
	}
	w := *s.power
	switch {
	case w > veryHighPowerWatts:
		return r.addIssue(fmt.Sprintf("Very high power draw: ~%.1fW", w), SeverityHigh).raise(SeverityHigh)
	case w > highPowerWatts:
		return r.addIssue(fmt.Sprintf("High power draw: ~%.1fW", w), SeverityMedium).raise(SeverityMedium)
	case w < lowPowerWatts:
		return r.addIssue(fmt.Sprintf("Low power draw: ~%.1fW (good)", w), SeverityLow).setIfUnknown(SeverityLow)
	}
	return r
}

func cpuLoadRule(r result, s *signals) result {
	cpu := s.OverallCPUPercent
	if !validMeasurement(cpu) {
		return r
	}
	switch {
	case cpu > veryHighCPUPercent:
		return r.addIssue(fmt.Sprintf("Very high overall CPU usage: %.1f%%", cpu), SeverityHigh).raise(SeverityHigh)
	case cpu > highCPUPercent:
		return r.addIssue(fmt.Sprintf("High overall CPU usage: %.1f%%", cpu), SeverityMedium).raise(SeverityMedium)
	}
	return r
}

func busyProcessRule(r result, s *signals) result {
	busy := s.busyProcesses
	if len(busy) == 0 {
		return r
	}

	anyVeryBusy := false
	for _, p := range busy {
		if p.Percent > veryBusyProcessPercent {
			anyVeryBusy = true
			break
		}
	}
	sev := SeverityMedium
	if anyVeryBusy {
		sev = SeverityHigh
	}

	if len(busy) == 1 {
		p := busy[0]
		r = r.addIssue(fmt.Sprintf("High CPU usage by process '%s' (%.1f%%)", p.Name, p.Percent), sev)
	} else {
		var names []string
		for _, p := range busy[:min(len(busy), maxNamedProcesses)] {
			names = append(names, p.Name)
		}
		list := "'" + strings.Join(names, "', '") + "'"
		if extra := len(busy) - maxNamedProcesses; extra > 0 {
			list += fmt.Sprintf(" and %d more", extra)
		}
		r = r.addIssue("High CPU usage by processes: "+list, sev)
	}

	if anyVeryBusy {
		return r.raise(SeverityHigh)
	}
	return r.setIfUnknown(SeverityMedium)
}

func deviceRule(r result, s *signals) result {
	gpuActive := len(s.gpus) > 0
	if gpuActive {
		r = r.addIssue("Dedicated GPU is active while on battery", SeverityHigh).raise(SeverityHigh)
		if s.opts.SuppressRadiosWhenGPUActive {
			return r
		}
	}
	if len(s.wifi) == 0 && len(s.bluetooth) == 0 {
		return r
	}

	var parts []string
	if len(s.wifi) > 0 {
		label := "Wi-Fi interface"
		if len(s.wifi) > 1 {
			label += "s"
		}
		parts = append(parts, fmt.Sprintf("%s active (%s)", label, deviceNames(s.wifi)))
	}
	if len(s.bluetooth) > 0 {
		parts = append(parts, fmt.Sprintf("Bluetooth adapter active (%s)", deviceNames(s.bluetooth)))
	}
	if len(s.usb) > manyUSBDevices {
		parts = append(parts, fmt.Sprintf("Many active USB devices (%d)", len(s.usb)))
	}
	return r.addIssue(strings.Join(parts, " and ")+" while on battery", SeverityMedium).raise(SeverityMedium)
}

func deviceNames(devices []collector.Device) string {
	names := make([]string, len(devices))
	for i, d := range devices {
		names[i] = d.Name
	}
	return strings.Join(names, ", ")
}

func wakeupRule(r result, s *signals) result {
	if s.Wakeups == nil || s.Wakeups.Level != collector.WakeupHigh {
		return r
	}
	return r.addIssue("High system wakeup rate (frequent context switches/interrupts)", SeverityMedium).
		setIfUnknown(SeverityMedium)
}

func recommendationRule(r result, s *signals) result {
	elevated := r.severity >= SeverityMedium
	if len(s.busyProcesses) > 0 {
		r = r.recommend(fmt.Sprintf("Consider closing or reducing activity of '%s'", s.busyProcesses[0].Name))
	}
	if len(s.gpus) > 0 {
		r = r.recommend("Consider switching to integrated graphics or using GPU power-saving mode")
	}
	if len(s.wifi) > 0 && elevated {
		r = r.recommend("Consider disabling Wi-Fi if not needed")
	}
	if len(s.bluetooth) > 0 && elevated {
		r = r.recommend("Consider disabling Bluetooth if not needed")
	}
	if s.power != nil && *s.power > highPowerWatts {
		r = r.recommend("Check for background processes and reduce system activity")
	}
	return r
}

func defaultSeverityRule(r result, _ *signals) result {
	return r.setIfUnknown(SeverityLow)
}
