package collector

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// ReadBattery reads the first battery under /sys/class/power_supply.
func ReadBattery() (*BatteryFacts, error) {
	dir, props, err := readBatteryUevent()
	if err != nil {
		return nil, err
	}

	b := &BatteryFacts{
		Name:   filepath.Base(dir),
		Source: "sysfs",
		Status: ParseBatteryStatus(props["POWER_SUPPLY_STATUS"]),
	}
	if v, ok := propInt(props, "POWER_SUPPLY_CAPACITY"); ok {
		capacity := int(v)
		b.CapacityPct = &capacity
	}

	voltageUV, haveVoltage := propInt(props, "POWER_SUPPLY_VOLTAGE_NOW")
	currentUA, haveCurrent := propInt(props, "POWER_SUPPLY_CURRENT_NOW")
	powerUW, havePower := propInt(props, "POWER_SUPPLY_POWER_NOW")

	// If power_now isn't reported, compute from voltage * current.
	switch {
	case havePower && powerUW != 0:
		b.PowerWatts = ptr(math.Abs(float64(powerUW)) / 1e6)
	case haveVoltage && haveCurrent && currentUA != 0:
		b.PowerWatts = ptr(math.Abs(float64(currentUA)) / 1e6 * float64(voltageUV) / 1e6)
	case havePower:
		b.PowerWatts = ptr(0.0)
	}

	energyWh := -1.0
	if v, ok := propInt(props, "POWER_SUPPLY_ENERGY_NOW"); ok {
		energyWh = float64(v) / 1e6
	} else if v, ok := propInt(props, "POWER_SUPPLY_CHARGE_NOW"); ok && haveVoltage {
		energyWh = float64(v) / 1e6 * float64(voltageUV) / 1e6
	}
	if energyWh >= 0 && b.PowerWatts != nil && *b.PowerWatts > 0 {
		b.EstimatedRemainingHours = ptr(energyWh / *b.PowerWatts)
	}

	// Some firmware reports "Discharging" at full capacity while on AC power.
	// Detect this and correct to "Full".
	if b.Status == StatusDischarging && b.CapacityPct != nil && *b.CapacityPct >= 100 && isACOnline() {
		b.Status = StatusFull
	}

	return b, nil
}

// findBatteryDir returns the first power supply whose type is Battery.
func findBatteryDir() (string, error) {
	matches, err := filepath.Glob(filepath.Join(sysfsRoot, "class/power_supply/*"))
	if err != nil {
		return "", fmt.Errorf("glob power supplies: %w", err)
	}
	for _, m := range matches {
		if t, ok := readTrimmed(filepath.Join(m, "type")); ok && t == "Battery" {
			return m, nil
		}
	}
	return "", ErrNoBattery
}

func readBatteryUevent() (string, map[string]string, error) {
	dir, err := findBatteryDir()
	if err != nil {
		return "", nil, err
	}
	data, err := os.ReadFile(filepath.Join(dir, "uevent"))
	if err != nil {
		return "", nil, fmt.Errorf("read uevent: %w", err)
	}
	return dir, parseUevent(string(data)), nil
}

// ParseBatteryStatus maps the kernel's POWER_SUPPLY_STATUS strings.
func ParseBatteryStatus(s string) BatteryStatus {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "charging":
		return StatusCharging
	case "discharging":
		return StatusDischarging
	case "full":
		return StatusFull
	case "not charging":
		return StatusNotCharging
	}
	return StatusUnknown
}

// isACOnline checks if any AC adapter is online.
func isACOnline() bool {
	matches, err := filepath.Glob(filepath.Join(sysfsRoot, "class/power_supply/AC*/online"))
	if err != nil {
		return false
	}
	for _, path := range matches {
		if v, ok := readTrimmed(path); ok && v == "1" {
			return true
		}
	}
	return false
}

func parseUevent(data string) map[string]string {
	props := make(map[string]string)
	for _, line := range strings.Split(data, "\n") {
		if k, v, ok := strings.Cut(line, "="); ok {
			props[k] = v
		}
	}
	return props
}

func propInt(props map[string]string, key string) (int64, bool) {
	raw, ok := props[key]
	if !ok {
		return 0, false
	}
	v, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

// readTrimmed reads a single-value sysfs attribute.
func readTrimmed(path string) (string, bool) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", false
	}
	return strings.TrimSpace(string(data)), true
}

func ptr[T any](v T) *T {
	return &v
}
