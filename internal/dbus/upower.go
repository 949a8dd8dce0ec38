// Package dbus reads battery facts from UPower over the system bus. It is the
// fallback when sysfs exposes no battery, e.g. inside containers with only
// the bus socket mounted.
package dbus

import (
	"context"
	"fmt"
	"math"

	godbus "github.com/godbus/dbus/v5"

	"github.com/cptspacemanspiff/battwhy/internal/collector"
)

const (
	upowerName       = "org.freedesktop.UPower"
	displayDevice    = "/org/freedesktop/UPower/devices/DisplayDevice"
	deviceIface      = "org.freedesktop.UPower.Device"
	propertiesGetAll = "org.freedesktop.DBus.Properties.GetAll"
)

// UPower device types and states, from the UPower D-Bus API.
const (
	deviceTypeBattery uint32 = 2

	stateCharging         uint32 = 1
	stateDischarging      uint32 = 2
	stateEmpty            uint32 = 3
	stateFullyCharged     uint32 = 4
	statePendingCharge    uint32 = 5
	statePendingDischarge uint32 = 6
)

// UPowerClient queries the UPower display device.
type UPowerClient struct {
	conn *godbus.Conn
	obj  godbus.BusObject
}

// NewUPowerClient connects to the system bus.
func NewUPowerClient() (*UPowerClient, error) {
	conn, err := godbus.SystemBus()
	if err != nil {
		return nil, fmt.Errorf("connect system bus: %w", err)
	}
	return &UPowerClient{conn: conn, obj: conn.Object(upowerName, displayDevice)}, nil
}

// Battery returns the composite battery UPower presents to desktops. It
// returns collector.ErrNoBattery when UPower knows of no battery.
func (c *UPowerClient) Battery(ctx context.Context) (*collector.BatteryFacts, error) {
	var props map[string]godbus.Variant
	err := c.obj.CallWithContext(ctx, propertiesGetAll, 0, deviceIface).Store(&props)
	if err != nil {
		return nil, fmt.Errorf("upower GetAll: %w", err)
	}
	return factsFromProperties(props)
}

func factsFromProperties(props map[string]godbus.Variant) (*collector.BatteryFacts, error) {
	present, _ := prop[bool](props, "IsPresent")
	if typ, _ := prop[uint32](props, "Type"); !present || typ != deviceTypeBattery {
		return nil, fmt.Errorf("upower display device: %w", collector.ErrNoBattery)
	}

	b := &collector.BatteryFacts{
		Name:   "DisplayDevice",
		Source: "upower",
	}
	if path, ok := prop[string](props, "NativePath"); ok && path != "" {
		b.Name = path
	}

	state, _ := prop[uint32](props, "State")
	b.Status = statusFromState(state)

	if pct, ok := prop[float64](props, "Percentage"); ok && pct >= 0 {
		capacity := int(math.Round(pct))
		b.CapacityPct = &capacity
	}
	if rate, ok := prop[float64](props, "EnergyRate"); ok && rate >= 0 {
		b.PowerWatts = &rate
	}
	if secs, ok := prop[int64](props, "TimeToEmpty"); ok && secs > 0 && b.Status == collector.StatusDischarging {
		hours := float64(secs) / 3600
		b.EstimatedRemainingHours = &hours
	}
	return b, nil
}

func statusFromState(state uint32) collector.BatteryStatus {
	switch state {
	case stateCharging:
		return collector.StatusCharging
	case stateDischarging, stateEmpty, statePendingDischarge:
		return collector.StatusDischarging
	case stateFullyCharged:
		return collector.StatusFull
	case statePendingCharge:
		return collector.StatusNotCharging
	}
	return collector.StatusUnknown
}

func prop[T any](props map[string]godbus.Variant, name string) (T, bool) {
	var zero T
	v, ok := props[name]
	if !ok {
		return zero, false
	}
	t, ok := v.Value().(T)
	return t, ok
}
