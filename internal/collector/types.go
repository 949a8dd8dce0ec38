package collector

// GlobalCounterSnapshot holds the aggregate "cpu" line of /proc/stat in
// clock ticks since boot.
type GlobalCounterSnapshot struct {
	User      uint64 `json:"user"`
	Nice      uint64 `json:"nice"`
	System    uint64 `json:"system"`
	Idle      uint64 `json:"idle"`
	IOWait    uint64 `json:"iowait"`
	IRQ       uint64 `json:"irq"`
	SoftIRQ   uint64 `json:"softirq"`
	Steal     uint64 `json:"steal"`
	Guest     uint64 `json:"guest"`
	GuestNice uint64 `json:"guest_nice"`
}

// IdleTotal is idle plus iowait.
func (s GlobalCounterSnapshot) IdleTotal() uint64 {
	return s.Idle + s.IOWait
}

// ActiveTotal is the sum of every non-idle bucket.
func (s GlobalCounterSnapshot) ActiveTotal() uint64 {
	return s.User + s.Nice + s.System + s.IRQ + s.SoftIRQ + s.Steal + s.Guest + s.GuestNice
}

// GrandTotal is IdleTotal plus ActiveTotal.
func (s GlobalCounterSnapshot) GrandTotal() uint64 {
	return s.IdleTotal() + s.ActiveTotal()
}

// ProcessTimes is the user and kernel tick count of one process.
type ProcessTimes struct {
	UTime uint64
	STime uint64
}

// Total returns utime + stime.
func (t ProcessTimes) Total() uint64 {
	return t.UTime + t.STime
}

// ProcessSnapshot maps pid to accumulated CPU ticks at one point in time.
// A pid missing from the map has accumulated zero ticks.
type ProcessSnapshot map[int]ProcessTimes

// BatteryStatus is the normalized charge state of a battery.
type BatteryStatus string

const (
	StatusCharging    BatteryStatus = "charging"
	StatusDischarging BatteryStatus = "discharging"
	StatusFull        BatteryStatus = "full"
	StatusNotCharging BatteryStatus = "not-charging"
	StatusUnknown     BatteryStatus = "unknown"
)

// BatteryFacts is what the diagnosis needs to know about the battery.
type BatteryFacts struct {
	Name                    string        `json:"name" yaml:"name"`
	Source                  string        `json:"source" yaml:"source"` // "sysfs" or "upower"
	Status                  BatteryStatus `json:"status" yaml:"status"`
	CapacityPct             *int          `json:"capacity_pct,omitempty" yaml:"capacity_pct,omitempty"`
	PowerWatts              *float64      `json:"power_watts,omitempty" yaml:"power_watts,omitempty"`
	EstimatedRemainingHours *float64      `json:"estimated_remaining_hours,omitempty" yaml:"estimated_remaining_hours,omitempty"`
}

// BatteryHealth is identity and wear information for the battery.
type BatteryHealth struct {
	Manufacturer string   `json:"manufacturer,omitempty" yaml:"manufacturer,omitempty"`
	Model        string   `json:"model,omitempty" yaml:"model,omitempty"`
	Technology   string   `json:"technology,omitempty" yaml:"technology,omitempty"`
	CycleCount   *int     `json:"cycle_count,omitempty" yaml:"cycle_count,omitempty"`
	HealthPct    *float64 `json:"health_pct,omitempty" yaml:"health_pct,omitempty"` // full capacity relative to design
}

// BacklightFacts is the current screen brightness.
type BacklightFacts struct {
	Name          string  `json:"name" yaml:"name"`
	Brightness    int64   `json:"brightness" yaml:"brightness"`
	MaxBrightness int64   `json:"max_brightness" yaml:"max_brightness"`
	Percent       float64 `json:"percent" yaml:"percent"`
}

// DeviceCategory groups active devices for the diagnosis rules.
type DeviceCategory string

const (
	CategoryWiFi         DeviceCategory = "wifi"
	CategoryDedicatedGPU DeviceCategory = "dedicated-gpu"
	CategoryUSB          DeviceCategory = "usb"
	CategoryBluetooth    DeviceCategory = "bluetooth"
)

// Label returns the human-readable category name.
func (c DeviceCategory) Label() string {
	switch c {
	case CategoryWiFi:
		return "Wi-Fi"
	case CategoryDedicatedGPU:
		return "Dedicated GPU"
	case CategoryUSB:
		return "USB"
	case CategoryBluetooth:
		return "Bluetooth"
	}
	return string(c)
}

// Device is one active, potentially power-hungry device.
type Device struct {
	Category DeviceCategory `json:"type" yaml:"type"`
	Name     string         `json:"name" yaml:"name"`
	Status   string         `json:"status" yaml:"status"`
	Details  string         `json:"details,omitempty" yaml:"details,omitempty"`
}

// WakeupLevel classifies the context switch rate.
type WakeupLevel string

const (
	WakeupLow      WakeupLevel = "low"
	WakeupModerate WakeupLevel = "moderate"
	WakeupHigh     WakeupLevel = "high"
	WakeupUnknown  WakeupLevel = "unknown"
)

// WakeupFacts holds system wakeup rates over a sampling window.
type WakeupFacts struct {
	ContextSwitchesPerSec *float64    `json:"context_switches_per_sec" yaml:"context_switches_per_sec"`
	InterruptsPerSec      *float64    `json:"interrupts_per_sec" yaml:"interrupts_per_sec"`
	Level                 WakeupLevel `json:"wakeup_level" yaml:"wakeup_level"`
}
