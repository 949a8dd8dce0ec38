package collector

import "strconv"

// ReadBatteryHealth reads identity and wear information for the battery
// ReadBattery reports on.
func ReadBatteryHealth() (*BatteryHealth, error) {
	_, props, err := readBatteryUevent()
	if err != nil {
		return nil, err
	}

	h := &BatteryHealth{
		Manufacturer: props["POWER_SUPPLY_MANUFACTURER"],
		Model:        props["POWER_SUPPLY_MODEL_NAME"],
		Technology:   props["POWER_SUPPLY_TECHNOLOGY"],
	}
	// Firmware without cycle tracking reports 0.
	if v, err := strconv.Atoi(props["POWER_SUPPLY_CYCLE_COUNT"]); err == nil && v > 0 {
		h.CycleCount = &v
	}

	// Energy-based batteries report *_FULL in µWh, charge-based ones in µAh;
	// either ratio works.
	for _, prefix := range []string{"POWER_SUPPLY_ENERGY", "POWER_SUPPLY_CHARGE"} {
		full, okFull := propInt(props, prefix+"_FULL")
		design, okDesign := propInt(props, prefix+"_FULL_DESIGN")
		if okFull && okDesign && design > 0 && full > 0 {
			h.HealthPct = ptr(float64(full) / float64(design) * 100)
			break
		}
	}
	return h, nil
}
