package collector

import (
	"os"
	"path/filepath"
	"strings"
)

// maxReportedUSB drops the USB list entirely when it is this noisy.
const maxReportedUSB = 10

// ActiveDevices returns Wi-Fi, dedicated GPU, USB and Bluetooth devices that
// are currently powered. Unreadable attributes are skipped.
func ActiveDevices() []Device {
	var all []Device
	all = append(all, WiFiDevices()...)
	all = append(all, DedicatedGPUs()...)
	if usb := USBDevices(); len(usb) <= maxReportedUSB {
		all = append(all, usb...)
	}
	all = append(all, BluetoothDevices()...)
	return all
}

// WiFiDevices returns wireless interfaces whose operstate is up.
func WiFiDevices() []Device {
	netDir := filepath.Join(sysfsRoot, "class/net")
	entries, err := os.ReadDir(netDir)
	if err != nil {
		return nil
	}

	var devices []Device
	for _, entry := range entries {
		name := entry.Name()
		if isVirtualInterface(name) {
			continue
		}
		dir := filepath.Join(netDir, name)
		if !exists(filepath.Join(dir, "wireless")) && !strings.HasPrefix(name, "wl") {
			continue
		}
		operstate, ok := readTrimmed(filepath.Join(dir, "operstate"))
		if !ok || operstate != "up" {
			continue
		}
		carrier := "disconnected"
		if v, ok := readTrimmed(filepath.Join(dir, "carrier")); ok && v == "1" {
			carrier = "connected"
		}
		devices = append(devices, Device{
			Category: CategoryWiFi,
			Name:     name,
			Status:   "UP",
			Details:  "operstate: " + operstate + ", carrier: " + carrier,
		})
	}
	return devices
}

func isVirtualInterface(name string) bool {
	for _, prefix := range []string{"lo", "docker", "br-", "veth"} {
		if strings.HasPrefix(name, prefix) {
			return true
		}
	}
	return false
}

// DedicatedGPUs returns DRM cards that are powered up. The boot VGA device is
// the integrated GPU on hybrid laptops and is not reported.
func DedicatedGPUs() []Device {
	drmDir := filepath.Join(sysfsRoot, "class/drm")
	entries, err := os.ReadDir(drmDir)
	if err != nil {
		return nil
	}

	var gpus []Device
	for _, entry := range entries {
		name := entry.Name()
		// card0-eDP-1 and friends are connectors, not devices.
		if !strings.HasPrefix(name, "card") || strings.Contains(name, "-") {
			continue
		}
		deviceDir := filepath.Join(drmDir, name, "device")
		if !exists(deviceDir) {
			continue
		}
		if v, ok := readTrimmed(filepath.Join(deviceDir, "boot_vga")); ok && v == "1" {
			continue
		}

		if state, ok := readTrimmed(filepath.Join(deviceDir, "power_state")); ok {
			if strings.HasPrefix(state, "D0") || state == "unknown" {
				details := "power_state: " + state
				vendor, vok := readTrimmed(filepath.Join(deviceDir, "vendor"))
				device, dok := readTrimmed(filepath.Join(deviceDir, "device"))
				if vok && dok && vendor != "" && device != "" {
					details += ", vendor: " + vendor + ", device: " + device
				}
				gpus = append(gpus, Device{
					Category: CategoryDedicatedGPU,
					Name:     name,
					Status:   "active",
					Details:  details,
				})
			}
		}

		// Runtime PM only counts when power_state said nothing.
		if status, ok := readTrimmed(filepath.Join(deviceDir, "power/runtime_status")); ok && status == "active" && len(gpus) == 0 {
			gpus = append(gpus, Device{
				Category: CategoryDedicatedGPU,
				Name:     name,
				Status:   "active",
				Details:  "runtime_status: " + status,
			})
		}
	}
	return gpus
}

// USBDevices returns USB devices that are not runtime suspended.
func USBDevices() []Device {
	usbDir := filepath.Join(sysfsRoot, "bus/usb/devices")
	entries, err := os.ReadDir(usbDir)
	if err != nil {
		return nil
	}

	var devices []Device
	for _, entry := range entries {
		name := entry.Name()
		// usbN are root hubs, "1-1:1.0" style names are interfaces.
		if strings.HasPrefix(name, "usb") || strings.Contains(name, ":") {
			continue
		}
		dir := filepath.Join(usbDir, name)
		powerDir := filepath.Join(dir, "power")
		if !exists(powerDir) {
			continue
		}
		control, haveControl := readTrimmed(filepath.Join(powerDir, "control"))
		runtime, haveRuntime := readTrimmed(filepath.Join(powerDir, "runtime_status"))
		if runtime != "active" && control != "on" {
			continue
		}

		display := name
		if product, ok := readTrimmed(filepath.Join(dir, "product")); ok && product != "" {
			display = product
		}
		if !haveRuntime {
			runtime = "unknown"
		}
		details := "runtime_status: " + runtime
		if haveControl && control != "" {
			details += ", control: " + control
		}
		devices = append(devices, Device{
			Category: CategoryUSB,
			Name:     display,
			Status:   "active",
			Details:  details,
		})
	}
	return devices
}

// BluetoothDevices returns registered HCI adapters and unblocked bluetooth
// rfkill switches.
func BluetoothDevices() []Device {
	var devices []Device

	btDir := filepath.Join(sysfsRoot, "class/bluetooth")
	if entries, err := os.ReadDir(btDir); err == nil {
		for _, entry := range entries {
			info, err := os.Stat(filepath.Join(btDir, entry.Name()))
			if err != nil || !info.IsDir() {
				continue
			}
			devices = append(devices, Device{
				Category: CategoryBluetooth,
				Name:     entry.Name(),
				Status:   "present",
				Details:  "Bluetooth adapter detected",
			})
		}
	}

	rfkillDir := filepath.Join(sysfsRoot, "class/rfkill")
	if entries, err := os.ReadDir(rfkillDir); err == nil {
		for _, entry := range entries {
			dir := filepath.Join(rfkillDir, entry.Name())
			kind, ok := readTrimmed(filepath.Join(dir, "type"))
			if !ok || kind != "bluetooth" {
				continue
			}
			name, nok := readTrimmed(filepath.Join(dir, "name"))
			state, sok := readTrimmed(filepath.Join(dir, "state"))
			// state 1 is unblocked; 0 and 2 are soft and hard blocked.
			if !nok || !sok || state != "1" {
				continue
			}
			devices = append(devices, Device{
				Category: CategoryBluetooth,
				Name:     name,
				Status:   "unblocked",
				Details:  "Bluetooth is not blocked",
			})
		}
	}

	return devices
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
