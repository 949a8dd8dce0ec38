package collector

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// ReadBacklight reads screen brightness from the first device under
// /sys/class/backlight.
func ReadBacklight() (*BacklightFacts, error) {
	matches, err := filepath.Glob(filepath.Join(sysfsRoot, "class/backlight/*"))
	if err != nil {
		return nil, fmt.Errorf("glob backlight: %w", err)
	}
	if len(matches) == 0 {
		return nil, fmt.Errorf("no backlight found: %w", ErrSourceUnavailable)
	}

	dir := matches[0]
	brightness, err := readIntFile(filepath.Join(dir, "brightness"))
	if err != nil {
		return nil, fmt.Errorf("read brightness: %w", err)
	}
	maxBrightness, err := readIntFile(filepath.Join(dir, "max_brightness"))
	if err != nil {
		return nil, fmt.Errorf("read max_brightness: %w", err)
	}
	if maxBrightness <= 0 {
		return nil, fmt.Errorf("max_brightness %d: %w", maxBrightness, ErrMalformedSource)
	}

	return &BacklightFacts{
		Name:          filepath.Base(dir),
		Brightness:    brightness,
		MaxBrightness: maxBrightness,
		Percent:       float64(brightness) / float64(maxBrightness) * 100,
	}, nil
}

func readIntFile(path string) (int64, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	return strconv.ParseInt(strings.TrimSpace(string(data)), 10, 64)
}
