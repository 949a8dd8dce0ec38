package config

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

const (
	minDurationSeconds = 0.1
	maxDurationSeconds = 600
	minTopProcesses    = 1
	maxTopProcesses    = 500
	minRetentionDays   = 1
	maxRetentionDays   = 3650
)

const (
	FormatText = "text"
	FormatJSON = "json"
	FormatYAML = "yaml"

	ColorAuto   = "auto"
	ColorAlways = "always"
	ColorNever  = "never"
)

// Environment variables that override the config file.
const (
	EnvDuration  = "BATTWHY_DURATION"
	EnvTop       = "BATTWHY_TOP"
	EnvFormat    = "BATTWHY_FORMAT"
	EnvHistoryDB = "BATTWHY_HISTORY_DB"
)

type Config struct {
	Sampling  SamplingConfig  `toml:"sampling"`
	Output    OutputConfig    `toml:"output"`
	History   HistoryConfig   `toml:"history"`
	Diagnosis DiagnosisConfig `toml:"diagnosis"`
}

type SamplingConfig struct {
	DurationSeconds float64 `toml:"duration_seconds"`
	TopProcesses    int     `toml:"top_processes"`
}

// Duration returns the sampling window.
func (s SamplingConfig) Duration() time.Duration {
	return time.Duration(s.DurationSeconds * float64(time.Second))
}

type OutputConfig struct {
	Format string `toml:"format"`
	Color  string `toml:"color"`
}

type HistoryConfig struct {
	Enabled       bool   `toml:"enabled"`
	DBPath        string `toml:"db_path"`
	RetentionDays int    `toml:"retention_days"`
}

type DiagnosisConfig struct {
	SuppressRadiosWhenGPUActive bool `toml:"suppress_radios_when_gpu_active"`
}

func DefaultConfig() *Config {
	return &Config{
		Sampling: SamplingConfig{
			DurationSeconds: 2.0,
			TopProcesses:    5,
		},
		Output: OutputConfig{
			Format: FormatText,
			Color:  ColorAuto,
		},
		History: HistoryConfig{
			Enabled:       false,
			DBPath:        filepath.Join(dataDir(), "battwhy", "history.db"),
			RetentionDays: 30,
		},
		Diagnosis: DiagnosisConfig{
			SuppressRadiosWhenGPUActive: true,
		},
	}
}

// DefaultPath is $XDG_CONFIG_HOME/battwhy/config.toml, falling back to
// ~/.config.
func DefaultPath() string {
	if dir := os.Getenv("XDG_CONFIG_HOME"); filepath.IsAbs(dir) {
		return filepath.Join(dir, "battwhy", "config.toml")
	}
	return filepath.Join(homeDir(), ".config", "battwhy", "config.toml")
}

func dataDir() string {
	if dir := os.Getenv("XDG_DATA_HOME"); filepath.IsAbs(dir) {
		return dir
	}
	return filepath.Join(homeDir(), ".local", "share")
}

func homeDir() string {
	if home, err := os.UserHomeDir(); err == nil && filepath.IsAbs(home) {
		return home
	}
	return os.TempDir()
}

func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}

	return NormalizeAndValidate(cfg)
}

// LoadOptional is Load, except that a missing file yields the defaults.
func LoadOptional(path string) (*Config, error) {
	cfg, err := Load(path)
	if errors.Is(err, fs.ErrNotExist) {
		return NormalizeAndValidate(DefaultConfig())
	}
	return cfg, err
}

func NormalizeAndValidate(cfg *Config) (*Config, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config must not be nil")
	}

	sanitized := *cfg

	var err error
	sanitized.History.DBPath, err = sanitizePath("history.db_path", sanitized.History.DBPath)
	if err != nil {
		return nil, err
	}

	if err := validateFloatRange("sampling.duration_seconds", sanitized.Sampling.DurationSeconds, minDurationSeconds, maxDurationSeconds); err != nil {
		return nil, err
	}
	if err := validateRange("sampling.top_processes", sanitized.Sampling.TopProcesses, minTopProcesses, maxTopProcesses); err != nil {
		return nil, err
	}
	if err := validateRange("history.retention_days", sanitized.History.RetentionDays, minRetentionDays, maxRetentionDays); err != nil {
		return nil, err
	}

	sanitized.Output.Format, err = oneOf("output.format", sanitized.Output.Format, FormatText, FormatJSON, FormatYAML)
	if err != nil {
		return nil, err
	}
	sanitized.Output.Color, err = oneOf("output.color", sanitized.Output.Color, ColorAuto, ColorAlways, ColorNever)
	if err != nil {
		return nil, err
	}

	return &sanitized, nil
}

// ReadEnvFile reads KEY=VALUE pairs from a dotenv file. A missing file is
// not an error.
func ReadEnvFile(path string) (map[string]string, error) {
	vars, err := godotenv.Read(path)
	if errors.Is(err, fs.ErrNotExist) {
		return map[string]string{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read env file %s: %w", path, err)
	}
	return vars, nil
}

// EnvLookup resolves a variable from the process environment first, then
// from fileVars.
func EnvLookup(fileVars map[string]string) func(string) (string, bool) {
	return func(key string) (string, bool) {
		if v, ok := os.LookupEnv(key); ok {
			return v, true
		}
		v, ok := fileVars[key]
		return v, ok
	}
}

// ApplyEnv overlays the BATTWHY_* variables found by lookup onto cfg and
// revalidates the result.
func ApplyEnv(cfg *Config, lookup func(string) (string, bool)) (*Config, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config must not be nil")
	}
	out := *cfg

	if v, ok := lookup(EnvDuration); ok && strings.TrimSpace(v) != "" {
		secs, err := ParseSeconds(v)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", EnvDuration, err)
		}
		out.Sampling.DurationSeconds = secs
	}
	if v, ok := lookup(EnvTop); ok && strings.TrimSpace(v) != "" {
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return nil, fmt.Errorf("%s: invalid integer %q", EnvTop, v)
		}
		out.Sampling.TopProcesses = n
	}
	if v, ok := lookup(EnvFormat); ok && strings.TrimSpace(v) != "" {
		out.Output.Format = v
	}
	if v, ok := lookup(EnvHistoryDB); ok && strings.TrimSpace(v) != "" {
		out.History.DBPath = v
		out.History.Enabled = true
	}

	return NormalizeAndValidate(&out)
}

// ParseSeconds accepts a Go duration ("1500ms") or a bare number of seconds.
func ParseSeconds(value string) (float64, error) {
	value = strings.TrimSpace(value)
	if d, err := time.ParseDuration(value); err == nil {
		return d.Seconds(), nil
	}
	secs, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid duration %q", value)
	}
	return secs, nil
}

func Save(path string, cfg *Config) error {
	trimmedPath := strings.TrimSpace(path)
	if trimmedPath == "" {
		return fmt.Errorf("config path must not be empty")
	}

	sanitized, err := NormalizeAndValidate(cfg)
	if err != nil {
		return err
	}

	var data bytes.Buffer
	if err := toml.NewEncoder(&data).Encode(sanitized); err != nil {
		return fmt.Errorf("encode config TOML: %w", err)
	}

	dir := filepath.Dir(trimmedPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}

	tmpFile, err := os.CreateTemp(dir, ".config-*.toml")
	if err != nil {
		return fmt.Errorf("create temp config file: %w", err)
	}
	tmpPath := tmpFile.Name()
	defer func() {
		if tmpPath != "" {
			_ = os.Remove(tmpPath)
		}
	}()

	if _, err := tmpFile.Write(data.Bytes()); err != nil {
		_ = tmpFile.Close()
		return fmt.Errorf("write temp config file: %w", err)
	}
	if err := tmpFile.Chmod(0o644); err != nil {
		_ = tmpFile.Close()
		return fmt.Errorf("chmod temp config file: %w", err)
	}
	if err := tmpFile.Close(); err != nil {
		return fmt.Errorf("close temp config file: %w", err)
	}
	if err := os.Rename(tmpPath, trimmedPath); err != nil {
		return fmt.Errorf("replace config file: %w", err)
	}
	tmpPath = ""

	return nil
}

func sanitizePath(name, value string) (string, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return "", fmt.Errorf("%s must not be empty", name)
	}
	cleaned := filepath.Clean(trimmed)
	if !filepath.IsAbs(cleaned) {
		return "", fmt.Errorf("%s must be an absolute path, got %q", name, value)
	}
	return cleaned, nil
}

func validateRange(name string, value, min, max int) error {
	if value < min || value > max {
		return fmt.Errorf("%s must be between %d and %d, got %d", name, min, max, value)
	}

	return nil
}

func validateFloatRange(name string, value, min, max float64) error {
	if math.IsNaN(value) || value < min || value > max {
		return fmt.Errorf("%s must be between %g and %g, got %g", name, min, max, value)
	}

	return nil
}

func oneOf(name, value string, allowed ...string) (string, error) {
	v := strings.ToLower(strings.TrimSpace(value))
	for _, a := range allowed {
		if v == a {
			return v, nil
		}
	}
	return "", fmt.Errorf("%s must be one of %s, got %q", name, strings.Join(allowed, ", "), value)
}
