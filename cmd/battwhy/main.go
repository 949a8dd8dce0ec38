package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/cptspacemanspiff/battwhy/internal/collector"
	"github.com/cptspacemanspiff/battwhy/internal/config"
	"github.com/cptspacemanspiff/battwhy/internal/cpuusage"
	upower "github.com/cptspacemanspiff/battwhy/internal/dbus"
	"github.com/cptspacemanspiff/battwhy/internal/diagnosis"
	"github.com/cptspacemanspiff/battwhy/internal/report"
	"github.com/cptspacemanspiff/battwhy/internal/storage"
)

const upowerTimeout = 3 * time.Second

// exitInterrupted is the shell convention for a run ended by SIGINT.
const exitInterrupted = 130

// batteryReader is swapped in tests that must not depend on host hardware.
var batteryReader = readBattery

const usageExamples = `
Examples:
  battwhy                    # Quick diagnosis
  battwhy -duration 10       # Longer CPU sampling
  battwhy -top 10            # Show top 10 CPU processes
  battwhy -json              # Output as JSON
  battwhy -history 20        # Show the last 20 recorded runs
`

// secondsFlag accepts "2.5" as well as "2500ms".
type secondsFlag struct{ secs *float64 }

func (f secondsFlag) String() string {
	if f.secs == nil {
		return ""
	}
	return strconv.FormatFloat(*f.secs, 'f', -1, 64)
}

func (f secondsFlag) Set(v string) error {
	secs, err := config.ParseSeconds(v)
	if err != nil {
		return err
	}
	*f.secs = secs
	return nil
}

type options struct {
	configPath string
	envFile    string
	duration   float64
	top        int
	jsonOut    bool
	format     string
	noColor    bool
	history    int
	initConfig bool
	verbose    bool
	logTopics  string
}

func newFlagSet(stderr io.Writer) (*flag.FlagSet, *options) {
	opts := &options{duration: 2.0, top: cpuusage.DefaultTopN}
	fs := flag.NewFlagSet("battwhy", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.Usage = func() {
		fmt.Fprintln(fs.Output(), "Usage: battwhy [flags]\n\nDiagnose laptop battery drain on Linux.\n\nFlags:")
		fs.PrintDefaults()
		fmt.Fprint(fs.Output(), usageExamples)
	}

	fs.StringVar(&opts.configPath, "config", config.DefaultPath(), "path to the TOML config file")
	fs.StringVar(&opts.envFile, "env-file", ".env", "dotenv file with BATTWHY_* overrides")
	fs.Var(secondsFlag{&opts.duration}, "duration", "CPU sampling duration in seconds (default 2)")
	fs.IntVar(&opts.top, "top", opts.top, "number of top CPU processes to show")
	fs.BoolVar(&opts.jsonOut, "json", false, "output results as JSON (same as -format=json)")
	fs.StringVar(&opts.format, "format", config.FormatText, "output format: text, json or yaml")
	fs.BoolVar(&opts.noColor, "no-color", false, "disable colored output")
	fs.IntVar(&opts.history, "history", 0, "print the last N recorded runs and exit")
	fs.BoolVar(&opts.initConfig, "init-config", false, "write the effective configuration to -config and exit")
	fs.BoolVar(&opts.verbose, "verbose", false, "enable all verbose logging (equivalent to -log=all)")
	fs.StringVar(&opts.logTopics, "log", "", "comma-separated log topics: battery,cpu,devices,wakeups,history (or 'all')")
	return fs, opts
}

// resolveConfig layers defaults, the config file, the environment and the
// flags that were set explicitly, in that order.
func resolveConfig(fs *flag.FlagSet, opts *options, lookup func(string) (string, bool)) (*config.Config, error) {
	cfg, err := config.LoadOptional(opts.configPath)
	if err != nil {
		return nil, fmt.Errorf("load config %s: %w", opts.configPath, err)
	}
	if cfg, err = config.ApplyEnv(cfg, lookup); err != nil {
		return nil, err
	}

	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "duration":
			cfg.Sampling.DurationSeconds = opts.duration
		case "top":
			cfg.Sampling.TopProcesses = opts.top
		case "format":
			cfg.Output.Format = opts.format
		case "json":
			if opts.jsonOut {
				cfg.Output.Format = config.FormatJSON
			}
		case "no-color":
			if opts.noColor {
				cfg.Output.Color = config.ColorNever
			}
		}
	})
	return config.NormalizeAndValidate(cfg)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

func run(ctx context.Context, args []string, stdout *os.File, stderr io.Writer) int {
	fs, opts := newFlagSet(stderr)
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}

	logger := newLogger(stderr, opts.verbose, opts.logTopics)

	envVars, err := config.ReadEnvFile(opts.envFile)
	if err != nil {
		logger.Warn("ignoring env file", "err", err)
		envVars = nil
	}
	cfg, err := resolveConfig(fs, opts, config.EnvLookup(envVars))
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}

	if opts.initConfig {
		if err := config.Save(opts.configPath, cfg); err != nil {
			fmt.Fprintf(stderr, "Error: %v\n", err)
			return 1
		}
		fmt.Fprintf(stdout, "Wrote %s\n", opts.configPath)
		return 0
	}

	historyLog := logger.With("topic", "history")
	if opts.history > 0 {
		if err := showHistory(stdout, cfg, opts.history); err != nil {
			fmt.Fprintf(stderr, "Error: %v\n", err)
			return 1
		}
		return 0
	}

	battery, err := batteryReader(ctx, logger.With("topic", "battery"))
	if ctx.Err() != nil {
		fmt.Fprintln(stderr, "Interrupted")
		return exitInterrupted
	}
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}

	r, err := collect(ctx, cfg, battery, logger)
	if err != nil {
		if ctx.Err() != nil {
			fmt.Fprintln(stderr, "Interrupted")
			return exitInterrupted
		}
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	r.Diagnosis = diagnosis.EvaluateWithOptions(diagnosis.Facts{
		Battery:           r.Battery,
		OverallCPUPercent: r.CPU.OverallPercent,
		TopProcesses:      r.CPU.TopProcesses,
		Devices:           r.Devices,
		Wakeups:           r.Wakeups,
	}, diagnosis.Options{
		SuppressRadiosWhenGPUActive: cfg.Diagnosis.SuppressRadiosWhenGPUActive,
	})

	if cfg.History.Enabled {
		if err := recordRun(cfg, r, time.Now(), historyLog); err != nil {
			historyLog.Warn("could not record run", "err", err)
		}
	}

	switch cfg.Output.Format {
	case config.FormatJSON:
		err = report.WriteJSON(stdout, r)
	case config.FormatYAML:
		err = report.WriteYAML(stdout, r)
	default:
		err = report.WriteText(stdout, r, report.ColorEnabled(cfg.Output.Color, stdout))
	}
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}

// readBattery prefers sysfs and falls back to UPower when sysfs has no
// battery or cannot be read.
func readBattery(ctx context.Context, log *slog.Logger) (*collector.BatteryFacts, error) {
	b, err := collector.ReadBattery()
	if err == nil {
		log.Debug("battery", "name", b.Name, "status", b.Status, "source", b.Source)
		return b, nil
	}
	log.Debug("sysfs battery unavailable, trying UPower", "err", err)

	client, uerr := upower.NewUPowerClient()
	if uerr != nil {
		log.Debug("upower unavailable", "err", uerr)
		return nil, err
	}
	ctx, cancel := context.WithTimeout(ctx, upowerTimeout)
	defer cancel()
	b, uerr = client.Battery(ctx)
	if uerr != nil {
		log.Debug("upower battery unavailable", "err", uerr)
		return nil, err
	}
	log.Debug("battery", "name", b.Name, "status", b.Status, "source", b.Source)
	return b, nil
}

// collect runs the CPU sampler, the wakeup sampler and the device scan
// concurrently; the two samplers share one window. It only fails when ctx
// ends before the window has elapsed.
func collect(ctx context.Context, cfg *config.Config, battery *collector.BatteryFacts, logger *slog.Logger) (*report.Report, error) {
	cpuLog := logger.With("topic", "cpu")
	devicesLog := logger.With("topic", "devices")
	wakeupsLog := logger.With("topic", "wakeups")
	batteryLog := logger.With("topic", "battery")
	duration := cfg.Sampling.Duration()

	r := &report.Report{Battery: *battery}
	if host, err := report.ReadHost(); err == nil {
		r.Host = host
	}
	if battery.Source == "sysfs" {
		if h, err := collector.ReadBatteryHealth(); err == nil {
			r.BatteryHealth = h
		} else {
			batteryLog.Debug("battery health unavailable", "err", err)
		}
	}
	if b, err := collector.ReadBacklight(); err == nil {
		r.Backlight = b
	} else {
		batteryLog.Debug("backlight unavailable", "err", err)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		sampler := cpuusage.NewSampler(collector.ProcReader{}, duration, cfg.Sampling.TopProcesses, cpuLog)
		res, err := sampler.Sample(gctx)
		if err != nil {
			if gctx.Err() != nil {
				return err
			}
			logger.Warn("could not sample CPU usage", "err", err)
			r.CPU.Error = err.Error()
			r.CPU.SampleSeconds = duration.Seconds()
			return nil
		}
		r.CPU = report.CPU{
			OverallPercent: res.OverallPercent,
			TopProcesses:   res.TopProcesses,
			SampleSeconds:  res.Elapsed.Seconds(),
			Stalled:        res.Stalled,
		}
		return nil
	})
	g.Go(func() error {
		w, err := collector.SampleWakeups(gctx, duration)
		if err != nil {
			return err
		}
		if w.ContextSwitchesPerSec == nil && w.InterruptsPerSec == nil {
			wakeupsLog.Debug("wakeup counters unavailable")
			return nil
		}
		wakeupsLog.Debug("wakeups", "level", w.Level)
		r.Wakeups = &w
		return nil
	})
	g.Go(func() error {
		r.Devices = collector.ActiveDevices()
		devicesLog.Debug("devices", "active", len(r.Devices))
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return r, nil
}

func openHistory(cfg *config.Config) (*storage.DB, error) {
	if err := os.MkdirAll(filepath.Dir(cfg.History.DBPath), 0o755); err != nil {
		return nil, fmt.Errorf("create history dir: %w", err)
	}
	return storage.Open(cfg.History.DBPath)
}

func recordRun(cfg *config.Config, r *report.Report, now time.Time, log *slog.Logger) error {
	store, err := openHistory(cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	id, err := store.InsertRun(storage.Run{
		Timestamp:    now.Unix(),
		DurationMS:   int64(r.CPU.SampleSeconds * 1000),
		Status:       string(r.Battery.Status),
		CapacityPct:  r.Battery.CapacityPct,
		PowerWatts:   r.Battery.PowerWatts,
		OverallCPU:   r.CPU.OverallPercent,
		Severity:     r.Diagnosis.Severity,
		IssueCount:   len(r.Diagnosis.Issues),
		TopProcesses: r.CPU.TopProcesses,
	})
	if err != nil {
		return err
	}
	log.Debug("run recorded", "id", id, "path", cfg.History.DBPath)

	cutoff := now.AddDate(0, 0, -cfg.History.RetentionDays).Unix()
	deleted, err := store.DeleteOlderThan(cutoff)
	if err != nil {
		return fmt.Errorf("cleanup: %w", err)
	}
	if deleted > 0 {
		log.Debug("cleanup", "deleted_rows", deleted, "retention_days", cfg.History.RetentionDays)
	}
	return nil
}

func showHistory(w io.Writer, cfg *config.Config, n int) error {
	store, err := openHistory(cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	runs, err := store.RecentRuns(n)
	if err != nil {
		return fmt.Errorf("read history: %w", err)
	}
	return report.WriteHistory(w, runs, time.Local)
}
