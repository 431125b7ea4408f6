package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/joshuapare/memkit/internal/logger"
	"github.com/joshuapare/memkit/pkg/mem"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// Config holds the command line settings.
type Config struct {
	Debug    bool
	Help     bool
	Version  bool
	Interval time.Duration
	Workload WorkloadConfig
}

func defaultConfig() Config {
	return Config{
		Interval: 500 * time.Millisecond,
		Workload: WorkloadConfig{
			Workers: 4,
			Slots:   64,
			MaxSize: 512 << 10,
			Pace:    200 * time.Microsecond,
		},
	}
}

// parseArgs reads flags of the form --name value.
func parseArgs(args []string) (Config, error) {
	cfg := defaultConfig()

	next := func(i int, name string) (string, error) {
		if i+1 >= len(args) {
			return "", fmt.Errorf("%s needs a value", name)
		}
		return args[i+1], nil
	}

	for i := 0; i < len(args); i++ {
		arg := args[i]
		switch arg {
		case "--debug", "-d":
			cfg.Debug = true
		case "--help", "-h":
			cfg.Help = true
		case "--version", "-v":
			cfg.Version = true
		case "--workers", "-w":
			v, err := next(i, arg)
			if err != nil {
				return cfg, err
			}
			n, err := strconv.Atoi(v)
			if err != nil || n <= 0 {
				return cfg, fmt.Errorf("invalid --workers %q", v)
			}
			cfg.Workload.Workers = n
			i++
		case "--max-size":
			v, err := next(i, arg)
			if err != nil {
				return cfg, err
			}
			n, err := strconv.ParseUint(v, 10, 64)
			if err != nil || n == 0 {
				return cfg, fmt.Errorf("invalid --max-size %q", v)
			}
			cfg.Workload.MaxSize = n
			i++
		case "--interval", "-i":
			v, err := next(i, arg)
			if err != nil {
				return cfg, err
			}
			d, err := time.ParseDuration(v)
			if err != nil || d <= 0 {
				return cfg, fmt.Errorf("invalid --interval %q", v)
			}
			cfg.Interval = d
			i++
		default:
			return cfg, errors.New("unknown argument: " + arg)
		}
	}
	return cfg, nil
}

func main() {
	cfg, err := parseArgs(os.Args[1:])
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n\n", err)
		printUsage()
		os.Exit(1)
	}

	if cfg.Help {
		printUsage()
		os.Exit(0)
	}

	if cfg.Version {
		fmt.Printf("memtop %s\n", version)
		fmt.Printf("  commit: %s\n", commit)
		fmt.Printf("  built: %s\n", date)
		os.Exit(0)
	}

	// Initialize logger (must be before any logging calls). The terminal
	// belongs to the TUI, so logs always go to a file.
	if err := logger.Init(logger.Options{
		Enabled: cfg.Debug,
		Level:   slog.LevelDebug,
	}); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: failed to init logging: %v\n", err)
	}

	heap := mem.New(mem.Options{Accounting: true, Instrumentation: true, PrivateCounter: true})
	workload := NewWorkload(heap, cfg.Workload)

	ctx, cancel := context.WithCancel(context.Background())
	workload.Start(ctx)
	logger.Info("starting memtop", "workers", cfg.Workload.Workers, "interval", cfg.Interval)

	p := tea.NewProgram(NewModel(heap, workload, cfg.Interval), tea.WithAltScreen())
	_, runErr := p.Run()

	cancel()
	workload.Stop()
	heap.FlushCacheAll()
	logger.Info("memtop stopped", "committed", heap.TotalCommitted())

	if runErr != nil {
		logger.Error("TUI error", "error", runErr)
		fmt.Fprintf(os.Stderr, "Error running TUI: %v\n", runErr)
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Fprintln(os.Stderr, `Usage: memtop [options]

Runs a background allocation workload against a private memkit heap and
shows live committed memory, cache usage and per-operation call counts.

Options:
  -w, --workers N      Workload goroutines (default 4)
      --max-size N     Largest block size in bytes (default 524288)
  -i, --interval D     Refresh interval (default 500ms)
  -d, --debug          Write debug logs to ~/.memkit/logs
  -v, --version        Print version information
  -h, --help           Show this help`)
}
