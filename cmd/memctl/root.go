package main

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"

	"github.com/joshuapare/memkit/internal/logger"
	"github.com/joshuapare/memkit/pkg/mem"
	"github.com/spf13/cobra"
)

var (
	// Global flags
	verbose      bool
	quiet        bool
	jsonOut      bool
	debug        bool
	logDir       string
	noAccounting bool
	noInstrument bool
)

var rootCmd = &cobra.Command{
	Use:   "memctl",
	Short: "Exercise and inspect the memkit allocator backend",
	Long: `memctl drives the memkit allocator backend: it runs allocation workloads,
reports live committed memory and per-operation call counts, verifies that
concurrent workloads leave the accounting balanced, and checks whether the
process can use huge pages.`,
	Version: "0.1.0",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return initLogging()
	},
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose output")
	rootCmd.PersistentFlags().
		BoolVarP(&quiet, "quiet", "q", false, "Suppress all output except errors")
	rootCmd.PersistentFlags().BoolVar(&jsonOut, "json", false, "Output in JSON format")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "Write debug logs")
	rootCmd.PersistentFlags().
		StringVar(&logDir, "log-dir", "", "Directory for debug logs (default stderr)")
	rootCmd.PersistentFlags().
		BoolVar(&noAccounting, "no-accounting", false, "Disable live memory accounting")
	rootCmd.PersistentFlags().
		BoolVar(&noInstrument, "no-instrument", false, "Disable per-operation call counters")
}

func execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func initLogging() error {
	opts := logger.Options{Enabled: debug, Level: slog.LevelDebug, LogDir: logDir}
	if logDir == "" {
		opts.Writer = os.Stderr
	}
	return logger.Init(opts)
}

// newHeap builds a heap from the global capability flags. Accounting heaps
// get a private counter so each command reports only its own workload.
func newHeap() (*mem.Heap, error) {
	opts := mem.Options{
		Accounting:      !noAccounting,
		Instrumentation: !noInstrument,
		PrivateCounter:  !noAccounting,
	}
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	return mem.New(opts), nil
}

// Helper functions for output

// printInfo prints an info message if not in quiet mode
func printInfo(format string, args ...any) {
	if !quiet {
		fmt.Fprint(os.Stdout, printer.Sprintf(format, args...))
	}
}

// printVerbose prints a verbose message if verbose mode is enabled
func printVerbose(format string, args ...any) {
	if verbose && !quiet {
		fmt.Fprint(os.Stdout, printer.Sprintf(format, args...))
	}
}

// printJSON outputs data as JSON
func printJSON(v any) error {
	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	return encoder.Encode(v)
}
