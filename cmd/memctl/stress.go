package main

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/spf13/cobra"
)

var (
	stressWorkers    int
	stressIterations int
	stressMaxSize    uint64
	stressAligned    bool
)

// ErrAccountingDrift is returned when a balanced workload leaves live bytes behind.
var ErrAccountingDrift = errors.New("accounting drift")

func init() {
	cmd := newStressCmd()
	cmd.Flags().IntVarP(&stressWorkers, "workers", "w", 64, "Concurrent goroutines")
	cmd.Flags().IntVarP(&stressIterations, "iterations", "i", 1000, "Alloc/free pairs per goroutine")
	cmd.Flags().Uint64Var(&stressMaxSize, "max-size", 1<<20, "Largest block size in bytes")
	cmd.Flags().BoolVar(&stressAligned, "aligned", false, "Use aligned allocations")
	rootCmd.AddCommand(cmd)
}

func newStressCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "stress",
		Short: "Run concurrent alloc/free pairs and verify the accounting balances",
		Long: `The stress command runs alloc/free pairs from many goroutines at once and
fails if live committed memory is not exactly zero afterwards.

Example:
  memctl stress
  memctl stress -w 256 -i 10000
  memctl stress --aligned --json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStress()
		},
	}
	return cmd
}

// StressReport is the result of a stress run.
type StressReport struct {
	Workers        int               `json:"workers"`
	Iterations     int               `json:"iterations"`
	Pairs          uint64            `json:"pairs"`
	Failed         uint64            `json:"failed"`
	Elapsed        time.Duration     `json:"elapsed_ns"`
	PairsPerSecond float64           `json:"pairs_per_second"`
	PeakCommitted  int64             `json:"peak_committed"`
	FinalCommitted int64             `json:"final_committed"`
	Counters       map[string]uint64 `json:"counters,omitempty"`
}

func runStress() error {
	if stressWorkers <= 0 || stressIterations < 0 {
		return errors.New("--workers must be positive and --iterations non-negative")
	}
	if stressMaxSize == 0 {
		return errors.New("--max-size must be positive")
	}
	if noAccounting {
		return errors.New("stress needs accounting; drop --no-accounting")
	}

	heap, err := newHeap()
	if err != nil {
		return err
	}
	defer heap.FlushCacheAll()

	var pairs, failed atomic.Uint64
	start := time.Now()

	var wg sync.WaitGroup
	for w := range stressWorkers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range stressIterations {
				size := uintptr(1 + (uint64(w)*2654435761+uint64(i)*40503)%stressMaxSize)
				if stressAligned {
					p := heap.AllocAligned(size, 1<<(12+i%5))
					if p == nil {
						failed.Add(1)
						continue
					}
					heap.FreeAligned(p)
				} else {
					p := heap.Alloc(size)
					if p == nil {
						failed.Add(1)
						continue
					}
					heap.Free(p)
				}
				pairs.Add(1)
			}
		}()
	}
	wg.Wait()
	elapsed := time.Since(start)

	report := StressReport{
		Workers:        stressWorkers,
		Iterations:     stressIterations,
		Pairs:          pairs.Load(),
		Failed:         failed.Load(),
		Elapsed:        elapsed,
		PeakCommitted:  heap.PeakCommitted(),
		FinalCommitted: heap.TotalCommitted(),
		Counters:       heap.Counters(),
	}
	if s := elapsed.Seconds(); s > 0 {
		report.PairsPerSecond = float64(report.Pairs) / s
	}

	if jsonOut {
		if err := printJSON(report); err != nil {
			return err
		}
	} else {
		printInfo("\nStress:\n")
		printInfo("  Workers:         %d x %d pairs\n", report.Workers, report.Iterations)
		printInfo("  Completed:       %d pairs (%d failed)\n", report.Pairs, report.Failed)
		printInfo("  Elapsed:         %s (%.0f pairs/s)\n", report.Elapsed.Round(time.Millisecond), report.PairsPerSecond)
		printInfo("  Peak committed:  %s\n", formatBytes(report.PeakCommitted))
		printInfo("  Final committed: %s\n", formatBytes(report.FinalCommitted))
	}

	if report.FinalCommitted != 0 {
		return fmt.Errorf("%w: %d bytes still accounted after balanced workload", ErrAccountingDrift, report.FinalCommitted)
	}
	return nil
}
