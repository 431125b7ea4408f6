package main

import (
	"errors"
	"fmt"
	"math/rand/v2"
	"unsafe"

	"github.com/joshuapare/memkit/pkg/mem"
	"github.com/spf13/cobra"
)

var (
	statsCount     int
	statsMinSize   uint64
	statsMaxSize   uint64
	statsFreeRatio float64
	statsFlush     bool
	statsHuge      bool
	statsSeed      uint64
)

func init() {
	cmd := newStatsCmd()
	cmd.Flags().IntVarP(&statsCount, "count", "n", 64, "Number of blocks to allocate")
	cmd.Flags().Uint64Var(&statsMinSize, "min-size", 1, "Smallest block size in bytes")
	cmd.Flags().Uint64Var(&statsMaxSize, "max-size", 256<<10, "Largest block size in bytes")
	cmd.Flags().Float64Var(&statsFreeRatio, "free", 0.5, "Fraction of blocks to free before reporting")
	cmd.Flags().BoolVar(&statsFlush, "flush", false, "Flush allocator caches before reporting")
	cmd.Flags().BoolVar(&statsHuge, "huge", false, "Try to enable huge pages first")
	cmd.Flags().Uint64Var(&statsSeed, "seed", 1, "Seed for block sizes")
	rootCmd.AddCommand(cmd)
}

func newStatsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Run an allocation workload and report accounting",
		Long: `The stats command allocates a set of blocks with pseudo-random sizes,
frees part of them, and reports live committed memory, peak usage, cached
bytes and per-operation call counts.

Example:
  memctl stats
  memctl stats -n 1000 --max-size 4194304 --free 0.9 --flush
  memctl stats --huge --json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStats()
		},
	}
	return cmd
}

// StatsReport is the result of a stats run.
type StatsReport struct {
	Capabilities   string            `json:"capabilities"`
	Allocated      int               `json:"allocated"`
	Failed         int               `json:"failed"`
	Freed          int               `json:"freed"`
	RequestedBytes uint64            `json:"requested_bytes"`
	UsableBytes    uint64            `json:"usable_bytes"`
	TotalCommitted int64             `json:"total_committed"`
	TotalReserved  int64             `json:"total_reserved"`
	PeakCommitted  int64             `json:"peak_committed"`
	CachedBytes    uint64            `json:"cached_bytes"`
	HugePages      bool              `json:"huge_pages"`
	Privilege      string            `json:"privilege"`
	Counters       map[string]uint64 `json:"counters,omitempty"`
}

func validateStatsFlags() error {
	if statsCount < 0 {
		return errors.New("--count must not be negative")
	}
	if statsMinSize > statsMaxSize {
		return fmt.Errorf("--min-size (%d) exceeds --max-size (%d)", statsMinSize, statsMaxSize)
	}
	if statsFreeRatio < 0 || statsFreeRatio > 1 {
		return fmt.Errorf("--free must be between 0 and 1, got %g", statsFreeRatio)
	}
	return nil
}

func runStats() error {
	if err := validateStatsFlags(); err != nil {
		return err
	}

	heap, err := newHeap()
	if err != nil {
		return err
	}
	defer heap.FlushCacheAll()

	report := StatsReport{Capabilities: capabilityName()}
	if statsHuge {
		heap.EnableHugePages()
	}

	rng := rand.New(rand.NewPCG(statsSeed, statsSeed^0x9e3779b97f4a7c15))
	ptrs := make([]unsafe.Pointer, 0, statsCount)
	for range statsCount {
		size := statsMinSize
		if statsMaxSize > statsMinSize {
			size += rng.Uint64N(statsMaxSize - statsMinSize + 1)
		}
		p := heap.Alloc(uintptr(size))
		if p == nil {
			report.Failed++
			printVerbose("allocation of %d bytes failed\n", size)
			continue
		}
		// Touch the block so the OS backs at least its first page.
		*(*byte)(p) = 1
		report.RequestedBytes += size
		report.UsableBytes += uint64(heap.Size(p))
		ptrs = append(ptrs, p)
	}
	report.Allocated = len(ptrs)

	toFree := int(float64(len(ptrs)) * statsFreeRatio)
	for _, p := range ptrs[:toFree] {
		heap.Free(p)
	}
	report.Freed = toFree
	live := ptrs[toFree:]

	if statsFlush {
		heap.FlushCacheAll()
	}

	report.TotalCommitted = heap.TotalCommitted()
	report.TotalReserved = heap.TotalReserved()
	report.PeakCommitted = heap.PeakCommitted()
	report.CachedBytes = heap.CachedBytes()
	report.HugePages = heap.HugePages()
	report.Privilege = mem.PrivilegeState()
	report.Counters = heap.Counters()

	for _, p := range live {
		heap.Free(p)
	}

	if jsonOut {
		return printJSON(report)
	}
	printStatsReport(report)
	return nil
}

func capabilityName() string {
	switch {
	case noAccounting && noInstrument:
		return "none"
	case noAccounting:
		return "instrumentation"
	case noInstrument:
		return "accounting"
	default:
		return "accounting+instrumentation"
	}
}

func printStatsReport(r StatsReport) {
	printInfo("\nWorkload:\n")
	printInfo("  Capabilities:    %s\n", r.Capabilities)
	printInfo("  Allocated:       %d blocks (%d failed)\n", r.Allocated, r.Failed)
	printInfo("  Freed:           %d blocks\n", r.Freed)
	printInfo("  Requested:       %s\n", formatBytes(int64(r.RequestedBytes)))
	printInfo("  Usable:          %s\n", formatBytes(int64(r.UsableBytes)))

	printInfo("\nMemory:\n")
	printInfo("  Total committed: %s\n", formatBytes(r.TotalCommitted))
	printInfo("  Total reserved:  %s\n", formatBytes(r.TotalReserved))
	printInfo("  Peak committed:  %s\n", formatBytes(r.PeakCommitted))
	printInfo("  Cached:          %s\n", formatBytes(int64(r.CachedBytes)))
	printInfo("  Huge pages:      %t (privilege %s)\n", r.HugePages, r.Privilege)

	if len(r.Counters) > 0 {
		printInfo("\nCalls:\n")
		for _, name := range sortedKeys(r.Counters) {
			printInfo("  %-18s %d\n", name+":", r.Counters[name])
		}
	}
}
