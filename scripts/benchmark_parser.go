package main

import (
	"bufio"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"
)

// baseline is the capability every other capability is compared against.
const baseline = "none"

// BenchmarkResult represents a parsed benchmark result.
type BenchmarkResult struct {
	Name        string
	Operation   string
	Capability  string // "none", "accounting", "instrumentation", ...
	Size        string
	Iterations  int
	NsPerOp     float64
	BytesPerOp  int64
	AllocsPerOp int64
}

// OverheadResult compares one capability with the baseline for the same
// operation and size.
type OverheadResult struct {
	Operation  string
	Size       string
	Capability string
	BaseNs     float64
	Ns         float64
	Overhead   float64 // percent over baseline; 0 when there is no baseline
	HasBase    bool
}

var (
	inputFile = flag.String(
		"input",
		"",
		"Input file with benchmark output (stdin if not specified)",
	)
	outputFile = flag.String("output", "", "Output markdown file (stdout if not specified)")
	quiet      = flag.Bool("quiet", false, "Suppress progress output")
)

func main() {
	flag.Parse()

	var in io.Reader = os.Stdin
	if *inputFile != "" {
		f, err := os.Open(*inputFile)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error opening input file: %v\n", err)
			os.Exit(1)
		}
		defer f.Close()
		in = f
	}

	results := parseBenchmarks(bufio.NewScanner(in))
	if !*quiet {
		fmt.Fprintf(os.Stderr, "Parsed %d benchmark results\n", len(results))
	}

	overheads := generateOverheads(results)
	if !*quiet {
		fmt.Fprintf(os.Stderr, "Generated %d comparisons\n", len(overheads))
	}

	report := generateMarkdownReport(overheads, time.Now())

	if *outputFile == "" {
		fmt.Fprint(os.Stdout, report)
		return
	}
	if err := os.WriteFile(*outputFile, []byte(report), 0o644); err != nil {
		fmt.Fprintf(os.Stderr, "Error writing output file: %v\n", err)
		os.Exit(1)
	}
	if !*quiet {
		fmt.Fprintf(os.Stderr, "Report written to %s\n", *outputFile)
	}
}

// BenchmarkAllocFree/accounting/4KiB-8    1000000    1045 ns/op    0 B/op    0 allocs/op
var benchmarkRegex = regexp.MustCompile(
	`^(Benchmark\S+)\s+(\d+)\s+([\d.]+)\s+ns/op(?:\s+([\d.]+)\s+B/op)?(?:\s+([\d.]+)\s+allocs/op)?`,
)

func parseBenchmarks(scanner *bufio.Scanner) []BenchmarkResult {
	var results []BenchmarkResult

	for scanner.Scan() {
		line := scanner.Text()

		// Accept go test -json output too
		var testEvent map[string]any
		if err := json.Unmarshal([]byte(line), &testEvent); err == nil {
			if output, ok := testEvent["Output"].(string); ok {
				line = output
			}
		}

		matches := benchmarkRegex.FindStringSubmatch(strings.TrimSpace(line))
		if matches == nil {
			continue
		}

		// Format: Benchmark<Operation>/<capability>/<size>-<procs>
		parts := strings.Split(matches[1], "/")
		if len(parts) != 3 {
			continue
		}

		r := BenchmarkResult{
			Name:       matches[1],
			Operation:  strings.TrimPrefix(parts[0], "Benchmark"),
			Capability: parts[1],
			Size:       trimProcs(parts[2]),
		}
		r.Iterations, _ = strconv.Atoi(matches[2])
		r.NsPerOp, _ = strconv.ParseFloat(matches[3], 64)
		if matches[4] != "" {
			r.BytesPerOp, _ = strconv.ParseInt(matches[4], 10, 64)
		}
		if matches[5] != "" {
			r.AllocsPerOp, _ = strconv.ParseInt(matches[5], 10, 64)
		}
		results = append(results, r)
	}

	return results
}

// trimProcs drops the -GOMAXPROCS suffix from a benchmark name segment.
func trimProcs(s string) string {
	if i := strings.LastIndex(s, "-"); i > 0 {
		if _, err := strconv.Atoi(s[i+1:]); err == nil {
			return s[:i]
		}
	}
	return s
}

func generateOverheads(results []BenchmarkResult) []OverheadResult {
	type key struct {
		operation string
		size      string
	}

	base := make(map[key]BenchmarkResult)
	for _, r := range results {
		if r.Capability == baseline {
			base[key{r.Operation, r.Size}] = r
		}
	}

	var overheads []OverheadResult
	for _, r := range results {
		if r.Capability == baseline {
			continue
		}
		o := OverheadResult{
			Operation:  r.Operation,
			Size:       r.Size,
			Capability: r.Capability,
			Ns:         r.NsPerOp,
		}
		if b, ok := base[key{r.Operation, r.Size}]; ok && b.NsPerOp > 0 {
			o.HasBase = true
			o.BaseNs = b.NsPerOp
			o.Overhead = (r.NsPerOp - b.NsPerOp) / b.NsPerOp * 100
		}
		overheads = append(overheads, o)
	}

	sort.Slice(overheads, func(i, j int) bool {
		a, b := overheads[i], overheads[j]
		if a.Operation != b.Operation {
			return a.Operation < b.Operation
		}
		if a.Size != b.Size {
			return sizeBytes(a.Size) < sizeBytes(b.Size)
		}
		return a.Capability < b.Capability
	})

	return overheads
}

// sizeBytes parses "4KiB", "1MiB" and plain byte counts for ordering.
func sizeBytes(s string) int64 {
	mult := int64(1)
	switch {
	case strings.HasSuffix(s, "KiB"):
		mult, s = 1<<10, strings.TrimSuffix(s, "KiB")
	case strings.HasSuffix(s, "MiB"):
		mult, s = 1<<20, strings.TrimSuffix(s, "MiB")
	case strings.HasSuffix(s, "GiB"):
		mult, s = 1<<30, strings.TrimSuffix(s, "GiB")
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0
	}
	return n * mult
}

func generateMarkdownReport(overheads []OverheadResult, now time.Time) string {
	var sb strings.Builder

	sb.WriteString("# Capability Overhead Report\n\n")
	sb.WriteString(fmt.Sprintf("Generated: %s\n\n", now.Format("2006-01-02 15:04:05")))

	// Average overhead per capability
	type agg struct {
		sum   float64
		count int
	}
	byCap := make(map[string]*agg)
	missing := 0
	for _, o := range overheads {
		if !o.HasBase {
			missing++
			continue
		}
		a := byCap[o.Capability]
		if a == nil {
			a = &agg{}
			byCap[o.Capability] = a
		}
		a.sum += o.Overhead
		a.count++
	}

	caps := make([]string, 0, len(byCap))
	for c := range byCap {
		caps = append(caps, c)
	}
	sort.Strings(caps)

	sb.WriteString("## Summary\n\n")
	sb.WriteString(fmt.Sprintf("- **Comparisons**: %d\n", len(overheads)))
	for _, c := range caps {
		a := byCap[c]
		sb.WriteString(fmt.Sprintf("  - %s: **%+.1f%%** average over %s (%d benchmarks)\n",
			c, a.sum/float64(a.count), baseline, a.count))
	}
	if missing > 0 {
		sb.WriteString(fmt.Sprintf("- **Without baseline**: %d\n", missing))
	}
	sb.WriteString("\n")

	sb.WriteString("## Detailed Results\n\n")
	sb.WriteString("| Operation | Size | Capability | none (ns/op) | ns/op | Overhead |\n")
	sb.WriteString("|-----------|------|------------|--------------|-------|----------|\n")

	for _, o := range overheads {
		if !o.HasBase {
			sb.WriteString(fmt.Sprintf("| %s | %s | %s | *N/A* | %s | *no baseline* |\n",
				o.Operation, o.Size, o.Capability, formatNumber(o.Ns)))
			continue
		}
		sb.WriteString(fmt.Sprintf("| %s | %s | %s | %s | %s | %+.1f%% |\n",
			o.Operation,
			o.Size,
			o.Capability,
			formatNumber(o.BaseNs),
			formatNumber(o.Ns),
			o.Overhead,
		))
	}

	sb.WriteString("\n## Notes\n\n")
	sb.WriteString("- **Overhead**: time per operation relative to the same benchmark with no capabilities\n")
	sb.WriteString("- **accounting** adds one region size query per allocation and per free\n")
	sb.WriteString("- **instrumentation** adds one atomic increment per call\n")

	return sb.String()
}

func formatNumber(n float64) string {
	if n >= 1000000 {
		return fmt.Sprintf("%.2fM", n/1000000)
	} else if n >= 1000 {
		return fmt.Sprintf("%.1fK", n/1000)
	}
	return fmt.Sprintf("%.0f", n)
}
