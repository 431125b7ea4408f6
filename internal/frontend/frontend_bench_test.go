package frontend

import (
	"testing"

	"github.com/joshuapare/memkit/internal/accounting"
	"github.com/joshuapare/memkit/internal/osmem"
	"github.com/joshuapare/memkit/internal/region"
	"github.com/joshuapare/memkit/internal/scalable"
)

// ============================================================================
// Capability Overhead Benchmarks
// ============================================================================
//
// Names follow Benchmark<Operation>/<capability>/<size> so
// scripts/benchmark_parser.go can compare each capability with "none".

var benchCapabilities = []Capability{None, Accounting, Instrumentation, All}

var benchSizes = []struct {
	name string
	size uintptr
}{
	{"4KiB", 4 << 10},
	{"64KiB", 64 << 10},
	{"1MiB", 1 << 20},
}

func newBenchFrontend(b *testing.B, caps Capability) (*Frontend, *scalable.Allocator) {
	b.Helper()
	mapper := region.New(osmem.New())
	alloc := scalable.New(mapper)
	b.Cleanup(alloc.FlushCaches)
	return New(alloc, Options{Capabilities: caps, Sizes: mapper, Counter: accounting.New()}), alloc
}

// BenchmarkAllocFree measures a cached alloc/free pair.
func BenchmarkAllocFree(b *testing.B) {
	for _, caps := range benchCapabilities {
		for _, sz := range benchSizes {
			b.Run(caps.String()+"/"+sz.name, func(b *testing.B) {
				f, _ := newBenchFrontend(b, caps)
				f.Free(f.Alloc(sz.size))
				b.ResetTimer()

				for range b.N {
					p := f.Alloc(sz.size)
					if p == nil {
						b.Fatal("allocation failed")
					}
					f.Free(p)
				}
			})
		}
	}
}

// BenchmarkAllocFreeAligned measures an over-aligned pair, which always maps.
func BenchmarkAllocFreeAligned(b *testing.B) {
	for _, caps := range benchCapabilities {
		for _, sz := range benchSizes {
			b.Run(caps.String()+"/"+sz.name, func(b *testing.B) {
				f, _ := newBenchFrontend(b, caps)
				b.ResetTimer()

				for range b.N {
					p := f.AllocAligned(sz.size, 64<<10)
					if p == nil {
						b.Fatal("allocation failed")
					}
					f.FreeAligned(p)
				}
			})
		}
	}
}

// BenchmarkAllocFreeParallel measures pairs from GOMAXPROCS goroutines
// sharing one counter.
func BenchmarkAllocFreeParallel(b *testing.B) {
	for _, caps := range benchCapabilities {
		b.Run(caps.String()+"/4KiB", func(b *testing.B) {
			f, _ := newBenchFrontend(b, caps)
			b.ResetTimer()

			b.RunParallel(func(pb *testing.PB) {
				for pb.Next() {
					p := f.Alloc(4 << 10)
					if p == nil {
						b.Error("allocation failed")
						return
					}
					f.Free(p)
				}
			})
		})
	}
}
