package mem

import (
	"errors"
	"sync"
	"unsafe"

	"github.com/joshuapare/memkit/internal/accounting"
	"github.com/joshuapare/memkit/internal/frontend"
	"github.com/joshuapare/memkit/internal/privilege"
	"github.com/joshuapare/memkit/internal/region"
	"github.com/joshuapare/memkit/internal/scalable"
)

// ErrPrivateCounter is returned by Options.Validate when PrivateCounter is
// set without Accounting.
var ErrPrivateCounter = errors.New("mem: private counter requires accounting")

// lockMemory is shared by every heap: the privilege is a process property.
var lockMemory = sync.OnceValue(func() *privilege.Gate {
	return privilege.New(privilege.LockMemory())
})

var defaultHeap = sync.OnceValue(func() *Heap {
	return New(Options{Accounting: true, Instrumentation: true})
})

// Options selects the capabilities of a Heap.
type Options struct {
	// Accounting tracks the committed bytes of every live allocation.
	Accounting bool
	// Instrumentation counts calls per operation.
	Instrumentation bool
	// PrivateCounter gives the heap its own live counter instead of the
	// process-wide one. Requires Accounting.
	PrivateCounter bool
}

// Validate reports inconsistent options.
func (o Options) Validate() error {
	if o.PrivateCounter && !o.Accounting {
		return ErrPrivateCounter
	}
	return nil
}

func (o Options) capabilities() frontend.Capability {
	var c frontend.Capability
	if o.Accounting {
		c |= frontend.Accounting
	}
	if o.Instrumentation {
		c |= frontend.Instrumentation
	}
	return c
}

// Heap is an allocator front end with its own reference allocator.
type Heap struct {
	fe    *frontend.Frontend
	alloc *scalable.Allocator
}

// New returns a heap configured by opts. Invalid options fall back to the
// nearest valid configuration; call Validate first to detect them.
func New(opts Options) *Heap {
	mapper := region.Default()
	alloc := scalable.New(mapper)

	counter := accounting.Live
	if opts.PrivateCounter {
		counter = accounting.New()
	}

	return &Heap{
		alloc: alloc,
		fe: frontend.New(alloc, frontend.Options{
			Capabilities: opts.capabilities(),
			Sizes:        mapper,
			Counter:      counter,
			Gate:         lockMemory(),
		}),
	}
}

// Default returns the process-wide heap used by the package-level functions.
func Default() *Heap { return defaultHeap() }

// Alloc returns a block of at least size bytes, or nil on failure.
func (h *Heap) Alloc(size uintptr) unsafe.Pointer { return h.fe.Alloc(size) }

// AllocAligned returns a block of at least size bytes aligned to align, or
// nil when align is not a power of two or memory is exhausted.
func (h *Heap) AllocAligned(size, align uintptr) unsafe.Pointer {
	return h.fe.AllocAligned(size, align)
}

// Free releases a block from Alloc. Nil and pointers the heap does not own
// are ignored.
func (h *Heap) Free(p unsafe.Pointer) { h.fe.Free(p) }

// FreeAligned releases a block from AllocAligned.
func (h *Heap) FreeAligned(p unsafe.Pointer) { h.fe.FreeAligned(p) }

// Size returns the usable size of a block from Alloc, or 0 for nil.
func (h *Heap) Size(p unsafe.Pointer) uintptr { return h.fe.SizeOf(p) }

// SizeAligned returns the usable size of a block from AllocAligned.
func (h *Heap) SizeAligned(p unsafe.Pointer, align uintptr) uintptr {
	return h.fe.SizeOfAligned(p, align)
}

// FlushCache returns size unchanged; it releases nothing.
func (h *Heap) FlushCache(size uintptr) uintptr { return h.fe.FlushCaches(size) }

// FlushCacheAll returns the allocator's cached unused regions to the OS.
func (h *Heap) FlushCacheAll() { h.fe.FlushAllCaches() }

// EnableHugePages requests large pages for future allocations. It reports
// false, and leaves regular pages in use, when the privilege is unavailable.
func (h *Heap) EnableHugePages() bool { return h.fe.EnableHugePages() }

// HugePages reports whether the heap's allocator is in huge page mode.
func (h *Heap) HugePages() bool { return h.alloc.HugePages() }

// TotalCommitted returns the committed bytes of live blocks, or 0 when the
// heap does not account.
func (h *Heap) TotalCommitted() int64 { return h.fe.TotalCommitted() }

// TotalReserved returns the same value as TotalCommitted.
func (h *Heap) TotalReserved() int64 { return h.fe.TotalReserved() }

// PeakCommitted returns the highest live total seen by the heap's counter.
func (h *Heap) PeakCommitted() int64 { return h.fe.PeakCommitted() }

// CachedBytes returns the bytes held in the allocator's free caches.
func (h *Heap) CachedBytes() uint64 { return uint64(h.alloc.CachedBytes()) }

// Counters returns per-operation call counts keyed by operation name, or nil
// when the heap is not instrumented.
func (h *Heap) Counters() map[string]uint64 {
	snap, ok := h.fe.Counters()
	if !ok {
		return nil
	}
	return snap.Map()
}

// PrivilegeState reports the cached lock-memory privilege state.
func PrivilegeState() string { return lockMemory().State().String() }

// TotalCommitted returns the default heap's committed bytes.
func TotalCommitted() int64 { return Default().TotalCommitted() }

// TotalReserved returns the default heap's reserved bytes.
func TotalReserved() int64 { return Default().TotalReserved() }

// FlushCache returns size unchanged.
func FlushCache(size uintptr) uintptr { return Default().FlushCache(size) }

// FlushCacheAll releases the default heap's cached regions.
func FlushCacheAll() { Default().FlushCacheAll() }

// Size returns the usable size of a block from Alloc.
func Size(p unsafe.Pointer) uintptr { return Default().Size(p) }

// SizeAligned returns the usable size of a block from AllocAligned.
func SizeAligned(p unsafe.Pointer, align uintptr) uintptr { return Default().SizeAligned(p, align) }

// Alloc allocates size bytes from the default heap.
func Alloc(size uintptr) unsafe.Pointer { return Default().Alloc(size) }

// AllocAligned allocates size bytes aligned to align from the default heap.
func AllocAligned(size, align uintptr) unsafe.Pointer { return Default().AllocAligned(size, align) }

// Free releases a block from Alloc.
func Free(p unsafe.Pointer) { Default().Free(p) }

// FreeAligned releases a block from AllocAligned.
func FreeAligned(p unsafe.Pointer) { Default().FreeAligned(p) }

// EnableHugePages turns on huge pages for the default heap.
func EnableHugePages() bool { return Default().EnableHugePages() }

// Counters returns the default heap's per-operation call counts.
func Counters() map[string]uint64 { return Default().Counters() }
