// Package frontend composes the allocator entry points with region
// accounting and per-operation call counting.
//
// One Frontend covers every deployment: the plain passthrough, the
// accounting build and the instrumented build differ only in the
// Capability set passed to New.
package frontend

import (
	"unsafe"

	"github.com/joshuapare/memkit/internal/accounting"
	"github.com/joshuapare/memkit/internal/logger"
)

// Allocator is the scalable allocator the front end drives.
type Allocator interface {
	Alloc(size uintptr) unsafe.Pointer
	AllocAligned(size, align uintptr) unsafe.Pointer

	// Free and FreeAligned report whether p was a live block of this
	// allocator. Anything else is left alone and reported as false.
	Free(p unsafe.Pointer) bool
	FreeAligned(p unsafe.Pointer) bool

	SizeOf(p unsafe.Pointer) uintptr

	// FlushCaches releases all internally cached, unused memory.
	FlushCaches()

	// SetHugePages sets the global allocation mode for future allocations.
	SetHugePages(enabled bool)
}

// SizeQuerier reports the committed size of the region holding a pointer,
// or a negative value when it is unknown.
type SizeQuerier interface {
	QueryCommittedSize(p unsafe.Pointer) int64
}

// Gate reports whether the lock-memory privilege is held.
type Gate interface {
	Acquire() bool
}

// Capability selects optional front end behavior.
type Capability uint8

const (
	// Accounting tracks live committed bytes per allocation.
	Accounting Capability = 1 << iota
	// Instrumentation counts calls per operation.
	Instrumentation

	// None is the plain passthrough.
	None Capability = 0
	// All enables every capability.
	All             = Accounting | Instrumentation
)

// Has reports whether c includes every bit of other.
func (c Capability) Has(other Capability) bool { return c&other == other }

func (c Capability) String() string {
	switch c {
	case None:
		return "none"
	case Accounting:
		return "accounting"
	case Instrumentation:
		return "instrumentation"
	case All:
		return "accounting+instrumentation"
	default:
		return "invalid"
	}
}

// Options wires a Frontend.
type Options struct {
	Capabilities Capability
	Sizes        SizeQuerier         // required with Accounting
	Counter      *accounting.Counter // defaults to accounting.Live
	Gate         Gate                // nil means huge pages are never granted
}

// Frontend is safe for concurrent use.
type Frontend struct {
	alloc Allocator
	caps  Capability
	sizes SizeQuerier
	live  *accounting.Counter
	gate  Gate
	calls *CallCounters // nil without Instrumentation
}

// New returns a front end over a.
func New(a Allocator, opts Options) *Frontend {
	f := &Frontend{
		alloc: a,
		caps:  opts.Capabilities,
		sizes: opts.Sizes,
		live:  opts.Counter,
		gate:  opts.Gate,
	}
	if f.live == nil {
		f.live = accounting.Live
	}
	if f.sizes == nil {
		f.caps &^= Accounting
	}
	if f.caps.Has(Instrumentation) {
		f.calls = &CallCounters{}
	}
	return f
}

// Capabilities returns the effective capability set.
func (f *Frontend) Capabilities() Capability { return f.caps }

func (f *Frontend) count(op Op) {
	if f.calls != nil {
		f.calls.inc(op)
	}
}

func (f *Frontend) accountAlloc(p unsafe.Pointer) {
	if p != nil && f.caps.Has(Accounting) {
		f.live.Add(f.sizes.QueryCommittedSize(p))
	}
}

// release frees p through free. The committed size is read while the region
// is still mapped but only subtracted once the allocator has claimed p, so
// foreign, interior and already freed pointers leave the total alone.
func (f *Frontend) release(p unsafe.Pointer, free func(unsafe.Pointer) bool) {
	if p == nil || !f.caps.Has(Accounting) {
		free(p)
		return
	}
	size := f.sizes.QueryCommittedSize(p)
	if free(p) {
		f.live.Subtract(size)
	}
}

// Alloc allocates size bytes. A nil result is passed through untouched.
func (f *Frontend) Alloc(size uintptr) unsafe.Pointer {
	f.count(OpAlloc)
	p := f.alloc.Alloc(size)
	f.accountAlloc(p)
	return p
}

// AllocAligned allocates size bytes aligned to align.
func (f *Frontend) AllocAligned(size, align uintptr) unsafe.Pointer {
	f.count(OpAllocAligned)
	p := f.alloc.AllocAligned(size, align)
	f.accountAlloc(p)
	return p
}

// Free releases p. Pointers the allocator does not own are ignored.
func (f *Frontend) Free(p unsafe.Pointer) {
	f.count(OpFree)
	f.release(p, f.alloc.Free)
}

// FreeAligned releases p from AllocAligned.
func (f *Frontend) FreeAligned(p unsafe.Pointer) {
	f.count(OpFreeAligned)
	f.release(p, f.alloc.FreeAligned)
}

// SizeOf returns the usable size of p.
func (f *Frontend) SizeOf(p unsafe.Pointer) uintptr {
	f.count(OpSize)
	return f.alloc.SizeOf(p)
}

// SizeOfAligned returns the usable size of p; alignment does not change it.
func (f *Frontend) SizeOfAligned(p unsafe.Pointer, _ uintptr) uintptr {
	f.count(OpSizeAligned)
	return f.alloc.SizeOf(p)
}

// FlushCaches does not release anything and returns size unchanged.
func (f *Frontend) FlushCaches(size uintptr) uintptr {
	f.count(OpFlush)
	return size
}

// FlushAllCaches makes the allocator return its cached unused memory.
func (f *Frontend) FlushAllCaches() {
	f.count(OpFlushAll)
	f.alloc.FlushCaches()
}

// EnableHugePages switches the allocator to huge pages when the lock-memory
// privilege can be acquired. Denial leaves regular pages in use.
func (f *Frontend) EnableHugePages() bool {
	f.count(OpEnableHugePages)
	if f.gate == nil || !f.gate.Acquire() {
		logger.Debug("huge pages not enabled")
		return false
	}
	f.alloc.SetHugePages(true)
	return true
}

// TotalCommitted returns the live committed bytes.
func (f *Frontend) TotalCommitted() int64 {
	f.count(OpTotalCommitted)
	return f.live.TotalCommitted()
}

// TotalReserved returns the same total as TotalCommitted.
func (f *Frontend) TotalReserved() int64 {
	f.count(OpTotalReserved)
	return f.live.TotalReserved()
}

// PeakCommitted returns the high-water mark of the live total.
func (f *Frontend) PeakCommitted() int64 {
	return f.live.Peak()
}

// Counters returns the call counters, and false without Instrumentation.
func (f *Frontend) Counters() (Snapshot, bool) {
	if f.calls == nil {
		return Snapshot{}, false
	}
	return f.calls.Snapshot(), true
}
