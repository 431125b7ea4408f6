// Package scalable is the reference allocator the backend front end drives by
// default. Every block is its own mapped region obtained from the region
// mapper, so the OS region query always reports the block's committed size.
//
// Small and medium requests are rounded to a size class (a page, doubling up
// to MaxClassSize) and freed class regions are kept in a bounded per-class
// cache until FlushCaches returns them to the OS. Larger requests map an
// exact page-rounded region and are released immediately on Free.
package scalable

import (
	"sync"
	"sync/atomic"
	"unsafe"

	"github.com/joshuapare/memkit/internal/logger"
	"github.com/joshuapare/memkit/internal/osmem"
	"github.com/joshuapare/memkit/internal/region"
)

// MaxClassSize is the largest size class; bigger blocks are never cached.
const MaxClassSize = 1 << 20

// maxCachedPerClass bounds how many freed regions each class keeps.
const maxCachedPerClass = 64

type block struct {
	base   unsafe.Pointer // region base, what Unmap needs
	usable uintptr        // bytes available from the user pointer
	class  int            // size class, or -1 when not cacheable
}

type classCache struct {
	mu   sync.Mutex
	free []unsafe.Pointer
}

func (c *classCache) pop() unsafe.Pointer {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := len(c.free)
	if n == 0 {
		return nil
	}
	p := c.free[n-1]
	c.free = c.free[:n-1]
	return p
}

func (c *classCache) push(p unsafe.Pointer) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.free) >= maxCachedPerClass {
		return false
	}
	c.free = append(c.free, p)
	return true
}

func (c *classCache) drain() []unsafe.Pointer {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := c.free
	c.free = nil
	return out
}

// Allocator is safe for concurrent use.
type Allocator struct {
	mapper  *region.Mapper
	page    uintptr
	classes []uintptr
	caches  []classCache
	huge    atomic.Bool

	live sync.Map // user pointer (uintptr) -> block
}

// New returns an allocator that maps its regions through m.
func New(m *region.Mapper) *Allocator {
	page := m.PageSize()
	var classes []uintptr
	for sz := page; sz <= MaxClassSize; sz <<= 1 {
		classes = append(classes, sz)
	}
	return &Allocator{
		mapper:  m,
		page:    page,
		classes: classes,
		caches:  make([]classCache, len(classes)),
	}
}

// classFor returns the smallest class holding size, or -1.
func (a *Allocator) classFor(size uintptr) int {
	for i, c := range a.classes {
		if size <= c {
			return i
		}
	}
	return -1
}

// mapRegion maps size bytes, on large pages when huge page mode is on. A
// refused large-page mapping silently falls back to regular pages.
func (a *Allocator) mapRegion(size uintptr) unsafe.Pointer {
	if a.huge.Load() {
		if p := a.mapper.Map(size, true); p != nil {
			return p
		}
		logger.Debug("large page mapping refused, using regular pages", "size", size)
	}
	return a.mapper.Map(size, false)
}

// Alloc returns a block of at least size bytes, or nil when the OS refuses
// the mapping. A zero size is served as a one-byte request, so it always
// yields a one-page block.
func (a *Allocator) Alloc(size uintptr) unsafe.Pointer {
	if size == 0 {
		size = 1
	}

	cls := a.classFor(size)
	if cls < 0 {
		if size > ^uintptr(0)-a.page {
			return nil
		}
		usable := osmem.RoundUp(size, a.page)
		p := a.mapRegion(usable)
		if p == nil {
			return nil
		}
		a.live.Store(uintptr(p), block{base: p, usable: usable, class: -1})
		return p
	}

	p := a.caches[cls].pop()
	if p == nil {
		if p = a.mapRegion(a.classes[cls]); p == nil {
			return nil
		}
	}
	a.live.Store(uintptr(p), block{base: p, usable: a.classes[cls], class: cls})
	return p
}

// AllocAligned returns a block of at least size bytes whose address is a
// multiple of align. align must be a power of two; otherwise it returns nil.
func (a *Allocator) AllocAligned(size, align uintptr) unsafe.Pointer {
	if align == 0 || align&(align-1) != 0 {
		return nil
	}
	// Region bases are page aligned already.
	if align <= a.page {
		return a.Alloc(size)
	}

	if size == 0 {
		size = 1
	}
	if size > ^uintptr(0)-a.page-align {
		return nil
	}
	total := osmem.RoundUp(size, a.page) + align - a.page
	base := a.mapRegion(total)
	if base == nil {
		return nil
	}

	off := osmem.RoundUp(uintptr(base), align) - uintptr(base)
	p := unsafe.Add(base, off)
	a.live.Store(uintptr(p), block{base: base, usable: total - off, class: -1})
	return p
}

// Free releases a block from Alloc and reports whether p was a live block.
// Pointers the allocator never handed out, interior pointers and blocks that
// were already freed are ignored. Only one of several concurrent frees of the
// same block returns true.
func (a *Allocator) Free(p unsafe.Pointer) bool {
	v, ok := a.live.LoadAndDelete(uintptr(p))
	if !ok {
		return false
	}
	b := v.(block)
	if b.class >= 0 && a.caches[b.class].push(b.base) {
		return true
	}
	a.mapper.Unmap(b.base)
	return true
}

// FreeAligned releases a block from AllocAligned.
func (a *Allocator) FreeAligned(p unsafe.Pointer) bool {
	return a.Free(p)
}

// SizeOf returns the usable size of a live block, or 0 for unknown pointers.
func (a *Allocator) SizeOf(p unsafe.Pointer) uintptr {
	v, ok := a.live.Load(uintptr(p))
	if !ok {
		return 0
	}
	return v.(block).usable
}

// FlushCaches returns every cached free region to the OS.
func (a *Allocator) FlushCaches() {
	var regions, bytes uintptr
	for i := range a.caches {
		for _, p := range a.caches[i].drain() {
			if a.mapper.Unmap(p) {
				regions++
				bytes += a.classes[i]
			}
		}
	}
	logger.Debug("flushed allocator caches", "regions", regions, "bytes", bytes)
}

// SetHugePages switches future mappings to large pages or back.
func (a *Allocator) SetHugePages(enabled bool) {
	a.huge.Store(enabled)
}

// HugePages reports whether huge page mode is on.
func (a *Allocator) HugePages() bool {
	return a.huge.Load()
}

// CachedBytes returns the class-size bytes currently held in free caches.
func (a *Allocator) CachedBytes() uintptr {
	var total uintptr
	for i := range a.caches {
		c := &a.caches[i]
		c.mu.Lock()
		total += uintptr(len(c.free)) * a.classes[i]
		c.mu.Unlock()
	}
	return total
}

// Classes returns the size classes in ascending order.
func (a *Allocator) Classes() []uintptr {
	return append([]uintptr(nil), a.classes...)
}
