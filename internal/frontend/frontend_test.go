package frontend

import (
	"sync"
	"sync/atomic"
	"testing"
	"unsafe"

	"github.com/joshuapare/memkit/internal/accounting"
	"github.com/joshuapare/memkit/internal/osmem"
	"github.com/joshuapare/memkit/internal/privilege"
	"github.com/joshuapare/memkit/internal/region"
	"github.com/joshuapare/memkit/internal/scalable"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeHeap hands out Go-heap buffers and doubles as the size querier, so a
// freed pointer becomes unknown the moment the allocator releases it.
type fakeHeap struct {
	mu       sync.Mutex
	sizes    map[unsafe.Pointer]int64
	keep     map[unsafe.Pointer][]byte
	fail     bool
	flushed  int
	huge     bool
	rounding int64
}

func newFakeHeap() *fakeHeap {
	return &fakeHeap{
		sizes:    make(map[unsafe.Pointer]int64),
		keep:     make(map[unsafe.Pointer][]byte),
		rounding: 4096,
	}
}

func (h *fakeHeap) Alloc(size uintptr) unsafe.Pointer {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.fail {
		return nil
	}
	buf := make([]byte, size+1)
	p := unsafe.Pointer(&buf[0])
	committed := (int64(size) + h.rounding) / h.rounding * h.rounding
	h.sizes[p] = committed
	h.keep[p] = buf
	return p
}

func (h *fakeHeap) AllocAligned(size, _ uintptr) unsafe.Pointer { return h.Alloc(size) }

func (h *fakeHeap) Free(p unsafe.Pointer) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.keep[p]; !ok {
		return false
	}
	delete(h.sizes, p)
	delete(h.keep, p)
	return true
}

func (h *fakeHeap) FreeAligned(p unsafe.Pointer) bool { return h.Free(p) }

func (h *fakeHeap) SizeOf(p unsafe.Pointer) uintptr {
	h.mu.Lock()
	defer h.mu.Unlock()
	return uintptr(len(h.keep[p]))
}

func (h *fakeHeap) FlushCaches() {
	h.mu.Lock()
	h.flushed++
	h.mu.Unlock()
}

func (h *fakeHeap) SetHugePages(enabled bool) {
	h.mu.Lock()
	h.huge = enabled
	h.mu.Unlock()
}

func (h *fakeHeap) QueryCommittedSize(p unsafe.Pointer) int64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	if n, ok := h.sizes[p]; ok {
		return n
	}
	return region.Unknown
}

type countingGate struct {
	calls atomic.Int32
	grant bool
}

func (g *countingGate) Acquire() bool {
	g.calls.Add(1)
	return g.grant
}

func newFake(caps Capability) (*Frontend, *fakeHeap, *accounting.Counter) {
	h := newFakeHeap()
	c := accounting.New()
	return New(h, Options{Capabilities: caps, Sizes: h, Counter: c}), h, c
}

func TestFrontend_AccountingTracksQueriedSizes(t *testing.T) {
	f, h, _ := newFake(Accounting)

	sizes := []uintptr{1, 100, 4096, 5000, 70000, 1 << 20}
	ptrs := make([]unsafe.Pointer, len(sizes))
	var want int64
	for i, sz := range sizes {
		ptrs[i] = f.Alloc(sz)
		require.NotNil(t, ptrs[i])
		want += h.QueryCommittedSize(ptrs[i])
	}
	assert.Equal(t, want, f.TotalCommitted())

	// Free every other pointer; the remainder must match exactly.
	for i := 0; i < len(ptrs); i += 2 {
		want -= h.QueryCommittedSize(ptrs[i])
		f.Free(ptrs[i])
	}
	assert.Equal(t, want, f.TotalCommitted())
	assert.Equal(t, f.TotalCommitted(), f.TotalReserved())

	for i := 1; i < len(ptrs); i += 2 {
		f.FreeAligned(ptrs[i])
	}
	assert.Zero(t, f.TotalCommitted())
}

func TestFrontend_FreeQueriesBeforeRelease(t *testing.T) {
	f, _, c := newFake(Accounting)

	p := f.AllocAligned(10, 64)
	require.NotNil(t, p)
	require.Equal(t, int64(4096), c.Read())

	// fakeHeap forgets the size on Free, so a query after release would skip
	// the subtraction and leave 4096 behind.
	f.FreeAligned(p)
	assert.Zero(t, c.Read())
}

func TestFrontend_NilPropagates(t *testing.T) {
	f, h, c := newFake(All)
	h.fail = true

	assert.Nil(t, f.Alloc(64))
	assert.Nil(t, f.AllocAligned(64, 16))
	assert.Zero(t, c.Read(), "no accounting on a failed allocation")

	snap, ok := f.Counters()
	require.True(t, ok)
	assert.Equal(t, uint64(1), snap.Get(OpAlloc), "counters record calls, not successes")
	assert.Equal(t, uint64(1), snap.Get(OpAllocAligned))
}

func TestFrontend_ForeignFreeIsNoop(t *testing.T) {
	f, _, c := newFake(Accounting)

	p := f.Alloc(64)
	before := c.Read()

	var local [32]byte
	f.Free(unsafe.Pointer(&local[0]))
	f.FreeAligned(unsafe.Pointer(&local[0]))
	f.Free(nil)
	assert.Equal(t, before, c.Read())

	f.Free(p)
	f.Free(p) // second release of the same pointer is foreign now
	assert.Zero(t, c.Read())
}

func TestFrontend_SizeOfPassthrough(t *testing.T) {
	f, h, _ := newFake(None)

	p := f.Alloc(100)
	require.NotNil(t, p)
	assert.Equal(t, h.SizeOf(p), f.SizeOf(p))
	assert.Equal(t, f.SizeOf(p), f.SizeOfAligned(p, 4096), "alignment does not change the reported size")
	assert.GreaterOrEqual(t, f.SizeOf(p), uintptr(100))
}

func TestFrontend_FlushCaches(t *testing.T) {
	f, h, _ := newFake(Instrumentation)

	assert.Equal(t, uintptr(12345), f.FlushCaches(12345))
	assert.Zero(t, h.flushed, "FlushCaches never reaches the allocator")

	f.FlushAllCaches()
	f.FlushAllCaches()
	assert.Equal(t, 2, h.flushed)

	snap, _ := f.Counters()
	assert.Equal(t, uint64(1), snap.Get(OpFlush))
	assert.Equal(t, uint64(2), snap.Get(OpFlushAll))
}

func TestFrontend_EnableHugePages(t *testing.T) {
	t.Run("granted", func(t *testing.T) {
		h := newFakeHeap()
		g := &countingGate{grant: true}
		f := New(h, Options{Gate: g})

		assert.True(t, f.EnableHugePages())
		assert.True(t, h.huge)
	})

	t.Run("denied", func(t *testing.T) {
		h := newFakeHeap()
		g := &countingGate{grant: false}
		f := New(h, Options{Gate: g})

		assert.False(t, f.EnableHugePages())
		assert.False(t, h.huge, "denial leaves regular pages in use")
	})

	t.Run("no gate", func(t *testing.T) {
		h := newFakeHeap()
		assert.False(t, New(h, Options{}).EnableHugePages())
		assert.False(t, h.huge)
	})
}

func TestFrontend_EnableHugePagesAsksOSOnce(t *testing.T) {
	var osCalls atomic.Int32
	gate := privilege.New(privilege.AcquirerFunc(func() error {
		osCalls.Add(1)
		return nil
	}))

	h := newFakeHeap()
	f := New(h, Options{Gate: gate, Capabilities: Instrumentation})

	assert.True(t, f.EnableHugePages())
	assert.True(t, f.EnableHugePages())
	assert.Equal(t, int32(1), osCalls.Load())

	snap, _ := f.Counters()
	assert.Equal(t, uint64(2), snap.Get(OpEnableHugePages))
}

func TestFrontend_InstrumentationCountsEveryOp(t *testing.T) {
	f, _, _ := newFake(All)

	p := f.Alloc(1)
	q := f.AllocAligned(1, 8)
	f.SizeOf(p)
	f.SizeOfAligned(q, 8)
	f.FlushCaches(1)
	f.FlushAllCaches()
	f.TotalCommitted()
	f.TotalReserved()
	f.Free(p)
	f.FreeAligned(q)
	f.EnableHugePages()

	snap, ok := f.Counters()
	require.True(t, ok)
	for _, op := range Ops() {
		assert.Equal(t, uint64(1), snap.Get(op), "op %s", op)
	}
	assert.Len(t, snap.Map(), len(Ops()))
}

func TestFrontend_WithoutInstrumentation(t *testing.T) {
	f, _, _ := newFake(Accounting)
	f.Alloc(1)
	_, ok := f.Counters()
	assert.False(t, ok)
}

func TestFrontend_WithoutAccounting(t *testing.T) {
	f, _, c := newFake(Instrumentation)
	p := f.Alloc(1 << 16)
	require.NotNil(t, p)
	assert.Zero(t, c.Read())
	assert.Zero(t, f.TotalCommitted())
}

func TestFrontend_AccountingNeedsSizes(t *testing.T) {
	f := New(newFakeHeap(), Options{Capabilities: All})
	assert.Equal(t, Instrumentation, f.Capabilities())
	assert.NotNil(t, f.Alloc(8))
}

func TestCapability_String(t *testing.T) {
	assert.Equal(t, "none", None.String())
	assert.Equal(t, "accounting", Accounting.String())
	assert.Equal(t, "instrumentation", Instrumentation.String())
	assert.Equal(t, "accounting+instrumentation", All.String())
	assert.Equal(t, "invalid", Capability(8).String())
	assert.True(t, All.Has(Accounting))
	assert.False(t, Accounting.Has(All))
}

func TestOp_String(t *testing.T) {
	assert.Equal(t, "alloc", OpAlloc.String())
	assert.Equal(t, "enable_huge_pages", OpEnableHugePages.String())
	assert.Equal(t, "unknown", Op(-1).String())
	assert.Equal(t, "unknown", numOps.String())
	assert.Zero(t, Snapshot{}.Get(numOps))
}

// newNative wires the front end the way the process default is wired, with
// a private region table and counter.
func newNative(t *testing.T) (*Frontend, *region.Mapper, *accounting.Counter) {
	t.Helper()
	m := region.New(osmem.New())
	a := scalable.New(m)
	t.Cleanup(a.FlushCaches)
	c := accounting.New()
	return New(a, Options{Capabilities: All, Sizes: m, Counter: c}), m, c
}

func TestNative_AllocFree4096(t *testing.T) {
	f, m, _ := newNative(t)

	p := f.Alloc(4096)
	require.NotNil(t, p)
	assert.Equal(t, int64(osmem.RoundUp(4096, m.PageSize())), f.TotalCommitted())
	assert.GreaterOrEqual(t, f.SizeOf(p), uintptr(4096))

	f.Free(p)
	assert.Zero(t, f.TotalCommitted())
}

func TestNative_ZeroSize(t *testing.T) {
	f, m, _ := newNative(t)

	p := f.Alloc(0)
	require.NotNil(t, p, "zero-byte requests yield a minimal region")
	assert.Equal(t, int64(m.PageSize()), f.TotalCommitted())
	f.Free(p)
	assert.Zero(t, f.TotalCommitted())
}

func TestNative_RemainingSum(t *testing.T) {
	f, m, _ := newNative(t)

	sizes := []uintptr{1, 4096, 4097, 20000, 1 << 20, 3 << 20}
	ptrs := make([]unsafe.Pointer, len(sizes))
	for i, sz := range sizes {
		ptrs[i] = f.Alloc(sz)
		require.NotNil(t, ptrs[i])
		assert.GreaterOrEqual(t, f.SizeOf(ptrs[i]), sz)
	}

	var remaining int64
	for i, p := range ptrs {
		if i%3 == 0 {
			f.Free(p)
			continue
		}
		remaining += m.QueryCommittedSize(p)
	}
	assert.Equal(t, remaining, f.TotalCommitted())

	for i, p := range ptrs {
		if i%3 != 0 {
			f.Free(p)
		}
	}
	assert.Zero(t, f.TotalCommitted())
	assert.Positive(t, f.PeakCommitted())
}

func TestNative_AlignedRoundTrip(t *testing.T) {
	f, _, _ := newNative(t)

	p := f.AllocAligned(1000, 1<<16)
	require.NotNil(t, p)
	assert.Zero(t, uintptr(p)%(1<<16))
	assert.Positive(t, f.TotalCommitted())
	assert.GreaterOrEqual(t, f.SizeOfAligned(p, 1<<16), uintptr(1000))

	f.FreeAligned(p)
	assert.Zero(t, f.TotalCommitted())
}

func TestNative_ConcurrentPairsBalance(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping concurrent accounting test in short mode")
	}
	f, _, _ := newNative(t)

	const (
		workers = 64
		pairs   = 200
	)
	var wg sync.WaitGroup
	for w := range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range pairs {
				sz := uintptr(1 + (w*131+i*977)%(256<<10))
				p := f.Alloc(sz)
				if !assert.NotNil(t, p) {
					return
				}
				f.Free(p)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int64(0), f.TotalCommitted(), "no lost or doubled updates")
	snap, _ := f.Counters()
	assert.Equal(t, uint64(workers*pairs), snap.Get(OpAlloc))
	assert.Equal(t, uint64(workers*pairs), snap.Get(OpFree))
}

func TestNative_IntentionalLeakExact(t *testing.T) {
	f, m, _ := newNative(t)

	var keep []unsafe.Pointer
	var wg sync.WaitGroup
	var mu sync.Mutex
	for w := range 16 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range 50 {
				p := f.Alloc(uintptr(1 + w*i*37))
				if i == 0 {
					mu.Lock()
					keep = append(keep, p)
					mu.Unlock()
					continue
				}
				f.Free(p)
			}
		}()
	}
	wg.Wait()

	var want int64
	for _, p := range keep {
		want += m.QueryCommittedSize(p)
	}
	assert.Equal(t, want, f.TotalCommitted())
	for _, p := range keep {
		f.Free(p)
	}
	assert.Zero(t, f.TotalCommitted())
}

func TestNative_ForeignFreeLeavesTotal(t *testing.T) {
	t.Run("interior pointer", func(t *testing.T) {
		f, _, _ := newNative(t)
		p := f.Alloc(4096)
		require.NotNil(t, p)
		before := f.TotalCommitted()

		f.Free(unsafe.Add(p, 16))
		f.FreeAligned(unsafe.Add(p, 16))
		assert.Equal(t, before, f.TotalCommitted())

		f.Free(p)
		assert.Zero(t, f.TotalCommitted())
	})

	t.Run("double free of cached block", func(t *testing.T) {
		f, _, _ := newNative(t)
		p := f.Alloc(4096)
		require.NotNil(t, p)
		f.Free(p)
		require.Zero(t, f.TotalCommitted())

		// The region stays mapped in the class cache.
		f.Free(p)
		f.FreeAligned(p)
		assert.Zero(t, f.TotalCommitted())
	})

	t.Run("pointer from another front end", func(t *testing.T) {
		m := region.New(osmem.New())
		mine, theirs := scalable.New(m), scalable.New(m)
		t.Cleanup(mine.FlushCaches)
		t.Cleanup(theirs.FlushCaches)
		cm, ct := accounting.New(), accounting.New()
		fm := New(mine, Options{Capabilities: Accounting, Sizes: m, Counter: cm})
		ft := New(theirs, Options{Capabilities: Accounting, Sizes: m, Counter: ct})

		p := ft.Alloc(4096)
		require.NotNil(t, p)
		committed := ft.TotalCommitted()

		fm.Free(p)
		assert.Zero(t, fm.TotalCommitted())
		assert.Equal(t, committed, ft.TotalCommitted())

		ft.Free(p)
		assert.Zero(t, ft.TotalCommitted())
	})
}

func TestNative_ConcurrentDoubleFree(t *testing.T) {
	f, _, _ := newNative(t)

	for range 100 {
		p := f.Alloc(4096)
		require.NotNil(t, p)

		var wg sync.WaitGroup
		for range 4 {
			wg.Add(1)
			go func() {
				defer wg.Done()
				f.Free(p)
			}()
		}
		wg.Wait()
		require.Zero(t, f.TotalCommitted(), "only one free may subtract")
	}
}
