//go:build unix

package osmem

import (
	"errors"
	"sync"
	"unsafe"

	"github.com/google/btree"
	"golang.org/x/sys/unix"
)

// The kernel merges adjacent anonymous mappings with identical protections,
// so /proc/self/maps cannot tell one mapping from its neighbour. The table
// below records each mapping exactly as mmap committed it.

type mapping struct {
	base uintptr
	data []byte
}

func mappingLess(a, b mapping) bool { return a.base < b.base }

type unixBackend struct {
	pageSize  uintptr
	largePage uintptr

	mu      sync.RWMutex
	regions *btree.BTreeG[mapping]
}

var native = newUnixBackend()

// Native returns the process-wide backend for this platform.
func Native() Backend { return native }

// New returns a backend with its own region table. Mappings made through it
// are invisible to other backends.
func New() Backend { return newUnixBackend() }

func newUnixBackend() *unixBackend {
	return &unixBackend{
		pageSize:  uintptr(unix.Getpagesize()),
		largePage: hugePageSize(),
		regions:   btree.NewG[mapping](16, mappingLess),
	}
}

func (b *unixBackend) PageSize() uintptr      { return b.pageSize }
func (b *unixBackend) LargePageSize() uintptr { return b.largePage }

func (b *unixBackend) Map(size uintptr, large bool) (unsafe.Pointer, error) {
	if size == 0 || size > maxMapSize {
		return nil, &Error{Op: "map", Err: ErrInvalidSize}
	}

	flags := unix.MAP_PRIVATE | unix.MAP_ANON
	gran := b.pageSize
	if large {
		if hugeMapFlags == 0 || b.largePage == 0 {
			return nil, &Error{Op: "map", Err: ErrLargePagesUnsupported}
		}
		flags |= hugeMapFlags
		gran = b.largePage
	}

	length := RoundUp(size, gran)
	data, err := unix.Mmap(-1, 0, int(length), unix.PROT_READ|unix.PROT_WRITE, flags)
	if err != nil {
		return nil, &Error{Op: "mmap", Err: err}
	}

	p := unsafe.Pointer(&data[0])
	b.mu.Lock()
	b.regions.ReplaceOrInsert(mapping{base: uintptr(p), data: data})
	b.mu.Unlock()
	return p, nil
}

func (b *unixBackend) Unmap(p unsafe.Pointer) error {
	if p == nil {
		return &Error{Op: "munmap", Err: ErrNotMapped}
	}

	// Remove first so a concurrent double release cannot munmap twice.
	b.mu.Lock()
	m, ok := b.regions.Delete(mapping{base: uintptr(p)})
	b.mu.Unlock()
	if !ok {
		return &Error{Op: "munmap", Err: ErrNotMapped}
	}

	if err := unix.Munmap(m.data); err != nil {
		if !errors.Is(err, unix.EINVAL) {
			b.mu.Lock()
			b.regions.ReplaceOrInsert(m)
			b.mu.Unlock()
		}
		return &Error{Op: "munmap", Err: err}
	}
	return nil
}

func (b *unixBackend) Query(p unsafe.Pointer) (Region, error) {
	addr := uintptr(p)
	if addr == 0 {
		return Region{}, &Error{Op: "query", Err: ErrNotMapped}
	}

	var (
		m     mapping
		found bool
	)
	b.mu.RLock()
	b.regions.DescendLessOrEqual(mapping{base: addr}, func(item mapping) bool {
		m, found = item, true
		return false
	})
	b.mu.RUnlock()

	if !found || addr >= m.base+uintptr(len(m.data)) {
		return Region{}, &Error{Op: "query", Err: ErrNotMapped}
	}
	return Region{Base: unsafe.Pointer(&m.data[0]), Size: uintptr(len(m.data))}, nil
}
