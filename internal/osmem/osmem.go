// Package osmem is the narrow operating-system memory backend used by the
// region mapper: reserve+commit anonymous memory (optionally on large pages),
// release it, and look up the committed size of the region holding a pointer.
//
// There is one Backend implementation per platform family (unix, windows and
// a fallback that reports ErrUnsupported). Everything above this package is
// platform agnostic.
package osmem

import (
	"errors"
	"unsafe"
)

// Backend is the set of OS primitives the allocator backend needs.
type Backend interface {
	// Map reserves and commits a readable, writable region of at least size
	// bytes. With large set the OS is asked to back it with large pages.
	Map(size uintptr, large bool) (unsafe.Pointer, error)

	// Unmap releases the region whose base address is p.
	Unmap(p unsafe.Pointer) error

	// Query reports the region containing p, measured from its base.
	Query(p unsafe.Pointer) (Region, error)

	// PageSize is the granularity regular mappings are rounded to.
	PageSize() uintptr

	// LargePageSize is the granularity of large-page mappings, or 0 when the
	// platform cannot provide them.
	LargePageSize() uintptr
}

// Region describes a live mapping as the OS sees it.
type Region struct {
	Base unsafe.Pointer
	Size uintptr
}

// Error records a failed OS operation.
type Error struct {
	Op  string
	Err error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return "osmem: " + e.Op + ": " + e.Err.Error()
	}
	return "osmem: " + e.Op
}

func (e *Error) Unwrap() error {
	return e.Err
}

var (
	// ErrNotMapped indicates the pointer is not inside a live mapping owned by the backend.
	ErrNotMapped = errors.New("osmem: address not mapped")

	// ErrInvalidSize indicates a zero or overflowing mapping size.
	ErrInvalidSize = errors.New("osmem: invalid mapping size")

	// ErrLargePagesUnsupported indicates the platform has no large-page mapping.
	ErrLargePagesUnsupported = errors.New("osmem: large pages unsupported")

	// ErrUnsupported indicates the platform has no anonymous mapping support at all.
	ErrUnsupported = errors.New("osmem: unsupported platform")
)

// maxMapSize keeps rounded sizes clear of uintptr overflow and of the int
// length unix.Mmap takes.
const maxMapSize = uintptr(1<<(bitsPerWord-2)) - 1

const bitsPerWord = 32 << (^uintptr(0) >> 63)

// RoundUp rounds n up to a multiple of gran, which must be a power of two.
func RoundUp(n, gran uintptr) uintptr {
	return (n + gran - 1) &^ (gran - 1)
}

// ptrOf turns an OS-returned address into a pointer without tripping vet's
// uintptr conversion check. The memory is not Go heap memory.
func ptrOf(addr uintptr) unsafe.Pointer {
	return *(*unsafe.Pointer)(unsafe.Pointer(&addr))
}
