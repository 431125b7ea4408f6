//go:build !unix && !windows

package osmem

import "unsafe"

type unsupportedBackend struct{}

// Native returns a backend that fails every request on this platform.
func Native() Backend { return unsupportedBackend{} }

// New returns the same unsupported backend as Native.
func New() Backend { return unsupportedBackend{} }

func (unsupportedBackend) Map(uintptr, bool) (unsafe.Pointer, error) {
	return nil, &Error{Op: "map", Err: ErrUnsupported}
}

func (unsupportedBackend) Unmap(unsafe.Pointer) error {
	return &Error{Op: "unmap", Err: ErrUnsupported}
}

func (unsupportedBackend) Query(unsafe.Pointer) (Region, error) {
	return Region{}, &Error{Op: "query", Err: ErrUnsupported}
}

func (unsupportedBackend) PageSize() uintptr      { return 4096 }
func (unsupportedBackend) LargePageSize() uintptr { return 0 }
