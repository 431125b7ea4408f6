//go:build windows

package osmem

import (
	"os"
	"unsafe"

	"golang.org/x/sys/windows"
)

// MEM_LARGE_PAGES allocation type for VirtualAlloc.
const memLargePages = 0x20000000

var procGetLargePageMinimum = windows.NewLazySystemDLL("kernel32.dll").NewProc("GetLargePageMinimum")

type windowsBackend struct {
	pageSize  uintptr
	largePage uintptr
}

var native = newWindowsBackend()

// Native returns the process-wide backend for this platform.
func Native() Backend { return native }

// New returns a backend equivalent to Native; the OS keeps the bookkeeping.
func New() Backend { return newWindowsBackend() }

func newWindowsBackend() *windowsBackend {
	return &windowsBackend{
		pageSize:  uintptr(os.Getpagesize()),
		largePage: largePageMinimum(),
	}
}

func largePageMinimum() uintptr {
	if procGetLargePageMinimum.Find() != nil {
		return 0
	}
	n, _, _ := procGetLargePageMinimum.Call()
	return n
}

func (b *windowsBackend) PageSize() uintptr      { return b.pageSize }
func (b *windowsBackend) LargePageSize() uintptr { return b.largePage }

func (b *windowsBackend) Map(size uintptr, large bool) (unsafe.Pointer, error) {
	if size == 0 || size > maxMapSize {
		return nil, &Error{Op: "map", Err: ErrInvalidSize}
	}

	allocType := uint32(windows.MEM_RESERVE | windows.MEM_COMMIT)
	gran := b.pageSize
	if large {
		if b.largePage == 0 {
			return nil, &Error{Op: "map", Err: ErrLargePagesUnsupported}
		}
		allocType |= memLargePages
		gran = b.largePage
	}

	addr, err := windows.VirtualAlloc(0, RoundUp(size, gran), allocType, windows.PAGE_READWRITE)
	if err != nil {
		return nil, &Error{Op: "VirtualAlloc", Err: err}
	}
	return ptrOf(addr), nil
}

func (b *windowsBackend) Unmap(p unsafe.Pointer) error {
	if p == nil {
		return &Error{Op: "VirtualFree", Err: ErrNotMapped}
	}
	if err := windows.VirtualFree(uintptr(p), 0, windows.MEM_RELEASE); err != nil {
		return &Error{Op: "VirtualFree", Err: err}
	}
	return nil
}

// Query asks VirtualQuery about p, then about the allocation base so the size
// covers the whole committed region rather than the tail after p.
func (b *windowsBackend) Query(p unsafe.Pointer) (Region, error) {
	if p == nil {
		return Region{}, &Error{Op: "VirtualQuery", Err: ErrNotMapped}
	}

	var mbi windows.MemoryBasicInformation
	if err := windows.VirtualQuery(uintptr(p), &mbi, unsafe.Sizeof(mbi)); err != nil {
		return Region{}, &Error{Op: "VirtualQuery", Err: err}
	}
	if mbi.State != windows.MEM_COMMIT || mbi.AllocationBase == 0 {
		return Region{}, &Error{Op: "VirtualQuery", Err: ErrNotMapped}
	}

	var base windows.MemoryBasicInformation
	if err := windows.VirtualQuery(mbi.AllocationBase, &base, unsafe.Sizeof(base)); err != nil {
		return Region{}, &Error{Op: "VirtualQuery", Err: err}
	}
	return Region{Base: ptrOf(base.BaseAddress), Size: base.RegionSize}, nil
}
