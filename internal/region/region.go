// Package region maps and releases whole memory regions for the allocator and
// answers how much memory the OS actually committed for one of them.
//
// The mapper reports failures as sentinels (nil, false, Unknown) rather than
// errors; the reason is logged at debug level.
package region

import (
	"unsafe"

	"github.com/joshuapare/memkit/internal/logger"
	"github.com/joshuapare/memkit/internal/osmem"
)

// Unknown is returned by QueryCommittedSize for pointers outside any live
// mapping. Callers must not adjust accounting with it.
const Unknown int64 = -1

// Mapper maps regions through an OS backend. It keeps no per-region state.
type Mapper struct {
	os osmem.Backend
}

// New returns a mapper over b.
func New(b osmem.Backend) *Mapper {
	return &Mapper{os: b}
}

// Default returns a mapper over the platform's native backend.
func Default() *Mapper {
	return New(osmem.Native())
}

// Map reserves and commits at least size bytes. largePages asks for large
// page backing; the caller is responsible for holding the privilege first.
func (m *Mapper) Map(size uintptr, largePages bool) unsafe.Pointer {
	p, err := m.os.Map(size, largePages)
	if err != nil {
		logger.Debug("map region failed", "size", size, "large", largePages, "error", err)
		return nil
	}
	return p
}

// Unmap releases the region based at p.
func (m *Mapper) Unmap(p unsafe.Pointer) bool {
	if err := m.os.Unmap(p); err != nil {
		logger.Debug("unmap region failed", "ptr", p, "error", err)
		return false
	}
	return true
}

// QueryCommittedSize returns the committed size of the region containing p.
// It can exceed the size passed to Map because of page rounding.
func (m *Mapper) QueryCommittedSize(p unsafe.Pointer) int64 {
	r, err := m.os.Query(p)
	if err != nil {
		return Unknown
	}
	return int64(r.Size)
}

// PageSize returns the granularity of regular mappings.
func (m *Mapper) PageSize() uintptr { return m.os.PageSize() }

// LargePageSize returns the granularity of large-page mappings, or 0.
func (m *Mapper) LargePageSize() uintptr { return m.os.LargePageSize() }
