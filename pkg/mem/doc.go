// Package mem is the public surface of the memory backend.
//
// # Overview
//
// The backend sits under a scalable allocator and supplies what it needs from
// the operating system: mapping and releasing whole regions (optionally on
// large pages), acquiring the lock-memory privilege large pages require, and
// accounting for the bytes the OS actually committed.
//
// The package-level functions operate on a process-wide heap with live
// memory accounting and call counting enabled. They are safe to call from
// any goroutine without further locking.
//
// # Usage Example
//
//	p := mem.Alloc(4096)
//	if p == nil {
//	    return errOutOfMemory
//	}
//	defer mem.Free(p)
//
//	buf := unsafe.Slice((*byte)(p), mem.Size(p))
//	copy(buf, payload)
//
//	fmt.Println(mem.TotalCommitted()) // 4096 on 4 KiB page systems
//
// # Accounting
//
// Every allocation adds the committed size of its region, as reported by the
// OS region query, and every release subtracts it before the region is
// handed back. TotalCommitted and TotalReserved report the same value.
// Pointers the heap does not recognize leave the totals untouched.
//
// # Huge Pages
//
// EnableHugePages acquires the lock-memory privilege once per process. When
// it is granted, later allocations ask for large pages; a refused large-page
// mapping falls back to regular pages without surfacing an error.
//
// # Custom Heaps
//
// New builds a heap with its own reference allocator and a chosen set of
// capabilities:
//
//	h := mem.New(mem.Options{Accounting: true, PrivateCounter: true})
//	p := h.Alloc(1 << 20)
//	h.Free(p)
//	h.FlushCacheAll()
//
// Pointers returned by Alloc and AllocAligned refer to memory outside the Go
// heap. They must be released with the matching Free call and must not be
// used to store Go pointers.
package mem
