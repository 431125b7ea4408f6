//go:build unix && !linux

package osmem

// No MAP_HUGETLB equivalent is exposed through mmap on these systems.
const hugeMapFlags = 0

func hugePageSize() uintptr { return 0 }
