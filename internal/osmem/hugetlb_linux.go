//go:build linux

package osmem

import (
	"github.com/prometheus/procfs"
	"golang.org/x/sys/unix"
)

const hugeMapFlags = unix.MAP_HUGETLB

// hugePageSize reads the default huge page size from /proc/meminfo.
func hugePageSize() uintptr {
	fs, err := procfs.NewDefaultFS()
	if err != nil {
		return 0
	}
	mi, err := fs.Meminfo()
	if err != nil || mi.Hugepagesize == nil {
		return 0
	}
	return uintptr(*mi.Hugepagesize) * 1024 // kB
}
