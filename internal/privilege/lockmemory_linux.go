//go:build linux

package privilege

import (
	"fmt"

	"github.com/prometheus/procfs"
	"golang.org/x/sys/unix"
)

// lockMemory maps the privilege steps onto linux: the huge page size stands
// in for the privilege identifier, RLIMIT_MEMLOCK for the process token.
type lockMemory struct {
	fs func() (procfs.FS, error)
}

// LockMemory returns the acquirer that raises RLIMIT_MEMLOCK and checks the
// kernel's huge page reservation.
func LockMemory() Acquirer { return lockMemory{fs: procfs.NewDefaultFS} }

func (l lockMemory) Acquire() error {
	fs, err := l.fs()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrLookup, err)
	}
	mi, err := fs.Meminfo()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrLookup, err)
	}
	if mi.Hugepagesize == nil || *mi.Hugepagesize == 0 {
		return fmt.Errorf("%w: no Hugepagesize in meminfo", ErrLookup)
	}

	var lim unix.Rlimit
	if err := unix.Getrlimit(unix.RLIMIT_MEMLOCK, &lim); err != nil {
		return fmt.Errorf("%w: %v", ErrOpenToken, err)
	}

	if lim.Cur < lim.Max {
		lim.Cur = lim.Max
		if err := unix.Setrlimit(unix.RLIMIT_MEMLOCK, &lim); err != nil {
			return fmt.Errorf("%w: %v", ErrAdjust, err)
		}
	}

	if mi.HugePagesTotal == nil || *mi.HugePagesTotal == 0 {
		return ErrNotAllAssigned
	}
	return nil
}
