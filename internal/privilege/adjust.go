package privilege

import (
	"errors"
	"fmt"
	"syscall"
)

// errorNotAllAssigned is ERROR_NOT_ALL_ASSIGNED (1300). AdjustTokenPrivileges
// returns success with this last error when some privileges were not held.
const errorNotAllAssigned syscall.Errno = 1300

// adjustResult interprets the return value of AdjustTokenPrivileges together
// with the last error captured by the same call.
func adjustResult(r1 uintptr, lastErr error) error {
	if r1 == 0 {
		return fmt.Errorf("%w: %v", ErrAdjust, lastErr)
	}
	if errors.Is(lastErr, errorNotAllAssigned) {
		return ErrNotAllAssigned
	}
	return nil
}
