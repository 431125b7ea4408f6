//go:build windows

package privilege

import (
	"fmt"
	"unsafe"

	"golang.org/x/sys/windows"
)

const lockMemoryName = "SeLockMemoryPrivilege"

// The x/sys wrapper drops the last error when the call succeeds, and a later
// GetLastError sees a value the runtime has already reset. Calling the proc
// directly returns the error set by this very call.
var procAdjustTokenPrivileges = windows.NewLazySystemDLL("advapi32.dll").NewProc("AdjustTokenPrivileges")

type lockMemory struct{}

// LockMemory returns the acquirer for SeLockMemoryPrivilege.
func LockMemory() Acquirer { return lockMemory{} }

func (lockMemory) Acquire() error {
	name, err := windows.UTF16PtrFromString(lockMemoryName)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrLookup, err)
	}

	var luid windows.LUID
	if err := windows.LookupPrivilegeValue(nil, name, &luid); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrLookup, lockMemoryName, err)
	}

	var token windows.Token
	if err := windows.OpenProcessToken(windows.CurrentProcess(), windows.TOKEN_ADJUST_PRIVILEGES, &token); err != nil {
		return fmt.Errorf("%w: %v", ErrOpenToken, err)
	}
	defer token.Close()

	tp := windows.Tokenprivileges{PrivilegeCount: 1}
	tp.Privileges[0] = windows.LUIDAndAttributes{Luid: luid, Attributes: windows.SE_PRIVILEGE_ENABLED}

	if err := procAdjustTokenPrivileges.Find(); err != nil {
		return fmt.Errorf("%w: %v", ErrAdjust, err)
	}
	r1, _, lastErr := procAdjustTokenPrivileges.Call(
		uintptr(token),
		0, // DisableAllPrivileges
		uintptr(unsafe.Pointer(&tp)),
		uintptr(unsafe.Sizeof(tp)),
		0,
		0,
	)
	return adjustResult(r1, lastErr)
}
