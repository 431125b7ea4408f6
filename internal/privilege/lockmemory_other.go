//go:build !linux && !windows

package privilege

type lockMemory struct{}

// LockMemory returns an acquirer that always fails on this platform.
func LockMemory() Acquirer { return lockMemory{} }

func (lockMemory) Acquire() error { return ErrUnsupported }
