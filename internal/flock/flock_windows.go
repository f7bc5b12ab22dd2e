//go:build windows

package flock

import "golang.org/x/sys/windows"

// The lock covers the first byte of the file, which is enough for a lock
// file nobody writes to.
const (
	lockedBytesLow  = 1
	lockedBytesHigh = 0
)

// Exclusive takes a non-blocking exclusive LockFileEx lock on fd. It fails
// at once when another handle holds the lock.
func Exclusive(fd uintptr) error {
	flags := uint32(windows.LOCKFILE_EXCLUSIVE_LOCK | windows.LOCKFILE_FAIL_IMMEDIATELY)
	return windows.LockFileEx(windows.Handle(fd), flags, 0, lockedBytesLow, lockedBytesHigh, new(windows.Overlapped))
}

// Unlock drops the lock on fd.
func Unlock(fd uintptr) error {
	return windows.UnlockFileEx(windows.Handle(fd), 0, lockedBytesLow, lockedBytesHigh, new(windows.Overlapped))
}
