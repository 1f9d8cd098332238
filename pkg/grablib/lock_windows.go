//go:build windows

package grablib

import (
	"os"

	"golang.org/x/sys/windows"
)

func lockRange(f *os.File, start, length int64) error {
	ol := &windows.Overlapped{
		Offset:     uint32(start),
		OffsetHigh: uint32(start >> 32),
	}
	return windows.LockFileEx(windows.Handle(f.Fd()), windows.LOCKFILE_EXCLUSIVE_LOCK,
		0, uint32(length), uint32(length>>32), ol)
}

func unlockRange(f *os.File, start, length int64) error {
	ol := &windows.Overlapped{
		Offset:     uint32(start),
		OffsetHigh: uint32(start >> 32),
	}
	return windows.UnlockFileEx(windows.Handle(f.Fd()), 0,
		uint32(length), uint32(length>>32), ol)
}
