//go:build unix

package grablib

import (
	"io"
	"os"

	"golang.org/x/sys/unix"
)

// lockRange takes an exclusive POSIX record lock covering [start, start+len).
func lockRange(f *os.File, start, length int64) error {
	return unix.FcntlFlock(f.Fd(), unix.F_SETLKW, &unix.Flock_t{
		Type:   unix.F_WRLCK,
		Whence: io.SeekStart,
		Start:  start,
		Len:    length,
	})
}

func unlockRange(f *os.File, start, length int64) error {
	return unix.FcntlFlock(f.Fd(), unix.F_SETLK, &unix.Flock_t{
		Type:   unix.F_UNLCK,
		Whence: io.SeekStart,
		Start:  start,
		Len:    length,
	})
}
