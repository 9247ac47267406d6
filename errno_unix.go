//go:build linux || darwin

package uart

import (
	"errors"

	"golang.org/x/sys/unix"
)

func kindOfSystemError(err error) (Kind, bool) {
	var errno unix.Errno
	if !errors.As(err, &errno) {
		return KindInvalid, false
	}
	switch errno {
	case unix.ENOENT:
		return KindNotFound, true
	case unix.EBADF:
		return KindBadHandle, true
	case unix.EPERM:
		return KindNotPermitted, true
	case unix.EACCES:
		return KindAccess, true
	case unix.EAGAIN:
		return KindAgain, true
	case unix.ECANCELED:
		return KindCanceled, true
	case unix.EIO:
		return KindIO, true
	case unix.EINTR:
		return KindInterrupted, true
	case unix.ENOTTY:
		return KindNotTTY, true
	}
	return KindInvalid, true
}
