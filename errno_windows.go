//go:build windows

package uart

import (
	"errors"

	"golang.org/x/sys/windows"
)

func kindOfSystemError(err error) (Kind, bool) {
	var errno windows.Errno
	if !errors.As(err, &errno) {
		return KindInvalid, false
	}
	switch errno {
	case windows.ERROR_FILE_NOT_FOUND:
		return KindNotFound, true
	case windows.ERROR_INVALID_HANDLE:
		return KindBadHandle, true
	case windows.ERROR_ACCESS_DENIED:
		return KindAccess, true
	case windows.ERROR_OPERATION_ABORTED:
		return KindAgain, true
	case windows.ERROR_CANCELLED:
		return KindCanceled, true
	}
	return KindInvalid, true
}
