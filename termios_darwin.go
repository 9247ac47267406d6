package uart

import (
	"unsafe"

	"golang.org/x/sys/unix"
)

const (
	ioctlGetTermios = unix.TIOCGETA
	ioctlSetTermios = unix.TIOCSETA

	// _IOW('T', 2, speed_t) from IOKit/serial/ioss.h
	ioctlIOSSIOSPEED = 0x80085402

	flushRead  = 0x1 // FREAD
	flushWrite = 0x2 // FWRITE
)

var standardRates = map[int]bool{
	50: true, 75: true, 110: true, 134: true, 150: true, 200: true,
	300: true, 600: true, 1200: true, 1800: true, 2400: true, 4800: true,
	9600: true, 19200: true, 38400: true, 57600: true, 115200: true,
	230400: true,
}

// setStandardSpeed stores the rate in termios when it is one Darwin
// accepts through tcsetattr. Darwin speed constants equal the rate.
func setStandardSpeed(t *unix.Termios, rate int) bool {
	if !standardRates[rate] {
		return false
	}
	t.Ispeed = uint64(rate)
	t.Ospeed = uint64(rate)
	return true
}

// setCustomSpeed uses IOSSIOSPEED. It must run after the last tcsetattr,
// which resets the speed.
func setCustomSpeed(fd int, rate int) error {
	speed := uint64(rate)
	_, _, errno := unix.Syscall(unix.SYS_IOCTL, uintptr(fd), ioctlIOSSIOSPEED, uintptr(unsafe.Pointer(&speed)))
	if errno != 0 {
		return errno
	}
	return nil
}

// Darwin has no CMSPAR.
func setStickParity(*unix.Termios, bool) error {
	return ErrInvalidConfig
}

func clearStickParity(*unix.Termios) {}

func drainOutput(fd int) error {
	return unix.IoctlSetInt(fd, unix.TIOCDRAIN, 0)
}

func flushQueues(fd int, dir Direction) error {
	which := flushRead | flushWrite
	switch dir {
	case DirectionReceive:
		which = flushRead
	case DirectionTransmit:
		which = flushWrite
	}
	return unix.IoctlSetPointerInt(fd, unix.TIOCFLUSH, which)
}
