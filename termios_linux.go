package uart

import "golang.org/x/sys/unix"

const (
	ioctlGetTermios = unix.TCGETS
	ioctlSetTermios = unix.TCSETS
)

// getBaudRate converts an integer baud rate to the unix constant
func getBaudRate(rate int) (uint32, bool) {
	switch rate {
	case 50:
		return unix.B50, true
	case 75:
		return unix.B75, true
	case 110:
		return unix.B110, true
	case 134:
		return unix.B134, true
	case 150:
		return unix.B150, true
	case 200:
		return unix.B200, true
	case 300:
		return unix.B300, true
	case 600:
		return unix.B600, true
	case 1200:
		return unix.B1200, true
	case 1800:
		return unix.B1800, true
	case 2400:
		return unix.B2400, true
	case 4800:
		return unix.B4800, true
	case 9600:
		return unix.B9600, true
	case 19200:
		return unix.B19200, true
	case 38400:
		return unix.B38400, true
	case 57600:
		return unix.B57600, true
	case 115200:
		return unix.B115200, true
	case 230400:
		return unix.B230400, true
	case 460800:
		return unix.B460800, true
	case 500000:
		return unix.B500000, true
	case 576000:
		return unix.B576000, true
	case 921600:
		return unix.B921600, true
	case 1000000:
		return unix.B1000000, true
	case 1152000:
		return unix.B1152000, true
	case 1500000:
		return unix.B1500000, true
	case 2000000:
		return unix.B2000000, true
	case 2500000:
		return unix.B2500000, true
	case 3000000:
		return unix.B3000000, true
	case 3500000:
		return unix.B3500000, true
	case 4000000:
		return unix.B4000000, true
	default:
		return 0, false
	}
}

// setStandardSpeed stores a constant rate in termios. For other rates it
// parks the line at B38400 until setCustomSpeed runs.
func setStandardSpeed(t *unix.Termios, rate int) bool {
	speed, ok := getBaudRate(rate)
	if !ok {
		speed = unix.B38400
	}
	t.Cflag = (t.Cflag &^ unix.CBAUD) | speed
	t.Ispeed = speed
	t.Ospeed = speed
	return ok
}

// setCustomSpeed switches the line to an arbitrary rate through termios2.
func setCustomSpeed(fd int, rate int) error {
	t, err := unix.IoctlGetTermios(fd, unix.TCGETS2)
	if err != nil {
		return err
	}
	t.Cflag &^= unix.CBAUD
	t.Cflag |= unix.BOTHER
	t.Ispeed = uint32(rate)
	t.Ospeed = uint32(rate)
	return unix.IoctlSetTermios(fd, unix.TCSETS2, t)
}

func setStickParity(t *unix.Termios, mark bool) error {
	t.Cflag |= unix.PARENB | unix.CMSPAR
	if mark {
		t.Cflag |= unix.PARODD
	} else {
		t.Cflag &^= unix.PARODD
	}
	return nil
}

func clearStickParity(t *unix.Termios) {
	t.Cflag &^= unix.CMSPAR
}

// drainOutput waits until the transmit queue is empty (tcdrain).
func drainOutput(fd int) error {
	return unix.IoctlSetInt(fd, unix.TCSBRK, 1)
}

func flushQueues(fd int, dir Direction) error {
	queue := unix.TCIOFLUSH
	switch dir {
	case DirectionReceive:
		queue = unix.TCIFLUSH
	case DirectionTransmit:
		queue = unix.TCOFLUSH
	}
	return unix.IoctlSetInt(fd, unix.TCFLSH, queue)
}
