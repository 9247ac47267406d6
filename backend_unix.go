//go:build linux || darwin

package uart

import (
	"fmt"
	"math"
	"strings"
	"time"

	"golang.org/x/sys/unix"
)

// termiosBackend drives a tty through termios and ioctl calls on a
// nonblocking file descriptor.
type termiosBackend struct {
	fd    int
	wakeR int
	wakeW int
}

var _ Backend = (*termiosBackend)(nil)

// NewBackend returns the termios backend. The self-pipe used by Wake is
// created here and lives until Release.
func NewBackend() (Backend, error) {
	p := make([]int, 2)
	if err := unix.Pipe(p); err != nil {
		return nil, opError("pipe", err)
	}
	for _, fd := range p {
		unix.CloseOnExec(fd)
		if err := unix.SetNonblock(fd, true); err != nil {
			unix.Close(p[0])
			unix.Close(p[1])
			return nil, opError("pipe", err)
		}
	}
	return &termiosBackend{fd: -1, wakeR: p[0], wakeW: p[1]}, nil
}

// devicePath turns "ttyS0" into "/dev/ttyS0". Absolute and relative paths
// are used as given.
func devicePath(name string) string {
	if strings.HasPrefix(name, "/") || strings.HasPrefix(name, ".") {
		return name
	}
	return "/dev/" + name
}

func (b *termiosBackend) Open(name string, cfg Config) error {
	if b.fd >= 0 {
		b.Close()
	}
	path := devicePath(name)

	fd, err := unix.Open(path, unix.O_RDWR|unix.O_NOCTTY|unix.O_CLOEXEC|unix.O_NONBLOCK, 0)
	if err != nil {
		return opError("open "+path, err)
	}

	// Keep other processes from sharing the port by accident
	if err := unix.Flock(fd, unix.LOCK_EX|unix.LOCK_NB); err != nil {
		unix.Close(fd)
		return opError("lock "+path, err)
	}

	if err := configurePort(fd, cfg); err != nil {
		unix.Close(fd)
		return err
	}

	// Clear garbage left in the queues
	flushQueues(fd, DirectionBoth)

	b.fd = fd
	return nil
}

func (b *termiosBackend) Configure(cfg Config) error {
	if b.fd < 0 {
		return ErrPortClosed
	}
	return configurePort(b.fd, cfg)
}

// configurePort applies line settings and flow control in a single termios
// update, then switches to a custom speed when the rate has no constant.
func configurePort(fd int, cfg Config) error {
	termios, err := unix.IoctlGetTermios(fd, ioctlGetTermios)
	if err != nil {
		return opError("get termios", err)
	}

	custom := !setStandardSpeed(termios, cfg.Speed)

	// Data bits
	termios.Cflag &^= unix.CSIZE
	switch cfg.DataBits {
	case 5:
		termios.Cflag |= unix.CS5
	case 6:
		termios.Cflag |= unix.CS6
	case 7:
		termios.Cflag |= unix.CS7
	default:
		termios.Cflag |= unix.CS8
	}

	// Stop bits
	if cfg.StopBits == 2 {
		termios.Cflag |= unix.CSTOPB
	} else {
		termios.Cflag &^= unix.CSTOPB
	}

	// Parity
	termios.Iflag &^= unix.IGNPAR | unix.ISTRIP
	switch cfg.Parity {
	case ParityNone:
		termios.Cflag &^= unix.PARENB | unix.PARODD
		clearStickParity(termios)
	case ParityOdd:
		termios.Cflag |= unix.PARENB | unix.PARODD
		clearStickParity(termios)
	case ParityEven:
		termios.Cflag |= unix.PARENB
		termios.Cflag &^= unix.PARODD
		clearStickParity(termios)
	case ParitySpace, ParityMark:
		if err := setStickParity(termios, cfg.Parity == ParityMark); err != nil {
			return err
		}
	case ParityIgnore:
		termios.Iflag |= unix.IGNPAR | unix.ISTRIP
	default:
		return ErrInvalidConfig
	}

	// Raw mode
	termios.Cflag |= unix.CLOCAL | unix.CREAD
	termios.Oflag = 0
	termios.Lflag = 0
	termios.Iflag &^= unix.ICRNL | unix.INLCR
	termios.Cc[unix.VMIN] = 1
	termios.Cc[unix.VTIME] = 0

	// Flow control
	switch cfg.FlowControl {
	case FlowControlHardware:
		termios.Cflag |= unix.CRTSCTS
		termios.Iflag &^= unix.IXON | unix.IXOFF | unix.IXANY
	case FlowControlSoftware:
		termios.Cflag &^= unix.CRTSCTS
		termios.Iflag |= unix.IXON | unix.IXOFF | unix.IXANY
	default:
		termios.Cflag &^= unix.CRTSCTS
		termios.Iflag &^= unix.IXON | unix.IXOFF | unix.IXANY
	}

	if err := unix.IoctlSetTermios(fd, ioctlSetTermios, termios); err != nil {
		return opError("set termios", err)
	}

	if custom {
		if err := setCustomSpeed(fd, cfg.Speed); err != nil {
			return &Error{
				Op:   "set speed",
				Kind: KindOf(err),
				Err:  fmt.Errorf("%w %d: %v", ErrInvalidBaudRate, cfg.Speed, err),
			}
		}
	}
	return nil
}

func (b *termiosBackend) Close() error {
	if b.fd < 0 {
		return nil
	}
	err := unix.Close(b.fd)
	b.fd = -1
	return opError("close", err)
}

func (b *termiosBackend) Write(p []byte) (int, error) {
	if b.fd < 0 {
		return 0, ErrPortClosed
	}
	for {
		n, err := unix.Write(b.fd, p)
		switch {
		case err == unix.EINTR:
			continue
		case err == unix.EAGAIN:
			return 0, ErrWouldBlock
		case err != nil:
			return 0, opError("write", err)
		}
		return n, nil
	}
}

func (b *termiosBackend) Read(p []byte) (int, error) {
	if b.fd < 0 {
		return 0, ErrPortClosed
	}
	for {
		n, err := unix.Read(b.fd, p)
		switch {
		case err == unix.EINTR:
			continue
		case err == unix.EAGAIN:
			return 0, ErrWouldBlock
		case err != nil:
			return 0, opError("read", err)
		}
		return n, nil
	}
}

func (b *termiosBackend) Drain() error {
	if b.fd < 0 {
		return ErrPortClosed
	}
	return opError("drain", drainOutput(b.fd))
}

func (b *termiosBackend) Flush(dir Direction) error {
	if b.fd < 0 {
		return ErrPortClosed
	}
	return opError("flush", flushQueues(b.fd, dir))
}

func (b *termiosBackend) SetRTS(on bool) error {
	return b.setModemBit(unix.TIOCM_RTS, on)
}

func (b *termiosBackend) SetDTR(on bool) error {
	return b.setModemBit(unix.TIOCM_DTR, on)
}

func (b *termiosBackend) setModemBit(bit int, on bool) error {
	if b.fd < 0 {
		return ErrPortClosed
	}
	req := uint(unix.TIOCMBIC)
	if on {
		req = unix.TIOCMBIS
	}
	return opError("set modem line", unix.IoctlSetPointerInt(b.fd, req, bit))
}

func (b *termiosBackend) SetBreak(on bool) error {
	if b.fd < 0 {
		return ErrPortClosed
	}
	req := uint(unix.TIOCCBRK)
	if on {
		req = unix.TIOCSBRK
	}
	return opError("set break", unix.IoctlSetInt(b.fd, req, 0))
}

func (b *termiosBackend) Signals() (Signals, error) {
	if b.fd < 0 {
		return Signals{}, ErrPortClosed
	}
	status, err := unix.IoctlGetInt(b.fd, unix.TIOCMGET)
	if err != nil {
		return Signals{}, opError("get modem lines", err)
	}
	return Signals{
		DSR: status&(unix.TIOCM_LE|unix.TIOCM_DSR) != 0,
		DTR: status&unix.TIOCM_DTR != 0,
		RTS: status&unix.TIOCM_RTS != 0,
		ST:  status&unix.TIOCM_ST != 0,
		SR:  status&unix.TIOCM_SR != 0,
		CTS: status&unix.TIOCM_CTS != 0,
		CD:  status&(unix.TIOCM_CAR|unix.TIOCM_CD) != 0,
		RNG: status&(unix.TIOCM_RNG|unix.TIOCM_RI) != 0,
	}, nil
}

func (b *termiosBackend) Wait(interest Interest, timeout time.Duration) (Readiness, error) {
	var r Readiness

	fds := []unix.PollFd{{Fd: int32(b.wakeR), Events: unix.POLLIN}}
	if b.fd >= 0 && interest.Any() {
		var events int16
		if interest.Read {
			events |= unix.POLLIN
		}
		if interest.Write {
			events |= unix.POLLOUT
		}
		fds = append(fds, unix.PollFd{Fd: int32(b.fd), Events: events})
	}

	_, err := unix.Poll(fds, pollTimeout(timeout))
	if err == unix.EINTR {
		return r, nil
	}
	if err != nil {
		return r, opError("poll", err)
	}

	if fds[0].Revents&unix.POLLIN != 0 {
		r.Woken = true
		b.drainWake()
	}
	if len(fds) > 1 {
		rev := fds[1].Revents
		r.Readable = rev&unix.POLLIN != 0
		r.Writable = rev&unix.POLLOUT != 0
		r.Hangup = rev&(unix.POLLHUP|unix.POLLERR) != 0
	}
	return r, nil
}

// pollTimeout converts to poll(2) milliseconds, rounding up so a deadline
// is never reported early. Waits past the int32 range become infinite.
func pollTimeout(d time.Duration) int {
	if d < 0 {
		return -1
	}
	ms := (d + time.Millisecond - 1) / time.Millisecond
	if ms > math.MaxInt32 {
		return -1
	}
	return int(ms)
}

func (b *termiosBackend) Wake() error {
	_, err := unix.Write(b.wakeW, []byte{1})
	if err == unix.EAGAIN {
		// Pipe already full, a wakeup is pending
		return nil
	}
	return opError("wake", err)
}

func (b *termiosBackend) drainWake() {
	var buf [64]byte
	for {
		n, err := unix.Read(b.wakeR, buf[:])
		if n <= 0 || err != nil {
			return
		}
	}
}

func (b *termiosBackend) Release() error {
	b.Close()
	unix.Close(b.wakeR)
	unix.Close(b.wakeW)
	return nil
}
