// Package uarttest provides an in-memory uart.Backend for engine tests and
// for tests that run the driver loop on another goroutine.
package uarttest

import (
	"sync"
	"time"

	"github.com/allbin/go-uart"
)

// Backend simulates a serial device. Ports lists the names that can be
// opened; when it is empty every name opens.
type Backend struct {
	Ports []string

	mu       sync.Mutex
	open     bool
	name     string
	cfg      uart.Config
	rx       []byte
	tx       []byte
	blocked  bool
	limits   []int
	writeErr error
	canceled int
	openErr  error
	cfgErr   error
	readErr  error
	hangup   bool
	signals  uart.Signals
	brk      bool
	drains   int
	flushes  []uart.Direction
	released bool

	wake chan struct{}
}

var _ uart.Backend = (*Backend)(nil)

func New(ports ...string) *Backend {
	return &Backend{Ports: ports, wake: make(chan struct{}, 1)}
}

func (b *Backend) Open(name string, cfg uart.Config) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.openErr != nil {
		return b.openErr
	}
	known := len(b.Ports) == 0
	for _, p := range b.Ports {
		if p == name {
			known = true
		}
	}
	if !known {
		return &uart.Error{Op: "open " + name, Kind: uart.KindNotFound, Err: uart.ErrDeviceNotFound}
	}
	b.open = true
	b.name = name
	b.cfg = cfg
	b.hangup = false
	b.readErr = nil
	return nil
}

func (b *Backend) Configure(cfg uart.Config) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.cfgErr != nil {
		return b.cfgErr
	}
	b.cfg = cfg
	return nil
}

func (b *Backend) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.open = false
	return nil
}

func (b *Backend) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.open {
		return 0, uart.ErrPortClosed
	}
	if b.writeErr != nil {
		return 0, b.writeErr
	}
	if b.blocked {
		return 0, uart.ErrWouldBlock
	}
	n := len(p)
	if len(b.limits) > 0 {
		n = min(b.limits[0], len(p))
		b.limits = b.limits[1:]
		if n == 0 {
			return 0, uart.ErrWouldBlock
		}
	}
	b.tx = append(b.tx, p[:n]...)
	return n, nil
}

func (b *Backend) CancelWrite() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.canceled++
	return nil
}

func (b *Backend) Read(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.open {
		return 0, uart.ErrPortClosed
	}
	if b.readErr != nil {
		return 0, b.readErr
	}
	if len(b.rx) > 0 {
		n := copy(p, b.rx)
		b.rx = b.rx[n:]
		return n, nil
	}
	if b.hangup {
		return 0, nil
	}
	return 0, uart.ErrWouldBlock
}

func (b *Backend) Drain() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.drains++
	return nil
}

func (b *Backend) Flush(dir uart.Direction) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.flushes = append(b.flushes, dir)
	if dir != uart.DirectionTransmit {
		b.rx = nil
	}
	return nil
}

func (b *Backend) SetRTS(on bool) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.signals.RTS = on
	return nil
}

func (b *Backend) SetDTR(on bool) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.signals.DTR = on
	return nil
}

func (b *Backend) SetBreak(on bool) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.brk = on
	return nil
}

func (b *Backend) Signals() (uart.Signals, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.signals, nil
}

func (b *Backend) ready(interest uart.Interest) uart.Readiness {
	b.mu.Lock()
	defer b.mu.Unlock()
	var r uart.Readiness
	if !b.open {
		return r
	}
	r.Readable = interest.Read && (len(b.rx) > 0 || b.readErr != nil)
	r.Writable = interest.Write && !b.blocked && (len(b.limits) == 0 || b.limits[0] > 0)
	r.Hangup = b.hangup && interest.Any()
	return r
}

func (b *Backend) Wait(interest uart.Interest, timeout time.Duration) (uart.Readiness, error) {
	if r := b.ready(interest); r.Readable || r.Writable || r.Hangup {
		return r, nil
	}

	var expire <-chan time.Time
	if timeout >= 0 {
		t := time.NewTimer(timeout)
		defer t.Stop()
		expire = t.C
	}
	select {
	case <-b.wake:
		r := b.ready(interest)
		r.Woken = true
		return r, nil
	case <-expire:
		return b.ready(interest), nil
	}
}

func (b *Backend) Wake() error {
	select {
	case b.wake <- struct{}{}:
	default:
	}
	return nil
}

func (b *Backend) Release() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.released = true
	return nil
}

// Receive queues bytes as if they arrived on the line.
func (b *Backend) Receive(data []byte) {
	b.mu.Lock()
	b.rx = append(b.rx, data...)
	b.mu.Unlock()
	b.Wake()
}

// Fail makes the next read return err.
func (b *Backend) Fail(err error) {
	b.mu.Lock()
	b.readErr = err
	b.mu.Unlock()
	b.Wake()
}

// HangUp simulates the device disappearing.
func (b *Backend) HangUp() {
	b.mu.Lock()
	b.hangup = true
	b.mu.Unlock()
	b.Wake()
}

// Block makes writes report backpressure until it is called with false.
func (b *Backend) Block(blocked bool) {
	b.mu.Lock()
	b.blocked = blocked
	b.mu.Unlock()
	b.Wake()
}

// LimitWrites sets how much each successive write accepts. A zero entry
// reports backpressure; once the list is used up writes take everything.
func (b *Backend) LimitWrites(limits ...int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.limits = limits
}

// FailWrites makes every write return err.
func (b *Backend) FailWrites(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.writeErr = err
}

// FailOpen makes Open return err.
func (b *Backend) FailOpen(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.openErr = err
}

// FailConfigure makes Configure return err.
func (b *Backend) FailConfigure(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.cfgErr = err
}

// SetSignals replaces the input line states.
func (b *Backend) SetSignals(s uart.Signals) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.signals = s
}

// Name returns the device name of the last successful open.
func (b *Backend) Name() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.name
}

// Canceled returns how many in-flight writes were abandoned.
func (b *Backend) Canceled() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.canceled
}

// Written returns a copy of everything written so far.
func (b *Backend) Written() []byte {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]byte(nil), b.tx...)
}

// IsOpen reports whether the engine has the port open.
func (b *Backend) IsOpen() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.open
}

// Config returns the last applied configuration.
func (b *Backend) Config() uart.Config {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.cfg
}

// Break reports whether a break condition is being sent.
func (b *Backend) Break() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.brk
}

// Flushes returns the directions flushed so far.
func (b *Backend) Flushes() []uart.Direction {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]uart.Direction(nil), b.flushes...)
}

// Drains returns how many times Drain was called.
func (b *Backend) Drains() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.drains
}
