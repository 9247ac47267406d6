package uart

import "time"

// Interest describes the readiness the engine is waiting for.
type Interest struct {
	Read  bool
	Write bool
}

// Any reports whether there is anything to wait for on the port.
func (i Interest) Any() bool {
	return i.Read || i.Write
}

// Readiness is what a Wait call observed.
type Readiness struct {
	Readable bool
	Writable bool
	Hangup   bool
	Woken    bool // Wake was called
}

// Backend is the platform I/O layer under the engine. One implementation is
// compiled per target OS; NewBackend returns it.
//
// Read and Write never block. Backpressure is reported as ErrWouldBlock. A
// Read returning (0, nil) means the device reported end of file.
type Backend interface {
	Open(name string, cfg Config) error
	Configure(cfg Config) error
	Close() error

	Write(p []byte) (int, error)
	Read(p []byte) (int, error)
	Drain() error
	Flush(dir Direction) error

	SetRTS(on bool) error
	SetDTR(on bool) error
	SetBreak(on bool) error
	Signals() (Signals, error)

	// Wait blocks until the open port satisfies interest, Wake is called or
	// timeout passes. A negative timeout waits forever.
	Wait(interest Interest, timeout time.Duration) (Readiness, error)
	// Wake interrupts a concurrent or the next Wait. Safe from any goroutine.
	Wake() error
	// Release frees resources that outlive individual ports.
	Release() error
}

// writeCanceler is implemented by backends whose writes stay in flight in
// the OS after the engine gives up on them.
type writeCanceler interface {
	CancelWrite() error
}
