package uart

import (
	"errors"
	"time"

	"github.com/rs/zerolog"
)

// ReadBufferSize is the most a single read or notification carries.
const ReadBufferSize = 4096

// EventKind tells what an Event reports.
type EventKind int

const (
	WriteDone EventKind = iota + 1
	ReadDone
	Notification
)

func (k EventKind) String() string {
	switch k {
	case WriteDone:
		return "write_done"
	case ReadDone:
		return "read_done"
	case Notification:
		return "notification"
	default:
		return "unknown"
	}
}

// Event is the completion of a write or read, or an unsolicited
// notification in active mode. Err is nil on success. A notification
// carries either Data or Err.
type Event struct {
	Kind EventKind
	Data []byte
	Err  error
}

// Engine runs the port state machine. It is not safe for concurrent use:
// one goroutine calls its methods, waits on the backend with the Interest
// it reports and feeds the result back through Step.
type Engine struct {
	backend Backend
	h       handle
	events  []Event
	readBuf []byte
	now     func() time.Time
	log     zerolog.Logger
	metrics *Metrics
}

// EngineOption configures an Engine.
type EngineOption func(*Engine)

// WithLogger sets the logger used for port lifecycle messages.
func WithLogger(l zerolog.Logger) EngineOption {
	return func(e *Engine) {
		e.log = l
	}
}

// WithClock replaces time.Now, mostly for tests.
func WithClock(now func() time.Time) EngineOption {
	return func(e *Engine) {
		e.now = now
	}
}

// NewEngine returns an engine with a closed port and the default
// configuration.
func NewEngine(b Backend, opts ...EngineOption) *Engine {
	e := &Engine{
		backend: b,
		h:       handle{config: DefaultConfig()},
		readBuf: make([]byte, ReadBufferSize),
		now:     time.Now,
		log:     zerolog.Nop(),
		metrics: &Metrics{},
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Metrics returns the engine's counters.
func (e *Engine) Metrics() *Metrics {
	return e.metrics
}

// IsOpen reports whether a port is open.
func (e *Engine) IsOpen() bool {
	return e.h.open
}

// LastError returns the error that last closed the port, if any.
func (e *Engine) LastError() error {
	return e.h.lastErr
}

// Configuration returns the stored configuration. It is kept across
// closes and is the base that option lists are merged onto.
func (e *Engine) Configuration() Config {
	return e.h.config
}

// Events returns and clears the queued events in the order they happened.
func (e *Engine) Events() []Event {
	ev := e.events
	e.events = nil
	return ev
}

func (e *Engine) emit(ev Event) {
	if ev.Kind == Notification {
		e.metrics.Notifications.Inc()
	}
	e.events = append(e.events, ev)
}

// Open opens name with cfg. A port that is already open is closed first.
// The stored configuration only changes when the open succeeds.
func (e *Engine) Open(name string, cfg Config) error {
	if err := cfg.Validate(); err != nil {
		return opError("open", err)
	}
	if e.h.open {
		e.Close()
	}

	if err := e.backend.Open(name, cfg); err != nil {
		e.metrics.OpenFailures.Inc()
		e.log.Debug().Err(err).Str("port", name).Msg("open failed")
		return err
	}

	e.metrics.Opens.Inc()
	e.h.open = true
	e.h.name = name
	e.h.config = cfg
	e.h.lastErr = nil
	e.log.Info().Str("port", name).Stringer("config", cfg).Msg("port opened")
	return nil
}

// Configure applies cfg to the open port, or just stores it when the port
// is closed. Switching between active and passive mode with a read pending
// is a fatal error.
func (e *Engine) Configure(cfg Config) error {
	if err := cfg.Validate(); err != nil {
		return opError("configure", err)
	}
	if e.h.read != nil && cfg.Active != e.h.config.Active {
		return fatalf("mode change with a read pending")
	}
	if e.h.open {
		if err := e.backend.Configure(cfg); err != nil {
			return err
		}
	}
	e.h.config = cfg
	e.log.Debug().Stringer("config", cfg).Msg("configured")
	return nil
}

// Close cancels pending operations and closes the port. Closing a closed
// port does nothing.
func (e *Engine) Close() {
	e.cancelPending()
	if !e.h.open {
		return
	}
	if err := e.backend.Close(); err != nil {
		e.log.Warn().Err(err).Str("port", e.h.name).Msg("close failed")
	}
	e.h.open = false
	e.log.Info().Str("port", e.h.name).Msg("port closed")
}

// Shutdown discards both queues and closes the port.
func (e *Engine) Shutdown() {
	if e.h.open {
		e.backend.Flush(DirectionBoth)
	}
	e.Close()
	e.log.Debug().Object("metrics", e.metrics.Snapshot()).Msg("engine stopped")
}

func (e *Engine) cancelPending() {
	if e.h.write != nil {
		e.cancelInflightWrite()
		e.h.write = nil
		e.metrics.Cancellations.Inc()
		e.emit(Event{Kind: WriteDone, Err: ErrCanceled})
	}
	if e.h.read != nil {
		e.h.read = nil
		e.metrics.Cancellations.Inc()
		e.emit(Event{Kind: ReadDone, Err: ErrCanceled})
	}
}

func (e *Engine) cancelInflightWrite() {
	if c, ok := e.backend.(writeCanceler); ok {
		c.CancelWrite()
	}
}

// closeOnError closes the port after an I/O failure. In active mode the
// host has no request to receive the error on, so it gets a notification.
func (e *Engine) closeOnError(err error) {
	e.h.lastErr = err
	e.metrics.ErrorCloses.Inc()
	e.log.Warn().Err(err).Str("port", e.h.name).Msg("closing port after error")
	e.Close()
	if e.h.active() {
		e.emit(Event{Kind: Notification, Err: err})
	}
}

// Write starts writing data. The result arrives as a WriteDone event,
// possibly in this call. A zero timeout gives up as soon as the port
// would block, a negative one waits forever.
func (e *Engine) Write(data []byte, timeout time.Duration) error {
	if e.h.write != nil {
		return fatalf("write issued while a write is pending")
	}
	if !e.h.open {
		e.emit(Event{Kind: WriteDone, Err: ErrPortClosed})
		return nil
	}
	if len(data) == 0 {
		e.emit(Event{Kind: WriteDone})
		return nil
	}

	n, err := e.backend.Write(data)
	if err != nil && !errors.Is(err, ErrWouldBlock) {
		e.emit(Event{Kind: WriteDone, Err: err})
		e.closeOnError(err)
		return nil
	}
	e.metrics.BytesWritten.Add(int64(n))
	if n == len(data) {
		e.emit(Event{Kind: WriteDone})
		return nil
	}

	if timeout == 0 {
		e.cancelInflightWrite()
		e.metrics.WriteTimeouts.Inc()
		e.emit(Event{Kind: WriteDone, Err: ErrTimeout})
		return nil
	}

	e.h.write = &pendingWrite{
		buf:      data,
		offset:   n,
		deadline: deadlineFor(e.now(), timeout),
	}
	return nil
}

// Read asks for whatever the port has received. Only valid in passive
// mode. With nothing buffered, a zero timeout completes at once with no
// data and any other timeout waits for bytes or the deadline.
func (e *Engine) Read(timeout time.Duration) error {
	if e.h.read != nil {
		return fatalf("read issued while a read is pending")
	}
	if !e.h.open {
		e.emit(Event{Kind: ReadDone, Err: ErrPortClosed})
		return nil
	}
	if e.h.active() {
		e.emit(Event{Kind: ReadDone, Err: &Error{Op: "read", Kind: KindInvalid, Err: ErrActiveRead}})
		return nil
	}

	n, err := e.backend.Read(e.readBuf)
	switch {
	case err == nil && n > 0:
		e.metrics.BytesRead.Add(int64(n))
		e.emit(Event{Kind: ReadDone, Data: e.received(n)})
		return nil
	case err != nil && !errors.Is(err, ErrWouldBlock):
		e.emit(Event{Kind: ReadDone, Err: err})
		e.closeOnError(err)
		return nil
	}

	if timeout == 0 {
		e.emit(Event{Kind: ReadDone, Data: []byte{}})
		return nil
	}
	e.h.read = &pendingRead{deadline: deadlineFor(e.now(), timeout)}
	return nil
}

func (e *Engine) received(n int) []byte {
	data := make([]byte, n)
	copy(data, e.readBuf[:n])
	return data
}

// Drain blocks until everything written has been transmitted.
func (e *Engine) Drain() error {
	if e.h.write != nil {
		return fatalf("drain issued while a write is pending")
	}
	if !e.h.open {
		return ErrPortClosed
	}
	return e.backend.Drain()
}

// Flush discards queued data in dir.
func (e *Engine) Flush(dir Direction) error {
	if e.h.read != nil {
		return fatalf("flush issued while a read is pending")
	}
	if !e.h.open {
		return ErrPortClosed
	}
	return e.backend.Flush(dir)
}

func (e *Engine) SetRTS(on bool) error {
	if !e.h.open {
		return ErrPortClosed
	}
	return e.backend.SetRTS(on)
}

func (e *Engine) SetDTR(on bool) error {
	if !e.h.open {
		return ErrPortClosed
	}
	return e.backend.SetDTR(on)
}

func (e *Engine) SetBreak(on bool) error {
	if !e.h.open {
		return ErrPortClosed
	}
	return e.backend.SetBreak(on)
}

func (e *Engine) Signals() (Signals, error) {
	if !e.h.open {
		return Signals{}, ErrPortClosed
	}
	return e.backend.Signals()
}

// Interest returns what to wait for on the port and for how long. The
// duration is -1 when nothing has a deadline.
func (e *Engine) Interest(now time.Time) (Interest, time.Duration) {
	var in Interest
	timeout := time.Duration(-1)
	if !e.h.open {
		return in, timeout
	}
	if w := e.h.write; w != nil {
		in.Write = true
		timeout = earliest(timeout, remaining(now, w.deadline))
	}
	if r := e.h.read; r != nil {
		in.Read = true
		timeout = earliest(timeout, remaining(now, r.deadline))
	}
	if e.h.active() {
		in.Read = true
	}
	return in, timeout
}

// Step continues pending work after a Wait. It resumes the pending write,
// then reads when data may be available or a read deadline has passed.
func (e *Engine) Step(ready Readiness) {
	if !e.h.open {
		return
	}
	now := e.now()
	if w := e.h.write; w != nil && (ready.Writable || ready.Hangup || expired(now, w.deadline)) {
		e.resumeWrite(now)
	}
	if !e.h.open {
		return
	}
	r := e.h.read
	if r == nil && !e.h.active() {
		return
	}
	if ready.Readable || ready.Hangup || (r != nil && expired(now, r.deadline)) {
		e.resumeRead(now)
	}
}

func (e *Engine) resumeWrite(now time.Time) {
	w := e.h.write
	n, err := e.backend.Write(w.remaining())
	switch {
	case err == nil:
		e.metrics.BytesWritten.Add(int64(n))
		w.offset += n
		if w.offset == len(w.buf) {
			e.h.write = nil
			e.emit(Event{Kind: WriteDone})
			return
		}
	case !errors.Is(err, ErrWouldBlock):
		e.h.write = nil
		e.emit(Event{Kind: WriteDone, Err: err})
		e.closeOnError(err)
		return
	}

	if expired(now, w.deadline) {
		e.cancelInflightWrite()
		e.h.write = nil
		e.metrics.WriteTimeouts.Inc()
		e.emit(Event{Kind: WriteDone, Err: ErrTimeout})
	}
}

func (e *Engine) resumeRead(now time.Time) {
	n, err := e.backend.Read(e.readBuf)
	switch {
	case err == nil && n > 0:
		e.metrics.BytesRead.Add(int64(n))
		data := e.received(n)
		if e.h.read != nil {
			e.h.read = nil
			e.emit(Event{Kind: ReadDone, Data: data})
		} else {
			e.emit(Event{Kind: Notification, Data: data})
		}
	case err == nil:
		// Readable with nothing to read is a hang-up
		e.failRead(opError("read", ErrHangup))
	case errors.Is(err, ErrWouldBlock):
		if r := e.h.read; r != nil && expired(now, r.deadline) {
			e.h.read = nil
			e.metrics.ReadTimeouts.Inc()
			e.emit(Event{Kind: ReadDone, Data: []byte{}})
		}
	default:
		e.failRead(err)
	}
}

func (e *Engine) failRead(err error) {
	if e.h.read != nil {
		e.h.read = nil
		e.emit(Event{Kind: ReadDone, Err: err})
	}
	e.closeOnError(err)
}
