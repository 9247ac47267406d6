package uart_test

import (
	"bytes"
	"errors"
	"testing"
	"time"

	"github.com/allbin/go-uart"
	"github.com/allbin/go-uart/internal/uarttest"
)

type fakeClock struct {
	t time.Time
}

func (c *fakeClock) now() time.Time { return c.t }

func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestEngine(t *testing.T, active bool) (*uart.Engine, *uarttest.Backend, *fakeClock) {
	t.Helper()
	fb := uarttest.New()
	clock := &fakeClock{t: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	e := uart.NewEngine(fb, uart.WithClock(clock.now))
	cfg := uart.DefaultConfig()
	cfg.Active = active
	if err := e.Open("ttyTEST", cfg); err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	return e, fb, clock
}

func onlyEvent(t *testing.T, e *uart.Engine) uart.Event {
	t.Helper()
	ev := e.Events()
	if len(ev) != 1 {
		t.Fatalf("Events() = %d events (%+v), want 1", len(ev), ev)
	}
	return ev[0]
}

func TestEngineWriteComplete(t *testing.T) {
	e, fb, _ := newTestEngine(t, true)

	if err := e.Write([]byte("hello"), 1000*time.Millisecond); err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	ev := onlyEvent(t, e)
	if ev.Kind != uart.WriteDone || ev.Err != nil {
		t.Errorf("event = %+v, want successful WriteDone", ev)
	}
	if string(fb.Written()) != "hello" {
		t.Errorf("written = %q, want %q", fb.Written(), "hello")
	}
}

func TestEnginePartialWriteResumes(t *testing.T) {
	e, fb, clock := newTestEngine(t, false)
	fb.LimitWrites(40)
	data := bytes.Repeat([]byte{0xA5}, 100)

	if err := e.Write(data, time.Second); err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	if ev := e.Events(); len(ev) != 0 {
		t.Fatalf("events after partial write = %+v, want none", ev)
	}

	in, timeout := e.Interest(clock.now())
	if !in.Write {
		t.Errorf("Interest().Write = false, want true")
	}
	if timeout != time.Second {
		t.Errorf("Interest() timeout = %v, want %v", timeout, time.Second)
	}

	clock.advance(10 * time.Millisecond)
	e.Step(uart.Readiness{Writable: true})
	ev := onlyEvent(t, e)
	if ev.Kind != uart.WriteDone || ev.Err != nil {
		t.Errorf("event = %+v, want successful WriteDone", ev)
	}
	if !bytes.Equal(fb.Written(), data) {
		t.Errorf("written %d bytes, want all %d in order", len(fb.Written()), len(data))
	}
	if got := e.Metrics().BytesWritten.Load(); got != 100 {
		t.Errorf("BytesWritten = %d, want 100", got)
	}
}

func TestEngineWriteZeroTimeoutPartial(t *testing.T) {
	e, fb, _ := newTestEngine(t, false)
	fb.LimitWrites(40)

	if err := e.Write(make([]byte, 100), 0); err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	ev := onlyEvent(t, e)
	if ev.Kind != uart.WriteDone || uart.Reason(ev.Err) != "eagain" {
		t.Errorf("event = %+v, want WriteDone eagain", ev)
	}
	if in, _ := e.Interest(time.Now()); in.Write {
		t.Errorf("write still pending after zero-timeout completion")
	}
}

func TestEngineWriteDeadline(t *testing.T) {
	e, fb, clock := newTestEngine(t, false)
	fb.LimitWrites(0, 0, 0)

	e.Write([]byte("stuck"), 100*time.Millisecond)
	e.Step(uart.Readiness{Writable: true})
	if ev := e.Events(); len(ev) != 0 {
		t.Fatalf("events before deadline = %+v, want none", ev)
	}

	clock.advance(150 * time.Millisecond)
	if _, timeout := e.Interest(clock.now()); timeout != 0 {
		t.Errorf("Interest() timeout after deadline = %v, want 0", timeout)
	}
	e.Step(uart.Readiness{})
	ev := onlyEvent(t, e)
	if ev.Kind != uart.WriteDone || !errors.Is(ev.Err, uart.ErrTimeout) {
		t.Errorf("event = %+v, want WriteDone timeout", ev)
	}
	if fb.Canceled() != 1 {
		t.Errorf("CancelWrite called %d times, want 1", fb.Canceled())
	}
	if got := e.Metrics().WriteTimeouts.Load(); got != 1 {
		t.Errorf("WriteTimeouts = %d, want 1", got)
	}
}

func TestEngineWriteTimeoutBeyondAYear(t *testing.T) {
	e, fb, clock := newTestEngine(t, false)
	fb.LimitWrites(0, 0)

	e.Write([]byte("slow"), 400*24*time.Hour)
	in, timeout := e.Interest(clock.now())
	if !in.Write || timeout < 364*24*time.Hour {
		t.Fatalf("Interest() = %+v, %v, want write interest for about a year", in, timeout)
	}
	e.Step(uart.Readiness{})
	if ev := e.Events(); len(ev) != 0 {
		t.Errorf("events right after write = %+v, want none", ev)
	}

	clock.advance(24 * time.Hour)
	if _, timeout := e.Interest(clock.now()); timeout <= 0 {
		t.Errorf("Interest() timeout a day later = %v, want positive", timeout)
	}
}

func TestEngineWriteError(t *testing.T) {
	e, fb, _ := newTestEngine(t, true)
	fb.FailWrites(&uart.Error{Op: "write", Kind: uart.KindIO, Err: errors.New("device gone")})

	e.Write([]byte("x"), time.Second)
	ev := e.Events()
	if len(ev) != 2 {
		t.Fatalf("Events() = %+v, want WriteDone and notification", ev)
	}
	if ev[0].Kind != uart.WriteDone || uart.Reason(ev[0].Err) != "eio" {
		t.Errorf("first event = %+v, want WriteDone eio", ev[0])
	}
	if ev[1].Kind != uart.Notification || uart.Reason(ev[1].Err) != "eio" {
		t.Errorf("second event = %+v, want eio notification", ev[1])
	}
	if e.IsOpen() {
		t.Errorf("port still open after write error")
	}
}

func TestEnginePassiveRead(t *testing.T) {
	tests := []struct {
		name     string
		rx       []byte
		timeout  time.Duration
		wantData []byte
		pending  bool
	}{
		{"data available", []byte("abc"), 0, []byte("abc"), false},
		{"empty with zero timeout", nil, 0, []byte{}, false},
		{"empty with timeout parks", nil, time.Second, nil, true},
		{"empty with infinite timeout parks", nil, -1, nil, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e, fb, _ := newTestEngine(t, false)
			fb.Receive(tt.rx)

			if err := e.Read(tt.timeout); err != nil {
				t.Fatalf("Read(%v) error = %v", tt.timeout, err)
			}
			ev := e.Events()
			if tt.pending {
				if len(ev) != 0 {
					t.Errorf("Read(%v) events = %+v, want none", tt.timeout, ev)
				}
				if in, _ := e.Interest(time.Now()); !in.Read {
					t.Errorf("Interest().Read = false, want true")
				}
				return
			}
			if len(ev) != 1 || ev[0].Kind != uart.ReadDone || ev[0].Err != nil {
				t.Fatalf("Read(%v) events = %+v, want one ReadDone", tt.timeout, ev)
			}
			if ev[0].Data == nil || !bytes.Equal(ev[0].Data, tt.wantData) {
				t.Errorf("Read(%v) data = %q, want %q", tt.timeout, ev[0].Data, tt.wantData)
			}
		})
	}
}

func TestEnginePendingReadGetsData(t *testing.T) {
	e, fb, _ := newTestEngine(t, false)

	e.Read(time.Second)
	fb.Receive([]byte("late"))
	e.Step(uart.Readiness{Readable: true})

	ev := onlyEvent(t, e)
	if ev.Kind != uart.ReadDone || string(ev.Data) != "late" {
		t.Errorf("event = %+v, want ReadDone %q", ev, "late")
	}
}

func TestEnginePendingReadDeadline(t *testing.T) {
	e, _, clock := newTestEngine(t, false)

	e.Read(200 * time.Millisecond)
	clock.advance(100 * time.Millisecond)
	if _, timeout := e.Interest(clock.now()); timeout != 100*time.Millisecond {
		t.Errorf("Interest() timeout = %v, want 100ms", timeout)
	}
	e.Step(uart.Readiness{})
	if ev := e.Events(); len(ev) != 0 {
		t.Fatalf("events before deadline = %+v, want none", ev)
	}

	clock.advance(100 * time.Millisecond)
	e.Step(uart.Readiness{})
	ev := onlyEvent(t, e)
	if ev.Kind != uart.ReadDone || ev.Err != nil || len(ev.Data) != 0 {
		t.Errorf("event = %+v, want empty ReadDone", ev)
	}
	if got := e.Metrics().ReadTimeouts.Load(); got != 1 {
		t.Errorf("ReadTimeouts = %d, want 1", got)
	}
}

func TestEngineReadInActiveMode(t *testing.T) {
	e, _, _ := newTestEngine(t, true)

	e.Read(0)
	ev := onlyEvent(t, e)
	if ev.Kind != uart.ReadDone || uart.Reason(ev.Err) != "einval" {
		t.Errorf("event = %+v, want ReadDone einval", ev)
	}
}

func TestEngineActiveNotifications(t *testing.T) {
	e, fb, _ := newTestEngine(t, true)

	if in, timeout := e.Interest(time.Now()); !in.Read || timeout != -1 {
		t.Errorf("Interest() = %+v, %v, want read interest with no timeout", in, timeout)
	}

	fb.Receive([]byte("ping"))
	e.Step(uart.Readiness{Readable: true})
	ev := onlyEvent(t, e)
	if ev.Kind != uart.Notification || string(ev.Data) != "ping" {
		t.Errorf("event = %+v, want notification %q", ev, "ping")
	}
}

func TestEngineActiveReadError(t *testing.T) {
	tests := []struct {
		name  string
		setup func(*uarttest.Backend)
		ready uart.Readiness
	}{
		{"read error", func(f *uarttest.Backend) {
			f.Fail(&uart.Error{Op: "read", Kind: uart.KindIO, Err: errors.New("input/output error")})
		}, uart.Readiness{Readable: true}},
		{"hang-up", func(f *uarttest.Backend) { f.HangUp() }, uart.Readiness{Hangup: true}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e, fb, _ := newTestEngine(t, true)
			tt.setup(fb)

			e.Step(tt.ready)
			ev := onlyEvent(t, e)
			if ev.Kind != uart.Notification || uart.Reason(ev.Err) != "eio" {
				t.Errorf("event = %+v, want eio notification", ev)
			}
			if e.IsOpen() || fb.IsOpen() {
				t.Errorf("port still open after %s", tt.name)
			}

			e.Write([]byte("x"), 0)
			ev = onlyEvent(t, e)
			if uart.Reason(ev.Err) != "ebadf" {
				t.Errorf("write after error close = %+v, want ebadf", ev)
			}
		})
	}
}

func TestEnginePassiveReadErrorNoNotification(t *testing.T) {
	e, fb, _ := newTestEngine(t, false)

	e.Read(time.Second)
	fb.HangUp()
	e.Step(uart.Readiness{Readable: true})

	ev := onlyEvent(t, e)
	if ev.Kind != uart.ReadDone || uart.Reason(ev.Err) != "eio" {
		t.Errorf("event = %+v, want ReadDone eio", ev)
	}
	if e.IsOpen() {
		t.Errorf("port still open after hang-up")
	}
}

func TestEngineCloseCancelsPending(t *testing.T) {
	e, fb, _ := newTestEngine(t, false)
	fb.LimitWrites(0)

	e.Write([]byte("queued"), -1)
	e.Read(-1)
	e.Close()

	ev := e.Events()
	if len(ev) != 2 {
		t.Fatalf("Events() = %+v, want two cancellations", ev)
	}
	if ev[0].Kind != uart.WriteDone || uart.Reason(ev[0].Err) != "ecanceled" {
		t.Errorf("first event = %+v, want WriteDone ecanceled", ev[0])
	}
	if ev[1].Kind != uart.ReadDone || uart.Reason(ev[1].Err) != "ecanceled" {
		t.Errorf("second event = %+v, want ReadDone ecanceled", ev[1])
	}
	if e.IsOpen() || fb.IsOpen() {
		t.Errorf("port still open after Close")
	}
	if got := e.Metrics().Cancellations.Load(); got != 2 {
		t.Errorf("Cancellations = %d, want 2", got)
	}

	// Closing again is a no-op
	e.Close()
	if ev := e.Events(); len(ev) != 0 {
		t.Errorf("second Close events = %+v, want none", ev)
	}
}

func TestEngineReopenClosesFirst(t *testing.T) {
	e, fb, _ := newTestEngine(t, false)

	e.Read(-1)
	cfg := uart.DefaultConfig()
	cfg.Active = false
	cfg.Speed = 115200
	if err := e.Open("ttyOTHER", cfg); err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	ev := onlyEvent(t, e)
	if uart.Reason(ev.Err) != "ecanceled" {
		t.Errorf("event = %+v, want ecanceled", ev)
	}
	if fb.Name() != "ttyOTHER" || e.Configuration().Speed != 115200 {
		t.Errorf("reopened %q at %d, want ttyOTHER at 115200", fb.Name(), e.Configuration().Speed)
	}
}

func TestEngineOpenFailureKeepsConfig(t *testing.T) {
	fb := uarttest.New()
	fb.FailOpen(&uart.Error{Op: "open", Kind: uart.KindNotFound, Err: uart.ErrDeviceNotFound})
	e := uart.NewEngine(fb)

	cfg := uart.DefaultConfig()
	cfg.Speed = 57600
	err := e.Open("ttyMISSING", cfg)
	if uart.Reason(err) != "enoent" {
		t.Errorf("Open() error = %v, want enoent", err)
	}
	if e.Configuration() != uart.DefaultConfig() {
		t.Errorf("Configuration() = %v, want defaults", e.Configuration())
	}
	if e.IsOpen() {
		t.Errorf("IsOpen() = true after failed open")
	}
	if got := e.Metrics().OpenFailures.Load(); got != 1 {
		t.Errorf("OpenFailures = %d, want 1", got)
	}
}

func TestEngineOpenRejectsInvalidConfig(t *testing.T) {
	fb := uarttest.New()
	e := uart.NewEngine(fb)

	cfg := uart.DefaultConfig()
	cfg.DataBits = 9
	if err := e.Open("ttyS0", cfg); uart.Reason(err) != "einval" {
		t.Errorf("Open() error = %v, want einval", err)
	}
	if fb.IsOpen() {
		t.Errorf("backend opened with an invalid config")
	}
}

func TestEngineConfigure(t *testing.T) {
	e, fb, _ := newTestEngine(t, true)

	cfg := e.Configuration()
	cfg.Speed = 19200
	if err := e.Configure(cfg); err != nil {
		t.Fatalf("Configure() error = %v", err)
	}
	if got := e.Configuration().Speed; got != 19200 {
		t.Errorf("Configuration().Speed = %d, want 19200", got)
	}
	if fb.Config().Speed != 19200 {
		t.Errorf("backend speed = %d, want 19200", fb.Config().Speed)
	}
}

func TestEngineConfigureClosedPort(t *testing.T) {
	fb := uarttest.New()
	e := uart.NewEngine(fb)

	cfg := uart.DefaultConfig()
	cfg.Active = false
	if err := e.Configure(cfg); err != nil {
		t.Fatalf("Configure() error = %v", err)
	}
	if e.Configuration().Active {
		t.Errorf("Configuration().Active = true, want false")
	}
	if fb.Config() != (uart.Config{}) {
		t.Errorf("backend configured while closed: %v", fb.Config())
	}
}

func TestEngineFatalErrors(t *testing.T) {
	tests := []struct {
		name string
		run  func(e *uart.Engine, fb *uarttest.Backend) error
	}{
		{"second write", func(e *uart.Engine, fb *uarttest.Backend) error {
			fb.LimitWrites(0)
			e.Write([]byte("a"), -1)
			return e.Write([]byte("b"), -1)
		}},
		{"second read", func(e *uart.Engine, _ *uarttest.Backend) error {
			e.Read(-1)
			return e.Read(-1)
		}},
		{"mode change with read pending", func(e *uart.Engine, _ *uarttest.Backend) error {
			e.Read(-1)
			cfg := e.Configuration()
			cfg.Active = true
			return e.Configure(cfg)
		}},
		{"drain with write pending", func(e *uart.Engine, fb *uarttest.Backend) error {
			fb.LimitWrites(0)
			e.Write([]byte("a"), -1)
			return e.Drain()
		}},
		{"flush with read pending", func(e *uart.Engine, _ *uarttest.Backend) error {
			e.Read(-1)
			return e.Flush(uart.DirectionBoth)
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e, fb, _ := newTestEngine(t, false)
			if err := tt.run(e, fb); !uart.IsFatal(err) {
				t.Errorf("%s error = %v, want fatal", tt.name, err)
			}
		})
	}
}

func TestEngineClosedPort(t *testing.T) {
	e := uart.NewEngine(uarttest.New())

	checks := map[string]error{
		"drain":     e.Drain(),
		"flush":     e.Flush(uart.DirectionReceive),
		"set_rts":   e.SetRTS(true),
		"set_dtr":   e.SetDTR(true),
		"set_break": e.SetBreak(true),
		"signals":   func() error { _, err := e.Signals(); return err }(),
	}
	for name, err := range checks {
		if uart.Reason(err) != "ebadf" {
			t.Errorf("%s on closed port = %v, want ebadf", name, err)
		}
	}

	e.Write([]byte("x"), -1)
	e.Read(-1)
	for _, ev := range e.Events() {
		if uart.Reason(ev.Err) != "ebadf" {
			t.Errorf("%s on closed port = %v, want ebadf", ev.Kind, ev.Err)
		}
	}
}

func TestEngineSignalLines(t *testing.T) {
	e, fb, _ := newTestEngine(t, true)

	e.SetRTS(true)
	e.SetDTR(false)
	e.SetBreak(true)
	s, err := e.Signals()
	if err != nil {
		t.Fatalf("Signals() error = %v", err)
	}
	if !s.RTS || s.DTR {
		t.Errorf("Signals() = %+v, want rts on and dtr off", s)
	}
	if !fb.Break() {
		t.Errorf("break not set")
	}
}

func TestEngineShutdown(t *testing.T) {
	e, fb, _ := newTestEngine(t, false)

	e.Read(-1)
	e.Shutdown()
	if f := fb.Flushes(); len(f) != 1 || f[0] != uart.DirectionBoth {
		t.Errorf("flushes = %v, want [both]", fb.Flushes())
	}
	ev := onlyEvent(t, e)
	if uart.Reason(ev.Err) != "ecanceled" {
		t.Errorf("event = %+v, want ecanceled", ev)
	}
}
