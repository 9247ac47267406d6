package driver

import (
	"context"
	"errors"
	"io"
	"reflect"
	"testing"
	"time"

	"github.com/allbin/go-uart"
	"github.com/allbin/go-uart/internal/hostchan"
	"github.com/allbin/go-uart/internal/term"
	"github.com/allbin/go-uart/internal/uarttest"
)

type loopHarness struct {
	backend *uarttest.Backend
	req     *io.PipeWriter
	reqW    *hostchan.Writer
	resp    *hostchan.Reader
	done    chan error
}

func startLoop(t *testing.T, ctx context.Context) *loopHarness {
	t.Helper()
	reqR, reqW := io.Pipe()
	respR, respW := io.Pipe()

	h := &loopHarness{
		backend: uarttest.New(),
		req:     reqW,
		reqW:    hostchan.NewWriter(reqW),
		resp:    hostchan.NewReader(respR),
		done:    make(chan error, 1),
	}
	loop := NewLoop(h.backend, reqR, respW)
	go func() {
		h.done <- loop.Run(ctx)
		respW.Close()
	}()
	t.Cleanup(func() {
		reqW.Close()
		respR.Close()
	})
	return h
}

func (h *loopHarness) send(t *testing.T, cmd string, args any) {
	t.Helper()
	b, err := term.Encode(term.Tuple{term.Atom(cmd), args})
	if err != nil {
		t.Fatal(err)
	}
	if err := h.reqW.WriteFrame(b); err != nil {
		t.Fatalf("send %s: %v", cmd, err)
	}
}

func (h *loopHarness) next(t *testing.T) hostchan.Message {
	t.Helper()
	type result struct {
		m   hostchan.Message
		err error
	}
	ch := make(chan result, 1)
	go func() {
		f, err := h.resp.ReadFrame()
		if err != nil {
			ch <- result{err: err}
			return
		}
		m, err := hostchan.ParseMessage(f)
		ch <- result{m, err}
	}()
	select {
	case r := <-ch:
		if r.err != nil {
			t.Fatalf("read message: %v", r.err)
		}
		return r.m
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for a message")
	}
	return hostchan.Message{}
}

func (h *loopHarness) wait(t *testing.T) error {
	t.Helper()
	select {
	case err := <-h.done:
		return err
	case <-time.After(2 * time.Second):
		t.Fatal("loop did not stop")
	}
	return nil
}

func TestLoopActiveNotifications(t *testing.T) {
	h := startLoop(t, context.Background())

	h.send(t, "open", openArgs("ttyUSB0"))
	if m := h.next(t); m.Term != term.Atom("ok") {
		t.Fatalf("open = %#v, want ok", m.Term)
	}

	h.backend.Receive([]byte("hello"))
	m := h.next(t)
	want := term.Tuple{term.Atom("notif"), term.Binary("hello")}
	if m.Prefix != hostchan.Notification || !reflect.DeepEqual(m.Term, want) {
		t.Errorf("message = %c %#v, want notification %#v", m.Prefix, m.Term, want)
	}

	h.backend.HangUp()
	m = h.next(t)
	want = term.Tuple{term.Atom("notif"), errReply("eio")}
	if m.Prefix != hostchan.Notification || !reflect.DeepEqual(m.Term, want) {
		t.Errorf("message = %c %#v, want notification %#v", m.Prefix, m.Term, want)
	}

	h.send(t, "write", term.Tuple{term.Binary("x"), int64(0)})
	if m := h.next(t); !reflect.DeepEqual(m.Term, errReply("ebadf")) {
		t.Errorf("write after hang-up = %#v, want ebadf", m.Term)
	}

	h.req.Close()
	if err := h.wait(t); err != nil {
		t.Errorf("Run() = %v, want nil on end of input", err)
	}
}

func TestLoopPassiveReadTimeout(t *testing.T) {
	h := startLoop(t, context.Background())

	h.send(t, "open", openArgs("ttyUSB0", opt("active", term.Atom("false"))))
	h.next(t)

	start := time.Now()
	h.send(t, "read", int64(50))
	m := h.next(t)
	if !reflect.DeepEqual(m.Term, term.Tuple{term.Atom("ok"), term.Binary{}}) {
		t.Errorf("read(50) = %#v, want {ok, <<>>}", m.Term)
	}
	if elapsed := time.Since(start); elapsed < 50*time.Millisecond {
		t.Errorf("read(50) returned after %v, want at least 50ms", elapsed)
	}

	h.send(t, "read", int64(1000))
	time.Sleep(20 * time.Millisecond)
	h.backend.Receive([]byte("late"))
	m = h.next(t)
	if !reflect.DeepEqual(m.Term, term.Tuple{term.Atom("ok"), term.Binary("late")}) {
		t.Errorf("read(1000) = %#v, want {ok, \"late\"}", m.Term)
	}
}

func TestLoopWriteTimeout(t *testing.T) {
	h := startLoop(t, context.Background())

	h.send(t, "open", openArgs("ttyUSB0"))
	h.next(t)

	h.backend.Block(true)
	h.send(t, "write", term.Tuple{term.Binary("stuck"), int64(30)})
	if m := h.next(t); !reflect.DeepEqual(m.Term, errReply("eagain")) {
		t.Errorf("blocked write = %#v, want eagain", m.Term)
	}
}

func TestLoopShutdownCancelsPending(t *testing.T) {
	h := startLoop(t, context.Background())

	h.send(t, "open", openArgs("ttyUSB0", opt("active", term.Atom("false"))))
	h.next(t)
	h.send(t, "read", int64(-1))
	// Let the read park before the input closes
	time.Sleep(20 * time.Millisecond)
	h.req.Close()

	if m := h.next(t); !reflect.DeepEqual(m.Term, errReply("ecanceled")) {
		t.Errorf("pending read at shutdown = %#v, want ecanceled", m.Term)
	}
	if err := h.wait(t); err != nil {
		t.Errorf("Run() = %v, want nil", err)
	}
	if h.backend.IsOpen() {
		t.Errorf("port still open after shutdown")
	}
	if f := h.backend.Flushes(); len(f) != 1 || f[0] != uart.DirectionBoth {
		t.Errorf("flushes at shutdown = %v, want [both]", f)
	}
}

func TestLoopOversizedFrameIsFatal(t *testing.T) {
	h := startLoop(t, context.Background())

	go h.req.Write([]byte{0xff, 0xff})
	err := h.wait(t)
	if !errors.Is(err, hostchan.ErrFrameTooLarge) {
		t.Errorf("Run() = %v, want %v", err, hostchan.ErrFrameTooLarge)
	}
}

func TestLoopUnknownCommandIsFatal(t *testing.T) {
	h := startLoop(t, context.Background())

	h.send(t, "explode", term.List{})
	if err := h.wait(t); !uart.IsFatal(err) {
		t.Errorf("Run() = %v, want fatal", err)
	}
}

func TestLoopContextCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	h := startLoop(t, ctx)

	cancel()
	if err := h.wait(t); !errors.Is(err, context.Canceled) {
		t.Errorf("Run() = %v, want %v", err, context.Canceled)
	}
}
