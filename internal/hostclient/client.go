// Package hostclient speaks the host side of the driver protocol. The CLI
// tools use it to drive an in-process driver loop.
package hostclient

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/allbin/go-uart"
	"github.com/allbin/go-uart/internal/driver"
	"github.com/allbin/go-uart/internal/hostchan"
	"github.com/allbin/go-uart/internal/term"
)

var ErrClosed = errors.New("hostclient: driver connection closed")

// ReplyError is an {error, Reason} reply from the driver.
type ReplyError struct {
	Op     string
	Reason string
}

func (e *ReplyError) Error() string {
	return fmt.Sprintf("%s: %s", e.Op, e.Reason)
}

// Notification is data or an error pushed by the driver in active mode.
type Notification struct {
	Data []byte
	Err  error
}

// Client sends requests and waits for their replies. Requests are
// serialized; notifications are delivered on a separate channel.
//
// Replies carry no tag, so a call abandoned through its context ends the
// session. Later calls fail with ErrClosed.
type Client struct {
	mu        sync.Mutex
	w         *hostchan.Writer
	closer    io.Closer
	abandoned bool
	replies   chan any
	notifs  chan Notification
	done    chan struct{}
	err     error
	stopped chan error

	stopOnce sync.Once
	stopErr  error
}

// New returns a client reading driver output from r and writing requests
// to w. Closing w ends the driver session.
func New(r io.Reader, w io.WriteCloser) *Client {
	c := &Client{
		w:       hostchan.NewWriter(w),
		closer:  w,
		replies: make(chan any, 1),
		notifs:  make(chan Notification, 64),
		done:    make(chan struct{}),
	}
	go c.readLoop(hostchan.NewReader(r))
	return c
}

// Spawn runs a driver loop on backend in the background and returns a
// client connected to it.
func Spawn(ctx context.Context, backend uart.Backend, log zerolog.Logger) (*Client, *driver.Loop) {
	reqR, reqW := io.Pipe()
	respR, respW := io.Pipe()

	loop := driver.NewLoop(backend, reqR, respW, driver.WithLogger(log))
	c := New(respR, reqW)
	c.stopped = make(chan error, 1)
	go func() {
		err := loop.Run(ctx)
		respW.Close()
		reqR.Close()
		c.stopped <- err
	}()
	return c, loop
}

func (c *Client) readLoop(r *hostchan.Reader) {
	defer close(c.done)
	defer close(c.notifs)
	for {
		f, err := r.ReadFrame()
		if err != nil {
			if !errors.Is(err, io.EOF) {
				c.err = err
			}
			return
		}
		msg, err := hostchan.ParseMessage(f)
		if err != nil {
			c.err = err
			return
		}

		if msg.Prefix == hostchan.Notification {
			c.notify(msg.Term)
			continue
		}
		select {
		case c.replies <- msg.Term:
		default:
			// Reply to an abandoned call
		}
	}
}

func (c *Client) notify(v any) {
	t, ok := term.AsTuple(v, 2)
	if !ok {
		return
	}
	var n Notification
	if data, ok := term.AsBinary(t[1]); ok {
		n.Data = data
	} else if e, ok := term.AsTuple(t[1], 2); ok {
		reason, _ := term.AsAtom(e[1])
		n.Err = &ReplyError{Op: "notification", Reason: string(reason)}
	}
	select {
	case c.notifs <- n:
	default:
	}
}

// Notifications delivers active mode data. It is closed when the driver
// goes away. Notifications are dropped when the channel is full.
func (c *Client) Notifications() <-chan Notification {
	return c.notifs
}

// Call sends {cmd, args} and waits for the reply.
func (c *Client) Call(ctx context.Context, cmd string, args any) (any, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.abandoned {
		return nil, fmt.Errorf("%s: %w", cmd, ErrClosed)
	}

	b, err := term.Encode(term.Tuple{term.Atom(cmd), args})
	if err != nil {
		return nil, err
	}
	if err := c.w.WriteFrame(b); err != nil {
		return nil, fmt.Errorf("%s: %w", cmd, ErrClosed)
	}

	select {
	case v := <-c.replies:
		return v, nil
	case <-c.done:
		if c.err != nil {
			return nil, fmt.Errorf("%s: %w", cmd, c.err)
		}
		return nil, fmt.Errorf("%s: %w", cmd, ErrClosed)
	case <-ctx.Done():
		c.abandoned = true
		c.closer.Close()
		return nil, ctx.Err()
	}
}

// result interprets ok and {error, Reason} replies.
func result(cmd string, v any) error {
	if v == term.Atom("ok") {
		return nil
	}
	if t, ok := term.AsTuple(v, 2); ok && t[0] == term.Atom("error") {
		reason, _ := term.AsAtom(t[1])
		return &ReplyError{Op: cmd, Reason: string(reason)}
	}
	return fmt.Errorf("%s: unexpected reply %v", cmd, v)
}

func (c *Client) simple(ctx context.Context, cmd string, args any) error {
	v, err := c.Call(ctx, cmd, args)
	if err != nil {
		return err
	}
	return result(cmd, v)
}

// okValue returns X from an {ok, X} reply.
func okValue(cmd string, v any) (any, error) {
	if t, ok := term.AsTuple(v, 2); ok && t[0] == term.Atom("ok") {
		return t[1], nil
	}
	return nil, result(cmd, v)
}

func timeoutMillis(d time.Duration) int64 {
	if d < 0 {
		return -1
	}
	return d.Milliseconds()
}

func (c *Client) Open(ctx context.Context, name string, cfg uart.Config) error {
	return c.simple(ctx, "open", term.Tuple{term.Binary(name), driver.ConfigOptions(cfg)})
}

func (c *Client) Configure(ctx context.Context, cfg uart.Config) error {
	return c.simple(ctx, "configure", driver.ConfigOptions(cfg))
}

// Configuration returns the line settings. The reply does not include the
// mode, so Active is always reported as true.
func (c *Client) Configuration(ctx context.Context) (uart.Config, error) {
	v, err := c.Call(ctx, "configuration", term.List{})
	if err != nil {
		return uart.Config{}, err
	}
	opts, err := okValue("configuration", v)
	if err != nil {
		return uart.Config{}, err
	}
	cfg, ok := driver.ParseConfiguration(opts)
	if !ok {
		return uart.Config{}, fmt.Errorf("configuration: malformed reply %v", opts)
	}
	return cfg, nil
}

func (c *Client) Close(ctx context.Context) error {
	return c.simple(ctx, "close", term.List{})
}

func (c *Client) Write(ctx context.Context, data []byte, timeout time.Duration) error {
	return c.simple(ctx, "write", term.Tuple{term.Binary(data), timeoutMillis(timeout)})
}

func (c *Client) Read(ctx context.Context, timeout time.Duration) ([]byte, error) {
	v, err := c.Call(ctx, "read", timeoutMillis(timeout))
	if err != nil {
		return nil, err
	}
	data, err := okValue("read", v)
	if err != nil {
		return nil, err
	}
	b, _ := term.AsBinary(data)
	return b, nil
}

func (c *Client) Drain(ctx context.Context) error {
	return c.simple(ctx, "drain", term.List{})
}

func (c *Client) Flush(ctx context.Context, dir uart.Direction) error {
	return c.simple(ctx, "flush", term.Atom(dir.String()))
}

func (c *Client) SetRTS(ctx context.Context, on bool) error {
	return c.simple(ctx, "set_rts", on)
}

func (c *Client) SetDTR(ctx context.Context, on bool) error {
	return c.simple(ctx, "set_dtr", on)
}

func (c *Client) SetBreak(ctx context.Context, on bool) error {
	return c.simple(ctx, "set_break", on)
}

func (c *Client) Signals(ctx context.Context) (uart.Signals, error) {
	v, err := c.Call(ctx, "signals", term.List{})
	if err != nil {
		return uart.Signals{}, err
	}
	m, err := okValue("signals", v)
	if err != nil {
		return uart.Signals{}, err
	}
	pairs, ok := m.(term.Map)
	if !ok {
		return uart.Signals{}, fmt.Errorf("signals: malformed reply %v", m)
	}

	var s uart.Signals
	lines := map[term.Atom]*bool{
		"dsr": &s.DSR, "dtr": &s.DTR, "rts": &s.RTS, "st": &s.ST,
		"sr": &s.SR, "cts": &s.CTS, "cd": &s.CD, "rng": &s.RNG,
	}
	for _, p := range pairs {
		key, _ := term.AsAtom(p.Key)
		if dst, ok := lines[key]; ok {
			*dst, _ = term.AsBool(p.Value)
		}
	}
	return s, nil
}

// Stop ends the session by closing the request stream. For a spawned
// driver it waits for the loop to finish and returns its error.
func (c *Client) Stop() error {
	c.stopOnce.Do(func() {
		c.closer.Close()
		if c.stopped != nil {
			c.stopErr = <-c.stopped
			<-c.done
		}
	})
	return c.stopErr
}
