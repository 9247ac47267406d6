package driver

import (
	"fmt"
	"math"
	"time"

	"github.com/rs/zerolog"

	"github.com/allbin/go-uart"
	"github.com/allbin/go-uart/internal/hostchan"
	"github.com/allbin/go-uart/internal/term"
)

// maxNameLen bounds port names. Longer names cannot exist and are
// reported as enoent.
const maxNameLen = 64

type handlerFunc func(d *Dispatcher, args any) error

type handler struct {
	name term.Atom
	fn   handlerFunc
}

// Ordered roughly by how often hosts call them
var handlers = []handler{
	{"write", (*Dispatcher).handleWrite},
	{"read", (*Dispatcher).handleRead},
	{"flush", (*Dispatcher).handleFlush},
	{"drain", (*Dispatcher).handleDrain},
	{"open", (*Dispatcher).handleOpen},
	{"configure", (*Dispatcher).handleConfigure},
	{"configuration", (*Dispatcher).handleConfiguration},
	{"close", (*Dispatcher).handleClose},
	{"signals", (*Dispatcher).handleSignals},
	{"set_rts", (*Dispatcher).handleSetRTS},
	{"set_dtr", (*Dispatcher).handleSetDTR},
	{"set_break", (*Dispatcher).handleSetBreak},
}

// Dispatcher decodes host requests, runs them on the engine and writes the
// replies. Events the engine queues while handling a request are sent
// before the request's own reply.
type Dispatcher struct {
	engine *uart.Engine
	out    *hostchan.Writer
	log    zerolog.Logger
}

func NewDispatcher(e *uart.Engine, out *hostchan.Writer, log zerolog.Logger) *Dispatcher {
	return &Dispatcher{engine: e, out: out, log: log}
}

func protocolError(format string, args ...any) error {
	return &uart.FatalError{Reason: fmt.Sprintf(format, args...)}
}

// Handle runs one request frame of the form {Command, Args}. Malformed
// requests and unknown commands are fatal.
func (d *Dispatcher) Handle(frame []byte) error {
	v, err := term.Decode(frame)
	if err != nil {
		return protocolError("decode request: %v", err)
	}
	req, ok := term.AsTuple(v, 2)
	if !ok {
		return protocolError("expecting {cmd, args} tuple")
	}
	cmd, ok := term.AsAtom(req[0])
	if !ok {
		return protocolError("expecting command atom")
	}

	for _, h := range handlers {
		if h.name == cmd {
			d.log.Debug().Str("cmd", string(cmd)).Msg("request")
			return h.fn(d, req[1])
		}
	}
	return protocolError("unknown command: %s", cmd)
}

// FlushEvents sends every queued engine event to the host.
func (d *Dispatcher) FlushEvents() error {
	for _, ev := range d.engine.Events() {
		prefix, msg := eventMessage(ev)
		if err := d.out.Send(prefix, msg); err != nil {
			return fmt.Errorf("send %s: %w", ev.Kind, err)
		}
	}
	return nil
}

func (d *Dispatcher) reply(v any) error {
	if err := d.FlushEvents(); err != nil {
		return err
	}
	if err := d.out.SendReply(v); err != nil {
		return fmt.Errorf("send reply: %w", err)
	}
	return nil
}

// replyResult replies ok or {error, Reason}. Fatal errors are passed up
// instead.
func (d *Dispatcher) replyResult(err error) error {
	if uart.IsFatal(err) {
		return err
	}
	return d.reply(resultTerm(err))
}

// timeoutDuration converts a millisecond timeout from the host. Negative
// values and values beyond an int32 mean wait forever.
func timeoutDuration(ms int64) time.Duration {
	if ms < 0 || ms > math.MaxInt32 {
		return -1
	}
	return time.Duration(ms) * time.Millisecond
}

func (d *Dispatcher) handleWrite(args any) error {
	if !d.engine.IsOpen() {
		return d.replyResult(uart.ErrPortClosed)
	}
	t, ok := term.AsTuple(args, 2)
	if !ok {
		return protocolError("expecting {data, timeout}")
	}
	data, ok := term.AsBinary(t[0])
	if !ok {
		return protocolError("expecting data as a binary")
	}
	timeout, ok := term.AsInt(t[1])
	if !ok {
		return protocolError("expecting timeout")
	}

	if err := d.engine.Write(data, timeoutDuration(timeout)); err != nil {
		return err
	}
	return d.FlushEvents()
}

func (d *Dispatcher) handleRead(args any) error {
	if !d.engine.IsOpen() {
		return d.replyResult(uart.ErrPortClosed)
	}
	timeout, ok := term.AsInt(args)
	if !ok {
		return protocolError("expecting timeout")
	}

	if err := d.engine.Read(timeoutDuration(timeout)); err != nil {
		return err
	}
	return d.FlushEvents()
}

func (d *Dispatcher) handleFlush(args any) error {
	a, ok := term.AsAtom(args)
	if !ok {
		return d.reply(errorTerm(uart.ErrInvalidConfig))
	}
	dir, ok := uart.ParseDirection(string(a))
	if !ok {
		return d.reply(errorTerm(uart.ErrInvalidConfig))
	}
	return d.replyResult(d.engine.Flush(dir))
}

func (d *Dispatcher) handleDrain(any) error {
	return d.replyResult(d.engine.Drain())
}

func (d *Dispatcher) handleOpen(args any) error {
	t, ok := term.AsTuple(args, 2)
	if !ok {
		return protocolError("open requires a 2-tuple")
	}
	name, ok := term.AsBinary(t[0])
	if !ok || len(name) >= maxNameLen {
		return d.reply(errorTerm(uart.ErrDeviceNotFound))
	}
	cfg, ok := mergeOptions(d.engine.Configuration(), t[1])
	if !ok {
		return d.reply(errorTerm(uart.ErrInvalidConfig))
	}

	err := d.engine.Open(string(name), cfg)
	if err != nil {
		d.log.Warn().Err(err).Str("port", string(name)).Msg("open failed")
	}
	return d.replyResult(err)
}

func (d *Dispatcher) handleConfigure(args any) error {
	cfg, ok := mergeOptions(d.engine.Configuration(), args)
	if !ok {
		return d.reply(errorTerm(uart.ErrInvalidConfig))
	}
	return d.replyResult(d.engine.Configure(cfg))
}

func (d *Dispatcher) handleConfiguration(any) error {
	return d.reply(term.Tuple{atomOK, configOptions(d.engine.Configuration())})
}

func (d *Dispatcher) handleClose(any) error {
	d.engine.Close()
	return d.reply(atomOK)
}

func (d *Dispatcher) handleSignals(any) error {
	s, err := d.engine.Signals()
	if err != nil {
		return d.replyResult(err)
	}
	return d.reply(term.Tuple{atomOK, signalsTerm(s)})
}

func (d *Dispatcher) handleSetRTS(args any) error {
	return d.setLine(args, d.engine.SetRTS)
}

func (d *Dispatcher) handleSetDTR(args any) error {
	return d.setLine(args, d.engine.SetDTR)
}

func (d *Dispatcher) handleSetBreak(args any) error {
	return d.setLine(args, d.engine.SetBreak)
}

func (d *Dispatcher) setLine(args any, set func(bool) error) error {
	on, ok := term.AsBool(args)
	if !ok {
		return d.reply(errorTerm(uart.ErrInvalidConfig))
	}
	return d.replyResult(set(on))
}
