package driver

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/rs/zerolog"

	"github.com/allbin/go-uart"
	"github.com/allbin/go-uart/internal/hostchan"
)

// Loop serves one host connection. A reader goroutine splits the input
// into frames; everything else, including all engine and backend calls,
// happens on the goroutine that called Run.
type Loop struct {
	backend uart.Backend
	engine  *uart.Engine
	disp    *Dispatcher
	in      *hostchan.Reader
	log     zerolog.Logger
}

// Option configures a Loop.
type Option func(*Loop)

// WithLogger sets the logger for the loop and its engine.
func WithLogger(l zerolog.Logger) Option {
	return func(lp *Loop) {
		lp.log = l
	}
}

// NewLoop returns a loop that reads requests from in and writes replies and
// notifications to out.
func NewLoop(backend uart.Backend, in io.Reader, out io.Writer, opts ...Option) *Loop {
	l := &Loop{
		backend: backend,
		in:      hostchan.NewReader(in),
		log:     zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(l)
	}
	l.engine = uart.NewEngine(backend, uart.WithLogger(l.log))
	l.disp = NewDispatcher(l.engine, hostchan.NewWriter(out), l.log)
	return l
}

// Engine returns the engine driven by the loop. Only its Metrics may be
// used while Run is active.
func (l *Loop) Engine() *uart.Engine {
	return l.engine
}

type hostFrame struct {
	data []byte
	err  error
}

// Run serves requests until the host closes its side, ctx is done or a
// fatal error occurs. In every case the port is flushed and closed and
// pending operations are canceled before Run returns. A clean end of input
// returns nil.
func (l *Loop) Run(ctx context.Context) error {
	done := make(chan struct{})
	defer close(done)

	frames := make(chan hostFrame, 16)
	go l.readHost(frames, done)

	stop := context.AfterFunc(ctx, func() { l.backend.Wake() })
	defer stop()

	for {
		interest, timeout := l.engine.Interest(time.Now())
		if len(frames) > 0 {
			timeout = 0
		}
		ready, err := l.backend.Wait(interest, timeout)
		if err != nil {
			return l.shutdown(fmt.Errorf("wait: %w", err))
		}
		if ctx.Err() != nil {
			return l.shutdown(ctx.Err())
		}

		for pending := true; pending; {
			select {
			case f := <-frames:
				if f.err != nil {
					if errors.Is(f.err, io.EOF) {
						return l.shutdown(nil)
					}
					return l.shutdown(fmt.Errorf("read request: %w", f.err))
				}
				if err := l.disp.Handle(f.data); err != nil {
					return l.shutdown(err)
				}
			default:
				pending = false
			}
		}

		l.engine.Step(ready)
		if err := l.disp.FlushEvents(); err != nil {
			return l.shutdown(err)
		}
	}
}

func (l *Loop) readHost(frames chan<- hostFrame, done <-chan struct{}) {
	for {
		data, err := l.in.ReadFrame()
		select {
		case frames <- hostFrame{data: data, err: err}:
		case <-done:
			return
		}
		l.backend.Wake()
		if err != nil {
			return
		}
	}
}

func (l *Loop) shutdown(cause error) error {
	l.engine.Shutdown()
	if err := l.disp.FlushEvents(); err != nil {
		l.log.Debug().Err(err).Msg("could not send final events")
	}

	ev := l.log.Info()
	if cause != nil {
		ev = l.log.Error().Err(cause)
	}
	ev.Object("metrics", l.engine.Metrics().Snapshot()).Msg("driver stopped")
	return cause
}
