// Package models holds the monitor state that outlives a single frame: the
// driver session and the input mode.
package models

import (
	"context"
	"errors"
	"sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/rs/zerolog"

	"github.com/allbin/go-uart"
	"github.com/allbin/go-uart/internal/driver"
	"github.com/allbin/go-uart/internal/hostclient"
)

// InputMode represents the current input mode (vim-like)
type InputMode int

const (
	InputModeNormal InputMode = iota
	InputModeInsert
)

func (m InputMode) String() string {
	if m == InputModeInsert {
		return "INSERT"
	}
	return "NORMAL"
}

type ConnectedMsg struct {
	Config uart.Config
}

type DisconnectedMsg struct {
	Err error
}

// NotificationMsg carries active mode data or a port error.
type NotificationMsg hostclient.Notification

type WriteDoneMsg struct {
	ID  int
	Err error
}

type SignalsMsg struct {
	Signals uart.Signals
	Err     error
}

// LineMsg reports the result of changing an output line or flushing.
type LineMsg struct {
	Line string
	On   bool
	Err  error
}

const callTimeout = 5 * time.Second

// Session owns an in-process driver with one port opened in active mode.
// Its methods return tea.Cmds, so every driver call runs off the UI
// goroutine.
type Session struct {
	portPath     string
	config       uart.Config
	writeTimeout time.Duration
	log          zerolog.Logger
	newBackend   func() (uart.Backend, error)

	mu      sync.RWMutex
	backend uart.Backend
	client  *hostclient.Client
	loop    *driver.Loop
	nextID  int

	ctx    context.Context
	cancel context.CancelFunc
}

type SessionOption func(*Session)

// WithBackend replaces the platform backend.
func WithBackend(b uart.Backend) SessionOption {
	return func(s *Session) {
		s.newBackend = func() (uart.Backend, error) { return b, nil }
	}
}

func WithLogger(l zerolog.Logger) SessionOption {
	return func(s *Session) {
		s.log = l
	}
}

func NewSession(portPath string, cfg uart.Config, writeTimeout time.Duration, opts ...SessionOption) *Session {
	ctx, cancel := context.WithCancel(context.Background())
	cfg.Active = true
	s := &Session{
		portPath:     portPath,
		config:       cfg,
		writeTimeout: writeTimeout,
		log:          zerolog.Nop(),
		newBackend:   uart.NewBackend,
		ctx:          ctx,
		cancel:       cancel,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Session) PortPath() string {
	return s.portPath
}

func (s *Session) getClient() *hostclient.Client {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.client
}

func (s *Session) call(fn func(ctx context.Context, c *hostclient.Client) error) error {
	c := s.getClient()
	if c == nil {
		return errors.New("not connected")
	}
	ctx, cancel := context.WithTimeout(s.ctx, callTimeout)
	defer cancel()
	return fn(ctx, c)
}

// Connect starts the driver and opens the port.
func (s *Session) Connect() tea.Cmd {
	return func() tea.Msg {
		backend, err := s.newBackend()
		if err != nil {
			return DisconnectedMsg{Err: err}
		}
		client, loop := hostclient.Spawn(s.ctx, backend, s.log)

		s.mu.Lock()
		s.backend, s.client, s.loop = backend, client, loop
		s.mu.Unlock()

		var cfg uart.Config
		err = s.call(func(ctx context.Context, c *hostclient.Client) error {
			if err := c.Open(ctx, s.portPath, s.config); err != nil {
				return err
			}
			cfg, err = c.Configuration(ctx)
			return err
		})
		if err != nil {
			return DisconnectedMsg{Err: err}
		}
		return ConnectedMsg{Config: cfg}
	}
}

// WaitNotification delivers the next notification. The model calls it
// again after each one.
func (s *Session) WaitNotification() tea.Cmd {
	c := s.getClient()
	if c == nil {
		return nil
	}
	return func() tea.Msg {
		n, ok := <-c.Notifications()
		if !ok {
			return DisconnectedMsg{}
		}
		return NotificationMsg(n)
	}
}

// Write queues data and returns the ID its WriteDoneMsg will carry.
func (s *Session) Write(data []byte) (int, tea.Cmd) {
	s.mu.Lock()
	s.nextID++
	id := s.nextID
	s.mu.Unlock()

	return id, func() tea.Msg {
		err := s.call(func(ctx context.Context, c *hostclient.Client) error {
			ctx, cancel := context.WithTimeout(ctx, s.writeTimeout+callTimeout)
			defer cancel()
			return c.Write(ctx, data, s.writeTimeout)
		})
		return WriteDoneMsg{ID: id, Err: err}
	}
}

// PollSignals reads the modem lines after d.
func (s *Session) PollSignals(d time.Duration) tea.Cmd {
	return tea.Tick(d, func(time.Time) tea.Msg {
		var sig uart.Signals
		err := s.call(func(ctx context.Context, c *hostclient.Client) (err error) {
			sig, err = c.Signals(ctx)
			return err
		})
		return SignalsMsg{Signals: sig, Err: err}
	})
}

func (s *Session) setLine(line string, on bool, set func(*hostclient.Client, context.Context, bool) error) tea.Cmd {
	return func() tea.Msg {
		err := s.call(func(ctx context.Context, c *hostclient.Client) error {
			return set(c, ctx, on)
		})
		return LineMsg{Line: line, On: on, Err: err}
	}
}

func (s *Session) SetRTS(on bool) tea.Cmd {
	return s.setLine("RTS", on, (*hostclient.Client).SetRTS)
}

func (s *Session) SetDTR(on bool) tea.Cmd {
	return s.setLine("DTR", on, (*hostclient.Client).SetDTR)
}

func (s *Session) SetBreak(on bool) tea.Cmd {
	return s.setLine("BRK", on, (*hostclient.Client).SetBreak)
}

func (s *Session) Flush() tea.Cmd {
	return func() tea.Msg {
		err := s.call(func(ctx context.Context, c *hostclient.Client) error {
			return c.Flush(ctx, uart.DirectionBoth)
		})
		return LineMsg{Line: "flush", Err: err}
	}
}

// Counters returns bytes received and sent so far.
func (s *Session) Counters() (rx, tx int64) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.loop == nil {
		return 0, 0
	}
	m := s.loop.Engine().Metrics()
	return m.BytesRead.Load(), m.BytesWritten.Load()
}

// Close stops the driver, which closes the port.
func (s *Session) Close() {
	s.mu.Lock()
	client, backend := s.client, s.backend
	s.client = nil
	s.mu.Unlock()

	if client != nil {
		if err := client.Stop(); err != nil {
			s.log.Warn().Err(err).Msg("driver stopped with error")
		}
		backend.Release()
	}
	s.cancel()
}
