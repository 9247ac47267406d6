package uart

import (
	"fmt"
	"strings"
)

// Parity represents the parity mode
type Parity int

const (
	ParityNone Parity = iota
	ParityEven
	ParityOdd
	ParitySpace
	ParityMark
	ParityIgnore
)

var parityNames = map[Parity]string{
	ParityNone:   "none",
	ParityEven:   "even",
	ParityOdd:    "odd",
	ParitySpace:  "space",
	ParityMark:   "mark",
	ParityIgnore: "ignore",
}

func (p Parity) String() string {
	if s, ok := parityNames[p]; ok {
		return s
	}
	return "none"
}

// ParseParity maps a parity name such as "even" to its Parity.
func ParseParity(s string) (Parity, bool) {
	for p, name := range parityNames {
		if name == s {
			return p, true
		}
	}
	return ParityNone, false
}

// FlowControl represents the flow control mode
type FlowControl int

const (
	FlowControlNone FlowControl = iota
	FlowControlHardware
	FlowControlSoftware
)

func (f FlowControl) String() string {
	switch f {
	case FlowControlHardware:
		return "hardware"
	case FlowControlSoftware:
		return "software"
	default:
		return "none"
	}
}

// ParseFlowControl maps "none", "hardware" or "software" to a FlowControl.
func ParseFlowControl(s string) (FlowControl, bool) {
	switch s {
	case "none":
		return FlowControlNone, true
	case "hardware":
		return FlowControlHardware, true
	case "software":
		return FlowControlSoftware, true
	}
	return FlowControlNone, false
}

// Direction selects the queue(s) affected by a flush.
type Direction int

const (
	DirectionReceive Direction = iota
	DirectionTransmit
	DirectionBoth
)

func (d Direction) String() string {
	switch d {
	case DirectionReceive:
		return "receive"
	case DirectionTransmit:
		return "transmit"
	default:
		return "both"
	}
}

// ParseDirection maps "receive", "transmit" or "both" to a Direction.
func ParseDirection(s string) (Direction, bool) {
	switch s {
	case "receive":
		return DirectionReceive, true
	case "transmit":
		return DirectionTransmit, true
	case "both":
		return DirectionBoth, true
	}
	return DirectionBoth, false
}

// Config holds the line settings and read mode of a port. It is a value
// type and is always applied as a whole.
type Config struct {
	Active      bool // push received bytes as notifications
	Speed       int
	DataBits    int
	StopBits    int
	Parity      Parity
	FlowControl FlowControl
}

// Option is a functional option for configuring a serial port
type Option func(*Config) error

// DefaultConfig returns the configuration a fresh driver starts with:
// active mode, 9600 8N1, no flow control.
func DefaultConfig() Config {
	return Config{
		Active:      true,
		Speed:       9600,
		DataBits:    8,
		StopBits:    1,
		Parity:      ParityNone,
		FlowControl: FlowControlNone,
	}
}

// NewConfig applies opts on top of DefaultConfig.
func NewConfig(opts ...Option) (Config, error) {
	c := DefaultConfig()
	for _, opt := range opts {
		if err := opt(&c); err != nil {
			return c, err
		}
	}
	return c, nil
}

// Validate rejects combinations that no backend can apply.
func (c Config) Validate() error {
	if c.Speed <= 0 {
		return fmt.Errorf("%w: speed %d", ErrInvalidBaudRate, c.Speed)
	}
	if c.DataBits < 5 || c.DataBits > 8 {
		return fmt.Errorf("%w: data bits %d", ErrInvalidConfig, c.DataBits)
	}
	if c.StopBits != 1 && c.StopBits != 2 {
		return fmt.Errorf("%w: stop bits %d", ErrInvalidConfig, c.StopBits)
	}
	if _, ok := parityNames[c.Parity]; !ok {
		return fmt.Errorf("%w: parity %d", ErrInvalidConfig, c.Parity)
	}
	if c.FlowControl < FlowControlNone || c.FlowControl > FlowControlSoftware {
		return fmt.Errorf("%w: flow control %d", ErrInvalidConfig, c.FlowControl)
	}
	return nil
}

func (c Config) String() string {
	return fmt.Sprintf("%d %d%s%d flow=%s active=%t",
		c.Speed, c.DataBits, strings.ToUpper(c.Parity.String()[:1]), c.StopBits, c.FlowControl, c.Active)
}

// WithSpeed sets the baud rate
func WithSpeed(speed int) Option {
	return func(c *Config) error {
		if speed <= 0 {
			return ErrInvalidBaudRate
		}
		c.Speed = speed
		return nil
	}
}

// WithDataBits sets the number of data bits (5, 6, 7, or 8)
func WithDataBits(bits int) Option {
	return func(c *Config) error {
		if bits < 5 || bits > 8 {
			return ErrInvalidConfig
		}
		c.DataBits = bits
		return nil
	}
}

// WithStopBits sets the number of stop bits (1 or 2)
func WithStopBits(bits int) Option {
	return func(c *Config) error {
		if bits != 1 && bits != 2 {
			return ErrInvalidConfig
		}
		c.StopBits = bits
		return nil
	}
}

// WithParity sets the parity mode
func WithParity(parity Parity) Option {
	return func(c *Config) error {
		c.Parity = parity
		return nil
	}
}

// WithFlowControl sets the flow control mode
func WithFlowControl(fc FlowControl) Option {
	return func(c *Config) error {
		c.FlowControl = fc
		return nil
	}
}

// WithActive selects active (push) or passive (pull) reads.
func WithActive(active bool) Option {
	return func(c *Config) error {
		c.Active = active
		return nil
	}
}
