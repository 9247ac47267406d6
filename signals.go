package uart

// Signals represents modem control signal states
type Signals struct {
	DSR bool // Data Set Ready
	DTR bool // Data Terminal Ready
	RTS bool // Request To Send
	ST  bool // Secondary transmit (not on Windows)
	SR  bool // Secondary receive (not on Windows)
	CTS bool // Clear To Send
	CD  bool // Carrier Detect
	RNG bool // Ring Indicator
}

// Fields returns the signals in wire order, keyed by their short names.
func (s Signals) Fields() []SignalField {
	return []SignalField{
		{"dsr", s.DSR},
		{"dtr", s.DTR},
		{"rts", s.RTS},
		{"st", s.ST},
		{"sr", s.SR},
		{"cts", s.CTS},
		{"cd", s.CD},
		{"rng", s.RNG},
	}
}

// SignalField is one named line of a Signals snapshot.
type SignalField struct {
	Name  string
	Value bool
}
