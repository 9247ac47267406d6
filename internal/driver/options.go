package driver

import (
	"github.com/allbin/go-uart"
	"github.com/allbin/go-uart/internal/term"
)

// mergeOptions applies a host option list such as [{speed, 115200}] on top
// of base. Unknown keys are skipped and unknown parity or flow control
// names leave the setting alone. Any other malformed element rejects the
// whole list.
func mergeOptions(base uart.Config, v any) (uart.Config, bool) {
	props, ok := term.AsProplist(v)
	if !ok {
		return base, false
	}

	cfg := base
	for _, p := range props {
		switch p.Key {
		case "active":
			b, ok := term.AsBool(p.Value)
			if !ok {
				return base, false
			}
			cfg.Active = b
		case "speed", "data_bits", "stop_bits":
			i, ok := term.AsInt(p.Value)
			if !ok {
				return base, false
			}
			switch p.Key {
			case "speed":
				cfg.Speed = int(i)
			case "data_bits":
				cfg.DataBits = int(i)
			default:
				cfg.StopBits = int(i)
			}
		case "parity":
			a, ok := term.AsAtom(p.Value)
			if !ok {
				return base, false
			}
			if parity, ok := uart.ParseParity(string(a)); ok {
				cfg.Parity = parity
			}
		case "flow_control":
			a, ok := term.AsAtom(p.Value)
			if !ok {
				return base, false
			}
			if fc, ok := uart.ParseFlowControl(string(a)); ok {
				cfg.FlowControl = fc
			}
		}
	}
	return cfg, true
}

// configOptions is the inverse of mergeOptions, used by the configuration
// reply and by clients building an open request.
func configOptions(cfg uart.Config) term.List {
	return term.List{
		term.Tuple{term.Atom("speed"), cfg.Speed},
		term.Tuple{term.Atom("data_bits"), cfg.DataBits},
		term.Tuple{term.Atom("stop_bits"), cfg.StopBits},
		term.Tuple{term.Atom("parity"), term.Atom(cfg.Parity.String())},
		term.Tuple{term.Atom("flow_control"), term.Atom(cfg.FlowControl.String())},
	}
}

// ConfigOptions returns the full option list for cfg, including the mode.
func ConfigOptions(cfg uart.Config) term.List {
	return append(term.List{term.Tuple{term.Atom("active"), cfg.Active}}, configOptions(cfg)...)
}

// ParseConfiguration reads the option list of a configuration reply back
// into a Config.
func ParseConfiguration(v any) (uart.Config, bool) {
	return mergeOptions(uart.DefaultConfig(), v)
}
