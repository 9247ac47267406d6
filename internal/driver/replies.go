package driver

import (
	"github.com/allbin/go-uart"
	"github.com/allbin/go-uart/internal/hostchan"
	"github.com/allbin/go-uart/internal/term"
)

var (
	atomOK    = term.Atom("ok")
	atomError = term.Atom("error")
	atomNotif = term.Atom("notif")
)

func errorTerm(err error) term.Tuple {
	return term.Tuple{atomError, term.Atom(uart.Reason(err))}
}

// resultTerm is ok or {error, Reason}.
func resultTerm(err error) any {
	if err != nil {
		return errorTerm(err)
	}
	return atomOK
}

func signalsTerm(s uart.Signals) term.Map {
	fields := s.Fields()
	m := make(term.Map, 0, len(fields))
	for _, f := range fields {
		m = append(m, term.Pair{Key: term.Atom(f.Name), Value: f.Value})
	}
	return m
}

// eventMessage converts an engine event into the prefix and term sent to
// the host. Completions are replies to the write or read that started
// them.
func eventMessage(ev uart.Event) (byte, any) {
	switch ev.Kind {
	case uart.ReadDone:
		if ev.Err != nil {
			return hostchan.Reply, errorTerm(ev.Err)
		}
		return hostchan.Reply, term.Tuple{atomOK, term.Binary(ev.Data)}
	case uart.Notification:
		if ev.Err != nil {
			return hostchan.Notification, term.Tuple{atomNotif, errorTerm(ev.Err)}
		}
		return hostchan.Notification, term.Tuple{atomNotif, term.Binary(ev.Data)}
	default:
		return hostchan.Reply, resultTerm(ev.Err)
	}
}
