package uart

import "time"

type pendingWrite struct {
	buf      []byte
	offset   int
	deadline time.Time
}

func (w *pendingWrite) remaining() []byte {
	return w.buf[w.offset:]
}

type pendingRead struct {
	deadline time.Time
}

// handle is the state of the one port an Engine manages. At most one read
// and one write are pending at any time.
type handle struct {
	open    bool
	name    string
	config  Config
	write   *pendingWrite
	read    *pendingRead
	lastErr error
}

func (h *handle) active() bool {
	return h.config.Active
}
