// Package hostchan frames messages between the driver and its host. Every
// frame is a 2-byte big-endian length followed by that many bytes.
package hostchan

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/allbin/go-uart/internal/term"
)

// BufferSize bounds a frame including its length header.
const BufferSize = 16384

const headerSize = 2

// Message prefixes, written before the encoded term.
const (
	Reply        byte = 'r'
	Notification byte = 'n'
)

var ErrFrameTooLarge = errors.New("hostchan: frame too large")

// Reader splits a byte stream into frames.
type Reader struct {
	r     io.Reader
	buf   []byte
	start int
	end   int
}

func NewReader(r io.Reader) *Reader {
	return &Reader{r: r, buf: make([]byte, BufferSize)}
}

// ReadFrame returns the next frame payload. It returns io.EOF at a clean
// end of stream and io.ErrUnexpectedEOF when the stream stops inside a
// frame. A length that cannot fit the buffer is ErrFrameTooLarge, after
// which the stream is unusable.
func (r *Reader) ReadFrame() ([]byte, error) {
	for {
		if frame, ok, err := r.next(); err != nil || ok {
			return frame, err
		}

		if r.start > 0 {
			r.end = copy(r.buf, r.buf[r.start:r.end])
			r.start = 0
		}
		n, err := r.r.Read(r.buf[r.end:])
		r.end += n
		if n > 0 {
			continue
		}
		if err == io.EOF {
			if r.end > r.start {
				return nil, io.ErrUnexpectedEOF
			}
			return nil, io.EOF
		}
		if err != nil {
			return nil, err
		}
	}
}

// next extracts a complete frame from the buffer if there is one.
func (r *Reader) next() ([]byte, bool, error) {
	avail := r.end - r.start
	if avail < headerSize {
		return nil, false, nil
	}
	n := int(binary.BigEndian.Uint16(r.buf[r.start:]))
	if n+headerSize > len(r.buf) {
		return nil, false, fmt.Errorf("%w: %d bytes", ErrFrameTooLarge, n)
	}
	if avail < n+headerSize {
		return nil, false, nil
	}
	frame := make([]byte, n)
	copy(frame, r.buf[r.start+headerSize:])
	r.start += n + headerSize
	return frame, true, nil
}

// Writer frames messages onto a stream. It is safe for concurrent use.
type Writer struct {
	mu sync.Mutex
	w  io.Writer
}

func NewWriter(w io.Writer) *Writer {
	return &Writer{w: w}
}

// WriteFrame writes payload with its length header.
func (w *Writer) WriteFrame(payload []byte) error {
	if len(payload) > 0xffff {
		return fmt.Errorf("%w: %d bytes", ErrFrameTooLarge, len(payload))
	}
	frame := make([]byte, headerSize, headerSize+len(payload))
	binary.BigEndian.PutUint16(frame, uint16(len(payload)))
	frame = append(frame, payload...)

	w.mu.Lock()
	defer w.mu.Unlock()
	for len(frame) > 0 {
		n, err := w.w.Write(frame)
		if err != nil {
			return err
		}
		frame = frame[n:]
	}
	return nil
}

// Send writes prefix followed by the encoding of v as one frame.
func (w *Writer) Send(prefix byte, v any) error {
	payload, err := term.Append([]byte{prefix, term.Version}, v)
	if err != nil {
		return err
	}
	return w.WriteFrame(payload)
}

// SendReply sends v as a reply.
func (w *Writer) SendReply(v any) error {
	return w.Send(Reply, v)
}

// SendNotification sends v as an unsolicited notification.
func (w *Writer) SendNotification(v any) error {
	return w.Send(Notification, v)
}

// Message is a decoded frame from the driver.
type Message struct {
	Prefix byte
	Term   any
}

// ParseMessage splits a frame written by Send into its prefix and term.
func ParseMessage(frame []byte) (Message, error) {
	if len(frame) < 2 {
		return Message{}, term.ErrTruncated
	}
	v, err := term.Decode(frame[1:])
	if err != nil {
		return Message{}, err
	}
	return Message{Prefix: frame[0], Term: v}, nil
}
