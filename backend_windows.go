//go:build windows

package uart

import (
	"math"
	"time"
	"unsafe"

	"golang.org/x/sys/windows"
)

// DCB bit fields and comm API values from winbase.h.
const (
	dcbBinary        = 1 << 0
	dcbOutxCtsFlow   = 1 << 2
	dcbOutxDsrFlow   = 1 << 3
	dcbDtrShift      = 4
	dcbDtrMask       = 3 << dcbDtrShift
	dcbOutX          = 1 << 8
	dcbInX           = 1 << 9
	dcbRtsShift      = 12
	dcbRtsMask       = 3 << dcbRtsShift
	controlDisable   = 0
	controlEnable    = 1
	controlHandshake = 2

	noParity    = 0
	oddParity   = 1
	evenParity  = 2
	markParity  = 3
	spaceParity = 4

	oneStopBit  = 0
	twoStopBits = 2

	escSetRTS   = 3
	escClrRTS   = 4
	escSetDTR   = 5
	escClrDTR   = 6
	escSetBreak = 8
	escClrBreak = 9

	purgeTxAbort = 0x1
	purgeRxAbort = 0x2
	purgeTxClear = 0x4
	purgeRxClear = 0x8

	evRxChar = 0x1

	msCtsOn  = 0x10
	msDsrOn  = 0x20
	msRingOn = 0x40
	msRlsdOn = 0x80

	waitObject0  = 0x0
	waitTimedOut = 0x102
	maxDword     = math.MaxUint32
)

// overlappedBackend drives a COM port through overlapped I/O. Readiness
// comes from three events: Wake, the in-flight write and WaitCommEvent.
type overlappedBackend struct {
	h   windows.Handle
	dcb windows.DCB

	wakeEv  windows.Handle
	writeOv windows.Overlapped
	readOv  windows.Overlapped
	commOv  windows.Overlapped

	commMask    uint32
	writing     bool
	waitingComm bool
	commErr     error
}

var _ Backend = (*overlappedBackend)(nil)

// NewBackend creates the events that the backend reuses for every port it
// opens.
func NewBackend() (Backend, error) {
	b := &overlappedBackend{h: windows.InvalidHandle}
	events := []*windows.Handle{&b.wakeEv, &b.writeOv.HEvent, &b.readOv.HEvent, &b.commOv.HEvent}
	for i, ev := range events {
		// Wake is auto-reset; the overlapped events are reset by hand
		manual := uint32(1)
		if i == 0 {
			manual = 0
		}
		h, err := windows.CreateEvent(nil, manual, 0, nil)
		if err != nil {
			b.Release()
			return nil, opError("create event", err)
		}
		*ev = h
	}
	return b, nil
}

func (b *overlappedBackend) isOpen() bool {
	return b.h != windows.InvalidHandle
}

func (b *overlappedBackend) Open(name string, cfg Config) error {
	if b.isOpen() {
		b.Close()
	}

	path, err := windows.UTF16PtrFromString(`\\.\` + name)
	if err != nil {
		return opError("open "+name, err)
	}
	h, err := windows.CreateFile(path,
		windows.GENERIC_READ|windows.GENERIC_WRITE,
		0, // no sharing
		nil,
		windows.OPEN_EXISTING,
		windows.FILE_ATTRIBUTE_NORMAL|windows.FILE_FLAG_OVERLAPPED,
		0)
	if err != nil {
		return opError("open "+name, err)
	}

	b.dcb = windows.DCB{}
	b.dcb.DCBlength = uint32(unsafe.Sizeof(b.dcb))
	if err := windows.GetCommState(h, &b.dcb); err != nil {
		windows.CloseHandle(h)
		return opError("get comm state", err)
	}
	b.dcb.Flags |= dcbBinary
	b.setRTSControl(controlEnable)
	b.setDTRControl(controlDisable)

	if err := b.applyLine(h, cfg); err != nil {
		windows.CloseHandle(h)
		return err
	}

	// Reads return at once with whatever has arrived; writes never time out
	// in the driver, the engine tracks their deadline.
	timeouts := windows.CommTimeouts{ReadIntervalTimeout: maxDword}
	if err := windows.SetCommTimeouts(h, &timeouts); err != nil {
		windows.CloseHandle(h)
		return opError("set comm timeouts", err)
	}

	windows.PurgeComm(h, purgeRxClear|purgeTxClear)

	if err := windows.SetCommMask(h, evRxChar); err != nil {
		windows.CloseHandle(h)
		return opError("set comm mask", err)
	}

	windows.ResetEvent(b.writeOv.HEvent)
	windows.ResetEvent(b.readOv.HEvent)
	windows.ResetEvent(b.commOv.HEvent)
	b.writing = false
	b.waitingComm = false
	b.commErr = nil
	b.h = h
	return nil
}

func (b *overlappedBackend) setRTSControl(v uint32) {
	b.dcb.Flags = b.dcb.Flags&^dcbRtsMask | v<<dcbRtsShift
}

func (b *overlappedBackend) setDTRControl(v uint32) {
	b.dcb.Flags = b.dcb.Flags&^dcbDtrMask | v<<dcbDtrShift
}

func (b *overlappedBackend) rtsControl() uint32 {
	return (b.dcb.Flags & dcbRtsMask) >> dcbRtsShift
}

func (b *overlappedBackend) dtrControl() uint32 {
	return (b.dcb.Flags & dcbDtrMask) >> dcbDtrShift
}

// applyLine writes speed, framing and flow control into the cached DCB. The
// cached RTS and DTR states go along so SetCommState keeps them.
func (b *overlappedBackend) applyLine(h windows.Handle, cfg Config) error {
	b.dcb.BaudRate = uint32(cfg.Speed)
	b.dcb.ByteSize = uint8(cfg.DataBits)

	switch cfg.Parity {
	case ParityOdd:
		b.dcb.Parity = oddParity
	case ParityEven:
		b.dcb.Parity = evenParity
	case ParityMark:
		b.dcb.Parity = markParity
	case ParitySpace:
		b.dcb.Parity = spaceParity
	default:
		b.dcb.Parity = noParity
	}

	if cfg.StopBits == 2 {
		b.dcb.StopBits = twoStopBits
	} else {
		b.dcb.StopBits = oneStopBit
	}

	b.dcb.Flags &^= dcbInX | dcbOutX | dcbOutxDsrFlow | dcbOutxCtsFlow
	if b.rtsControl() == controlHandshake {
		b.setRTSControl(controlEnable)
	}
	switch cfg.FlowControl {
	case FlowControlSoftware:
		b.dcb.Flags |= dcbInX | dcbOutX
	case FlowControlHardware:
		b.dcb.Flags |= dcbOutxCtsFlow
		b.setRTSControl(controlHandshake)
	}

	if err := windows.SetCommState(h, &b.dcb); err != nil {
		return opError("set comm state", err)
	}
	return nil
}

func (b *overlappedBackend) Configure(cfg Config) error {
	if !b.isOpen() {
		return ErrPortClosed
	}
	return b.applyLine(b.h, cfg)
}

func (b *overlappedBackend) Close() error {
	if !b.isOpen() {
		return nil
	}
	windows.PurgeComm(b.h, purgeRxAbort|purgeTxAbort)
	err := windows.CloseHandle(b.h)
	b.h = windows.InvalidHandle
	b.writing = false
	b.waitingComm = false
	b.commErr = nil
	return opError("close", err)
}

func (b *overlappedBackend) Write(p []byte) (int, error) {
	if !b.isOpen() {
		return 0, ErrPortClosed
	}

	var n uint32
	if !b.writing {
		windows.ResetEvent(b.writeOv.HEvent)
		err := windows.WriteFile(b.h, p, nil, &b.writeOv)
		if err != nil && err != windows.ERROR_IO_PENDING {
			return 0, opError("write", err)
		}
		b.writing = true
	}

	err := windows.GetOverlappedResult(b.h, &b.writeOv, &n, false)
	if err == windows.ERROR_IO_INCOMPLETE {
		return 0, ErrWouldBlock
	}
	b.writing = false
	windows.ResetEvent(b.writeOv.HEvent)
	if err != nil {
		return int(n), opError("write", err)
	}
	return int(n), nil
}

// CancelWrite aborts a write the engine has timed out.
func (b *overlappedBackend) CancelWrite() error {
	if !b.isOpen() || !b.writing {
		return nil
	}
	windows.CancelIoEx(b.h, &b.writeOv)
	var n uint32
	windows.GetOverlappedResult(b.h, &b.writeOv, &n, true)
	b.writing = false
	windows.ResetEvent(b.writeOv.HEvent)
	return nil
}

func (b *overlappedBackend) Read(p []byte) (int, error) {
	if !b.isOpen() {
		return 0, ErrPortClosed
	}
	if err := b.commErr; err != nil {
		b.commErr = nil
		return 0, opError("wait comm event", err)
	}

	var n uint32
	windows.ResetEvent(b.readOv.HEvent)
	err := windows.ReadFile(b.h, p, nil, &b.readOv)
	if err != nil && err != windows.ERROR_IO_PENDING {
		return 0, opError("read", err)
	}
	if err == windows.ERROR_IO_PENDING {
		// Bytes were signalled and should be along shortly
		windows.WaitForSingleObject(b.readOv.HEvent, 100)
	}
	err = windows.GetOverlappedResult(b.h, &b.readOv, &n, false)
	if err == windows.ERROR_IO_INCOMPLETE {
		windows.CancelIoEx(b.h, &b.readOv)
		err = windows.GetOverlappedResult(b.h, &b.readOv, &n, true)
		if err == windows.ERROR_OPERATION_ABORTED {
			err = nil
		}
	}
	if err != nil {
		return 0, opError("read", err)
	}
	if n == 0 {
		return 0, ErrWouldBlock
	}
	return int(n), nil
}

func (b *overlappedBackend) Drain() error {
	if !b.isOpen() {
		return ErrPortClosed
	}
	return opError("drain", windows.FlushFileBuffers(b.h))
}

func (b *overlappedBackend) Flush(dir Direction) error {
	if !b.isOpen() {
		return ErrPortClosed
	}
	flags := uint32(purgeRxClear | purgeTxClear)
	switch dir {
	case DirectionReceive:
		flags = purgeRxClear
	case DirectionTransmit:
		flags = purgeTxClear
	}
	return opError("flush", windows.PurgeComm(b.h, flags))
}

func (b *overlappedBackend) SetRTS(on bool) error {
	if !b.isOpen() {
		return ErrPortClosed
	}
	fn := uint32(escClrRTS)
	b.setRTSControl(controlDisable)
	if on {
		fn = escSetRTS
		b.setRTSControl(controlEnable)
	}
	return opError("set rts", windows.EscapeCommFunction(b.h, fn))
}

func (b *overlappedBackend) SetDTR(on bool) error {
	if !b.isOpen() {
		return ErrPortClosed
	}
	fn := uint32(escClrDTR)
	b.setDTRControl(controlDisable)
	if on {
		fn = escSetDTR
		b.setDTRControl(controlEnable)
	}
	return opError("set dtr", windows.EscapeCommFunction(b.h, fn))
}

func (b *overlappedBackend) SetBreak(on bool) error {
	if !b.isOpen() {
		return ErrPortClosed
	}
	fn := uint32(escClrBreak)
	if on {
		fn = escSetBreak
	}
	return opError("set break", windows.EscapeCommFunction(b.h, fn))
}

// Signals reads the input lines from the driver. DTR and RTS come from the
// cached DCB, and ST/SR do not exist on Windows.
func (b *overlappedBackend) Signals() (Signals, error) {
	if !b.isOpen() {
		return Signals{}, ErrPortClosed
	}
	var status uint32
	if err := windows.GetCommModemStatus(b.h, &status); err != nil {
		return Signals{}, opError("get modem status", err)
	}
	return Signals{
		DSR: status&msDsrOn != 0,
		DTR: b.dtrControl() == controlEnable,
		RTS: b.rtsControl() == controlEnable,
		CTS: status&msCtsOn != 0,
		CD:  status&msRlsdOn != 0,
		RNG: status&msRingOn != 0,
	}, nil
}

func (b *overlappedBackend) armCommEvent() error {
	if b.waitingComm {
		return nil
	}
	windows.ResetEvent(b.commOv.HEvent)
	err := windows.WaitCommEvent(b.h, &b.commMask, &b.commOv)
	switch {
	case err == nil:
		windows.SetEvent(b.commOv.HEvent)
	case err != windows.ERROR_IO_PENDING:
		return opError("wait comm event", err)
	}
	b.waitingComm = true
	return nil
}

func (b *overlappedBackend) finishCommEvent(r *Readiness) {
	var n uint32
	err := windows.GetOverlappedResult(b.h, &b.commOv, &n, false)
	if err == windows.ERROR_IO_INCOMPLETE {
		return
	}
	b.waitingComm = false
	windows.ResetEvent(b.commOv.HEvent)
	if err != nil {
		b.commErr = err
		r.Readable = true
		return
	}
	if b.commMask&evRxChar != 0 {
		r.Readable = true
	}
}

func (b *overlappedBackend) Wait(interest Interest, timeout time.Duration) (Readiness, error) {
	var r Readiness

	handles := []windows.Handle{b.wakeEv}
	writeIdx, commIdx := -1, -1
	if b.isOpen() {
		if interest.Write {
			if !b.writing {
				// Nothing in flight, the engine can try again right away
				r.Writable = true
				return r, nil
			}
			writeIdx = len(handles)
			handles = append(handles, b.writeOv.HEvent)
		}
		if interest.Read {
			if err := b.armCommEvent(); err != nil {
				b.commErr = err
				r.Readable = true
				return r, nil
			}
			commIdx = len(handles)
			handles = append(handles, b.commOv.HEvent)
		}
	}

	ev, err := windows.WaitForMultipleObjects(handles, false, waitMillis(timeout))
	if err != nil {
		return r, opError("wait", err)
	}
	if ev == waitTimedOut {
		return r, nil
	}

	switch int(ev - waitObject0) {
	case 0:
		r.Woken = true
	case writeIdx:
		r.Writable = true
	case commIdx:
		b.finishCommEvent(&r)
	}
	return r, nil
}

func waitMillis(d time.Duration) uint32 {
	if d < 0 {
		return windows.INFINITE
	}
	ms := (d + time.Millisecond - 1) / time.Millisecond
	if ms >= maxDword {
		return windows.INFINITE
	}
	return uint32(ms)
}

func (b *overlappedBackend) Wake() error {
	return opError("wake", windows.SetEvent(b.wakeEv))
}

func (b *overlappedBackend) Release() error {
	b.Close()
	for _, h := range []windows.Handle{b.wakeEv, b.writeOv.HEvent, b.readOv.HEvent, b.commOv.HEvent} {
		if h != 0 {
			windows.CloseHandle(h)
		}
	}
	return nil
}
