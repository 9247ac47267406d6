// Package uart drives one hardware serial port on behalf of a host process.
//
// The port is managed by an Engine. The engine never blocks on the device:
// writes and passive reads that cannot finish at once are parked with a
// deadline, and their completions are reported as Events once the port is
// ready or the deadline passes.
//
// # Event Loop
//
// A single goroutine owns the engine and its Backend:
//
//	backend, err := uart.NewBackend()
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer backend.Release()
//
//	engine := uart.NewEngine(backend)
//	engine.Open("ttyUSB0", uart.DefaultConfig())
//
//	for {
//	    interest, timeout := engine.Interest(time.Now())
//	    ready, err := backend.Wait(interest, timeout)
//	    if err != nil {
//	        break
//	    }
//	    engine.Step(ready)
//	    for _, ev := range engine.Events() {
//	        handle(ev)
//	    }
//	}
//
// Backend.Wake interrupts Wait from another goroutine, for example when a
// new request arrives.
//
// # Active and Passive Mode
//
// In active mode (the default) received bytes are pushed as Notification
// events and Read is rejected. In passive mode the caller pulls data with
// Read.
//
// # Configuration Options
//
// Use functional options for custom configuration:
//
//	cfg, err := uart.NewConfig(
//	    uart.WithSpeed(115200),
//	    uart.WithParity(uart.ParityEven),
//	    uart.WithFlowControl(uart.FlowControlHardware),
//	    uart.WithActive(false),
//	)
//
// Speeds without a standard termios constant are set through the custom
// speed interface of the OS. A rate the driver refuses is reported as an
// error, never silently rounded.
//
// # Errors
//
// Failures carry a Kind whose Atom is the short reason reported to the
// host (enoent, ebadf, eagain, ...). Caller contract violations, such as a
// second write while one is pending, are returned as *FatalError.
//
// # Platform Support
//
// Linux and macOS use termios on a nonblocking descriptor. Windows uses
// overlapped I/O. The implementation is chosen at build time.
package uart
