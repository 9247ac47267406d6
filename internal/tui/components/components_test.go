package components

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/allbin/go-uart"
)

func TestParseHex(t *testing.T) {
	tests := []struct {
		in      string
		want    []byte
		wantErr bool
	}{
		{"48656C6C6F", []byte("Hello"), false},
		{"48 65 6c 6c 6f", []byte("Hello"), false},
		{"  0a ", []byte{0x0a}, false},
		{"", nil, true},
		{"abc", nil, true},
		{"gg", nil, true},
	}
	for _, tt := range tests {
		got, err := ParseHex(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseHex(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if !bytes.Equal(got, tt.want) {
			t.Errorf("ParseHex(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestInputPayload(t *testing.T) {
	in := NewInput("\r\n")
	in.textInput.SetValue("AT")
	got, err := in.Payload()
	if err != nil || string(got) != "AT\r\n" {
		t.Errorf("Payload() = %q, %v, want %q", got, err, "AT\r\n")
	}

	in.ToggleSendingMode()
	in.textInput.SetValue("41 54")
	got, err = in.Payload()
	if err != nil || string(got) != "AT" {
		t.Errorf("hex Payload() = %q, %v, want %q", got, err, "AT")
	}
}

func TestInputHistory(t *testing.T) {
	in := NewInput("")
	for _, line := range []string{"one", "two", "two", " "} {
		in.AddToHistory(line)
	}
	if len(in.history) != 2 {
		t.Fatalf("history = %v, want [one two]", in.history)
	}

	in.textInput.SetValue("draft")
	in.HistoryUp()
	in.HistoryUp()
	if got := in.Value(); got != "one" {
		t.Errorf("after two ups Value() = %q, want %q", got, "one")
	}
	in.HistoryDown()
	in.HistoryDown()
	if got := in.Value(); got != "draft" {
		t.Errorf("after returning Value() = %q, want %q", got, "draft")
	}
}

func TestPrintable(t *testing.T) {
	if got := printable([]byte("a\x1b[2Jb\xff")); got != "a.[2Jb." {
		t.Errorf("printable() = %q, want %q", got, "a.[2Jb.")
	}
}

func TestFormatMessageModes(t *testing.T) {
	msg := TrafficMsg{Timestamp: time.Now(), Direction: RX, Data: []byte("Hi")}
	df := NewDataFormatter(true, true)

	out := df.FormatMessage(msg)
	if !strings.Contains(out, "HEX: 48 69") || !strings.Contains(out, "ASCII: Hi") {
		t.Errorf("FormatMessage() = %q, want hex and ascii", out)
	}

	df.ToggleHex()
	df.ToggleASCII()
	if out := df.FormatMessage(msg); !strings.Contains(out, "BYTES: 2") {
		t.Errorf("FormatMessage() with both off = %q, want byte count", out)
	}
}

func TestTerminalCompletesWrite(t *testing.T) {
	term := NewTerminal(80, 10, 0)
	term.Add(TrafficMsg{Direction: TX, ID: 1, Data: []byte("x"), Status: TxPending})
	term.Add(TrafficMsg{Direction: RX, Data: []byte("y")})
	term.Add(TrafficMsg{Direction: TX, ID: 1, Status: TxWritten})

	entries := term.Entries()
	if len(entries) != 2 {
		t.Fatalf("entries = %d, want 2", len(entries))
	}
	if entries[0].Status != TxWritten || string(entries[0].Data) != "x" {
		t.Errorf("entry 0 = %+v, want written x", entries[0])
	}
}

func TestTerminalScrollback(t *testing.T) {
	term := NewTerminal(80, 10, 3)
	for i := 0; i < 5; i++ {
		term.Add(TrafficMsg{Direction: RX, Data: []byte{byte('a' + i)}})
	}
	entries := term.Entries()
	if len(entries) != 3 || string(entries[0].Data) != "c" {
		t.Errorf("entries = %+v, want the last three", entries)
	}

	term.Clear()
	if len(term.Entries()) != 0 {
		t.Error("Clear() kept entries")
	}
}

func TestStatusBarLines(t *testing.T) {
	sb := NewStatusBar("ttyUSB0")
	if got := sb.lines(); got != "-" {
		t.Errorf("lines() = %q, want -", got)
	}

	sb.SetSignals(uart.Signals{DTR: true, CTS: true})
	sb.SetBreak(true)
	if got := sb.lines(); got != "DTR CTS BRK" {
		t.Errorf("lines() = %q, want %q", got, "DTR CTS BRK")
	}

	sb.SetConnected(uart.DefaultConfig())
	if view := sb.View(false, "ASCII", "12:00:00"); !strings.Contains(view, "ttyUSB0") {
		t.Errorf("View() = %q, want port name", view)
	}
}
