/*
Copyright © 2025 Mathias Djärv <mathias.djarv@allbinary.se>
*/
package cmd

import (
	"bytes"
	"context"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/viper"

	"github.com/allbin/go-uart"
	"github.com/allbin/go-uart/internal/hostclient"
	"github.com/allbin/go-uart/internal/uarttest"
)

func TestParseSignalState(t *testing.T) {
	tests := []struct {
		in      string
		want    bool
		wantErr bool
	}{
		{"high", true, false},
		{"ON", true, false},
		{"1", true, false},
		{"low", false, false},
		{"false", false, false},
		{"maybe", false, true},
	}
	for _, tt := range tests {
		got, err := parseSignalState(tt.in)
		if (err != nil) != tt.wantErr || got != tt.want {
			t.Errorf("parseSignalState(%q) = %v, %v, want %v (error %v)", tt.in, got, err, tt.want, tt.wantErr)
		}
	}
}

func TestParseHexString(t *testing.T) {
	tests := []struct {
		in      string
		want    []byte
		wantErr bool
	}{
		{"48656c6c6f", []byte("Hello"), false},
		{"48 65 6C", []byte("Hel"), false},
		{"0x01 0x02", []byte{1, 2}, false},
		{"123", nil, true},
		{"zz", nil, true},
	}
	for _, tt := range tests {
		got, err := parseHexString(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("parseHexString(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if !tt.wantErr && !bytes.Equal(got, tt.want) {
			t.Errorf("parseHexString(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestPreview(t *testing.T) {
	if got := preview([]byte("ab\x00c"), 50); got != "ab·c" {
		t.Errorf("preview() = %q, want %q", got, "ab·c")
	}
	if got := preview([]byte(strings.Repeat("x", 60)), 50); got != strings.Repeat("x", 50)+"..." {
		t.Errorf("preview() = %q, want 50 bytes and ellipsis", got)
	}
}

func TestPortName(t *testing.T) {
	tests := map[string]string{
		"/dev/ttyUSB0": "ttyUSB0",
		"ttyS1":        "ttyS1",
		"COM3":         "COM3",
	}
	for in, want := range tests {
		if got := portName(in); got != want {
			t.Errorf("portName(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestFilterPorts(t *testing.T) {
	ports := []uart.PortInfo{
		{Name: "ttyACM0", IsUSB: true},
		{Name: "ttyAMA0"},
		{Name: "ttyS0"},
		{Name: "ttyUSB0", IsUSB: true},
	}
	names := func(ps []uart.PortInfo) []string {
		var out []string
		for _, p := range ps {
			out = append(out, p.Name)
		}
		return out
	}

	tests := []struct {
		filter string
		want   []string
	}{
		{"", []string{"ttyACM0", "ttyAMA0", "ttyS0", "ttyUSB0"}},
		{"usb", []string{"ttyACM0", "ttyUSB0"}},
		{"standard", []string{"ttyS0"}},
		{"ARM", []string{"ttyAMA0"}},
		{"bogus", nil},
	}
	for _, tt := range tests {
		t.Run(tt.filter, func(t *testing.T) {
			if got := names(filterPorts(ports, tt.filter)); !reflect.DeepEqual(got, tt.want) {
				t.Errorf("filterPorts(%q) = %v, want %v", tt.filter, got, tt.want)
			}
		})
	}
}

func TestGetPortType(t *testing.T) {
	tests := map[string]string{
		"ttyUSB0": "USB Serial",
		"ttyACM1": "USB CDC/ACM",
		"ttySAC0": "Samsung Serial",
		"ttyS0":   "Standard Serial",
		"COM4":    "COM Port",
		"rfcomm0": "Serial Port",
	}
	for in, want := range tests {
		if got := getPortType(in); got != want {
			t.Errorf("getPortType(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestPortConfig(t *testing.T) {
	defer viper.Reset()

	viper.Set("port.speed", 115200)
	viper.Set("port.flow_control", "hardware")
	cfg, err := portConfig()
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Speed != 115200 || cfg.FlowControl != uart.FlowControlHardware || cfg.Active {
		t.Errorf("portConfig() = %v, want passive 115200 with hardware flow control", cfg)
	}

	viper.Set("port.flow_control", "xon")
	if _, err := portConfig(); err == nil {
		t.Error("portConfig() with bad flow control succeeded")
	}
}

func TestNewLoggerLevel(t *testing.T) {
	defer viper.Reset()

	viper.Set("log.level", "info")
	var buf bytes.Buffer
	l, err := newLogger(&buf)
	if err != nil {
		t.Fatal(err)
	}
	l.Debug().Msg("hidden")
	l.Info().Msg("shown")
	if out := buf.String(); strings.Contains(out, "hidden") || !strings.Contains(out, "shown") {
		t.Errorf("log output = %q, want only the info line", out)
	}

	viper.Set("log.level", "loud")
	if _, err := newLogger(&buf); err == nil {
		t.Error("newLogger() with bad level succeeded")
	}
}

// cancelWriter cancels the capture once it has seen want bytes.
type cancelWriter struct {
	bytes.Buffer
	want   int
	cancel context.CancelFunc
}

func (w *cancelWriter) Write(p []byte) (int, error) {
	n, err := w.Buffer.Write(p)
	if w.Len() >= w.want {
		w.cancel()
	}
	return n, err
}

func TestCapture(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	b := uarttest.New()
	client, _ := hostclient.Spawn(context.Background(), b, zerolog.Nop())
	defer client.Stop()

	cfg := uart.DefaultConfig()
	cfg.Active = false
	if err := client.Open(ctx, "ttyS0", cfg); err != nil {
		t.Fatal(err)
	}

	captureCtx, stop := context.WithCancel(ctx)
	out := &cancelWriter{want: 6, cancel: stop}
	b.Receive([]byte("abc"))
	go func() {
		time.Sleep(20 * time.Millisecond)
		b.Receive([]byte("def"))
	}()

	n, err := capture(captureCtx, client, out, 10*time.Millisecond)
	if err != nil {
		t.Fatalf("capture() = %v", err)
	}
	if n != 6 || out.String() != "abcdef" {
		t.Errorf("capture() wrote %d bytes %q, want 6 bytes %q", n, out.String(), "abcdef")
	}
	if ctx.Err() != nil {
		t.Error("capture did not stop before the test deadline")
	}
}

func TestFindPort(t *testing.T) {
	ports := []uart.PortInfo{{Name: "ttyUSB0", Path: "/dev/ttyUSB0"}}
	if _, ok := findPort(ports, "ttyUSB0"); !ok {
		t.Error("findPort(ttyUSB0) not found")
	}
	if _, ok := findPort(ports, "ttyUSB1"); ok {
		t.Error("findPort(ttyUSB1) found")
	}
}
