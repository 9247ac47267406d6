package uart

import "testing"

func TestDefaultConfig(t *testing.T) {
	config := DefaultConfig()

	if !config.Active {
		t.Errorf("Expected active mode by default")
	}

	if config.Speed != 9600 {
		t.Errorf("Expected Speed 9600, got %d", config.Speed)
	}

	if config.DataBits != 8 {
		t.Errorf("Expected DataBits 8, got %d", config.DataBits)
	}

	if config.StopBits != 1 {
		t.Errorf("Expected StopBits 1, got %d", config.StopBits)
	}

	if config.Parity != ParityNone {
		t.Errorf("Expected Parity None, got %v", config.Parity)
	}

	if config.FlowControl != FlowControlNone {
		t.Errorf("Expected FlowControl None, got %v", config.FlowControl)
	}
}

func TestFunctionalOptions(t *testing.T) {
	config, err := NewConfig(
		WithSpeed(115200),
		WithDataBits(7),
		WithStopBits(2),
		WithParity(ParityOdd),
		WithFlowControl(FlowControlHardware),
		WithActive(false),
	)
	if err != nil {
		t.Fatalf("NewConfig failed: %v", err)
	}

	if config.Speed != 115200 {
		t.Errorf("Expected Speed 115200, got %d", config.Speed)
	}
	if config.DataBits != 7 {
		t.Errorf("Expected DataBits 7, got %d", config.DataBits)
	}
	if config.StopBits != 2 {
		t.Errorf("Expected StopBits 2, got %d", config.StopBits)
	}
	if config.Parity != ParityOdd {
		t.Errorf("Expected Parity Odd, got %v", config.Parity)
	}
	if config.FlowControl != FlowControlHardware {
		t.Errorf("Expected FlowControl Hardware, got %v", config.FlowControl)
	}
	if config.Active {
		t.Errorf("Expected passive mode")
	}
}

func TestInvalidOptions(t *testing.T) {
	opts := map[string]Option{
		"data bits 4": WithDataBits(4),
		"data bits 9": WithDataBits(9),
		"stop bits 0": WithStopBits(0),
		"speed 0":     WithSpeed(0),
	}
	for name, opt := range opts {
		if _, err := NewConfig(opt); err == nil {
			t.Errorf("NewConfig(%s) expected error", name)
		}
	}
}

func TestSignalFieldOrder(t *testing.T) {
	s := Signals{DSR: true, CTS: true, RNG: true}
	want := []string{"dsr", "dtr", "rts", "st", "sr", "cts", "cd", "rng"}

	fields := s.Fields()
	if len(fields) != len(want) {
		t.Fatalf("Fields() returned %d entries, want %d", len(fields), len(want))
	}
	for i, f := range fields {
		if f.Name != want[i] {
			t.Errorf("Fields()[%d] = %q, want %q", i, f.Name, want[i])
		}
	}
	if !fields[0].Value || !fields[5].Value || !fields[7].Value || fields[1].Value {
		t.Errorf("Fields() values = %+v, want dsr, cts and rng set", fields)
	}
}
