package uart

import (
	"os"
	"path/filepath"
	"testing"
)

func TestEnrichPortInfoFromSysfs(t *testing.T) {
	root := t.TempDir()
	usbDev := filepath.Join(root, "devices", "usb1", "1-1")
	ttyDev := filepath.Join(usbDev, "1-1:1.0", "ttyUSB0")
	if err := os.MkdirAll(ttyDev, 0o755); err != nil {
		t.Fatal(err)
	}
	files := map[string]string{
		"idVendor":     "0403\n",
		"manufacturer": "FTDI\n",
		"product":      "FT232R USB UART\n",
		"serial":       "A50285BI\n",
	}
	for name, content := range files {
		if err := os.WriteFile(filepath.Join(usbDev, name), []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	class := filepath.Join(root, "class", "tty", "ttyUSB0")
	if err := os.MkdirAll(class, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.Symlink(ttyDev, filepath.Join(class, "device")); err != nil {
		t.Fatal(err)
	}

	orig := sysfsTTY
	sysfsTTY = filepath.Join(root, "class", "tty")
	t.Cleanup(func() { sysfsTTY = orig })

	info := PortInfo{Name: "ttyUSB0", IsUSB: true}
	enrichPortInfo(&info)

	if info.Manufacturer != "FTDI" {
		t.Errorf("Manufacturer = %q, want %q", info.Manufacturer, "FTDI")
	}
	if info.Description != "FT232R USB UART" {
		t.Errorf("Description = %q, want %q", info.Description, "FT232R USB UART")
	}
	if info.SerialNumber != "A50285BI" {
		t.Errorf("SerialNumber = %q, want %q", info.SerialNumber, "A50285BI")
	}

	plain := PortInfo{Name: "ttyS0"}
	enrichPortInfo(&plain)
	if plain.Manufacturer != "" {
		t.Errorf("non-USB port got manufacturer %q", plain.Manufacturer)
	}
}
