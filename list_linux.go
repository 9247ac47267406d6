package uart

import (
	"os"
	"path/filepath"
	"strings"
)

var sysfsTTY = "/sys/class/tty"

// enrichPortInfo fills manufacturer and product strings from the USB
// device that owns the tty. The enumerator does not report the
// manufacturer on Linux.
func enrichPortInfo(info *PortInfo) {
	if !info.IsUSB {
		return
	}
	dir := usbDeviceDir(info.Name)
	if dir == "" {
		return
	}
	if info.Manufacturer == "" {
		info.Manufacturer = readSysfsString(dir, "manufacturer")
	}
	if info.Description == "" {
		info.Description = readSysfsString(dir, "product")
	}
	if info.SerialNumber == "" {
		info.SerialNumber = readSysfsString(dir, "serial")
	}
}

// usbDeviceDir walks up from the tty's device link to the first directory
// with an idVendor file, which is the USB device itself.
func usbDeviceDir(name string) string {
	dir, err := filepath.EvalSymlinks(filepath.Join(sysfsTTY, name, "device"))
	if err != nil {
		return ""
	}
	for i := 0; i < 4 && dir != "/" && dir != "."; i++ {
		if _, err := os.Stat(filepath.Join(dir, "idVendor")); err == nil {
			return dir
		}
		dir = filepath.Dir(dir)
	}
	return ""
}

func readSysfsString(dir, file string) string {
	b, err := os.ReadFile(filepath.Join(dir, file))
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(b))
}
