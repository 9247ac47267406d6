package uart

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"go.bug.st/serial/enumerator"
)

// PortInfo describes a serial port found on the system.
type PortInfo struct {
	Name         string // ttyUSB0, COM3
	Path         string // as reported by the OS, e.g. /dev/ttyUSB0
	Description  string
	Manufacturer string
	SerialNumber string
	VendorID     uint16
	ProductID    uint16
	IsUSB        bool
}

// allow tests to replace the OS enumerator
var detailedPortsList = enumerator.GetDetailedPortsList

// ListPorts returns the serial ports present on the system, sorted by name.
func ListPorts() ([]PortInfo, error) {
	details, err := detailedPortsList()
	if err != nil {
		return nil, fmt.Errorf("enumerate ports: %w", err)
	}

	ports := make([]PortInfo, 0, len(details))
	for _, d := range details {
		if d == nil || d.Name == "" {
			continue
		}
		ports = append(ports, portInfoFromDetails(d))
	}

	sort.Slice(ports, func(i, j int) bool {
		return ports[i].Name < ports[j].Name
	})
	return ports, nil
}

func portInfoFromDetails(d *enumerator.PortDetails) PortInfo {
	info := PortInfo{
		Name:         strings.TrimPrefix(d.Name, "/dev/"),
		Path:         d.Name,
		Description:  d.Product,
		SerialNumber: d.SerialNumber,
		IsUSB:        d.IsUSB,
	}
	if d.IsUSB {
		info.VendorID = parseUSBID(d.VID)
		info.ProductID = parseUSBID(d.PID)
	}
	enrichPortInfo(&info)
	return info
}

// parseUSBID parses a hexadecimal USB id such as "0403". Malformed ids
// are reported as 0, which means unknown.
func parseUSBID(s string) uint16 {
	id, err := strconv.ParseUint(strings.TrimPrefix(strings.ToLower(s), "0x"), 16, 16)
	if err != nil {
		return 0
	}
	return uint16(id)
}

// Label is the description, or a generic one derived from the name.
func (p PortInfo) Label() string {
	if p.Description != "" {
		return p.Description
	}
	return getPortDescription(p.Name)
}

// getPortDescription provides human-readable descriptions for different port types
func getPortDescription(name string) string {
	switch {
	case strings.HasPrefix(name, "ttyUSB"):
		return "USB Serial Port"
	case strings.HasPrefix(name, "ttyACM"):
		return "USB CDC/ACM Device"
	case strings.HasPrefix(name, "ttyAMA"):
		return "ARM Serial Port"
	case strings.HasPrefix(name, "ttymxc"):
		return "i.MX Serial Port"
	case strings.HasPrefix(name, "ttySAC"):
		return "Samsung Serial Port"
	case strings.HasPrefix(name, "ttyTHS"):
		return "Tegra Serial Port"
	case strings.HasPrefix(name, "ttyO"):
		return "OMAP Serial Port"
	case strings.HasPrefix(name, "ttyS"):
		return "Standard Serial Port"
	case strings.HasPrefix(name, "COM"):
		return "COM Port"
	case strings.HasPrefix(name, "cu."), strings.HasPrefix(name, "tty."):
		return "Serial Device"
	default:
		return "Serial Port"
	}
}
