package driver

import (
	"fmt"
	"io"

	"github.com/allbin/go-uart"
	"github.com/allbin/go-uart/internal/hostchan"
	"github.com/allbin/go-uart/internal/term"
)

// EncodePortList builds the enumeration reply: a map from port name to a
// map of whatever is known about the port.
func EncodePortList(ports []uart.PortInfo) term.Map {
	m := make(term.Map, 0, len(ports))
	for _, p := range ports {
		var info term.Map
		if p.Description != "" {
			info = append(info, term.Pair{Key: term.Atom("description"), Value: p.Description})
		}
		if p.Manufacturer != "" {
			info = append(info, term.Pair{Key: term.Atom("manufacturer"), Value: p.Manufacturer})
		}
		if p.SerialNumber != "" {
			info = append(info, term.Pair{Key: term.Atom("serial_number"), Value: p.SerialNumber})
		}
		if p.VendorID > 0 {
			info = append(info, term.Pair{Key: term.Atom("vendor_id"), Value: p.VendorID})
		}
		if p.ProductID > 0 {
			info = append(info, term.Pair{Key: term.Atom("product_id"), Value: p.ProductID})
		}
		m = append(m, term.Pair{Key: p.Name, Value: info})
	}
	return m
}

// Enumerate writes the port list to w as a single reply frame.
func Enumerate(w io.Writer, list func() ([]uart.PortInfo, error)) error {
	ports, err := list()
	if err != nil {
		return err
	}
	if err := hostchan.NewWriter(w).SendReply(EncodePortList(ports)); err != nil {
		return fmt.Errorf("send port list: %w", err)
	}
	return nil
}
