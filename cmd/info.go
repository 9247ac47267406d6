/*
Copyright © 2025 Mathias Djärv <mathias.djarv@allbinary.se>
*/
package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/allbin/go-uart"
)

// infoCmd represents the info command
var infoCmd = &cobra.Command{
	Use:   "info <port>",
	Short: "Display detailed information about a serial port",
	Long: `Display what enumeration knows about a serial port.

Examples:
  uartd info ttyUSB0
  uartd info /dev/ttyACM0

For USB devices this includes vendor/product IDs, the serial number and
the manufacturer.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ports, err := uart.ListPorts()
		if err != nil {
			return err
		}
		info, ok := findPort(ports, portName(args[0]))
		if !ok {
			return fmt.Errorf("%s: %w", args[0], uart.ErrDeviceNotFound)
		}

		fmt.Printf("Port Information: %s\n\n", info.Path)
		fmt.Printf("  Name:        %s\n", info.Name)
		fmt.Printf("  Type:        %s\n", getPortType(info.Name))
		fmt.Printf("  Description: %s\n", info.Label())

		if info.IsUSB {
			fmt.Println("\nUSB Device Information:")
			if info.VendorID != 0 {
				fmt.Printf("  Vendor ID:    %04x\n", info.VendorID)
			}
			if info.ProductID != 0 {
				fmt.Printf("  Product ID:   %04x\n", info.ProductID)
			}
			if info.SerialNumber != "" {
				fmt.Printf("  Serial:       %s\n", info.SerialNumber)
			}
			if info.Manufacturer != "" {
				fmt.Printf("  Manufacturer: %s\n", info.Manufacturer)
			}
		}
		return nil
	},
}

func findPort(ports []uart.PortInfo, name string) (uart.PortInfo, bool) {
	for _, p := range ports {
		if p.Name == name || p.Path == name {
			return p, true
		}
	}
	return uart.PortInfo{}, false
}

func init() {
	rootCmd.AddCommand(infoCmd)
}
