/*
Copyright © 2025 Mathias Djärv <mathias.djarv@allbinary.se>
*/
package cmd

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/allbin/go-uart"
	"github.com/allbin/go-uart/internal/driver"
)

// enumerateCmd writes the port list as one framed reply and exits
var enumerateCmd = &cobra.Command{
	Use:   "enumerate",
	Short: "Print the serial port list for the host",
	Long: `Print a single length-prefixed reply on stdout holding a map from
port name to what is known about it (description, manufacturer,
serial_number, vendor_id, product_id), then exit.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := driver.Enumerate(os.Stdout, uart.ListPorts); err != nil {
			logger.Error().Err(err).Msg("enumeration failed")
			return err
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(enumerateCmd)
}
