/*
Copyright © 2025 Mathias Djärv <mathias.djarv@allbinary.se>
*/
package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/allbin/go-uart/internal/hostclient"
)

// signalsCmd represents the signals command
var signalsCmd = &cobra.Command{
	Use:   "signals <port>",
	Short: "Display current modem signal states",
	Long: `Display the current state of all modem control signals.

Examples:
  uartd signals ttyUSB0
  uartd signals /dev/ttyACM0

Signal meanings:
  DSR - Data Set Ready (input)
  DTR - Data Terminal Ready (output)
  RTS - Request To Send (output)
  ST  - Secondary Transmit
  SR  - Secondary Receive
  CTS - Clear To Send (input)
  CD  - Carrier Detect (input)
  RNG - Ring Indicator (input)`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withPort(cmd.Context(), portName(args[0]), func(ctx context.Context, c *hostclient.Client) error {
			signals, err := c.Signals(ctx)
			if err != nil {
				return fmt.Errorf("reading modem signals: %w", err)
			}

			fmt.Printf("Modem Signals for %s:\n\n", args[0])
			for _, f := range signals.Fields() {
				fmt.Printf("  %-4s %s\n", f.Name, formatSignalState(f.Value))
			}
			return nil
		})
	},
}

func init() {
	rootCmd.AddCommand(signalsCmd)
}
