/*
Copyright © 2025 Mathias Djärv <mathias.djarv@allbinary.se>
*/
package cmd

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/allbin/go-uart/internal/hostclient"
)

// dtrCmd represents the dtr command
var dtrCmd = &cobra.Command{
	Use:   "dtr <port> <state>",
	Short: "Control DTR (Data Terminal Ready) signal",
	Long: `Manually set the DTR (Data Terminal Ready) signal state.

Many boards wire DTR to their reset line, so toggling it can restart the
device on the other end.

Examples:
  uartd dtr ttyUSB0 low
  uartd dtr ttyUSB0 on`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return setLine(cmd.Context(), "DTR", args, (*hostclient.Client).SetDTR, func(c *hostclient.Client, ctx context.Context) (bool, error) {
			s, err := c.Signals(ctx)
			return s.DTR, err
		})
	},
}

func init() {
	rootCmd.AddCommand(dtrCmd)
}
