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

// rtsCmd represents the rts command
var rtsCmd = &cobra.Command{
	Use:   "rts <port> <state>",
	Short: "Control RTS (Request To Send) signal",
	Long: `Manually set the RTS (Request To Send) signal state.

Examples:
  uartd rts ttyUSB0 high
  uartd rts ttyUSB0 off

Valid states: high, low, on, off, true, false, 1, 0`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return setLine(cmd.Context(), "RTS", args, (*hostclient.Client).SetRTS, func(c *hostclient.Client, ctx context.Context) (bool, error) {
			s, err := c.Signals(ctx)
			return s.RTS, err
		})
	},
}

// setLine sets an output line and reads it back.
func setLine(ctx context.Context, line string, args []string,
	set func(*hostclient.Client, context.Context, bool) error,
	get func(*hostclient.Client, context.Context) (bool, error),
) error {
	state, err := parseSignalState(args[1])
	if err != nil {
		return err
	}

	return withPort(ctx, portName(args[0]), func(ctx context.Context, c *hostclient.Client) error {
		if err := set(c, ctx, state); err != nil {
			return fmt.Errorf("setting %s: %w", line, err)
		}

		current, err := get(c, ctx)
		if err != nil {
			logger.Warn().Err(err).Str("line", line).Msg("could not verify line state")
			current = state
		}
		fmt.Printf("%s set to %s on %s\n", line, formatSignalState(current), args[0])
		return nil
	})
}

func init() {
	rootCmd.AddCommand(rtsCmd)
}
