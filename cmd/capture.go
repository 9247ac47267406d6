/*
Copyright © 2025 Mathias Djärv <mathias.djarv@allbinary.se>
*/
package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/allbin/go-uart/internal/hostclient"
)

// captureCmd represents the capture command
var captureCmd = &cobra.Command{
	Use:   "capture <port> <output-file>",
	Short: "Capture serial data to a file",
	Long: `Capture incoming serial data to a file for later parsing.

The port is opened in passive mode and read with a bounded wait, so an
idle line is reported as empty reads rather than blocking the driver.
Runs until interrupted (Ctrl+C) or until the port reports an error.

The output file is opened in append mode, allowing you to resume captures
without overwriting existing data.

Example usage:
  uartd capture ttyUSB0 data.log
  uartd capture ttyUSB0 output.txt --baud 9600 --console`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		wait, _ := cmd.Flags().GetDuration("wait")
		showConsole, _ := cmd.Flags().GetBool("console")

		file, err := os.OpenFile(args[1], os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			return fmt.Errorf("failed to open output file: %w", err)
		}
		defer file.Close()

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		cfg, err := portConfig()
		if err != nil {
			return err
		}
		client, closeSession, err := openSession(ctx, portName(args[0]), cfg)
		if err != nil {
			return err
		}
		defer closeSession()

		fmt.Fprintf(os.Stderr, "Capturing data from %s to %s\n", args[0], args[1])
		fmt.Fprintf(os.Stderr, "Press Ctrl+C to stop\n\n")

		var out io.Writer = file
		if showConsole {
			out = io.MultiWriter(file, os.Stdout)
		}

		start := time.Now()
		n, err := capture(ctx, client, out, wait)
		fmt.Fprintf(os.Stderr, "\nCapture complete: %d bytes written in %v\n", n, time.Since(start).Round(time.Millisecond))
		return err
	},
}

func init() {
	rootCmd.AddCommand(captureCmd)

	captureCmd.Flags().Duration("wait", time.Second, "How long each read waits for data")
	captureCmd.Flags().BoolP("console", "c", false, "Display incoming data on console while capturing")
}

// capture copies passive reads to out until ctx is done.
func capture(ctx context.Context, c *hostclient.Client, out io.Writer, wait time.Duration) (int64, error) {
	var total int64
	for ctx.Err() == nil {
		data, err := c.Read(ctx, wait)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, context.Canceled) {
				return total, nil
			}
			return total, fmt.Errorf("read error: %w", err)
		}
		if len(data) == 0 {
			continue
		}
		n, err := out.Write(data)
		total += int64(n)
		if err != nil {
			return total, fmt.Errorf("write error: %w", err)
		}
	}
	return total, nil
}
