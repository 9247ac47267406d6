/*
Copyright © 2025 Mathias Djärv <mathias.djarv@allbinary.se>
*/
package cmd

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/allbin/go-uart/internal/hostclient"
	"github.com/allbin/go-uart/internal/tui/components"
)

// sendCmd represents the send command
var sendCmd = &cobra.Command{
	Use:   "send <port> [data]",
	Short: "Send data to a serial port",
	Long: `Send data to a serial port through the driver.

Data can be provided as:
- Command line argument: uartd send ttyUSB0 "Hello World"
- From stdin (pipe): echo "test data" | uartd send ttyUSB0
- Interactive mode: uartd send ttyUSB0 (prompts for input)

The write is queued with --timeout. When it expires before the whole
buffer is on the wire the driver cancels the write and reports eagain.

Example usage:
  uartd send ttyUSB0 "AT+GMR" --newline
  uartd send ttyUSB0 "48 65 6c 6c 6f" --hex
  uartd send ttyUSB0 --baud 115200 --timeout 500ms`,
	Args: cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		var data string
		if len(args) == 2 {
			data = args[1]
		} else {
			stat, err := os.Stdin.Stat()
			if err != nil || (stat.Mode()&os.ModeCharDevice) != 0 {
				data = promptForData()
			} else {
				stdinData, err := io.ReadAll(os.Stdin)
				if err != nil {
					return fmt.Errorf("reading from stdin: %w", err)
				}
				data = strings.TrimRight(string(stdinData), "\r\n")
			}
		}

		addNewline, _ := cmd.Flags().GetBool("newline")
		hexMode, _ := cmd.Flags().GetBool("hex")
		timeout, _ := cmd.Flags().GetDuration("timeout")

		payload := []byte(data)
		if hexMode {
			b, err := parseHexString(data)
			if err != nil {
				return fmt.Errorf("invalid hex data: %w", err)
			}
			payload = b
		} else if addNewline {
			payload = append(payload, '\n')
		}

		return sendData(cmd.Context(), args[0], payload, timeout)
	},
}

func init() {
	rootCmd.AddCommand(sendCmd)

	sendCmd.Flags().BoolP("newline", "n", false, "Add newline character to the end of data")
	sendCmd.Flags().BoolP("hex", "x", false, "Interpret data as hexadecimal (e.g., '48656c6c6f' for 'Hello')")
	sendCmd.Flags().DurationP("timeout", "t", 5*time.Second, "Write timeout, negative waits forever")
}

func promptForData() string {
	promptStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("99"))

	fmt.Print(promptStyle.Render("Enter data to send: "))

	scanner := bufio.NewScanner(os.Stdin)
	if scanner.Scan() {
		return scanner.Text()
	}
	return ""
}

// parseHexString accepts "48656c6c6f", "48 65 6c" and 0x prefixed bytes.
func parseHexString(hexStr string) ([]byte, error) {
	hexStr = strings.ReplaceAll(hexStr, "0x", "")
	hexStr = strings.ReplaceAll(hexStr, "0X", "")
	return components.ParseHex(hexStr)
}

func sendData(ctx context.Context, port string, data []byte, timeout time.Duration) error {
	infoStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("99")).
		Bold(true)

	successStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("40")).
		Bold(true)

	cfg, err := portConfig()
	if err != nil {
		return err
	}

	fmt.Printf("%s Opening %s at %s...\n", infoStyle.Render("⚡"), port, cfg)
	client, stop, err := openSession(ctx, portName(port), cfg)
	if err != nil {
		return err
	}
	defer stop()

	fmt.Printf("%s Sending %d bytes...\n", infoStyle.Render("📤"), len(data))
	if err := writeAndDrain(ctx, client, data, timeout); err != nil {
		return err
	}
	fmt.Printf("%s Successfully sent %d bytes\n", successStyle.Render("✓"), len(data))

	fmt.Printf("%s Data: %s\n", infoStyle.Render("📋"), preview(data, 50))
	return nil
}

func writeAndDrain(ctx context.Context, c *hostclient.Client, data []byte, timeout time.Duration) error {
	callCtx := ctx
	if timeout >= 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, timeout+requestTimeout)
		defer cancel()
	}
	if err := c.Write(callCtx, data, timeout); err != nil {
		return fmt.Errorf("failed to send data: %w", err)
	}
	if err := c.Drain(callCtx); err != nil {
		return fmt.Errorf("drain: %w", err)
	}
	return nil
}

// preview renders up to n bytes with non-printable characters replaced.
func preview(data []byte, n int) string {
	s := string(data)
	if len(data) > n {
		s = string(data[:n]) + "..."
	}
	return strings.Map(func(r rune) rune {
		if r < 32 || r > 126 {
			return '·'
		}
		return r
	}, s)
}
