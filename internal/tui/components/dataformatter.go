package components

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/allbin/go-uart/internal/tui/colors"
)

// Direction of a traffic entry.
type Direction int

const (
	RX Direction = iota
	TX
	Event // line changes and driver errors
)

// TxStatus tracks a write from queueing to its reply.
type TxStatus int

const (
	TxPending TxStatus = iota
	TxWritten
	TxFailed
)

// TrafficMsg is one entry in the traffic log.
type TrafficMsg struct {
	Timestamp time.Time
	Direction Direction
	Data      []byte
	Status    TxStatus
	ID        int // pairs a TX entry with its completion
}

type DisplayMode struct {
	ShowHex   bool
	ShowASCII bool
}

type DataFormatter struct {
	mode DisplayMode
}

func NewDataFormatter(showHex, showASCII bool) *DataFormatter {
	return &DataFormatter{mode: DisplayMode{ShowHex: showHex, ShowASCII: showASCII}}
}

func (df *DataFormatter) Mode() DisplayMode {
	return df.mode
}

func (df *DataFormatter) ToggleHex() {
	df.mode.ShowHex = !df.mode.ShowHex
}

func (df *DataFormatter) ToggleASCII() {
	df.mode.ShowASCII = !df.mode.ShowASCII
}

func indicator(msg TrafficMsg) string {
	style := lipgloss.NewStyle().Bold(true)
	switch msg.Direction {
	case TX:
		switch msg.Status {
		case TxPending:
			return style.Foreground(colors.Yellow).Render("↗ TX ○")
		case TxFailed:
			return style.Foreground(colors.Red).Render("↗ TX ✗")
		default:
			return style.Foreground(colors.Green).Render("↗ TX ✓")
		}
	case Event:
		return style.Foreground(colors.Mauve).Render("• --")
	default:
		return style.Foreground(colors.Sky).Render("↙ RX")
	}
}

// printable replaces anything outside printable ASCII with dots so that
// device output cannot drive the terminal.
func printable(data []byte) string {
	var sb strings.Builder
	sb.Grow(len(data))
	for _, b := range data {
		if b >= 32 && b <= 126 {
			sb.WriteByte(b)
		} else {
			sb.WriteByte('.')
		}
	}
	return sb.String()
}

func (df *DataFormatter) FormatMessage(msg TrafficMsg) string {
	ts := lipgloss.NewStyle().
		Foreground(colors.Subtext0).
		Render("[" + msg.Timestamp.Format("15:04:05.000") + "]")

	if msg.Direction == Event {
		return fmt.Sprintf("%s %s: %s", ts, indicator(msg), printable(msg.Data))
	}

	var parts []string
	if df.mode.ShowHex {
		parts = append(parts, fmt.Sprintf("HEX: % X", msg.Data))
	}
	if df.mode.ShowASCII {
		parts = append(parts, "ASCII: "+printable(msg.Data))
	}
	if !df.mode.ShowHex && !df.mode.ShowASCII {
		parts = append(parts, fmt.Sprintf("BYTES: %d", len(msg.Data)))
	}
	return fmt.Sprintf("%s %s: %s", ts, indicator(msg), strings.Join(parts, "  "))
}

func (df *DataFormatter) FormatMessages(messages []TrafficMsg) []string {
	out := make([]string, len(messages))
	for i, msg := range messages {
		out[i] = df.FormatMessage(msg)
	}
	return out
}
