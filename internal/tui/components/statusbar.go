package components

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/allbin/go-uart"
	"github.com/allbin/go-uart/internal/tui/colors"
)

// ConnState is the connection indicator shown in the status bar.
type ConnState int

const (
	Connecting ConnState = iota
	Connected
	Disconnected
)

// StatusBar renders a single line in the style of an editor mode line:
// mode, port, connection state, line settings, modem lines and counters.
type StatusBar struct {
	portPath string
	state    ConnState
	err      error
	width    int
	config   *uart.Config
	signals  uart.Signals
	rx, tx   int64
	breakOn  bool
}

func NewStatusBar(portPath string) *StatusBar {
	return &StatusBar{portPath: portPath}
}

func (sb *StatusBar) SetWidth(width int) {
	sb.width = width
}

func (sb *StatusBar) SetConnected(cfg uart.Config) {
	sb.state = Connected
	sb.err = nil
	sb.config = &cfg
}

func (sb *StatusBar) SetDisconnected(err error) {
	sb.state = Disconnected
	sb.err = err
}

func (sb *StatusBar) Err() error {
	return sb.err
}

func (sb *StatusBar) SetSignals(s uart.Signals) {
	sb.signals = s
}

func (sb *StatusBar) SetBreak(on bool) {
	sb.breakOn = on
}

func (sb *StatusBar) SetCounters(rx, tx int64) {
	sb.rx, sb.tx = rx, tx
}

// lines renders the modem lines that are asserted, e.g. "DTR RTS CTS".
func (sb *StatusBar) lines() string {
	var on []string
	for _, f := range sb.signals.Fields() {
		if f.Value {
			on = append(on, strings.ToUpper(f.Name))
		}
	}
	if sb.breakOn {
		on = append(on, "BRK")
	}
	if len(on) == 0 {
		return "-"
	}
	return strings.Join(on, " ")
}

func (sb *StatusBar) View(insert bool, sendingMode string, clock string) string {
	width := sb.width
	if width <= 0 {
		width = 80
	}

	modeStyle := lipgloss.NewStyle().Foreground(colors.Base).Bold(true).Padding(0, 1)
	mode := modeStyle.Background(colors.Blue).Render("NORMAL")
	if insert {
		mode = modeStyle.Background(colors.Green).Render("INSERT")
	}

	port := lipgloss.NewStyle().Foreground(colors.Mauve).Bold(true).Padding(0, 1).Render(sb.portPath)

	indicator := lipgloss.NewStyle().Foreground(colors.Red).Render("○")
	switch {
	case sb.err != nil:
		indicator = lipgloss.NewStyle().Foreground(colors.Red).Render("✗")
	case sb.state == Connected:
		indicator = lipgloss.NewStyle().Foreground(colors.Green).Render("●")
	case sb.state == Connecting:
		indicator = lipgloss.NewStyle().Foreground(colors.Yellow).Render("○")
	}

	divider := lipgloss.NewStyle().Foreground(colors.Surface2).Padding(0, 1).Render("│")

	left := []string{mode, port, indicator}
	if insert {
		left = append(left, lipgloss.NewStyle().Foreground(colors.Peach).Bold(true).Padding(0, 1).
			Render(fmt.Sprintf("[%s] Tab to toggle", sendingMode)))
	}
	left = append(left, divider)

	info := "⚡ serial"
	if sb.config != nil {
		info = fmt.Sprintf("⚡ %s", sb.config)
	}
	if sb.err != nil {
		info = sb.err.Error()
	}
	details := lipgloss.NewStyle().Foreground(colors.Subtext0).Padding(0, 1).Render(info)
	lines := lipgloss.NewStyle().Foreground(colors.Teal).Padding(0, 1).Render(sb.lines())
	counters := lipgloss.NewStyle().Foreground(colors.Subtext1).Padding(0, 1).
		Render(fmt.Sprintf("rx %d tx %d", sb.rx, sb.tx))
	clockView := lipgloss.NewStyle().Foreground(colors.Subtext1).Padding(0, 1).Render(clock)

	leftSide := lipgloss.JoinHorizontal(lipgloss.Left, left...)
	rightSide := lipgloss.JoinHorizontal(lipgloss.Left, details, divider, lines, divider, counters, divider, clockView)

	spacer := lipgloss.NewStyle().
		Width(max(width-lipgloss.Width(leftSide)-lipgloss.Width(rightSide), 1)).
		Render("")

	return lipgloss.NewStyle().
		Foreground(colors.Text).
		Background(colors.Surface0).
		Width(width).
		Render(lipgloss.JoinHorizontal(lipgloss.Left, leftSide, spacer, rightSide))
}
