/*
Copyright © 2025 Mathias Djärv <mathias.djarv@allbinary.se>
*/
package cmd

import (
	"fmt"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/allbin/go-uart"
	"github.com/allbin/go-uart/internal/tui/components"
	"github.com/allbin/go-uart/internal/tui/keys"
	"github.com/allbin/go-uart/internal/tui/models"
	"github.com/allbin/go-uart/internal/tui/styles"
)

// monitorCmd represents the monitor command
var monitorCmd = &cobra.Command{
	Use:   "monitor <port>",
	Short: "Interactive terminal on a serial port",
	Long: `Open a port in active mode and show its traffic in a terminal UI.

Received data arrives as driver notifications and is shown with
timestamps in hex and ASCII. In insert mode (i) lines are written to the
port; Tab switches between ASCII and hex input. In normal mode r, d and b
toggle RTS, DTR and break, and f flushes both queues. Modem line changes
are polled and logged.

Example usage:
  uartd monitor ttyUSB0
  uartd monitor ttyUSB0 --baud 115200 --line-ending crlf`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := portConfig()
		if err != nil {
			return err
		}
		interval, _ := cmd.Flags().GetDuration("poll")
		writeTimeout, _ := cmd.Flags().GetDuration("write-timeout")
		ending, _ := cmd.Flags().GetString("line-ending")
		scrollback, _ := cmd.Flags().GetInt("scrollback")

		lineEnding, ok := lineEndings[ending]
		if !ok {
			return fmt.Errorf("invalid line ending %q (valid: none, lf, cr, crlf)", ending)
		}

		session := models.NewSession(portName(args[0]), cfg, writeTimeout, models.WithLogger(logger))
		defer session.Close()

		m := newMonitorModel(session, args[0], lineEnding, interval, scrollback)
		_, err = tea.NewProgram(m, tea.WithAltScreen(), tea.WithMouseCellMotion()).Run()
		return err
	},
}

var lineEndings = map[string]string{
	"none": "",
	"lf":   "\n",
	"cr":   "\r",
	"crlf": "\r\n",
}

func init() {
	rootCmd.AddCommand(monitorCmd)

	monitorCmd.Flags().Duration("poll", 250*time.Millisecond, "Modem line polling interval")
	monitorCmd.Flags().Duration("write-timeout", 5*time.Second, "Timeout for each write")
	monitorCmd.Flags().String("line-ending", "lf", "Appended to ASCII lines: none, lf, cr, crlf")
	monitorCmd.Flags().Int("scrollback", 5000, "Traffic entries kept in the buffer")
}

type monitorModel struct {
	session   *models.Session
	terminal  *components.Terminal
	statusBar *components.StatusBar
	input     *components.Input
	help      help.Model
	keys      keys.MonitorKeys

	mode      models.InputMode
	ready     bool
	connected bool
	interval  time.Duration
	signals   uart.Signals
	polled    bool
	rts, dtr  bool
	breakOn   bool
}

func newMonitorModel(s *models.Session, title, lineEnding string, interval time.Duration, scrollback int) *monitorModel {
	return &monitorModel{
		session:   s,
		terminal:  components.NewTerminal(0, 0, scrollback),
		statusBar: components.NewStatusBar(title),
		input:     components.NewInput(lineEnding),
		help:      help.New(),
		keys:      keys.NewMonitorKeys(),
		interval:  interval,
	}
}

func (m *monitorModel) Init() tea.Cmd {
	return m.session.Connect()
}

func (m *monitorModel) event(format string, args ...any) {
	m.terminal.Add(components.TrafficMsg{
		Timestamp: time.Now(),
		Direction: components.Event,
		Data:      []byte(fmt.Sprintf(format, args...)),
	})
}

// logLineChanges reports input lines that changed since the last poll.
func (m *monitorModel) logLineChanges(next uart.Signals) {
	if m.polled {
		prev := m.signals.Fields()
		for i, f := range next.Fields() {
			if f.Value != prev[i].Value {
				m.event("%s %s", f.Name, formatSignalState(f.Value))
			}
		}
	}
	m.signals = next
	m.polled = true
	m.rts, m.dtr = next.RTS, next.DTR
}

func (m *monitorModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		// input box is three lines, status bar one, help one
		m.terminal.SetSize(msg.Width, max(msg.Height-5, 1))
		m.input.SetWidth(msg.Width)
		m.statusBar.SetWidth(msg.Width)
		m.help.Width = msg.Width
		m.ready = true

	case models.ConnectedMsg:
		m.connected = true
		m.statusBar.SetConnected(msg.Config)
		m.event("opened %s", msg.Config)
		cmds = append(cmds, m.session.WaitNotification(), m.session.PollSignals(0))

	case models.DisconnectedMsg:
		m.connected = false
		m.statusBar.SetDisconnected(msg.Err)
		if msg.Err != nil {
			m.event("disconnected: %v", msg.Err)
		}

	case models.NotificationMsg:
		if msg.Err != nil {
			// the driver closes the port after a notified error
			m.connected = false
			m.statusBar.SetDisconnected(msg.Err)
			m.event("port error: %v", msg.Err)
		} else {
			m.terminal.Add(components.TrafficMsg{Timestamp: time.Now(), Direction: components.RX, Data: msg.Data})
		}
		cmds = append(cmds, m.session.WaitNotification())

	case models.WriteDoneMsg:
		status := components.TxWritten
		if msg.Err != nil {
			status = components.TxFailed
			m.event("write failed: %v", msg.Err)
		}
		m.terminal.Add(components.TrafficMsg{Timestamp: time.Now(), Direction: components.TX, ID: msg.ID, Status: status})

	case models.SignalsMsg:
		if msg.Err == nil {
			m.logLineChanges(msg.Signals)
			m.statusBar.SetSignals(msg.Signals)
		}
		if m.connected {
			cmds = append(cmds, m.session.PollSignals(m.interval))
		}

	case models.LineMsg:
		if msg.Err != nil {
			m.event("%s: %v", msg.Line, msg.Err)
		} else if msg.Line == "BRK" {
			m.breakOn = msg.On
			m.statusBar.SetBreak(msg.On)
		}

	case tea.KeyMsg:
		if cmd, handled := m.handleKey(msg); handled {
			return m, cmd
		}
	}

	if m.mode == models.InputModeInsert {
		var cmd tea.Cmd
		m.input, cmd = m.input.Update(msg)
		cmds = append(cmds, cmd)
	}
	cmds = append(cmds, m.terminal.Update(msg))

	rx, tx := m.session.Counters()
	m.statusBar.SetCounters(rx, tx)

	return m, tea.Batch(cmds...)
}

func (m *monitorModel) handleKey(msg tea.KeyMsg) (tea.Cmd, bool) {
	if m.mode == models.InputModeInsert {
		switch {
		case key.Matches(msg, m.keys.Escape):
			m.mode = models.InputModeNormal
			m.input.Blur()
		case key.Matches(msg, m.keys.Enter):
			return m.send(), true
		case key.Matches(msg, m.keys.Up):
			m.input.HistoryUp()
		case key.Matches(msg, m.keys.Down):
			m.input.HistoryDown()
		case key.Matches(msg, m.keys.ToggleSendMode):
			m.input.ToggleSendingMode()
		default:
			return nil, false
		}
		return nil, true
	}

	switch {
	case key.Matches(msg, m.keys.Quit):
		return tea.Quit, true
	case key.Matches(msg, m.keys.InsertMode):
		m.mode = models.InputModeInsert
		return m.input.Focus(), true
	case key.Matches(msg, m.keys.Clear):
		m.terminal.Clear()
	case key.Matches(msg, m.keys.Help):
		m.help.ShowAll = !m.help.ShowAll
	case key.Matches(msg, m.keys.ToggleHex):
		m.terminal.ToggleHex()
	case key.Matches(msg, m.keys.ToggleASCII):
		m.terminal.ToggleASCII()
	case key.Matches(msg, m.keys.ToggleSendMode):
		m.input.ToggleSendingMode()
	case key.Matches(msg, m.keys.ToggleRTS):
		return m.session.SetRTS(!m.rts), true
	case key.Matches(msg, m.keys.ToggleDTR):
		return m.session.SetDTR(!m.dtr), true
	case key.Matches(msg, m.keys.ToggleBreak):
		return m.session.SetBreak(!m.breakOn), true
	case key.Matches(msg, m.keys.Flush):
		return m.session.Flush(), true
	default:
		return nil, false
	}
	return nil, true
}

func (m *monitorModel) send() tea.Cmd {
	line := m.input.Value()
	if line == "" || !m.connected {
		return nil
	}
	data, err := m.input.Payload()
	if err != nil {
		m.event("invalid input: %v", err)
		return nil
	}

	id, cmd := m.session.Write(data)
	m.terminal.Add(components.TrafficMsg{
		Timestamp: time.Now(),
		Direction: components.TX,
		Data:      data,
		Status:    components.TxPending,
		ID:        id,
	})
	m.input.AddToHistory(line)
	m.input.Reset()
	return cmd
}

func (m *monitorModel) View() string {
	content := styles.InfoStyle.Render("Connecting...")
	if m.ready {
		content = m.terminal.View()
	}
	if err := m.statusBar.Err(); err != nil && !m.ready {
		content = styles.ErrorStyle.Render(err.Error())
	}

	insert := m.mode == models.InputModeInsert
	return lipgloss.JoinVertical(
		lipgloss.Left,
		styles.ContentBorderStyle.Render(content),
		m.input.View(insert),
		m.statusBar.View(insert, m.input.SendingMode().String(), time.Now().Format("15:04:05")),
		m.help.View(m.keys),
	)
}
