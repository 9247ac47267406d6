package components

import (
	"strings"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
)

// Terminal is a scrolling traffic log. It keeps the raw entries so the
// display mode can change after the fact.
type Terminal struct {
	viewport  viewport.Model
	formatter *DataFormatter
	entries   []TrafficMsg
	limit     int
}

func NewTerminal(width, height, limit int) *Terminal {
	return &Terminal{
		viewport:  viewport.New(width, height),
		formatter: NewDataFormatter(true, true),
		limit:     limit,
	}
}

func (t *Terminal) SetSize(width, height int) {
	t.viewport.Width = width
	t.viewport.Height = height
}

func (t *Terminal) Width() int {
	return t.viewport.Width
}

func (t *Terminal) Entries() []TrafficMsg {
	return t.entries
}

// Add appends msg, or updates the pending TX entry with the same ID.
func (t *Terminal) Add(msg TrafficMsg) {
	if msg.Direction == TX && msg.Status != TxPending {
		for i := len(t.entries) - 1; i >= 0; i-- {
			e := &t.entries[i]
			if e.Direction == TX && e.ID == msg.ID {
				e.Status = msg.Status
				t.refresh()
				return
			}
		}
	}
	t.entries = append(t.entries, msg)
	if t.limit > 0 && len(t.entries) > t.limit {
		t.entries = t.entries[len(t.entries)-t.limit:]
	}
	t.refresh()
}

func (t *Terminal) refresh() {
	t.viewport.SetContent(strings.Join(t.formatter.FormatMessages(t.entries), "\n"))
	t.viewport.GotoBottom()
}

func (t *Terminal) Clear() {
	t.entries = nil
	t.viewport.SetContent("")
}

func (t *Terminal) ToggleHex() {
	t.formatter.ToggleHex()
	t.refresh()
}

func (t *Terminal) ToggleASCII() {
	t.formatter.ToggleASCII()
	t.refresh()
}

func (t *Terminal) DisplayMode() DisplayMode {
	return t.formatter.Mode()
}

func (t *Terminal) Update(msg tea.Msg) tea.Cmd {
	var cmd tea.Cmd
	// Key messages are handled by the model, only pass resizes and the mouse wheel
	switch msg.(type) {
	case tea.WindowSizeMsg, tea.MouseMsg:
		t.viewport, cmd = t.viewport.Update(msg)
	}
	return cmd
}

func (t *Terminal) View() string {
	return t.viewport.View()
}
