package ui

import (
	"fmt"
	"sort"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/muurk/hidroctl/internal/protocol"
)

// Controller is the subset of the WebSocket client the dashboard drives.
type Controller interface {
	SetZoneState(zone int, on bool) error
	SetAutoIrrigation(on bool) error
	Refresh() error
}

// SnapshotMsg delivers a new controller snapshot to the dashboard. The
// connection callback forwards snapshots into the program with Program.Send.
type SnapshotMsg struct {
	Snapshot *protocol.Snapshot
}

// ConnectionMsg reports a connection state change.
type ConnectionMsg struct {
	Connected bool
}

// commandErrMsg reports a failed zone or auto irrigation command.
type commandErrMsg struct{ err error }

// watchKeyMap defines key bindings for the watch dashboard
type watchKeyMap struct {
	Up      key.Binding
	Down    key.Binding
	Toggle  key.Binding
	Auto    key.Binding
	Refresh key.Binding
	Quit    key.Binding
}

// ShortHelp returns keybindings to be shown in the mini help view
func (k watchKeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Up, k.Down, k.Toggle, k.Auto, k.Refresh, k.Quit}
}

// FullHelp returns keybindings for the expanded help view
func (k watchKeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Up, k.Down, k.Toggle, k.Auto, k.Refresh, k.Quit},
	}
}

func defaultWatchKeys() watchKeyMap {
	return watchKeyMap{
		Up: key.NewBinding(
			key.WithKeys("up", "k"),
			key.WithHelp("↑/k", "up"),
		),
		Down: key.NewBinding(
			key.WithKeys("down", "j"),
			key.WithHelp("↓/j", "down"),
		),
		Toggle: key.NewBinding(
			key.WithKeys("enter", " "),
			key.WithHelp("enter", "toggle zone"),
		),
		Auto: key.NewBinding(
			key.WithKeys("a"),
			key.WithHelp("a", "auto irrigation"),
		),
		Refresh: key.NewBinding(
			key.WithKeys("r"),
			key.WithHelp("r", "refresh"),
		),
		Quit: key.NewBinding(
			key.WithKeys("q", "ctrl+c"),
			key.WithHelp("q", "quit"),
		),
	}
}

// WatchModel is the live controller dashboard. It shows nothing but a spinner
// until the first full configuration arrives.
type WatchModel struct {
	controller Controller
	host       string

	snapshot  *protocol.Snapshot
	connected bool
	cursor    int
	lastErr   error

	spinner spinner.Model
	help    help.Model
	keys    watchKeyMap

	width  int
	height int
}

// NewWatchModel creates a dashboard for one controller.
func NewWatchModel(controller Controller, host string) WatchModel {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = SpinnerStyle

	return WatchModel{
		controller: controller,
		host:       host,
		spinner:    s,
		help:       help.New(),
		keys:       defaultWatchKeys(),
	}
}

// Init starts the spinner.
func (m WatchModel) Init() tea.Cmd {
	return m.spinner.Tick
}

// Update handles messages and key presses.
func (m WatchModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case SnapshotMsg:
		m.snapshot = msg.Snapshot
		m.connected = true
		if zones := len(m.snapshot.Zones); m.cursor >= zones && zones > 0 {
			m.cursor = zones - 1
		}
		return m, nil

	case ConnectionMsg:
		m.connected = msg.Connected
		return m, nil

	case commandErrMsg:
		m.lastErr = msg.err
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case tea.KeyMsg:
		return m.handleKey(msg)
	}

	return m, nil
}

func (m WatchModel) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Quit):
		return m, tea.Quit

	case key.Matches(msg, m.keys.Up):
		if m.cursor > 0 {
			m.cursor--
		}
		return m, nil

	case key.Matches(msg, m.keys.Down):
		if m.snapshot != nil && m.cursor < len(m.snapshot.Zones)-1 {
			m.cursor++
		}
		return m, nil

	case key.Matches(msg, m.keys.Toggle):
		zone := m.selectedZone()
		if zone == nil {
			return m, nil
		}
		index, on := zone.Index, !zone.On
		return m, func() tea.Msg {
			if err := m.controller.SetZoneState(index, on); err != nil {
				return commandErrMsg{err}
			}
			return nil
		}

	case key.Matches(msg, m.keys.Auto):
		if m.snapshot == nil {
			return m, nil
		}
		on := !m.snapshot.AutoIrrigation
		return m, func() tea.Msg {
			if err := m.controller.SetAutoIrrigation(on); err != nil {
				return commandErrMsg{err}
			}
			return nil
		}

	case key.Matches(msg, m.keys.Refresh):
		return m, func() tea.Msg {
			if err := m.controller.Refresh(); err != nil {
				return commandErrMsg{err}
			}
			return nil
		}
	}

	return m, nil
}

// selectedZone returns the zone under the cursor, in ascending index order.
func (m WatchModel) selectedZone() *protocol.ZoneState {
	if m.snapshot == nil {
		return nil
	}
	indices := sortedZoneIndices(m.snapshot)
	if m.cursor < 0 || m.cursor >= len(indices) {
		return nil
	}
	return m.snapshot.Zones[indices[m.cursor]]
}

// View renders the dashboard.
func (m WatchModel) View() string {
	var b strings.Builder

	title := fmt.Sprintf("HIDROMOTIC  %s", m.host)
	b.WriteString(TitleStyle.Render(title))
	b.WriteString("\n")

	if m.snapshot == nil {
		b.WriteString(fmt.Sprintf("\n %s waiting for controller configuration...\n\n",
			m.spinner.View()))
		b.WriteString(m.help.View(m.keys))
		return b.String()
	}

	b.WriteString(m.renderStatusLine())
	b.WriteString("\n")
	b.WriteString(BoxStyle.Render(m.renderZones()))
	b.WriteString("\n")

	if len(m.snapshot.Tanks) > 0 || m.snapshot.Pump != nil {
		b.WriteString(BoxStyle.Render(m.renderTanksAndPump()))
		b.WriteString("\n")
	}

	if m.lastErr != nil {
		b.WriteString(ErrorStyle.Render("error: " + m.lastErr.Error()))
		b.WriteString("\n")
	}

	b.WriteString(m.help.View(m.keys))
	return b.String()
}

func (m WatchModel) renderStatusLine() string {
	conn := OnStyle.Render("connected")
	if !m.connected {
		conn = ErrorStyle.Render("reconnecting")
	}
	auto := OffStyle.Render("auto off")
	if m.snapshot.AutoIrrigation {
		auto = OnStyle.Render("auto on")
	}

	variant := "full"
	if m.snapshot.IsMini {
		variant = "mini"
	}
	info := SubtitleStyle.Render(fmt.Sprintf("%s · fw %d · hw %s",
		variant, m.snapshot.FirmwareVersion, m.snapshot.HardwareID))

	return StatusBarStyle.Render(lipgloss.JoinHorizontal(lipgloss.Left,
		conn, "  ", auto, "  ", info))
}

func (m WatchModel) renderZones() string {
	indices := sortedZoneIndices(m.snapshot)
	if len(indices) == 0 {
		return SubtitleStyle.Render("no zones configured")
	}

	var rows []string
	for i, idx := range indices {
		zone := m.snapshot.Zones[idx]

		label := zone.Label
		if label == "" {
			label = fmt.Sprintf("Zone %d", idx+1)
		}
		state := OffStyle.Render("○ off")
		if zone.On {
			state = OnStyle.Render("● on")
		}

		cursor := "  "
		row := fmt.Sprintf("%s%-20s %s", cursor, label, state)
		if i == m.cursor {
			row = SelectedRowStyle.Render(fmt.Sprintf("> %-20s ", label)) + state
		}
		rows = append(rows, row)
	}
	return strings.Join(rows, "\n")
}

func (m WatchModel) renderTanksAndPump() string {
	var rows []string

	tankIndices := make([]int, 0, len(m.snapshot.Tanks))
	for idx := range m.snapshot.Tanks {
		tankIndices = append(tankIndices, idx)
	}
	sort.Ints(tankIndices)

	for _, idx := range tankIndices {
		tank := m.snapshot.Tanks[idx]
		label := tank.Label
		if label == "" {
			label = fmt.Sprintf("Tank %d", idx+1)
		}

		state := OffStyle.Render("idle")
		if tank.On {
			state = OnStyle.Render("filling")
		}
		level := "level ?"
		if tank.Level != protocol.LevelUnknown {
			level = fmt.Sprintf("level %s", renderLevelBar(tank.Level))
		}
		rows = append(rows, fmt.Sprintf("  %-20s %s  %s", label, state, level))
	}

	if m.snapshot.Pump != nil {
		state := OffStyle.Render("○ off")
		if m.snapshot.Pump.State == protocol.StateOn {
			state = OnStyle.Render("● running")
		}
		rows = append(rows, fmt.Sprintf("  %-20s %s", "Pump", state))
	}

	return strings.Join(rows, "\n")
}

// renderLevelBar draws a 4-step tank level gauge.
func renderLevelBar(level byte) string {
	if level > 4 {
		level = 4
	}
	return strings.Repeat("▰", int(level)) + strings.Repeat("▱", 4-int(level))
}

func sortedZoneIndices(snap *protocol.Snapshot) []int {
	indices := make([]int, 0, len(snap.Zones))
	for idx := range snap.Zones {
		indices = append(indices, idx)
	}
	sort.Ints(indices)
	return indices
}
