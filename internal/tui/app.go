package tui

import (
	"fmt"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/muurk/castctl/internal/castv2"
	"github.com/muurk/castctl/internal/channel"
	"github.com/muurk/castctl/internal/client"
	"github.com/muurk/castctl/internal/discovery"
	"github.com/muurk/castctl/internal/logging"
)

// Screen represents the different screens in the monitor application
type Screen int

const (
	ScreenDiscovery Screen = iota
	ScreenMonitor
)

// AppModel is the top-level application model that coordinates screens
type AppModel struct {
	CurrentScreen Screen
	Discovery     DiscoveryModel
	Monitor       MonitorModel

	Width  int
	Height int

	scanTimeout time.Duration
	program     *tea.Program
	active      *client.Client
	detach      func()
}

// NewAppModel creates the initial application model
func NewAppModel(scanTimeout time.Duration) *AppModel {
	return &AppModel{
		CurrentScreen: ScreenDiscovery,
		Discovery:     NewDiscoveryModel(scanTimeout),
		scanTimeout:   scanTimeout,
	}
}

// Init initializes the application
func (m *AppModel) Init() tea.Cmd {
	return m.Discovery.Init()
}

// Update routes messages to the current screen
func (m *AppModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.Width = msg.Width
		m.Height = msg.Height
		// Both screens track the size; fall through to the active one

	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			m.teardownMonitor()
			return m, tea.Quit
		}
		if msg.String() == "q" && m.CurrentScreen == ScreenDiscovery &&
			!m.Discovery.ManualEntry && !m.Discovery.Filtering() {
			return m, tea.Quit
		}
	}

	switch m.CurrentScreen {
	case ScreenDiscovery:
		return m.updateDiscovery(msg)
	case ScreenMonitor:
		return m.updateMonitor(msg)
	}
	return m, nil
}

func (m *AppModel) updateDiscovery(msg tea.Msg) (tea.Model, tea.Cmd) {
	updated, cmd := m.Discovery.Update(msg)
	m.Discovery = updated.(DiscoveryModel)

	if device := m.Discovery.GetSelectedDevice(); device != nil {
		m.Discovery.Selected = false
		return m.enterMonitor(device)
	}
	return m, cmd
}

func (m *AppModel) updateMonitor(msg tea.Msg) (tea.Model, tea.Cmd) {
	updated, cmd := m.Monitor.Update(msg)
	m.Monitor = updated.(MonitorModel)

	if m.Monitor.Back {
		m.teardownMonitor()
		m.CurrentScreen = ScreenDiscovery
		m.Discovery = NewDiscoveryModel(m.scanTimeout)
		m.Discovery.Width = m.Width
		m.Discovery.Height = m.Height
		return m, m.Discovery.Init()
	}
	return m, cmd
}

// enterMonitor connects a client to the selected receiver and switches screens
func (m *AppModel) enterMonitor(device *discovery.Device) (tea.Model, tea.Cmd) {
	c := client.NewClientWithPort(device.IP, device.Port)
	m.active = c
	m.detach = m.attachListeners(c)

	m.CurrentScreen = ScreenMonitor
	m.Monitor = NewMonitorModel(device, c)
	m.Monitor.Width = m.Width
	m.Monitor.Height = m.Height
	return m, m.Monitor.Init()
}

// attachListeners bridges channel callbacks into the bubbletea message loop.
// Callbacks run on the channel's receive loop, so delivery goes through
// Program.Send rather than touching the model directly.
func (m *AppModel) attachListeners(c *client.Client) func() {
	onEvent := channel.EventListenerFunc(func(msg *castv2.DecodedMessage) {
		if m.program != nil {
			m.program.Send(monitorEventMsg{at: time.Now(), msg: msg})
		}
	})
	onState := channel.StateListenerFunc(func(prev, next channel.State) {
		if m.program != nil {
			m.program.Send(monitorStateMsg{prev: prev, next: next})
		}
	})
	c.AddEventListener(&onEvent)
	c.AddStateListener(&onState)

	return func() {
		c.RemoveEventListener(&onEvent)
		c.RemoveStateListener(&onState)
	}
}

// teardownMonitor closes the active client connection, if any
func (m *AppModel) teardownMonitor() {
	if m.detach != nil {
		m.detach()
		m.detach = nil
	}
	if m.active != nil {
		m.active.Close()
		m.active = nil
	}
}

// View renders the current screen
func (m *AppModel) View() string {
	switch m.CurrentScreen {
	case ScreenDiscovery:
		return m.Discovery.View()
	case ScreenMonitor:
		return m.Monitor.View()
	}
	return ""
}

// Run starts the interactive monitor UI and blocks until the user quits
func Run(scanTimeout time.Duration) error {
	model := NewAppModel(scanTimeout)
	program := tea.NewProgram(model, tea.WithAltScreen())
	model.program = program

	logging.Debug("starting interactive monitor")
	if _, err := program.Run(); err != nil {
		return fmt.Errorf("running monitor UI: %w", err)
	}
	model.teardownMonitor()
	return nil
}
