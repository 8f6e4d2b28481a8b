package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/muurk/castctl/internal/castv2"
	"github.com/muurk/castctl/internal/channel"
	"github.com/muurk/castctl/internal/client"
	"github.com/muurk/castctl/internal/discovery"
)

// maxEventLog bounds the scrolling event history
const maxEventLog = 200

// Messages fed into the monitor from the channel's callbacks
type monitorEventMsg struct {
	at  time.Time
	msg *castv2.DecodedMessage
}

type monitorStateMsg struct {
	prev channel.State
	next channel.State
}

type monitorConnectedMsg struct {
	err error
}

type statusRefreshMsg struct {
	status *castv2.ReceiverStatus
	err    error
}

// eventLogEntry is one rendered line in the event history
type eventLogEntry struct {
	at   time.Time
	kind string
	text string
}

// monitorKeyMap defines key bindings for the monitor screen
type monitorKeyMap struct {
	Refresh key.Binding
	MuteOn  key.Binding
	MuteOff key.Binding
	Back    key.Binding
	Quit    key.Binding
}

func (k monitorKeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Refresh, k.MuteOn, k.MuteOff, k.Back, k.Quit}
}

func (k monitorKeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Refresh, k.MuteOn, k.MuteOff},
		{k.Back, k.Quit},
	}
}

// MonitorModel represents the live receiver monitor screen
type MonitorModel struct {
	Device *discovery.Device
	Client *client.Client

	Connecting bool
	ConnectErr error
	ChanState  channel.State

	Status      *castv2.ReceiverStatus
	MediaStatus *castv2.MediaStatus
	Events      []eventLogEntry

	Width   int
	Height  int
	Spinner spinner.Model
	Help    help.Model
	Keys    monitorKeyMap

	Back bool
}

// NewMonitorModel creates a monitor screen for the given receiver
func NewMonitorModel(device *discovery.Device, c *client.Client) MonitorModel {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = SpinnerStyle

	keys := monitorKeyMap{
		Refresh: key.NewBinding(
			key.WithKeys("s"),
			key.WithHelp("s", "refresh status"),
		),
		MuteOn: key.NewBinding(
			key.WithKeys("m"),
			key.WithHelp("m", "mute"),
		),
		MuteOff: key.NewBinding(
			key.WithKeys("u"),
			key.WithHelp("u", "unmute"),
		),
		Back: key.NewBinding(
			key.WithKeys("esc", "backspace"),
			key.WithHelp("esc", "back"),
		),
		Quit: key.NewBinding(
			key.WithKeys("q", "ctrl+c"),
			key.WithHelp("q", "quit"),
		),
	}

	return MonitorModel{
		Device:     device,
		Client:     c,
		Connecting: true,
		Spinner:    s,
		Help:       help.New(),
		Keys:       keys,
	}
}

// Init starts the connection attempt
func (m MonitorModel) Init() tea.Cmd {
	return tea.Batch(connectClient(m.Client), m.Spinner.Tick)
}

// Update handles messages and updates the model
func (m MonitorModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd

	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.updateKeys(msg)

	case tea.WindowSizeMsg:
		m.Width = msg.Width
		m.Height = msg.Height

	case monitorConnectedMsg:
		m.Connecting = false
		m.ConnectErr = msg.err
		if msg.err == nil {
			m.ChanState = channel.StateConnected
			return m, refreshStatus(m.Client)
		}

	case statusRefreshMsg:
		if msg.err == nil {
			m.Status = msg.status
		} else {
			m.appendEvent(eventLogEntry{
				at:   time.Now(),
				kind: "error",
				text: msg.err.Error(),
			})
		}

	case monitorStateMsg:
		m.ChanState = msg.next
		m.appendEvent(eventLogEntry{
			at:   time.Now(),
			kind: "state",
			text: fmt.Sprintf("%s → %s", msg.prev, msg.next),
		})

	case monitorEventMsg:
		m.applyEvent(msg)

	case spinner.TickMsg:
		m.Spinner, cmd = m.Spinner.Update(msg)
		return m, cmd
	}

	return m, nil
}

// updateKeys handles keyboard input
func (m MonitorModel) updateKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc", "backspace":
		m.Back = true
		return m, nil

	case "s":
		if m.ChanState == channel.StateConnected {
			return m, refreshStatus(m.Client)
		}

	case "m":
		if m.ChanState == channel.StateConnected {
			return m, setMuted(m.Client, true)
		}

	case "u":
		if m.ChanState == channel.StateConnected {
			return m, setMuted(m.Client, false)
		}
	}
	return m, nil
}

// applyEvent folds one spontaneous receiver message into the view state
func (m *MonitorModel) applyEvent(msg monitorEventMsg) {
	decoded := msg.msg

	switch decoded.Kind {
	case castv2.KindReceiverStatus:
		m.Status = decoded.ReceiverStatus
	case castv2.KindMediaStatus:
		if len(decoded.MediaStatuses) > 0 {
			m.MediaStatus = &decoded.MediaStatuses[0]
		}
	}

	m.appendEvent(eventLogEntry{
		at:   msg.at,
		kind: decoded.Kind.String(),
		text: summarizeEvent(decoded),
	})
}

func (m *MonitorModel) appendEvent(e eventLogEntry) {
	m.Events = append(m.Events, e)
	if len(m.Events) > maxEventLog {
		m.Events = m.Events[len(m.Events)-maxEventLog:]
	}
}

// summarizeEvent builds a one-line description of a decoded message
func summarizeEvent(msg *castv2.DecodedMessage) string {
	switch msg.Kind {
	case castv2.KindReceiverStatus:
		if msg.ReceiverStatus != nil {
			apps := make([]string, 0, len(msg.ReceiverStatus.Applications))
			for _, app := range msg.ReceiverStatus.Applications {
				apps = append(apps, app.DisplayName)
			}
			if len(apps) == 0 {
				return "no applications running"
			}
			return "running: " + strings.Join(apps, ", ")
		}
	case castv2.KindMediaStatus:
		if len(msg.MediaStatuses) > 0 {
			st := msg.MediaStatuses[0]
			return fmt.Sprintf("%s at %.1fs", st.PlayerState, st.CurrentTime)
		}
		return "empty media status"
	case castv2.KindClose:
		return "receiver closed the connection"
	case castv2.KindDeviceError:
		if msg.Reason != "" {
			return fmt.Sprintf("%s (%s)", msg.Type, msg.Reason)
		}
		return msg.Type
	case castv2.KindParseFailure:
		return "undecodable payload on " + msg.Namespace
	case castv2.KindCustom:
		return fmt.Sprintf("%s on %s", msg.Type, msg.Namespace)
	}
	if msg.Type != "" {
		return fmt.Sprintf("%s on %s", msg.Type, msg.Namespace)
	}
	return "message on " + msg.Namespace
}

// View renders the monitor screen
func (m MonitorModel) View() string {
	var content string
	switch {
	case m.Connecting:
		content = m.renderConnecting()
	case m.ConnectErr != nil:
		content = m.renderConnectError()
	default:
		content = m.renderMonitor()
	}

	return RenderApplicationContainer(content, m.Help.View(m.Keys), m.Width, m.Height)
}

func (m MonitorModel) renderConnecting() string {
	width := m.Width
	if width == 0 {
		width = MinTerminalWidth
	}

	content := lipgloss.JoinVertical(lipgloss.Center,
		"",
		TitleStyle.Render(fmt.Sprintf("%s CONNECTING", m.Spinner.View())),
		"",
		SubtitleStyle.Render(fmt.Sprintf("Opening a channel to %s (%s)...", m.Device.Name, m.Device.Addr())),
		"",
	)
	return lipgloss.Place(width, 0, lipgloss.Center, lipgloss.Top, content)
}

func (m MonitorModel) renderConnectError() string {
	var b strings.Builder
	b.WriteString("\n")
	b.WriteString(ErrorStyle.Render(fmt.Sprintf("✗ Connection failed: %v", m.ConnectErr)))
	b.WriteString("\n\n")
	b.WriteString("  Press 'esc' to go back to discovery.\n")
	return b.String()
}

func (m MonitorModel) renderMonitor() string {
	panelWidth := m.Width - 8
	if panelWidth < MinTerminalWidth-8 {
		panelWidth = MinTerminalWidth - 8
	}
	if panelWidth > MaxContentWidth-8 {
		panelWidth = MaxContentWidth - 8
	}

	header := lipgloss.JoinHorizontal(lipgloss.Top,
		TitleStyle.Render(m.Device.Name),
		"  ",
		m.renderConnectionBadge(),
	)

	panels := []string{
		header,
		PanelStyle.Width(panelWidth).Render(m.renderReceiverPanel()),
		PanelStyle.Width(panelWidth).Render(m.renderMediaPanel()),
		PanelStyle.Width(panelWidth).Render(m.renderEventLog()),
	}

	return lipgloss.NewStyle().MarginLeft(2).Render(
		lipgloss.JoinVertical(lipgloss.Left, panels...),
	)
}

func (m MonitorModel) renderConnectionBadge() string {
	switch m.ChanState {
	case channel.StateConnected:
		return ConnectedStyle.Render("● connected")
	case channel.StateConnecting:
		return ConnectingStyle.Render("● connecting")
	default:
		return DisconnectedStyle.Render("● disconnected")
	}
}

func (m MonitorModel) renderReceiverPanel() string {
	var b strings.Builder
	b.WriteString(SubtitleStyle.Render("RECEIVER"))
	b.WriteString("\n")

	if m.Status == nil {
		b.WriteString("waiting for status...")
		return b.String()
	}

	vol := m.Status.Volume
	switch {
	case vol.Muted != nil && *vol.Muted:
		b.WriteString("Volume: muted\n")
	case vol.Level != nil:
		b.WriteString(fmt.Sprintf("Volume: %d%%\n", int(*vol.Level*100)))
	default:
		b.WriteString("Volume: unknown\n")
	}

	if len(m.Status.Applications) == 0 {
		b.WriteString("No applications running")
		return b.String()
	}
	for _, app := range m.Status.Applications {
		line := fmt.Sprintf("%s  %s", app.DisplayName, app.StatusText)
		b.WriteString(strings.TrimSpace(line))
		b.WriteString("\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

func (m MonitorModel) renderMediaPanel() string {
	var b strings.Builder
	b.WriteString(SubtitleStyle.Render("MEDIA"))
	b.WriteString("\n")

	if m.MediaStatus == nil {
		b.WriteString("No media activity observed")
		return b.String()
	}

	st := m.MediaStatus
	b.WriteString(fmt.Sprintf("State: %s\n", st.PlayerState))
	if st.Media != nil {
		b.WriteString(fmt.Sprintf("Content: %s\n", st.Media.ContentID))
		if st.Media.Duration > 0 {
			b.WriteString(fmt.Sprintf("Position: %.0fs / %.0fs", st.CurrentTime, st.Media.Duration))
		} else {
			b.WriteString(fmt.Sprintf("Position: %.0fs", st.CurrentTime))
		}
	} else {
		b.WriteString(fmt.Sprintf("Position: %.0fs", st.CurrentTime))
	}
	if st.IdleReason != "" {
		b.WriteString(fmt.Sprintf("\nIdle reason: %s", st.IdleReason))
	}
	return b.String()
}

func (m MonitorModel) renderEventLog() string {
	var b strings.Builder
	b.WriteString(SubtitleStyle.Render("EVENTS"))
	b.WriteString("\n")

	if len(m.Events) == 0 {
		b.WriteString("No events yet")
		return b.String()
	}

	visible := 8
	if m.Height > 32 {
		visible = m.Height - 24
	}
	start := 0
	if len(m.Events) > visible {
		start = len(m.Events) - visible
	}
	for _, e := range m.Events[start:] {
		b.WriteString(EventTimeStyle.Render(e.at.Format("15:04:05")))
		b.WriteString(" ")
		b.WriteString(EventKindStyle.Render(e.kind))
		b.WriteString(" ")
		b.WriteString(e.text)
		b.WriteString("\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

// connectClient is a command that opens the channel to the receiver
func connectClient(c *client.Client) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		return monitorConnectedMsg{err: c.Connect(ctx)}
	}
}

// refreshStatus is a command that requests a fresh receiver status
func refreshStatus(c *client.Client) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		status, err := c.Status(ctx)
		return statusRefreshMsg{status: status, err: err}
	}
}

// setMuted is a command that toggles the receiver mute state
func setMuted(c *client.Client, muted bool) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if _, err := c.SetMuted(ctx, muted); err != nil {
			return statusRefreshMsg{err: err}
		}
		status, err := c.Status(ctx)
		return statusRefreshMsg{status: status, err: err}
	}
}
