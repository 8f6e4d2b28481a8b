package tui

import (
	"context"
	"fmt"
	"io"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/muurk/castctl/internal/discovery"
)

// Messages for async discovery
type scanStartMsg struct{}
type scanCompleteMsg struct {
	devices []*discovery.Device
	err     error
}

// discoveryKeyMap defines key bindings for the discovery screen
type discoveryKeyMap struct {
	Up     key.Binding
	Down   key.Binding
	Enter  key.Binding
	Rescan key.Binding
	Manual key.Binding
	Quit   key.Binding
}

// ShortHelp returns keybindings to be shown in the mini help view
func (k discoveryKeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Up, k.Down, k.Enter, k.Rescan, k.Manual, k.Quit}
}

// FullHelp returns keybindings for the expanded help view
func (k discoveryKeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Up, k.Down, k.Enter},
		{k.Rescan, k.Manual, k.Quit},
	}
}

// receiverItem wraps a discovered Device for use with bubbles/list
type receiverItem struct {
	device *discovery.Device
}

// FilterValue lets the list filter by name, model, id, and address
func (r receiverItem) FilterValue() string {
	return r.device.Name + " " + r.device.Model + " " + r.device.ID + " " + r.device.IP
}

// receiverDelegate renders one receiver card in the list
type receiverDelegate struct {
	width int
}

func (d receiverDelegate) Height() int  { return 6 }
func (d receiverDelegate) Spacing() int { return 1 }

func (d receiverDelegate) Update(msg tea.Msg, m *list.Model) tea.Cmd { return nil }

func (d receiverDelegate) Render(w io.Writer, m list.Model, index int, item list.Item) {
	receiver, ok := item.(receiverItem)
	if !ok {
		return
	}

	device := receiver.device
	selected := index == m.Index()

	name := device.Name
	if name == "" {
		name = device.ID
	}

	var content strings.Builder
	if selected {
		content.WriteString(SelectedItemStyle.Render("→ " + name))
	} else {
		content.WriteString("  " + name)
	}
	content.WriteString("\n\n")
	content.WriteString(fmt.Sprintf("  Model:   %s\n", device.Model))
	content.WriteString(fmt.Sprintf("  Address: %s", device.Addr()))

	cardStyle := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(BorderColor).
		Padding(0, 2).
		MarginLeft(2)

	cardWidth := d.width - 6
	if cardWidth < MinTerminalWidth-6 {
		cardWidth = MinTerminalWidth - 6
	}
	if cardWidth > MaxContentWidth-6 {
		cardWidth = MaxContentWidth - 6
	}
	cardStyle = cardStyle.Width(cardWidth)

	if selected {
		cardStyle = cardStyle.BorderForeground(SecondaryColor)
	}

	fmt.Fprint(w, cardStyle.Render(content.String()))
}

// DiscoveryModel represents the receiver discovery screen state
type DiscoveryModel struct {
	Scanning     bool
	ReceiverList list.Model
	Selected     bool
	Err          error

	// ManualEntry is the host[:port] prompt shown when discovery cannot
	// find the receiver
	ManualEntry  bool
	ManualInput  textinput.Model
	manualDevice *discovery.Device

	Width         int
	Height        int
	Spinner       spinner.Model
	ScanStartTime time.Time
	Help          help.Model
	Keys          discoveryKeyMap

	scanTimeout time.Duration
}

// NewDiscoveryModel creates a new discovery screen model
func NewDiscoveryModel(scanTimeout time.Duration) DiscoveryModel {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = SpinnerStyle

	delegate := receiverDelegate{width: MinTerminalWidth}
	receiverList := list.New([]list.Item{}, delegate, 0, 0)
	receiverList.Title = "Cast Receivers"
	receiverList.SetShowStatusBar(false)
	receiverList.SetFilteringEnabled(true)
	receiverList.Styles.Title = TitleStyle

	keys := discoveryKeyMap{
		Up: key.NewBinding(
			key.WithKeys("up", "k"),
			key.WithHelp("↑/k", "move up"),
		),
		Down: key.NewBinding(
			key.WithKeys("down", "j"),
			key.WithHelp("↓/j", "move down"),
		),
		Enter: key.NewBinding(
			key.WithKeys("enter", " "),
			key.WithHelp("enter", "monitor"),
		),
		Rescan: key.NewBinding(
			key.WithKeys("r"),
			key.WithHelp("r", "rescan"),
		),
		Manual: key.NewBinding(
			key.WithKeys("a"),
			key.WithHelp("a", "enter address"),
		),
		Quit: key.NewBinding(
			key.WithKeys("q", "esc"),
			key.WithHelp("q", "quit"),
		),
	}

	if scanTimeout <= 0 {
		scanTimeout = discovery.DefaultScanTimeout
	}

	input := textinput.New()
	input.Placeholder = "192.168.1.40 or 192.168.1.40:8009"
	input.CharLimit = 64
	input.Width = 40

	return DiscoveryModel{
		ReceiverList: receiverList,
		ManualInput:  input,
		Spinner:      s,
		Help:         help.New(),
		Keys:         keys,
		scanTimeout:  scanTimeout,
	}
}

// Init starts scanning immediately
func (m DiscoveryModel) Init() tea.Cmd {
	return tea.Batch(
		func() tea.Msg { return scanStartMsg{} },
		scanReceivers(m.scanTimeout),
		m.Spinner.Tick,
	)
}

// Update handles messages and updates the model
func (m DiscoveryModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd

	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.updateKeys(msg)

	case tea.WindowSizeMsg:
		m.Width = msg.Width
		m.Height = msg.Height
		m.ReceiverList.SetWidth(msg.Width - 4)
		m.ReceiverList.SetHeight(msg.Height - 10)

	case scanStartMsg:
		m.Scanning = true
		m.ScanStartTime = time.Now()

	case scanCompleteMsg:
		m.Scanning = false
		m.Err = msg.err
		items := make([]list.Item, len(msg.devices))
		for i, dev := range msg.devices {
			items[i] = receiverItem{device: dev}
		}
		m.ReceiverList.SetItems(items)

	case spinner.TickMsg:
		m.Spinner, cmd = m.Spinner.Update(msg)
		return m, cmd
	}

	if m.ManualEntry {
		// Cursor blink and other input-internal messages
		m.ManualInput, cmd = m.ManualInput.Update(msg)
		return m, cmd
	}
	if !m.Scanning {
		m.ReceiverList, cmd = m.ReceiverList.Update(msg)
	}
	return m, cmd
}

// updateKeys handles keyboard input
func (m DiscoveryModel) updateKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.ManualEntry {
		return m.updateManualEntry(msg)
	}

	// While the list filter is active, keys belong to the filter input
	if m.ReceiverList.FilterState() == list.Filtering {
		var cmd tea.Cmd
		m.ReceiverList, cmd = m.ReceiverList.Update(msg)
		return m, cmd
	}

	switch msg.String() {
	case "enter", " ":
		if m.ReceiverList.SelectedItem() != nil {
			m.Selected = true
			return m, nil
		}

	case "r":
		if !m.Scanning {
			m.ReceiverList.SetItems([]list.Item{})
			m.Err = nil
			return m, tea.Batch(
				func() tea.Msg { return scanStartMsg{} },
				scanReceivers(m.scanTimeout),
				m.Spinner.Tick,
			)
		}

	case "a":
		if !m.Scanning {
			m.ManualEntry = true
			m.ManualInput.SetValue("")
			return m, m.ManualInput.Focus()
		}
	}

	var cmd tea.Cmd
	if !m.Scanning {
		m.ReceiverList, cmd = m.ReceiverList.Update(msg)
	}
	return m, cmd
}

// updateManualEntry handles input while the address prompt is open
func (m DiscoveryModel) updateManualEntry(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc":
		m.ManualEntry = false
		m.ManualInput.Blur()
		return m, nil

	case "enter":
		if device := parseManualAddress(m.ManualInput.Value()); device != nil {
			m.manualDevice = device
			m.Selected = true
			m.ManualEntry = false
			m.ManualInput.Blur()
		}
		return m, nil
	}

	var cmd tea.Cmd
	m.ManualInput, cmd = m.ManualInput.Update(msg)
	return m, cmd
}

// parseManualAddress builds a device from a manually entered host[:port].
// Returns nil when the input is empty or the port does not parse.
func parseManualAddress(raw string) *discovery.Device {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}

	host := raw
	port := discovery.DefaultPort
	if h, p, err := net.SplitHostPort(raw); err == nil {
		parsed, convErr := strconv.Atoi(p)
		if convErr != nil || parsed <= 0 || parsed > 65535 {
			return nil
		}
		host = h
		port = parsed
	}

	return &discovery.Device{
		ID:   "manual",
		Name: host,
		IP:   host,
		Port: port,
	}
}

// View renders the discovery screen
func (m DiscoveryModel) View() string {
	var content string
	switch {
	case m.ManualEntry:
		content = m.renderManualEntry()
	case m.Scanning:
		content = m.renderScanning()
	default:
		content = m.renderResults()
	}

	return RenderApplicationContainer(content, m.Help.View(m.Keys), m.Width, m.Height)
}

// renderManualEntry renders the host address prompt
func (m DiscoveryModel) renderManualEntry() string {
	var b strings.Builder
	b.WriteString("\n")
	b.WriteString("  ")
	b.WriteString(TitleStyle.Render("CONNECT BY ADDRESS"))
	b.WriteString("\n\n")
	b.WriteString("  Receiver address:\n\n")
	b.WriteString("  ")
	b.WriteString(m.ManualInput.View())
	b.WriteString("\n\n")
	b.WriteString(SubtitleStyle.Render("  enter to connect, esc to cancel"))
	return b.String()
}

// renderScanning renders the centered scanning indicator
func (m DiscoveryModel) renderScanning() string {
	width := m.Width
	if width == 0 {
		width = MinTerminalWidth
	}

	elapsed := int(time.Since(m.ScanStartTime).Seconds())
	content := lipgloss.JoinVertical(lipgloss.Center,
		"",
		TitleStyle.Render(fmt.Sprintf("%s SEARCHING FOR RECEIVERS", m.Spinner.View())),
		"",
		SubtitleStyle.Render("Scanning your network for cast receivers..."),
		"",
		SubtitleStyle.Render(fmt.Sprintf("Elapsed: %ds", elapsed)),
		"",
	)

	return lipgloss.Place(width, 0, lipgloss.Center, lipgloss.Top, content)
}

// renderResults renders the receiver list or an empty/error state
func (m DiscoveryModel) renderResults() string {
	var b strings.Builder
	b.WriteString("\n")

	switch {
	case m.Err != nil:
		b.WriteString(ErrorStyle.Render(fmt.Sprintf("✗ Scan failed: %v", m.Err)))
		b.WriteString("\n\n")
		b.WriteString("  Troubleshooting:\n")
		b.WriteString("    • Check that you are on the same network as the receiver\n")
		b.WriteString("    • Some networks block mDNS multicast traffic\n")
		b.WriteString("    • Press 'r' to rescan\n")

	case len(m.ReceiverList.Items()) == 0:
		warning := lipgloss.NewStyle().Foreground(WarningColor).Bold(true)
		b.WriteString("  ")
		b.WriteString(warning.Render("⚠ No cast receivers found on your network"))
		b.WriteString("\n\n")
		b.WriteString("  Troubleshooting:\n")
		b.WriteString("    • Check that the receiver is powered on\n")
		b.WriteString("    • Check that you are on the same network as the receiver\n")
		b.WriteString("    • Press 'r' to rescan\n")

	default:
		b.WriteString(m.ReceiverList.View())
	}

	return b.String()
}

// Filtering reports whether the receiver list's filter input is active
func (m DiscoveryModel) Filtering() bool {
	return m.ReceiverList.FilterState() == list.Filtering
}

// GetSelectedDevice returns the selected receiver (if any)
func (m DiscoveryModel) GetSelectedDevice() *discovery.Device {
	if !m.Selected {
		return nil
	}
	if m.manualDevice != nil {
		return m.manualDevice
	}
	if item, ok := m.ReceiverList.SelectedItem().(receiverItem); ok {
		return item.device
	}
	return nil
}

// scanReceivers is a command that performs one discovery scan
func scanReceivers(timeout time.Duration) tea.Cmd {
	return func() tea.Msg {
		devices, err := discovery.Scan(context.Background(), timeout)
		return scanCompleteMsg{devices: devices, err: err}
	}
}
