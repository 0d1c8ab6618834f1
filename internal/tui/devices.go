package tui

import (
	"fmt"
	"strings"

	"butterfly/internal/source"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
)

// ScreenType defines which screen is currently active
type ScreenType int

const (
	ListScreen ScreenType = iota
	ConfigScreen
)

// Selection is the device and rate chosen on the configuration screen.
type Selection struct {
	Device     source.Device
	SampleRate float64
}

// DeviceFetcher lists devices. source.ListDevices in production.
type DeviceFetcher func() ([]source.Device, error)

var commonSampleRates = []float64{44100, 48000, 88200, 96000}

var (
	keyQuit    = key.NewBinding(key.WithKeys("q", "ctrl+c"))
	keyUp      = key.NewBinding(key.WithKeys("up", "k"))
	keyDown    = key.NewBinding(key.WithKeys("down", "j"))
	keyConfirm = key.NewBinding(key.WithKeys("enter"))
	keyBack    = key.NewBinding(key.WithKeys("esc"))
)

// DeviceListModel lists input devices and lets the user pick one and a
// sample rate for the microphone source.
type DeviceListModel struct {
	fetch         DeviceFetcher
	devices       []source.Device
	selectedIndex int
	viewport      viewport.Model
	ready         bool
	err           error
	activeScreen  ScreenType

	availableSampleRates []float64
	sampleRateIndex      int

	selection *Selection
}

type devicesMsg struct {
	devices []source.Device
}

type errMsg struct {
	err error
}

// NewDeviceListModel creates a new device list model. Only devices with
// input channels are shown.
func NewDeviceListModel(fetch DeviceFetcher) DeviceListModel {
	return DeviceListModel{
		fetch:        fetch,
		activeScreen: ListScreen,
	}
}

// Init initializes the Bubble Tea model
func (m DeviceListModel) Init() tea.Cmd {
	fetch := m.fetch
	return func() tea.Msg {
		devices, err := fetch()
		if err != nil {
			return errMsg{err}
		}
		inputs := devices[:0:0]
		for _, d := range devices {
			if d.MaxInputChannels > 0 {
				inputs = append(inputs, d)
			}
		}
		return devicesMsg{inputs}
	}
}

// Selection returns the confirmed choice, or nil if the user quit.
func (m DeviceListModel) Selection() *Selection { return m.selection }

func (m DeviceListModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		if !m.ready {
			m.viewport = viewport.New(msg.Width, msg.Height-4)
			m.ready = true
		} else {
			m.viewport.Width = msg.Width
			m.viewport.Height = msg.Height - 4
		}
		m.refresh()

	case devicesMsg:
		m.devices = msg.devices
		m.refresh()

	case errMsg:
		m.err = msg.err

	case tea.KeyMsg:
		if key.Matches(msg, keyQuit) {
			return m, tea.Quit
		}

		switch m.activeScreen {
		case ListScreen:
			switch {
			case key.Matches(msg, keyUp):
				if m.selectedIndex > 0 {
					m.selectedIndex--
				}
			case key.Matches(msg, keyDown):
				if m.selectedIndex < len(m.devices)-1 {
					m.selectedIndex++
				}
			case key.Matches(msg, keyConfirm):
				if len(m.devices) > 0 {
					m.openConfig()
				}
			}

		case ConfigScreen:
			switch {
			case key.Matches(msg, keyBack):
				m.activeScreen = ListScreen
			case key.Matches(msg, keyUp):
				if m.sampleRateIndex > 0 {
					m.sampleRateIndex--
				}
			case key.Matches(msg, keyDown):
				if m.sampleRateIndex < len(m.availableSampleRates)-1 {
					m.sampleRateIndex++
				}
			case key.Matches(msg, keyConfirm):
				m.selection = &Selection{
					Device:     m.devices[m.selectedIndex],
					SampleRate: m.availableSampleRates[m.sampleRateIndex],
				}
				return m, tea.Quit
			}
		}
		m.refresh()
	}

	m.viewport, cmd = m.viewport.Update(msg)
	return m, cmd
}

// openConfig switches to the rate screen with the device default preselected.
func (m *DeviceListModel) openConfig() {
	m.activeScreen = ConfigScreen
	device := m.devices[m.selectedIndex]

	m.availableSampleRates = append([]float64(nil), commonSampleRates...)
	m.sampleRateIndex = -1
	for i, rate := range m.availableSampleRates {
		if rate == device.DefaultSampleRate {
			m.sampleRateIndex = i
			break
		}
	}
	if m.sampleRateIndex < 0 && device.DefaultSampleRate > 0 {
		m.availableSampleRates = append([]float64{device.DefaultSampleRate}, m.availableSampleRates...)
		m.sampleRateIndex = 0
	}
	m.sampleRateIndex = max(m.sampleRateIndex, 0)
}

func (m *DeviceListModel) refresh() {
	if !m.ready {
		return
	}
	if m.activeScreen == ConfigScreen {
		m.viewport.SetContent(m.renderDeviceConfig())
		return
	}
	m.viewport.SetContent(m.renderDevices())
}

// View renders the UI
func (m DeviceListModel) View() string {
	if m.err != nil {
		return fmt.Sprintf("Error: %v\n\nPress q to exit.", m.err)
	}
	if !m.ready {
		return "Initializing..."
	}

	var title, help string
	if m.activeScreen == ListScreen {
		title = titleStyle.Render("Input Devices")
		help = infoStyle.Render("↑/↓: Navigate • Enter: Configure • q: Quit")
	} else {
		title = titleStyle.Render("Device Configuration")
		help = infoStyle.Render("↑/↓: Change Value • Enter: Use • Esc: Back • q: Quit")
	}

	return fmt.Sprintf("%s\n\n%s\n\n%s", title, m.viewport.View(), help)
}

func (m DeviceListModel) renderDevices() string {
	if len(m.devices) == 0 {
		return "No input devices found."
	}

	var sb strings.Builder
	for i, device := range m.devices {
		deviceInfo := fmt.Sprintf("[%d] %s (%s)\n", device.ID, device.Name, device.Kind())
		deviceInfo += fmt.Sprintf("    Input channels: %d, Output channels: %d\n",
			device.MaxInputChannels, device.MaxOutputChannels)
		deviceInfo += fmt.Sprintf("    Default sample rate: %.0f Hz\n", device.DefaultSampleRate)

		if i == m.selectedIndex {
			deviceInfo = highlightStyle.Render(deviceInfo)
		}
		sb.WriteString(deviceInfo)
		sb.WriteString("\n")
	}
	return sb.String()
}

func (m DeviceListModel) renderDeviceConfig() string {
	var sb strings.Builder
	device := m.devices[m.selectedIndex]

	fmt.Fprintf(&sb, "Configure Device: %s\n\n", device.Name)
	sb.WriteString("Sample Rate:\n")

	for i, rate := range m.availableSampleRates {
		marker := " "
		if i == m.sampleRateIndex {
			marker = "▶"
		}
		line := fmt.Sprintf("  %s %.0f Hz\n", marker, rate)
		if i == m.sampleRateIndex {
			line = highlightStyle.Render(line)
		}
		sb.WriteString(line)
	}
	return sb.String()
}

// StartDeviceListUI runs the device picker and returns the confirmed
// selection, nil if the user quit without choosing.
func StartDeviceListUI(fetch DeviceFetcher) (*Selection, error) {
	p := tea.NewProgram(NewDeviceListModel(fetch), tea.WithAltScreen())
	final, err := p.Run()
	if err != nil {
		return nil, err
	}
	if m, ok := final.(DeviceListModel); ok {
		if m.err != nil {
			return nil, m.err
		}
		return m.selection, nil
	}
	return nil, nil
}
