// Package tui is the monitor: bound drivers, the LEDs they show, the host
// mixer and the bus traffic.
package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"go-ctrldev/ctrldev"
	"go-ctrldev/drivers"
	"go-ctrldev/host"
	"go-ctrldev/midi"
	"go-ctrldev/theme"
	"go-ctrldev/widgets"
)

const (
	ledRedraw   = 150 * time.Millisecond
	eventsShown = 8
)

// Registry is what the monitor needs from the driver registry
type Registry interface {
	Drivers() []ctrldev.DriverInfo
	Broadcast(op ctrldev.Op)
}

type Options struct {
	Registry Registry
	Host     *host.App
	Mirrors  *Mirrors
	Events   *EventLog
	Devices  <-chan midi.DeviceEvent // may be nil
	Theme    *theme.Theme
}

type Model struct {
	opts Options
	keys keyMap
	help help.Model

	selected   int
	sleeping   bool
	lastDevice string
	width      int
	quitting   bool
}

type UpdateMsg struct{}

type DeviceEventMsg midi.DeviceEvent

type tickMsg time.Time

func NewModel(opts Options) Model {
	if opts.Theme == nil {
		opts.Theme = theme.New(nil)
	}
	if opts.Mirrors == nil {
		opts.Mirrors = NewMirrors()
	}
	if opts.Events == nil {
		opts.Events = NewEventLog(0)
	}
	return Model{
		opts: opts,
		keys: newKeyMap(),
		help: help.New(),
	}
}

func ListenForUpdates(app *host.App) tea.Cmd {
	return func() tea.Msg {
		<-app.UpdateChan
		return UpdateMsg{}
	}
}

func ListenForDevices(events <-chan midi.DeviceEvent) tea.Cmd {
	if events == nil {
		return nil
	}
	return func() tea.Msg {
		event, ok := <-events
		if !ok {
			return nil
		}
		return DeviceEventMsg(event)
	}
}

func tick() tea.Cmd {
	return tea.Tick(ledRedraw, func(t time.Time) tea.Msg { return tickMsg(t) })
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(
		ListenForUpdates(m.opts.Host),
		ListenForDevices(m.opts.Devices),
		tick(),
	)
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.help.Width = msg.Width

	case tea.KeyMsg:
		return m.handleKey(msg)

	case UpdateMsg:
		return m, ListenForUpdates(m.opts.Host)

	case DeviceEventMsg:
		ev := midi.DeviceEvent(msg)
		verb := "connected"
		if ev.Type == midi.DeviceDisconnected {
			verb = "disconnected"
		}
		m.lastDevice = fmt.Sprintf("%s %q (port %d)", verb, ev.ID, ev.Port)
		m.clampSelection()
		return m, ListenForDevices(m.opts.Devices)

	case tickMsg:
		m.clampSelection()
		return m, tick()
	}
	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Quit):
		m.quitting = true
		return m, tea.Quit
	case key.Matches(msg, m.keys.Up):
		if m.selected > 0 {
			m.selected--
		}
	case key.Matches(msg, m.keys.Down):
		m.selected++
		m.clampSelection()
	case key.Matches(msg, m.keys.Refresh):
		m.opts.Registry.Broadcast(ctrldev.OpRefresh)
	case key.Matches(msg, m.keys.Sleep):
		m.sleeping = !m.sleeping
		if m.sleeping {
			m.opts.Registry.Broadcast(ctrldev.OpSleepOn)
		} else {
			m.opts.Registry.Broadcast(ctrldev.OpSleepOff)
		}
	case key.Matches(msg, m.keys.LightOff):
		m.opts.Registry.Broadcast(ctrldev.OpLightOff)
	case key.Matches(msg, m.keys.Sync):
		m.opts.Host.Sync()
	case key.Matches(msg, m.keys.StopAll):
		m.opts.Host.SendCommand(ctrldev.CmdStopAll)
	case key.Matches(msg, m.keys.Help):
		m.help.ShowAll = !m.help.ShowAll
	}
	return m, nil
}

func (m *Model) clampSelection() {
	n := len(m.opts.Registry.Drivers())
	if m.selected >= n {
		m.selected = n - 1
	}
	if m.selected < 0 {
		m.selected = 0
	}
}

func (m Model) View() string {
	if m.quitting {
		return ""
	}
	th := m.opts.Theme
	app := m.opts.Host

	headerStyle := lipgloss.NewStyle().Foreground(th.Of(theme.RoleAccent)).Bold(true)
	titleStyle := lipgloss.NewStyle().Foreground(th.Of(theme.RoleFG))
	dimStyle := lipgloss.NewStyle().Foreground(th.Of(theme.RoleMuted))

	status := ""
	if m.sleeping {
		status = "  SLEEP"
	}
	header := headerStyle.Render(fmt.Sprintf("go-ctrldev  %3.0fbpm  bank %d/%d  screen:%s%s",
		app.Tempo(), app.Bank()+1, app.BankCount(), app.Screen(), status))

	infos := m.opts.Registry.Drivers()

	var out strings.Builder
	out.WriteString("\n")
	out.WriteString(header)
	out.WriteString("\n\n")

	out.WriteString(titleStyle.Render("Controllers"))
	out.WriteString("\n")
	out.WriteString(m.driverList(infos))
	out.WriteString("\n")

	if m.selected < len(infos) {
		if grid := m.surface(infos[m.selected]); grid != "" {
			out.WriteString("\n")
			out.WriteString(grid)
			out.WriteString("\n")
		}
	}

	left := titleStyle.Render("Mixer") + "\n" + m.strips()
	right := titleStyle.Render(fmt.Sprintf("Bus (%d)", m.opts.Events.Total())) + "\n" + m.events()
	out.WriteString("\n")
	out.WriteString(lipgloss.JoinHorizontal(lipgloss.Top, left, "    ", right))
	out.WriteString("\n")

	if m.lastDevice != "" {
		out.WriteString("\n")
		out.WriteString(dimStyle.Render(m.lastDevice))
	}
	out.WriteString("\n\n")
	out.WriteString(m.help.View(m.keys))
	return out.String()
}

func (m Model) driverList(infos []ctrldev.DriverInfo) string {
	th := m.opts.Theme
	if len(infos) == 0 {
		return lipgloss.NewStyle().Foreground(th.Of(theme.RoleMuted)).Render("  no controller bound, connect one any time")
	}
	lines := make([]string, len(infos))
	for i, d := range infos {
		feedback := "no output"
		if d.Feedback {
			feedback = "output"
		}
		mode := d.Mode
		if mode == "" {
			mode = "-"
		}
		line := fmt.Sprintf("%c %-4d %-20s %-10s %-24s %s  %q",
			th.Symbols.Connected, d.Port, d.Driver, mode, d.Caps, feedback, d.PortName)
		style := lipgloss.NewStyle().Foreground(th.Of(theme.RoleFG))
		if i == m.selected {
			style = lipgloss.NewStyle().Foreground(th.Of(theme.RoleCursor))
		}
		lines[i] = style.Render(line)
	}
	return strings.Join(lines, "\n")
}

// surface draws the LEDs of a bound driver as its output last set them
func (m Model) surface(d ctrldev.DriverInfo) string {
	layout, ok := drivers.SurfaceFor(d.Driver)
	mirror := m.opts.Mirrors.Get(d.Port)
	if !ok || mirror == nil {
		return ""
	}
	return widgets.RenderGrid(m.opts.Theme, SurfaceLEDs(layout, mirror, m.opts.Theme.RGB(theme.RoleSuccess)))
}

// SurfaceLEDs resolves a layout against a mirror. mono is the colour of
// single colour LEDs.
func SurfaceLEDs(layout drivers.Surface, mirror *midi.Mirror, mono theme.RGB) [][]widgets.LED {
	rows := make([][]widgets.LED, len(layout.Rows))
	for i, r := range layout.Rows {
		rows[i] = make([]widgets.LED, len(r))
		for j, c := range r {
			if c.Blank {
				rows[i][j] = widgets.LED{None: true}
				continue
			}
			var led midi.LED
			if c.CC {
				led = mirror.CC(c.ID)
			} else {
				led = mirror.Note(c.ID)
			}
			l := widgets.LED{
				Lit:   led.Value > 0,
				Blink: led.Value > 0 && layout.Blinks(c, led.Channel, led.Value),
				Color: mono,
			}
			if !c.Mono {
				l.Color = midi.PaletteRGB(led.Value)
			}
			rows[i][j] = l
		}
	}
	return rows
}

func (m Model) strips() string {
	app := m.opts.Host
	th := m.opts.Theme
	active, _ := app.ActiveChain()
	lines := make([]string, 0, app.ChainCount())
	for i := 0; i < app.ChainCount(); i++ {
		c, ok := app.ChainByIndex(i)
		if !ok {
			continue
		}
		ch := c.MixerChannel
		lines = append(lines, widgets.RenderStrip(th, c.Name, app.Level(ch), app.Balance(ch),
			app.Mute(ch), app.Solo(ch), c.ID == active.ID))
	}
	return strings.Join(lines, "\n")
}

func (m Model) events() string {
	dim := lipgloss.NewStyle().Foreground(m.opts.Theme.Of(theme.RoleMuted))
	recent := m.opts.Events.Recent(eventsShown)
	if len(recent) == 0 {
		return dim.Render("no events yet")
	}
	lines := make([]string, len(recent))
	for i, e := range recent {
		lines[i] = dim.Render(e.At.Format("15:04:05.000")) + " " + e.Event.String()
	}
	return strings.Join(lines, "\n")
}
