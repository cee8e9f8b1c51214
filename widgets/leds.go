// Package widgets renders the small building blocks of the monitor.
package widgets

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"go-ctrldev/theme"
)

// LED is one rendered LED position
type LED struct {
	Color [3]uint8
	Lit   bool
	Blink bool
	None  bool // no LED at this position
}

// RenderLED renders a single LED
func RenderLED(th *theme.Theme, l LED) string {
	switch {
	case l.None:
		return lipgloss.NewStyle().Foreground(th.Of(theme.RoleMuted)).Render(string(th.Symbols.NoLED))
	case !l.Lit:
		return lipgloss.NewStyle().Foreground(th.Of(theme.RoleMuted)).Render(string(th.Symbols.LEDOff))
	case l.Blink:
		return lipgloss.NewStyle().Foreground(theme.Hex(l.Color)).Render(string(th.Symbols.LEDBlink))
	}
	return lipgloss.NewStyle().Foreground(theme.Hex(l.Color)).Render(string(th.Symbols.LEDOn))
}

// RenderGrid renders rows of LEDs, top row first
func RenderGrid(th *theme.Theme, rows [][]LED) string {
	lines := make([]string, 0, len(rows))
	for _, row := range rows {
		var line strings.Builder
		for i, l := range row {
			if i > 0 {
				line.WriteString(" ")
			}
			line.WriteString(RenderLED(th, l))
		}
		lines = append(lines, line.String())
	}
	return strings.Join(lines, "\n")
}

// RenderBar renders v (0-1) as a bar of width cells
func RenderBar(th *theme.Theme, v float64, width int) string {
	if width <= 0 {
		return ""
	}
	full := int(v*float64(width) + 0.5)
	full = max(0, min(full, width))
	bar := strings.Repeat(string(th.Symbols.BarFull), full)
	rest := strings.Repeat(string(th.Symbols.BarEmpty), width-full)
	return lipgloss.NewStyle().Foreground(th.At(0.3+0.7*v)).Render(bar) +
		lipgloss.NewStyle().Foreground(th.Of(theme.RoleMuted)).Render(rest)
}

// RenderStrip renders one mixer strip line
func RenderStrip(th *theme.Theme, name string, level, balance float64, mute, solo, active bool) string {
	flags := []byte("--")
	if mute {
		flags[0] = 'M'
	}
	if solo {
		flags[1] = 'S'
	}
	label := fmt.Sprintf("%-10s", name)
	if active {
		label = lipgloss.NewStyle().Foreground(th.Of(theme.RoleCursor)).Render(label)
	}
	state := string(flags)
	if mute || solo {
		state = lipgloss.NewStyle().Foreground(th.Of(theme.RoleWarning)).Render(state)
	}
	return fmt.Sprintf("%s %s %3.0f%% %+5.2f %s", label, RenderBar(th, level, 12), level*100, balance, state)
}
