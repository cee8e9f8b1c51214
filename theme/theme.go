// Package theme maps palette positions to the colours and symbols of the
// monitor.
package theme

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"
)

// Role is a position on the palette, 0 at the dark end
type Role float64

const (
	RoleMuted   Role = 0.2
	RoleFG      Role = 0.4
	RoleAccent  Role = 0.5
	RoleCursor  Role = 0.6
	RoleWarning Role = 0.8
	RoleSuccess Role = 1.0
)

type Theme struct {
	Palette *Palette
	Symbols Symbols
}

type Symbols struct {
	LEDOn    rune // lit LED
	LEDOff   rune
	LEDBlink rune // flashing or pulsing LED
	NoLED    rune // position without an LED

	BarFull  rune
	BarEmpty rune

	Connected    rune
	Disconnected rune
}

var defaultSymbols = Symbols{
	LEDOn:        '■',
	LEDOff:       '□',
	LEDBlink:     '◆',
	NoLED:        '·',
	BarFull:      '█',
	BarEmpty:     '░',
	Connected:    '●',
	Disconnected: '○',
}

// New builds a theme on palette, Plasma when nil or empty
func New(palette *Palette) *Theme {
	if palette == nil || len(palette.Colors) == 0 {
		palette = Plasma
	}
	return &Theme{Palette: palette, Symbols: defaultSymbols}
}

// Of returns the colour of a role
func (t *Theme) Of(r Role) lipgloss.Color {
	return t.At(float64(r))
}

// At returns the colour at any position 0-1
func (t *Theme) At(pos float64) lipgloss.Color {
	return Hex(t.Palette.Lookup(pos))
}

// RGB returns the raw colour of a role
func (t *Theme) RGB(r Role) RGB {
	return t.Palette.Lookup(float64(r))
}

// Hex renders an RGB triple as a lipgloss colour
func Hex(c [3]uint8) lipgloss.Color {
	return lipgloss.Color(fmt.Sprintf("#%02x%02x%02x", c[0], c[1], c[2]))
}
