package drivers

import (
	"go-ctrldev/codec"
	"go-ctrldev/midi"
)

// Cell is one LED position of a surface. Blank cells have no LED.
type Cell struct {
	ID    uint8
	CC    bool // LED addressed by controller number
	Mono  bool // single colour, value is on/off/blink
	Blank bool
}

// Surface is the LED layout of a device, top row first
type Surface struct {
	Rows [][]Cell

	// Solid is the highest note-on channel that lights an LED steadily
	Solid uint8
	// MonoBlink is the value that flashes a single colour LED, 0 for none
	MonoBlink uint8
}

// Blinks reports whether an LED written with channel and value flashes
func (s Surface) Blinks(c Cell, channel, value uint8) bool {
	if c.Mono {
		return s.MonoBlink != 0 && value == s.MonoBlink
	}
	return channel > s.Solid
}

// SurfaceFor returns the LED layout of a driver, false for drivers without
// LED feedback
func SurfaceFor(driver string) (Surface, bool) {
	switch driver {
	case "launchpad_mini_mk3":
		return launchpadSurface(), true
	case "apc_key25_mk2":
		return apcSurface(), true
	case "nanokontrol2":
		return nanoSurface(), true
	}
	return Surface{}, false
}

func launchpadSurface() Surface {
	s := Surface{Solid: midi.ChannelStatic}
	top := make([]Cell, 0, 9)
	for col := 0; col < 8; col++ {
		top = append(top, Cell{ID: codec.LaunchpadPad(8, col), CC: true})
	}
	s.Rows = append(s.Rows, append(top, Cell{Blank: true}))
	for row := lpGridSize - 1; row >= 0; row-- {
		r := make([]Cell, 0, 9)
		for col := 0; col < lpGridSize; col++ {
			r = append(r, Cell{ID: codec.LaunchpadPad(row, col)})
		}
		s.Rows = append(s.Rows, append(r, Cell{ID: codec.LaunchpadPad(row, 8), CC: true}))
	}
	return s
}

func apcSurface() Surface {
	s := Surface{Solid: apcLEDSolid, MonoBlink: apcButtonBlink}
	for row := apcPadRows - 1; row >= 0; row-- {
		r := make([]Cell, 0, apcPadCols+1)
		for col := 0; col < apcPadCols; col++ {
			r = append(r, Cell{ID: apcPadNote(row, col)})
		}
		s.Rows = append(s.Rows, append(r, Cell{ID: apcScene0 + uint8(apcPadRows-1-row), Mono: true}))
	}
	tracks := make([]Cell, 0, apcPadCols+1)
	for col := uint8(0); col < apcPadCols; col++ {
		tracks = append(tracks, Cell{ID: apcTrack0 + col, Mono: true})
	}
	s.Rows = append(s.Rows, append(tracks, Cell{Blank: true}))
	return s
}

func nanoSurface() Surface {
	var s Surface
	for _, first := range []uint8{nanoSolo0, nanoMute0, nanoRec0} {
		r := make([]Cell, 0, nanoStrips)
		for i := uint8(0); i < nanoStrips; i++ {
			r = append(r, Cell{ID: first + i, CC: true, Mono: true})
		}
		s.Rows = append(s.Rows, r)
	}
	return s
}
