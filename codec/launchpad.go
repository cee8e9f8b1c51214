package codec

import "go-ctrldev/midi"

// Launchpad Mini MK3 SysEx header: F0 00 20 29 02 0D
var launchpadHeader = []byte{0x00, 0x20, 0x29, 0x02, 0x0D}

const (
	lpLayout     = 0x00
	lpLEDs       = 0x03
	lpBrightness = 0x08
	lpSleep      = 0x09
	lpProgrammer = 0x0E

	lpLayoutSession    = 0x00
	lpLayoutProgrammer = 0x7F

	lpColourRGB = 0x03
)

func launchpadSysEx(body ...byte) midi.SysEx {
	return midi.NewSysEx(append(append([]byte{}, launchpadHeader...), body...)...)
}

// LaunchpadProgrammerMode switches between programmer and live mode
func LaunchpadProgrammerMode(on bool) midi.SysEx {
	if on {
		return launchpadSysEx(lpProgrammer, 0x01)
	}
	return launchpadSysEx(lpProgrammer, 0x00)
}

// LaunchpadLayout selects the session (false) or programmer (true) layout
func LaunchpadLayout(programmer bool) midi.SysEx {
	if programmer {
		return launchpadSysEx(lpLayout, lpLayoutProgrammer)
	}
	return launchpadSysEx(lpLayout, lpLayoutSession)
}

// LaunchpadBrightness sets LED brightness (0-127)
func LaunchpadBrightness(level uint8) midi.SysEx {
	return launchpadSysEx(lpBrightness, level&0x7F)
}

// LaunchpadSleep puts the LEDs to sleep or wakes them
func LaunchpadSleep(sleep bool) midi.SysEx {
	if sleep {
		return launchpadSysEx(lpSleep, 0x00)
	}
	return launchpadSysEx(lpSleep, 0x01)
}

// RGBLED is one pad colour in a LaunchpadRGB frame. Components are 0-127.
type RGBLED struct {
	Index   uint8
	R, G, B uint8
}

// LaunchpadRGB sets any number of pads to RGB colours in one frame
func LaunchpadRGB(leds ...RGBLED) midi.SysEx {
	body := make([]byte, 0, 1+len(leds)*5)
	body = append(body, lpLEDs)
	for _, l := range leds {
		body = append(body, lpColourRGB, l.Index&0x7F, l.R&0x7F, l.G&0x7F, l.B&0x7F)
	}
	return launchpadSysEx(body...)
}

// Launchpad pad numbering: row 0 (bottom) = 11-18, row 7 = 81-88,
// right column = 19..89, top row = 91-98 (CC).

// LaunchpadPad returns the note of a grid position. Row 8 is the top row.
func LaunchpadPad(row, col int) uint8 {
	if row == 8 {
		return uint8(91 + col)
	}
	return uint8((row+1)*10 + col + 1)
}

// LaunchpadPosition is the inverse of LaunchpadPad, or -1, -1
func LaunchpadPosition(note uint8) (row, col int) {
	if note >= 91 && note <= 98 {
		return 8, int(note - 91)
	}
	row = int(note/10) - 1
	col = int(note%10) - 1
	if row < 0 || row > 7 || col < 0 || col > 8 {
		return -1, -1
	}
	return row, col
}
