package midi

import (
	"sync"

	colorful "github.com/lucasb-eyer/go-colorful"
)

// Launchpad palette indices (velocity values 0-127)
// See Programmer's Reference Manual for full palette
const (
	ColorOff          uint8 = 0
	ColorDimRed       uint8 = 7
	ColorRed          uint8 = 5
	ColorBrightRed    uint8 = 72
	ColorDimGreen     uint8 = 19
	ColorGreen        uint8 = 21
	ColorBrightGreen  uint8 = 87
	ColorDimYellow    uint8 = 97
	ColorYellow       uint8 = 13
	ColorBrightYellow uint8 = 62
	ColorDimOrange    uint8 = 11
	ColorOrange       uint8 = 9
	ColorBrightOrange uint8 = 84
	ColorDimBlue      uint8 = 43
	ColorBlue         uint8 = 45
	ColorBrightBlue   uint8 = 78
	ColorCyan         uint8 = 37
	ColorPurple       uint8 = 49
	ColorPink         uint8 = 53
	ColorWhite        uint8 = 3
	ColorBrightWhite  uint8 = 119
)

// Format: {velocity, R, G, B}
var launchpadPalette = [][4]uint8{
	{0, 0, 0, 0},         // off
	{3, 200, 200, 200},   // white
	{5, 255, 0, 0},       // red
	{6, 255, 80, 80},     // bright red
	{7, 180, 60, 60},     // dim red
	{9, 255, 100, 0},     // orange
	{11, 180, 80, 40},    // dim orange
	{13, 255, 200, 0},    // yellow
	{17, 0, 180, 0},      // green
	{19, 0, 100, 0},      // dim green
	{21, 0, 255, 0},      // bright green
	{37, 0, 200, 200},    // cyan
	{43, 40, 60, 120},    // dim blue
	{45, 0, 100, 255},    // blue
	{47, 80, 150, 255},   // bright blue
	{49, 150, 0, 200},    // purple
	{53, 255, 80, 180},   // pink
	{78, 100, 100, 255},  // light blue
	{84, 255, 150, 50},   // bright orange
	{87, 150, 255, 100},  // lime
	{97, 180, 180, 60},   // dim yellow
	{119, 255, 255, 255}, // bright white
}

var (
	paletteOnce sync.Once
	paletteLab  []colorful.Color
)

func toColorful(rgb [3]uint8) colorful.Color {
	return colorful.Color{R: float64(rgb[0]) / 255, G: float64(rgb[1]) / 255, B: float64(rgb[2]) / 255}
}

// NearestPaletteColor finds the palette velocity perceptually closest to rgb
func NearestPaletteColor(rgb [3]uint8) uint8 {
	paletteOnce.Do(func() {
		paletteLab = make([]colorful.Color, len(launchpadPalette))
		for i, p := range launchpadPalette {
			paletteLab[i] = toColorful([3]uint8{p[1], p[2], p[3]})
		}
	})

	target := toColorful(rgb)
	best := 0
	bestDist := 1e9
	for i, c := range paletteLab {
		d := target.DistanceLab(c)
		if d < bestDist {
			bestDist = d
			best = i
		}
	}
	return launchpadPalette[best][0]
}

// PaletteRGB returns the approximate RGB of a palette velocity (for the
// monitor). Unknown indices return the nearest lower entry.
func PaletteRGB(velocity uint8) [3]uint8 {
	var out [3]uint8
	for _, p := range launchpadPalette {
		if p[0] > velocity {
			break
		}
		out = [3]uint8{p[1], p[2], p[3]}
	}
	return out
}
