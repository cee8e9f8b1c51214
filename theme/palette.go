package theme

import (
	"bufio"
	"fmt"
	"io"
	"math"
	"os"
	"strings"

	"github.com/Southclaws/fault"
	"github.com/Southclaws/fault/fmsg"
	colorful "github.com/lucasb-eyer/go-colorful"
)

type RGB [3]uint8

type Palette struct {
	Name   string
	Colors []RGB
}

// Plasma is the built-in palette, dark purple to bright yellow
var Plasma = &Palette{
	Name: "plasma",
	Colors: []RGB{
		{13, 8, 135},
		{84, 2, 163},
		{139, 10, 165},
		{185, 50, 137},
		{219, 92, 104},
		{244, 136, 73},
		{254, 188, 43},
		{240, 249, 33},
	},
}

// LoadGPL reads a GIMP palette file
func LoadGPL(path string) (*Palette, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fault.Wrap(err, fmsg.With("open palette"))
	}
	defer f.Close()

	p, err := parseGPL(f)
	if err != nil {
		return nil, fault.Wrap(err, fmsg.With("palette "+path))
	}
	return p, nil
}

// parseGPL reads "R G B name" lines. Header keys other than Name and
// comment lines are skipped.
func parseGPL(r io.Reader) (*Palette, error) {
	p := &Palette{}
	lines := bufio.NewScanner(r)
	for lines.Scan() {
		line := strings.TrimSpace(lines.Text())
		if name, ok := strings.CutPrefix(line, "Name:"); ok {
			p.Name = strings.TrimSpace(name)
			continue
		}
		var c RGB
		if _, err := fmt.Sscan(line, &c[0], &c[1], &c[2]); err == nil {
			p.Colors = append(p.Colors, c)
		}
	}
	if err := lines.Err(); err != nil {
		return nil, err
	}
	if len(p.Colors) == 0 {
		return nil, fault.New("no colors found")
	}
	return p, nil
}

// LoadOrDefault loads path, falling back to Plasma when path is empty or
// unreadable
func LoadOrDefault(path string) (*Palette, error) {
	if path == "" {
		return Plasma, nil
	}
	p, err := LoadGPL(path)
	if err != nil {
		return Plasma, err
	}
	return p, nil
}

func toColorful(c RGB) colorful.Color {
	return colorful.Color{R: float64(c[0]) / 255, G: float64(c[1]) / 255, B: float64(c[2]) / 255}
}

func fromColorful(c colorful.Color) RGB {
	r, g, b := c.Clamped().RGB255()
	return RGB{r, g, b}
}

// Lookup returns the colour at norm (0-1), blended in Lab space between the
// two nearest palette entries
func (p *Palette) Lookup(norm float64) RGB {
	last := len(p.Colors) - 1
	switch {
	case norm <= 0 || last == 0:
		return p.Colors[0]
	case norm >= 1:
		return p.Colors[last]
	}
	lo, frac := math.Modf(norm * float64(last))
	i := int(lo)
	return fromColorful(toColorful(p.Colors[i]).BlendLab(toColorful(p.Colors[i+1]), frac))
}
