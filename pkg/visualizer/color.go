// ABOUTME: Colour values and palette interpolation
// ABOUTME: Linear RGB blending across the four-colour brand palette
package visualizer

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// RGB is an 8-bit colour
type RGB struct {
	R, G, B uint8
}

// Palette cycles blue, red, yellow, green
var Palette = []RGB{
	{0x31, 0x86, 0xFF},
	{0xFC, 0x41, 0x3D},
	{0xFE, 0xC7, 0x00},
	{0x0E, 0xBC, 0x5F},
}

// BaselineColor is the idle line colour
var BaselineColor = RGB{0x18, 0x18, 0x1B}

// ParseHex reads a "#rrggbb" colour
func ParseHex(s string) (RGB, error) {
	hex := strings.TrimPrefix(s, "#")
	if len(hex) != 6 {
		return RGB{}, fmt.Errorf("invalid colour %q", s)
	}
	v, err := strconv.ParseUint(hex, 16, 32)
	if err != nil {
		return RGB{}, fmt.Errorf("invalid colour %q: %w", s, err)
	}
	return RGB{uint8(v >> 16), uint8(v >> 8), uint8(v)}, nil
}

// Hex formats the colour as "#rrggbb"
func (c RGB) Hex() string {
	return fmt.Sprintf("#%02x%02x%02x", c.R, c.G, c.B)
}

// Lerp blends a toward b by t in [0, 1]
func Lerp(a, b RGB, t float64) RGB {
	mix := func(x, y uint8) uint8 {
		return uint8(math.Round(float64(x) + (float64(y)-float64(x))*t))
	}
	return RGB{mix(a.R, b.R), mix(a.G, b.G), mix(a.B, b.B)}
}

// PaletteAt returns the palette colour for a colour phase; each whole unit
// moves one palette step
func PaletteAt(phase float64) RGB {
	if phase < 0 {
		phase = 0
	}
	n := len(Palette)
	idx := int(math.Floor(phase)) % n
	next := (idx + 1) % n
	return Lerp(Palette[idx], Palette[next], phase-math.Floor(phase))
}
