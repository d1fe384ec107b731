// ABOUTME: Waveform frame computation from analyser data
// ABOUTME: Computes intensity, colour phase and the primary and glow strokes
package visualizer

import "math"

const (
	Points       = 100
	MinIntensity = 0.1
	MaxIntensity = 1.5

	phaseStep      = 0.15
	colorPhaseRate = 0.05
)

// FrequencySource supplies spectrum bytes; the playback engine implements it
type FrequencySource interface {
	FrequencyBinCount() int
	ByteFrequencyData(dst []byte)
}

// Point is a position in surface units
type Point struct {
	X, Y float64
}

// Stroke is one polyline to draw
type Stroke struct {
	Points   []Point
	Color    RGB
	Alpha    float64
	Width    float64
	RoundCap bool
}

// Frame is everything a surface needs to draw one animation frame
type Frame struct {
	Width     float64
	Height    float64
	Scale     float64
	Playing   bool
	Intensity float64
	Strokes   []Stroke
}

// Renderer turns frequency data into frames. It keeps the phase that
// drives wave motion and colour cycling between frames.
type Renderer struct {
	source   FrequencySource
	baseline RGB
	bins     []byte
	phase    float64
}

// NewRenderer creates a renderer. A nil source animates a synthetic wave.
func NewRenderer(source FrequencySource) *Renderer {
	r := &Renderer{source: source, baseline: BaselineColor}
	if source != nil {
		r.bins = make([]byte, source.FrequencyBinCount())
	}
	return r
}

// SetBaselineColor changes the idle line colour
func (r *Renderer) SetBaselineColor(c RGB) {
	r.baseline = c
}

// Phase returns the accumulated wave phase
func (r *Renderer) Phase() float64 {
	return r.phase
}

// Intensity is mean bin energy over a reference of 128, clamped to
// [MinIntensity, MaxIntensity] so the line never flattens or explodes
func Intensity(bins []byte) float64 {
	if len(bins) == 0 {
		return MinIntensity
	}
	var sum int
	for _, b := range bins {
		sum += int(b)
	}
	v := float64(sum) / float64(len(bins)) / 128
	return min(max(v, MinIntensity), MaxIntensity)
}

// Render produces the next frame for a surface of the given size
func (r *Renderer) Render(width, height float64, playing bool) Frame {
	frame := Frame{Width: width, Height: height, Scale: 1, Playing: playing}
	cy := height / 2

	if !playing {
		frame.Strokes = []Stroke{{
			Points: []Point{{0, cy}, {width, cy}},
			Color:  r.baseline,
			Alpha:  0.1,
			Width:  1,
		}}
		return frame
	}

	intensity := 1.0
	if r.source != nil {
		r.source.ByteFrequencyData(r.bins)
		intensity = Intensity(r.bins)
	}
	frame.Intensity = intensity

	r.phase += phaseStep * intensity
	color := PaletteAt(r.phase * colorPhaseRate)

	primary := make([]Point, 0, Points+1)
	glow := make([]Point, 0, Points+1)
	for i := 0; i <= Points; i++ {
		t := float64(i) / Points
		x := t * width
		env := math.Sin(t * math.Pi)

		var offset float64
		if r.source != nil && len(r.bins) > 0 {
			bin := int(math.Floor(t * float64(len(r.bins)) * 0.5))
			offset = float64(r.bins[bin]) / 255 * 30 * env
		} else {
			offset = math.Sin(float64(i)*0.2+r.phase) * 15 * env
		}

		y := cy + offset + math.Sin(float64(i)*0.5-r.phase*2)*8*intensity*env
		primary = append(primary, Point{x, y})

		gy := cy + math.Sin(float64(i)*0.15+r.phase*0.5+2)*20*intensity*env
		glow = append(glow, Point{x, gy})
	}

	frame.Strokes = []Stroke{
		{Points: primary, Color: color, Alpha: 0.9, Width: 2.5, RoundCap: true},
		{Points: glow, Color: color, Alpha: 0.2, Width: 1, RoundCap: true},
	}
	return frame
}
