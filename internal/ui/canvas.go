// ABOUTME: Braille terminal surface for the waveform visualizer
// ABOUTME: Rasterizes frame strokes onto a dot grid and renders it with lipgloss colours
package ui

import (
	"math"
	"strings"
	"sync"

	"github.com/charmbracelet/lipgloss"

	"github.com/castvox/castvox-go/pkg/visualizer"
)

// Logical canvas size in surface units, matching the studio's wave panel
const (
	canvasWidth  = 300.0
	canvasHeight = 120.0
)

// braille dot bits indexed by [row][column] inside one cell
var brailleBits = [4][2]rune{
	{0x01, 0x08},
	{0x02, 0x10},
	{0x04, 0x20},
	{0x40, 0x80},
}

type cell struct {
	dots  rune
	color visualizer.RGB
	alpha float64
}

// Canvas is a visualizer.Surface made of braille cells. Each cell holds a
// 2x4 dot block.
type Canvas struct {
	mu    sync.Mutex
	cols  int
	rows  int
	cells []cell
	view  string
}

// NewCanvas creates a canvas of cols by rows terminal cells
func NewCanvas(cols, rows int) *Canvas {
	c := &Canvas{}
	c.SetSize(cols, rows)
	return c
}

// SetSize changes the terminal footprint; Resize must follow before drawing
func (c *Canvas) SetSize(cols, rows int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cols, c.rows = max(cols, 1), max(rows, 1)
}

// Bounds returns the logical size
func (c *Canvas) Bounds() (float64, float64) {
	return canvasWidth, canvasHeight
}

// PixelRatio returns horizontal dots per logical unit
func (c *Canvas) PixelRatio() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return float64(c.cols*2) / canvasWidth
}

// Resize allocates the dot grid. Vertical resolution follows the row count.
func (c *Canvas) Resize(pixelWidth, pixelHeight int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cols = max((pixelWidth+1)/2, 1)
	c.cells = make([]cell, c.cols*c.rows)
	c.view = ""
}

// Draw clears the grid and rasterizes every stroke of frame
func (c *Canvas) Draw(frame visualizer.Frame) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if len(c.cells) != c.cols*c.rows {
		c.cells = make([]cell, c.cols*c.rows)
	}
	clear(c.cells)

	dotsW, dotsH := c.cols*2, c.rows*4
	sx := float64(dotsW-1) / max(frame.Width, 1)
	sy := float64(dotsH-1) / max(frame.Height, 1)

	for _, s := range frame.Strokes {
		for i := 1; i < len(s.Points); i++ {
			a, b := s.Points[i-1], s.Points[i]
			c.line(a.X*sx, a.Y*sy, b.X*sx, b.Y*sy, s.Color, s.Alpha)
		}
	}
	c.view = c.render()
}

// line plots a segment in dot space
func (c *Canvas) line(x0, y0, x1, y1 float64, color visualizer.RGB, alpha float64) {
	steps := int(math.Ceil(max(math.Abs(x1-x0), math.Abs(y1-y0))))
	for i := 0; i <= steps; i++ {
		t := 0.0
		if steps > 0 {
			t = float64(i) / float64(steps)
		}
		c.plot(int(math.Round(x0+(x1-x0)*t)), int(math.Round(y0+(y1-y0)*t)), color, alpha)
	}
}

func (c *Canvas) plot(x, y int, color visualizer.RGB, alpha float64) {
	if x < 0 || y < 0 || x >= c.cols*2 || y >= c.rows*4 {
		return
	}
	cl := &c.cells[(y/4)*c.cols+x/2]
	cl.dots |= brailleBits[y%4][x%2]
	if alpha >= cl.alpha {
		cl.color, cl.alpha = color, alpha
	}
}

func (c *Canvas) render() string {
	var b strings.Builder
	for row := 0; row < c.rows; row++ {
		if row > 0 {
			b.WriteByte('\n')
		}
		for col := 0; col < c.cols; col++ {
			cl := c.cells[row*c.cols+col]
			if cl.dots == 0 {
				b.WriteByte(' ')
				continue
			}
			style := lipgloss.NewStyle().Foreground(lipgloss.Color(cl.color.Hex()))
			if cl.alpha < 0.5 {
				style = style.Faint(true)
			}
			b.WriteString(style.Render(string(0x2800 + cl.dots)))
		}
	}
	return b.String()
}

// String returns the last drawn frame
func (c *Canvas) String() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.view
}

// dot reports whether the dot at x, y is set
func (c *Canvas) dot(x, y int) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if x < 0 || y < 0 || x >= c.cols*2 || y >= c.rows*4 || len(c.cells) == 0 {
		return false
	}
	return c.cells[(y/4)*c.cols+x/2].dots&brailleBits[y%4][x%2] != 0
}
