// ABOUTME: Visualizer render loop bound to a drawing surface
// ABOUTME: Requests frames while playing and cancels itself when playback stops
package visualizer

import (
	"math"
	"sync"
	"time"
)

// Surface is a drawable area such as a terminal canvas or a remote viewer
type Surface interface {
	// Bounds returns the layout size in surface units
	Bounds() (width, height float64)
	// PixelRatio returns device pixels per surface unit
	PixelRatio() float64
	// Resize sets the backing store size in device pixels
	Resize(pixelWidth, pixelHeight int)
	// Draw clears the surface and draws the frame
	Draw(frame Frame)
}

// Driver runs the renderer against a surface on a frame scheduler
type Driver struct {
	mu       sync.Mutex
	renderer *Renderer
	surface  Surface
	frames   *FrameScheduler
	playing  bool
	closed   bool
	frameID  FrameID
	queued   bool
	onFrame  func(Frame)
}

// NewDriver creates a driver and sizes the surface
func NewDriver(renderer *Renderer, surface Surface, frames *FrameScheduler) *Driver {
	d := &Driver{
		renderer: renderer,
		surface:  surface,
		frames:   frames,
	}
	d.Resize()
	return d
}

// OnFrame registers a callback that sees every drawn frame
func (d *Driver) OnFrame(fn func(Frame)) {
	d.mu.Lock()
	d.onFrame = fn
	d.mu.Unlock()
}

// SetPlaying redraws immediately and starts or stops the frame loop
func (d *Driver) SetPlaying(playing bool) {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.cancelLocked()
	d.playing = playing
	d.resizeLocked()
	frame := d.drawLocked()
	onFrame := d.onFrame
	d.mu.Unlock()

	if onFrame != nil {
		onFrame(frame)
	}
}

// Playing reports whether the loop is running
func (d *Driver) Playing() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.playing
}

// Resize rescales the surface backing store to its bounds times the pixel ratio
func (d *Driver) Resize() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.closed {
		d.resizeLocked()
	}
}

// Close cancels any outstanding frame; the driver draws nothing afterwards
func (d *Driver) Close() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.cancelLocked()
	d.closed = true
	d.playing = false
}

func (d *Driver) resizeLocked() {
	w, h := d.surface.Bounds()
	dpr := d.surface.PixelRatio()
	if dpr <= 0 {
		dpr = 1
	}
	d.surface.Resize(int(math.Round(w*dpr)), int(math.Round(h*dpr)))
}

func (d *Driver) cancelLocked() {
	if d.queued {
		d.frames.CancelFrame(d.frameID)
		d.queued = false
	}
}

func (d *Driver) tick(time.Time) {
	d.mu.Lock()
	d.queued = false
	if d.closed {
		d.mu.Unlock()
		return
	}
	frame := d.drawLocked()
	onFrame := d.onFrame
	d.mu.Unlock()

	if onFrame != nil {
		onFrame(frame)
	}
}

// drawLocked draws one frame and requests the next only while playing
func (d *Driver) drawLocked() Frame {
	w, h := d.surface.Bounds()
	frame := d.renderer.Render(w, h, d.playing)
	frame.Scale = d.surface.PixelRatio()
	if frame.Scale <= 0 {
		frame.Scale = 1
	}
	d.surface.Draw(frame)

	if d.playing {
		d.frameID = d.frames.RequestFrame(d.tick)
		d.queued = true
	}
	return frame
}
