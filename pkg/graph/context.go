// ABOUTME: Audio render context owning the sample clock and destination
// ABOUTME: Renders interleaved frames by pulling through the node graph
package graph

import (
	"slices"
	"sync"

	"github.com/castvox/castvox-go/pkg/audio"
)

// Context owns a set of nodes, the destination and the sample clock
type Context struct {
	mu         sync.Mutex
	sampleRate int
	channels   int
	frame      int64
	quantum    uint64
	dest       *Destination
	sources    []*BufferSource
	closed     bool
	nextID     int
	pending    []func()
	observer   Observer
}

// Option configures a Context
type Option func(*Context)

// WithObserver attaches an observer that sees every graph mutation
func WithObserver(o Observer) Option {
	return func(c *Context) {
		c.observer = o
	}
}

// NewContext creates a render context with the given output format
func NewContext(sampleRate, channels int, opts ...Option) *Context {
	if channels < 1 {
		channels = 1
	}

	c := &Context{
		sampleRate: sampleRate,
		channels:   channels,
	}
	for _, opt := range opts {
		opt(c)
	}

	c.dest = &Destination{}
	c.initNode(&c.dest.node, c.dest, "destination")
	return c
}

// SampleRate returns the output sample rate
func (c *Context) SampleRate() int {
	return c.sampleRate
}

// Channels returns the output channel count
func (c *Context) Channels() int {
	return c.channels
}

// CurrentTime returns seconds of audio rendered so far
func (c *Context) CurrentTime() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.timeAt(c.frame)
}

// Destination returns the node whose inputs reach the output device
func (c *Context) Destination() *Destination {
	return c.dest
}

// Closed reports whether Close has been called
func (c *Context) Closed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// Render fills dst with the next interleaved frames of output.
// Source callbacks queued during the render run after the lock is released.
func (c *Context) Render(dst []float32) {
	c.mu.Lock()

	frames := len(dst) / c.channels
	if c.closed || frames == 0 {
		c.mu.Unlock()
		clear(dst)
		return
	}

	c.quantum++
	out := c.dest.pull(c.quantum, frames)
	for i := 0; i < frames; i++ {
		for ch := 0; ch < c.channels; ch++ {
			v := out[ch][i]
			if v > 1 {
				v = 1
			} else if v < -1 {
				v = -1
			}
			dst[i*c.channels+ch] = v
		}
	}
	clear(dst[frames*c.channels:])

	// Sources with no path to the destination still advance and end
	for _, s := range c.sources {
		if s.quantum != c.quantum {
			s.pull(c.quantum, frames)
		}
	}
	c.sources = slices.DeleteFunc(c.sources, func(s *BufferSource) bool {
		return s.state == sourceFinished
	})

	c.frame += int64(frames)
	pending := c.pending
	c.pending = nil
	c.mu.Unlock()

	for _, fn := range pending {
		fn()
	}
}

// Close stops every source and rejects further node creation.
// Pending callbacks are dropped.
func (c *Context) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil
	}
	c.closed = true
	for _, s := range c.sources {
		s.state = sourceFinished
	}
	c.sources = nil
	c.pending = nil
	return nil
}

// NewBufferSource creates a source node that plays buf
func (c *Context) NewBufferSource(buf *audio.Buffer) (*BufferSource, error) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil, ErrClosed
	}
	s := &BufferSource{buffer: buf, rate: 1}
	c.initNode(&s.node, s, "source")
	c.mu.Unlock()

	c.observe(func(o Observer) { o.NodeCreated(s) })
	return s, nil
}

// NewGain creates a gain node with an initial value
func (c *Context) NewGain(value float64) (*Gain, error) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil, ErrClosed
	}
	g := &Gain{}
	g.param = Param{gain: g, value: value}
	c.initNode(&g.node, g, "gain")
	c.mu.Unlock()

	c.observe(func(o Observer) { o.NodeCreated(g) })
	return g, nil
}

// NewAnalyser creates an analyser tap with the given FFT size
func (c *Context) NewAnalyser(fftSize int) (*Analyser, error) {
	a, err := newAnalyser(fftSize)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil, ErrClosed
	}
	c.initNode(&a.node, a, "analyser")
	c.mu.Unlock()

	c.observe(func(o Observer) { o.NodeCreated(a) })
	return a, nil
}

func (c *Context) initNode(n *node, self processor, kind string) {
	c.nextID++
	n.ctx = c
	n.id = c.nextID
	n.kind = kind
	n.self = self
}

func (c *Context) timeAt(frame int64) float64 {
	return float64(frame) / float64(c.sampleRate)
}

// frameAt converts a time in seconds to the first frame at or after it
func (c *Context) frameAt(t float64) int64 {
	f := t * float64(c.sampleRate)
	frame := int64(f)
	if float64(frame) < f {
		frame++
	}
	return frame
}

// queue defers fn until the current render releases the lock; c.mu must be held
func (c *Context) queue(fn func()) {
	if fn != nil {
		c.pending = append(c.pending, fn)
	}
}

func (c *Context) observe(fn func(Observer)) {
	if c.observer != nil {
		fn(c.observer)
	}
}
