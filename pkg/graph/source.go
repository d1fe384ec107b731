// ABOUTME: Buffer source node playing decoded audio
// ABOUTME: Supports scheduled start, stop, looping and playback rate
package graph

import (
	"math"

	"github.com/castvox/castvox-go/pkg/audio"
)

type sourceState int

const (
	sourceIdle sourceState = iota
	sourceScheduled
	sourcePlaying
	sourceFinished
)

// BufferSource plays an audio buffer into the graph
type BufferSource struct {
	node
	buffer     *audio.Buffer
	loop       bool
	rate       float64
	state      sourceState
	startFrame int64
	pos        float64
	onStarted  func()
	onEnded    func()
}

// Buffer returns the buffer being played
func (s *BufferSource) Buffer() *audio.Buffer {
	return s.buffer
}

// SetLoop makes playback wrap to the start when the buffer ends
func (s *BufferSource) SetLoop(loop bool) {
	s.ctx.mu.Lock()
	s.loop = loop
	s.ctx.mu.Unlock()
}

// Loop reports whether the source loops
func (s *BufferSource) Loop() bool {
	s.ctx.mu.Lock()
	defer s.ctx.mu.Unlock()
	return s.loop
}

// SetPlaybackRate changes speed and pitch together; non-positive rates are ignored
func (s *BufferSource) SetPlaybackRate(rate float64) {
	if rate <= 0 || math.IsNaN(rate) || math.IsInf(rate, 0) {
		return
	}
	s.ctx.mu.Lock()
	s.rate = rate
	s.ctx.mu.Unlock()
}

// PlaybackRate returns the current playback rate
func (s *BufferSource) PlaybackRate() float64 {
	s.ctx.mu.Lock()
	defer s.ctx.mu.Unlock()
	return s.rate
}

// OnStarted registers a callback fired when the first frame is rendered
func (s *BufferSource) OnStarted(fn func()) {
	s.ctx.mu.Lock()
	s.onStarted = fn
	s.ctx.mu.Unlock()
}

// OnEnded registers a callback fired when playback finishes or is stopped
func (s *BufferSource) OnEnded(fn func()) {
	s.ctx.mu.Lock()
	s.onEnded = fn
	s.ctx.mu.Unlock()
}

// Start schedules playback at the given context time in seconds.
// Times in the past start on the next rendered frame.
func (s *BufferSource) Start(when float64) error {
	c := s.ctx
	c.mu.Lock()
	switch {
	case c.closed:
		c.mu.Unlock()
		return ErrClosed
	case s.buffer == nil:
		c.mu.Unlock()
		return ErrNoBuffer
	case s.state != sourceIdle:
		c.mu.Unlock()
		return ErrAlreadyStarted
	}

	s.startFrame = max(c.frameAt(when), c.frame)
	s.state = sourceScheduled
	c.sources = append(c.sources, s)
	c.mu.Unlock()

	c.observe(func(o Observer) { o.SourceStarted(s, when) })
	return nil
}

// Stop ends playback immediately. The ended callback fires on the next render.
func (s *BufferSource) Stop() error {
	c := s.ctx
	c.mu.Lock()
	switch {
	case c.closed:
		c.mu.Unlock()
		return ErrClosed
	case s.state == sourceIdle:
		c.mu.Unlock()
		return ErrNotStarted
	case s.state == sourceFinished:
		c.mu.Unlock()
		return ErrAlreadyStopped
	}

	s.state = sourceFinished
	c.queue(s.onEnded)
	c.mu.Unlock()

	c.observe(func(o Observer) { o.SourceStopped(s) })
	return nil
}

// Playing reports whether the source is currently producing audio
func (s *BufferSource) Playing() bool {
	s.ctx.mu.Lock()
	defer s.ctx.mu.Unlock()
	return s.state == sourcePlaying
}

// Finished reports whether the source has ended or been stopped
func (s *BufferSource) Finished() bool {
	s.ctx.mu.Lock()
	defer s.ctx.mu.Unlock()
	return s.state == sourceFinished
}

func (s *BufferSource) process(frames int) {
	if s.state != sourceScheduled && s.state != sourcePlaying {
		return
	}

	c := s.ctx
	bufFrames := s.buffer.Frames()
	if bufFrames == 0 {
		s.state = sourceFinished
		c.queue(s.onEnded)
		return
	}

	step := s.rate * float64(s.buffer.SampleRate) / float64(c.sampleRate)
	srcChannels := s.buffer.NumChannels()

	for i := 0; i < frames; i++ {
		if s.state == sourceScheduled {
			if c.frame+int64(i) < s.startFrame {
				continue
			}
			s.state = sourcePlaying
			c.queue(s.onStarted)
		}

		i0 := int(s.pos)
		frac := float32(s.pos - float64(i0))
		i1 := i0 + 1
		if i1 >= bufFrames {
			if s.loop {
				i1 = 0
			} else {
				i1 = i0
			}
		}

		for ch := range s.out {
			data := s.buffer.Data[min(ch, srcChannels-1)]
			s.out[ch][i] = data[i0]*(1-frac) + data[i1]*frac
		}

		s.pos += step
		if s.pos >= float64(bufFrames) {
			if !s.loop {
				s.state = sourceFinished
				c.queue(s.onEnded)
				return
			}
			s.pos = math.Mod(s.pos, float64(bufFrames))
		}
	}
}
