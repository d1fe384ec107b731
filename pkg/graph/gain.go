// ABOUTME: Gain node with an automatable parameter
// ABOUTME: Supports immediate and exponentially smoothed value changes
package graph

import "math"

// Gain scales its mixed input by a parameter value
type Gain struct {
	node
	param Param
}

// Gain returns the node's gain parameter
func (g *Gain) Gain() *Param {
	return &g.param
}

func (g *Gain) process(frames int) {
	g.mixInputs(frames)

	c := g.ctx
	for i := 0; i < frames; i++ {
		v := float32(g.param.advance(c.timeAt(c.frame + int64(i))))
		for ch := range g.out {
			g.out[ch][i] *= v
		}
	}
}

// Param is an automatable value evaluated once per sample
type Param struct {
	gain   *Gain
	value  float64
	events []paramEvent
	active *paramEvent
}

type paramEvent struct {
	time   float64
	target float64
	smooth bool
	decay  float64
}

// Value returns the most recently computed value
func (p *Param) Value() float64 {
	c := p.gain.ctx
	c.mu.Lock()
	defer c.mu.Unlock()
	return p.value
}

// SetValueAtTime jumps to value at context time at
func (p *Param) SetValueAtTime(value, at float64) error {
	return p.schedule(paramEvent{time: at, target: value})
}

// SetTargetAtTime approaches target exponentially from context time at,
// reaching about 63% of the distance after timeConstant seconds
func (p *Param) SetTargetAtTime(target, at, timeConstant float64) error {
	if timeConstant <= 0 {
		return p.SetValueAtTime(target, at)
	}
	decay := math.Exp(-1 / (timeConstant * float64(p.gain.ctx.sampleRate)))
	return p.schedule(paramEvent{time: at, target: target, smooth: true, decay: decay})
}

func (p *Param) schedule(ev paramEvent) error {
	c := p.gain.ctx
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}

	// Keep events ordered by time; equal times apply in call order
	i := len(p.events)
	for i > 0 && p.events[i-1].time > ev.time {
		i--
	}
	p.events = append(p.events, paramEvent{})
	copy(p.events[i+1:], p.events[i:])
	p.events[i] = ev
	c.mu.Unlock()

	c.observe(func(o Observer) { o.ParamScheduled(p.gain, ev.target, ev.time) })
	return nil
}

// advance applies events due by time t and returns the value for that sample
func (p *Param) advance(t float64) float64 {
	for len(p.events) > 0 && p.events[0].time <= t {
		ev := p.events[0]
		p.events = p.events[1:]
		if ev.smooth {
			p.active = &ev
		} else {
			p.value = ev.target
			p.active = nil
		}
	}

	if a := p.active; a != nil {
		p.value = a.target + (p.value-a.target)*a.decay
		if math.Abs(p.value-a.target) < 1e-7 {
			p.value = a.target
			p.active = nil
		}
	}
	return p.value
}
