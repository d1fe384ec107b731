// ABOUTME: Shared node plumbing for the audio graph
// ABOUTME: Handles wiring, per-quantum output caching and input mixing
package graph

import "slices"

// Node is any vertex in the audio graph
type Node interface {
	ID() int
	Kind() string
	Connect(dst Node) error
	Disconnect()
	core() *node
}

// processor is implemented by every concrete node type
type processor interface {
	Node
	process(frames int)
}

type node struct {
	ctx     *Context
	id      int
	kind    string
	self    processor
	inputs  []Node
	outputs []Node
	quantum uint64
	out     [][]float32
}

// ID returns the node's identifier, unique within its context
func (n *node) ID() int {
	return n.id
}

// Kind names the node type
func (n *node) Kind() string {
	return n.kind
}

func (n *node) core() *node {
	return n
}

// Connect feeds this node's output into dst
func (n *node) Connect(dst Node) error {
	c := n.ctx
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	d := dst.core()
	if d.ctx != c {
		c.mu.Unlock()
		return ErrForeignNode
	}
	if !slices.Contains(d.inputs, Node(n.self)) {
		d.inputs = append(d.inputs, n.self)
		n.outputs = append(n.outputs, dst)
	}
	c.mu.Unlock()

	c.observe(func(o Observer) { o.Connected(n.self, dst) })
	return nil
}

// Disconnect removes every outgoing connection
func (n *node) Disconnect() {
	c := n.ctx
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	for _, dst := range n.outputs {
		d := dst.core()
		d.inputs = slices.DeleteFunc(d.inputs, func(in Node) bool {
			return in == Node(n.self)
		})
	}
	n.outputs = nil
	c.mu.Unlock()

	c.observe(func(o Observer) { o.Disconnected(n.self) })
}

// pull renders this node once per quantum and caches the result; c.mu must be held
func (n *node) pull(q uint64, frames int) [][]float32 {
	if n.quantum == q && len(n.out) > 0 && len(n.out[0]) == frames {
		return n.out
	}
	n.quantum = q
	n.reset(frames)
	n.self.process(frames)
	return n.out
}

// reset sizes and zeroes the output buffer
func (n *node) reset(frames int) {
	channels := n.ctx.channels
	if len(n.out) != channels {
		n.out = make([][]float32, channels)
	}
	for ch := range n.out {
		if cap(n.out[ch]) < frames {
			n.out[ch] = make([]float32, frames)
		}
		n.out[ch] = n.out[ch][:frames]
		clear(n.out[ch])
	}
}

// mixInputs sums every input into the output buffer
func (n *node) mixInputs(frames int) {
	for _, in := range n.inputs {
		buf := in.core().pull(n.quantum, frames)
		for ch := range n.out {
			dst := n.out[ch]
			for i, v := range buf[ch] {
				dst[i] += v
			}
		}
	}
}

// Destination is the terminal node that feeds the output device
type Destination struct {
	node
}

func (d *Destination) process(frames int) {
	d.mixInputs(frames)
}
