// ABOUTME: Observer hook for graph mutations
// ABOUTME: Lets callers watch node creation, wiring, source lifecycle and automation
package graph

// Observer receives a call for every mutating graph operation.
// Methods run after the context lock is released.
type Observer interface {
	NodeCreated(n Node)
	Connected(src, dst Node)
	Disconnected(src Node)
	SourceStarted(s *BufferSource, when float64)
	SourceStopped(s *BufferSource)
	ParamScheduled(g *Gain, value float64, at float64)
}

// NopObserver ignores every event
type NopObserver struct{}

func (NopObserver) NodeCreated(Node)                       {}
func (NopObserver) Connected(Node, Node)                   {}
func (NopObserver) Disconnected(Node)                      {}
func (NopObserver) SourceStarted(*BufferSource, float64)   {}
func (NopObserver) SourceStopped(*BufferSource)            {}
func (NopObserver) ParamScheduled(*Gain, float64, float64) {}
