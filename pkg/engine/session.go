// ABOUTME: Playback session state and handles
// ABOUTME: Tracks the nodes owned by one render and its lifecycle state
package engine

import (
	"github.com/castvox/castvox-go/pkg/graph"
	"github.com/charmbracelet/log"
)

// State is a session's position in its lifecycle
type State int

const (
	Idle State = iota
	Starting
	Playing
	Ended
	Stopped
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Starting:
		return "starting"
	case Playing:
		return "playing"
	case Ended:
		return "ended"
	case Stopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// Active reports whether the state still owns live nodes
func (s State) Active() bool {
	return s == Starting || s == Playing
}

// SessionHandle identifies one session
type SessionHandle string

// SessionEvent reports a session state transition
type SessionEvent struct {
	Handle SessionHandle
	State  State
}

// SessionOption adjusts how a session plays
type SessionOption func(*sessionOptions)

type sessionOptions struct {
	rate   float64
	levels func() Levels
}

// WithPlaybackRate plays the voice faster or slower, shifting pitch with it
func WithPlaybackRate(rate float64) SessionOption {
	return func(o *sessionOptions) {
		o.rate = rate
	}
}

// WithLevelSource reads the channel levels while the session is being
// built, so a fader moved during setup is not overwritten by a stale copy
func WithLevelSource(levels func() Levels) SessionOption {
	return func(o *sessionOptions) {
		o.levels = levels
	}
}

type session struct {
	handle   SessionHandle
	state    State
	voice    *graph.BufferSource
	ambience *graph.BufferSource
	gains    map[Channel]*graph.Gain
}

// gainValues returns the current live value of each channel gain
func (s *session) gainValues() map[Channel]float64 {
	values := make(map[Channel]float64, len(s.gains))
	for ch, g := range s.gains {
		values[ch] = g.Gain().Value()
	}
	return values
}

// release stops every source and disconnects every node, ignoring stop errors
func (s *session) release(final State) {
	for _, src := range []*graph.BufferSource{s.voice, s.ambience} {
		if src == nil {
			continue
		}
		if err := src.Stop(); err != nil {
			log.Debug("ignoring source stop error", "session", s.handle, "err", err)
		}
		src.Disconnect()
	}
	for _, g := range s.gains {
		g.Disconnect()
	}
	s.state = final
}
