// ABOUTME: Mixer state for the studio faders
// ABOUTME: Stores channel levels and mirrors changes onto a live level sink
package mixer

import (
	"fmt"
	"sync"

	"github.com/castvox/castvox-go/pkg/engine"
	"github.com/charmbracelet/log"
)

var (
	ErrNoMute         = engine.ErrNoMute
	ErrUnknownChannel = engine.ErrUnknownChannel
)

// VolumeStep is the fader increment used by Nudge callers
const VolumeStep = 0.05

// LevelSink receives level changes; the playback engine implements it
type LevelSink interface {
	UpdateChannelLevel(ch engine.Channel, level engine.Level) error
}

// DefaultLevels returns the studio's starting fader positions
func DefaultLevels() engine.Levels {
	return engine.Levels{
		Voice:    engine.Level{Volume: 1.0},
		Ambience: engine.Level{Volume: 0.4},
		SFX:      engine.Level{Volume: 0.7},
		Master:   engine.Level{Volume: 1.0},
	}
}

// Mixer holds the four channel levels
type Mixer struct {
	mu       sync.Mutex
	levels   engine.Levels
	sink     LevelSink
	onChange func(engine.Channel, engine.Level)
}

// New creates a mixer at the default levels. sink may be nil.
func New(sink LevelSink) *Mixer {
	return &Mixer{
		levels: DefaultLevels(),
		sink:   sink,
	}
}

// SetSink replaces the sink that receives future changes
func (m *Mixer) SetSink(sink LevelSink) {
	m.mu.Lock()
	m.sink = sink
	m.mu.Unlock()
}

// OnChange registers a callback fired after every stored change
func (m *Mixer) OnChange(fn func(engine.Channel, engine.Level)) {
	m.mu.Lock()
	m.onChange = fn
	m.mu.Unlock()
}

// Levels returns a copy of every channel level
func (m *Mixer) Levels() engine.Levels {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.levels
}

// Level returns one channel's level
func (m *Mixer) Level(ch engine.Channel) (engine.Level, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.levels.Get(ch)
}

// SetVolume stores a new volume, keeping the mute switch as it is
func (m *Mixer) SetVolume(ch engine.Channel, volume float64) error {
	return m.update(ch, func(l *engine.Level) error {
		l.Volume = engine.ClampVolume(volume)
		return nil
	})
}

// Nudge moves a fader by delta and returns the resulting volume
func (m *Mixer) Nudge(ch engine.Channel, delta float64) (float64, error) {
	var volume float64
	err := m.update(ch, func(l *engine.Level) error {
		l.Volume = engine.ClampVolume(l.Volume + delta)
		volume = l.Volume
		return nil
	})
	return volume, err
}

// SetMuted switches the mute of a channel that has one. The stored volume
// is kept so unmuting restores it.
func (m *Mixer) SetMuted(ch engine.Channel, muted bool) error {
	return m.update(ch, func(l *engine.Level) error {
		if !ch.CanMute() {
			return fmt.Errorf("%w: %s", ErrNoMute, ch)
		}
		l.Muted = muted
		return nil
	})
}

// ToggleMute flips the mute of a channel and returns the new setting
func (m *Mixer) ToggleMute(ch engine.Channel) (bool, error) {
	var muted bool
	err := m.update(ch, func(l *engine.Level) error {
		if !ch.CanMute() {
			return fmt.Errorf("%w: %s", ErrNoMute, ch)
		}
		l.Muted = !l.Muted
		muted = l.Muted
		return nil
	})
	return muted, err
}

func (m *Mixer) update(ch engine.Channel, fn func(*engine.Level) error) error {
	m.mu.Lock()
	level, err := m.levels.Get(ch)
	if err != nil {
		m.mu.Unlock()
		return err
	}
	if err := fn(&level); err != nil {
		m.mu.Unlock()
		return err
	}
	m.levels.Set(ch, level)
	sink, onChange := m.sink, m.onChange
	m.mu.Unlock()

	if sink != nil {
		if err := sink.UpdateChannelLevel(ch, level); err != nil {
			log.Debug("level not applied to sink", "channel", ch, "err", err)
		}
	}
	if onChange != nil {
		onChange(ch, level)
	}
	return nil
}
