// ABOUTME: Mixer channel names and level values
// ABOUTME: Defines volume/mute records and the per-channel level set
package engine

import (
	"fmt"
	"math"
)

// MaxVolume is the loudest level a channel fader can reach
const MaxVolume = 1.5

// Channel names a mixer bus
type Channel string

const (
	Voice    Channel = "voice"
	Ambience Channel = "ambience"
	SFX      Channel = "sfx"
	Master   Channel = "master"
)

// Channels lists every bus in fader order
var Channels = []Channel{Voice, Ambience, SFX, Master}

// ParseChannel resolves a channel name
func ParseChannel(name string) (Channel, error) {
	for _, ch := range Channels {
		if string(ch) == name {
			return ch, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownChannel, name)
}

// CanMute reports whether the channel has a mute switch
func (c Channel) CanMute() bool {
	return c == Voice
}

// Level is the stored state of one fader
type Level struct {
	Volume float64
	Muted  bool
}

// Gain returns the linear gain the level applies
func (l Level) Gain() float64 {
	if l.Muted {
		return 0
	}
	return l.Volume
}

// ClampVolume limits v to [0, MaxVolume]
func ClampVolume(v float64) float64 {
	if math.IsNaN(v) || v < 0 {
		return 0
	}
	return min(v, MaxVolume)
}

// Levels holds one Level per channel
type Levels struct {
	Voice    Level
	Ambience Level
	SFX      Level
	Master   Level
}

// UnityLevels returns every channel at full volume
func UnityLevels() Levels {
	unity := Level{Volume: 1}
	return Levels{Voice: unity, Ambience: unity, SFX: unity, Master: unity}
}

// Get returns the level of ch
func (l Levels) Get(ch Channel) (Level, error) {
	switch ch {
	case Voice:
		return l.Voice, nil
	case Ambience:
		return l.Ambience, nil
	case SFX:
		return l.SFX, nil
	case Master:
		return l.Master, nil
	}
	return Level{}, fmt.Errorf("%w: %q", ErrUnknownChannel, ch)
}

// Set replaces the level of ch
func (l *Levels) Set(ch Channel, level Level) error {
	switch ch {
	case Voice:
		l.Voice = level
	case Ambience:
		l.Ambience = level
	case SFX:
		l.SFX = level
	case Master:
		l.Master = level
	default:
		return fmt.Errorf("%w: %q", ErrUnknownChannel, ch)
	}
	return nil
}

func (l Levels) clamped() Levels {
	l.Voice.Volume = ClampVolume(l.Voice.Volume)
	l.Ambience = Level{Volume: ClampVolume(l.Ambience.Volume)}
	l.SFX = Level{Volume: ClampVolume(l.SFX.Volume)}
	l.Master = Level{Volume: ClampVolume(l.Master.Volume)}
	return l
}
