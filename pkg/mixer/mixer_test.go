// ABOUTME: Tests for mixer state
// ABOUTME: Tests defaults, mute round-trips, clamping and sink mirroring
package mixer

import (
	"errors"
	"testing"

	"github.com/castvox/castvox-go/pkg/engine"
)

type recordingSink struct {
	calls []engine.Level
	chans []engine.Channel
	err   error
}

func (r *recordingSink) UpdateChannelLevel(ch engine.Channel, level engine.Level) error {
	r.chans = append(r.chans, ch)
	r.calls = append(r.calls, level)
	return r.err
}

func TestDefaults(t *testing.T) {
	m := New(nil)
	levels := m.Levels()

	tests := []struct {
		ch   engine.Channel
		want float64
	}{
		{engine.Voice, 1.0},
		{engine.Ambience, 0.4},
		{engine.SFX, 0.7},
		{engine.Master, 1.0},
	}

	for _, tt := range tests {
		t.Run(string(tt.ch), func(t *testing.T) {
			got, _ := levels.Get(tt.ch)
			if got.Volume != tt.want || got.Muted {
				t.Errorf("expected %v unmuted, got %+v", tt.want, got)
			}
		})
	}
}

func TestMuteRoundTripRestoresVolume(t *testing.T) {
	volumes := []float64{0, 0.35, 1.0, 1.5}

	for _, v := range volumes {
		m := New(nil)
		m.SetVolume(engine.Voice, v)

		if err := m.SetMuted(engine.Voice, true); err != nil {
			t.Fatalf("mute failed: %v", err)
		}
		muted, _ := m.Level(engine.Voice)
		if muted.Gain() != 0 {
			t.Errorf("expected muted gain 0, got %v", muted.Gain())
		}

		m.SetMuted(engine.Voice, false)
		got, _ := m.Level(engine.Voice)
		if got.Volume != v || got.Muted {
			t.Errorf("expected volume %v restored, got %+v", v, got)
		}
	}
}

func TestToggleMute(t *testing.T) {
	m := New(nil)

	muted, err := m.ToggleMute(engine.Voice)
	if err != nil || !muted {
		t.Fatalf("expected muted, got %v (%v)", muted, err)
	}
	muted, _ = m.ToggleMute(engine.Voice)
	if muted {
		t.Error("expected unmuted after second toggle")
	}

	if _, err := m.ToggleMute(engine.Master); !errors.Is(err, ErrNoMute) {
		t.Errorf("expected ErrNoMute for master, got %v", err)
	}
}

func TestOnlyVoiceCanMute(t *testing.T) {
	m := New(nil)
	for _, ch := range []engine.Channel{engine.Ambience, engine.SFX, engine.Master} {
		if err := m.SetMuted(ch, true); !errors.Is(err, ErrNoMute) {
			t.Errorf("%s: expected ErrNoMute, got %v", ch, err)
		}
	}
	if err := m.SetVolume("delay", 1); !errors.Is(err, ErrUnknownChannel) {
		t.Errorf("expected ErrUnknownChannel, got %v", err)
	}
}

func TestNudgeClamps(t *testing.T) {
	m := New(nil)

	v, _ := m.Nudge(engine.Master, 10)
	if v != engine.MaxVolume {
		t.Errorf("expected clamp at %v, got %v", engine.MaxVolume, v)
	}
	v, _ = m.Nudge(engine.Ambience, -1)
	if v != 0 {
		t.Errorf("expected clamp at 0, got %v", v)
	}
}

func TestSinkMirrorsChanges(t *testing.T) {
	sink := &recordingSink{}
	m := New(sink)

	m.SetVolume(engine.Ambience, 0.6)
	m.SetMuted(engine.Voice, true)

	if len(sink.calls) != 2 {
		t.Fatalf("expected 2 sink calls, got %d", len(sink.calls))
	}
	if sink.chans[0] != engine.Ambience || sink.calls[0].Volume != 0.6 {
		t.Errorf("unexpected first call: %s %+v", sink.chans[0], sink.calls[0])
	}
	if !sink.calls[1].Muted || sink.calls[1].Volume != 1.0 {
		t.Errorf("expected muted voice keeping volume, got %+v", sink.calls[1])
	}

	// Rejected changes never reach the sink
	m.SetMuted(engine.Master, true)
	if len(sink.calls) != 2 {
		t.Errorf("expected rejected change to skip the sink")
	}
}

func TestSinkFailureKeepsStoredState(t *testing.T) {
	sink := &recordingSink{err: engine.ErrTornDown}
	m := New(sink)

	if err := m.SetVolume(engine.SFX, 0.2); err != nil {
		t.Fatalf("expected stored change to succeed, got %v", err)
	}
	got, _ := m.Level(engine.SFX)
	if got.Volume != 0.2 {
		t.Errorf("expected 0.2 stored, got %v", got.Volume)
	}
}

func TestOnChange(t *testing.T) {
	m := New(nil)

	var seen []engine.Channel
	m.OnChange(func(ch engine.Channel, _ engine.Level) { seen = append(seen, ch) })

	m.SetVolume(engine.Master, 0.9)
	m.Nudge(engine.SFX, VolumeStep)

	if len(seen) != 2 || seen[0] != engine.Master || seen[1] != engine.SFX {
		t.Errorf("unexpected change notifications: %v", seen)
	}
}

func TestDrivesEngineGains(t *testing.T) {
	e := engine.New(engine.Config{SampleRate: 1000})
	defer e.Teardown()

	m := New(e)
	m.SetVolume(engine.Voice, 0.3)
	m.SetMuted(engine.Voice, true)

	got := e.Levels().Voice
	if got.Volume != 0.3 || !got.Muted {
		t.Errorf("expected engine to store muted 0.3, got %+v", got)
	}
}
