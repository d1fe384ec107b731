// ABOUTME: Tests for the playback engine
// ABOUTME: Drives sessions offline through a manual output and a graph spy
package engine

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/castvox/castvox-go/pkg/audio"
	"github.com/castvox/castvox-go/pkg/audio/output"
	"github.com/castvox/castvox-go/pkg/graph"
)

const testRate = 1000

// manualOutput renders only when the test asks it to
type manualOutput struct {
	src      output.Source
	channels int
	closed   bool
}

func (m *manualOutput) Open(sampleRate, channels int, src output.Source) error {
	m.src = src
	m.channels = channels
	return nil
}

func (m *manualOutput) Close() error {
	m.closed = true
	return nil
}

func (m *manualOutput) render(frames int) []float32 {
	dst := make([]float32, frames*m.channels)
	m.src.Render(dst)
	return dst
}

type failingOutput struct{}

func (failingOutput) Open(int, int, output.Source) error { return errors.New("device denied") }
func (failingOutput) Close() error                       { return nil }

// graphSpy counts graph mutations
type graphSpy struct {
	graph.NopObserver
	mu        sync.Mutex
	sources   []*graph.BufferSource
	gains     int
	connects  int
	starts    int
	stops     int
	scheduled []float64
}

func (s *graphSpy) NodeCreated(n graph.Node) {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch n := n.(type) {
	case *graph.BufferSource:
		s.sources = append(s.sources, n)
	case *graph.Gain:
		s.gains++
	}
}

func (s *graphSpy) Connected(graph.Node, graph.Node) {
	s.mu.Lock()
	s.connects++
	s.mu.Unlock()
}

func (s *graphSpy) SourceStarted(*graph.BufferSource, float64) {
	s.mu.Lock()
	s.starts++
	s.mu.Unlock()
}

func (s *graphSpy) SourceStopped(*graph.BufferSource) {
	s.mu.Lock()
	s.stops++
	s.mu.Unlock()
}

func (s *graphSpy) ParamScheduled(_ *graph.Gain, v float64, _ float64) {
	s.mu.Lock()
	s.scheduled = append(s.scheduled, v)
	s.mu.Unlock()
}

func (s *graphSpy) mutations() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sources) + s.gains + s.connects + s.starts + s.stops + len(s.scheduled)
}

type harness struct {
	engine *Engine
	out    *manualOutput
	spy    *graphSpy
	events []SessionEvent
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{out: &manualOutput{}, spy: &graphSpy{}}
	h.engine = New(Config{
		SampleRate: testRate,
		Channels:   2,
		LeadIn:     100 * time.Millisecond,
		NewOutput:  func() output.Output { return h.out },
		Observer:   h.spy,
		OnSessionEvent: func(ev SessionEvent) {
			h.events = append(h.events, ev)
		},
	})
	t.Cleanup(func() { h.engine.Teardown() })
	return h
}

func (h *harness) lastState(handle SessionHandle) State {
	state := Idle
	for _, ev := range h.events {
		if ev.Handle == handle {
			state = ev.State
		}
	}
	return state
}

func tone(frames int, value float32) *audio.Buffer {
	buf := audio.NewBuffer(1, frames, testRate)
	for i := range buf.Data[0] {
		buf.Data[0][i] = value
	}
	return buf
}

func TestSessionLifecycle(t *testing.T) {
	h := newHarness(t)

	handle, err := h.engine.StartSession(tone(200, 0.5), nil, UnityLevels())
	if err != nil {
		t.Fatalf("failed to start session: %v", err)
	}
	if h.engine.State() != Starting {
		t.Fatalf("expected starting, got %v", h.engine.State())
	}

	out := h.out.render(50)
	if out[0] != 0 {
		t.Error("expected silence during lead-in")
	}
	if h.engine.State() != Starting {
		t.Fatalf("expected still starting during lead-in, got %v", h.engine.State())
	}

	out = h.out.render(100)
	if h.engine.State() != Playing {
		t.Fatalf("expected playing after lead-in, got %v", h.engine.State())
	}
	if out[len(out)-1] != 0.5 {
		t.Errorf("expected voice audible, got %v", out[len(out)-1])
	}

	h.out.render(300)
	if h.engine.State() != Ended {
		t.Fatalf("expected ended after voice finished, got %v", h.engine.State())
	}
	if h.lastState(handle) != Ended {
		t.Errorf("expected ended event, got %v", h.lastState(handle))
	}
	if _, ok := h.engine.Current(); ok {
		t.Error("expected no current session after end")
	}

	want := []State{Starting, Playing, Ended}
	if len(h.events) != len(want) {
		t.Fatalf("expected %d events, got %v", len(want), h.events)
	}
	for i, ev := range h.events {
		if ev.State != want[i] {
			t.Errorf("event %d: expected %v, got %v", i, want[i], ev.State)
		}
	}
}

func TestRestartLeavesOneVoice(t *testing.T) {
	h := newHarness(t)

	first, err := h.engine.StartSession(tone(1000, 0.5), nil, UnityLevels())
	if err != nil {
		t.Fatalf("first start failed: %v", err)
	}
	h.out.render(150)

	second, err := h.engine.StartSession(tone(1000, 0.5), nil, UnityLevels())
	if err != nil {
		t.Fatalf("second start failed: %v", err)
	}

	if h.spy.starts-h.spy.stops != 1 {
		t.Errorf("expected exactly one active source, got %d starts and %d stops", h.spy.starts, h.spy.stops)
	}
	if h.lastState(first) != Stopped {
		t.Errorf("expected superseded session stopped, got %v", h.lastState(first))
	}

	out := h.out.render(200)
	for i, v := range out {
		if v > 0.5 {
			t.Fatalf("sample %d = %v: overlapping voices", i, v)
		}
	}
	if h.lastState(second) != Playing {
		t.Errorf("expected second session playing, got %v", h.lastState(second))
	}
	if cur, _ := h.engine.Current(); cur != second {
		t.Error("expected the second session to be current")
	}
}

func TestRapidRestarts(t *testing.T) {
	h := newHarness(t)

	var last SessionHandle
	for i := 0; i < 5; i++ {
		handle, err := h.engine.StartSession(tone(500, 0.5), tone(100, 0.1), UnityLevels())
		if err != nil {
			t.Fatalf("start %d failed: %v", i, err)
		}
		last = handle
	}
	h.out.render(200)

	active := 0
	for _, src := range h.spy.sources {
		if src.Playing() {
			active++
		}
	}
	if active != 2 {
		t.Errorf("expected one voice and one ambience playing, got %d", active)
	}
	if cur, _ := h.engine.Current(); cur != last {
		t.Error("expected the last session to be current")
	}
}

func TestStopIsSafe(t *testing.T) {
	h := newHarness(t)

	h.engine.Stop("unknown")

	handle, _ := h.engine.StartSession(tone(1000, 0.5), nil, UnityLevels())
	h.out.render(150)

	h.engine.Stop(handle)
	h.engine.Stop(handle)
	h.engine.Stop("unknown")

	if h.engine.State() != Stopped {
		t.Errorf("expected stopped, got %v", h.engine.State())
	}
	out := h.out.render(50)
	for _, v := range out {
		if v != 0 {
			t.Fatal("expected silence after stop")
		}
	}

	// The voice's ended callback after Stop must not flip the state to ended
	if h.lastState(handle) != Stopped {
		t.Errorf("expected stopped to stick, got %v", h.lastState(handle))
	}
}

func TestUpdateLevelWithoutSession(t *testing.T) {
	h := newHarness(t)

	if err := h.engine.UpdateChannelLevel(Voice, Level{Volume: 0.25}); err != nil {
		t.Fatalf("update without session failed: %v", err)
	}
	if h.engine.Levels().Voice.Volume != 0.25 {
		t.Fatalf("expected stored volume 0.25, got %v", h.engine.Levels().Voice.Volume)
	}

	h.engine.StartSession(tone(1000, 0.8), nil, h.engine.Levels())
	out := h.out.render(150)
	if out[len(out)-1] != 0.2 {
		t.Errorf("expected next session at gain 0.25, got %v", out[len(out)-1])
	}
}

func TestUpdateLevelRampsLiveGain(t *testing.T) {
	h := newHarness(t)

	h.engine.StartSession(tone(2000, 1), nil, UnityLevels())
	h.out.render(150)

	if err := h.engine.UpdateChannelLevel(Voice, Level{Volume: 0}); err != nil {
		t.Fatalf("update failed: %v", err)
	}
	if len(h.spy.scheduled) != 1 || h.spy.scheduled[0] != 0 {
		t.Fatalf("expected one ramp toward 0, got %v", h.spy.scheduled)
	}

	out := h.out.render(10)
	if out[0] == 0 || out[0] >= 1 {
		t.Errorf("expected a smoothed first step, got %v", out[0])
	}
	out = h.out.render(1000)
	if out[len(out)-1] > 0.001 {
		t.Errorf("expected ramp to approach zero, got %v", out[len(out)-1])
	}
}

func TestNewSessionGlidesFromPreviousGain(t *testing.T) {
	h := newHarness(t)

	h.engine.StartSession(tone(3000, 1), nil, UnityLevels())
	h.out.render(150)

	levels := UnityLevels()
	levels.Voice = Level{Volume: 0.5}
	if _, err := h.engine.StartSession(tone(3000, 1), nil, levels); err != nil {
		t.Fatalf("second start failed: %v", err)
	}
	if len(h.spy.scheduled) != 1 || h.spy.scheduled[0] != 0.5 {
		t.Fatalf("expected one glide toward 0.5, got %v", h.spy.scheduled)
	}

	h.out.render(100) // lead-in
	out := h.out.render(1)
	if out[0] <= 0.55 || out[0] >= 1 {
		t.Errorf("expected first voice sample between the old and new gain, got %v", out[0])
	}
	out = h.out.render(1000)
	if diff := out[len(out)-1] - 0.5; diff > 0.001 || diff < -0.001 {
		t.Errorf("expected glide to settle at 0.5, got %v", out[len(out)-1])
	}
}

func TestFirstSessionStartsAtStoredLevel(t *testing.T) {
	h := newHarness(t)

	levels := UnityLevels()
	levels.Voice = Level{Volume: 0.5}
	h.engine.StartSession(tone(1000, 1), nil, levels)
	if len(h.spy.scheduled) != 0 {
		t.Errorf("expected no glide without a previous session, got %v", h.spy.scheduled)
	}
	out := h.out.render(150)
	if out[len(out)-1] != 0.5 {
		t.Errorf("expected voice at 0.5, got %v", out[len(out)-1])
	}
}

func TestLevelSourceReadAtStart(t *testing.T) {
	h := newHarness(t)

	reads := 0
	source := func() Levels {
		reads++
		levels := UnityLevels()
		levels.Voice = Level{Volume: 0.25}
		return levels
	}
	if _, err := h.engine.StartSession(tone(1000, 0.8), nil, UnityLevels(), WithLevelSource(source)); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	if reads != 1 {
		t.Errorf("expected the level source read once, got %d", reads)
	}
	if got := h.engine.Levels().Voice.Volume; got != 0.25 {
		t.Errorf("expected stored voice level 0.25 from the source, got %v", got)
	}
	out := h.out.render(150)
	if out[len(out)-1] != 0.2 {
		t.Errorf("expected voice gain 0.25, got %v", out[len(out)-1])
	}
}

func TestMutedVoiceIsSilentAndUnmuteRestores(t *testing.T) {
	h := newHarness(t)

	levels := UnityLevels()
	levels.Voice = Level{Volume: 0.5, Muted: true}
	h.engine.StartSession(tone(2000, 1), nil, levels)

	out := h.out.render(150)
	if out[len(out)-1] != 0 {
		t.Errorf("expected muted voice silent, got %v", out[len(out)-1])
	}

	h.engine.UpdateChannelLevel(Voice, Level{Volume: 0.5})
	h.out.render(1000)
	out = h.out.render(10)
	if diff := out[0] - 0.5; diff > 0.001 || diff < -0.001 {
		t.Errorf("expected unmuted voice back at 0.5, got %v", out[0])
	}
}

func TestMuteRejectedOnOtherChannels(t *testing.T) {
	h := newHarness(t)

	for _, ch := range []Channel{Master, Ambience, SFX} {
		err := h.engine.UpdateChannelLevel(ch, Level{Volume: 1, Muted: true})
		if !errors.Is(err, ErrNoMute) {
			t.Errorf("%s: expected ErrNoMute, got %v", ch, err)
		}
	}
	if err := h.engine.UpdateChannelLevel("reverb", Level{Volume: 1}); !errors.Is(err, ErrUnknownChannel) {
		t.Errorf("expected ErrUnknownChannel, got %v", err)
	}
}

func TestVolumeIsClamped(t *testing.T) {
	h := newHarness(t)

	h.engine.UpdateChannelLevel(Master, Level{Volume: 4})
	h.engine.UpdateChannelLevel(SFX, Level{Volume: -1})

	levels := h.engine.Levels()
	if levels.Master.Volume != MaxVolume {
		t.Errorf("expected master clamped to %v, got %v", MaxVolume, levels.Master.Volume)
	}
	if levels.SFX.Volume != 0 {
		t.Errorf("expected sfx clamped to 0, got %v", levels.SFX.Volume)
	}
}

func TestVoiceOnlyCreatesOneSource(t *testing.T) {
	h := newHarness(t)

	if _, err := h.engine.StartSession(tone(100, 0.5), nil, UnityLevels()); err != nil {
		t.Fatalf("start failed: %v", err)
	}

	if len(h.spy.sources) != 1 {
		t.Errorf("expected one source, got %d", len(h.spy.sources))
	}
	if h.spy.sources[0].Loop() {
		t.Error("voice source must not loop")
	}
	// master, voice and sfx; no ambience bus without an ambience bed
	if h.spy.gains != 3 {
		t.Errorf("expected 3 gains, got %d", h.spy.gains)
	}
}

func TestAmbienceLoopsUntilVoiceEnds(t *testing.T) {
	h := newHarness(t)

	h.engine.StartSession(tone(300, 0.5), tone(50, 0.25), UnityLevels())

	if len(h.spy.sources) != 2 {
		t.Fatalf("expected voice and ambience sources, got %d", len(h.spy.sources))
	}
	amb := h.spy.sources[0]
	if !amb.Loop() {
		t.Error("expected ambience to loop")
	}

	out := h.out.render(300)
	if out[len(out)-1] != 0.75 {
		t.Errorf("expected voice over ambience, got %v", out[len(out)-1])
	}

	h.out.render(200)
	if amb.Playing() {
		t.Error("expected ambience to stop with the voice")
	}
	if h.engine.State() != Ended {
		t.Errorf("expected ended, got %v", h.engine.State())
	}
}

func TestPlaybackRateOption(t *testing.T) {
	h := newHarness(t)

	h.engine.StartSession(tone(200, 0.5), nil, UnityLevels(), WithPlaybackRate(2))
	h.out.render(100 + 99)
	if h.engine.State() != Playing {
		t.Fatalf("expected playing, got %v", h.engine.State())
	}
	h.out.render(2)
	if h.engine.State() != Ended {
		t.Errorf("expected double-speed voice to end after 100 frames, got %v", h.engine.State())
	}
}

func TestCannotPlay(t *testing.T) {
	var events []SessionEvent
	e := New(Config{
		SampleRate:     testRate,
		NewOutput:      func() output.Output { return failingOutput{} },
		OnSessionEvent: func(ev SessionEvent) { events = append(events, ev) },
	})
	defer e.Teardown()

	_, err := e.StartSession(tone(100, 0.5), nil, UnityLevels())
	if !errors.Is(err, ErrCannotPlay) {
		t.Fatalf("expected ErrCannotPlay, got %v", err)
	}
	if e.State() != Idle {
		t.Errorf("expected idle after failed start, got %v", e.State())
	}
	if len(events) != 0 {
		t.Errorf("expected no session events, got %v", events)
	}
}

func TestNoVoice(t *testing.T) {
	h := newHarness(t)
	if _, err := h.engine.StartSession(nil, nil, UnityLevels()); !errors.Is(err, ErrNoVoice) {
		t.Errorf("expected ErrNoVoice, got %v", err)
	}
}

func TestTeardownBlocksLateWork(t *testing.T) {
	h := newHarness(t)

	h.engine.StartSession(tone(1000, 0.5), nil, UnityLevels())
	h.out.render(150)

	if err := h.engine.Teardown(); err != nil {
		t.Fatalf("teardown failed: %v", err)
	}
	if err := h.engine.Teardown(); err != nil {
		t.Errorf("second teardown should be a no-op, got %v", err)
	}
	if !h.out.closed {
		t.Error("expected output closed")
	}

	before := h.spy.mutations()
	events := len(h.events)

	// Work arriving from a late decode after teardown
	if _, err := h.engine.StartSession(tone(100, 0.5), nil, UnityLevels()); !errors.Is(err, ErrTornDown) {
		t.Errorf("expected ErrTornDown from StartSession, got %v", err)
	}
	if err := h.engine.UpdateChannelLevel(Voice, Level{Volume: 0.1}); !errors.Is(err, ErrTornDown) {
		t.Errorf("expected ErrTornDown from UpdateChannelLevel, got %v", err)
	}
	h.engine.Stop("anything")
	h.out.render(100)

	if h.spy.mutations() != before {
		t.Errorf("expected no graph mutations after teardown, got %d", h.spy.mutations()-before)
	}
	if len(h.events) != events {
		t.Errorf("expected no session events after teardown, got %v", h.events[events:])
	}
	if h.engine.Alive() {
		t.Error("expected engine not alive")
	}

	bins := make([]byte, h.engine.FrequencyBinCount())
	for i := range bins {
		bins[i] = 1
	}
	h.engine.ByteFrequencyData(bins)
	for _, b := range bins {
		if b != 0 {
			t.Fatal("expected zero spectrum after teardown")
		}
	}
}

func TestSpectrumFollowsPlayback(t *testing.T) {
	h := newHarness(t)

	bins := make([]byte, h.engine.FrequencyBinCount())
	h.engine.ByteFrequencyData(bins)
	for _, b := range bins {
		if b != 0 {
			t.Fatal("expected zero spectrum before any session")
		}
	}

	h.engine.StartSession(tone(1000, 0.9), nil, UnityLevels())
	h.out.render(500)
	h.engine.ByteFrequencyData(bins)
	if bins[0] == 0 {
		t.Error("expected energy in the DC bin for a constant voice")
	}
}

func TestStateStrings(t *testing.T) {
	tests := []struct {
		state State
		want  string
	}{
		{Idle, "idle"},
		{Starting, "starting"},
		{Playing, "playing"},
		{Ended, "ended"},
		{Stopped, "stopped"},
		{State(42), "unknown"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			if got := tt.state.String(); got != tt.want {
				t.Errorf("expected %q, got %q", tt.want, got)
			}
		})
	}
}
