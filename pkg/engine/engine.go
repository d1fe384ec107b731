// ABOUTME: Playback graph manager
// ABOUTME: Builds, starts, adjusts and tears down live playback sessions
package engine

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/castvox/castvox-go/pkg/audio"
	"github.com/castvox/castvox-go/pkg/audio/output"
	"github.com/castvox/castvox-go/pkg/graph"
	"github.com/charmbracelet/log"
	"github.com/google/uuid"
)

// Config holds engine configuration
type Config struct {
	SampleRate   int
	Channels     int
	LeadIn       time.Duration
	TimeConstant float64 // seconds for smoothed fader moves
	NewOutput    func() output.Output
	Observer     graph.Observer

	// Callbacks run outside the engine lock
	OnSessionEvent func(SessionEvent)
}

// Engine owns one audio context and at most one live session
type Engine struct {
	config Config
	alive  atomic.Bool

	mu       sync.Mutex
	ctx      *graph.Context
	out      output.Output
	analyser *graph.Analyser
	levels   Levels
	session  *session
	state    State
}

// New creates an engine. No audio device is opened until the first session.
func New(config Config) *Engine {
	if config.SampleRate <= 0 {
		config.SampleRate = audio.SpeechSampleRate
	}
	if config.Channels <= 0 {
		config.Channels = 2
	}
	if config.LeadIn < 0 {
		config.LeadIn = 0
	}
	if config.TimeConstant <= 0 {
		config.TimeConstant = 0.1
	}
	if config.NewOutput == nil {
		config.NewOutput = output.NewOto
	}

	e := &Engine{
		config: config,
		levels: UnityLevels(),
	}
	e.alive.Store(true)
	return e
}

// Alive reports whether Teardown has not yet been called
func (e *Engine) Alive() bool {
	return e.alive.Load()
}

// StartSession releases any current session and plays voice, with an
// optional looped ambience bed, after the configured lead-in
func (e *Engine) StartSession(voice, ambience *audio.Buffer, levels Levels, opts ...SessionOption) (SessionHandle, error) {
	if voice == nil {
		return "", ErrNoVoice
	}
	so := sessionOptions{rate: 1}
	for _, opt := range opts {
		opt(&so)
	}

	e.mu.Lock()
	if !e.alive.Load() {
		e.mu.Unlock()
		return "", ErrTornDown
	}

	var events []SessionEvent
	var from map[Channel]float64
	if prev := e.session; prev != nil {
		from = prev.gainValues()
		events = append(events, e.releaseLocked(prev, Stopped))
	}

	if err := e.openLocked(); err != nil {
		e.mu.Unlock()
		e.emit(events)
		return "", err
	}

	if so.levels != nil {
		levels = so.levels()
	}
	e.levels = levels.clamped()
	s, err := e.buildLocked(voice, ambience, so, from)
	if err != nil {
		e.mu.Unlock()
		e.emit(events)
		return "", fmt.Errorf("%w: %w", ErrCannotPlay, err)
	}
	e.session = s
	e.state = Starting
	events = append(events, SessionEvent{Handle: s.handle, State: Starting})
	e.mu.Unlock()

	log.Debug("session started", "id", s.handle, "ambience", ambience != nil, "rate", so.rate)
	e.emit(events)
	return s.handle, nil
}

// openLocked creates the context and opens the output on first use
func (e *Engine) openLocked() error {
	if e.ctx != nil {
		return nil
	}

	ctx := graph.NewContext(e.config.SampleRate, e.config.Channels, graph.WithObserver(e.config.Observer))
	analyser, err := ctx.NewAnalyser(graph.DefaultFFTSize)
	if err != nil {
		ctx.Close()
		return fmt.Errorf("%w: %w", ErrCannotPlay, err)
	}
	if err := analyser.Connect(ctx.Destination()); err != nil {
		ctx.Close()
		return fmt.Errorf("%w: %w", ErrCannotPlay, err)
	}

	out := e.config.NewOutput()
	if err := out.Open(e.config.SampleRate, e.config.Channels, ctx); err != nil {
		ctx.Close()
		return fmt.Errorf("%w: %w", ErrCannotPlay, err)
	}

	e.ctx = ctx
	e.out = out
	e.analyser = analyser
	log.Debug("audio context opened", "rate", e.config.SampleRate, "channels", e.config.Channels)
	return nil
}

// buildLocked wires a fresh session graph. Gains start from the values in
// from, the previous session's live gains, and glide to the stored levels.
func (e *Engine) buildLocked(voice, ambience *audio.Buffer, so sessionOptions, from map[Channel]float64) (*session, error) {
	c := e.ctx
	s := &session{
		handle: SessionHandle(uuid.NewString()),
		state:  Starting,
		gains:  make(map[Channel]*graph.Gain, len(Channels)),
	}

	fail := func(err error) (*session, error) {
		s.release(Stopped)
		return nil, err
	}

	master, err := e.gainLocked(s, Master, e.analyser, from)
	if err != nil {
		return fail(err)
	}
	voiceGain, err := e.gainLocked(s, Voice, master, from)
	if err != nil {
		return fail(err)
	}
	// Effects bus is wired so future cues have a fader to land on
	if _, err := e.gainLocked(s, SFX, master, from); err != nil {
		return fail(err)
	}

	start := c.CurrentTime() + e.config.LeadIn.Seconds()

	if ambience != nil {
		ambGain, err := e.gainLocked(s, Ambience, master, from)
		if err != nil {
			return fail(err)
		}
		if s.ambience, err = c.NewBufferSource(ambience); err != nil {
			return fail(err)
		}
		s.ambience.SetLoop(true)
		if err := s.ambience.Connect(ambGain); err != nil {
			return fail(err)
		}
		if err := s.ambience.Start(start); err != nil {
			return fail(err)
		}
	}

	if s.voice, err = c.NewBufferSource(voice); err != nil {
		return fail(err)
	}
	s.voice.SetPlaybackRate(so.rate)
	if err := s.voice.Connect(voiceGain); err != nil {
		return fail(err)
	}

	handle := s.handle
	s.voice.OnStarted(func() { e.voiceStarted(handle) })
	s.voice.OnEnded(func() { e.voiceEnded(handle) })

	if err := s.voice.Start(start); err != nil {
		return fail(err)
	}
	return s, nil
}

func (e *Engine) gainLocked(s *session, ch Channel, dst graph.Node, from map[Channel]float64) (*graph.Gain, error) {
	level, err := e.levels.Get(ch)
	if err != nil {
		return nil, err
	}
	target := level.Gain()
	initial, ok := from[ch]
	if !ok {
		initial = target
	}
	g, err := e.ctx.NewGain(initial)
	if err != nil {
		return nil, err
	}
	s.gains[ch] = g
	if initial != target {
		if err := g.Gain().SetTargetAtTime(target, e.ctx.CurrentTime(), e.config.TimeConstant); err != nil {
			return nil, err
		}
	}
	if err := g.Connect(dst); err != nil {
		return nil, err
	}
	return g, nil
}

func (e *Engine) voiceStarted(handle SessionHandle) {
	e.mu.Lock()
	s := e.session
	if !e.alive.Load() || s == nil || s.handle != handle || s.state != Starting {
		e.mu.Unlock()
		return
	}
	s.state = Playing
	e.state = Playing
	e.mu.Unlock()

	e.emit([]SessionEvent{{Handle: handle, State: Playing}})
}

// voiceEnded ends the session when its voice finishes; ambience stops with it
func (e *Engine) voiceEnded(handle SessionHandle) {
	e.mu.Lock()
	s := e.session
	if !e.alive.Load() || s == nil || s.handle != handle || !s.state.Active() {
		e.mu.Unlock()
		return
	}
	ev := e.releaseLocked(s, Ended)
	e.mu.Unlock()

	log.Debug("session ended", "id", handle)
	e.emit([]SessionEvent{ev})
}

func (e *Engine) releaseLocked(s *session, final State) SessionEvent {
	s.release(final)
	if e.session == s {
		e.session = nil
		e.state = final
	}
	return SessionEvent{Handle: s.handle, State: final}
}

// Stop releases the session identified by handle. Unknown or finished
// handles are ignored.
func (e *Engine) Stop(handle SessionHandle) {
	e.mu.Lock()
	s := e.session
	if !e.alive.Load() || s == nil || s.handle != handle {
		e.mu.Unlock()
		return
	}
	ev := e.releaseLocked(s, Stopped)
	e.mu.Unlock()

	log.Debug("session stopped", "id", handle)
	e.emit([]SessionEvent{ev})
}

// UpdateChannelLevel stores a fader level and, when a session is live,
// ramps its gain toward the new value
func (e *Engine) UpdateChannelLevel(ch Channel, level Level) error {
	if level.Muted && !ch.CanMute() {
		return fmt.Errorf("%w: %s", ErrNoMute, ch)
	}
	level.Volume = ClampVolume(level.Volume)

	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.alive.Load() {
		return ErrTornDown
	}
	if err := e.levels.Set(ch, level); err != nil {
		return err
	}

	s := e.session
	if s == nil {
		return nil
	}
	g, ok := s.gains[ch]
	if !ok {
		return nil
	}
	if err := g.Gain().SetTargetAtTime(level.Gain(), e.ctx.CurrentTime(), e.config.TimeConstant); err != nil {
		log.Debug("ignoring gain update error", "channel", ch, "err", err)
	}
	return nil
}

// Levels returns the stored channel levels
func (e *Engine) Levels() Levels {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.levels
}

// State returns the state of the most recent session
func (e *Engine) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// Current returns the live session handle, if any
func (e *Engine) Current() (SessionHandle, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.session == nil {
		return "", false
	}
	return e.session.handle, true
}

// CurrentTime returns the audio clock in seconds, zero before the first session
func (e *Engine) CurrentTime() float64 {
	e.mu.Lock()
	ctx := e.ctx
	e.mu.Unlock()
	if ctx == nil {
		return 0
	}
	return ctx.CurrentTime()
}

// SampleRate returns the context sample rate in Hz
func (e *Engine) SampleRate() int {
	return e.config.SampleRate
}

// FrequencyBinCount returns the number of analyser bins
func (e *Engine) FrequencyBinCount() int {
	return graph.DefaultFFTSize / 2
}

// ByteFrequencyData fills dst with the mixed output spectrum, or zeros
// when no context is open
func (e *Engine) ByteFrequencyData(dst []byte) {
	e.mu.Lock()
	a := e.analyser
	e.mu.Unlock()

	if a == nil {
		clear(dst)
		return
	}
	a.ByteFrequencyData(dst)
}

// Teardown stops everything and closes the audio context. It is safe to
// call more than once.
func (e *Engine) Teardown() error {
	if !e.alive.Swap(false) {
		return nil
	}

	e.mu.Lock()
	if s := e.session; s != nil {
		e.releaseLocked(s, Stopped)
	}
	ctx, out := e.ctx, e.out
	e.ctx = nil
	e.out = nil
	e.analyser = nil
	e.mu.Unlock()

	// The device goroutine may be inside a render callback waiting on e.mu,
	// so close outside the lock
	if ctx != nil {
		ctx.Close()
	}
	if out != nil {
		if err := out.Close(); err != nil {
			log.Debug("ignoring output close error", "err", err)
		}
	}

	log.Debug("audio engine torn down")
	return nil
}

func (e *Engine) emit(events []SessionEvent) {
	if e.config.OnSessionEvent == nil {
		return
	}
	for _, ev := range events {
		if !e.alive.Load() {
			return
		}
		e.config.OnSessionEvent(ev)
	}
}
