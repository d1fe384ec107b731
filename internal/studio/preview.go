// ABOUTME: Voice-only preview player for recommended sample text
// ABOUTME: Plays synthesized speech at speed times pitch on its own engine
package studio

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"sync"

	"github.com/charmbracelet/log"

	"github.com/castvox/castvox-go/internal/collab"
	"github.com/castvox/castvox-go/pkg/audio"
	"github.com/castvox/castvox-go/pkg/audio/decode"
	"github.com/castvox/castvox-go/pkg/engine"
)

const (
	MinRate = 0.5
	MaxRate = 2.0
)

// ClampRate keeps a speed or pitch factor within [MinRate, MaxRate]
func ClampRate(v float64) float64 {
	if math.IsNaN(v) {
		return 1
	}
	return min(max(v, MinRate), MaxRate)
}

// Preview plays one sample at a time with no ambience and no lead-in
type Preview struct {
	engine *engine.Engine
	synth  collab.Synthesizer

	mu      sync.Mutex
	loading bool
	speed   float64
	pitch   float64
}

// NewPreview creates a preview player. The lead-in of config is ignored.
func NewPreview(config engine.Config, synth collab.Synthesizer) *Preview {
	config.LeadIn = 0
	return &Preview{
		engine: engine.New(config),
		synth:  synth,
		speed:  1,
		pitch:  1,
	}
}

// Engine returns the preview's engine
func (p *Preview) Engine() *engine.Engine {
	return p.engine
}

// SetSpeed sets the speed factor and returns the stored value
func (p *Preview) SetSpeed(v float64) float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.speed = ClampRate(v)
	return p.speed
}

// SetPitch sets the pitch factor and returns the stored value
func (p *Preview) SetPitch(v float64) float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.pitch = ClampRate(v)
	return p.pitch
}

// Rate returns the playback rate applied to the next preview
func (p *Preview) Rate() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.speed * p.pitch
}

// Playing reports whether a preview is audible or about to be
func (p *Preview) Playing() bool {
	return p.engine.State().Active()
}

// Toggle stops a playing preview, or synthesizes text in voice and plays
// it. It returns whether a preview is now playing.
func (p *Preview) Toggle(ctx context.Context, text, voice string) (bool, error) {
	p.mu.Lock()
	if p.loading {
		p.mu.Unlock()
		return false, ErrBusy
	}
	if h, ok := p.engine.Current(); ok {
		p.mu.Unlock()
		p.engine.Stop(h)
		return false, nil
	}
	if strings.TrimSpace(text) == "" {
		p.mu.Unlock()
		return false, ErrEmptyText
	}
	if p.synth == nil {
		p.mu.Unlock()
		return false, fmt.Errorf("%w: %w", ErrSynthesis, ErrNoCollaborator)
	}
	p.loading = true
	rate := p.speed * p.pitch
	p.mu.Unlock()

	defer func() {
		p.mu.Lock()
		p.loading = false
		p.mu.Unlock()
	}()

	pcm, err := p.synth.Synthesize(ctx, collab.SpeechRequest{Text: text, Voice: voice})
	if !p.engine.Alive() {
		return false, ErrClosed
	}
	if err != nil {
		return false, fmt.Errorf("%w: %w", ErrSynthesis, err)
	}

	buf := decode.Decode(pcm, audio.SpeechSampleRate, 1)
	if buf.Frames() == 0 {
		return false, fmt.Errorf("%w: no audio frames", ErrRenderFailed)
	}

	handle, err := p.engine.StartSession(buf, nil, engine.UnityLevels(), engine.WithPlaybackRate(rate))
	if err != nil {
		if errors.Is(err, engine.ErrTornDown) {
			return false, ErrClosed
		}
		return false, fmt.Errorf("%w: %w", ErrRenderFailed, err)
	}
	log.Debug("preview playing", "session", handle, "voice", voice, "rate", rate)
	return true, nil
}

// Close stops playback and releases the device
func (p *Preview) Close() error {
	return p.engine.Teardown()
}
