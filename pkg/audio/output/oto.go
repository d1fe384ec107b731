// ABOUTME: Oto-based audio output implementation
// ABOUTME: Plays frames pulled from a Source through a shared oto context
package output

import (
	"fmt"
	"sync"

	"github.com/castvox/castvox-go/pkg/audio/encode"
	"github.com/charmbracelet/log"
	"github.com/ebitengine/oto/v3"
)

// oto allows a single context per process, so every Oto output shares one
var (
	sharedMu       sync.Mutex
	sharedCtx      *oto.Context
	sharedRate     int
	sharedChannels int
)

func otoContext(sampleRate, channels int) (*oto.Context, error) {
	sharedMu.Lock()
	defer sharedMu.Unlock()

	if sharedCtx != nil {
		if sharedRate != sampleRate || sharedChannels != channels {
			return nil, fmt.Errorf("audio device already open at %dHz %dch, cannot reopen at %dHz %dch",
				sharedRate, sharedChannels, sampleRate, channels)
		}
		if err := sharedCtx.Resume(); err != nil {
			return nil, fmt.Errorf("failed to resume audio device: %w", err)
		}
		return sharedCtx, nil
	}

	op := &oto.NewContextOptions{
		SampleRate:   sampleRate,
		ChannelCount: channels,
		Format:       oto.FormatSignedInt16LE,
	}

	ctx, readyChan, err := oto.NewContext(op)
	if err != nil {
		return nil, fmt.Errorf("failed to create oto context: %w", err)
	}
	<-readyChan

	sharedCtx = ctx
	sharedRate = sampleRate
	sharedChannels = channels
	log.Debug("audio device initialized", "rate", sampleRate, "channels", channels)
	return ctx, nil
}

// Oto output implementation using oto library
type Oto struct {
	mu     sync.Mutex
	player *oto.Player
	reader *sourceReader
}

// NewOto creates a new Oto output
func NewOto() Output {
	return &Oto{}
}

// Open creates a persistent player that pulls from src
func (o *Oto) Open(sampleRate, channels int, src Source) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.player != nil {
		return fmt.Errorf("output already open")
	}

	ctx, err := otoContext(sampleRate, channels)
	if err != nil {
		return err
	}

	o.reader = &sourceReader{src: src, channels: channels}
	o.player = ctx.NewPlayer(o.reader)
	o.player.Play()

	log.Debug("audio output opened", "rate", sampleRate, "channels", channels)
	return nil
}

// Close releases output resources
func (o *Oto) Close() error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.player == nil {
		return nil
	}

	o.reader.close()
	err := o.player.Close()
	o.player = nil
	o.reader = nil
	if err != nil {
		return fmt.Errorf("failed to close player: %w", err)
	}
	return nil
}

// sourceReader adapts a Source into the byte stream oto consumes
type sourceReader struct {
	mu       sync.Mutex
	src      Source
	channels int
	scratch  []float32
	closed   bool
}

func (r *sourceReader) Read(p []byte) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	frameBytes := 2 * r.channels
	frames := len(p) / frameBytes
	if frames == 0 {
		return 0, nil
	}

	n := frames * r.channels
	if cap(r.scratch) < n {
		r.scratch = make([]float32, n)
	}
	samples := r.scratch[:n]

	if r.closed {
		clear(samples)
	} else {
		r.src.Render(samples)
	}
	encode.PutInt16(p, samples)
	return frames * frameBytes, nil
}

func (r *sourceReader) close() {
	r.mu.Lock()
	r.closed = true
	r.mu.Unlock()
}
