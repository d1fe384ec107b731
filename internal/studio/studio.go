// ABOUTME: Studio render flow and collaborator actions
// ABOUTME: Guards every asynchronous step with a generation check and the engine's liveness
package studio

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/charmbracelet/log"
	"golang.org/x/sync/errgroup"

	"github.com/castvox/castvox-go/internal/ambience"
	"github.com/castvox/castvox-go/internal/catalog"
	"github.com/castvox/castvox-go/internal/collab"
	"github.com/castvox/castvox-go/internal/store"
	"github.com/castvox/castvox-go/pkg/audio"
	"github.com/castvox/castvox-go/pkg/audio/decode"
	"github.com/castvox/castvox-go/pkg/audio/encode"
	"github.com/castvox/castvox-go/pkg/engine"
	"github.com/castvox/castvox-go/pkg/mixer"
)

// Config holds studio configuration
type Config struct {
	Engine       engine.Config
	Synthesizer  collab.Synthesizer
	Ambience     ambience.Loader // nil plays voice only
	Recommender  collab.Recommender
	ScriptWriter collab.ScriptWriter
	CloneMatcher collab.CloneMatcher
	LipSyncer    collab.LipSyncer
	Store        *store.Store
}

// RenderRequest describes one render
type RenderRequest struct {
	Text              string
	Voice             string
	SystemInstruction string
	AmbienceID        string
}

// Studio owns one engine and mixer and runs renders against them
type Studio struct {
	config Config
	engine *engine.Engine
	mixer  *mixer.Mixer

	// startMu serializes the final generation check with session start
	startMu sync.Mutex

	mu         sync.Mutex
	generation uint64
	cancel     context.CancelFunc
	lastPCM    []byte
	last       RenderRequest
}

// New creates a studio. The engine opens no device until the first render.
func New(config Config) *Studio {
	if config.Engine.SampleRate <= 0 {
		config.Engine.SampleRate = audio.SpeechSampleRate
	}
	e := engine.New(config.Engine)
	return &Studio{
		config: config,
		engine: e,
		mixer:  mixer.New(e),
	}
}

// Engine returns the playback engine; it also feeds the visualizer
func (s *Studio) Engine() *engine.Engine {
	return s.engine
}

// Mixer returns the channel faders
func (s *Studio) Mixer() *mixer.Mixer {
	return s.mixer
}

// Playing reports whether a session is starting or playing
func (s *Studio) Playing() bool {
	return s.engine.State().Active()
}

// Render synthesizes req and plays it over the selected ambience. Any
// current session is stopped first. A render overtaken by a newer call to
// Render, Stop or Close returns ErrSuperseded without touching playback.
func (s *Studio) Render(ctx context.Context, req RenderRequest) (engine.SessionHandle, error) {
	text := strings.TrimSpace(req.Text)
	if text == "" {
		return "", ErrEmptyText
	}
	if s.config.Synthesizer == nil {
		return "", fmt.Errorf("%w: %w", ErrSynthesis, ErrNoCollaborator)
	}
	if !s.engine.Alive() {
		return "", ErrClosed
	}

	gen, rctx := s.begin(ctx)
	defer s.finish(gen)

	if h, ok := s.engine.Current(); ok {
		s.engine.Stop(h)
	}

	var (
		pcm []byte
		bed *audio.Buffer
	)
	g, gctx := errgroup.WithContext(rctx)
	g.Go(func() error {
		var err error
		pcm, err = s.config.Synthesizer.Synthesize(gctx, collab.SpeechRequest{
			Text:  text,
			Voice: req.Voice,
			Style: req.SystemInstruction,
		})
		if err != nil {
			return fmt.Errorf("%w: %w", ErrSynthesis, err)
		}
		return nil
	})
	if s.config.Ambience != nil {
		g.Go(func() error {
			buf, err := s.config.Ambience.Load(gctx, req.AmbienceID, s.config.Engine.SampleRate)
			if err != nil {
				// The voice still plays without its bed
				log.Warn("ambience unavailable", "id", req.AmbienceID, "err", err)
				return nil
			}
			bed = buf
			return nil
		})
	}
	err := g.Wait()

	if !s.isCurrent(gen) {
		return "", ErrSuperseded
	}
	if err != nil {
		return "", err
	}

	voice := decode.Decode(pcm, audio.SpeechSampleRate, 1)
	if voice.Frames() == 0 {
		return "", fmt.Errorf("%w: no audio frames", ErrRenderFailed)
	}

	s.startMu.Lock()
	defer s.startMu.Unlock()
	if !s.isCurrent(gen) {
		return "", ErrSuperseded
	}
	if !s.engine.Alive() {
		return "", ErrClosed
	}

	handle, err := s.engine.StartSession(voice, bed, s.mixer.Levels(), engine.WithLevelSource(s.mixer.Levels))
	if err != nil {
		if errors.Is(err, engine.ErrTornDown) {
			return "", ErrClosed
		}
		return "", fmt.Errorf("%w: %w", ErrRenderFailed, err)
	}

	s.mu.Lock()
	s.lastPCM = pcm
	s.last = req
	s.mu.Unlock()

	log.Debug("render playing", "session", handle, "voice", req.Voice, "ambience", bed != nil, "bytes", len(pcm))
	return handle, nil
}

// begin supersedes any in-flight render and returns the new generation
func (s *Studio) begin(ctx context.Context) (uint64, context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		s.cancel()
	}
	s.generation++
	rctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	return s.generation, rctx
}

func (s *Studio) finish(gen uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.generation == gen && s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
}

func (s *Studio) isCurrent(gen uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.generation == gen
}

// supersede cancels any in-flight render
func (s *Studio) supersede() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.generation++
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
}

// Stop cancels any in-flight render and stops playback
func (s *Studio) Stop() {
	s.supersede()
	if h, ok := s.engine.Current(); ok {
		s.engine.Stop(h)
	}
}

// Close stops everything and releases the audio device
func (s *Studio) Close() error {
	s.supersede()
	return s.engine.Teardown()
}

// LastRender returns the raw PCM of the last successful render
func (s *Studio) LastRender() ([]byte, RenderRequest, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastPCM, s.last, s.lastPCM != nil
}

// ExportWAV writes the last render as a mono 24 kHz WAV file
func (s *Studio) ExportWAV(w io.WriteSeeker) error {
	pcm, _, ok := s.LastRender()
	if !ok {
		return ErrNothingRendered
	}
	return encode.WriteWAV(w, pcm, audio.SpeechSampleRate, 1)
}

// SaveProject stores req as a new project
func (s *Studio) SaveProject(req RenderRequest) (store.Project, error) {
	if strings.TrimSpace(req.Text) == "" {
		return store.Project{}, ErrEmptyText
	}
	if s.config.Store == nil {
		return store.Project{}, ErrNoStore
	}
	p := store.NewProject(req.Text, req.Voice, req.SystemInstruction)
	if err := s.config.Store.SaveProject(p); err != nil {
		return store.Project{}, err
	}
	return p, nil
}

// Recommend asks the casting collaborator for voices matching brief
func (s *Studio) Recommend(ctx context.Context, brief string) (collab.Recommendation, error) {
	if strings.TrimSpace(brief) == "" {
		return collab.Recommendation{}, ErrEmptyText
	}
	if s.config.Recommender == nil {
		return collab.Recommendation{}, fmt.Errorf("%w: %w", ErrRecommend, ErrNoCollaborator)
	}
	rec, err := s.config.Recommender.Recommend(ctx, brief, catalog.AllMetadata())
	if err != nil {
		return collab.Recommendation{}, fmt.Errorf("%w: %w", ErrRecommend, err)
	}
	return rec, nil
}

// WriteScript drafts a short script for idea on platform
func (s *Studio) WriteScript(ctx context.Context, idea string, platform collab.Platform) (string, error) {
	if strings.TrimSpace(idea) == "" {
		return "", ErrEmptyText
	}
	if s.config.ScriptWriter == nil {
		return "", fmt.Errorf("%w: %w", ErrScript, ErrNoCollaborator)
	}
	script, err := s.config.ScriptWriter.WriteScript(ctx, idea, platform)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrScript, err)
	}
	return script, nil
}

// MatchClone matches a recorded sample against the catalog and, when a
// store is configured, saves it as the next numbered clone
func (s *Studio) MatchClone(ctx context.Context, sample []byte, mimeType string) (store.Clone, error) {
	if len(sample) > collab.MaxSampleBytes {
		return store.Clone{}, fmt.Errorf("%w: %w", ErrClone, collab.ErrSampleTooLarge)
	}
	if s.config.CloneMatcher == nil {
		return store.Clone{}, fmt.Errorf("%w: %w", ErrClone, ErrNoCollaborator)
	}
	match, err := s.config.CloneMatcher.MatchClone(ctx, sample, mimeType, catalog.AllMetadata())
	if err != nil {
		return store.Clone{}, fmt.Errorf("%w: %w", ErrClone, err)
	}

	n := 1
	if s.config.Store != nil {
		existing, err := s.config.Store.Clones()
		if err != nil {
			return store.Clone{}, err
		}
		n = len(existing) + 1
	}
	clone := store.NewClone(n, audio.EncodePayload(sample), match.MatchedVoiceName, match.Analysis)
	if s.config.Store != nil {
		if err := s.config.Store.AddClone(clone); err != nil {
			return store.Clone{}, err
		}
	}
	return clone, nil
}

// LipSync animates a still image speaking script
func (s *Studio) LipSync(ctx context.Context, req collab.LipSyncRequest, progress func(string)) ([]byte, error) {
	if strings.TrimSpace(req.Script) == "" {
		return nil, ErrEmptyText
	}
	if s.config.LipSyncer == nil {
		return nil, fmt.Errorf("%w: %w", ErrLipSync, ErrNoCollaborator)
	}
	video, err := s.config.LipSyncer.LipSync(ctx, req, progress)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLipSync, err)
	}
	return video, nil
}
