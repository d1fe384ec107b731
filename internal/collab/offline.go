// ABOUTME: Offline collaborators that need no network
// ABOUTME: Tone synthesis and catalog-only casting for demos and tests
package collab

import (
	"context"
	"encoding/binary"
	"fmt"
	"math"
	"slices"
	"strings"

	"github.com/castvox/castvox-go/internal/catalog"
	"github.com/castvox/castvox-go/pkg/audio"
)

// Tone synthesizes a hummed phrase instead of speech: one short tone per
// word at a pitch derived from the voice name
type Tone struct {
	SampleRate int
	WordLength float64 // seconds per word
	Volume     float64
}

// NewTone creates a tone synthesizer at the speech sample rate
func NewTone() *Tone {
	return &Tone{
		SampleRate: audio.SpeechSampleRate,
		WordLength: 0.3,
		Volume:     0.5,
	}
}

// Synthesize returns 16-bit little-endian mono PCM
func (t *Tone) Synthesize(ctx context.Context, req SpeechRequest) ([]byte, error) {
	words := strings.Fields(req.Text)
	if len(words) == 0 {
		return nil, ErrEmptyText
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	base := 180.0
	for _, r := range req.Voice {
		base += float64(r % 7)
	}

	perWord := int(t.WordLength * float64(t.SampleRate))
	out := make([]byte, 0, perWord*len(words)*2)
	for w, word := range words {
		freq := base * (1 + 0.05*float64(len(word)%5))
		for i := 0; i < perWord; i++ {
			// Raised-cosine envelope keeps word boundaries click free
			env := 0.5 - 0.5*math.Cos(2*math.Pi*float64(i)/float64(perWord))
			ts := float64(w*perWord+i) / float64(t.SampleRate)
			s := math.Sin(2*math.Pi*freq*ts) * env * t.Volume
			out = binary.LittleEndian.AppendUint16(out, uint16(audio.SampleToInt16(float32(s))))
		}
	}
	return out, nil
}

// Offline casts from the catalog by keyword and writes template scripts
type Offline struct{}

// Recommend keeps voices whose traits appear in the brief, or the first three
func (Offline) Recommend(ctx context.Context, brief string, voices []catalog.Metadata) (Recommendation, error) {
	if strings.TrimSpace(brief) == "" {
		return Recommendation{}, ErrEmptyText
	}
	if len(voices) == 0 {
		return Recommendation{}, ErrNoMatch
	}

	words := strings.Fields(strings.ToLower(brief))
	var names []string
	for _, v := range voices {
		if len(names) == MaxRecommendations {
			break
		}
		if matchesAny(words, v) {
			names = append(names, v.Name)
		}
	}
	for _, v := range voices {
		if len(names) == MaxRecommendations {
			break
		}
		if !slices.Contains(names, v.Name) {
			names = append(names, v.Name)
		}
	}

	return Recommendation{
		VoiceNames:        names,
		SystemInstruction: fmt.Sprintf("## Profil Audio\n\nNarator untuk: %s\n\n## Catatan Direktur\n\nBicara dengan jelas dan hangat.", brief),
		SampleText:        "Halo semuanya! Ini adalah contoh suara untuk kampanye kamu.",
	}, nil
}

// WriteScript returns a short template line for the idea
func (Offline) WriteScript(ctx context.Context, idea string, platform Platform) (string, error) {
	idea = strings.TrimSpace(idea)
	if idea == "" {
		return "", ErrEmptyText
	}
	return fmt.Sprintf("Hai %s! Yuk kenalan dengan %s.", platform.Label(), idea), nil
}

func matchesAny(words []string, v catalog.Metadata) bool {
	traits := append([]string{v.Gender, v.Pitch}, v.Characteristics...)
	for _, trait := range traits {
		t := strings.ToLower(trait)
		for _, w := range words {
			if w == t || (len(w) > 3 && strings.HasPrefix(t, w)) {
				return true
			}
		}
	}
	return false
}
