// ABOUTME: Collaborator interfaces and result types
// ABOUTME: Request and response shapes shared by every implementation
package collab

import (
	"context"
	"fmt"

	"github.com/castvox/castvox-go/internal/catalog"
)

// MaxSampleBytes limits uploaded clone samples
const MaxSampleBytes = 15 * 1024 * 1024

// SpeechRequest asks for one narration
type SpeechRequest struct {
	Text  string
	Voice string
	// Style is an optional persona instruction
	Style string
}

// Synthesizer turns text into raw signed 16-bit mono PCM at 24kHz
type Synthesizer interface {
	Synthesize(ctx context.Context, req SpeechRequest) ([]byte, error)
}

// Recommendation is a casting suggestion
type Recommendation struct {
	VoiceNames        []string `json:"recommendedVoices"`
	SystemInstruction string   `json:"systemInstruction"`
	SampleText        string   `json:"sampleText"`
}

// Recommender picks voices for a freeform brief
type Recommender interface {
	Recommend(ctx context.Context, brief string, voices []catalog.Metadata) (Recommendation, error)
}

// Platform is a script target
type Platform string

const (
	TikTok  Platform = "tiktok"
	YouTube Platform = "youtube"
	Podcast Platform = "podcast"
)

// Platforms lists the supported script targets
var Platforms = []Platform{TikTok, YouTube, Podcast}

// ParsePlatform resolves a platform id
func ParsePlatform(s string) (Platform, error) {
	for _, p := range Platforms {
		if string(p) == s {
			return p, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownPlatform, s)
}

// Label returns the display name
func (p Platform) Label() string {
	switch p {
	case TikTok:
		return "TikTok"
	case YouTube:
		return "YouTube"
	case Podcast:
		return "Podcast"
	}
	return string(p)
}

// ScriptWriter drafts short narration scripts
type ScriptWriter interface {
	WriteScript(ctx context.Context, idea string, platform Platform) (string, error)
}

// CloneMatch is the catalog voice closest to a recorded sample
type CloneMatch struct {
	MatchedVoiceName string
	Analysis         catalog.Analysis
}

// CloneMatcher analyses a voice sample against the catalog
type CloneMatcher interface {
	MatchClone(ctx context.Context, sample []byte, mimeType string, voices []catalog.Metadata) (CloneMatch, error)
}

// LipSyncRequest asks for a talking video of a still frame
type LipSyncRequest struct {
	Image     []byte
	ImageMIME string
	Script    string
}

// LipSyncer generates lip-synced video. progress may be nil.
type LipSyncer interface {
	LipSync(ctx context.Context, req LipSyncRequest, progress func(status string)) ([]byte, error)
}
