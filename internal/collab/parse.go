// ABOUTME: Decoding of structured collaborator responses
// ABOUTME: Applies required fields and defaults before results reach the studio
package collab

import (
	"encoding/json"
	"fmt"
	"slices"
	"strings"

	"github.com/castvox/castvox-go/internal/catalog"
)

// MaxRecommendations caps how many voices a recommendation keeps
const MaxRecommendations = 3

const (
	unknownValue       = "Unknown"
	defaultDescription = "Profil suara berhasil dianalisis."
)

// parseRecommendation decodes a casting response. Unknown and repeated
// names are dropped and at most MaxRecommendations are kept; a response
// with no names at all is ErrNoMatch.
func parseRecommendation(text string, voices []catalog.Metadata) (Recommendation, error) {
	var raw Recommendation
	if err := decodeJSON(text, &raw); err != nil {
		return Recommendation{}, err
	}
	if len(raw.VoiceNames) == 0 {
		return Recommendation{}, ErrNoMatch
	}

	rec := Recommendation{
		SystemInstruction: strings.TrimSpace(raw.SystemInstruction),
		SampleText:        strings.TrimSpace(raw.SampleText),
	}
	for _, name := range raw.VoiceNames {
		canonical, ok := findVoice(voices, strings.TrimSpace(name))
		if !ok || slices.Contains(rec.VoiceNames, canonical) {
			continue
		}
		rec.VoiceNames = append(rec.VoiceNames, canonical)
		if len(rec.VoiceNames) == MaxRecommendations {
			break
		}
	}
	return rec, nil
}

type cloneResponse struct {
	MatchedVoiceName string `json:"matchedVoiceName"`
	Analysis         *struct {
		Gender          string   `json:"gender"`
		Pitch           string   `json:"pitch"`
		Characteristics []string `json:"characteristics"`
		Reasoning       string   `json:"reasoning"`
	} `json:"analysis"`
}

// parseCloneMatch decodes a clone analysis, falling back to the first
// voice for a missing or unknown match and to placeholder analysis fields
func parseCloneMatch(text string, voices []catalog.Metadata) (CloneMatch, error) {
	if len(voices) == 0 {
		return CloneMatch{}, ErrNoMatch
	}
	var raw cloneResponse
	if err := decodeJSON(text, &raw); err != nil {
		return CloneMatch{}, err
	}

	match := CloneMatch{
		MatchedVoiceName: voices[0].Name,
		Analysis: catalog.Analysis{
			Gender:            unknownValue,
			Pitch:             unknownValue,
			Characteristics:   []string{},
			VisualDescription: defaultDescription,
		},
	}
	if name, ok := findVoice(voices, strings.TrimSpace(raw.MatchedVoiceName)); ok {
		match.MatchedVoiceName = name
	}
	if a := raw.Analysis; a != nil {
		if a.Gender != "" {
			match.Analysis.Gender = a.Gender
		}
		if a.Pitch != "" {
			match.Analysis.Pitch = a.Pitch
		}
		if a.Characteristics != nil {
			match.Analysis.Characteristics = a.Characteristics
		}
		if a.Reasoning != "" {
			match.Analysis.VisualDescription = a.Reasoning
		}
	}
	return match, nil
}

// cleanScript trims whitespace and one pair of surrounding quotes
func cleanScript(text string) string {
	s := strings.TrimSpace(text)
	s = strings.TrimPrefix(s, `"`)
	s = strings.TrimSuffix(s, `"`)
	return s
}

func decodeJSON(text string, v any) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return ErrEmptyResponse
	}
	if err := json.Unmarshal([]byte(text), v); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

func findVoice(voices []catalog.Metadata, name string) (string, bool) {
	for _, v := range voices {
		if strings.EqualFold(v.Name, name) {
			return v.Name, true
		}
	}
	return "", false
}
