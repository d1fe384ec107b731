// ABOUTME: Fixed catalog of synthetic voices
// ABOUTME: Loads the embedded voice list and answers lookups and metadata queries
package catalog

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"slices"
	"strings"
	"sync"
)

//go:embed voices.json
var voicesJSON []byte

const imageURLFormat = "https://www.gstatic.com/aistudio/starter-apps/voice-library/%s.jpeg"

// Analysis describes how a voice sounds
type Analysis struct {
	Gender            string   `json:"gender"`
	Pitch             string   `json:"pitch"`
	Characteristics   []string `json:"characteristics"`
	VisualDescription string   `json:"visualDescription,omitempty"`
}

// Voice is one catalog entry
type Voice struct {
	Name            string   `json:"name"`
	Pitch           string   `json:"pitch"`
	Characteristics []string `json:"characteristics"`
	AudioSampleURL  string   `json:"audioSampleUrl"`
	FileURI         string   `json:"fileUri"`
	Analysis        Analysis `json:"analysis"`
	ImageURL        string   `json:"imageUrl"`
}

// Metadata is the subset of a voice shared with collaborators
type Metadata struct {
	Name            string   `json:"name"`
	Gender          string   `json:"gender"`
	Pitch           string   `json:"pitch"`
	Characteristics []string `json:"characteristics"`
}

var load = sync.OnceValue(func() []Voice {
	var voices []Voice
	if err := json.Unmarshal(voicesJSON, &voices); err != nil {
		panic(fmt.Sprintf("catalog: invalid embedded voices: %v", err))
	}
	for i := range voices {
		voices[i].ImageURL = fmt.Sprintf(imageURLFormat, voices[i].Name)
	}
	return voices
})

// All returns every voice in catalog order
func All() []Voice {
	return slices.Clone(load())
}

// Len returns the catalog size
func Len() int {
	return len(load())
}

// First returns the first catalog voice, used as a fallback match
func First() Voice {
	return load()[0]
}

// Lookup finds a voice by name, ignoring case
func Lookup(name string) (Voice, bool) {
	for _, v := range load() {
		if strings.EqualFold(v.Name, name) {
			return v, true
		}
	}
	return Voice{}, false
}

// Names returns every voice name in catalog order
func Names() []string {
	voices := load()
	names := make([]string, len(voices))
	for i, v := range voices {
		names[i] = v.Name
	}
	return names
}

// Meta returns the collaborator view of a voice
func (v Voice) Meta() Metadata {
	return Metadata{
		Name:            v.Name,
		Gender:          v.Analysis.Gender,
		Pitch:           v.Analysis.Pitch,
		Characteristics: v.Analysis.Characteristics,
	}
}

// AllMetadata returns the collaborator view of the whole catalog
func AllMetadata() []Metadata {
	voices := load()
	meta := make([]Metadata, len(voices))
	for i, v := range voices {
		meta[i] = v.Meta()
	}
	return meta
}

// Genders returns the distinct analysed genders, sorted
func Genders() []string {
	return distinct(func(v Voice) string { return v.Analysis.Gender })
}

// Pitches returns the distinct analysed pitches, sorted
func Pitches() []string {
	return distinct(func(v Voice) string { return v.Analysis.Pitch })
}

func distinct(field func(Voice) string) []string {
	var out []string
	for _, v := range load() {
		if f := field(v); !slices.Contains(out, f) {
			out = append(out, f)
		}
	}
	slices.Sort(out)
	return out
}
