// ABOUTME: Ogg Vorbis audio decoder
// ABOUTME: Decodes Ogg Vorbis files such as ambience loops to float buffers
package decode

import (
	"bytes"
	"fmt"

	"github.com/castvox/castvox-go/pkg/audio"
	"github.com/jfreymuth/oggvorbis"
)

// VorbisDecoder decodes Ogg Vorbis audio
type VorbisDecoder struct{}

// NewVorbis creates a new Ogg Vorbis decoder
func NewVorbis(format audio.Format) (Decoder, error) {
	if format.Codec != "vorbis" {
		return nil, fmt.Errorf("invalid codec for Vorbis decoder: %s", format.Codec)
	}
	return &VorbisDecoder{}, nil
}

// Decode converts Ogg Vorbis bytes to a float buffer
func (d *VorbisDecoder) Decode(data []byte) (*audio.Buffer, error) {
	samples, format, err := oggvorbis.ReadAll(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("vorbis decode error: %w", err)
	}
	return audio.FromInterleaved(samples, format.Channels, format.SampleRate), nil
}

// Close releases decoder resources
func (d *VorbisDecoder) Close() error {
	return nil
}
