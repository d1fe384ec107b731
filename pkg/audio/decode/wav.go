// ABOUTME: WAV audio decoder
// ABOUTME: Decodes RIFF/WAVE files such as catalog voice samples to float buffers
package decode

import (
	"bytes"
	"fmt"

	"github.com/castvox/castvox-go/pkg/audio"
	"github.com/go-audio/wav"
)

// WAVDecoder decodes WAV audio
type WAVDecoder struct{}

// NewWAV creates a new WAV decoder
func NewWAV(format audio.Format) (Decoder, error) {
	if format.Codec != "wav" {
		return nil, fmt.Errorf("invalid codec for WAV decoder: %s", format.Codec)
	}
	return &WAVDecoder{}, nil
}

// Decode converts WAV bytes to a float buffer
func (d *WAVDecoder) Decode(data []byte) (*audio.Buffer, error) {
	decoder := wav.NewDecoder(bytes.NewReader(data))
	if !decoder.IsValidFile() {
		return nil, fmt.Errorf("invalid wav file")
	}

	pcm, err := decoder.FullPCMBuffer()
	if err != nil {
		return nil, fmt.Errorf("wav decode error: %w", err)
	}

	channels := pcm.Format.NumChannels
	if channels < 1 {
		channels = 1
	}
	frames := len(pcm.Data) / channels
	buf := audio.NewBuffer(channels, frames, pcm.Format.SampleRate)
	bitDepth := int(decoder.BitDepth)
	for i := 0; i < frames; i++ {
		for ch := 0; ch < channels; ch++ {
			buf.Data[ch][i] = audio.SampleFromInt(pcm.Data[i*channels+ch], bitDepth)
		}
	}
	return buf, nil
}

// Close releases decoder resources
func (d *WAVDecoder) Close() error {
	return nil
}
