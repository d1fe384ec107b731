// ABOUTME: Raw PCM audio decoder
// ABOUTME: Decodes interleaved signed 16-bit little-endian PCM to normalized floats
package decode

import (
	"encoding/binary"
	"fmt"

	"github.com/castvox/castvox-go/pkg/audio"
)

// Decode converts interleaved signed 16-bit little-endian PCM into a buffer.
// Trailing bytes that do not form a whole frame are dropped.
func Decode(raw []byte, sampleRate, numChannels int) *audio.Buffer {
	if numChannels < 1 {
		numChannels = 1
	}

	frames := len(raw) / 2 / numChannels
	buf := audio.NewBuffer(numChannels, frames, sampleRate)
	for ch := 0; ch < numChannels; ch++ {
		out := buf.Data[ch]
		for i := 0; i < frames; i++ {
			off := (i*numChannels + ch) * 2
			out[i] = audio.SampleFromInt16(int16(binary.LittleEndian.Uint16(raw[off:])))
		}
	}
	return buf
}

// PCMDecoder decodes raw PCM with a fixed format
type PCMDecoder struct {
	format audio.Format
}

// NewPCM creates a new PCM decoder
func NewPCM(format audio.Format) (Decoder, error) {
	if format.Codec != "pcm" {
		return nil, fmt.Errorf("invalid codec for PCM decoder: %s", format.Codec)
	}

	if format.BitDepth != 0 && format.BitDepth != 16 {
		return nil, fmt.Errorf("unsupported bit depth: %d (supported: 16)", format.BitDepth)
	}

	if format.SampleRate == 0 {
		format.SampleRate = audio.SpeechSampleRate
	}
	if format.Channels == 0 {
		format.Channels = 1
	}

	return &PCMDecoder{format: format}, nil
}

// Decode converts PCM bytes to a float buffer
func (d *PCMDecoder) Decode(data []byte) (*audio.Buffer, error) {
	return Decode(data, d.format.SampleRate, d.format.Channels), nil
}

// Close releases resources
func (d *PCMDecoder) Close() error {
	return nil
}
