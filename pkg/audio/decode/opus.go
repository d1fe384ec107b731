// ABOUTME: Ogg Opus audio decoder
// ABOUTME: Decodes Ogg Opus files such as recorded voice samples to float buffers
package decode

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	"github.com/castvox/castvox-go/pkg/audio"
	"gopkg.in/hraban/opus.v2"
)

// OpusSampleRate is the fixed output rate of the Opus decoder
const OpusSampleRate = 48000

// OpusDecoder decodes Ogg Opus audio
type OpusDecoder struct{}

// NewOpus creates a new Opus decoder
func NewOpus(format audio.Format) (Decoder, error) {
	if format.Codec != "opus" {
		return nil, fmt.Errorf("invalid codec for Opus decoder: %s", format.Codec)
	}
	return &OpusDecoder{}, nil
}

// Decode converts Ogg Opus bytes to a float buffer
func (d *OpusDecoder) Decode(data []byte) (*audio.Buffer, error) {
	channels := opusChannels(data)
	if channels == 0 {
		return nil, fmt.Errorf("missing OpusHead packet")
	}

	stream, err := opus.NewStream(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to create opus stream: %w", err)
	}
	defer stream.Close()

	// 120ms is the largest Opus frame
	pcm := make([]int16, 5760*channels)
	var samples []float32
	for {
		n, err := stream.Read(pcm)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("opus decode failed: %w", err)
		}
		for _, s := range pcm[:n*channels] {
			samples = append(samples, audio.SampleFromInt16(s))
		}
	}

	return audio.FromInterleaved(samples, channels, OpusSampleRate), nil
}

// Close releases decoder resources
func (d *OpusDecoder) Close() error {
	return nil
}

// opusChannels reads the channel count from the OpusHead identification header
func opusChannels(data []byte) int {
	i := bytes.Index(data, []byte("OpusHead"))
	if i < 0 || i+9 >= len(data) {
		return 0
	}
	return int(data[i+9])
}
