// ABOUTME: FLAC audio decoder
// ABOUTME: Decodes FLAC files frame by frame to float buffers
package decode

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	"github.com/castvox/castvox-go/pkg/audio"
	"github.com/mewkiz/flac"
)

// FLACDecoder decodes FLAC audio
type FLACDecoder struct{}

// NewFLAC creates a new FLAC decoder
func NewFLAC(format audio.Format) (Decoder, error) {
	if format.Codec != "flac" {
		return nil, fmt.Errorf("invalid codec for FLAC decoder: %s", format.Codec)
	}
	return &FLACDecoder{}, nil
}

// Decode converts FLAC bytes to a float buffer
func (d *FLACDecoder) Decode(data []byte) (*audio.Buffer, error) {
	stream, err := flac.New(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to open flac stream: %w", err)
	}
	defer stream.Close()

	channels := int(stream.Info.NChannels)
	bitDepth := int(stream.Info.BitsPerSample)
	buf := &audio.Buffer{
		SampleRate: int(stream.Info.SampleRate),
		Data:       make([][]float32, channels),
	}

	for {
		frame, err := stream.ParseNext()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("flac frame decode error: %w", err)
		}

		for ch := 0; ch < channels && ch < len(frame.Subframes); ch++ {
			for _, s := range frame.Subframes[ch].Samples {
				buf.Data[ch] = append(buf.Data[ch], audio.SampleFromInt(int(s), bitDepth))
			}
		}
	}

	return buf, nil
}

// Close releases decoder resources
func (d *FLACDecoder) Close() error {
	return nil
}
